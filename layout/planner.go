package layout

import (
	"math"
	"sort"

	"github.com/ByLCY/vellum/binding"
	"github.com/ByLCY/vellum/formula"
)

// Planner 根据带区几何、明细数据与公式引擎计算分页方案。
// Plan 是纯函数：相同输入必得相同输出，结果可按模板+数据+几何缓存。
type Planner struct {
	opts Options
}

// NewPlanner 创建分页规划器。
func NewPlanner(opts Options) *Planner {
	if opts.Engine == nil {
		opts.Engine = formula.New()
	}
	return &Planner{opts: opts}
}

// Engine 返回规划器使用的公式引擎。
func (p *Planner) Engine() *formula.Engine { return p.opts.Engine }

// Plan 计算整个报表的分页方案。缺少明细带或明细数组时返回单页的
// 平凡方案，这不是错误。
func (p *Planner) Plan(t *Template, data map[string]any) *PagePlan {
	plan := &PagePlan{
		RowsPerPage: 1,
		TotalPages:  1,
		DetailKey:   binding.DetailKey(t.Schema),
	}
	detail := t.Band(BandDetail)
	rows := binding.DetailRows(data, plan.DetailKey)
	plan.DetailCount = len(rows)
	if detail == nil || len(rows) == 0 {
		return plan
	}

	// 行高 = 明细带高度 − 带内最小纵向偏移。刻意放在带区名义顶部之上的
	// 控件（出血效果）不参与偏移计算，但仍会被渲染。
	plan.MinTopOffset = minTopOffset(detail)
	plan.SingleRowHeight = detail.Height() - plan.MinTopOffset
	if plan.SingleRowHeight <= 0 {
		plan.SingleRowHeight = detail.Height()
		plan.MinTopOffset = 0
	}
	if plan.SingleRowHeight <= 0 {
		return plan
	}

	geo := t.Geometry
	usable := geo.UsableHeight()
	header := t.Band(BandHeader)
	summary := t.Band(BandSummary)
	footer := t.Band(BandFooter)

	// 每页固定占用：页眉，加上 perPage 模式下每页保留的汇总带。
	fixed := header.Height()
	if summary != nil && summary.SummaryMode == SummaryPerPage {
		fixed += p.bandHeight(summary, data, plan, 1)
	}

	plan.RowsPerPage = int(math.Floor((usable - fixed) / plan.SingleRowHeight))
	if plan.RowsPerPage < 1 {
		plan.RowsPerPage = 1
	}
	plan.TotalPages = int(math.Ceil(float64(plan.DetailCount) / float64(plan.RowsPerPage)))
	if plan.TotalPages < 1 {
		plan.TotalPages = 1
	}

	if footer == nil || footer.Height() <= 0 {
		return plan
	}

	// 页脚适配检查：自然末页剩余空间是否容得下整个页脚。
	lastStart := (plan.TotalPages - 1) * plan.RowsPerPage
	lastCount := plan.DetailCount - lastStart
	lastDetailHeight := 0.0
	for i := 0; i < lastCount; i++ {
		lastDetailHeight += p.RowHeight(t, data, plan, lastStart+i)
	}
	remaining := usable - fixed - lastDetailHeight
	if summary != nil && summary.SummaryMode != SummaryPerPage {
		remaining -= p.bandHeight(summary, data, plan, plan.TotalPages)
	}
	if remaining >= footer.Height() {
		return plan
	}

	plan.FooterSplitY = footerSplit(footer, remaining)
	plan.HasFooterOnlyPage = true
	plan.TotalPages++
	return plan
}

// RowHeight 返回第 rowIndex 行（绝对下标）的行高。带区声明了行高公式时
// 逐行求值；结果非正或非数值时落回计算出的统一行高。
func (p *Planner) RowHeight(t *Template, data map[string]any, plan *PagePlan, rowIndex int) float64 {
	detail := t.Band(BandDetail)
	if detail == nil {
		return 0
	}
	if detail.RowHeightFormula == "" {
		return plan.SingleRowHeight
	}
	h, err := p.opts.Engine.EvaluateNumber(detail.RowHeightFormula, p.rowContext(data, plan, rowIndex))
	if err != nil || h <= 0 {
		return plan.SingleRowHeight
	}
	return h
}

// RowBackground 返回第 rowIndex 行的背景色。带区声明了背景色公式时逐行
// 求值；结果不是颜色时落回带区静态背景色。
func (p *Planner) RowBackground(t *Template, data map[string]any, plan *PagePlan, rowIndex int) string {
	detail := t.Band(BandDetail)
	if detail == nil {
		return ""
	}
	if detail.BackgroundColorFormula == "" {
		return detail.BackgroundColor
	}
	out := p.opts.Engine.Evaluate(detail.BackgroundColorFormula, p.rowContext(data, plan, rowIndex), formula.Options{})
	if !isColor(out) {
		return detail.BackgroundColor
	}
	return out
}

// bandHeight 返回汇总一类静态带区在 page 上的高度。detail/summary 带都可以
// 声明行高公式；结果非正或非数值时落回带区静态高度。
func (p *Planner) bandHeight(band *Band, data map[string]any, plan *PagePlan, page int) float64 {
	if band == nil {
		return 0
	}
	if band.RowHeightFormula == "" {
		return band.Height()
	}
	h, err := p.opts.Engine.EvaluateNumber(band.RowHeightFormula, p.pageContext(data, plan, page))
	if err != nil || h <= 0 {
		return band.Height()
	}
	return h
}

// bandBackground 返回静态带区在 page 上的背景色，公式结果不是颜色时落回
// 静态背景。
func (p *Planner) bandBackground(band *Band, data map[string]any, plan *PagePlan, page int) string {
	if band == nil {
		return ""
	}
	if band.BackgroundColorFormula == "" {
		return band.BackgroundColor
	}
	out := p.opts.Engine.Evaluate(band.BackgroundColorFormula, p.pageContext(data, plan, page), formula.Options{})
	if !isColor(out) {
		return band.BackgroundColor
	}
	return out
}

// pageContext 构造页级公式上下文，带当前页的行窗口。
func (p *Planner) pageContext(data map[string]any, plan *PagePlan, page int) *formula.Context {
	ctx := &formula.Context{
		Data:       data,
		DetailKey:  plan.DetailKey,
		Page:       page,
		TotalPages: plan.TotalPages,
		Now:        p.opts.Now,
	}
	if start, count := plan.PageWindow(page); count > 0 {
		ctx.StartIndex = start
		ctx.PageSize = count
	}
	return ctx
}

// rowContext 构造某一行的公式上下文；页码窗口按该行所在页推导。
func (p *Planner) rowContext(data map[string]any, plan *PagePlan, rowIndex int) *formula.Context {
	page := 1
	if plan.RowsPerPage > 0 {
		page = rowIndex/plan.RowsPerPage + 1
	}
	start, count := plan.PageWindow(page)
	rows := binding.DetailRows(data, plan.DetailKey)
	var row map[string]any
	if rowIndex >= 0 && rowIndex < len(rows) {
		row = rows[rowIndex]
	}
	return &formula.Context{
		Data:       data,
		Row:        row,
		DetailKey:  plan.DetailKey,
		Page:       page,
		TotalPages: plan.TotalPages,
		RowIndex:   rowIndex,
		StartIndex: start,
		PageSize:   count,
		Now:        p.opts.Now,
	}
}

// minTopOffset 返回明细带内控件的最小纵向偏移。
// 仅统计 Y 落在带区自身范围内的控件。
func minTopOffset(band *Band) float64 {
	min := math.MaxFloat64
	for i := range band.Objects {
		obj := &band.Objects[i]
		y := obj.Y
		if obj.Type == ObjectLine && obj.Y2 < y {
			y = obj.Y2
		}
		if y < band.Top || y >= band.Bottom {
			continue
		}
		if off := y - band.Top; off < min {
			min = off
		}
	}
	if min == math.MaxFloat64 {
		return 0
	}
	return min
}

// footerSplit 计算页脚拆分点：按控件底边排序，取仍然放得下的最大底边。
// 连第一个控件都放不下时返回 0（整个页脚顺延到溢出页）。
func footerSplit(footer *Band, remaining float64) float64 {
	if remaining <= 0 {
		return 0
	}
	bottoms := make([]float64, 0, len(footer.Objects))
	for i := range footer.Objects {
		bottoms = append(bottoms, objectBottom(&footer.Objects[i], footer.Top))
	}
	sort.Float64s(bottoms)
	split := 0.0
	for _, b := range bottoms {
		if b > remaining {
			break
		}
		if b > split {
			split = b
		}
	}
	if split > footer.Height() {
		split = footer.Height()
	}
	return split
}

// objectBottom 返回控件相对带区顶部的底边：线段取两端较大的 Y，
// 其余控件取 y+height。
func objectBottom(obj *ControlObject, bandTop float64) float64 {
	if obj.Type == ObjectLine {
		return math.Max(obj.Y, obj.Y2) - bandTop
	}
	return obj.Y + obj.Height - bandTop
}

// isColor 判断公式结果是否是 #RGB/#RRGGBB 颜色。
func isColor(s string) bool {
	if len(s) != 4 && len(s) != 7 {
		return false
	}
	if s[0] != '#' {
		return false
	}
	for _, r := range s[1:] {
		switch {
		case r >= '0' && r <= '9':
		case r >= 'a' && r <= 'f':
		case r >= 'A' && r <= 'F':
		default:
			return false
		}
	}
	return true
}
