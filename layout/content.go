package layout

import (
	"fmt"
	"math"

	"github.com/ByLCY/vellum/binding"
	"github.com/ByLCY/vellum/formula"
)

// PlacedObject 是落到页面绝对坐标上的一个控件及其求值后的内容，
// 交给外部渲染器绘制。
type PlacedObject struct {
	Object     *ControlObject `json:"-"`
	Type       ObjectType     `json:"type"`
	X          float64        `json:"x"`
	Y          float64        `json:"y"`
	Width      float64        `json:"width"`
	Height     float64        `json:"height"`
	X2         float64        `json:"x2,omitempty"`
	Y2         float64        `json:"y2,omitempty"`
	Content    string         `json:"content,omitempty"`
	Background string         `json:"background,omitempty"`
	Style      Style          `json:"style,omitempty"`
	// RowIndex 是明细控件所属行的绝对下标；非明细控件为 -1。
	RowIndex int `json:"rowIndex"`
}

// ComposedPage 是单页的合成结果：带区落位与控件落位。
type ComposedPage struct {
	Number  int            `json:"number"`
	Bands   []BandLayout   `json:"bands"`
	Objects []PlacedObject `json:"objects"`
}

// Document 是整份报表的合成结果，渲染器逐页消费。
type Document struct {
	Geometry PageGeometry   `json:"geometry"`
	Plan     *PagePlan      `json:"plan"`
	Pages    []ComposedPage `json:"pages"`
}

// Compose 规划并合成整份报表。分页方案只计算一次，逐页合成复用它。
func (p *Planner) Compose(t *Template, data map[string]any) (*Document, error) {
	if t == nil {
		return nil, fmt.Errorf("模板为空")
	}
	plan := p.Plan(t, data)
	doc := &Document{
		Geometry: t.Geometry,
		Plan:     plan,
		Pages:    make([]ComposedPage, 0, plan.TotalPages),
	}
	for page := 1; page <= plan.TotalPages; page++ {
		doc.Pages = append(doc.Pages, p.ComposePage(page, plan, t, data))
	}
	return doc, nil
}

// ComposePage 合成第 page 页：取带区落位，并对每个控件求值内容与坐标。
func (p *Planner) ComposePage(page int, plan *PagePlan, t *Template, data map[string]any) ComposedPage {
	out := ComposedPage{Number: page}
	out.Bands = p.LayoutPage(page, plan, t, data)
	rows := binding.DetailRows(data, plan.DetailKey)

	for i := range out.Bands {
		bl := &out.Bands[i]
		if bl.IsDetail {
			out.Objects = append(out.Objects, p.composeDetail(bl, plan, t, data, rows, page)...)
			continue
		}
		out.Objects = append(out.Objects, p.composeStatic(bl, plan, t, data, page)...)
	}
	return out
}

// composeDetail 逐行重复明细带：每行的控件以行顶为基准，
// 偏移去掉 MinTopOffset，使首个可见控件贴住行顶。
func (p *Planner) composeDetail(bl *BandLayout, plan *PagePlan, t *Template, data map[string]any, rows []map[string]any, page int) []PlacedObject {
	band := bl.Band
	var placed []PlacedObject
	rowTop := bl.Top
	for i := 0; i < bl.RowCount; i++ {
		rowIndex := bl.RowStart + i
		rowHeight := p.RowHeight(t, data, plan, rowIndex)
		background := p.RowBackground(t, data, plan, rowIndex)
		ctx := p.rowContext(data, plan, rowIndex)
		ctx.TotalPages = plan.TotalPages

		for j := range band.Objects {
			obj := &band.Objects[j]
			po, ok := p.placeObject(obj, band, rowTop-plan.MinTopOffset, t, ctx)
			if !ok {
				continue
			}
			po.RowIndex = rowIndex
			if po.Background == "" {
				po.Background = background
			}
			placed = append(placed, po)
		}
		rowTop += rowHeight
	}
	return placed
}

// composeStatic 合成页眉/汇总/页脚带：控件按带内偏移落位。
// 拆分页脚只保留属于本半部分的控件，after 半部分整体上移拆分点。
func (p *Planner) composeStatic(bl *BandLayout, plan *PagePlan, t *Template, data map[string]any, page int) []PlacedObject {
	band := bl.Band
	ctx := p.pageContext(data, plan, page)
	background := p.bandBackground(band, data, plan, page)

	shift := 0.0
	if bl.FooterPart == FooterAfter {
		shift = -bl.FooterSplitY
	}

	var placed []PlacedObject
	for j := range band.Objects {
		obj := &band.Objects[j]
		if bl.FooterPart != FooterWhole {
			bottom := objectBottom(obj, band.Top)
			// 底边不超过拆分点的控件属于 before 半部分，其余顺延。
			if bl.FooterPart == FooterBefore && bottom > bl.FooterSplitY {
				continue
			}
			if bl.FooterPart == FooterAfter && bottom <= bl.FooterSplitY {
				continue
			}
		}
		po, ok := p.placeObject(obj, band, bl.Top+shift, t, ctx)
		if !ok {
			continue
		}
		po.RowIndex = -1
		if po.Background == "" {
			po.Background = background
		}
		placed = append(placed, po)
	}
	return placed
}

// placeObject 把控件从设计坐标换算到页面坐标并求值内容。
// 完全落在带区纵向范围之外的控件被过滤掉（不视为错误）。
func (p *Planner) placeObject(obj *ControlObject, band *Band, baseTop float64, t *Template, ctx *formula.Context) (PlacedObject, bool) {
	top, bottom := objectExtent(obj)
	if bottom < band.Top || top > band.Bottom {
		return PlacedObject{}, false
	}
	po := PlacedObject{
		Object: obj,
		Type:   obj.Type,
		X:      t.Geometry.MarginLeft + obj.X,
		Y:      baseTop + (obj.Y - band.Top),
		Width:  obj.Width,
		Height: obj.Height,
		Style:  obj.Style,
	}
	if obj.Type == ObjectLine {
		po.X2 = t.Geometry.MarginLeft + obj.X2
		po.Y2 = baseTop + (obj.Y2 - band.Top)
	}
	po.Background = obj.Style.Background
	po.Content = p.objectContent(obj, t, ctx)
	return po, true
}

// objectContent 求控件的显示内容：静态文本做占位符插值，绑定字段按
// 字段清单的类型格式化，公式交给引擎；图形类控件没有内容。
func (p *Planner) objectContent(obj *ControlObject, t *Template, ctx *formula.Context) string {
	switch obj.Type {
	case ObjectText:
		return binding.Interpolate(obj.Content, ctx.Data, ctx.Row)
	case ObjectField:
		field := binding.Lookup(t.Schema, obj.FieldName)
		if v, ok := binding.Resolve(ctx.Data, ctx.Row, obj.FieldName); ok {
			return binding.FormatValue(field, v)
		}
		if field != nil && field.Label != "" {
			return field.Label
		}
		return "[" + obj.FieldName + "]"
	case ObjectFormula:
		return p.opts.Engine.Evaluate(obj.Formula, ctx, formula.Options{Format: obj.Format})
	case ObjectBarcode, ObjectQRCode:
		// 条码内容也可以是占位符文本，由渲染器编码成符号。
		return binding.Interpolate(obj.Content, ctx.Data, ctx.Row)
	default:
		return ""
	}
}

// objectExtent 返回控件在设计坐标下的纵向范围。
func objectExtent(obj *ControlObject) (top, bottom float64) {
	if obj.Type == ObjectLine {
		return math.Min(obj.Y, obj.Y2), math.Max(obj.Y, obj.Y2)
	}
	return obj.Y, obj.Y + obj.Height
}
