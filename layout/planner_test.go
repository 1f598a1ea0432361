package layout

import (
	"reflect"
	"testing"
)

// testTemplate 构造一个便于手算的模板：可用高度 360，页眉高 60，
// 明细行高 48，页脚高 100（两个控件的相对底边分别为 40 和 90）。
func testTemplate() *Template {
	return &Template{
		Geometry: PageGeometry{
			Width: 500, Height: 400,
			MarginTop: 20, MarginRight: 20, MarginBottom: 20, MarginLeft: 20,
		},
		Bands: []Band{
			{
				Role: BandHeader, Top: 0, Bottom: 60,
				Objects: []ControlObject{
					{Type: ObjectText, X: 0, Y: 10, Width: 200, Height: 20, Content: "送货单"},
				},
			},
			{
				Role: BandDetail, Top: 60, Bottom: 108,
				Objects: []ControlObject{
					{Type: ObjectField, X: 0, Y: 60, Width: 120, Height: 20, FieldName: "products.name"},
					{Type: ObjectField, X: 140, Y: 60, Width: 80, Height: 20, FieldName: "products.amount"},
				},
			},
			{
				Role: BandFooter, Top: 200, Bottom: 300,
				Objects: []ControlObject{
					{Type: ObjectText, X: 0, Y: 210, Width: 100, Height: 30, Content: "经办人签字"},
					{Type: ObjectText, X: 0, Y: 250, Width: 100, Height: 40, Content: "公司盖章"},
				},
			},
		},
	}
}

func testRows(n int) map[string]any {
	rows := make([]any, 0, n)
	for i := 0; i < n; i++ {
		rows = append(rows, map[string]any{
			"name":   "货品",
			"amount": float64(i + 1),
		})
	}
	return map[string]any{"customer": "测试客户", "products": rows}
}

func TestPlanBasic(t *testing.T) {
	p := NewPlanner(Options{})
	plan := p.Plan(testTemplate(), testRows(11))

	if plan.SingleRowHeight != 48 {
		t.Fatalf("行高期望 48，实际 %v", plan.SingleRowHeight)
	}
	// floor((360-60)/48) = 6
	if plan.RowsPerPage != 6 {
		t.Fatalf("每页行数期望 6，实际 %d", plan.RowsPerPage)
	}
	if plan.DetailCount != 11 {
		t.Fatalf("明细行数期望 11，实际 %d", plan.DetailCount)
	}
}

func TestPlanFooterSplit(t *testing.T) {
	p := NewPlanner(Options{})
	plan := p.Plan(testTemplate(), testRows(11))

	// 末页 5 行占 240，剩余 60 放不下高 100 的页脚：
	// 拆分点取仍放得下的最大控件底边 40，并追加一个溢出页。
	if !plan.HasFooterOnlyPage {
		t.Fatal("应产生页脚溢出页")
	}
	if plan.FooterSplitY != 40 {
		t.Fatalf("拆分点期望 40，实际 %v", plan.FooterSplitY)
	}
	if plan.TotalPages != 3 {
		t.Fatalf("总页数期望 3，实际 %d", plan.TotalPages)
	}
	if !plan.IsFooterOnlyPage(3) || plan.IsFooterOnlyPage(2) {
		t.Fatal("只有第 3 页是页脚溢出页")
	}
}

func TestPlanFooterFits(t *testing.T) {
	p := NewPlanner(Options{})
	// 末页 2 行占 96，剩余 204 放得下页脚，不拆分。
	plan := p.Plan(testTemplate(), testRows(8))
	if plan.HasFooterOnlyPage || plan.FooterSplitY != 0 {
		t.Fatalf("页脚应整体落在末页: %+v", plan)
	}
	if plan.TotalPages != 2 {
		t.Fatalf("总页数期望 2，实际 %d", plan.TotalPages)
	}
}

func TestPlanNoRows(t *testing.T) {
	p := NewPlanner(Options{})
	plan := p.Plan(testTemplate(), map[string]any{"customer": "空单"})
	// 没有明细行也要产出一页，页脚适配检查随之跳过。
	if plan.TotalPages != 1 || plan.RowsPerPage != 1 {
		t.Fatalf("空数据应得到单页平凡方案: %+v", plan)
	}
	if plan.HasFooterOnlyPage {
		t.Fatal("空数据不应有页脚溢出页")
	}
}

func TestPageWindowPartition(t *testing.T) {
	p := NewPlanner(Options{})
	for n := 0; n <= 25; n++ {
		plan := p.Plan(testTemplate(), testRows(n))
		covered := 0
		prevEnd := 0
		for page := 1; page <= plan.TotalPages; page++ {
			start, count := plan.PageWindow(page)
			if plan.IsFooterOnlyPage(page) {
				if count != 0 {
					t.Fatalf("n=%d 溢出页不应承载明细行", n)
				}
				continue
			}
			if start != prevEnd {
				t.Fatalf("n=%d 第 %d 页窗口不连续: start=%d 期望 %d", n, page, start, prevEnd)
			}
			prevEnd = start + count
			covered += count
		}
		if covered != n {
			t.Fatalf("n=%d 行窗口未覆盖全部明细: %d", n, covered)
		}
	}
}

func TestPlanPerPageSummaryReservesSpace(t *testing.T) {
	tpl := testTemplate()
	tpl.Bands = append(tpl.Bands, Band{
		Role: BandSummary, Top: 108, Bottom: 148,
		SummaryMode: SummaryPerPage,
	})
	p := NewPlanner(Options{})
	plan := p.Plan(tpl, testRows(11))
	// floor((360-60-40)/48) = 5
	if plan.RowsPerPage != 5 {
		t.Fatalf("perPage 汇总应减少每页行数至 5，实际 %d", plan.RowsPerPage)
	}
}

func TestMinTopOffset(t *testing.T) {
	tpl := testTemplate()
	detail := tpl.Band(BandDetail)
	for i := range detail.Objects {
		detail.Objects[i].Y = 65
	}
	p := NewPlanner(Options{})
	plan := p.Plan(tpl, testRows(3))
	if plan.MinTopOffset != 5 {
		t.Fatalf("最小偏移期望 5，实际 %v", plan.MinTopOffset)
	}
	if plan.SingleRowHeight != 43 {
		t.Fatalf("行高期望 43，实际 %v", plan.SingleRowHeight)
	}
}

func TestRowHeightFormula(t *testing.T) {
	tpl := testTemplate()
	tpl.Band(BandDetail).RowHeightFormula = "IF({rowIndex}>2, 60, 48)"
	p := NewPlanner(Options{})
	plan := p.Plan(tpl, testRows(5))

	if h := p.RowHeight(tpl, testRows(5), plan, 0); h != 48 {
		t.Fatalf("第 1 行行高期望 48，实际 %v", h)
	}
	if h := p.RowHeight(tpl, testRows(5), plan, 2); h != 60 {
		t.Fatalf("第 3 行行高期望 60，实际 %v", h)
	}
}

func TestRowHeightFormulaFallback(t *testing.T) {
	data := testRows(3)

	tpl := testTemplate()
	tpl.Band(BandDetail).RowHeightFormula = "0"
	p := NewPlanner(Options{})
	plan := p.Plan(tpl, data)
	if h := p.RowHeight(tpl, data, plan, 0); h != plan.SingleRowHeight {
		t.Fatalf("非正结果应落回统一行高，实际 %v", h)
	}

	tpl.Band(BandDetail).RowHeightFormula = "{broken"
	if h := p.RowHeight(tpl, data, plan, 0); h != plan.SingleRowHeight {
		t.Fatalf("解析失败应落回统一行高，实际 %v", h)
	}
}

func TestRowBackgroundFormula(t *testing.T) {
	tpl := testTemplate()
	detail := tpl.Band(BandDetail)
	detail.BackgroundColor = "#CCCCCC"
	detail.BackgroundColorFormula = `IF({rowIndex}%2==0, "#EEEEEE", "#FFFFFF")`
	data := testRows(4)
	p := NewPlanner(Options{})
	plan := p.Plan(tpl, data)

	// {rowIndex} 是 1 起行号：第 1 行为奇数。
	if bg := p.RowBackground(tpl, data, plan, 0); bg != "#FFFFFF" {
		t.Fatalf("第 1 行背景期望 #FFFFFF，实际 %q", bg)
	}
	if bg := p.RowBackground(tpl, data, plan, 1); bg != "#EEEEEE" {
		t.Fatalf("第 2 行背景期望 #EEEEEE，实际 %q", bg)
	}

	// 公式结果不是颜色时落回静态背景。
	detail.BackgroundColorFormula = `"不是颜色"`
	if bg := p.RowBackground(tpl, data, plan, 0); bg != "#CCCCCC" {
		t.Fatalf("应落回静态背景 #CCCCCC，实际 %q", bg)
	}
}

func TestPlanDeterministic(t *testing.T) {
	p := NewPlanner(Options{})
	a := p.Plan(testTemplate(), testRows(11))
	b := p.Plan(testTemplate(), testRows(11))
	if !reflect.DeepEqual(a, b) {
		t.Fatalf("相同输入应得到相同方案: %+v vs %+v", a, b)
	}
}
