package layout

import "testing"

func findLayout(layouts []BandLayout, role BandRole) *BandLayout {
	for i := range layouts {
		if layouts[i].Role == role {
			return &layouts[i]
		}
	}
	return nil
}

func TestLayoutPageStacking(t *testing.T) {
	tpl := testTemplate()
	data := testRows(11)
	p := NewPlanner(Options{})
	plan := p.Plan(tpl, data)

	layouts := p.LayoutPage(1, plan, tpl, data)
	header := findLayout(layouts, BandHeader)
	detail := findLayout(layouts, BandDetail)
	if header == nil || detail == nil {
		t.Fatalf("第 1 页应有页眉和明细带: %+v", layouts)
	}
	if header.Top != 20 || header.Height != 60 {
		t.Fatalf("页眉落位错误: top=%v height=%v", header.Top, header.Height)
	}
	if detail.Top != 80 || detail.Height != 288 {
		t.Fatalf("明细带落位错误: top=%v height=%v", detail.Top, detail.Height)
	}
	if detail.RowStart != 0 || detail.RowCount != 6 {
		t.Fatalf("明细窗口错误: start=%d count=%d", detail.RowStart, detail.RowCount)
	}
	// 页脚不在第 1 页。
	if findLayout(layouts, BandFooter) != nil {
		t.Fatal("页脚不应出现在第 1 页")
	}
}

func TestLayoutPageSplitFooter(t *testing.T) {
	tpl := testTemplate()
	data := testRows(11)
	p := NewPlanner(Options{})
	plan := p.Plan(tpl, data)

	// 第 2 页：5 行明细 + 页脚 before 半部分（高 40）。
	layouts := p.LayoutPage(2, plan, tpl, data)
	footer := findLayout(layouts, BandFooter)
	if footer == nil || footer.FooterPart != FooterBefore {
		t.Fatalf("第 2 页应有 before 页脚: %+v", footer)
	}
	if footer.Height != 40 {
		t.Fatalf("before 页脚高度期望 40，实际 %v", footer.Height)
	}
	// 明细 5 行 × 48 = 240，页脚紧随其后：20 + 60 + 240。
	if footer.Top != 320 {
		t.Fatalf("before 页脚 top 期望 320，实际 %v", footer.Top)
	}

	// 第 3 页：只有 after 页脚，贴住上边距，高度为剩余的 60。
	layouts = p.LayoutPage(3, plan, tpl, data)
	if len(layouts) != 1 {
		t.Fatalf("溢出页应只有一个落位: %+v", layouts)
	}
	after := layouts[0]
	if after.FooterPart != FooterAfter || after.Top != 20 || after.Height != 60 {
		t.Fatalf("after 页脚落位错误: %+v", after)
	}
}

func TestLayoutPageSummaryAtEnd(t *testing.T) {
	tpl := testTemplate()
	tpl.Bands = append(tpl.Bands, Band{
		Role: BandSummary, Top: 108, Bottom: 148,
		SummaryMode: SummaryAtEnd,
		Objects: []ControlObject{
			{Type: ObjectFormula, X: 0, Y: 118, Width: 100, Height: 20, Formula: "SUM({products.amount})"},
		},
	})
	data := testRows(8)
	p := NewPlanner(Options{})
	plan := p.Plan(tpl, data)
	if plan.TotalPages != 2 {
		t.Fatalf("总页数期望 2，实际 %d", plan.TotalPages)
	}

	if findLayout(p.LayoutPage(1, plan, tpl, data), BandSummary) != nil {
		t.Fatal("atEnd 汇总不应出现在第 1 页")
	}
	if findLayout(p.LayoutPage(2, plan, tpl, data), BandSummary) == nil {
		t.Fatal("atEnd 汇总应出现在末页")
	}
}

func TestLayoutPageSummaryPerPage(t *testing.T) {
	tpl := testTemplate()
	tpl.Bands = append(tpl.Bands, Band{
		Role: BandSummary, Top: 108, Bottom: 148,
		SummaryMode: SummaryPerPage,
	})
	data := testRows(11)
	p := NewPlanner(Options{})
	plan := p.Plan(tpl, data)

	for page := 1; page <= plan.TotalPages; page++ {
		if plan.IsFooterOnlyPage(page) {
			continue
		}
		if findLayout(p.LayoutPage(page, plan, tpl, data), BandSummary) == nil {
			t.Fatalf("perPage 汇总应出现在第 %d 页", page)
		}
	}
}

func TestComposePageObjects(t *testing.T) {
	tpl := testTemplate()
	data := testRows(2)
	p := NewPlanner(Options{})
	plan := p.Plan(tpl, data)
	if plan.TotalPages != 1 {
		t.Fatalf("总页数期望 1，实际 %d", plan.TotalPages)
	}

	page := p.ComposePage(1, plan, tpl, data)
	// 页眉 1 个控件 + 明细 2 行 × 2 控件 + 页脚 2 个控件。
	if len(page.Objects) != 7 {
		t.Fatalf("控件数期望 7，实际 %d", len(page.Objects))
	}

	var detailNames []PlacedObject
	for _, po := range page.Objects {
		if po.RowIndex >= 0 && po.Object.FieldName == "products.amount" {
			detailNames = append(detailNames, po)
		}
	}
	if len(detailNames) != 2 {
		t.Fatalf("明细金额控件期望 2 个，实际 %d", len(detailNames))
	}
	// 第 1 行贴住明细带顶 80，第 2 行在 80+48。
	if detailNames[0].Y != 80 || detailNames[1].Y != 128 {
		t.Fatalf("明细行纵坐标错误: %v / %v", detailNames[0].Y, detailNames[1].Y)
	}
	if detailNames[0].Content != "1" || detailNames[1].Content != "2" {
		t.Fatalf("明细内容错误: %q / %q", detailNames[0].Content, detailNames[1].Content)
	}
	// 横坐标含左边距。
	if detailNames[0].X != 160 {
		t.Fatalf("横坐标期望 160，实际 %v", detailNames[0].X)
	}
}

func TestComposeSplitFooterObjects(t *testing.T) {
	tpl := testTemplate()
	data := testRows(11)
	p := NewPlanner(Options{})
	plan := p.Plan(tpl, data)

	// before 半部分只保留底边不超过拆分点 40 的控件。
	page2 := p.ComposePage(2, plan, tpl, data)
	for _, po := range page2.Objects {
		if po.RowIndex < 0 && po.Object.Content == "公司盖章" {
			t.Fatal("第二个页脚控件不应出现在 before 半部分")
		}
	}

	// after 半部分只保留顺延的控件，整体上移拆分点。
	page3 := p.ComposePage(3, plan, tpl, data)
	if len(page3.Objects) != 1 {
		t.Fatalf("溢出页控件数期望 1，实际 %d", len(page3.Objects))
	}
	po := page3.Objects[0]
	if po.Object.Content != "公司盖章" {
		t.Fatalf("溢出页应只有第二个页脚控件，实际 %q", po.Object.Content)
	}
	// Y = 上边距 20 + 带内偏移 (250-200) − 拆分点 40 = 30。
	if po.Y != 30 {
		t.Fatalf("溢出页控件 Y 期望 30，实际 %v", po.Y)
	}
}

func TestSummaryBandFormulas(t *testing.T) {
	tpl := testTemplate()
	tpl.Bands = append(tpl.Bands, Band{
		Role: BandSummary, Top: 108, Bottom: 148,
		SummaryMode:            SummaryAtEnd,
		BackgroundColor:        "#CCCCCC",
		RowHeightFormula:       "IF({totalPages}>0, 60, 40)",
		BackgroundColorFormula: `"#ABCDEF"`,
		Objects: []ControlObject{
			{Type: ObjectText, X: 0, Y: 118, Width: 100, Height: 20, Content: "合计"},
		},
	})
	data := testRows(8)
	p := NewPlanner(Options{})
	plan := p.Plan(tpl, data)
	if plan.TotalPages != 2 {
		t.Fatalf("总页数期望 2，实际 %d", plan.TotalPages)
	}

	// 汇总带的行高公式生效：末页 2 行明细 96 之后是高 60 的汇总带。
	layouts := p.LayoutPage(2, plan, tpl, data)
	summary := findLayout(layouts, BandSummary)
	if summary == nil || summary.Height != 60 {
		t.Fatalf("汇总带高度期望 60，实际 %+v", summary)
	}
	footer := findLayout(layouts, BandFooter)
	if footer == nil || footer.Top != 236 {
		t.Fatalf("页脚应跟在求值后的汇总带之后（top=236），实际 %+v", footer)
	}

	// 背景色公式生效于汇总带控件。
	page2 := p.ComposePage(2, plan, tpl, data)
	found := false
	for _, po := range page2.Objects {
		if po.RowIndex < 0 && po.Object.Content == "合计" {
			found = true
			if po.Background != "#ABCDEF" {
				t.Fatalf("汇总控件背景期望 #ABCDEF，实际 %q", po.Background)
			}
		}
	}
	if !found {
		t.Fatal("未找到汇总带控件")
	}

	// 公式结果非法时落回静态值。
	sb := tpl.Band(BandSummary)
	sb.RowHeightFormula = "0"
	sb.BackgroundColorFormula = `"不是颜色"`
	layouts = p.LayoutPage(2, plan, tpl, data)
	if s := findLayout(layouts, BandSummary); s == nil || s.Height != 40 {
		t.Fatalf("非法行高公式应落回 40，实际 %+v", s)
	}
	page2 = p.ComposePage(2, plan, tpl, data)
	for _, po := range page2.Objects {
		if po.RowIndex < 0 && po.Object.Content == "合计" && po.Background != "#CCCCCC" {
			t.Fatalf("非法背景公式应落回 #CCCCCC，实际 %q", po.Background)
		}
	}
}

func TestComposeFormulaAndPageNumber(t *testing.T) {
	tpl := testTemplate()
	header := tpl.Band(BandHeader)
	header.Objects = append(header.Objects, ControlObject{
		Type: ObjectFormula, X: 300, Y: 10, Width: 120, Height: 20,
		Formula: `CONCAT("第", {pageNumber}, "/", {totalPages}, "页")`,
	})
	tpl.Bands = append(tpl.Bands, Band{
		Role: BandSummary, Top: 108, Bottom: 148,
		SummaryMode: SummaryAtEnd,
		Objects: []ControlObject{
			{Type: ObjectFormula, X: 0, Y: 118, Width: 100, Height: 20,
				Formula: "SUM({products.amount})", Format: "currency"},
		},
	})
	data := testRows(8)
	p := NewPlanner(Options{})
	plan := p.Plan(tpl, data)

	page2 := p.ComposePage(2, plan, tpl, data)
	var pageLabel, total string
	for _, po := range page2.Objects {
		if po.Object.Formula == "" {
			continue
		}
		if po.Object.Format == "currency" {
			total = po.Content
		} else {
			pageLabel = po.Content
		}
	}
	if pageLabel != "第2/2页" {
		t.Fatalf("页码公式结果错误: %q", pageLabel)
	}
	// 1+2+…+8 = 36
	if total != "¥36.00" {
		t.Fatalf("汇总公式结果错误: %q", total)
	}
}

func TestComposeNilTemplate(t *testing.T) {
	p := NewPlanner(Options{})
	if _, err := p.Compose(nil, nil); err == nil {
		t.Fatal("空模板应返回错误")
	}
}

func TestComposeDocument(t *testing.T) {
	p := NewPlanner(Options{})
	doc, err := p.Compose(testTemplate(), testRows(11))
	if err != nil {
		t.Fatalf("合成失败: %v", err)
	}
	if len(doc.Pages) != doc.Plan.TotalPages || len(doc.Pages) != 3 {
		t.Fatalf("页数不一致: %d vs %d", len(doc.Pages), doc.Plan.TotalPages)
	}
	for i, page := range doc.Pages {
		if page.Number != i+1 {
			t.Fatalf("页码不连续: %d", page.Number)
		}
	}
}
