package layout

// LayoutPage 把分页方案落实到第 page 页（1 起）：按页眉、明细、汇总、
// 页脚的顺序自上而下堆叠带区，返回有序的落位列表。
// 专门承载页脚溢出的附加页只输出一个 FooterAfter 落位。
func (p *Planner) LayoutPage(page int, plan *PagePlan, t *Template, data map[string]any) []BandLayout {
	if plan == nil || t == nil || page < 1 || page > plan.TotalPages {
		return nil
	}
	geo := t.Geometry
	footer := t.Band(BandFooter)

	if plan.IsFooterOnlyPage(page) {
		if footer == nil {
			return nil
		}
		return []BandLayout{{
			Band:         footer,
			Role:         BandFooter,
			Top:          geo.MarginTop,
			Height:       footer.Height() - plan.FooterSplitY,
			FooterPart:   FooterAfter,
			FooterSplitY: plan.FooterSplitY,
		}}
	}

	var layouts []BandLayout
	cursor := geo.MarginTop

	if header := t.Band(BandHeader); header != nil && header.Height() > 0 {
		layouts = append(layouts, BandLayout{
			Band:   header,
			Role:   BandHeader,
			Top:    cursor,
			Height: header.Height(),
		})
		cursor += header.Height()
	}

	detail := t.Band(BandDetail)
	start, count := plan.PageWindow(page)
	if detail != nil && count > 0 {
		height := 0.0
		for i := 0; i < count; i++ {
			height += p.RowHeight(t, data, plan, start+i)
		}
		layouts = append(layouts, BandLayout{
			Band:     detail,
			Role:     BandDetail,
			Top:      cursor,
			Height:   height,
			IsDetail: true,
			RowStart: start,
			RowCount: count,
		})
		cursor += height
	}

	if summary := t.Band(BandSummary); summary != nil {
		// 汇总带的行高公式与明细带同等生效，结果非法时落回静态高度。
		h := p.bandHeight(summary, data, plan, page)
		if h > 0 && summaryOnPage(summary.SummaryMode, page, plan) {
			layouts = append(layouts, BandLayout{
				Band:   summary,
				Role:   BandSummary,
				Top:    cursor,
				Height: h,
			})
			cursor += h
		}
	}

	if footer != nil && footer.Height() > 0 {
		lastContent := plan.TotalPages
		if plan.HasFooterOnlyPage {
			lastContent--
		}
		if page == lastContent {
			if !plan.HasFooterOnlyPage {
				layouts = append(layouts, BandLayout{
					Band:   footer,
					Role:   BandFooter,
					Top:    cursor,
					Height: footer.Height(),
				})
			} else if plan.FooterSplitY > 0 {
				layouts = append(layouts, BandLayout{
					Band:         footer,
					Role:         BandFooter,
					Top:          cursor,
					Height:       plan.FooterSplitY,
					FooterPart:   FooterBefore,
					FooterSplitY: plan.FooterSplitY,
				})
			}
		}
	}

	return layouts
}

// summaryOnPage 判断汇总带是否出现在 page 上：perPage 每页出现；
// atEnd（以及暂按 atEnd 处理的 perGroup）出现在最后一个承载内容的页。
func summaryOnPage(mode SummaryMode, page int, plan *PagePlan) bool {
	if mode == SummaryPerPage {
		return true
	}
	last := plan.TotalPages
	if plan.HasFooterOnlyPage {
		last--
	}
	return page == last
}
