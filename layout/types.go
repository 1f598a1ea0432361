package layout

// 该文件定义带区模板的数据模型与分页计算的输出结构，
// 模板本身是只读输入，核心计算绝不修改它。

import "github.com/ByLCY/vellum/binding"

// BandRole 是带区的四种固定角色。
type BandRole string

const (
	BandHeader  BandRole = "header"
	BandDetail  BandRole = "detail"
	BandSummary BandRole = "summary"
	BandFooter  BandRole = "footer"
)

// SummaryMode 控制汇总带的出现位置。
type SummaryMode string

const (
	SummaryAtEnd   SummaryMode = "atEnd"
	SummaryPerPage SummaryMode = "perPage"
	// SummaryPerGroup 暂无分组数据模型，行为与 SummaryAtEnd 一致。
	SummaryPerGroup SummaryMode = "perGroup"
)

// ObjectType 标记控件类型。条码/二维码的符号编码由渲染器完成。
type ObjectType string

const (
	ObjectText    ObjectType = "text"
	ObjectField   ObjectType = "field"
	ObjectFormula ObjectType = "formula"
	ObjectImage   ObjectType = "image"
	ObjectBarcode ObjectType = "barcode"
	ObjectQRCode  ObjectType = "qrcode"
	ObjectLine    ObjectType = "line"
	ObjectRect    ObjectType = "rect"
)

// Style 是控件的显示属性，核心只透传给渲染器。
type Style struct {
	FontSize   float64 `json:"fontSize,omitempty"`
	Bold       bool    `json:"bold,omitempty"`
	Color      string  `json:"color,omitempty"`
	Background string  `json:"background,omitempty"`
	Align      string  `json:"align,omitempty"`
	LineWidth  float64 `json:"lineWidth,omitempty"`
}

// ControlObject 是带区内的一个定位元素。坐标为设计坐标：
// X 相对可打印区域左缘，Y 与带区的 Top/Bottom 同一坐标系，单位 px。
type ControlObject struct {
	Type   ObjectType `json:"type"`
	X      float64    `json:"x"`
	Y      float64    `json:"y"`
	Width  float64    `json:"width"`
	Height float64    `json:"height"`
	// 线段的终点坐标（仅 ObjectLine 使用）。
	X2 float64 `json:"x2,omitempty"`
	Y2 float64 `json:"y2,omitempty"`

	Content   string `json:"content,omitempty"`   // 静态文本，可含 {field} 占位符
	FieldName string `json:"fieldName,omitempty"` // 绑定字段（ObjectField）
	Formula   string `json:"formula,omitempty"`   // 计算公式（ObjectFormula）
	Format    string `json:"format,omitempty"`    // number/currency/percent
	Style     Style  `json:"style,omitempty"`
}

// Band 是模板中的一个水平区域。Top/Bottom 是设计坐标下的纵向范围。
type Band struct {
	Role                   BandRole        `json:"role"`
	Top                    float64         `json:"top"`
	Bottom                 float64         `json:"actualBottom"`
	BackgroundColor        string          `json:"backgroundColor,omitempty"`
	BackgroundColorFormula string          `json:"backgroundColorFormula,omitempty"`
	RowHeightFormula       string          `json:"rowHeightFormula,omitempty"`
	SummaryMode            SummaryMode     `json:"summaryDisplayMode,omitempty"`
	Objects                []ControlObject `json:"objects"`
}

// Height 返回带区的设计高度。
func (b *Band) Height() float64 {
	if b == nil {
		return 0
	}
	return b.Bottom - b.Top
}

// PageGeometry 描述页面尺寸与四边距，单位 px（见 units.go 的换算）。
type PageGeometry struct {
	Width        float64 `json:"width"`
	Height       float64 `json:"height"`
	MarginTop    float64 `json:"marginTop"`
	MarginRight  float64 `json:"marginRight"`
	MarginBottom float64 `json:"marginBottom"`
	MarginLeft   float64 `json:"marginLeft"`
}

// UsableHeight 返回去掉上下边距后的可用高度。
func (g PageGeometry) UsableHeight() float64 {
	return g.Height - g.MarginTop - g.MarginBottom
}

// UsableWidth 返回去掉左右边距后的可用宽度。
func (g PageGeometry) UsableWidth() float64 {
	return g.Width - g.MarginLeft - g.MarginRight
}

// Template 是一份保存下来的报表设计文档：带区、字段清单与页面几何。
type Template struct {
	Bands    []Band              `json:"bands"`
	Schema   []binding.DataField `json:"schema"`
	Geometry PageGeometry        `json:"geometry"`
}

// Band 按角色查找带区，未定义时返回 nil。
func (t *Template) Band(role BandRole) *Band {
	if t == nil {
		return nil
	}
	for i := range t.Bands {
		if t.Bands[i].Role == role {
			return &t.Bands[i]
		}
	}
	return nil
}

// PagePlan 是分页规划的结果，与具体某一页的渲染无关。
type PagePlan struct {
	RowsPerPage       int     `json:"rowsPerPage"`
	TotalPages        int     `json:"totalPages"`
	SingleRowHeight   float64 `json:"singleRowHeight"`
	MinTopOffset      float64 `json:"minTopOffset"`
	HasFooterOnlyPage bool    `json:"hasFooterOnlyPage"`
	// FooterSplitY 是溢出前那一页渲染的页脚高度；整个页脚都溢出时为 0。
	FooterSplitY float64 `json:"footerSplitY"`
	DetailCount  int     `json:"detailCount"`
	DetailKey    string  `json:"detailKey"`
}

// PageWindow 返回 1 起页码 page 上的明细行窗口 [start, start+count)。
// 行窗口连续且不重叠地划分整个明细数组。
func (p *PagePlan) PageWindow(page int) (start, count int) {
	if p == nil || p.RowsPerPage <= 0 || page < 1 {
		return 0, 0
	}
	if p.IsFooterOnlyPage(page) {
		return p.DetailCount, 0
	}
	start = (page - 1) * p.RowsPerPage
	if start >= p.DetailCount {
		return p.DetailCount, 0
	}
	count = p.RowsPerPage
	if start+count > p.DetailCount {
		count = p.DetailCount - start
	}
	return start, count
}

// IsFooterOnlyPage 判断 page 是否是只承载页脚溢出部分的附加页。
func (p *PagePlan) IsFooterOnlyPage(page int) bool {
	return p != nil && p.HasFooterOnlyPage && page == p.TotalPages
}

// FooterPart 标记拆分页脚的归属。
type FooterPart string

const (
	FooterWhole  FooterPart = ""
	FooterBefore FooterPart = "before"
	FooterAfter  FooterPart = "after"
)

// BandLayout 是合成器对单页的输出：一个带区的落位。
type BandLayout struct {
	Band     *Band    `json:"-"`
	Role     BandRole `json:"role"`
	Top      float64  `json:"top"`
	Height   float64  `json:"height"`
	IsDetail bool     `json:"isDetail"`
	// 明细带在本页上承载的行窗口。
	RowStart int `json:"rowStart,omitempty"`
	RowCount int `json:"rowCount,omitempty"`
	// 拆分页脚的归属与拆分点；FooterWhole 表示未拆分。
	FooterPart   FooterPart `json:"footerPart,omitempty"`
	FooterSplitY float64    `json:"footerSplitY,omitempty"`
}
