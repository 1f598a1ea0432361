package canvasrenderer

import (
	"bytes"
	"image/color"
	"testing"

	"github.com/ByLCY/vellum/fonts"
	"github.com/ByLCY/vellum/layout"
)

func TestRenderRejectsEmptyDocument(t *testing.T) {
	r := NewRenderer("")
	if _, err := r.Render(nil); err == nil {
		t.Fatal("空文档应返回错误")
	}
	if _, err := r.Render(&layout.Document{}); err == nil {
		t.Fatal("无页面的文档应返回错误")
	}
}

// 图形与条码不依赖字体，可以在任何环境下整条渲染管线走通。
func TestRenderGraphicsOnly(t *testing.T) {
	doc := &layout.Document{
		Geometry: layout.PageGeometry{Width: 400, Height: 300},
		Plan:     &layout.PagePlan{TotalPages: 1, RowsPerPage: 1},
		Pages: []layout.ComposedPage{{
			Number: 1,
			Objects: []layout.PlacedObject{
				{Type: layout.ObjectQRCode, X: 20, Y: 20, Width: 80, Height: 80, Content: "SO-20240315-0012"},
				{Type: layout.ObjectBarcode, X: 120, Y: 20, Width: 200, Height: 40, Content: "12345678"},
				{Type: layout.ObjectLine, X: 20, Y: 120, X2: 360, Y2: 120},
				{Type: layout.ObjectRect, X: 20, Y: 140, Width: 120, Height: 60, Style: layout.Style{Color: "#336699"}},
			},
		}},
	}
	out, err := NewRenderer("").Render(doc)
	if err != nil {
		t.Fatalf("渲染失败: %v", err)
	}
	if !bytes.HasPrefix(out, []byte("%PDF")) {
		t.Fatalf("输出不是 PDF，前缀为 %q", out[:min(len(out), 8)])
	}
}

func TestRenderTextSmoke(t *testing.T) {
	if _, err := fonts.Load(fonts.DefaultName); err != nil {
		t.Skipf("缺少字体文件 %s，跳过文本渲染: %v", fonts.DefaultName, err)
	}
	tpl := &layout.Template{
		Geometry: layout.PageGeometry{
			Width: 400, Height: 300,
			MarginTop: 20, MarginRight: 20, MarginBottom: 20, MarginLeft: 20,
		},
		Bands: []layout.Band{
			{Role: layout.BandHeader, Top: 0, Bottom: 40, Objects: []layout.ControlObject{
				{Type: layout.ObjectText, X: 0, Y: 8, Width: 200, Height: 20, Content: "送货单 {customer}"},
			}},
			{Role: layout.BandDetail, Top: 40, Bottom: 72, Objects: []layout.ControlObject{
				{Type: layout.ObjectField, X: 0, Y: 46, Width: 160, Height: 20, FieldName: "products.name"},
			}},
		},
	}
	data := map[string]any{
		"customer": "测试客户",
		"products": []any{
			map[string]any{"name": "键盘"},
			map[string]any{"name": "鼠标"},
		},
	}
	doc, err := layout.NewPlanner(layout.Options{}).Compose(tpl, data)
	if err != nil {
		t.Fatalf("合成失败: %v", err)
	}
	out, err := NewRenderer("").Render(doc)
	if err != nil {
		t.Fatalf("渲染失败: %v", err)
	}
	if !bytes.HasPrefix(out, []byte("%PDF")) {
		t.Fatal("输出不是 PDF")
	}
}

func TestParseColor(t *testing.T) {
	fallback := color.RGBA{R: 1, G: 2, B: 3, A: 255}
	cases := map[string]color.RGBA{
		"#FF8000": {R: 255, G: 128, B: 0, A: 255},
		"#fff":    {R: 255, G: 255, B: 255, A: 255},
		" #000 ":  {R: 0, G: 0, B: 0, A: 255},
		"red":     fallback,
		"#GGGGGG": fallback,
		"":        fallback,
	}
	for in, want := range cases {
		if got := parseColor(in, fallback); got != want {
			t.Fatalf("parseColor(%q) 期望 %+v，实际 %+v", in, want, got)
		}
	}
}
