package canvasrenderer

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/boombuler/barcode"
	"github.com/boombuler/barcode/code128"
	"github.com/boombuler/barcode/qr"
	"github.com/tdewolff/canvas"
	"github.com/tdewolff/canvas/renderers/pdf"

	"github.com/ByLCY/vellum/fonts"
	"github.com/ByLCY/vellum/layout"
	"github.com/ByLCY/vellum/renderer"
)

const defaultStrokeWidth = 0.2 // mm

// Renderer 通过 github.com/tdewolff/canvas 把合成页面绘制为 PDF。
// 布局坐标为 px，canvas 坐标为 mm，全部换算发生在这一层。
type Renderer struct {
	baseDir  string // 图片等资源的根目录
	fontName string

	fontMu sync.Mutex
	family *canvas.FontFamily
}

var _ renderer.Renderer = (*Renderer)(nil)

// NewRenderer 创建以 baseDir 解析资源路径的 PDF 渲染器。
func NewRenderer(baseDir string) *Renderer {
	return &Renderer{baseDir: baseDir, fontName: fonts.DefaultName}
}

// Render 把整份报表渲染为 PDF 字节。
func (r *Renderer) Render(doc *layout.Document) ([]byte, error) {
	if doc == nil {
		return nil, fmt.Errorf("渲染结果为空")
	}
	if len(doc.Pages) == 0 {
		return nil, fmt.Errorf("缺少可渲染的页面")
	}

	widthMM := layout.PxToMm(doc.Geometry.Width)
	heightMM := layout.PxToMm(doc.Geometry.Height)

	var buf bytes.Buffer
	writer := pdf.New(&buf, widthMM, heightMM, nil)
	for i, page := range doc.Pages {
		if i > 0 {
			writer.NewPage(widthMM, heightMM)
		}
		c := canvas.New(widthMM, heightMM)
		ctx := canvas.NewContext(c)
		ctx.SetCoordSystem(canvas.CartesianIV) // 使坐标与布局保持左上角为原点

		if err := r.drawPage(ctx, page); err != nil {
			return nil, err
		}
		c.RenderTo(writer)
	}

	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("写入 PDF 失败: %w", err)
	}
	return buf.Bytes(), nil
}

func (r *Renderer) drawPage(ctx *canvas.Context, page layout.ComposedPage) error {
	// 先画背景与图形，再画文本与图像，保证文字不被底色盖住。
	for i := range page.Objects {
		obj := &page.Objects[i]
		if obj.Background != "" {
			r.fillRect(ctx, obj)
		}
		switch obj.Type {
		case layout.ObjectLine:
			r.drawLine(ctx, obj)
		case layout.ObjectRect:
			r.drawRect(ctx, obj)
		}
	}
	for i := range page.Objects {
		obj := &page.Objects[i]
		var err error
		switch obj.Type {
		case layout.ObjectText, layout.ObjectField, layout.ObjectFormula:
			err = r.drawText(ctx, obj)
		case layout.ObjectImage:
			err = r.drawImage(ctx, obj)
		case layout.ObjectBarcode:
			err = r.drawBarcode(ctx, obj, false)
		case layout.ObjectQRCode:
			err = r.drawBarcode(ctx, obj, true)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (r *Renderer) drawText(ctx *canvas.Context, obj *layout.PlacedObject) error {
	if obj.Content == "" {
		return nil
	}
	sizePt := obj.Style.FontSize * 72.0 / layout.DPI
	if sizePt <= 0 {
		sizePt = 10
	}
	style := canvas.FontRegular
	if obj.Style.Bold {
		style = canvas.FontBold
	}
	face, err := r.fontFace(sizePt, parseColor(obj.Style.Color, canvas.Black), style)
	if err != nil {
		return err
	}

	var align canvas.TextAlign
	var anchorX float64
	switch strings.ToLower(obj.Style.Align) {
	case "center":
		align = canvas.Center
		anchorX = obj.X + obj.Width/2
	case "right", "end":
		align = canvas.Right
		anchorX = obj.X + obj.Width
	default:
		align = canvas.Left
		anchorX = obj.X
	}

	line := canvas.NewTextLine(face, obj.Content, align)
	baseline := layout.PxToMm(obj.Y) + face.Metrics().Ascent
	ctx.DrawText(layout.PxToMm(anchorX), baseline, line)
	return nil
}

func (r *Renderer) fillRect(ctx *canvas.Context, obj *layout.PlacedObject) {
	ctx.SetFillColor(parseColor(obj.Background, canvas.White))
	ctx.SetStrokeColor(color.RGBA{})
	ctx.DrawPath(layout.PxToMm(obj.X), layout.PxToMm(obj.Y),
		canvas.Rectangle(layout.PxToMm(obj.Width), layout.PxToMm(obj.Height)))
}

func (r *Renderer) drawLine(ctx *canvas.Context, obj *layout.PlacedObject) {
	w := layout.PxToMm(obj.Style.LineWidth)
	if w <= 0 {
		w = defaultStrokeWidth
	}
	ctx.SetStrokeColor(parseColor(obj.Style.Color, canvas.Black))
	ctx.SetStrokeWidth(w)
	p := &canvas.Path{}
	p.MoveTo(0, 0)
	p.LineTo(layout.PxToMm(obj.X2-obj.X), layout.PxToMm(obj.Y2-obj.Y))
	ctx.DrawPath(layout.PxToMm(obj.X), layout.PxToMm(obj.Y), p)
}

func (r *Renderer) drawRect(ctx *canvas.Context, obj *layout.PlacedObject) {
	w := layout.PxToMm(obj.Style.LineWidth)
	if w <= 0 {
		w = defaultStrokeWidth
	}
	ctx.SetFillColor(color.RGBA{})
	ctx.SetStrokeColor(parseColor(obj.Style.Color, canvas.Black))
	ctx.SetStrokeWidth(w)
	ctx.DrawPath(layout.PxToMm(obj.X), layout.PxToMm(obj.Y),
		canvas.Rectangle(layout.PxToMm(obj.Width), layout.PxToMm(obj.Height)))
}

// drawImage 按控件 Content 中的路径读取并绘制图片。
func (r *Renderer) drawImage(ctx *canvas.Context, obj *layout.PlacedObject) error {
	src := obj.Object.Content
	if src == "" {
		return nil
	}
	path := src
	if !filepath.IsAbs(path) {
		if r.baseDir == "" {
			return fmt.Errorf("未指定资源目录时不允许直接使用路径：%s", src)
		}
		path = filepath.Join(r.baseDir, path)
	}
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("读取图片 %s 失败: %w", src, err)
	}
	img, _, err := image.Decode(file)
	file.Close()
	if err != nil {
		return fmt.Errorf("解码图片 %s 失败: %w", src, err)
	}
	return r.placeImage(ctx, obj, img)
}

// drawBarcode 把控件内容编码为 Code128 或 QR 符号后按图片绘制。
func (r *Renderer) drawBarcode(ctx *canvas.Context, obj *layout.PlacedObject, isQR bool) error {
	if obj.Content == "" {
		return nil
	}
	var (
		code barcode.Barcode
		err  error
	)
	if isQR {
		code, err = qr.Encode(obj.Content, qr.M, qr.Auto)
	} else {
		code, err = code128.Encode(obj.Content)
	}
	if err != nil {
		return fmt.Errorf("编码条码内容 %q 失败: %w", obj.Content, err)
	}
	w, h := int(obj.Width), int(obj.Height)
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}
	code, err = barcode.Scale(code, w, h)
	if err != nil {
		return fmt.Errorf("缩放条码失败: %w", err)
	}
	return r.placeImage(ctx, obj, code)
}

// placeImage 以控件宽度为准绘制图片，保持像素宽高比。
func (r *Renderer) placeImage(ctx *canvas.Context, obj *layout.PlacedObject, img image.Image) error {
	widthMM := layout.PxToMm(obj.Width)
	if widthMM <= 0 {
		widthMM = layout.PxToMm(float64(img.Bounds().Dx()))
	}
	dpmm := float64(img.Bounds().Dx()) / widthMM
	if dpmm <= 0 {
		dpmm = 1
	}
	ctx.DrawImage(layout.PxToMm(obj.X), layout.PxToMm(obj.Y), img, canvas.DPMM(dpmm))
	return nil
}

func (r *Renderer) fontFace(sizePt float64, col color.RGBA, style canvas.FontStyle) (*canvas.FontFace, error) {
	family, err := r.ensureFamily()
	if err != nil {
		return nil, err
	}
	return family.Face(sizePt, col, style, canvas.FontNormal), nil
}

func (r *Renderer) ensureFamily() (*canvas.FontFamily, error) {
	r.fontMu.Lock()
	defer r.fontMu.Unlock()
	if r.family != nil {
		return r.family, nil
	}
	data, err := fonts.Load(r.fontName)
	if err != nil {
		return nil, err
	}
	family := canvas.NewFontFamily("vellum-body")
	if err := family.LoadFont(data, 0, canvas.FontRegular); err != nil {
		return nil, fmt.Errorf("加载字体 %s 失败: %w", r.fontName, err)
	}
	r.family = family
	return family, nil
}

// parseColor 解析 #RGB/#RRGGBB 颜色，解析失败时返回 fallback。
func parseColor(value string, fallback color.RGBA) color.RGBA {
	value = strings.TrimPrefix(strings.TrimSpace(value), "#")
	switch len(value) {
	case 3:
		value = strings.Repeat(string(value[0]), 2) +
			strings.Repeat(string(value[1]), 2) +
			strings.Repeat(string(value[2]), 2)
	case 6:
	default:
		return fallback
	}
	n, err := strconv.ParseUint(value, 16, 32)
	if err != nil {
		return fallback
	}
	return color.RGBA{R: uint8(n >> 16), G: uint8(n >> 8), B: uint8(n), A: 255}
}
