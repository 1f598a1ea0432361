package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/ByLCY/vellum/layout"
	"github.com/ByLCY/vellum/renderer"
	canvasrenderer "github.com/ByLCY/vellum/renderer/canvas"
)

func main() {
	templatePath := flag.String("template", "examples/invoice.json", "报表模板 JSON 路径")
	dataPath := flag.String("data", "", "业务数据 JSON 路径")
	output := flag.String("out", "output/report.pdf", "PDF 输出路径")
	debug := flag.String("debug", "", "分页调试 JSON 输出路径")
	flag.Parse()

	var r renderer.Renderer = canvasrenderer.NewRenderer(filepath.Dir(*templatePath))
	if err := run(*templatePath, *dataPath, *output, *debug, r); err != nil {
		log.Fatalf("生成报表失败: %v", err)
	}
	fmt.Printf("已生成 PDF：%s\n", *output)
}

// run 串联模板加载、分页合成与渲染。
func run(templatePath, dataPath, outputPath, debugPath string, r renderer.Renderer) error {
	if r == nil {
		return fmt.Errorf("renderer 不能为空")
	}

	raw, err := os.ReadFile(templatePath)
	if err != nil {
		return fmt.Errorf("无法读取模板文件 %s: %w", templatePath, err)
	}
	var tpl layout.Template
	if err := json.Unmarshal(raw, &tpl); err != nil {
		return fmt.Errorf("解析模板 JSON 失败: %w", err)
	}
	if tpl.Geometry.Width <= 0 || tpl.Geometry.Height <= 0 {
		tpl.Geometry = layout.A4()
	}

	data := map[string]any{}
	if dataPath != "" {
		rawData, err := os.ReadFile(dataPath)
		if err != nil {
			return fmt.Errorf("无法读取数据文件 %s: %w", dataPath, err)
		}
		if err := json.Unmarshal(rawData, &data); err != nil {
			return fmt.Errorf("解析数据 JSON 失败: %w", err)
		}
	}

	planner := layout.NewPlanner(layout.Options{})
	doc, err := planner.Compose(&tpl, data)
	if err != nil {
		return fmt.Errorf("分页合成失败: %w", err)
	}

	if debugPath != "" {
		if err := writeDebug(doc, debugPath); err != nil {
			return err
		}
	}

	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return fmt.Errorf("创建输出目录失败: %w", err)
	}

	pdfBytes, err := r.Render(doc)
	if err != nil {
		return fmt.Errorf("渲染 PDF 失败: %w", err)
	}
	if err := os.WriteFile(outputPath, pdfBytes, 0o644); err != nil {
		return fmt.Errorf("写入 PDF 文件失败: %w", err)
	}

	return nil
}

func writeDebug(doc *layout.Document, debugPath string) error {
	if err := os.MkdirAll(filepath.Dir(debugPath), 0o755); err != nil {
		return fmt.Errorf("创建调试目录失败: %w", err)
	}
	if err := layout.WriteDebugJSON(doc, debugPath); err != nil {
		return fmt.Errorf("输出调试 JSON 失败: %w", err)
	}
	return nil
}
