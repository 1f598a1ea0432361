package layout

import (
	"strconv"
	"strings"
)

// This file is the thin unit adapter: the core computes purely in pixels,
// and physical lengths from template documents are converted here at a
// fixed DPI.

// DPI is the fixed design resolution used for all physical conversions.
const DPI = 96.0

// Conversion constants between physical units and pixels at DPI.
const (
	MmPerInch = 25.4
	PxPerMm   = DPI / MmPerInch
	PxPerPt   = DPI / 72.0
)

// MmToPx converts millimeters to pixels.
func MmToPx(mm float64) float64 { return mm * PxPerMm }

// PxToMm converts pixels to millimeters.
func PxToMm(px float64) float64 { return px / PxPerMm }

// InchToPx converts inches to pixels.
func InchToPx(in float64) float64 { return in * DPI }

// PtToPx converts points to pixels.
func PtToPx(pt float64) float64 { return pt * PxPerPt }

// ParseLength 解析 "210mm"、"8.5in"、"12pt" 或纯数字（视为 px）的长度
// 文本，返回像素值；无法解析时返回 0。
func ParseLength(value string) float64 {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0
	}
	unit := ""
	for _, suffix := range []string{"mm", "cm", "in", "pt", "px"} {
		if strings.HasSuffix(value, suffix) {
			unit = suffix
			value = strings.TrimSuffix(value, suffix)
			break
		}
	}
	num, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return 0
	}
	switch unit {
	case "mm":
		return MmToPx(num)
	case "cm":
		return MmToPx(num * 10)
	case "in":
		return InchToPx(num)
	case "pt":
		return PtToPx(num)
	default:
		return num
	}
}

// A4 返回 A4 纵向页面几何（210×297mm），边距为常用默认 10mm。
func A4() PageGeometry {
	m := MmToPx(10)
	return PageGeometry{
		Width:        MmToPx(210),
		Height:       MmToPx(297),
		MarginTop:    m,
		MarginRight:  m,
		MarginBottom: m,
		MarginLeft:   m,
	}
}

// A5 返回 A5 纵向页面几何（148×210mm）。
func A5() PageGeometry {
	m := MmToPx(10)
	return PageGeometry{
		Width:        MmToPx(148),
		Height:       MmToPx(210),
		MarginTop:    m,
		MarginRight:  m,
		MarginBottom: m,
		MarginLeft:   m,
	}
}
