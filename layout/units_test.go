package layout

import (
	"math"
	"testing"
)

func TestUnitConversions(t *testing.T) {
	if got := InchToPx(1); got != 96 {
		t.Fatalf("1in 期望 96px，实际 %v", got)
	}
	if got := PtToPx(72); got != 96 {
		t.Fatalf("72pt 期望 96px，实际 %v", got)
	}
	if got := PxToMm(MmToPx(210)); math.Abs(got-210) > 1e-9 {
		t.Fatalf("mm 往返换算失真: %v", got)
	}
}

func TestParseLength(t *testing.T) {
	cases := map[string]float64{
		"10mm":  MmToPx(10),
		"1cm":   MmToPx(10),
		"8.5in": InchToPx(8.5),
		"72pt":  96,
		"120px": 120,
		"42":    42,
		"":      0,
		"abc":   0,
	}
	for in, want := range cases {
		if got := ParseLength(in); math.Abs(got-want) > 1e-9 {
			t.Fatalf("ParseLength(%q) 期望 %v，实际 %v", in, want, got)
		}
	}
}

func TestA4Geometry(t *testing.T) {
	geo := A4()
	if math.Abs(geo.UsableHeight()-MmToPx(277)) > 1e-9 {
		t.Fatalf("A4 可用高度期望 277mm，实际 %vpx", geo.UsableHeight())
	}
	if math.Abs(geo.UsableWidth()-MmToPx(190)) > 1e-9 {
		t.Fatalf("A4 可用宽度期望 190mm，实际 %vpx", geo.UsableWidth())
	}
}
