package report

import (
	"fmt"
	"image/color"
	"strconv"
	"strings"

	"gonum.org/v1/plot/palette"
	"gonum.org/v1/plot/vg"
)

// Style carries every visual setting used by the figures. A Reporter owns
// its Style, so concurrent runs never share plotting state.
type Style struct {
	Width, Height               vg.Length
	HeatmapWidth, HeatmapHeight vg.Length
	DPI                         int

	TitleSize      vg.Length
	LabelSize      vg.Length
	TickSize       vg.Length
	AnnotationSize vg.Length

	GenderColors  map[string]color.Color
	FallbackColor color.Color
	ScatterColor  color.Color
	ScatterRadius vg.Length
	TrendColor    color.Color
	TrendWidth    vg.Length
	Heatmap       palette.Palette
	MaskColor     color.Color
}

// DefaultStyle returns 7x5 inch figures at 300 dpi with the gender and
// trend palette of the published charts.
func DefaultStyle() Style {
	return Style{
		Width:          7 * vg.Inch,
		Height:         5 * vg.Inch,
		HeatmapWidth:   8 * vg.Inch,
		HeatmapHeight:  6 * vg.Inch,
		DPI:            300,
		TitleSize:      vg.Points(13),
		LabelSize:      vg.Points(12),
		TickSize:       vg.Points(10),
		AnnotationSize: vg.Points(8),
		GenderColors: map[string]color.Color{
			"Male":   mustHex("#4C72B0"),
			"Female": mustHex("#55A868"),
		},
		FallbackColor: mustHex("#8C8C8C"),
		ScatterColor:  withAlpha(mustHex("#4C72B0"), 0.7),
		ScatterRadius: vg.Points(3.2),
		TrendColor:    mustHex("#E17C05"),
		TrendWidth:    vg.Points(2),
		Heatmap:       Ramp(64, YlGnBu...),
		MaskColor:     color.Transparent,
	}
}

// YlGnBu is the nine-class ColorBrewer yellow-green-blue scheme.
var YlGnBu = []color.Color{
	mustHex("#ffffd9"), mustHex("#edf8b1"), mustHex("#c7e9b4"),
	mustHex("#7fcdbb"), mustHex("#41b6c4"), mustHex("#1d91c0"),
	mustHex("#225ea8"), mustHex("#253494"), mustHex("#081d58"),
}

type ramp []color.Color

func (r ramp) Colors() []color.Color { return r }

// Ramp linearly interpolates n colors through the given stops.
func Ramp(n int, stops ...color.Color) palette.Palette {
	if n < 2 || len(stops) < 2 {
		return ramp(stops)
	}
	out := make(ramp, n)
	for i := range out {
		pos := float64(i) / float64(n-1) * float64(len(stops)-1)
		lo := int(pos)
		if lo >= len(stops)-1 {
			lo = len(stops) - 2
		}
		out[i] = lerp(stops[lo], stops[lo+1], pos-float64(lo))
	}
	return out
}

func lerp(a, b color.Color, t float64) color.Color {
	ca := color.NRGBAModel.Convert(a).(color.NRGBA)
	cb := color.NRGBAModel.Convert(b).(color.NRGBA)
	mix := func(x, y uint8) uint8 { return uint8(float64(x) + (float64(y)-float64(x))*t + 0.5) }
	return color.NRGBA{R: mix(ca.R, cb.R), G: mix(ca.G, cb.G), B: mix(ca.B, cb.B), A: mix(ca.A, cb.A)}
}

// ParseHex parses #RRGGBB or #RRGGBBAA.
func ParseHex(s string) (color.Color, error) {
	h := strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(h) != 6 && len(h) != 8 {
		return nil, fmt.Errorf("invalid hex color %q", s)
	}
	v, err := strconv.ParseUint(h, 16, 32)
	if err != nil {
		return nil, fmt.Errorf("invalid hex color %q: %w", s, err)
	}
	if len(h) == 6 {
		v = v<<8 | 0xff
	}
	return color.NRGBA{R: uint8(v >> 24), G: uint8(v >> 16), B: uint8(v >> 8), A: uint8(v)}, nil
}

func mustHex(s string) color.Color {
	c, err := ParseHex(s)
	if err != nil {
		panic(err)
	}
	return c
}

func withAlpha(c color.Color, a float64) color.Color {
	n := color.NRGBAModel.Convert(c).(color.NRGBA)
	n.A = uint8(a*255 + 0.5)
	return n
}

func (s Style) genderColor(label string) color.Color {
	if c, ok := s.GenderColors[label]; ok {
		return c
	}
	return s.FallbackColor
}
