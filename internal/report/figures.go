package report

import (
	"bytes"
	"errors"
	"fmt"
	"image/color"
	"math"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/text"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"

	"github.com/KaramelBytes/incomegap/internal/analysis"
	"github.com/KaramelBytes/incomegap/internal/cleaning"
)

// Figure titles.
const (
	titleBox     = "Income distribution by gender: men earn more on average"
	titleScatter = "Education vs income: more schooling, higher income"
	titleHeatmap = "Correlation between income, education, and demographics"
)

var genderOrder = []string{cleaning.Male, cleaning.Female, cleaning.Other}

// noGlyph draws nothing; it hides box plot outliers.
type noGlyph struct{}

func (noGlyph) DrawGlyph(*draw.Canvas, draw.GlyphStyle, vg.Point) {}

func (s Style) newPlot(title string) *plot.Plot {
	p := plot.New()
	p.Title.Text = title
	p.Title.TextStyle.Font.Size = s.TitleSize
	p.X.Label.TextStyle.Font.Size = s.LabelSize
	p.Y.Label.TextStyle.Font.Size = s.LabelSize
	p.X.Tick.Label.Font.Size = s.TickSize
	p.Y.Tick.Label.Font.Size = s.TickSize
	return p
}

// IncomeBoxPlot draws income_winsorized per gender without outlier points.
// The y range stops at the whiskers.
func (s Style) IncomeBoxPlot(ds *cleaning.CleanedDataset) ([]byte, error) {
	income := ds.Column(cleaning.ColIncomeWinsorized)
	groups := map[string]plotter.Values{}
	for i, g := range ds.Labels(cleaning.ColGender) {
		groups[g] = append(groups[g], income[i])
	}

	p := s.newPlot(titleBox)
	p.Y.Label.Text = "Monthly income (R$)"
	p.Add(plotter.NewGrid())

	var names []string
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, g := range genderOrder {
		vals, ok := groups[g]
		if !ok {
			continue
		}
		box, err := plotter.NewBoxPlot(s.Width/6, float64(len(names)), vals)
		if err != nil {
			return nil, fmt.Errorf("box plot %s: %w", g, err)
		}
		box.FillColor = s.genderColor(g)
		box.GlyphStyle.Shape = noGlyph{}
		box.GlyphStyle.Radius = 0
		p.Add(box)
		names = append(names, g)
		lo = math.Min(lo, box.AdjLow)
		hi = math.Max(hi, box.AdjHigh)
	}
	if len(names) == 0 {
		return nil, errors.New("box plot: no data")
	}
	p.NominalX(names...)
	pad := (hi - lo) * 0.05
	if pad == 0 {
		pad = math.Max(math.Abs(hi)*0.05, 1)
	}
	p.Y.Min, p.Y.Max = lo-pad, hi+pad
	return render(p, s.Width, s.Height, s.DPI)
}

// EducationScatter plots log income against years of schooling with the
// least-squares trend line.
func (s Style) EducationScatter(ds *cleaning.CleanedDataset) ([]byte, error) {
	xs := ds.Column(cleaning.ColSchoolYears)
	ys := ds.Column(cleaning.ColLogIncome)
	pts := make(plotter.XYs, len(xs))
	for i := range xs {
		pts[i] = plotter.XY{X: xs[i], Y: ys[i]}
	}

	p := s.newPlot(titleScatter)
	p.X.Label.Text = "Years of education"
	p.Y.Label.Text = "Log of monthly income (winsorized)"
	p.Add(plotter.NewGrid())

	sc, err := plotter.NewScatter(pts)
	if err != nil {
		return nil, fmt.Errorf("scatter: %w", err)
	}
	sc.GlyphStyle.Color = s.ScatterColor
	sc.GlyphStyle.Radius = s.ScatterRadius
	sc.GlyphStyle.Shape = draw.CircleGlyph{}
	p.Add(sc)

	alpha, beta := stat.LinearRegression(xs, ys, nil, false)
	if !math.IsNaN(beta) && !math.IsInf(beta, 0) {
		x0, x1 := minMax(xs)
		line, err := plotter.NewLine(plotter.XYs{{X: x0, Y: alpha + beta*x0}, {X: x1, Y: alpha + beta*x1}})
		if err != nil {
			return nil, fmt.Errorf("trend line: %w", err)
		}
		line.LineStyle.Color = s.TrendColor
		line.LineStyle.Width = s.TrendWidth
		p.Add(line)
	}
	return render(p, s.Width, s.Height, s.DPI)
}

// corrGrid exposes the strict lower triangle of a correlation matrix as a
// heat map grid. Grid row 0 is drawn at the bottom, so matrix row i sits at
// grid row n-1-i.
type corrGrid struct{ m *analysis.CorrMatrix }

func (g corrGrid) Dims() (c, r int) { return len(g.m.Columns), len(g.m.Columns) }
func (g corrGrid) X(c int) float64  { return float64(c) }
func (g corrGrid) Y(r int) float64  { return float64(r) }

func (g corrGrid) Z(c, r int) float64 {
	i := len(g.m.Columns) - 1 - r
	if i <= c {
		return math.NaN()
	}
	return g.m.At(i, c)
}

// CorrelationHeatmap renders the lower triangle of m with two-decimal
// annotations.
func (s Style) CorrelationHeatmap(m *analysis.CorrMatrix) ([]byte, error) {
	n := len(m.Columns)
	if n < 2 {
		return nil, errors.New("heatmap: need at least two columns")
	}
	grid := corrGrid{m: m}
	h := plotter.NewHeatMap(grid, s.Heatmap)
	h.Min, h.Max = -1, 1
	h.NaN = s.MaskColor

	p := s.newPlot(titleHeatmap)
	p.Add(h)

	var pts plotter.XYs
	var labels []string
	for r := 0; r < n; r++ {
		for c := 0; c < n; c++ {
			z := grid.Z(c, r)
			if math.IsNaN(z) {
				continue
			}
			pts = append(pts, plotter.XY{X: grid.X(c), Y: grid.Y(r)})
			labels = append(labels, fmt.Sprintf("%.2f", z))
		}
	}
	if len(pts) > 0 {
		ann, err := plotter.NewLabels(plotter.XYLabels{XYs: pts, Labels: labels})
		if err != nil {
			return nil, fmt.Errorf("heatmap labels: %w", err)
		}
		for i := range ann.TextStyle {
			ann.TextStyle[i].XAlign = text.XCenter
			ann.TextStyle[i].YAlign = text.YCenter
			ann.TextStyle[i].Font.Size = s.AnnotationSize
			ann.TextStyle[i].Color = annotationColor(grid.Z(int(pts[i].X), int(pts[i].Y)))
		}
		p.Add(ann)
	}

	yNames := make([]string, n)
	for r := range yNames {
		yNames[r] = m.Columns[n-1-r]
	}
	p.NominalX(m.Columns...)
	p.NominalY(yNames...)
	p.X.Tick.Label.Rotation = math.Pi / 4
	p.X.Tick.Label.XAlign = text.XRight
	p.X.Tick.Label.YAlign = text.YCenter
	return render(p, s.HeatmapWidth, s.HeatmapHeight, s.DPI)
}

// annotationColor keeps labels readable on the dark end of the ramp.
func annotationColor(z float64) color.Color {
	if z > 0.5 {
		return color.White
	}
	return color.Black
}

// render draws p on an in-memory PNG canvas. A panic inside the plotting
// library is returned as an error.
func render(p *plot.Plot, w, h vg.Length, dpi int) (out []byte, err error) {
	defer func() {
		if r := recover(); r != nil {
			out, err = nil, fmt.Errorf("render figure: %v", r)
		}
	}()
	c := vgimg.NewWith(vgimg.UseWH(w, h), vgimg.UseDPI(dpi))
	p.Draw(draw.New(c))
	var buf bytes.Buffer
	if _, err := (vgimg.PngCanvas{Canvas: c}).WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

func minMax(v []float64) (lo, hi float64) {
	lo, hi = math.Inf(1), math.Inf(-1)
	for _, x := range v {
		lo = math.Min(lo, x)
		hi = math.Max(hi, x)
	}
	return lo, hi
}
