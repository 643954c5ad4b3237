package report

import (
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/samtorrez84/psosearch/record"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"
)

const (
	ScalingFile = "scaling.png"
	ParamsFile  = "params.png"
	ScoresFile  = "scores.png"
)

// Plot writes the runtime, speed-up and efficiency charts side by side to
// ScalingFile in dir.  Without a single worker baseline only the runtime is
// drawn.
func Plot(summary []Scaling, dir string) (string, error) {
	if len(summary) == 0 {
		return "", ErrNoRows
	}

	series := []struct {
		title, ylabel string
		y             func(Scaling) float64
	}{
		{"Runtime", "time (s)", func(s Scaling) float64 { return s.Mean }},
		{"Speed-up", "speed-up", func(s Scaling) float64 { return s.SpeedUp }},
		{"Efficiency", "efficiency", func(s Scaling) float64 { return s.Efficiency }},
	}
	if math.IsNaN(summary[0].SpeedUp) {
		series = series[:1]
	}

	row := make([]*plot.Plot, len(series))
	for i, ser := range series {
		p := plot.New()
		p.Title.Text = ser.title
		p.X.Label.Text = "workers"
		p.Y.Label.Text = ser.ylabel
		p.Add(plotter.NewGrid())

		pts := make(plotter.XYs, len(summary))
		for j, s := range summary {
			pts[j].X = float64(s.Workers)
			pts[j].Y = ser.y(s)
		}
		if err := plotutil.AddLinePoints(p, pts); err != nil {
			return "", err
		}
		row[i] = p
	}

	path := filepath.Join(dir, ScalingFile)
	return path, save([][]*plot.Plot{row}, 16*vg.Inch, 5*vg.Inch, path)
}

// PlotParams writes a bar chart of every hyperparameter tally in p to
// ParamsFile in dir.
func PlotParams(p Params, dir string) (string, error) {
	if p.N == 0 {
		return "", ErrNoRows
	}

	tallies := p.Tallies()
	plots := [][]*plot.Plot{make([]*plot.Plot, 2), make([]*plot.Plot, 2)}
	for i, t := range tallies {
		pl := plot.New()
		pl.Title.Text = fmt.Sprintf("Frequency of %v", t.Name)
		pl.X.Label.Text = t.Name
		pl.Y.Label.Text = "frequency"

		bars, err := plotter.NewBarChart(plotter.Values(t.Counts), vg.Points(20))
		if err != nil {
			return "", err
		}
		bars.Color = plotutil.Color(i)
		pl.Add(bars)

		names := make([]string, len(t.Values))
		for j, v := range t.Values {
			names[j] = fmt.Sprint(v)
		}
		pl.NominalX(names...)
		plots[i/2][i%2] = pl
	}

	path := filepath.Join(dir, ParamsFile)
	return path, save(plots, 12*vg.Inch, 8*vg.Inch, path)
}

// PlotScores writes a scatter of the best score of every run against its
// worker count to ScoresFile in dir, with the known optimum drawn as a dashed
// reference line.  Runs without a feasible result are left out.
func PlotScores(rows []record.Row, optimum float64, dir string) (string, error) {
	var pts plotter.XYs
	for _, r := range rows {
		if math.IsInf(r.Score, 0) || math.IsNaN(r.Score) {
			continue
		}
		pts = append(pts, plotter.XY{X: float64(r.Workers), Y: r.Score})
	}
	if len(pts) == 0 {
		return "", ErrNoRows
	}

	p := plot.New()
	p.Title.Text = "Best score by worker count"
	p.X.Label.Text = "workers"
	p.Y.Label.Text = "f(x)"
	p.Add(plotter.NewGrid())

	sc, err := plotter.NewScatter(pts)
	if err != nil {
		return "", err
	}
	sc.GlyphStyle.Color = plotutil.Color(0)
	sc.GlyphStyle.Shape = draw.CircleGlyph{}

	xmin, xmax, _, _ := plotter.XYRange(pts)
	opt, err := plotter.NewLine(plotter.XYs{{X: xmin - 0.5, Y: optimum}, {X: xmax + 0.5, Y: optimum}})
	if err != nil {
		return "", err
	}
	opt.LineStyle.Color = plotutil.Color(1)
	opt.LineStyle.Dashes = []vg.Length{vg.Points(5), vg.Points(5)}

	p.Add(sc, opt)
	p.Legend.Add("best score", sc)
	p.Legend.Add(fmt.Sprintf("optimum (%g)", optimum), opt)

	path := filepath.Join(dir, ScoresFile)
	return path, save([][]*plot.Plot{{p}}, 10*vg.Inch, 6*vg.Inch, path)
}

// save tiles plots into a single PNG image.
func save(plots [][]*plot.Plot, w, h vg.Length, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	img := vgimg.New(w, h)
	dc := draw.New(img)
	tiles := draw.Tiles{
		Rows:      len(plots),
		Cols:      len(plots[0]),
		PadX:      vg.Millimeter * 4,
		PadY:      vg.Millimeter * 4,
		PadTop:    vg.Millimeter * 2,
		PadBottom: vg.Millimeter * 2,
		PadLeft:   vg.Millimeter * 2,
		PadRight:  vg.Millimeter * 2,
	}

	canvases := plot.Align(plots, tiles, dc)
	for j := range plots {
		for i := range plots[j] {
			plots[j][i].Draw(canvases[j][i])
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	png := vgimg.PngCanvas{Canvas: img}
	if _, err := png.WriteTo(f); err != nil {
		return err
	}
	return f.Close()
}
