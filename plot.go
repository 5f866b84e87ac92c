package main

import (
	"image/color"
	"sort"

	"github.com/cockroachdb/errors"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

var seriesColors = []color.RGBA{
	{R: 66, G: 133, B: 244, A: 255},
	{R: 219, G: 68, B: 55, A: 255},
	{R: 244, G: 180, B: 0, A: 255},
	{R: 15, G: 157, B: 88, A: 255},
	{R: 171, G: 71, B: 188, A: 255},
	{R: 0, G: 172, B: 193, A: 255},
}

// PlotLatency renders a grouped bar chart of per-operation latency: one group
// per operation, one bar per structure/config pair.
func PlotLatency(results []BenchResult, filename string) error {
	if len(results) == 0 {
		return errors.New("plot: no results")
	}

	var ops, series []string
	seenOp, seenSeries := map[string]bool{}, map[string]bool{}
	latency := map[string]map[string]float64{}
	for _, r := range results {
		s := r.Name + " " + r.Config
		if !seenOp[r.Operation] {
			seenOp[r.Operation] = true
			ops = append(ops, r.Operation)
		}
		if !seenSeries[s] {
			seenSeries[s] = true
			series = append(series, s)
			latency[s] = map[string]float64{}
		}
		latency[s][r.Operation] = float64(r.LatencyNs) / 1000
	}
	sort.Strings(series)

	p := plot.New()
	p.Title.Text = "Latency per operation"
	p.Y.Label.Text = "µs/op"
	p.Legend.Top = true

	width := vg.Points(12)
	for i, s := range series {
		vals := make(plotter.Values, len(ops))
		for j, op := range ops {
			vals[j] = latency[s][op]
		}
		bars, err := plotter.NewBarChart(vals, width)
		if err != nil {
			return errors.Wrapf(err, "plot: bars for %s", s)
		}
		bars.LineStyle.Width = vg.Length(0)
		bars.Color = seriesColors[i%len(seriesColors)]
		bars.Offset = vg.Length(i-len(series)/2) * width
		p.Add(bars)
		p.Legend.Add(s, bars)
	}
	p.NominalX(ops...)
	p.Add(plotter.NewGrid())

	return errors.Wrapf(p.Save(12*vg.Inch, 6*vg.Inch, filename), "plot: save %s", filename)
}
