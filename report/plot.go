// Package report renders run summaries as charts.
package report

import (
	"fmt"
	"image/color"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/habitatlab/sdmgo/pipeline"
	"github.com/habitatlab/sdmgo/pkg/errors"
)

var barPalette = []color.Color{
	color.RGBA{R: 68, G: 119, B: 170, A: 255},
	color.RGBA{R: 238, G: 102, B: 119, A: 255},
	color.RGBA{R: 34, G: 136, B: 51, A: 255},
	color.RGBA{R: 204, G: 187, B: 68, A: 255},
	color.RGBA{R: 102, G: 204, B: 238, A: 255},
}

// SaveMetricsChart renders a grouped bar chart of per-iteration metric
// values, one bar group per iteration and one color per metric key, and
// writes it to path (format inferred from the extension, e.g. .png).
func SaveMetricsChart(path string, keys []string, results []*pipeline.IterationResult) error {
	if len(results) == 0 {
		return errors.Wrap(errors.ErrEmptyData, "SaveMetricsChart")
	}

	p := plot.New()
	p.Title.Text = "Evaluation metrics by iteration"
	p.X.Label.Text = "iteration"
	p.Y.Label.Text = "value"
	p.Legend.Top = true

	groupWidth := vg.Points(60)
	barWidth := groupWidth / vg.Length(len(keys))

	for ki, key := range keys {
		vals := make(plotter.Values, len(results))
		for i, res := range results {
			vals[i] = res.Metrics[key]
		}

		bars, err := plotter.NewBarChart(vals, barWidth)
		if err != nil {
			return errors.Wrap(err, "SaveMetricsChart")
		}
		bars.LineStyle.Width = 0
		bars.Color = barPalette[ki%len(barPalette)]
		bars.Offset = barWidth*vg.Length(ki) - groupWidth/2

		p.Add(bars)
		p.Legend.Add(key, bars)
	}

	labels := make([]string, len(results))
	for i, res := range results {
		labels[i] = fmt.Sprintf("%d", res.Iteration)
	}
	p.NominalX(labels...)

	if err := p.Save(8*vg.Inch, 4*vg.Inch, path); err != nil {
		return errors.Wrap(err, "SaveMetricsChart")
	}
	return nil
}
