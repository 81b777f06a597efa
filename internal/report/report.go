// Package report renders dataset summaries as static charts.
package report

import (
	"fmt"
	"image/color"
	"sort"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// Series is one set of bars on a distribution chart.
type Series struct {
	Label  string
	Counts map[string]int
}

var palette = []color.Color{
	color.RGBA{R: 31, G: 119, B: 180, A: 255},
	color.RGBA{R: 255, G: 127, B: 14, A: 255},
	color.RGBA{R: 44, G: 160, B: 44, A: 255},
	color.RGBA{R: 214, G: 39, B: 40, A: 255},
}

// PlotClassDistribution writes a grouped bar chart of per-class record
// counts to path. The image format follows the path extension. Classes
// appear in name order across all series; a class missing from a series
// plots as zero.
func PlotClassDistribution(path, title string, series ...Series) error {
	if len(series) == 0 {
		return fmt.Errorf("no series to plot")
	}
	classes := classNames(series)
	if len(classes) == 0 {
		return fmt.Errorf("no classes to plot")
	}

	p := plot.New()
	p.Title.Text = title
	p.Y.Label.Text = "Records"
	p.Y.Min = 0

	width := vg.Points(40 / float64(len(series)))
	for i, s := range series {
		values := make(plotter.Values, len(classes))
		for j, c := range classes {
			values[j] = float64(s.Counts[c])
		}
		bars, err := plotter.NewBarChart(values, width)
		if err != nil {
			return fmt.Errorf("bars for %q: %w", s.Label, err)
		}
		bars.LineStyle.Width = vg.Length(0)
		bars.Color = palette[i%len(palette)]
		bars.Offset = width * vg.Length(float64(i)-float64(len(series)-1)/2)
		p.Add(bars)
		if s.Label != "" {
			p.Legend.Add(s.Label, bars)
		}
	}
	p.NominalX(classes...)
	p.Legend.Top = true
	p.Legend.Left = false
	p.Legend.XOffs = -10
	p.Legend.YOffs = -10

	w := vg.Length(max(6, len(classes))) * vg.Inch
	if err := p.Save(w, 5*vg.Inch, path); err != nil {
		return fmt.Errorf("save class distribution plot: %w", err)
	}
	return nil
}

func classNames(series []Series) []string {
	seen := make(map[string]bool)
	var names []string
	for _, s := range series {
		for c := range s.Counts {
			if !seen[c] {
				seen[c] = true
				names = append(names, c)
			}
		}
	}
	sort.Strings(names)
	return names
}
