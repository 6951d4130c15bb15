// Package report renders diagnostics for a fit run: an HTML page of missing
// value counts and fitted category shares, per-column summary statistics, and
// histogram PNGs of the continuous columns.
package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/banshee-data/casualty.report/internal/fsutil"
	"github.com/banshee-data/casualty.report/internal/impute"
	"github.com/banshee-data/casualty.report/internal/monitoring"
	"github.com/banshee-data/casualty.report/internal/schema"
	"github.com/banshee-data/casualty.report/internal/table"
)

// histogramBins is the bin count for every continuous histogram.
const histogramBins = 20

// WriteHTML renders a page with one bar chart of per-column missing counts
// and one bar chart per fitted categorical distribution.
func WriteHTML(w io.Writer, model *impute.Model, missing map[string]int) error {
	page := components.NewPage()
	page.PageTitle = "Casualty preprocessing report"
	page.AddCharts(missingChart(missing))

	if model != nil {
		cols := make([]string, 0, len(model.Categorical))
		for c := range model.Categorical {
			cols = append(cols, c)
		}
		sort.Strings(cols)
		for _, c := range cols {
			if len(model.Categorical[c]) == 0 {
				continue
			}
			page.AddCharts(distributionChart(c, model.Categorical[c]))
		}
	}

	if err := page.Render(w); err != nil {
		return fmt.Errorf("render report: %w", err)
	}
	return nil
}

func missingChart(missing map[string]int) *charts.Bar {
	cols := make([]string, 0, len(missing))
	total := 0
	for c, n := range missing {
		cols = append(cols, c)
		total += n
	}
	sort.Strings(cols)
	y := make([]opts.BarData, len(cols))
	for i, c := range cols {
		y[i] = opts.BarData{Value: missing[c]}
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "100%", Height: "480px"}),
		charts.WithTitleOpts(opts.Title{Title: "Missing values before imputation", Subtitle: fmt.Sprintf("%d cells across %d columns", total, len(cols))}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{AxisLabel: &opts.AxisLabel{Rotate: 45, Interval: "0"}}),
	)
	bar.SetXAxis(cols).
		AddSeries("missing", y,
			charts.WithLabelOpts(opts.Label{Show: opts.Bool(true), Position: "top"}),
		)
	return bar
}

func distributionChart(col string, d impute.Distribution) *charts.Bar {
	cats := make([]string, 0, len(d))
	for k := range d {
		cats = append(cats, k)
	}
	sort.Strings(cats)
	y := make([]opts.BarData, len(cats))
	for i, k := range cats {
		y[i] = opts.BarData{Value: d[k]}
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "100%", Height: "360px"}),
		charts.WithTitleOpts(opts.Title{Title: col, Subtitle: fmt.Sprintf("%d categories", len(cats))}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
	)
	bar.SetXAxis(cats).AddSeries("share", y)
	return bar
}

// Summary holds descriptive statistics of one continuous column.
type Summary struct {
	Column string
	N      int
	Mean   float64
	StdDev float64
	Min    float64
	Max    float64
}

// Summarize computes a Summary for each present column in cols, skipping
// missing and unparseable cells. Columns with no numeric cells are omitted.
func Summarize(t *table.Table, cols []string) []Summary {
	var out []Summary
	for _, col := range cols {
		xs := numeric(t, col)
		if len(xs) == 0 {
			continue
		}
		s := Summary{Column: col, N: len(xs), Min: floats.Min(xs), Max: floats.Max(xs)}
		if len(xs) > 1 {
			s.Mean, s.StdDev = stat.MeanStdDev(xs, nil)
		} else {
			s.Mean = xs[0]
		}
		out = append(out, s)
	}
	return out
}

// WriteSummaryCSV writes one row per summary.
func WriteSummaryCSV(w io.Writer, summaries []Summary) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"column", "n", "mean", "std_dev", "min", "max"}); err != nil {
		return err
	}
	for _, s := range summaries {
		row := []string{
			s.Column,
			strconv.Itoa(s.N),
			strconv.FormatFloat(s.Mean, 'f', 4, 64),
			strconv.FormatFloat(s.StdDev, 'f', 4, 64),
			strconv.FormatFloat(s.Min, 'f', 4, 64),
			strconv.FormatFloat(s.Max, 'f', 4, 64),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// SaveHistograms writes <dir>/hist_<column>.png for each present column with
// numeric values and returns the paths written.
func SaveHistograms(fsys fsutil.FileSystem, dir string, t *table.Table, cols []string) ([]string, error) {
	if err := fsys.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create report dir: %w", err)
	}
	var written []string
	for _, col := range cols {
		xs := numeric(t, col)
		if len(xs) == 0 {
			continue
		}
		path := filepath.Join(dir, "hist_"+sanitize(col)+".png")
		if err := saveHistogram(fsys, path, col, xs); err != nil {
			return written, fmt.Errorf("histogram %s: %w", col, err)
		}
		written = append(written, path)
	}
	monitoring.Logf("report: wrote %d histograms to %s", len(written), dir)
	return written, nil
}

func saveHistogram(fsys fsutil.FileSystem, path, col string, xs []float64) error {
	p := plot.New()
	p.Title.Text = col
	p.X.Label.Text = col
	p.Y.Label.Text = "Count"

	bins := histogramBins
	if floats.Min(xs) == floats.Max(xs) {
		bins = 1
	}
	h, err := plotter.NewHist(plotter.Values(xs), bins)
	if err != nil {
		return err
	}
	p.Add(h)

	wt, err := p.WriterTo(8*vg.Inch, 5*vg.Inch, "png")
	if err != nil {
		return err
	}
	f, err := fsys.Create(path)
	if err != nil {
		return err
	}
	if _, err := wt.WriteTo(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func numeric(t *table.Table, col string) []float64 {
	if !t.Has(col) {
		return nil
	}
	var xs []float64
	for _, v := range t.Column(col) {
		if schema.IsMissing(v) {
			continue
		}
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			continue
		}
		xs = append(xs, f)
	}
	return xs
}

func sanitize(col string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-':
			return r
		default:
			return '_'
		}
	}, col)
}
