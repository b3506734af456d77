package report

import (
	"io"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/Sumatoshi-tech/blockaudit/pkg/audit"
)

const (
	chartWidth  = "100%"
	chartHeight = "600px"
	xAxisRotate = 60
)

// renderPlot writes an HTML page with a bar chart of occurrence and document
// counts per block type, in row order.
func renderPlot(w io.Writer, res audit.Result) error {
	labels := make([]string, 0, len(res.Rows))
	counts := make([]opts.BarData, 0, len(res.Rows))
	posts := make([]opts.BarData, 0, len(res.Rows))

	for _, row := range res.Rows {
		name, _ := row.Get(audit.ColumnName)
		count, _ := row.Get(audit.ColumnCount)
		postCount, _ := row.Get(audit.ColumnPostCount)

		labels = append(labels, cellText(name))
		counts = append(counts, opts.BarData{Value: count})
		posts = append(posts, opts.BarData{Value: postCount})
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{
			PageTitle: "Block audit",
			Width:     chartWidth,
			Height:    chartHeight,
		}),
		charts.WithTitleOpts(opts.Title{Title: "Block usage", Subtitle: "Occurrences and documents per block type"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), Top: "5%"}),
		charts.WithXAxisOpts(opts.XAxis{AxisLabel: &opts.AxisLabel{Rotate: xAxisRotate, Interval: "0"}}),
		charts.WithDataZoomOpts(opts.DataZoom{Type: "slider", Start: 0, End: 100}),
	)
	bar.SetXAxis(labels).
		AddSeries(audit.ColumnCount, counts).
		AddSeries(audit.ColumnPostCount, posts)

	return bar.Render(w)
}
