package httpapi

import (
	"fmt"
	"io"
	"sort"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/i474232898/ecovision/internal/orchestrator"
)

// renderSeriesChart writes an HTML line chart of the series slot, one line
// per location and metric, dates on the x axis.
func renderSeriesChart(w io.Writer, v orchestrator.View) error {
	type key struct {
		location string
		metric   string
	}

	dateSet := make(map[string]struct{})
	values := make(map[key]map[string]float64)
	var keys []key

	for _, obs := range v.Series {
		loc := obs.LocationName
		if loc == "" {
			loc = fmt.Sprintf("location %d", obs.LocationID)
		}
		k := key{location: loc, metric: obs.Metric}
		if _, ok := values[k]; !ok {
			values[k] = make(map[string]float64)
			keys = append(keys, k)
		}
		value := obs.Value
		if obs.WeightedValue != nil {
			value = *obs.WeightedValue
		}
		values[k][obs.Date] = value
		dateSet[obs.Date] = struct{}{}
	}

	dates := make([]string, 0, len(dateSet))
	for d := range dateSet {
		dates = append(dates, d)
	}
	sort.Strings(dates)

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{
			Title:    "Climate observations",
			Subtitle: fmt.Sprintf("%s analysis, %d records", v.Filters.AnalysisType, len(v.Series)),
		}),
	)
	line.SetXAxis(dates)

	for _, k := range keys {
		data := make([]opts.LineData, 0, len(dates))
		for _, d := range dates {
			if val, ok := values[k][d]; ok {
				data = append(data, opts.LineData{Value: val})
			} else {
				data = append(data, opts.LineData{Value: nil})
			}
		}
		line.AddSeries(fmt.Sprintf("%s %s", k.location, k.metric), data)
	}

	return line.Render(w)
}
