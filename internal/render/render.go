// Package render turns chart data payloads into SVG and PNG images.
package render

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"

	"github.com/palikaprofile/chartcache/internal/fingerprint"
	"github.com/palikaprofile/chartcache/internal/models"
	"github.com/sirupsen/logrus"
	"github.com/vicanso/go-charts/v2"
)

// Request carries everything a renderer needs for one chart.
type Request struct {
	Kind   string
	Data   fingerprint.ChartData
	Title  string
	Width  int
	Height int
}

// Func produces chart image bytes for a request. SVG is mandatory on
// success; PNG is a best-effort secondary output and may be nil.
type Func func(ctx context.Context, req Request) (svg []byte, png []byte, err error)

const (
	defaultWidth  = 800
	defaultHeight = 600
)

// ChartRenderer is the default Func implementation, built on go-charts.
type ChartRenderer struct {
	log *logrus.Entry
}

func NewChartRenderer(logger *logrus.Logger) *ChartRenderer {
	return &ChartRenderer{log: logger.WithField("component", "chart_renderer")}
}

// Render renders the SVG and then re-renders as PNG. A PNG failure is
// logged and dropped; SVG alone is a valid result.
func (r *ChartRenderer) Render(ctx context.Context, req Request) ([]byte, []byte, error) {
	svg, err := r.renderOne(req, charts.SVGTypeOption())
	if err != nil {
		return nil, nil, err
	}

	png, err := r.renderOne(req, charts.PNGTypeOption())
	if err != nil {
		r.log.WithFields(logrus.Fields{"kind": req.Kind, "error": err}).Warn("PNG rendering failed")
		png = nil
	}

	return svg, png, nil
}

func (r *ChartRenderer) renderOne(req Request, output charts.OptionFunc) ([]byte, error) {
	labels, seriesNames, series, err := tabulate(req.Data)
	if err != nil {
		return nil, err
	}

	width := req.Width
	if width <= 0 {
		width = defaultWidth
	}
	height := req.Height
	if height <= 0 {
		height = defaultHeight
	}

	opts := []charts.OptionFunc{
		output,
		charts.TitleTextOptionFunc(req.Title),
		charts.ThemeOptionFunc(charts.ThemeLight),
		charts.WidthOptionFunc(width),
		charts.HeightOptionFunc(height),
	}

	var p *charts.Painter
	switch req.Kind {
	case models.KindPie:
		if len(series) != 1 {
			return nil, errors.New("pie charts require a flat numeric payload")
		}
		opts = append(opts, charts.LegendOptionFunc(charts.LegendOption{
			Data: labels,
			Top:  charts.PositionTop,
		}))
		p, err = charts.PieRender(series[0], opts...)
	case models.KindBar:
		opts = append(opts,
			charts.XAxisDataOptionFunc(labels),
			charts.LegendOptionFunc(charts.LegendOption{Data: seriesNames, Top: charts.PositionTop}),
		)
		p, err = charts.BarRender(series, opts...)
	case models.KindHorizontalBar:
		opts = append(opts,
			charts.YAxisDataOptionFunc(labels),
			charts.LegendOptionFunc(charts.LegendOption{Data: seriesNames, Top: charts.PositionTop}),
		)
		p, err = charts.HorizontalBarRender(series, opts...)
	case models.KindLine:
		opts = append(opts,
			charts.XAxisDataOptionFunc(labels),
			charts.LegendOptionFunc(charts.LegendOption{Data: seriesNames, Top: charts.PositionTop}),
		)
		p, err = charts.LineRender(series, opts...)
	default:
		return nil, fmt.Errorf("unsupported chart kind %q", req.Kind)
	}
	if err != nil {
		return nil, err
	}

	return p.Bytes()
}

// tabulate flattens a payload into axis labels, series names and series
// values with a deterministic order (sorted keys). Flat numeric maps become
// one series; maps of maps become one series per outer key over the sorted
// union of inner keys, with missing points filled as zero.
func tabulate(data fingerprint.ChartData) ([]string, []string, [][]float64, error) {
	if len(data) == 0 {
		return nil, nil, nil, errors.New("empty chart data")
	}

	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	if _, nested := data[keys[0]].(map[string]any); !nested {
		values := make([]float64, 0, len(keys))
		for _, k := range keys {
			v, ok := toFloat(data[k])
			if !ok {
				return nil, nil, nil, fmt.Errorf("value for %q is not numeric", k)
			}
			values = append(values, v)
		}
		return keys, []string{"value"}, [][]float64{values}, nil
	}

	labelSet := map[string]bool{}
	for _, k := range keys {
		inner, ok := data[k].(map[string]any)
		if !ok {
			return nil, nil, nil, fmt.Errorf("value for %q is not a nested map", k)
		}
		for label := range inner {
			labelSet[label] = true
		}
	}
	labels := make([]string, 0, len(labelSet))
	for label := range labelSet {
		labels = append(labels, label)
	}
	sort.Strings(labels)

	series := make([][]float64, 0, len(keys))
	for _, k := range keys {
		inner := data[k].(map[string]any)
		row := make([]float64, len(labels))
		for i, label := range labels {
			if raw, ok := inner[label]; ok {
				v, numeric := toFloat(raw)
				if !numeric {
					return nil, nil, nil, fmt.Errorf("value for %q.%q is not numeric", k, label)
				}
				row[i] = v
			}
		}
		series = append(series, row)
	}
	return labels, keys, series, nil
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint64:
		return float64(n), true
	case string:
		if f, err := strconv.ParseFloat(n, 64); err == nil {
			return f, true
		}
	}
	return 0, false
}
