package render

import (
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/palikaprofile/chartcache/internal/fingerprint"
	"github.com/palikaprofile/chartcache/internal/models"
	"github.com/sirupsen/logrus"
)

func newTestRenderer() *ChartRenderer {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return NewChartRenderer(logger)
}

var pngMagic = []byte{0x89, 0x50, 0x4e, 0x47}

func TestRenderPie(t *testing.T) {
	r := newTestRenderer()

	svg, png, err := r.Render(context.Background(), Request{
		Kind:  models.KindPie,
		Data:  fingerprint.ChartData{"hindu": 81.3, "buddhist": 9.0, "islam": 4.4, "kirat": 3.1},
		Title: "Religion distribution",
	})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if !bytes.HasPrefix(bytes.TrimSpace(svg), []byte("<svg")) {
		t.Fatalf("expected SVG output, got %q", svg[:min(len(svg), 20)])
	}
	if png != nil && !bytes.HasPrefix(png, pngMagic) {
		t.Fatalf("PNG output missing signature")
	}
}

func TestRenderBarAndLine(t *testing.T) {
	r := newTestRenderer()

	data := fingerprint.ChartData{
		"male":   map[string]any{"ward_1": 120, "ward_2": 95, "ward_3": 143},
		"female": map[string]any{"ward_1": 131, "ward_2": 88, "ward_3": 150},
	}

	for _, kind := range []string{models.KindBar, models.KindHorizontalBar, models.KindLine} {
		svg, _, err := r.Render(context.Background(), Request{
			Kind:   kind,
			Data:   data,
			Title:  "Population by ward",
			Width:  900,
			Height: 500,
		})
		if err != nil {
			t.Fatalf("render %s: %v", kind, err)
		}
		if !bytes.HasPrefix(bytes.TrimSpace(svg), []byte("<svg")) {
			t.Fatalf("render %s: expected SVG output", kind)
		}
	}
}

func TestRenderUnsupportedKind(t *testing.T) {
	r := newTestRenderer()

	_, _, err := r.Render(context.Background(), Request{
		Kind: "sparkline",
		Data: fingerprint.ChartData{"A": 1},
	})
	if err == nil {
		t.Fatalf("expected error for unsupported kind")
	}
}

func TestRenderEmptyData(t *testing.T) {
	r := newTestRenderer()

	_, _, err := r.Render(context.Background(), Request{
		Kind: models.KindPie,
		Data: fingerprint.ChartData{},
	})
	if err == nil {
		t.Fatalf("expected error for empty data")
	}
}

func TestRenderPieRejectsNestedData(t *testing.T) {
	r := newTestRenderer()

	_, _, err := r.Render(context.Background(), Request{
		Kind: models.KindPie,
		Data: fingerprint.ChartData{"series": map[string]any{"a": 1}},
	})
	if err == nil {
		t.Fatalf("expected error for nested pie data")
	}
}

func TestTabulateDeterministicOrder(t *testing.T) {
	labels, names, series, err := tabulate(fingerprint.ChartData{
		"zebra": 1, "apple": 2, "mango": 3,
	})
	if err != nil {
		t.Fatalf("tabulate: %v", err)
	}
	want := []string{"apple", "mango", "zebra"}
	for i, label := range want {
		if labels[i] != label {
			t.Fatalf("labels not sorted: %v", labels)
		}
	}
	if len(names) != 1 || len(series) != 1 {
		t.Fatalf("expected a single series for a flat payload")
	}
	if series[0][0] != 2 || series[0][1] != 3 || series[0][2] != 1 {
		t.Fatalf("values not aligned with sorted labels: %v", series[0])
	}
}

func TestTabulateFillsMissingPoints(t *testing.T) {
	labels, names, series, err := tabulate(fingerprint.ChartData{
		"male":   map[string]any{"ward_1": 10},
		"female": map[string]any{"ward_2": 20},
	})
	if err != nil {
		t.Fatalf("tabulate: %v", err)
	}
	if len(labels) != 2 || len(names) != 2 {
		t.Fatalf("expected union of labels and both series, got %v %v", labels, names)
	}
	// female sorts before male; ward_1 before ward_2
	if series[0][0] != 0 || series[0][1] != 20 {
		t.Fatalf("missing points not zero-filled: %v", series[0])
	}
	if series[1][0] != 10 || series[1][1] != 0 {
		t.Fatalf("missing points not zero-filled: %v", series[1])
	}
}
