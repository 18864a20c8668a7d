package source

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/prometheus/client_golang/api"
	v1 "github.com/prometheus/client_golang/api/prometheus/v1"
	"github.com/prometheus/common/model"

	"github.com/pixelcast-dev/pixelcast/pkg/frame"
)

// queryAPI is the slice of the Prometheus v1 API this source needs.
type queryAPI interface {
	Query(ctx context.Context, query string, ts time.Time, opts ...v1.Option) (model.Value, v1.Warnings, error)
}

// PrometheusSource renders an instant-vector query as a bar dashboard, one
// row per series labeled by the configured label. Values are normalized
// against the largest sample in the result.
type PrometheusSource struct {
	w, h  int
	api   queryAPI
	query string
	label model.LabelName
}

// NewPrometheus creates a dashboard source querying the server at url.
// label selects which series label captions each row; empty means the
// metric name.
func NewPrometheus(w, h int, url, query, label string) (*PrometheusSource, error) {
	if url == "" || query == "" {
		return nil, fmt.Errorf("source: prometheus needs url and query")
	}
	client, err := api.NewClient(api.Config{Address: url})
	if err != nil {
		return nil, fmt.Errorf("source: prometheus client: %w", err)
	}
	return newPrometheusWithAPI(w, h, v1.NewAPI(client), query, label), nil
}

func newPrometheusWithAPI(w, h int, api queryAPI, query, label string) *PrometheusSource {
	if label == "" {
		label = string(model.MetricNameLabel)
	}
	return &PrometheusSource{w: w, h: h, api: api, query: query, label: model.LabelName(label)}
}

// NextFrame runs the query and draws the result.
func (s *PrometheusSource) NextFrame(ctx context.Context) (*frame.Frame, error) {
	result, _, err := s.api.Query(ctx, s.query, time.Now())
	if err != nil {
		return nil, fmt.Errorf("source: prometheus query: %w", err)
	}
	vec, ok := result.(model.Vector)
	if !ok {
		return nil, fmt.Errorf("source: query returned %s, want instant vector", result.Type())
	}

	type row struct {
		name  string
		value float64
	}
	rows := make([]row, 0, len(vec))
	maxVal := 0.0
	for _, sample := range vec {
		v := float64(sample.Value)
		rows = append(rows, row{name: string(sample.Metric[s.label]), value: v})
		if v > maxVal {
			maxVal = v
		}
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].name < rows[j].name })

	f := frame.New(s.w, s.h)
	Fill(f, 0, 0, 0)
	DrawText(f, 2, 2, s.query, 1, 255, 255, 255)

	top := GlyphHeight + 6
	rowH := GlyphHeight + 4
	for i, r := range rows {
		y := top + i*rowH
		if y+rowH > s.h {
			break
		}
		DrawText(f, 2, y, r.name, 1, 170, 170, 170)
		labelW := s.w / 3
		barW := 0
		if maxVal > 0 {
			barW = int(r.value / maxVal * float64(s.w-labelW-2))
		}
		FillRect(f, labelW, y, barW, GlyphHeight, 80, 160, 255)
	}

	return f, nil
}
