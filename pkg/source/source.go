// Package source provides the frame generators that feed pipelines: a
// BIOS-style status screen, a per-core CPU monitor, a Prometheus dashboard
// and an animated test pattern. All of them satisfy pipeline.Source.
package source

import (
	"context"
	"fmt"

	"github.com/pixelcast-dev/pixelcast/pkg/frame"
)

// Source produces frames on demand. It mirrors pipeline.Source so this
// package does not depend on the pipeline.
type Source interface {
	NextFrame(ctx context.Context) (*frame.Frame, error)
}

// Build constructs a source by kind name for config-driven wiring. Known
// kinds: bios, cpu, prometheus, pattern. opts carries kind-specific keys
// (bios: title; prometheus: url, query, label).
func Build(kind string, w, h int, opts map[string]string) (Source, error) {
	switch kind {
	case "bios":
		return NewBIOS(w, h, opts["title"]), nil
	case "cpu":
		return NewCPU(w, h)
	case "prometheus":
		return NewPrometheus(w, h, opts["url"], opts["query"], opts["label"])
	case "pattern":
		return NewTestPattern(w, h), nil
	default:
		return nil, fmt.Errorf("source: unknown kind %q", kind)
	}
}
