package main

import (
	"fmt"
	"image/png"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/pixelcast-dev/pixelcast/pkg/archive"
	"github.com/pixelcast-dev/pixelcast/pkg/pipeline"
	"github.com/pixelcast-dev/pixelcast/pkg/preview"
)

// newRouter builds the HTTP side: metrics, health and the per-pipeline
// debug endpoints (live preview over WebSocket, PNG snapshots).
func newRouter(registry *prometheus.Registry, pipes map[string]*pipeline.Pipeline, hubs map[string]*preview.Hub, store *archive.Store) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok\n"))
	})

	r.Get("/debug/preview/{pipeline}", func(w http.ResponseWriter, req *http.Request) {
		hub, ok := hubs[chi.URLParam(req, "pipeline")]
		if !ok {
			http.NotFound(w, req)
			return
		}
		hub.ServeHTTP(w, req)
	})

	r.Get("/debug/snapshot/{pipeline}", func(w http.ResponseWriter, req *http.Request) {
		name := chi.URLParam(req, "pipeline")
		p, ok := pipes[name]
		if !ok {
			http.NotFound(w, req)
			return
		}
		f := p.Snapshot()
		if f == nil {
			http.Error(w, "no frame processed yet", http.StatusServiceUnavailable)
			return
		}

		// ?archive=1 additionally persists the snapshot to S3.
		if req.URL.Query().Get("archive") != "" {
			if store == nil {
				http.Error(w, "archiving not configured", http.StatusConflict)
				return
			}
			key, err := store.Save(req.Context(), name, f)
			if err != nil {
				http.Error(w, err.Error(), http.StatusBadGateway)
				return
			}
			fmt.Fprintf(w, "archived %s\n", key)
			return
		}

		w.Header().Set("Content-Type", "image/png")
		if err := png.Encode(w, f.ToImage()); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	})

	return r
}
