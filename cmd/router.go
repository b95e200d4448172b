package main

import (
	"log/slog"
	"net/http"

	"github.com/LJAM96/lmsilo-core/internal/circuitbreaker"
	"github.com/LJAM96/lmsilo-core/internal/handler"
	"github.com/LJAM96/lmsilo-core/internal/metrics"
)

func setupRouter(
	guards []*handler.Guard,
	registry *circuitbreaker.Registry,
	collector *metrics.Collector,
	log *slog.Logger,
) *http.ServeMux {
	mux := http.NewServeMux()

	for _, guard := range guards {
		prefix := "/upstreams/" + guard.Name()
		mux.Handle(prefix+"/", http.StripPrefix(prefix, guard))
	}

	mux.HandleFunc("GET /circuits", handler.StatusHandler(registry))
	mux.HandleFunc("GET /circuits/{name}", handler.CircuitStatusHandler(registry))
	mux.HandleFunc("POST /circuits/{name}/reset", handler.ResetHandler(log, registry))
	mux.HandleFunc("POST /circuits/{name}/force-open", handler.ForceOpenHandler(log, registry))
	mux.HandleFunc("GET /metrics", collector.Handler())

	return mux
}
