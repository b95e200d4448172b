package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/LJAM96/lmsilo-core/internal/circuitbreaker"
	"github.com/LJAM96/lmsilo-core/internal/metrics"
	"github.com/LJAM96/lmsilo-core/internal/upstream"
)

// Guard proxies requests to one upstream through its circuit breaker.
// While the circuit is open, requests are answered directly with
// 503 Service Unavailable and a Retry-After header instead of reaching
// the upstream.
type Guard struct {
	logger    *slog.Logger
	upstream  *upstream.Upstream
	breaker   *circuitbreaker.CircuitBreaker
	collector *metrics.Collector
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func NewGuard(logger *slog.Logger, up *upstream.Upstream, breaker *circuitbreaker.CircuitBreaker, collector *metrics.Collector) *Guard {
	return &Guard{
		logger:    logger,
		upstream:  up,
		breaker:   breaker,
		collector: collector,
	}
}

// Name returns the name of the guarded circuit.
func (g *Guard) Name() string {
	return g.breaker.Name()
}

func (g *Guard) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	clientIP := extractClientIP(r)

	done, err := g.breaker.Allow()
	if err != nil {
		g.logger.Warn("Rejecting request, circuit open",
			slog.String("circuit", g.breaker.Name()),
			slog.String("client", clientIP),
			slog.String("path", r.URL.Path))
		g.emitRejected()
		writeCircuitOpen(w, err)
		return
	}

	g.logger.Info("Forwarding to upstream",
		slog.String("circuit", g.breaker.Name()),
		slog.String("client", clientIP),
		slog.String("upstream", g.upstream.URL().String()))

	w.Header().Set("X-Circuit", g.breaker.Name())

	start := time.Now()
	wrapped := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}
	g.upstream.ReverseProxy().ServeHTTP(wrapped, r)
	duration := time.Since(start)

	// A 5xx from the upstream counts as a qualifying failure; anything
	// else, including 4xx domain errors, leaves the circuit alone.
	if wrapped.statusCode >= http.StatusInternalServerError {
		done(fmt.Errorf("upstream %s returned status %d", g.upstream.Name(), wrapped.statusCode))
	} else {
		done(nil)
	}

	g.logger.Info("Upstream response",
		slog.String("circuit", g.breaker.Name()),
		slog.Int("status", wrapped.statusCode),
		slog.Duration("duration", duration))
}

func (g *Guard) emitRejected() {
	if g.collector == nil {
		return
	}

	g.collector.Emit(metrics.Event{
		Type:      metrics.EventCallRejected,
		Timestamp: time.Now(),
		Circuit:   g.breaker.Name(),
	})
}

func writeCircuitOpen(w http.ResponseWriter, err error) {
	var openErr *circuitbreaker.OpenError
	if !errors.As(err, &openErr) {
		http.Error(w, "service temporarily unavailable", http.StatusServiceUnavailable)
		return
	}

	retryAfter := int(math.Ceil(openErr.RetryAfter.Seconds()))
	if retryAfter < 0 {
		retryAfter = 0
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
	w.WriteHeader(http.StatusServiceUnavailable)

	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"error":               "service temporarily unavailable",
		"circuit":             openErr.CircuitName,
		"retry_after_seconds": retryAfter,
	})
}

func extractClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		return strings.TrimSpace(strings.Split(xff, ",")[0])
	}

	host, _, _ := net.SplitHostPort(r.RemoteAddr)
	return host
}

func (r *statusRecorder) WriteHeader(code int) {
	r.statusCode = code
	r.ResponseWriter.WriteHeader(code)
}
