/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Wires the four /vss endpoints, plus the /vss/testSentry diagnostic
  route, to a chi router with the Request Dispatcher's middleware stack:
  request-ID injection, panic recovery, structured access logging, and
  (when enabled) an OpenTelemetry span wrap. Unknown paths fall through
  to a 400 plain-text body, matching the dispatcher's "pre-routing"
  error policy.

MIDDLEWARE STACK:
  1. RequestID: unique ID per request, used in access log lines
  2. Recoverer: panic recovery (500 instead of a crash)
  3. Access log: one structured line per request via the process logger

SEE ALSO:
  - handlers.go: handler implementations
  - cmd/vssd/main.go: process startup, where tracing.Wrap is applied
*/
package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/warp/vss/internal/errreport"
	"github.com/warp/vss/internal/metrics"
)

// NewRouter builds the chi router serving h's four endpoints under /vss.
func NewRouter(h *Handler, logger zerolog.Logger) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(accessLog(logger))

	r.Route("/vss", func(r chi.Router) {
		r.Post("/getObject", h.GetObject)
		r.Post("/putObjects", h.PutObjects)
		r.Post("/deleteObject", h.DeleteObject)
		r.Post("/listKeyVersions", h.ListKeyVersions)
		r.HandleFunc("/testSentry", testSentry)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		errreport.Warningf("Invalid request path: %s", r.URL.Path)
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte("Unknown path"))
	})

	return r
}

// testSentry sends a test error and a test message so an operator can
// confirm events reach their Sentry project after wiring up a DSN.
func testSentry(w http.ResponseWriter, r *http.Request) {
	errreport.CaptureError(errors.New("Test error from /vss/testSentry endpoint"))
	errreport.Warningf("Test message from /vss/testSentry endpoint")

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("Sentry test events sent. Check your Sentry dashboard."))
}

// accessLog logs one structured line per request: method, path, status,
// duration, and the chi request ID.
func accessLog(logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			elapsed := time.Since(start)

			logger.Info().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.Status()).
				Dur("duration", elapsed).
				Str("request_id", middleware.GetReqID(r.Context())).
				Msg("request handled")

			metrics.RequestsTotal.WithLabelValues(r.URL.Path, strconv.Itoa(ww.Status())).Inc()
			metrics.RequestDuration.WithLabelValues(r.URL.Path).Observe(elapsed.Seconds())
		})
	}
}
