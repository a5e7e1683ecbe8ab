// Package server exposes the connector over HTTP: one streamed entity set
// per GET, plus health and metrics endpoints.
package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/odatakit/odata-source/internal/config"
	"github.com/odatakit/odata-source/pkg/fetcher"
	"github.com/odatakit/odata-source/pkg/query"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Handler serves entity set requests by driving the fetcher against the
// configured upstream service.
type Handler struct {
	fetcher       *fetcher.Fetcher
	baseURL       string
	sinceProperty string
	updatedMode   fetcher.Mode
	logger        zerolog.Logger
}

// NewHandler creates the entity set handler.
func NewHandler(f *fetcher.Fetcher, cfg config.Config) *Handler {
	return &Handler{
		fetcher:       f,
		baseURL:       cfg.ServiceURL,
		sinceProperty: cfg.SinceProperty,
		updatedMode:   cfg.UpdatedMode,
		logger:        log.With().Str("component", "server").Logger(),
	}
}

// NewRouter builds the chi router with cors, request logging, health and
// metrics endpoints, and the catch-all entity set route.
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()

	r.Use(cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowCredentials: true,
	}).Handler)

	r.Use(requestLogger(h.logger))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/*", h.ServeEntitySet)

	return r
}

// ServeEntitySet streams one entity set as a JSON array. The opening bracket
// is flushed before the first upstream call completes, so an upstream error
// surfaces as a truncated body rather than an error status.
func (h *Handler) ServeEntitySet(w http.ResponseWriter, r *http.Request) {
	entitySet := strings.Trim(r.URL.Path, "/")
	if entitySet == "" {
		http.NotFound(w, r)
		return
	}

	params := r.URL.Query()
	sinceEnabled := params.Get(query.ParamSince) != ""
	sinceProperty := params.Get(query.ParamSinceProperty)
	if sinceProperty == "" {
		sinceProperty = h.sinceProperty
	}

	initialURL := query.BuildURL(h.baseURL, entitySet, params, query.Filter{
		Property: sinceProperty,
		Value:    params.Get(query.ParamSince),
		Enabled:  sinceEnabled,
	})

	h.logger.Info().
		Str("entity_set", entitySet).
		Bool("since_enabled", sinceEnabled).
		Msg("Serving entity set")

	w.Header().Set("Content-Type", "application/json")

	opts := fetcher.Options{
		SinceEnabled:  sinceEnabled,
		SinceProperty: sinceProperty,
		UpdatedMode:   h.updatedMode,
	}

	if err := h.fetcher.Stream(r.Context(), newFlushWriter(w), initialURL, opts); err != nil {
		// Output was already streaming; nothing clean can be sent anymore.
		h.logger.Error().Err(err).Str("entity_set", entitySet).Msg("Stream aborted")
	}
}

// requestLogger logs one line per completed request.
func requestLogger(logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			next.ServeHTTP(w, r)
			logger.Debug().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Dur("duration", time.Since(start)).
				Msg("Request handled")
		})
	}
}

// flushWriter pushes every chunk to the client immediately so streaming
// starts before the full result set exists.
type flushWriter struct {
	w       http.ResponseWriter
	flusher http.Flusher
}

func newFlushWriter(w http.ResponseWriter) *flushWriter {
	flusher, _ := w.(http.Flusher)
	return &flushWriter{w: w, flusher: flusher}
}

func (fw *flushWriter) Write(p []byte) (int, error) {
	n, err := fw.w.Write(p)
	if fw.flusher != nil {
		fw.flusher.Flush()
	}
	return n, err
}
