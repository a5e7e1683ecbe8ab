// Package fetcher drives the page-by-page fetch loop against an upstream
// OData service and streams normalized entities as one JSON array.
package fetcher

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/odatakit/odata-source/pkg/auth"
	"github.com/odatakit/odata-source/pkg/odata"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Prometheus metrics for the fetch loop.
var (
	pagesFetchedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "odata_pages_fetched_total",
		Help: "Total upstream pages fetched",
	})

	entitiesEmittedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "odata_entities_emitted_total",
		Help: "Total entities emitted to clients",
	})

	pageRequestDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "odata_page_request_duration_seconds",
		Help:    "Upstream page GET duration in seconds",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
	})

	streamsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "odata_streams_total",
		Help: "Completed streams by outcome",
	}, []string{"outcome"})
)

// Mode selects what value the _updated field carries when the since filter
// is active.
type Mode string

const (
	// UpdatedGenerated stamps the local wall-clock time at emission.
	UpdatedGenerated Mode = "generated"

	// UpdatedSource copies the record's own since-property value.
	UpdatedSource Mode = "source"
)

// timestampFormat is the civil layout used for generated _updated stamps.
const timestampFormat = "2006-01-02T15:04:05"

// DefaultMaxPages bounds the cursor loop against a misbehaving upstream that
// keeps returning next links. Generous; a legitimate result set should never
// get close.
const DefaultMaxPages = 10000

// Options parameterize one stream.
type Options struct {
	SinceEnabled  bool
	SinceProperty string
	UpdatedMode   Mode
}

// Config holds fetcher construction parameters.
type Config struct {
	// HTTPClient performs the page GETs. Defaults to http.DefaultClient
	// so the transport's own timeout policy applies.
	HTTPClient *http.Client

	// MaxPages caps the number of pages followed per stream.
	// Defaults to DefaultMaxPages.
	MaxPages int
}

// Fetcher streams entity sets. Safe for concurrent use; each Stream call
// owns its own loop state.
type Fetcher struct {
	httpClient *http.Client
	auth       auth.Provider
	maxPages   int
	logger     zerolog.Logger
	now        func() time.Time
}

// New creates a fetcher using the given credential provider.
func New(provider auth.Provider, cfg Config) *Fetcher {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	maxPages := cfg.MaxPages
	if maxPages <= 0 {
		maxPages = DefaultMaxPages
	}

	return &Fetcher{
		httpClient: httpClient,
		auth:       provider,
		maxPages:   maxPages,
		logger:     log.With().Str("component", "fetcher").Logger(),
		now:        time.Now,
	}
}

// Stream fetches every page starting at initialURL and writes the entities
// to w as a single JSON array. The opening bracket is written before the
// first upstream call so the client starts receiving bytes immediately.
//
// A failed page fetch or credential acquisition aborts the stream: whatever
// prefix was already written stands, the closing bracket is never written,
// and the error is returned. The truncated body is the client-visible
// failure signal; this is the documented cost of streaming while fetching.
func (f *Fetcher) Stream(ctx context.Context, w io.Writer, initialURL string, opts Options) error {
	start := time.Now()

	if _, err := io.WriteString(w, "["); err != nil {
		return fmt.Errorf("write stream prefix: %w", err)
	}

	first := true
	entities := 0
	pages := 0
	url := initialURL

	for url != "" {
		// The client going away must stop the loop at the page boundary
		// rather than pulling pages into the void.
		if err := ctx.Err(); err != nil {
			streamsTotal.WithLabelValues("cancelled").Inc()
			return fmt.Errorf("stream cancelled: %w", err)
		}

		if pages >= f.maxPages {
			streamsTotal.WithLabelValues("max_pages").Inc()
			f.logger.Error().Int("max_pages", f.maxPages).Str("url", url).Msg("Page cap exceeded, aborting stream")
			return fmt.Errorf("%w (%d)", ErrMaxPagesExceeded, f.maxPages)
		}

		page, err := f.fetchPage(ctx, url)
		if err != nil {
			streamsTotal.WithLabelValues("error").Inc()
			return err
		}
		pages++

		// An empty page means end of data even when a next link is present.
		if len(page.Records) == 0 {
			break
		}

		for _, rec := range page.Records {
			odata.NormalizeDates(rec)
			if opts.SinceEnabled {
				f.stampUpdated(rec, opts)
			}

			data, err := json.Marshal(rec)
			if err != nil {
				streamsTotal.WithLabelValues("error").Inc()
				return fmt.Errorf("encode entity: %w", err)
			}

			if !first {
				if _, err := io.WriteString(w, ","); err != nil {
					return fmt.Errorf("write separator: %w", err)
				}
			}
			first = false

			if _, err := w.Write(data); err != nil {
				return fmt.Errorf("write entity: %w", err)
			}
			entities++
		}

		url = page.NextURL
	}

	if _, err := io.WriteString(w, "]"); err != nil {
		return fmt.Errorf("write stream suffix: %w", err)
	}

	entitiesEmittedTotal.Add(float64(entities))
	streamsTotal.WithLabelValues("success").Inc()
	f.logger.Info().
		Int("entities", entities).
		Int("pages", pages).
		Dur("duration", time.Since(start)).
		Msg("Stream complete")

	return nil
}

// fetchPage obtains credentials, performs one GET, and extracts the page.
func (f *Fetcher) fetchPage(ctx context.Context, url string) (odata.Page, error) {
	f.logger.Debug().Str("url", url).Msg("Fetching page")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return odata.Page{}, fmt.Errorf("create page request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	if err := f.auth.Apply(ctx, req); err != nil {
		return odata.Page{}, err
	}

	reqStart := time.Now()
	resp, err := f.httpClient.Do(req)
	pageRequestDuration.Observe(time.Since(reqStart).Seconds())
	if err != nil {
		return odata.Page{}, &FetchError{URL: url, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return odata.Page{}, &FetchError{URL: url, StatusCode: resp.StatusCode, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		f.logger.Warn().Str("url", url).Int("status", resp.StatusCode).Msg("Upstream page fetch failed")
		return odata.Page{}, &FetchError{URL: url, StatusCode: resp.StatusCode}
	}

	page, err := odata.Extract(body)
	if err != nil {
		return odata.Page{}, fmt.Errorf("page %s: %w", url, err)
	}

	pagesFetchedTotal.Inc()
	return page, nil
}

func (f *Fetcher) stampUpdated(rec odata.Record, opts Options) {
	switch opts.UpdatedMode {
	case UpdatedSource:
		rec["_updated"] = rec[opts.SinceProperty]
	default:
		rec["_updated"] = f.now().Format(timestampFormat)
	}
}
