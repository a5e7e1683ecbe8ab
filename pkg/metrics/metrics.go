// Package metrics documents the Prometheus metrics exposed by the connector.
// Metrics are defined next to the code they instrument (pkg/auth,
// pkg/fetcher) via promauto; this package only names the registry and keeps
// the reference list in one place.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Registry is the default Prometheus registry used by the connector.
// All metrics are automatically registered via promauto in their packages.
var Registry = prometheus.DefaultRegisterer

// Metrics Reference
//
// Fetch metrics (pkg/fetcher):
//   - odata_pages_fetched_total (Counter): Upstream pages fetched
//   - odata_entities_emitted_total (Counter): Entities emitted to clients
//   - odata_page_request_duration_seconds (Histogram): Upstream page GET duration
//   - odata_streams_total{outcome} (Counter): Streams by outcome
//     (success, error, cancelled, max_pages)
//
// Auth metrics (pkg/auth):
//   - odata_auth_token_requests_total{strategy, outcome} (Counter):
//     Token/assertion endpoint requests
//   - odata_auth_token_request_duration_seconds{strategy} (Histogram):
//     Credential acquisition duration
//   - odata_auth_token_cache_hits_total (Counter): Token cache hits
//   - odata_auth_token_cache_misses_total (Counter): Token cache misses
//   - odata_auth_token_cache_errors_total{operation} (Counter): Cache errors
//
// Example Prometheus Queries:
//
//   # Entities per second
//   rate(odata_entities_emitted_total[5m])
//
//   # Stream failure ratio
//   sum(rate(odata_streams_total{outcome!="success"}[5m])) /
//   sum(rate(odata_streams_total[5m]))
//
//   # P95 upstream page latency
//   histogram_quantile(0.95, rate(odata_page_request_duration_seconds_bucket[5m]))
//
//   # Token cache hit rate
//   rate(odata_auth_token_cache_hits_total[5m]) /
//   (rate(odata_auth_token_cache_hits_total[5m]) + rate(odata_auth_token_cache_misses_total[5m]))
