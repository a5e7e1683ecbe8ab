// Package auth supplies outbound requests with credentials for one of three
// strategies: static basic auth, bearer tokens fetched from a token endpoint,
// and a two-step OAuth2 assertion exchange.
package auth

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for credential acquisition.
var (
	tokenRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "odata_auth_token_requests_total",
		Help: "Total token endpoint requests by strategy and outcome",
	}, []string{"strategy", "outcome"})

	tokenRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "odata_auth_token_request_duration_seconds",
		Help:    "Token endpoint request duration in seconds by strategy",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10},
	}, []string{"strategy"})
)

// Supported strategy selectors.
const (
	TypeBasic  = "basic"
	TypeToken  = "token"
	TypeOAuth2 = "oauth2"
)

// Provider attaches credentials to a single outbound page request. The
// token-based strategies perform their own network calls on every Apply, so
// credentials are never stored in shared state between requests.
type Provider interface {
	Apply(ctx context.Context, req *http.Request) error
}

// Config selects and parameterizes a strategy. Exactly one of the
// strategy-specific sections is consulted, depending on Type.
type Config struct {
	Type   string
	Basic  BasicConfig
	Token  TokenConfig
	OAuth2 OAuth2Config

	// HTTPClient is used for token/assertion endpoint calls.
	// Defaults to a client with a 30 second timeout.
	HTTPClient *http.Client
}

// New builds the provider for the configured strategy. An unsupported Type
// is a configuration error; callers treat it as fatal at startup.
func New(cfg Config) (Provider, error) {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}

	switch cfg.Type {
	case TypeBasic:
		return NewBasic(cfg.Basic), nil
	case TypeToken:
		return NewToken(cfg.Token, httpClient), nil
	case TypeOAuth2:
		return NewOAuth2(cfg.OAuth2, httpClient), nil
	default:
		return nil, fmt.Errorf("unsupported auth type: %q", cfg.Type)
	}
}

// BasicConfig holds static transport-level credentials.
type BasicConfig struct {
	Username string
	Password string
}

// Basic attaches a fixed username/password pair. No network calls.
type Basic struct {
	username string
	password string
}

// NewBasic creates the basic auth strategy.
func NewBasic(cfg BasicConfig) *Basic {
	return &Basic{username: cfg.Username, password: cfg.Password}
}

// Apply sets transport-level basic auth on the request.
func (b *Basic) Apply(_ context.Context, req *http.Request) error {
	req.SetBasicAuth(b.username, b.password)
	return nil
}

func setBearer(req *http.Request, token string) {
	req.Header.Set("Authorization", "Bearer "+token)
}
