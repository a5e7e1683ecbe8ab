package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// TokenConfig parameterizes the token endpoint strategy.
type TokenConfig struct {
	// TokenURL is the endpoint POSTed to for an access token.
	TokenURL string

	// RequestHeaders are sent verbatim with the token request.
	RequestHeaders map[string]string

	// RequestBody is the raw request body template, sent as-is.
	RequestBody string
}

// Token fetches a fresh bearer token from the token endpoint on every Apply.
// There is deliberately no caching here; wrap with NewCached to reuse tokens
// until their declared expiry.
type Token struct {
	cfg        TokenConfig
	httpClient *http.Client
	logger     zerolog.Logger
}

// NewToken creates the token endpoint strategy.
func NewToken(cfg TokenConfig, httpClient *http.Client) *Token {
	return &Token{
		cfg:        cfg,
		httpClient: httpClient,
		logger:     log.With().Str("component", "auth").Str("strategy", TypeToken).Logger(),
	}
}

// Apply fetches a token and sets it as a bearer Authorization header.
func (t *Token) Apply(ctx context.Context, req *http.Request) error {
	token, _, err := t.fetchToken(ctx)
	if err != nil {
		return err
	}
	setBearer(req, token)
	return nil
}

func (t *Token) fetchToken(ctx context.Context) (string, time.Duration, error) {
	start := time.Now()
	defer func() {
		tokenRequestDuration.WithLabelValues(TypeToken).Observe(time.Since(start).Seconds())
	}()

	t.logger.Debug().Str("token_url", t.cfg.TokenURL).Msg("Requesting access token")

	body, err := postForToken(ctx, t.httpClient, t.cfg.TokenURL, t.cfg.RequestHeaders, t.cfg.RequestBody, TypeToken)
	if err != nil {
		return "", 0, err
	}

	return parseTokenResponse(body, TypeToken)
}

func (t *Token) cacheKey() string {
	return "odata:auth:token:" + t.cfg.TokenURL
}

// tokenResponse is the subset of the token endpoint reply the connector
// cares about.
type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
}

// postForToken performs one POST against a token or assertion endpoint and
// returns the raw response body. Non-2xx statuses become AuthErrors.
func postForToken(ctx context.Context, httpClient *http.Client, endpoint string, headers map[string]string, body, strategy string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(body))
	if err != nil {
		tokenRequestsTotal.WithLabelValues(strategy, "error").Inc()
		return nil, fmt.Errorf("create token request: %w", err)
	}
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		tokenRequestsTotal.WithLabelValues(strategy, "error").Inc()
		return nil, &AuthError{Strategy: strategy, Message: "token endpoint unreachable", Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		tokenRequestsTotal.WithLabelValues(strategy, "error").Inc()
		return nil, &AuthError{Strategy: strategy, Message: "read token response", Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		tokenRequestsTotal.WithLabelValues(strategy, "error").Inc()
		return nil, &AuthError{
			Strategy:   strategy,
			StatusCode: resp.StatusCode,
			Message:    "token endpoint returned " + resp.Status,
		}
	}

	tokenRequestsTotal.WithLabelValues(strategy, "success").Inc()
	return respBody, nil
}

func parseTokenResponse(body []byte, strategy string) (string, time.Duration, error) {
	var tr tokenResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		return "", 0, &AuthError{Strategy: strategy, Message: "malformed token response", Err: err}
	}
	if tr.AccessToken == "" {
		return "", 0, &AuthError{Strategy: strategy, Message: "token response missing access_token"}
	}
	return tr.AccessToken, time.Duration(tr.ExpiresIn) * time.Second, nil
}
