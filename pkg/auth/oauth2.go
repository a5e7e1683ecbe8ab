package auth

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// OAuth2Config parameterizes the assertion exchange strategy.
type OAuth2Config struct {
	// AssertionURL is POSTed to first to obtain a signed assertion.
	AssertionURL string

	// AssertionHeaders are sent with the assertion request.
	AssertionHeaders map[string]string

	// TokenURL is POSTed to second to exchange the assertion for a token.
	TokenURL string

	// TokenHeaders are sent with the exchange request.
	TokenHeaders map[string]string

	ClientID   string
	UserID     string
	PrivateKey string
	CompanyID  string
	GrantType  string
}

// OAuth2 performs a two-step assertion exchange on every Apply: fetch an
// assertion string from the assertion endpoint, then trade it for an access
// token at the token endpoint.
type OAuth2 struct {
	cfg        OAuth2Config
	httpClient *http.Client
	logger     zerolog.Logger
}

// NewOAuth2 creates the assertion exchange strategy.
func NewOAuth2(cfg OAuth2Config, httpClient *http.Client) *OAuth2 {
	return &OAuth2{
		cfg:        cfg,
		httpClient: httpClient,
		logger:     log.With().Str("component", "auth").Str("strategy", TypeOAuth2).Logger(),
	}
}

// Apply runs the exchange and sets the resulting bearer token.
func (o *OAuth2) Apply(ctx context.Context, req *http.Request) error {
	token, _, err := o.fetchToken(ctx)
	if err != nil {
		return err
	}
	setBearer(req, token)
	return nil
}

func (o *OAuth2) fetchToken(ctx context.Context) (string, time.Duration, error) {
	start := time.Now()
	defer func() {
		tokenRequestDuration.WithLabelValues(TypeOAuth2).Observe(time.Since(start).Seconds())
	}()

	o.logger.Debug().Str("assertion_url", o.cfg.AssertionURL).Msg("Requesting assertion")

	assertionBody := url.Values{
		"client_id":   {o.cfg.ClientID},
		"user_id":     {o.cfg.UserID},
		"token_url":   {o.cfg.TokenURL},
		"private_key": {o.cfg.PrivateKey},
	}
	assertion, err := postForToken(ctx, o.httpClient, o.cfg.AssertionURL, o.cfg.AssertionHeaders, assertionBody.Encode(), TypeOAuth2)
	if err != nil {
		return "", 0, err
	}

	o.logger.Debug().Str("token_url", o.cfg.TokenURL).Msg("Exchanging assertion for access token")

	exchangeBody := url.Values{
		"company_id": {o.cfg.CompanyID},
		"client_id":  {o.cfg.ClientID},
		"grant_type": {o.cfg.GrantType},
		"assertion":  {string(assertion)},
	}
	tokenBody, err := postForToken(ctx, o.httpClient, o.cfg.TokenURL, o.cfg.TokenHeaders, exchangeBody.Encode(), TypeOAuth2)
	if err != nil {
		return "", 0, err
	}

	return parseTokenResponse(tokenBody, TypeOAuth2)
}

func (o *OAuth2) cacheKey() string {
	return "odata:auth:oauth2:" + o.cfg.TokenURL + ":" + o.cfg.ClientID
}
