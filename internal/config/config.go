// Package config reads the process configuration from the environment once
// at startup. Validation failures are fatal; the service never starts in a
// partially configured state.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/odatakit/odata-source/pkg/auth"
	"github.com/odatakit/odata-source/pkg/fetcher"
)

// defaultFormHeaders is the fallback for the token and assertion request
// header variables.
const defaultFormHeaders = `{"Content-Type": "application/x-www-form-urlencoded"}`

// Config is the immutable process configuration.
type Config struct {
	ServiceURL string
	Port       string
	LogLevel   string

	AuthType string
	Username string
	Password string

	TokenURL            string
	TokenRequestHeaders map[string]string
	TokenRequestBody    string

	AssertionURL            string
	AssertionRequestHeaders map[string]string
	ClientID                string
	UserID                  string
	PrivateKey              string
	CompanyID               string
	GrantType               string

	SinceProperty string
	UpdatedMode   fetcher.Mode
	MaxPages      int

	RedisURL   string
	TokenCache bool
}

// Load reads and validates the environment. The returned error names every
// missing or malformed variable.
func Load() (Config, error) {
	cfg := Config{
		ServiceURL:       os.Getenv("SERVICE_URL"),
		Port:             getEnv("PORT", "8080"),
		LogLevel:         getEnv("LOG_LEVEL", "info"),
		AuthType:         strings.ToLower(getEnv("AUTH_TYPE", auth.TypeBasic)),
		Username:         os.Getenv("USERNAME"),
		Password:         os.Getenv("PASSWORD"),
		TokenURL:         os.Getenv("TOKEN_URL"),
		TokenRequestBody: os.Getenv("TOKEN_REQUEST_BODY"),
		AssertionURL:     os.Getenv("ASSERTION_URL"),
		ClientID:         os.Getenv("CLIENT_ID"),
		UserID:           os.Getenv("USER_ID"),
		PrivateKey:       os.Getenv("PRIVATE_KEY"),
		CompanyID:        os.Getenv("COMPANY_ID"),
		GrantType:        os.Getenv("GRANT_TYPE"),
		SinceProperty:    getEnv("SINCE_PROPERTY", "lastModifiedDateTime"),
		UpdatedMode:      fetcher.Mode(getEnv("UPDATED_MODE", string(fetcher.UpdatedGenerated))),
		RedisURL:         os.Getenv("REDIS_URL"),
	}

	var problems []string

	if cfg.ServiceURL == "" {
		problems = append(problems, "SERVICE_URL is required")
	}

	switch cfg.AuthType {
	case auth.TypeBasic:
		if cfg.Username == "" {
			problems = append(problems, "USERNAME is required for basic auth")
		}
		if cfg.Password == "" {
			problems = append(problems, "PASSWORD is required for basic auth")
		}
	case auth.TypeToken:
		if cfg.TokenURL == "" {
			problems = append(problems, "TOKEN_URL is required for token auth")
		}
		if cfg.TokenRequestBody == "" {
			problems = append(problems, "TOKEN_REQUEST_BODY is required for token auth")
		}
	case auth.TypeOAuth2:
		for _, required := range []struct{ name, value string }{
			{"TOKEN_URL", cfg.TokenURL},
			{"ASSERTION_URL", cfg.AssertionURL},
			{"CLIENT_ID", cfg.ClientID},
			{"USER_ID", cfg.UserID},
			{"PRIVATE_KEY", cfg.PrivateKey},
			{"COMPANY_ID", cfg.CompanyID},
			{"GRANT_TYPE", cfg.GrantType},
		} {
			if required.value == "" {
				problems = append(problems, required.name+" is required for oauth2 auth")
			}
		}
	default:
		problems = append(problems, fmt.Sprintf("unsupported AUTH_TYPE: %q", cfg.AuthType))
	}

	var err error
	cfg.TokenRequestHeaders, err = parseHeaders("TOKEN_REQUEST_HEADERS")
	if err != nil {
		problems = append(problems, err.Error())
	}
	cfg.AssertionRequestHeaders, err = parseHeaders("ASSERTION_REQUEST_HEADERS")
	if err != nil {
		problems = append(problems, err.Error())
	}

	switch cfg.UpdatedMode {
	case fetcher.UpdatedGenerated, fetcher.UpdatedSource:
	default:
		problems = append(problems, fmt.Sprintf("UPDATED_MODE must be %q or %q", fetcher.UpdatedGenerated, fetcher.UpdatedSource))
	}

	cfg.MaxPages = fetcher.DefaultMaxPages
	if raw := os.Getenv("MAX_PAGES"); raw != "" {
		pages, err := strconv.Atoi(raw)
		if err != nil || pages <= 0 {
			problems = append(problems, fmt.Sprintf("MAX_PAGES must be a positive integer, got %q", raw))
		} else {
			cfg.MaxPages = pages
		}
	}

	if raw := os.Getenv("TOKEN_CACHE"); raw != "" {
		enabled, err := strconv.ParseBool(raw)
		if err != nil {
			problems = append(problems, fmt.Sprintf("TOKEN_CACHE must be a boolean, got %q", raw))
		} else {
			cfg.TokenCache = enabled
		}
	}
	if cfg.TokenCache && cfg.RedisURL == "" {
		problems = append(problems, "REDIS_URL is required when TOKEN_CACHE is enabled")
	}

	if len(problems) > 0 {
		return Config{}, fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}

	return cfg, nil
}

// AuthConfig maps the process configuration onto the auth package's strategy
// selector.
func (c Config) AuthConfig() auth.Config {
	return auth.Config{
		Type:  c.AuthType,
		Basic: auth.BasicConfig{Username: c.Username, Password: c.Password},
		Token: auth.TokenConfig{
			TokenURL:       c.TokenURL,
			RequestHeaders: c.TokenRequestHeaders,
			RequestBody:    c.TokenRequestBody,
		},
		OAuth2: auth.OAuth2Config{
			AssertionURL:     c.AssertionURL,
			AssertionHeaders: c.AssertionRequestHeaders,
			TokenURL:         c.TokenURL,
			TokenHeaders:     c.TokenRequestHeaders,
			ClientID:         c.ClientID,
			UserID:           c.UserID,
			PrivateKey:       c.PrivateKey,
			CompanyID:        c.CompanyID,
			GrantType:        c.GrantType,
		},
	}
}

func parseHeaders(envVar string) (map[string]string, error) {
	raw := getEnv(envVar, defaultFormHeaders)
	headers := map[string]string{}
	if err := json.Unmarshal([]byte(raw), &headers); err != nil {
		return nil, fmt.Errorf("%s is not a valid JSON object: %v", envVar, err)
	}
	return headers, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
