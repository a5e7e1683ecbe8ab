package main

import (
	"context"
	"net/http"

	"github.com/odatakit/odata-source/internal/config"
	"github.com/odatakit/odata-source/internal/server"
	"github.com/odatakit/odata-source/pkg/auth"
	"github.com/odatakit/odata-source/pkg/fetcher"
	"github.com/odatakit/odata-source/pkg/logging"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		// Logging is not configured yet; use the default global logger.
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	logger := logging.Setup(logging.Config{Level: cfg.LogLevel})
	logger.Info().
		Str("service_url", cfg.ServiceURL).
		Str("auth_type", cfg.AuthType).
		Msg("Starting odata-proxy")

	provider, err := auth.New(cfg.AuthConfig())
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to build auth provider")
	}

	if cfg.TokenCache {
		redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisURL})
		if err := redisClient.Ping(context.Background()).Err(); err != nil {
			logger.Fatal().Err(err).Str("redis_url", cfg.RedisURL).Msg("Failed to connect to Redis")
		}
		logger.Info().Str("redis_url", cfg.RedisURL).Msg("Token cache enabled")
		provider = auth.NewCached(provider, redisClient)
	}

	f := fetcher.New(provider, fetcher.Config{MaxPages: cfg.MaxPages})
	router := server.NewRouter(server.NewHandler(f, cfg))

	addr := ":" + cfg.Port
	logger.Info().Str("addr", addr).Msg("Listening for connections")

	if err := http.ListenAndServe(addr, router); err != nil {
		logger.Fatal().Err(err).Msg("Server failed")
	}
}
