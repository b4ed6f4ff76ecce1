package main

import (
	"context"
	"fmt"
	"log"
	"time"

	redis "github.com/redis/go-redis/v9"

	"github.com/yourusername/token-gate/internal/attempts"
	"github.com/yourusername/token-gate/internal/config"
	"github.com/yourusername/token-gate/internal/issuer"
)

func setupIssuer(cfg *config.Config, logger *log.Logger) (*issuer.Issuer, error) {
	limiter, err := setupLimiter(cfg, logger)
	if err != nil {
		return nil, err
	}
	return issuer.NewIssuer(cfg, limiter, logger)
}

// setupLimiter は LIMITER_REDIS_URL があれば Redis、なければメモリの Limiter を返します。
func setupLimiter(cfg *config.Config, logger *log.Logger) (attempts.Limiter, error) {
	if cfg.LimiterRedisURL == "" {
		return attempts.NewMemory(attempts.DefaultPolicy), nil
	}

	opt, err := redis.ParseURL(cfg.LimiterRedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}
	redisClient := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	logger.Printf("login attempts are stored in redis %s", opt.Addr)
	return attempts.NewStore(redisClient, attempts.DefaultPolicy), nil
}
