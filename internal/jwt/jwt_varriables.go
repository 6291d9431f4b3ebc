package jwt

import (
	"time"

	"github.com/go-redis/redis/v8"

	"chat-routing-backend/internal/env"
)

var (
	RoleSecrets map[Role]string
	RedisClient *redis.Client
)

const RefreshTokenTTL = 24 * 30 * time.Hour

const (
	RoleVisitor Role = iota
	RoleCommercial
)

func init() {
	secret := env.Get(env.UserSecretKey)
	RoleSecrets = map[Role]string{
		RoleVisitor:    secret,
		RoleCommercial: secret,
	}

	RedisClient = redis.NewClient(&redis.Options{
		Addr:     env.Get(env.AuthRedisURL),
		Password: env.Get(env.AuthRedisPass),
		DB:       0,
	})
}
