package caching

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// CacheService fronts Redis for the read-heavy billing surfaces. Callers
// treat cache failures as misses and fall through to the store.
type CacheService interface {
	GetBillingHistory(ctx context.Context, userID uuid.UUID, limit, offset int) ([]byte, error)
	SetBillingHistory(ctx context.Context, userID uuid.UUID, limit, offset int, data []byte, ttl time.Duration) error
	InvalidateBillingHistory(ctx context.Context, userID uuid.UUID)
	Ping(ctx context.Context) error
}

type redisCacheService struct {
	client *redis.Client
}

func NewRedisCacheService(addr, password string, db int) CacheService {
	// Accept both bare host:port and redis:// URLs
	parsedAddr := addr
	if strings.HasPrefix(addr, "redis://") || strings.HasPrefix(addr, "rediss://") {
		if hostPort := strings.TrimPrefix(strings.TrimPrefix(addr, "redis://"), "rediss://"); hostPort != addr {
			parsedAddr = hostPort
		}
	}

	client := redis.NewClient(&redis.Options{
		Addr:     parsedAddr,
		Password: password,
		DB:       db,
	})

	if pingErr := client.Ping(context.Background()).Err(); pingErr != nil {
		log.Printf("WARN: Redis ping failed on initialization: %v (address: %s)", pingErr, parsedAddr)
	}

	return &redisCacheService{client: client}
}

func billingHistoryKey(userID uuid.UUID, limit, offset int) string {
	return fmt.Sprintf("vendora:billinghistory:%s:%d:%d", userID.String(), limit, offset)
}

func (r *redisCacheService) GetBillingHistory(ctx context.Context, userID uuid.UUID, limit, offset int) ([]byte, error) {
	data, err := r.client.Get(ctx, billingHistoryKey(userID, limit, offset)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil // cache miss
		}
		return nil, err
	}
	return data, nil
}

func (r *redisCacheService) SetBillingHistory(ctx context.Context, userID uuid.UUID, limit, offset int, data []byte, ttl time.Duration) error {
	return r.client.Set(ctx, billingHistoryKey(userID, limit, offset), data, ttl).Err()
}

// InvalidateBillingHistory drops every cached history page for the user.
// Best effort: a failure only means a stale page lives until its TTL.
func (r *redisCacheService) InvalidateBillingHistory(ctx context.Context, userID uuid.UUID) {
	pattern := fmt.Sprintf("vendora:billinghistory:%s:*", userID.String())
	keys, err := r.client.Keys(ctx, pattern).Result()
	if err != nil {
		log.Printf("WARN: failed to scan billing history cache for user %s: %v", userID.String(), err)
		return
	}
	if len(keys) == 0 {
		return
	}
	if err := r.client.Del(ctx, keys...).Err(); err != nil {
		log.Printf("WARN: failed to invalidate billing history cache for user %s: %v", userID.String(), err)
	}
}

func (r *redisCacheService) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}
