package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sakashimaa/banobox-orders/internal/domain"
	"github.com/sakashimaa/banobox-orders/internal/repository"
	"github.com/sakashimaa/banobox-orders/pkg/mylogger"
	"go.uber.org/zap"
)

// ItemsInvalidator drops whatever item list is cached for an order.
type ItemsInvalidator interface {
	Invalidate(ctx context.Context, orderID int64)
}

type CachedItemAssembler struct {
	next        ItemAssembler
	redisClient *redis.Client
	cacheTTL    time.Duration
	logger      *zap.Logger
}

// NewCachedItemAssembler caches non-empty results only. An empty list may
// come from a degraded read and is recomputed on every call.
func NewCachedItemAssembler(next ItemAssembler, redisClient *redis.Client, ttl time.Duration, logger *zap.Logger) *CachedItemAssembler {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}

	return &CachedItemAssembler{
		next:        next,
		redisClient: redisClient,
		cacheTTL:    ttl,
		logger:      logger,
	}
}

func itemsKey(orderID int64) string {
	return fmt.Sprintf("order_items:%d", orderID)
}

func (a *CachedItemAssembler) Items(ctx context.Context, caps repository.Capabilities, orderID int64) []domain.ResolvedLine {
	key := itemsKey(orderID)

	val, err := a.redisClient.Get(ctx, key).Bytes()
	if err == nil {
		var lines []domain.ResolvedLine
		if err := json.Unmarshal(val, &lines); err == nil && len(lines) > 0 {
			return lines
		}
	} else if !errors.Is(err, redis.Nil) {
		mylogger.Debug(ctx, a.logger, "Items cache read failed", zap.String("key", key), zap.Error(err))
	}

	lines := a.next.Items(ctx, caps, orderID)
	if len(lines) == 0 {
		return lines
	}

	data, err := json.Marshal(lines)
	if err != nil {
		return lines
	}

	if err := a.redisClient.Set(ctx, key, data, a.cacheTTL).Err(); err != nil {
		mylogger.Debug(ctx, a.logger, "Items cache write failed", zap.String("key", key), zap.Error(err))
	}

	return lines
}

// Invalidate is called after best-effort line writes: a read racing them
// may have cached a partial list.
func (a *CachedItemAssembler) Invalidate(ctx context.Context, orderID int64) {
	key := itemsKey(orderID)

	if err := a.redisClient.Del(ctx, key).Err(); err != nil {
		mylogger.Warn(ctx, a.logger, "Items cache invalidation failed", zap.String("key", key), zap.Error(err))
	}
}
