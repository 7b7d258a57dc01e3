// Package graylist implements the risk-list membership oracle on Redis.
// Risk operators maintain the set out of band; the engine only reads it.
package graylist

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/greyfinance/limitguard/internal/engine"
)

const defaultSetKey = "risk:graylist:customers"

// RedisGrayList answers gray-list membership from a Redis set of customer
// ids.
type RedisGrayList struct {
	client redis.Cmdable
	setKey string
}

var _ engine.GrayList = (*RedisGrayList)(nil)

// NewRedisGrayList creates the oracle. An empty setKey uses the default.
func NewRedisGrayList(client redis.Cmdable, setKey string) *RedisGrayList {
	if setKey == "" {
		setKey = defaultSetKey
	}
	return &RedisGrayList{client: client, setKey: setKey}
}

// IsInGrayList reports whether the customer is risk-flagged. Failures
// propagate to the caller; the engine performs no internal retry.
func (g *RedisGrayList) IsInGrayList(ctx context.Context, customerID uuid.UUID) (bool, error) {
	member, err := g.client.SIsMember(ctx, g.setKey, customerID.String()).Result()
	if err != nil {
		return false, fmt.Errorf("gray-list membership check: %w", err)
	}
	return member, nil
}
