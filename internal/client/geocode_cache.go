package client

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"parking_market/internal/domain"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// CachedGeocoder memoises geocoding results in Redis. With a nil client it
// passes every query straight through, so the service runs without Redis.
type CachedGeocoder struct {
	next   Geocoder
	rdb    *redis.Client
	ttl    time.Duration
	prefix string
	logger *logrus.Logger
}

func NewCachedGeocoder(next Geocoder, rdb *redis.Client, ttl time.Duration, logger *logrus.Logger) *CachedGeocoder {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &CachedGeocoder{next: next, rdb: rdb, ttl: ttl, prefix: "geocode:", logger: logger}
}

func (g *CachedGeocoder) Geocode(ctx context.Context, query string) ([]domain.GeocodeResult, error) {
	if g.rdb == nil {
		return g.next.Geocode(ctx, query)
	}

	key := g.prefix + strings.ToLower(strings.TrimSpace(query))
	if cached, err := g.rdb.Get(ctx, key).Bytes(); err == nil {
		var results []domain.GeocodeResult
		if err := json.Unmarshal(cached, &results); err == nil {
			return results, nil
		}
	} else if err != redis.Nil {
		g.logger.WithError(err).Warn("Geocode cache read failed")
	}

	results, err := g.next.Geocode(ctx, query)
	if err != nil {
		return nil, err
	}

	if payload, err := json.Marshal(results); err == nil {
		if err := g.rdb.Set(ctx, key, payload, g.ttl).Err(); err != nil {
			g.logger.WithError(err).Warn("Geocode cache write failed")
		}
	}
	return results, nil
}
