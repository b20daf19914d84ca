package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/alanyoungcy/predmarket/internal/domain"
)

// PriceCache implements domain.PriceCache using Redis hashes. Each market's
// option prices are stored as a hash at key "price:{marketID}" with one field
// per option index plus a "ts" field (Unix nanosecond timestamp).
type PriceCache struct {
	rdb *redis.Client
}

// NewPriceCache creates a PriceCache backed by the given Client.
func NewPriceCache(c *Client) *PriceCache {
	return &PriceCache{rdb: c.Underlying()}
}

func priceKey(marketID uint64) string {
	return "price:" + strconv.FormatUint(marketID, 10)
}

// SetPrices stores the full option price vector for a market.
func (pc *PriceCache) SetPrices(ctx context.Context, marketID uint64, prices []int64, ts time.Time) error {
	key := priceKey(marketID)
	fields := make(map[string]interface{}, len(prices)+2)
	for i, p := range prices {
		fields[strconv.Itoa(i)] = strconv.FormatInt(p, 10)
	}
	fields["n"] = strconv.Itoa(len(prices))
	fields["ts"] = strconv.FormatInt(ts.UnixNano(), 10)

	if err := pc.rdb.HSet(ctx, key, fields).Err(); err != nil {
		return fmt.Errorf("redis: set prices market %d: %w", marketID, err)
	}
	return nil
}

// GetPrices retrieves the latest option price vector and its timestamp.
// It returns domain.ErrNotFound when the key does not exist.
func (pc *PriceCache) GetPrices(ctx context.Context, marketID uint64) ([]int64, time.Time, error) {
	vals, err := pc.rdb.HGetAll(ctx, priceKey(marketID)).Result()
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("redis: get prices market %d: %w", marketID, err)
	}
	if len(vals) == 0 {
		return nil, time.Time{}, domain.ErrNotFound
	}

	nStr, ok := vals["n"]
	if !ok {
		return nil, time.Time{}, domain.ErrNotFound
	}
	n, err := strconv.Atoi(nStr)
	if err != nil || n < 0 {
		return nil, time.Time{}, fmt.Errorf("redis: parse option count for market %d: %w", marketID, err)
	}

	prices := make([]int64, n)
	for i := 0; i < n; i++ {
		raw, ok := vals[strconv.Itoa(i)]
		if !ok {
			return nil, time.Time{}, fmt.Errorf("redis: market %d missing price field %d", marketID, i)
		}
		p, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, time.Time{}, fmt.Errorf("redis: parse price %d for market %d: %w", i, marketID, err)
		}
		prices[i] = p
	}

	tsStr, ok := vals["ts"]
	if !ok {
		return nil, time.Time{}, domain.ErrNotFound
	}
	tsNano, err := strconv.ParseInt(tsStr, 10, 64)
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("redis: parse ts for market %d: %w", marketID, err)
	}

	return prices, time.Unix(0, tsNano), nil
}

// Compile-time interface check.
var _ domain.PriceCache = (*PriceCache)(nil)
