package domain

import (
	"context"
	"time"
)

// PriceCache stores the latest option prices per market for cheap reads by
// pollers that should not touch the engine lock.
type PriceCache interface {
	SetPrices(ctx context.Context, marketID uint64, prices []int64, ts time.Time) error
	GetPrices(ctx context.Context, marketID uint64) ([]int64, time.Time, error)
}

// SignalBus is a fire-and-forget pub/sub fabric used to fan engine events out
// to WebSocket clients and other subscribers.
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
}

// BlobWriter writes an object to blob storage, used by the trade archiver.
type BlobWriter interface {
	Put(ctx context.Context, key string, body []byte, contentType string) error
}

// RateLimiter enforces per-key request limits over a sliding window.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// LockManager provides distributed mutual exclusion for periodic jobs that
// must run on at most one instance, such as the trade archiver.
type LockManager interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error)
}
