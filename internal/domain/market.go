// Package domain defines the core types shared by the prediction-market
// engine, its stores, caches, and transport layers. All monetary and share
// quantities are fixed-point integers with scale fixed.Scale; prices are
// fractions of fixed.Scale in [0, Scale].
package domain

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Category classifies markets for indexing and discovery.
type Category string

const (
	CategoryPolitics      Category = "politics"
	CategorySports        Category = "sports"
	CategoryCrypto        Category = "crypto"
	CategoryEconomy       Category = "economy"
	CategoryScience       Category = "science"
	CategoryEntertainment Category = "entertainment"
	CategoryOther         Category = "other"
)

// MarketType distinguishes paid markets from free-entry markets.
type MarketType string

const (
	MarketTypeStandard MarketType = "standard"
	MarketTypeFree     MarketType = "free"
)

// NoWinner is the WinningOption value before a market resolves.
const NoWinner = -1

// Option is one mutually exclusive outcome of a market.
type Option struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Shares      int64  `json:"shares"` // outstanding shares, fixed-point
	Volume      int64  `json:"volume"` // cumulative traded volume, fixed-point
	Price       int64  `json:"price"`  // current price, fraction of fixed.Scale
	Active      bool   `json:"active"`
}

// FreeMarketConfig bounds the no-cost starter grants of a free market.
// RemainingPrizePool only ever decreases; the config is effectively inactive
// once the pool or the participant cap is exhausted.
type FreeMarketConfig struct {
	MaxParticipants      int   `json:"max_participants"`
	TokensPerParticipant int64 `json:"tokens_per_participant"` // shares granted per claim, fixed-point
	Participants         int   `json:"participants"`
	TotalPrizePool       int64 `json:"total_prize_pool"`
	RemainingPrizePool   int64 `json:"remaining_prize_pool"`
	Active               bool  `json:"active"`
}

// Market is one proposition with two or more mutually exclusive outcomes.
// Exactly one of Resolved/Invalidated may ever become true, and once set it
// is permanent. Disputed blocks resolution while true; Validated is purely
// informational.
type Market struct {
	ID          uint64         `json:"id"`
	Question    string         `json:"question"`
	Description string         `json:"description"`
	Category    Category       `json:"category"`
	Type        MarketType     `json:"type"`
	Creator     common.Address `json:"creator"`
	Token       common.Address `json:"token"` // betting token handled by the ledger
	CreatedAt   time.Time      `json:"created_at"`
	EndTime     time.Time      `json:"end_time"`

	Options []Option `json:"options"`

	Volume           int64 `json:"volume"`            // aggregate trade volume, fixed-point
	LiquidityB       int64 `json:"liquidity_b"`       // pricing-sensitivity parameter, clamped
	InitialLiquidity int64 `json:"initial_liquidity"` // admin-provided, fixed-point
	UserLiquidity    int64 `json:"user_liquidity"`    // net user-contributed funds held for this market
	FeesCollected    int64 `json:"fees_collected"`    // platform fees accrued by this market

	EarlyResolution       bool   `json:"early_resolution"`
	Resolved              bool   `json:"resolved"`
	Invalidated           bool   `json:"invalidated"`
	Disputed              bool   `json:"disputed"`
	Validated             bool   `json:"validated"`
	AdminLiquidityClaimed bool   `json:"admin_liquidity_claimed"`
	WinningOption         int    `json:"winning_option"` // NoWinner until resolved
	DisputeReason         string `json:"dispute_reason,omitempty"`

	Free *FreeMarketConfig `json:"free,omitempty"` // nil for standard markets
}

// Terminal reports whether the market has reached a terminal lifecycle state.
func (m *Market) Terminal() bool {
	return m.Resolved || m.Invalidated
}

// Tradable reports whether trades are accepted at the given instant: the
// market must be before its end time and not terminal. "Active" is a pure
// function of wall-clock time, recomputed at call time.
func (m *Market) Tradable(now time.Time) bool {
	return !m.Terminal() && now.Before(m.EndTime)
}
