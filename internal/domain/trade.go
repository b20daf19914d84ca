package domain

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// AMM is the zero identity used for the pool side of a fill.
var AMM = common.Address{}

// TradeSide distinguishes user buys from user sells.
type TradeSide string

const (
	TradeSideBuy  TradeSide = "buy"
	TradeSideSell TradeSide = "sell"
)

// TradeRecord is an immutable log entry for one executed trade. One of
// Buyer/Seller is the zero identity (AMM) since every fill is against the
// pricing curve. Appended only, never mutated.
type TradeRecord struct {
	ID        string         `json:"id"` // uuid
	MarketID  uint64         `json:"market_id"`
	Option    int            `json:"option"`
	Side      TradeSide      `json:"side"`
	Buyer     common.Address `json:"buyer"`
	Seller    common.Address `json:"seller"`
	Price     int64          `json:"price"`    // executed price per share, fraction of fixed.Scale
	Quantity  int64          `json:"quantity"` // fixed-point shares
	Cost      int64          `json:"cost"`     // gross cost or proceeds, fixed-point
	Fee       int64          `json:"fee"`      // platform fee taken, fixed-point
	Timestamp time.Time      `json:"timestamp"`
}

// PricePoint is one sample of an option's price history, appended after
// every trade that touches the market.
type PricePoint struct {
	Option    int       `json:"option"`
	Price     int64     `json:"price"`
	Timestamp time.Time `json:"timestamp"`
}
