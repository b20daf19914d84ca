package domain

import "github.com/ethereum/go-ethereum/common"

// Position tracks one participant's exposure to one option of one market.
// CostBasis is the cumulative amount paid for the currently held shares and
// is reduced proportionally on partial sells.
type Position struct {
	MarketID  uint64         `json:"market_id"`
	Option    int            `json:"option"`
	Owner     common.Address `json:"owner"`
	Shares    int64          `json:"shares"`     // fixed-point
	CostBasis int64          `json:"cost_basis"` // fixed-point token units
}

// Portfolio aggregates a participant's activity across all markets. One
// portfolio per participant, process-lifetime.
type Portfolio struct {
	Owner         common.Address `json:"owner"`
	TotalInvested int64          `json:"total_invested"`
	TotalWinnings int64          `json:"total_winnings"`
	RealizedPnL   int64          `json:"realized_pnl"`
	UnrealizedPnL int64          `json:"unrealized_pnl"`
	TradeCount    int64          `json:"trade_count"`
}

// ClaimStatus holds the per-(market, participant) one-way claim latches. Each
// latch is set on the first successful claim and never cleared.
type ClaimStatus struct {
	Winnings   bool
	FreeTokens bool
}
