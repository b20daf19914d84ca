package domain

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// EventType enumerates the append-only notifications the engine produces for
// external indexers and UIs. The engine does not depend on any subscriber
// reading them.
type EventType string

const (
	EventMarketCreated           EventType = "market_created"
	EventTradeExecuted           EventType = "trade_executed"
	EventMarketResolved          EventType = "market_resolved"
	EventMarketInvalidated       EventType = "market_invalidated"
	EventMarketValidated         EventType = "market_validated"
	EventMarketDisputed          EventType = "market_disputed"
	EventWinningsClaimed         EventType = "winnings_claimed"
	EventRefundClaimed           EventType = "refund_claimed"
	EventFreeTokensClaimed       EventType = "free_tokens_claimed"
	EventFeesAccrued             EventType = "fees_accrued"
	EventFeesUnlocked            EventType = "fees_unlocked"
	EventFeesWithdrawn           EventType = "fees_withdrawn"
	EventAdminLiquidityWithdrawn EventType = "admin_liquidity_withdrawn"
	EventTokenWhitelisted        EventType = "token_whitelisted"
	EventTokenRemoved            EventType = "token_removed"
)

// Event is one engine notification. Only the fields relevant to the event
// type are populated; Trade is set for trade_executed, Amount for the money
// movement events, Option for resolution and claims.
type Event struct {
	ID        string         `json:"id"`
	Type      EventType      `json:"type"`
	MarketID  uint64         `json:"market_id,omitempty"`
	Actor     common.Address `json:"actor,omitempty"`
	Token     common.Address `json:"token,omitempty"`
	Option    int            `json:"option,omitempty"`
	Amount    int64          `json:"amount,omitempty"`
	Reason    string         `json:"reason,omitempty"`
	Trade     *TradeRecord   `json:"trade,omitempty"`
	Timestamp time.Time      `json:"timestamp"`

	// Attestation is the operator's signature over the settlement fields,
	// attached by the journal on resolution and invalidation events when an
	// operator credential is configured.
	Attestation string `json:"attestation,omitempty"`
}
