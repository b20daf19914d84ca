package domain

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
)

// TokenLedger is the external fungible-token balance store the engine moves
// funds through. Each call is atomic and fails loudly on insufficient balance
// or allowance; the engine never observes a partial transfer.
//
// Transfer moves tokens out of the caller's own account (the engine's custody
// account). TransferFrom pulls tokens from a third party that has granted the
// caller an allowance.
type TokenLedger interface {
	Transfer(ctx context.Context, token, to common.Address, amount int64) error
	TransferFrom(ctx context.Context, token, from, to common.Address, amount int64) error
	BalanceOf(ctx context.Context, token, owner common.Address) (int64, error)
}
