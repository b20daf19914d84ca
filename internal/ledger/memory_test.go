package ledger

import (
	"context"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/predmarket/internal/domain"
)

var (
	custody = common.HexToAddress("0x00000000000000000000000000000000000000c0")
	alice   = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	bob     = common.HexToAddress("0x00000000000000000000000000000000000000b0")
	token   = common.HexToAddress("0x00000000000000000000000000000000000000dc")
)

func TestTransfer_MovesCustodyFunds(t *testing.T) {
	m := NewMemory(custody)
	m.Mint(token, custody, 1000)

	require.NoError(t, m.Transfer(context.Background(), token, alice, 400))

	got, err := m.BalanceOf(context.Background(), token, alice)
	require.NoError(t, err)
	require.Equal(t, int64(400), got)

	got, err = m.BalanceOf(context.Background(), token, custody)
	require.NoError(t, err)
	require.Equal(t, int64(600), got)
}

func TestTransfer_InsufficientBalance(t *testing.T) {
	m := NewMemory(custody)
	m.Mint(token, custody, 100)

	err := m.Transfer(context.Background(), token, alice, 101)
	require.ErrorIs(t, err, domain.ErrInsufficient)

	got, _ := m.BalanceOf(context.Background(), token, custody)
	require.Equal(t, int64(100), got)
}

func TestTransfer_RejectsNegativeAmount(t *testing.T) {
	m := NewMemory(custody)
	err := m.Transfer(context.Background(), token, alice, -1)
	require.ErrorIs(t, err, domain.ErrValidation)
}

func TestTransferFrom_ConsumesAllowance(t *testing.T) {
	m := NewMemory(custody)
	m.Mint(token, alice, 500)
	m.Approve(token, alice, 300)

	require.NoError(t, m.TransferFrom(context.Background(), token, alice, custody, 200))

	// Remaining allowance is 100; pulling more fails.
	err := m.TransferFrom(context.Background(), token, alice, custody, 200)
	require.ErrorIs(t, err, domain.ErrInsufficient)

	got, _ := m.BalanceOf(context.Background(), token, custody)
	require.Equal(t, int64(200), got)
	got, _ = m.BalanceOf(context.Background(), token, alice)
	require.Equal(t, int64(300), got)
}

func TestTransferFrom_AllowanceWithoutBalance(t *testing.T) {
	m := NewMemory(custody)
	m.Approve(token, alice, 1000)

	err := m.TransferFrom(context.Background(), token, alice, custody, 50)
	require.ErrorIs(t, err, domain.ErrInsufficient)
}

func TestTransferFrom_ThirdPartyRecipient(t *testing.T) {
	m := NewMemory(custody)
	m.Mint(token, alice, 100)
	m.Approve(token, alice, 100)

	require.NoError(t, m.TransferFrom(context.Background(), token, alice, bob, 100))

	got, _ := m.BalanceOf(context.Background(), token, bob)
	require.Equal(t, int64(100), got)
}
