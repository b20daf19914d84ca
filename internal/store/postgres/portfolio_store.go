package postgres

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/predmarket/internal/domain"
)

// PortfolioStore implements domain.PortfolioStore using PostgreSQL.
type PortfolioStore struct {
	pool *pgxpool.Pool
}

// NewPortfolioStore creates a new PortfolioStore backed by the given connection pool.
func NewPortfolioStore(pool *pgxpool.Pool) *PortfolioStore {
	return &PortfolioStore{pool: pool}
}

// Upsert inserts or replaces one portfolio snapshot.
func (s *PortfolioStore) Upsert(ctx context.Context, p domain.Portfolio) error {
	const query = `
		INSERT INTO portfolios (
			owner, total_invested, total_winnings, realized_pnl,
			unrealized_pnl, trade_count, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, NOW())
		ON CONFLICT (owner) DO UPDATE SET
			total_invested = EXCLUDED.total_invested,
			total_winnings = EXCLUDED.total_winnings,
			realized_pnl   = EXCLUDED.realized_pnl,
			unrealized_pnl = EXCLUDED.unrealized_pnl,
			trade_count    = EXCLUDED.trade_count,
			updated_at     = NOW()`

	_, err := s.pool.Exec(ctx, query,
		p.Owner.Hex(), p.TotalInvested, p.TotalWinnings,
		p.RealizedPnL, p.UnrealizedPnL, p.TradeCount,
	)
	if err != nil {
		return fmt.Errorf("postgres: upsert portfolio %s: %w", p.Owner.Hex(), err)
	}
	return nil
}

// GetByOwner retrieves the portfolio for one participant.
func (s *PortfolioStore) GetByOwner(ctx context.Context, owner common.Address) (domain.Portfolio, error) {
	var (
		p       domain.Portfolio
		ownerID string
	)
	err := s.pool.QueryRow(ctx, `
		SELECT owner, total_invested, total_winnings, realized_pnl,
			unrealized_pnl, trade_count
		FROM portfolios WHERE owner = $1`, owner.Hex(),
	).Scan(&ownerID, &p.TotalInvested, &p.TotalWinnings,
		&p.RealizedPnL, &p.UnrealizedPnL, &p.TradeCount)
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.Portfolio{}, domain.ErrNotFound
		}
		return domain.Portfolio{}, fmt.Errorf("postgres: get portfolio %s: %w", owner.Hex(), err)
	}
	p.Owner = common.HexToAddress(ownerID)
	return p, nil
}
