package postgres

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/predmarket/internal/domain"
)

// PositionStore implements domain.PositionStore using PostgreSQL.
type PositionStore struct {
	pool *pgxpool.Pool
}

// NewPositionStore creates a new PositionStore backed by the given connection pool.
func NewPositionStore(pool *pgxpool.Pool) *PositionStore {
	return &PositionStore{pool: pool}
}

// Upsert inserts or replaces one position snapshot.
func (s *PositionStore) Upsert(ctx context.Context, p domain.Position) error {
	const query = `
		INSERT INTO positions (market_id, option, owner, shares, cost_basis, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		ON CONFLICT (market_id, option, owner) DO UPDATE SET
			shares     = EXCLUDED.shares,
			cost_basis = EXCLUDED.cost_basis,
			updated_at = NOW()`

	_, err := s.pool.Exec(ctx, query,
		p.MarketID, p.Option, p.Owner.Hex(), p.Shares, p.CostBasis,
	)
	if err != nil {
		return fmt.Errorf("postgres: upsert position (%d, %d, %s): %w",
			p.MarketID, p.Option, p.Owner.Hex(), err)
	}
	return nil
}

// ListByOwner returns all positions held by the given participant.
func (s *PositionStore) ListByOwner(ctx context.Context, owner common.Address, opts domain.ListOpts) ([]domain.Position, error) {
	query := `SELECT market_id, option, owner, shares, cost_basis
		FROM positions WHERE owner = $1 ORDER BY market_id, option`
	args := []any{owner.Hex()}
	argIdx := 2

	if opts.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIdx)
		args = append(args, opts.Limit)
		argIdx++
	}
	if opts.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argIdx)
		args = append(args, opts.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list positions by owner: %w", err)
	}
	defer rows.Close()

	var positions []domain.Position
	for rows.Next() {
		var (
			p       domain.Position
			ownerID string
		)
		if err := rows.Scan(&p.MarketID, &p.Option, &ownerID, &p.Shares, &p.CostBasis); err != nil {
			return nil, fmt.Errorf("postgres: scan position: %w", err)
		}
		p.Owner = common.HexToAddress(ownerID)
		positions = append(positions, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list positions rows: %w", err)
	}
	return positions, nil
}
