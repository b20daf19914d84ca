package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/predmarket/internal/domain"
)

// MarketStore implements domain.MarketStore using PostgreSQL. Options and the
// free-market config are stored as JSONB since their shape varies per market.
type MarketStore struct {
	pool *pgxpool.Pool
}

// NewMarketStore creates a new MarketStore backed by the given connection pool.
func NewMarketStore(pool *pgxpool.Pool) *MarketStore {
	return &MarketStore{pool: pool}
}

const marketCols = `id, question, description, category, market_type,
	creator, token, created_at, end_time, options,
	volume, liquidity_b, initial_liquidity, user_liquidity, fees_collected,
	early_resolution, resolved, invalidated, disputed, validated,
	admin_liquidity_claimed, winning_option, dispute_reason, free_config`

// Upsert inserts or replaces a market snapshot.
func (s *MarketStore) Upsert(ctx context.Context, m domain.Market) error {
	optionsJSON, err := json.Marshal(m.Options)
	if err != nil {
		return fmt.Errorf("postgres: marshal options for market %d: %w", m.ID, err)
	}
	var freeJSON []byte
	if m.Free != nil {
		freeJSON, err = json.Marshal(m.Free)
		if err != nil {
			return fmt.Errorf("postgres: marshal free config for market %d: %w", m.ID, err)
		}
	}

	const query = `
		INSERT INTO markets (
			id, question, description, category, market_type,
			creator, token, created_at, end_time, options,
			volume, liquidity_b, initial_liquidity, user_liquidity, fees_collected,
			early_resolution, resolved, invalidated, disputed, validated,
			admin_liquidity_claimed, winning_option, dispute_reason, free_config,
			updated_at
		) VALUES (
			$1, $2, $3, $4, $5,
			$6, $7, $8, $9, $10,
			$11, $12, $13, $14, $15,
			$16, $17, $18, $19, $20,
			$21, $22, $23, $24, NOW()
		)
		ON CONFLICT (id) DO UPDATE SET
			options                 = EXCLUDED.options,
			volume                  = EXCLUDED.volume,
			user_liquidity          = EXCLUDED.user_liquidity,
			fees_collected          = EXCLUDED.fees_collected,
			resolved                = EXCLUDED.resolved,
			invalidated             = EXCLUDED.invalidated,
			disputed                = EXCLUDED.disputed,
			validated               = EXCLUDED.validated,
			admin_liquidity_claimed = EXCLUDED.admin_liquidity_claimed,
			winning_option          = EXCLUDED.winning_option,
			dispute_reason          = EXCLUDED.dispute_reason,
			free_config             = EXCLUDED.free_config,
			updated_at              = NOW()`

	_, err = s.pool.Exec(ctx, query,
		m.ID, m.Question, m.Description, string(m.Category), string(m.Type),
		m.Creator.Hex(), m.Token.Hex(), m.CreatedAt, m.EndTime, optionsJSON,
		m.Volume, m.LiquidityB, m.InitialLiquidity, m.UserLiquidity, m.FeesCollected,
		m.EarlyResolution, m.Resolved, m.Invalidated, m.Disputed, m.Validated,
		m.AdminLiquidityClaimed, m.WinningOption, m.DisputeReason, freeJSON,
	)
	if err != nil {
		return fmt.Errorf("postgres: upsert market %d: %w", m.ID, err)
	}
	return nil
}

// scanMarket scans a single market row into a domain.Market.
func scanMarket(row pgx.Row) (domain.Market, error) {
	var (
		m           domain.Market
		category    string
		marketType  string
		creator     string
		token       string
		optionsJSON []byte
		freeJSON    []byte
	)
	err := row.Scan(
		&m.ID, &m.Question, &m.Description, &category, &marketType,
		&creator, &token, &m.CreatedAt, &m.EndTime, &optionsJSON,
		&m.Volume, &m.LiquidityB, &m.InitialLiquidity, &m.UserLiquidity, &m.FeesCollected,
		&m.EarlyResolution, &m.Resolved, &m.Invalidated, &m.Disputed, &m.Validated,
		&m.AdminLiquidityClaimed, &m.WinningOption, &m.DisputeReason, &freeJSON,
	)
	if err != nil {
		return domain.Market{}, err
	}

	m.Category = domain.Category(category)
	m.Type = domain.MarketType(marketType)
	m.Creator = common.HexToAddress(creator)
	m.Token = common.HexToAddress(token)

	if err := json.Unmarshal(optionsJSON, &m.Options); err != nil {
		return domain.Market{}, fmt.Errorf("unmarshal options: %w", err)
	}
	if len(freeJSON) > 0 {
		m.Free = &domain.FreeMarketConfig{}
		if err := json.Unmarshal(freeJSON, m.Free); err != nil {
			return domain.Market{}, fmt.Errorf("unmarshal free config: %w", err)
		}
	}
	return m, nil
}

// GetByID retrieves a market by its primary key.
func (s *MarketStore) GetByID(ctx context.Context, id uint64) (domain.Market, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+marketCols+` FROM markets WHERE id = $1`, id)
	m, err := scanMarket(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.Market{}, domain.ErrNotFound
		}
		return domain.Market{}, fmt.Errorf("postgres: get market %d: %w", id, err)
	}
	return m, nil
}

// ListByCategory returns markets in a category with pagination and optional
// creation-time filtering.
func (s *MarketStore) ListByCategory(ctx context.Context, cat domain.Category, opts domain.ListOpts) ([]domain.Market, error) {
	query := `SELECT ` + marketCols + ` FROM markets WHERE category = $1`
	args := []any{string(cat)}
	argIdx := 2

	if opts.Since != nil {
		query += fmt.Sprintf(" AND created_at >= $%d", argIdx)
		args = append(args, *opts.Since)
		argIdx++
	}
	if opts.Until != nil {
		query += fmt.Sprintf(" AND created_at <= $%d", argIdx)
		args = append(args, *opts.Until)
		argIdx++
	}

	query += " ORDER BY created_at DESC"

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
		return nil, fmt.Errorf("postgres: list markets by category: %w", err)
	}
	defer rows.Close()

	var markets []domain.Market
	for rows.Next() {
		m, err := scanMarket(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan market: %w", err)
		}
		markets = append(markets, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list markets by category rows: %w", err)
	}
	return markets, nil
}
