package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/predmarket/internal/domain"
	"github.com/alanyoungcy/predmarket/internal/fixed"
)

func TestResolve_BeforeEndTime(t *testing.T) {
	h := newHarness(t)
	id := h.createMarket(t)
	ctx := context.Background()

	// Scenario C: resolving before the end time is a state violation.
	err := h.eng.Resolve(ctx, resolver, id, 0)
	assert.ErrorIs(t, err, domain.ErrState)

	h.clock.Advance(25 * time.Hour)
	require.NoError(t, h.eng.Resolve(ctx, resolver, id, 0))

	m, err := h.eng.Market(id)
	require.NoError(t, err)
	assert.True(t, m.Resolved)
	assert.Equal(t, 0, m.WinningOption)

	// Resolving again is a state violation, not idempotent success.
	err = h.eng.Resolve(ctx, resolver, id, 1)
	assert.ErrorIs(t, err, domain.ErrState)
}

func TestResolve_EarlyResolutionFlag(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	p := h.defaultParams()
	p.EarlyResolution = true
	id, err := h.eng.CreateMarket(ctx, admin, p)
	require.NoError(t, err)

	require.NoError(t, h.eng.Resolve(ctx, resolver, id, 1))
}

func TestResolve_RequiresResolverCapability(t *testing.T) {
	h := newHarness(t)
	id := h.createMarket(t)

	h.clock.Advance(25 * time.Hour)
	err := h.eng.Resolve(context.Background(), trader1, id, 0)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestResolve_BadWinningOption(t *testing.T) {
	h := newHarness(t)
	id := h.createMarket(t)

	h.clock.Advance(25 * time.Hour)
	err := h.eng.Resolve(context.Background(), resolver, id, 7)
	assert.ErrorIs(t, err, domain.ErrValidation)

	m, err := h.eng.Market(id)
	require.NoError(t, err)
	assert.False(t, m.Resolved)
}

func TestResolve_UnlocksFees(t *testing.T) {
	h := newHarness(t)
	id := h.createMarket(t)
	ctx := context.Background()

	rec, err := h.eng.Buy(ctx, trader1, id, 0, 100*fixed.One, noLimit, noLimit)
	require.NoError(t, err)
	require.Greater(t, rec.Fee, int64(0))

	h.clock.Advance(25 * time.Hour)
	require.NoError(t, h.eng.Resolve(ctx, resolver, id, 0))

	fees := h.eng.FeeTotals()
	assert.Equal(t, rec.Fee, fees.Collected)
	assert.Equal(t, int64(0), fees.Locked)
	assert.Equal(t, rec.Fee, fees.Unlocked)
	assert.Equal(t, fees.Collected, fees.Locked+fees.Unlocked)
}

func TestDispute_BlocksResolution(t *testing.T) {
	h := newHarness(t)
	id := h.createMarket(t)
	ctx := context.Background()

	_, err := h.eng.Buy(ctx, trader1, id, 0, 10*fixed.One, noLimit, noLimit)
	require.NoError(t, err)

	require.NoError(t, h.eng.Dispute(ctx, trader1, id, "ambiguous wording"))

	m, err := h.eng.Market(id)
	require.NoError(t, err)
	assert.True(t, m.Disputed)
	assert.Equal(t, "ambiguous wording", m.DisputeReason)

	h.clock.Advance(25 * time.Hour)
	err = h.eng.Resolve(ctx, resolver, id, 0)
	assert.ErrorIs(t, err, domain.ErrState)

	// Invalidation is still available for a disputed market.
	require.NoError(t, h.eng.Invalidate(ctx, resolver, id))
}

func TestDispute_RequiresPosition(t *testing.T) {
	h := newHarness(t)
	id := h.createMarket(t)

	err := h.eng.Dispute(context.Background(), trader2, id, "no stake")
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestLifecycle_TerminalStatesExclusive(t *testing.T) {
	h := newHarness(t)
	id := h.createMarket(t)
	ctx := context.Background()

	h.clock.Advance(25 * time.Hour)
	require.NoError(t, h.eng.Resolve(ctx, resolver, id, 0))

	// A resolved market cannot be invalidated, and vice versa.
	err := h.eng.Invalidate(ctx, resolver, id)
	assert.ErrorIs(t, err, domain.ErrState)

	id2 := h.createMarket(t)
	require.NoError(t, h.eng.Invalidate(ctx, resolver, id2))
	err = h.eng.Resolve(ctx, resolver, id2, 0)
	assert.ErrorIs(t, err, domain.ErrState)

	// Terminal markets reject trading and disputes.
	_, err = h.eng.Buy(ctx, trader1, id, 0, fixed.One, noLimit, noLimit)
	assert.ErrorIs(t, err, domain.ErrState)
	err = h.eng.Dispute(ctx, trader1, id, "late")
	assert.ErrorIs(t, err, domain.ErrState)
}

func TestInvalidate_VoidsFees(t *testing.T) {
	h := newHarness(t)
	id := h.createMarket(t)
	ctx := context.Background()

	rec, err := h.eng.Buy(ctx, trader1, id, 0, 100*fixed.One, noLimit, noLimit)
	require.NoError(t, err)
	require.Greater(t, rec.Fee, int64(0))

	require.NoError(t, h.eng.Invalidate(ctx, resolver, id))

	// The market's fee accrual is removed from both locked and collected.
	fees := h.eng.FeeTotals()
	assert.Equal(t, int64(0), fees.Collected)
	assert.Equal(t, int64(0), fees.Locked)
	assert.Equal(t, int64(0), fees.Unlocked)
	assert.Equal(t, fees.Collected, fees.Locked+fees.Unlocked)
}

func TestValidate_OnceOnly(t *testing.T) {
	h := newHarness(t)
	id := h.createMarket(t)
	ctx := context.Background()

	require.NoError(t, h.eng.Validate(ctx, resolver, id))

	m, err := h.eng.Market(id)
	require.NoError(t, err)
	assert.True(t, m.Validated)

	err = h.eng.Validate(ctx, resolver, id)
	assert.ErrorIs(t, err, domain.ErrState)

	// Validation is informational; trading continues.
	_, err = h.eng.Buy(ctx, trader1, id, 0, fixed.One, noLimit, noLimit)
	assert.NoError(t, err)
}

func TestValidate_RequiresValidatorCapability(t *testing.T) {
	h := newHarness(t)
	id := h.createMarket(t)

	err := h.eng.Validate(context.Background(), operator, id)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}
