package engine

import (
	"time"

	"github.com/alanyoungcy/predmarket/internal/domain"
	"github.com/alanyoungcy/predmarket/internal/fixed"
)

// Pricing is a share-weighted approximation, not a true exponential LMSR
// curve: an option's price is its share of the sum of all options' share
// counts. Trade cost evaluates the price at the midpoint of the share change
// (trapezoidal approximation of the marginal-cost integral). This matches
// the deployed behavior and must not be "corrected" to a literal LMSR.

// optionPrice returns option i's price with its share count replaced by the
// hypothetical value hyp. The result is a fraction of fixed.Scale in
// [0, Scale].
func optionPrice(options []domain.Option, i int, hyp int64) (int64, error) {
	if i < 0 || i >= len(options) {
		return 0, domain.Validationf("option index %d out of range", i)
	}
	if hyp < 0 {
		return 0, domain.Validationf("negative hypothetical share count %d", hyp)
	}

	var sum int64
	var err error
	for j := range options {
		c := options[j].Shares
		if j == i {
			c = hyp
		}
		if sum, err = fixed.Add(sum, c); err != nil {
			return 0, err
		}
	}
	if sum <= 0 {
		return 0, domain.Validationf("market has no outstanding shares")
	}

	p, err := fixed.Div(hyp, sum)
	if err != nil {
		return 0, err
	}
	// hyp <= sum by construction, so p is already within [0, Scale].
	return p, nil
}

// costOfBuy returns the cost of buying qty shares of option i and the
// executed per-share price. The price is evaluated at the option's shares
// incremented by half the quantity.
func costOfBuy(options []domain.Option, i int, qty int64) (cost, pricePerShare int64, err error) {
	if qty <= 0 {
		return 0, 0, domain.Validationf("quantity must be positive, got %d", qty)
	}

	mid, err := fixed.Add(options[i].Shares, qty/2)
	if err != nil {
		return 0, 0, err
	}
	p, err := optionPrice(options, i, mid)
	if err != nil {
		return 0, 0, err
	}

	cost, err = fixed.Mul(p, qty)
	if err != nil {
		return 0, 0, err
	}
	pricePerShare, err = fixed.Div(cost, qty)
	if err != nil {
		return 0, 0, err
	}
	return cost, pricePerShare, nil
}

// proceedsOfSell is the symmetric decrement form of costOfBuy: the price is
// evaluated at the option's shares decremented by half the quantity.
func proceedsOfSell(options []domain.Option, i int, qty int64) (proceeds, pricePerShare int64, err error) {
	if qty <= 0 {
		return 0, 0, domain.Validationf("quantity must be positive, got %d", qty)
	}
	if qty > options[i].Shares {
		return 0, 0, domain.Insufficientf("sell quantity %d exceeds outstanding shares %d", qty, options[i].Shares)
	}

	mid, err := fixed.Sub(options[i].Shares, qty/2)
	if err != nil {
		return 0, 0, err
	}
	p, err := optionPrice(options, i, mid)
	if err != nil {
		return 0, 0, err
	}

	proceeds, err = fixed.Mul(p, qty)
	if err != nil {
		return 0, 0, err
	}
	pricePerShare, err = fixed.Div(proceeds, qty)
	if err != nil {
		return 0, 0, err
	}
	return proceeds, pricePerShare, nil
}

// repriceAll recomputes and stores every option's current price from the
// live share counts and appends a price-history point for the touched
// option. Callers hold the write lock.
func (e *Engine) repriceAll(m *domain.Market, touched int, ts time.Time) error {
	for i := range m.Options {
		p, err := optionPrice(m.Options, i, m.Options[i].Shares)
		if err != nil {
			return err
		}
		m.Options[i].Price = p
	}
	e.history[m.ID] = append(e.history[m.ID], domain.PricePoint{
		Option:    touched,
		Price:     m.Options[touched].Price,
		Timestamp: ts,
	})
	return nil
}
