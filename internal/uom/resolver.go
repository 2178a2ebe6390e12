// Package uom resolves conversion rates between units of measure.
package uom

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"stokgudang/backend/internal/domain"
	"stokgudang/backend/internal/store"
)

// Resolver answers rate lookups over a fixed set of conversion pairs.
// Resolution is direct-pair only: A->B uses a registered A->B rate, or the
// reciprocal of a registered B->A rate. Rates are never chained through an
// intermediate unit.
type Resolver struct {
	rates map[pairKey]decimal.Decimal
	units map[string]struct{}
}

type pairKey struct {
	from string
	to   string
}

func NewResolver(conversions []domain.UOMConversion) *Resolver {
	r := &Resolver{
		rates: make(map[pairKey]decimal.Decimal, len(conversions)),
		units: make(map[string]struct{}),
	}
	for _, c := range conversions {
		if c.Rate.Sign() <= 0 {
			continue
		}
		r.rates[pairKey{c.FromUomID, c.ToUomID}] = c.Rate
		r.units[c.FromUomID] = struct{}{}
		r.units[c.ToUomID] = struct{}{}
	}
	return r
}

// ResolveRate returns the multiplier that expresses one fromUomID in
// toUomID. Equal units resolve to 1 without a lookup.
func (r *Resolver) ResolveRate(fromUomID, toUomID string) (decimal.Decimal, error) {
	if fromUomID == "" || toUomID == "" {
		return decimal.Zero, fmt.Errorf("resolve rate: empty uom id: %w", store.ErrInvalidInput)
	}
	if fromUomID == toUomID {
		return decimal.NewFromInt(1), nil
	}
	if rate, ok := r.rates[pairKey{fromUomID, toUomID}]; ok {
		return rate, nil
	}
	if rate, ok := r.rates[pairKey{toUomID, fromUomID}]; ok {
		return decimal.NewFromInt(1).Div(rate), nil
	}
	return decimal.Zero, fmt.Errorf("no conversion from %s to %s: %w", fromUomID, toUomID, store.ErrMissingConversion)
}

// Convert expresses quantity of fromUomID in toUomID.
func (r *Resolver) Convert(quantity decimal.Decimal, fromUomID, toUomID string) (decimal.Decimal, error) {
	rate, err := r.ResolveRate(fromUomID, toUomID)
	if err != nil {
		return decimal.Zero, err
	}
	return quantity.Mul(rate), nil
}

// AvailableUnits lists every unit a quantity in baseUomID can be expressed
// in: the base unit itself plus all directly-convertible units.
func (r *Resolver) AvailableUnits(baseUomID string) []string {
	seen := map[string]struct{}{baseUomID: {}}
	units := []string{baseUomID}
	for key := range r.rates {
		var other string
		switch baseUomID {
		case key.from:
			other = key.to
		case key.to:
			other = key.from
		default:
			continue
		}
		if _, ok := seen[other]; ok {
			continue
		}
		seen[other] = struct{}{}
		units = append(units, other)
	}
	sort.Strings(units[1:])
	return units
}
