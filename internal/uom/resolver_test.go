package uom

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"stokgudang/backend/internal/domain"
	"stokgudang/backend/internal/store"
)

func newTestResolver() *Resolver {
	return NewResolver([]domain.UOMConversion{
		{FromUomID: "box", ToUomID: "pcs", Rate: decimal.NewFromInt(12)},
		{FromUomID: "kg", ToUomID: "gram", Rate: decimal.NewFromInt(1000)},
	})
}

func TestResolveRateIdentity(t *testing.T) {
	r := newTestResolver()
	rate, err := r.ResolveRate("pcs", "pcs")
	if err != nil {
		t.Fatalf("identity rate: %v", err)
	}
	if !rate.Equal(decimal.NewFromInt(1)) {
		t.Fatalf("identity rate = %s, want 1", rate)
	}
}

func TestResolveRateDirect(t *testing.T) {
	r := newTestResolver()
	rate, err := r.ResolveRate("box", "pcs")
	if err != nil {
		t.Fatalf("direct rate: %v", err)
	}
	if !rate.Equal(decimal.NewFromInt(12)) {
		t.Fatalf("box->pcs = %s, want 12", rate)
	}
}

func TestResolveRateInverse(t *testing.T) {
	r := newTestResolver()
	rate, err := r.ResolveRate("pcs", "box")
	if err != nil {
		t.Fatalf("inverse rate: %v", err)
	}
	want := decimal.NewFromInt(1).Div(decimal.NewFromInt(12))
	if !rate.Equal(want) {
		t.Fatalf("pcs->box = %s, want %s", rate, want)
	}
}

func TestResolveRateMissing(t *testing.T) {
	r := newTestResolver()
	if _, err := r.ResolveRate("box", "gram"); !errors.Is(err, store.ErrMissingConversion) {
		t.Fatalf("box->gram err = %v, want ErrMissingConversion", err)
	}
}

func TestConvert(t *testing.T) {
	r := newTestResolver()
	got, err := r.Convert(decimal.NewFromInt(3), "box", "pcs")
	if err != nil {
		t.Fatalf("convert: %v", err)
	}
	if !got.Equal(decimal.NewFromInt(36)) {
		t.Fatalf("3 box = %s pcs, want 36", got)
	}
}

func TestAvailableUnits(t *testing.T) {
	r := newTestResolver()
	units := r.AvailableUnits("pcs")
	if len(units) != 2 || units[0] != "pcs" || units[1] != "box" {
		t.Fatalf("available units for pcs = %v", units)
	}
	units = r.AvailableUnits("liter")
	if len(units) != 1 || units[0] != "liter" {
		t.Fatalf("available units for unknown uom = %v", units)
	}
}
