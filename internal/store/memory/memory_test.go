package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"stokgudang/backend/internal/domain"
	"stokgudang/backend/internal/store"
)

func TestApplyMovementsIsAtomic(t *testing.T) {
	s := NewSeeded()
	ctx := context.Background()

	before, err := s.GetStock(ctx, "prd-mie", "gudang-utama")
	if err != nil {
		t.Fatalf("get stock failed: %v", err)
	}

	err = s.ApplyMovements(ctx, []domain.Movement{
		{ProductID: "prd-mie", LocationID: "gudang-utama", Type: domain.MovementTypeAdjustment, Quantity: decimal.NewFromInt(10)},
		{ProductID: "prd-mie", LocationID: "gudang-utama", Type: domain.MovementTypeAdjustment, Quantity: decimal.NewFromInt(-9999)},
	})
	if !errors.Is(err, store.ErrInsufficientStock) {
		t.Fatalf("expected ErrInsufficientStock, got %v", err)
	}

	after, err := s.GetStock(ctx, "prd-mie", "gudang-utama")
	if err != nil {
		t.Fatalf("get stock failed: %v", err)
	}
	if !after.Quantity.Equal(before.Quantity) {
		t.Fatalf("failed batch must not change any level: before %s, after %s", before.Quantity, after.Quantity)
	}

	movements, err := s.ListMovements(ctx, store.MovementFilter{ProductID: "prd-mie", LocationID: "gudang-utama", Limit: 100})
	if err != nil {
		t.Fatalf("list movements failed: %v", err)
	}
	for _, m := range movements {
		if m.Type == domain.MovementTypeAdjustment && m.Quantity.Equal(decimal.NewFromInt(10)) {
			t.Fatalf("failed batch must not record any movement")
		}
	}
}

func TestApplyMovementsSequentialDebits(t *testing.T) {
	s := NewSeeded()
	ctx := context.Background()

	// Two debits that only pass if the first is projected before checking the second.
	err := s.ApplyMovements(ctx, []domain.Movement{
		{ProductID: "prd-mie", LocationID: "gudang-utama", Type: domain.MovementTypeAdjustment, Quantity: decimal.NewFromInt(-100)},
		{ProductID: "prd-mie", LocationID: "gudang-utama", Type: domain.MovementTypeAdjustment, Quantity: decimal.NewFromInt(-20)},
	})
	if err != nil {
		t.Fatalf("batch within available stock must succeed: %v", err)
	}

	level, err := s.GetStock(ctx, "prd-mie", "gudang-utama")
	if err != nil {
		t.Fatalf("get stock failed: %v", err)
	}
	if !level.Quantity.IsZero() {
		t.Fatalf("expected zero stock, got %s", level.Quantity)
	}

	err = s.ApplyMovements(ctx, []domain.Movement{
		{ProductID: "prd-mie", LocationID: "gudang-utama", Type: domain.MovementTypeAdjustment, Quantity: decimal.NewFromInt(-1)},
	})
	if !errors.Is(err, store.ErrInsufficientStock) {
		t.Fatalf("expected ErrInsufficientStock on empty level, got %v", err)
	}
}

func TestApplyMovementsValidatesInput(t *testing.T) {
	s := New()
	ctx := context.Background()

	err := s.ApplyMovements(ctx, []domain.Movement{
		{ProductID: "", LocationID: "gudang-utama", Type: domain.MovementTypeAdjustment, Quantity: decimal.NewFromInt(1)},
	})
	if !errors.Is(err, store.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for empty product id, got %v", err)
	}

	err = s.ApplyMovements(ctx, []domain.Movement{
		{ProductID: "prd-mie", LocationID: "gudang-utama", Type: domain.MovementTypeAdjustment, Quantity: decimal.Zero},
	})
	if !errors.Is(err, store.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for zero quantity, got %v", err)
	}
}

func TestReconstructStockMatchesSeededLevels(t *testing.T) {
	s := NewSeeded()
	ctx := context.Background()

	levels, err := s.ListStockLevels(ctx, "gudang-utama")
	if err != nil {
		t.Fatalf("list levels failed: %v", err)
	}
	if len(levels) == 0 {
		t.Fatalf("expected seeded levels")
	}
	for _, level := range levels {
		sum, err := s.ReconstructStock(ctx, level.ProductID, level.LocationID)
		if err != nil {
			t.Fatalf("reconstruct failed: %v", err)
		}
		if !sum.Quantity.Equal(level.Quantity) {
			t.Fatalf("ledger sum %s does not match level %s for %s", sum.Quantity, level.Quantity, level.ProductID)
		}
	}
}

func TestSaveProcurementRejectsUnknownID(t *testing.T) {
	s := NewSeeded()

	unknown := domain.Procurement{ID: "proc-missing"}
	_, err := s.SaveProcurement(context.Background(), unknown, nil)
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
