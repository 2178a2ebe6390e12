package postgres

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"stokgudang/backend/internal/domain"
	"stokgudang/backend/internal/store"
)

func TestApplyMovementsAtomicityAgainstPostgres(t *testing.T) {
	databaseURL := os.Getenv("STOKGUDANG_TEST_DATABASE_URL")
	if databaseURL == "" {
		t.Skip("set STOKGUDANG_TEST_DATABASE_URL to run postgres integration test")
	}

	ctx := context.Background()
	s, err := New(ctx, databaseURL)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	t.Cleanup(func() {
		_ = s.Close()
	})

	if err := s.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	stamp := time.Now().UnixNano()
	productID := fmt.Sprintf("prd-it-%d", stamp)
	locationID := fmt.Sprintf("loc-it-%d", stamp)
	sku := fmt.Sprintf("SKU-IT-%d", stamp)

	t.Cleanup(func() {
		_, _ = s.db.ExecContext(ctx, `DELETE FROM stock_movements WHERE product_id = $1`, productID)
		_, _ = s.db.ExecContext(ctx, `DELETE FROM stock_levels WHERE product_id = $1`, productID)
		_, _ = s.db.ExecContext(ctx, `DELETE FROM products WHERE id = $1`, productID)
		_, _ = s.db.ExecContext(ctx, `DELETE FROM locations WHERE id = $1`, locationID)
	})

	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO uoms (id, name, symbol)
		VALUES ('pcs', 'Pieces', 'pcs')
		ON CONFLICT (id) DO NOTHING
	`); err != nil {
		t.Fatalf("seed uom: %v", err)
	}
	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO locations (id, name, active) VALUES ($1, 'Gudang Integrasi', true)
	`, locationID); err != nil {
		t.Fatalf("seed location: %v", err)
	}
	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO products (id, sku, name, base_uom_id, active)
		VALUES ($1, $2, 'Produk Integrasi', 'pcs', true)
	`, productID, sku); err != nil {
		t.Fatalf("seed product: %v", err)
	}

	err = s.ApplyMovements(ctx, []domain.Movement{
		{ProductID: productID, LocationID: locationID, Type: domain.MovementTypeAdjustment, Quantity: decimal.NewFromInt(50), Notes: "saldo awal"},
	})
	if err != nil {
		t.Fatalf("apply opening balance: %v", err)
	}

	// A batch whose second movement overdraws must leave the level untouched.
	err = s.ApplyMovements(ctx, []domain.Movement{
		{ProductID: productID, LocationID: locationID, Type: domain.MovementTypeAdjustment, Quantity: decimal.NewFromInt(10)},
		{ProductID: productID, LocationID: locationID, Type: domain.MovementTypeAdjustment, Quantity: decimal.NewFromInt(-500)},
	})
	if !errors.Is(err, store.ErrInsufficientStock) {
		t.Fatalf("expected ErrInsufficientStock, got %v", err)
	}

	level, err := s.GetStock(ctx, productID, locationID)
	if err != nil {
		t.Fatalf("get stock: %v", err)
	}
	if !level.Quantity.Equal(decimal.NewFromInt(50)) {
		t.Fatalf("expected level 50 after failed batch, got %s", level.Quantity)
	}

	reconstructed, err := s.ReconstructStock(ctx, productID, locationID)
	if err != nil {
		t.Fatalf("reconstruct stock: %v", err)
	}
	if !reconstructed.Quantity.Equal(level.Quantity) {
		t.Fatalf("ledger sum %s does not match level %s", reconstructed.Quantity, level.Quantity)
	}
}

func TestNextInvoiceNumberPastFourDigits(t *testing.T) {
	databaseURL := os.Getenv("STOKGUDANG_TEST_DATABASE_URL")
	if databaseURL == "" {
		t.Skip("set STOKGUDANG_TEST_DATABASE_URL to run postgres integration test")
	}

	ctx := context.Background()
	s, err := New(ctx, databaseURL)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	t.Cleanup(func() {
		_ = s.Close()
	})
	if err := s.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	stamp := time.Now().UnixNano()
	locationID := fmt.Sprintf("loc-inv-%d", stamp)
	// A month far in the past keeps the fixture invoice numbers out of live data.
	at := time.Date(2003, time.July, 15, 0, 0, 0, 0, time.UTC)
	prefix := "INV-200307-"

	t.Cleanup(func() {
		_, _ = s.db.ExecContext(ctx, `DELETE FROM sales WHERE invoice_number LIKE $1`, prefix+"%")
		_, _ = s.db.ExecContext(ctx, `DELETE FROM locations WHERE id = $1`, locationID)
	})

	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO locations (id, name, active) VALUES ($1, 'Gudang Faktur', true)
	`, locationID); err != nil {
		t.Fatalf("seed location: %v", err)
	}
	for _, suffix := range []string{"9999", "10000"} {
		if _, err := s.db.ExecContext(ctx, `
			INSERT INTO sales (id, location_id, invoice_number) VALUES ($1, $2, $3)
		`, fmt.Sprintf("sale-inv-%d-%s", stamp, suffix), locationID, prefix+suffix); err != nil {
			t.Fatalf("seed sale %s: %v", suffix, err)
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		t.Fatalf("begin tx: %v", err)
	}
	defer func() { _ = tx.Rollback() }()

	// Lexicographically "9999" > "10000"; the numeric suffix must win.
	next, err := nextInvoiceNumber(ctx, tx, at)
	if err != nil {
		t.Fatalf("next invoice number: %v", err)
	}
	if next != prefix+"10001" {
		t.Fatalf("expected %s10001, got %s", prefix, next)
	}
}
