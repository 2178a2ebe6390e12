package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"stokgudang/backend/internal/cache"
	"stokgudang/backend/internal/domain"
	"stokgudang/backend/internal/store"
	"stokgudang/backend/internal/store/memory"
)

func newTestService() *Service {
	repo := memory.NewSeeded()
	return New(repo, cache.NoopStockCache{}, 5*time.Second, "gudang-utama")
}

func adminCtx() context.Context {
	return WithActor(context.Background(), domain.Actor{Username: "admin", Role: "admin"})
}

func assertReconciled(t *testing.T, svc *Service, locationID string) {
	t.Helper()
	rows, err := svc.Reconcile(adminCtx(), locationID)
	if err != nil {
		t.Fatalf("reconcile failed: %v", err)
	}
	for _, row := range rows {
		if !row.Consistent {
			t.Fatalf("ledger mismatch for %s at %s: level %s, ledger sum %s",
				row.ProductID, row.LocationID, row.Level, row.LedgerSum)
		}
	}
}

func stockQty(t *testing.T, svc *Service, productID, locationID string) decimal.Decimal {
	t.Helper()
	level, err := svc.GetStock(context.Background(), productID, locationID)
	if err != nil {
		t.Fatalf("get stock failed: %v", err)
	}
	return level.Quantity
}

func TestApproveProcurementConvertsToBaseUnits(t *testing.T) {
	svc := newTestService()
	ctx := adminCtx()

	created, err := svc.CreateProcurement(ctx, domain.ProcurementCreateRequest{
		ProductID:  "prd-mie",
		LocationID: "gudang-utama",
		Quantity:   decimal.NewFromInt(1),
		UomID:      "box",
		UnitPrice:  decimal.NewFromInt(45000),
		Supplier:   "PT Sumber Pangan",
	})
	if err != nil {
		t.Fatalf("create procurement failed: %v", err)
	}
	if created.Status != domain.AdjustmentStatusPending {
		t.Fatalf("expected pending status, got %s", created.Status)
	}
	if !stockQty(t, svc, "prd-mie", "gudang-utama").Equal(decimal.NewFromInt(120)) {
		t.Fatalf("pending procurement must not touch stock")
	}

	approved, err := svc.ApproveProcurement(ctx, created.ID)
	if err != nil {
		t.Fatalf("approve failed: %v", err)
	}
	if approved.Applied == nil {
		t.Fatalf("expected applied effect to be recorded")
	}
	if !approved.Applied.Quantity.Equal(decimal.NewFromInt(12)) {
		t.Fatalf("expected applied quantity 12 pcs, got %s", approved.Applied.Quantity)
	}
	if !stockQty(t, svc, "prd-mie", "gudang-utama").Equal(decimal.NewFromInt(132)) {
		t.Fatalf("expected 132 pcs after approving a box")
	}
	assertReconciled(t, svc, "gudang-utama")
}

func TestApproveIsOneShot(t *testing.T) {
	svc := newTestService()
	ctx := adminCtx()

	created, err := svc.CreateProcurement(ctx, domain.ProcurementCreateRequest{
		ProductID:  "prd-mie",
		LocationID: "gudang-utama",
		Quantity:   decimal.NewFromInt(10),
		UomID:      "pcs",
	})
	if err != nil {
		t.Fatalf("create procurement failed: %v", err)
	}
	if _, err := svc.ApproveProcurement(ctx, created.ID); err != nil {
		t.Fatalf("first approve failed: %v", err)
	}
	if _, err := svc.ApproveProcurement(ctx, created.ID); !errors.Is(err, store.ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState on second approve, got %v", err)
	}
	if !stockQty(t, svc, "prd-mie", "gudang-utama").Equal(decimal.NewFromInt(130)) {
		t.Fatalf("double approve must not apply the effect twice")
	}
}

func TestRejectApprovedProcurementReversesEffect(t *testing.T) {
	svc := newTestService()
	ctx := adminCtx()

	created, err := svc.CreateProcurement(ctx, domain.ProcurementCreateRequest{
		ProductID:  "prd-mie",
		LocationID: "gudang-utama",
		Quantity:   decimal.NewFromInt(1),
		UomID:      "box",
	})
	if err != nil {
		t.Fatalf("create procurement failed: %v", err)
	}
	if _, err := svc.ApproveProcurement(ctx, created.ID); err != nil {
		t.Fatalf("approve failed: %v", err)
	}

	rejected, err := svc.RejectProcurement(ctx, created.ID, "salah input")
	if err != nil {
		t.Fatalf("reject failed: %v", err)
	}
	if rejected.Applied != nil {
		t.Fatalf("expected applied effect to be cleared after reversal")
	}
	if !stockQty(t, svc, "prd-mie", "gudang-utama").Equal(decimal.NewFromInt(120)) {
		t.Fatalf("expected stock back at 120 after reversal")
	}

	if _, err := svc.RejectProcurement(ctx, created.ID, "lagi"); !errors.Is(err, store.ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState on double reject, got %v", err)
	}
	assertReconciled(t, svc, "gudang-utama")
}

func TestApproveAfterRejectReappliesEffect(t *testing.T) {
	svc := newTestService()
	ctx := adminCtx()

	created, err := svc.CreateProcurement(ctx, domain.ProcurementCreateRequest{
		ProductID:  "prd-mie",
		LocationID: "gudang-utama",
		Quantity:   decimal.NewFromInt(1),
		UomID:      "box",
	})
	if err != nil {
		t.Fatalf("create procurement failed: %v", err)
	}
	if _, err := svc.ApproveProcurement(ctx, created.ID); err != nil {
		t.Fatalf("approve failed: %v", err)
	}
	if _, err := svc.RejectProcurement(ctx, created.ID, "ditahan dulu"); err != nil {
		t.Fatalf("reject failed: %v", err)
	}
	if !stockQty(t, svc, "prd-mie", "gudang-utama").Equal(decimal.NewFromInt(120)) {
		t.Fatalf("expected stock back at 120 after reject")
	}

	// Rejected is not a dead end: approval applies the effect again, once.
	approved, err := svc.ApproveProcurement(ctx, created.ID)
	if err != nil {
		t.Fatalf("approve after reject failed: %v", err)
	}
	if approved.Status != domain.AdjustmentStatusApproved {
		t.Fatalf("expected approved status, got %s", approved.Status)
	}
	if approved.Applied == nil || !approved.Applied.Quantity.Equal(decimal.NewFromInt(12)) {
		t.Fatalf("expected recorded effect of 12 pcs, got %+v", approved.Applied)
	}
	if !stockQty(t, svc, "prd-mie", "gudang-utama").Equal(decimal.NewFromInt(132)) {
		t.Fatalf("expected 132 pcs after re-approval")
	}
	assertReconciled(t, svc, "gudang-utama")
}

func TestApproveDisposalAfterReject(t *testing.T) {
	svc := newTestService()
	ctx := adminCtx()

	created, err := svc.CreateDisposal(ctx, domain.DisposalCreateRequest{
		ProductID:  "prd-gula",
		LocationID: "gudang-utama",
		Quantity:   decimal.NewFromInt(5),
		UomID:      "kg",
		Reason:     "rusak",
	})
	if err != nil {
		t.Fatalf("create disposal failed: %v", err)
	}
	if _, err := svc.RejectDisposal(ctx, created.ID, ""); err != nil {
		t.Fatalf("reject failed: %v", err)
	}
	if _, err := svc.ApproveDisposal(ctx, created.ID); err != nil {
		t.Fatalf("approve after reject failed: %v", err)
	}
	if !stockQty(t, svc, "prd-gula", "gudang-utama").Equal(decimal.NewFromInt(115)) {
		t.Fatalf("expected 115 kg after approving the rejected disposal")
	}
	assertReconciled(t, svc, "gudang-utama")
}

func TestApproveRequiresAdmin(t *testing.T) {
	svc := newTestService()
	staffCtx := WithActor(context.Background(), domain.Actor{Username: "staff", Role: "staff"})

	created, err := svc.CreateProcurement(staffCtx, domain.ProcurementCreateRequest{
		ProductID:  "prd-mie",
		LocationID: "gudang-utama",
		Quantity:   decimal.NewFromInt(5),
		UomID:      "pcs",
	})
	if err != nil {
		t.Fatalf("create procurement failed: %v", err)
	}
	if _, err := svc.ApproveProcurement(staffCtx, created.ID); !errors.Is(err, store.ErrForbidden) {
		t.Fatalf("expected approval to be refused for staff, got %v", err)
	}
}

func TestMissingConversionRejectedBeforeAnyMutation(t *testing.T) {
	svc := newTestService()
	ctx := adminCtx()

	_, err := svc.CreateProcurement(ctx, domain.ProcurementCreateRequest{
		ProductID:  "prd-mie",
		LocationID: "gudang-utama",
		Quantity:   decimal.NewFromInt(2),
		UomID:      "karung",
	})
	if !errors.Is(err, store.ErrMissingConversion) {
		t.Fatalf("expected ErrMissingConversion for karung on a pcs product, got %v", err)
	}

	procurements, err := svc.ListProcurements(ctx, "", true, 50)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(procurements) != 0 {
		t.Fatalf("failed create must not persist anything")
	}
	assertReconciled(t, svc, "gudang-utama")
}

func TestDisposalLifecycle(t *testing.T) {
	svc := newTestService()
	ctx := adminCtx()

	created, err := svc.CreateDisposal(ctx, domain.DisposalCreateRequest{
		ProductID:  "prd-telur",
		LocationID: "gudang-utama",
		Quantity:   decimal.NewFromInt(3),
		UomID:      "kg",
		Reason:     "pecah saat bongkar muat",
	})
	if err != nil {
		t.Fatalf("create disposal failed: %v", err)
	}
	if _, err := svc.ApproveDisposal(ctx, created.ID); err != nil {
		t.Fatalf("approve disposal failed: %v", err)
	}
	if !stockQty(t, svc, "prd-telur", "gudang-utama").Equal(decimal.NewFromInt(117)) {
		t.Fatalf("expected 117 kg after disposing 3 kg")
	}

	deleted, err := svc.SoftDeleteDisposal(ctx, created.ID)
	if err != nil {
		t.Fatalf("soft delete failed: %v", err)
	}
	if deleted.DeletedAt == nil {
		t.Fatalf("expected deleted_at to be set")
	}
	if !stockQty(t, svc, "prd-telur", "gudang-utama").Equal(decimal.NewFromInt(120)) {
		t.Fatalf("deleting an approved disposal must restore the stock")
	}

	restored, err := svc.RestoreDisposal(ctx, created.ID)
	if err != nil {
		t.Fatalf("restore failed: %v", err)
	}
	if restored.DeletedAt != nil {
		t.Fatalf("expected deleted_at to be cleared")
	}
	if !stockQty(t, svc, "prd-telur", "gudang-utama").Equal(decimal.NewFromInt(117)) {
		t.Fatalf("restoring an approved disposal must re-apply the effect")
	}
	assertReconciled(t, svc, "gudang-utama")
}

func TestApproveDisposalFailsOnInsufficientStock(t *testing.T) {
	svc := newTestService()
	ctx := adminCtx()

	created, err := svc.CreateDisposal(ctx, domain.DisposalCreateRequest{
		ProductID:  "prd-telur",
		LocationID: "gudang-utama",
		Quantity:   decimal.NewFromInt(500),
		UomID:      "kg",
		Reason:     "kadaluarsa",
	})
	if err != nil {
		t.Fatalf("create disposal failed: %v", err)
	}
	if _, err := svc.ApproveDisposal(ctx, created.ID); !errors.Is(err, store.ErrInsufficientStock) {
		t.Fatalf("expected ErrInsufficientStock, got %v", err)
	}

	got, err := svc.GetDisposal(ctx, created.ID)
	if err != nil {
		t.Fatalf("get disposal failed: %v", err)
	}
	if got.Status != domain.AdjustmentStatusPending {
		t.Fatalf("failed approval must leave the disposal pending, got %s", got.Status)
	}
	if !stockQty(t, svc, "prd-telur", "gudang-utama").Equal(decimal.NewFromInt(120)) {
		t.Fatalf("failed approval must not touch stock")
	}
}

func TestUpdateApprovedProcurementCorrectsStock(t *testing.T) {
	svc := newTestService()
	ctx := adminCtx()

	created, err := svc.CreateProcurement(ctx, domain.ProcurementCreateRequest{
		ProductID:  "prd-mie",
		LocationID: "gudang-utama",
		Quantity:   decimal.NewFromInt(1),
		UomID:      "box",
	})
	if err != nil {
		t.Fatalf("create procurement failed: %v", err)
	}
	if _, err := svc.ApproveProcurement(ctx, created.ID); err != nil {
		t.Fatalf("approve failed: %v", err)
	}

	newQty := decimal.NewFromInt(2)
	updated, err := svc.UpdateProcurement(ctx, created.ID, domain.ProcurementUpdateRequest{Quantity: &newQty})
	if err != nil {
		t.Fatalf("update failed: %v", err)
	}
	if !updated.Applied.Quantity.Equal(decimal.NewFromInt(24)) {
		t.Fatalf("expected recorded effect of 24 pcs, got %s", updated.Applied.Quantity)
	}
	if !stockQty(t, svc, "prd-mie", "gudang-utama").Equal(decimal.NewFromInt(144)) {
		t.Fatalf("expected 144 pcs after correcting 1 box to 2 boxes")
	}
	assertReconciled(t, svc, "gudang-utama")
}

func TestCreateSaleIsAllOrNothing(t *testing.T) {
	svc := newTestService()
	ctx := adminCtx()

	_, err := svc.CreateSale(ctx, domain.SaleCreateRequest{
		LocationID: "toko-depan",
		Items: []domain.SaleItemRequest{
			{ProductID: "prd-mie", Quantity: decimal.NewFromInt(5), UomID: "pcs", UnitPrice: decimal.NewFromInt(3500)},
			{ProductID: "prd-susu", Quantity: decimal.NewFromInt(999), UomID: "pcs", UnitPrice: decimal.NewFromInt(18000)},
		},
	})
	if !errors.Is(err, store.ErrInsufficientStock) {
		t.Fatalf("expected ErrInsufficientStock, got %v", err)
	}

	if !stockQty(t, svc, "prd-mie", "toko-depan").Equal(decimal.NewFromInt(120)) {
		t.Fatalf("valid line must not be applied when another line fails")
	}
	sales, err := svc.ListSales(ctx, "toko-depan", true, 50)
	if err != nil {
		t.Fatalf("list sales failed: %v", err)
	}
	if len(sales) != 0 {
		t.Fatalf("failed sale must not be persisted")
	}
	assertReconciled(t, svc, "toko-depan")
}

func TestSaleDiscountClampedToSubtotal(t *testing.T) {
	svc := newTestService()
	ctx := adminCtx()

	sale, err := svc.CreateSale(ctx, domain.SaleCreateRequest{
		LocationID: "toko-depan",
		Items: []domain.SaleItemRequest{
			{ProductID: "prd-mie", Quantity: decimal.NewFromInt(2), UomID: "pcs", UnitPrice: decimal.NewFromInt(3500)},
		},
		DiscountType:  domain.DiscountTypeFixed,
		DiscountValue: decimal.NewFromInt(1000000),
	})
	if err != nil {
		t.Fatalf("create sale failed: %v", err)
	}
	if !sale.Subtotal.Equal(decimal.NewFromInt(7000)) {
		t.Fatalf("expected subtotal 7000, got %s", sale.Subtotal)
	}
	if !sale.TotalAmount.IsZero() {
		t.Fatalf("oversized fixed discount must clamp total to zero, got %s", sale.TotalAmount)
	}
}

func TestSalePercentageDiscount(t *testing.T) {
	svc := newTestService()
	ctx := adminCtx()

	sale, err := svc.CreateSale(ctx, domain.SaleCreateRequest{
		LocationID: "toko-depan",
		Items: []domain.SaleItemRequest{
			{ProductID: "prd-mie", Quantity: decimal.NewFromInt(4), UomID: "pcs", UnitPrice: decimal.NewFromInt(2500)},
		},
		DiscountType:  domain.DiscountTypePercentage,
		DiscountValue: decimal.NewFromInt(10),
	})
	if err != nil {
		t.Fatalf("create sale failed: %v", err)
	}
	if !sale.TotalAmount.Equal(decimal.NewFromInt(9000)) {
		t.Fatalf("expected total 9000 after 10%% off 10000, got %s", sale.TotalAmount)
	}
}

func TestInvoiceNumbersAreSequentialPerMonth(t *testing.T) {
	svc := newTestService()
	ctx := adminCtx()

	req := domain.SaleCreateRequest{
		LocationID: "toko-depan",
		Items: []domain.SaleItemRequest{
			{ProductID: "prd-kopi", Quantity: decimal.NewFromInt(1), UomID: "pcs", UnitPrice: decimal.NewFromInt(1500)},
		},
	}
	first, err := svc.CreateSale(ctx, req)
	if err != nil {
		t.Fatalf("first sale failed: %v", err)
	}
	second, err := svc.CreateSale(ctx, req)
	if err != nil {
		t.Fatalf("second sale failed: %v", err)
	}

	prefix := fmt.Sprintf("INV-%s-", time.Now().UTC().Format("200601"))
	if first.InvoiceNumber != prefix+"0001" {
		t.Fatalf("expected %s0001, got %s", prefix, first.InvoiceNumber)
	}
	if second.InvoiceNumber != prefix+"0002" {
		t.Fatalf("expected %s0002, got %s", prefix, second.InvoiceNumber)
	}
}

func TestFailedSaleDoesNotConsumeInvoiceNumber(t *testing.T) {
	svc := newTestService()
	ctx := adminCtx()

	_, err := svc.CreateSale(ctx, domain.SaleCreateRequest{
		LocationID: "toko-depan",
		Items: []domain.SaleItemRequest{
			{ProductID: "prd-kopi", Quantity: decimal.NewFromInt(9999), UomID: "pcs", UnitPrice: decimal.NewFromInt(1500)},
		},
	})
	if !errors.Is(err, store.ErrInsufficientStock) {
		t.Fatalf("expected ErrInsufficientStock, got %v", err)
	}

	sale, err := svc.CreateSale(ctx, domain.SaleCreateRequest{
		LocationID: "toko-depan",
		Items: []domain.SaleItemRequest{
			{ProductID: "prd-kopi", Quantity: decimal.NewFromInt(1), UomID: "pcs", UnitPrice: decimal.NewFromInt(1500)},
		},
	})
	if err != nil {
		t.Fatalf("create sale failed: %v", err)
	}
	prefix := fmt.Sprintf("INV-%s-", time.Now().UTC().Format("200601"))
	if sale.InvoiceNumber != prefix+"0001" {
		t.Fatalf("failed sale must not consume a number, got %s", sale.InvoiceNumber)
	}
}

func TestUpdateSaleReplacesAllItems(t *testing.T) {
	svc := newTestService()
	ctx := adminCtx()

	sale, err := svc.CreateSale(ctx, domain.SaleCreateRequest{
		LocationID: "toko-depan",
		Items: []domain.SaleItemRequest{
			{ProductID: "prd-mie", Quantity: decimal.NewFromInt(10), UomID: "pcs", UnitPrice: decimal.NewFromInt(3500)},
		},
	})
	if err != nil {
		t.Fatalf("create sale failed: %v", err)
	}

	updated, err := svc.UpdateSale(ctx, sale.ID, domain.SaleUpdateRequest{
		Items: []domain.SaleItemRequest{
			{ProductID: "prd-susu", Quantity: decimal.NewFromInt(2), UomID: "pcs", UnitPrice: decimal.NewFromInt(18000)},
		},
	})
	if err != nil {
		t.Fatalf("update sale failed: %v", err)
	}
	if len(updated.Items) != 1 || updated.Items[0].ProductID != "prd-susu" {
		t.Fatalf("expected items to be fully replaced")
	}

	if !stockQty(t, svc, "prd-mie", "toko-depan").Equal(decimal.NewFromInt(120)) {
		t.Fatalf("old line must be released on item replacement")
	}
	if !stockQty(t, svc, "prd-susu", "toko-depan").Equal(decimal.NewFromInt(118)) {
		t.Fatalf("new line must be applied on item replacement")
	}
	assertReconciled(t, svc, "toko-depan")
}

func TestSaleSoftDeleteAndRestore(t *testing.T) {
	svc := newTestService()
	ctx := adminCtx()

	sale, err := svc.CreateSale(ctx, domain.SaleCreateRequest{
		LocationID: "toko-depan",
		Items: []domain.SaleItemRequest{
			{ProductID: "prd-mie", Quantity: decimal.NewFromInt(1), UomID: "box", UnitPrice: decimal.NewFromInt(40000)},
		},
	})
	if err != nil {
		t.Fatalf("create sale failed: %v", err)
	}
	if !stockQty(t, svc, "prd-mie", "toko-depan").Equal(decimal.NewFromInt(108)) {
		t.Fatalf("expected 108 pcs after selling a box")
	}

	if _, err := svc.SoftDeleteSale(ctx, sale.ID); err != nil {
		t.Fatalf("soft delete failed: %v", err)
	}
	if !stockQty(t, svc, "prd-mie", "toko-depan").Equal(decimal.NewFromInt(120)) {
		t.Fatalf("deleting a sale must return the sold quantity")
	}

	restored, err := svc.RestoreSale(ctx, sale.ID)
	if err != nil {
		t.Fatalf("restore failed: %v", err)
	}
	if restored.DeletedAt != nil {
		t.Fatalf("expected deleted_at to be cleared")
	}
	if !stockQty(t, svc, "prd-mie", "toko-depan").Equal(decimal.NewFromInt(108)) {
		t.Fatalf("restoring a sale must re-apply the recorded base quantities")
	}
	assertReconciled(t, svc, "toko-depan")
}

func TestRestoreSaleFailsWhenStockIsGone(t *testing.T) {
	svc := newTestService()
	ctx := adminCtx()

	sale, err := svc.CreateSale(ctx, domain.SaleCreateRequest{
		LocationID: "toko-depan",
		Items: []domain.SaleItemRequest{
			{ProductID: "prd-susu", Quantity: decimal.NewFromInt(100), UomID: "pcs", UnitPrice: decimal.NewFromInt(18000)},
		},
	})
	if err != nil {
		t.Fatalf("create sale failed: %v", err)
	}
	if _, err := svc.SoftDeleteSale(ctx, sale.ID); err != nil {
		t.Fatalf("soft delete failed: %v", err)
	}

	// Another sale takes the released stock.
	if _, err := svc.CreateSale(ctx, domain.SaleCreateRequest{
		LocationID: "toko-depan",
		Items: []domain.SaleItemRequest{
			{ProductID: "prd-susu", Quantity: decimal.NewFromInt(110), UomID: "pcs", UnitPrice: decimal.NewFromInt(18000)},
		},
	}); err != nil {
		t.Fatalf("competing sale failed: %v", err)
	}

	if _, err := svc.RestoreSale(ctx, sale.ID); !errors.Is(err, store.ErrInsufficientStock) {
		t.Fatalf("expected ErrInsufficientStock, got %v", err)
	}
	got, err := svc.GetSale(ctx, sale.ID)
	if err != nil {
		t.Fatalf("get sale failed: %v", err)
	}
	if got.DeletedAt == nil {
		t.Fatalf("failed restore must leave the sale deleted")
	}
	assertReconciled(t, svc, "toko-depan")
}

func TestTransferCreatesPairedMovements(t *testing.T) {
	svc := newTestService()
	ctx := adminCtx()

	result, err := svc.TransferStock(ctx, domain.TransferRequest{
		ProductID:      "prd-mie",
		FromLocationID: "gudang-utama",
		ToLocationID:   "gudang-cadangan",
		Quantity:       decimal.NewFromInt(2),
		UomID:          "box",
	})
	if err != nil {
		t.Fatalf("transfer failed: %v", err)
	}

	if result.OutMovement.ReferenceID != result.InMovement.ID {
		t.Fatalf("out movement must reference the in movement")
	}
	if result.InMovement.ReferenceID != result.OutMovement.ID {
		t.Fatalf("in movement must reference the out movement")
	}
	if !result.OutMovement.Quantity.Equal(decimal.NewFromInt(-24)) {
		t.Fatalf("expected out movement of -24 pcs, got %s", result.OutMovement.Quantity)
	}
	if !stockQty(t, svc, "prd-mie", "gudang-utama").Equal(decimal.NewFromInt(96)) {
		t.Fatalf("expected 96 pcs at origin")
	}
	if !stockQty(t, svc, "prd-mie", "gudang-cadangan").Equal(decimal.NewFromInt(24)) {
		t.Fatalf("expected 24 pcs at destination")
	}
	assertReconciled(t, svc, "gudang-utama")
	assertReconciled(t, svc, "gudang-cadangan")
}

func TestTransferRejectsSameLocations(t *testing.T) {
	svc := newTestService()

	_, err := svc.TransferStock(adminCtx(), domain.TransferRequest{
		ProductID:      "prd-mie",
		FromLocationID: "gudang-utama",
		ToLocationID:   "gudang-utama",
		Quantity:       decimal.NewFromInt(1),
	})
	if !errors.Is(err, store.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for same locations, got %v", err)
	}
}

func TestTransferRejectsInsufficientStock(t *testing.T) {
	svc := newTestService()

	_, err := svc.TransferStock(adminCtx(), domain.TransferRequest{
		ProductID:      "prd-mie",
		FromLocationID: "gudang-cadangan",
		ToLocationID:   "gudang-utama",
		Quantity:       decimal.NewFromInt(1),
	})
	if !errors.Is(err, store.ErrInsufficientStock) {
		t.Fatalf("expected ErrInsufficientStock from an empty location, got %v", err)
	}
}

func TestListStockLevelsFallsBackToDefaultLocation(t *testing.T) {
	svc := newTestService()

	levels, err := svc.ListStockLevels(context.Background(), "")
	if err != nil {
		t.Fatalf("list stock levels failed: %v", err)
	}
	if len(levels) == 0 {
		t.Fatalf("expected levels at the default location")
	}
	for _, level := range levels {
		if level.LocationID != "gudang-utama" {
			t.Fatalf("expected only default-location rows, got %s", level.LocationID)
		}
	}
}

func TestAvailableUnitsListsBaseFirst(t *testing.T) {
	svc := newTestService()

	units, err := svc.AvailableUnits(context.Background(), "pcs")
	if err != nil {
		t.Fatalf("available units failed: %v", err)
	}
	if len(units) == 0 || units[0] != "pcs" {
		t.Fatalf("expected base unit first, got %v", units)
	}
	found := map[string]bool{}
	for _, u := range units {
		found[u] = true
	}
	if !found["box"] || !found["lusin"] {
		t.Fatalf("expected box and lusin to be convertible to pcs, got %v", units)
	}
}

func TestAuditTrailRecordsApproval(t *testing.T) {
	svc := newTestService()
	ctx := adminCtx()

	created, err := svc.CreateProcurement(ctx, domain.ProcurementCreateRequest{
		ProductID:  "prd-gula",
		LocationID: "gudang-utama",
		Quantity:   decimal.NewFromInt(10),
		UomID:      "kg",
	})
	if err != nil {
		t.Fatalf("create procurement failed: %v", err)
	}
	if _, err := svc.ApproveProcurement(ctx, created.ID); err != nil {
		t.Fatalf("approve failed: %v", err)
	}

	entries, err := svc.ListAuditEntries(ctx, "procurement", created.ID, 10)
	if err != nil {
		t.Fatalf("list audit entries failed: %v", err)
	}
	actions := map[string]bool{}
	for _, entry := range entries {
		actions[entry.Action] = true
		if entry.Action == domain.AuditActionApprove && entry.Actor != "admin" {
			t.Fatalf("expected approval recorded under admin, got %s", entry.Actor)
		}
	}
	if !actions[domain.AuditActionCreate] || !actions[domain.AuditActionApprove] {
		t.Fatalf("expected create and approve audit entries, got %v", actions)
	}
}
