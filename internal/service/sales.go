package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"stokgudang/backend/internal/domain"
	"stokgudang/backend/internal/store"
	"stokgudang/backend/internal/xid"
)

var oneHundred = decimal.NewFromInt(100)

// buildSaleItems validates every line before any stock is touched: product
// refs, unit conversions, then availability for the aggregate demand per
// product. freed holds base quantities being released in the same batch
// (item replacement reverses the old lines first) and counts as available.
// Returns the priced items and the movements that apply them.
func (s *Service) buildSaleItems(ctx context.Context, saleID string, locationID string, reqItems []domain.SaleItemRequest, freed map[string]decimal.Decimal, note string) ([]domain.SaleItem, []domain.Movement, decimal.Decimal, error) {
	if len(reqItems) == 0 {
		return nil, nil, decimal.Zero, fmt.Errorf("sale needs at least one item: %w", store.ErrInvalidInput)
	}

	r, err := s.resolver(ctx)
	if err != nil {
		return nil, nil, decimal.Zero, err
	}

	productIDs := make([]string, 0, len(reqItems))
	for _, item := range reqItems {
		productIDs = append(productIDs, item.ProductID)
	}
	products, err := s.repo.GetProductsByIDs(ctx, productIDs)
	if err != nil {
		return nil, nil, decimal.Zero, err
	}

	items := make([]domain.SaleItem, 0, len(reqItems))
	movements := make([]domain.Movement, 0, len(reqItems))
	demand := make(map[string]decimal.Decimal, len(reqItems))
	subtotal := decimal.Zero

	for _, item := range reqItems {
		product, exists := products[item.ProductID]
		if !exists {
			return nil, nil, decimal.Zero, fmt.Errorf("product %s: %w", item.ProductID, store.ErrNotFound)
		}
		if !product.Active {
			return nil, nil, decimal.Zero, fmt.Errorf("product %s is inactive: %w", item.ProductID, store.ErrInvalidInput)
		}
		if item.Quantity.Sign() <= 0 {
			return nil, nil, decimal.Zero, fmt.Errorf("quantity for %s must be positive: %w", item.ProductID, store.ErrInvalidInput)
		}
		if item.UnitPrice.Sign() < 0 {
			return nil, nil, decimal.Zero, fmt.Errorf("unit price for %s must not be negative: %w", item.ProductID, store.ErrInvalidInput)
		}

		baseQty, err := r.Convert(item.Quantity, item.UomID, product.BaseUomID)
		if err != nil {
			return nil, nil, decimal.Zero, err
		}

		lineSubtotal := item.Quantity.Mul(item.UnitPrice)
		subtotal = subtotal.Add(lineSubtotal)
		demand[item.ProductID] = demand[item.ProductID].Add(baseQty)

		items = append(items, domain.SaleItem{
			ID:           xid.New("sli"),
			SaleID:       saleID,
			ProductID:    item.ProductID,
			Quantity:     item.Quantity,
			UomID:        item.UomID,
			UnitPrice:    item.UnitPrice,
			Subtotal:     lineSubtotal,
			BaseQuantity: baseQty,
		})
		movements = append(movements, domain.Movement{
			ID:            xid.New("mov"),
			ProductID:     item.ProductID,
			LocationID:    locationID,
			Type:          domain.MovementTypeSale,
			Quantity:      baseQty.Neg(),
			ReferenceID:   saleID,
			ReferenceType: "sale",
			Notes:         note,
		})
	}

	stockMap, err := s.repo.GetStockMap(ctx, locationID, productIDs)
	if err != nil {
		return nil, nil, decimal.Zero, err
	}
	for productID, needed := range demand {
		available := stockMap[productID].Quantity.Add(freed[productID])
		if available.LessThan(needed) {
			return nil, nil, decimal.Zero, fmt.Errorf("product %s: need %s, have %s: %w", productID, needed, available, store.ErrInsufficientStock)
		}
	}

	return items, movements, subtotal, nil
}

// applyDiscount clamps the discount to the subtotal so totals never go
// negative.
func applyDiscount(subtotal decimal.Decimal, discountType string, discountValue decimal.Decimal) (decimal.Decimal, error) {
	if discountValue.Sign() < 0 {
		return decimal.Zero, fmt.Errorf("discount must not be negative: %w", store.ErrInvalidInput)
	}

	var amount decimal.Decimal
	switch discountType {
	case "":
		amount = decimal.Zero
	case domain.DiscountTypePercentage:
		amount = subtotal.Mul(discountValue).Div(oneHundred)
	case domain.DiscountTypeFixed:
		amount = discountValue
	default:
		return decimal.Zero, fmt.Errorf("unknown discount type %q: %w", discountType, store.ErrInvalidInput)
	}

	if amount.GreaterThan(subtotal) {
		amount = subtotal
	}
	return subtotal.Sub(amount), nil
}

func (s *Service) CreateSale(ctx context.Context, req domain.SaleCreateRequest) (domain.Sale, error) {
	if _, err := s.refLocation(ctx, req.LocationID); err != nil {
		return domain.Sale{}, err
	}

	saleID := xid.New("sale")
	items, movements, subtotal, err := s.buildSaleItems(ctx, saleID, req.LocationID, req.Items, nil, "")
	if err != nil {
		return domain.Sale{}, err
	}

	total, err := applyDiscount(subtotal, req.DiscountType, req.DiscountValue)
	if err != nil {
		return domain.Sale{}, err
	}

	sale := domain.Sale{
		ID:            saleID,
		LocationID:    req.LocationID,
		CustomerName:  strings.TrimSpace(req.CustomerName),
		Items:         items,
		DiscountType:  req.DiscountType,
		DiscountValue: req.DiscountValue,
		Subtotal:      subtotal,
		TotalAmount:   total,
		Notes:         strings.TrimSpace(req.Notes),
	}

	created, err := s.repo.CreateSale(ctx, sale, movements)
	if err != nil {
		return domain.Sale{}, err
	}

	s.invalidateStock(ctx, req.LocationID)
	s.logAudit(ctx, "sale", created.ID, domain.AuditActionCreate, nil, created, "")
	return *created, nil
}

func (s *Service) GetSale(ctx context.Context, id string) (domain.Sale, error) {
	sale, err := s.repo.GetSaleByID(ctx, id)
	if err != nil {
		return domain.Sale{}, err
	}
	return *sale, nil
}

func (s *Service) ListSales(ctx context.Context, locationID string, includeDeleted bool, limit int) ([]domain.Sale, error) {
	return s.repo.ListSales(ctx, locationID, includeDeleted, limit)
}

func (s *Service) UpdateSale(ctx context.Context, id string, req domain.SaleUpdateRequest) (domain.Sale, error) {
	existing, err := s.repo.GetSaleByID(ctx, id)
	if err != nil {
		return domain.Sale{}, err
	}
	if existing.DeletedAt != nil {
		return domain.Sale{}, store.ErrNotFound
	}

	updated := *existing
	if req.CustomerName != nil {
		updated.CustomerName = strings.TrimSpace(*req.CustomerName)
	}
	if req.DiscountType != nil {
		updated.DiscountType = *req.DiscountType
	}
	if req.DiscountValue != nil {
		updated.DiscountValue = *req.DiscountValue
	}
	if req.Notes != nil {
		updated.Notes = strings.TrimSpace(*req.Notes)
	}

	var movements []domain.Movement
	subtotal := existing.Subtotal
	if req.Items != nil {
		// Item replacement reverses every previously applied line, then
		// applies the new set, all in one batch.
		movements = append(movements, saleReversalMovements(*existing, "penggantian item")...)
		freed := make(map[string]decimal.Decimal, len(existing.Items))
		for _, item := range existing.Items {
			freed[item.ProductID] = freed[item.ProductID].Add(item.BaseQuantity)
		}
		items, applyMoves, newSubtotal, err := s.buildSaleItems(ctx, existing.ID, existing.LocationID, req.Items, freed, "penggantian item")
		if err != nil {
			return domain.Sale{}, err
		}
		updated.Items = items
		movements = append(movements, applyMoves...)
		subtotal = newSubtotal
	}

	updated.Subtotal = subtotal
	total, err := applyDiscount(subtotal, updated.DiscountType, updated.DiscountValue)
	if err != nil {
		return domain.Sale{}, err
	}
	updated.TotalAmount = total

	saved, err := s.repo.SaveSale(ctx, updated, movements)
	if err != nil {
		return domain.Sale{}, err
	}

	if len(movements) > 0 {
		s.invalidateStock(ctx, existing.LocationID)
	}
	s.logAudit(ctx, "sale", id, domain.AuditActionUpdate, existing, saved, "")
	return *saved, nil
}

func (s *Service) SoftDeleteSale(ctx context.Context, id string) (domain.Sale, error) {
	existing, err := s.repo.GetSaleByID(ctx, id)
	if err != nil {
		return domain.Sale{}, err
	}
	if existing.DeletedAt != nil {
		return domain.Sale{}, fmt.Errorf("sale %s already deleted: %w", id, store.ErrInvalidState)
	}

	now := time.Now().UTC()
	updated := *existing
	updated.DeletedAt = &now

	movements := saleReversalMovements(*existing, "penghapusan")

	saved, err := s.repo.SaveSale(ctx, updated, movements)
	if err != nil {
		return domain.Sale{}, err
	}

	s.invalidateStock(ctx, existing.LocationID)
	s.logAudit(ctx, "sale", id, domain.AuditActionDelete, existing, saved, "")
	return *saved, nil
}

func (s *Service) RestoreSale(ctx context.Context, id string) (domain.Sale, error) {
	existing, err := s.repo.GetSaleByID(ctx, id)
	if err != nil {
		return domain.Sale{}, err
	}
	if existing.DeletedAt == nil {
		return domain.Sale{}, fmt.Errorf("sale %s is not deleted: %w", id, store.ErrInvalidState)
	}

	updated := *existing
	updated.DeletedAt = nil

	// Re-applies the recorded base quantities; if stock is no longer
	// available the restore fails and the sale stays deleted.
	movements := make([]domain.Movement, 0, len(existing.Items))
	for _, item := range existing.Items {
		movements = append(movements, domain.Movement{
			ID:            xid.New("mov"),
			ProductID:     item.ProductID,
			LocationID:    existing.LocationID,
			Type:          domain.MovementTypeSale,
			Quantity:      item.BaseQuantity.Neg(),
			ReferenceID:   existing.ID,
			ReferenceType: "sale",
			Notes:         "pemulihan",
		})
	}

	saved, err := s.repo.SaveSale(ctx, updated, movements)
	if err != nil {
		return domain.Sale{}, err
	}

	s.invalidateStock(ctx, existing.LocationID)
	s.logAudit(ctx, "sale", id, domain.AuditActionRestore, existing, saved, "")
	return *saved, nil
}

func saleReversalMovements(sale domain.Sale, note string) []domain.Movement {
	movements := make([]domain.Movement, 0, len(sale.Items))
	for _, item := range sale.Items {
		movements = append(movements, domain.Movement{
			ID:            xid.New("mov"),
			ProductID:     item.ProductID,
			LocationID:    sale.LocationID,
			Type:          domain.MovementTypeSale,
			Quantity:      item.BaseQuantity,
			ReferenceID:   sale.ID,
			ReferenceType: "sale",
			Notes:         note,
		})
	}
	return movements
}
