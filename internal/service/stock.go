package service

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"stokgudang/backend/internal/domain"
	"stokgudang/backend/internal/store"
	"stokgudang/backend/internal/xid"
)

// TransferStock moves stock between two locations as a pair of movements,
// each referencing the other by id, applied atomically.
func (s *Service) TransferStock(ctx context.Context, req domain.TransferRequest) (domain.TransferResult, error) {
	if req.FromLocationID == req.ToLocationID {
		return domain.TransferResult{}, fmt.Errorf("source and destination are the same: %w", store.ErrInvalidInput)
	}
	if req.Quantity.Sign() <= 0 {
		return domain.TransferResult{}, fmt.Errorf("quantity must be positive: %w", store.ErrInvalidInput)
	}

	product, err := s.refProduct(ctx, req.ProductID)
	if err != nil {
		return domain.TransferResult{}, err
	}
	if _, err := s.refLocation(ctx, req.FromLocationID); err != nil {
		return domain.TransferResult{}, err
	}
	if _, err := s.refLocation(ctx, req.ToLocationID); err != nil {
		return domain.TransferResult{}, err
	}

	baseQty := req.Quantity
	if req.UomID != "" && req.UomID != product.BaseUomID {
		r, err := s.resolver(ctx)
		if err != nil {
			return domain.TransferResult{}, err
		}
		baseQty, err = r.Convert(req.Quantity, req.UomID, product.BaseUomID)
		if err != nil {
			return domain.TransferResult{}, err
		}
	}

	outID := xid.New("mov")
	inID := xid.New("mov")
	out := domain.Movement{
		ID:            outID,
		ProductID:     req.ProductID,
		LocationID:    req.FromLocationID,
		Type:          domain.MovementTypeTransfer,
		Quantity:      baseQty.Neg(),
		ReferenceID:   inID,
		ReferenceType: "transfer",
		Notes:         req.Notes,
	}
	in := domain.Movement{
		ID:            inID,
		ProductID:     req.ProductID,
		LocationID:    req.ToLocationID,
		Type:          domain.MovementTypeTransfer,
		Quantity:      baseQty,
		ReferenceID:   outID,
		ReferenceType: "transfer",
		Notes:         req.Notes,
	}

	if err := s.repo.ApplyMovements(ctx, []domain.Movement{out, in}); err != nil {
		return domain.TransferResult{}, err
	}

	s.invalidateStock(ctx, req.FromLocationID, req.ToLocationID)
	s.logAudit(ctx, "transfer", outID, domain.AuditActionTransfer, nil, domain.TransferResult{OutMovement: out, InMovement: in}, "")
	return domain.TransferResult{OutMovement: out, InMovement: in}, nil
}

func (s *Service) GetStock(ctx context.Context, productID string, locationID string) (domain.StockLevel, error) {
	if productID == "" || locationID == "" {
		return domain.StockLevel{}, store.ErrInvalidInput
	}
	return s.repo.GetStock(ctx, productID, locationID)
}

// ListStockLevels serves location snapshots through the stock cache.
func (s *Service) ListStockLevels(ctx context.Context, locationID string) ([]domain.StockLevel, error) {
	if locationID == "" {
		locationID = s.defaultLocationID
	}
	if cached, hit, err := s.stockCache.Get(ctx, locationID); err == nil && hit {
		return cached, nil
	}

	levels, err := s.repo.ListStockLevels(ctx, locationID)
	if err != nil {
		return nil, err
	}

	if err := s.stockCache.Set(ctx, locationID, levels, s.stockCacheTTL); err != nil {
		log.Warn().Err(err).Str("location", locationID).Msg("stock cache write failed")
	}
	return levels, nil
}

func (s *Service) ListMovements(ctx context.Context, filter store.MovementFilter) ([]domain.Movement, error) {
	return s.repo.ListMovements(ctx, filter)
}

// Reconcile recomputes each tracked stock level from the movement log and
// reports rows whose ledger sum diverges from the stored level.
func (s *Service) Reconcile(ctx context.Context, locationID string) ([]domain.ReconciliationRow, error) {
	if locationID == "" {
		locationID = s.defaultLocationID
	}
	levels, err := s.repo.ListStockLevels(ctx, locationID)
	if err != nil {
		return nil, err
	}

	rows := make([]domain.ReconciliationRow, 0, len(levels))
	for _, level := range levels {
		rebuilt, err := s.repo.ReconstructStock(ctx, level.ProductID, level.LocationID)
		if err != nil {
			return nil, err
		}
		rows = append(rows, domain.ReconciliationRow{
			ProductID:  level.ProductID,
			LocationID: level.LocationID,
			Level:      level.Quantity,
			LedgerSum:  rebuilt.Quantity,
			Consistent: level.Quantity.Equal(rebuilt.Quantity),
		})
	}
	return rows, nil
}
