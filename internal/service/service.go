package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"stokgudang/backend/internal/cache"
	"stokgudang/backend/internal/domain"
	"stokgudang/backend/internal/store"
	"stokgudang/backend/internal/uom"
	"stokgudang/backend/internal/xid"
)

type actorContextKey struct{}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(domain.Actor)
	return actor, ok
}

type Service struct {
	repo              store.Repository
	stockCache        cache.StockCache
	stockCacheTTL     time.Duration
	defaultLocationID string
}

func New(repo store.Repository, stockCache cache.StockCache, stockCacheTTL time.Duration, defaultLocationID string) *Service {
	if stockCache == nil {
		stockCache = cache.NoopStockCache{}
	}
	if stockCacheTTL <= 0 {
		stockCacheTTL = 30 * time.Second
	}
	if defaultLocationID == "" {
		defaultLocationID = "gudang-utama"
	}

	return &Service{
		repo:              repo,
		stockCache:        stockCache,
		stockCacheTTL:     stockCacheTTL,
		defaultLocationID: defaultLocationID,
	}
}

func (s *Service) resolver(ctx context.Context) (*uom.Resolver, error) {
	conversions, err := s.repo.ListUOMConversions(ctx)
	if err != nil {
		return nil, fmt.Errorf("load uom conversions: %w", err)
	}
	return uom.NewResolver(conversions), nil
}

func (s *Service) ListUOMs(ctx context.Context) ([]domain.UOM, error) {
	return s.repo.ListUOMs(ctx)
}

func (s *Service) AvailableUnits(ctx context.Context, uomID string) ([]string, error) {
	uomID = strings.TrimSpace(uomID)
	if uomID == "" {
		return nil, store.ErrInvalidInput
	}
	r, err := s.resolver(ctx)
	if err != nil {
		return nil, err
	}
	return r.AvailableUnits(uomID), nil
}

func (s *Service) ListProducts(ctx context.Context) ([]domain.Product, error) {
	return s.repo.ListProducts(ctx)
}

func (s *Service) ListLocations(ctx context.Context) ([]domain.Location, error) {
	return s.repo.ListLocations(ctx)
}

// refProduct loads a product and rejects inactive ones for mutation paths.
func (s *Service) refProduct(ctx context.Context, productID string) (*domain.Product, error) {
	product, err := s.repo.GetProductByID(ctx, productID)
	if err != nil {
		return nil, fmt.Errorf("product %s: %w", productID, err)
	}
	if !product.Active {
		return nil, fmt.Errorf("product %s is inactive: %w", productID, store.ErrInvalidInput)
	}
	return product, nil
}

func (s *Service) refLocation(ctx context.Context, locationID string) (*domain.Location, error) {
	location, err := s.repo.GetLocationByID(ctx, locationID)
	if err != nil {
		return nil, fmt.Errorf("location %s: %w", locationID, err)
	}
	if !location.Active {
		return nil, fmt.Errorf("location %s is inactive: %w", locationID, store.ErrInvalidInput)
	}
	return location, nil
}

// ---- procurement ----

func (s *Service) CreateProcurement(ctx context.Context, req domain.ProcurementCreateRequest) (domain.Procurement, error) {
	if req.Quantity.Sign() <= 0 {
		return domain.Procurement{}, fmt.Errorf("quantity must be positive: %w", store.ErrInvalidInput)
	}
	if req.UnitPrice.Sign() < 0 {
		return domain.Procurement{}, fmt.Errorf("unit price must not be negative: %w", store.ErrInvalidInput)
	}

	product, err := s.refProduct(ctx, req.ProductID)
	if err != nil {
		return domain.Procurement{}, err
	}
	if _, err := s.refLocation(ctx, req.LocationID); err != nil {
		return domain.Procurement{}, err
	}

	r, err := s.resolver(ctx)
	if err != nil {
		return domain.Procurement{}, err
	}
	if _, err := r.ResolveRate(req.UomID, product.BaseUomID); err != nil {
		return domain.Procurement{}, err
	}

	p := domain.Procurement{
		ID:         xid.New("prc"),
		ProductID:  req.ProductID,
		LocationID: req.LocationID,
		Quantity:   req.Quantity,
		UomID:      req.UomID,
		UnitPrice:  req.UnitPrice,
		Supplier:   strings.TrimSpace(req.Supplier),
		PIC:        strings.TrimSpace(req.PIC),
		Notes:      strings.TrimSpace(req.Notes),
		Status:     domain.AdjustmentStatusPending,
	}

	created, err := s.repo.CreateProcurement(ctx, p)
	if err != nil {
		return domain.Procurement{}, err
	}

	s.logAudit(ctx, "procurement", created.ID, domain.AuditActionCreate, nil, created, "")
	return *created, nil
}

func (s *Service) GetProcurement(ctx context.Context, id string) (domain.Procurement, error) {
	p, err := s.repo.GetProcurementByID(ctx, id)
	if err != nil {
		return domain.Procurement{}, err
	}
	return *p, nil
}

func (s *Service) ListProcurements(ctx context.Context, status string, includeDeleted bool, limit int) ([]domain.Procurement, error) {
	return s.repo.ListProcurements(ctx, status, includeDeleted, limit)
}

func (s *Service) ApproveProcurement(ctx context.Context, id string) (domain.Procurement, error) {
	if err := requireAdmin(ctx); err != nil {
		return domain.Procurement{}, err
	}

	existing, err := s.repo.GetProcurementByID(ctx, id)
	if err != nil {
		return domain.Procurement{}, err
	}
	if existing.DeletedAt != nil {
		return domain.Procurement{}, store.ErrNotFound
	}
	if existing.Status == domain.AdjustmentStatusApproved {
		return domain.Procurement{}, fmt.Errorf("procurement %s already approved: %w", id, store.ErrInvalidState)
	}

	baseQty, err := s.baseQuantity(ctx, existing.ProductID, existing.Quantity, existing.UomID)
	if err != nil {
		return domain.Procurement{}, err
	}

	updated := *existing
	updated.Status = domain.AdjustmentStatusApproved
	updated.Applied = &domain.StockEffect{
		ProductID:  existing.ProductID,
		LocationID: existing.LocationID,
		Quantity:   baseQty,
	}

	movements := []domain.Movement{{
		ID:            xid.New("mov"),
		ProductID:     existing.ProductID,
		LocationID:    existing.LocationID,
		Type:          domain.MovementTypeProcurement,
		Quantity:      baseQty,
		ReferenceID:   existing.ID,
		ReferenceType: "procurement",
	}}

	saved, err := s.repo.SaveProcurement(ctx, updated, movements)
	if err != nil {
		return domain.Procurement{}, err
	}

	s.invalidateStock(ctx, existing.LocationID)
	s.logAudit(ctx, "procurement", id, domain.AuditActionApprove, existing, saved, "")
	return *saved, nil
}

func (s *Service) RejectProcurement(ctx context.Context, id string, note string) (domain.Procurement, error) {
	if err := requireAdmin(ctx); err != nil {
		return domain.Procurement{}, err
	}

	existing, err := s.repo.GetProcurementByID(ctx, id)
	if err != nil {
		return domain.Procurement{}, err
	}
	if existing.DeletedAt != nil {
		return domain.Procurement{}, store.ErrNotFound
	}
	if existing.Status == domain.AdjustmentStatusRejected {
		return domain.Procurement{}, fmt.Errorf("procurement %s already rejected: %w", id, store.ErrInvalidState)
	}

	updated := *existing
	updated.Status = domain.AdjustmentStatusRejected

	var movements []domain.Movement
	if existing.Applied != nil {
		movements = append(movements, reversalMovement(*existing.Applied, domain.MovementTypeProcurement, existing.ID, "procurement", "pembatalan persetujuan"))
		updated.Applied = nil
	}

	saved, err := s.repo.SaveProcurement(ctx, updated, movements)
	if err != nil {
		return domain.Procurement{}, err
	}

	s.invalidateStock(ctx, existing.LocationID)
	s.logAudit(ctx, "procurement", id, domain.AuditActionReject, existing, saved, note)
	return *saved, nil
}

func (s *Service) UpdateProcurement(ctx context.Context, id string, req domain.ProcurementUpdateRequest) (domain.Procurement, error) {
	existing, err := s.repo.GetProcurementByID(ctx, id)
	if err != nil {
		return domain.Procurement{}, err
	}
	if existing.DeletedAt != nil {
		return domain.Procurement{}, store.ErrNotFound
	}

	updated := *existing
	if req.Quantity != nil {
		if req.Quantity.Sign() <= 0 {
			return domain.Procurement{}, fmt.Errorf("quantity must be positive: %w", store.ErrInvalidInput)
		}
		updated.Quantity = *req.Quantity
	}
	if req.UomID != nil {
		updated.UomID = *req.UomID
	}
	if req.UnitPrice != nil {
		if req.UnitPrice.Sign() < 0 {
			return domain.Procurement{}, fmt.Errorf("unit price must not be negative: %w", store.ErrInvalidInput)
		}
		updated.UnitPrice = *req.UnitPrice
	}
	if req.Supplier != nil {
		updated.Supplier = strings.TrimSpace(*req.Supplier)
	}
	if req.PIC != nil {
		updated.PIC = strings.TrimSpace(*req.PIC)
	}
	if req.Notes != nil {
		updated.Notes = strings.TrimSpace(*req.Notes)
	}

	var movements []domain.Movement
	if existing.Status == domain.AdjustmentStatusApproved {
		// Editing an applied adjustment swaps the recorded effect for the
		// recomputed one in a single batch.
		baseQty, err := s.baseQuantity(ctx, updated.ProductID, updated.Quantity, updated.UomID)
		if err != nil {
			return domain.Procurement{}, err
		}
		if existing.Applied != nil {
			movements = append(movements, reversalMovement(*existing.Applied, domain.MovementTypeProcurement, existing.ID, "procurement", "koreksi"))
		}
		movements = append(movements, domain.Movement{
			ID:            xid.New("mov"),
			ProductID:     updated.ProductID,
			LocationID:    updated.LocationID,
			Type:          domain.MovementTypeProcurement,
			Quantity:      baseQty,
			ReferenceID:   updated.ID,
			ReferenceType: "procurement",
			Notes:         "koreksi",
		})
		updated.Applied = &domain.StockEffect{
			ProductID:  updated.ProductID,
			LocationID: updated.LocationID,
			Quantity:   baseQty,
		}
	} else {
		r, err := s.resolver(ctx)
		if err != nil {
			return domain.Procurement{}, err
		}
		product, err := s.repo.GetProductByID(ctx, updated.ProductID)
		if err != nil {
			return domain.Procurement{}, err
		}
		if _, err := r.ResolveRate(updated.UomID, product.BaseUomID); err != nil {
			return domain.Procurement{}, err
		}
	}

	saved, err := s.repo.SaveProcurement(ctx, updated, movements)
	if err != nil {
		return domain.Procurement{}, err
	}

	if len(movements) > 0 {
		s.invalidateStock(ctx, existing.LocationID)
	}
	s.logAudit(ctx, "procurement", id, domain.AuditActionUpdate, existing, saved, "")
	return *saved, nil
}

func (s *Service) SoftDeleteProcurement(ctx context.Context, id string) (domain.Procurement, error) {
	existing, err := s.repo.GetProcurementByID(ctx, id)
	if err != nil {
		return domain.Procurement{}, err
	}
	if existing.DeletedAt != nil {
		return domain.Procurement{}, fmt.Errorf("procurement %s already deleted: %w", id, store.ErrInvalidState)
	}

	now := time.Now().UTC()
	updated := *existing
	updated.DeletedAt = &now

	var movements []domain.Movement
	if existing.Applied != nil {
		movements = append(movements, reversalMovement(*existing.Applied, domain.MovementTypeProcurement, existing.ID, "procurement", "penghapusan"))
		updated.Applied = nil
	}

	saved, err := s.repo.SaveProcurement(ctx, updated, movements)
	if err != nil {
		return domain.Procurement{}, err
	}

	s.invalidateStock(ctx, existing.LocationID)
	s.logAudit(ctx, "procurement", id, domain.AuditActionDelete, existing, saved, "")
	return *saved, nil
}

func (s *Service) RestoreProcurement(ctx context.Context, id string) (domain.Procurement, error) {
	existing, err := s.repo.GetProcurementByID(ctx, id)
	if err != nil {
		return domain.Procurement{}, err
	}
	if existing.DeletedAt == nil {
		return domain.Procurement{}, fmt.Errorf("procurement %s is not deleted: %w", id, store.ErrInvalidState)
	}

	updated := *existing
	updated.DeletedAt = nil

	var movements []domain.Movement
	if existing.Status == domain.AdjustmentStatusApproved {
		// Restoring an approved adjustment re-validates against current
		// conversions before re-applying the effect.
		baseQty, err := s.baseQuantity(ctx, existing.ProductID, existing.Quantity, existing.UomID)
		if err != nil {
			return domain.Procurement{}, err
		}
		movements = append(movements, domain.Movement{
			ID:            xid.New("mov"),
			ProductID:     existing.ProductID,
			LocationID:    existing.LocationID,
			Type:          domain.MovementTypeProcurement,
			Quantity:      baseQty,
			ReferenceID:   existing.ID,
			ReferenceType: "procurement",
			Notes:         "pemulihan",
		})
		updated.Applied = &domain.StockEffect{
			ProductID:  existing.ProductID,
			LocationID: existing.LocationID,
			Quantity:   baseQty,
		}
	}

	saved, err := s.repo.SaveProcurement(ctx, updated, movements)
	if err != nil {
		return domain.Procurement{}, err
	}

	s.invalidateStock(ctx, existing.LocationID)
	s.logAudit(ctx, "procurement", id, domain.AuditActionRestore, existing, saved, "")
	return *saved, nil
}

// ---- disposal ----

func (s *Service) CreateDisposal(ctx context.Context, req domain.DisposalCreateRequest) (domain.Disposal, error) {
	if req.Quantity.Sign() <= 0 {
		return domain.Disposal{}, fmt.Errorf("quantity must be positive: %w", store.ErrInvalidInput)
	}

	product, err := s.refProduct(ctx, req.ProductID)
	if err != nil {
		return domain.Disposal{}, err
	}
	if _, err := s.refLocation(ctx, req.LocationID); err != nil {
		return domain.Disposal{}, err
	}

	r, err := s.resolver(ctx)
	if err != nil {
		return domain.Disposal{}, err
	}
	if _, err := r.ResolveRate(req.UomID, product.BaseUomID); err != nil {
		return domain.Disposal{}, err
	}

	d := domain.Disposal{
		ID:         xid.New("dsp"),
		ProductID:  req.ProductID,
		LocationID: req.LocationID,
		Quantity:   req.Quantity,
		UomID:      req.UomID,
		Reason:     strings.TrimSpace(req.Reason),
		PIC:        strings.TrimSpace(req.PIC),
		Notes:      strings.TrimSpace(req.Notes),
		Status:     domain.AdjustmentStatusPending,
	}

	created, err := s.repo.CreateDisposal(ctx, d)
	if err != nil {
		return domain.Disposal{}, err
	}

	s.logAudit(ctx, "disposal", created.ID, domain.AuditActionCreate, nil, created, "")
	return *created, nil
}

func (s *Service) GetDisposal(ctx context.Context, id string) (domain.Disposal, error) {
	d, err := s.repo.GetDisposalByID(ctx, id)
	if err != nil {
		return domain.Disposal{}, err
	}
	return *d, nil
}

func (s *Service) ListDisposals(ctx context.Context, status string, includeDeleted bool, limit int) ([]domain.Disposal, error) {
	return s.repo.ListDisposals(ctx, status, includeDeleted, limit)
}

func (s *Service) ApproveDisposal(ctx context.Context, id string) (domain.Disposal, error) {
	if err := requireAdmin(ctx); err != nil {
		return domain.Disposal{}, err
	}

	existing, err := s.repo.GetDisposalByID(ctx, id)
	if err != nil {
		return domain.Disposal{}, err
	}
	if existing.DeletedAt != nil {
		return domain.Disposal{}, store.ErrNotFound
	}
	if existing.Status == domain.AdjustmentStatusApproved {
		return domain.Disposal{}, fmt.Errorf("disposal %s already approved: %w", id, store.ErrInvalidState)
	}

	baseQty, err := s.baseQuantity(ctx, existing.ProductID, existing.Quantity, existing.UomID)
	if err != nil {
		return domain.Disposal{}, err
	}

	updated := *existing
	updated.Status = domain.AdjustmentStatusApproved
	updated.Applied = &domain.StockEffect{
		ProductID:  existing.ProductID,
		LocationID: existing.LocationID,
		Quantity:   baseQty.Neg(),
	}

	movements := []domain.Movement{{
		ID:            xid.New("mov"),
		ProductID:     existing.ProductID,
		LocationID:    existing.LocationID,
		Type:          domain.MovementTypeDisposal,
		Quantity:      baseQty.Neg(),
		ReferenceID:   existing.ID,
		ReferenceType: "disposal",
	}}

	saved, err := s.repo.SaveDisposal(ctx, updated, movements)
	if err != nil {
		return domain.Disposal{}, err
	}

	s.invalidateStock(ctx, existing.LocationID)
	s.logAudit(ctx, "disposal", id, domain.AuditActionApprove, existing, saved, "")
	return *saved, nil
}

func (s *Service) RejectDisposal(ctx context.Context, id string, note string) (domain.Disposal, error) {
	if err := requireAdmin(ctx); err != nil {
		return domain.Disposal{}, err
	}

	existing, err := s.repo.GetDisposalByID(ctx, id)
	if err != nil {
		return domain.Disposal{}, err
	}
	if existing.DeletedAt != nil {
		return domain.Disposal{}, store.ErrNotFound
	}
	if existing.Status == domain.AdjustmentStatusRejected {
		return domain.Disposal{}, fmt.Errorf("disposal %s already rejected: %w", id, store.ErrInvalidState)
	}

	updated := *existing
	updated.Status = domain.AdjustmentStatusRejected

	var movements []domain.Movement
	if existing.Applied != nil {
		movements = append(movements, reversalMovement(*existing.Applied, domain.MovementTypeDisposal, existing.ID, "disposal", "pembatalan persetujuan"))
		updated.Applied = nil
	}

	saved, err := s.repo.SaveDisposal(ctx, updated, movements)
	if err != nil {
		return domain.Disposal{}, err
	}

	s.invalidateStock(ctx, existing.LocationID)
	s.logAudit(ctx, "disposal", id, domain.AuditActionReject, existing, saved, note)
	return *saved, nil
}

func (s *Service) UpdateDisposal(ctx context.Context, id string, req domain.DisposalUpdateRequest) (domain.Disposal, error) {
	existing, err := s.repo.GetDisposalByID(ctx, id)
	if err != nil {
		return domain.Disposal{}, err
	}
	if existing.DeletedAt != nil {
		return domain.Disposal{}, store.ErrNotFound
	}

	updated := *existing
	if req.Quantity != nil {
		if req.Quantity.Sign() <= 0 {
			return domain.Disposal{}, fmt.Errorf("quantity must be positive: %w", store.ErrInvalidInput)
		}
		updated.Quantity = *req.Quantity
	}
	if req.UomID != nil {
		updated.UomID = *req.UomID
	}
	if req.Reason != nil {
		updated.Reason = strings.TrimSpace(*req.Reason)
	}
	if req.PIC != nil {
		updated.PIC = strings.TrimSpace(*req.PIC)
	}
	if req.Notes != nil {
		updated.Notes = strings.TrimSpace(*req.Notes)
	}

	var movements []domain.Movement
	if existing.Status == domain.AdjustmentStatusApproved {
		baseQty, err := s.baseQuantity(ctx, updated.ProductID, updated.Quantity, updated.UomID)
		if err != nil {
			return domain.Disposal{}, err
		}
		if existing.Applied != nil {
			movements = append(movements, reversalMovement(*existing.Applied, domain.MovementTypeDisposal, existing.ID, "disposal", "koreksi"))
		}
		movements = append(movements, domain.Movement{
			ID:            xid.New("mov"),
			ProductID:     updated.ProductID,
			LocationID:    updated.LocationID,
			Type:          domain.MovementTypeDisposal,
			Quantity:      baseQty.Neg(),
			ReferenceID:   updated.ID,
			ReferenceType: "disposal",
			Notes:         "koreksi",
		})
		updated.Applied = &domain.StockEffect{
			ProductID:  updated.ProductID,
			LocationID: updated.LocationID,
			Quantity:   baseQty.Neg(),
		}
	} else {
		r, err := s.resolver(ctx)
		if err != nil {
			return domain.Disposal{}, err
		}
		product, err := s.repo.GetProductByID(ctx, updated.ProductID)
		if err != nil {
			return domain.Disposal{}, err
		}
		if _, err := r.ResolveRate(updated.UomID, product.BaseUomID); err != nil {
			return domain.Disposal{}, err
		}
	}

	saved, err := s.repo.SaveDisposal(ctx, updated, movements)
	if err != nil {
		return domain.Disposal{}, err
	}

	if len(movements) > 0 {
		s.invalidateStock(ctx, existing.LocationID)
	}
	s.logAudit(ctx, "disposal", id, domain.AuditActionUpdate, existing, saved, "")
	return *saved, nil
}

func (s *Service) SoftDeleteDisposal(ctx context.Context, id string) (domain.Disposal, error) {
	existing, err := s.repo.GetDisposalByID(ctx, id)
	if err != nil {
		return domain.Disposal{}, err
	}
	if existing.DeletedAt != nil {
		return domain.Disposal{}, fmt.Errorf("disposal %s already deleted: %w", id, store.ErrInvalidState)
	}

	now := time.Now().UTC()
	updated := *existing
	updated.DeletedAt = &now

	var movements []domain.Movement
	if existing.Applied != nil {
		movements = append(movements, reversalMovement(*existing.Applied, domain.MovementTypeDisposal, existing.ID, "disposal", "penghapusan"))
		updated.Applied = nil
	}

	saved, err := s.repo.SaveDisposal(ctx, updated, movements)
	if err != nil {
		return domain.Disposal{}, err
	}

	s.invalidateStock(ctx, existing.LocationID)
	s.logAudit(ctx, "disposal", id, domain.AuditActionDelete, existing, saved, "")
	return *saved, nil
}

func (s *Service) RestoreDisposal(ctx context.Context, id string) (domain.Disposal, error) {
	existing, err := s.repo.GetDisposalByID(ctx, id)
	if err != nil {
		return domain.Disposal{}, err
	}
	if existing.DeletedAt == nil {
		return domain.Disposal{}, fmt.Errorf("disposal %s is not deleted: %w", id, store.ErrInvalidState)
	}

	updated := *existing
	updated.DeletedAt = nil

	var movements []domain.Movement
	if existing.Status == domain.AdjustmentStatusApproved {
		baseQty, err := s.baseQuantity(ctx, existing.ProductID, existing.Quantity, existing.UomID)
		if err != nil {
			return domain.Disposal{}, err
		}
		movements = append(movements, domain.Movement{
			ID:            xid.New("mov"),
			ProductID:     existing.ProductID,
			LocationID:    existing.LocationID,
			Type:          domain.MovementTypeDisposal,
			Quantity:      baseQty.Neg(),
			ReferenceID:   existing.ID,
			ReferenceType: "disposal",
			Notes:         "pemulihan",
		})
		updated.Applied = &domain.StockEffect{
			ProductID:  existing.ProductID,
			LocationID: existing.LocationID,
			Quantity:   baseQty.Neg(),
		}
	}

	saved, err := s.repo.SaveDisposal(ctx, updated, movements)
	if err != nil {
		return domain.Disposal{}, err
	}

	s.invalidateStock(ctx, existing.LocationID)
	s.logAudit(ctx, "disposal", id, domain.AuditActionRestore, existing, saved, "")
	return *saved, nil
}

// ---- shared helpers ----

func requireAdmin(ctx context.Context) error {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != "admin" {
		return fmt.Errorf("admin role required: %w", store.ErrForbidden)
	}
	return nil
}

func (s *Service) baseQuantity(ctx context.Context, productID string, quantity decimal.Decimal, uomID string) (decimal.Decimal, error) {
	product, err := s.repo.GetProductByID(ctx, productID)
	if err != nil {
		return decimal.Zero, fmt.Errorf("product %s: %w", productID, err)
	}
	r, err := s.resolver(ctx)
	if err != nil {
		return decimal.Zero, err
	}
	return r.Convert(quantity, uomID, product.BaseUomID)
}

func reversalMovement(effect domain.StockEffect, movementType string, referenceID string, referenceType string, note string) domain.Movement {
	return domain.Movement{
		ID:            xid.New("mov"),
		ProductID:     effect.ProductID,
		LocationID:    effect.LocationID,
		Type:          movementType,
		Quantity:      effect.Quantity.Neg(),
		ReferenceID:   referenceID,
		ReferenceType: referenceType,
		Notes:         note,
	}
}

func (s *Service) invalidateStock(ctx context.Context, locationIDs ...string) {
	if err := s.stockCache.Invalidate(ctx, locationIDs...); err != nil {
		log.Warn().Err(err).Strs("locations", locationIDs).Msg("stock cache invalidation failed")
	}
}

func (s *Service) logAudit(ctx context.Context, entityType string, entityID string, action string, oldValue any, newValue any, note string) {
	actor, ok := ActorFromContext(ctx)
	if !ok {
		actor = domain.Actor{Username: "system", Role: "system"}
	}

	if err := s.repo.CreateAuditEntry(ctx, domain.AuditEntry{
		ID:         xid.New("aud"),
		EntityType: entityType,
		EntityID:   entityID,
		Action:     action,
		Actor:      actor.Username,
		OldValue:   toJSON(oldValue),
		NewValue:   toJSON(newValue),
		Note:       note,
		CreatedAt:  time.Now().UTC(),
	}); err != nil {
		log.Warn().Err(err).Str("action", action).Str("entity", entityType+"/"+entityID).Msg("audit write failed")
	}
}

func toJSON(v any) string {
	if v == nil {
		return ""
	}
	payload, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(payload)
}

func (s *Service) ListAuditEntries(ctx context.Context, entityType string, entityID string, limit int) ([]domain.AuditEntry, error) {
	return s.repo.ListAuditEntries(ctx, entityType, entityID, limit)
}
