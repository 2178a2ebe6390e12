package store

import (
	"context"
	"errors"
	"time"

	"stokgudang/backend/internal/domain"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrInvalidInput      = errors.New("invalid input")
	ErrMissingConversion = errors.New("missing uom conversion")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrInvalidState      = errors.New("invalid state transition")
	ErrForbidden         = errors.New("forbidden")
)

type MovementFilter struct {
	ProductID  string
	LocationID string
	Type       string
	From       time.Time
	To         time.Time
	Limit      int
}

type Repository interface {
	GetProductByID(ctx context.Context, id string) (*domain.Product, error)
	GetProductsByIDs(ctx context.Context, ids []string) (map[string]domain.Product, error)
	ListProducts(ctx context.Context) ([]domain.Product, error)
	GetLocationByID(ctx context.Context, id string) (*domain.Location, error)
	ListLocations(ctx context.Context) ([]domain.Location, error)
	ListUOMs(ctx context.Context) ([]domain.UOM, error)
	ListUOMConversions(ctx context.Context) ([]domain.UOMConversion, error)

	GetStock(ctx context.Context, productID string, locationID string) (domain.StockLevel, error)
	GetStockMap(ctx context.Context, locationID string, productIDs []string) (map[string]domain.StockLevel, error)
	ListStockLevels(ctx context.Context, locationID string) ([]domain.StockLevel, error)
	ListMovements(ctx context.Context, filter MovementFilter) ([]domain.Movement, error)
	ReconstructStock(ctx context.Context, productID string, locationID string) (domain.StockLevel, error)
	// ApplyMovements applies every movement's signed quantity as a delta to
	// its stock row and appends the movement rows, atomically. The whole
	// batch fails with ErrInsufficientStock if any level would go negative.
	ApplyMovements(ctx context.Context, movements []domain.Movement) error

	CreateProcurement(ctx context.Context, p domain.Procurement) (*domain.Procurement, error)
	GetProcurementByID(ctx context.Context, id string) (*domain.Procurement, error)
	ListProcurements(ctx context.Context, status string, includeDeleted bool, limit int) ([]domain.Procurement, error)
	SaveProcurement(ctx context.Context, p domain.Procurement, movements []domain.Movement) (*domain.Procurement, error)

	CreateDisposal(ctx context.Context, d domain.Disposal) (*domain.Disposal, error)
	GetDisposalByID(ctx context.Context, id string) (*domain.Disposal, error)
	ListDisposals(ctx context.Context, status string, includeDeleted bool, limit int) ([]domain.Disposal, error)
	SaveDisposal(ctx context.Context, d domain.Disposal, movements []domain.Movement) (*domain.Disposal, error)

	// CreateSale assigns the invoice number inside the same transaction
	// that persists the sale and applies its movements.
	CreateSale(ctx context.Context, sale domain.Sale, movements []domain.Movement) (*domain.Sale, error)
	GetSaleByID(ctx context.Context, id string) (*domain.Sale, error)
	ListSales(ctx context.Context, locationID string, includeDeleted bool, limit int) ([]domain.Sale, error)
	SaveSale(ctx context.Context, sale domain.Sale, movements []domain.Movement) (*domain.Sale, error)

	CreateAuditEntry(ctx context.Context, entry domain.AuditEntry) error
	ListAuditEntries(ctx context.Context, entityType string, entityID string, limit int) ([]domain.AuditEntry, error)

	CreateUser(ctx context.Context, user domain.UserAccount) error
	ListUsers(ctx context.Context) ([]domain.UserAccount, error)
	UpdateUserPassword(ctx context.Context, username string, password string) error
}
