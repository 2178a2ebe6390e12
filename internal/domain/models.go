package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type UOM struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Symbol string `json:"symbol"`
}

type UOMConversion struct {
	FromUomID string          `json:"from_uom_id"`
	ToUomID   string          `json:"to_uom_id"`
	Rate      decimal.Decimal `json:"rate"`
}

type Product struct {
	ID        string `json:"id"`
	SKU       string `json:"sku"`
	Name      string `json:"name"`
	BaseUomID string `json:"base_uom_id"`
	Active    bool   `json:"active"`
}

type Location struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Active bool   `json:"active"`
}

type StockLevel struct {
	ProductID  string          `json:"product_id"`
	LocationID string          `json:"location_id"`
	Quantity   decimal.Decimal `json:"quantity"`
}

type Movement struct {
	ID            string          `json:"id"`
	ProductID     string          `json:"product_id"`
	LocationID    string          `json:"location_id"`
	Type          string          `json:"type"`
	Quantity      decimal.Decimal `json:"quantity"`
	ReferenceID   string          `json:"reference_id,omitempty"`
	ReferenceType string          `json:"reference_type,omitempty"`
	Notes         string          `json:"notes,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
}

// StockEffect records the stock change an approved adjustment actually
// applied, so a later reversal undoes exactly what was done rather than
// recomputing from possibly-edited fields.
type StockEffect struct {
	ProductID  string          `json:"product_id"`
	LocationID string          `json:"location_id"`
	Quantity   decimal.Decimal `json:"quantity"`
}

type Procurement struct {
	ID         string          `json:"id"`
	ProductID  string          `json:"product_id"`
	LocationID string          `json:"location_id"`
	Quantity   decimal.Decimal `json:"quantity"`
	UomID      string          `json:"uom_id"`
	UnitPrice  decimal.Decimal `json:"unit_price"`
	Supplier   string          `json:"supplier,omitempty"`
	PIC        string          `json:"pic,omitempty"`
	Notes      string          `json:"notes,omitempty"`
	Status     string          `json:"status"`
	Applied    *StockEffect    `json:"applied_effect,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
	DeletedAt  *time.Time      `json:"deleted_at,omitempty"`
}

type Disposal struct {
	ID         string          `json:"id"`
	ProductID  string          `json:"product_id"`
	LocationID string          `json:"location_id"`
	Quantity   decimal.Decimal `json:"quantity"`
	UomID      string          `json:"uom_id"`
	Reason     string          `json:"reason,omitempty"`
	PIC        string          `json:"pic,omitempty"`
	Notes      string          `json:"notes,omitempty"`
	Status     string          `json:"status"`
	Applied    *StockEffect    `json:"applied_effect,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
	DeletedAt  *time.Time      `json:"deleted_at,omitempty"`
}

type SaleItem struct {
	ID        string          `json:"id"`
	SaleID    string          `json:"sale_id"`
	ProductID string          `json:"product_id"`
	Quantity  decimal.Decimal `json:"quantity"`
	UomID     string          `json:"uom_id"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Subtotal  decimal.Decimal `json:"subtotal"`
	// BaseQuantity is the quantity converted to the product base unit, as
	// applied to stock. Reversals use this value verbatim.
	BaseQuantity decimal.Decimal `json:"base_quantity"`
}

type Sale struct {
	ID            string          `json:"id"`
	LocationID    string          `json:"location_id"`
	CustomerName  string          `json:"customer_name,omitempty"`
	InvoiceNumber string          `json:"invoice_number"`
	Items         []SaleItem      `json:"items"`
	DiscountType  string          `json:"discount_type,omitempty"`
	DiscountValue decimal.Decimal `json:"discount_value"`
	Subtotal      decimal.Decimal `json:"subtotal"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
	Notes         string          `json:"notes,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
	DeletedAt     *time.Time      `json:"deleted_at,omitempty"`
}

type ProcurementCreateRequest struct {
	ProductID  string          `json:"product_id" validate:"required"`
	LocationID string          `json:"location_id" validate:"required"`
	Quantity   decimal.Decimal `json:"quantity" validate:"required"`
	UomID      string          `json:"uom_id" validate:"required"`
	UnitPrice  decimal.Decimal `json:"unit_price"`
	Supplier   string          `json:"supplier"`
	PIC        string          `json:"pic"`
	Notes      string          `json:"notes"`
}

type ProcurementUpdateRequest struct {
	Quantity  *decimal.Decimal `json:"quantity,omitempty"`
	UomID     *string          `json:"uom_id,omitempty"`
	UnitPrice *decimal.Decimal `json:"unit_price,omitempty"`
	Supplier  *string          `json:"supplier,omitempty"`
	PIC       *string          `json:"pic,omitempty"`
	Notes     *string          `json:"notes,omitempty"`
}

type DisposalCreateRequest struct {
	ProductID  string          `json:"product_id" validate:"required"`
	LocationID string          `json:"location_id" validate:"required"`
	Quantity   decimal.Decimal `json:"quantity" validate:"required"`
	UomID      string          `json:"uom_id" validate:"required"`
	Reason     string          `json:"reason"`
	PIC        string          `json:"pic"`
	Notes      string          `json:"notes"`
}

type DisposalUpdateRequest struct {
	Quantity *decimal.Decimal `json:"quantity,omitempty"`
	UomID    *string          `json:"uom_id,omitempty"`
	Reason   *string          `json:"reason,omitempty"`
	PIC      *string          `json:"pic,omitempty"`
	Notes    *string          `json:"notes,omitempty"`
}

type SaleItemRequest struct {
	ProductID string          `json:"product_id" validate:"required"`
	Quantity  decimal.Decimal `json:"quantity" validate:"required"`
	UomID     string          `json:"uom_id" validate:"required"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

type SaleCreateRequest struct {
	LocationID    string            `json:"location_id" validate:"required"`
	CustomerName  string            `json:"customer_name"`
	Items         []SaleItemRequest `json:"items" validate:"required,min=1,dive"`
	DiscountType  string            `json:"discount_type" validate:"omitempty,oneof=percentage fixed"`
	DiscountValue decimal.Decimal   `json:"discount_value"`
	Notes         string            `json:"notes"`
}

type SaleUpdateRequest struct {
	CustomerName  *string           `json:"customer_name,omitempty"`
	Items         []SaleItemRequest `json:"items,omitempty" validate:"omitempty,min=1,dive"`
	DiscountType  *string           `json:"discount_type,omitempty" validate:"omitempty,oneof=percentage fixed"`
	DiscountValue *decimal.Decimal  `json:"discount_value,omitempty"`
	Notes         *string           `json:"notes,omitempty"`
}

type TransferRequest struct {
	ProductID      string          `json:"product_id" validate:"required"`
	FromLocationID string          `json:"from_location_id" validate:"required"`
	ToLocationID   string          `json:"to_location_id" validate:"required"`
	Quantity       decimal.Decimal `json:"quantity" validate:"required"`
	UomID          string          `json:"uom_id"`
	Notes          string          `json:"notes"`
}

type TransferResult struct {
	OutMovement Movement `json:"out_movement"`
	InMovement  Movement `json:"in_movement"`
}

type ReconciliationRow struct {
	ProductID  string          `json:"product_id"`
	LocationID string          `json:"location_id"`
	Level      decimal.Decimal `json:"level"`
	LedgerSum  decimal.Decimal `json:"ledger_sum"`
	Consistent bool            `json:"consistent"`
}

type AuditEntry struct {
	ID         string    `json:"id"`
	EntityType string    `json:"entity_type"`
	EntityID   string    `json:"entity_id"`
	Action     string    `json:"action"`
	Actor      string    `json:"actor,omitempty"`
	OldValue   string    `json:"old_value,omitempty"`
	NewValue   string    `json:"new_value,omitempty"`
	Note       string    `json:"note,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type LoginResponse struct {
	AccessToken string `json:"access_token"`
	Role        string `json:"role"`
	ExpiresAt   string `json:"expires_at"`
}

type Actor struct {
	Username string
	Role     string
}

// UserAccount is an internal persistence model for auth credentials.
type UserAccount struct {
	Username  string
	Password  string
	Role      string
	Active    bool
	CreatedAt time.Time
}

const (
	AdjustmentStatusPending  = "pending"
	AdjustmentStatusApproved = "approved"
	AdjustmentStatusRejected = "rejected"
)

const (
	MovementTypeProcurement = "procurement"
	MovementTypeSale        = "sale"
	MovementTypeDisposal    = "disposal"
	MovementTypeAdjustment  = "adjustment"
	MovementTypeTransfer    = "transfer"
)

const (
	DiscountTypePercentage = "percentage"
	DiscountTypeFixed      = "fixed"
)

const (
	AuditActionCreate   = "create"
	AuditActionUpdate   = "update"
	AuditActionDelete   = "delete"
	AuditActionRestore  = "restore"
	AuditActionApprove  = "approve"
	AuditActionReject   = "reject"
	AuditActionTransfer = "transfer"
)
