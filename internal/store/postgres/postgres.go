package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/shopspring/decimal"

	"stokgudang/backend/internal/domain"
	"stokgudang/backend/internal/store"
	"stokgudang/backend/internal/xid"
)

type Store struct {
	db *sql.DB
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(8)
	db.SetMaxOpenConns(30)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) GetProductByID(ctx context.Context, id string) (*domain.Product, error) {
	var p domain.Product
	err := s.db.QueryRowContext(ctx, `
		SELECT id, sku, name, base_uom_id, active
		FROM products
		WHERE id = $1
	`, id).Scan(&p.ID, &p.SKU, &p.Name, &p.BaseUomID, &p.Active)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (s *Store) GetProductsByIDs(ctx context.Context, ids []string) (map[string]domain.Product, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, sku, name, base_uom_id, active
		FROM products
		WHERE id = ANY($1)
	`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	products := make(map[string]domain.Product, len(ids))
	for rows.Next() {
		var p domain.Product
		if err := rows.Scan(&p.ID, &p.SKU, &p.Name, &p.BaseUomID, &p.Active); err != nil {
			return nil, err
		}
		products[p.ID] = p
	}
	return products, rows.Err()
}

func (s *Store) ListProducts(ctx context.Context) ([]domain.Product, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, sku, name, base_uom_id, active
		FROM products
		ORDER BY name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	products := make([]domain.Product, 0, 128)
	for rows.Next() {
		var p domain.Product
		if err := rows.Scan(&p.ID, &p.SKU, &p.Name, &p.BaseUomID, &p.Active); err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

func (s *Store) GetLocationByID(ctx context.Context, id string) (*domain.Location, error) {
	var l domain.Location
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, active FROM locations WHERE id = $1
	`, id).Scan(&l.ID, &l.Name, &l.Active)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &l, nil
}

func (s *Store) ListLocations(ctx context.Context) ([]domain.Location, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, active FROM locations ORDER BY id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	locations := make([]domain.Location, 0, 16)
	for rows.Next() {
		var l domain.Location
		if err := rows.Scan(&l.ID, &l.Name, &l.Active); err != nil {
			return nil, err
		}
		locations = append(locations, l)
	}
	return locations, rows.Err()
}

func (s *Store) ListUOMs(ctx context.Context) ([]domain.UOM, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, symbol FROM uoms ORDER BY id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	uoms := make([]domain.UOM, 0, 16)
	for rows.Next() {
		var u domain.UOM
		if err := rows.Scan(&u.ID, &u.Name, &u.Symbol); err != nil {
			return nil, err
		}
		uoms = append(uoms, u)
	}
	return uoms, rows.Err()
}

func (s *Store) ListUOMConversions(ctx context.Context) ([]domain.UOMConversion, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT from_uom_id, to_uom_id, rate FROM uom_conversions
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	conversions := make([]domain.UOMConversion, 0, 32)
	for rows.Next() {
		var c domain.UOMConversion
		if err := rows.Scan(&c.FromUomID, &c.ToUomID, &c.Rate); err != nil {
			return nil, err
		}
		conversions = append(conversions, c)
	}
	return conversions, rows.Err()
}

func (s *Store) GetStock(ctx context.Context, productID string, locationID string) (domain.StockLevel, error) {
	level := domain.StockLevel{ProductID: productID, LocationID: locationID, Quantity: decimal.Zero}
	err := s.db.QueryRowContext(ctx, `
		SELECT quantity FROM stock_levels
		WHERE product_id = $1 AND location_id = $2
	`, productID, locationID).Scan(&level.Quantity)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return domain.StockLevel{}, err
	}
	return level, nil
}

func (s *Store) GetStockMap(ctx context.Context, locationID string, productIDs []string) (map[string]domain.StockLevel, error) {
	out := make(map[string]domain.StockLevel, len(productIDs))
	for _, id := range productIDs {
		out[id] = domain.StockLevel{ProductID: id, LocationID: locationID, Quantity: decimal.Zero}
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT product_id, quantity FROM stock_levels
		WHERE location_id = $1 AND product_id = ANY($2)
	`, locationID, productIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var productID string
		var qty decimal.Decimal
		if err := rows.Scan(&productID, &qty); err != nil {
			return nil, err
		}
		out[productID] = domain.StockLevel{ProductID: productID, LocationID: locationID, Quantity: qty}
	}
	return out, rows.Err()
}

func (s *Store) ListStockLevels(ctx context.Context, locationID string) ([]domain.StockLevel, error) {
	query := `
		SELECT product_id, location_id, quantity FROM stock_levels
		ORDER BY location_id, product_id
	`
	args := []any{}
	if locationID != "" {
		query = `
			SELECT product_id, location_id, quantity FROM stock_levels
			WHERE location_id = $1
			ORDER BY product_id
		`
		args = append(args, locationID)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	levels := make([]domain.StockLevel, 0, 128)
	for rows.Next() {
		var level domain.StockLevel
		if err := rows.Scan(&level.ProductID, &level.LocationID, &level.Quantity); err != nil {
			return nil, err
		}
		levels = append(levels, level)
	}
	return levels, rows.Err()
}

func (s *Store) ListMovements(ctx context.Context, filter store.MovementFilter) ([]domain.Movement, error) {
	conditions := make([]string, 0, 5)
	args := make([]any, 0, 5)
	add := func(cond string, val any) {
		args = append(args, val)
		conditions = append(conditions, fmt.Sprintf(cond, len(args)))
	}
	if filter.ProductID != "" {
		add("product_id = $%d", filter.ProductID)
	}
	if filter.LocationID != "" {
		add("location_id = $%d", filter.LocationID)
	}
	if filter.Type != "" {
		add("movement_type = $%d", filter.Type)
	}
	if !filter.From.IsZero() {
		add("created_at >= $%d", filter.From)
	}
	if !filter.To.IsZero() {
		add("created_at <= $%d", filter.To)
	}

	query := `
		SELECT id, product_id, location_id, movement_type, quantity,
			COALESCE(reference_id, ''), COALESCE(reference_type, ''), COALESCE(notes, ''), created_at
		FROM stock_movements
	`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY created_at DESC"
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	movements := make([]domain.Movement, 0, 128)
	for rows.Next() {
		var m domain.Movement
		if err := rows.Scan(&m.ID, &m.ProductID, &m.LocationID, &m.Type, &m.Quantity, &m.ReferenceID, &m.ReferenceType, &m.Notes, &m.CreatedAt); err != nil {
			return nil, err
		}
		movements = append(movements, m)
	}
	return movements, rows.Err()
}

func (s *Store) ReconstructStock(ctx context.Context, productID string, locationID string) (domain.StockLevel, error) {
	level := domain.StockLevel{ProductID: productID, LocationID: locationID}
	err := s.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(quantity), 0) FROM stock_movements
		WHERE product_id = $1 AND location_id = $2
	`, productID, locationID).Scan(&level.Quantity)
	if err != nil {
		return domain.StockLevel{}, err
	}
	return level, nil
}

func (s *Store) ApplyMovements(ctx context.Context, movements []domain.Movement) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if err := applyMovementsTx(ctx, tx, movements); err != nil {
		return err
	}
	return tx.Commit()
}

// applyMovementsTx locks every touched stock row, verifies no level would go
// negative, then writes the new levels and appends the movement rows. Runs
// inside the caller's transaction so entity writes and stock writes commit
// together.
func applyMovementsTx(ctx context.Context, tx *sql.Tx, movements []domain.Movement) error {
	if len(movements) == 0 {
		return nil
	}

	type key struct{ productID, locationID string }
	projected := make(map[key]decimal.Decimal, len(movements))
	order := make([]key, 0, len(movements))

	for _, m := range movements {
		if m.ProductID == "" || m.LocationID == "" || m.Type == "" || m.Quantity.IsZero() {
			return store.ErrInvalidInput
		}
		k := key{m.ProductID, m.LocationID}
		if _, seen := projected[k]; !seen {
			var qty decimal.Decimal
			err := tx.QueryRowContext(ctx, `
				SELECT quantity FROM stock_levels
				WHERE product_id = $1 AND location_id = $2
				FOR UPDATE
			`, m.ProductID, m.LocationID).Scan(&qty)
			if errors.Is(err, sql.ErrNoRows) {
				qty = decimal.Zero
			} else if err != nil {
				return err
			}
			projected[k] = qty
			order = append(order, k)
		}
		next := projected[k].Add(m.Quantity)
		if next.Sign() < 0 {
			return fmt.Errorf("stock for %s at %s would drop to %s: %w", m.ProductID, m.LocationID, next, store.ErrInsufficientStock)
		}
		projected[k] = next
	}

	for _, k := range order {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO stock_levels (product_id, location_id, quantity)
			VALUES ($1, $2, $3)
			ON CONFLICT (product_id, location_id) DO UPDATE SET quantity = EXCLUDED.quantity
		`, k.productID, k.locationID, projected[k])
		if err != nil {
			return err
		}
	}

	now := time.Now().UTC()
	for _, m := range movements {
		if m.ID == "" {
			m.ID = xid.New("mov")
		}
		if m.CreatedAt.IsZero() {
			m.CreatedAt = now
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO stock_movements (id, product_id, location_id, movement_type, quantity, reference_id, reference_type, notes, created_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		`, m.ID, m.ProductID, m.LocationID, m.Type, m.Quantity, nullIfEmpty(m.ReferenceID), nullIfEmpty(m.ReferenceType), nullIfEmpty(m.Notes), m.CreatedAt)
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) CreateProcurement(ctx context.Context, p domain.Procurement) (*domain.Procurement, error) {
	if p.ID == "" {
		p.ID = xid.New("prc")
	}
	now := time.Now().UTC()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO procurements (id, product_id, location_id, quantity, uom_id, unit_price, supplier, pic, notes, status, applied_quantity, created_at, updated_at, deleted_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
	`, p.ID, p.ProductID, p.LocationID, p.Quantity, p.UomID, p.UnitPrice, nullIfEmpty(p.Supplier), nullIfEmpty(p.PIC), nullIfEmpty(p.Notes), p.Status, appliedQuantity(p.Applied), p.CreatedAt, p.UpdatedAt, nullTime(p.DeletedAt))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrInvalidInput
		}
		return nil, err
	}

	created := p
	return &created, nil
}

const procurementColumns = `
	id, product_id, location_id, quantity, uom_id, unit_price,
	COALESCE(supplier, ''), COALESCE(pic, ''), COALESCE(notes, ''),
	status, applied_quantity, created_at, updated_at, deleted_at
`

func scanProcurement(row interface{ Scan(...any) error }) (*domain.Procurement, error) {
	var p domain.Procurement
	var applied decimal.NullDecimal
	var deletedAt sql.NullTime
	err := row.Scan(&p.ID, &p.ProductID, &p.LocationID, &p.Quantity, &p.UomID, &p.UnitPrice,
		&p.Supplier, &p.PIC, &p.Notes, &p.Status, &applied, &p.CreatedAt, &p.UpdatedAt, &deletedAt)
	if err != nil {
		return nil, err
	}
	if applied.Valid {
		p.Applied = &domain.StockEffect{ProductID: p.ProductID, LocationID: p.LocationID, Quantity: applied.Decimal}
	}
	if deletedAt.Valid {
		t := deletedAt.Time
		p.DeletedAt = &t
	}
	return &p, nil
}

func (s *Store) GetProcurementByID(ctx context.Context, id string) (*domain.Procurement, error) {
	p, err := scanProcurement(s.db.QueryRowContext(ctx, `
		SELECT `+procurementColumns+` FROM procurements WHERE id = $1
	`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return p, nil
}

func (s *Store) ListProcurements(ctx context.Context, status string, includeDeleted bool, limit int) ([]domain.Procurement, error) {
	conditions := make([]string, 0, 2)
	args := make([]any, 0, 3)
	if status != "" {
		args = append(args, status)
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)))
	}
	if !includeDeleted {
		conditions = append(conditions, "deleted_at IS NULL")
	}

	query := `SELECT ` + procurementColumns + ` FROM procurements`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY created_at DESC"
	if limit > 0 {
		args = append(args, limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	procurements := make([]domain.Procurement, 0, 64)
	for rows.Next() {
		p, err := scanProcurement(rows)
		if err != nil {
			return nil, err
		}
		procurements = append(procurements, *p)
	}
	return procurements, rows.Err()
}

func (s *Store) SaveProcurement(ctx context.Context, p domain.Procurement, movements []domain.Movement) (*domain.Procurement, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	p.UpdatedAt = time.Now().UTC()
	res, err := tx.ExecContext(ctx, `
		UPDATE procurements
		SET quantity = $2, uom_id = $3, unit_price = $4, supplier = $5, pic = $6, notes = $7,
			status = $8, applied_quantity = $9, updated_at = $10, deleted_at = $11
		WHERE id = $1
	`, p.ID, p.Quantity, p.UomID, p.UnitPrice, nullIfEmpty(p.Supplier), nullIfEmpty(p.PIC), nullIfEmpty(p.Notes),
		p.Status, appliedQuantity(p.Applied), p.UpdatedAt, nullTime(p.DeletedAt))
	if err != nil {
		return nil, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, store.ErrNotFound
	}

	if err := applyMovementsTx(ctx, tx, movements); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}

	saved := p
	return &saved, nil
}

func (s *Store) CreateDisposal(ctx context.Context, d domain.Disposal) (*domain.Disposal, error) {
	if d.ID == "" {
		d.ID = xid.New("dsp")
	}
	now := time.Now().UTC()
	if d.CreatedAt.IsZero() {
		d.CreatedAt = now
	}
	d.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO disposals (id, product_id, location_id, quantity, uom_id, reason, pic, notes, status, applied_quantity, created_at, updated_at, deleted_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
	`, d.ID, d.ProductID, d.LocationID, d.Quantity, d.UomID, nullIfEmpty(d.Reason), nullIfEmpty(d.PIC), nullIfEmpty(d.Notes), d.Status, appliedQuantity(d.Applied), d.CreatedAt, d.UpdatedAt, nullTime(d.DeletedAt))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrInvalidInput
		}
		return nil, err
	}

	created := d
	return &created, nil
}

const disposalColumns = `
	id, product_id, location_id, quantity, uom_id,
	COALESCE(reason, ''), COALESCE(pic, ''), COALESCE(notes, ''),
	status, applied_quantity, created_at, updated_at, deleted_at
`

func scanDisposal(row interface{ Scan(...any) error }) (*domain.Disposal, error) {
	var d domain.Disposal
	var applied decimal.NullDecimal
	var deletedAt sql.NullTime
	err := row.Scan(&d.ID, &d.ProductID, &d.LocationID, &d.Quantity, &d.UomID,
		&d.Reason, &d.PIC, &d.Notes, &d.Status, &applied, &d.CreatedAt, &d.UpdatedAt, &deletedAt)
	if err != nil {
		return nil, err
	}
	if applied.Valid {
		d.Applied = &domain.StockEffect{ProductID: d.ProductID, LocationID: d.LocationID, Quantity: applied.Decimal}
	}
	if deletedAt.Valid {
		t := deletedAt.Time
		d.DeletedAt = &t
	}
	return &d, nil
}

func (s *Store) GetDisposalByID(ctx context.Context, id string) (*domain.Disposal, error) {
	d, err := scanDisposal(s.db.QueryRowContext(ctx, `
		SELECT `+disposalColumns+` FROM disposals WHERE id = $1
	`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return d, nil
}

func (s *Store) ListDisposals(ctx context.Context, status string, includeDeleted bool, limit int) ([]domain.Disposal, error) {
	conditions := make([]string, 0, 2)
	args := make([]any, 0, 3)
	if status != "" {
		args = append(args, status)
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)))
	}
	if !includeDeleted {
		conditions = append(conditions, "deleted_at IS NULL")
	}

	query := `SELECT ` + disposalColumns + ` FROM disposals`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY created_at DESC"
	if limit > 0 {
		args = append(args, limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	disposals := make([]domain.Disposal, 0, 64)
	for rows.Next() {
		d, err := scanDisposal(rows)
		if err != nil {
			return nil, err
		}
		disposals = append(disposals, *d)
	}
	return disposals, rows.Err()
}

func (s *Store) SaveDisposal(ctx context.Context, d domain.Disposal, movements []domain.Movement) (*domain.Disposal, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	d.UpdatedAt = time.Now().UTC()
	res, err := tx.ExecContext(ctx, `
		UPDATE disposals
		SET quantity = $2, uom_id = $3, reason = $4, pic = $5, notes = $6,
			status = $7, applied_quantity = $8, updated_at = $9, deleted_at = $10
		WHERE id = $1
	`, d.ID, d.Quantity, d.UomID, nullIfEmpty(d.Reason), nullIfEmpty(d.PIC), nullIfEmpty(d.Notes),
		d.Status, appliedQuantity(d.Applied), d.UpdatedAt, nullTime(d.DeletedAt))
	if err != nil {
		return nil, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, store.ErrNotFound
	}

	if err := applyMovementsTx(ctx, tx, movements); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}

	saved := d
	return &saved, nil
}

// nextInvoiceNumber computes the next per-month sequence inside the current
// transaction. The unique constraint on invoice_number backstops concurrent
// inserts under serializable isolation.
func nextInvoiceNumber(ctx context.Context, tx *sql.Tx, at time.Time) (string, error) {
	prefix := "INV-" + at.Format("200601") + "-"
	// Compare numeric suffixes, not strings: past sequence 9999 the padded
	// form grows a digit and a lexicographic MAX would go backwards.
	var seq sql.NullInt64
	err := tx.QueryRowContext(ctx, `
		SELECT MAX(CAST(SUBSTRING(invoice_number FROM char_length($2) + 1) AS INTEGER))
		FROM sales WHERE invoice_number LIKE $1
	`, prefix+"%", prefix).Scan(&seq)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s%04d", prefix, seq.Int64+1), nil
}

func (s *Store) CreateSale(ctx context.Context, sale domain.Sale, movements []domain.Movement) (*domain.Sale, error) {
	if sale.ID == "" {
		sale.ID = xid.New("sale")
	}
	now := time.Now().UTC()
	if sale.CreatedAt.IsZero() {
		sale.CreatedAt = now
	}
	sale.UpdatedAt = now

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	if err := applyMovementsTx(ctx, tx, movements); err != nil {
		return nil, err
	}

	sale.InvoiceNumber, err = nextInvoiceNumber(ctx, tx, sale.CreatedAt)
	if err != nil {
		return nil, err
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO sales (id, location_id, customer_name, invoice_number, discount_type, discount_value, subtotal, total_amount, notes, created_at, updated_at, deleted_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
	`, sale.ID, sale.LocationID, nullIfEmpty(sale.CustomerName), sale.InvoiceNumber, nullIfEmpty(sale.DiscountType), sale.DiscountValue, sale.Subtotal, sale.TotalAmount, nullIfEmpty(sale.Notes), sale.CreatedAt, sale.UpdatedAt, nullTime(sale.DeletedAt))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrInvalidInput
		}
		return nil, err
	}

	if err := insertSaleItems(ctx, tx, sale.ID, sale.Items); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}

	created := sale
	return &created, nil
}

func insertSaleItems(ctx context.Context, tx *sql.Tx, saleID string, items []domain.SaleItem) error {
	for i := range items {
		item := &items[i]
		if item.ID == "" {
			item.ID = xid.New("sli")
		}
		item.SaleID = saleID
		_, err := tx.ExecContext(ctx, `
			INSERT INTO sale_items (id, sale_id, product_id, quantity, uom_id, unit_price, subtotal, base_quantity)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		`, item.ID, item.SaleID, item.ProductID, item.Quantity, item.UomID, item.UnitPrice, item.Subtotal, item.BaseQuantity)
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) GetSaleByID(ctx context.Context, id string) (*domain.Sale, error) {
	sale, err := scanSale(s.db.QueryRowContext(ctx, `
		SELECT `+saleColumns+` FROM sales WHERE id = $1
	`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}

	items, err := s.loadSaleItems(ctx, []string{id})
	if err != nil {
		return nil, err
	}
	sale.Items = items[id]
	return sale, nil
}

const saleColumns = `
	id, location_id, COALESCE(customer_name, ''), invoice_number,
	COALESCE(discount_type, ''), discount_value, subtotal, total_amount,
	COALESCE(notes, ''), created_at, updated_at, deleted_at
`

func scanSale(row interface{ Scan(...any) error }) (*domain.Sale, error) {
	var sale domain.Sale
	var deletedAt sql.NullTime
	err := row.Scan(&sale.ID, &sale.LocationID, &sale.CustomerName, &sale.InvoiceNumber,
		&sale.DiscountType, &sale.DiscountValue, &sale.Subtotal, &sale.TotalAmount,
		&sale.Notes, &sale.CreatedAt, &sale.UpdatedAt, &deletedAt)
	if err != nil {
		return nil, err
	}
	if deletedAt.Valid {
		t := deletedAt.Time
		sale.DeletedAt = &t
	}
	return &sale, nil
}

func (s *Store) loadSaleItems(ctx context.Context, saleIDs []string) (map[string][]domain.SaleItem, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, sale_id, product_id, quantity, uom_id, unit_price, subtotal, base_quantity
		FROM sale_items
		WHERE sale_id = ANY($1)
		ORDER BY id
	`, saleIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string][]domain.SaleItem, len(saleIDs))
	for rows.Next() {
		var item domain.SaleItem
		if err := rows.Scan(&item.ID, &item.SaleID, &item.ProductID, &item.Quantity, &item.UomID, &item.UnitPrice, &item.Subtotal, &item.BaseQuantity); err != nil {
			return nil, err
		}
		out[item.SaleID] = append(out[item.SaleID], item)
	}
	return out, rows.Err()
}

func (s *Store) ListSales(ctx context.Context, locationID string, includeDeleted bool, limit int) ([]domain.Sale, error) {
	conditions := make([]string, 0, 2)
	args := make([]any, 0, 3)
	if locationID != "" {
		args = append(args, locationID)
		conditions = append(conditions, fmt.Sprintf("location_id = $%d", len(args)))
	}
	if !includeDeleted {
		conditions = append(conditions, "deleted_at IS NULL")
	}

	query := `SELECT ` + saleColumns + ` FROM sales`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY created_at DESC"
	if limit > 0 {
		args = append(args, limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sales := make([]domain.Sale, 0, 64)
	saleIDs := make([]string, 0, 64)
	for rows.Next() {
		sale, err := scanSale(rows)
		if err != nil {
			return nil, err
		}
		sales = append(sales, *sale)
		saleIDs = append(saleIDs, sale.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if len(saleIDs) > 0 {
		items, err := s.loadSaleItems(ctx, saleIDs)
		if err != nil {
			return nil, err
		}
		for i := range sales {
			sales[i].Items = items[sales[i].ID]
		}
	}
	return sales, nil
}

func (s *Store) SaveSale(ctx context.Context, sale domain.Sale, movements []domain.Movement) (*domain.Sale, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	sale.UpdatedAt = time.Now().UTC()
	res, err := tx.ExecContext(ctx, `
		UPDATE sales
		SET customer_name = $2, discount_type = $3, discount_value = $4, subtotal = $5,
			total_amount = $6, notes = $7, updated_at = $8, deleted_at = $9
		WHERE id = $1
	`, sale.ID, nullIfEmpty(sale.CustomerName), nullIfEmpty(sale.DiscountType), sale.DiscountValue, sale.Subtotal,
		sale.TotalAmount, nullIfEmpty(sale.Notes), sale.UpdatedAt, nullTime(sale.DeletedAt))
	if err != nil {
		return nil, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, store.ErrNotFound
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM sale_items WHERE sale_id = $1`, sale.ID); err != nil {
		return nil, err
	}
	if err := insertSaleItems(ctx, tx, sale.ID, sale.Items); err != nil {
		return nil, err
	}
	if err := applyMovementsTx(ctx, tx, movements); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}

	saved := sale
	return &saved, nil
}

func (s *Store) CreateAuditEntry(ctx context.Context, entry domain.AuditEntry) error {
	if entry.ID == "" {
		entry.ID = xid.New("aud")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_entries (id, entity_type, entity_id, action, actor, old_value, new_value, note, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	`, entry.ID, entry.EntityType, entry.EntityID, entry.Action, nullIfEmpty(entry.Actor), nullIfEmpty(entry.OldValue), nullIfEmpty(entry.NewValue), nullIfEmpty(entry.Note), entry.CreatedAt)
	return err
}

func (s *Store) ListAuditEntries(ctx context.Context, entityType string, entityID string, limit int) ([]domain.AuditEntry, error) {
	conditions := make([]string, 0, 2)
	args := make([]any, 0, 3)
	if entityType != "" {
		args = append(args, entityType)
		conditions = append(conditions, fmt.Sprintf("entity_type = $%d", len(args)))
	}
	if entityID != "" {
		args = append(args, entityID)
		conditions = append(conditions, fmt.Sprintf("entity_id = $%d", len(args)))
	}

	query := `
		SELECT id, entity_type, entity_id, action, COALESCE(actor, ''),
			COALESCE(old_value::text, ''), COALESCE(new_value::text, ''), COALESCE(note, ''), created_at
		FROM audit_entries
	`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY created_at DESC"
	if limit > 0 {
		args = append(args, limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := make([]domain.AuditEntry, 0, 64)
	for rows.Next() {
		var e domain.AuditEntry
		if err := rows.Scan(&e.ID, &e.EntityType, &e.EntityID, &e.Action, &e.Actor, &e.OldValue, &e.NewValue, &e.Note, &e.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (s *Store) CreateUser(ctx context.Context, user domain.UserAccount) error {
	if user.Username == "" || user.Password == "" {
		return store.ErrInvalidInput
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (username, password, role, active, created_at)
		VALUES ($1,$2,$3,$4,$5)
	`, user.Username, user.Password, user.Role, user.Active, user.CreatedAt)
	if isUniqueViolation(err) {
		return store.ErrInvalidInput
	}
	return err
}

func (s *Store) ListUsers(ctx context.Context) ([]domain.UserAccount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT username, password, role, active, created_at FROM users ORDER BY username
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]domain.UserAccount, 0, 16)
	for rows.Next() {
		var u domain.UserAccount
		if err := rows.Scan(&u.Username, &u.Password, &u.Role, &u.Active, &u.CreatedAt); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func (s *Store) UpdateUserPassword(ctx context.Context, username string, password string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE users SET password = $2 WHERE username = $1
	`, username, password)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func appliedQuantity(effect *domain.StockEffect) any {
	if effect == nil {
		return nil
	}
	return effect.Quantity
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

func nullIfEmpty(val string) any {
	if val == "" {
		return nil
	}
	return val
}

func nullTime(val *time.Time) any {
	if val == nil {
		return nil
	}
	return *val
}
