package postgres

import "context"

// Migrate creates the schema if it does not exist yet. Statements are
// idempotent so the call is safe on every startup.
func (s *Store) Migrate(ctx context.Context) error {
	schema := []string{
		`CREATE TABLE IF NOT EXISTS uoms (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			symbol TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE TABLE IF NOT EXISTS uom_conversions (
			from_uom_id TEXT NOT NULL REFERENCES uoms(id),
			to_uom_id TEXT NOT NULL REFERENCES uoms(id),
			rate NUMERIC(20,6) NOT NULL CHECK (rate > 0),
			PRIMARY KEY (from_uom_id, to_uom_id)
		)`,
		`CREATE TABLE IF NOT EXISTS locations (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			active BOOLEAN NOT NULL DEFAULT true
		)`,
		`CREATE TABLE IF NOT EXISTS products (
			id TEXT PRIMARY KEY,
			sku TEXT NOT NULL UNIQUE,
			name TEXT NOT NULL,
			base_uom_id TEXT NOT NULL REFERENCES uoms(id),
			active BOOLEAN NOT NULL DEFAULT true,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS stock_levels (
			product_id TEXT NOT NULL REFERENCES products(id),
			location_id TEXT NOT NULL REFERENCES locations(id),
			quantity NUMERIC(20,6) NOT NULL DEFAULT 0 CHECK (quantity >= 0),
			PRIMARY KEY (product_id, location_id)
		)`,
		`CREATE TABLE IF NOT EXISTS stock_movements (
			id TEXT PRIMARY KEY,
			product_id TEXT NOT NULL REFERENCES products(id),
			location_id TEXT NOT NULL REFERENCES locations(id),
			movement_type TEXT NOT NULL,
			quantity NUMERIC(20,6) NOT NULL,
			reference_id TEXT,
			reference_type TEXT,
			notes TEXT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_stock_movements_product_location
			ON stock_movements (product_id, location_id)`,
		`CREATE TABLE IF NOT EXISTS procurements (
			id TEXT PRIMARY KEY,
			product_id TEXT NOT NULL REFERENCES products(id),
			location_id TEXT NOT NULL REFERENCES locations(id),
			quantity NUMERIC(20,6) NOT NULL CHECK (quantity > 0),
			uom_id TEXT NOT NULL REFERENCES uoms(id),
			unit_price NUMERIC(20,2) NOT NULL DEFAULT 0,
			supplier TEXT,
			pic TEXT,
			notes TEXT,
			status TEXT NOT NULL,
			applied_quantity NUMERIC(20,6),
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			deleted_at TIMESTAMPTZ
		)`,
		`CREATE TABLE IF NOT EXISTS disposals (
			id TEXT PRIMARY KEY,
			product_id TEXT NOT NULL REFERENCES products(id),
			location_id TEXT NOT NULL REFERENCES locations(id),
			quantity NUMERIC(20,6) NOT NULL CHECK (quantity > 0),
			uom_id TEXT NOT NULL REFERENCES uoms(id),
			reason TEXT,
			pic TEXT,
			notes TEXT,
			status TEXT NOT NULL,
			applied_quantity NUMERIC(20,6),
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			deleted_at TIMESTAMPTZ
		)`,
		`CREATE TABLE IF NOT EXISTS sales (
			id TEXT PRIMARY KEY,
			location_id TEXT NOT NULL REFERENCES locations(id),
			customer_name TEXT,
			invoice_number TEXT NOT NULL UNIQUE,
			discount_type TEXT,
			discount_value NUMERIC(20,2) NOT NULL DEFAULT 0,
			subtotal NUMERIC(20,2) NOT NULL DEFAULT 0,
			total_amount NUMERIC(20,2) NOT NULL DEFAULT 0,
			notes TEXT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			deleted_at TIMESTAMPTZ
		)`,
		`CREATE TABLE IF NOT EXISTS sale_items (
			id TEXT PRIMARY KEY,
			sale_id TEXT NOT NULL REFERENCES sales(id) ON DELETE CASCADE,
			product_id TEXT NOT NULL REFERENCES products(id),
			quantity NUMERIC(20,6) NOT NULL CHECK (quantity > 0),
			uom_id TEXT NOT NULL REFERENCES uoms(id),
			unit_price NUMERIC(20,2) NOT NULL DEFAULT 0,
			subtotal NUMERIC(20,2) NOT NULL DEFAULT 0,
			base_quantity NUMERIC(20,6) NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS audit_entries (
			id TEXT PRIMARY KEY,
			entity_type TEXT NOT NULL,
			entity_id TEXT NOT NULL,
			action TEXT NOT NULL,
			actor TEXT,
			old_value JSONB,
			new_value JSONB,
			note TEXT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_audit_entries_entity
			ON audit_entries (entity_type, entity_id)`,
		`CREATE TABLE IF NOT EXISTS users (
			username TEXT PRIMARY KEY,
			password TEXT NOT NULL,
			role TEXT NOT NULL,
			active BOOLEAN NOT NULL DEFAULT true,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
	}

	for _, stmt := range schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
