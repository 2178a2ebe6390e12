package memory

import (
	"context"
	"fmt"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"

	"stokgudang/backend/internal/domain"
	"stokgudang/backend/internal/store"
	"stokgudang/backend/internal/xid"
)

type Store struct {
	mu              sync.RWMutex
	products        map[string]domain.Product
	locations       map[string]domain.Location
	uoms            map[string]domain.UOM
	conversions     []domain.UOMConversion
	stock           map[string]decimal.Decimal
	movements       []domain.Movement
	procurements    map[string]domain.Procurement
	disposals       map[string]domain.Disposal
	salesByID       map[string]domain.Sale
	invoiceSeq      map[string]int
	auditEntries    []domain.AuditEntry
	usersByUsername map[string]domain.UserAccount
}

func stockKey(productID, locationID string) string {
	return productID + "|" + locationID
}

// seedUsers builds the initial in-memory user accounts for dev/demo mode.
// Credentials are read from SEED_ADMIN_PASSWORD and SEED_STAFF_PASSWORD
// environment variables. If unset, hardcoded dev defaults are used with a
// warning. These credentials are never used in production (the backend uses
// PostgreSQL when DATABASE_URL is set).
func seedUsers() map[string]domain.UserAccount {
	adminPwd := envOr("SEED_ADMIN_PASSWORD", "admin123")
	staffPwd := envOr("SEED_STAFF_PASSWORD", "staff123")
	if os.Getenv("SEED_ADMIN_PASSWORD") == "" || os.Getenv("SEED_STAFF_PASSWORD") == "" {
		log.Warn().Msg("memory store: using default dev credentials, set SEED_ADMIN_PASSWORD and SEED_STAFF_PASSWORD to override")
	}

	now := time.Now().UTC()
	users := map[string]domain.UserAccount{}
	for _, u := range []struct {
		username string
		password string
		role     string
	}{
		{"admin", adminPwd, "admin"},
		{"staff", staffPwd, "staff"},
	} {
		hash, err := bcrypt.GenerateFromPassword([]byte(u.password), bcrypt.DefaultCost)
		if err != nil {
			log.Fatal().Err(err).Str("username", u.username).Msg("memory store: hash seed password")
		}
		users[u.username] = domain.UserAccount{
			Username:  u.username,
			Password:  string(hash),
			Role:      u.role,
			Active:    true,
			CreatedAt: now,
		}
	}
	return users
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func New() *Store {
	return &Store{
		products:        make(map[string]domain.Product),
		locations:       make(map[string]domain.Location),
		uoms:            make(map[string]domain.UOM),
		conversions:     nil,
		stock:           make(map[string]decimal.Decimal),
		movements:       make([]domain.Movement, 0, 128),
		procurements:    make(map[string]domain.Procurement),
		disposals:       make(map[string]domain.Disposal),
		salesByID:       make(map[string]domain.Sale),
		invoiceSeq:      make(map[string]int),
		auditEntries:    make([]domain.AuditEntry, 0, 128),
		usersByUsername: seedUsers(),
	}
}

func NewSeeded() *Store {
	s := New()

	for _, u := range []domain.UOM{
		{ID: "pcs", Name: "Pieces", Symbol: "pcs"},
		{ID: "box", Name: "Box isi 12", Symbol: "box"},
		{ID: "lusin", Name: "Lusin", Symbol: "lsn"},
		{ID: "kg", Name: "Kilogram", Symbol: "kg"},
		{ID: "gram", Name: "Gram", Symbol: "g"},
		{ID: "karung", Name: "Karung 25kg", Symbol: "krg"},
	} {
		s.uoms[u.ID] = u
	}

	s.conversions = []domain.UOMConversion{
		{FromUomID: "box", ToUomID: "pcs", Rate: decimal.NewFromInt(12)},
		{FromUomID: "lusin", ToUomID: "pcs", Rate: decimal.NewFromInt(12)},
		{FromUomID: "kg", ToUomID: "gram", Rate: decimal.NewFromInt(1000)},
		{FromUomID: "karung", ToUomID: "kg", Rate: decimal.NewFromInt(25)},
	}

	for _, l := range []domain.Location{
		{ID: "gudang-utama", Name: "Gudang Utama", Active: true},
		{ID: "toko-depan", Name: "Toko Depan", Active: true},
		{ID: "gudang-cadangan", Name: "Gudang Cadangan", Active: true},
	} {
		s.locations[l.ID] = l
	}

	products := []domain.Product{
		{ID: "prd-mie", SKU: "SKU-MIE-01", Name: "Mie Goreng Instan", BaseUomID: "pcs", Active: true},
		{ID: "prd-telur", SKU: "SKU-TELUR-01", Name: "Telur Ayam", BaseUomID: "kg", Active: true},
		{ID: "prd-susu", SKU: "SKU-SUSU-01", Name: "Susu UHT 1L", BaseUomID: "pcs", Active: true},
		{ID: "prd-kopi", SKU: "SKU-KOPI-01", Name: "Kopi Sachet", BaseUomID: "pcs", Active: true},
		{ID: "prd-gula", SKU: "SKU-GULA-01", Name: "Gula Pasir", BaseUomID: "kg", Active: true},
		{ID: "prd-beras", SKU: "SKU-BERAS-01", Name: "Beras Premium", BaseUomID: "kg", Active: true},
	}
	now := time.Now().UTC()
	for _, p := range products {
		s.products[p.ID] = p
		for _, locID := range []string{"gudang-utama", "toko-depan"} {
			qty := decimal.NewFromInt(120)
			s.stock[stockKey(p.ID, locID)] = qty
			s.movements = append(s.movements, domain.Movement{
				ID:            xid.New("mov"),
				ProductID:     p.ID,
				LocationID:    locID,
				Type:          domain.MovementTypeAdjustment,
				Quantity:      qty,
				ReferenceType: "seed",
				Notes:         "saldo awal",
				CreatedAt:     now,
			})
		}
	}

	return s
}

func (s *Store) GetProductByID(_ context.Context, id string) (*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, exists := s.products[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	out := p
	return &out, nil
}

func (s *Store) GetProductsByIDs(_ context.Context, ids []string) (map[string]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]domain.Product, len(ids))
	for _, id := range ids {
		if p, exists := s.products[id]; exists {
			out[id] = p
		}
	}
	return out, nil
}

func (s *Store) ListProducts(_ context.Context) ([]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	products := make([]domain.Product, 0, len(s.products))
	for _, p := range s.products {
		products = append(products, p)
	}
	slices.SortFunc(products, func(a, b domain.Product) int {
		return strings.Compare(a.Name, b.Name)
	})
	return products, nil
}

func (s *Store) GetLocationByID(_ context.Context, id string) (*domain.Location, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	l, exists := s.locations[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	out := l
	return &out, nil
}

func (s *Store) ListLocations(_ context.Context) ([]domain.Location, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	locations := make([]domain.Location, 0, len(s.locations))
	for _, l := range s.locations {
		locations = append(locations, l)
	}
	slices.SortFunc(locations, func(a, b domain.Location) int {
		return strings.Compare(a.ID, b.ID)
	})
	return locations, nil
}

func (s *Store) ListUOMs(_ context.Context) ([]domain.UOM, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	uoms := make([]domain.UOM, 0, len(s.uoms))
	for _, u := range s.uoms {
		uoms = append(uoms, u)
	}
	slices.SortFunc(uoms, func(a, b domain.UOM) int {
		return strings.Compare(a.ID, b.ID)
	})
	return uoms, nil
}

func (s *Store) ListUOMConversions(_ context.Context) ([]domain.UOMConversion, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return slices.Clone(s.conversions), nil
}

func (s *Store) GetStock(_ context.Context, productID string, locationID string) (domain.StockLevel, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return domain.StockLevel{
		ProductID:  productID,
		LocationID: locationID,
		Quantity:   s.stock[stockKey(productID, locationID)],
	}, nil
}

func (s *Store) GetStockMap(_ context.Context, locationID string, productIDs []string) (map[string]domain.StockLevel, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]domain.StockLevel, len(productIDs))
	for _, id := range productIDs {
		out[id] = domain.StockLevel{
			ProductID:  id,
			LocationID: locationID,
			Quantity:   s.stock[stockKey(id, locationID)],
		}
	}
	return out, nil
}

func (s *Store) ListStockLevels(_ context.Context, locationID string) ([]domain.StockLevel, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	levels := make([]domain.StockLevel, 0, len(s.stock))
	for key, qty := range s.stock {
		productID, locID, ok := strings.Cut(key, "|")
		if !ok {
			continue
		}
		if locationID != "" && locID != locationID {
			continue
		}
		levels = append(levels, domain.StockLevel{ProductID: productID, LocationID: locID, Quantity: qty})
	}
	slices.SortFunc(levels, func(a, b domain.StockLevel) int {
		if a.LocationID == b.LocationID {
			return strings.Compare(a.ProductID, b.ProductID)
		}
		return strings.Compare(a.LocationID, b.LocationID)
	})
	return levels, nil
}

func (s *Store) ListMovements(_ context.Context, filter store.MovementFilter) ([]domain.Movement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Movement, 0, len(s.movements))
	for i := len(s.movements) - 1; i >= 0; i-- {
		m := s.movements[i]
		if filter.ProductID != "" && m.ProductID != filter.ProductID {
			continue
		}
		if filter.LocationID != "" && m.LocationID != filter.LocationID {
			continue
		}
		if filter.Type != "" && m.Type != filter.Type {
			continue
		}
		if !filter.From.IsZero() && m.CreatedAt.Before(filter.From) {
			continue
		}
		if !filter.To.IsZero() && m.CreatedAt.After(filter.To) {
			continue
		}
		out = append(out, m)
		if filter.Limit > 0 && len(out) >= filter.Limit {
			break
		}
	}
	return out, nil
}

func (s *Store) ReconstructStock(_ context.Context, productID string, locationID string) (domain.StockLevel, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sum := decimal.Zero
	for _, m := range s.movements {
		if m.ProductID == productID && m.LocationID == locationID {
			sum = sum.Add(m.Quantity)
		}
	}
	return domain.StockLevel{ProductID: productID, LocationID: locationID, Quantity: sum}, nil
}

func (s *Store) ApplyMovements(_ context.Context, movements []domain.Movement) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.applyMovementsLocked(movements)
}

// applyMovementsLocked validates the whole batch against current levels
// before touching anything, so a failing batch changes nothing.
func (s *Store) applyMovementsLocked(movements []domain.Movement) error {
	projected := make(map[string]decimal.Decimal, len(movements))
	for _, m := range movements {
		if m.ProductID == "" || m.LocationID == "" || m.Type == "" {
			return store.ErrInvalidInput
		}
		if m.Quantity.IsZero() {
			return store.ErrInvalidInput
		}
		key := stockKey(m.ProductID, m.LocationID)
		qty, tracked := projected[key]
		if !tracked {
			qty = s.stock[key]
		}
		qty = qty.Add(m.Quantity)
		if qty.Sign() < 0 {
			return fmt.Errorf("stock for %s at %s would drop to %s: %w", m.ProductID, m.LocationID, qty, store.ErrInsufficientStock)
		}
		projected[key] = qty
	}

	now := time.Now().UTC()
	for _, m := range movements {
		if m.ID == "" {
			m.ID = xid.New("mov")
		}
		if m.CreatedAt.IsZero() {
			m.CreatedAt = now
		}
		s.movements = append(s.movements, m)
	}
	for key, qty := range projected {
		s.stock[key] = qty
	}
	return nil
}

func (s *Store) CreateProcurement(_ context.Context, p domain.Procurement) (*domain.Procurement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p.ID == "" {
		p.ID = xid.New("prc")
	}
	now := time.Now().UTC()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now
	s.procurements[p.ID] = p
	created := p
	return &created, nil
}

func (s *Store) GetProcurementByID(_ context.Context, id string) (*domain.Procurement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, exists := s.procurements[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	out := cloneProcurement(p)
	return &out, nil
}

func (s *Store) ListProcurements(_ context.Context, status string, includeDeleted bool, limit int) ([]domain.Procurement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Procurement, 0, len(s.procurements))
	for _, p := range s.procurements {
		if status != "" && p.Status != status {
			continue
		}
		if !includeDeleted && p.DeletedAt != nil {
			continue
		}
		out = append(out, cloneProcurement(p))
	}
	slices.SortFunc(out, func(a, b domain.Procurement) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) SaveProcurement(_ context.Context, p domain.Procurement, movements []domain.Movement) (*domain.Procurement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.procurements[p.ID]; !exists {
		return nil, store.ErrNotFound
	}
	if err := s.applyMovementsLocked(movements); err != nil {
		return nil, err
	}
	p.UpdatedAt = time.Now().UTC()
	s.procurements[p.ID] = p
	saved := cloneProcurement(p)
	return &saved, nil
}

func (s *Store) CreateDisposal(_ context.Context, d domain.Disposal) (*domain.Disposal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if d.ID == "" {
		d.ID = xid.New("dsp")
	}
	now := time.Now().UTC()
	if d.CreatedAt.IsZero() {
		d.CreatedAt = now
	}
	d.UpdatedAt = now
	s.disposals[d.ID] = d
	created := d
	return &created, nil
}

func (s *Store) GetDisposalByID(_ context.Context, id string) (*domain.Disposal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	d, exists := s.disposals[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	out := cloneDisposal(d)
	return &out, nil
}

func (s *Store) ListDisposals(_ context.Context, status string, includeDeleted bool, limit int) ([]domain.Disposal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Disposal, 0, len(s.disposals))
	for _, d := range s.disposals {
		if status != "" && d.Status != status {
			continue
		}
		if !includeDeleted && d.DeletedAt != nil {
			continue
		}
		out = append(out, cloneDisposal(d))
	}
	slices.SortFunc(out, func(a, b domain.Disposal) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) SaveDisposal(_ context.Context, d domain.Disposal, movements []domain.Movement) (*domain.Disposal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.disposals[d.ID]; !exists {
		return nil, store.ErrNotFound
	}
	if err := s.applyMovementsLocked(movements); err != nil {
		return nil, err
	}
	d.UpdatedAt = time.Now().UTC()
	s.disposals[d.ID] = d
	saved := cloneDisposal(d)
	return &saved, nil
}

func (s *Store) CreateSale(_ context.Context, sale domain.Sale, movements []domain.Movement) (*domain.Sale, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sale.ID == "" {
		sale.ID = xid.New("sale")
	}
	now := time.Now().UTC()
	if sale.CreatedAt.IsZero() {
		sale.CreatedAt = now
	}
	sale.UpdatedAt = now

	if err := s.applyMovementsLocked(movements); err != nil {
		return nil, err
	}

	monthKey := sale.CreatedAt.Format("200601")
	s.invoiceSeq[monthKey]++
	sale.InvoiceNumber = fmt.Sprintf("INV-%s-%04d", monthKey, s.invoiceSeq[monthKey])

	for i := range sale.Items {
		if sale.Items[i].ID == "" {
			sale.Items[i].ID = xid.New("sli")
		}
		sale.Items[i].SaleID = sale.ID
	}
	s.salesByID[sale.ID] = cloneSale(sale)
	created := cloneSale(sale)
	return &created, nil
}

func (s *Store) GetSaleByID(_ context.Context, id string) (*domain.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sale, exists := s.salesByID[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	out := cloneSale(sale)
	return &out, nil
}

func (s *Store) ListSales(_ context.Context, locationID string, includeDeleted bool, limit int) ([]domain.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Sale, 0, len(s.salesByID))
	for _, sale := range s.salesByID {
		if locationID != "" && sale.LocationID != locationID {
			continue
		}
		if !includeDeleted && sale.DeletedAt != nil {
			continue
		}
		out = append(out, cloneSale(sale))
	}
	slices.SortFunc(out, func(a, b domain.Sale) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) SaveSale(_ context.Context, sale domain.Sale, movements []domain.Movement) (*domain.Sale, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.salesByID[sale.ID]; !exists {
		return nil, store.ErrNotFound
	}
	if err := s.applyMovementsLocked(movements); err != nil {
		return nil, err
	}
	sale.UpdatedAt = time.Now().UTC()
	for i := range sale.Items {
		if sale.Items[i].ID == "" {
			sale.Items[i].ID = xid.New("sli")
		}
		sale.Items[i].SaleID = sale.ID
	}
	s.salesByID[sale.ID] = cloneSale(sale)
	saved := cloneSale(sale)
	return &saved, nil
}

func (s *Store) CreateAuditEntry(_ context.Context, entry domain.AuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry.ID == "" {
		entry.ID = xid.New("aud")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	s.auditEntries = append(s.auditEntries, entry)
	return nil
}

func (s *Store) ListAuditEntries(_ context.Context, entityType string, entityID string, limit int) ([]domain.AuditEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.AuditEntry, 0, len(s.auditEntries))
	for i := len(s.auditEntries) - 1; i >= 0; i-- {
		e := s.auditEntries[i]
		if entityType != "" && e.EntityType != entityType {
			continue
		}
		if entityID != "" && e.EntityID != entityID {
			continue
		}
		out = append(out, e)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (s *Store) CreateUser(_ context.Context, user domain.UserAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if user.Username == "" || user.Password == "" {
		return store.ErrInvalidInput
	}
	if _, exists := s.usersByUsername[user.Username]; exists {
		return store.ErrInvalidInput
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	s.usersByUsername[user.Username] = user
	return nil
}

func (s *Store) ListUsers(_ context.Context) ([]domain.UserAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]domain.UserAccount, 0, len(s.usersByUsername))
	for _, u := range s.usersByUsername {
		users = append(users, u)
	}
	slices.SortFunc(users, func(a, b domain.UserAccount) int {
		return strings.Compare(a.Username, b.Username)
	})
	return users, nil
}

func (s *Store) UpdateUserPassword(_ context.Context, username string, password string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, exists := s.usersByUsername[username]
	if !exists {
		return store.ErrNotFound
	}
	u.Password = password
	s.usersByUsername[username] = u
	return nil
}

func cloneProcurement(p domain.Procurement) domain.Procurement {
	out := p
	if p.Applied != nil {
		applied := *p.Applied
		out.Applied = &applied
	}
	if p.DeletedAt != nil {
		deleted := *p.DeletedAt
		out.DeletedAt = &deleted
	}
	return out
}

func cloneDisposal(d domain.Disposal) domain.Disposal {
	out := d
	if d.Applied != nil {
		applied := *d.Applied
		out.Applied = &applied
	}
	if d.DeletedAt != nil {
		deleted := *d.DeletedAt
		out.DeletedAt = &deleted
	}
	return out
}

func cloneSale(sale domain.Sale) domain.Sale {
	out := sale
	out.Items = slices.Clone(sale.Items)
	if sale.DeletedAt != nil {
		deleted := *sale.DeletedAt
		out.DeletedAt = &deleted
	}
	return out
}
