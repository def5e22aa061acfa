package inventory

import (
	"context"
	"slices"
	"sync"

	"github.com/victornm/kiosk/internal/domain"
	"github.com/victornm/kiosk/internal/errors"
)

// Store is the backing "spreadsheet": an Inventory table keyed by barcode and
// an append-only Sales table. Implementations return *errors.Error values for
// NotFound, AlreadyExists and FailedPrecondition, and wrap connectivity
// failures with errors.Unavailable.
type Store interface {
	Ping(ctx context.Context) error
	ListProducts(ctx context.Context) ([]domain.Product, error)
	GetProduct(ctx context.Context, barcode string) (*domain.Product, error)
	InsertProduct(ctx context.Context, p domain.Product) error
	// DecrementQuantity subtracts qty only if at least qty is on hand and
	// returns the remaining quantity.
	DecrementQuantity(ctx context.Context, barcode string, qty int) (int, error)
	AppendSale(ctx context.Context, s domain.Sale) error
	ListSales(ctx context.Context) ([]domain.Sale, error)
}

// MemoryStore keeps both tables in process memory.
type MemoryStore struct {
	mu       sync.RWMutex
	products []domain.Product
	index    map[string]int
	sales    []domain.Sale
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{index: make(map[string]int)}
}

func (*MemoryStore) Ping(context.Context) error { return nil }

func (m *MemoryStore) ListProducts(context.Context) ([]domain.Product, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return slices.Clone(m.products), nil
}

func (m *MemoryStore) GetProduct(_ context.Context, barcode string) (*domain.Product, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	i, ok := m.index[barcode]
	if !ok {
		return nil, ProductNotFound(barcode)
	}

	p := m.products[i]
	return &p, nil
}

func (m *MemoryStore) InsertProduct(_ context.Context, p domain.Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.index[p.Barcode]; ok {
		return DuplicateBarcode(p.Barcode, nil)
	}

	m.index[p.Barcode] = len(m.products)
	m.products = append(m.products, p)
	return nil
}

func (m *MemoryStore) DecrementQuantity(_ context.Context, barcode string, qty int) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	i, ok := m.index[barcode]
	if !ok {
		return 0, ProductNotFound(barcode)
	}

	p := &m.products[i]
	if p.Quantity < qty {
		return 0, InsufficientStock(p.Quantity, qty)
	}

	p.Quantity -= qty
	return p.Quantity, nil
}

func (m *MemoryStore) AppendSale(_ context.Context, s domain.Sale) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.sales = append(m.sales, s)
	return nil
}

func (m *MemoryStore) ListSales(context.Context) ([]domain.Sale, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return slices.Clone(m.sales), nil
}

// ProductNotFound and its siblings build the errors every Store reports.
func ProductNotFound(barcode string) error {
	return errors.NotFound("product not found: barcode=%s", barcode)
}

func DuplicateBarcode(barcode string, cause error) error {
	return errors.New(errors.CodeAlreadyExists,
		errors.WithMessagef("barcode is already registered: barcode=%s", barcode),
		errors.WithCause(cause),
	)
}

func InsufficientStock(available, requested int) error {
	return errors.FailedPrecondition("insufficient stock: available=%d, requested=%d", available, requested)
}

