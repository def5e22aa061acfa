package inventory

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/victornm/kiosk/internal/domain"
	"github.com/victornm/kiosk/internal/errors"
	"github.com/victornm/kiosk/internal/event"
)

const DefaultCurrency = "EGP"

type Config struct {
	Store    Store
	EventBus *event.Bus
	Currency string
	Now      func() time.Time
}

type Service struct {
	store    Store
	eb       *event.Bus
	currency string
	now      func() time.Time
	printer  *message.Printer
}

func NewService(c Config) *Service {
	if c.Currency == "" {
		c.Currency = DefaultCurrency
	}
	if c.Now == nil {
		c.Now = time.Now
	}

	return &Service{
		store:    c.Store,
		eb:       c.EventBus,
		currency: c.Currency,
		now:      c.Now,
		printer:  message.NewPrinter(language.English),
	}
}

// Ping reports whether the backing store can be reached. The register is
// disabled while it cannot.
func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// Lookup returns the product scanned at the register.
func (s *Service) Lookup(ctx context.Context, barcode string) (*domain.Product, error) {
	barcode = strings.TrimSpace(barcode)
	if barcode == "" {
		return nil, errors.InvalidArgument("barcode is required")
	}

	return s.store.GetProduct(ctx, barcode)
}

func (s *Service) ListProducts(ctx context.Context) ([]domain.Product, error) {
	return s.store.ListProducts(ctx)
}

// AddProductRequest is the admin "new product" form.
type AddProductRequest struct {
	Barcode      string
	Name         string
	Category     domain.Category
	SalePrice    decimal.Decimal
	CostPrice    decimal.Decimal
	Quantity     int
	ReorderLevel int
}

// AddProduct registers a new product. A barcode that already exists is
// rejected and the inventory is left unchanged.
func (s *Service) AddProduct(ctx context.Context, req AddProductRequest) (*domain.Product, error) {
	p := domain.Product{
		Barcode:      strings.TrimSpace(req.Barcode),
		Name:         strings.TrimSpace(req.Name),
		Category:     req.Category,
		SalePrice:    req.SalePrice,
		CostPrice:    req.CostPrice,
		Quantity:     req.Quantity,
		ReorderLevel: req.ReorderLevel,
	}

	if p.Category == "" {
		p.Category = domain.CategoryGeneral
	}

	if err := validateProduct(p); err != nil {
		return nil, err
	}

	if err := s.store.InsertProduct(ctx, p); err != nil {
		return nil, err
	}

	s.eb.Publish(ctx, domain.EventProductCreated{Product: p})

	return &p, nil
}

func validateProduct(p domain.Product) error {
	switch {
	case p.Barcode == "" || p.Name == "":
		return errors.InvalidArgument("barcode and name are required")
	case !p.Category.Valid():
		return errors.InvalidArgument("unknown category %q", p.Category)
	case p.SalePrice.IsNegative() || p.CostPrice.IsNegative():
		return errors.InvalidArgument("prices must not be negative")
	case p.Quantity < 1:
		return errors.InvalidArgument("initial quantity must be at least 1")
	case p.ReorderLevel < 0:
		return errors.InvalidArgument("reorder level must not be negative")
	}
	return nil
}

type RecordSaleRequest struct {
	Barcode  string
	Quantity int
}

type RecordSaleResponse struct {
	Sale      domain.Sale
	Remaining int
	LowStock  bool
}

// RecordSale decrements stock and appends a sale row. These are two separate
// writes; if the append fails the decrement is not undone.
func (s *Service) RecordSale(ctx context.Context, req RecordSaleRequest) (*RecordSaleResponse, error) {
	if req.Quantity < 1 {
		return nil, errors.InvalidArgument("quantity must be at least 1")
	}

	p, err := s.Lookup(ctx, req.Barcode)
	if err != nil {
		return nil, err
	}

	if req.Quantity > p.Quantity {
		return nil, InsufficientStock(p.Quantity, req.Quantity)
	}

	remaining, err := s.store.DecrementQuantity(ctx, p.Barcode, req.Quantity)
	if err != nil {
		return nil, err
	}

	id, err := uuid.NewV7()
	if err != nil {
		return nil, errors.Internal(fmt.Errorf("generate sale ID: %w", err))
	}

	qty := decimal.NewFromInt(int64(req.Quantity))
	sale := domain.Sale{
		SaleID:      id.String(),
		Timestamp:   s.now().UTC().Truncate(time.Second),
		ProductName: p.Name,
		Quantity:    req.Quantity,
		Total:       p.SalePrice.Mul(qty),
		Profit:      p.SalePrice.Sub(p.CostPrice).Mul(qty),
	}

	if err := s.store.AppendSale(ctx, sale); err != nil {
		slog.ErrorContext(ctx, "inventory: stock decremented but sale not recorded",
			"barcode", p.Barcode,
			"quantity", req.Quantity,
			"error", err,
		)
		return nil, err
	}

	s.eb.Publish(ctx, domain.EventSaleRecorded{Sale: sale, Barcode: p.Barcode})

	p.Quantity = remaining
	if p.Low() {
		s.eb.Publish(ctx, domain.EventStockLow{Product: *p})
	}

	return &RecordSaleResponse{
		Sale:      sale,
		Remaining: remaining,
		LowStock:  p.Low(),
	}, nil
}

// Stats summarises the inventory: item count, pieces on hand and the value of
// the stock at sale price.
func (s *Service) Stats(ctx context.Context) (*domain.InventoryStats, error) {
	ps, err := s.store.ListProducts(ctx)
	if err != nil {
		return nil, err
	}

	st := &domain.InventoryStats{
		Items:      len(ps),
		TotalValue: decimal.Zero,
		Currency:   s.currency,
	}
	for _, p := range ps {
		st.TotalPieces += p.Quantity
		st.TotalValue = st.TotalValue.Add(p.SalePrice.Mul(decimal.NewFromInt(int64(p.Quantity))))
	}
	st.Display = s.FormatMoney(st.TotalValue)

	return st, nil
}

// FormatMoney renders an amount with thousands separators, e.g. "1,234.50 EGP".
// Digits come from the decimal itself; only the grouping goes through the printer.
func (s *Service) FormatMoney(d decimal.Decimal) string {
	whole, frac, _ := strings.Cut(d.Abs().StringFixed(2), ".")

	sign := ""
	if d.Round(2).IsNegative() {
		sign = "-"
	}

	n, err := strconv.ParseInt(whole, 10, 64)
	if err != nil {
		return fmt.Sprintf("%s%s.%s %s", sign, whole, frac, s.currency)
	}

	return s.printer.Sprintf("%s%d.%s %s", sign, n, frac, s.currency)
}

func (s *Service) LowStock(ctx context.Context) ([]domain.Product, error) {
	ps, err := s.store.ListProducts(ctx)
	if err != nil {
		return nil, err
	}

	low := make([]domain.Product, 0)
	for _, p := range ps {
		if p.Low() {
			low = append(low, p)
		}
	}
	return low, nil
}
