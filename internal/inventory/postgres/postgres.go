package postgres

import (
	"context"
	stderrors "errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/victornm/kiosk/internal/domain"
	"github.com/victornm/kiosk/internal/errors"
	"github.com/victornm/kiosk/internal/inventory"
)

const codeUniqueViolation = "23505"

const schema = `
CREATE TABLE IF NOT EXISTS inventory (
	row_id        BIGSERIAL PRIMARY KEY,
	barcode       TEXT NOT NULL UNIQUE,
	name          TEXT NOT NULL,
	category      TEXT NOT NULL,
	sale_price    NUMERIC(12, 2) NOT NULL,
	cost_price    NUMERIC(12, 2) NOT NULL,
	quantity      INTEGER NOT NULL CHECK (quantity >= 0),
	reorder_level INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS sales (
	row_id       BIGSERIAL PRIMARY KEY,
	sale_id      UUID NOT NULL UNIQUE,
	sold_at      TIMESTAMPTZ NOT NULL,
	product_name TEXT NOT NULL,
	quantity     INTEGER NOT NULL,
	total        NUMERIC(12, 2) NOT NULL,
	profit       NUMERIC(12, 2) NOT NULL
);`

type Config struct {
	DB *pgxpool.Pool
}

// Store keeps the Inventory and Sales tables in Postgres.
type Store struct {
	db *pgxpool.Pool
}

var _ inventory.Store = (*Store)(nil)

func NewStore(c Config) *Store {
	return &Store{db: c.DB}
}

func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("postgres: migrate: %w", err)
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.Ping(ctx); err != nil {
		return errors.Unavailable(err)
	}
	return nil
}

const productColumns = `barcode, name, category, sale_price, cost_price, quantity, reorder_level`

func (s *Store) ListProducts(ctx context.Context) ([]domain.Product, error) {
	rows, err := s.db.Query(ctx, `SELECT `+productColumns+` FROM inventory ORDER BY row_id`)
	if err != nil {
		return nil, errors.Unavailable(err)
	}

	ps, err := pgx.CollectRows(rows, scanProduct)
	if err != nil {
		return nil, errors.Unavailable(err)
	}

	return ps, nil
}

func (s *Store) GetProduct(ctx context.Context, barcode string) (*domain.Product, error) {
	rows, err := s.db.Query(ctx, `SELECT `+productColumns+` FROM inventory WHERE barcode = $1`, barcode)
	if err != nil {
		return nil, errors.Unavailable(err)
	}

	p, err := pgx.CollectExactlyOneRow(rows, scanProduct)
	if stderrors.Is(err, pgx.ErrNoRows) {
		return nil, inventory.ProductNotFound(barcode)
	}
	if err != nil {
		return nil, errors.Unavailable(err)
	}

	return &p, nil
}

func (s *Store) InsertProduct(ctx context.Context, p domain.Product) error {
	const stmt = `INSERT INTO inventory (` + productColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7);`

	_, err := s.db.Exec(ctx, stmt,
		p.Barcode, p.Name, string(p.Category), p.SalePrice, p.CostPrice, p.Quantity, p.ReorderLevel)

	var pgErr *pgconn.PgError
	if stderrors.As(err, &pgErr) && pgErr.Code == codeUniqueViolation {
		return inventory.DuplicateBarcode(p.Barcode, err)
	}
	if err != nil {
		return errors.Unavailable(err)
	}

	return nil
}

// DecrementQuantity relies on the conditional UPDATE so two registers selling
// the last items cannot drive stock negative.
func (s *Store) DecrementQuantity(ctx context.Context, barcode string, qty int) (int, error) {
	const stmt = `
UPDATE inventory SET quantity = quantity - $2
WHERE barcode = $1 AND quantity >= $2
RETURNING quantity;`

	var remaining int
	err := s.db.QueryRow(ctx, stmt, barcode, qty).Scan(&remaining)
	if err == nil {
		return remaining, nil
	}

	if !stderrors.Is(err, pgx.ErrNoRows) {
		return 0, errors.Unavailable(err)
	}

	p, err := s.GetProduct(ctx, barcode)
	if err != nil {
		return 0, err
	}

	return 0, inventory.InsufficientStock(p.Quantity, qty)
}

func (s *Store) AppendSale(ctx context.Context, sl domain.Sale) error {
	const stmt = `
INSERT INTO sales (sale_id, sold_at, product_name, quantity, total, profit)
VALUES ($1, $2, $3, $4, $5, $6);`

	if _, err := s.db.Exec(ctx, stmt, sl.SaleID, sl.Timestamp, sl.ProductName, sl.Quantity, sl.Total, sl.Profit); err != nil {
		return errors.Unavailable(err)
	}

	return nil
}

func (s *Store) ListSales(ctx context.Context) ([]domain.Sale, error) {
	const stmt = `
SELECT sale_id::text, sold_at, product_name, quantity, total, profit
FROM sales
ORDER BY row_id;`

	rows, err := s.db.Query(ctx, stmt)
	if err != nil {
		return nil, errors.Unavailable(err)
	}

	sales, err := pgx.CollectRows(rows, func(r pgx.CollectableRow) (domain.Sale, error) {
		var sl domain.Sale
		err := r.Scan(&sl.SaleID, &sl.Timestamp, &sl.ProductName, &sl.Quantity, &sl.Total, &sl.Profit)
		sl.Timestamp = sl.Timestamp.UTC()
		return sl, err
	})
	if err != nil {
		return nil, errors.Unavailable(err)
	}

	return sales, nil
}

func scanProduct(r pgx.CollectableRow) (domain.Product, error) {
	var (
		p        domain.Product
		category string
	)

	err := r.Scan(&p.Barcode, &p.Name, &category, &p.SalePrice, &p.CostPrice, &p.Quantity, &p.ReorderLevel)
	p.Category = domain.Category(category)

	return p, err
}
