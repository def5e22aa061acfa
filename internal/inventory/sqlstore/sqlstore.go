// Package sqlstore keeps the Inventory and Sales tables in MySQL or SQLite
// through database/sql.
package sqlstore

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"

	"github.com/go-sql-driver/mysql"
	"github.com/mattn/go-sqlite3"

	"github.com/victornm/kiosk/internal/domain"
	"github.com/victornm/kiosk/internal/errors"
	"github.com/victornm/kiosk/internal/inventory"
)

const (
	DriverMySQL  = "mysql"
	DriverSQLite = "sqlite3"

	mysqlDuplicateEntry = 1062
)

type Store struct {
	db     *sql.DB
	driver string
}

var _ inventory.Store = (*Store)(nil)

// Open connects to the database. MySQL DSNs must set parseTime=true.
func Open(ctx context.Context, driver, dsn string) (*Store, error) {
	if _, ok := schemas[driver]; !ok {
		return nil, fmt.Errorf("sqlstore: unsupported driver %q", driver)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: open: %w", err)
	}

	if driver == DriverSQLite {
		// SQLite allows a single writer; one connection also keeps :memory: databases alive.
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)

		if _, err := db.ExecContext(ctx, `PRAGMA busy_timeout = 5000;`); err != nil {
			db.Close()
			return nil, fmt.Errorf("sqlstore: pragma: %w", err)
		}
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlstore: ping: %w", err)
	}

	return &Store{db: db, driver: driver}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Migrate creates the inventory and sales tables if they do not exist.
func (s *Store) Migrate(ctx context.Context) error {
	for _, stmt := range schemas[s.driver] {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("sqlstore: migrate: %w", err)
		}
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return errors.Unavailable(err)
	}
	return nil
}

const productColumns = `barcode, name, category, sale_price, cost_price, quantity, reorder_level`

func (s *Store) ListProducts(ctx context.Context) ([]domain.Product, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+productColumns+` FROM inventory ORDER BY row_id`)
	if err != nil {
		return nil, errors.Unavailable(err)
	}
	defer rows.Close()

	ps := make([]domain.Product, 0)
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, errors.Internal(err)
		}
		ps = append(ps, p)
	}

	if err := rows.Err(); err != nil {
		return nil, errors.Unavailable(err)
	}

	return ps, nil
}

func (s *Store) GetProduct(ctx context.Context, barcode string) (*domain.Product, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+productColumns+` FROM inventory WHERE barcode = ?`, barcode)

	p, err := scanProduct(row)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, inventory.ProductNotFound(barcode)
	}
	if err != nil {
		return nil, errors.Unavailable(err)
	}

	return &p, nil
}

func (s *Store) InsertProduct(ctx context.Context, p domain.Product) error {
	const stmt = `INSERT INTO inventory (` + productColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?)`

	_, err := s.db.ExecContext(ctx, stmt,
		p.Barcode, p.Name, string(p.Category), p.SalePrice, p.CostPrice, p.Quantity, p.ReorderLevel)
	if isDuplicate(err) {
		return inventory.DuplicateBarcode(p.Barcode, err)
	}
	if err != nil {
		return errors.Unavailable(err)
	}

	return nil
}

func (s *Store) DecrementQuantity(ctx context.Context, barcode string, qty int) (_ int, err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, errors.Unavailable(err)
	}
	defer func() {
		if err == nil {
			return
		}
		if rbErr := tx.Rollback(); rbErr != nil && !stderrors.Is(rbErr, sql.ErrTxDone) {
			err = stderrors.Join(err, rbErr)
		}
	}()

	res, err := tx.ExecContext(ctx,
		`UPDATE inventory SET quantity = quantity - ? WHERE barcode = ? AND quantity >= ?`, qty, barcode, qty)
	if err != nil {
		return 0, errors.Unavailable(err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, errors.Unavailable(err)
	}

	var remaining int
	err = tx.QueryRowContext(ctx, `SELECT quantity FROM inventory WHERE barcode = ?`, barcode).Scan(&remaining)
	if stderrors.Is(err, sql.ErrNoRows) {
		return 0, inventory.ProductNotFound(barcode)
	}
	if err != nil {
		return 0, errors.Unavailable(err)
	}

	if n == 0 {
		return 0, inventory.InsufficientStock(remaining, qty)
	}

	if err := tx.Commit(); err != nil {
		return 0, errors.Unavailable(err)
	}

	return remaining, nil
}

func (s *Store) AppendSale(ctx context.Context, sl domain.Sale) error {
	const stmt = `INSERT INTO sales (sale_id, sold_at, product_name, quantity, total, profit) VALUES (?, ?, ?, ?, ?, ?)`

	_, err := s.db.ExecContext(ctx, stmt,
		sl.SaleID, sl.Timestamp.UTC(), sl.ProductName, sl.Quantity, sl.Total, sl.Profit)
	if err != nil {
		return errors.Unavailable(err)
	}

	return nil
}

func (s *Store) ListSales(ctx context.Context) ([]domain.Sale, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT sale_id, sold_at, product_name, quantity, total, profit FROM sales ORDER BY row_id`)
	if err != nil {
		return nil, errors.Unavailable(err)
	}
	defer rows.Close()

	sales := make([]domain.Sale, 0)
	for rows.Next() {
		var sl domain.Sale
		if err := rows.Scan(&sl.SaleID, &sl.Timestamp, &sl.ProductName, &sl.Quantity, &sl.Total, &sl.Profit); err != nil {
			return nil, errors.Internal(err)
		}
		sl.Timestamp = sl.Timestamp.UTC()
		sales = append(sales, sl)
	}

	if err := rows.Err(); err != nil {
		return nil, errors.Unavailable(err)
	}

	return sales, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanProduct(r scanner) (domain.Product, error) {
	var (
		p        domain.Product
		category string
	)

	err := r.Scan(&p.Barcode, &p.Name, &category, &p.SalePrice, &p.CostPrice, &p.Quantity, &p.ReorderLevel)
	p.Category = domain.Category(category)

	return p, err
}

func isDuplicate(err error) bool {
	var myErr *mysql.MySQLError
	if stderrors.As(err, &myErr) {
		return myErr.Number == mysqlDuplicateEntry
	}

	var liteErr sqlite3.Error
	if stderrors.As(err, &liteErr) {
		return liteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			liteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}

	return false
}
