package sqlstore

// row_id preserves sheet order: products and sales are listed as appended.
var schemas = map[string][]string{
	DriverSQLite: {
		`CREATE TABLE IF NOT EXISTS inventory (
			row_id        INTEGER PRIMARY KEY AUTOINCREMENT,
			barcode       TEXT NOT NULL UNIQUE,
			name          TEXT NOT NULL,
			category      TEXT NOT NULL,
			sale_price    TEXT NOT NULL,
			cost_price    TEXT NOT NULL,
			quantity      INTEGER NOT NULL CHECK (quantity >= 0),
			reorder_level INTEGER NOT NULL DEFAULT 0
		);`,
		`CREATE TABLE IF NOT EXISTS sales (
			row_id       INTEGER PRIMARY KEY AUTOINCREMENT,
			sale_id      TEXT NOT NULL UNIQUE,
			sold_at      DATETIME NOT NULL,
			product_name TEXT NOT NULL,
			quantity     INTEGER NOT NULL,
			total        TEXT NOT NULL,
			profit       TEXT NOT NULL
		);`,
	},

	DriverMySQL: {
		`CREATE TABLE IF NOT EXISTS inventory (
			row_id        BIGINT AUTO_INCREMENT PRIMARY KEY,
			barcode       VARCHAR(64) NOT NULL UNIQUE,
			name          VARCHAR(255) NOT NULL,
			category      VARCHAR(32) NOT NULL,
			sale_price    DECIMAL(12,2) NOT NULL,
			cost_price    DECIMAL(12,2) NOT NULL,
			quantity      INT NOT NULL,
			reorder_level INT NOT NULL DEFAULT 0
		);`,
		`CREATE TABLE IF NOT EXISTS sales (
			row_id       BIGINT AUTO_INCREMENT PRIMARY KEY,
			sale_id      CHAR(36) NOT NULL UNIQUE,
			sold_at      DATETIME NOT NULL,
			product_name VARCHAR(255) NOT NULL,
			quantity     INT NOT NULL,
			total        DECIMAL(12,2) NOT NULL,
			profit       DECIMAL(12,2) NOT NULL
		);`,
	},
}
