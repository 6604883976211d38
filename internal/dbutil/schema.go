package dbutil

import (
	"context"
	"database/sql"
	"fmt"
)

var mysqlSchema = []string{
	`CREATE TABLE IF NOT EXISTS stores (
    id VARCHAR(64) NOT NULL,
    name VARCHAR(255) NOT NULL DEFAULT '',
    owner_user_id VARCHAR(64) NOT NULL,
    PRIMARY KEY (id),
    KEY idx_stores_owner (owner_user_id)
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS payment_requests (
    id VARCHAR(64) NOT NULL,
    store_id VARCHAR(64) NOT NULL,
    created DATETIME(6) NOT NULL,
    archived TINYINT(1) NOT NULL DEFAULT 0,
    blob_json LONGTEXT NOT NULL,
    PRIMARY KEY (id),
    KEY idx_payment_requests_store (store_id, archived, created),
    CONSTRAINT fk_payment_requests_store FOREIGN KEY (store_id) REFERENCES stores (id)
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS invoices (
    id VARCHAR(64) NOT NULL,
    store_id VARCHAR(64) NOT NULL,
    order_id VARCHAR(255) NOT NULL DEFAULT '',
    status VARCHAR(16) NOT NULL,
    currency VARCHAR(16) NOT NULL,
    amount DECIMAL(36,18) NOT NULL,
    paid_amount DECIMAL(36,18) NOT NULL DEFAULT 0,
    buyer_email VARCHAR(255) NOT NULL DEFAULT '',
    redirect_url TEXT,
    created_at DATETIME(6) NOT NULL,
    expires_at DATETIME(6) NOT NULL,
    PRIMARY KEY (id),
    KEY idx_invoices_status_expiry (status, expires_at)
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS invoice_tags (
    invoice_id VARCHAR(64) NOT NULL,
    tag VARCHAR(255) NOT NULL,
    PRIMARY KEY (invoice_id, tag),
    KEY idx_invoice_tags_tag (tag)
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS invoice_payments (
    id BIGINT UNSIGNED NOT NULL AUTO_INCREMENT,
    invoice_id VARCHAR(64) NOT NULL,
    amount DECIMAL(36,18) NOT NULL,
    provider_txn_id VARCHAR(255) NOT NULL,
    received_at DATETIME(6) NOT NULL,
    PRIMARY KEY (id),
    UNIQUE KEY uniq_provider_txn (provider_txn_id),
    KEY idx_invoice_payments_invoice (invoice_id)
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
}

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS stores (
    id VARCHAR(64) PRIMARY KEY,
    name VARCHAR(255) NOT NULL DEFAULT '',
    owner_user_id VARCHAR(64) NOT NULL
)`,
	`CREATE INDEX IF NOT EXISTS idx_stores_owner ON stores (owner_user_id)`,
	`CREATE TABLE IF NOT EXISTS payment_requests (
    id VARCHAR(64) PRIMARY KEY,
    store_id VARCHAR(64) NOT NULL REFERENCES stores (id),
    created TIMESTAMPTZ NOT NULL,
    archived BOOLEAN NOT NULL DEFAULT FALSE,
    blob_json TEXT NOT NULL
)`,
	`CREATE INDEX IF NOT EXISTS idx_payment_requests_store ON payment_requests (store_id, archived, created)`,
	`CREATE TABLE IF NOT EXISTS invoices (
    id VARCHAR(64) PRIMARY KEY,
    store_id VARCHAR(64) NOT NULL,
    order_id VARCHAR(255) NOT NULL DEFAULT '',
    status VARCHAR(16) NOT NULL,
    currency VARCHAR(16) NOT NULL,
    amount NUMERIC(36,18) NOT NULL,
    paid_amount NUMERIC(36,18) NOT NULL DEFAULT 0,
    buyer_email VARCHAR(255) NOT NULL DEFAULT '',
    redirect_url TEXT NOT NULL DEFAULT '',
    created_at TIMESTAMPTZ NOT NULL,
    expires_at TIMESTAMPTZ NOT NULL
)`,
	`CREATE INDEX IF NOT EXISTS idx_invoices_status_expiry ON invoices (status, expires_at)`,
	`CREATE TABLE IF NOT EXISTS invoice_tags (
    invoice_id VARCHAR(64) NOT NULL,
    tag VARCHAR(255) NOT NULL,
    PRIMARY KEY (invoice_id, tag)
)`,
	`CREATE INDEX IF NOT EXISTS idx_invoice_tags_tag ON invoice_tags (tag)`,
	`CREATE TABLE IF NOT EXISTS invoice_payments (
    id BIGSERIAL PRIMARY KEY,
    invoice_id VARCHAR(64) NOT NULL,
    amount NUMERIC(36,18) NOT NULL,
    provider_txn_id VARCHAR(255) NOT NULL UNIQUE,
    received_at TIMESTAMPTZ NOT NULL
)`,
	`CREATE INDEX IF NOT EXISTS idx_invoice_payments_invoice ON invoice_payments (invoice_id)`,
}

// EnsureSchema creates the tables used by payment requests and invoices
// when they do not exist yet.
func EnsureSchema(ctx context.Context, db *sql.DB, dialect Dialect) error {
	ddl := mysqlSchema
	if dialect == DialectPostgres {
		ddl = postgresSchema
	}
	for i, stmt := range ddl {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("schema statement %d: %w", i+1, err)
		}
	}
	return nil
}
