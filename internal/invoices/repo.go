package invoices

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"naimuPay/internal/dbutil"
	"naimuPay/internal/models"
)

const invoiceColumns = `i.id, i.store_id, i.order_id, i.status, i.currency, i.amount, i.paid_amount, i.buyer_email, i.redirect_url, i.created_at, i.expires_at`

type execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

type querier interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// SQLStore keeps invoices in the invoices, invoice_tags and
// invoice_payments tables.
type SQLStore struct {
	db      *sql.DB
	dialect dbutil.Dialect
}

// NewSQLStore constructs the repository.
func NewSQLStore(db *sql.DB, dialect dbutil.Dialect) *SQLStore {
	return &SQLStore{db: db, dialect: dialect}
}

// Insert stores a new invoice together with its tags.
func (r *SQLStore) Insert(ctx context.Context, inv models.Invoice) (err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, r.dialect.Rebind(`INSERT INTO invoices (id, store_id, order_id, status, currency, amount, paid_amount, buyer_email, redirect_url, created_at, expires_at) VALUES (?,?,?,?,?,?,?,?,?,?,?)`),
		inv.ID, inv.StoreID, inv.OrderID, string(inv.Status), inv.Currency, inv.Amount, inv.PaidAmount,
		inv.BuyerEmail, inv.RedirectURL, inv.CreatedAt.UTC(), inv.ExpiresAt.UTC()); err != nil {
		return err
	}
	for _, tag := range inv.InternalTags {
		if _, err = tx.ExecContext(ctx, r.dialect.Rebind(`INSERT INTO invoice_tags (invoice_id, tag) VALUES (?,?)`), inv.ID, tag); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// Get loads an invoice with its tags and payments.
func (r *SQLStore) Get(ctx context.Context, id string) (models.Invoice, error) {
	return r.get(ctx, r.db, id)
}

func (r *SQLStore) get(ctx context.Context, q querier, id string) (models.Invoice, error) {
	row := q.QueryRowContext(ctx, r.dialect.Rebind(`SELECT `+invoiceColumns+` FROM invoices i WHERE i.id = ?`), id)
	inv, err := scanInvoice(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Invoice{}, models.ErrInvoiceNotFound
	}
	if err != nil {
		return models.Invoice{}, err
	}
	if err := r.loadDetails(ctx, q, &inv); err != nil {
		return models.Invoice{}, err
	}
	return inv, nil
}

// ListByTag returns every invoice carrying the tag, oldest first.
func (r *SQLStore) ListByTag(ctx context.Context, tag string) ([]models.Invoice, error) {
	rows, err := r.db.QueryContext(ctx, r.dialect.Rebind(`SELECT `+invoiceColumns+` FROM invoices i JOIN invoice_tags t ON t.invoice_id = i.id WHERE t.tag = ? ORDER BY i.created_at, i.id`), tag)
	if err != nil {
		return nil, err
	}
	list := []models.Invoice{}
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		list = append(list, inv)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	for i := range list {
		if err := r.loadDetails(ctx, r.db, &list[i]); err != nil {
			return nil, err
		}
	}
	return list, nil
}

// MarkInvalidIfUnpaid invalidates a new invoice that has no payments.
func (r *SQLStore) MarkInvalidIfUnpaid(ctx context.Context, id string) (err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var current string
	if err = tx.QueryRowContext(ctx, r.dialect.Rebind(`SELECT status FROM invoices WHERE id = ? FOR UPDATE`), id).Scan(&current); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			err = models.ErrInvoiceNotFound
		}
		return err
	}

	var payments int
	if err = tx.QueryRowContext(ctx, r.dialect.Rebind(`SELECT COUNT(*) FROM invoice_payments WHERE invoice_id = ?`), id).Scan(&payments); err != nil {
		return err
	}
	if models.InvoiceStatus(current) != models.InvoiceStatusNew || payments > 0 {
		err = models.ErrInvoiceNotCancellable
		return err
	}

	if _, err = r.setStatus(ctx, tx, id, models.InvoiceStatus(current), models.InvoiceStatusInvalid); err != nil {
		return err
	}
	return tx.Commit()
}

// AddPayment records a payment and moves the invoice to paid once the
// received total covers the amount.
func (r *SQLStore) AddPayment(ctx context.Context, p models.InvoicePayment) (inv models.Invoice, previous models.InvoiceStatus, recorded bool, err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return models.Invoice{}, "", false, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var (
		status       string
		amount, paid decimal.Decimal
		expiresAt    time.Time
	)
	if err = tx.QueryRowContext(ctx, r.dialect.Rebind(`SELECT status, amount, paid_amount, expires_at FROM invoices WHERE id = ? FOR UPDATE`), p.InvoiceID).Scan(&status, &amount, &paid, &expiresAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			err = models.ErrInvoiceNotFound
		}
		return models.Invoice{}, "", false, err
	}
	previous = models.InvoiceStatus(status)
	// A new invoice only takes payments received inside its window, even
	// before the sweeper has marked it expired.
	if !acceptsPayments(previous) || (previous == models.InvoiceStatusNew && !p.ReceivedAt.Before(expiresAt)) {
		err = models.ErrInvoiceClosed
		return models.Invoice{}, previous, false, err
	}

	_, execErr := tx.ExecContext(ctx, r.dialect.Rebind(`INSERT INTO invoice_payments (invoice_id, amount, provider_txn_id, received_at) VALUES (?,?,?,?)`),
		p.InvoiceID, p.Amount, p.ProviderTxnID, p.ReceivedAt.UTC())
	if execErr != nil {
		if dbutil.IsDuplicateKey(execErr) {
			_ = tx.Rollback()
			inv, err = r.Get(ctx, p.InvoiceID)
			return inv, previous, false, err
		}
		err = fmt.Errorf("insert invoice payment: %w", execErr)
		return models.Invoice{}, previous, false, err
	}

	paid = paid.Add(p.Amount)
	next := previous
	if previous == models.InvoiceStatusNew && paid.GreaterThanOrEqual(amount) {
		next = models.InvoiceStatusPaid
	}
	if !CanTransition(previous, next) {
		err = transitionError(previous, next)
		return models.Invoice{}, previous, false, err
	}
	if _, err = tx.ExecContext(ctx, r.dialect.Rebind(`UPDATE invoices SET paid_amount = ?, status = ? WHERE id = ?`), paid, string(next), p.InvoiceID); err != nil {
		return models.Invoice{}, previous, false, err
	}
	if err = tx.Commit(); err != nil {
		return models.Invoice{}, previous, false, err
	}

	inv, err = r.Get(ctx, p.InvoiceID)
	return inv, previous, true, err
}

// ExpireDue marks overdue new invoices as expired.
func (r *SQLStore) ExpireDue(ctx context.Context, now time.Time) ([]models.Invoice, error) {
	rows, err := r.db.QueryContext(ctx, r.dialect.Rebind(`SELECT id, status FROM invoices WHERE status = ? AND expires_at <= ?`), string(models.InvoiceStatusNew), now.UTC())
	if err != nil {
		return nil, err
	}
	type candidate struct {
		id     string
		status models.InvoiceStatus
	}
	var due []candidate
	for rows.Next() {
		var c candidate
		var status string
		if err := rows.Scan(&c.id, &status); err != nil {
			rows.Close()
			return nil, err
		}
		c.status = models.InvoiceStatus(status)
		due = append(due, c)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	expired := make([]models.Invoice, 0, len(due))
	for _, c := range due {
		changed, err := r.setStatus(ctx, r.db, c.id, c.status, models.InvoiceStatusExpired)
		if err != nil {
			return expired, err
		}
		if !changed {
			continue
		}
		inv, err := r.Get(ctx, c.id)
		if err != nil {
			return expired, err
		}
		expired = append(expired, inv)
	}
	return expired, nil
}

// setStatus moves an invoice from one status to another if the lifecycle
// allows it and the row still holds the expected status.
func (r *SQLStore) setStatus(ctx context.Context, q execer, id string, from, to models.InvoiceStatus) (bool, error) {
	if !CanTransition(from, to) {
		return false, transitionError(from, to)
	}
	res, err := q.ExecContext(ctx, r.dialect.Rebind(`UPDATE invoices SET status = ? WHERE id = ? AND status = ?`), string(to), id, string(from))
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *SQLStore) loadDetails(ctx context.Context, q querier, inv *models.Invoice) error {
	tagRows, err := q.QueryContext(ctx, r.dialect.Rebind(`SELECT tag FROM invoice_tags WHERE invoice_id = ? ORDER BY tag`), inv.ID)
	if err != nil {
		return err
	}
	defer tagRows.Close()
	for tagRows.Next() {
		var tag string
		if err := tagRows.Scan(&tag); err != nil {
			return err
		}
		inv.InternalTags = append(inv.InternalTags, tag)
	}
	if err := tagRows.Err(); err != nil {
		return err
	}

	payRows, err := q.QueryContext(ctx, r.dialect.Rebind(`SELECT id, invoice_id, amount, provider_txn_id, received_at FROM invoice_payments WHERE invoice_id = ? ORDER BY received_at, id`), inv.ID)
	if err != nil {
		return err
	}
	defer payRows.Close()
	inv.Payments = []models.InvoicePayment{}
	for payRows.Next() {
		var p models.InvoicePayment
		if err := payRows.Scan(&p.ID, &p.InvoiceID, &p.Amount, &p.ProviderTxnID, &p.ReceivedAt); err != nil {
			return err
		}
		p.ReceivedAt = p.ReceivedAt.UTC()
		inv.Payments = append(inv.Payments, p)
	}
	return payRows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanInvoice(row rowScanner) (models.Invoice, error) {
	var (
		inv    models.Invoice
		status string
	)
	if err := row.Scan(&inv.ID, &inv.StoreID, &inv.OrderID, &status, &inv.Currency, &inv.Amount, &inv.PaidAmount,
		&inv.BuyerEmail, &inv.RedirectURL, &inv.CreatedAt, &inv.ExpiresAt); err != nil {
		return models.Invoice{}, err
	}
	inv.Status = models.InvoiceStatus(status)
	inv.CreatedAt = inv.CreatedAt.UTC()
	inv.ExpiresAt = inv.ExpiresAt.UTC()
	return inv, nil
}
