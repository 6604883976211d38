package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"naimuPay/internal/dbutil"
	"naimuPay/internal/models"
)

const paymentRequestColumns = `pr.id, pr.store_id, pr.created, pr.archived, pr.blob_json`

// PaymentRequestRepository persists payment requests. Records are never
// deleted; archival is a flag.
type PaymentRequestRepository struct {
	DB      *sql.DB
	Dialect dbutil.Dialect
}

func NewPaymentRequestRepository(db *sql.DB, dialect dbutil.Dialect) *PaymentRequestRepository {
	return &PaymentRequestRepository{DB: db, Dialect: dialect}
}

// FindByID loads a payment request. When userID is set the request must
// belong to a store owned by that user.
func (r *PaymentRequestRepository) FindByID(ctx context.Context, id string, userID *string) (models.PaymentRequest, error) {
	if id == "" {
		return models.PaymentRequest{}, models.ErrNotFound
	}
	query := `SELECT ` + paymentRequestColumns + ` FROM payment_requests pr`
	args := []interface{}{id}
	if userID != nil {
		query += ` JOIN stores s ON s.id = pr.store_id WHERE pr.id = ? AND s.owner_user_id = ?`
		args = append(args, *userID)
	} else {
		query += ` WHERE pr.id = ?`
	}

	row := r.DB.QueryRowContext(ctx, r.Dialect.Rebind(query), args...)
	pr, err := scanPaymentRequest(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.PaymentRequest{}, models.ErrNotFound
	}
	if err != nil {
		return models.PaymentRequest{}, err
	}
	return pr, nil
}

// CreateOrUpdate inserts the record when it has no id yet and updates it
// otherwise. The creation timestamp is written only on insert.
func (r *PaymentRequestRepository) CreateOrUpdate(ctx context.Context, pr models.PaymentRequest) (models.PaymentRequest, error) {
	if pr.Blob.Version == 0 {
		pr.Blob.Version = models.PaymentRequestBlobVersion
	}
	blob, err := json.Marshal(pr.Blob)
	if err != nil {
		return models.PaymentRequest{}, fmt.Errorf("marshal payment request blob: %w", err)
	}

	if pr.ID == "" {
		pr.ID = uuid.NewString()
		_, err = r.DB.ExecContext(ctx, r.Dialect.Rebind(`INSERT INTO payment_requests (id, store_id, created, archived, blob_json) VALUES (?,?,?,?,?)`),
			pr.ID, pr.StoreID, pr.Created.UTC(), pr.Archived, blob)
		if err != nil {
			return models.PaymentRequest{}, storeError(err)
		}
		return pr, nil
	}

	_, err = r.DB.ExecContext(ctx, r.Dialect.Rebind(`UPDATE payment_requests SET store_id = ?, archived = ?, blob_json = ? WHERE id = ?`),
		pr.StoreID, pr.Archived, blob, pr.ID)
	if err != nil {
		return models.PaymentRequest{}, storeError(err)
	}
	return pr, nil
}

// storeError reports a store_id that references no store as a field error.
func storeError(err error) error {
	if !dbutil.IsForeignKeyConstraintError(err) {
		return err
	}
	verr := models.NewValidationError()
	verr.Add("store_id", "Store not found")
	return verr
}

// Find returns one page of a user's payment requests, newest first.
func (r *PaymentRequestRepository) Find(ctx context.Context, q models.PaymentRequestQuery) (models.PaymentRequestPage, error) {
	q = q.Normalize()
	where := ` FROM payment_requests pr JOIN stores s ON s.id = pr.store_id WHERE s.owner_user_id = ?`
	args := []interface{}{q.UserID}
	if !q.IncludeArchived {
		where += ` AND pr.archived = ?`
		args = append(args, false)
	}

	page := models.PaymentRequestPage{Items: []models.PaymentRequest{}, Skip: q.Skip, Count: q.Count}
	if err := r.DB.QueryRowContext(ctx, r.Dialect.Rebind(`SELECT COUNT(*)`+where), args...).Scan(&page.Total); err != nil {
		return models.PaymentRequestPage{}, err
	}

	rows, err := r.DB.QueryContext(ctx, r.Dialect.Rebind(`SELECT `+paymentRequestColumns+where+` ORDER BY pr.created DESC, pr.id LIMIT ? OFFSET ?`),
		append(args, q.Count, q.Skip)...)
	if err != nil {
		return models.PaymentRequestPage{}, err
	}
	defer rows.Close()

	for rows.Next() {
		pr, err := scanPaymentRequest(rows)
		if err != nil {
			return models.PaymentRequestPage{}, err
		}
		page.Items = append(page.Items, pr)
	}
	if err := rows.Err(); err != nil {
		return models.PaymentRequestPage{}, err
	}
	return page, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanPaymentRequest(row rowScanner) (models.PaymentRequest, error) {
	var (
		pr   models.PaymentRequest
		blob []byte
	)
	if err := row.Scan(&pr.ID, &pr.StoreID, &pr.Created, &pr.Archived, &blob); err != nil {
		return models.PaymentRequest{}, err
	}
	if len(blob) > 0 {
		if err := json.Unmarshal(blob, &pr.Blob); err != nil {
			return models.PaymentRequest{}, fmt.Errorf("decode payment request %s blob: %w", pr.ID, err)
		}
	}
	if pr.Blob.Version == 0 {
		pr.Blob.Version = models.PaymentRequestBlobVersion
	}
	pr.Created = pr.Created.UTC()
	return pr, nil
}
