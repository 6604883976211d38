package repositories

import (
	"context"
	"database/sql"
	"errors"

	"naimuPay/internal/dbutil"
	"naimuPay/internal/models"
)

type StoreRepository struct {
	DB      *sql.DB
	Dialect dbutil.Dialect
}

func NewStoreRepository(db *sql.DB, dialect dbutil.Dialect) *StoreRepository {
	return &StoreRepository{DB: db, Dialect: dialect}
}

// ListByUser returns the stores owned by the user.
func (r *StoreRepository) ListByUser(ctx context.Context, userID string) ([]models.Store, error) {
	rows, err := r.DB.QueryContext(ctx, r.Dialect.Rebind(`SELECT id, name, owner_user_id FROM stores WHERE owner_user_id = ? ORDER BY name`), userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	stores := []models.Store{}
	for rows.Next() {
		var s models.Store
		if err := rows.Scan(&s.ID, &s.Name, &s.OwnerUserID); err != nil {
			return nil, err
		}
		stores = append(stores, s)
	}
	return stores, rows.Err()
}

// IsOwner reports whether the store exists and belongs to the user.
func (r *StoreRepository) IsOwner(ctx context.Context, storeID, userID string) (bool, error) {
	var one int
	err := r.DB.QueryRowContext(ctx, r.Dialect.Rebind(`SELECT 1 FROM stores WHERE id = ? AND owner_user_id = ?`), storeID, userID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
