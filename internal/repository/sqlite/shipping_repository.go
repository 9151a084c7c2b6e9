package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"litvi-store/internal/domain"
	"litvi-store/internal/repository"
)

const createShippingTable = `
CREATE TABLE IF NOT EXISTS shipping_details (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id INTEGER NOT NULL REFERENCES users(id),
	full_name TEXT NOT NULL,
	email TEXT NOT NULL,
	phone TEXT NOT NULL,
	address TEXT NOT NULL,
	land_mark TEXT NOT NULL,
	city TEXT NOT NULL,
	state TEXT NOT NULL,
	zip_code TEXT NOT NULL,
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_shipping_user_created ON shipping_details (user_id, created_at);
`

const shippingColumns = `id, user_id, full_name, email, phone, address, land_mark, city, state, zip_code, created_at, updated_at`

type ShippingRepository struct {
	db *sql.DB
}

func NewShippingRepository(db *sql.DB) repository.ShippingRepository {
	return &ShippingRepository{db: db}
}

func (r *ShippingRepository) Init(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, createShippingTable); err != nil {
		return fmt.Errorf("create shipping table: %w", err)
	}
	return nil
}

func (r *ShippingRepository) Create(ctx context.Context, detail *domain.ShippingDetail) (int64, error) {
	now := time.Now().UTC()
	detail.CreatedAt = now
	detail.UpdatedAt = now

	res, err := r.db.ExecContext(ctx, `
INSERT INTO shipping_details (user_id, full_name, email, phone, address, land_mark, city, state, zip_code, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		detail.UserID,
		detail.FullName,
		detail.Email,
		detail.Phone,
		detail.Address,
		detail.LandMark,
		detail.City,
		detail.State,
		detail.ZipCode,
		detail.CreatedAt,
		detail.UpdatedAt,
	)
	if err != nil {
		return 0, fmt.Errorf("insert shipping detail: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("shipping last insert id: %w", err)
	}
	detail.ID = id
	return id, nil
}

func (r *ShippingRepository) List(ctx context.Context) ([]domain.ShippingDetail, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT `+shippingColumns+`
FROM shipping_details
ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("list shipping details: %w", err)
	}
	defer rows.Close()

	var details []domain.ShippingDetail
	for rows.Next() {
		detail, err := scanShipping(rows)
		if err != nil {
			return nil, err
		}
		details = append(details, *detail)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate shipping details: %w", err)
	}
	return details, nil
}

func (r *ShippingRepository) LatestByUser(ctx context.Context, userID int64) (*domain.ShippingDetail, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT `+shippingColumns+`
FROM shipping_details
WHERE user_id = ?
ORDER BY created_at DESC, id DESC
LIMIT 1`,
		userID,
	)
	return scanShipping(row)
}

func scanShipping(row interface {
	Scan(dest ...any) error
}) (*domain.ShippingDetail, error) {
	var detail domain.ShippingDetail
	if err := row.Scan(
		&detail.ID,
		&detail.UserID,
		&detail.FullName,
		&detail.Email,
		&detail.Phone,
		&detail.Address,
		&detail.LandMark,
		&detail.City,
		&detail.State,
		&detail.ZipCode,
		&detail.CreatedAt,
		&detail.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("scan shipping detail: %w", err)
	}
	return &detail, nil
}
