package repository

import (
	"context"

	"litvi-store/internal/domain"
)

// ShippingRepository defines persistence operations for shipping records.
// Records have no update path; checkout appends and reads fetch newest first.
type ShippingRepository interface {
	Init(ctx context.Context) error
	Create(ctx context.Context, detail *domain.ShippingDetail) (int64, error)
	List(ctx context.Context) ([]domain.ShippingDetail, error)
	LatestByUser(ctx context.Context, userID int64) (*domain.ShippingDetail, error)
}
