package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"litvi-store/internal/domain"
	"litvi-store/internal/repository"
)

var (
	// ErrShippingUserRequired indicates the record has no user reference.
	ErrShippingUserRequired = errors.New("user id is required")
	// ErrShippingNotFound indicates the user has no saved shipping details.
	ErrShippingNotFound = errors.New("no shipping details found")
)

// ShippingService persists checkout shipping addresses.
type ShippingService interface {
	Save(ctx context.Context, detail *domain.ShippingDetail) (*domain.ShippingDetail, error)
	List(ctx context.Context) ([]domain.ShippingDetail, error)
	LatestByUser(ctx context.Context, userID int64) (*domain.ShippingDetail, error)
}

type shippingService struct {
	shipping repository.ShippingRepository
}

func NewShippingService(shipping repository.ShippingRepository) ShippingService {
	return &shippingService{shipping: shipping}
}

func (s *shippingService) Save(ctx context.Context, detail *domain.ShippingDetail) (*domain.ShippingDetail, error) {
	if detail == nil || detail.UserID <= 0 {
		return nil, ErrShippingUserRequired
	}

	detail.FullName = strings.TrimSpace(detail.FullName)
	detail.Email = strings.TrimSpace(detail.Email)

	if _, err := s.shipping.Create(ctx, detail); err != nil {
		return nil, fmt.Errorf("save shipping detail: %w", err)
	}
	return detail, nil
}

func (s *shippingService) List(ctx context.Context) ([]domain.ShippingDetail, error) {
	details, err := s.shipping.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list shipping details: %w", err)
	}
	return details, nil
}

func (s *shippingService) LatestByUser(ctx context.Context, userID int64) (*domain.ShippingDetail, error) {
	detail, err := s.shipping.LatestByUser(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrShippingNotFound
		}
		return nil, fmt.Errorf("load shipping detail: %w", err)
	}
	return detail, nil
}
