package domain

import "time"

// ShippingDetail is a shipping address captured at checkout. Records are
// immutable once saved; a user accumulates one per checkout and the newest
// one is treated as current.
type ShippingDetail struct {
	ID        int64
	UserID    int64
	FullName  string
	Email     string
	Phone     string
	Address   string
	LandMark  string
	City      string
	State     string
	ZipCode   string
	CreatedAt time.Time
	UpdatedAt time.Time
}
