package domain

import "time"

const (
	MinRating = 1
	MaxRating = 5
)

// Review is a rating left by one user about a seller.
type Review struct {
	ID        int64
	AuthorID  int64
	SellerID  int64
	Rating    int
	Text      string
	ListingID *int64
	CreatedAt time.Time

	Author UserRef
	Seller UserRef
}

// SellerStats is the derived rating aggregate for a seller.
type SellerStats struct {
	SellerID    int64
	RatingAvg   float64
	RatingCount int
	UpdatedAt   time.Time
}
