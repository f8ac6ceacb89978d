package dto

import "time"

// CreateReviewRequest payload.
type CreateReviewRequest struct {
	SellerID  *int64 `json:"seller_id"`
	ListingID *int64 `json:"listing_id"`
	Rating    *int   `json:"rating"`
	Text      string `json:"text"`
}

// ReviewResponse represents a review.
type ReviewResponse struct {
	ID        int64     `json:"id"`
	Author    UserRef   `json:"author"`
	Seller    UserRef   `json:"seller"`
	Rating    int       `json:"rating"`
	Text      string    `json:"text"`
	Listing   *int64    `json:"listing"`
	CreatedAt time.Time `json:"created_at"`
}

// SellerStatsResponse is the rating aggregate for a seller.
type SellerStatsResponse struct {
	SellerID    int64      `json:"seller_id"`
	RatingAvg   float64    `json:"rating_avg"`
	RatingCount int        `json:"rating_count"`
	UpdatedAt   *time.Time `json:"updated_at"`
}
