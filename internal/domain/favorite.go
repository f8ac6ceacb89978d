package domain

import "time"

// Favorite bookmarks a listing for a user. Unique per (user, listing).
type Favorite struct {
	ID        int64
	UserID    int64
	ListingID int64
	CreatedAt time.Time

	Listing *Listing
}
