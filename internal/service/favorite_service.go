package service

import (
	"context"

	"github.com/spec-kit/car-marketplace/internal/domain"
	"github.com/spec-kit/car-marketplace/internal/repository"
	apperrors "github.com/spec-kit/car-marketplace/pkg/util/errorutil"
)

// FavoriteService manages user bookmarks on listings.
type FavoriteService struct {
	favorites repository.FavoriteRepository
	listings  repository.ListingRepository
}

// NewFavoriteService builds the service.
func NewFavoriteService(favorites repository.FavoriteRepository, listings repository.ListingRepository) *FavoriteService {
	return &FavoriteService{favorites: favorites, listings: listings}
}

// Add bookmarks a listing. It is idempotent and reports whether a new
// bookmark was created.
func (s *FavoriteService) Add(ctx context.Context, user *domain.User, listingID int64) (bool, error) {
	listing, err := s.listings.GetByID(ctx, listingID)
	if err != nil {
		return false, notFound(err, "listing")
	}
	if !listing.VisibleTo(user) {
		return false, apperrors.NewNotFound("listing", nil)
	}
	return s.favorites.Add(ctx, user.ID, listingID)
}

// Remove deletes the bookmark if present.
func (s *FavoriteService) Remove(ctx context.Context, user *domain.User, listingID int64) error {
	if _, err := s.listings.GetByID(ctx, listingID); err != nil {
		return notFound(err, "listing")
	}
	return s.favorites.Remove(ctx, user.ID, listingID)
}

// List returns the user's bookmarks, newest first.
func (s *FavoriteService) List(ctx context.Context, user *domain.User, page repository.Page) ([]domain.Favorite, int, error) {
	return s.favorites.ListByUser(ctx, user.ID, page)
}
