package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/car-marketplace/internal/domain"
	"github.com/spec-kit/car-marketplace/internal/repository"
	apperrors "github.com/spec-kit/car-marketplace/pkg/util/errorutil"
)

const (
	maxTitleLength = 140
	maxColorLength = 32
	maxVINLength   = 32
)

// MediaStore persists uploaded image bytes.
type MediaStore interface {
	NewKey(prefix, fileName string) string
	Save(ctx context.Context, key string, r io.Reader) error
	Remove(key string) error
}

// ListingService coordinates catalog listings and their images.
type ListingService struct {
	listings repository.ListingRepository
	images   repository.ListingImageRepository
	catalog  repository.CatalogRepository
	media    MediaStore
	logger   *zap.Logger
}

// ListingDependencies bundles requirements for the listing service.
type ListingDependencies struct {
	ListingRepo repository.ListingRepository
	ImageRepo   repository.ListingImageRepository
	CatalogRepo repository.CatalogRepository
	Media       MediaStore
	Logger      *zap.Logger
}

// ListingInput carries the editable listing fields. On update nil fields
// are left unchanged; on create every required field must be set.
type ListingInput struct {
	MakeID       *int64
	CarModelID   *int64
	Year         *int
	Price        *float64
	Mileage      *int
	Transmission *domain.Transmission
	Fuel         *domain.Fuel
	Body         *domain.BodyType
	Drive        *domain.Drive
	Condition    *domain.Condition
	Color        *string
	LocationID   *int64
	OwnersCount  *int
	VIN          *string
	Title        *string
	Description  *string
}

// ImageUpload describes an uploaded listing photo.
type ImageUpload struct {
	FileName string
	Order    int
	Content  io.Reader
}

// NewListingService builds the service.
func NewListingService(deps ListingDependencies) *ListingService {
	return &ListingService{
		listings: deps.ListingRepo,
		images:   deps.ImageRepo,
		catalog:  deps.CatalogRepo,
		media:    deps.Media,
		logger:   orNop(deps.Logger),
	}
}

// List returns listings visible to viewer. Anonymous callers see approved
// listings only; identified callers also see their own.
func (s *ListingService) List(ctx context.Context, viewer *domain.User, filter repository.ListingFilter) ([]domain.Listing, int, error) {
	filter.ViewerID = nil
	if viewer != nil {
		id := viewer.ID
		filter.ViewerID = &id
	}
	return s.listings.List(ctx, filter)
}

// Get returns a listing with its images if viewer may see it.
func (s *ListingService) Get(ctx context.Context, viewer *domain.User, id int64) (*domain.Listing, error) {
	listing, err := s.listings.GetByID(ctx, id)
	if err != nil {
		return nil, notFound(err, "listing")
	}
	if !listing.VisibleTo(viewer) {
		return nil, apperrors.NewNotFound("listing", nil)
	}
	if err := s.attachImages(ctx, listing); err != nil {
		return nil, err
	}
	return listing, nil
}

// Create stores a new listing owned by seller. The listing always starts
// PENDING regardless of input.
func (s *ListingService) Create(ctx context.Context, seller *domain.User, in ListingInput) (*domain.Listing, error) {
	listing := &domain.Listing{
		SellerID: seller.ID,
		Status:   domain.ModerationPending,
	}
	problems := map[string]any{}
	for field, missing := range map[string]bool{
		"make":         in.MakeID == nil,
		"car_model":    in.CarModelID == nil,
		"year":         in.Year == nil,
		"price":        in.Price == nil,
		"mileage":      in.Mileage == nil,
		"transmission": in.Transmission == nil,
		"fuel":         in.Fuel == nil,
		"body":         in.Body == nil,
		"drive":        in.Drive == nil,
		"condition":    in.Condition == nil,
		"color":        in.Color == nil,
		"location":     in.LocationID == nil,
		"title":        in.Title == nil,
	} {
		if missing {
			problems[field] = "this field is required"
		}
	}
	if len(problems) > 0 {
		return nil, apperrors.NewValidationError("invalid listing", problems)
	}

	if err := s.apply(ctx, listing, in); err != nil {
		return nil, err
	}
	if err := s.listings.Create(ctx, listing); err != nil {
		return nil, err
	}
	s.logger.Info("listing created", zap.Int64("listing_id", listing.ID), zap.Int64("seller_id", seller.ID))
	return s.reload(ctx, listing.ID)
}

// Update applies a partial update. Only the owner or staff may edit.
func (s *ListingService) Update(ctx context.Context, actor *domain.User, id int64, in ListingInput) (*domain.Listing, error) {
	listing, err := s.ownedListing(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if err := s.apply(ctx, listing, in); err != nil {
		return nil, err
	}
	if err := s.listings.Update(ctx, listing); err != nil {
		return nil, err
	}
	return s.reload(ctx, listing.ID)
}

// Delete removes a listing and its stored images.
func (s *ListingService) Delete(ctx context.Context, actor *domain.User, id int64) error {
	listing, err := s.ownedListing(ctx, actor, id)
	if err != nil {
		return err
	}
	images, err := s.images.ListByListing(ctx, listing.ID)
	if err != nil {
		return err
	}
	if err := s.listings.Delete(ctx, listing.ID); err != nil {
		return notFound(err, "listing")
	}
	for _, img := range images {
		s.removeFile(img.StorageKey)
	}
	return nil
}

// AddImage stores an uploaded photo for a listing the actor may edit.
func (s *ListingService) AddImage(ctx context.Context, actor *domain.User, listingID int64, upload ImageUpload) (*domain.ListingImage, error) {
	listing, err := s.ownedListing(ctx, actor, listingID)
	if err != nil {
		return nil, err
	}
	if upload.Content == nil {
		return nil, apperrors.NewValidationError("'image' file is required", nil)
	}
	if upload.Order < 0 {
		return nil, apperrors.NewValidationError("'order' must be a non-negative integer", nil)
	}

	key := s.media.NewKey(fmt.Sprintf("listings/%d", listing.ID), upload.FileName)
	if err := s.media.Save(ctx, key, upload.Content); err != nil {
		return nil, fmt.Errorf("store image: %w", err)
	}

	img := &domain.ListingImage{
		ListingID:  listing.ID,
		StorageKey: key,
		FileName:   upload.FileName,
		Order:      upload.Order,
	}
	if err := s.images.Create(ctx, img); err != nil {
		s.removeFile(key)
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, apperrors.NewValidationError("image order already used for this listing",
				map[string]any{"order": upload.Order})
		}
		return nil, err
	}
	return img, nil
}

// DeleteImage removes a photo from a listing the actor may edit.
func (s *ListingService) DeleteImage(ctx context.Context, actor *domain.User, imageID int64) error {
	img, err := s.images.GetByID(ctx, imageID)
	if err != nil {
		return notFound(err, "image")
	}
	if _, err := s.ownedListing(ctx, actor, img.ListingID); err != nil {
		return err
	}
	if err := s.images.Delete(ctx, img.ID); err != nil {
		return notFound(err, "image")
	}
	s.removeFile(img.StorageKey)
	return nil
}

func (s *ListingService) ownedListing(ctx context.Context, actor *domain.User, id int64) (*domain.Listing, error) {
	listing, err := s.listings.GetByID(ctx, id)
	if err != nil {
		return nil, notFound(err, "listing")
	}
	if !actor.IsStaff && actor.ID != listing.SellerID {
		return nil, apperrors.NewForbidden("only the seller or staff may modify this listing")
	}
	return listing, nil
}

func (s *ListingService) reload(ctx context.Context, id int64) (*domain.Listing, error) {
	listing, err := s.listings.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.attachImages(ctx, listing); err != nil {
		return nil, err
	}
	return listing, nil
}

func (s *ListingService) attachImages(ctx context.Context, listing *domain.Listing) error {
	images, err := s.images.ListByListing(ctx, listing.ID)
	if err != nil {
		return err
	}
	listing.Images = images
	return nil
}

func (s *ListingService) removeFile(key string) {
	if err := s.media.Remove(key); err != nil {
		s.logger.Warn("remove media file failed", zap.String("key", key), zap.Error(err))
	}
}

// apply validates the set fields of in and copies them onto listing.
func (s *ListingService) apply(ctx context.Context, listing *domain.Listing, in ListingInput) error {
	problems := map[string]any{}

	if in.Year != nil {
		if *in.Year < domain.MinListingYear {
			problems["year"] = fmt.Sprintf("year must be at least %d", domain.MinListingYear)
		}
		listing.Year = *in.Year
	}
	if in.Price != nil {
		if *in.Price < 0 {
			problems["price"] = "price must be non-negative"
		}
		listing.Price = *in.Price
	}
	if in.Mileage != nil {
		if *in.Mileage < 0 {
			problems["mileage"] = "mileage must be non-negative"
		}
		listing.Mileage = *in.Mileage
	}
	if in.OwnersCount != nil {
		if *in.OwnersCount < 0 {
			problems["owners_count"] = "owners_count must be non-negative"
		}
		listing.OwnersCount = *in.OwnersCount
	}
	if in.Transmission != nil {
		if !in.Transmission.Valid() {
			problems["transmission"] = "unknown transmission"
		}
		listing.Transmission = *in.Transmission
	}
	if in.Fuel != nil {
		if !in.Fuel.Valid() {
			problems["fuel"] = "unknown fuel"
		}
		listing.Fuel = *in.Fuel
	}
	if in.Body != nil {
		if !in.Body.Valid() {
			problems["body"] = "unknown body type"
		}
		listing.Body = *in.Body
	}
	if in.Drive != nil {
		if !in.Drive.Valid() {
			problems["drive"] = "unknown drive"
		}
		listing.Drive = *in.Drive
	}
	if in.Condition != nil {
		if !in.Condition.Valid() {
			problems["condition"] = "unknown condition"
		}
		listing.Condition = *in.Condition
	}
	if in.Color != nil {
		color := strings.TrimSpace(*in.Color)
		if color == "" || len(color) > maxColorLength {
			problems["color"] = "color must be 1-32 characters"
		}
		listing.Color = color
	}
	if in.Title != nil {
		title := strings.TrimSpace(*in.Title)
		if title == "" || len(title) > maxTitleLength {
			problems["title"] = "title must be 1-140 characters"
		}
		listing.Title = title
	}
	if in.Description != nil {
		listing.Description = *in.Description
	}
	if in.VIN != nil {
		vin := strings.TrimSpace(*in.VIN)
		if len(vin) > maxVINLength {
			problems["vin"] = "vin must be at most 32 characters"
		}
		if vin == "" {
			listing.VIN = nil
		} else {
			listing.VIN = &vin
		}
	}
	if len(problems) > 0 {
		return apperrors.NewValidationError("invalid listing", problems)
	}

	if in.MakeID != nil {
		listing.MakeID = *in.MakeID
	}
	if in.CarModelID != nil {
		listing.CarModelID = *in.CarModelID
	}
	if in.MakeID != nil || in.CarModelID != nil {
		if _, err := s.catalog.GetMake(ctx, listing.MakeID); err != nil {
			return referenceError(err, "make")
		}
		model, err := s.catalog.GetCarModel(ctx, listing.CarModelID)
		if err != nil {
			return referenceError(err, "car_model")
		}
		if model.MakeID != listing.MakeID {
			return apperrors.NewValidationError("invalid listing",
				map[string]any{"car_model": "model does not belong to the selected make"})
		}
	}
	if in.LocationID != nil {
		if _, err := s.catalog.GetLocation(ctx, *in.LocationID); err != nil {
			return referenceError(err, "location")
		}
		listing.LocationID = *in.LocationID
	}
	return nil
}

// referenceError reports an unknown foreign key as a validation problem.
func referenceError(err error, field string) error {
	if apperrors.HasCode(notFound(err, field), "NOT_FOUND") {
		return apperrors.NewValidationError("invalid listing", map[string]any{field: "unknown " + field})
	}
	return err
}
