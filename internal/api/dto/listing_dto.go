package dto

import (
	"time"

	"github.com/spec-kit/car-marketplace/internal/domain"
)

// ListingRequest is used for both create and partial update.
type ListingRequest struct {
	MakeID       *int64               `json:"make"`
	CarModelID   *int64               `json:"car_model"`
	Year         *int                 `json:"year"`
	Price        *float64             `json:"price"`
	Mileage      *int                 `json:"mileage"`
	Transmission *domain.Transmission `json:"transmission"`
	Fuel         *domain.Fuel         `json:"fuel"`
	Body         *domain.BodyType     `json:"body"`
	Drive        *domain.Drive        `json:"drive"`
	Condition    *domain.Condition    `json:"condition"`
	Color        *string              `json:"color"`
	LocationID   *int64               `json:"location"`
	OwnersCount  *int                 `json:"owners_count"`
	VIN          *string              `json:"vin"`
	Title        *string              `json:"title"`
	Description  *string              `json:"description"`
}

// ListingSummary is the catalog card representation.
type ListingSummary struct {
	ID        int64                   `json:"id"`
	Title     string                  `json:"title"`
	Price     float64                 `json:"price"`
	Year      int                     `json:"year"`
	Mileage   int                     `json:"mileage"`
	Make      string                  `json:"make"`
	CarModel  string                  `json:"car_model"`
	Location  string                  `json:"location"`
	Status    domain.ModerationStatus `json:"status"`
	CreatedAt time.Time               `json:"created_at"`
	MainImage *string                 `json:"main_image"`
}

// MakeResponse describes a manufacturer.
type MakeResponse struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// CarModelResponse describes a model with its make.
type CarModelResponse struct {
	ID   int64        `json:"id"`
	Name string       `json:"name"`
	Make MakeResponse `json:"make"`
}

// LocationResponse describes a location.
type LocationResponse struct {
	ID     int64  `json:"id"`
	Name   string `json:"name"`
	Region string `json:"region"`
}

// ListingImageResponse describes an uploaded photo.
type ListingImageResponse struct {
	ID        int64     `json:"id"`
	Image     string    `json:"image"`
	Order     int       `json:"order"`
	CreatedAt time.Time `json:"created_at"`
}

// ListingDetail is the full listing representation.
type ListingDetail struct {
	ID              int64                   `json:"id"`
	Seller          UserRef                 `json:"seller"`
	Make            MakeResponse            `json:"make"`
	CarModel        CarModelResponse        `json:"car_model"`
	Year            int                     `json:"year"`
	Price           float64                 `json:"price"`
	Mileage         int                     `json:"mileage"`
	Transmission    domain.Transmission     `json:"transmission"`
	Fuel            domain.Fuel             `json:"fuel"`
	Body            domain.BodyType         `json:"body"`
	Drive           domain.Drive            `json:"drive"`
	Condition       domain.Condition        `json:"condition"`
	Color           string                  `json:"color"`
	Location        LocationResponse        `json:"location"`
	OwnersCount     int                     `json:"owners_count"`
	VIN             *string                 `json:"vin"`
	Title           string                  `json:"title"`
	Description     string                  `json:"description"`
	Status          domain.ModerationStatus `json:"status"`
	RejectionReason *string                 `json:"rejection_reason"`
	CreatedAt       time.Time               `json:"created_at"`
	UpdatedAt       time.Time               `json:"updated_at"`
	Images          []ListingImageResponse  `json:"images"`
}

// FavoriteResponse pairs a bookmark with its listing card.
type FavoriteResponse struct {
	ID        int64          `json:"id"`
	Listing   ListingSummary `json:"listing"`
	CreatedAt time.Time      `json:"created_at"`
}

// FavoriteStatusResponse reports whether a bookmark was added or existed.
type FavoriteStatusResponse struct {
	Status string `json:"status"`
}
