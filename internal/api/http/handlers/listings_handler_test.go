package handlers

import (
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/car-marketplace/internal/domain"
	"github.com/spec-kit/car-marketplace/internal/repository"
	apperrors "github.com/spec-kit/car-marketplace/pkg/util/errorutil"
)

func mediaURL(key string) string { return "/media/" + key }

func TestParseListingFilter(t *testing.T) {
	target := "/listings?year_min=2010&year_max=2020&price_max=15000.5&mileage_max=90000" +
		"&owners_count_max=2&make=%20Toyota%20&color=Red&location=mos&q=camry&sort=price_asc"
	runWithCtx(t, target, func(c *fiber.Ctx) error {
		filter, err := parseListingFilter(c)
		if err != nil {
			t.Errorf("parseListingFilter: %v", err)
			return nil
		}
		if filter.YearMin == nil || *filter.YearMin != 2010 || filter.YearMax == nil || *filter.YearMax != 2020 {
			t.Errorf("year bounds = %v/%v", filter.YearMin, filter.YearMax)
		}
		if filter.PriceMin != nil || filter.PriceMax == nil || *filter.PriceMax != 15000.5 {
			t.Errorf("price bounds = %v/%v", filter.PriceMin, filter.PriceMax)
		}
		if filter.MileageMax == nil || *filter.MileageMax != 90000 || filter.OwnersCountMax == nil || *filter.OwnersCountMax != 2 {
			t.Errorf("mileage/owners = %v/%v", filter.MileageMax, filter.OwnersCountMax)
		}
		if filter.Make != "Toyota" || filter.Color != "Red" || filter.Location != "mos" || filter.Query != "camry" {
			t.Errorf("text filters = %+v", filter)
		}
		if filter.Sort != repository.SortPriceAsc {
			t.Errorf("sort = %q", filter.Sort)
		}
		return nil
	})
}

func TestParseListingFilterReportsBadNumbers(t *testing.T) {
	runWithCtx(t, "/listings?year_min=new&price_min=cheap&mileage_max=10", func(c *fiber.Ctx) error {
		_, err := parseListingFilter(c)
		if !apperrors.HasCode(err, "VALIDATION_FAILED") {
			t.Errorf("err = %v, want VALIDATION_FAILED", err)
			return nil
		}
		details := err.(*apperrors.DomainError).Details
		if details["year_min"] != "enter a whole number" || details["price_min"] != "enter a number" {
			t.Errorf("details = %v", details)
		}
		if _, ok := details["mileage_max"]; ok {
			t.Errorf("valid mileage_max reported: %v", details)
		}
		return nil
	})
}

func TestListingMappers(t *testing.T) {
	key := "listings/7/a.jpg"
	created := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	listing := &domain.Listing{
		ID:        7,
		Title:     "Camry",
		Price:     12000,
		Year:      2018,
		Status:    domain.ModerationApproved,
		CreatedAt: created,
		Seller:    domain.UserRef{ID: 3, Username: "seller"},
		Make:      domain.Make{ID: 1, Name: "Toyota"},
		CarModel:  domain.CarModel{ID: 10, Name: "Camry"},
		Location:  domain.Location{ID: 100, Name: "Moscow", Region: "Central"},
		MainImage: &key,
		Images: []domain.ListingImage{
			{ID: 1, StorageKey: key, Order: 0, CreatedAt: created},
		},
	}

	summary := listingSummary(listing, mediaURL)
	if summary.Make != "Toyota" || summary.CarModel != "Camry" || summary.Location != "Moscow" {
		t.Errorf("summary names = %+v", summary)
	}
	if summary.MainImage == nil || *summary.MainImage != "/media/listings/7/a.jpg" {
		t.Errorf("main image = %v", summary.MainImage)
	}

	detail := listingDetail(listing, mediaURL)
	if detail.CarModel.Make.Name != "Toyota" || detail.Seller.Username != "seller" {
		t.Errorf("detail refs = %+v", detail)
	}
	if len(detail.Images) != 1 || detail.Images[0].Image != "/media/listings/7/a.jpg" {
		t.Errorf("images = %+v", detail.Images)
	}

	listing.MainImage = nil
	if listingSummary(listing, mediaURL).MainImage != nil {
		t.Error("summary without photos has a main image")
	}
}
