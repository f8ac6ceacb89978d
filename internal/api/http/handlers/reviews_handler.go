package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/car-marketplace/internal/api/dto"
	"github.com/spec-kit/car-marketplace/internal/config"
	"github.com/spec-kit/car-marketplace/internal/domain"
	"github.com/spec-kit/car-marketplace/internal/service"
	apperrors "github.com/spec-kit/car-marketplace/pkg/util/errorutil"
)

// ReviewsHandler serves seller reviews and rating stats.
type ReviewsHandler struct {
	service    *service.ReviewService
	pagination config.PaginationConfig
}

// NewReviewsHandler constructs handler.
func NewReviewsHandler(reviewService *service.ReviewService, pagination config.PaginationConfig) *ReviewsHandler {
	return &ReviewsHandler{service: reviewService, pagination: pagination}
}

// ListBySeller GET /api/reviews/seller/:id.
func (h *ReviewsHandler) ListBySeller(c *fiber.Ctx) error {
	sellerID, err := paramID(c, "id")
	if err != nil {
		return err
	}
	pageReq, err := parsePage(c, h.pagination)
	if err != nil {
		return err
	}
	reviews, total, err := h.service.ListBySeller(c.UserContext(), sellerID, pageReq.repo())
	if err != nil {
		return err
	}
	items := make([]dto.ReviewResponse, 0, len(reviews))
	for i := range reviews {
		items = append(items, reviewResponse(&reviews[i]))
	}
	page, err := paginate(pageReq, total, items)
	if err != nil {
		return err
	}
	return c.JSON(page)
}

// SellerStats GET /api/reviews/seller/:id/stats.
func (h *ReviewsHandler) SellerStats(c *fiber.Ctx) error {
	sellerID, err := paramID(c, "id")
	if err != nil {
		return err
	}
	stats, err := h.service.SellerStats(c.UserContext(), sellerID)
	if err != nil {
		return err
	}
	resp := dto.SellerStatsResponse{
		SellerID:    stats.SellerID,
		RatingAvg:   stats.RatingAvg,
		RatingCount: stats.RatingCount,
	}
	if !stats.UpdatedAt.IsZero() {
		updated := stats.UpdatedAt
		resp.UpdatedAt = &updated
	}
	return c.JSON(resp)
}

// Create POST /api/reviews.
func (h *ReviewsHandler) Create(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	var req dto.CreateReviewRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	problems := map[string]any{}
	if req.SellerID == nil {
		problems["seller_id"] = "this field is required"
	}
	if req.Rating == nil {
		problems["rating"] = "this field is required"
	}
	if len(problems) > 0 {
		return apperrors.NewValidationError("invalid review", problems)
	}

	review, err := h.service.Create(c.UserContext(), user, service.CreateReviewInput{
		SellerID:  *req.SellerID,
		Rating:    *req.Rating,
		Text:      req.Text,
		ListingID: req.ListingID,
	})
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(reviewResponse(review))
}

// Delete DELETE /api/reviews/:id.
func (h *ReviewsHandler) Delete(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	if err := h.service.Delete(c.UserContext(), user, id); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func reviewResponse(r *domain.Review) dto.ReviewResponse {
	return dto.ReviewResponse{
		ID:        r.ID,
		Author:    userRef(r.Author),
		Seller:    userRef(r.Seller),
		Rating:    r.Rating,
		Text:      r.Text,
		Listing:   r.ListingID,
		CreatedAt: r.CreatedAt,
	}
}
