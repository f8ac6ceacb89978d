package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/car-marketplace/internal/api/dto"
	"github.com/spec-kit/car-marketplace/internal/service"
	apperrors "github.com/spec-kit/car-marketplace/pkg/util/errorutil"
)

// AdminHandler exposes staff bulk actions.
type AdminHandler struct {
	moderation    *service.ModerationService
	conversations *service.ConversationService
}

// NewAdminHandler constructs handler.
func NewAdminHandler(moderation *service.ModerationService, conversations *service.ConversationService) *AdminHandler {
	return &AdminHandler{moderation: moderation, conversations: conversations}
}

// ApproveListings POST /api/admin/listings/approve.
func (h *AdminHandler) ApproveListings(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	var req dto.BulkIDsRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	n, err := h.moderation.Approve(c.UserContext(), user, req.IDs)
	if err != nil {
		return err
	}
	return c.JSON(dto.BulkActionResponse{Updated: int64(n)})
}

// RejectListings POST /api/admin/listings/reject.
func (h *AdminHandler) RejectListings(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	var req dto.RejectListingsRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	n, err := h.moderation.Reject(c.UserContext(), user, req.IDs, req.Reason)
	if err != nil {
		return err
	}
	return c.JSON(dto.BulkActionResponse{Updated: int64(n)})
}

// ArchiveConversations POST /api/admin/conversations/archive.
func (h *AdminHandler) ArchiveConversations(c *fiber.Ctx) error {
	var req dto.BulkIDsRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	n, err := h.conversations.Archive(c.UserContext(), req.IDs)
	if err != nil {
		return err
	}
	return c.JSON(dto.BulkActionResponse{Updated: n})
}
