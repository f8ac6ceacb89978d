package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/car-marketplace/internal/api/dto"
	"github.com/spec-kit/car-marketplace/internal/config"
	"github.com/spec-kit/car-marketplace/internal/domain"
	"github.com/spec-kit/car-marketplace/internal/service"
	apperrors "github.com/spec-kit/car-marketplace/pkg/util/errorutil"
)

// ChatHandler serves buyer/seller conversations.
type ChatHandler struct {
	service    *service.ConversationService
	pagination config.PaginationConfig
	mediaURL   URLFunc
}

// NewChatHandler constructs handler.
func NewChatHandler(conversationService *service.ConversationService, pagination config.PaginationConfig, mediaURL URLFunc) *ChatHandler {
	return &ChatHandler{service: conversationService, pagination: pagination, mediaURL: mediaURL}
}

// List GET /api/chat/conversations.
func (h *ChatHandler) List(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	pageReq, err := parsePage(c, h.pagination)
	if err != nil {
		return err
	}
	convs, total, err := h.service.ListForUser(c.UserContext(), user, pageReq.repo())
	if err != nil {
		return err
	}
	items := make([]dto.ConversationSummary, 0, len(convs))
	for i := range convs {
		summary := dto.ConversationSummary{ConversationDetail: conversationDetail(&convs[i], h.mediaURL)}
		if m := convs[i].LastMessage; m != nil {
			summary.LastMessage = &dto.LastMessageResponse{
				ID:        m.ID,
				Author:    userRef(m.Author),
				Text:      m.Text,
				CreatedAt: m.CreatedAt,
			}
		}
		items = append(items, summary)
	}
	page, err := paginate(pageReq, total, items)
	if err != nil {
		return err
	}
	return c.JSON(page)
}

// Start POST /api/chat/conversations.
func (h *ChatHandler) Start(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	var req dto.StartConversationRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.SellerID == nil || req.ListingID == nil {
		return apperrors.NewValidationError("seller_id and listing_id must be integers", nil)
	}

	conv, msg, err := h.service.StartOrReuse(c.UserContext(), service.StartConversationInput{
		SellerID:  *req.SellerID,
		BuyerID:   user.ID,
		ListingID: *req.ListingID,
		AuthorID:  user.ID,
		Text:      req.Text,
	})
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(dto.StartConversationResponse{
		Conversation: conversationDetail(conv, h.mediaURL),
		Message:      messageResponse(msg),
	})
}

// Get GET /api/chat/conversations/:id.
func (h *ChatHandler) Get(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	conv, err := h.service.Get(c.UserContext(), user, id)
	if err != nil {
		return err
	}
	return c.JSON(conversationDetail(conv, h.mediaURL))
}

// ListMessages GET /api/chat/conversations/:id/messages.
func (h *ChatHandler) ListMessages(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	pageReq, err := parsePage(c, h.pagination)
	if err != nil {
		return err
	}
	msgs, total, err := h.service.ListMessages(c.UserContext(), user, id, pageReq.repo())
	if err != nil {
		return err
	}
	items := make([]dto.MessageResponse, 0, len(msgs))
	for i := range msgs {
		items = append(items, messageResponse(&msgs[i]))
	}
	page, err := paginate(pageReq, total, items)
	if err != nil {
		return err
	}
	return c.JSON(page)
}

// PostMessage POST /api/chat/conversations/:id/messages.
func (h *ChatHandler) PostMessage(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	var req dto.PostMessageRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	msg, err := h.service.PostMessage(c.UserContext(), user, id, req.Text)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(messageResponse(msg))
}

func conversationDetail(conv *domain.Conversation, mediaURL URLFunc) dto.ConversationDetail {
	detail := dto.ConversationDetail{
		ID:            conv.ID,
		Seller:        userRef(conv.Seller),
		Buyer:         userRef(conv.Buyer),
		IsActive:      conv.IsActive,
		LastMessageAt: conv.LastMessageAt,
		CreatedAt:     conv.CreatedAt,
	}
	if conv.Listing != nil {
		detail.Listing = listingSummary(conv.Listing, mediaURL)
	}
	return detail
}

func messageResponse(m *domain.Message) dto.MessageResponse {
	return dto.MessageResponse{
		ID:        m.ID,
		Author:    userRef(m.Author),
		Text:      m.Text,
		CreatedAt: m.CreatedAt,
		ReadAt:    m.ReadAt,
	}
}
