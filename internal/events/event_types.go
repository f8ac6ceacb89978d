package events

import (
	"time"

	"github.com/google/uuid"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventReviewCreated       EventType = "review_created"
	EventReviewDeleted       EventType = "review_deleted"
	EventConversationStarted EventType = "conversation_started"
	EventMessagePosted       EventType = "message_posted"
	EventListingModerated    EventType = "listing_moderated"
)

// AllEventTypes lists every type services publish.
var AllEventTypes = []EventType{
	EventReviewCreated,
	EventReviewDeleted,
	EventConversationStarted,
	EventMessagePosted,
	EventListingModerated,
}

// Event represents a domain event emitted by services.
type Event struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	ActorID   int64     `json:"actor_id"`
	Timestamp time.Time `json:"timestamp"`
	Payload   any       `json:"payload"`
}

// New stamps an id and timestamp onto an event.
func New(eventType EventType, actorID int64, payload any) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		ActorID:   actorID,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	}
}

// ReviewPayload accompanies review_created and review_deleted.
type ReviewPayload struct {
	ReviewID    int64   `json:"review_id"`
	SellerID    int64   `json:"seller_id"`
	Rating      int     `json:"rating"`
	RatingAvg   float64 `json:"rating_avg"`
	RatingCount int     `json:"rating_count"`
}

// ConversationStartedPayload accompanies conversation_started.
type ConversationStartedPayload struct {
	ConversationID int64 `json:"conversation_id"`
	SellerID       int64 `json:"seller_id"`
	BuyerID        int64 `json:"buyer_id"`
	ListingID      int64 `json:"listing_id"`
	Reused         bool  `json:"reused"`
}

// MessagePostedPayload accompanies message_posted.
type MessagePostedPayload struct {
	ConversationID int64  `json:"conversation_id"`
	MessageID      int64  `json:"message_id"`
	RecipientID    int64  `json:"recipient_id"`
	BodyPreview    string `json:"body_preview"`
}

// ListingModeratedPayload accompanies listing_moderated.
type ListingModeratedPayload struct {
	ListingID int64   `json:"listing_id"`
	SellerID  int64   `json:"seller_id"`
	Status    string  `json:"status"`
	Reason    *string `json:"reason,omitempty"`
}
