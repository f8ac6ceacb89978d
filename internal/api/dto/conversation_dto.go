package dto

import "time"

// StartConversationRequest opens or reuses a thread about a listing.
type StartConversationRequest struct {
	SellerID  *int64 `json:"seller_id"`
	ListingID *int64 `json:"listing_id"`
	Text      string `json:"text"`
}

// PostMessageRequest payload.
type PostMessageRequest struct {
	Text string `json:"text"`
}

// ConversationDetail describes a conversation.
type ConversationDetail struct {
	ID            int64          `json:"id"`
	Seller        UserRef        `json:"seller"`
	Buyer         UserRef        `json:"buyer"`
	Listing       ListingSummary `json:"listing"`
	IsActive      bool           `json:"is_active"`
	LastMessageAt *time.Time     `json:"last_message_at"`
	CreatedAt     time.Time      `json:"created_at"`
}

// ConversationSummary is a list entry carrying the latest message.
type ConversationSummary struct {
	ConversationDetail
	LastMessage *LastMessageResponse `json:"last_message"`
}

// LastMessageResponse previews the newest message of a conversation.
type LastMessageResponse struct {
	ID        int64     `json:"id"`
	Author    UserRef   `json:"author"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

// MessageResponse represents a chat message.
type MessageResponse struct {
	ID        int64      `json:"id"`
	Author    UserRef    `json:"author"`
	Text      string     `json:"text"`
	CreatedAt time.Time  `json:"created_at"`
	ReadAt    *time.Time `json:"read_at"`
}

// StartConversationResponse returns the conversation and the message just posted.
type StartConversationResponse struct {
	Conversation ConversationDetail `json:"conversation"`
	Message      MessageResponse    `json:"message"`
}
