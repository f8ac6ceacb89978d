package domain

import "time"

// Conversation is a buyer/seller thread about one listing.
type Conversation struct {
	ID            int64
	SellerID      int64
	BuyerID       int64
	ListingID     int64
	IsActive      bool
	LastMessageAt *time.Time
	CreatedAt     time.Time

	Seller      UserRef
	Buyer       UserRef
	Listing     *Listing
	LastMessage *Message
}

// HasParticipant reports whether userID is the seller or the buyer.
func (c *Conversation) HasParticipant(userID int64) bool {
	return c.SellerID == userID || c.BuyerID == userID
}

// Message is a single entry in a conversation.
type Message struct {
	ID             int64
	ConversationID int64
	AuthorID       int64
	Text           string
	CreatedAt      time.Time
	ReadAt         *time.Time

	Author UserRef
}
