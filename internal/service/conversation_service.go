package service

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/car-marketplace/internal/domain"
	"github.com/spec-kit/car-marketplace/internal/events"
	"github.com/spec-kit/car-marketplace/internal/repository"
	apperrors "github.com/spec-kit/car-marketplace/pkg/util/errorutil"
)

// maxStartAttempts bounds the lookup/insert loop when concurrent starts
// race on the active-conversation index.
const maxStartAttempts = 3

const previewLength = 120

// ConversationService manages buyer/seller conversations and their messages.
type ConversationService struct {
	tx            repository.TxManager
	conversations repository.ConversationRepository
	messages      repository.MessageRepository
	listings      repository.ListingRepository
	dispatcher    events.Dispatcher
	logger        *zap.Logger
}

// ConversationDependencies bundles requirements for the conversation service.
type ConversationDependencies struct {
	TxManager        repository.TxManager
	ConversationRepo repository.ConversationRepository
	MessageRepo      repository.MessageRepository
	ListingRepo      repository.ListingRepository
	Dispatcher       events.Dispatcher
	Logger           *zap.Logger
}

// StartConversationInput opens or reuses the active thread for a triplet.
type StartConversationInput struct {
	SellerID  int64
	BuyerID   int64
	ListingID int64
	AuthorID  int64
	Text      string
}

// NewConversationService builds the service.
func NewConversationService(deps ConversationDependencies) *ConversationService {
	return &ConversationService{
		tx:            deps.TxManager,
		conversations: deps.ConversationRepo,
		messages:      deps.MessageRepo,
		listings:      deps.ListingRepo,
		dispatcher:    deps.Dispatcher,
		logger:        orNop(deps.Logger),
	}
}

// StartOrReuse appends the opening message to the active conversation for
// (seller, buyer, listing), creating the conversation when none is active.
func (s *ConversationService) StartOrReuse(ctx context.Context, in StartConversationInput) (*domain.Conversation, *domain.Message, error) {
	text := strings.TrimSpace(in.Text)
	if text == "" {
		return nil, nil, apperrors.NewValidationError("text is required", nil)
	}
	listing, err := s.listings.GetByID(ctx, in.ListingID)
	if err != nil {
		return nil, nil, notFound(err, "listing")
	}
	if listing.SellerID != in.SellerID {
		return nil, nil, apperrors.NewValidationError("seller does not own this listing", nil)
	}
	if in.SellerID == in.AuthorID {
		return nil, nil, apperrors.NewValidationError("you cannot start a conversation with yourself", nil)
	}
	if in.AuthorID != in.BuyerID {
		return nil, nil, apperrors.NewValidationError("only the buyer may start a conversation", nil)
	}

	var (
		conv   *domain.Conversation
		msg    *domain.Message
		reused bool
	)
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		conv, reused, err = s.findOrCreate(ctx, in.SellerID, in.BuyerID, in.ListingID)
		if err != nil {
			return err
		}
		msg, err = s.appendMessage(ctx, conv.ID, in.AuthorID, text)
		return err
	})
	if err != nil {
		return nil, nil, err
	}

	conv, err = s.conversations.GetByID(ctx, conv.ID)
	if err != nil {
		return nil, nil, err
	}
	if reused {
		s.logger.Debug("reused active conversation", zap.Int64("conversation_id", conv.ID))
	}
	publishEvent(ctx, s.dispatcher, s.logger, events.New(events.EventConversationStarted, in.AuthorID,
		events.ConversationStartedPayload{
			ConversationID: conv.ID,
			SellerID:       conv.SellerID,
			BuyerID:        conv.BuyerID,
			ListingID:      conv.ListingID,
			Reused:         reused,
		}))
	s.publishMessage(ctx, conv, msg)
	return conv, msg, nil
}

// findOrCreate returns the active conversation for the triplet. Losing the
// insert race to a concurrent start is not an error: the winner is reused.
func (s *ConversationService) findOrCreate(ctx context.Context, sellerID, buyerID, listingID int64) (*domain.Conversation, bool, error) {
	for attempt := 0; attempt < maxStartAttempts; attempt++ {
		conv, err := s.conversations.FindActive(ctx, sellerID, buyerID, listingID)
		if err == nil {
			return conv, true, nil
		}
		if !errors.Is(err, pgx.ErrNoRows) {
			return nil, false, err
		}

		conv = &domain.Conversation{
			SellerID:  sellerID,
			BuyerID:   buyerID,
			ListingID: listingID,
			IsActive:  true,
		}
		err = s.conversations.CreateActive(ctx, conv)
		if err == nil {
			return conv, false, nil
		}
		if !errors.Is(err, repository.ErrActiveConversationExists) {
			return nil, false, err
		}
	}
	return nil, false, apperrors.NewConflict("conversation is being created concurrently, retry", nil)
}

func (s *ConversationService) appendMessage(ctx context.Context, conversationID, authorID int64, text string) (*domain.Message, error) {
	msg := &domain.Message{
		ConversationID: conversationID,
		AuthorID:       authorID,
		Text:           text,
	}
	if err := s.messages.Create(ctx, msg); err != nil {
		return nil, err
	}
	if err := s.conversations.AdvanceLastMessageAt(ctx, conversationID, msg.CreatedAt); err != nil {
		return nil, err
	}
	return msg, nil
}

// Get returns a conversation visible to a participant or staff.
func (s *ConversationService) Get(ctx context.Context, actor *domain.User, id int64) (*domain.Conversation, error) {
	return s.accessible(ctx, actor, id)
}

// ListMessages returns the conversation's messages in (created_at, id)
// order. Unread messages authored by anyone but the requester are marked
// read first.
func (s *ConversationService) ListMessages(ctx context.Context, actor *domain.User, id int64, page repository.Page) ([]domain.Message, int, error) {
	conv, err := s.accessible(ctx, actor, id)
	if err != nil {
		return nil, 0, err
	}
	marked, err := s.messages.MarkRead(ctx, conv.ID, actor.ID)
	if err != nil {
		return nil, 0, err
	}
	if marked > 0 {
		s.logger.Debug("messages marked read",
			zap.Int64("conversation_id", conv.ID),
			zap.Int64("reader_id", actor.ID),
			zap.Int64("count", marked))
	}
	return s.messages.ListByConversation(ctx, conv.ID, page)
}

// PostMessage appends a message and advances last_message_at in one
// transaction.
func (s *ConversationService) PostMessage(ctx context.Context, actor *domain.User, id int64, text string) (*domain.Message, error) {
	conv, err := s.accessible(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, apperrors.NewValidationError("text is required", nil)
	}

	var msg *domain.Message
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		msg, err = s.appendMessage(ctx, conv.ID, actor.ID, text)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.publishMessage(ctx, conv, msg)
	return msg, nil
}

// ListForUser returns the conversations the user takes part in, most
// recently active first.
func (s *ConversationService) ListForUser(ctx context.Context, user *domain.User, page repository.Page) ([]domain.Conversation, int, error) {
	return s.conversations.ListForUser(ctx, user.ID, page)
}

// Archive deactivates the given conversations. Archived conversations are
// never reactivated; a later start creates a new row.
func (s *ConversationService) Archive(ctx context.Context, ids []int64) (int64, error) {
	if len(ids) == 0 {
		return 0, apperrors.NewValidationError("ids must be a non-empty list", nil)
	}
	updated, err := s.conversations.Archive(ctx, ids)
	if err != nil {
		return 0, err
	}
	s.logger.Info("conversations archived", zap.Int64s("ids", ids), zap.Int64("updated", updated))
	return updated, nil
}

func (s *ConversationService) accessible(ctx context.Context, actor *domain.User, id int64) (*domain.Conversation, error) {
	conv, err := s.conversations.GetByID(ctx, id)
	if err != nil {
		return nil, notFound(err, "conversation")
	}
	if !actor.IsStaff && !conv.HasParticipant(actor.ID) {
		return nil, apperrors.NewForbidden("you are not a participant of this conversation")
	}
	return conv, nil
}

func (s *ConversationService) publishMessage(ctx context.Context, conv *domain.Conversation, msg *domain.Message) {
	recipient := conv.SellerID
	if msg.AuthorID == conv.SellerID {
		recipient = conv.BuyerID
	}
	publishEvent(ctx, s.dispatcher, s.logger, events.New(events.EventMessagePosted, msg.AuthorID,
		events.MessagePostedPayload{
			ConversationID: conv.ID,
			MessageID:      msg.ID,
			RecipientID:    recipient,
			BodyPreview:    stringPreview(msg.Text, previewLength),
		}))
}
