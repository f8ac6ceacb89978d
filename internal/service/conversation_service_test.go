package service

import (
	"context"
	"sync"
	"testing"

	"github.com/spec-kit/car-marketplace/internal/domain"
	"github.com/spec-kit/car-marketplace/internal/events"
	apperrors "github.com/spec-kit/car-marketplace/pkg/util/errorutil"
)

type chatFixture struct {
	svc           *ConversationService
	clock         *fakeClock
	conversations *fakeConversations
	messages      *fakeMessages
	dispatcher    *recordingDispatcher
	seller        *domain.User
	buyer         *domain.User
	stranger      *domain.User
	staff         *domain.User
	listingID     int64
}

func newChatFixture() *chatFixture {
	clock := newFakeClock()
	f := &chatFixture{
		clock:         clock,
		conversations: newFakeConversations(),
		messages:      newFakeMessages(clock),
		dispatcher:    &recordingDispatcher{},
		seller:        &domain.User{ID: 1, Username: "seller"},
		buyer:         &domain.User{ID: 2, Username: "buyer"},
		stranger:      &domain.User{ID: 3, Username: "stranger"},
		staff:         &domain.User{ID: 4, Username: "staff", IsStaff: true},
		listingID:     77,
	}
	f.svc = NewConversationService(ConversationDependencies{
		TxManager:        passThroughTx{},
		ConversationRepo: f.conversations,
		MessageRepo:      f.messages,
		ListingRepo: newFakeListings(&domain.Listing{
			ID: f.listingID, SellerID: f.seller.ID, Status: domain.ModerationApproved,
		}),
		Dispatcher: f.dispatcher,
	})
	return f
}

func (f *chatFixture) start(t *testing.T, text string) (*domain.Conversation, *domain.Message) {
	t.Helper()
	conv, msg, err := f.svc.StartOrReuse(context.Background(), StartConversationInput{
		SellerID:  f.seller.ID,
		BuyerID:   f.buyer.ID,
		ListingID: f.listingID,
		AuthorID:  f.buyer.ID,
		Text:      text,
	})
	if err != nil {
		t.Fatalf("StartOrReuse: %v", err)
	}
	return conv, msg
}

func TestStartOrReuseReturnsSameActiveConversation(t *testing.T) {
	f := newChatFixture()

	first, _ := f.start(t, "Hello")
	second, msg := f.start(t, "  Still available?  ")
	if first.ID != second.ID {
		t.Fatalf("second start id = %d, want reused %d", second.ID, first.ID)
	}
	if msg.Text != "Still available?" {
		t.Fatalf("message text = %q, want trimmed", msg.Text)
	}
	if len(f.conversations.byID) != 1 {
		t.Fatalf("conversations = %d, want 1", len(f.conversations.byID))
	}

	var reused []bool
	for _, e := range f.dispatcher.events {
		if p, ok := e.Payload.(events.ConversationStartedPayload); ok {
			reused = append(reused, p.Reused)
		}
	}
	if len(reused) != 2 || reused[0] || !reused[1] {
		t.Fatalf("reused flags = %v, want [false true]", reused)
	}
}

func TestStartOrReuseConcurrentStartsShareOneConversation(t *testing.T) {
	f := newChatFixture()

	const workers = 8
	ids := make([]int64, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			conv, _, err := f.svc.StartOrReuse(context.Background(), StartConversationInput{
				SellerID: f.seller.ID, BuyerID: f.buyer.ID, ListingID: f.listingID,
				AuthorID: f.buyer.ID, Text: "hi",
			})
			if err != nil {
				t.Errorf("StartOrReuse: %v", err)
				return
			}
			ids[i] = conv.ID
		}(i)
	}
	wg.Wait()

	for _, id := range ids {
		if id != ids[0] {
			t.Fatalf("conversation ids = %v, want all equal", ids)
		}
	}
	active := 0
	for _, c := range f.conversations.byID {
		if c.IsActive {
			active++
		}
	}
	if active != 1 {
		t.Fatalf("active conversations = %d, want 1", active)
	}
}

func TestStartOrReuseLostInsertRaceReusesWinner(t *testing.T) {
	f := newChatFixture()
	f.conversations.beforeCreate = func(fc *fakeConversations, winner *domain.Conversation) {
		fc.insertLocked(winner)
	}

	conv, _ := f.start(t, "Hello")
	if len(f.conversations.byID) != 1 {
		t.Fatalf("conversations = %d, want 1", len(f.conversations.byID))
	}
	for id := range f.conversations.byID {
		if id != conv.ID {
			t.Fatalf("conversation id = %d, want winner %d", conv.ID, id)
		}
	}
}

func TestStartOrReuseAfterArchiveCreatesNewConversation(t *testing.T) {
	f := newChatFixture()
	first, _ := f.start(t, "Hello")

	n, err := f.svc.Archive(context.Background(), []int64{first.ID})
	if err != nil || n != 1 {
		t.Fatalf("Archive = %d, %v; want 1, nil", n, err)
	}
	second, _ := f.start(t, "Back again")
	if second.ID == first.ID {
		t.Fatal("archived conversation was reused")
	}
	if !second.IsActive {
		t.Fatal("new conversation is not active")
	}
	archived, _ := f.conversations.GetByID(context.Background(), first.ID)
	if archived.IsActive {
		t.Fatal("archived conversation was reactivated")
	}
}

func TestStartOrReuseValidation(t *testing.T) {
	f := newChatFixture()
	tests := []struct {
		name string
		in   StartConversationInput
		code string
	}{
		{"blank text", StartConversationInput{SellerID: 1, BuyerID: 2, ListingID: 77, AuthorID: 2, Text: "   "}, "VALIDATION_FAILED"},
		{"unknown listing", StartConversationInput{SellerID: 1, BuyerID: 2, ListingID: 404, AuthorID: 2, Text: "hi"}, "NOT_FOUND"},
		{"seller mismatch", StartConversationInput{SellerID: 3, BuyerID: 2, ListingID: 77, AuthorID: 2, Text: "hi"}, "VALIDATION_FAILED"},
		{"self conversation", StartConversationInput{SellerID: 1, BuyerID: 1, ListingID: 77, AuthorID: 1, Text: "hi"}, "VALIDATION_FAILED"},
		{"author is not buyer", StartConversationInput{SellerID: 1, BuyerID: 2, ListingID: 77, AuthorID: 3, Text: "hi"}, "VALIDATION_FAILED"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := f.svc.StartOrReuse(context.Background(), tt.in)
			if !apperrors.HasCode(err, tt.code) {
				t.Fatalf("StartOrReuse error = %v, want %s", err, tt.code)
			}
		})
	}
	if len(f.conversations.byID) != 0 {
		t.Fatalf("conversations = %d, want none after failed starts", len(f.conversations.byID))
	}
}

func TestListMessagesMarksOnlyOtherSideRead(t *testing.T) {
	f := newChatFixture()
	ctx := context.Background()
	conv, _ := f.start(t, "Hello")
	if _, err := f.svc.PostMessage(ctx, f.seller, conv.ID, "Seller note"); err != nil {
		t.Fatalf("PostMessage: %v", err)
	}

	msgs, total, err := f.svc.ListMessages(ctx, f.buyer, conv.ID, page(50))
	if err != nil {
		t.Fatalf("ListMessages: %v", err)
	}
	if total != 2 || len(msgs) != 2 {
		t.Fatalf("messages = %d/%d, want 2", len(msgs), total)
	}
	for _, m := range msgs {
		switch m.AuthorID {
		case f.buyer.ID:
			if m.ReadAt != nil {
				t.Fatalf("reader's own message %d was marked read", m.ID)
			}
		case f.seller.ID:
			if m.ReadAt == nil {
				t.Fatalf("other side's message %d not marked read", m.ID)
			}
		}
	}

	firstRead := *msgs[1].ReadAt
	again, _, err := f.svc.ListMessages(ctx, f.buyer, conv.ID, page(50))
	if err != nil {
		t.Fatalf("ListMessages again: %v", err)
	}
	if !again[1].ReadAt.Equal(firstRead) {
		t.Fatalf("read_at rewritten: %v -> %v", firstRead, *again[1].ReadAt)
	}
}

func TestListMessagesAccess(t *testing.T) {
	f := newChatFixture()
	ctx := context.Background()
	conv, _ := f.start(t, "Hello")

	if _, _, err := f.svc.ListMessages(ctx, f.stranger, conv.ID, page(50)); !apperrors.HasCode(err, "FORBIDDEN") {
		t.Fatalf("stranger ListMessages error = %v, want FORBIDDEN", err)
	}
	if _, _, err := f.svc.ListMessages(ctx, f.buyer, 999, page(50)); !apperrors.HasCode(err, "NOT_FOUND") {
		t.Fatalf("missing conversation error = %v, want NOT_FOUND", err)
	}

	msgs, _, err := f.svc.ListMessages(ctx, f.staff, conv.ID, page(50))
	if err != nil {
		t.Fatalf("staff ListMessages: %v", err)
	}
	if msgs[0].ReadAt == nil {
		t.Fatal("staff read left the buyer's message unread")
	}
}

func TestPostMessageChecksAccessBeforeText(t *testing.T) {
	f := newChatFixture()
	ctx := context.Background()
	conv, _ := f.start(t, "Hello")

	cases := []struct {
		name   string
		actor  *domain.User
		convID int64
		code   string
	}{
		{"stranger blank text", f.stranger, conv.ID, "FORBIDDEN"},
		{"missing conversation blank text", f.buyer, 999, "NOT_FOUND"},
		{"participant blank text", f.buyer, conv.ID, "VALIDATION_FAILED"},
	}
	for _, tc := range cases {
		if _, err := f.svc.PostMessage(ctx, tc.actor, tc.convID, "   "); !apperrors.HasCode(err, tc.code) {
			t.Errorf("%s: error = %v, want %s", tc.name, err, tc.code)
		}
	}
}

func TestMessagesWithEqualTimestampsOrderByID(t *testing.T) {
	f := newChatFixture()
	ctx := context.Background()
	conv, _ := f.start(t, "one")

	f.clock.frozen = true
	for _, text := range []string{"two", "three", "four"} {
		if _, err := f.svc.PostMessage(ctx, f.buyer, conv.ID, text); err != nil {
			t.Fatalf("PostMessage(%s): %v", text, err)
		}
	}

	msgs, _, err := f.svc.ListMessages(ctx, f.seller, conv.ID, page(50))
	if err != nil {
		t.Fatalf("ListMessages: %v", err)
	}
	for i := 1; i < len(msgs); i++ {
		prev, cur := msgs[i-1], msgs[i]
		if cur.CreatedAt.Before(prev.CreatedAt) ||
			(cur.CreatedAt.Equal(prev.CreatedAt) && cur.ID < prev.ID) {
			t.Fatalf("messages out of order at %d: %+v then %+v", i, prev, cur)
		}
	}
	if msgs[len(msgs)-1].Text != "four" {
		t.Fatalf("last message = %q, want four", msgs[len(msgs)-1].Text)
	}
}

func TestPostMessageValidationAndAccess(t *testing.T) {
	f := newChatFixture()
	ctx := context.Background()
	conv, _ := f.start(t, "Hello")

	if _, err := f.svc.PostMessage(ctx, f.buyer, conv.ID, " \n\t "); !apperrors.HasCode(err, "VALIDATION_FAILED") {
		t.Fatalf("blank PostMessage error = %v, want VALIDATION_FAILED", err)
	}
	if _, err := f.svc.PostMessage(ctx, f.stranger, conv.ID, "hi"); !apperrors.HasCode(err, "FORBIDDEN") {
		t.Fatalf("stranger PostMessage error = %v, want FORBIDDEN", err)
	}
	if _, err := f.svc.Archive(ctx, nil); !apperrors.HasCode(err, "VALIDATION_FAILED") {
		t.Fatalf("Archive(nil) error = %v, want VALIDATION_FAILED", err)
	}
}

func TestConversationEndToEnd(t *testing.T) {
	f := newChatFixture()
	ctx := context.Background()

	conv, hello := f.start(t, "Hello")
	if conv.ID == 0 || hello.ID == 0 {
		t.Fatalf("start returned conversation %d message %d", conv.ID, hello.ID)
	}
	if conv.LastMessageAt == nil || !conv.LastMessageAt.Equal(hello.CreatedAt) {
		t.Fatalf("last_message_at = %v, want %v", conv.LastMessageAt, hello.CreatedAt)
	}

	msgs, _, err := f.svc.ListMessages(ctx, f.seller, conv.ID, page(50))
	if err != nil {
		t.Fatalf("seller ListMessages: %v", err)
	}
	if len(msgs) != 1 || msgs[0].Text != "Hello" || msgs[0].ReadAt == nil {
		t.Fatalf("seller view = %+v, want Hello marked read", msgs)
	}

	reply, err := f.svc.PostMessage(ctx, f.seller, conv.ID, "Hi back")
	if err != nil {
		t.Fatalf("PostMessage: %v", err)
	}
	updated, err := f.svc.Get(ctx, f.buyer, conv.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if updated.LastMessageAt == nil || !updated.LastMessageAt.Equal(reply.CreatedAt) {
		t.Fatalf("last_message_at = %v, want %v", updated.LastMessageAt, reply.CreatedAt)
	}

	var recipients []int64
	for _, e := range f.dispatcher.events {
		if p, ok := e.Payload.(events.MessagePostedPayload); ok {
			recipients = append(recipients, p.RecipientID)
		}
	}
	if len(recipients) != 2 || recipients[0] != f.seller.ID || recipients[1] != f.buyer.ID {
		t.Fatalf("message recipients = %v, want [seller buyer]", recipients)
	}

	list, total, err := f.svc.ListForUser(ctx, f.seller, page(10))
	if err != nil || total != 1 || list[0].ID != conv.ID {
		t.Fatalf("ListForUser = %v, %d, %v", list, total, err)
	}
}
