package service

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/car-marketplace/internal/domain"
	"github.com/spec-kit/car-marketplace/internal/events"
	"github.com/spec-kit/car-marketplace/internal/repository"
)

// passThroughTx runs fn directly; the fakes below keep their own locking.
type passThroughTx struct{}

func (passThroughTx) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// fakeClock hands out strictly increasing timestamps unless frozen.
type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	frozen bool
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.frozen {
		c.now = c.now.Add(time.Second)
	}
	return c.now
}

func page(limit int) repository.Page {
	return repository.Page{Limit: limit}
}

func window[T any](items []T, p repository.Page) []T {
	if p.Offset >= len(items) {
		return []T{}
	}
	end := len(items)
	if p.Limit > 0 && p.Offset+p.Limit < end {
		end = p.Offset + p.Limit
	}
	return items[p.Offset:end]
}

type fakeUsers struct {
	mu     sync.Mutex
	nextID int64
	byID   map[int64]*domain.User
}

func newFakeUsers(users ...*domain.User) *fakeUsers {
	f := &fakeUsers{byID: map[int64]*domain.User{}}
	for _, u := range users {
		f.byID[u.ID] = u
		if u.ID > f.nextID {
			f.nextID = u.ID
		}
	}
	return f
}

func (f *fakeUsers) Create(_ context.Context, user *domain.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.byID {
		if u.Username == user.Username || u.Email == user.Email {
			return &repository.DuplicateError{Constraint: "users_username_key", Err: fmt.Errorf("duplicate")}
		}
	}
	f.nextID++
	user.ID = f.nextID
	user.DateJoined = time.Now().UTC()
	clone := *user
	f.byID[user.ID] = &clone
	return nil
}

func (f *fakeUsers) Update(_ context.Context, user *domain.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.byID[user.ID]; !ok {
		return pgx.ErrNoRows
	}
	clone := *user
	f.byID[user.ID] = &clone
	return nil
}

func (f *fakeUsers) GetByID(_ context.Context, id int64) (*domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.byID[id]
	if !ok {
		return nil, fmt.Errorf("fake.users.GetByID: %w", pgx.ErrNoRows)
	}
	clone := *u
	return &clone, nil
}

func (f *fakeUsers) find(match func(*domain.User) bool) (*domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.byID {
		if match(u) {
			clone := *u
			return &clone, nil
		}
	}
	return nil, fmt.Errorf("fake.users.find: %w", pgx.ErrNoRows)
}

func (f *fakeUsers) GetByUsername(_ context.Context, username string) (*domain.User, error) {
	return f.find(func(u *domain.User) bool { return u.Username == username })
}

func (f *fakeUsers) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	return f.find(func(u *domain.User) bool { return u.Email == email })
}

func (f *fakeUsers) TouchLastLogin(_ context.Context, id int64, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.byID[id]
	if !ok {
		return pgx.ErrNoRows
	}
	u.LastLogin = &at
	return nil
}

type fakeListings struct {
	mu       sync.Mutex
	nextID   int64
	byID     map[int64]*domain.Listing
	lastList repository.ListingFilter
}

func newFakeListings(listings ...*domain.Listing) *fakeListings {
	f := &fakeListings{byID: map[int64]*domain.Listing{}}
	for _, l := range listings {
		f.byID[l.ID] = l
		if l.ID > f.nextID {
			f.nextID = l.ID
		}
	}
	return f
}

func (f *fakeListings) Create(_ context.Context, listing *domain.Listing) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	listing.ID = f.nextID
	clone := *listing
	f.byID[listing.ID] = &clone
	return nil
}

func (f *fakeListings) Update(_ context.Context, listing *domain.Listing) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.byID[listing.ID]; !ok {
		return pgx.ErrNoRows
	}
	clone := *listing
	f.byID[listing.ID] = &clone
	return nil
}

func (f *fakeListings) Delete(_ context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.byID[id]; !ok {
		return pgx.ErrNoRows
	}
	delete(f.byID, id)
	return nil
}

func (f *fakeListings) GetByID(_ context.Context, id int64) (*domain.Listing, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	l, ok := f.byID[id]
	if !ok {
		return nil, fmt.Errorf("fake.listings.GetByID: %w", pgx.ErrNoRows)
	}
	clone := *l
	return &clone, nil
}

func (f *fakeListings) List(_ context.Context, filter repository.ListingFilter) ([]domain.Listing, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastList = filter
	var out []domain.Listing
	for _, l := range f.byID {
		visible := l.Status == domain.ModerationApproved ||
			(filter.ViewerID != nil && *filter.ViewerID == l.SellerID)
		if visible {
			out = append(out, *l)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return window(out, filter.Page), len(out), nil
}

func (f *fakeListings) SetStatus(_ context.Context, ids []int64, status domain.ModerationStatus, reason *string) ([]repository.ModeratedListing, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []repository.ModeratedListing
	for _, id := range ids {
		l, ok := f.byID[id]
		if !ok {
			continue
		}
		l.Status = status
		l.RejectionReason = reason
		out = append(out, repository.ModeratedListing{ID: l.ID, SellerID: l.SellerID})
	}
	return out, nil
}

type fakeImages struct {
	mu     sync.Mutex
	nextID int64
	byID   map[int64]*domain.ListingImage
}

func newFakeImages() *fakeImages {
	return &fakeImages{byID: map[int64]*domain.ListingImage{}}
}

func (f *fakeImages) Create(_ context.Context, img *domain.ListingImage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.byID {
		if existing.ListingID == img.ListingID && existing.Order == img.Order {
			return &repository.DuplicateError{Constraint: "listing_images_listing_id_ord_key", Err: fmt.Errorf("duplicate")}
		}
	}
	f.nextID++
	img.ID = f.nextID
	clone := *img
	f.byID[img.ID] = &clone
	return nil
}

func (f *fakeImages) GetByID(_ context.Context, id int64) (*domain.ListingImage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	img, ok := f.byID[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	clone := *img
	return &clone, nil
}

func (f *fakeImages) Delete(_ context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.byID[id]; !ok {
		return pgx.ErrNoRows
	}
	delete(f.byID, id)
	return nil
}

func (f *fakeImages) ListByListing(_ context.Context, listingID int64) ([]domain.ListingImage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.ListingImage
	for _, img := range f.byID {
		if img.ListingID == listingID {
			out = append(out, *img)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Order < out[j].Order })
	return out, nil
}

type fakeCatalog struct {
	makes     map[int64]domain.Make
	models    map[int64]domain.CarModel
	locations map[int64]domain.Location
}

func newFakeCatalog() *fakeCatalog {
	return &fakeCatalog{
		makes:     map[int64]domain.Make{1: {ID: 1, Name: "Toyota"}, 2: {ID: 2, Name: "Honda"}},
		models:    map[int64]domain.CarModel{10: {ID: 10, MakeID: 1, Name: "Corolla"}, 20: {ID: 20, MakeID: 2, Name: "Civic"}},
		locations: map[int64]domain.Location{100: {ID: 100, Name: "Almaty"}},
	}
}

func (f *fakeCatalog) GetMake(_ context.Context, id int64) (*domain.Make, error) {
	m, ok := f.makes[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &m, nil
}

func (f *fakeCatalog) GetCarModel(_ context.Context, id int64) (*domain.CarModel, error) {
	m, ok := f.models[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &m, nil
}

func (f *fakeCatalog) GetLocation(_ context.Context, id int64) (*domain.Location, error) {
	l, ok := f.locations[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &l, nil
}

type fakeMedia struct {
	mu      sync.Mutex
	files   map[string][]byte
	removed []string
	seq     int
}

func newFakeMedia() *fakeMedia {
	return &fakeMedia{files: map[string][]byte{}}
}

func (f *fakeMedia) NewKey(prefix, fileName string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	return fmt.Sprintf("%s/%d-%s", prefix, f.seq, fileName)
}

func (f *fakeMedia) Save(_ context.Context, key string, r io.Reader) error {
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, r); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.files[key] = buf.Bytes()
	return nil
}

func (f *fakeMedia) Remove(key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.files, key)
	f.removed = append(f.removed, key)
	return nil
}

type fakeFavorites struct {
	mu    sync.Mutex
	pairs map[[2]int64]bool
}

func newFakeFavorites() *fakeFavorites {
	return &fakeFavorites{pairs: map[[2]int64]bool{}}
}

func (f *fakeFavorites) Add(_ context.Context, userID, listingID int64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := [2]int64{userID, listingID}
	if f.pairs[key] {
		return false, nil
	}
	f.pairs[key] = true
	return true, nil
}

func (f *fakeFavorites) Remove(_ context.Context, userID, listingID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.pairs, [2]int64{userID, listingID})
	return nil
}

func (f *fakeFavorites) ListByUser(_ context.Context, userID int64, p repository.Page) ([]domain.Favorite, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Favorite
	for key := range f.pairs {
		if key[0] == userID {
			out = append(out, domain.Favorite{UserID: userID, ListingID: key[1]})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ListingID < out[j].ListingID })
	return window(out, p), len(out), nil
}

type fakeReviews struct {
	mu     sync.Mutex
	nextID int64
	byID   map[int64]*domain.Review
}

func newFakeReviews() *fakeReviews {
	return &fakeReviews{byID: map[int64]*domain.Review{}}
}

func (f *fakeReviews) Create(_ context.Context, review *domain.Review) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	review.ID = f.nextID
	clone := *review
	f.byID[review.ID] = &clone
	return nil
}

func (f *fakeReviews) GetByID(_ context.Context, id int64) (*domain.Review, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.byID[id]
	if !ok {
		return nil, fmt.Errorf("fake.reviews.GetByID: %w", pgx.ErrNoRows)
	}
	clone := *r
	return &clone, nil
}

func (f *fakeReviews) Delete(_ context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.byID[id]; !ok {
		return pgx.ErrNoRows
	}
	delete(f.byID, id)
	return nil
}

func (f *fakeReviews) ListBySeller(_ context.Context, sellerID int64, p repository.Page) ([]domain.Review, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Review
	for _, r := range f.byID {
		if r.SellerID == sellerID {
			out = append(out, *r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return window(out, p), len(out), nil
}

func (f *fakeReviews) Aggregate(_ context.Context, sellerID int64) (int, float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	count, sum := 0, 0
	for _, r := range f.byID {
		if r.SellerID == sellerID {
			count++
			sum += r.Rating
		}
	}
	if count == 0 {
		return 0, 0, nil
	}
	return count, float64(sum) / float64(count), nil
}

type fakeStats struct {
	mu     sync.Mutex
	rows   map[int64]domain.SellerStats
	locked []int64
}

func newFakeStats() *fakeStats {
	return &fakeStats{rows: map[int64]domain.SellerStats{}}
}

func (f *fakeStats) Lock(_ context.Context, sellerID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.rows[sellerID]; !ok {
		f.rows[sellerID] = domain.SellerStats{SellerID: sellerID}
	}
	f.locked = append(f.locked, sellerID)
	return nil
}

func (f *fakeStats) Save(_ context.Context, stats *domain.SellerStats) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	stats.UpdatedAt = time.Now().UTC()
	f.rows[stats.SellerID] = *stats
	return nil
}

func (f *fakeStats) Get(_ context.Context, sellerID int64) (*domain.SellerStats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.rows[sellerID]
	if !ok {
		return nil, fmt.Errorf("fake.stats.Get: %w", pgx.ErrNoRows)
	}
	return &s, nil
}

// fakeConversations enforces the one-active-per-triplet rule the partial
// unique index provides in Postgres.
type fakeConversations struct {
	mu     sync.Mutex
	nextID int64
	byID   map[int64]*domain.Conversation
	// beforeCreate, when set, runs before the uniqueness check to simulate
	// a concurrent winner.
	beforeCreate func(f *fakeConversations, conv *domain.Conversation)
}

func newFakeConversations() *fakeConversations {
	return &fakeConversations{byID: map[int64]*domain.Conversation{}}
}

func (f *fakeConversations) insertLocked(conv *domain.Conversation) {
	f.nextID++
	conv.ID = f.nextID
	conv.CreatedAt = time.Now().UTC()
	clone := *conv
	f.byID[conv.ID] = &clone
}

func (f *fakeConversations) FindActive(_ context.Context, sellerID, buyerID, listingID int64) (*domain.Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.byID {
		if c.IsActive && c.SellerID == sellerID && c.BuyerID == buyerID && c.ListingID == listingID {
			clone := *c
			return &clone, nil
		}
	}
	return nil, fmt.Errorf("fake.conversations.FindActive: %w", pgx.ErrNoRows)
}

func (f *fakeConversations) CreateActive(_ context.Context, conv *domain.Conversation) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if hook := f.beforeCreate; hook != nil {
		f.beforeCreate = nil
		hook(f, &domain.Conversation{SellerID: conv.SellerID, BuyerID: conv.BuyerID, ListingID: conv.ListingID, IsActive: true})
	}
	for _, c := range f.byID {
		if c.IsActive && c.SellerID == conv.SellerID && c.BuyerID == conv.BuyerID && c.ListingID == conv.ListingID {
			return repository.ErrActiveConversationExists
		}
	}
	f.insertLocked(conv)
	return nil
}

func (f *fakeConversations) GetByID(_ context.Context, id int64) (*domain.Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.byID[id]
	if !ok {
		return nil, fmt.Errorf("fake.conversations.GetByID: %w", pgx.ErrNoRows)
	}
	clone := *c
	return &clone, nil
}

func (f *fakeConversations) ListForUser(_ context.Context, userID int64, p repository.Page) ([]domain.Conversation, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Conversation
	for _, c := range f.byID {
		if c.HasParticipant(userID) {
			out = append(out, *c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i].LastMessageAt, out[j].LastMessageAt
		switch {
		case a != nil && b != nil && !a.Equal(*b):
			return a.After(*b)
		case a != nil && b == nil:
			return true
		case a == nil && b != nil:
			return false
		}
		return out[i].ID > out[j].ID
	})
	return window(out, p), len(out), nil
}

func (f *fakeConversations) AdvanceLastMessageAt(_ context.Context, id int64, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.byID[id]
	if !ok {
		return pgx.ErrNoRows
	}
	if c.LastMessageAt == nil || at.After(*c.LastMessageAt) {
		c.LastMessageAt = &at
	}
	return nil
}

func (f *fakeConversations) Archive(_ context.Context, ids []int64) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, id := range ids {
		if c, ok := f.byID[id]; ok && c.IsActive {
			c.IsActive = false
			n++
		}
	}
	return n, nil
}

type fakeMessages struct {
	mu     sync.Mutex
	nextID int64
	clock  *fakeClock
	rows   []*domain.Message
}

func newFakeMessages(clock *fakeClock) *fakeMessages {
	return &fakeMessages{clock: clock}
}

func (f *fakeMessages) Create(_ context.Context, msg *domain.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	msg.ID = f.nextID
	msg.CreatedAt = f.clock.Now()
	msg.Author.ID = msg.AuthorID
	clone := *msg
	f.rows = append(f.rows, &clone)
	return nil
}

func (f *fakeMessages) MarkRead(_ context.Context, conversationID, readerID int64) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	now := f.clock.Now()
	var n int64
	for _, m := range f.rows {
		if m.ConversationID == conversationID && m.AuthorID != readerID && m.ReadAt == nil {
			at := now
			m.ReadAt = &at
			n++
		}
	}
	return n, nil
}

func (f *fakeMessages) ListByConversation(_ context.Context, conversationID int64, p repository.Page) ([]domain.Message, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Message
	for _, m := range f.rows {
		if m.ConversationID == conversationID {
			out = append(out, *m)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return window(out, p), len(out), nil
}

// recordingDispatcher captures published events synchronously.
type recordingDispatcher struct {
	mu     sync.Mutex
	events []events.Event
}

func (d *recordingDispatcher) Publish(_ context.Context, event events.Event) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.events = append(d.events, event)
	return nil
}

func (d *recordingDispatcher) Subscribe(events.EventType, events.EventHandler) {}

func (d *recordingDispatcher) types() []events.EventType {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]events.EventType, 0, len(d.events))
	for _, e := range d.events {
		out = append(out, e.Type)
	}
	return out
}
