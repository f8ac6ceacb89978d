package queue

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/car-marketplace/internal/events"
)

func TestEventWireRoundTrip(t *testing.T) {
	in := events.New(events.EventMessagePosted, 4, events.MessagePostedPayload{
		ConversationID: 10,
		MessageID:      11,
		RecipientID:    5,
		BodyPreview:    "is it still available?",
	})

	body, err := encodeEvent(in)
	if err != nil {
		t.Fatalf("encodeEvent: %v", err)
	}
	out, err := decodeEvent(body)
	if err != nil {
		t.Fatalf("decodeEvent: %v", err)
	}
	if out.ID != in.ID || out.Type != in.Type || out.ActorID != 4 {
		t.Fatalf("decoded = %+v", out)
	}
	payload, ok := out.Payload.(map[string]any)
	if !ok || payload["body_preview"] != "is it still available?" {
		t.Fatalf("payload = %#v", out.Payload)
	}
}

func TestDecodeEventRejectsGarbage(t *testing.T) {
	for _, body := range []string{"", "{", `{"id":"x"}`} {
		if _, err := decodeEvent([]byte(body)); err == nil {
			t.Errorf("decodeEvent(%q): expected error", body)
		}
	}
}

func TestConsumerHandleInvokesHandler(t *testing.T) {
	var got events.Event
	c := NewConsumer("", "q", func(_ context.Context, e events.Event) error {
		got = e
		return nil
	}, zap.NewNop())

	body, err := encodeEvent(events.New(events.EventReviewCreated, 1, nil))
	if err != nil {
		t.Fatalf("encodeEvent: %v", err)
	}
	if err := c.handle(context.Background(), body); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if got.Type != events.EventReviewCreated {
		t.Fatalf("handler saw %+v", got)
	}
}

func TestNextBackoffCaps(t *testing.T) {
	d := initialBackoff
	for i := 0; i < 10; i++ {
		d = nextBackoff(d)
	}
	if d != maxBackoff {
		t.Fatalf("backoff = %v, want %v", d, maxBackoff)
	}
}

func TestSleepHonorsCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if sleep(ctx, time.Hour) {
		t.Fatal("sleep returned true on cancelled context")
	}
}

func TestPublishAfterClose(t *testing.T) {
	p := NewPublisher("amqp://127.0.0.1:1/", "q", zap.NewNop())
	p.Close()
	if err := p.Publish(context.Background(), events.New(events.EventReviewDeleted, 1, nil)); !errors.Is(err, ErrPublisherClosed) {
		t.Fatalf("Publish: err = %v, want ErrPublisherClosed", err)
	}
}
