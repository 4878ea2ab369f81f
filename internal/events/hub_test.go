package events

import (
	"context"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
)

func newTestHub(t *testing.T) *Hub {
	t.Helper()

	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)

	h := NewHub(log)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	go h.Run(ctx)

	return h
}

func TestPublish_BuffersPerTenant(t *testing.T) {
	h := newTestHub(t)

	h.Publish(TypeRateLimited, "t-1", map[string]any{"class": "api"})
	h.Publish(TypeAccessDenied, "t-1", map[string]any{"slug": "beta"})
	h.Publish(TypeRateLimited, "t-2", map[string]any{"class": "auth"})

	got := h.Recent("t-1", 10)
	if len(got) != 2 {
		t.Fatalf("expected 2 events for t-1, got %d", len(got))
	}

	if got[0].Type != TypeRateLimited || got[1].Type != TypeAccessDenied {
		t.Errorf("unexpected event order: %s, %s", got[0].Type, got[1].Type)
	}

	if other := h.Recent("t-2", 10); len(other) != 1 {
		t.Errorf("expected 1 event for t-2, got %d", len(other))
	}
}

func TestPublish_MonotonicIDsPerTenant(t *testing.T) {
	h := newTestHub(t)

	for i := 0; i < 3; i++ {
		h.Publish(TypeRateLimited, "t-1", nil)
	}

	got := h.Recent("t-1", 10)
	if len(got) != 3 {
		t.Fatalf("expected 3 events, got %d", len(got))
	}

	for i, evt := range got {
		if evt.ID != uint64(i+1) {
			t.Errorf("event %d: expected ID %d, got %d", i, i+1, evt.ID)
		}
	}
}

func TestRecent_LimitsAndCopies(t *testing.T) {
	h := newTestHub(t)

	for i := 0; i < 5; i++ {
		h.Publish(TypeCSRFRejected, "t-1", nil)
	}

	got := h.Recent("t-1", 2)
	if len(got) != 2 {
		t.Fatalf("expected 2 events, got %d", len(got))
	}

	// Newest last: IDs 4 and 5.
	if got[0].ID != 4 || got[1].ID != 5 {
		t.Errorf("expected IDs 4,5, got %d,%d", got[0].ID, got[1].ID)
	}
}

func TestRecent_EmptyTenant(t *testing.T) {
	h := newTestHub(t)

	if got := h.Recent("nobody", 10); got != nil {
		t.Fatalf("expected nil for unknown tenant, got %v", got)
	}
}

func TestShutdown_Idles(t *testing.T) {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)

	h := NewHub(log)
	go h.Run(context.Background())

	done := make(chan struct{})
	go func() {
		h.Shutdown()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Shutdown did not return")
	}
}
