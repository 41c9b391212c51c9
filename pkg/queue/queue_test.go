package queue

import (
	"context"
	"errors"
	"sync"
	"testing"
)

type stubSender struct {
	mu   sync.Mutex
	sent []string // chat IDs that received a DM
}

func (s *stubSender) SendDirect(ctx context.Context, chatUserID, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, chatUserID)
	return nil
}

func TestParkOverwritesPerUser(t *testing.T) {
	q := New(nil, &stubSender{}, func(ctx context.Context, e Entry) error { return nil })
	q.Park("u1", "Alice", "0xaaa")
	q.Park("u1", "Alice", "0xbbb")
	q.Park("u2", "Bob", "0xccc")
	if q.Len() != 2 {
		t.Fatalf("Len = %d, want 2 (one slot per user)", q.Len())
	}
}

func TestDrainReplaysAndIsolatesFailures(t *testing.T) {
	var mu sync.Mutex
	var seen []string
	sender := &stubSender{}
	q := New(nil, sender, func(ctx context.Context, e Entry) error {
		mu.Lock()
		seen = append(seen, e.ChatID)
		mu.Unlock()
		if e.ChatID == "bad" {
			return errors.New("replay boom")
		}
		return nil
	})
	q.Park("good1", "A", "0x1")
	q.Park("bad", "B", "0x2")
	q.Park("good2", "C", "0x3")

	q.Drain(context.Background())

	if len(seen) != 3 {
		t.Fatalf("replayed %d entries, want 3 (failure must not stop the drain)", len(seen))
	}
	if q.Len() != 0 {
		t.Fatalf("queue still holds %d entries after drain; failed entries must not be retried", q.Len())
	}
}

func TestDrainNotifiesFailedUser(t *testing.T) {
	sender := &stubSender{}
	q := New(nil, sender, func(ctx context.Context, e Entry) error {
		if e.ChatID == "bad" {
			return errors.New("replay boom")
		}
		return nil
	})
	q.Park("good", "A", "0x1")
	q.Park("bad", "B", "0x2")

	q.Drain(context.Background())

	// The dropped user must hear about it; the successful one gets the
	// normal flow's messages, not this notice.
	if len(sender.sent) != 1 || sender.sent[0] != "bad" {
		t.Fatalf("failure notices went to %v, want [bad]", sender.sent)
	}
}

func TestDrainEmptyIsNoop(t *testing.T) {
	calls := 0
	q := New(nil, &stubSender{}, func(ctx context.Context, e Entry) error { calls++; return nil })
	q.Drain(context.Background())
	if calls != 0 {
		t.Fatalf("onReady called %d times on an empty queue", calls)
	}
}

func TestParkKeepsFirstRequestTime(t *testing.T) {
	q := New(nil, &stubSender{}, func(ctx context.Context, e Entry) error { return nil })
	q.Park("u1", "Alice", "0xaaa")
	first := q.waiting["u1"].RequestedAt
	q.Park("u1", "Alice", "0xbbb")
	if !q.waiting["u1"].RequestedAt.Equal(first) {
		t.Fatal("re-park must not reset the original request time")
	}
	if q.waiting["u1"].Wallet != "0xbbb" {
		t.Fatal("re-park must update the wallet")
	}
}
