package services

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/jmallard/penpal/internal/logging"
	"github.com/jmallard/penpal/internal/models"
)

// scriptedFetcher serves canned batches keyed by the since position.
type scriptedFetcher struct {
	mu      sync.Mutex
	batches map[string][]models.Message
	calls   int
}

func (f *scriptedFetcher) FetchMessages(ctx context.Context, conversationID, since string) ([]models.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.batches[since], nil
}

func collect(t *testing.T, poller *MessagePoller, conversationID, since string, want int, timeout time.Duration) []models.Message {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex
	var got []models.Message
	done := make(chan struct{})

	go func() {
		poller.Run(ctx, conversationID, since, func(batch []models.Message) {
			mu.Lock()
			got = append(got, batch...)
			if len(got) >= want {
				cancel()
			}
			mu.Unlock()
		})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(timeout):
		cancel()
		<-done
		t.Fatalf("poller did not deliver %d messages in %v", want, timeout)
	}

	mu.Lock()
	defer mu.Unlock()
	return got
}

func TestPollerDeliversWithoutBoundaryDuplicates(t *testing.T) {
	m1 := models.Message{ID: "m1", Body: "one", CreatedAt: "2024-01-01T00:00:00.000Z"}
	m2 := models.Message{ID: "m2", Body: "two", CreatedAt: "2024-01-01T00:00:01.000Z"}
	m3 := models.Message{ID: "m3", Body: "three", CreatedAt: "2024-01-01T00:00:02.000Z"}

	// The fetch range is inclusive at since, so each follow-up batch leads
	// with the already delivered boundary message.
	fetcher := &scriptedFetcher{batches: map[string][]models.Message{
		"":                         {m1, m2},
		"2024-01-01T00:00:01.000Z": {m2, m3},
		"2024-01-01T00:00:02.000Z": {m3},
	}}
	logger := logging.New().SetOutput(io.Discard)
	poller := NewMessagePoller(fetcher, 5*time.Millisecond, logger)

	got := collect(t, poller, "conv", "", 3, 2*time.Second)

	wantIDs := []string{"m1", "m2", "m3"}
	if len(got) != len(wantIDs) {
		t.Fatalf("delivered %d messages, want %d: %+v", len(got), len(wantIDs), got)
	}
	for i, id := range wantIDs {
		if got[i].ID != id {
			t.Errorf("position %d: got %s, want %s", i, got[i].ID, id)
		}
	}
}

func TestPollerStopsOnCancel(t *testing.T) {
	fetcher := &scriptedFetcher{batches: map[string][]models.Message{}}
	logger := logging.New().SetOutput(io.Discard)
	poller := NewMessagePoller(fetcher, time.Millisecond, logger)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		poller.Run(ctx, "conv", "", func([]models.Message) {
			t.Error("no messages should be delivered")
		})
		close(done)
	}()

	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("poller did not stop after cancellation")
	}
}

func TestPollerSplitsBoundaryById(t *testing.T) {
	// Two messages share the boundary timestamp; only the undelivered one
	// may come through on the next poll.
	shared := "2024-01-01T00:00:05.000Z"
	a := models.Message{ID: "a", Body: "a", CreatedAt: shared}
	b := models.Message{ID: "b", Body: "b", CreatedAt: shared}

	fetcher := &scriptedFetcher{batches: map[string][]models.Message{
		"":     {a},
		shared: {a, b},
	}}
	logger := logging.New().SetOutput(io.Discard)
	poller := NewMessagePoller(fetcher, 5*time.Millisecond, logger)

	got := collect(t, poller, "conv", "", 2, 2*time.Second)

	if len(got) != 2 || got[0].ID != "a" || got[1].ID != "b" {
		t.Fatalf("delivered %+v, want [a b] with no duplicate", got)
	}
}
