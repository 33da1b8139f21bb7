package services

import (
	"context"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/jmallard/penpal/internal/logging"
	"github.com/jmallard/penpal/internal/models"
)

// MessageFetcher is the slice of the chat service the poller needs.
type MessageFetcher interface {
	FetchMessages(ctx context.Context, conversationID, since string) ([]models.Message, error)
}

// MessagePoller drives near-real-time delivery by polling a conversation's
// log at a fixed interval. Concurrent fetches for the same conversation and
// position are coalesced into one store query.
type MessagePoller struct {
	fetcher  MessageFetcher
	interval time.Duration
	group    singleflight.Group
	logger   *logging.Logger
}

func NewMessagePoller(fetcher MessageFetcher, interval time.Duration, logger *logging.Logger) *MessagePoller {
	if logger == nil {
		logger = logging.Default
	}
	return &MessagePoller{fetcher: fetcher, interval: interval, logger: logger}
}

// Run polls conversationID until ctx is cancelled, invoking deliver with
// each batch of new messages in order. since positions the first fetch;
// pass "" to start from the tail window. Fetch errors are logged and the
// next tick retries, so delivery degrades to a longer delay rather than
// stopping.
func (p *MessagePoller) Run(ctx context.Context, conversationID, since string, deliver func([]models.Message)) {
	// The fetch range is inclusive at since, which keeps the sequence
	// gap-free across polls; messages already delivered at the boundary
	// timestamp are dropped by id.
	seenAtSince := make(map[string]bool)

	poll := func() {
		key := conversationID + "|" + since
		v, err, _ := p.group.Do(key, func() (interface{}, error) {
			return p.fetcher.FetchMessages(ctx, conversationID, since)
		})
		if err != nil {
			if ctx.Err() == nil {
				p.logger.Warn("message poll failed", map[string]interface{}{"conversation_id": conversationID, "error": err.Error()})
			}
			return
		}

		batch := v.([]models.Message)
		fresh := make([]models.Message, 0, len(batch))
		for _, msg := range batch {
			if msg.CreatedAt == since && seenAtSince[msg.ID] {
				continue
			}
			fresh = append(fresh, msg)
		}
		if len(fresh) == 0 {
			return
		}

		last := fresh[len(fresh)-1]
		if last.CreatedAt != since {
			since = last.CreatedAt
			seenAtSince = make(map[string]bool)
		}
		for _, msg := range fresh {
			if msg.CreatedAt == since {
				seenAtSince[msg.ID] = true
			}
		}

		deliver(fresh)
	}

	poll()
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			poll()
		}
	}
}
