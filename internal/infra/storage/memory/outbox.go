package memory

import (
	"context"
	"sync"
	"time"

	appoutbox "innkeep/internal/app/outbox"
	infraoutbox "innkeep/internal/infra/outbox"
)

const (
	outboxStateNew     = "NEW"
	outboxStateClaimed = "CLAIMED"
	outboxStateSent    = "SENT"
	outboxStateFailed  = "FAILED"
)

type outboxRow struct {
	record      appoutbox.EventRecord
	state       string
	attempts    int
	nextAttempt time.Time
	lastError   string
}

// OutboxStore is the in-memory outbox: services append, the worker claims
// and marks. Claim order is append order.
type OutboxStore struct {
	mu   sync.Mutex
	rows []*outboxRow
}

func NewOutboxStore() *OutboxStore {
	return &OutboxStore{}
}

func (s *OutboxStore) Add(ctx context.Context, record appoutbox.EventRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows = append(s.rows, &outboxRow{
		record:      record,
		state:       outboxStateNew,
		nextAttempt: time.Now().UTC(),
	})
	return nil
}

func (s *OutboxStore) Claim(ctx context.Context, workerID string) (*infraoutbox.PendingEvent, error) {
	now := time.Now().UTC()
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, row := range s.rows {
		if row.state != outboxStateNew && row.state != outboxStateFailed {
			continue
		}
		if row.nextAttempt.After(now) {
			continue
		}
		row.state = outboxStateClaimed
		return &infraoutbox.PendingEvent{
			ID:         row.record.ID,
			Name:       row.record.Name,
			Payload:    row.record.Payload,
			OccurredAt: row.record.OccurredAt,
			Aggregate:  row.record.Aggregate,
			Headers:    row.record.Headers,
			Attempts:   row.attempts,
		}, nil
	}
	return nil, nil
}

func (s *OutboxStore) MarkSent(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if row := s.find(id); row != nil {
		row.state = outboxStateSent
	}
	return nil
}

func (s *OutboxStore) MarkFailed(ctx context.Context, id string, next time.Time, errMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if row := s.find(id); row != nil {
		row.state = outboxStateFailed
		row.attempts++
		row.nextAttempt = next
		row.lastError = errMsg
	}
	return nil
}

// Events returns the names of all stored records, for tests and debugging.
func (s *OutboxStore) Events() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.rows))
	for _, row := range s.rows {
		out = append(out, row.record.Name)
	}
	return out
}

func (s *OutboxStore) find(id string) *outboxRow {
	for _, row := range s.rows {
		if row.record.ID == id {
			return row
		}
	}
	return nil
}

var (
	_ appoutbox.Outbox  = (*OutboxStore)(nil)
	_ infraoutbox.Store = (*OutboxStore)(nil)
)
