package sandwich

import (
	"context"
	"fmt"
	"sync"

	"github.com/WelcomerTeam/Sandwich-QQ/qq"
)

// Results nobody has asked for yet are kept up to this many.
const MaxUnclaimedAuditResults = 1024

type auditEntry struct {
	done    chan struct{}
	result  *qq.MessageAuditEvent
	waiters int
}

// AuditResultStore lets callers wait for the outcome of a message audit. It
// is fed by message audit events.
type AuditResultStore struct {
	entriesMu sync.Mutex
	entries   map[string]*auditEntry
	unclaimed []string
}

func NewAuditResultStore() *AuditResultStore {
	return &AuditResultStore{
		entries: make(map[string]*auditEntry),
	}
}

func (s *AuditResultStore) entry(auditID string) *auditEntry {
	entry, ok := s.entries[auditID]
	if !ok {
		entry = &auditEntry{done: make(chan struct{})}
		s.entries[auditID] = entry
	}

	return entry
}

// Resolve stores a result and wakes everyone waiting for it.
func (s *AuditResultStore) Resolve(event *qq.MessageAuditEvent) {
	s.entriesMu.Lock()
	defer s.entriesMu.Unlock()

	entry := s.entry(event.AuditID)
	if entry.result != nil {
		return
	}

	entry.result = event
	close(entry.done)

	if entry.waiters > 0 {
		return
	}

	s.unclaimed = append(s.unclaimed, event.AuditID)

	for len(s.unclaimed) > MaxUnclaimedAuditResults {
		oldest := s.unclaimed[0]
		s.unclaimed = s.unclaimed[1:]

		if stale, ok := s.entries[oldest]; ok && stale.result != nil && stale.waiters == 0 {
			delete(s.entries, oldest)
		}
	}
}

// Fetch waits for the result of auditID until ctx is done.
func (s *AuditResultStore) Fetch(ctx context.Context, auditID string) (*qq.MessageAuditEvent, error) {
	s.entriesMu.Lock()
	entry := s.entry(auditID)
	entry.waiters++
	s.entriesMu.Unlock()

	select {
	case <-entry.done:
		s.entriesMu.Lock()
		entry.waiters--

		if entry.waiters == 0 && s.entries[auditID] == entry {
			delete(s.entries, auditID)
		}
		s.entriesMu.Unlock()

		return entry.result, nil
	case <-ctx.Done():
		s.entriesMu.Lock()
		entry.waiters--

		if entry.waiters == 0 && entry.result == nil && s.entries[auditID] == entry {
			delete(s.entries, auditID)
		}
		s.entriesMu.Unlock()

		return nil, fmt.Errorf("%w: %s: %w", ErrAuditResultNotFound, auditID, ctx.Err())
	}
}

func (s *AuditResultStore) OnEvent(_ context.Context, _ int32, event qq.Event) {
	if audit, ok := event.(*qq.MessageAuditEvent); ok {
		s.Resolve(audit)
	}
}

func (s *AuditResultStore) OnShardConnected(int32) {}

func (s *AuditResultStore) OnShardDisconnected(int32) {}
