package sandwich

import (
	"sync"

	"github.com/WelcomerTeam/Sandwich-QQ/qq"
)

// ShardDescriptor identifies a shard within its group.
type ShardDescriptor struct {
	Index int32 `json:"index"`
	Total int32 `json:"total"`
}

// SessionState is the resumable session of a single shard. It is written by
// the shard's receive loop and read by its heartbeat.
type SessionState struct {
	mu sync.RWMutex

	sessionID    string
	lastSequence int64
	hasSequence  bool
	selfIdentity *qq.User

	Shard ShardDescriptor
}

func NewSessionState(shard ShardDescriptor) *SessionState {
	return &SessionState{Shard: shard}
}

// OnReady records a completed handshake.
func (s *SessionState) OnReady(sessionID string, sequence int64, identity qq.User) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sessionID = sessionID
	s.lastSequence = sequence
	s.hasSequence = true
	s.selfIdentity = &identity
}

// OnDispatchSeen records the sequence of a received dispatch. Sequences lower
// than the last one seen are ignored so a resume never rewinds.
func (s *SessionState) OnDispatchSeen(sequence int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.hasSequence && sequence < s.lastSequence {
		return
	}

	s.lastSequence = sequence
	s.hasSequence = true
}

// Reset forgets the session so the next handshake identifies. The self
// identity is kept.
func (s *SessionState) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sessionID = ""
	s.lastSequence = 0
	s.hasSequence = false
}

func (s *SessionState) SessionID() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.sessionID, s.sessionID != ""
}

func (s *SessionState) LastSequence() (int64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.lastSequence, s.hasSequence
}

// SelfIdentity returns the bot user from the last Ready, or nil.
func (s *SessionState) SelfIdentity() *qq.User {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.selfIdentity == nil {
		return nil
	}

	identity := *s.selfIdentity

	return &identity
}
