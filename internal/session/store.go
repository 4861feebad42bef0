package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/taiszocche92-glitch/backend/internal/models"
)

// ErrSessionFull rejects a third distinct identity joining a session that
// already holds two participants.
var ErrSessionFull = errors.New("session already has two participants")

// Store owns every active session. It is the only writer of Session state;
// the protocol engine and the HTTP layer go through its methods.
type Store struct {
	mu         sync.RWMutex
	clock      clockwork.Clock
	sessions   map[string]*Session
	maxIdleAge time.Duration
}

// NewStore builds a store. maxIdleAge bounds how long an abandoned session
// may linger before the sweeper reclaims it.
func NewStore(clock clockwork.Clock, maxIdleAge time.Duration) *Store {
	return &Store{
		clock:      clock,
		sessions:   make(map[string]*Session),
		maxIdleAge: maxIdleAge,
	}
}

// GetOrCreate returns the session for sessionID, creating it lazily on
// first join. Idempotent on sessionID.
func (st *Store) GetOrCreate(sessionID, stationID string) *Session {
	st.mu.Lock()
	defer st.mu.Unlock()

	if sess, ok := st.sessions[sessionID]; ok {
		return sess
	}
	sess := &Session{
		ID:           sessionID,
		StationID:    stationID,
		CreatedAt:    st.clock.Now(),
		participants: make(map[string]*models.Participant),
	}
	st.sessions[sessionID] = sess
	log.Info().Str("session_id", sessionID).Str("station_id", stationID).Msg("session created")
	return sess
}

// Get returns the session for sessionID if it is still in the store.
func (st *Store) Get(sessionID string) (*Session, bool) {
	st.mu.RLock()
	defer st.mu.RUnlock()
	sess, ok := st.sessions[sessionID]
	return sess, ok
}

// Join inserts or refreshes a participant. A known identity rejoining only
// has its connection handle updated, preserving readiness; a third distinct
// identity is rejected with ErrSessionFull.
func (st *Store) Join(sess *Session, userID string, role models.Role, displayName string, conn models.Conn) error {
	st.mu.Lock()
	defer st.mu.Unlock()

	if existing, ok := sess.participants[userID]; ok {
		existing.Conn = conn
		existing.Role = role
		existing.DisplayName = displayName
		return nil
	}
	if len(sess.participants) >= MaxParticipants {
		return ErrSessionFull
	}
	sess.participants[userID] = &models.Participant{
		UserID:      userID,
		Role:        role,
		DisplayName: displayName,
		IsReady:     false,
		Conn:        conn,
	}
	return nil
}

// Leave removes a participant. When the last one leaves, the countdown is
// halted and the session is deleted from the store. The remaining roster is
// returned for the partner-left broadcast.
func (st *Store) Leave(sess *Session, userID string) (removed bool, remaining []models.ParticipantInfo, empty bool) {
	st.mu.Lock()
	defer st.mu.Unlock()

	if _, ok := sess.participants[userID]; !ok {
		return false, sess.rosterLocked(), false
	}
	delete(sess.participants, userID)
	remaining = sess.rosterLocked()

	if len(sess.participants) == 0 {
		st.dropLocked(sess)
		return true, remaining, true
	}
	return true, remaining, false
}

// SetReady marks the participant ready. allReady is true only when the
// session holds exactly two participants and both are ready; known is
// false when the identity is not a participant at all.
func (st *Store) SetReady(sess *Session, userID string) (allReady bool, known bool) {
	st.mu.Lock()
	defer st.mu.Unlock()

	p, ok := sess.participants[userID]
	if !ok {
		return false, false
	}
	p.IsReady = true

	if len(sess.participants) != MaxParticipants {
		return false, true
	}
	for _, p := range sess.participants {
		if !p.IsReady {
			return false, true
		}
	}
	return true, true
}

// Roster snapshots the participant list for broadcasts.
func (st *Store) Roster(sess *Session) []models.ParticipantInfo {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return sess.rosterLocked()
}

// Conns snapshots the connections currently seated in the session. Room
// delivery goes through these, never through the user registry: the same
// identity may hold an unrelated lobby socket at the same time.
func (st *Store) Conns(sess *Session) []models.Conn {
	st.mu.RLock()
	defer st.mu.RUnlock()
	conns := make([]models.Conn, 0, len(sess.participants))
	for _, p := range sess.participants {
		if p.Conn != nil {
			conns = append(conns, p.Conn)
		}
	}
	return conns
}

// ParticipantRole returns the role of a current participant.
func (st *Store) ParticipantRole(sess *Session, userID string) (models.Role, bool) {
	st.mu.RLock()
	defer st.mu.RUnlock()
	p, ok := sess.participants[userID]
	if !ok {
		return "", false
	}
	return p.Role, true
}

// ConnMatches reports whether userID's current connection is conn. Used to
// ignore teardown of a socket that was already replaced by a rejoin.
func (st *Store) ConnMatches(sess *Session, userID string, conn models.Conn) bool {
	st.mu.RLock()
	defer st.mu.RUnlock()
	p, ok := sess.participants[userID]
	if !ok || p.Conn == nil {
		return false
	}
	return p.Conn.ConnID() == conn.ConnID()
}

// HasParticipant reports whether userID currently belongs to the session.
func (st *Store) HasParticipant(sess *Session, userID string) bool {
	st.mu.RLock()
	defer st.mu.RUnlock()
	_, ok := sess.participants[userID]
	return ok
}

// Len returns the participant count of a session.
func (st *Store) Len(sess *Session) int {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return len(sess.participants)
}

// Phase derives the lifecycle stage of a session.
func (st *Store) Phase(sess *Session) Phase {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return sess.phaseLocked()
}

// Count returns the number of active sessions.
func (st *Store) Count() int {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return len(st.sessions)
}

// Sweep deletes sessions older than the idle-age threshold, halting their
// countdowns first. Returns the number of sessions reclaimed.
func (st *Store) Sweep() int {
	st.mu.Lock()
	defer st.mu.Unlock()

	now := st.clock.Now()
	swept := 0
	for id, sess := range st.sessions {
		if now.Sub(sess.CreatedAt) > st.maxIdleAge {
			st.dropLocked(sess)
			swept++
			log.Info().Str("session_id", id).Msg("stale session swept")
		}
	}
	return swept
}

// RunSweeper periodically sweeps stale sessions until ctx is cancelled.
func (st *Store) RunSweeper(ctx context.Context, interval time.Duration) {
	ticker := st.clock.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			if n := st.Sweep(); n > 0 {
				log.Info().Int("sessions", n).Msg("idle sweep reclaimed sessions")
			}
		}
	}
}

// dropLocked removes a session and halts its countdown. Caller holds the
// store lock.
func (st *Store) dropLocked(sess *Session) {
	if sess.countdown != nil {
		sess.countdown.halt()
		sess.countdown = nil
	}
	delete(st.sessions, sess.ID)
	log.Info().Str("session_id", sess.ID).Msg("session removed")
}
