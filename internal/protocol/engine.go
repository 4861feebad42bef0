// Package protocol implements the session state machine: join/readiness
// handshakes, the simulation countdown, timed-release relays and the
// out-of-session invitation flow.
package protocol

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/taiszocche92-glitch/backend/internal/events"
	"github.com/taiszocche92-glitch/backend/internal/models"
	"github.com/taiszocche92-glitch/backend/internal/registry"
	"github.com/taiszocche92-glitch/backend/internal/session"
)

// DefaultDurationMinutes is used when a start request carries no usable
// duration.
const DefaultDurationMinutes = 10

// Config tunes the engine.
type Config struct {
	DefaultDurationMinutes int
	// FrontendURL builds the simulation links embedded in relayed invites.
	FrontendURL string
}

// Engine is the protocol core. A single mutex serializes every handler, so
// each inbound event runs to completion before the next mutates session
// state; timer ticks go through the same gate.
type Engine struct {
	mu        sync.Mutex
	registry  *registry.Registry
	store     *session.Store
	publisher events.Publisher
	clock     clockwork.Clock
	cfg       Config
}

func NewEngine(reg *registry.Registry, store *session.Store, pub events.Publisher, clock clockwork.Clock, cfg Config) *Engine {
	if cfg.DefaultDurationMinutes <= 0 {
		cfg.DefaultDurationMinutes = DefaultDurationMinutes
	}
	if pub == nil {
		pub = events.Noop{}
	}
	return &Engine{
		registry:  reg,
		store:     store,
		publisher: pub,
		clock:     clock,
		cfg:       cfg,
	}
}

// Connect registers a new connection and, when the metadata names a
// session, runs the join flow. A connection with no session id is an
// invitation-only peer; one that names a session but misses other required
// fields is rejected and closed.
func (e *Engine) Connect(conn models.Conn, meta models.ConnectMeta) {
	if meta.UserID != "" {
		e.registry.Register(meta.UserID, conn)
	}
	if !meta.WantsSession() {
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if !meta.Complete() {
		conn.Send(models.NewEvent(models.EventServerError, models.ErrorPayload{
			Message: "Metadados de sessão incompletos.",
		}))
		conn.Close("incomplete session metadata")
		return
	}

	sess := e.store.GetOrCreate(meta.SessionID, meta.StationID)
	if err := e.store.Join(sess, meta.UserID, meta.Role, meta.DisplayName, conn); err != nil {
		log.Warn().
			Str("session_id", meta.SessionID).
			Str("user_id", meta.UserID).
			Msg("join rejected, session full")
		conn.Send(models.NewEvent(models.EventServerError, models.ErrorPayload{
			Message: "Esta sessão de simulação já está cheia.",
		}))
		conn.Close("session full")
		return
	}

	log.Info().
		Str("session_id", meta.SessionID).
		Str("user_id", meta.UserID).
		Str("role", string(meta.Role)).
		Msg("participant joined session")

	e.broadcast(sess, models.NewEvent(models.EventServerPartnerUpdate, models.PartnerUpdatePayload{
		Participants: e.store.Roster(sess),
	}))

	switch e.store.Len(sess) {
	case 1:
		conn.Send(models.NewEvent(models.EventServerWaitingForPartner, nil))
	case session.MaxParticipants:
		e.broadcast(sess, models.NewEvent(models.EventServerPartnerFound, nil))
	}
}

// HandleEvent dispatches one inbound frame. Invitation events work for any
// registered peer; everything else requires full session metadata and a
// current participant.
func (e *Engine) HandleEvent(conn models.Conn, meta models.ConnectMeta, ev models.Event) {
	e.mu.Lock()
	defer e.mu.Unlock()

	switch ev.Type {
	case models.EventInternalInvite:
		e.handleInvite(ev)
		return
	case models.EventInternalInviteAccepted:
		e.handleInviteAccepted(ev)
		return
	case models.EventInternalInviteDeclined:
		e.handleInviteDeclined(ev)
		return
	case models.EventServerSendInternalInvite:
		e.handleSimulationInvite(meta, ev)
		return
	}

	if !meta.Complete() {
		return
	}
	sess, ok := e.store.Get(meta.SessionID)
	if !ok || !e.store.HasParticipant(sess, meta.UserID) {
		return
	}

	switch ev.Type {
	case models.EventClientImReady:
		e.handleReady(sess, meta)
	case models.EventClientStartSimulation:
		e.handleStart(sess, ev)
	case models.EventClientManualEnd:
		e.handleManualEnd(sess)
	case models.EventActorReleaseData:
		e.handleReleaseData(sess, meta, ev)
	case models.EventActorReleasePEP:
		e.handleReleasePEP(sess, meta)
	case models.EventEvaluatorScoresUpdated:
		e.handleScoresUpdate(sess, meta, ev)
	default:
		log.Debug().Str("event_type", string(ev.Type)).Msg("ignoring unknown event")
	}
}

// Disconnect tears a connection down: the registry mapping goes only if it
// still points at this socket, and a session participant is removed with a
// partner-left notice to whoever remains.
func (e *Engine) Disconnect(conn models.Conn, meta models.ConnectMeta) {
	if meta.UserID != "" {
		e.registry.UnregisterConn(meta.UserID, conn)
	}
	if !meta.Complete() {
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	sess, ok := e.store.Get(meta.SessionID)
	if !ok {
		return
	}
	// A socket replaced by a rejoin must not kick the live participant.
	if !e.store.ConnMatches(sess, meta.UserID, conn) {
		return
	}
	removed, remaining, empty := e.store.Leave(sess, meta.UserID)
	if !removed {
		return
	}

	log.Info().
		Str("session_id", meta.SessionID).
		Str("user_id", meta.UserID).
		Msg("participant left session")

	if !empty {
		e.broadcast(sess, models.NewEvent(models.EventServerPartnerLeft, models.PartnerLeftPayload{
			Message:      "Seu parceiro de simulação se desconectou.",
			Participants: remaining,
		}))
	}
}

// broadcast delivers an event to every connection seated in the session,
// resolved fresh from the store at send time. The registry is not
// consulted here: a participant may also hold an invitation-lobby socket
// under the same identity, and room traffic must stay on the session
// socket. Each broadcast is also mirrored to the event journal.
func (e *Engine) broadcast(sess *session.Session, ev models.Event) {
	for _, conn := range e.store.Conns(sess) {
		conn.Send(ev)
	}
	e.publisher.Publish(context.Background(), sess.ID, ev)
}

// sendToUser delivers an event to a single registered peer. Reports false
// when the target is offline.
func (e *Engine) sendToUser(userID string, ev models.Event) bool {
	conn, ok := e.registry.Lookup(userID)
	if !ok {
		return false
	}
	return conn.Send(ev)
}

// timerTick and timerEnd run on the countdown goroutine but take the
// engine mutex, keeping ticks ordered with inbound events. A tick that
// waited on the mutex while a manual end or a restart went through is
// stale; the ownership check discards it.
func (e *Engine) timerTick(sessionID string, cd *session.Countdown, remainingSeconds int) {
	e.mu.Lock()
	defer e.mu.Unlock()

	sess, ok := e.store.Get(sessionID)
	if !ok || !e.store.OwnsCountdown(sess, cd) {
		return
	}
	e.broadcast(sess, models.NewEvent(models.EventTimerUpdate, models.TimerUpdatePayload{
		RemainingSeconds: remainingSeconds,
	}))
}

func (e *Engine) timerEnd(sessionID string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	sess, ok := e.store.Get(sessionID)
	if !ok {
		return
	}
	log.Info().Str("session_id", sessionID).Msg("simulation countdown finished")
	e.broadcast(sess, models.NewEvent(models.EventTimerEnd, nil))
}

// NewSessionID mints a session identifier in the format the frontend
// already parses: session_<epoch-millis>_<short suffix>.
func NewSessionID(now time.Time) string {
	return fmt.Sprintf("session_%d_%s", now.UnixMilli(), uuid.NewString()[:5])
}
