package protocol

import (
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/taiszocche92-glitch/backend/internal/models"
	"github.com/taiszocche92-glitch/backend/internal/session"
)

// handleReady flips the participant's readiness, rebroadcasts the roster
// and, once both participants are ready, unlocks the start action.
func (e *Engine) handleReady(sess *session.Session, meta models.ConnectMeta) {
	allReady, known := e.store.SetReady(sess, meta.UserID)
	if !known {
		return
	}

	log.Info().
		Str("session_id", sess.ID).
		Str("user_id", meta.UserID).
		Msg("participant ready")

	e.broadcast(sess, models.NewEvent(models.EventServerPartnerUpdate, models.PartnerUpdatePayload{
		Participants: e.store.Roster(sess),
	}))

	if allReady {
		log.Info().Str("session_id", sess.ID).Msg("both participants ready")
		e.broadcast(sess, models.NewEvent(models.EventServerBothReady, nil))
	}
}

// handleStart begins the simulation: start + voice-call signals to the
// room, then the countdown. Any participant may start; only the release
// and scoring actions are role-gated.
func (e *Engine) handleStart(sess *session.Session, ev models.Event) {
	var req models.StartSimulationRequest
	if len(ev.Payload) > 0 {
		if err := json.Unmarshal(ev.Payload, &req); err != nil {
			log.Warn().Err(err).Str("session_id", sess.ID).Msg("bad start payload, using default duration")
		}
	}
	minutes := req.DurationMinutes
	if minutes <= 0 {
		minutes = e.cfg.DefaultDurationMinutes
	}
	durationSeconds := minutes * 60

	log.Info().
		Str("session_id", sess.ID).
		Int("duration_seconds", durationSeconds).
		Msg("simulation started")

	e.broadcast(sess, models.NewEvent(models.EventServerStartSimulation, models.StartSimulationPayload{
		DurationSeconds: durationSeconds,
	}))
	e.broadcast(sess, models.NewEvent(models.EventServerInitiateVoiceCall, models.VoiceCallPayload{
		Message: "Por favor, inicie a comunicação por voz.",
	}))

	sessionID := sess.ID
	e.store.StartCountdown(sess, durationSeconds,
		func(cd *session.Countdown, remainingSeconds int) { e.timerTick(sessionID, cd, remainingSeconds) },
		func() { e.timerEnd(sessionID) },
	)
}

// handleManualEnd stops the countdown without removing anyone; the room
// stays open for continued messaging.
func (e *Engine) handleManualEnd(sess *session.Session) {
	e.store.StopCountdown(sess, "manual_end")
	e.broadcast(sess, models.NewEvent(models.EventTimerStopped, models.TimerStoppedPayload{
		Reason: "manual_end",
	}))
}

// handleReleaseData relays a printed-material reference to the room. Actor
// only; the engine never interprets the item id.
func (e *Engine) handleReleaseData(sess *session.Session, meta models.ConnectMeta, ev models.Event) {
	role, ok := e.store.ParticipantRole(sess, meta.UserID)
	if !ok || !role.CanReleaseData() {
		return
	}
	var req models.ReleaseDataRequest
	if err := json.Unmarshal(ev.Payload, &req); err != nil {
		log.Warn().Err(err).Str("session_id", sess.ID).Msg("bad release payload")
		return
	}
	e.broadcast(sess, models.NewEvent(models.EventCandidateReceiveData, models.ReceiveDataPayload{
		DataItemID: req.DataItemID,
	}))
}

// handleReleasePEP reveals the scoring checklist to the room. Actor or
// evaluator only.
func (e *Engine) handleReleasePEP(sess *session.Session, meta models.ConnectMeta) {
	role, ok := e.store.ParticipantRole(sess, meta.UserID)
	if !ok || !role.CanScore() {
		return
	}
	e.broadcast(sess, models.NewEvent(models.EventCandidateReceivePEP, models.PEPVisibilityPayload{
		ShouldBeVisible: true,
	}))
}

// handleScoresUpdate relays a live score push unfiltered. Actor or
// evaluator only; debouncing is the sender's job.
func (e *Engine) handleScoresUpdate(sess *session.Session, meta models.ConnectMeta, ev models.Event) {
	role, ok := e.store.ParticipantRole(sess, meta.UserID)
	if !ok || !role.CanScore() {
		return
	}
	var req models.ScoresUpdateRequest
	if err := json.Unmarshal(ev.Payload, &req); err != nil {
		log.Warn().Err(err).Str("session_id", sess.ID).Msg("bad scores payload")
		return
	}
	e.broadcast(sess, models.NewEvent(models.EventCandidateReceiveScores, models.ScoresPayload{
		Scores:     req.Scores,
		TotalScore: req.TotalScore,
	}))
}
