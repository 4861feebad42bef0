package protocol

import (
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/taiszocche92-glitch/backend/internal/models"
)

// The invitation relay is pure point-to-point routing through the
// connection registry; it never touches session state. An offline target
// drops the invite silently and the sender is not told.

func (e *Engine) handleInvite(ev models.Event) {
	var req models.InviteRequest
	if err := json.Unmarshal(ev.Payload, &req); err != nil {
		log.Warn().Err(err).Msg("bad invite payload")
		return
	}

	delivered := e.sendToUser(req.ToUserID, models.NewEvent(models.EventInviteReceived, models.InviteReceivedPayload{
		FromUserID: req.FromUserID,
		FromName:   req.FromName,
		Timestamp:  req.Timestamp,
	}))
	if !delivered {
		log.Debug().Str("to_user_id", req.ToUserID).Msg("invite target offline, dropping")
		return
	}
	log.Info().
		Str("from_user_id", req.FromUserID).
		Str("to_user_id", req.ToUserID).
		Msg("invite relayed")
}

// handleInviteAccepted provisions a brand-new session id and hands it to
// both parties; they then reconnect with full session metadata to actually
// join the room.
func (e *Engine) handleInviteAccepted(ev models.Event) {
	var req models.InviteAnswerRequest
	if err := json.Unmarshal(ev.Payload, &req); err != nil {
		log.Warn().Err(err).Msg("bad invite-accept payload")
		return
	}

	now := e.clock.Now()
	payload := models.SessionStartPayload{
		SessionID: NewSessionID(now),
		Users:     []string{req.FromUserID, req.ToUserID},
		StartedAt: models.SessionStartedAt(now),
	}
	start := models.NewEvent(models.EventSessionStart, payload)
	e.sendToUser(req.FromUserID, start)
	e.sendToUser(req.ToUserID, start)

	log.Info().
		Str("session_id", payload.SessionID).
		Str("from_user_id", req.FromUserID).
		Str("to_user_id", req.ToUserID).
		Msg("invite accepted, session provisioned")
}

func (e *Engine) handleInviteDeclined(ev models.Event) {
	var req models.InviteAnswerRequest
	if err := json.Unmarshal(ev.Payload, &req); err != nil {
		log.Warn().Err(err).Msg("bad invite-decline payload")
		return
	}
	e.sendToUser(req.FromUserID, models.NewEvent(models.EventInviteDeclined, models.InviteDeclinedPayload{
		FromUserID: req.FromUserID,
		ToUserID:   req.ToUserID,
	}))
	log.Info().
		Str("from_user_id", req.FromUserID).
		Str("to_user_id", req.ToUserID).
		Msg("invite declined")
}

// handleSimulationInvite relays a ready-made simulation invite, embedding
// the candidate-side join link built from the configured frontend URL.
func (e *Engine) handleSimulationInvite(meta models.ConnectMeta, ev models.Event) {
	var req models.SimulationInviteRequest
	if err := json.Unmarshal(ev.Payload, &req); err != nil {
		log.Warn().Err(err).Msg("bad simulation-invite payload")
		return
	}

	from := meta.DisplayName
	if from == "" {
		from = "Avaliador"
	}
	link := fmt.Sprintf("%s/simulation/%s?role=candidate&duration=%d",
		e.cfg.FrontendURL, req.SessionID, req.Duration)

	e.sendToUser(req.ToUserID, models.NewEvent(models.EventInviteReceived, models.InviteReceivedPayload{
		From:         from,
		Link:         link,
		StationTitle: "Simulação Clínica",
		SessionID:    req.SessionID,
		Role:         "candidate",
		Meet:         req.MeetLink,
	}))
}
