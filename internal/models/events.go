package models

import (
	"encoding/json"
	"time"
)

// EventType identifies a websocket event. Client-originated types carry the
// CLIENT_/ACTOR_/EVALUATOR_/INTERNAL_ prefixes used by the frontend.
type EventType string

const (
	// Inbound (client -> server)
	EventClientImReady            EventType = "CLIENT_IM_READY"
	EventClientStartSimulation    EventType = "CLIENT_START_SIMULATION"
	EventClientManualEnd          EventType = "CLIENT_MANUAL_END_SIMULATION"
	EventActorReleaseData         EventType = "ACTOR_RELEASE_DATA"
	EventActorReleasePEP          EventType = "ACTOR_RELEASE_PEP"
	EventEvaluatorScoresUpdated   EventType = "EVALUATOR_SCORES_UPDATED_FOR_CANDIDATE"
	EventInternalInvite           EventType = "INTERNAL_INVITE"
	EventInternalInviteAccepted   EventType = "INTERNAL_INVITE_ACCEPTED"
	EventInternalInviteDeclined   EventType = "INTERNAL_INVITE_DECLINED"
	EventServerSendInternalInvite EventType = "SERVER_SEND_INTERNAL_INVITE"

	// Outbound (server -> client)
	EventServerWaitingForPartner EventType = "SERVER_WAITING_FOR_PARTNER"
	EventServerPartnerFound      EventType = "SERVER_PARTNER_FOUND"
	EventServerPartnerUpdate     EventType = "SERVER_PARTNER_UPDATE"
	EventServerBothReady         EventType = "SERVER_BOTH_PARTICIPANTS_READY"
	EventServerStartSimulation   EventType = "SERVER_START_SIMULATION"
	EventServerInitiateVoiceCall EventType = "SERVER_INITIATE_VOICE_CALL"
	EventTimerUpdate             EventType = "TIMER_UPDATE"
	EventTimerEnd                EventType = "TIMER_END"
	EventTimerStopped            EventType = "TIMER_STOPPED"
	EventCandidateReceiveData    EventType = "CANDIDATE_RECEIVE_DATA"
	EventCandidateReceivePEP     EventType = "CANDIDATE_RECEIVE_PEP_VISIBILITY"
	EventCandidateReceiveScores  EventType = "CANDIDATE_RECEIVE_UPDATED_SCORES"
	EventServerPartnerLeft       EventType = "SERVER_PARTNER_LEFT"
	EventServerError             EventType = "SERVER_ERROR"
	EventInviteReceived          EventType = "INTERNAL_INVITE_RECEIVED"
	EventInviteDeclined          EventType = "INVITE_DECLINED"
	EventSessionStart            EventType = "SESSION_START"
)

// Event is the wire envelope for every websocket frame in both directions.
type Event struct {
	Type    EventType       `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// NewEvent builds an event, marshaling the payload. A nil payload produces
// an envelope with no payload field.
func NewEvent(t EventType, payload any) Event {
	if payload == nil {
		return Event{Type: t}
	}
	data, err := json.Marshal(payload)
	if err != nil {
		// Payload structs below are all marshalable; this only trips on
		// caller bugs, in which case an empty payload beats a dropped event.
		return Event{Type: t}
	}
	return Event{Type: t, Payload: data}
}

// Inbound payloads.

type StartSimulationRequest struct {
	DurationMinutes int `json:"durationMinutes"`
}

type ReleaseDataRequest struct {
	DataItemID string `json:"dataItemId"`
}

type ScoresUpdateRequest struct {
	Scores     json.RawMessage `json:"scores"`
	TotalScore float64         `json:"totalScore"`
}

type InviteRequest struct {
	ToUserID   string `json:"toUserId"`
	ToName     string `json:"toName"`
	FromUserID string `json:"fromUserId"`
	FromName   string `json:"fromName"`
	Timestamp  int64  `json:"timestamp"`
}

type InviteAnswerRequest struct {
	FromUserID string `json:"fromUserId"`
	ToUserID   string `json:"toUserId"`
}

type SimulationInviteRequest struct {
	ToUserID  string `json:"toUserId"`
	SessionID string `json:"sessionId"`
	StationID string `json:"stationId"`
	MeetLink  string `json:"meetLink"`
	Duration  int    `json:"duration"`
}

// Outbound payloads.

type PartnerUpdatePayload struct {
	Participants []ParticipantInfo `json:"participants"`
}

type PartnerLeftPayload struct {
	Message      string            `json:"message"`
	Participants []ParticipantInfo `json:"participants"`
}

type StartSimulationPayload struct {
	DurationSeconds int `json:"durationSeconds"`
}

type VoiceCallPayload struct {
	Message string `json:"message"`
}

type TimerUpdatePayload struct {
	RemainingSeconds int `json:"remainingSeconds"`
}

type TimerStoppedPayload struct {
	Reason string `json:"reason"`
}

type ReceiveDataPayload struct {
	DataItemID string `json:"dataItemId"`
}

type PEPVisibilityPayload struct {
	ShouldBeVisible bool `json:"shouldBeVisible"`
}

type ScoresPayload struct {
	Scores     json.RawMessage `json:"scores"`
	TotalScore float64         `json:"totalScore"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}

type InviteReceivedPayload struct {
	FromUserID   string `json:"fromUserId,omitempty"`
	FromName     string `json:"fromName,omitempty"`
	Timestamp    int64  `json:"timestamp,omitempty"`
	From         string `json:"from,omitempty"`
	Link         string `json:"link,omitempty"`
	StationTitle string `json:"stationTitle,omitempty"`
	SessionID    string `json:"sessionId,omitempty"`
	Role         string `json:"role,omitempty"`
	Meet         string `json:"meet,omitempty"`
}

type InviteDeclinedPayload struct {
	FromUserID string `json:"fromUserId"`
	ToUserID   string `json:"toUserId"`
}

type SessionStartPayload struct {
	SessionID string   `json:"sessionId"`
	Users     []string `json:"users"`
	StartedAt int64    `json:"startedAt"`
}

// SessionStartedAt converts a wall-clock instant to the millisecond epoch
// the frontend expects in SESSION_START payloads.
func SessionStartedAt(t time.Time) int64 {
	return t.UnixMilli()
}
