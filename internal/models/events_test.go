package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEventWithPayload(t *testing.T) {
	ev := NewEvent(EventTimerUpdate, TimerUpdatePayload{RemainingSeconds: 42})

	raw, err := json.Marshal(ev)
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"TIMER_UPDATE","payload":{"remainingSeconds":42}}`, string(raw))
}

func TestNewEventNilPayloadOmitsField(t *testing.T) {
	ev := NewEvent(EventServerPartnerFound, nil)

	raw, err := json.Marshal(ev)
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"SERVER_PARTNER_FOUND"}`, string(raw))
}

func TestRoleCapabilities(t *testing.T) {
	assert.True(t, RoleActor.CanReleaseData())
	assert.False(t, RoleEvaluator.CanReleaseData())
	assert.False(t, RoleCandidate.CanReleaseData())

	assert.True(t, RoleActor.CanScore())
	assert.True(t, RoleEvaluator.CanScore())
	assert.False(t, RoleCandidate.CanScore())
}

func TestInviteReceivedPayloadShapes(t *testing.T) {
	// Peer-to-peer invites carry the fromUserId shape.
	raw, err := json.Marshal(InviteReceivedPayload{FromUserID: "u1", FromName: "Ana", Timestamp: 99})
	require.NoError(t, err)
	assert.JSONEq(t, `{"fromUserId":"u1","fromName":"Ana","timestamp":99}`, string(raw))

	// Simulation invites carry the link shape; the other fields stay out.
	raw, err = json.Marshal(InviteReceivedPayload{From: "Dra. Ana", Link: "https://x/y", Role: "candidate"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"from":"Dra. Ana","link":"https://x/y","role":"candidate"}`, string(raw))
}

func TestSessionStartedAtIsMillis(t *testing.T) {
	at := time.UnixMilli(1700000000123)
	assert.Equal(t, int64(1700000000123), SessionStartedAt(at))
}
