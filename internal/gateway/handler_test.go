package gateway

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/taiszocche92-glitch/backend/internal/models"
)

func TestMetaFromQuery(t *testing.T) {
	req := httptest.NewRequest("GET",
		"/ws?sessionId=sess-1&userId=u1&role=actor&stationId=st-1&displayName=Bruno", nil)

	meta := metaFromQuery(req)
	assert.Equal(t, models.ConnectMeta{
		SessionID:   "sess-1",
		UserID:      "u1",
		Role:        models.RoleActor,
		StationID:   "st-1",
		DisplayName: "Bruno",
	}, meta)
	assert.True(t, meta.WantsSession())
	assert.True(t, meta.Complete())
}

func TestMetaFromQueryInviteOnlyPeer(t *testing.T) {
	req := httptest.NewRequest("GET", "/ws?userId=u1", nil)

	meta := metaFromQuery(req)
	assert.False(t, meta.WantsSession())
	assert.False(t, meta.Complete())
	assert.Equal(t, "u1", meta.UserID)
}

func TestMetaFromQueryPartialSessionFields(t *testing.T) {
	req := httptest.NewRequest("GET", "/ws?sessionId=sess-1&userId=u1", nil)

	meta := metaFromQuery(req)
	assert.True(t, meta.WantsSession())
	assert.False(t, meta.Complete())
}
