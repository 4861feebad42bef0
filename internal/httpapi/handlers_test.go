package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taiszocche92-glitch/backend/internal/cache"
	"github.com/taiszocche92-glitch/backend/internal/events"
	"github.com/taiszocche92-glitch/backend/internal/gateway"
	"github.com/taiszocche92-glitch/backend/internal/profiles"
	"github.com/taiszocche92-glitch/backend/internal/protocol"
	"github.com/taiszocche92-glitch/backend/internal/registry"
	"github.com/taiszocche92-glitch/backend/internal/session"
	"github.com/taiszocche92-glitch/backend/internal/textgen"
)

// stubProfiles serves canned station documents. Everything else reports
// not found.
type stubProfiles struct {
	stations map[string]json.RawMessage
}

func (s *stubProfiles) GetUser(ctx context.Context, userID string) (json.RawMessage, error) {
	return nil, profiles.ErrNotFound
}

func (s *stubProfiles) ListUsers(ctx context.Context) ([]json.RawMessage, error) {
	return nil, nil
}

func (s *stubProfiles) GetStation(ctx context.Context, stationID string) (json.RawMessage, error) {
	if doc, ok := s.stations[stationID]; ok {
		return doc, nil
	}
	return nil, profiles.ErrNotFound
}

func (s *stubProfiles) ListStations(ctx context.Context) ([]json.RawMessage, error) {
	return nil, nil
}

func (s *stubProfiles) StationEditStatus(ctx context.Context, stationID string) (*profiles.EditStatus, error) {
	return nil, profiles.ErrNotFound
}

func (s *stubProfiles) BatchStationEditStatus(ctx context.Context, stationIDs []string) (map[string]*profiles.EditStatus, error) {
	return map[string]*profiles.EditStatus{}, nil
}

func (s *stubProfiles) ResetAllUserStats(ctx context.Context) (int64, error) {
	return 0, nil
}

func newTestAPI(t *testing.T, cfg Config) http.Handler {
	return newTestAPIWith(t, cfg, &stubProfiles{}, nil)
}

func newTestAPIWith(t *testing.T, cfg Config, repo ProfileStore, gen *textgen.Client) http.Handler {
	t.Helper()
	clock := clockwork.NewFakeClock()
	reg := registry.New()
	store := session.NewStore(clock, 2*time.Hour)
	engine := protocol.NewEngine(reg, store, events.Noop{}, clock, protocol.Config{})
	gw := gateway.NewHandler(gateway.DefaultConnectionConfig(), engine)

	api := New(cfg, repo, cache.New(cache.DefaultConfig()), gen, store, reg, gw)
	mux := http.NewServeMux()
	api.RegisterRoutes(mux)
	return mux
}

func doRequest(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealthInDevelopment(t *testing.T) {
	h := newTestAPI(t, Config{Environment: "development"})

	rec := doRequest(t, h, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
}

func TestHealthInProductionIsBodyless(t *testing.T) {
	h := newTestAPI(t, Config{Environment: "production"})

	rec := doRequest(t, h, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, rec.Body.String())
}

func TestCreateSessionIssuesParsableID(t *testing.T) {
	h := newTestAPI(t, Config{})

	rec := doRequest(t, h, http.MethodPost, "/api/create-session", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Regexp(t, `^session_\d+_.{5}$`, body["sessionId"])
}

func TestBatchEditStatusRejectsEmptyList(t *testing.T) {
	h := newTestAPI(t, Config{})

	rec := doRequest(t, h, http.MethodPost, "/api/stations/batch-edit-status", `{"stationIds":[]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestBatchEditStatusRejectsOversizedList(t *testing.T) {
	h := newTestAPI(t, Config{})

	ids := make([]string, maxBatchEditStatusIDs+1)
	for i := range ids {
		ids[i] = "station"
	}
	payload, err := json.Marshal(map[string][]string{"stationIds": ids})
	require.NoError(t, err)

	rec := doRequest(t, h, http.MethodPost, "/api/stations/batch-edit-status", string(payload))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestBatchEditStatusRejectsMalformedBody(t *testing.T) {
	h := newTestAPI(t, Config{})

	rec := doRequest(t, h, http.MethodPost, "/api/stations/batch-edit-status", `not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAIChatRequiresMessage(t *testing.T) {
	h := newTestAPI(t, Config{})

	rec := doRequest(t, h, http.MethodPost, "/api/ai-chat", `{"stationId":"st-1","message":"  "}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAIChatRequiresStation(t *testing.T) {
	h := newTestAPI(t, Config{})

	rec := doRequest(t, h, http.MethodPost, "/api/ai-chat", `{"message":"qual a sua queixa?"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAIChatUnknownStationIsNotFound(t *testing.T) {
	h := newTestAPI(t, Config{})

	rec := doRequest(t, h, http.MethodPost, "/api/ai-chat", `{"stationId":"missing","message":"olá"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAIChatGroundsPromptOnStation(t *testing.T) {
	var prompt string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Contents []struct {
				Parts []struct {
					Text string `json:"text"`
				} `json:"parts"`
			} `json:"contents"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.NotEmpty(t, req.Contents)
		require.NotEmpty(t, req.Contents[0].Parts)
		prompt = req.Contents[0].Parts[0].Text
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"Dói no peito, doutor."}]}}]}`))
	}))
	defer srv.Close()

	t.Setenv("GOOGLE_API_KEY_1", "test-key")
	gen := textgen.NewClient(textgen.NewKeyManagerFromEnv(), textgen.Config{BaseURL: srv.URL})
	repo := &stubProfiles{stations: map[string]json.RawMessage{
		"st-chest": json.RawMessage(`{
			"informacoesEssenciais": {"titulo": "Dor Torácica", "contextoClinico": "Pronto atendimento."},
			"materiaisDisponiveis": {"informacoesVerbaisSimulado": [
				{"contextoOuPerguntaChave": "Queixa principal", "informacao": "Dor no peito há duas horas."}
			]}
		}`),
	}}
	h := newTestAPIWith(t, Config{}, repo, gen)

	rec := doRequest(t, h, http.MethodPost, "/api/ai-chat",
		`{"stationId":"st-chest","message":"o que o senhor sente?","conversationHistory":[{"sender":"user","message":"bom dia"},{"sender":"ai","message":"bom dia, doutor"}]}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "Dói no peito, doutor.", body["message"])

	assert.Contains(t, prompt, "Estação: Dor Torácica")
	assert.Contains(t, prompt, "Queixa principal: Dor no peito há duas horas.")
	assert.Contains(t, prompt, "Paciente: bom dia, doutor")
	assert.Contains(t, prompt, `PERGUNTA ATUAL DO MÉDICO: "o que o senhor sente?"`)
}

func TestCacheInvalidateRejectsUnknownType(t *testing.T) {
	h := newTestAPI(t, Config{})

	rec := doRequest(t, h, http.MethodPost, "/api/cache/invalidate", `{"type":"everything"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAdminResetDisabledWithoutToken(t *testing.T) {
	h := newTestAPI(t, Config{})

	rec := doRequest(t, h, http.MethodPost, "/api/admin/reset-all-user-stats", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestAdminResetRejectsWrongToken(t *testing.T) {
	h := newTestAPI(t, Config{AdminSecretToken: "secret"})

	req := httptest.NewRequest(http.MethodPost, "/api/admin/reset-all-user-stats", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestMetricsReportsRuntimeCounters(t *testing.T) {
	h := newTestAPI(t, Config{})

	rec := doRequest(t, h, http.MethodGet, "/debug/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Contains(t, body, "uptime")
	assert.Contains(t, body, "sessions")
	assert.Contains(t, body, "connectedUsers")
	assert.Contains(t, body, "gateway")
	assert.Contains(t, body, "cache")
}
