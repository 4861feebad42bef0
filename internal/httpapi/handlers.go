// Package httpapi serves the REST surface: profile reads backed by the
// cache, admin operations, the AI chat proxy, and runtime metrics.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/taiszocche92-glitch/backend/internal/cache"
	"github.com/taiszocche92-glitch/backend/internal/gateway"
	"github.com/taiszocche92-glitch/backend/internal/profiles"
	"github.com/taiszocche92-glitch/backend/internal/protocol"
	"github.com/taiszocche92-glitch/backend/internal/registry"
	"github.com/taiszocche92-glitch/backend/internal/session"
	"github.com/taiszocche92-glitch/backend/internal/textgen"
)

const maxBatchEditStatusIDs = 50

type Config struct {
	Environment      string
	AdminSecretToken string
}

// ProfileStore is the document-store surface the REST layer reads and
// resets. *profiles.Repository is the production implementation.
type ProfileStore interface {
	GetUser(ctx context.Context, userID string) (json.RawMessage, error)
	ListUsers(ctx context.Context) ([]json.RawMessage, error)
	GetStation(ctx context.Context, stationID string) (json.RawMessage, error)
	ListStations(ctx context.Context) ([]json.RawMessage, error)
	StationEditStatus(ctx context.Context, stationID string) (*profiles.EditStatus, error)
	BatchStationEditStatus(ctx context.Context, stationIDs []string) (map[string]*profiles.EditStatus, error)
	ResetAllUserStats(ctx context.Context) (int64, error)
}

// API bundles the handlers and their collaborators.
type API struct {
	cfg       Config
	repo      ProfileStore
	cache     *cache.Cache
	generator *textgen.Client
	store     *session.Store
	registry  *registry.Registry
	gateway   *gateway.Handler
	clock     func() time.Time
	startedAt time.Time
}

func New(cfg Config, repo ProfileStore, c *cache.Cache, gen *textgen.Client,
	store *session.Store, reg *registry.Registry, gw *gateway.Handler) *API {
	return &API{
		cfg:       cfg,
		repo:      repo,
		cache:     c,
		generator: gen,
		store:     store,
		registry:  reg,
		gateway:   gw,
		clock:     time.Now,
		startedAt: time.Now(),
	}
}

// RegisterRoutes mounts every REST endpoint on mux.
func (a *API) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", a.handleHealth)
	mux.HandleFunc("GET /ready", a.handleReady)
	mux.HandleFunc("GET /api/users", a.handleListUsers)
	mux.HandleFunc("GET /api/users/{userId}", a.handleGetUser)
	mux.HandleFunc("GET /api/stations/download-json", a.handleDownloadStations)
	mux.HandleFunc("GET /api/stations/{stationId}/download-json", a.handleDownloadStation)
	mux.HandleFunc("GET /api/stations/{stationId}/edit-status", a.handleEditStatus)
	mux.HandleFunc("POST /api/stations/batch-edit-status", a.handleBatchEditStatus)
	mux.HandleFunc("POST /api/cache/invalidate", a.handleInvalidateCache)
	mux.HandleFunc("POST /api/create-session", a.handleCreateSession)
	mux.HandleFunc("POST /api/ai-chat", a.handleAIChat)
	mux.HandleFunc("POST /api/admin/reset-all-user-stats", a.handleResetAllUserStats)
	mux.HandleFunc("GET /debug/metrics", a.handleMetrics)
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	// Production health probes only care about the status code.
	if a.cfg.Environment == "production" {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"uptime": a.clock().Sub(a.startedAt).String(),
	})
}

func (a *API) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := a.cache.Ping(ctx); err != nil {
		writeError(w, http.StatusServiceUnavailable, "cache unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (a *API) handleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := cache.GetOrFetch(r.Context(), a.cache, cache.TypeUser, cache.Key(cache.TypeUser, "all"),
		func(ctx context.Context) ([]json.RawMessage, error) {
			return a.repo.ListUsers(ctx)
		})
	if err != nil {
		log.Error().Err(err).Msg("failed to list users")
		writeError(w, http.StatusInternalServerError, "failed to list users")
		return
	}
	if users == nil {
		users = []json.RawMessage{}
	}
	writeJSON(w, http.StatusOK, users)
}

func (a *API) handleGetUser(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("userId")
	user, err := cache.GetOrFetch(r.Context(), a.cache, cache.TypeUser, cache.Key(cache.TypeUser, userID),
		func(ctx context.Context) (json.RawMessage, error) {
			return a.repo.GetUser(ctx, userID)
		})
	if errors.Is(err, profiles.ErrNotFound) {
		writeError(w, http.StatusNotFound, "user not found")
		return
	}
	if err != nil {
		log.Error().Err(err).Str("user_id", userID).Msg("failed to get user")
		writeError(w, http.StatusInternalServerError, "failed to get user")
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (a *API) handleDownloadStations(w http.ResponseWriter, r *http.Request) {
	stations, err := a.repo.ListStations(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("failed to list stations")
		writeError(w, http.StatusInternalServerError, "failed to list stations")
		return
	}
	if stations == nil {
		stations = []json.RawMessage{}
	}
	w.Header().Set("Content-Disposition", `attachment; filename="stations.json"`)
	writeJSON(w, http.StatusOK, stations)
}

func (a *API) handleDownloadStation(w http.ResponseWriter, r *http.Request) {
	stationID := r.PathValue("stationId")
	station, err := a.repo.GetStation(r.Context(), stationID)
	if errors.Is(err, profiles.ErrNotFound) {
		writeError(w, http.StatusNotFound, "station not found")
		return
	}
	if err != nil {
		log.Error().Err(err).Str("station_id", stationID).Msg("failed to get station")
		writeError(w, http.StatusInternalServerError, "failed to get station")
		return
	}
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="station-%s.json"`, stationID))
	writeJSON(w, http.StatusOK, station)
}

func (a *API) handleEditStatus(w http.ResponseWriter, r *http.Request) {
	stationID := r.PathValue("stationId")
	status, err := cache.GetOrFetch(r.Context(), a.cache, cache.TypeEditStatus,
		cache.Key(cache.TypeEditStatus, stationID),
		func(ctx context.Context) (*profiles.EditStatus, error) {
			return a.repo.StationEditStatus(ctx, stationID)
		})
	if err != nil {
		log.Error().Err(err).Str("station_id", stationID).Msg("failed to read edit status")
		writeError(w, http.StatusInternalServerError, "failed to read edit status")
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func (a *API) handleBatchEditStatus(w http.ResponseWriter, r *http.Request) {
	var req struct {
		StationIDs []string `json:"stationIds"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.StationIDs) == 0 {
		writeError(w, http.StatusBadRequest, "stationIds is required")
		return
	}
	if len(req.StationIDs) > maxBatchEditStatusIDs {
		writeError(w, http.StatusBadRequest,
			fmt.Sprintf("at most %d station ids per request", maxBatchEditStatusIDs))
		return
	}

	results := make(map[string]*profiles.EditStatus, len(req.StationIDs))
	var uncached []string
	for _, id := range req.StationIDs {
		var status profiles.EditStatus
		if err := a.cache.Get(r.Context(), cache.Key(cache.TypeEditStatus, id), &status); err == nil {
			results[id] = &status
		} else {
			uncached = append(uncached, id)
		}
	}

	if len(uncached) > 0 {
		fetched, err := a.repo.BatchStationEditStatus(r.Context(), uncached)
		if err != nil {
			// Degrade to "never edited" rather than failing the batch.
			log.Error().Err(err).Msg("failed to batch-read edit status")
			for _, id := range uncached {
				results[id] = &profiles.EditStatus{LastEdited: json.RawMessage("null")}
			}
		} else {
			for id, status := range fetched {
				results[id] = status
				if err := a.cache.Set(r.Context(), cache.TypeEditStatus,
					cache.Key(cache.TypeEditStatus, id), status); err != nil {
					log.Warn().Err(err).Str("station_id", id).Msg("cache write failed")
				}
			}
		}
	}
	writeJSON(w, http.StatusOK, results)
}

func (a *API) handleInvalidateCache(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Type  string `json:"type"`
		Param string `json:"param"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	switch req.Type {
	case cache.TypeUser, cache.TypeStation, cache.TypeEditStatus:
	default:
		writeError(w, http.StatusBadRequest, "type must be user, station or editStatus")
		return
	}

	var err error
	if req.Param != "" {
		err = a.cache.Delete(r.Context(), cache.Key(req.Type, req.Param))
	} else {
		err = a.cache.DeleteByType(r.Context(), req.Type)
	}
	if err != nil {
		log.Error().Err(err).Str("type", req.Type).Msg("failed to invalidate cache")
		writeError(w, http.StatusInternalServerError, "failed to invalidate cache")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"invalidated": req.Type, "param": req.Param})
}

func (a *API) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	sessionID := protocol.NewSessionID(a.clock())
	log.Info().Str("session_id", sessionID).Msg("session id issued")
	writeJSON(w, http.StatusOK, map[string]string{"sessionId": sessionID})
}

// handleAIChat answers as the station's virtual patient: the station
// document is read through the cache and grounds the prompt, so the model
// only ever speaks from the actor script and checklist of that station.
func (a *API) handleAIChat(w http.ResponseWriter, r *http.Request) {
	var req struct {
		StationID           string                `json:"stationId"`
		Message             string                `json:"message"`
		ConversationHistory []textgen.ChatMessage `json:"conversationHistory"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		writeError(w, http.StatusBadRequest, "message is required")
		return
	}
	if req.StationID == "" {
		writeError(w, http.StatusBadRequest, "stationId is required")
		return
	}

	station, err := cache.GetOrFetch(r.Context(), a.cache, cache.TypeStation,
		cache.Key(cache.TypeStation, req.StationID),
		func(ctx context.Context) (json.RawMessage, error) {
			return a.repo.GetStation(ctx, req.StationID)
		})
	if errors.Is(err, profiles.ErrNotFound) {
		writeError(w, http.StatusNotFound, "station not found")
		return
	}
	if err != nil {
		log.Error().Err(err).Str("station_id", req.StationID).Msg("failed to load station for chat")
		writeError(w, http.StatusInternalServerError, "failed to load station")
		return
	}

	prompt := textgen.BuildPatientPrompt(station, req.ConversationHistory, req.Message)
	text, err := a.generator.Generate(r.Context(), prompt)
	if errors.Is(err, textgen.ErrNoKeysAvailable) {
		writeError(w, http.StatusServiceUnavailable, "text generation temporarily unavailable")
		return
	}
	if err != nil {
		log.Error().Err(err).Msg("text generation failed")
		writeError(w, http.StatusBadGateway, "text generation failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": text})
}

func (a *API) handleResetAllUserStats(w http.ResponseWriter, r *http.Request) {
	if a.cfg.AdminSecretToken == "" {
		writeError(w, http.StatusServiceUnavailable, "admin operations disabled")
		return
	}
	token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok || token != a.cfg.AdminSecretToken {
		writeError(w, http.StatusUnauthorized, "invalid admin token")
		return
	}

	affected, err := a.repo.ResetAllUserStats(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("failed to reset user stats")
		writeError(w, http.StatusInternalServerError, "failed to reset user stats")
		return
	}
	if err := a.cache.DeleteByType(r.Context(), cache.TypeUser); err != nil {
		log.Warn().Err(err).Msg("failed to invalidate user cache after reset")
	}
	log.Info().Int64("users", affected).Msg("reset all user statistics")
	writeJSON(w, http.StatusOK, map[string]any{"usersReset": affected})
}

func (a *API) handleMetrics(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"uptime":         a.clock().Sub(a.startedAt).String(),
		"sessions":       a.store.Count(),
		"connectedUsers": a.registry.Size(),
		"gateway":        a.gateway.Stats(),
		"cache":          a.cache.Stats(),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("failed to encode response")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
