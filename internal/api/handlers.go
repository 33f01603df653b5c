package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"dpterminal/internal/domain/session"
	"dpterminal/internal/domain/thumbnail"
	"dpterminal/internal/services/dispatch"
	"dpterminal/pkg/errors"
	"dpterminal/pkg/logger"
)

// Dispatcher handles one chat message
type Dispatcher interface {
	Handle(ctx context.Context, message, personalityKey string, publish bool) dispatch.Envelope
}

// Sessions stores the per-session personality selection
type Sessions interface {
	ActivePersonality(ctx context.Context, sessionID string) string
	SelectPersonality(ctx context.Context, sessionID, key string) error
	Personalities() []string
}

type chatRequest struct {
	Message string `json:"message"`
	Tweet   bool   `json:"tweet"`
}

type personalityRequest struct {
	Personality string `json:"personality"`
}

type handlers struct {
	dispatcher   Dispatcher
	sessions     Sessions
	thumbnails   thumbnail.Repository
	maxBodyBytes int64
	log          *logger.Logger
}

// decode reads a bounded JSON body into v
func (h *handlers) decode(w http.ResponseWriter, r *http.Request, v interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return errors.Wrap(errors.ErrInvalidInput, err.Error())
	}
	return nil
}

func (h *handlers) chat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := h.decode(w, r, &req); err != nil || strings.TrimSpace(req.Message) == "" {
		writeError(w, http.StatusBadRequest, "No message")
		return
	}

	ctx := r.Context()
	key := h.sessions.ActivePersonality(ctx, session.IDFromContext(ctx))
	env := h.dispatcher.Handle(ctx, req.Message, key, req.Tweet)

	writeJSON(w, http.StatusOK, env)
}

func (h *handlers) setPersonality(w http.ResponseWriter, r *http.Request) {
	var req personalityRequest
	if err := h.decode(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Missing personality")
		return
	}

	ctx := r.Context()
	err := h.sessions.SelectPersonality(ctx, session.IDFromContext(ctx), req.Personality)
	if err != nil {
		var verr *errors.ValidationError
		if errors.As(err, &verr) {
			writeError(w, http.StatusBadRequest, verr.Message)
			return
		}
		h.log.Errorw("Failed to select personality", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to save personality")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "Active personality: " + req.Personality})
}

func (h *handlers) personalities(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"personalities": h.sessions.Personalities(),
		"active":        h.sessions.ActivePersonality(ctx, session.IDFromContext(ctx)),
	})
}

func (h *handlers) thumbnail(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	thumb, err := h.thumbnails.Get(r.Context(), id)
	if err != nil {
		if !errors.Is(err, errors.ErrNotFound) {
			h.log.Warnw("Failed to load thumbnail", "id", id, "error", err)
		}
		writeError(w, http.StatusNotFound, "Not found")
		return
	}

	w.Header().Set("Content-Type", thumb.ContentType)
	w.Header().Set("Cache-Control", "public, max-age=3600")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(thumb.Data)
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, message string) {
	writeJSON(w, code, map[string]string{"error": message})
}
