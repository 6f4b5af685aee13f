package session

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"stemsync/internal/annotation"
	"stemsync/internal/playback"
	"stemsync/internal/platform/metrics"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
)

// Handler exposes session HTTP endpoints using go-chi.
type Handler struct {
	svc      *Service
	log      *slog.Logger
	metrics  *metrics.Metrics
	upgrader websocket.Upgrader
}

// NewHandler returns a Handler that uses the given Service, Logger, and optional Metrics.
// Metrics may be nil to disable metric recording (e.g. in tests).
func NewHandler(svc *Service, log *slog.Logger, m *metrics.Metrics) *Handler {
	return &Handler{
		svc:     svc,
		log:     log,
		metrics: m,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
		},
	}
}

type seekRequest struct {
	Time *float64 `json:"time"`
}

type commentRequest struct {
	Author  string `json:"author"`
	Message string `json:"message"`
}

// Mount handles POST /sessions.
// Body: { "id": "...", "primaryVideoUrl": "...", "stems": [{ "id", "label", "url" }] }.
func (h *Handler) Mount(w http.ResponseWriter, r *http.Request) {
	var src MediaSource
	if err := json.NewDecoder(r.Body).Decode(&src); err != nil {
		h.log.Debug("invalid media source body", slog.String("error", err.Error()))
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	sess, err := h.svc.Mount(src)
	switch {
	case errors.Is(err, ErrMissingMediaID):
		w.WriteHeader(http.StatusBadRequest)
		return
	case errors.Is(err, ErrSessionExists):
		w.WriteHeader(http.StatusConflict)
		return
	case err != nil:
		h.log.Error("mount session failed", slog.String("error", err.Error()))
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusCreated, sess.View())
}

// Unmount handles DELETE /sessions/{media_id}.
func (h *Handler) Unmount(w http.ResponseWriter, r *http.Request) {
	id := MediaID(chi.URLParam(r, "media_id"))
	if err := h.svc.Unmount(id); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetState handles GET /sessions/{media_id}.
func (h *Handler) GetState(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	h.writeJSON(w, http.StatusOK, sess.View())
}

// Play handles POST /sessions/{media_id}/play.
func (h *Handler) Play(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	view, err := sess.Play(r.Context())
	if err != nil {
		// The primary refusing to start is reported in the view, not as a failure.
		h.log.Info("primary play refused",
			slog.String("media_id", string(sess.ID())),
			slog.String("error", err.Error()))
	}
	h.writeJSON(w, http.StatusOK, view)
}

// Pause handles POST /sessions/{media_id}/pause.
func (h *Handler) Pause(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	h.writeJSON(w, http.StatusOK, sess.Pause())
}

// Seek handles POST /sessions/{media_id}/seek.
// Body: { "time": 42.0 }.
func (h *Handler) Seek(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}

	var req seekRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Time == nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	h.writeJSON(w, http.StatusOK, sess.Seek(*req.Time))
}

// SelectRole handles PUT /sessions/{media_id}/role/{role}.
func (h *Handler) SelectRole(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}

	role := playback.Role(chi.URLParam(r, "role"))
	view, err := sess.SelectRole(role)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.log.Debug("role selected",
		slog.String("media_id", string(sess.ID())),
		slog.String("role", string(role)))
	h.writeJSON(w, http.StatusOK, view)
}

// ListComments handles GET /sessions/{media_id}/comments.
func (h *Handler) ListComments(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	h.writeJSON(w, http.StatusOK, sess.Comments())
}

// AddComment handles POST /sessions/{media_id}/comments.
// Body: { "author": "Dana", "message": "..." }. A blank message is
// answered with 204 and nothing is stored.
func (h *Handler) AddComment(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}

	var req commentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	c, added, err := sess.AddComment(r.Context(), req.Author, req.Message)
	if !added {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if err != nil {
		// Kept in the session; the next append retries the write.
		h.log.Warn("comment not persisted",
			slog.String("media_id", string(sess.ID())),
			slog.String("comment_id", c.ID),
			slog.String("error", err.Error()))
	}
	if h.metrics != nil {
		h.metrics.IncCommentsAdded()
	}
	h.writeJSON(w, http.StatusCreated, c)
}

// ActivateComment handles POST /sessions/{media_id}/comments/{comment_id}/activate.
func (h *Handler) ActivateComment(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}

	view, err := sess.ActivateComment(chi.URLParam(r, "comment_id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, view)
}

func (h *Handler) session(w http.ResponseWriter, r *http.Request) (*Session, bool) {
	id := MediaID(chi.URLParam(r, "media_id"))
	if id == "" {
		w.WriteHeader(http.StatusBadRequest)
		return nil, false
	}
	sess, err := h.svc.Session(id)
	if err != nil {
		h.writeError(w, err)
		return nil, false
	}
	return sess, true
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrSessionNotFound),
		errors.Is(err, playback.ErrUnknownRole),
		errors.Is(err, annotation.ErrCommentNotFound):
		w.WriteHeader(http.StatusNotFound)
	case errors.Is(err, playback.ErrRoleUnavailable):
		w.WriteHeader(http.StatusConflict)
	default:
		h.log.Error("request failed", slog.String("error", err.Error()))
		w.WriteHeader(http.StatusInternalServerError)
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.log.Debug("write response failed", slog.String("error", err.Error()))
	}
}
