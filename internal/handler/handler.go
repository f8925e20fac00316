// Package handler contains chi HTTP handlers that translate HTTP
// requests/responses to and from the service layer.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strings"

	"github.com/Shivanand-hulikatti/eventreg/internal/model"
	"github.com/Shivanand-hulikatti/eventreg/internal/service"
	"github.com/go-chi/chi/v5"
)

// Handler holds all HTTP handlers for the registration API.
type Handler struct {
	svc            *service.Services
	log            *slog.Logger
	maxImportBytes int64
}

// New constructs a Handler. maxImportBytes bounds an uploaded CSV.
func New(svc *service.Services, maxImportBytes int64, log *slog.Logger) *Handler {
	return &Handler{svc: svc, log: log, maxImportBytes: maxImportBytes}
}

// ─── Helper utilities ─────────────────────────────────────────────────────────

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, model.ErrorResponse{Error: msg})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20) // 1 MB limit
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

// status maps a service error onto an HTTP status and the message shown to
// the client. notFound is the message used for model.ErrNotFound so callers
// control what a miss reveals.
func (h *Handler) status(r *http.Request, err error, notFound string) (int, string) {
	switch {
	case errors.Is(err, model.ErrNotFound):
		return http.StatusNotFound, notFound
	case errors.Is(err, model.ErrConflict):
		return http.StatusConflict, model.ErrConflict.Error()
	case errors.Is(err, model.ErrValidation):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, model.ErrInvalidState):
		return http.StatusUnprocessableEntity, err.Error()
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable, "request timed out"
	default:
		h.log.ErrorContext(r.Context(), "request failed",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)
		return http.StatusInternalServerError, "internal server error"
	}
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error, notFound string) {
	code, msg := h.status(r, err, notFound)
	writeError(w, code, msg)
}

// ─── Events ───────────────────────────────────────────────────────────────────

// CreateEvent handles POST /events
func (h *Handler) CreateEvent(w http.ResponseWriter, r *http.Request) {
	var req model.CreateEventRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	event, err := h.svc.Events.Create(r.Context(), req)
	if err != nil {
		h.fail(w, r, err, "event not found")
		return
	}

	writeJSON(w, http.StatusCreated, event)
}

// ListEvents handles GET /events
func (h *Handler) ListEvents(w http.ResponseWriter, r *http.Request) {
	events, err := h.svc.Events.List(r.Context())
	if err != nil {
		h.fail(w, r, err, "event not found")
		return
	}
	writeJSON(w, http.StatusOK, events)
}

// GetEvent handles GET /events/{id}
// Returns the event with its attending, waitlisted and remaining counts.
func (h *Handler) GetEvent(w http.ResponseWriter, r *http.Request) {
	summary, err := h.svc.Events.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err, "event not found")
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// UpdateEvent handles PUT /events/{id}
func (h *Handler) UpdateEvent(w http.ResponseWriter, r *http.Request) {
	var req model.UpdateEventRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	event, err := h.svc.Events.Update(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		h.fail(w, r, err, "event not found")
		return
	}
	writeJSON(w, http.StatusOK, event)
}

// Conflicts handles GET /events/{id}/conflicts
func (h *Handler) Conflicts(w http.ResponseWriter, r *http.Request) {
	events, err := h.svc.Events.Conflicts(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err, "event not found")
		return
	}
	writeJSON(w, http.StatusOK, events)
}

// Activities handles GET /events/{id}/activities
func (h *Handler) Activities(w http.ResponseWriter, r *http.Request) {
	acts, err := h.svc.Events.Activities(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err, "event not found")
		return
	}
	writeJSON(w, http.StatusOK, acts)
}

// ─── Registration ─────────────────────────────────────────────────────────────

// Register handles POST /events/{id}/register
// Public self-registration: attending while seats remain, waitlisted after.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req model.RegisterRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	// Self-registrants are anonymous; an X-User-ID header does not name them.
	ctx := service.WithActor(r.Context(), service.ActorPublic)
	p, err := h.svc.Engine.Register(ctx, chi.URLParam(r, "id"), service.Candidate{
		Name:     req.Name,
		Email:    req.Email,
		Company:  req.Company,
		Category: req.Category,
	}, service.SourcePublic)
	if err != nil {
		h.fail(w, r, err, "event not found")
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

// ─── Participants ─────────────────────────────────────────────────────────────

// AddParticipant handles POST /events/{id}/participants
func (h *Handler) AddParticipant(w http.ResponseWriter, r *http.Request) {
	var req model.RegisterRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	p, err := h.svc.Participants.Add(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		h.fail(w, r, err, "event not found")
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

// ListParticipants handles GET /events/{id}/participants?status=
func (h *Handler) ListParticipants(w http.ResponseWriter, r *http.Request) {
	ps, err := h.svc.Participants.List(r.Context(), chi.URLParam(r, "id"), r.URL.Query().Get("status"))
	if err != nil {
		h.fail(w, r, err, "event not found")
		return
	}
	writeJSON(w, http.StatusOK, ps)
}

// GetParticipant handles GET /events/{id}/participants/{pid}
func (h *Handler) GetParticipant(w http.ResponseWriter, r *http.Request) {
	p, err := h.svc.Participants.Get(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "pid"))
	if err != nil {
		h.fail(w, r, err, "participant not found")
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// UpdateParticipant handles PUT /events/{id}/participants/{pid}
func (h *Handler) UpdateParticipant(w http.ResponseWriter, r *http.Request) {
	var req model.UpdateParticipantRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	p, err := h.svc.Participants.Update(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "pid"), req)
	if err != nil {
		h.fail(w, r, err, "participant not found")
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// ReorderParticipant handles PUT /events/{id}/participants/{pid}/position
func (h *Handler) ReorderParticipant(w http.ResponseWriter, r *http.Request) {
	var req model.ReorderRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	p, err := h.svc.Participants.Reorder(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "pid"), req.QueuePosition)
	if err != nil {
		h.fail(w, r, err, "participant not found")
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// DeleteParticipant handles DELETE /events/{id}/participants/{pid}
func (h *Handler) DeleteParticipant(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Participants.Delete(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "pid")); err != nil {
		h.fail(w, r, err, "participant not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ImportParticipants handles POST /events/{id}/participants/import
// Accepts a multipart upload in the "file" field or a raw text/csv body.
func (h *Handler) ImportParticipants(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxImportBytes)

	var src io.Reader = r.Body
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if strings.HasPrefix(mediaType, "multipart/") {
		file, _, err := r.FormFile("file")
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				writeError(w, http.StatusRequestEntityTooLarge, "import file is too large")
				return
			}
			writeError(w, http.StatusBadRequest, "multipart upload must carry a \"file\" field")
			return
		}
		defer file.Close()
		src = file
	}

	res, err := h.svc.Importer.Import(r.Context(), chi.URLParam(r, "id"), src)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "import file is too large")
			return
		}
		if res == nil {
			h.fail(w, r, err, "event not found")
			return
		}
		// Rows before the failure are already committed.
		code, msg := h.status(r, err, "event not found")
		writeJSON(w, code, model.ImportFailure{Error: msg, Result: res})
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// ─── RSVP ─────────────────────────────────────────────────────────────────────

// rsvpNotFound is the only thing an unknown token reveals.
const rsvpNotFound = "link invalid or expired"

// LookupRSVP handles GET /rsvp/{token}
func (h *Handler) LookupRSVP(w http.ResponseWriter, r *http.Request) {
	view, err := h.svc.RSVP.Lookup(r.Context(), chi.URLParam(r, "token"))
	if err != nil {
		h.fail(w, r, err, rsvpNotFound)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// RespondRSVP handles POST /rsvp/{token}/respond
func (h *Handler) RespondRSVP(w http.ResponseWriter, r *http.Request) {
	var req model.RespondRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	p, err := h.svc.RSVP.Respond(r.Context(), chi.URLParam(r, "token"), req)
	if err != nil {
		h.fail(w, r, err, rsvpNotFound)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// CancelRSVP handles POST /rsvp/{token}/cancel
func (h *Handler) CancelRSVP(w http.ResponseWriter, r *http.Request) {
	p, err := h.svc.RSVP.Cancel(r.Context(), chi.URLParam(r, "token"))
	if err != nil {
		h.fail(w, r, err, rsvpNotFound)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// ─── Health check ─────────────────────────────────────────────────────────────

// HealthCheck handles GET /health
func HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
