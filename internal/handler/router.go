package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
)

// NewRouter builds the full route tree. Every request context is bounded by
// requestTimeout, which in turn bounds the transaction it runs.
func NewRouter(h *Handler, log *slog.Logger, requestTimeout time.Duration) http.Handler {
	r := chi.NewRouter()

	// Global middleware stack
	r.Use(chimiddleware.Recoverer) // recover from panics, return 500
	r.Use(chimiddleware.RequestID) // attach request IDs
	r.Use(chimiddleware.RealIP)    // trust X-Forwarded-For
	r.Use(Logger(log))             // structured access log
	r.Use(CORS)
	r.Use(chimiddleware.Timeout(requestTimeout))

	// Health
	r.Get("/health", HealthCheck)

	// Organizer API
	r.Route("/events", func(r chi.Router) {
		r.Use(Actor)
		r.Post("/", h.CreateEvent)
		r.Get("/", h.ListEvents)

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.GetEvent)
			r.Put("/", h.UpdateEvent)
			r.Get("/conflicts", h.Conflicts)
			r.Get("/activities", h.Activities)

			// Public self-registration
			r.Post("/register", h.Register)

			r.Route("/participants", func(r chi.Router) {
				r.Post("/", h.AddParticipant)
				r.Get("/", h.ListParticipants)
				r.Post("/import", h.ImportParticipants)
				r.Get("/{pid}", h.GetParticipant)
				r.Put("/{pid}", h.UpdateParticipant)
				r.Delete("/{pid}", h.DeleteParticipant)
				r.Put("/{pid}/position", h.ReorderParticipant)
			})
		})
	})

	// Participant self-service, authorized by the token alone
	r.Route("/rsvp/{token}", func(r chi.Router) {
		r.Get("/", h.LookupRSVP)
		r.Post("/respond", h.RespondRSVP)
		r.Post("/cancel", h.CancelRSVP)
	})

	return r
}
