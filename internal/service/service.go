// Package service implements the participant lifecycle: registration,
// RSVP responses, waitlist management, organizer edits, and bulk import.
// Every mutation of an event's roster runs inside the store's per-event lock,
// so capacity checks and queue renumbering are atomic with respect to other
// writers on the same event.
package service

import (
	"context"
	"log/slog"
	"net/mail"
	"sort"
	"strings"
	"time"

	"github.com/Shivanand-hulikatti/eventreg/internal/model"
	"github.com/Shivanand-hulikatti/eventreg/internal/repository"
	"github.com/google/uuid"
)

// Actors recorded on activities when the caller does not name one.
const (
	ActorOrganizer   = "organizer"
	ActorParticipant = "participant"
	ActorPublic      = "public"
	ActorImport      = "import"
)

type actorKey struct{}

// WithActor attaches the acting user to ctx. Activities written during the
// request carry it as created_by.
func WithActor(ctx context.Context, actor string) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

func actorFrom(ctx context.Context, fallback string) string {
	if a, ok := ctx.Value(actorKey{}).(string); ok && a != "" {
		return a
	}
	return fallback
}

// core holds what every service needs. Tests override the clock and the
// generators to get deterministic output.
type core struct {
	store    repository.Store
	log      *slog.Logger
	now      func() time.Time
	newID    func() string
	newToken func() string
}

func newCore(store repository.Store, log *slog.Logger) core {
	if log == nil {
		log = slog.Default()
	}
	return core{
		store:    store,
		log:      log,
		now:      func() time.Time { return time.Now().UTC() },
		newID:    uuid.NewString,
		newToken: newRSVPToken,
	}
}

// newRSVPToken returns 32 hex characters from a random UUID.
func newRSVPToken() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// withRoster runs fn against the event's roster under the event lock and
// flushes the result. Any error rolls the whole transaction back.
func (c *core) withRoster(ctx context.Context, eventID, actor string, fn func(r *roster) error) error {
	return c.store.WithEventLock(ctx, eventID, func(tx repository.EventTx) error {
		r, err := loadRoster(ctx, tx, c.now(), actor)
		if err != nil {
			return err
		}
		if err := fn(r); err != nil {
			return err
		}
		return r.flush(ctx)
	})
}

// validEmail accepts a bare addr-spec with a dotted domain.
func validEmail(email string) bool {
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Name != "" || addr.Address != email {
		return false
	}
	at := strings.LastIndexByte(email, '@')
	return at > 0 && strings.Contains(email[at+1:], ".")
}

func cleanOptional(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	return &v
}

func validateIdentity(name, email string) error {
	if name == "" {
		return model.Validationf("name is required")
	}
	if email == "" {
		return model.Validationf("email is required")
	}
	if !validEmail(email) {
		return model.Validationf("email %q is not a valid email address", email)
	}
	return nil
}

func sameDate(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}

func sortByQueue(ps []model.Participant) {
	sort.SliceStable(ps, func(i, j int) bool {
		return ps[i].Position() < ps[j].Position()
	})
}

// Services bundles the lifecycle services over one store.
type Services struct {
	Engine       *Engine
	Events       *EventService
	Participants *ParticipantService
	RSVP         *RSVPService
	Importer     *Importer
}

// New wires every service over store.
func New(store repository.Store, importMaxRows int, log *slog.Logger) *Services {
	engine := NewEngine(store, log)
	return &Services{
		Engine:       engine,
		Events:       NewEventService(store, log),
		Participants: NewParticipantService(store, engine, log),
		RSVP:         NewRSVPService(store, log),
		Importer:     NewImporter(store, engine, importMaxRows, log),
	}
}
