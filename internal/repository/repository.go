// Package repository persists events, participants and the activity log.
//
// Every state change to an event's participants goes through
// Store.WithEventLock, which runs a callback inside one transaction holding
// an exclusive, event-scoped lock. Within that callback the caller sees a
// consistent arena of the event's participant rows; concurrent callers for
// the same event wait, callers for other events do not.
//
// Three backends implement Store: PostgresStore (pgx, SELECT ... FOR UPDATE
// on the event row), SQLiteStore (single immediate-mode writer) and
// MemoryStore (per-event mutex with staged commits).
package repository

import (
	"context"

	"github.com/Shivanand-hulikatti/eventreg/internal/model"
)

// ParticipantFilter narrows ListParticipants. Zero values match everything.
type ParticipantFilter struct {
	Status model.Status
}

// Store is the persistence contract used by the service layer.
type Store interface {
	CreateEvent(ctx context.Context, e *model.Event) error
	GetEvent(ctx context.Context, id string) (*model.Event, error)
	ListEvents(ctx context.Context) ([]model.Event, error)

	GetParticipant(ctx context.Context, eventID, id string) (*model.Participant, error)
	ListParticipants(ctx context.Context, eventID string, filter ParticipantFilter) ([]model.Participant, error)
	ParticipantByToken(ctx context.Context, token string) (*model.Participant, error)

	AppendActivity(ctx context.Context, a *model.Activity) error
	ListActivities(ctx context.Context, eventID string) ([]model.Activity, error)

	// WithEventLock runs fn in a transaction that holds the event's lock.
	// A non-nil error from fn, a failed commit or a cancelled ctx leaves
	// stored state untouched. Unknown events yield model.ErrNotFound.
	WithEventLock(ctx context.Context, eventID string, fn func(tx EventTx) error) error
}

// EventTx is the view of one locked event inside WithEventLock.
type EventTx interface {
	// Event returns the locked event snapshot.
	Event() *model.Event
	UpdateEvent(ctx context.Context, e *model.Event) error

	// Participants returns every participant of the event ordered by
	// creation. The returned records are the caller's to mutate; changes
	// are persisted only through UpdateParticipant.
	Participants(ctx context.Context) ([]*model.Participant, error)
	InsertParticipant(ctx context.Context, p *model.Participant) error
	UpdateParticipant(ctx context.Context, p *model.Participant) error
	DeleteParticipant(ctx context.Context, id string) error

	AppendActivity(ctx context.Context, a *model.Activity) error
}

// scanner is satisfied by pgx.Row, pgx.Rows, *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}
