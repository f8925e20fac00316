package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Shivanand-hulikatti/eventreg/internal/model"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	pgEventColumns = `id, name, description, location, starts_at, max_participants,
		overbooking_limit, status, created_at, updated_at`
	pgParticipantColumns = `id, event_id, name, email, company, category, status,
		queue_position, response_deadline, rsvp_token, created_at, updated_at`
	pgActivityColumns = `id, event_id, participant_id, type, description, metadata,
		created_by, created_at`
)

// PostgresStore implements Store on PostgreSQL using pgx directly (no ORM).
type PostgresStore struct {
	db *pgxpool.Pool
}

// NewPostgresStore constructs a PostgresStore.
func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

// CreateEvent inserts a new event.
func (s *PostgresStore) CreateEvent(ctx context.Context, e *model.Event) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO events (`+pgEventColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		e.ID, e.Name, e.Description, e.Location, e.StartsAt, e.MaxParticipants,
		e.OverbookingLimit, string(e.Status), e.CreatedAt, e.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

// GetEvent returns a single event or model.ErrNotFound.
func (s *PostgresStore) GetEvent(ctx context.Context, id string) (*model.Event, error) {
	row := s.db.QueryRow(ctx, `SELECT `+pgEventColumns+` FROM events WHERE id = $1`, id)
	e, err := scanPgEvent(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, model.ErrNotFound
		}
		return nil, fmt.Errorf("get event: %w", err)
	}
	return e, nil
}

// ListEvents returns all events ordered by creation time descending.
func (s *PostgresStore) ListEvents(ctx context.Context) ([]model.Event, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+pgEventColumns+` FROM events ORDER BY created_at DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	var events []model.Event
	for rows.Next() {
		e, err := scanPgEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		events = append(events, *e)
	}
	return events, rows.Err()
}

// GetParticipant returns one participant of an event or model.ErrNotFound.
func (s *PostgresStore) GetParticipant(ctx context.Context, eventID, id string) (*model.Participant, error) {
	row := s.db.QueryRow(ctx,
		`SELECT `+pgParticipantColumns+` FROM participants WHERE event_id = $1 AND id = $2`,
		eventID, id,
	)
	p, err := scanPgParticipant(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, model.ErrNotFound
		}
		return nil, fmt.Errorf("get participant: %w", err)
	}
	return p, nil
}

// ListParticipants returns an event's participants in registration order.
func (s *PostgresStore) ListParticipants(ctx context.Context, eventID string, filter ParticipantFilter) ([]model.Participant, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+pgParticipantColumns+`
		 FROM participants
		 WHERE event_id = $1 AND ($2 = '' OR status = $2)
		 ORDER BY created_at ASC, id ASC`,
		eventID, string(filter.Status),
	)
	if err != nil {
		return nil, fmt.Errorf("list participants: %w", err)
	}
	defer rows.Close()

	var out []model.Participant
	for rows.Next() {
		p, err := scanPgParticipant(rows)
		if err != nil {
			return nil, fmt.Errorf("scan participant: %w", err)
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

// ParticipantByToken resolves an RSVP token.
func (s *PostgresStore) ParticipantByToken(ctx context.Context, token string) (*model.Participant, error) {
	row := s.db.QueryRow(ctx,
		`SELECT `+pgParticipantColumns+` FROM participants WHERE rsvp_token = $1`, token,
	)
	p, err := scanPgParticipant(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, model.ErrNotFound
		}
		return nil, fmt.Errorf("get participant by token: %w", err)
	}
	return p, nil
}

// AppendActivity writes an activity record outside of any event lock.
func (s *PostgresStore) AppendActivity(ctx context.Context, a *model.Activity) error {
	return insertPgActivity(ctx, s.db, a)
}

// ListActivities returns an event's activity log, oldest first.
func (s *PostgresStore) ListActivities(ctx context.Context, eventID string) ([]model.Activity, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+pgActivityColumns+` FROM activities WHERE event_id = $1 ORDER BY seq ASC`,
		eventID,
	)
	if err != nil {
		return nil, fmt.Errorf("list activities: %w", err)
	}
	defer rows.Close()

	var out []model.Activity
	for rows.Next() {
		var (
			a    model.Activity
			typ  string
			meta []byte
		)
		if err := rows.Scan(&a.ID, &a.EventID, &a.ParticipantID, &typ, &a.Description,
			&meta, &a.CreatedBy, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan activity: %w", err)
		}
		a.Type = model.ActivityType(typ)
		if len(meta) > 0 {
			if err := json.Unmarshal(meta, &a.Metadata); err != nil {
				return nil, fmt.Errorf("decode activity metadata: %w", err)
			}
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// WithEventLock runs fn inside a transaction holding the event row lock.
//
// SELECT ... FOR UPDATE takes a row-level exclusive lock on the event the
// moment it executes. Any other transaction issuing the same statement for
// that event blocks until this one commits or rolls back, so every
// read-then-write of the attending count and the queue positions is
// serialised per event. Other events' rows are not locked.
func (s *PostgresStore) WithEventLock(ctx context.Context, eventID string, fn func(tx EventTx) error) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	// Rollback after a successful Commit is a no-op.
	defer func() { _ = tx.Rollback(ctx) }()

	row := tx.QueryRow(ctx,
		`SELECT `+pgEventColumns+` FROM events WHERE id = $1 FOR UPDATE`, eventID,
	)
	event, err := scanPgEvent(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.ErrNotFound
		}
		return fmt.Errorf("lock event row: %w", err)
	}

	if err := fn(&pgEventTx{tx: tx, event: event}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

type pgEventTx struct {
	tx    pgx.Tx
	event *model.Event
}

func (t *pgEventTx) Event() *model.Event { return t.event }

func (t *pgEventTx) UpdateEvent(ctx context.Context, e *model.Event) error {
	_, err := t.tx.Exec(ctx,
		`UPDATE events
		 SET name = $2, description = $3, location = $4, starts_at = $5,
		     max_participants = $6, overbooking_limit = $7, status = $8, updated_at = $9
		 WHERE id = $1`,
		e.ID, e.Name, e.Description, e.Location, e.StartsAt, e.MaxParticipants,
		e.OverbookingLimit, string(e.Status), e.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update event: %w", err)
	}
	t.event = e
	return nil
}

func (t *pgEventTx) Participants(ctx context.Context) ([]*model.Participant, error) {
	rows, err := t.tx.Query(ctx,
		`SELECT `+pgParticipantColumns+`
		 FROM participants
		 WHERE event_id = $1
		 ORDER BY created_at ASC, id ASC`,
		t.event.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("load participants: %w", err)
	}
	defer rows.Close()

	var out []*model.Participant
	for rows.Next() {
		p, err := scanPgParticipant(rows)
		if err != nil {
			return nil, fmt.Errorf("scan participant: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (t *pgEventTx) InsertParticipant(ctx context.Context, p *model.Participant) error {
	_, err := t.tx.Exec(ctx,
		`INSERT INTO participants (`+pgParticipantColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		p.ID, p.EventID, p.Name, p.Email, p.Company, p.Category, string(p.Status),
		p.QueuePosition, p.ResponseDeadline, p.RSVPToken, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		if isPgUniqueViolation(err) {
			return model.ErrConflict
		}
		return fmt.Errorf("insert participant: %w", err)
	}
	return nil
}

func (t *pgEventTx) UpdateParticipant(ctx context.Context, p *model.Participant) error {
	tag, err := t.tx.Exec(ctx,
		`UPDATE participants
		 SET name = $3, company = $4, category = $5, status = $6,
		     queue_position = $7, response_deadline = $8, updated_at = $9
		 WHERE event_id = $1 AND id = $2`,
		p.EventID, p.ID, p.Name, p.Company, p.Category, string(p.Status),
		p.QueuePosition, p.ResponseDeadline, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update participant: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrNotFound
	}
	return nil
}

func (t *pgEventTx) DeleteParticipant(ctx context.Context, id string) error {
	tag, err := t.tx.Exec(ctx,
		`DELETE FROM participants WHERE event_id = $1 AND id = $2`, t.event.ID, id,
	)
	if err != nil {
		return fmt.Errorf("delete participant: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrNotFound
	}
	return nil
}

func (t *pgEventTx) AppendActivity(ctx context.Context, a *model.Activity) error {
	return insertPgActivity(ctx, t.tx, a)
}

// pgExecer is satisfied by *pgxpool.Pool and pgx.Tx.
type pgExecer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

func insertPgActivity(ctx context.Context, db pgExecer, a *model.Activity) error {
	meta, err := json.Marshal(a.Metadata)
	if err != nil {
		return fmt.Errorf("encode activity metadata: %w", err)
	}
	_, err = db.Exec(ctx,
		`INSERT INTO activities (`+pgActivityColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		a.ID, a.EventID, a.ParticipantID, string(a.Type), a.Description, meta,
		a.CreatedBy, a.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert activity: %w", err)
	}
	return nil
}

func scanPgEvent(row scanner) (*model.Event, error) {
	var (
		e      model.Event
		status string
	)
	if err := row.Scan(&e.ID, &e.Name, &e.Description, &e.Location, &e.StartsAt,
		&e.MaxParticipants, &e.OverbookingLimit, &status, &e.CreatedAt, &e.UpdatedAt); err != nil {
		return nil, err
	}
	e.Status = model.EventStatus(status)
	return &e, nil
}

func scanPgParticipant(row scanner) (*model.Participant, error) {
	var (
		p      model.Participant
		status string
	)
	if err := row.Scan(&p.ID, &p.EventID, &p.Name, &p.Email, &p.Company, &p.Category,
		&status, &p.QueuePosition, &p.ResponseDeadline, &p.RSVPToken,
		&p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	p.Status = model.Status(status)
	return &p, nil
}

func isPgUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

var _ Store = (*PostgresStore)(nil)
