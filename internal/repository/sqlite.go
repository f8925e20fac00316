package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Shivanand-hulikatti/eventreg/internal/model"
	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"
)

const (
	sqliteEventColumns = `id, name, description, location, starts_at, max_participants,
		overbooking_limit, status, created_at, updated_at`
	sqliteParticipantColumns = `id, event_id, name, email, company, category, status,
		queue_position, response_deadline, rsvp_token, created_at, updated_at`
	sqliteActivityColumns = `id, event_id, participant_id, type, description, metadata,
		created_by, created_at`
)

// SQLiteStore implements Store on SQLite. Timestamps are stored as unix
// milliseconds. The database handle must be opened with a single connection
// and immediate transactions (see database.OpenSQLite) so that a write
// transaction excludes every other writer.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore constructs a SQLiteStore over an open, migrated handle.
func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

func toMillis(t time.Time) int64 { return t.UTC().UnixMilli() }

func fromMillis(v int64) time.Time { return time.UnixMilli(v).UTC() }

func toNullMillis(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: toMillis(*t), Valid: true}
}

func fromNullMillis(v sql.NullInt64) *time.Time {
	if !v.Valid {
		return nil
	}
	t := fromMillis(v.Int64)
	return &t
}

func toNullInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}

func fromNullInt(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	i := int(v.Int64)
	return &i
}

// CreateEvent inserts a new event.
func (s *SQLiteStore) CreateEvent(ctx context.Context, e *model.Event) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO events (`+sqliteEventColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.Name, e.Description, e.Location, toNullMillis(e.StartsAt),
		toNullInt(e.MaxParticipants), e.OverbookingLimit, string(e.Status),
		toMillis(e.CreatedAt), toMillis(e.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

// GetEvent returns a single event or model.ErrNotFound.
func (s *SQLiteStore) GetEvent(ctx context.Context, id string) (*model.Event, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+sqliteEventColumns+` FROM events WHERE id = ?`, id)
	e, err := scanSQLiteEvent(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, model.ErrNotFound
		}
		return nil, fmt.Errorf("get event: %w", err)
	}
	return e, nil
}

// ListEvents returns all events ordered by creation time descending.
func (s *SQLiteStore) ListEvents(ctx context.Context) ([]model.Event, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+sqliteEventColumns+` FROM events ORDER BY created_at DESC, id ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	var events []model.Event
	for rows.Next() {
		e, err := scanSQLiteEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		events = append(events, *e)
	}
	return events, rows.Err()
}

// GetParticipant returns one participant of an event or model.ErrNotFound.
func (s *SQLiteStore) GetParticipant(ctx context.Context, eventID, id string) (*model.Participant, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+sqliteParticipantColumns+` FROM participants WHERE event_id = ? AND id = ?`,
		eventID, id,
	)
	p, err := scanSQLiteParticipant(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, model.ErrNotFound
		}
		return nil, fmt.Errorf("get participant: %w", err)
	}
	return p, nil
}

// ListParticipants returns an event's participants in registration order.
func (s *SQLiteStore) ListParticipants(ctx context.Context, eventID string, filter ParticipantFilter) ([]model.Participant, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+sqliteParticipantColumns+`
		 FROM participants
		 WHERE event_id = ? AND (? = '' OR status = ?)
		 ORDER BY created_at ASC, id ASC`,
		eventID, string(filter.Status), string(filter.Status),
	)
	if err != nil {
		return nil, fmt.Errorf("list participants: %w", err)
	}
	defer rows.Close()

	var out []model.Participant
	for rows.Next() {
		p, err := scanSQLiteParticipant(rows)
		if err != nil {
			return nil, fmt.Errorf("scan participant: %w", err)
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

// ParticipantByToken resolves an RSVP token.
func (s *SQLiteStore) ParticipantByToken(ctx context.Context, token string) (*model.Participant, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+sqliteParticipantColumns+` FROM participants WHERE rsvp_token = ?`, token,
	)
	p, err := scanSQLiteParticipant(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, model.ErrNotFound
		}
		return nil, fmt.Errorf("get participant by token: %w", err)
	}
	return p, nil
}

// AppendActivity writes an activity record outside of any event lock.
func (s *SQLiteStore) AppendActivity(ctx context.Context, a *model.Activity) error {
	return insertSQLiteActivity(ctx, s.db, a)
}

// ListActivities returns an event's activity log, oldest first.
func (s *SQLiteStore) ListActivities(ctx context.Context, eventID string) ([]model.Activity, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+sqliteActivityColumns+` FROM activities WHERE event_id = ? ORDER BY seq ASC`,
		eventID,
	)
	if err != nil {
		return nil, fmt.Errorf("list activities: %w", err)
	}
	defer rows.Close()

	var out []model.Activity
	for rows.Next() {
		var (
			a             model.Activity
			participantID sql.NullString
			typ, meta     string
			createdAt     int64
		)
		if err := rows.Scan(&a.ID, &a.EventID, &participantID, &typ, &a.Description,
			&meta, &a.CreatedBy, &createdAt); err != nil {
			return nil, fmt.Errorf("scan activity: %w", err)
		}
		if participantID.Valid {
			id := participantID.String
			a.ParticipantID = &id
		}
		a.Type = model.ActivityType(typ)
		a.CreatedAt = fromMillis(createdAt)
		if meta != "" && meta != "null" {
			if err := json.Unmarshal([]byte(meta), &a.Metadata); err != nil {
				return nil, fmt.Errorf("decode activity metadata: %w", err)
			}
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// WithEventLock runs fn inside an immediate transaction. SQLite has a single
// writer, so the event lock is the database write lock.
func (s *SQLiteStore) WithEventLock(ctx context.Context, eventID string, fn func(tx EventTx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	row := tx.QueryRowContext(ctx, `SELECT `+sqliteEventColumns+` FROM events WHERE id = ?`, eventID)
	event, err := scanSQLiteEvent(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.ErrNotFound
		}
		return fmt.Errorf("lock event: %w", err)
	}

	if err := fn(&sqliteEventTx{tx: tx, event: event}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

type sqliteEventTx struct {
	tx    *sql.Tx
	event *model.Event
}

func (t *sqliteEventTx) Event() *model.Event { return t.event }

func (t *sqliteEventTx) UpdateEvent(ctx context.Context, e *model.Event) error {
	_, err := t.tx.ExecContext(ctx,
		`UPDATE events
		 SET name = ?, description = ?, location = ?, starts_at = ?,
		     max_participants = ?, overbooking_limit = ?, status = ?, updated_at = ?
		 WHERE id = ?`,
		e.Name, e.Description, e.Location, toNullMillis(e.StartsAt),
		toNullInt(e.MaxParticipants), e.OverbookingLimit, string(e.Status),
		toMillis(e.UpdatedAt), e.ID,
	)
	if err != nil {
		return fmt.Errorf("update event: %w", err)
	}
	t.event = e
	return nil
}

func (t *sqliteEventTx) Participants(ctx context.Context) ([]*model.Participant, error) {
	rows, err := t.tx.QueryContext(ctx,
		`SELECT `+sqliteParticipantColumns+`
		 FROM participants
		 WHERE event_id = ?
		 ORDER BY created_at ASC, id ASC`,
		t.event.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("load participants: %w", err)
	}
	defer rows.Close()

	var out []*model.Participant
	for rows.Next() {
		p, err := scanSQLiteParticipant(rows)
		if err != nil {
			return nil, fmt.Errorf("scan participant: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (t *sqliteEventTx) InsertParticipant(ctx context.Context, p *model.Participant) error {
	_, err := t.tx.ExecContext(ctx,
		`INSERT INTO participants (`+sqliteParticipantColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.EventID, p.Name, p.Email, p.Company, p.Category, string(p.Status),
		toNullInt(p.QueuePosition), toNullMillis(p.ResponseDeadline), p.RSVPToken,
		toMillis(p.CreatedAt), toMillis(p.UpdatedAt),
	)
	if err != nil {
		if isSQLiteUniqueViolation(err) {
			return model.ErrConflict
		}
		return fmt.Errorf("insert participant: %w", err)
	}
	return nil
}

func (t *sqliteEventTx) UpdateParticipant(ctx context.Context, p *model.Participant) error {
	res, err := t.tx.ExecContext(ctx,
		`UPDATE participants
		 SET name = ?, company = ?, category = ?, status = ?,
		     queue_position = ?, response_deadline = ?, updated_at = ?
		 WHERE event_id = ? AND id = ?`,
		p.Name, p.Company, p.Category, string(p.Status),
		toNullInt(p.QueuePosition), toNullMillis(p.ResponseDeadline), toMillis(p.UpdatedAt),
		p.EventID, p.ID,
	)
	if err != nil {
		return fmt.Errorf("update participant: %w", err)
	}
	return requireAffected(res)
}

func (t *sqliteEventTx) DeleteParticipant(ctx context.Context, id string) error {
	res, err := t.tx.ExecContext(ctx,
		`DELETE FROM participants WHERE event_id = ? AND id = ?`, t.event.ID, id,
	)
	if err != nil {
		return fmt.Errorf("delete participant: %w", err)
	}
	return requireAffected(res)
}

func (t *sqliteEventTx) AppendActivity(ctx context.Context, a *model.Activity) error {
	return insertSQLiteActivity(ctx, t.tx, a)
}

func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return model.ErrNotFound
	}
	return nil
}

// sqlExecer is satisfied by *sql.DB and *sql.Tx.
type sqlExecer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insertSQLiteActivity(ctx context.Context, db sqlExecer, a *model.Activity) error {
	meta, err := json.Marshal(a.Metadata)
	if err != nil {
		return fmt.Errorf("encode activity metadata: %w", err)
	}
	var participantID sql.NullString
	if a.ParticipantID != nil {
		participantID = sql.NullString{String: *a.ParticipantID, Valid: true}
	}
	_, err = db.ExecContext(ctx,
		`INSERT INTO activities (`+sqliteActivityColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.EventID, participantID, string(a.Type), a.Description, string(meta),
		a.CreatedBy, toMillis(a.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert activity: %w", err)
	}
	return nil
}

func scanSQLiteEvent(row scanner) (*model.Event, error) {
	var (
		e                    model.Event
		status               string
		startsAt, maxPart    sql.NullInt64
		createdAt, updatedAt int64
	)
	if err := row.Scan(&e.ID, &e.Name, &e.Description, &e.Location, &startsAt,
		&maxPart, &e.OverbookingLimit, &status, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	e.StartsAt = fromNullMillis(startsAt)
	e.MaxParticipants = fromNullInt(maxPart)
	e.Status = model.EventStatus(status)
	e.CreatedAt = fromMillis(createdAt)
	e.UpdatedAt = fromMillis(updatedAt)
	return &e, nil
}

func scanSQLiteParticipant(row scanner) (*model.Participant, error) {
	var (
		p                    model.Participant
		status               string
		position, deadline   sql.NullInt64
		createdAt, updatedAt int64
	)
	if err := row.Scan(&p.ID, &p.EventID, &p.Name, &p.Email, &p.Company, &p.Category,
		&status, &position, &deadline, &p.RSVPToken, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	p.Status = model.Status(status)
	p.QueuePosition = fromNullInt(position)
	p.ResponseDeadline = fromNullMillis(deadline)
	p.CreatedAt = fromMillis(createdAt)
	p.UpdatedAt = fromMillis(updatedAt)
	return &p, nil
}

func isSQLiteUniqueViolation(err error) bool {
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3lib.SQLITE_CONSTRAINT_UNIQUE:
			return true
		}
	}
	return strings.Contains(strings.ToLower(err.Error()), "unique constraint failed")
}

var _ Store = (*SQLiteStore)(nil)
