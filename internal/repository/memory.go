package repository

import (
	"context"
	"sort"
	"sync"

	"github.com/Shivanand-hulikatti/eventreg/internal/model"
)

// MemoryStore implements Store in process memory. Writes made inside
// WithEventLock are staged on copies and applied only when the callback
// succeeds and ctx is still live. It backs tests and the "memory" driver.
type MemoryStore struct {
	mu           sync.RWMutex
	events       map[string]*model.Event
	participants map[string]*model.Participant
	activities   []model.Activity

	locksMu sync.Mutex
	locks   map[string]*sync.Mutex
}

// NewMemoryStore constructs an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		events:       make(map[string]*model.Event),
		participants: make(map[string]*model.Participant),
		locks:        make(map[string]*sync.Mutex),
	}
}

// CreateEvent inserts a new event.
func (s *MemoryStore) CreateEvent(ctx context.Context, e *model.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.events[e.ID]; ok {
		return model.ErrConflict
	}
	c := *e
	s.events[e.ID] = &c
	return nil
}

// GetEvent returns a single event or model.ErrNotFound.
func (s *MemoryStore) GetEvent(ctx context.Context, id string) (*model.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.events[id]
	if !ok {
		return nil, model.ErrNotFound
	}
	c := *e
	return &c, nil
}

// ListEvents returns all events ordered by creation time descending.
func (s *MemoryStore) ListEvents(ctx context.Context) ([]model.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Event, 0, len(s.events))
	for _, e := range s.events {
		out = append(out, *e)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// GetParticipant returns one participant of an event or model.ErrNotFound.
func (s *MemoryStore) GetParticipant(ctx context.Context, eventID, id string) (*model.Participant, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.participants[id]
	if !ok || p.EventID != eventID {
		return nil, model.ErrNotFound
	}
	return p.Clone(), nil
}

// ListParticipants returns an event's participants in registration order.
func (s *MemoryStore) ListParticipants(ctx context.Context, eventID string, filter ParticipantFilter) ([]model.Participant, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.Participant
	for _, p := range s.eventParticipants(eventID) {
		if filter.Status != "" && p.Status != filter.Status {
			continue
		}
		out = append(out, *p.Clone())
	}
	return out, nil
}

// ParticipantByToken resolves an RSVP token.
func (s *MemoryStore) ParticipantByToken(ctx context.Context, token string) (*model.Participant, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.participants {
		if p.RSVPToken == token {
			return p.Clone(), nil
		}
	}
	return nil, model.ErrNotFound
}

// AppendActivity writes an activity record outside of any event lock.
func (s *MemoryStore) AppendActivity(ctx context.Context, a *model.Activity) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.activities = append(s.activities, *a)
	return nil
}

// ListActivities returns an event's activity log, oldest first.
func (s *MemoryStore) ListActivities(ctx context.Context, eventID string) ([]model.Activity, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.Activity
	for _, a := range s.activities {
		if a.EventID == eventID {
			out = append(out, a)
		}
	}
	return out, nil
}

// WithEventLock runs fn holding the event's mutex against a staged copy of
// the event's participants.
func (s *MemoryStore) WithEventLock(ctx context.Context, eventID string, fn func(tx EventTx) error) error {
	lock := s.eventLock(eventID)
	lock.Lock()
	defer lock.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.RLock()
	event, ok := s.events[eventID]
	if !ok {
		s.mu.RUnlock()
		return model.ErrNotFound
	}
	tx := &memEventTx{
		store:  s,
		event:  func() *model.Event { c := *event; return &c }(),
		staged: make(map[string]*model.Participant),
	}
	for _, p := range s.eventParticipants(eventID) {
		tx.staged[p.ID] = p.Clone()
	}
	s.mu.RUnlock()

	if err := fn(tx); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	s.events[eventID] = tx.event
	for id, p := range s.participants {
		if p.EventID == eventID {
			if _, keep := tx.staged[id]; !keep {
				delete(s.participants, id)
			}
		}
	}
	for id, p := range tx.staged {
		s.participants[id] = p
	}
	s.activities = append(s.activities, tx.activities...)
	return nil
}

func (s *MemoryStore) eventLock(eventID string) *sync.Mutex {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()
	l, ok := s.locks[eventID]
	if !ok {
		l = &sync.Mutex{}
		s.locks[eventID] = l
	}
	return l
}

// eventParticipants must be called with s.mu held.
func (s *MemoryStore) eventParticipants(eventID string) []*model.Participant {
	var out []*model.Participant
	for _, p := range s.participants {
		if p.EventID == eventID {
			out = append(out, p)
		}
	}
	sortByCreation(out)
	return out
}

func sortByCreation(ps []*model.Participant) {
	sort.Slice(ps, func(i, j int) bool {
		if !ps[i].CreatedAt.Equal(ps[j].CreatedAt) {
			return ps[i].CreatedAt.Before(ps[j].CreatedAt)
		}
		return ps[i].ID < ps[j].ID
	})
}

type memEventTx struct {
	store      *MemoryStore
	event      *model.Event
	staged     map[string]*model.Participant
	activities []model.Activity
}

func (t *memEventTx) Event() *model.Event { return t.event }

func (t *memEventTx) UpdateEvent(ctx context.Context, e *model.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c := *e
	t.event = &c
	return nil
}

func (t *memEventTx) Participants(ctx context.Context) ([]*model.Participant, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make([]*model.Participant, 0, len(t.staged))
	for _, p := range t.staged {
		out = append(out, p.Clone())
	}
	sortByCreation(out)
	return out, nil
}

func (t *memEventTx) InsertParticipant(ctx context.Context, p *model.Participant) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, ok := t.staged[p.ID]; ok {
		return model.ErrConflict
	}
	for _, other := range t.staged {
		if other.Email == p.Email || other.RSVPToken == p.RSVPToken {
			return model.ErrConflict
		}
	}
	t.store.mu.RLock()
	for _, other := range t.store.participants {
		if other.RSVPToken == p.RSVPToken || other.ID == p.ID {
			t.store.mu.RUnlock()
			return model.ErrConflict
		}
	}
	t.store.mu.RUnlock()
	t.staged[p.ID] = p.Clone()
	return nil
}

func (t *memEventTx) UpdateParticipant(ctx context.Context, p *model.Participant) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, ok := t.staged[p.ID]; !ok || p.EventID != t.event.ID {
		return model.ErrNotFound
	}
	t.staged[p.ID] = p.Clone()
	return nil
}

func (t *memEventTx) DeleteParticipant(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, ok := t.staged[id]; !ok {
		return model.ErrNotFound
	}
	delete(t.staged, id)
	return nil
}

func (t *memEventTx) AppendActivity(ctx context.Context, a *model.Activity) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	t.activities = append(t.activities, *a)
	return nil
}

var _ Store = (*MemoryStore)(nil)
