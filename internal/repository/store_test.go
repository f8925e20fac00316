package repository_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Shivanand-hulikatti/eventreg/internal/model"
	"github.com/Shivanand-hulikatti/eventreg/internal/repository"
)

var errBoom = errors.New("boom")

// base is millisecond aligned so every backend round-trips it exactly.
var base = time.Date(2026, 5, 4, 18, 30, 0, 0, time.UTC)

func newEvent(t *testing.T, s repository.Store, seats *int, createdAt time.Time) *model.Event {
	t.Helper()
	e := &model.Event{
		ID:               uuid.NewString(),
		Name:             "Gophers Night",
		Location:         "Lisbon",
		MaxParticipants:  seats,
		OverbookingLimit: 1,
		Status:           model.EventPublished,
		CreatedAt:        createdAt,
		UpdatedAt:        createdAt,
	}
	require.NoError(t, s.CreateEvent(context.Background(), e))
	return e
}

func newParticipant(eventID, name string, status model.Status, pos int, createdAt time.Time) *model.Participant {
	p := &model.Participant{
		ID:        uuid.NewString(),
		EventID:   eventID,
		Name:      name,
		Email:     fmt.Sprintf("%s@example.com", name),
		Status:    status,
		RSVPToken: uuid.NewString(),
		CreatedAt: createdAt,
		UpdatedAt: createdAt,
	}
	if pos > 0 {
		p.QueuePosition = &pos
	}
	return p
}

func insert(t *testing.T, s repository.Store, eventID string, ps ...*model.Participant) {
	t.Helper()
	err := s.WithEventLock(context.Background(), eventID, func(tx repository.EventTx) error {
		for _, p := range ps {
			if err := tx.InsertParticipant(context.Background(), p); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)
}

func names(ps []model.Participant) []string {
	out := make([]string, 0, len(ps))
	for _, p := range ps {
		out = append(out, p.Name)
	}
	return out
}

// runStoreSuite exercises the Store contract against one backend.
func runStoreSuite(t *testing.T, newStore func(t *testing.T) repository.Store) {
	t.Run("events round trip", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		older := newEvent(t, s, intPtr(10), base)
		newer := newEvent(t, s, nil, base.Add(time.Minute))

		got, err := s.GetEvent(ctx, older.ID)
		require.NoError(t, err)
		assert.Equal(t, older.Name, got.Name)
		assert.Equal(t, older.Location, got.Location)
		assert.Equal(t, model.EventPublished, got.Status)
		require.NotNil(t, got.MaxParticipants)
		assert.Equal(t, 10, *got.MaxParticipants)
		assert.Equal(t, 1, got.OverbookingLimit)
		assert.True(t, got.CreatedAt.Equal(base))

		unlimited, err := s.GetEvent(ctx, newer.ID)
		require.NoError(t, err)
		assert.Nil(t, unlimited.MaxParticipants)

		list, err := s.ListEvents(ctx)
		require.NoError(t, err)
		require.Len(t, list, 2)
		assert.Equal(t, newer.ID, list[0].ID)
		assert.Equal(t, older.ID, list[1].ID)

		_, err = s.GetEvent(ctx, uuid.NewString())
		assert.ErrorIs(t, err, model.ErrNotFound)
	})

	t.Run("lock on unknown event", func(t *testing.T) {
		s := newStore(t)
		called := false
		err := s.WithEventLock(context.Background(), uuid.NewString(), func(repository.EventTx) error {
			called = true
			return nil
		})
		assert.ErrorIs(t, err, model.ErrNotFound)
		assert.False(t, called)
	})

	t.Run("participants in creation order", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		ev := newEvent(t, s, intPtr(1), base)
		a := newParticipant(ev.ID, "a", model.StatusAttending, 0, base.Add(1*time.Millisecond))
		b := newParticipant(ev.ID, "b", model.StatusWaitlisted, 1, base.Add(2*time.Millisecond))
		c := newParticipant(ev.ID, "c", model.StatusInvited, 0, base.Add(3*time.Millisecond))
		deadline := time.Date(2026, 5, 10, 0, 0, 0, 0, time.UTC)
		b.ResponseDeadline = &deadline
		insert(t, s, ev.ID, c, a, b)

		err := s.WithEventLock(ctx, ev.ID, func(tx repository.EventTx) error {
			ps, err := tx.Participants(ctx)
			require.NoError(t, err)
			require.Len(t, ps, 3)
			assert.Equal(t, []string{"a", "b", "c"}, []string{ps[0].Name, ps[1].Name, ps[2].Name})
			return nil
		})
		require.NoError(t, err)

		got, err := s.GetParticipant(ctx, ev.ID, b.ID)
		require.NoError(t, err)
		assert.Equal(t, model.StatusWaitlisted, got.Status)
		assert.Equal(t, 1, got.Position())
		require.NotNil(t, got.ResponseDeadline)
		assert.True(t, got.ResponseDeadline.Equal(deadline))

		byToken, err := s.ParticipantByToken(ctx, c.RSVPToken)
		require.NoError(t, err)
		assert.Equal(t, c.ID, byToken.ID)

		waiting, err := s.ListParticipants(ctx, ev.ID, repository.ParticipantFilter{Status: model.StatusWaitlisted})
		require.NoError(t, err)
		assert.Equal(t, []string{"b"}, names(waiting))

		all, err := s.ListParticipants(ctx, ev.ID, repository.ParticipantFilter{})
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"a", "b", "c"}, names(all))

		_, err = s.GetParticipant(ctx, uuid.NewString(), a.ID)
		assert.ErrorIs(t, err, model.ErrNotFound)
		_, err = s.ParticipantByToken(ctx, "nope")
		assert.ErrorIs(t, err, model.ErrNotFound)
	})

	t.Run("duplicate email conflicts", func(t *testing.T) {
		s := newStore(t)
		ev := newEvent(t, s, nil, base)
		insert(t, s, ev.ID, newParticipant(ev.ID, "ada", model.StatusAttending, 0, base))

		dup := newParticipant(ev.ID, "ada", model.StatusAttending, 0, base.Add(time.Millisecond))
		err := s.WithEventLock(context.Background(), ev.ID, func(tx repository.EventTx) error {
			return tx.InsertParticipant(context.Background(), dup)
		})
		assert.ErrorIs(t, err, model.ErrConflict)

		// Same address at another event is fine.
		other := newEvent(t, s, nil, base.Add(time.Second))
		insert(t, s, other.ID, newParticipant(other.ID, "ada", model.StatusAttending, 0, base))
	})

	t.Run("error rolls everything back", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		ev := newEvent(t, s, intPtr(5), base)
		a := newParticipant(ev.ID, "a", model.StatusAttending, 0, base)
		insert(t, s, ev.ID, a)

		err := s.WithEventLock(ctx, ev.ID, func(tx repository.EventTx) error {
			changed := *tx.Event()
			changed.Name = "Renamed"
			require.NoError(t, tx.UpdateEvent(ctx, &changed))

			a2 := a.Clone()
			a2.Status = model.StatusCancelled
			require.NoError(t, tx.UpdateParticipant(ctx, a2))
			require.NoError(t, tx.InsertParticipant(ctx, newParticipant(ev.ID, "b", model.StatusAttending, 0, base)))
			require.NoError(t, tx.AppendActivity(ctx, &model.Activity{
				ID: uuid.NewString(), EventID: ev.ID, Type: model.ActivityEventUpdated,
				Description: "renamed", CreatedBy: "test", CreatedAt: base,
			}))
			return errBoom
		})
		require.ErrorIs(t, err, errBoom)

		got, err := s.GetEvent(ctx, ev.ID)
		require.NoError(t, err)
		assert.Equal(t, "Gophers Night", got.Name)

		ps, err := s.ListParticipants(ctx, ev.ID, repository.ParticipantFilter{})
		require.NoError(t, err)
		require.Len(t, ps, 1)
		assert.Equal(t, model.StatusAttending, ps[0].Status)

		acts, err := s.ListActivities(ctx, ev.ID)
		require.NoError(t, err)
		assert.Empty(t, acts)
	})

	t.Run("update and delete", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		ev := newEvent(t, s, intPtr(1), base)
		a := newParticipant(ev.ID, "a", model.StatusAttending, 0, base)
		b := newParticipant(ev.ID, "b", model.StatusWaitlisted, 1, base.Add(time.Millisecond))
		insert(t, s, ev.ID, a, b)

		err := s.WithEventLock(ctx, ev.ID, func(tx repository.EventTx) error {
			if err := tx.DeleteParticipant(ctx, a.ID); err != nil {
				return err
			}
			promoted := b.Clone()
			promoted.Status = model.StatusAttending
			promoted.QueuePosition = nil
			promoted.UpdatedAt = base.Add(time.Second)
			return tx.UpdateParticipant(ctx, promoted)
		})
		require.NoError(t, err)

		_, err = s.GetParticipant(ctx, ev.ID, a.ID)
		assert.ErrorIs(t, err, model.ErrNotFound)
		got, err := s.GetParticipant(ctx, ev.ID, b.ID)
		require.NoError(t, err)
		assert.Equal(t, model.StatusAttending, got.Status)
		assert.Nil(t, got.QueuePosition)
		assert.True(t, got.UpdatedAt.Equal(base.Add(time.Second)))

		err = s.WithEventLock(ctx, ev.ID, func(tx repository.EventTx) error {
			return tx.DeleteParticipant(ctx, a.ID)
		})
		assert.ErrorIs(t, err, model.ErrNotFound)

		ghost := newParticipant(ev.ID, "ghost", model.StatusAttending, 0, base)
		err = s.WithEventLock(ctx, ev.ID, func(tx repository.EventTx) error {
			return tx.UpdateParticipant(ctx, ghost)
		})
		assert.ErrorIs(t, err, model.ErrNotFound)
	})

	t.Run("activities oldest first", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		ev := newEvent(t, s, nil, base)
		p := newParticipant(ev.ID, "a", model.StatusAttending, 0, base)
		insert(t, s, ev.ID, p)

		require.NoError(t, s.AppendActivity(ctx, &model.Activity{
			ID: uuid.NewString(), EventID: ev.ID, Type: model.ActivityEventCreated,
			Description: "created", CreatedBy: "organizer", CreatedAt: base,
		}))
		err := s.WithEventLock(ctx, ev.ID, func(tx repository.EventTx) error {
			return tx.AppendActivity(ctx, &model.Activity{
				ID: uuid.NewString(), EventID: ev.ID, ParticipantID: &p.ID,
				Type: model.ActivityStatusChanged, Description: "cancelled",
				Metadata:  map[string]any{"from": "attending", "to": "cancelled"},
				CreatedBy: "participant", CreatedAt: base,
			})
		})
		require.NoError(t, err)

		acts, err := s.ListActivities(ctx, ev.ID)
		require.NoError(t, err)
		require.Len(t, acts, 2)
		assert.Equal(t, model.ActivityEventCreated, acts[0].Type)
		assert.Nil(t, acts[0].ParticipantID)
		assert.Equal(t, model.ActivityStatusChanged, acts[1].Type)
		require.NotNil(t, acts[1].ParticipantID)
		assert.Equal(t, p.ID, *acts[1].ParticipantID)
		assert.Equal(t, "cancelled", acts[1].Metadata["to"])
		assert.Equal(t, "participant", acts[1].CreatedBy)
	})
}

func intPtr(n int) *int { return &n }
