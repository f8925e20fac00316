package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Shivanand-hulikatti/eventreg/internal/model"
)

func TestRegister_AdmitsThenWaitlists(t *testing.T) {
	f := newFixture(t)
	ev := f.event(t, intPtr(2), 1)

	for _, name := range []string{"ada", "bob", "cid"} {
		p := f.register(t, ev.ID, name)
		assert.Equal(t, model.StatusAttending, p.Status, name)
		assert.Nil(t, p.QueuePosition)
		assert.NotEmpty(t, p.RSVPToken)
	}

	dan := f.register(t, ev.ID, "dan")
	assert.Equal(t, model.StatusWaitlisted, dan.Status)
	assert.Equal(t, 1, dan.Position())

	eve := f.register(t, ev.ID, "eve")
	assert.Equal(t, 2, eve.Position())

	assert.Equal(t, 3, f.countStatus(t, ev.ID, model.StatusAttending))
	assert.Equal(t, []string{"dan", "eve"}, f.waitlist(t, ev.ID))
	assert.Len(t, f.activities(t, ev.ID, model.ActivityRegistered), 5)
}

func TestRegister_UnlimitedNeverWaitlists(t *testing.T) {
	f := newFixture(t)
	ev := f.event(t, nil, 0)

	for i := 0; i < 20; i++ {
		p := f.register(t, ev.ID, fmt.Sprintf("p%02d", i))
		assert.Equal(t, model.StatusAttending, p.Status)
	}
	assert.Empty(t, f.waitlist(t, ev.ID))
}

func TestRegister_DuplicateEmailIsCaseInsensitive(t *testing.T) {
	f := newFixture(t)
	ev := f.event(t, intPtr(5), 0)
	f.register(t, ev.ID, "ada")

	_, err := f.engine.Register(context.Background(), ev.ID, Candidate{
		Name:  "Ada Again",
		Email: "  ADA@Example.COM ",
	}, SourcePublic)
	require.ErrorIs(t, err, model.ErrConflict)
	assert.Equal(t, 1, f.countStatus(t, ev.ID, model.StatusAttending))
}

func TestRegister_Validation(t *testing.T) {
	f := newFixture(t)
	ev := f.event(t, intPtr(5), 0)

	tests := []struct {
		name string
		c    Candidate
	}{
		{"missing name", Candidate{Email: "ada@example.com"}},
		{"missing email", Candidate{Name: "Ada"}},
		{"bad email", Candidate{Name: "Ada", Email: "ada-at-example"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.engine.Register(context.Background(), ev.ID, tt.c, SourcePublic)
			assert.ErrorIs(t, err, model.ErrValidation)
		})
	}
}

func TestRegister_UnknownEvent(t *testing.T) {
	f := newFixture(t)
	_, err := f.engine.Register(context.Background(), "missing", Candidate{Name: "Ada", Email: "ada@example.com"}, SourcePublic)
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestRegister_EventStatusGates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	draft, err := f.events.Create(ctx, model.CreateEventRequest{Name: "Draft"})
	require.NoError(t, err)
	require.Equal(t, model.EventDraft, draft.Status)

	c := Candidate{Name: "Ada", Email: "ada@example.com"}
	_, err = f.engine.Register(ctx, draft.ID, c, SourcePublic)
	assert.ErrorIs(t, err, model.ErrInvalidState, "public registration needs a published event")

	p, err := f.engine.Register(ctx, draft.ID, c, SourceOrganizer)
	require.NoError(t, err, "organizers may add to drafts")
	assert.Equal(t, model.StatusAttending, p.Status)

	closed := string(model.EventClosed)
	_, err = f.events.Update(ctx, draft.ID, model.UpdateEventRequest{Status: &closed})
	require.NoError(t, err)

	for _, src := range []Source{SourcePublic, SourceOrganizer, SourceImport} {
		_, err = f.engine.Register(ctx, draft.ID, Candidate{Name: "Bob", Email: "bob@example.com"}, src)
		assert.ErrorIs(t, err, model.ErrInvalidState, src.String())
	}
}

func TestRegister_OrganizerInviteTakesNoSeat(t *testing.T) {
	f := newFixture(t)
	ev := f.event(t, intPtr(1), 0)

	inv, err := f.participants.Add(context.Background(), ev.ID, model.RegisterRequest{
		Name:   "Ada",
		Email:  "ada@example.com",
		Status: "invited",
	})
	require.NoError(t, err)
	assert.Equal(t, model.StatusInvited, inv.Status)

	bob := f.register(t, ev.ID, "bob")
	assert.Equal(t, model.StatusAttending, bob.Status, "invited participants do not count against capacity")

	added := f.activities(t, ev.ID, model.ActivityParticipantAdded)
	require.Len(t, added, 1)
	assert.Equal(t, ActorOrganizer, added[0].CreatedBy)
}

func TestRegister_InviteIgnoredOutsideOrganizerPath(t *testing.T) {
	f := newFixture(t)
	ev := f.event(t, intPtr(1), 0)

	p, err := f.engine.Register(context.Background(), ev.ID, Candidate{
		Name: "Ada", Email: "ada@example.com", Invite: true,
	}, SourcePublic)
	require.NoError(t, err)
	assert.Equal(t, model.StatusAttending, p.Status)
}

func TestRegister_RejectsUnsupportedInitialStatus(t *testing.T) {
	f := newFixture(t)
	ev := f.event(t, intPtr(1), 0)

	_, err := f.participants.Add(context.Background(), ev.ID, model.RegisterRequest{
		Name: "Ada", Email: "ada@example.com", Status: "cancelled",
	})
	assert.ErrorIs(t, err, model.ErrInvalidState)
}

func TestRegister_DeadlineKeptOnlyWhenWaitlisted(t *testing.T) {
	f := newFixture(t)
	ev := f.event(t, intPtr(1), 0)
	deadline := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)

	first, err := f.engine.Register(context.Background(), ev.ID, Candidate{
		Name: "Ada", Email: "ada@example.com", ResponseDeadline: &deadline,
	}, SourceOrganizer)
	require.NoError(t, err)
	assert.Nil(t, first.ResponseDeadline)

	second, err := f.engine.Register(context.Background(), ev.ID, Candidate{
		Name: "Bob", Email: "bob@example.com", ResponseDeadline: &deadline,
	}, SourceOrganizer)
	require.NoError(t, err)
	require.NotNil(t, second.ResponseDeadline)
	assert.True(t, deadline.Equal(*second.ResponseDeadline))
}

func TestRegister_ActorFromContext(t *testing.T) {
	f := newFixture(t)
	ev := f.event(t, intPtr(1), 0)

	ctx := WithActor(context.Background(), "user-7")
	_, err := f.engine.Register(ctx, ev.ID, Candidate{Name: "Ada", Email: "ada@example.com"}, SourceOrganizer)
	require.NoError(t, err)

	added := f.activities(t, ev.ID, model.ActivityParticipantAdded)
	require.Len(t, added, 1)
	assert.Equal(t, "user-7", added[0].CreatedBy)
}

func TestRegister_ConcurrentNeverExceedsCapacity(t *testing.T) {
	f := newFixture(t)
	ev := f.event(t, intPtr(5), 2)

	const n = 60
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := f.engine.Register(context.Background(), ev.ID, Candidate{
				Name:  fmt.Sprintf("p%02d", i),
				Email: fmt.Sprintf("p%02d@example.com", i),
			}, SourcePublic)
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	assert.Equal(t, 7, f.countStatus(t, ev.ID, model.StatusAttending))
	assert.Len(t, f.waitlist(t, ev.ID), n-7)
}

func TestRegister_CancelledContextChangesNothing(t *testing.T) {
	f := newFixture(t)
	ev := f.event(t, intPtr(1), 0)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := f.engine.Register(ctx, ev.ID, Candidate{Name: "Ada", Email: "ada@example.com"}, SourcePublic)
	require.ErrorIs(t, err, context.Canceled)

	ps, err := f.participants.List(context.Background(), ev.ID, "")
	require.NoError(t, err)
	assert.Empty(t, ps)
	assert.Empty(t, f.activities(t, ev.ID, model.ActivityRegistered))
}

func TestCandidateFromRequest(t *testing.T) {
	c, err := CandidateFromRequest(model.RegisterRequest{
		Name: "Ada", Email: "ada@example.com", Status: "Invited", ResponseDeadline: "2026-05-01",
	})
	require.NoError(t, err)
	assert.True(t, c.Invite)
	require.NotNil(t, c.ResponseDeadline)
	assert.Equal(t, "2026-05-01", c.ResponseDeadline.Format(time.DateOnly))

	_, err = CandidateFromRequest(model.RegisterRequest{Name: "Ada", Email: "ada@example.com", ResponseDeadline: "May 1"})
	assert.ErrorIs(t, err, model.ErrValidation)

	_, err = CandidateFromRequest(model.RegisterRequest{Name: "Ada", Email: "ada@example.com", Status: "maybe"})
	assert.ErrorIs(t, err, model.ErrInvalidState)
}
