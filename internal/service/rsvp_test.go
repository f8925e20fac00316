package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Shivanand-hulikatti/eventreg/internal/model"
)

func respond(status string) model.RespondRequest {
	return model.RespondRequest{Status: status}
}

func TestCancel_PromotesWaitlistHead(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ev := f.event(t, intPtr(2), 0)

	a := f.register(t, ev.ID, "a")
	b := f.register(t, ev.ID, "b")
	require.Equal(t, model.StatusAttending, a.Status)
	require.Equal(t, model.StatusAttending, b.Status)

	c := f.register(t, ev.ID, "c")
	require.Equal(t, model.StatusWaitlisted, c.Status)
	require.Equal(t, 1, c.Position())

	got, err := f.rsvp.Cancel(ctx, a.RSVPToken)
	require.NoError(t, err)
	assert.Equal(t, model.StatusCancelled, got.Status)

	promoted := f.get(t, c)
	assert.Equal(t, model.StatusAttending, promoted.Status)
	assert.Nil(t, promoted.QueuePosition)
	assert.Empty(t, f.waitlist(t, ev.ID))
	assert.Equal(t, 2, f.countStatus(t, ev.ID, model.StatusAttending))

	acts := f.activities(t, ev.ID, model.ActivityWaitlistPromoted)
	require.Len(t, acts, 1)
	require.NotNil(t, acts[0].ParticipantID)
	assert.Equal(t, c.ID, *acts[0].ParticipantID)
	assert.Equal(t, ActorParticipant, acts[0].CreatedBy)
}

func TestCancel_PromotionCompactsRemainingQueue(t *testing.T) {
	f := newFixture(t)
	ev := f.event(t, intPtr(1), 0)

	a := f.register(t, ev.ID, "a")
	f.register(t, ev.ID, "b")
	f.register(t, ev.ID, "c")
	f.register(t, ev.ID, "d")
	require.Equal(t, []string{"b", "c", "d"}, f.waitlist(t, ev.ID))

	_, err := f.rsvp.Cancel(context.Background(), a.RSVPToken)
	require.NoError(t, err)

	assert.Equal(t, []string{"c", "d"}, f.waitlist(t, ev.ID))
	assert.Equal(t, 1, f.countStatus(t, ev.ID, model.StatusAttending))
}

func TestCancel_WaitlistedCompactsWithoutPromotion(t *testing.T) {
	f := newFixture(t)
	ev := f.event(t, intPtr(1), 0)

	f.register(t, ev.ID, "a")
	b := f.register(t, ev.ID, "b")
	f.register(t, ev.ID, "c")
	f.register(t, ev.ID, "d")

	got, err := f.rsvp.Cancel(context.Background(), b.RSVPToken)
	require.NoError(t, err)
	assert.Equal(t, model.StatusCancelled, got.Status)
	assert.Nil(t, got.QueuePosition)

	assert.Equal(t, []string{"c", "d"}, f.waitlist(t, ev.ID))
	assert.Equal(t, 1, f.countStatus(t, ev.ID, model.StatusAttending))
	assert.Empty(t, f.activities(t, ev.ID, model.ActivityWaitlistPromoted))
}

func TestCancel_AlreadyCancelledIsNoop(t *testing.T) {
	f := newFixture(t)
	ev := f.event(t, intPtr(1), 0)
	a := f.register(t, ev.ID, "a")

	_, err := f.rsvp.Cancel(context.Background(), a.RSVPToken)
	require.NoError(t, err)
	got, err := f.rsvp.Cancel(context.Background(), a.RSVPToken)
	require.NoError(t, err)
	assert.Equal(t, model.StatusCancelled, got.Status)
	assert.Len(t, f.activities(t, ev.ID, model.ActivityStatusChanged), 1)
}

func TestCancel_InvitedIsRejected(t *testing.T) {
	f := newFixture(t)
	ev := f.event(t, intPtr(1), 0)
	inv, err := f.participants.Add(context.Background(), ev.ID, model.RegisterRequest{
		Name: "Ada", Email: "ada@example.com", Status: "invited",
	})
	require.NoError(t, err)

	_, err = f.rsvp.Cancel(context.Background(), inv.RSVPToken)
	assert.ErrorIs(t, err, model.ErrInvalidState)
	assert.Equal(t, model.StatusInvited, f.get(t, inv).Status)
}

func TestRespond_IsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ev := f.event(t, intPtr(2), 0)
	inv, err := f.participants.Add(ctx, ev.ID, model.RegisterRequest{
		Name: "Ada", Email: "ada@example.com", Status: "invited",
	})
	require.NoError(t, err)

	first, err := f.rsvp.Respond(ctx, inv.RSVPToken, respond("attending"))
	require.NoError(t, err)
	second, err := f.rsvp.Respond(ctx, inv.RSVPToken, respond("attending"))
	require.NoError(t, err)

	assert.Equal(t, model.StatusAttending, first.Status)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, f.countStatus(t, ev.ID, model.StatusAttending))
	assert.Len(t, f.activities(t, ev.ID, model.ActivityStatusChanged), 1)
}

func TestRespond_ReacceptRechecksCapacity(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ev := f.event(t, intPtr(1), 0)

	a := f.register(t, ev.ID, "a")
	_, err := f.rsvp.Respond(ctx, a.RSVPToken, respond("cancelled"))
	require.NoError(t, err)

	f.register(t, ev.ID, "b")

	back, err := f.rsvp.Respond(ctx, a.RSVPToken, respond("attending"))
	require.NoError(t, err)
	assert.Equal(t, model.StatusWaitlisted, back.Status, "the seat was taken in the meantime")
	assert.Equal(t, 1, back.Position())
	assert.Equal(t, 1, f.countStatus(t, ev.ID, model.StatusAttending))
}

func TestRespond_DeclineThenAccept(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ev := f.event(t, intPtr(1), 0)
	inv, err := f.participants.Add(ctx, ev.ID, model.RegisterRequest{
		Name: "Ada", Email: "ada@example.com", Status: "invited",
	})
	require.NoError(t, err)

	got, err := f.rsvp.Respond(ctx, inv.RSVPToken, respond("declined"))
	require.NoError(t, err)
	assert.Equal(t, model.StatusDeclined, got.Status)

	got, err = f.rsvp.Respond(ctx, inv.RSVPToken, respond("attending"))
	require.NoError(t, err)
	assert.Equal(t, model.StatusAttending, got.Status)
}

func TestRespond_AttendingWhileWaitlistedKeepsPlace(t *testing.T) {
	f := newFixture(t)
	ev := f.event(t, intPtr(1), 0)
	f.register(t, ev.ID, "a")
	b := f.register(t, ev.ID, "b")
	f.register(t, ev.ID, "c")

	got, err := f.rsvp.Respond(context.Background(), b.RSVPToken, respond("attending"))
	require.NoError(t, err)
	assert.Equal(t, model.StatusWaitlisted, got.Status)
	assert.Equal(t, 1, got.Position())
	assert.Equal(t, []string{"b", "c"}, f.waitlist(t, ev.ID))
}

func TestRespond_RejectsUnsupportedStatus(t *testing.T) {
	f := newFixture(t)
	ev := f.event(t, intPtr(1), 0)
	a := f.register(t, ev.ID, "a")

	for _, st := range []string{"waitlisted", "invited", "maybe", ""} {
		_, err := f.rsvp.Respond(context.Background(), a.RSVPToken, respond(st))
		assert.ErrorIs(t, err, model.ErrInvalidState, st)
	}
	assert.Equal(t, model.StatusAttending, f.get(t, a).Status)
}

func TestRespond_DeclineFromAttendingIsRejected(t *testing.T) {
	f := newFixture(t)
	ev := f.event(t, intPtr(1), 0)
	a := f.register(t, ev.ID, "a")

	_, err := f.rsvp.Respond(context.Background(), a.RSVPToken, respond("declined"))
	assert.ErrorIs(t, err, model.ErrInvalidState)
}

func TestRespond_AppliesProfileFields(t *testing.T) {
	f := newFixture(t)
	ev := f.event(t, intPtr(2), 0)
	inv, err := f.participants.Add(context.Background(), ev.ID, model.RegisterRequest{
		Name: "Ada", Email: "ada@example.com", Status: "invited",
	})
	require.NoError(t, err)

	company := "  Analytical Engines  "
	got, err := f.rsvp.Respond(context.Background(), inv.RSVPToken, model.RespondRequest{
		Status:  "attending",
		Company: &company,
	})
	require.NoError(t, err)
	assert.Equal(t, "Analytical Engines", got.Company)
	assert.Equal(t, model.StatusAttending, got.Status)
	assert.Len(t, f.activities(t, ev.ID, model.ActivityParticipantUpdated), 1)
}

func TestRespond_FailedTransitionKeepsProfile(t *testing.T) {
	f := newFixture(t)
	ev := f.event(t, intPtr(2), 0)
	a := f.register(t, ev.ID, "a")

	name := "Renamed"
	_, err := f.rsvp.Respond(context.Background(), a.RSVPToken, model.RespondRequest{Status: "declined", Name: &name})
	require.ErrorIs(t, err, model.ErrInvalidState)
	assert.Equal(t, "a", f.get(t, a).Name, "the whole response rolls back")
}

func TestRSVP_UnknownToken(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.rsvp.Lookup(ctx, "nope")
	assert.ErrorIs(t, err, model.ErrNotFound)
	_, err = f.rsvp.Respond(ctx, "nope", respond("attending"))
	assert.ErrorIs(t, err, model.ErrNotFound)
	_, err = f.rsvp.Cancel(ctx, "")
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestRSVP_Lookup(t *testing.T) {
	f := newFixture(t)
	ev := f.event(t, intPtr(1), 0)
	a := f.register(t, ev.ID, "a")

	view, err := f.rsvp.Lookup(context.Background(), a.RSVPToken)
	require.NoError(t, err)
	assert.Equal(t, a.ID, view.Participant.ID)
	assert.Equal(t, ev.ID, view.Event.ID)
	assert.Equal(t, "Go Meetup", view.Event.Name)
}

func TestCancelAndReregister_CapacityHolds(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ev := f.event(t, intPtr(3), 1)
	hardCap := 4

	var ps []*model.Participant
	for _, name := range []string{"a", "b", "c", "d", "e", "f", "g", "h"} {
		ps = append(ps, f.register(t, ev.ID, name))
	}

	// Alternate cancellations and change-of-mind re-acceptances; the
	// attending count must never pass the hard cap and the queue stays dense.
	for round := 0; round < 3; round++ {
		for i, p := range ps {
			var err error
			if (i+round)%2 == 0 {
				_, err = f.rsvp.Cancel(ctx, p.RSVPToken)
			} else {
				_, err = f.rsvp.Respond(ctx, p.RSVPToken, respond("attending"))
			}
			require.NoError(t, err)
			assert.LessOrEqual(t, f.countStatus(t, ev.ID, model.StatusAttending), hardCap)
			f.waitlist(t, ev.ID)
		}
	}
}

func TestRespond_ReacceptOnClosedEventIsRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ev := f.event(t, intPtr(5), 0)
	a := f.register(t, ev.ID, "a")

	_, err := f.rsvp.Cancel(ctx, a.RSVPToken)
	require.NoError(t, err)
	closed := string(model.EventClosed)
	_, err = f.events.Update(ctx, ev.ID, model.UpdateEventRequest{Status: &closed})
	require.NoError(t, err)

	_, err = f.rsvp.Respond(ctx, a.RSVPToken, respond("attending"))
	require.ErrorIs(t, err, model.ErrInvalidState)
	assert.Equal(t, model.StatusCancelled, f.get(t, a).Status)
	assert.Equal(t, 0, f.countStatus(t, ev.ID, model.StatusAttending))
}
