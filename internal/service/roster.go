package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Shivanand-hulikatti/eventreg/internal/model"
	"github.com/Shivanand-hulikatti/eventreg/internal/repository"
	"github.com/Shivanand-hulikatti/eventreg/internal/waitlist"
	"github.com/google/uuid"
)

// roster is the arena of one event's participants inside a locked
// transaction. Operations mutate the loaded records in place; flush writes
// back exactly the ones that changed, followed by the recorded activities.
type roster struct {
	tx       repository.EventTx
	event    *model.Event
	members  []*model.Participant
	original map[string]*model.Participant
	queue    *waitlist.Queue

	now        time.Time
	actor      string
	activities []*model.Activity

	// attendingAtLoad lets flush tell a newly created overflow from one
	// left behind by an organizer lowering capacity.
	attendingAtLoad int
}

func loadRoster(ctx context.Context, tx repository.EventTx, now time.Time, actor string) (*roster, error) {
	members, err := tx.Participants(ctx)
	if err != nil {
		return nil, fmt.Errorf("load roster: %w", err)
	}
	r := &roster{
		tx:       tx,
		event:    tx.Event(),
		members:  members,
		original: make(map[string]*model.Participant, len(members)),
		now:      now,
		actor:    actor,
	}
	for _, p := range members {
		r.original[p.ID] = p.Clone()
	}
	r.queue = waitlist.New(members)
	r.attendingAtLoad = r.attending()
	return r, nil
}

func (r *roster) find(id string) (*model.Participant, error) {
	for _, p := range r.members {
		if p.ID == id {
			return p, nil
		}
	}
	return nil, model.ErrNotFound
}

func (r *roster) findByEmail(email string) *model.Participant {
	for _, p := range r.members {
		if strings.EqualFold(p.Email, email) {
			return p
		}
	}
	return nil
}

func (r *roster) attending() int {
	n := 0
	for _, p := range r.members {
		if p.Status == model.StatusAttending {
			n++
		}
	}
	return n
}

// admit applies the admission rule to p: a seat if the event has room,
// otherwise the end of the waitlist.
func (r *roster) admit(p *model.Participant) error {
	if r.event.HasRoom(r.attending()) {
		p.Status = model.StatusAttending
		p.QueuePosition = nil
		p.ResponseDeadline = nil
		return nil
	}
	_, err := r.queue.Enqueue(p)
	return err
}

// promote moves waitlist heads to attending while the event has room.
func (r *roster) promote() []*model.Participant {
	var promoted []*model.Participant
	for r.event.HasRoom(r.attending()) {
		head := r.queue.Head()
		if head == nil {
			break
		}
		// Head is a member of the queue, so dequeueing cannot fail.
		_ = r.queue.DequeueAndCompact(head)
		head.Status = model.StatusAttending
		promoted = append(promoted, head)
		r.record(model.ActivityWaitlistPromoted, head,
			fmt.Sprintf("%s was promoted from the waitlist", head.Name),
			map[string]any{"from": string(model.StatusWaitlisted), "to": string(model.StatusAttending)},
		)
	}
	return promoted
}

// transition moves p to target following the lifecycle table. A request for
// the current status is a no-op. Moving to attending runs admission and may
// land p on the waitlist instead; leaving a seat or the queue promotes.
func (r *roster) transition(p *model.Participant, target model.Status) (bool, error) {
	if p.Status == target {
		return false, nil
	}
	if !p.Status.CanTransition(target) {
		return false, model.InvalidStatef("cannot change status from %s to %s", p.Status, target)
	}
	prev := p.Status

	switch target {
	case model.StatusAttending:
		if prev == model.StatusWaitlisted {
			return false, model.InvalidStatef("waitlisted participants are admitted by promotion only")
		}
		if !r.event.AcceptsRegistrations() {
			return false, model.InvalidStatef("event is closed for registration")
		}
		if err := r.admit(p); err != nil {
			return false, err
		}
	case model.StatusCancelled:
		if prev == model.StatusWaitlisted {
			if err := r.queue.DequeueAndCompact(p); err != nil {
				return false, err
			}
		}
		p.Status = model.StatusCancelled
	default:
		p.Status = target
	}

	meta := map[string]any{"from": string(prev), "to": string(p.Status)}
	if p.QueuePosition != nil {
		meta["queue_position"] = *p.QueuePosition
	}
	r.record(model.ActivityStatusChanged, p,
		fmt.Sprintf("%s changed status from %s to %s", p.Name, prev, p.Status), meta)

	if prev.CountsAgainstCapacity() {
		r.promote()
	}
	return true, nil
}

func (r *roster) insert(ctx context.Context, p *model.Participant) error {
	if err := r.tx.InsertParticipant(ctx, p); err != nil {
		return err
	}
	r.members = append(r.members, p)
	r.original[p.ID] = p.Clone()
	return nil
}

func (r *roster) remove(ctx context.Context, p *model.Participant) error {
	if p.Status == model.StatusWaitlisted {
		if err := r.queue.DequeueAndCompact(p); err != nil {
			return err
		}
	}
	if err := r.tx.DeleteParticipant(ctx, p.ID); err != nil {
		return err
	}
	for i, m := range r.members {
		if m.ID == p.ID {
			r.members = append(r.members[:i], r.members[i+1:]...)
			break
		}
	}
	delete(r.original, p.ID)
	return nil
}

func (r *roster) record(typ model.ActivityType, p *model.Participant, description string, meta map[string]any) {
	a := &model.Activity{
		ID:          uuid.NewString(),
		EventID:     r.event.ID,
		Type:        typ,
		Description: description,
		Metadata:    meta,
		CreatedBy:   r.actor,
		CreatedAt:   r.now,
	}
	if p != nil {
		id := p.ID
		a.ParticipantID = &id
	}
	r.activities = append(r.activities, a)
}

// check verifies the roster invariants before anything is written.
func (r *roster) check() error {
	if err := r.queue.Check(); err != nil {
		return fmt.Errorf("waitlist integrity: %w", err)
	}
	waitlisted := 0
	for _, p := range r.members {
		if p.Status == model.StatusWaitlisted {
			waitlisted++
			continue
		}
		if p.QueuePosition != nil {
			return fmt.Errorf("waitlist integrity: %s participant %s holds position %d", p.Status, p.ID, *p.QueuePosition)
		}
	}
	if waitlisted != r.queue.Len() {
		return fmt.Errorf("waitlist integrity: %d waitlisted participants but %d queued", waitlisted, r.queue.Len())
	}
	if hardCap, bounded := r.event.Capacity(); bounded {
		if n := r.attending(); n > hardCap && n > r.attendingAtLoad {
			return fmt.Errorf("%w: %d attending for %d seats", model.ErrCapacityExceeded, n, hardCap)
		}
	}
	return nil
}

// flush persists changed participants and the recorded activities.
func (r *roster) flush(ctx context.Context) error {
	if err := r.check(); err != nil {
		return err
	}
	for _, p := range r.members {
		if orig, ok := r.original[p.ID]; ok && orig.Equal(p) {
			continue
		}
		p.UpdatedAt = r.now
		if err := r.tx.UpdateParticipant(ctx, p); err != nil {
			return fmt.Errorf("save participant %s: %w", p.ID, err)
		}
		r.original[p.ID] = p.Clone()
	}
	for _, a := range r.activities {
		if err := r.tx.AppendActivity(ctx, a); err != nil {
			return err
		}
	}
	r.activities = nil
	return nil
}
