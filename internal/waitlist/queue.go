// Package waitlist keeps an event's waitlisted participants in a dense,
// 1-based queue.
//
// A Queue works on participant records loaded inside the event's locked
// transaction. It mutates Status, QueuePosition and ResponseDeadline in
// place; persisting the changed records is the caller's job. Every operation
// leaves positions numbered exactly 1..N in queue order.
package waitlist

import (
	"fmt"
	"math"
	"sort"

	"github.com/Shivanand-hulikatti/eventreg/internal/model"
)

// Queue is the ordered waitlist of a single event. It is not safe for
// concurrent use; callers hold the event lock.
type Queue struct {
	members []*model.Participant
}

// New builds the queue from all participants of an event. Waitlisted ones
// are ordered by stored position, then creation time, then id, and
// renumbered so that a damaged sequence is repaired on load.
func New(participants []*model.Participant) *Queue {
	q := &Queue{}
	for _, p := range participants {
		if p.Status == model.StatusWaitlisted {
			q.members = append(q.members, p)
		}
	}
	sort.SliceStable(q.members, func(i, j int) bool {
		a, b := q.members[i], q.members[j]
		pa, pb := a.Position(), b.Position()
		// Missing positions sort last.
		if pa == 0 {
			pa = math.MaxInt
		}
		if pb == 0 {
			pb = math.MaxInt
		}
		if pa != pb {
			return pa < pb
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})
	q.renumber()
	return q
}

// Len returns the number of waitlisted participants.
func (q *Queue) Len() int { return len(q.members) }

// Head returns the participant at position 1, or nil when the queue is empty.
func (q *Queue) Head() *model.Participant {
	if len(q.members) == 0 {
		return nil
	}
	return q.members[0]
}

// Enqueue appends p at position max+1 and marks it waitlisted.
func (q *Queue) Enqueue(p *model.Participant) (int, error) {
	if q.indexOf(p.ID) >= 0 {
		return 0, model.InvalidStatef("participant is already waitlisted")
	}
	p.Status = model.StatusWaitlisted
	q.members = append(q.members, p)
	q.renumber()
	return len(q.members), nil
}

// DequeueAndCompact removes p from the queue and closes the gap it leaves.
// p's status is left for the caller to set.
func (q *Queue) DequeueAndCompact(p *model.Participant) error {
	idx := q.indexOf(p.ID)
	if idx < 0 {
		return model.InvalidStatef("participant is not waitlisted")
	}
	q.members = append(q.members[:idx], q.members[idx+1:]...)
	p.QueuePosition = nil
	p.ResponseDeadline = nil
	q.renumber()
	return nil
}

// MoveTo moves p to target, clamped to [1, N], shifting the participants in
// between by one. It returns the position p ends up at.
func (q *Queue) MoveTo(p *model.Participant, target int) (int, error) {
	idx := q.indexOf(p.ID)
	if idx < 0 {
		return 0, model.InvalidStatef("participant is not waitlisted")
	}
	if target < 1 {
		target = 1
	}
	if target > len(q.members) {
		target = len(q.members)
	}
	dst := target - 1
	if dst == idx {
		return target, nil
	}

	m := q.members[idx]
	if dst < idx {
		copy(q.members[dst+1:idx+1], q.members[dst:idx])
	} else {
		copy(q.members[idx:dst], q.members[idx+1:dst+1])
	}
	q.members[dst] = m
	q.renumber()
	return target, nil
}

// Check verifies that positions are exactly 1..N in order and every member
// is waitlisted.
func (q *Queue) Check() error {
	for i, m := range q.members {
		if m.Status != model.StatusWaitlisted {
			return fmt.Errorf("waitlist member %s has status %s", m.ID, m.Status)
		}
		if m.Position() != i+1 {
			return fmt.Errorf("waitlist member %s at index %d has position %d", m.ID, i, m.Position())
		}
	}
	return nil
}

func (q *Queue) indexOf(id string) int {
	for i, m := range q.members {
		if m.ID == id {
			return i
		}
	}
	return -1
}

func (q *Queue) renumber() {
	for i, m := range q.members {
		if m.Position() == i+1 {
			continue
		}
		pos := i + 1
		m.QueuePosition = &pos
	}
}
