package model

import (
	"strings"
	"time"
)

// Status is a participant's position in the RSVP lifecycle.
type Status string

const (
	StatusInvited    Status = "invited"
	StatusAttending  Status = "attending"
	StatusDeclined   Status = "declined"
	StatusWaitlisted Status = "waitlisted"
	StatusCancelled  Status = "cancelled"
)

// ParseStatus converts a free-form string into a Status, rejecting unknown
// values with ErrInvalidState.
func ParseStatus(s string) (Status, error) {
	st := Status(strings.ToLower(strings.TrimSpace(s)))
	switch st {
	case StatusInvited, StatusAttending, StatusDeclined, StatusWaitlisted, StatusCancelled:
		return st, nil
	}
	return "", InvalidStatef("unsupported status %q", s)
}

// transitions lists every permitted status change. waitlisted -> attending is
// only taken by promotion, never requested directly.
var transitions = map[Status][]Status{
	StatusInvited:    {StatusAttending, StatusDeclined},
	StatusDeclined:   {StatusAttending},
	StatusAttending:  {StatusCancelled},
	StatusCancelled:  {StatusAttending},
	StatusWaitlisted: {StatusAttending, StatusCancelled},
}

// CanTransition reports whether the lifecycle allows moving from s to next.
func (s Status) CanTransition(next Status) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// CountsAgainstCapacity reports whether a participant in this status
// occupies a seat or a waitlist slot.
func (s Status) CountsAgainstCapacity() bool {
	return s == StatusAttending || s == StatusWaitlisted
}

// Participant is one person's registration for one event.
type Participant struct {
	ID               string     `json:"id"`
	EventID          string     `json:"event_id"`
	Name             string     `json:"name"`
	Email            string     `json:"email"`
	Company          string     `json:"company,omitempty"`
	Category         string     `json:"category,omitempty"`
	Status           Status     `json:"status"`
	QueuePosition    *int       `json:"queue_position,omitempty"`
	ResponseDeadline *time.Time `json:"response_deadline,omitempty"`
	RSVPToken        string     `json:"rsvp_token,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// Clone returns a deep copy of p.
func (p *Participant) Clone() *Participant {
	c := *p
	if p.QueuePosition != nil {
		pos := *p.QueuePosition
		c.QueuePosition = &pos
	}
	if p.ResponseDeadline != nil {
		d := *p.ResponseDeadline
		c.ResponseDeadline = &d
	}
	return &c
}

// Equal reports whether p and o hold the same values.
func (p *Participant) Equal(o *Participant) bool {
	if p.ID != o.ID || p.EventID != o.EventID || p.Name != o.Name ||
		p.Email != o.Email || p.Company != o.Company || p.Category != o.Category ||
		p.Status != o.Status || p.RSVPToken != o.RSVPToken ||
		!p.CreatedAt.Equal(o.CreatedAt) || !p.UpdatedAt.Equal(o.UpdatedAt) {
		return false
	}
	if (p.QueuePosition == nil) != (o.QueuePosition == nil) {
		return false
	}
	if p.QueuePosition != nil && *p.QueuePosition != *o.QueuePosition {
		return false
	}
	if (p.ResponseDeadline == nil) != (o.ResponseDeadline == nil) {
		return false
	}
	return p.ResponseDeadline == nil || p.ResponseDeadline.Equal(*o.ResponseDeadline)
}

// Position returns the queue position or 0 when not waitlisted.
func (p *Participant) Position() int {
	if p.QueuePosition == nil {
		return 0
	}
	return *p.QueuePosition
}

// NormalizeEmail lower-cases and trims an address for per-event uniqueness.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
