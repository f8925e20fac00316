// Package model defines the core domain types for the event registration
// system: events, participants, their lifecycle and the activity log.
package model

import (
	"strings"
	"time"
)

// EventStatus is the publication state of an event.
type EventStatus string

const (
	EventDraft     EventStatus = "draft"
	EventPublished EventStatus = "published"
	EventClosed    EventStatus = "closed"
)

// Valid reports whether s is a known event status.
func (s EventStatus) Valid() bool {
	switch s {
	case EventDraft, EventPublished, EventClosed:
		return true
	}
	return false
}

// Event represents an event organizers register participants for.
type Event struct {
	ID               string      `json:"id"`
	Name             string      `json:"name"`
	Description      string      `json:"description"`
	Location         string      `json:"location"`
	StartsAt         *time.Time  `json:"starts_at,omitempty"`
	MaxParticipants  *int        `json:"max_participants,omitempty"`
	OverbookingLimit int         `json:"overbooking_limit"`
	Status           EventStatus `json:"status"`
	CreatedAt        time.Time   `json:"created_at"`
	UpdatedAt        time.Time   `json:"updated_at"`
}

// Capacity returns the hard cap on attending participants. bounded is false
// when the event has no max_participants, in which case hardCap is zero and
// meaningless.
func (e *Event) Capacity() (hardCap int, bounded bool) {
	if e.MaxParticipants == nil {
		return 0, false
	}
	return *e.MaxParticipants + e.OverbookingLimit, true
}

// HasRoom reports whether one more participant may be admitted given the
// current attending count.
func (e *Event) HasRoom(attending int) bool {
	hardCap, bounded := e.Capacity()
	if !bounded {
		return true
	}
	return attending < hardCap
}

// Remaining returns the number of seats left, or -1 when unlimited.
func (e *Event) Remaining(attending int) int {
	hardCap, bounded := e.Capacity()
	if !bounded {
		return -1
	}
	if attending >= hardCap {
		return 0
	}
	return hardCap - attending
}

// AcceptsRegistrations reports whether participants may still be added.
func (e *Event) AcceptsRegistrations() bool {
	return e.Status != EventClosed
}

// ConflictsWith reports whether other takes place on the same calendar day
// at the same location. Events without a start time or location never
// conflict.
func (e *Event) ConflictsWith(other *Event) bool {
	if e.ID == other.ID || e.StartsAt == nil || other.StartsAt == nil {
		return false
	}
	loc := strings.TrimSpace(e.Location)
	if loc == "" || !strings.EqualFold(loc, strings.TrimSpace(other.Location)) {
		return false
	}
	y1, m1, d1 := e.StartsAt.UTC().Date()
	y2, m2, d2 := other.StartsAt.UTC().Date()
	return y1 == y2 && m1 == m2 && d1 == d2
}

// EventSummary is an event plus its current occupancy.
type EventSummary struct {
	Event
	Attending  int `json:"attending"`
	Waitlisted int `json:"waitlisted"`
	Remaining  int `json:"remaining"`
}
