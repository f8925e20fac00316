package model

import (
	"strings"
	"time"
)

// CreateEventRequest is the payload for creating a new event.
type CreateEventRequest struct {
	Name             string     `json:"name"`
	Description      string     `json:"description"`
	Location         string     `json:"location"`
	StartsAt         *time.Time `json:"starts_at"`
	MaxParticipants  *int       `json:"max_participants"`
	OverbookingLimit int        `json:"overbooking_limit"`
	Status           string     `json:"status"`
}

// UpdateEventRequest patches an event. A max_participants of 0 removes the
// limit.
type UpdateEventRequest struct {
	Name             *string    `json:"name"`
	Description      *string    `json:"description"`
	Location         *string    `json:"location"`
	StartsAt         *time.Time `json:"starts_at"`
	MaxParticipants  *int       `json:"max_participants"`
	OverbookingLimit *int       `json:"overbooking_limit"`
	Status           *string    `json:"status"`
}

// RegisterRequest is the payload for adding or self-registering a participant.
// Status is honoured only for organizer adds and only accepts "invited".
type RegisterRequest struct {
	Name             string `json:"name"`
	Email            string `json:"email"`
	Company          string `json:"company"`
	Category         string `json:"category"`
	Status           string `json:"status"`
	ResponseDeadline string `json:"response_deadline"`
}

// UpdateParticipantRequest patches a participant. An empty response_deadline
// clears it.
type UpdateParticipantRequest struct {
	Name             *string `json:"name"`
	Company          *string `json:"company"`
	Category         *string `json:"category"`
	Status           *string `json:"status"`
	QueuePosition    *int    `json:"queue_position"`
	ResponseDeadline *string `json:"response_deadline"`
}

// ReorderRequest moves a waitlisted participant to a new queue position.
type ReorderRequest struct {
	QueuePosition int `json:"queue_position"`
}

// RespondRequest is the payload of a participant's RSVP answer.
type RespondRequest struct {
	Status   string  `json:"status"`
	Name     *string `json:"name"`
	Company  *string `json:"company"`
	Category *string `json:"category"`
}

// RSVPView is what a participant sees when opening their RSVP link.
type RSVPView struct {
	Participant Participant `json:"participant"`
	Event       Event       `json:"event"`
}

// ImportRowError describes why one CSV row was skipped.
type ImportRowError struct {
	Row    int    `json:"row"`
	Email  string `json:"email,omitempty"`
	Reason string `json:"reason"`
}

// ImportResult summarises a bulk import.
type ImportResult struct {
	Imported int              `json:"imported"`
	Skipped  int              `json:"skipped"`
	Total    int              `json:"total"`
	Errors   []ImportRowError `json:"errors"`
}

// ErrorResponse is a standard JSON error envelope.
type ErrorResponse struct {
	Error string `json:"error"`
}

// ImportFailure is returned when an import stops part way. Result lists the
// rows processed before the failure; those rows stay committed.
type ImportFailure struct {
	Error  string        `json:"error"`
	Result *ImportResult `json:"result"`
}

// ParseDate parses a YYYY-MM-DD date. An empty string yields nil.
func ParseDate(s string) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	d, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return nil, Validationf("invalid date %q, expected YYYY-MM-DD", s)
	}
	return &d, nil
}
