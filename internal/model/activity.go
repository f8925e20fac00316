package model

import "time"

// ActivityType names the kind of transition an Activity records.
type ActivityType string

const (
	ActivityEventCreated       ActivityType = "event_created"
	ActivityEventUpdated       ActivityType = "event_updated"
	ActivityParticipantAdded   ActivityType = "participant_added"
	ActivityRegistered         ActivityType = "participant_registered"
	ActivityParticipantUpdated ActivityType = "participant_updated"
	ActivityStatusChanged      ActivityType = "participant_status_changed"
	ActivityParticipantDeleted ActivityType = "participant_deleted"
	ActivityWaitlistPromoted   ActivityType = "waitlist_promoted"
	ActivityWaitlistReordered  ActivityType = "waitlist_reordered"
	ActivityImported           ActivityType = "participants_imported"
)

// Activity is an append-only audit record. It is never mutated once written.
type Activity struct {
	ID            string         `json:"id"`
	EventID       string         `json:"event_id"`
	ParticipantID *string        `json:"participant_id,omitempty"`
	Type          ActivityType   `json:"type"`
	Description   string         `json:"description"`
	Metadata      map[string]any `json:"metadata,omitempty"`
	CreatedBy     string         `json:"created_by"`
	CreatedAt     time.Time      `json:"created_at"`
}
