package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Shivanand-hulikatti/eventreg/internal/model"
	"github.com/Shivanand-hulikatti/eventreg/internal/repository"
)

// EventService manages events and exposes read models over their rosters.
type EventService struct {
	core
}

// NewEventService constructs an EventService.
func NewEventService(store repository.Store, log *slog.Logger) *EventService {
	return &EventService{core: newCore(store, log)}
}

// Create validates the request and stores a new event.
func (s *EventService) Create(ctx context.Context, req model.CreateEventRequest) (*model.Event, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, model.Validationf("event name is required")
	}
	status := model.EventDraft
	if req.Status != "" {
		status = model.EventStatus(strings.ToLower(strings.TrimSpace(req.Status)))
	}
	now := s.now()
	ev := &model.Event{
		ID:               s.newID(),
		Name:             name,
		Description:      strings.TrimSpace(req.Description),
		Location:         strings.TrimSpace(req.Location),
		StartsAt:         req.StartsAt,
		MaxParticipants:  capacityValue(req.MaxParticipants),
		OverbookingLimit: req.OverbookingLimit,
		Status:           status,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := validateEvent(ev, req.MaxParticipants); err != nil {
		return nil, err
	}

	if err := s.store.CreateEvent(ctx, ev); err != nil {
		return nil, fmt.Errorf("create event: %w", err)
	}
	if err := s.store.AppendActivity(ctx, &model.Activity{
		ID:          s.newID(),
		EventID:     ev.ID,
		Type:        model.ActivityEventCreated,
		Description: fmt.Sprintf("event %q created", ev.Name),
		Metadata:    map[string]any{"status": string(ev.Status)},
		CreatedBy:   actorFrom(ctx, ActorOrganizer),
		CreatedAt:   now,
	}); err != nil {
		s.log.WarnContext(ctx, "record event_created activity", slog.String("event_id", ev.ID), slog.String("error", err.Error()))
	}

	s.log.InfoContext(ctx, "event created", slog.String("event_id", ev.ID), slog.String("status", string(ev.Status)))
	return ev, nil
}

// List returns all events.
func (s *EventService) List(ctx context.Context) ([]model.Event, error) {
	events, err := s.store.ListEvents(ctx)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	if events == nil {
		events = []model.Event{}
	}
	return events, nil
}

// Get returns an event with its current occupancy.
func (s *EventService) Get(ctx context.Context, id string) (*model.EventSummary, error) {
	ev, err := s.store.GetEvent(ctx, id)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return nil, model.ErrNotFound
		}
		return nil, fmt.Errorf("get event: %w", err)
	}
	ps, err := s.store.ListParticipants(ctx, id, repository.ParticipantFilter{})
	if err != nil {
		return nil, fmt.Errorf("list participants: %w", err)
	}
	sum := &model.EventSummary{Event: *ev}
	for _, p := range ps {
		switch p.Status {
		case model.StatusAttending:
			sum.Attending++
		case model.StatusWaitlisted:
			sum.Waitlisted++
		}
	}
	sum.Remaining = ev.Remaining(sum.Attending)
	return sum, nil
}

// Update patches an event. When the change opens seats, waitlist heads are
// promoted in the same transaction. Lowering capacity never demotes anyone.
func (s *EventService) Update(ctx context.Context, id string, req model.UpdateEventRequest) (*model.Event, error) {
	var (
		out      *model.Event
		promoted int
	)
	err := s.withRoster(ctx, id, actorFrom(ctx, ActorOrganizer), func(r *roster) error {
		ev := *r.event
		var changed []string
		if req.Name != nil {
			if v := strings.TrimSpace(*req.Name); v != ev.Name {
				ev.Name = v
				changed = append(changed, "name")
			}
		}
		if req.Description != nil {
			ev.Description = strings.TrimSpace(*req.Description)
			changed = append(changed, "description")
		}
		if req.Location != nil {
			ev.Location = strings.TrimSpace(*req.Location)
			changed = append(changed, "location")
		}
		if req.StartsAt != nil {
			ev.StartsAt = req.StartsAt
			changed = append(changed, "starts_at")
		}
		if req.MaxParticipants != nil {
			ev.MaxParticipants = capacityValue(req.MaxParticipants)
			changed = append(changed, "max_participants")
		}
		if req.OverbookingLimit != nil {
			ev.OverbookingLimit = *req.OverbookingLimit
			changed = append(changed, "overbooking_limit")
		}
		if req.Status != nil {
			ev.Status = model.EventStatus(strings.ToLower(strings.TrimSpace(*req.Status)))
			changed = append(changed, "status")
		}
		if err := validateEvent(&ev, req.MaxParticipants); err != nil {
			return err
		}
		if len(changed) == 0 {
			out = r.event
			return nil
		}

		ev.UpdatedAt = r.now
		if err := r.tx.UpdateEvent(ctx, &ev); err != nil {
			return fmt.Errorf("update event: %w", err)
		}
		r.event = &ev
		r.record(model.ActivityEventUpdated, nil,
			fmt.Sprintf("event updated: %s", strings.Join(changed, ", ")),
			map[string]any{"fields": changed})
		promoted = len(r.promote())
		out = &ev
		return nil
	})
	if err != nil {
		return nil, err
	}
	if promoted > 0 {
		s.log.InfoContext(ctx, "waitlist promoted after capacity change",
			slog.String("event_id", id), slog.Int("promoted", promoted))
	}
	return out, nil
}

// Conflicts lists other events on the same day at the same location. The
// result is advisory; nothing prevents overlapping events.
func (s *EventService) Conflicts(ctx context.Context, id string) ([]model.Event, error) {
	ev, err := s.store.GetEvent(ctx, id)
	if err != nil {
		return nil, err
	}
	all, err := s.store.ListEvents(ctx)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	out := []model.Event{}
	for i := range all {
		if ev.ConflictsWith(&all[i]) {
			out = append(out, all[i])
		}
	}
	return out, nil
}

// Activities returns the event's audit trail, oldest first.
func (s *EventService) Activities(ctx context.Context, id string) ([]model.Activity, error) {
	if _, err := s.store.GetEvent(ctx, id); err != nil {
		return nil, err
	}
	acts, err := s.store.ListActivities(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("list activities: %w", err)
	}
	if acts == nil {
		acts = []model.Activity{}
	}
	return acts, nil
}

// capacityValue maps the wire form, where 0 means unlimited, to the stored
// form, where nil does.
func capacityValue(v *int) *int {
	if v == nil || *v == 0 {
		return nil
	}
	n := *v
	return &n
}

func validateEvent(ev *model.Event, rawMax *int) error {
	if ev.Name == "" {
		return model.Validationf("event name is required")
	}
	if rawMax != nil && *rawMax < 0 {
		return model.Validationf("max_participants must be a positive integer")
	}
	if ev.MaxParticipants != nil && *ev.MaxParticipants > 100_000 {
		return model.Validationf("max_participants cannot exceed 100,000")
	}
	if ev.OverbookingLimit < 0 {
		return model.Validationf("overbooking_limit must not be negative")
	}
	if !ev.Status.Valid() {
		return model.Validationf("unsupported event status %q", ev.Status)
	}
	return nil
}
