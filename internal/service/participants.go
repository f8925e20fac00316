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

// ParticipantService holds the organizer-side participant operations.
type ParticipantService struct {
	core
	engine *Engine
}

// NewParticipantService constructs a ParticipantService. Adds go through
// engine so they share the admission rule with self-registration.
func NewParticipantService(store repository.Store, engine *Engine, log *slog.Logger) *ParticipantService {
	return &ParticipantService{core: newCore(store, log), engine: engine}
}

// Add registers a participant on the organizer's behalf.
func (s *ParticipantService) Add(ctx context.Context, eventID string, req model.RegisterRequest) (*model.Participant, error) {
	c, err := CandidateFromRequest(req)
	if err != nil {
		return nil, err
	}
	return s.engine.Register(ctx, eventID, c, SourceOrganizer)
}

// Get returns one participant of an event.
func (s *ParticipantService) Get(ctx context.Context, eventID, id string) (*model.Participant, error) {
	p, err := s.store.GetParticipant(ctx, eventID, id)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return nil, model.ErrNotFound
		}
		return nil, fmt.Errorf("get participant: %w", err)
	}
	return p, nil
}

// List returns an event's participants, optionally filtered by status.
// Waitlisted participants are ordered by queue position.
func (s *ParticipantService) List(ctx context.Context, eventID, status string) ([]model.Participant, error) {
	var filter repository.ParticipantFilter
	if status != "" {
		st, err := model.ParseStatus(status)
		if err != nil {
			return nil, err
		}
		filter.Status = st
	}
	if _, err := s.store.GetEvent(ctx, eventID); err != nil {
		return nil, err
	}
	out, err := s.store.ListParticipants(ctx, eventID, filter)
	if err != nil {
		return nil, fmt.Errorf("list participants: %w", err)
	}
	if filter.Status == model.StatusWaitlisted {
		sortByQueue(out)
	}
	if out == nil {
		out = []model.Participant{}
	}
	return out, nil
}

// Update applies an organizer patch. Status changes follow the lifecycle
// table and the admission rule; queue_position goes through the waitlist.
func (s *ParticipantService) Update(ctx context.Context, eventID, id string, req model.UpdateParticipantRequest) (*model.Participant, error) {
	var target model.Status
	if req.Status != nil {
		st, err := model.ParseStatus(*req.Status)
		if err != nil {
			return nil, err
		}
		target = st
	}

	var out *model.Participant
	err := s.withRoster(ctx, eventID, actorFrom(ctx, ActorOrganizer), func(r *roster) error {
		p, err := r.find(id)
		if err != nil {
			return err
		}

		if updated := applyProfile(p, req.Name, req.Company, req.Category); len(updated) > 0 {
			if p.Name == "" {
				return model.Validationf("name is required")
			}
			r.record(model.ActivityParticipantUpdated, p,
				fmt.Sprintf("%s updated %s", p.Name, strings.Join(updated, ", ")),
				map[string]any{"fields": updated})
		}

		if target != "" {
			if _, err := r.transition(p, target); err != nil {
				return err
			}
		}

		if req.QueuePosition != nil {
			if err := reorder(r, p, *req.QueuePosition); err != nil {
				return err
			}
		}

		if req.ResponseDeadline != nil {
			deadline, err := model.ParseDate(*req.ResponseDeadline)
			if err != nil {
				return err
			}
			if deadline != nil && p.Status != model.StatusWaitlisted {
				return model.InvalidStatef("response_deadline applies to waitlisted participants only")
			}
			before := p.ResponseDeadline
			p.ResponseDeadline = deadline
			if !sameDate(before, deadline) {
				meta := map[string]any{"fields": []string{"response_deadline"}}
				if deadline != nil {
					meta["response_deadline"] = deadline.Format("2006-01-02")
				}
				r.record(model.ActivityParticipantUpdated, p,
					fmt.Sprintf("%s response deadline updated", p.Name), meta)
			}
		}

		out = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Reorder moves a waitlisted participant to position, clamped to the queue.
func (s *ParticipantService) Reorder(ctx context.Context, eventID, id string, position int) (*model.Participant, error) {
	var out *model.Participant
	err := s.withRoster(ctx, eventID, actorFrom(ctx, ActorOrganizer), func(r *roster) error {
		p, err := r.find(id)
		if err != nil {
			return err
		}
		if err := reorder(r, p, position); err != nil {
			return err
		}
		out = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.log.InfoContext(ctx, "waitlist reordered",
		slog.String("event_id", eventID),
		slog.String("participant_id", id),
		slog.Int("queue_position", out.Position()),
	)
	return out, nil
}

// Delete removes a participant outright. The waitlist closes up behind them
// and a freed seat is handed to the head of the queue.
func (s *ParticipantService) Delete(ctx context.Context, eventID, id string) error {
	var promoted int
	err := s.withRoster(ctx, eventID, actorFrom(ctx, ActorOrganizer), func(r *roster) error {
		p, err := r.find(id)
		if err != nil {
			return err
		}
		meta := map[string]any{"status": string(p.Status), "email": p.Email}
		if p.QueuePosition != nil {
			meta["queue_position"] = *p.QueuePosition
		}
		if err := r.remove(ctx, p); err != nil {
			return err
		}
		r.record(model.ActivityParticipantDeleted, p, fmt.Sprintf("%s was removed", p.Name), meta)
		promoted = len(r.promote())
		return nil
	})
	if err != nil {
		return err
	}
	s.log.InfoContext(ctx, "participant deleted",
		slog.String("event_id", eventID),
		slog.String("participant_id", id),
		slog.Int("promoted", promoted),
	)
	return nil
}

func reorder(r *roster, p *model.Participant, position int) error {
	if p.Status != model.StatusWaitlisted {
		return model.InvalidStatef("participant is %s, only waitlisted participants can be reordered", p.Status)
	}
	from := p.Position()
	to, err := r.queue.MoveTo(p, position)
	if err != nil {
		return err
	}
	if from == to {
		return nil
	}
	r.record(model.ActivityWaitlistReordered, p,
		fmt.Sprintf("%s moved from waitlist position %d to %d", p.Name, from, to),
		map[string]any{"from": from, "to": to})
	return nil
}
