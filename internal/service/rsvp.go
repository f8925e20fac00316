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

// RSVPService drives the self-service lifecycle behind a participant's
// rsvp_token. The token is the only authorization these operations need.
type RSVPService struct {
	core
}

// NewRSVPService constructs an RSVPService.
func NewRSVPService(store repository.Store, log *slog.Logger) *RSVPService {
	return &RSVPService{core: newCore(store, log)}
}

// Lookup returns the participant behind token together with their event.
func (s *RSVPService) Lookup(ctx context.Context, token string) (*model.RSVPView, error) {
	p, err := s.byToken(ctx, token)
	if err != nil {
		return nil, err
	}
	ev, err := s.store.GetEvent(ctx, p.EventID)
	if err != nil {
		return nil, fmt.Errorf("get event: %w", err)
	}
	return &model.RSVPView{Participant: *p, Event: *ev}, nil
}

// Respond moves the participant to status. Only attending, declined and
// cancelled can be requested. Asking for the current status, or for
// attending while already on the waitlist, succeeds without changes.
func (s *RSVPService) Respond(ctx context.Context, token string, req model.RespondRequest) (*model.Participant, error) {
	target, err := model.ParseStatus(req.Status)
	if err != nil {
		return nil, err
	}
	switch target {
	case model.StatusAttending, model.StatusDeclined, model.StatusCancelled:
	default:
		return nil, model.InvalidStatef("cannot respond with status %s", target)
	}
	return s.apply(ctx, token, target, req)
}

// Cancel gives up the participant's seat or waitlist slot. A freed seat goes
// to the head of the waitlist in the same transaction.
func (s *RSVPService) Cancel(ctx context.Context, token string) (*model.Participant, error) {
	return s.apply(ctx, token, model.StatusCancelled, model.RespondRequest{})
}

func (s *RSVPService) apply(ctx context.Context, token string, target model.Status, req model.RespondRequest) (*model.Participant, error) {
	found, err := s.byToken(ctx, token)
	if err != nil {
		return nil, err
	}

	var (
		out     *model.Participant
		from    model.Status
		changed bool
	)
	err = s.withRoster(ctx, found.EventID, actorFrom(ctx, ActorParticipant), func(r *roster) error {
		p, err := r.find(found.ID)
		if err != nil {
			return err
		}
		from = p.Status

		if updated := applyProfile(p, req.Name, req.Company, req.Category); len(updated) > 0 {
			if p.Name == "" {
				return model.Validationf("name is required")
			}
			r.record(model.ActivityParticipantUpdated, p,
				fmt.Sprintf("%s updated %s", p.Name, strings.Join(updated, ", ")),
				map[string]any{"fields": updated})
		}

		if !(target == model.StatusAttending && p.Status == model.StatusWaitlisted) {
			if changed, err = r.transition(p, target); err != nil {
				return err
			}
		}
		out = p
		return nil
	})
	if err != nil {
		return nil, err
	}

	if changed {
		s.log.InfoContext(ctx, "rsvp status changed",
			slog.String("event_id", out.EventID),
			slog.String("participant_id", out.ID),
			slog.String("from", string(from)),
			slog.String("to", string(out.Status)),
		)
	}
	return out, nil
}

func (s *RSVPService) byToken(ctx context.Context, token string) (*model.Participant, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, model.ErrNotFound
	}
	p, err := s.store.ParticipantByToken(ctx, token)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return nil, model.ErrNotFound
		}
		return nil, fmt.Errorf("lookup rsvp token: %w", err)
	}
	return p, nil
}

// applyProfile sets the provided profile fields on p and returns the names
// of the ones that changed.
func applyProfile(p *model.Participant, name, company, category *string) []string {
	var updated []string
	set := func(field string, dst *string, v *string) {
		if v = cleanOptional(v); v != nil && *v != *dst {
			*dst = *v
			updated = append(updated, field)
		}
	}
	set("name", &p.Name, name)
	set("company", &p.Company, company)
	set("category", &p.Category, category)
	return updated
}
