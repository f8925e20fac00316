package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Shivanand-hulikatti/eventreg/internal/model"
	"github.com/Shivanand-hulikatti/eventreg/internal/repository"
)

// Source identifies which path a registration came in through.
type Source int

const (
	SourceOrganizer Source = iota
	SourcePublic
	SourceImport
)

func (s Source) String() string {
	switch s {
	case SourcePublic:
		return "public"
	case SourceImport:
		return "import"
	default:
		return "organizer"
	}
}

func (s Source) defaultActor() string {
	switch s {
	case SourcePublic:
		return ActorPublic
	case SourceImport:
		return ActorImport
	default:
		return ActorOrganizer
	}
}

// Candidate is a person asking for a place at an event.
type Candidate struct {
	Name     string
	Email    string
	Company  string
	Category string
	// Invite creates the participant as invited without taking a seat.
	// Only honoured for organizer adds.
	Invite bool
	// ResponseDeadline is kept only if the candidate lands on the waitlist.
	ResponseDeadline *time.Time
}

// CandidateFromRequest converts an HTTP payload into a Candidate.
func CandidateFromRequest(req model.RegisterRequest) (Candidate, error) {
	c := Candidate{
		Name:     req.Name,
		Email:    req.Email,
		Company:  req.Company,
		Category: req.Category,
	}
	if req.Status != "" {
		st, err := model.ParseStatus(req.Status)
		if err != nil {
			return Candidate{}, err
		}
		switch st {
		case model.StatusInvited:
			c.Invite = true
		case model.StatusAttending, model.StatusWaitlisted:
			// admission decides between the two
		default:
			return Candidate{}, model.InvalidStatef("new participants cannot start as %s", st)
		}
	}
	deadline, err := model.ParseDate(req.ResponseDeadline)
	if err != nil {
		return Candidate{}, err
	}
	c.ResponseDeadline = deadline
	return c, nil
}

func (c *Candidate) normalize() {
	c.Name = strings.TrimSpace(c.Name)
	c.Email = model.NormalizeEmail(c.Email)
	c.Company = strings.TrimSpace(c.Company)
	c.Category = strings.TrimSpace(c.Category)
}

// Engine makes admission decisions for new registrations.
type Engine struct {
	core
}

// NewEngine constructs an Engine over store.
func NewEngine(store repository.Store, log *slog.Logger) *Engine {
	return &Engine{core: newCore(store, log)}
}

// Register admits c to the event: attending while the event has room,
// otherwise appended to the waitlist. The capacity check and the insert run
// in one transaction under the event lock.
func (e *Engine) Register(ctx context.Context, eventID string, c Candidate, src Source) (*model.Participant, error) {
	c.normalize()
	if err := validateIdentity(c.Name, c.Email); err != nil {
		return nil, err
	}

	var created *model.Participant
	err := e.withRoster(ctx, eventID, actorFrom(ctx, src.defaultActor()), func(r *roster) error {
		if !r.event.AcceptsRegistrations() {
			return model.InvalidStatef("event is closed for registration")
		}
		if src == SourcePublic && r.event.Status != model.EventPublished {
			return model.InvalidStatef("event is not open for registration")
		}
		if r.findByEmail(c.Email) != nil {
			return model.ErrConflict
		}

		now := r.now
		p := &model.Participant{
			ID:        e.newID(),
			EventID:   eventID,
			Name:      c.Name,
			Email:     c.Email,
			Company:   c.Company,
			Category:  c.Category,
			RSVPToken: e.newToken(),
			CreatedAt: now,
			UpdatedAt: now,
		}
		if c.Invite && src == SourceOrganizer {
			p.Status = model.StatusInvited
		} else if err := r.admit(p); err != nil {
			return err
		}
		if p.Status == model.StatusWaitlisted && c.ResponseDeadline != nil {
			d := *c.ResponseDeadline
			p.ResponseDeadline = &d
		}
		if err := r.insert(ctx, p); err != nil {
			return err
		}

		typ := model.ActivityRegistered
		verb := "registered"
		if src == SourceOrganizer {
			typ = model.ActivityParticipantAdded
			verb = "was added"
		}
		meta := map[string]any{"status": string(p.Status), "source": src.String()}
		desc := fmt.Sprintf("%s %s as %s", p.Name, verb, p.Status)
		if p.QueuePosition != nil {
			meta["queue_position"] = *p.QueuePosition
			desc = fmt.Sprintf("%s %s and was waitlisted at position %d", p.Name, verb, *p.QueuePosition)
		}
		r.record(typ, p, desc, meta)

		created = p
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.log.InfoContext(ctx, "participant registered",
		slog.String("event_id", eventID),
		slog.String("participant_id", created.ID),
		slog.String("status", string(created.Status)),
		slog.Int("queue_position", created.Position()),
		slog.String("source", src.String()),
	)
	return created, nil
}
