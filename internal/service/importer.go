package service

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/Shivanand-hulikatti/eventreg/internal/model"
	"github.com/Shivanand-hulikatti/eventreg/internal/repository"
)

// Row skip reasons reported in ImportResult.Errors.
const (
	ReasonMissingName  = "missing name"
	ReasonMissingEmail = "missing email"
	ReasonInvalidEmail = "invalid email"
	ReasonDuplicate    = "duplicate"
	ReasonRowLimit     = "row limit exceeded"
	ReasonMalformed    = "malformed row"
)

// Importer streams CSV rows through the Engine in file order. Each row is
// its own transaction, so a row's admission decision is consistent with
// concurrent registrations and a bad row never aborts the batch.
type Importer struct {
	core
	engine  *Engine
	maxRows int
}

// NewImporter constructs an Importer. maxRows bounds one import; rows past
// it are skipped.
func NewImporter(store repository.Store, engine *Engine, maxRows int, log *slog.Logger) *Importer {
	return &Importer{core: newCore(store, log), engine: engine, maxRows: maxRows}
}

type columns struct {
	name, email, company, category int
}

func (c columns) get(rec []string, idx int) string {
	if idx < 0 || idx >= len(rec) {
		return ""
	}
	return strings.TrimSpace(rec[idx])
}

func parseHeader(header []string) (columns, error) {
	cols := columns{name: -1, email: -1, company: -1, category: -1}
	for i, h := range header {
		h = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		switch h {
		case "name":
			cols.name = i
		case "email":
			cols.email = i
		case "company":
			cols.company = i
		case "category":
			cols.category = i
		}
	}
	if cols.name < 0 || cols.email < 0 {
		return cols, model.Validationf("csv header must include name and email columns")
	}
	return cols, nil
}

// Import reads a CSV document with a header row and registers each row.
// Row numbers in the result are CSV line numbers, the header being line 1.
// Errors other than per-row rejections stop the import and are returned
// with the partial result.
func (im *Importer) Import(ctx context.Context, eventID string, src io.Reader) (*model.ImportResult, error) {
	ev, err := im.store.GetEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if !ev.AcceptsRegistrations() {
		return nil, model.InvalidStatef("event is closed for registration")
	}

	cr := csv.NewReader(src)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	cr.ReuseRecord = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, model.Validationf("csv file is empty")
	}
	if err != nil {
		return nil, model.Validationf("read csv header: %v", err)
	}
	cols, err := parseHeader(header)
	if err != nil {
		return nil, err
	}

	res := &model.ImportResult{Errors: []model.ImportRowError{}}
	skip := func(row int, email, reason string) {
		res.Skipped++
		res.Errors = append(res.Errors, model.ImportRowError{Row: row, Email: email, Reason: reason})
	}
	seen := make(map[string]struct{})

	for {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var perr *csv.ParseError
			if !errors.As(err, &perr) {
				return res, fmt.Errorf("read csv: %w", err)
			}
			res.Total++
			skip(perr.StartLine, "", ReasonMalformed)
			continue
		}
		row, _ := cr.FieldPos(0)
		res.Total++

		name := cols.get(rec, cols.name)
		email := model.NormalizeEmail(cols.get(rec, cols.email))
		switch {
		case im.maxRows > 0 && res.Total > im.maxRows:
			skip(row, email, ReasonRowLimit)
			continue
		case name == "":
			skip(row, email, ReasonMissingName)
			continue
		case email == "":
			skip(row, email, ReasonMissingEmail)
			continue
		case !validEmail(email):
			skip(row, email, ReasonInvalidEmail)
			continue
		}
		if _, dup := seen[email]; dup {
			skip(row, email, ReasonDuplicate)
			continue
		}
		seen[email] = struct{}{}

		_, err = im.engine.Register(ctx, eventID, Candidate{
			Name:     name,
			Email:    email,
			Company:  cols.get(rec, cols.company),
			Category: cols.get(rec, cols.category),
		}, SourceImport)
		switch {
		case err == nil:
			res.Imported++
		case errors.Is(err, model.ErrConflict):
			skip(row, email, ReasonDuplicate)
		case errors.Is(err, model.ErrValidation):
			skip(row, email, strings.TrimPrefix(err.Error(), model.ErrValidation.Error()+": "))
		default:
			return res, fmt.Errorf("import row %d: %w", row, err)
		}
	}

	im.recordSummary(ctx, eventID, res)
	im.log.InfoContext(ctx, "participants imported",
		slog.String("event_id", eventID),
		slog.Int("imported", res.Imported),
		slog.Int("skipped", res.Skipped),
		slog.Int("total", res.Total),
	)
	return res, nil
}

func (im *Importer) recordSummary(ctx context.Context, eventID string, res *model.ImportResult) {
	err := im.store.AppendActivity(ctx, &model.Activity{
		ID:          im.newID(),
		EventID:     eventID,
		Type:        model.ActivityImported,
		Description: fmt.Sprintf("imported %d of %d participants", res.Imported, res.Total),
		Metadata: map[string]any{
			"imported": res.Imported,
			"skipped":  res.Skipped,
			"total":    res.Total,
		},
		CreatedBy: actorFrom(ctx, ActorImport),
		CreatedAt: im.now(),
	})
	if err != nil {
		im.log.WarnContext(ctx, "record import activity", slog.String("event_id", eventID), slog.String("error", err.Error()))
	}
}
