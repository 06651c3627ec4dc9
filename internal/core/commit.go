package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/JonMunkholm/siteinventory/internal/logging"
	"github.com/JonMunkholm/siteinventory/internal/metrics"
)

// RowState is a row's position in the import pipeline.
type RowState int

const (
	StateParsed RowState = iota
	StateNormalized
	StateValid
	StateInvalid
	StateAccepted
	StateRejected
	StateCommitted
	StateCommitFailed
)

var rowStateNames = [...]string{
	StateParsed:       "parsed",
	StateNormalized:   "normalized",
	StateValid:        "valid",
	StateInvalid:      "invalid",
	StateAccepted:     "accepted",
	StateRejected:     "rejected",
	StateCommitted:    "committed",
	StateCommitFailed: "commit_failed",
}

// rowTransitions lists the only legal forward moves.
var rowTransitions = map[RowState][]RowState{
	StateParsed:     {StateNormalized},
	StateNormalized: {StateValid, StateInvalid},
	StateValid:      {StateAccepted, StateRejected},
	StateAccepted:   {StateCommitted, StateCommitFailed},
}

func (s RowState) String() string {
	if int(s) < len(rowStateNames) {
		return rowStateNames[s]
	}
	return fmt.Sprintf("RowState(%d)", int(s))
}

// MarshalText renders the state name in JSON.
func (s RowState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText parses a state name written by MarshalText.
func (s *RowState) UnmarshalText(text []byte) error {
	for i, name := range rowStateNames {
		if name == string(text) {
			*s = RowState(i)
			return nil
		}
	}
	return fmt.Errorf("unknown row state %q", text)
}

// Terminal reports whether no further transition is possible.
func (s RowState) Terminal() bool {
	return len(rowTransitions[s]) == 0
}

// advance moves to next, panicking on a transition the pipeline never makes.
func (s *RowState) advance(next RowState) {
	for _, allowed := range rowTransitions[*s] {
		if allowed == next {
			*s = next
			return
		}
	}
	panic(fmt.Sprintf("illegal row transition %s -> %s", *s, next))
}

// RowError describes one failed row in an import summary.
type RowError struct {
	Row      int               `json:"row"`
	Line     int               `json:"line"`
	State    RowState          `json:"state"`
	Reason   string            `json:"reason"`
	Code     string            `json:"code"`
	Fields   ValidationErrors  `json:"fields,omitempty"`
	Existing map[string]string `json:"existing,omitempty"`
}

// ImportSummary is the outcome of one import run. TotalRows always equals
// Succeeded + Failed + Skipped.
type ImportSummary struct {
	ImportID    string        `json:"importId"`
	Entity      string        `json:"entity"`
	FileName    string        `json:"fileName,omitempty"`
	DryRun      bool          `json:"dryRun"`
	TotalRows   int           `json:"totalRows"`
	Succeeded   int           `json:"succeeded"`
	Failed      int           `json:"failed"`
	Errors      []RowError    `json:"errors"`
	Interrupted bool          `json:"interrupted,omitempty"`
	Skipped     int           `json:"skipped,omitempty"` // rows never reached after an interruption
	Duration    time.Duration `json:"-"`
	DurationMs  int64         `json:"durationMs"`
}

// Committer writes accepted records to the store.
type Committer struct {
	def   EntityDefinition
	store Store
}

// NewCommitter returns a committer for def.
func NewCommitter(def EntityDefinition, store Store) *Committer {
	return &Committer{def: def, store: store}
}

// Commit persists one accepted decision. Each call is independent; there is
// no transaction spanning rows.
func (c *Committer) Commit(ctx context.Context, d Decision) error {
	if d.Outcome != Accept {
		return fmt.Errorf("commit row %d: decision is %s", d.Row, d.Outcome)
	}
	if err := c.def.Create(ctx, c.store, d.Record); err != nil {
		return fmt.Errorf("create %s: %w", d.Key, err)
	}
	return nil
}

// ImportOptions controls a single import run.
type ImportOptions struct {
	FileName string
	DryRun   bool // resolve every row but write nothing
}

// Importer runs parsed rows through normalize, validate, resolve and commit.
type Importer struct {
	store Store
	now   func() time.Time
}

// NewImporter returns an importer writing to store. A nil clock means time.Now.
func NewImporter(store Store, now func() time.Time) *Importer {
	if now == nil {
		now = time.Now
	}
	return &Importer{store: store, now: now}
}

// Run processes rows sequentially in input order. Row failures are recorded
// in the summary and never stop the run. If ctx ends mid-run the summary so
// far is returned with the context error.
func (im *Importer) Run(ctx context.Context, def EntityDefinition, rows []RawRow, opts ImportOptions) (*ImportSummary, error) {
	start := time.Now()
	summary := &ImportSummary{
		ImportID:  uuid.NewString(),
		Entity:    def.Info.Key,
		FileName:  opts.FileName,
		DryRun:    opts.DryRun,
		TotalRows: len(rows),
		Errors:    []RowError{},
	}

	log := logging.WithFields(ctx,
		"import_id", summary.ImportID,
		"entity", def.Info.Key,
		"file", opts.FileName,
		"dry_run", opts.DryRun,
		"client_ip", ClientIPFromContext(ctx),
	)
	log.Info("import started", "rows", len(rows))

	validator := NewValidator(def, im.now)
	resolver := NewResolver(def, im.store)
	committer := NewCommitter(def, im.store)

	var runErr error
	for i, raw := range rows {
		if err := ctx.Err(); err != nil {
			summary.Interrupted = true
			summary.Skipped = len(rows) - i
			runErr = fmt.Errorf("import interrupted before row %d: %w", raw.Row, err)
			break
		}

		state := StateParsed
		row := Normalize(def, raw)
		state.advance(StateNormalized)

		verdict := validator.Validate(row)
		if !verdict.Valid() {
			state.advance(StateInvalid)
			summary.fail(RowError{
				Row:    raw.Row,
				Line:   raw.Line,
				State:  state,
				Reason: joinReasons(verdict.Errors),
				Code:   "IMP001",
				Fields: verdict.Errors,
			})
			continue
		}
		state.advance(StateValid)

		decision, err := resolver.Resolve(ctx, verdict)
		if err != nil {
			state.advance(StateRejected)
			summary.fail(RowError{Row: raw.Row, Line: raw.Line, State: state, Reason: err.Error(), Code: MapError(err).Code})
			continue
		}
		if decision.Outcome == RejectDuplicate {
			state.advance(StateRejected)
			summary.fail(RowError{
				Row:      raw.Row,
				Line:     raw.Line,
				State:    state,
				Reason:   decision.Conflict.Error(),
				Code:     "IMP002",
				Existing: decision.Conflict.Existing.Map(),
			})
			continue
		}
		state.advance(StateAccepted)

		if opts.DryRun {
			summary.Succeeded++
			continue
		}

		if err := committer.Commit(ctx, decision); err != nil {
			state.advance(StateCommitFailed)
			summary.fail(RowError{Row: raw.Row, Line: raw.Line, State: state, Reason: commitReason(err), Code: MapError(err).Code})
			log.Warn("row commit failed", "row", raw.Row, "key", decision.Key.String(), "error", err)
			continue
		}
		state.advance(StateCommitted)
		summary.Succeeded++
	}

	summary.Duration = time.Since(start)
	summary.DurationMs = summary.Duration.Milliseconds()

	metrics.ObserveImport(def.Info.Key, summary.Succeeded, summary.Failed, opts.DryRun, summary.Duration)
	log.Info("import finished",
		"succeeded", summary.Succeeded,
		"failed", summary.Failed,
		"interrupted", summary.Interrupted,
		"skipped", summary.Skipped,
		"duration", summary.Duration,
	)

	return summary, runErr
}

func (s *ImportSummary) fail(e RowError) {
	s.Failed++
	s.Errors = append(s.Errors, e)
}

func joinReasons(errs ValidationErrors) string {
	parts := make([]string, len(errs))
	for i, e := range errs {
		parts[i] = e.Error()
	}
	return strings.Join(parts, "; ")
}

// commitReason keeps the constraint message for store rejections and the
// full wrapped error otherwise.
func commitReason(err error) string {
	var cv *ConstraintViolation
	if errors.As(err, &cv) {
		return cv.Error()
	}
	return err.Error()
}
