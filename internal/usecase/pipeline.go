package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"InterviewNotifier/internal/domain"
	"InterviewNotifier/internal/identity"
	"InterviewNotifier/internal/ports"
	"InterviewNotifier/internal/rounds"
)

// PipelineDeps wires the row source and the dispatcher into the batch run.
type PipelineDeps struct {
	Source     ports.RowSource
	Dispatcher *Dispatcher
	Timezone   *time.Location
	Now        func() time.Time
	Logger     *slog.Logger
}

// Pipeline is the batch orchestrator: rows strictly in input order, rounds
// strictly in splitter order, one shared RunState per run.
type Pipeline struct {
	source     ports.RowSource
	dispatcher *Dispatcher
	timezone   *time.Location
	now        func() time.Time
	logger     *slog.Logger
}

// NewPipeline constructs the orchestration component.
func NewPipeline(deps PipelineDeps) *Pipeline {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	tz := deps.Timezone
	if tz == nil {
		tz = time.UTC
	}
	return &Pipeline{
		source:     deps.Source,
		dispatcher: deps.Dispatcher,
		timezone:   tz,
		now:        now,
		logger:     deps.Logger,
	}
}

// Run processes the whole batch to completion. Row faults are warned and
// skipped; only a failure to read the input at all is returned as an error.
func (p *Pipeline) Run(ctx context.Context) (domain.Summary, error) {
	if p.source == nil || p.dispatcher == nil {
		return domain.Summary{}, fmt.Errorf("pipeline is not fully wired")
	}

	rows, err := p.source.Rows(ctx)
	if err != nil {
		return domain.Summary{}, fmt.Errorf("read rows: %w", err)
	}

	run := &RunState{}
	for _, row := range rows {
		p.processRow(ctx, row, run)
	}

	run.Summary.MeanTATSeconds = meanTAT(run.sentTATs)
	p.logSummary(run.Summary)
	return run.Summary, nil
}

func (p *Pipeline) processRow(ctx context.Context, row domain.Row, run *RunState) {
	run.Summary.RowsSeen++

	if reason := missingField(row); reason != "" {
		p.warn("row skipped: missing required field", "row", row.Ordinal, "field", reason)
		run.Summary.RowsSkipped++
		return
	}

	addedOn, err := identity.ParseAddedOn(row.AddedOnRaw, p.timezone, p.now())
	if err != nil {
		if errors.Is(err, identity.ErrUnparseableDate) {
			p.warn("row skipped: unparseable added-on date", "row", row.Ordinal, "added_on", row.AddedOnRaw)
		} else {
			p.warn("row skipped: added-on date", "row", row.Ordinal, "error", err)
		}
		run.Summary.RowsSkipped++
		return
	}

	if row.InterviewerEmail != "" && !identity.ValidEmail(row.InterviewerEmail) {
		p.warn("interviewer email looks invalid", "row", row.Ordinal, "email", row.InterviewerEmail)
	}

	units := rounds.Split(row.SchedulingText)
	if len(units) == 0 {
		p.warn("row skipped: no rounds detected", "row", row.Ordinal, "candidate", row.Candidate)
		run.Summary.RowsSkipped++
		return
	}

	for _, unit := range units {
		run.Summary.UnitsSeen++
		res := p.dispatcher.Dispatch(ctx, row, addedOn, unit, run)
		p.account(res, run)
	}
}

func (p *Pipeline) account(res Result, run *RunState) {
	if res.alreadyProcessed {
		run.Summary.AlreadyProcessed++
		return
	}
	switch res.status {
	case domain.StatusSent:
		run.Summary.Sent++
		if res.tat != nil && !res.futureDated {
			run.sentTATs = append(run.sentTATs, *res.tat)
		}
	case domain.StatusFailed:
		run.Summary.Failed++
	case domain.StatusQueued:
		run.Summary.Queued++
	case domain.StatusSkipped:
		run.Summary.Skipped++
	}
}

// missingField names the first absent required field, or "" when valid.
// Interviewer name and email are optional, everything else is required.
func missingField(row domain.Row) string {
	switch {
	case isBlank(row.Company):
		return "company"
	case isBlank(row.Candidate):
		return "candidate"
	case isBlank(row.CandidateEmail):
		return "candidate email"
	case isBlank(row.AddedOnRaw):
		return "added on"
	case isBlank(row.SchedulingText):
		return "scheduling method"
	default:
		return ""
	}
}

func isBlank(s string) bool {
	for _, r := range s {
		if r != ' ' && r != '\t' && r != '\n' && r != '\r' {
			return false
		}
	}
	return true
}

func meanTAT(tats []int64) float64 {
	if len(tats) == 0 {
		return 0
	}
	var total int64
	for _, t := range tats {
		total += t
	}
	return float64(total) / float64(len(tats))
}

func (p *Pipeline) logSummary(s domain.Summary) {
	if p.logger == nil {
		return
	}
	p.logger.Info("batch complete",
		"rows", s.RowsSeen,
		"rows_skipped", s.RowsSkipped,
		"units", s.UnitsSeen,
		"sent", s.Sent,
		"failed", s.Failed,
		"queued", s.Queued,
		"skipped", s.Skipped,
		"already_processed", s.AlreadyProcessed,
		"unverified_links", s.UnverifiedLinks,
		"mean_tat_seconds", s.MeanTATSeconds)
}

func (p *Pipeline) warn(msg string, args ...any) {
	if p.logger != nil {
		p.logger.Warn(msg, args...)
	}
}
