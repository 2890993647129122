package usecase

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"InterviewNotifier/internal/domain"
	"InterviewNotifier/internal/identity"
	"InterviewNotifier/internal/ports"
)

// RunState is the mutable per-run context threaded through every dispatch
// decision. QuotaExhausted is set once on the first quota signal and never
// cleared for the remainder of the run, so independent runs cannot
// interfere with each other.
type RunState struct {
	QuotaExhausted bool
	Summary        domain.Summary
	sentTATs       []int64
}

// Result is the per-unit decision the orchestrator counts against the
// batch summary.
type Result struct {
	status           domain.Status
	alreadyProcessed bool
	tat              *int64
	futureDated      bool
}

// Dispatcher runs the per-unit state machine: lookup, validation, optional
// send, and exactly one create-or-update write for every branch except the
// already-processed short-circuit.
type Dispatcher struct {
	store          ports.OutcomeStore
	notifier       ports.Notifier
	allowedDomains []string
	forceResend    bool
	now            func() time.Time
	logger         *slog.Logger
}

// DispatcherDeps wires collaborators into a Dispatcher.
type DispatcherDeps struct {
	Store          ports.OutcomeStore
	Notifier       ports.Notifier
	AllowedDomains []string
	ForceResend    bool
	Now            func() time.Time
	Logger         *slog.Logger
}

// NewDispatcher constructs the state machine component.
func NewDispatcher(deps DispatcherDeps) *Dispatcher {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &Dispatcher{
		store:          deps.Store,
		notifier:       deps.Notifier,
		allowedDomains: deps.AllowedDomains,
		forceResend:    deps.ForceResend,
		now:            now,
		logger:         deps.Logger,
	}
}

// Dispatch decides and records the outcome of one round unit. The first
// matching terminal wins; run carries the backpressure flag across units.
func (d *Dispatcher) Dispatch(ctx context.Context, row domain.Row, addedOn time.Time, unit domain.RoundUnit, run *RunState) Result {
	key := identity.Key(identity.SourceID(row), unit.Name, row.CandidateEmail)

	existingID, found, err := d.store.FindByKey(ctx, key)
	if err != nil {
		// A failed lookup re-biases toward reprocessing, matching the
		// at-least-once posture of swallowed write failures.
		d.warn("outcome lookup failed, treating as not processed", "key", key, "error", err)
		existingID, found = "", false
	}
	if found && !d.forceResend {
		d.info("round already processed", "candidate", row.Candidate, "round", unit.Name)
		return Result{status: domain.StatusSkipped, alreadyProcessed: true}
	}

	rec := domain.OutcomeRecord{
		Key:              key,
		Company:          row.Company,
		Interviewer:      row.Interviewer,
		InterviewerEmail: row.InterviewerEmail,
		Candidate:        row.Candidate,
		CandidateEmail:   row.CandidateEmail,
		AddedOnRaw:       row.AddedOnRaw,
		AddedOn:          addedOn,
		RoundName:        unit.Name,
		RoundLink:        unit.Link,
	}

	if !identity.ValidEmail(row.CandidateEmail) {
		rec.Status = domain.StatusSkipped
		rec.FailureReason = domain.ReasonInvalidEmail
		return d.finish(ctx, existingID, rec, Result{status: rec.Status})
	}

	if unit.Link == "" {
		rec.Status = domain.StatusSkipped
		rec.FailureReason = domain.ReasonNoLink
		return d.finish(ctx, existingID, rec, Result{status: rec.Status})
	}

	verified, err := identity.ClassifyLink(unit.Link, d.allowedDomains)
	if err != nil {
		rec.Status = domain.StatusSkipped
		rec.FailureReason = domain.ReasonInvalidURL
		return d.finish(ctx, existingID, rec, Result{status: rec.Status})
	}
	if !verified {
		d.warn("scheduling link domain is unverified", "candidate", row.Candidate, "link", unit.Link)
		run.Summary.UnverifiedLinks++
	}

	if run.QuotaExhausted {
		rec.Status = domain.StatusQueued
		rec.FailureReason = domain.ReasonQuotaExhausted
		return d.finish(ctx, existingID, rec, Result{status: rec.Status})
	}

	err = d.notifier.Send(ctx, domain.Invitation{
		To:             row.CandidateEmail,
		Candidate:      row.Candidate,
		Company:        row.Company,
		Interviewer:    row.Interviewer,
		RoundName:      unit.Name,
		SchedulingLink: unit.Link,
	})
	switch {
	case err == nil:
		sentAt := d.now()
		tat := identity.TATSeconds(sentAt, addedOn)
		res := Result{status: domain.StatusSent}
		if addedOn.After(sentAt) {
			// Data-quality annotation, the send itself succeeded.
			tat = 0
			rec.FailureReason = domain.ReasonAddedOnFuture
			res.futureDated = true
		}
		rec.Status = domain.StatusSent
		rec.SentAt = &sentAt
		rec.TATSeconds = &tat
		rec.Processed = true
		res.tat = &tat
		return d.finish(ctx, existingID, rec, res)
	case errors.Is(err, ports.ErrQuotaExceeded):
		run.QuotaExhausted = true
		d.warn("notifier quota exhausted, queueing remainder of run", "candidate", row.Candidate)
		rec.Status = domain.StatusQueued
		rec.FailureReason = domain.ReasonQuotaExhausted
		return d.finish(ctx, existingID, rec, Result{status: rec.Status})
	default:
		rec.Status = domain.StatusFailed
		rec.FailureReason = err.Error()
		return d.finish(ctx, existingID, rec, Result{status: rec.Status})
	}
}

// finish performs the single create-or-update write for the decided
// outcome. Write failures are logged and swallowed: the batch continues and
// the unit is simply re-evaluated as unprocessed on the next run.
func (d *Dispatcher) finish(ctx context.Context, existingID string, rec domain.OutcomeRecord, res Result) Result {
	var err error
	if existingID != "" {
		err = d.store.Update(ctx, existingID, rec)
	} else {
		_, err = d.store.Create(ctx, rec)
	}
	if err != nil {
		d.error("persist outcome failed", "key", rec.Key, "status", rec.Status, "error", err)
		return res
	}

	d.info("round dispatched",
		"candidate", rec.Candidate,
		"round", rec.RoundName,
		"status", rec.Status,
		"reason", rec.FailureReason)
	return res
}

func (d *Dispatcher) info(msg string, args ...any) {
	if d.logger != nil {
		d.logger.Info(msg, args...)
	}
}

func (d *Dispatcher) warn(msg string, args ...any) {
	if d.logger != nil {
		d.logger.Warn(msg, args...)
	}
}

func (d *Dispatcher) error(msg string, args ...any) {
	if d.logger != nil {
		d.logger.Error(msg, args...)
	}
}
