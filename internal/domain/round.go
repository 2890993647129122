package domain

import "time"

// Row is one source record from the scheduling sheet. Ordinal is the
// zero-based position in the input and participates in identity derivation.
type Row struct {
	Company          string
	Interviewer      string
	InterviewerEmail string
	Candidate        string
	CandidateEmail   string
	SchedulingText   string
	AddedOnRaw       string
	Ordinal          int
}

// RoundUnit is one normalized interview round derived from a row's
// scheduling-method text. Name is always of the form "Round <n>";
// Link is empty when no scheduling URL was found for the round.
type RoundUnit struct {
	Name string
	Link string
}

// Status enumerates the terminal outcomes of dispatching one round unit.
type Status string

const (
	StatusSent    Status = "sent"
	StatusFailed  Status = "failed"
	StatusQueued  Status = "queued"
	StatusSkipped Status = "skipped"
)

// Failure reasons recorded alongside non-sent (and future-dated sent) outcomes.
const (
	ReasonInvalidEmail   = "invalid_email"
	ReasonNoLink         = "no_scheduling_link"
	ReasonInvalidURL     = "invalid_url"
	ReasonQuotaExhausted = "quota_exhausted"
	ReasonAddedOnFuture  = "added_on_in_future"
)

// OutcomeRecord is the persisted result of processing one round unit.
// Created on first encounter of an idempotency key, updated in place on
// later runs for the same key; never deleted by this system.
type OutcomeRecord struct {
	Key              string
	Company          string
	Interviewer      string
	InterviewerEmail string
	Candidate        string
	CandidateEmail   string
	AddedOnRaw       string
	AddedOn          time.Time
	RoundName        string
	RoundLink        string
	Status           Status
	FailureReason    string
	SentAt           *time.Time
	TATSeconds       *int64
	Processed        bool
}

// Invitation carries the template fields handed to the notifier for one send.
type Invitation struct {
	To             string
	Candidate      string
	Company        string
	Interviewer    string
	RoundName      string
	SchedulingLink string
}

// Summary aggregates one batch run. Recomputed fresh each run, never persisted.
type Summary struct {
	RowsSeen         int
	RowsSkipped      int
	UnitsSeen        int
	Sent             int
	Failed           int
	Queued           int
	Skipped          int
	AlreadyProcessed int
	UnverifiedLinks  int
	// MeanTATSeconds averages turnaround over sent units whose added-on
	// timestamp was not in the future. Zero when nothing qualified.
	MeanTATSeconds float64
}
