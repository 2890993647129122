package usecase

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"testing"
	"time"

	"InterviewNotifier/internal/domain"
	"InterviewNotifier/internal/ports"
)

var allowedDomains = []string{"calendly.com", "cal.com", "forms.gle"}

// fixedNow is safely after any "DD MON HH:MM" stamp of its own year.
var fixedNow = time.Date(2026, time.December, 1, 12, 0, 0, 0, time.UTC)

type fakeStore struct {
	mu         sync.Mutex
	nextID     int
	idByKey    map[string]string
	records    map[string]domain.OutcomeRecord
	failWrites bool
	creates    int
	updates    int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		idByKey: map[string]string{},
		records: map[string]domain.OutcomeRecord{},
	}
}

func (s *fakeStore) FindByKey(_ context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.idByKey[key]
	return id, ok, nil
}

func (s *fakeStore) Create(_ context.Context, rec domain.OutcomeRecord) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWrites {
		return "", errors.New("store unavailable")
	}
	s.nextID++
	id := strconv.Itoa(s.nextID)
	s.idByKey[rec.Key] = id
	s.records[id] = rec
	s.creates++
	return id, nil
}

func (s *fakeStore) Update(_ context.Context, id string, rec domain.OutcomeRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWrites {
		return errors.New("store unavailable")
	}
	if _, ok := s.records[id]; !ok {
		return fmt.Errorf("record %s not found", id)
	}
	s.records[id] = rec
	s.updates++
	return nil
}

func (s *fakeStore) byStatus(status domain.Status) []domain.OutcomeRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.OutcomeRecord
	for _, rec := range s.records {
		if rec.Status == status {
			out = append(out, rec)
		}
	}
	return out
}

type fakeNotifier struct {
	mu         sync.Mutex
	sent       []domain.Invitation
	quotaAfter int // quota error once this many sends succeeded; <0 disables
	failWith   error
}

func newFakeNotifier() *fakeNotifier {
	return &fakeNotifier{quotaAfter: -1}
}

func (n *fakeNotifier) Send(_ context.Context, inv domain.Invitation) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.failWith != nil {
		return n.failWith
	}
	if n.quotaAfter >= 0 && len(n.sent) >= n.quotaAfter {
		return fmt.Errorf("daily send limit: %w", ports.ErrQuotaExceeded)
	}
	n.sent = append(n.sent, inv)
	return nil
}

func (n *fakeNotifier) sendCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.sent)
}

type staticSource struct {
	rows []domain.Row
}

func (s *staticSource) Rows(context.Context) ([]domain.Row, error) {
	return s.rows, nil
}

func newPipeline(rows []domain.Row, store ports.OutcomeStore, notifier ports.Notifier, force bool) *Pipeline {
	dispatcher := NewDispatcher(DispatcherDeps{
		Store:          store,
		Notifier:       notifier,
		AllowedDomains: allowedDomains,
		ForceResend:    force,
		Now:            func() time.Time { return fixedNow },
	})
	return NewPipeline(PipelineDeps{
		Source:     &staticSource{rows: rows},
		Dispatcher: dispatcher,
		Timezone:   time.UTC,
		Now:        func() time.Time { return fixedNow },
	})
}

func schedulingRow(ordinal int) domain.Row {
	return domain.Row{
		Company:        "Acme",
		Interviewer:    "Sam",
		Candidate:      "Jo",
		CandidateEmail: "jo@x.com",
		SchedulingText: "Round1: https://calendly.com/a\nRound2: https://calendly.com/b",
		AddedOnRaw:     "03 Nov 6:15",
		Ordinal:        ordinal,
	}
}

func TestPipelineSendsEachRound(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	notifier := newFakeNotifier()
	pipe := newPipeline([]domain.Row{schedulingRow(0)}, store, notifier, false)

	summary, err := pipe.Run(context.Background())
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	if summary.Sent != 2 || summary.UnitsSeen != 2 {
		t.Fatalf("summary = %+v, want 2 units both sent", summary)
	}
	if notifier.sendCount() != 2 {
		t.Fatalf("notifier sent %d invitations, want 2", notifier.sendCount())
	}

	sent := store.byStatus(domain.StatusSent)
	if len(sent) != 2 {
		t.Fatalf("store holds %d sent records, want 2", len(sent))
	}
	if sent[0].Key == sent[1].Key {
		t.Error("both rounds persisted under the same idempotency key")
	}
	for _, rec := range sent {
		if rec.TATSeconds == nil || *rec.TATSeconds < 0 {
			t.Errorf("record %s has no non-negative TAT: %v", rec.RoundName, rec.TATSeconds)
		}
		if !rec.Processed {
			t.Errorf("record %s is not marked processed", rec.RoundName)
		}
		if rec.FailureReason != "" {
			t.Errorf("record %s carries failure reason %q", rec.RoundName, rec.FailureReason)
		}
	}
}

func TestPipelineInvalidEmailSkipsWithoutSending(t *testing.T) {
	t.Parallel()

	row := schedulingRow(0)
	row.CandidateEmail = "not-an-email"

	store := newFakeStore()
	notifier := newFakeNotifier()
	pipe := newPipeline([]domain.Row{row}, store, notifier, false)

	summary, err := pipe.Run(context.Background())
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	if notifier.sendCount() != 0 {
		t.Fatalf("notifier was invoked %d times, want 0", notifier.sendCount())
	}
	if summary.Skipped != 2 {
		t.Fatalf("summary.Skipped = %d, want 2", summary.Skipped)
	}

	skipped := store.byStatus(domain.StatusSkipped)
	if len(skipped) != 2 {
		t.Fatalf("store holds %d skipped records, want 2", len(skipped))
	}
	for _, rec := range skipped {
		if rec.FailureReason != domain.ReasonInvalidEmail {
			t.Errorf("reason = %q, want %q", rec.FailureReason, domain.ReasonInvalidEmail)
		}
	}
}

func TestPipelineQuotaBackpressure(t *testing.T) {
	t.Parallel()

	rows := []domain.Row{schedulingRow(0), schedulingRow(1)}
	store := newFakeStore()
	notifier := newFakeNotifier()
	notifier.quotaAfter = 1 // first send succeeds, second send trips the quota
	pipe := newPipeline(rows, store, notifier, false)

	summary, err := pipe.Run(context.Background())
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	if summary.Sent != 1 {
		t.Fatalf("summary.Sent = %d, want 1", summary.Sent)
	}
	if summary.Queued != 3 {
		t.Fatalf("summary.Queued = %d, want 3 (one tripped, two backpressured across rows)", summary.Queued)
	}
	if notifier.sendCount() != 1 {
		t.Fatalf("notifier delivered %d sends, want exactly 1", notifier.sendCount())
	}

	for _, rec := range store.byStatus(domain.StatusQueued) {
		if rec.FailureReason != domain.ReasonQuotaExhausted {
			t.Errorf("queued record %s reason = %q, want %q", rec.RoundName, rec.FailureReason, domain.ReasonQuotaExhausted)
		}
	}
}

func TestPipelineRerunIsIdempotent(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	notifier := newFakeNotifier()

	first := newPipeline([]domain.Row{schedulingRow(0)}, store, notifier, false)
	if _, err := first.Run(context.Background()); err != nil {
		t.Fatalf("first run: %v", err)
	}
	sendsAfterFirst := notifier.sendCount()

	second := newPipeline([]domain.Row{schedulingRow(0)}, store, notifier, false)
	summary, err := second.Run(context.Background())
	if err != nil {
		t.Fatalf("second run: %v", err)
	}

	if notifier.sendCount() != sendsAfterFirst {
		t.Fatalf("rerun produced new sends: %d -> %d", sendsAfterFirst, notifier.sendCount())
	}
	if summary.AlreadyProcessed != 2 {
		t.Fatalf("summary.AlreadyProcessed = %d, want 2", summary.AlreadyProcessed)
	}
	if summary.Sent != 0 {
		t.Fatalf("summary.Sent = %d, want 0 on rerun", summary.Sent)
	}
	if store.creates != 2 || store.updates != 0 {
		t.Fatalf("store writes = %d creates / %d updates, want 2/0", store.creates, store.updates)
	}
}

func TestPipelineForceResendUpdatesInPlace(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	notifier := newFakeNotifier()

	first := newPipeline([]domain.Row{schedulingRow(0)}, store, notifier, false)
	if _, err := first.Run(context.Background()); err != nil {
		t.Fatalf("first run: %v", err)
	}

	forced := newPipeline([]domain.Row{schedulingRow(0)}, store, notifier, true)
	summary, err := forced.Run(context.Background())
	if err != nil {
		t.Fatalf("forced run: %v", err)
	}

	if summary.Sent != 2 {
		t.Fatalf("forced summary.Sent = %d, want 2", summary.Sent)
	}
	if notifier.sendCount() != 4 {
		t.Fatalf("notifier sends = %d, want 4 across both runs", notifier.sendCount())
	}
	if store.creates != 2 || store.updates != 2 {
		t.Fatalf("store writes = %d creates / %d updates, want 2/2", store.creates, store.updates)
	}
	if len(store.records) != 2 {
		t.Fatalf("store holds %d records, want 2 (updated in place)", len(store.records))
	}
}

func TestPipelineFutureAddedOnAnnotatesSend(t *testing.T) {
	t.Parallel()

	row := schedulingRow(0)
	row.SchedulingText = "Round 1: https://calendly.com/a"
	row.AddedOnRaw = "3/11/2027 06:15 AM" // after fixedNow

	store := newFakeStore()
	notifier := newFakeNotifier()
	pipe := newPipeline([]domain.Row{row}, store, notifier, false)

	summary, err := pipe.Run(context.Background())
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	if summary.Sent != 1 {
		t.Fatalf("summary.Sent = %d, want 1 (future date is an annotation, not a failure)", summary.Sent)
	}
	if summary.MeanTATSeconds != 0 {
		t.Fatalf("MeanTATSeconds = %f, want 0 (future-dated sends excluded)", summary.MeanTATSeconds)
	}

	sent := store.byStatus(domain.StatusSent)
	if len(sent) != 1 {
		t.Fatalf("store holds %d sent records, want 1", len(sent))
	}
	rec := sent[0]
	if rec.FailureReason != domain.ReasonAddedOnFuture {
		t.Errorf("reason = %q, want %q", rec.FailureReason, domain.ReasonAddedOnFuture)
	}
	if rec.TATSeconds == nil || *rec.TATSeconds != 0 {
		t.Errorf("TAT = %v, want forced 0", rec.TATSeconds)
	}
}

func TestPipelineLinkFaults(t *testing.T) {
	t.Parallel()

	noLink := schedulingRow(0)
	noLink.SchedulingText = "Round 1"
	badLink := schedulingRow(1)
	badLink.SchedulingText = "Round 1: https://%zz"

	store := newFakeStore()
	notifier := newFakeNotifier()
	pipe := newPipeline([]domain.Row{noLink, badLink}, store, notifier, false)

	summary, err := pipe.Run(context.Background())
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	if notifier.sendCount() != 0 {
		t.Fatalf("notifier was invoked %d times, want 0", notifier.sendCount())
	}
	if summary.Skipped != 2 {
		t.Fatalf("summary.Skipped = %d, want 2", summary.Skipped)
	}

	reasons := map[string]bool{}
	for _, rec := range store.byStatus(domain.StatusSkipped) {
		reasons[rec.FailureReason] = true
	}
	if !reasons[domain.ReasonNoLink] || !reasons[domain.ReasonInvalidURL] {
		t.Fatalf("reasons = %v, want both %q and %q", reasons, domain.ReasonNoLink, domain.ReasonInvalidURL)
	}
}

func TestPipelineTransportFailureRecordsMessage(t *testing.T) {
	t.Parallel()

	row := schedulingRow(0)
	row.SchedulingText = "Round 1: https://calendly.com/a"

	store := newFakeStore()
	notifier := newFakeNotifier()
	notifier.failWith = errors.New("mailbox does not exist")
	pipe := newPipeline([]domain.Row{row}, store, notifier, false)

	summary, err := pipe.Run(context.Background())
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	if summary.Failed != 1 {
		t.Fatalf("summary.Failed = %d, want 1", summary.Failed)
	}
	failed := store.byStatus(domain.StatusFailed)
	if len(failed) != 1 {
		t.Fatalf("store holds %d failed records, want 1", len(failed))
	}
	if failed[0].FailureReason != "mailbox does not exist" {
		t.Errorf("reason = %q, want the transport message verbatim", failed[0].FailureReason)
	}
}

func TestPipelinePersistenceFailureStillCountsSent(t *testing.T) {
	t.Parallel()

	row := schedulingRow(0)
	row.SchedulingText = "Round 1: https://calendly.com/a"

	store := newFakeStore()
	store.failWrites = true
	notifier := newFakeNotifier()
	pipe := newPipeline([]domain.Row{row}, store, notifier, false)

	summary, err := pipe.Run(context.Background())
	if err != nil {
		t.Fatalf("Run must not abort on persistence failure, got: %v", err)
	}

	if summary.Sent != 1 {
		t.Fatalf("summary.Sent = %d, want 1 despite the failed write", summary.Sent)
	}
	if len(store.records) != 0 {
		t.Fatalf("store holds %d records, want 0", len(store.records))
	}
}

func TestPipelineRowFaultsDoNotAbortBatch(t *testing.T) {
	t.Parallel()

	missingEmail := schedulingRow(0)
	missingEmail.CandidateEmail = ""
	badDate := schedulingRow(1)
	badDate.AddedOnRaw = "whenever works"
	good := schedulingRow(2)
	good.SchedulingText = "Round 1: https://calendly.com/a"

	store := newFakeStore()
	notifier := newFakeNotifier()
	pipe := newPipeline([]domain.Row{missingEmail, badDate, good}, store, notifier, false)

	summary, err := pipe.Run(context.Background())
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	if summary.RowsSeen != 3 || summary.RowsSkipped != 2 {
		t.Fatalf("summary = %+v, want 3 rows seen with 2 skipped", summary)
	}
	if summary.Sent != 1 {
		t.Fatalf("summary.Sent = %d, want 1 from the surviving row", summary.Sent)
	}
	if len(store.records) != 1 {
		t.Fatalf("store holds %d records, want 1 (skipped rows create none)", len(store.records))
	}
}

func TestPipelineMeanTAT(t *testing.T) {
	t.Parallel()

	row := schedulingRow(0)
	row.SchedulingText = "Round 1: https://calendly.com/a"
	row.AddedOnRaw = "01 Dec 11:00" // one hour before fixedNow

	store := newFakeStore()
	notifier := newFakeNotifier()
	pipe := newPipeline([]domain.Row{row}, store, notifier, false)

	summary, err := pipe.Run(context.Background())
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	if summary.MeanTATSeconds != 3600 {
		t.Fatalf("MeanTATSeconds = %f, want 3600", summary.MeanTATSeconds)
	}
}

func TestPipelineCountsUnverifiedLinks(t *testing.T) {
	t.Parallel()

	row := schedulingRow(0)
	row.SchedulingText = "Round 1: https://example.com/book"

	store := newFakeStore()
	notifier := newFakeNotifier()
	pipe := newPipeline([]domain.Row{row}, store, notifier, false)

	summary, err := pipe.Run(context.Background())
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	if summary.Sent != 1 {
		t.Fatalf("summary.Sent = %d, want 1 (unverified is a warning, not a rejection)", summary.Sent)
	}
	if summary.UnverifiedLinks != 1 {
		t.Fatalf("summary.UnverifiedLinks = %d, want 1", summary.UnverifiedLinks)
	}
}
