package reconcile

import (
	"context"
	"fmt"
	"testing"
	"time"

	"casework-workers/internal/common/errors"
	"casework-workers/internal/common/logger"
	"casework-workers/internal/models"

	"github.com/stretchr/testify/assert"
)

type stubStore struct {
	mostRecent *models.Application
	open       []*models.Application
	err        error
}

func (s *stubStore) MostRecentForSubject(ctx context.Context, subjectID string) (*models.Application, error) {
	return s.mostRecent, s.err
}

func (s *stubStore) OpenForSubject(ctx context.Context, subjectID string) ([]*models.Application, error) {
	return s.open, s.err
}

type stubAllocations struct {
	allocation *models.Allocation
	err        error
}

func (s *stubAllocations) GetCurrentAllocation(ctx context.Context, detailURL string) (*models.Allocation, error) {
	return s.allocation, s.err
}

type stubLocations struct {
	location string
	err      error
}

func (s *stubLocations) GetCurrentLocation(ctx context.Context, subjectID string) (string, error) {
	return s.location, s.err
}

type openedPeriod struct {
	applicationID string
	location      string
	officer       *string
	at            time.Time
}

type stubLedger struct {
	opened []openedPeriod
	err    error
}

func (s *stubLedger) OpenNewPeriod(ctx context.Context, applicationID, location string, officer *string, at time.Time) (*models.AssignmentPeriod, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.opened = append(s.opened, openedPeriod{applicationID, location, officer, at})
	return &models.AssignmentPeriod{ApplicationID: applicationID, Location: location, Officer: officer, StartedAt: at}, nil
}

type recordingLogger struct {
	warnings []string
}

func (l *recordingLogger) Warn(msg string, fields map[string]interface{}) {
	l.warnings = append(l.warnings, msg)
}

func allocationEvent(subjectID, detailURL string) []byte {
	return []byte(fmt.Sprintf(
		`{"type": "allocation-changed", "occurredAt": "2025-06-01T10:00:00Z", "subjectIdentifier": %q, "detailReference": %q}`,
		subjectID, detailURL))
}

func locationEvent(subjectID string) []byte {
	return []byte(fmt.Sprintf(
		`{"type": "location-changed", "occurredAt": "2025-06-01T10:00:00Z", "subjectIdentifier": %q, "detailReference": "https://rm.test/locations/%s"}`,
		subjectID, subjectID))
}

func newReconciler(t *testing.T, variant Variant, ledger PeriodOpener, warnings *recordingLogger) *Reconciler {
	t.Helper()
	return New(variant, ledger, errors.NewReporter(warnings), logger.NewTestLogger(t))
}

func TestReconcile_AllocationChanged_AppliesToMostRecent(t *testing.T) {
	store := &stubStore{mostRecent: &models.Application{ID: "app-2", SubjectID: "X12345"}}
	allocations := &stubAllocations{allocation: &models.Allocation{Officer: "officer-3", Location: "south-office"}}
	ledger := &stubLedger{}
	warnings := &recordingLogger{}

	r := newReconciler(t, NewAllocationChanged(store, allocations), ledger, warnings)
	err := r.Reconcile(context.Background(), allocationEvent("X12345", "https://rm.test/allocations/abc"))

	assert.NoError(t, err)
	assert.Len(t, ledger.opened, 1)
	assert.Equal(t, "app-2", ledger.opened[0].applicationID)
	assert.Equal(t, "south-office", ledger.opened[0].location)
	assert.Equal(t, "officer-3", *ledger.opened[0].officer)
	assert.Equal(t, time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC), ledger.opened[0].at,
		"period starts at the event's occurredAt, not processing time")
	assert.Empty(t, warnings.warnings)
}

func TestReconcile_AllocationChanged_NoMatchingApplicationIsSilentSuccess(t *testing.T) {
	store := &stubStore{mostRecent: nil}
	ledger := &stubLedger{}
	warnings := &recordingLogger{}

	r := newReconciler(t, NewAllocationChanged(store, &stubAllocations{}), ledger, warnings)
	err := r.Reconcile(context.Background(), allocationEvent("X99999", "https://rm.test/allocations/abc"))

	assert.NoError(t, err)
	assert.Empty(t, ledger.opened, "ledger unchanged")
	assert.Empty(t, warnings.warnings, "nothing reported")
}

func TestReconcile_MissingSubjectIsReportedAndConsumed(t *testing.T) {
	ledger := &stubLedger{}
	warnings := &recordingLogger{}

	r := newReconciler(t, NewAllocationChanged(&stubStore{}, &stubAllocations{}), ledger, warnings)
	err := r.Reconcile(context.Background(), []byte(`{"type": "allocation-changed", "detailReference": "https://rm.test/a"}`))

	assert.NoError(t, err, "the event must be consumed, never re-thrown")
	assert.Len(t, warnings.warnings, 1)
	assert.Empty(t, ledger.opened)
}

func TestReconcile_MalformedEnvelopeIsReportedAndConsumed(t *testing.T) {
	warnings := &recordingLogger{}
	r := newReconciler(t, NewAllocationChanged(&stubStore{}, &stubAllocations{}), &stubLedger{}, warnings)

	err := r.Reconcile(context.Background(), []byte(`{not json`))

	assert.NoError(t, err)
	assert.Len(t, warnings.warnings, 1)
}

func TestReconcile_DeallocationIsInformationalTerminal(t *testing.T) {
	store := &stubStore{mostRecent: &models.Application{ID: "app-1", SubjectID: "X12345"}}
	allocations := &stubAllocations{err: errors.NewAllocationNotFoundError("https://rm.test/allocations/abc")}
	ledger := &stubLedger{}
	warnings := &recordingLogger{}

	r := newReconciler(t, NewAllocationChanged(store, allocations), ledger, warnings)
	err := r.Reconcile(context.Background(), allocationEvent("X12345", "https://rm.test/allocations/abc"))

	assert.NoError(t, err, "deallocation is not a failure")
	assert.Len(t, warnings.warnings, 1)
	assert.Empty(t, ledger.opened)
}

func TestReconcile_ReadModelOutagePropagatesForRetry(t *testing.T) {
	store := &stubStore{mostRecent: &models.Application{ID: "app-1", SubjectID: "X12345"}}
	allocations := &stubAllocations{err: errors.NewUnavailableError("allocation-read-model", assert.AnError)}
	warnings := &recordingLogger{}

	r := newReconciler(t, NewAllocationChanged(store, allocations), &stubLedger{}, warnings)
	err := r.Reconcile(context.Background(), allocationEvent("X12345", "https://rm.test/allocations/abc"))

	assert.True(t, errors.IsRetryable(err), "infrastructure failures must reach the transport")
	assert.Empty(t, warnings.warnings)
}

func TestReconcile_LocationChanged_MovesAllOpenApplications(t *testing.T) {
	store := &stubStore{open: []*models.Application{
		{ID: "app-1", SubjectID: "X12345"},
		{ID: "app-2", SubjectID: "X12345"},
	}}
	locations := &stubLocations{location: "east-office"}
	ledger := &stubLedger{}
	warnings := &recordingLogger{}

	r := newReconciler(t, NewLocationChanged(store, locations), ledger, warnings)
	err := r.Reconcile(context.Background(), locationEvent("X12345"))

	assert.NoError(t, err)
	assert.Len(t, ledger.opened, 2)
	for _, opened := range ledger.opened {
		assert.Equal(t, "east-office", opened.location)
		assert.Nil(t, opened.officer, "a location move leaves the officer unassigned")
		assert.Equal(t, ledger.opened[0].at, opened.at, "both periods share the event timestamp")
	}
}

func TestReconcile_LedgerFailurePropagates(t *testing.T) {
	store := &stubStore{open: []*models.Application{{ID: "app-1", SubjectID: "X12345"}}}
	ledger := &stubLedger{err: errors.NewDatabaseInsertError(assert.AnError)}

	r := newReconciler(t, NewLocationChanged(store, &stubLocations{location: "east-office"}), ledger, &recordingLogger{})
	err := r.Reconcile(context.Background(), locationEvent("X12345"))

	assert.True(t, errors.IsRetryable(err))
}
