// internal/workers/events/location-changed/handler_test.go
package locationchanged

import (
	"context"
	"testing"
	"time"

	"casework-workers/internal/common/errors"
	"casework-workers/internal/common/logger"
	"casework-workers/internal/ledger"
	"casework-workers/internal/lifecycle"
	"casework-workers/internal/reconcile"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
)

type stubLocations struct {
	location string
	err      error
}

func (s *stubLocations) GetCurrentLocation(ctx context.Context, subjectID string) (string, error) {
	return s.location, s.err
}

// A subject with two open applications: both must get a new open period at
// the new location, with the previous periods closed at the event timestamp.
func TestReconcilerPipeline_MovesAllOpenApplications(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	createdAt := time.Date(2025, 5, 1, 9, 0, 0, 0, time.UTC)
	mock.ExpectQuery(`SELECT .+ FROM applications`).
		WithArgs("X12345").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "subject_id", "owner", "data", "schema_version_id", "origin_location", "created_at", "submitted_at", "abandoned_at",
		}).
			AddRow("app-1", "X12345", "alice", []byte(`{}`), "schema-002", "north-office", createdAt, nil, nil).
			AddRow("app-2", "X12345", "alice", []byte(`{}`), "schema-002", "north-office", createdAt.Add(time.Hour), nil, nil))

	occurredAt := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	for _, appID := range []string{"app-1", "app-2"} {
		mock.ExpectBegin()
		mock.ExpectQuery(`SELECT id FROM applications WHERE id = \$1 FOR UPDATE`).
			WithArgs(appID).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(appID))
		mock.ExpectExec(`UPDATE assignment_periods`).
			WithArgs(appID, occurredAt).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(`INSERT INTO assignment_periods`).
			WithArgs(sqlmock.AnyArg(), appID, "east-office", nil, occurredAt).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()
	}

	store := lifecycle.NewStore(db)
	log := logger.NewTestLogger(t)
	r := reconcile.New(reconcile.NewLocationChanged(store, &stubLocations{location: "east-office"}),
		ledger.New(db), errors.NewReporter(log), log)

	err = r.Reconcile(context.Background(),
		[]byte(`{"type": "location-changed", "occurredAt": "2025-06-01T10:00:00Z", "subjectIdentifier": "X12345", "detailReference": "https://rm.test/locations/X12345"}`))

	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReconcilerPipeline_NoOpenApplicationsIsSilent(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`SELECT .+ FROM applications`).
		WithArgs("X99999").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "subject_id", "owner", "data", "schema_version_id", "origin_location", "created_at", "submitted_at", "abandoned_at",
		}))

	store := lifecycle.NewStore(db)
	log := logger.NewTestLogger(t)
	r := reconcile.New(reconcile.NewLocationChanged(store, &stubLocations{location: "east-office"}),
		ledger.New(db), errors.NewReporter(log), log)

	err = r.Reconcile(context.Background(),
		[]byte(`{"type": "location-changed", "occurredAt": "2025-06-01T10:00:00Z", "subjectIdentifier": "X99999", "detailReference": "https://rm.test/locations/X99999"}`))

	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
