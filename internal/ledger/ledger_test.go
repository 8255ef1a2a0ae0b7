package ledger

import (
	"context"
	"testing"
	"time"

	"casework-workers/internal/common/errors"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
)

func TestLedger_CurrentAssignment(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	started := time.Date(2025, 5, 1, 9, 0, 0, 0, time.UTC)
	mock.ExpectQuery(`SELECT id, application_id, location, officer, started_at, ended_at`).
		WithArgs("app-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "application_id", "location", "officer", "started_at", "ended_at"}).
			AddRow("period-1", "app-1", "north-office", "officer-9", started, nil))

	l := New(db)
	p, err := l.CurrentAssignment(context.Background(), "app-1")

	assert.NoError(t, err)
	assert.Equal(t, "north-office", p.Location)
	assert.NotNil(t, p.Officer)
	assert.Equal(t, "officer-9", *p.Officer)
	assert.True(t, p.Open())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLedger_CurrentAssignment_NoneRecorded(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`SELECT id, application_id, location, officer, started_at, ended_at`).
		WithArgs("app-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "application_id", "location", "officer", "started_at", "ended_at"}))

	l := New(db)
	p, err := l.CurrentAssignment(context.Background(), "app-1")

	assert.NoError(t, err)
	assert.Nil(t, p)
}

func TestLedger_HistoryFor_OldestFirst(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	t1 := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	t2 := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery(`ORDER BY started_at ASC`).
		WithArgs("app-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "application_id", "location", "officer", "started_at", "ended_at"}).
			AddRow("period-1", "app-1", "north-office", nil, t1, t2).
			AddRow("period-2", "app-1", "south-office", "officer-3", t2, nil))

	l := New(db)
	history, err := l.HistoryFor(context.Background(), "app-1")

	assert.NoError(t, err)
	assert.Len(t, history, 2)
	assert.Nil(t, history[0].Officer)
	assert.False(t, history[0].Open())
	assert.True(t, history[1].Open())
}

func TestLedger_OpenNewPeriod_ClosesOldAndInsertsNew(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	at := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	officer := "officer-3"

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT id FROM applications WHERE id = \$1 FOR UPDATE`).
		WithArgs("app-1").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("app-1"))
	mock.ExpectExec(`UPDATE assignment_periods`).
		WithArgs("app-1", at).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO assignment_periods`).
		WithArgs(sqlmock.AnyArg(), "app-1", "south-office", officer, at).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	l := New(db)
	p, err := l.OpenNewPeriod(context.Background(), "app-1", "south-office", &officer, at)

	assert.NoError(t, err)
	assert.Equal(t, "south-office", p.Location)
	assert.True(t, p.Open())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLedger_OpenNewPeriod_MissingApplication(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT id FROM applications WHERE id = \$1 FOR UPDATE`).
		WithArgs("app-gone").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectRollback()

	l := New(db)
	p, err := l.OpenNewPeriod(context.Background(), "app-gone", "north-office", nil, time.Now())

	assert.Nil(t, p)
	assert.True(t, errors.IsCode(err, errors.ErrCodeApplicationNotFound))
}
