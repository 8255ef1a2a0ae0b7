// Package ledger maintains the per-application assignment history: which
// location and officer are responsible for an application, as a sequence of
// non-overlapping validity periods. The current assignment is derived (the
// row with ended_at IS NULL), never cached.
package ledger

import (
	"context"
	"database/sql"
	"time"

	"casework-workers/internal/common/errors"
	"casework-workers/internal/common/metrics"
	"casework-workers/internal/models"

	"github.com/google/uuid"
)

type Ledger struct {
	db *sql.DB
}

func New(db *sql.DB) *Ledger {
	return &Ledger{db: db}
}

// CurrentAssignment returns the unique open period, or nil when none is
// recorded. Absence of data is not an error.
func (l *Ledger) CurrentAssignment(ctx context.Context, applicationID string) (*models.AssignmentPeriod, error) {
	row := l.db.QueryRowContext(ctx, `
		SELECT id, application_id, location, officer, started_at, ended_at
		FROM assignment_periods
		WHERE application_id = $1 AND ended_at IS NULL`, applicationID)

	p, err := scanPeriodRow(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.NewDatabaseQueryError(err)
	}
	return p, nil
}

// HistoryFor returns the full assignment history, oldest first.
func (l *Ledger) HistoryFor(ctx context.Context, applicationID string) ([]models.AssignmentPeriod, error) {
	rows, err := l.db.QueryContext(ctx, `
		SELECT id, application_id, location, officer, started_at, ended_at
		FROM assignment_periods
		WHERE application_id = $1
		ORDER BY started_at ASC`, applicationID)
	if err != nil {
		return nil, errors.NewDatabaseQueryError(err)
	}
	defer rows.Close()

	var history []models.AssignmentPeriod
	for rows.Next() {
		var (
			p       models.AssignmentPeriod
			officer sql.NullString
			endedAt sql.NullTime
		)
		if err := rows.Scan(&p.ID, &p.ApplicationID, &p.Location, &officer, &p.StartedAt, &endedAt); err != nil {
			return nil, errors.NewDatabaseQueryError(err)
		}
		if officer.Valid {
			p.Officer = &officer.String
		}
		if endedAt.Valid {
			p.EndedAt = &endedAt.Time
		}
		history = append(history, p)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewDatabaseQueryError(err)
	}
	return history, nil
}

// OpenNewPeriod closes the current open period at `at` (if one exists) and
// inserts a new open period starting at `at`. Writers are serialised on the
// application row so two concurrent callers never both observe "no open
// period" and both insert one.
func (l *Ledger) OpenNewPeriod(ctx context.Context, applicationID, location string, officer *string, at time.Time) (*models.AssignmentPeriod, error) {
	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, errors.NewDatabaseQueryError(err)
	}
	defer tx.Rollback()

	var lockedID string
	err = tx.QueryRowContext(ctx,
		`SELECT id FROM applications WHERE id = $1 FOR UPDATE`, applicationID).Scan(&lockedID)
	if err == sql.ErrNoRows {
		return nil, errors.NewApplicationNotFoundError(applicationID)
	}
	if err != nil {
		return nil, errors.NewDatabaseQueryError(err)
	}

	p, err := OpenPeriodTx(ctx, tx, applicationID, location, officer, at)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, errors.NewDatabaseInsertError(err)
	}
	metrics.AssignmentPeriodsOpened.Inc()
	return p, nil
}

// OpenPeriodTx performs the close-old/open-new pair inside a transaction the
// caller owns. The caller must already hold the application row lock.
func OpenPeriodTx(ctx context.Context, tx *sql.Tx, applicationID, location string, officer *string, at time.Time) (*models.AssignmentPeriod, error) {
	_, err := tx.ExecContext(ctx, `
		UPDATE assignment_periods
		SET ended_at = $2
		WHERE application_id = $1 AND ended_at IS NULL`, applicationID, at)
	if err != nil {
		return nil, errors.NewDatabaseInsertError(err)
	}

	p := &models.AssignmentPeriod{
		ID:            uuid.New().String(),
		ApplicationID: applicationID,
		Location:      location,
		Officer:       officer,
		StartedAt:     at,
	}

	var officerArg interface{}
	if officer != nil {
		officerArg = *officer
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO assignment_periods (id, application_id, location, officer, started_at)
		VALUES ($1, $2, $3, $4, $5)`,
		p.ID, p.ApplicationID, p.Location, officerArg, p.StartedAt)
	if err != nil {
		return nil, errors.NewDatabaseInsertError(err)
	}
	return p, nil
}

func scanPeriodRow(row *sql.Row) (*models.AssignmentPeriod, error) {
	var (
		p       models.AssignmentPeriod
		officer sql.NullString
		endedAt sql.NullTime
	)
	if err := row.Scan(&p.ID, &p.ApplicationID, &p.Location, &officer, &p.StartedAt, &endedAt); err != nil {
		return nil, err
	}
	if officer.Valid {
		p.Officer = &officer.String
	}
	if endedAt.Valid {
		p.EndedAt = &endedAt.Time
	}
	return &p, nil
}
