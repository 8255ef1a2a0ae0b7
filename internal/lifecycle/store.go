package lifecycle

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"casework-workers/internal/common/errors"
	"casework-workers/internal/models"
)

const applicationColumns = `id, subject_id, owner, data, schema_version_id, origin_location, created_at, submitted_at, abandoned_at`

// Store persists applications. Lifecycle timestamps are the source of truth
// for status; no status column exists to drift out of sync.
type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) BeginTx(ctx context.Context) (*sql.Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, errors.NewDatabaseQueryError(err)
	}
	return tx, nil
}

// InsertTx writes a new application inside the caller's transaction so the
// initial assignment period lands atomically with it.
func (s *Store) InsertTx(ctx context.Context, tx *sql.Tx, app *models.Application) error {
	data, err := json.Marshal(app.Data)
	if err != nil {
		return errors.NewValidationError("form data is not serialisable: " + err.Error())
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO applications (id, subject_id, owner, data, schema_version_id, origin_location, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		app.ID, app.SubjectID, app.Owner, data, app.SchemaVersionID, app.OriginLocation, app.CreatedAt)
	if err != nil {
		return errors.NewDatabaseInsertError(err)
	}
	return nil
}

// GetByID loads one application.
func (s *Store) GetByID(ctx context.Context, id string) (*models.Application, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+applicationColumns+`
		FROM applications
		WHERE id = $1`, id)

	app, err := scanApplication(row.Scan)
	if err == sql.ErrNoRows {
		return nil, errors.NewApplicationNotFoundError(id)
	}
	if err != nil {
		return nil, errors.NewDatabaseQueryError(err)
	}
	return app, nil
}

// UpdateData replaces form data and the bound schema version on a draft.
func (s *Store) UpdateData(ctx context.Context, id string, formData map[string]interface{}, schemaVersionID string) error {
	data, err := json.Marshal(formData)
	if err != nil {
		return errors.NewValidationError("form data is not serialisable: " + err.Error())
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE applications
		SET data = $2, schema_version_id = $3
		WHERE id = $1`, id, data, schemaVersionID)
	if err != nil {
		return errors.NewDatabaseInsertError(err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return errors.NewApplicationNotFoundError(id)
	}
	return nil
}

// MarkSubmittedTx stamps submitted_at inside the caller's transaction so the
// state change commits together with the outbox record. The predicate is the
// real gate: a concurrent abandon between the caller's read and this write
// leaves zero matching rows, and the submission must fail rather than record
// an event for a state that never existed.
func (s *Store) MarkSubmittedTx(ctx context.Context, tx *sql.Tx, id string, at time.Time) error {
	res, err := tx.ExecContext(ctx, `
		UPDATE applications
		SET submitted_at = $2
		WHERE id = $1 AND submitted_at IS NULL AND abandoned_at IS NULL`, id, at)
	if err != nil {
		return errors.NewDatabaseInsertError(err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return errors.NewConflictError("application is no longer a draft")
	}
	return nil
}

// MarkAbandoned stamps abandoned_at and discards the form data in one write.
// The submitted_at guard keeps the two terminal timestamps mutually exclusive
// when a submit commits between the caller's read and this write.
func (s *Store) MarkAbandoned(ctx context.Context, id string, at time.Time) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE applications
		SET abandoned_at = $2, data = '{}'::jsonb
		WHERE id = $1 AND submitted_at IS NULL`, id, at)
	if err != nil {
		return errors.NewDatabaseInsertError(err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return errors.NewConflictError("application has been submitted and can no longer be abandoned")
	}
	return nil
}

// MostRecentForSubject returns the newest non-abandoned application for a
// subject, or nil when the subject has none.
func (s *Store) MostRecentForSubject(ctx context.Context, subjectID string) (*models.Application, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+applicationColumns+`
		FROM applications
		WHERE subject_id = $1 AND abandoned_at IS NULL
		ORDER BY created_at DESC
		LIMIT 1`, subjectID)

	app, err := scanApplication(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.NewDatabaseQueryError(err)
	}
	return app, nil
}

// OpenForSubject returns every non-abandoned application for a subject.
func (s *Store) OpenForSubject(ctx context.Context, subjectID string) ([]*models.Application, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+applicationColumns+`
		FROM applications
		WHERE subject_id = $1 AND abandoned_at IS NULL
		ORDER BY created_at ASC`, subjectID)
	if err != nil {
		return nil, errors.NewDatabaseQueryError(err)
	}
	defer rows.Close()

	var apps []*models.Application
	for rows.Next() {
		app, err := scanApplication(rows.Scan)
		if err != nil {
			return nil, errors.NewDatabaseQueryError(err)
		}
		apps = append(apps, app)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewDatabaseQueryError(err)
	}
	return apps, nil
}

func scanApplication(scan func(...interface{}) error) (*models.Application, error) {
	var (
		app         models.Application
		data        []byte
		submittedAt sql.NullTime
		abandonedAt sql.NullTime
	)
	err := scan(&app.ID, &app.SubjectID, &app.Owner, &data, &app.SchemaVersionID,
		&app.OriginLocation, &app.CreatedAt, &submittedAt, &abandonedAt)
	if err != nil {
		return nil, err
	}
	if len(data) > 0 {
		if err := json.Unmarshal(data, &app.Data); err != nil {
			return nil, err
		}
	}
	if submittedAt.Valid {
		app.SubmittedAt = &submittedAt.Time
	}
	if abandonedAt.Valid {
		app.AbandonedAt = &abandonedAt.Time
	}
	return &app, nil
}
