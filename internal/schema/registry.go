// Package schema tracks versioned application form schemas and answers
// whether form data satisfies a given version.
package schema

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"casework-workers/internal/common/errors"
	"casework-workers/internal/models"

	"github.com/google/uuid"
	"github.com/xeipuuv/gojsonschema"
)

type Registry struct {
	db *sql.DB
}

func NewRegistry(db *sql.DB) *Registry {
	return &Registry{db: db}
}

// Newest returns the most recently added schema version. An empty registry is
// an unrecoverable deployment fault, not a business rejection.
func (r *Registry) Newest(ctx context.Context) (*models.SchemaVersion, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, content, added_at
		FROM application_schemas
		ORDER BY added_at DESC
		LIMIT 1`)

	v, err := scanVersion(row)
	if err == sql.ErrNoRows {
		return nil, errors.NewSchemaRegistryEmptyError()
	}
	if err != nil {
		return nil, errors.NewDatabaseQueryError(err)
	}
	return v, nil
}

// ByID returns one schema version.
func (r *Registry) ByID(ctx context.Context, id string) (*models.SchemaVersion, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, content, added_at
		FROM application_schemas
		WHERE id = $1`, id)

	v, err := scanVersion(row)
	if err == sql.ErrNoRows {
		return nil, errors.NewValidationError(fmt.Sprintf("schema version not registered: %s", id))
	}
	if err != nil {
		return nil, errors.NewDatabaseQueryError(err)
	}
	return v, nil
}

// IsOutdated reports whether the application's bound schema is no longer the
// newest registered version.
func (r *Registry) IsOutdated(ctx context.Context, app *models.Application) (bool, error) {
	newest, err := r.Newest(ctx)
	if err != nil {
		return false, err
	}
	return app.SchemaVersionID != newest.ID, nil
}

// Insert registers a new schema version. The version becomes newest by virtue
// of its added_at timestamp.
func (r *Registry) Insert(ctx context.Context, content json.RawMessage) (*models.SchemaVersion, error) {
	v := &models.SchemaVersion{
		ID:      uuid.New().String(),
		Content: content,
		AddedAt: time.Now().UTC(),
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO application_schemas (id, content, added_at)
		VALUES ($1, $2, $3)`,
		v.ID, []byte(v.Content), v.AddedAt)
	if err != nil {
		return nil, errors.NewDatabaseInsertError(err)
	}
	return v, nil
}

// Validate checks data against a schema version. It is a pure predicate:
// malformed or mismatched data yields invalid with reasons, never an error.
func (r *Registry) Validate(schema *models.SchemaVersion, data map[string]interface{}) (bool, []string) {
	return Validate(schema, data)
}

func Validate(schema *models.SchemaVersion, data map[string]interface{}) (bool, []string) {
	schemaLoader := gojsonschema.NewBytesLoader(schema.Content)
	documentLoader := gojsonschema.NewGoLoader(data)

	result, err := gojsonschema.Validate(schemaLoader, documentLoader)
	if err != nil {
		return false, []string{err.Error()}
	}
	if result.Valid() {
		return true, nil
	}

	reasons := make([]string, 0, len(result.Errors()))
	for _, e := range result.Errors() {
		reasons = append(reasons, e.String())
	}
	return false, reasons
}

func scanVersion(row *sql.Row) (*models.SchemaVersion, error) {
	var (
		v       models.SchemaVersion
		content []byte
	)
	if err := row.Scan(&v.ID, &content, &v.AddedAt); err != nil {
		return nil, err
	}
	v.Content = json.RawMessage(content)
	return &v, nil
}
