package schema

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"casework-workers/internal/common/errors"
	"casework-workers/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
)

const testSchema = `{
	"type": "object",
	"properties": {
		"aProperty": {"type": "string"},
		"riskLevel": {"type": "string", "enum": ["low", "medium", "high"]}
	},
	"required": ["aProperty"],
	"additionalProperties": true
}`

func testVersion() *models.SchemaVersion {
	return &models.SchemaVersion{
		ID:      "schema-001",
		Content: json.RawMessage(testSchema),
		AddedAt: time.Now().UTC(),
	}
}

func TestRegistry_Newest(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	addedAt := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	mock.ExpectQuery(`SELECT id, content, added_at`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "content", "added_at"}).
			AddRow("schema-002", []byte(testSchema), addedAt))

	reg := NewRegistry(db)
	newest, err := reg.Newest(context.Background())

	assert.NoError(t, err)
	assert.Equal(t, "schema-002", newest.ID)
	assert.Equal(t, addedAt, newest.AddedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRegistry_Newest_EmptyRegistryIsFatal(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`SELECT id, content, added_at`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "content", "added_at"}))

	reg := NewRegistry(db)
	newest, err := reg.Newest(context.Background())

	assert.Nil(t, newest)
	assert.True(t, errors.IsCode(err, errors.ErrCodeSchemaRegistryEmpty))
	assert.False(t, errors.IsRetryable(err))
}

func TestRegistry_IsOutdated(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	rows := sqlmock.NewRows([]string{"id", "content", "added_at"}).
		AddRow("schema-002", []byte(testSchema), time.Now().UTC())
	mock.ExpectQuery(`SELECT id, content, added_at`).WillReturnRows(rows)

	reg := NewRegistry(db)
	app := &models.Application{ID: "app-1", SchemaVersionID: "schema-001"}
	outdated, err := reg.IsOutdated(context.Background(), app)

	assert.NoError(t, err)
	assert.True(t, outdated)
}

func TestValidate_ValidData(t *testing.T) {
	valid, reasons := Validate(testVersion(), map[string]interface{}{
		"aProperty": "value",
		"riskLevel": "low",
	})
	assert.True(t, valid)
	assert.Empty(t, reasons)
}

func TestValidate_InvalidDataIsRejectionNotError(t *testing.T) {
	valid, reasons := Validate(testVersion(), map[string]interface{}{
		"riskLevel": "critical",
	})
	assert.False(t, valid)
	assert.NotEmpty(t, reasons)
}

func TestValidate_MalformedDataNeverPanics(t *testing.T) {
	valid, reasons := Validate(testVersion(), map[string]interface{}{
		"aProperty": func() {}, // not serialisable
	})
	assert.False(t, valid)
	assert.NotEmpty(t, reasons)
}

func TestValidate_MalformedSchemaYieldsInvalid(t *testing.T) {
	broken := &models.SchemaVersion{ID: "bad", Content: json.RawMessage(`{"type":`)}
	valid, reasons := Validate(broken, map[string]interface{}{"aProperty": "x"})
	assert.False(t, valid)
	assert.NotEmpty(t, reasons)
}
