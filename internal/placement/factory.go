// Package placement creates the placement request owed once per submitted
// application. The request starts in a pending state and is progressed by a
// separate matching service outside this codebase.
package placement

import (
	"context"
	"database/sql"
	"time"

	"casework-workers/internal/common/errors"
	"casework-workers/internal/common/logger"
	"casework-workers/internal/models"

	"github.com/google/uuid"
)

type Factory struct {
	db     *sql.DB
	logger logger.Logger
}

func NewFactory(db *sql.DB, log logger.Logger) *Factory {
	return &Factory{db: db, logger: log}
}

// CreateFor inserts the pending placement request for a submitted
// application. Invoked once per successful submit, after the submitted state
// is durable.
func (f *Factory) CreateFor(ctx context.Context, app *models.Application) error {
	id := uuid.New().String()
	_, err := f.db.ExecContext(ctx, `
		INSERT INTO placement_requests (id, application_id, subject_id, status, created_at)
		VALUES ($1, $2, $3, 'pending', $4)`,
		id, app.ID, app.SubjectID, time.Now().UTC())
	if err != nil {
		return errors.NewDatabaseInsertError(err)
	}

	f.logger.Info("placement request created", map[string]interface{}{
		"placementRequestId": id,
		"applicationId":      app.ID,
	})
	return nil
}
