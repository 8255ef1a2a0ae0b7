// internal/workers/application/abandon-application/handler_test.go
package abandonapplication

import (
	"context"
	"testing"
	"time"

	"casework-workers/internal/common/errors"
	"casework-workers/internal/common/logger"
	"casework-workers/internal/models"

	"github.com/stretchr/testify/assert"
)

type stubService struct {
	app   *models.Application
	err   error
	gotID string
}

func (s *stubService) Abandon(ctx context.Context, user models.User, applicationID string) (*models.Application, error) {
	s.gotID = applicationID
	return s.app, s.err
}

func TestHandler_Execute_Success(t *testing.T) {
	abandonedAt := time.Date(2025, 6, 2, 9, 30, 0, 0, time.UTC)
	service := &stubService{app: &models.Application{
		ID:          "app-1",
		SubjectID:   "X12345",
		Owner:       "alice",
		AbandonedAt: &abandonedAt,
		Data:        map[string]interface{}{},
	}}

	handler := NewHandler(LoadConfig(), service, logger.NewTestLogger(t))
	output, err := handler.Execute(context.Background(), &Input{
		ApplicationID: "app-1",
		Username:      "alice",
	})

	assert.NoError(t, err)
	assert.Equal(t, "app-1", output.ApplicationID)
	assert.Equal(t, "abandoned", output.ApplicationStatus)
	assert.Equal(t, "2025-06-02T09:30:00Z", output.AbandonedAt)
	assert.Equal(t, "app-1", service.gotID)
}

func TestHandler_Execute_SubmittedConflictPassesThrough(t *testing.T) {
	service := &stubService{err: errors.NewConflictError("submitted applications cannot be abandoned")}

	handler := NewHandler(LoadConfig(), service, logger.NewTestLogger(t))
	output, err := handler.Execute(context.Background(), &Input{ApplicationID: "app-1", Username: "alice"})

	assert.Nil(t, output)
	assert.True(t, errors.IsCode(err, errors.ErrCodeStateConflict))
	assert.False(t, errors.IsRetryable(err))
}
