// internal/workers/application/abandon-application/handler.go
package abandonapplication

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"casework-workers/internal/common/errors"
	"casework-workers/internal/common/logger"
	"casework-workers/internal/common/metrics"
	"casework-workers/internal/models"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const (
	TaskType = "abandon-application"
)

type LifecycleService interface {
	Abandon(ctx context.Context, user models.User, applicationID string) (*models.Application, error)
}

type Handler struct {
	service      LifecycleService
	errorHandler *errors.JobErrorHandler
	timeout      time.Duration
	logger       logger.Logger
}

func NewHandler(config *Config, service LifecycleService, log logger.Logger) *Handler {
	taskLogger := log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		service:      service,
		errorHandler: errors.NewJobErrorHandler(taskLogger),
		timeout:      config.Timeout,
		logger:       taskLogger,
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	start := time.Now()
	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":      job.Key,
		"workflowKey": job.ProcessInstanceKey,
	})

	ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
	defer cancel()

	var input Input
	if err := json.Unmarshal([]byte(job.Variables), &input); err != nil {
		h.errorHandler.HandleJobError(ctx, client, job,
			errors.NewValidationError(fmt.Sprintf("parse input: %v", err)))
		return
	}
	if input.ApplicationID == "" || input.Username == "" {
		h.errorHandler.HandleJobError(ctx, client, job,
			errors.NewValidationError("applicationId and username are required"))
		return
	}

	output, err := h.Execute(ctx, &input)
	if err != nil {
		h.errorHandler.HandleJobError(ctx, client, job, err)
		return
	}

	h.completeJob(client, job, output)
	metrics.JobDuration.WithLabelValues(TaskType).Observe(time.Since(start).Seconds())
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	user := models.User{Username: input.Username, ActiveLocation: input.ActiveLocation}
	app, err := h.service.Abandon(ctx, user, input.ApplicationID)
	if err != nil {
		return nil, err
	}
	output := &Output{
		ApplicationID:     app.ID,
		ApplicationStatus: string(app.Status()),
	}
	if app.AbandonedAt != nil {
		output.AbandonedAt = app.AbandonedAt.Format(time.RFC3339)
	}
	return output, nil
}

func (h *Handler) completeJob(client worker.JobClient, job entities.Job, output *Output) {
	cmd, err := client.NewCompleteJobCommand().
		JobKey(job.Key).
		VariablesFromObject(output)
	if err != nil {
		h.logger.Error("failed to create complete job command", map[string]interface{}{
			"error": err,
		})
		return
	}
	_, err = cmd.Send(context.Background())
	if err != nil {
		h.logger.Error("failed to send complete job command", map[string]interface{}{
			"error": err,
		})
	} else {
		h.logger.Info("job completed successfully", map[string]interface{}{
			"jobKey": job.Key,
		})
	}
}
