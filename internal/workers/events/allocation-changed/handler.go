// internal/workers/events/allocation-changed/handler.go
package allocationchanged

import (
	"context"
	"time"

	"casework-workers/internal/common/errors"
	"casework-workers/internal/common/logger"
	"casework-workers/internal/common/metrics"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const (
	TaskType = "allocation-changed"
)

// Reconciler consumes one raw event envelope. The transport only sees two
// outcomes: consumed (complete) or retry (fail).
type Reconciler interface {
	Reconcile(ctx context.Context, raw []byte) error
}

type Handler struct {
	reconciler   Reconciler
	errorHandler *errors.JobErrorHandler
	timeout      time.Duration
	logger       logger.Logger
}

func NewHandler(config *Config, reconciler Reconciler, log logger.Logger) *Handler {
	taskLogger := log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		reconciler:   reconciler,
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

	// The event envelope rides in the job variables as-is. Classification of
	// malformed envelopes happens inside the reconciler, never here.
	if err := h.reconciler.Reconcile(ctx, []byte(job.Variables)); err != nil {
		h.errorHandler.HandleJobError(ctx, client, job, err)
		return
	}

	h.completeJob(client, job, &Output{Reconciled: true})
	metrics.JobDuration.WithLabelValues(TaskType).Observe(time.Since(start).Seconds())
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
