package errors

import (
	"context"
	"encoding/json"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

// JobError represents an error surfaced to the job transport. Retryable errors
// fail the job so the broker re-delivers it; terminal errors are thrown as
// business errors so the process can route them.
type JobError struct {
	Code           string                 `json:"code"`
	Message        string                 `json:"message"`
	Details        string                 `json:"details,omitempty"`
	Retryable      bool                   `json:"retryable"`
	Retries        int                    `json:"retries"`
	ErrorVariables map[string]interface{} `json:"errorVariables,omitempty"`
}

func (e *JobError) Error() string {
	return "JobError[" + e.Code + "]: " + e.Message
}

// ToErrorVariables returns a map suitable for setting job fail variables.
func (e *JobError) ToErrorVariables() map[string]interface{} {
	vars := map[string]interface{}{
		"errorCode":    e.Code,
		"errorMessage": e.Message,
		"errorDetails": e.Details,
		"retryable":    e.Retryable,
	}
	for k, v := range e.ErrorVariables {
		vars[k] = v
	}
	return vars
}

// GetRetryCount returns how many times the transport may retry an error code.
func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeServiceUnavailable,
		ErrCodeDatabaseQueryFailed,
		ErrCodeDatabaseInsertFailed,
		ErrCodeNotificationFailed,
		ErrCodePublishFailed:
		return 3

	default:
		return 0 // business rejections and ignorable events: no retry
	}
}

// ConvertToJobError converts a StandardError to a JobError for the transport.
func ConvertToJobError(stdErr *StandardError) *JobError {
	retries := GetRetryCount(stdErr.Code)
	if !stdErr.Retryable {
		retries = 0
	}

	return &JobError{
		Code:      string(stdErr.Code),
		Message:   stdErr.Message,
		Details:   stdErr.Details,
		Retryable: stdErr.Retryable,
		Retries:   retries,
		ErrorVariables: map[string]interface{}{
			"originalErrorCode": string(stdErr.Code),
			"timestamp":         stdErr.Timestamp.Format(time.RFC3339),
		},
	}
}

// JobErrorHandler translates service errors into job transport commands.
type JobErrorHandler struct {
	logger Logger
}

type Logger interface {
	Error(msg string, fields map[string]interface{})
}

func NewJobErrorHandler(logger Logger) *JobErrorHandler {
	return &JobErrorHandler{logger: logger}
}

// HandleJobError fails retryable jobs (the broker re-delivers them) and throws
// terminal errors into the process.
func (h *JobErrorHandler) HandleJobError(ctx context.Context, client worker.JobClient, job entities.Job, err error) {
	stdErr := h.normalizeError(err)
	jobErr := ConvertToJobError(stdErr)

	h.logger.Error("job failed", map[string]interface{}{
		"jobKey":    job.Key,
		"jobType":   job.Type,
		"errorCode": jobErr.Code,
		"message":   jobErr.Message,
		"details":   jobErr.Details,
		"retryable": jobErr.Retryable,
	})

	if jobErr.Retryable && job.Retries > 0 {
		h.failJobWithRetries(ctx, client, job, jobErr)
		return
	}
	h.throwJobError(ctx, client, job, jobErr)
}

// normalizeError ensures we always have a StandardError.
func (h *JobErrorHandler) normalizeError(err error) *StandardError {
	if stdErr, ok := err.(*StandardError); ok {
		return stdErr
	}
	return &StandardError{
		Code:      "INTERNAL_ERROR",
		Message:   "Unexpected error",
		Details:   err.Error(),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

func (h *JobErrorHandler) failJobWithRetries(ctx context.Context, client worker.JobClient, job entities.Job, jobErr *JobError) {
	// The broker tracks remaining retries on the job itself; never raise it.
	retriesToUse := jobErr.Retries
	if job.Retries > 0 && int(job.Retries) < retriesToUse {
		retriesToUse = int(job.Retries)
	}

	cmd := client.NewFailJobCommand().
		JobKey(job.Key).
		Retries(int32(retriesToUse)).
		ErrorMessage(jobErr.Message)

	varsJSON, _ := json.Marshal(jobErr.ToErrorVariables())
	if cmdWithVars, err := cmd.VariablesFromString(string(varsJSON)); err == nil {
		_, _ = cmdWithVars.Send(ctx)
		return
	}
	_, _ = cmd.Send(ctx)
}

func (h *JobErrorHandler) throwJobError(ctx context.Context, client worker.JobClient, job entities.Job, jobErr *JobError) {
	cmd := client.NewThrowErrorCommand().
		JobKey(job.Key).
		ErrorCode(jobErr.Code).
		ErrorMessage(jobErr.Message)

	varsJSON, _ := json.Marshal(jobErr.ToErrorVariables())
	if cmdWithVars, err := cmd.VariablesFromString(string(varsJSON)); err == nil {
		_, _ = cmdWithVars.Send(ctx)
		return
	}
	_, _ = cmd.Send(ctx)
}
