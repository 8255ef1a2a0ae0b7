package errors

import (
	"errors"

	"casework-workers/internal/common/metrics"
)

// ReporterLogger is the logging surface the reporter needs.
type ReporterLogger interface {
	Warn(msg string, fields map[string]interface{})
}

// Reporter is the sink for ignorable classifications. Ignorable errors must
// not crash or retry the transport, but they must not be silently lost either.
type Reporter struct {
	logger ReporterLogger
}

func NewReporter(logger ReporterLogger) *Reporter {
	return &Reporter{logger: logger}
}

// ReportError records an ignorable error against an event type.
func (r *Reporter) ReportError(eventType string, err error) {
	reason := "internal"
	var stdErr *StandardError
	if errors.As(err, &stdErr) {
		reason = string(stdErr.Code)
	}
	metrics.EventsIgnored.WithLabelValues(eventType, reason).Inc()
	r.logger.Warn("ignorable error reported", map[string]interface{}{
		"eventType": eventType,
		"reason":    reason,
		"error":     err.Error(),
	})
}

// ReportMessage records an ignorable condition that has no error value.
func (r *Reporter) ReportMessage(eventType, msg string, fields map[string]interface{}) {
	metrics.EventsIgnored.WithLabelValues(eventType, "message").Inc()
	if fields == nil {
		fields = map[string]interface{}{}
	}
	fields["eventType"] = eventType
	r.logger.Warn(msg, fields)
}
