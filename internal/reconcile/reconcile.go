// Package reconcile consumes external provider events and folds their
// consequences into the assignment ledger. Both event variants share one
// parse-resolve-fetch-apply pipeline; the variant contributes only "which
// applications does this concern" and "what is the authoritative assignment".
//
// Classification is the heart of the package: malformed events, unknown
// subjects and transient read-model absences are reported and then treated as
// handled, so the transport never redelivers them. Only infrastructure
// failures (database, network, 5xx) propagate for retry.
package reconcile

import (
	"context"
	"encoding/json"
	"time"

	"casework-workers/internal/common/errors"
	"casework-workers/internal/common/logger"
	"casework-workers/internal/common/metrics"
	"casework-workers/internal/models"
)

// Variant supplies the event-type specific half of the pipeline.
type Variant interface {
	EventType() string
	// ResolveApplications returns the applications the event concerns. Zero
	// matches is a legitimate outcome, not an error.
	ResolveApplications(ctx context.Context, subjectID string) ([]*models.Application, error)
	// FetchAssignment resolves the authoritative (location, officer) pair from
	// the read model named by the event.
	FetchAssignment(ctx context.Context, event *models.EventEnvelope) (*models.Allocation, error)
}

// PeriodOpener is the ledger surface the reconciler writes through.
type PeriodOpener interface {
	OpenNewPeriod(ctx context.Context, applicationID, location string, officer *string, at time.Time) (*models.AssignmentPeriod, error)
}

type Reconciler struct {
	variant  Variant
	ledger   PeriodOpener
	reporter *errors.Reporter
	logger   logger.Logger
}

func New(variant Variant, ledger PeriodOpener, reporter *errors.Reporter, log logger.Logger) *Reconciler {
	return &Reconciler{variant: variant, ledger: ledger, reporter: reporter, logger: log}
}

// Reconcile processes one raw event. A nil return means the event is
// consumed; a non-nil return means the transport must redeliver it.
func (r *Reconciler) Reconcile(ctx context.Context, raw []byte) error {
	eventType := r.variant.EventType()

	var event models.EventEnvelope
	if err := json.Unmarshal(raw, &event); err != nil {
		r.reporter.ReportError(eventType, errors.NewEventIgnoredError("malformed event envelope: "+err.Error()))
		return nil
	}
	if event.SubjectID == "" {
		r.reporter.ReportMessage(eventType, "event missing subject identifier", nil)
		return nil
	}
	if event.DetailURL == "" {
		r.reporter.ReportMessage(eventType, "event missing detail reference", map[string]interface{}{
			"subjectId": event.SubjectID,
		})
		return nil
	}

	apps, err := r.variant.ResolveApplications(ctx, event.SubjectID)
	if err != nil {
		return err
	}
	if len(apps) == 0 {
		// The event simply doesn't concern stored data.
		return nil
	}

	assignment, err := r.variant.FetchAssignment(ctx, &event)
	if err != nil {
		switch errors.CodeOf(err) {
		case errors.ErrCodeAllocationNotFound, errors.ErrCodeLocationNotFound:
			// Legitimate transient states such as deallocation.
			r.reporter.ReportError(eventType, err)
			return nil
		}
		return err
	}

	var officer *string
	if assignment.Officer != "" {
		officer = &assignment.Officer
	}

	for _, app := range apps {
		if _, err := r.ledger.OpenNewPeriod(ctx, app.ID, assignment.Location, officer, event.OccurredAt); err != nil {
			return err
		}
	}

	metrics.EventsReconciled.WithLabelValues(eventType).Inc()
	r.logger.Info("event reconciled", map[string]interface{}{
		"eventType":    eventType,
		"subjectId":    event.SubjectID,
		"applications": len(apps),
		"location":     assignment.Location,
	})
	return nil
}
