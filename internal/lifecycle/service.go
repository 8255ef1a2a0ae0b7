// Package lifecycle implements the casework application state machine:
// create, update, submit and abandon, plus owner/assignment-scoped reads.
// Submission is the only transition with externally visible side effects, so
// it alone runs under a per-application exclusive lock.
package lifecycle

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"casework-workers/internal/access"
	"casework-workers/internal/common/errors"
	"casework-workers/internal/common/logger"
	"casework-workers/internal/common/metrics"
	"casework-workers/internal/ledger"
	"casework-workers/internal/models"
	"casework-workers/internal/schema"

	"github.com/google/uuid"
)

// SchemaRegistry answers schema-version questions for the lifecycle gate.
type SchemaRegistry interface {
	Newest(ctx context.Context) (*models.SchemaVersion, error)
}

// SubjectDirectory is the person read model consulted at creation.
type SubjectDirectory interface {
	GetSubjectSummary(ctx context.Context, subjectID, username string) (*models.SubjectSummary, error)
}

// LocationDirectory is the location read model consulted at submission.
type LocationDirectory interface {
	GetCurrentLocation(ctx context.Context, subjectID string) (string, error)
}

// Locker serialises submission per application id.
type Locker interface {
	Acquire(ctx context.Context, applicationID string) (token string, err error)
	Release(ctx context.Context, applicationID, token string) error
}

// Outbox persists a domain event in the caller's transaction and publishes it
// after commit.
type Outbox interface {
	Record(ctx context.Context, tx *sql.Tx, eventType, applicationID string, payload interface{}) (*models.DomainEventRecord, error)
	Publish(ctx context.Context, rec *models.DomainEventRecord) error
}

// Notifier delivers templated notifications. Failures are logged, not retried.
type Notifier interface {
	Send(ctx context.Context, recipient, templateID string, fields map[string]string) error
}

// DependentFactory creates the downstream record owed once per submission.
type DependentFactory interface {
	CreateFor(ctx context.Context, app *models.Application) error
}

// SearchIndexer pushes submitted applications into the search index.
type SearchIndexer interface {
	Index(ctx context.Context, app *models.Application) error
}

// AssignmentReader exposes the ledger's current view for access decisions.
type AssignmentReader interface {
	CurrentAssignment(ctx context.Context, applicationID string) (*models.AssignmentPeriod, error)
}

// NotificationTemplates carries the template ids used on submission.
type NotificationTemplates struct {
	SubmittedTemplateID    string
	ConfirmationTemplateID string
}

// Service orchestrates the application lifecycle.
type Service struct {
	store       *Store
	registry    SchemaRegistry
	subjects    SubjectDirectory
	locations   LocationDirectory
	assignments AssignmentReader
	sanitizer   *Sanitizer
	lock        Locker
	outbox      Outbox
	notifier    Notifier
	dependents  DependentFactory
	search      SearchIndexer
	templates   NotificationTemplates
	logger      logger.Logger
}

type ServiceDeps struct {
	Store       *Store
	Registry    SchemaRegistry
	Subjects    SubjectDirectory
	Locations   LocationDirectory
	Assignments AssignmentReader
	Sanitizer   *Sanitizer
	Lock        Locker
	Outbox      Outbox
	Notifier    Notifier
	Dependents  DependentFactory
	Search      SearchIndexer
	Templates   NotificationTemplates
	Logger      logger.Logger
}

func NewService(deps ServiceDeps) *Service {
	return &Service{
		store:       deps.Store,
		registry:    deps.Registry,
		subjects:    deps.Subjects,
		locations:   deps.Locations,
		assignments: deps.Assignments,
		sanitizer:   deps.Sanitizer,
		lock:        deps.Lock,
		outbox:      deps.Outbox,
		notifier:    deps.Notifier,
		dependents:  deps.Dependents,
		search:      deps.Search,
		templates:   deps.Templates,
		logger:      deps.Logger,
	}
}

// Create binds a new draft to the newest schema and opens its initial
// assignment period at the creating user's location. Nothing is persisted when
// the subject lookup rejects.
func (s *Service) Create(ctx context.Context, user models.User, subjectID string, data map[string]interface{}) (*models.Application, error) {
	subject, err := s.subjects.GetSubjectSummary(ctx, subjectID, user.Username)
	if err != nil {
		return nil, s.recordOutcome("create", nil, err)
	}

	newest, err := s.registry.Newest(ctx)
	if err != nil {
		return nil, s.recordOutcome("create", nil, err)
	}

	now := time.Now().UTC()
	app := &models.Application{
		ID:              uuid.New().String(),
		SubjectID:       subject.SubjectID,
		Owner:           user.Username,
		Data:            s.sanitizer.Sanitize(data),
		SchemaVersionID: newest.ID,
		OriginLocation:  user.ActiveLocation,
		CreatedAt:       now,
	}

	tx, err := s.store.BeginTx(ctx)
	if err != nil {
		return nil, s.recordOutcome("create", nil, err)
	}
	defer tx.Rollback()

	if err := s.store.InsertTx(ctx, tx, app); err != nil {
		return nil, s.recordOutcome("create", app, err)
	}
	if _, err := ledger.OpenPeriodTx(ctx, tx, app.ID, user.ActiveLocation, nil, now); err != nil {
		return nil, s.recordOutcome("create", app, err)
	}
	if err := tx.Commit(); err != nil {
		return nil, s.recordOutcome("create", app, errors.NewDatabaseInsertError(err))
	}
	metrics.AssignmentPeriodsOpened.Inc()

	s.logger.Info("application created", map[string]interface{}{
		"applicationId": app.ID,
		"subjectId":     app.SubjectID,
		"owner":         app.Owner,
	})
	return app, s.recordOutcome("create", app, nil)
}

// Update replaces a draft's form data after sanitisation and schema
// validation. A validation failure is a normal rejection, not a fault.
func (s *Service) Update(ctx context.Context, user models.User, applicationID string, data map[string]interface{}) (*models.Application, error) {
	app, err := s.store.GetByID(ctx, applicationID)
	if err != nil {
		return nil, s.recordOutcome("update", nil, err)
	}
	if app.Owner != user.Username {
		return nil, s.recordOutcome("update", app, errors.NewUnauthorisedError(user.Username, applicationID))
	}
	if !app.IsDraft() {
		return nil, s.recordOutcome("update", app,
			errors.NewValidationError("application is "+string(app.Status())+" and can no longer be edited"))
	}

	newest, err := s.registry.Newest(ctx)
	if err != nil {
		return nil, s.recordOutcome("update", app, err)
	}
	if app.SchemaVersionID != newest.ID {
		return nil, s.recordOutcome("update", app,
			errors.NewValidationError("application schema version is no longer current"))
	}

	sanitized := s.sanitizer.Sanitize(data)
	if valid, reasons := schema.Validate(newest, sanitized); !valid {
		return nil, s.recordOutcome("update", app, errors.NewValidationError(strings.Join(reasons, "; ")))
	}

	if err := s.store.UpdateData(ctx, applicationID, sanitized, app.SchemaVersionID); err != nil {
		return nil, s.recordOutcome("update", app, err)
	}
	app.Data = sanitized
	return app, s.recordOutcome("update", app, nil)
}

// Submit re-evaluates all draft preconditions under the per-application lock,
// stamps submittedAt and records the domain event in one transaction, then
// fires the post-commit effects (publish, dependent record, notifications,
// indexing). Post-commit failures are logged, never unwound.
func (s *Service) Submit(ctx context.Context, user models.User, applicationID string) (*models.Application, error) {
	token, err := s.lock.Acquire(ctx, applicationID)
	if err != nil {
		return nil, s.recordOutcome("submit", nil, err)
	}
	defer func() {
		if err := s.lock.Release(ctx, applicationID, token); err != nil {
			s.logger.Warn("submit lock release failed", map[string]interface{}{
				"applicationId": applicationID,
				"error":         err.Error(),
			})
		}
	}()

	// State is only trustworthy once the lock is held.
	app, err := s.store.GetByID(ctx, applicationID)
	if err != nil {
		return nil, s.recordOutcome("submit", nil, err)
	}
	if app.Owner != user.Username {
		return nil, s.recordOutcome("submit", app, errors.NewUnauthorisedError(user.Username, applicationID))
	}
	if app.IsSubmitted() {
		return nil, s.recordOutcome("submit", app, errors.NewConflictError("application already submitted"))
	}
	if app.IsAbandoned() {
		return nil, s.recordOutcome("submit", app, errors.NewConflictError("application has been abandoned"))
	}

	newest, err := s.registry.Newest(ctx)
	if err != nil {
		return nil, s.recordOutcome("submit", app, err)
	}
	if app.SchemaVersionID != newest.ID {
		return nil, s.recordOutcome("submit", app,
			errors.NewValidationError("application schema version is no longer current"))
	}
	if valid, reasons := schema.Validate(newest, app.Data); !valid {
		return nil, s.recordOutcome("submit", app, errors.NewValidationError(strings.Join(reasons, "; ")))
	}

	location, err := s.locations.GetCurrentLocation(ctx, app.SubjectID)
	if err != nil {
		if errors.IsCode(err, errors.ErrCodeLocationNotFound) {
			return nil, s.recordOutcome("submit", app,
				errors.NewValidationError("no location available for subject "+app.SubjectID))
		}
		return nil, s.recordOutcome("submit", app, err)
	}

	now := time.Now().UTC()
	tx, err := s.store.BeginTx(ctx)
	if err != nil {
		return nil, s.recordOutcome("submit", app, err)
	}
	defer tx.Rollback()

	if err := s.store.MarkSubmittedTx(ctx, tx, applicationID, now); err != nil {
		return nil, s.recordOutcome("submit", app, err)
	}
	app.SubmittedAt = &now

	rec, err := s.outbox.Record(ctx, tx, models.EventApplicationSubmitted, app.ID, map[string]interface{}{
		"applicationId": app.ID,
		"subjectId":     app.SubjectID,
		"location":      location,
		"occurredAt":    now,
	})
	if err != nil {
		return nil, s.recordOutcome("submit", app, err)
	}

	if err := tx.Commit(); err != nil {
		return nil, s.recordOutcome("submit", app, errors.NewDatabaseInsertError(err))
	}

	s.afterSubmit(ctx, app, rec, user)

	s.logger.Info("application submitted", map[string]interface{}{
		"applicationId": app.ID,
		"subjectId":     app.SubjectID,
		"location":      location,
	})
	return app, s.recordOutcome("submit", app, nil)
}

// afterSubmit runs the effects owed once per submission. All of them happen
// strictly after the commit and none of them can fail the submission.
func (s *Service) afterSubmit(ctx context.Context, app *models.Application, rec *models.DomainEventRecord, user models.User) {
	if err := s.outbox.Publish(ctx, rec); err != nil {
		s.logger.Error("domain event publish failed", map[string]interface{}{
			"applicationId": app.ID,
			"eventId":       rec.ID,
			"error":         err.Error(),
		})
	}
	if err := s.dependents.CreateFor(ctx, app); err != nil {
		s.logger.Error("dependent record creation failed", map[string]interface{}{
			"applicationId": app.ID,
			"error":         err.Error(),
		})
	}
	fields := map[string]string{
		"applicationId": app.ID,
		"subjectId":     app.SubjectID,
	}
	if err := s.notifier.Send(ctx, app.Owner, s.templates.ConfirmationTemplateID, fields); err != nil {
		s.logger.Error("submission confirmation failed", map[string]interface{}{
			"applicationId": app.ID,
			"error":         err.Error(),
		})
	}
	if err := s.notifier.Send(ctx, app.OriginLocation, s.templates.SubmittedTemplateID, fields); err != nil {
		s.logger.Error("submission notification failed", map[string]interface{}{
			"applicationId": app.ID,
			"error":         err.Error(),
		})
	}
	if err := s.search.Index(ctx, app); err != nil {
		s.logger.Error("search indexing failed", map[string]interface{}{
			"applicationId": app.ID,
			"error":         err.Error(),
		})
	}
}

// Abandon moves a draft to abandoned and clears its form data. Repeating the
// call on an already abandoned application is a successful no-op.
func (s *Service) Abandon(ctx context.Context, user models.User, applicationID string) (*models.Application, error) {
	app, err := s.store.GetByID(ctx, applicationID)
	if err != nil {
		return nil, s.recordOutcome("abandon", nil, err)
	}
	if app.Owner != user.Username {
		return nil, s.recordOutcome("abandon", app, errors.NewUnauthorisedError(user.Username, applicationID))
	}
	if app.IsSubmitted() {
		return nil, s.recordOutcome("abandon", app, errors.NewConflictError("submitted applications cannot be abandoned"))
	}
	if app.IsAbandoned() {
		return app, s.recordOutcome("abandon", app, nil)
	}

	now := time.Now().UTC()
	if err := s.store.MarkAbandoned(ctx, applicationID, now); err != nil {
		return nil, s.recordOutcome("abandon", app, err)
	}
	app.AbandonedAt = &now
	app.Data = map[string]interface{}{}
	return app, s.recordOutcome("abandon", app, nil)
}

// Get loads an application and enforces the visibility rules against the
// ledger's current assignment.
func (s *Service) Get(ctx context.Context, user models.User, applicationID string) (*models.Application, error) {
	app, err := s.store.GetByID(ctx, applicationID)
	if err != nil {
		return nil, err
	}
	current, err := s.assignments.CurrentAssignment(ctx, applicationID)
	if err != nil {
		return nil, err
	}
	if !access.CanView(user, app, current) {
		return nil, errors.NewUnauthorisedError(user.Username, applicationID)
	}
	return app, nil
}

func (s *Service) recordOutcome(operation string, app *models.Application, err error) error {
	outcome := "success"
	if err != nil {
		outcome = string(errors.CodeOf(err))
		if outcome == "" {
			outcome = "error"
		}
	}
	metrics.LifecycleOperations.WithLabelValues(operation, outcome).Inc()
	return err
}
