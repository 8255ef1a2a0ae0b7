// Package outbox implements persist-then-publish for domain events. The
// record is written inside the caller's transaction; the broker publish runs
// only after that transaction commits, so the outbound message always
// describes durable state. A failed publish leaves the durable record behind
// for an out-of-band re-publish sweep.
package outbox

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"casework-workers/internal/common/errors"
	"casework-workers/internal/common/logger"
	"casework-workers/internal/common/metrics"
	"casework-workers/internal/models"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	snstypes "github.com/aws/aws-sdk-go-v2/service/sns/types"
	"github.com/google/uuid"
)

// SNSPublisher is the slice of the SNS client the outbox needs.
type SNSPublisher interface {
	Publish(ctx context.Context, input *sns.PublishInput) (*sns.PublishOutput, error)
}

type Outbox struct {
	publisher SNSPublisher
	topicARN  string
	logger    logger.Logger
}

func New(publisher SNSPublisher, topicARN string, log logger.Logger) *Outbox {
	return &Outbox{publisher: publisher, topicARN: topicARN, logger: log}
}

// Record persists a domain event inside tx. The event is not visible to
// Publish callers until tx commits.
func (o *Outbox) Record(ctx context.Context, tx *sql.Tx, eventType, applicationID string, payload interface{}) (*models.DomainEventRecord, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, errors.NewValidationError("event payload is not serialisable: " + err.Error())
	}

	rec := &models.DomainEventRecord{
		ID:            uuid.New().String(),
		ApplicationID: applicationID,
		Type:          eventType,
		Payload:       body,
		OccurredAt:    time.Now().UTC(),
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO domain_events (id, application_id, type, payload, occurred_at)
		VALUES ($1, $2, $3, $4, $5)`,
		rec.ID, rec.ApplicationID, rec.Type, []byte(rec.Payload), rec.OccurredAt)
	if err != nil {
		return nil, errors.NewDatabaseInsertError(err)
	}
	return rec, nil
}

// Publish sends the persisted record to the topic. Callers must only pass
// records whose transaction has committed.
func (o *Outbox) Publish(ctx context.Context, rec *models.DomainEventRecord) error {
	_, err := o.publisher.Publish(ctx, &sns.PublishInput{
		TopicArn: aws.String(o.topicARN),
		Message:  aws.String(string(rec.Payload)),
		MessageAttributes: map[string]snstypes.MessageAttributeValue{
			"eventType": {
				DataType:    aws.String("String"),
				StringValue: aws.String(rec.Type),
			},
			"eventId": {
				DataType:    aws.String("String"),
				StringValue: aws.String(rec.ID),
			},
		},
	})
	if err != nil {
		metrics.OutboxPublishes.WithLabelValues("failure").Inc()
		return errors.NewPublishFailedError(err)
	}

	metrics.OutboxPublishes.WithLabelValues("success").Inc()
	o.logger.Info("domain event published", map[string]interface{}{
		"eventId":       rec.ID,
		"eventType":     rec.Type,
		"applicationId": rec.ApplicationID,
	})
	return nil
}
