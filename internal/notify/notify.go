// Package notify delivers templated email notifications through SES.
// Delivery is best-effort from the caller's point of view: failures surface
// as retryable errors but never unwind the state change that triggered them.
package notify

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"casework-workers/internal/common/errors"
	"casework-workers/internal/common/logger"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	sestypes "github.com/aws/aws-sdk-go-v2/service/ses/types"
)

// EmailSender is the slice of the SES client the notifier needs.
type EmailSender interface {
	SendEmail(ctx context.Context, input *ses.SendEmailInput) (*ses.SendEmailOutput, error)
}

type Notifier struct {
	sender    EmailSender
	fromEmail string
	logger    logger.Logger
}

func New(sender EmailSender, fromEmail string, log logger.Logger) *Notifier {
	return &Notifier{sender: sender, fromEmail: fromEmail, logger: log}
}

// Send delivers one templated notification. Template rendering is minimal:
// the template id selects the subject line and the fields become the body.
func (n *Notifier) Send(ctx context.Context, recipient, templateID string, fields map[string]string) error {
	_, err := n.sender.SendEmail(ctx, &ses.SendEmailInput{
		Source: aws.String(n.fromEmail),
		Destination: &sestypes.Destination{
			ToAddresses: []string{recipient},
		},
		Message: &sestypes.Message{
			Subject: &sestypes.Content{Data: aws.String(templateID)},
			Body: &sestypes.Body{
				Text: &sestypes.Content{Data: aws.String(renderFields(fields))},
			},
		},
	})
	if err != nil {
		return errors.NewNotificationSendError(templateID, err)
	}

	n.logger.Info("notification sent", map[string]interface{}{
		"recipient":  recipient,
		"templateId": templateID,
	})
	return nil
}

func renderFields(fields map[string]string) string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		fmt.Fprintf(&b, "%s: %s\n", k, fields[k])
	}
	return b.String()
}
