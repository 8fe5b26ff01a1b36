// internal/notify/mailer.go
package notify

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"

	"therapy-connect/internal/common/logger"
	"therapy-connect/internal/models"
)

const summarySubject = "Your Therapy Connect session summary"

var (
	ErrInvalidRecipient = errors.New("INVALID_RECIPIENT")
	ErrSendFailed       = errors.New("NOTIFICATION_SEND_FAILED")
)

// SESAPI is the subset of the SES client used here.
type SESAPI interface {
	SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

// Mailer emails saved session summaries.
type Mailer struct {
	client SESAPI
	from   string
	loc    *time.Location
	logger logger.Logger
}

// NewMailer builds a Mailer that renders session dates in loc. A nil loc means UTC.
func NewMailer(client SESAPI, from string, loc *time.Location, log logger.Logger) *Mailer {
	if loc == nil {
		loc = time.UTC
	}
	return &Mailer{
		client: client,
		from:   from,
		loc:    loc,
		logger: log.With(map[string]interface{}{
			"component": "mailer",
		}),
	}
}

// ShareSummary sends the session as a plain-text email and returns the SES message id.
func (m *Mailer) ShareSummary(ctx context.Context, to string, s *models.SavedSession) (string, error) {
	addr, err := mail.ParseAddress(strings.TrimSpace(to))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidRecipient, err)
	}

	out, err := m.client.SendEmail(ctx, &ses.SendEmailInput{
		Source: aws.String(m.from),
		Destination: &types.Destination{
			ToAddresses: []string{addr.Address},
		},
		Message: &types.Message{
			Subject: &types.Content{Data: aws.String(summarySubject), Charset: aws.String("UTF-8")},
			Body: &types.Body{
				Text: &types.Content{Data: aws.String(RenderSummaryEmail(s, m.loc)), Charset: aws.String("UTF-8")},
			},
		},
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrSendFailed, err)
	}

	messageID := aws.ToString(out.MessageId)
	m.logger.Info("summary email sent", map[string]interface{}{
		"sessionId": s.ID,
		"messageId": messageID,
	})
	return messageID, nil
}

// RenderSummaryEmail lays out a saved session as plain text, with its date shown in loc.
func RenderSummaryEmail(s *models.SavedSession, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Session from %s\n\n", s.CreatedAt.In(loc).Format("Monday, January 2, 2006 15:04 MST"))
	fmt.Fprintf(&b, "What you shared:\n%s\n\n", s.OriginalText)
	if s.Emotion != "" {
		fmt.Fprintf(&b, "Detected emotion: %s (%.1f%%)\n\n", s.Emotion, s.ConfidenceScore*100)
	}
	if len(s.Answers) > 0 {
		b.WriteString("Your reflections:\n")
		for i, a := range s.Answers {
			fmt.Fprintf(&b, "%d. %s - %d/10\n", i+1, a.Question, a.Answer)
		}
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "Summary:\n%s\n", s.Summary)
	return b.String()
}
