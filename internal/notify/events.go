// internal/notify/events.go
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sns/types"
)

const EventSessionSummarized = "session.summarized"

// SNSAPI is the subset of the SNS client used here.
type SNSAPI interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// SessionEvent never carries transcripts or summaries.
type SessionEvent struct {
	Event       string    `json:"event"`
	SessionID   string    `json:"session_id,omitempty"`
	Emotion     string    `json:"emotion,omitempty"`
	AnswerCount int       `json:"answer_count"`
	Timestamp   time.Time `json:"timestamp"`
}

type EventPublisher struct {
	client   SNSAPI
	topicARN string
}

func NewEventPublisher(client SNSAPI, topicARN string) *EventPublisher {
	return &EventPublisher{client: client, topicARN: topicARN}
}

func (p *EventPublisher) Publish(ctx context.Context, event SessionEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("%w: encode event: %v", ErrSendFailed, err)
	}

	_, err = p.client.Publish(ctx, &sns.PublishInput{
		TopicArn: aws.String(p.topicARN),
		Message:  aws.String(string(body)),
		MessageAttributes: map[string]types.MessageAttributeValue{
			"event": {DataType: aws.String("String"), StringValue: aws.String(event.Event)},
		},
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSendFailed, err)
	}
	return nil
}
