// internal/notify/notify_test.go
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"therapy-connect/internal/common/logger"
	"therapy-connect/internal/models"
)

// ==========================
// Mocks
// ==========================

type MockSES struct {
	mock.Mock
}

func (m *MockSES) SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ses.SendEmailOutput), args.Error(1)
}

type MockSNS struct {
	mock.Mock
}

func (m *MockSNS) Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*sns.PublishOutput), args.Error(1)
}

func savedSession() *models.SavedSession {
	return &models.SavedSession{
		ID:              "7d3c1c1e-0b5a-4c58-9a53-7f3f0c1f2a11",
		CreatedAt:       time.Date(2025, 5, 12, 9, 30, 0, 0, time.UTC),
		OriginalText:    "I have been anxious about exams",
		Emotion:         "fear",
		ConfidenceScore: 0.8123,
		Questions:       []string{"How intense is it?"},
		Answers:         []models.Answer{{Question: "How intense is it?", Answer: 8}},
		Summary:         "It makes sense that exams feel heavy right now.",
	}
}

// ==========================
// Mailer Tests
// ==========================

func TestMailer_ShareSummary(t *testing.T) {
	client := new(MockSES)
	client.On("SendEmail", mock.Anything, mock.MatchedBy(func(in *ses.SendEmailInput) bool {
		return aws.ToString(in.Source) == "noreply@therapy.example" &&
			len(in.Destination.ToAddresses) == 1 &&
			in.Destination.ToAddresses[0] == "sam@example.com" &&
			aws.ToString(in.Message.Subject.Data) == summarySubject
	})).Return(&ses.SendEmailOutput{MessageId: aws.String("msg-1")}, nil)

	m := NewMailer(client, "noreply@therapy.example", nil, logger.NewTestLogger(t))
	id, err := m.ShareSummary(context.Background(), "Sam <sam@example.com>", savedSession())

	require.NoError(t, err)
	assert.Equal(t, "msg-1", id)
	client.AssertExpectations(t)
}

func TestMailer_InvalidRecipient(t *testing.T) {
	client := new(MockSES)
	m := NewMailer(client, "noreply@therapy.example", nil, logger.NewNoOpLogger())

	_, err := m.ShareSummary(context.Background(), "not-an-address", savedSession())

	assert.True(t, errors.Is(err, ErrInvalidRecipient))
	client.AssertNotCalled(t, "SendEmail", mock.Anything, mock.Anything)
}

func TestMailer_SendFailure(t *testing.T) {
	client := new(MockSES)
	client.On("SendEmail", mock.Anything, mock.Anything).Return(nil, errors.New("MessageRejected"))

	m := NewMailer(client, "noreply@therapy.example", nil, logger.NewNoOpLogger())
	_, err := m.ShareSummary(context.Background(), "sam@example.com", savedSession())

	assert.True(t, errors.Is(err, ErrSendFailed))
}

func TestMailer_RendersDateInLocation(t *testing.T) {
	client := new(MockSES)
	var captured *ses.SendEmailInput
	client.On("SendEmail", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { captured = args.Get(1).(*ses.SendEmailInput) }).
		Return(&ses.SendEmailOutput{MessageId: aws.String("msg-2")}, nil)

	s := savedSession()
	s.CreatedAt = time.Date(2025, 6, 6, 23, 30, 0, 0, time.UTC)
	m := NewMailer(client, "noreply@therapy.example", time.FixedZone("IST", 5*3600+1800), logger.NewNoOpLogger())

	_, err := m.ShareSummary(context.Background(), "sam@example.com", s)
	require.NoError(t, err)
	require.NotNil(t, captured)
	assert.Contains(t, aws.ToString(captured.Message.Body.Text.Data), "Session from Saturday, June 7, 2025 05:00 IST")
}

func TestRenderSummaryEmail(t *testing.T) {
	body := RenderSummaryEmail(savedSession(), nil)

	assert.Contains(t, body, "I have been anxious about exams")
	assert.Contains(t, body, "Detected emotion: fear (81.2%)")
	assert.Contains(t, body, "1. How intense is it? - 8/10")
	assert.Contains(t, body, "It makes sense that exams feel heavy right now.")
}

// ==========================
// Event Tests
// ==========================

func TestEventPublisher_Publish(t *testing.T) {
	client := new(MockSNS)
	var captured *sns.PublishInput
	client.On("Publish", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { captured = args.Get(1).(*sns.PublishInput) }).
		Return(&sns.PublishOutput{MessageId: aws.String("evt-1")}, nil)

	p := NewEventPublisher(client, "arn:aws:sns:us-east-1:123456789012:sessions")
	err := p.Publish(context.Background(), SessionEvent{
		Event:       EventSessionSummarized,
		SessionID:   "abc",
		Emotion:     "joy",
		AnswerCount: 5,
		Timestamp:   time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	})

	require.NoError(t, err)
	require.NotNil(t, captured)
	assert.Equal(t, "arn:aws:sns:us-east-1:123456789012:sessions", aws.ToString(captured.TopicArn))
	assert.Equal(t, EventSessionSummarized, aws.ToString(captured.MessageAttributes["event"].StringValue))

	var payload map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(aws.ToString(captured.Message)), &payload))
	assert.Equal(t, "session.summarized", payload["event"])
	assert.Equal(t, float64(5), payload["answer_count"])
	assert.NotContains(t, payload, "summary")
	assert.NotContains(t, payload, "original_text")
}

func TestEventPublisher_Failure(t *testing.T) {
	client := new(MockSNS)
	client.On("Publish", mock.Anything, mock.Anything).Return(nil, errors.New("AuthorizationError"))

	err := NewEventPublisher(client, "arn").Publish(context.Background(), SessionEvent{Event: EventSessionSummarized})
	assert.True(t, errors.Is(err, ErrSendFailed))
}
