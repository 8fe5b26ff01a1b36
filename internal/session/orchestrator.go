// internal/session/orchestrator.go
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	apperrors "therapy-connect/internal/common/errors"
	"therapy-connect/internal/common/logger"
	"therapy-connect/internal/common/metrics"
	"therapy-connect/internal/models"
	"therapy-connect/internal/notify"
	generatequestions "therapy-connect/internal/pipeline/generate-questions"
	generatesummary "therapy-connect/internal/pipeline/generate-summary"
	retrieveknowledge "therapy-connect/internal/pipeline/retrieve-knowledge"
	scoreemotion "therapy-connect/internal/pipeline/score-emotion"
	transcribeaudio "therapy-connect/internal/pipeline/transcribe-audio"
)

// MissingSummaryInput is the client-facing message for an incomplete /get_summary request.
const MissingSummaryInput = "Missing original text or answers for summary."

type Transcriber interface {
	Execute(ctx context.Context, input *transcribeaudio.Input) (*transcribeaudio.Output, error)
}

type EmotionScorer interface {
	Execute(ctx context.Context, input *scoreemotion.Input) (*scoreemotion.Output, error)
}

type KnowledgeRetriever interface {
	Execute(ctx context.Context, input *retrieveknowledge.Input) (*retrieveknowledge.Output, error)
}

type QuestionGenerator interface {
	Execute(ctx context.Context, input *generatequestions.Input) (*generatequestions.Output, error)
}

type SummaryGenerator interface {
	Execute(ctx context.Context, input *generatesummary.Input) (*generatesummary.Output, error)
}

type EventPublisher interface {
	Publish(ctx context.Context, event notify.SessionEvent) error
}

// Dependencies wires the stages into an Orchestrator. Store and Events are optional.
type Dependencies struct {
	Transcriber Transcriber
	Scorer      EmotionScorer
	Retriever   KnowledgeRetriever
	Questions   QuestionGenerator
	Summaries   SummaryGenerator
	Store       Store
	Events      EventPublisher
	Logger      logger.Logger
	Now         func() time.Time
}

// Orchestrator runs the two halves of a session: start (audio to questions) and summary.
type Orchestrator struct {
	deps   Dependencies
	logger logger.Logger
	now    func() time.Time
}

func NewOrchestrator(deps Dependencies) *Orchestrator {
	log := deps.Logger
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &Orchestrator{
		deps:   deps,
		logger: log.With(map[string]interface{}{"component": "orchestrator"}),
		now:    now,
	}
}

// SessionTokensEnabled reports whether a session store is configured.
func (o *Orchestrator) SessionTokensEnabled() bool {
	return o.deps.Store != nil
}

type StartResult struct {
	OriginalText      string               `json:"original_text"`
	EmotionData       models.EmotionResult `json:"emotion_data"`
	Questions         []string             `json:"questions"`
	SessionID         string               `json:"session_id,omitempty"`
	QuestionsFallback bool                 `json:"-"`
}

type SummaryRequest struct {
	OriginalText string          `json:"original_text"`
	Answers      []models.Answer `json:"answers"`
	SessionID    string          `json:"session_id,omitempty"`
}

type SummaryResult struct {
	Summary string `json:"summary"`
}

// StartSession transcribes the audio, scores it, retrieves context and asks for questions.
// It is not cancelled by the caller going away; each collaborator call has its own timeout.
func (o *Orchestrator) StartSession(ctx context.Context, audio io.Reader, filename string) (*StartResult, error) {
	ctx = context.WithoutCancel(ctx)

	var transcript *transcribeaudio.Output
	err := o.runStage(transcribeaudio.StageName, func() (err error) {
		transcript, err = o.deps.Transcriber.Execute(ctx, &transcribeaudio.Input{Audio: audio, Filename: filename})
		return err
	})
	if err != nil {
		return nil, err
	}

	var emotion *scoreemotion.Output
	err = o.runStage(scoreemotion.StageName, func() (err error) {
		emotion, err = o.deps.Scorer.Execute(ctx, &scoreemotion.Input{Text: transcript.Text})
		return err
	})
	if err != nil {
		return nil, err
	}

	var knowledge *retrieveknowledge.Output
	err = o.runStage(retrieveknowledge.StageName, func() (err error) {
		knowledge, err = o.deps.Retriever.Execute(ctx, &retrieveknowledge.Input{Emotion: emotion.Emotion, Transcript: transcript.Text})
		return err
	})
	if err != nil {
		return nil, err
	}

	var questions *generatequestions.Output
	err = o.runStage(generatequestions.StageName, func() (err error) {
		questions, err = o.deps.Questions.Execute(ctx, &generatequestions.Input{
			OriginalText: transcript.Text,
			Emotion:      *emotion,
			Snippets:     knowledge.Snippets,
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	result := &StartResult{
		OriginalText:      transcript.Text,
		EmotionData:       *emotion,
		Questions:         questions.Questions,
		QuestionsFallback: questions.Fallback,
	}

	if o.deps.Store != nil {
		rec := &models.SessionRecord{
			State:             models.SessionAwaitingAnswers,
			OriginalText:      transcript.Text,
			EmotionData:       *emotion,
			Questions:         questions.Questions,
			QuestionsFallback: questions.Fallback,
			CreatedAt:         o.now().UTC(),
		}
		if err := o.deps.Store.Create(ctx, rec); err != nil {
			return nil, toStandardError(err)
		}
		result.SessionID = rec.ID
	}

	o.logger.Info("session started", map[string]interface{}{
		"sessionId": result.SessionID,
		"emotion":   emotion.Emotion,
		"questions": len(result.Questions),
		"fallback":  questions.Fallback,
	})
	return result, nil
}

// GetSummary validates the answers and produces the closing summary.
func (o *Orchestrator) GetSummary(ctx context.Context, req *SummaryRequest) (*SummaryResult, error) {
	ctx = context.WithoutCancel(ctx)

	var rec *models.SessionRecord
	if req.SessionID != "" {
		if o.deps.Store == nil {
			return nil, apperrors.NewInvalidRequestError("Session tokens are not enabled.", "session_id supplied")
		}
		var err error
		rec, err = o.deps.Store.Get(ctx, req.SessionID)
		if err != nil {
			return nil, toStandardError(err, req.SessionID)
		}
		if rec.IsSummarized() {
			return nil, apperrors.NewSessionAlreadySummarizedError(req.SessionID)
		}
		if req.OriginalText == "" {
			req.OriginalText = rec.OriginalText
		}
	}

	if err := ValidateSummaryRequest(req); err != nil {
		return nil, err
	}

	var out *generatesummary.Output
	err := o.runStage(generatesummary.StageName, func() (err error) {
		out, err = o.deps.Summaries.Execute(ctx, &generatesummary.Input{OriginalText: req.OriginalText, Answers: req.Answers})
		return err
	})
	if err != nil {
		return nil, err
	}

	if rec != nil {
		if err := o.deps.Store.MarkSummarized(ctx, rec.ID, o.now().UTC()); err != nil {
			if errors.Is(err, ErrAlreadySummarized) {
				return nil, apperrors.NewSessionAlreadySummarizedError(rec.ID)
			}
			o.logger.Warn("failed to mark session summarized", map[string]interface{}{
				"sessionId": rec.ID,
				"error":     err.Error(),
			})
		}
	}

	o.publishSummarized(ctx, req, rec)

	return &SummaryResult{Summary: out.Summary}, nil
}

// ValidateSummaryRequest rejects requests that must not reach the summary model.
func ValidateSummaryRequest(req *SummaryRequest) error {
	if req.OriginalText == "" || len(req.Answers) == 0 {
		return apperrors.NewInvalidRequestError(MissingSummaryInput, "")
	}
	for i, a := range req.Answers {
		if !a.Answer.Valid() {
			return apperrors.NewInvalidRequestError(
				fmt.Sprintf("Answer %d must be a rating between %d and %d.", i+1, models.MinRating, models.MaxRating),
				fmt.Sprintf("got %d", a.Answer),
			)
		}
	}
	return nil
}

func (o *Orchestrator) publishSummarized(ctx context.Context, req *SummaryRequest, rec *models.SessionRecord) {
	if o.deps.Events == nil {
		return
	}

	event := notify.SessionEvent{
		Event:       notify.EventSessionSummarized,
		SessionID:   req.SessionID,
		AnswerCount: len(req.Answers),
		Timestamp:   o.now().UTC(),
	}
	if rec != nil {
		event.Emotion = rec.EmotionData.Emotion
	}

	if err := o.deps.Events.Publish(ctx, event); err != nil {
		metrics.EventsPublishFailed.Inc()
		o.logger.Warn("failed to publish session event", map[string]interface{}{
			"event": event.Event,
			"error": err.Error(),
		})
	}
}

// runStage records metrics for fn and converts its error into a StandardError.
func (o *Orchestrator) runStage(stage string, fn func() error) error {
	done := metrics.TrackStage(stage)
	err := fn()
	if err == nil {
		done("")
		return nil
	}

	stdErr := toStandardError(err)
	done(string(stdErr.Code))
	return stdErr
}

func toStandardError(err error, sessionID ...string) *apperrors.StandardError {
	id := ""
	if len(sessionID) > 0 {
		id = sessionID[0]
	}

	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &tooLarge):
		return apperrors.NewPayloadTooLargeError(tooLarge.Limit)
	case errors.Is(err, transcribeaudio.ErrEmptyTranscript):
		return apperrors.NewEmptyTranscriptError()
	case errors.Is(err, transcribeaudio.ErrTranscriptionFailed):
		return apperrors.NewTranscriptionFailedError(err)
	case errors.Is(err, scoreemotion.ErrClassificationFailed):
		return apperrors.NewClassificationFailedError(err)
	case errors.Is(err, retrieveknowledge.ErrRetrievalFailed):
		return apperrors.NewRetrievalFailedError(err)
	case errors.Is(err, generatequestions.ErrGenerationTimeout), errors.Is(err, generatesummary.ErrGenerationTimeout):
		return apperrors.NewGenerationTimeoutError(err)
	case errors.Is(err, generatequestions.ErrGenerationFailed), errors.Is(err, generatesummary.ErrGenerationFailed):
		return apperrors.NewGenerationFailedError(err)
	case errors.Is(err, ErrSessionNotFound):
		return apperrors.NewSessionNotFoundError(id)
	case errors.Is(err, ErrAlreadySummarized):
		return apperrors.NewSessionAlreadySummarizedError(id)
	case errors.Is(err, ErrStoreUnavailable):
		return apperrors.NewSessionStoreFailedError(err)
	default:
		return apperrors.AsStandardError(err)
	}
}
