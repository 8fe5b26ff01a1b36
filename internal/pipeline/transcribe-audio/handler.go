// internal/pipeline/transcribe-audio/handler.go
package transcribeaudio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"therapy-connect/internal/common/logger"
	"therapy-connect/internal/common/whisper"
)

const (
	StageName = "transcribe-audio"
)

var (
	ErrTranscriptionFailed = errors.New("TRANSCRIPTION_FAILED")
	ErrEmptyTranscript     = errors.New("EMPTY_TRANSCRIPT")
)

// Transcriber turns an audio file on disk into text.
type Transcriber interface {
	TranscribeFile(ctx context.Context, path string) (string, error)
}

type Handler struct {
	config      *Config
	transcriber Transcriber
	transcoder  Transcoder
	logger      logger.Logger
}

func NewHandler(config *Config, transcriber Transcriber, transcoder Transcoder, log logger.Logger) *Handler {
	return &Handler{
		config:      config,
		transcriber: transcriber,
		transcoder:  transcoder,
		logger: log.With(map[string]interface{}{
			"stage": StageName,
		}),
	}
}

// Execute stages the upload on disk, optionally transcodes it, and transcribes it.
// Every file it creates is removed before it returns.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	start := time.Now()

	upload, err := h.stage(input)
	if err != nil {
		return nil, err
	}
	defer upload.Release()

	path := upload.path
	if h.config.Transcode && h.transcoder != nil {
		wav, f, err := createTempFile(h.config.UploadsDir, ".wav", h.logger)
		if err != nil {
			return nil, fmt.Errorf("%w: allocate transcode target: %v", ErrTranscriptionFailed, err)
		}
		f.Close()
		defer wav.Release()

		if err := h.transcoder.Transcode(ctx, upload.path, wav.path); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrTranscriptionFailed, err)
		}
		path = wav.path
	}

	text, err := h.transcriber.TranscribeFile(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTranscriptionFailed, err)
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyTranscript
	}

	h.logger.Info("audio transcribed", map[string]interface{}{
		"chars":    len(text),
		"duration": time.Since(start).String(),
	})

	return &Output{Text: text}, nil
}

// stage copies the request audio into a fresh temp file. Read errors from the request body
// are kept in the chain so callers can tell an oversized upload apart.
func (h *Handler) stage(input *Input) (*tempFile, error) {
	if input == nil || input.Audio == nil {
		return nil, fmt.Errorf("%w: no audio provided", ErrTranscriptionFailed)
	}

	tf, f, err := createTempFile(h.config.UploadsDir, uploadExt(input.Filename), h.logger)
	if err != nil {
		return nil, fmt.Errorf("%w: create temp file: %v", ErrTranscriptionFailed, err)
	}

	_, copyErr := io.Copy(f, input.Audio)
	closeErr := f.Close()
	if copyErr != nil {
		tf.Release()
		return nil, fmt.Errorf("%w: write upload: %w", ErrTranscriptionFailed, copyErr)
	}
	if closeErr != nil {
		tf.Release()
		return nil, fmt.Errorf("%w: close upload: %v", ErrTranscriptionFailed, closeErr)
	}
	return tf, nil
}

// WhisperTranscriber adapts the whisper client to Transcriber.
type WhisperTranscriber struct {
	Client   *whisper.Client
	Model    string
	Language string
}

func (w *WhisperTranscriber) TranscribeFile(ctx context.Context, path string) (string, error) {
	var opts []whisper.TranscribeOption
	if w.Model != "" {
		opts = append(opts, whisper.WithModel(w.Model))
	}
	if w.Language != "" {
		opts = append(opts, whisper.WithLanguage(w.Language))
	}
	return w.Client.TranscribeFile(ctx, path, opts...)
}
