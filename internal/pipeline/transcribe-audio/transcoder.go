// internal/pipeline/transcribe-audio/transcoder.go
package transcribeaudio

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

// Transcoder converts an uploaded recording into the format sent to speech recognition.
type Transcoder interface {
	Transcode(ctx context.Context, src, dst string) error
}

// FFmpegTranscoder shells out to ffmpeg to produce PCM WAV.
type FFmpegTranscoder struct {
	Binary     string
	SampleRate int
	Channels   int
	Timeout    time.Duration
}

func NewFFmpegTranscoder(config *Config) *FFmpegTranscoder {
	return &FFmpegTranscoder{
		Binary:     config.FFmpegBinary,
		SampleRate: config.SampleRate,
		Channels:   config.Channels,
		Timeout:    config.TranscodeTimeout,
	}
}

func (t *FFmpegTranscoder) Transcode(ctx context.Context, src, dst string) error {
	if t.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.Timeout)
		defer cancel()
	}

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, t.Binary, t.args(src, dst)...)
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if len(msg) > 300 {
			msg = msg[len(msg)-300:]
		}
		return fmt.Errorf("ffmpeg: %w: %s", err, msg)
	}
	return nil
}

func (t *FFmpegTranscoder) args(src, dst string) []string {
	return []string{
		"-nostdin",
		"-hide_banner",
		"-loglevel", "error",
		"-y",
		"-i", src,
		"-ac", strconv.Itoa(t.Channels),
		"-ar", strconv.Itoa(t.SampleRate),
		"-c:a", "pcm_s16le",
		dst,
	}
}
