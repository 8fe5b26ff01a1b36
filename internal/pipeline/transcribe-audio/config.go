// internal/pipeline/transcribe-audio/config.go
package transcribeaudio

import "time"

type Config struct {
	UploadsDir       string
	Transcode        bool
	FFmpegBinary     string
	TranscodeTimeout time.Duration
	SampleRate       int
	Channels         int
}

func LoadConfig() *Config {
	return &Config{
		UploadsDir:       "../pipeline_io/audio_uploads",
		Transcode:        true,
		FFmpegBinary:     "ffmpeg",
		TranscodeTimeout: 60 * time.Second,
		SampleRate:       16000,
		Channels:         1,
	}
}
