// internal/pipeline/transcribe-audio/models.go
package transcribeaudio

import "io"

type Input struct {
	Audio    io.Reader
	Filename string
}

type Output struct {
	Text string `json:"text"`
}
