// internal/pipeline/transcribe-audio/tempfile.go
package transcribeaudio

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"therapy-connect/internal/common/logger"
)

const defaultExt = ".webm"

var allowedExt = map[string]bool{
	".webm": true,
	".wav":  true,
	".mp3":  true,
	".m4a":  true,
	".ogg":  true,
	".flac": true,
	".mp4":  true,
	".mpeg": true,
	".mpga": true,
}

var lastToken int64

// nextToken returns a Unix-millisecond value strictly greater than any previously issued one.
func nextToken() int64 {
	for {
		last := atomic.LoadInt64(&lastToken)
		next := time.Now().UnixMilli()
		if next <= last {
			next = last + 1
		}
		if atomic.CompareAndSwapInt64(&lastToken, last, next) {
			return next
		}
	}
}

func uploadExt(filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	if allowedExt[ext] {
		return ext
	}
	return defaultExt
}

// tempFile is a file owned by one request. Release removes it and is safe to call more than once.
type tempFile struct {
	path     string
	logger   logger.Logger
	released atomic.Bool
}

// createTempFile creates a new empty file in dir named upload_<token><ext>.
func createTempFile(dir, ext string, log logger.Logger) (*tempFile, *os.File, error) {
	for attempt := 0; attempt < 5; attempt++ {
		path := filepath.Join(dir, fmt.Sprintf("upload_%d%s", nextToken(), ext))
		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
		if errors.Is(err, os.ErrExist) {
			continue
		}
		if err != nil {
			return nil, nil, err
		}
		return &tempFile{path: path, logger: log}, f, nil
	}
	return nil, nil, fmt.Errorf("could not allocate a unique upload name in %s", dir)
}

func (t *tempFile) Release() {
	if t == nil || !t.released.CompareAndSwap(false, true) {
		return
	}
	if err := os.Remove(t.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		t.logger.Warn("failed to remove temp audio file", map[string]interface{}{
			"path":  t.path,
			"error": err.Error(),
		})
	}
}
