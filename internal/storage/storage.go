package storage

import (
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net"
	"net/http"
	"syscall"
	"time"
	"unicode/utf8"
)

// ContentTypeMP4 is the content type of every uploaded ad.
const ContentTypeMP4 = "video/mp4"

// JobArtifactKey is the object key of a finished job's video.
func JobArtifactKey(jobID string) string {
	return fmt.Sprintf("jobs/%s/final_ad.mp4", jobID)
}

const (
	maxRetries     = 4
	baseRetryDelay = time.Second
	maxRetryDelay  = 30 * time.Second
)

// retryBackoff doubles from baseRetryDelay with each attempt (1-based), caps
// at maxRetryDelay and adds up to 25% jitter.
func retryBackoff(attempt int) time.Duration {
	d := maxRetryDelay
	if attempt >= 1 && attempt <= 6 {
		d = min(baseRetryDelay<<(attempt-1), maxRetryDelay)
	}
	return d + time.Duration(rand.Int63n(int64(d)/4+1))
}

// isTransientError reports transport failures that a fresh attempt may not
// hit again: timeouts, resets, refusals and truncated responses.
func isTransientError(err error) bool {
	if err == nil {
		return false
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.EPIPE)
}

var transientStatus = map[int]bool{
	http.StatusRequestTimeout:     true,
	http.StatusTooManyRequests:    true,
	http.StatusBadGateway:         true,
	http.StatusServiceUnavailable: true,
	http.StatusGatewayTimeout:     true,
}

func isTransientStatus(status int) bool {
	return transientStatus[status]
}

// truncate keeps at most maxRunes runes of s for error messages.
func truncate(s string, maxRunes int) string {
	if utf8.RuneCountInString(s) <= maxRunes {
		return s
	}
	return string([]rune(s)[:maxRunes]) + "..."
}
