package resilience

import (
	"errors"
	"fmt"
	"net"
	"strings"
	"syscall"
)

// Retryable marks an error as safe to retry. External clients wrap
// rate-limit and server-side failures in it so the retry helpers can
// tell them apart from hard failures like a malformed document.
type Retryable struct {
	Err    error
	Status int
}

func (e *Retryable) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("%s (status %d)", e.Err.Error(), e.Status)
	}
	return e.Err.Error()
}

func (e *Retryable) Unwrap() error { return e.Err }

// MarkRetryable wraps err as retryable. status is the HTTP status that
// triggered it, or 0 when not applicable.
func MarkRetryable(err error, status int) *Retryable {
	return &Retryable{Err: err, Status: status}
}

// RetryableStatus reports whether an HTTP status indicates a transient
// server-side condition.
func RetryableStatus(code int) bool {
	switch code {
	case 408, 429, 500, 502, 503, 504:
		return true
	}
	return false
}

var connErrs = []error{syscall.ECONNRESET, syscall.ECONNREFUSED, syscall.ECONNABORTED}

var transientFragments = []string{
	"connection reset by peer",
	"broken pipe",
	"temporary failure in name resolution",
	"no such host",
	"tls handshake timeout",
	"i/o timeout",
	"server closed idle connection",
	"transport connection broken",
}

// CanRetry reports whether err looks transient. An error qualifies if
// anything in its chain is a Retryable, a network timeout, or a
// connection-level failure. Wrapped errors from HTTP clients lose their
// type, so the last resort is message matching.
func CanRetry(err error) bool {
	if err == nil {
		return false
	}
	var r *Retryable
	if errors.As(err, &r) {
		return true
	}
	var nerr net.Error
	if errors.As(err, &nerr) && nerr.Timeout() {
		return true
	}
	for _, ce := range connErrs {
		if errors.Is(err, ce) {
			return true
		}
	}
	msg := strings.ToLower(err.Error())
	for _, frag := range transientFragments {
		if strings.Contains(msg, frag) {
			return true
		}
	}
	return false
}
