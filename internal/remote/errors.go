package remote

import (
	"context"
	"errors"
	"fmt"
)

// Kind classifies a failed remote call.
type Kind string

const (
	// AuthFailure is a 401 or 403 response.
	AuthFailure Kind = "auth_failure"
	// Unavailable is no response at all, a 404, or a 5xx.
	Unavailable Kind = "unavailable"
	// Rejected is any other failure, surfaced to the caller verbatim.
	Rejected Kind = "rejected"
	// LogicViolation names a locally refused operation such as spending
	// more coins than available. It is never carried by an error value.
	LogicViolation Kind = "logic_violation"
)

// Error is a classified remote failure.
type Error struct {
	Kind   Kind
	Method string
	Path   string
	Status int    // 0 when no response was received
	Body   string // truncated response body, if any
	Err    error
}

func (e *Error) Error() string {
	switch {
	case e.Status != 0 && e.Body != "":
		return fmt.Sprintf("%s %s: %s: status %d: %s", e.Method, e.Path, e.Kind, e.Status, e.Body)
	case e.Status != 0:
		return fmt.Sprintf("%s %s: %s: status %d", e.Method, e.Path, e.Kind, e.Status)
	case e.Err != nil:
		return fmt.Sprintf("%s %s: %s: %v", e.Method, e.Path, e.Kind, e.Err)
	default:
		return fmt.Sprintf("%s %s: %s", e.Method, e.Path, e.Kind)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// kindForStatus maps a non-2xx status code to its Kind.
func kindForStatus(status int) Kind {
	switch {
	case status == 401 || status == 403:
		return AuthFailure
	case status == 404 || status >= 500:
		return Unavailable
	default:
		return Rejected
	}
}

// Classify returns the Kind of err. This is the only place transport
// failures are interpreted; callers branch on the result, never on the
// underlying error. Unclassified errors, including caller cancellation,
// are Rejected so they propagate unchanged.
func Classify(err error) Kind {
	if err == nil {
		return ""
	}
	var re *Error
	if errors.As(err, &re) {
		return re.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return Unavailable
	}
	return Rejected
}

// IsKind reports whether err classifies as k.
func IsKind(err error, k Kind) bool {
	return err != nil && Classify(err) == k
}

var errMissingImage = errors.New("proof image is required")
