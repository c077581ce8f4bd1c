package conn

import (
	"context"
	"errors"
	"net"
	"regexp"
	"strings"
)

// Class partitions connection and execution failures. Retry policy and
// UI presentation both key off it: only network failures are retried,
// auth failures never are.
type Class int

const (
	ClassDriver Class = iota
	ClassAuth
	ClassNetwork
	ClassQuery
	ClassBusy
	ClassCancelled
)

func (c Class) String() string {
	switch c {
	case ClassAuth:
		return "auth"
	case ClassNetwork:
		return "network"
	case ClassQuery:
		return "query"
	case ClassBusy:
		return "busy"
	case ClassCancelled:
		return "cancelled"
	default:
		return "driver"
	}
}

// ErrBusy is returned when an execution is submitted while another is
// still running on the same connection.
var ErrBusy = &Error{Class: ClassBusy, Op: "execute", Err: errors.New("an execution is already running")}

// ErrCancelled is returned for work abandoned by a cooperative cancel.
var ErrCancelled = &Error{Class: ClassCancelled, Op: "execute", Err: errors.New("cancelled")}

// Error wraps a failure with its class and the operation that produced
// it. Error text is scrubbed of credential material before display.
type Error struct {
	Class Class
	Op    string
	Err   error
}

func (e *Error) Error() string {
	return e.Class.String() + " error during " + e.Op + ": " + Scrub(e.Err.Error())
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches two Errors by class so errors.Is(err, ErrBusy) works.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Class == e.Class
}

func newError(class Class, op string, err error) *Error {
	return &Error{Class: class, Op: op, Err: err}
}

// authPatterns match driver error text for credential failures. Every
// supported driver words these differently.
var authPatterns = []string{
	"authentication failed",
	"password authentication",
	"access denied",
	"permission denied",
	"invalid password",
	"login failed",
	"role \"",
}

var networkPatterns = []string{
	"connection refused",
	"connection reset",
	"no such host",
	"network is unreachable",
	"i/o timeout",
	"broken pipe",
	"dial tcp",
	"server closed the connection",
}

// Classify wraps err with a failure class. Errors already carrying a
// class pass through unchanged; context cancellation maps to
// ClassCancelled; net errors and known driver messages map to
// ClassNetwork or ClassAuth. Anything unrecognized gets fallback.
func Classify(err error, op string, fallback Class) *Error {
	if err == nil {
		return nil
	}

	var ce *Error
	if errors.As(err, &ce) {
		return ce
	}

	if errors.Is(err, context.Canceled) {
		return newError(ClassCancelled, op, err)
	}

	var ne net.Error
	if errors.As(err, &ne) {
		return newError(ClassNetwork, op, err)
	}

	text := strings.ToLower(err.Error())
	for _, p := range authPatterns {
		if strings.Contains(text, p) {
			return newError(ClassAuth, op, err)
		}
	}
	for _, p := range networkPatterns {
		if strings.Contains(text, p) {
			return newError(ClassNetwork, op, err)
		}
	}

	return newError(fallback, op, err)
}

var (
	dsnPasswordRe = regexp.MustCompile(`(?i)(password|passwd|pwd)=[^\s;&]+`)
	urlCredRe     = regexp.MustCompile(`://([^:/@\s]+):[^@\s]+@`)
)

// Scrub removes credential material from DSNs embedded in error or log
// text: key=value password fields and the password part of url-style
// user:pass@host credentials.
func Scrub(s string) string {
	s = dsnPasswordRe.ReplaceAllString(s, "$1=*****")
	s = urlCredRe.ReplaceAllString(s, "://$1:*****@")
	return s
}
