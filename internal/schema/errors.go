package schema

import (
	"errors"
	"strings"
)

// ErrorKind classifies failures so callers can react without string matching.
type ErrorKind string

const (
	KindValidation       ErrorKind = "validation"
	KindAuth             ErrorKind = "auth"
	KindQuotaExceeded    ErrorKind = "quota_exceeded"
	KindRateLimited      ErrorKind = "rate_limited"
	KindTimeout          ErrorKind = "timeout"
	KindProvider         ErrorKind = "provider"
	KindModelUnavailable ErrorKind = "model_unavailable"
	KindToolProvider     ErrorKind = "tool_provider"
	KindWhitelist        ErrorKind = "whitelist_violation"
	KindHostLimit        ErrorKind = "host_limit"
	KindToolLoopExceeded ErrorKind = "tool_loop_exceeded"
	KindUnknownProvider  ErrorKind = "unknown_provider"
)

// Error is a classified failure. Hosts lists the offending hostnames for
// whitelist and host-limit failures.
type Error struct {
	Kind    ErrorKind
	Message string
	Hosts   []string
	Err     error
}

func NewError(kind ErrorKind, msg string, cause error) *Error {
	return &Error{Kind: kind, Message: msg, Err: cause}
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = string(e.Kind)
	}
	if e.Err != nil {
		return msg + ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same kind, so the sentinels below work with
// errors.Is regardless of message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

var (
	ErrValidation       = &Error{Kind: KindValidation}
	ErrAuth             = &Error{Kind: KindAuth}
	ErrQuotaExceeded    = &Error{Kind: KindQuotaExceeded}
	ErrRateLimited      = &Error{Kind: KindRateLimited}
	ErrTimeout          = &Error{Kind: KindTimeout}
	ErrProvider         = &Error{Kind: KindProvider}
	ErrModelUnavailable = &Error{Kind: KindModelUnavailable}
	ErrToolProvider     = &Error{Kind: KindToolProvider}
	ErrWhitelist        = &Error{Kind: KindWhitelist}
	ErrHostLimit        = &Error{Kind: KindHostLimit}
	ErrToolLoopExceeded = &Error{Kind: KindToolLoopExceeded}
	ErrUnknownProvider  = &Error{Kind: KindUnknownProvider}
)

// KindOf returns the kind of the first *Error in err's chain, or "".
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// HostsOf returns the hostnames attached to the first *Error in err's chain.
func HostsOf(err error) []string {
	var e *Error
	if errors.As(err, &e) {
		return e.Hosts
	}
	return nil
}

// ContainsAny reports whether err's message contains any of the substrings.
func ContainsAny(err error, subs ...string) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	for _, s := range subs {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}
