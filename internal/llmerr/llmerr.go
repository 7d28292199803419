// Package llmerr classifies provider failures into a fixed taxonomy and
// decides whether a failed call is worth retrying.
package llmerr

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Kind is the category of a provider failure.
type Kind int

const (
	KindUnknown Kind = iota
	KindInvalidCredential
	KindAccessDenied
	KindInvalidRequest
	KindEndpointNotFound
	KindRateLimited
	KindRequestTimeout
	KindNetworkError
	KindServerError
)

func (k Kind) String() string {
	switch k {
	case KindInvalidCredential:
		return "invalid_credential"
	case KindAccessDenied:
		return "access_denied"
	case KindInvalidRequest:
		return "invalid_request"
	case KindEndpointNotFound:
		return "endpoint_not_found"
	case KindRateLimited:
		return "rate_limited"
	case KindRequestTimeout:
		return "request_timeout"
	case KindNetworkError:
		return "network_error"
	case KindServerError:
		return "server_error"
	default:
		return "unknown"
	}
}

// Retryable reports whether repeating the identical call can plausibly
// succeed. Credential and request-shape failures cannot.
func (k Kind) Retryable() bool {
	switch k {
	case KindInvalidCredential, KindAccessDenied, KindInvalidRequest, KindEndpointNotFound:
		return false
	default:
		return true
	}
}

// Error is a classified provider failure carrying the original error, the
// assigned kind, and a remediation hint for the end user.
type Error struct {
	Kind         Kind
	ResetSeconds int // only set for KindRateLimited, 0 when the message carried none
	Original     error
	message      string
}

func (e *Error) Error() string { return e.message }

func (e *Error) Unwrap() error { return e.Original }

// resetSecondsPattern captures "... 3600 seconds" style reset hints.
var resetSecondsPattern = regexp.MustCompile(`(\d+)\s*second`)

// Classify maps an arbitrary failure onto a Kind using case-insensitive
// substring tests. The precedence order is deliberate: a message like
// "403 Forbidden: API key expired" must land on the credential bucket, not
// access-denied, so credential markers are checked first. Reordering these
// rules changes user-visible behavior.
func Classify(err error) Kind {
	kind, _ := classify(stringify(err))
	return kind
}

func classify(msg string) (Kind, int) {
	m := strings.ToLower(msg)
	switch {
	// Quota exhaustion is folded into the credential bucket: it needs a
	// plan or key change, not a retry.
	case strings.Contains(m, "api key"), strings.Contains(m, "authentication"), strings.Contains(m, "quota"):
		return KindInvalidCredential, 0
	case strings.Contains(m, "403"):
		return KindAccessDenied, 0
	case strings.Contains(m, "400"), strings.Contains(m, "bad request"), strings.Contains(m, "malformed"):
		return KindInvalidRequest, 0
	case strings.Contains(m, "404"):
		return KindEndpointNotFound, 0
	case strings.Contains(m, "rate limit"):
		reset := 0
		if sub := resetSecondsPattern.FindStringSubmatch(m); sub != nil {
			reset, _ = strconv.Atoi(sub[1])
		}
		return KindRateLimited, reset
	case strings.Contains(m, "timeout"):
		return KindRequestTimeout, 0
	case strings.Contains(m, "network"), strings.Contains(m, "failed to fetch"), strings.Contains(m, "connection"):
		return KindNetworkError, 0
	case strings.Contains(m, "500"), strings.Contains(m, "server error"):
		return KindServerError, 0
	default:
		return KindUnknown, 0
	}
}

// Enhance wraps a raw failure into an *Error with a category template, the
// original detail, and a remediation hint. A nil error yields nil.
func Enhance(err error) *Error {
	if err == nil {
		return nil
	}
	var enhanced *Error
	if errors.As(err, &enhanced) {
		return enhanced
	}
	raw := stringify(err)
	kind, reset := classify(raw)
	return &Error{
		Kind:         kind,
		ResetSeconds: reset,
		Original:     err,
		message:      compose(kind, reset, raw),
	}
}

// EnhanceAny is Enhance for values recovered from non-error sources (a
// panic payload, a thrown string from a vendor SDK). Real errors are
// classified as usual; anything else is stringified and wrapped as Unknown
// without classification, whatever words the value happens to contain.
func EnhanceAny(v any) *Error {
	if err, ok := v.(error); ok {
		return Enhance(err)
	}
	raw := "unknown failure (nil)"
	if v != nil {
		raw = fmt.Sprintf("%v", v)
	}
	return &Error{
		Kind:     KindUnknown,
		Original: errors.New(raw),
		message:  compose(KindUnknown, 0, raw),
	}
}

func compose(kind Kind, reset int, raw string) string {
	var template, hint string
	switch kind {
	case KindInvalidCredential:
		template = "invalid API credential"
		hint = "check your API key in settings"
	case KindAccessDenied:
		template = "access denied by the provider"
		hint = "verify your account has access to this model"
	case KindInvalidRequest:
		template = "the provider rejected the request"
		hint = "the request was malformed; report this if it persists"
	case KindEndpointNotFound:
		template = "provider endpoint not found"
		hint = "the configured model or endpoint may no longer exist"
	case KindRateLimited:
		template = "rate limit reached"
		if reset > 0 {
			hint = fmt.Sprintf("wait about %d seconds before trying again", reset)
		} else {
			hint = "wait a moment before trying again"
		}
	case KindRequestTimeout:
		template = "the request timed out"
		hint = "try again; the provider may be slow right now"
	case KindNetworkError:
		template = "network failure"
		hint = "check your internet connection"
	case KindServerError:
		template = "the provider had an internal error"
		hint = "try again shortly"
	default:
		template = "unexpected error"
		hint = "try again; report this if it persists"
	}
	return fmt.Sprintf("%s: %s (%s)", template, raw, hint)
}

func stringify(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
