package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

// ErrorKind is the machine readable category returned to callers as errorKind.
type ErrorKind string

const (
	KindValidation          ErrorKind = "validation"
	KindNoActiveBackend     ErrorKind = "no_active_backend"
	KindInsufficientBalance ErrorKind = "insufficient_balance"
	KindProviderCall        ErrorKind = "provider_call"
	KindImageExtraction     ErrorKind = "image_extraction"
	KindContentBlocked      ErrorKind = "content_blocked"
	KindTimeout             ErrorKind = "timeout"
	KindSettlementStep      ErrorKind = "settlement_step"
	KindNotFound            ErrorKind = "not_found"
	KindInternal            ErrorKind = "internal"
)

var (
	ErrNotFound            = errors.New("not found")
	ErrUnauthorized        = errors.New("unauthorized")
	ErrNoActiveBackend     = errors.New("no active backend")
	ErrInsufficientBalance = errors.New("insufficient balance")
)

// maxMessageRunes bounds backend detail echoed back to callers.
const maxMessageRunes = 300

// ValidationError rejects malformed input before any backend call.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation: " + e.Message
	}
	return fmt.Sprintf("validation: %s: %s", e.Field, e.Message)
}

func (e *ValidationError) Kind() ErrorKind { return KindValidation }

// NoActiveBackendError reports that the router resolved nothing usable.
type NoActiveBackendError struct {
	Scope     string
	Requested string
}

func (e *NoActiveBackendError) Error() string {
	if e.Requested != "" {
		return fmt.Sprintf("backend %q is not available", e.Requested)
	}
	return fmt.Sprintf("no active backend for scope %q", e.Scope)
}

func (e *NoActiveBackendError) Kind() ErrorKind { return KindNoActiveBackend }

func (e *NoActiveBackendError) Is(target error) bool { return target == ErrNoActiveBackend }

// InsufficientBalanceError is raised by the settlement pre-check.
type InsufficientBalanceError struct {
	Required  decimal.Decimal
	Available decimal.Decimal
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("insufficient balance: need %s points, have %s", e.Required.String(), e.Available.String())
}

func (e *InsufficientBalanceError) Kind() ErrorKind { return KindInsufficientBalance }

func (e *InsufficientBalanceError) Is(target error) bool { return target == ErrInsufficientBalance }

// ProviderCallError wraps network and HTTP failures talking to a backend.
type ProviderCallError struct {
	Provider string
	Status   int
	Message  string
	// Code is the backend's machine-readable error code, when it sent one.
	Code string
	Err  error
}

func (e *ProviderCallError) Error() string {
	var b strings.Builder
	b.WriteString(e.Provider)
	if e.Status > 0 {
		fmt.Fprintf(&b, ": status %d", e.Status)
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	} else if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *ProviderCallError) Unwrap() error { return e.Err }

func (e *ProviderCallError) Kind() ErrorKind { return KindProviderCall }

// ImageExtractionError means the backend answered successfully without a
// recognizable image payload.
type ImageExtractionError struct {
	Provider string
	Checked  []string
}

func (e *ImageExtractionError) Error() string {
	return fmt.Sprintf("%s: no image in response (checked %s)", e.Provider, strings.Join(e.Checked, ", "))
}

func (e *ImageExtractionError) Kind() ErrorKind { return KindImageExtraction }

// ContentBlockedError is an explicit safety refusal by the backend. It is
// never retried through failover.
type ContentBlockedError struct {
	Provider string
	Reason   string
}

func (e *ContentBlockedError) Error() string {
	if e.Reason == "" {
		return e.Provider + ": content blocked"
	}
	return fmt.Sprintf("%s: content blocked (%s)", e.Provider, e.Reason)
}

func (e *ContentBlockedError) Kind() ErrorKind { return KindContentBlocked }

// TimeoutError reports an exhausted poll budget.
type TimeoutError struct {
	Provider string
	TaskID   string
	Attempts int
	Elapsed  time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s: task %s still pending after %d polls (%s)", e.Provider, e.TaskID, e.Attempts, e.Elapsed.Round(time.Millisecond))
}

func (e *TimeoutError) Kind() ErrorKind { return KindTimeout }

// SettlementStepError is a post-generation bookkeeping failure. It is logged
// and recorded on the settlement result, never returned to callers.
type SettlementStepError struct {
	Step string
	Err  error
}

func (e *SettlementStepError) Error() string {
	return fmt.Sprintf("settlement step %s: %v", e.Step, e.Err)
}

func (e *SettlementStepError) Unwrap() error { return e.Err }

func (e *SettlementStepError) Kind() ErrorKind { return KindSettlementStep }

// FailoverError carries both the primary failure and the failure of the one
// alternate backend that was tried.
type FailoverError struct {
	Primary          error
	Alternate        error
	AlternateBackend string
}

func (e *FailoverError) Error() string {
	return fmt.Sprintf("%v; failover to %s: %v", e.Primary, e.AlternateBackend, e.Alternate)
}

func (e *FailoverError) Unwrap() []error { return []error{e.Primary, e.Alternate} }

func (e *FailoverError) Kind() ErrorKind { return KindOf(e.Primary) }

type kinded interface {
	Kind() ErrorKind
}

// KindOf maps any error to the category reported to callers.
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	var k kinded
	if errors.As(err, &k) {
		return k.Kind()
	}
	switch {
	case errors.Is(err, ErrNoActiveBackend):
		return KindNoActiveBackend
	case errors.Is(err, ErrInsufficientBalance):
		return KindInsufficientBalance
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	}
	return KindInternal
}

// IsRetryable reports whether a provider failure is an infrastructure failure
// eligible for failover.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var blocked *ContentBlockedError
	if errors.As(err, &blocked) {
		return false
	}
	switch KindOf(err) {
	case KindProviderCall, KindImageExtraction, KindTimeout:
		return true
	}
	return false
}

// UserMessage returns a sanitized, bounded message safe to show end users.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var blocked *ContentBlockedError
	if errors.As(err, &blocked) {
		return "The request was declined by the content safety filter. Please adjust the prompt or reference images."
	}
	if KindOf(err) == KindInternal {
		return "internal error"
	}
	return Truncate(strings.TrimSpace(err.Error()), maxMessageRunes)
}

// Truncate shortens s to at most n runes, marking the cut with an ellipsis.
func Truncate(s string, n int) string {
	if n <= 0 || utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n]) + "…"
}
