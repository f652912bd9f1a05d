package migrate

import (
	"errors"
	"fmt"
)

// Code categorizes a migration failure. The code determines how the
// pipeline reacts: CodeAuth and CodeCycle abort the run, everything else
// is recorded per operation and the run continues.
type Code string

const (
	// CodeAuth means the credential is invalid or expired. Fatal to the run.
	CodeAuth Code = "auth_failure"

	// CodeRateLimit means the platform kept rate-limiting past the retry budget.
	CodeRateLimit Code = "rate_limit_exhausted"

	// CodeTransport means the request kept failing at the network level.
	CodeTransport Code = "transport_failure"

	// CodeNotFound means the resource is inaccessible to the credential.
	CodeNotFound Code = "not_found"

	// CodePermission means the credential lacks access to a sub-resource.
	CodePermission Code = "permission_denied"

	// CodeCycle means the planner found a dependency cycle. Indicates an
	// invariant violation upstream; aborts the run.
	CodeCycle Code = "cyclic_dependency"

	// CodeDependency means an operation was skipped because something it
	// depends on failed. The client is never called for these.
	CodeDependency Code = "dependency_failed"

	// CodePayload means a binary payload exceeds the platform limit.
	// Failed immediately, never attempted.
	CodePayload Code = "payload_too_large"
)

// Fatal reports whether a failure with this code aborts the whole run.
func (c Code) Fatal() bool {
	return c == CodeAuth || c == CodeCycle
}

// Failure is a coded migration error. Entity, when set, names the
// affected entity for user-facing summaries.
type Failure struct {
	Code    Code
	Message string
	Entity  string
}

func (f *Failure) Error() string {
	if f.Entity != "" {
		return fmt.Sprintf("%s: %s: %s", f.Code, f.Entity, f.Message)
	}
	return fmt.Sprintf("%s: %s", f.Code, f.Message)
}

// NewFailure creates a Failure with a formatted message.
func NewFailure(code Code, format string, args ...any) *Failure {
	return &Failure{Code: code, Message: fmt.Sprintf(format, args...)}
}

// CodeOf extracts the failure code from err, unwrapping as needed.
// Returns CodeTransport for errors that carry no code, so callers always
// have something to aggregate on.
func CodeOf(err error) Code {
	var f *Failure
	if errors.As(err, &f) {
		return f.Code
	}
	return CodeTransport
}

// IsAuthFailure reports whether err is a fatal credential failure.
func IsAuthFailure(err error) bool {
	var f *Failure
	return errors.As(err, &f) && f.Code == CodeAuth
}
