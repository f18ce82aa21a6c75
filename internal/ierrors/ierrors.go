// Package ierrors defines the typed error kinds of §7 of the design and
// the recovery policy each one carries. Components raise these directly,
// and nothing outside StoreWriteError/ConfigError propagates past its
// originating stage.
package ierrors

import "errors"

// Kind identifies one of the error classes from the error-handling design.
type Kind int

const (
	KindParse Kind = iota
	KindQueueOverflow
	KindRuleLoad
	KindModelUnavailable
	KindStoreWrite
	KindChainGap
	KindSyncVerify
	KindConfig
)

func (k Kind) String() string {
	switch k {
	case KindParse:
		return "ParseError"
	case KindQueueOverflow:
		return "QueueOverflow"
	case KindRuleLoad:
		return "RuleLoadError"
	case KindModelUnavailable:
		return "ModelUnavailable"
	case KindStoreWrite:
		return "StoreWriteError"
	case KindChainGap:
		return "ChainGap"
	case KindSyncVerify:
		return "SyncVerifyError"
	case KindConfig:
		return "ConfigError"
	}
	return "UnknownError"
}

// Policy describes what the owning component must do when a Kind occurs.
type Policy int

const (
	// PolicyContinue: log and move on, the pipeline keeps running.
	PolicyContinue Policy = iota
	// PolicyRetryThenSurface: bounded retry, then surface to the caller.
	PolicyRetryThenSurface
	// PolicyFatal: abort startup/operation entirely.
	PolicyFatal
)

func (k Kind) Policy() Policy {
	switch k {
	case KindStoreWrite:
		return PolicyRetryThenSurface
	case KindConfig:
		return PolicyFatal
	default:
		return PolicyContinue
	}
}

// Error wraps an underlying cause with its Kind so callers can branch on
// policy without string matching.
type Error struct {
	Kind  Kind
	Cause error
}

func New(k Kind, cause error) *Error {
	return &Error{Kind: k, Cause: cause}
}

func (e *Error) Error() string {
	if e.Cause == nil {
		return e.Kind.String()
	}
	return e.Kind.String() + ": " + e.Cause.Error()
}

func (e *Error) Unwrap() error { return e.Cause }

// Is reports whether err, or any error it wraps, is an *Error of kind k,
// so callers can match on a bare Kind.
func Is(err error, k Kind) bool {
	var ie *Error
	if errors.As(err, &ie) {
		return ie.Kind == k
	}
	return false
}

// Result is the structured {success, errors} shape returned from
// import/verify/export per §7 ("User-visible failures are returned as
// structured results").
type Result struct {
	Success bool     `json:"success"`
	Errors  []string `json:"errors,omitempty"`
}

func Ok() Result { return Result{Success: true} }

func Fail(errs ...error) Result {
	r := Result{Success: false}
	for _, e := range errs {
		if e != nil {
			r.Errors = append(r.Errors, e.Error())
		}
	}
	return r
}
