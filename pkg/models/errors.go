package models

import "errors"

// ErrorKind is the machine-readable classification surfaced to callers.
// Every error in the execution path maps to exactly one kind.
type ErrorKind string

const (
	KindValidation        ErrorKind = "validation_error"
	KindConfiguration     ErrorKind = "configuration_error"
	KindUnknownComponent  ErrorKind = "unknown_component"
	KindCycle             ErrorKind = "cycle"
	KindSchedulerDeadlock ErrorKind = "scheduler_deadlock"
	KindContainer         ErrorKind = "container_error"
	KindService           ErrorKind = "service_error"
	KindUnsupportedRunner ErrorKind = "unsupported_runner"
	KindTimeout           ErrorKind = "timeout"
	KindInternal          ErrorKind = "internal"
)

// Kinder is implemented by every typed error in the taxonomy.
type Kinder interface {
	Kind() ErrorKind
}

// KindOf returns the taxonomy kind of err, walking the wrap chain.
// Unclassified errors report KindInternal.
func KindOf(err error) ErrorKind {
	var k Kinder
	if errors.As(err, &k) {
		return k.Kind()
	}

	return KindInternal
}

// Retryable reports whether an error kind is retried by default when the
// component declares no explicit non-retryable list. Validation and
// configuration failures are deterministic and never worth retrying.
func (k ErrorKind) Retryable() bool {
	switch k {
	case KindService, KindContainer, KindTimeout:
		return true
	default:
		return false
	}
}
