package eigengo

import "fmt"

// FatalError wraps an unrecoverable engine or configuration failure. The
// façade reports it once through the logger and panics with it; recovery is
// not supported because the distributed engine state is inconsistent across
// ranks after such a failure.
//
// The engine-reported cause can be accessed via errors.Unwrap.
type FatalError struct {
	Op  string
	Err error
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("eigengo: %s: %v", e.Op, e.Err)
}

func (e *FatalError) Unwrap() error { return e.Err }

// ErrUnsupportedOperator indicates an operator the adapter cannot bring into
// canonical form. This is an integration mistake, not a transient failure.
//
// The underlying conversion error (if any) can be accessed via errors.Unwrap.
type ErrUnsupportedOperator struct {
	Type  string
	cause error
}

func (e *ErrUnsupportedOperator) Error() string {
	return fmt.Sprintf("unsupported operator type %s", e.Type)
}

func (e *ErrUnsupportedOperator) Unwrap() error { return e.cause }

// fatal is the single error-checking utility every engine status passes
// through: report diagnostic context, then panic.
func fatal(l *Logger, op string, err error) {
	if l == nil {
		l = NewLogger(nil)
	}
	l.LogFatal(op, err)
	panic(&FatalError{Op: op, Err: err})
}
