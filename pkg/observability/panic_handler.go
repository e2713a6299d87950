package observability

import (
	"fmt"
	"runtime/debug"
)

// RecoverPanic recovers a panic on the current goroutine and logs it at
// Error level with the panic value, full stack trace, and where it
// happened. Use it in a defer on goroutines that must survive a bad
// cycle, such as scheduled maintenance:
//
//	defer observability.RecoverPanic(logger, "lock sweep")
//
// The panic is not re-raised; the goroutine returns normally.
func RecoverPanic(logger *Logger, where string) {
	if r := recover(); r != nil {
		logger.WithField("panic", r).
			WithField("stack", string(debug.Stack())).
			WithField("context", where).
			Error("PANIC recovered")
	}
}

// MustRecover converts a recovered panic value to an error, or nil when
// no panic occurred. It fits call sites that run foreign code, such as
// plugin hooks, and want panics surfaced as ordinary failures:
//
//	defer func() {
//		if rerr := observability.MustRecover(recover()); rerr != nil {
//			err = rerr
//		}
//	}()
//
// The error does not carry the stack trace; use RecoverPanic when the
// log entry should include one.
func MustRecover(r interface{}) error {
	if r != nil {
		return fmt.Errorf("panic: %v", r)
	}
	return nil
}
