package fabric

import (
	"errors"
	"fmt"
)

// ErrInterrupted is returned when a blocking Poll/PeekFront/AddRecord call
// is abandoned because its context was cancelled. Any bytes already
// reserved into a partially assembled Batch are refunded before this error
// is returned.
var ErrInterrupted = errors.New("fabric: interrupted")

// ErrInvalidState is returned by Batch.Next/Batch operations performed
// after the batch has been closed.
var ErrInvalidState = errors.New("fabric: invalid batch state")

// errBudgetExhausted is an internal sentinel: requestBlock returned 0. It
// never escapes this package; Enqueuer treats it as "park and retry".
var errBudgetExhausted = errors.New("fabric: budget exhausted")

// errCapacityCeiling is an internal sentinel: the queue is already at
// MAX_QUEUE_BYTES and still full. It never escapes this package.
var errCapacityCeiling = errors.New("fabric: per-stream capacity ceiling reached")

// ProgrammerError marks a violated invariant that should never occur given
// correct callers: a negative size, lowering capacity below used bytes,
// registering the same descriptor twice, or over-refunding the budget.
type ProgrammerError struct {
	Op  string
	Msg string
}

func (e *ProgrammerError) Error() string {
	return fmt.Sprintf("fabric: programmer error in %s: %s", e.Op, e.Msg)
}

// StrictMode controls how ProgrammerError conditions are handled. With
// StrictMode true (the default, matching an assertions-enabled build) they
// panic. With StrictMode false (a hardened build) they are logged via the
// package logger and the offending operation is skipped.
var StrictMode = true

func raiseProgrammerError(op, msg string) error {
	err := &ProgrammerError{Op: op, Msg: msg}
	if StrictMode {
		panic(err)
	}
	pkgLogger.WithField("op", op).Error("programmer error: " + msg)
	return err
}
