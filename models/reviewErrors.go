package models

import (
	"errors"
	"fmt"
)

// ValidationError is malformed input. Never retried; shown to the user as is.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// InvalidStateError means the operation does not apply to the current review state,
// usually because the caller acted on a stale view.
type InvalidStateError struct {
	Message string
}

func (e *InvalidStateError) Error() string {
	return e.Message
}

// NotEligibleError is a refused signature. Reason tells the caller which precondition is unmet.
type NotEligibleError struct {
	Reason NotEligibleReason
	// number of transactions still pending for the reviewer, or unresolved diligences in the report
	Count int
}

func (e *NotEligibleError) Error() string {
	switch e.Reason {
	case NotEligiblePendingWork:
		return fmt.Sprintf("cannot sign: %d transaction(s) still pending review or diligence acknowledgment", e.Count)
	case NotEligibleUnresolvedDiligence:
		return fmt.Sprintf("cannot sign: %d diligence(s) not yet acknowledged by all %d reviewers", e.Count, QuorumSize)
	case NotEligibleAlreadySigned:
		return "cannot sign: reviewer already signed this report"
	case NotEligibleReviewPanelFull:
		return fmt.Sprintf("cannot sign: report already has %d reviewers", QuorumSize)
	default:
		return "cannot sign: " + string(e.Reason)
	}
}

// ConflictError is a concurrent write detected by the storage layer. Safe to retry once
// after re-reading state.
type ConflictError struct {
	Err error
}

func (e *ConflictError) Error() string {
	return "concurrent review update, please retry: " + e.Err.Error()
}

func (e *ConflictError) Unwrap() error {
	return e.Err
}

var (
	ErrReviewPanelFull  = &InvalidStateError{Message: fmt.Sprintf("review panel already has %d reviewers", QuorumSize)}
	ErrReportFinished   = &InvalidStateError{Message: "report review is finished"}
	ErrNotInDiligence   = &InvalidStateError{Message: "transaction is not in diligence"}
	ErrReviewerSigned   = &InvalidStateError{Message: "reviewer already signed this report; decisions are frozen"}
	ErrObservationEmpty = &ValidationError{Field: "observation", Message: "observation is required when flagging a transaction"}
	ErrNoDecisionYet    = &ValidationError{Field: "decision", Message: "approve or flag the transaction before acknowledging its diligence"}
)

// IsRetryable reports whether err is a storage conflict worth one retry.
func IsRetryable(err error) bool {
	var conflict *ConflictError
	return errors.As(err, &conflict)
}
