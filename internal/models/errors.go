package models

import (
	"fmt"
	"strings"
)

// LayoutUnavailableError signals that the seat-template fetch failed and
// the carriage cannot be rendered. Fatal for that carriage only.
type LayoutUnavailableError struct {
	CarriageID int64
	Cause      error
}

func (e *LayoutUnavailableError) Error() string {
	return fmt.Sprintf("seat layout unavailable for carriage %d: %v", e.CarriageID, e.Cause)
}

func (e *LayoutUnavailableError) Unwrap() error { return e.Cause }

// PreviewRejectedError carries the booking backend's rejection message
// verbatim for display. Recoverable: the user re-selects and retries.
type PreviewRejectedError struct {
	Message string
}

func (e *PreviewRejectedError) Error() string {
	if e.Message == "" {
		return "order preview rejected"
	}
	return e.Message
}

// MissingAssignmentError blocks checkout until every selected seat has a
// passenger assigned. Seats lists exactly which codes are missing.
type MissingAssignmentError struct {
	Seats []string
}

func (e *MissingAssignmentError) Error() string {
	return fmt.Sprintf("seats missing passenger assignment: %s", strings.Join(e.Seats, ", "))
}

// CheckoutStep identifies which step of the checkout flow failed.
type CheckoutStep string

const (
	StepOrderCreation  CheckoutStep = "order_creation"
	StepPaymentSession CheckoutStep = "payment_session"
	StepCapture        CheckoutStep = "capture"
)

// CheckoutStepError is terminal for the current checkout attempt but not
// for the app. The backend's message is preserved for display.
type CheckoutStepError struct {
	Step    CheckoutStep
	Message string
	Cause   error
}

func (e *CheckoutStepError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s failed: %s", e.Step, e.Message)
	}
	return fmt.Sprintf("%s failed: %v", e.Step, e.Cause)
}

func (e *CheckoutStepError) Unwrap() error { return e.Cause }
