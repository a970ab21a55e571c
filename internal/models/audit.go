package models

import (
	"time"

	"github.com/google/uuid"
)

// CheckoutEventType represents the type of checkout event being audited
type CheckoutEventType string

const (
	CheckoutEventOrderCreated          CheckoutEventType = "order_created"
	CheckoutEventOrderFailed           CheckoutEventType = "order_failed"
	CheckoutEventPaymentSessionCreated CheckoutEventType = "payment_session_created"
	CheckoutEventPaymentSessionFailed  CheckoutEventType = "payment_session_failed"
	CheckoutEventReturnMatched         CheckoutEventType = "return_url_matched"
	CheckoutEventCaptureSucceeded      CheckoutEventType = "capture_succeeded"
	CheckoutEventCaptureFailed         CheckoutEventType = "capture_failed"
	CheckoutEventCancelled             CheckoutEventType = "cancelled"
)

// CheckoutEventSource identifies where the event originated
type CheckoutEventSource string

const (
	CheckoutSourceOrchestrator CheckoutEventSource = "orchestrator"
	CheckoutSourceNavigation   CheckoutEventSource = "browser_navigation"
	CheckoutSourceGateway      CheckoutEventSource = "payment_gateway"
)

// CheckoutAudit is an immutable audit log entry for checkout events.
// Rows are written on every state transition so a stranded attempt can be
// reconciled after the fact.
type CheckoutAudit struct {
	ID        uuid.UUID           `json:"id" db:"id"`
	AttemptID uuid.UUID           `json:"attempt_id" db:"attempt_id"`
	OrderID   *int64              `json:"order_id,omitempty" db:"order_id"`
	EventType CheckoutEventType   `json:"event_type" db:"event_type"`
	Source    CheckoutEventSource `json:"event_source" db:"event_source"`

	Amount   *float64 `json:"amount,omitempty" db:"amount"`
	Currency *string  `json:"currency,omitempty" db:"currency"`

	ExternalSessionID *string `json:"external_session_id,omitempty" db:"external_session_id"`
	NavigationURL     *string `json:"navigation_url,omitempty" db:"navigation_url"`

	ErrorMessage *string `json:"error_message,omitempty" db:"error_message"`

	// Client device summary, parsed from the User-Agent of the request
	// that relayed the event.
	DeviceSummary *string `json:"device_summary,omitempty" db:"device_summary"`

	CorrelationID *string   `json:"correlation_id,omitempty" db:"correlation_id"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
}
