package models

import (
	"time"

	"github.com/google/uuid"
)

// CheckoutState represents the state of a checkout attempt
type CheckoutState string

const (
	CheckoutStateIdle                   CheckoutState = "idle"
	CheckoutStateOrderCreating          CheckoutState = "order_creating"
	CheckoutStateOrderCreated           CheckoutState = "order_created"
	CheckoutStatePaymentSessionCreating CheckoutState = "payment_session_creating"
	CheckoutStateAwaitingApproval       CheckoutState = "awaiting_approval"
	CheckoutStateCapturing              CheckoutState = "capturing"
	CheckoutStateCaptured               CheckoutState = "captured"
	CheckoutStateCancelled              CheckoutState = "cancelled"
	CheckoutStateFailed                 CheckoutState = "failed"
)

// Terminal reports whether the state ends the attempt. A new attempt is
// required to retry from a terminal state.
func (s CheckoutState) Terminal() bool {
	switch s {
	case CheckoutStateCaptured, CheckoutStateCancelled, CheckoutStateFailed:
		return true
	}
	return false
}

// CheckoutItem is one seat+passenger line submitted for order creation.
type CheckoutItem struct {
	TripID      int64  `json:"trip_id"`
	SeatCode    string `json:"seat_code"`
	PassengerID int64  `json:"passenger_id"`
}

// CheckoutAttempt is a single run of the order → payment session →
// capture flow. At most one order is ever created per attempt, and at
// most one capture call is made regardless of how many navigation events
// match the return URL.
type CheckoutAttempt struct {
	ID                uuid.UUID      `json:"id"`
	SessionID         uuid.UUID      `json:"session_id"`
	UserID            uuid.UUID      `json:"user_id"`
	TripID            int64          `json:"trip_id"`
	Items             []CheckoutItem `json:"items"`
	State             CheckoutState  `json:"state"`
	OrderID           *int64         `json:"order_id,omitempty"`
	Amount            float64        `json:"amount,omitempty"`
	Currency          string         `json:"currency,omitempty"`
	ExternalSessionID string         `json:"external_session_id,omitempty"`
	ApprovalURL       string         `json:"approval_url,omitempty"`
	FailureMessage    string         `json:"failure_message,omitempty"`
	CreatedAt         time.Time      `json:"created_at"`
	UpdatedAt         time.Time      `json:"updated_at"`
}

// AwaitingNavigation reports whether the attempt is still listening for
// embedded-browser navigation events.
func (a *CheckoutAttempt) AwaitingNavigation() bool {
	return a.State == CheckoutStateAwaitingApproval
}
