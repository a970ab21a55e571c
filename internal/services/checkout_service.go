package services

import (
	"context"
	"encoding/binary"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/smartrail/booking-checkout/internal/models"
	"github.com/smartrail/booking-checkout/pkg/railapi"
)

// orderCreator is the slice of the booking backend the orchestrator
// consumes.
type orderCreator interface {
	CreateOrder(ctx context.Context, req railapi.CreateOrderRequest) (*railapi.OrderConfirmation, error)
}

// paymentGateway is the slice of the payment provider the orchestrator
// consumes.
type paymentGateway interface {
	CreateSession(ctx context.Context, orderID int64) (*PaymentSession, error)
	Capture(ctx context.Context, orderID int64, externalSessionID string) error
}

// auditLog records checkout events. Failures to record must never stop
// the flow.
type auditLog interface {
	Record(ctx context.Context, audit *models.CheckoutAudit) error
}

// CheckoutSettings tunes the orchestrator.
type CheckoutSettings struct {
	// Substring patterns matched against embedded-browser navigation
	// URLs.
	ReturnURLPattern string
	CancelURLPattern string

	// StepTimeout bounds every network call inside a state transition
	// so a hung call cannot strand an attempt in a non-terminal state.
	StepTimeout time.Duration
}

// CheckoutService drives a checkout attempt through order creation,
// payment session creation, approval and capture. The only signal back
// from the payment provider is the stream of URLs the embedded browser
// navigates to; a return-URL match is treated strictly as the trigger
// to call capture, never as proof of payment.
type CheckoutService struct {
	api      orderCreator
	gateway  paymentGateway
	audit    auditLog
	settings CheckoutSettings
	logger   *logrus.Logger

	mu            sync.Mutex
	attempts      map[uuid.UUID]*models.CheckoutAttempt
	lastBySession map[uuid.UUID]*models.CheckoutAttempt
}

// NewCheckoutService creates a new checkout orchestrator
func NewCheckoutService(api orderCreator, gateway paymentGateway, audit auditLog, settings CheckoutSettings, logger *logrus.Logger) *CheckoutService {
	if settings.StepTimeout == 0 {
		settings.StepTimeout = 20 * time.Second
	}
	return &CheckoutService{
		api:           api,
		gateway:       gateway,
		audit:         audit,
		settings:      settings,
		logger:        logger,
		attempts:      make(map[uuid.UUID]*models.CheckoutAttempt),
		lastBySession: make(map[uuid.UUID]*models.CheckoutAttempt),
	}
}

// Start runs a confirmed preview through order creation and payment
// session creation, returning an attempt in awaiting_approval with the
// approval URL to open. Every selected seat must carry a passenger
// assignment before any transition happens.
//
// If the session's previous attempt failed after its order was created,
// the order id is reused: one confirm action never creates two orders.
func (s *CheckoutService) Start(ctx context.Context, snap *SessionSnapshot) (*models.CheckoutAttempt, error) {
	if missing := MissingAssignments(snap.Selection, snap.Assignments); len(missing) > 0 {
		return nil, &models.MissingAssignmentError{Seats: missing}
	}

	items := make([]models.CheckoutItem, len(snap.Selection))
	for i, code := range snap.Selection {
		items[i] = models.CheckoutItem{
			TripID:      snap.TripID,
			SeatCode:    code,
			PassengerID: snap.Assignments[code].ID,
		}
	}

	attempt := &models.CheckoutAttempt{
		ID:        uuid.New(),
		SessionID: snap.SessionID,
		UserID:    snap.UserID,
		TripID:    snap.TripID,
		Items:     items,
		State:     models.CheckoutStateIdle,
		CreatedAt: time.Now(),
	}

	s.mu.Lock()
	if prev := s.lastBySession[snap.SessionID]; prev != nil && !prev.State.Terminal() {
		s.mu.Unlock()
		return nil, fmt.Errorf("a checkout attempt is already in progress for this session")
	} else if prev != nil && prev.State == models.CheckoutStateFailed && prev.OrderID != nil && sameItems(prev.Items, items) {
		attempt.OrderID = prev.OrderID
		attempt.Amount = prev.Amount
		attempt.Currency = prev.Currency
	}
	s.attempts[attempt.ID] = attempt
	s.lastBySession[snap.SessionID] = attempt
	s.mu.Unlock()

	if attempt.OrderID == nil {
		s.setState(attempt, models.CheckoutStateOrderCreating)

		stepCtx, cancel := context.WithTimeout(ctx, s.settings.StepTimeout)
		conf, err := s.api.CreateOrder(stepCtx, railapi.CreateOrderRequest{
			UserID: userNumericID(snap.UserID),
			Items:  items,
		})
		cancel()
		if err != nil {
			s.fail(ctx, attempt, models.StepOrderCreation, models.CheckoutEventOrderFailed, err)
			return attempt, &models.CheckoutStepError{Step: models.StepOrderCreation, Message: backendMessage(err), Cause: err}
		}

		attempt.OrderID = &conf.OrderID
		attempt.Amount = conf.TotalAmount
		attempt.Currency = conf.Currency
		s.setState(attempt, models.CheckoutStateOrderCreated)
		s.record(ctx, attempt, models.CheckoutEventOrderCreated, models.CheckoutSourceOrchestrator, "", "", "")
	} else {
		s.logger.WithFields(logrus.Fields{
			"attempt_id": attempt.ID,
			"order_id":   *attempt.OrderID,
		}).Info("Reusing order from previous failed attempt")
		s.setState(attempt, models.CheckoutStateOrderCreated)
	}

	s.setState(attempt, models.CheckoutStatePaymentSessionCreating)

	stepCtx, cancel := context.WithTimeout(ctx, s.settings.StepTimeout)
	session, err := s.gateway.CreateSession(stepCtx, *attempt.OrderID)
	cancel()
	if err != nil {
		s.fail(ctx, attempt, models.StepPaymentSession, models.CheckoutEventPaymentSessionFailed, err)
		return attempt, &models.CheckoutStepError{Step: models.StepPaymentSession, Message: backendMessage(err), Cause: err}
	}

	attempt.ExternalSessionID = session.ExternalSessionID
	attempt.ApprovalURL = session.ApprovalURL
	s.setState(attempt, models.CheckoutStateAwaitingApproval)
	s.record(ctx, attempt, models.CheckoutEventPaymentSessionCreated, models.CheckoutSourceGateway, "", "", "")

	return attempt, nil
}

// HandleNavigation inspects one embedded-browser navigation event. A
// return-URL match triggers capture exactly once per attempt; a
// cancel-URL match discards the attempt; anything else is ignored, since
// the approval flow traverses many provider-hosted URLs. Only the owner
// of the attempt may feed it events.
func (s *CheckoutService) HandleNavigation(ctx context.Context, attemptID, userID uuid.UUID, navURL, deviceSummary string) (*models.CheckoutAttempt, error) {
	s.mu.Lock()
	attempt, ok := s.attempts[attemptID]
	if !ok {
		s.mu.Unlock()
		return nil, fmt.Errorf("checkout attempt not found")
	}
	if attempt.UserID != userID {
		s.mu.Unlock()
		return nil, fmt.Errorf("unauthorized: attempt belongs to another user")
	}

	// Reloads of the return page fire duplicate events; once capture
	// has started the attempt ignores them.
	if !attempt.AwaitingNavigation() {
		s.mu.Unlock()
		return attempt, nil
	}

	switch {
	case strings.Contains(navURL, s.settings.ReturnURLPattern):
		attempt.State = models.CheckoutStateCapturing
		attempt.UpdatedAt = time.Now()
		s.mu.Unlock()
	case strings.Contains(navURL, s.settings.CancelURLPattern):
		attempt.State = models.CheckoutStateCancelled
		attempt.UpdatedAt = time.Now()
		s.mu.Unlock()
		s.record(ctx, attempt, models.CheckoutEventCancelled, models.CheckoutSourceNavigation, "", navURL, deviceSummary)
		s.logger.WithField("attempt_id", attempt.ID).Info("Checkout cancelled by user")
		return attempt, nil
	default:
		s.mu.Unlock()
		return attempt, nil
	}

	s.record(ctx, attempt, models.CheckoutEventReturnMatched, models.CheckoutSourceNavigation, "", navURL, deviceSummary)

	stepCtx, cancel := context.WithTimeout(ctx, s.settings.StepTimeout)
	err := s.gateway.Capture(stepCtx, *attempt.OrderID, attempt.ExternalSessionID)
	cancel()
	if err != nil {
		s.fail(ctx, attempt, models.StepCapture, models.CheckoutEventCaptureFailed, err)
		return attempt, &models.CheckoutStepError{Step: models.StepCapture, Message: backendMessage(err), Cause: err}
	}

	s.setState(attempt, models.CheckoutStateCaptured)
	s.record(ctx, attempt, models.CheckoutEventCaptureSucceeded, models.CheckoutSourceGateway, "", navURL, deviceSummary)
	s.logger.WithFields(logrus.Fields{
		"attempt_id": attempt.ID,
		"order_id":   *attempt.OrderID,
	}).Info("Checkout captured")

	return attempt, nil
}

// Attempt returns a checkout attempt, enforcing ownership.
func (s *CheckoutService) Attempt(attemptID, userID uuid.UUID) (*models.CheckoutAttempt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	attempt, ok := s.attempts[attemptID]
	if !ok {
		return nil, fmt.Errorf("checkout attempt not found")
	}
	if attempt.UserID != userID {
		return nil, fmt.Errorf("unauthorized: attempt belongs to another user")
	}
	return attempt, nil
}

func (s *CheckoutService) setState(attempt *models.CheckoutAttempt, state models.CheckoutState) {
	s.mu.Lock()
	attempt.State = state
	attempt.UpdatedAt = time.Now()
	s.mu.Unlock()

	s.logger.WithFields(logrus.Fields{
		"attempt_id": attempt.ID,
		"state":      state,
	}).Debug("Checkout state changed")
}

func (s *CheckoutService) fail(ctx context.Context, attempt *models.CheckoutAttempt, step models.CheckoutStep, event models.CheckoutEventType, err error) {
	s.mu.Lock()
	attempt.State = models.CheckoutStateFailed
	attempt.FailureMessage = backendMessage(err)
	if attempt.FailureMessage == "" {
		attempt.FailureMessage = err.Error()
	}
	attempt.UpdatedAt = time.Now()
	s.mu.Unlock()

	s.record(ctx, attempt, event, models.CheckoutSourceOrchestrator, attempt.FailureMessage, "", "")
	s.logger.WithError(err).WithFields(logrus.Fields{
		"attempt_id": attempt.ID,
		"step":       step,
	}).Error("Checkout step failed")
}

func (s *CheckoutService) record(ctx context.Context, attempt *models.CheckoutAttempt, event models.CheckoutEventType, source models.CheckoutEventSource, errMsg, navURL, deviceSummary string) {
	audit := &models.CheckoutAudit{
		ID:        uuid.New(),
		AttemptID: attempt.ID,
		OrderID:   attempt.OrderID,
		EventType: event,
		Source:    source,
		CreatedAt: time.Now(),
	}
	if attempt.Amount > 0 {
		amount := attempt.Amount
		audit.Amount = &amount
	}
	if attempt.Currency != "" {
		currency := attempt.Currency
		audit.Currency = &currency
	}
	if attempt.ExternalSessionID != "" {
		audit.ExternalSessionID = &attempt.ExternalSessionID
	}
	if errMsg != "" {
		audit.ErrorMessage = &errMsg
	}
	if navURL != "" {
		audit.NavigationURL = &navURL
	}
	if deviceSummary != "" {
		audit.DeviceSummary = &deviceSummary
	}
	corr := attempt.SessionID.String()
	audit.CorrelationID = &corr

	if err := s.audit.Record(ctx, audit); err != nil {
		s.logger.WithError(err).WithField("attempt_id", attempt.ID).Error("Failed to record checkout audit")
	}
}

// backendMessage unwraps the display message from a backend or gateway
// error.
func backendMessage(err error) string {
	switch e := err.(type) {
	case *railapi.BackendError:
		return e.Message
	case *GatewayError:
		return e.Message
	}
	return ""
}

func sameItems(a, b []models.CheckoutItem) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// userNumericID folds a user UUID into the numeric id the legacy order
// endpoint expects. The sign bit is cleared so the result is never
// negative.
func userNumericID(id uuid.UUID) int64 {
	return int64(binary.BigEndian.Uint64(id[:8]) &^ (1 << 63))
}
