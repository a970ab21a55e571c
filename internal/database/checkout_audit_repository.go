package database

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"

	"github.com/smartrail/booking-checkout/internal/models"
)

// CheckoutAuditRepository persists the checkout event trail. Rows are
// append-only; a stranded attempt is reconciled by reading its events
// back in order.
type CheckoutAuditRepository struct {
	db     *sqlx.DB
	logger *logrus.Logger
}

// NewCheckoutAuditRepository creates a new checkout audit repository
func NewCheckoutAuditRepository(db *sqlx.DB, logger *logrus.Logger) *CheckoutAuditRepository {
	return &CheckoutAuditRepository{
		db:     db,
		logger: logger,
	}
}

// Record inserts one checkout audit entry
func (r *CheckoutAuditRepository) Record(ctx context.Context, audit *models.CheckoutAudit) error {
	if audit == nil {
		return fmt.Errorf("audit entry cannot be nil")
	}

	if audit.ID == uuid.Nil {
		audit.ID = uuid.New()
	}
	if audit.CreatedAt.IsZero() {
		audit.CreatedAt = time.Now()
	}

	query := `
		INSERT INTO checkout_audits (
			id, attempt_id, order_id,
			event_type, event_source,
			amount, currency,
			external_session_id, navigation_url,
			error_message, device_summary, correlation_id,
			created_at
		) VALUES (
			$1, $2, $3,
			$4, $5,
			$6, $7,
			$8, $9,
			$10, $11, $12,
			$13
		)`

	_, err := r.db.ExecContext(ctx, query,
		audit.ID, audit.AttemptID, audit.OrderID,
		audit.EventType, audit.Source,
		audit.Amount, audit.Currency,
		audit.ExternalSessionID, audit.NavigationURL,
		audit.ErrorMessage, audit.DeviceSummary, audit.CorrelationID,
		audit.CreatedAt,
	)

	if err != nil {
		r.logger.WithError(err).WithFields(logrus.Fields{
			"event_type": audit.EventType,
			"attempt_id": audit.AttemptID,
		}).Error("Failed to record checkout audit")
		return fmt.Errorf("failed to record checkout audit: %w", err)
	}

	r.logger.WithFields(logrus.Fields{
		"audit_id":   audit.ID,
		"event_type": audit.EventType,
		"attempt_id": audit.AttemptID,
	}).Debug("Checkout audit recorded")

	return nil
}

// ByAttemptID retrieves all audit entries for a checkout attempt
func (r *CheckoutAuditRepository) ByAttemptID(ctx context.Context, attemptID uuid.UUID) ([]*models.CheckoutAudit, error) {
	var audits []*models.CheckoutAudit
	query := `
		SELECT * FROM checkout_audits
		WHERE attempt_id = $1
		ORDER BY created_at ASC`

	err := r.db.SelectContext(ctx, &audits, query, attemptID)
	if err != nil {
		return nil, fmt.Errorf("failed to get audits by attempt ID: %w", err)
	}

	return audits, nil
}

// RecentFailures retrieves recent failed events across all attempts,
// newest first
func (r *CheckoutAuditRepository) RecentFailures(ctx context.Context, hours int, limit int) ([]*models.CheckoutAudit, error) {
	var audits []*models.CheckoutAudit
	query := `
		SELECT * FROM checkout_audits
		WHERE event_type IN ($1, $2, $3)
		AND created_at > NOW() - INTERVAL '1 hour' * $4
		ORDER BY created_at DESC
		LIMIT $5`

	err := r.db.SelectContext(ctx, &audits, query,
		models.CheckoutEventOrderFailed,
		models.CheckoutEventPaymentSessionFailed,
		models.CheckoutEventCaptureFailed,
		hours, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get recent failures: %w", err)
	}

	return audits, nil
}
