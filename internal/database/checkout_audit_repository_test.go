package database

import (
	"context"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smartrail/booking-checkout/internal/models"
)

func newAuditRepo(t *testing.T) (*CheckoutAuditRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return NewCheckoutAuditRepository(sqlx.NewDb(db, "sqlmock"), logger), mock
}

func TestRecordCheckoutAudit(t *testing.T) {
	repo, mock := newAuditRepo(t)

	t.Run("Success", func(t *testing.T) {
		orderID := int64(501)
		audit := &models.CheckoutAudit{
			AttemptID: uuid.New(),
			OrderID:   &orderID,
			EventType: models.CheckoutEventOrderCreated,
			Source:    models.CheckoutSourceOrchestrator,
		}

		mock.ExpectExec(`INSERT INTO checkout_audits`).
			WithArgs(
				sqlmock.AnyArg(), audit.AttemptID, orderID,
				string(models.CheckoutEventOrderCreated), string(models.CheckoutSourceOrchestrator),
				nil, nil,
				nil, nil,
				nil, nil, nil,
				sqlmock.AnyArg(),
			).
			WillReturnResult(sqlmock.NewResult(0, 1))

		err := repo.Record(context.Background(), audit)
		require.NoError(t, err)
		assert.NotEqual(t, uuid.Nil, audit.ID, "ID is assigned on insert")
		assert.False(t, audit.CreatedAt.IsZero())

		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Database Error", func(t *testing.T) {
		audit := &models.CheckoutAudit{
			AttemptID: uuid.New(),
			EventType: models.CheckoutEventCaptureFailed,
			Source:    models.CheckoutSourceGateway,
		}

		mock.ExpectExec(`INSERT INTO checkout_audits`).
			WillReturnError(fmt.Errorf("database error"))

		err := repo.Record(context.Background(), audit)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "failed to record checkout audit")

		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Nil Entry", func(t *testing.T) {
		err := repo.Record(context.Background(), nil)
		assert.Error(t, err)
	})
}

func TestAuditsByAttemptID(t *testing.T) {
	repo, mock := newAuditRepo(t)

	t.Run("Success", func(t *testing.T) {
		attemptID := uuid.New()
		now := time.Now()

		mock.ExpectQuery(`SELECT (.+) FROM checkout_audits WHERE attempt_id`).
			WithArgs(attemptID).
			WillReturnRows(sqlmock.NewRows([]string{
				"id", "attempt_id", "order_id", "event_type", "event_source",
				"amount", "currency", "external_session_id", "navigation_url",
				"error_message", "device_summary", "correlation_id", "created_at",
			}).AddRow(
				uuid.New(), attemptID, int64(501), "order_created", "orchestrator",
				nil, nil, nil, nil,
				nil, nil, nil, now.Add(-time.Minute),
			).AddRow(
				uuid.New(), attemptID, int64(501), "capture_succeeded", "payment_gateway",
				nil, nil, "abc123", "https://checkout.smartrail.app/payment/return",
				nil, nil, nil, now,
			))

		audits, err := repo.ByAttemptID(context.Background(), attemptID)
		require.NoError(t, err)
		require.Len(t, audits, 2)
		assert.Equal(t, models.CheckoutEventOrderCreated, audits[0].EventType)
		assert.Equal(t, models.CheckoutEventCaptureSucceeded, audits[1].EventType)
		require.NotNil(t, audits[1].ExternalSessionID)
		assert.Equal(t, "abc123", *audits[1].ExternalSessionID)

		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Database Error", func(t *testing.T) {
		mock.ExpectQuery(`SELECT (.+) FROM checkout_audits WHERE attempt_id`).
			WillReturnError(fmt.Errorf("database error"))

		_, err := repo.ByAttemptID(context.Background(), uuid.New())
		assert.Error(t, err)

		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestRecentFailures(t *testing.T) {
	repo, mock := newAuditRepo(t)

	mock.ExpectQuery(`SELECT (.+) FROM checkout_audits WHERE event_type IN`).
		WithArgs(
			string(models.CheckoutEventOrderFailed),
			string(models.CheckoutEventPaymentSessionFailed),
			string(models.CheckoutEventCaptureFailed),
			24, 50,
		).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "attempt_id", "order_id", "event_type", "event_source",
			"amount", "currency", "external_session_id", "navigation_url",
			"error_message", "device_summary", "correlation_id", "created_at",
		}).AddRow(
			uuid.New(), uuid.New(), nil, "capture_failed", "payment_gateway",
			nil, nil, nil, nil,
			"payment declined", nil, nil, time.Now(),
		))

	audits, err := repo.RecentFailures(context.Background(), 24, 50)
	require.NoError(t, err)
	require.Len(t, audits, 1)
	require.NotNil(t, audits[0].ErrorMessage)
	assert.Equal(t, "payment declined", *audits[0].ErrorMessage)

	assert.NoError(t, mock.ExpectationsWereMet())
}
