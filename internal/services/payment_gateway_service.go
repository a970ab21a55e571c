package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"

	"github.com/smartrail/booking-checkout/internal/config"
)

// PaymentGatewayService talks to the external payment provider. The
// provider hosts the approval page itself; this service only creates
// payment sessions and captures them. Payment state lives with the
// provider, never here.
type PaymentGatewayService struct {
	config *config.PaymentConfig
	logger *logrus.Logger
	client *http.Client
}

// NewPaymentGatewayService creates a new payment gateway service
func NewPaymentGatewayService(cfg *config.PaymentConfig, logger *logrus.Logger) *PaymentGatewayService {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &PaymentGatewayService{
		config: cfg,
		logger: logger,
		client: &http.Client{Timeout: timeout},
	}
}

// PaymentSession is the provider's handle for one approval flow.
type PaymentSession struct {
	ApprovalURL       string `json:"approval_url"`
	ExternalSessionID string `json:"external_session_id"`
}

// GatewayError preserves the provider's error message for display.
type GatewayError struct {
	StatusCode int
	Message    string
}

func (e *GatewayError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("payment gateway returned status %d", e.StatusCode)
}

// CreateSession requests a payment session for a pending order and
// returns the approval URL the embedded browser must open.
func (s *PaymentGatewayService) CreateSession(ctx context.Context, orderID int64) (*PaymentSession, error) {
	payload := map[string]any{
		"order_id":   orderID,
		"return_url": s.config.ReturnURL,
		"cancel_url": s.config.CancelURL,
	}

	body, err := s.post(ctx, "/sessions", payload)
	if err != nil {
		return nil, err
	}

	session := &PaymentSession{
		ApprovalURL:       gjson.GetBytes(body, "approval_url").String(),
		ExternalSessionID: gjson.GetBytes(body, "external_session_id").String(),
	}
	if session.ApprovalURL == "" || session.ExternalSessionID == "" {
		return nil, fmt.Errorf("payment session response incomplete")
	}

	s.logger.WithFields(logrus.Fields{
		"order_id":            orderID,
		"external_session_id": session.ExternalSessionID,
	}).Info("Payment session created")

	return session, nil
}

// Capture settles an approved payment session. The caller must treat a
// return-URL navigation only as the trigger for this call; the capture
// response is the sole proof of payment.
func (s *PaymentGatewayService) Capture(ctx context.Context, orderID int64, externalSessionID string) error {
	payload := map[string]any{
		"order_id":            orderID,
		"external_session_id": externalSessionID,
	}

	if _, err := s.post(ctx, "/capture", payload); err != nil {
		return err
	}

	s.logger.WithFields(logrus.Fields{
		"order_id":            orderID,
		"external_session_id": externalSessionID,
	}).Info("Payment captured")

	return nil
}

func (s *PaymentGatewayService) post(ctx context.Context, path string, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal gateway request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.config.BaseURL+path, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to create gateway request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("payment gateway request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read gateway response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := ""
		for _, key := range []string{"message", "detail", "error"} {
			if v := gjson.GetBytes(body, key); v.Exists() && v.String() != "" {
				msg = v.String()
				break
			}
		}
		return nil, &GatewayError{StatusCode: resp.StatusCode, Message: msg}
	}
	return body, nil
}
