package services

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smartrail/booking-checkout/internal/config"
)

func newGatewayService(t *testing.T, handler http.HandlerFunc) (*PaymentGatewayService, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	svc := NewPaymentGatewayService(&config.PaymentConfig{
		BaseURL:   server.URL,
		ReturnURL: "https://checkout.smartrail.app/payment/return",
		CancelURL: "https://checkout.smartrail.app/payment/cancel",
	}, quietLogger())
	return svc, server
}

func TestPaymentGatewayCreateSession(t *testing.T) {
	t.Run("sends order and redirect urls", func(t *testing.T) {
		var got map[string]any
		svc, _ := newGatewayService(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/sessions", r.URL.Path)
			require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"approval_url":"https://pay.example.com/approve/tok1","external_session_id":"tok1"}`))
		})

		session, err := svc.CreateSession(context.Background(), 501)

		require.NoError(t, err)
		assert.Equal(t, "https://pay.example.com/approve/tok1", session.ApprovalURL)
		assert.Equal(t, "tok1", session.ExternalSessionID)
		assert.Equal(t, float64(501), got["order_id"])
		assert.Equal(t, "https://checkout.smartrail.app/payment/return", got["return_url"])
		assert.Equal(t, "https://checkout.smartrail.app/payment/cancel", got["cancel_url"])
	})

	t.Run("rejects incomplete response", func(t *testing.T) {
		svc, _ := newGatewayService(t, func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"approval_url":"https://pay.example.com/approve/tok1"}`))
		})

		_, err := svc.CreateSession(context.Background(), 501)
		assert.Error(t, err)
	})

	t.Run("surfaces provider error message", func(t *testing.T) {
		svc, _ := newGatewayService(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"message":"order already settled"}`))
		})

		_, err := svc.CreateSession(context.Background(), 501)

		var gatewayErr *GatewayError
		require.ErrorAs(t, err, &gatewayErr)
		assert.Equal(t, http.StatusBadRequest, gatewayErr.StatusCode)
		assert.Equal(t, "order already settled", gatewayErr.Message)
	})
}

func TestPaymentGatewayCapture(t *testing.T) {
	t.Run("posts the session handle", func(t *testing.T) {
		var got map[string]any
		svc, _ := newGatewayService(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/capture", r.URL.Path)
			require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
			w.Write([]byte(`{"status":"completed"}`))
		})

		err := svc.Capture(context.Background(), 501, "tok1")

		require.NoError(t, err)
		assert.Equal(t, float64(501), got["order_id"])
		assert.Equal(t, "tok1", got["external_session_id"])
	})

	t.Run("decline surfaces as gateway error", func(t *testing.T) {
		svc, _ := newGatewayService(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnprocessableEntity)
			w.Write([]byte(`{"detail":"payment declined"}`))
		})

		err := svc.Capture(context.Background(), 501, "tok1")

		var gatewayErr *GatewayError
		require.ErrorAs(t, err, &gatewayErr)
		assert.Equal(t, "payment declined", gatewayErr.Message)
	})
}
