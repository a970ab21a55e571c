package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/smartrail/booking-checkout/internal/middleware"
	"github.com/smartrail/booking-checkout/internal/models"
	"github.com/smartrail/booking-checkout/internal/seatmap"
	"github.com/smartrail/booking-checkout/internal/services"
	"github.com/smartrail/booking-checkout/pkg/railapi"
)

// fakeBackend stands in for the booking backend across all feeds the
// handlers reach through the services.
type fakeBackend struct {
	templateErr error
	previewErr  error
	orderErr    error
	nextOrderID int64
}

func (f *fakeBackend) ListCarriages(ctx context.Context, tripID int64) ([]models.Carriage, error) {
	return []models.Carriage{
		{ID: 1, Name: "Coach 1", CarriageNo: "1", SeatTemplateID: 10},
		{ID: 2, Name: "Coach 2", CarriageNo: "2", SeatTemplateID: 10},
	}, nil
}

func (f *fakeBackend) GetTemplateSeats(ctx context.Context, templateID int64) (*railapi.TemplateResponse, error) {
	if f.templateErr != nil {
		return nil, f.templateErr
	}
	return &railapi.TemplateResponse{
		Layout: models.Layout{Rows: 1, Columns: 2},
		Seats: []seatmap.RawSeat{
			{"seat_code": "1A", "row": float64(1), "col": float64(1), "base_price": float64(1500)},
			{"seat_code": "1B", "row": float64(1), "col": float64(2), "base_price": float64(1500)},
		},
	}, nil
}

func (f *fakeBackend) GetTripSeats(ctx context.Context, carriageID int64) ([]seatmap.RawSeat, error) {
	return nil, nil
}

func (f *fakeBackend) PreviewOrder(ctx context.Context, req railapi.PreviewRequest) (*railapi.PreviewResponse, error) {
	if f.previewErr != nil {
		return nil, f.previewErr
	}
	items := make([]models.PreviewSeat, len(req.Items))
	for i, item := range req.Items {
		items[i] = models.PreviewSeat{SeatCode: item.SeatCode, Price: 1500}
	}
	return &railapi.PreviewResponse{
		TripID:      req.TripID,
		Items:       items,
		TotalAmount: float64(len(items)) * 1500,
	}, nil
}

func (f *fakeBackend) GetTrip(ctx context.Context, tripID int64) (*models.Trip, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeBackend) GetRoute(ctx context.Context, routeID int64) (*models.Route, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeBackend) CreateOrder(ctx context.Context, req railapi.CreateOrderRequest) (*railapi.OrderConfirmation, error) {
	if f.orderErr != nil {
		return nil, f.orderErr
	}
	return &railapi.OrderConfirmation{OrderID: f.nextOrderID, TotalAmount: 3000, Currency: "LKR"}, nil
}

type fakeFlowGateway struct {
	captures int
}

func (f *fakeFlowGateway) CreateSession(ctx context.Context, orderID int64) (*services.PaymentSession, error) {
	return &services.PaymentSession{
		ApprovalURL:       "https://pay.example.com/approve/tok1",
		ExternalSessionID: "tok1",
	}, nil
}

func (f *fakeFlowGateway) Capture(ctx context.Context, orderID int64, externalSessionID string) error {
	f.captures++
	return nil
}

type nullAudit struct{}

func (nullAudit) Record(ctx context.Context, audit *models.CheckoutAudit) error { return nil }

type testEnv struct {
	router  *gin.Engine
	backend *fakeBackend
	gateway *fakeFlowGateway
	userID  uuid.UUID
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	backend := &fakeBackend{nextOrderID: 501}
	gateway := &fakeFlowGateway{}

	sessionService := services.NewSessionService(backend, services.NewTemplateCache(nil, 0, logger), logger)
	previewService := services.NewPreviewService(backend, logger)
	checkoutService := services.NewCheckoutService(backend, gateway, nullAudit{}, services.CheckoutSettings{
		ReturnURLPattern: "checkout.smartrail.app/payment/return",
		CancelURLPattern: "checkout.smartrail.app/payment/cancel",
	}, logger)

	sessionHandler := NewSessionHandler(sessionService, previewService, logger)
	checkoutHandler := NewCheckoutHandler(checkoutService, sessionService, logger)

	env := &testEnv{backend: backend, gateway: gateway, userID: uuid.New()}
	router := gin.New()
	router.Use(func(c *gin.Context) {
		c.Set(middleware.UserContextKey, middleware.UserContext{UserID: env.userID, Name: "Amal Perera"})
		c.Next()
	})

	v1 := router.Group("/api/v1")
	{
		v1.POST("/sessions", sessionHandler.CreateSession)
		v1.POST("/sessions/:sessionId/carriages/:carriageId/activate", sessionHandler.ActivateCarriage)
		v1.POST("/sessions/:sessionId/seats/toggle", sessionHandler.ToggleSeat)
		v1.POST("/sessions/:sessionId/seats/reset", sessionHandler.ResetSelection)
		v1.POST("/sessions/:sessionId/assignments", sessionHandler.AssignPassenger)
		v1.GET("/sessions/:sessionId/preview", sessionHandler.Preview)
		v1.POST("/sessions/:sessionId/checkout", checkoutHandler.StartCheckout)
		v1.POST("/checkout/:attemptId/navigation", checkoutHandler.NavigationEvent)
		v1.GET("/checkout/:attemptId", checkoutHandler.AttemptStatus)
	}

	env.router = router
	return env
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func (e *testEnv) createSession(t *testing.T) string {
	t.Helper()
	w := e.do(t, http.MethodPost, "/api/v1/sessions", gin.H{"trip_id": 7})
	require.Equal(t, http.StatusCreated, w.Code)
	return gjson.Get(w.Body.String(), "data.session_id").String()
}

func (e *testEnv) selectSeat(t *testing.T, sessionID, seatCode string) {
	t.Helper()
	w := e.do(t, http.MethodPost, "/api/v1/sessions/"+sessionID+"/seats/toggle", gin.H{"seat_code": seatCode})
	require.Equal(t, http.StatusOK, w.Code)
}

func (e *testEnv) assign(t *testing.T, sessionID, seatCode string, passengerID int64) {
	t.Helper()
	w := e.do(t, http.MethodPost, "/api/v1/sessions/"+sessionID+"/assignments", gin.H{
		"seat_code":      seatCode,
		"passenger_id":   passengerID,
		"passenger_name": "Passenger",
	})
	require.Equal(t, http.StatusOK, w.Code)
}

func TestSessionEndpoints(t *testing.T) {
	t.Run("create session returns carriages", func(t *testing.T) {
		env := newTestEnv(t)
		w := env.do(t, http.MethodPost, "/api/v1/sessions", gin.H{"trip_id": 7})

		require.Equal(t, http.StatusCreated, w.Code)
		body := w.Body.String()
		assert.Equal(t, int64(2), gjson.Get(body, "data.carriages.#").Int())
		assert.NotEmpty(t, gjson.Get(body, "data.session_id").String())
	})

	t.Run("activate returns the seat map", func(t *testing.T) {
		env := newTestEnv(t)
		sessionID := env.createSession(t)

		w := env.do(t, http.MethodPost, "/api/v1/sessions/"+sessionID+"/carriages/1/activate", nil)

		require.Equal(t, http.StatusOK, w.Code)
		body := w.Body.String()
		assert.Equal(t, int64(1), gjson.Get(body, "data.layout.rows").Int())
		assert.Equal(t, int64(2), gjson.Get(body, "data.seats.#").Int())
	})

	t.Run("template failure maps to layout unavailable", func(t *testing.T) {
		env := newTestEnv(t)
		sessionID := env.createSession(t)
		env.backend.templateErr = errors.New("template endpoint down")

		w := env.do(t, http.MethodPost, "/api/v1/sessions/"+sessionID+"/carriages/1/activate", nil)

		require.Equal(t, http.StatusBadGateway, w.Code)
		assert.Equal(t, "LAYOUT_UNAVAILABLE", gjson.Get(w.Body.String(), "code").String())
	})

	t.Run("preview rejection carries the backend message", func(t *testing.T) {
		env := newTestEnv(t)
		sessionID := env.createSession(t)
		_ = env.do(t, http.MethodPost, "/api/v1/sessions/"+sessionID+"/carriages/1/activate", nil)
		env.selectSeat(t, sessionID, "1A")
		env.backend.previewErr = &railapi.BackendError{StatusCode: 409, Message: "seat 1A no longer available"}

		w := env.do(t, http.MethodGet, "/api/v1/sessions/"+sessionID+"/preview", nil)

		require.Equal(t, http.StatusConflict, w.Code)
		body := w.Body.String()
		assert.Equal(t, "PREVIEW_REJECTED", gjson.Get(body, "code").String())
		assert.Equal(t, "seat 1A no longer available", gjson.Get(body, "message").String())
	})

	t.Run("preview with empty selection is a client error", func(t *testing.T) {
		env := newTestEnv(t)
		sessionID := env.createSession(t)

		w := env.do(t, http.MethodGet, "/api/v1/sessions/"+sessionID+"/preview", nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("unknown session is not found", func(t *testing.T) {
		env := newTestEnv(t)
		w := env.do(t, http.MethodPost, "/api/v1/sessions/"+uuid.NewString()+"/seats/toggle", gin.H{"seat_code": "1A"})
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestCheckoutEndpoints(t *testing.T) {
	prepare := func(t *testing.T, env *testEnv) string {
		t.Helper()
		sessionID := env.createSession(t)
		w := env.do(t, http.MethodPost, "/api/v1/sessions/"+sessionID+"/carriages/1/activate", nil)
		require.Equal(t, http.StatusOK, w.Code)
		env.selectSeat(t, sessionID, "1A")
		env.selectSeat(t, sessionID, "1B")
		return sessionID
	}

	t.Run("checkout without assignments names the seats", func(t *testing.T) {
		env := newTestEnv(t)
		sessionID := prepare(t, env)
		env.assign(t, sessionID, "1A", 11)

		w := env.do(t, http.MethodPost, "/api/v1/sessions/"+sessionID+"/checkout", nil)

		require.Equal(t, http.StatusUnprocessableEntity, w.Code)
		body := w.Body.String()
		assert.Equal(t, "MISSING_ASSIGNMENT", gjson.Get(body, "code").String())
		assert.Equal(t, "1B", gjson.Get(body, "seats.0").String())
	})

	t.Run("full flow from selection to capture", func(t *testing.T) {
		env := newTestEnv(t)
		sessionID := prepare(t, env)
		env.assign(t, sessionID, "1A", 11)
		env.assign(t, sessionID, "1B", 12)

		w := env.do(t, http.MethodPost, "/api/v1/sessions/"+sessionID+"/checkout", nil)
		require.Equal(t, http.StatusCreated, w.Code)
		body := w.Body.String()
		attemptID := gjson.Get(body, "data.attempt_id").String()
		assert.Equal(t, string(models.CheckoutStateAwaitingApproval), gjson.Get(body, "data.state").String())
		assert.Equal(t, "https://pay.example.com/approve/tok1", gjson.Get(body, "data.approval_url").String())

		// Provider-hosted pages are relayed and ignored.
		w = env.do(t, http.MethodPost, "/api/v1/checkout/"+attemptID+"/navigation",
			gin.H{"url": "https://pay.example.com/login"})
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, string(models.CheckoutStateAwaitingApproval), gjson.Get(w.Body.String(), "data.state").String())

		w = env.do(t, http.MethodPost, "/api/v1/checkout/"+attemptID+"/navigation",
			gin.H{"url": "https://checkout.smartrail.app/payment/return?token=tok1"})
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, string(models.CheckoutStateCaptured), gjson.Get(w.Body.String(), "data.state").String())
		assert.Equal(t, 1, env.gateway.captures)

		w = env.do(t, http.MethodGet, "/api/v1/checkout/"+attemptID, nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, string(models.CheckoutStateCaptured), gjson.Get(w.Body.String(), "data.state").String())
		assert.Equal(t, 3000.0, gjson.Get(w.Body.String(), "data.amount").Float())
		assert.Equal(t, "LKR", gjson.Get(w.Body.String(), "data.currency").String())
	})

	t.Run("navigation from another user cannot touch the attempt", func(t *testing.T) {
		env := newTestEnv(t)
		sessionID := prepare(t, env)
		env.assign(t, sessionID, "1A", 11)
		env.assign(t, sessionID, "1B", 12)

		w := env.do(t, http.MethodPost, "/api/v1/sessions/"+sessionID+"/checkout", nil)
		require.Equal(t, http.StatusCreated, w.Code)
		attemptID := gjson.Get(w.Body.String(), "data.attempt_id").String()

		owner := env.userID
		env.userID = uuid.New()
		w = env.do(t, http.MethodPost, "/api/v1/checkout/"+attemptID+"/navigation",
			gin.H{"url": "https://checkout.smartrail.app/payment/cancel?token=tok1"})
		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Zero(t, env.gateway.captures)

		env.userID = owner
		w = env.do(t, http.MethodGet, "/api/v1/checkout/"+attemptID, nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, string(models.CheckoutStateAwaitingApproval), gjson.Get(w.Body.String(), "data.state").String())
	})

	t.Run("cancel url ends the attempt without capture", func(t *testing.T) {
		env := newTestEnv(t)
		sessionID := prepare(t, env)
		env.assign(t, sessionID, "1A", 11)
		env.assign(t, sessionID, "1B", 12)

		w := env.do(t, http.MethodPost, "/api/v1/sessions/"+sessionID+"/checkout", nil)
		require.Equal(t, http.StatusCreated, w.Code)
		attemptID := gjson.Get(w.Body.String(), "data.attempt_id").String()

		w = env.do(t, http.MethodPost, "/api/v1/checkout/"+attemptID+"/navigation",
			gin.H{"url": "https://checkout.smartrail.app/payment/cancel?token=tok1"})
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, string(models.CheckoutStateCancelled), gjson.Get(w.Body.String(), "data.state").String())
		assert.Zero(t, env.gateway.captures)
	})

	t.Run("order failure maps to a step error", func(t *testing.T) {
		env := newTestEnv(t)
		sessionID := prepare(t, env)
		env.assign(t, sessionID, "1A", 11)
		env.assign(t, sessionID, "1B", 12)
		env.backend.orderErr = &railapi.BackendError{StatusCode: 409, Message: "seat 1A already sold"}

		w := env.do(t, http.MethodPost, "/api/v1/sessions/"+sessionID+"/checkout", nil)

		require.Equal(t, http.StatusBadGateway, w.Code)
		body := w.Body.String()
		assert.Equal(t, "CHECKOUT_STEP_FAILED", gjson.Get(body, "code").String())
		assert.Equal(t, string(models.StepOrderCreation), gjson.Get(body, "step").String())
	})

	t.Run("navigation for unknown attempt is not found", func(t *testing.T) {
		env := newTestEnv(t)
		w := env.do(t, http.MethodPost, fmt.Sprintf("/api/v1/checkout/%s/navigation", uuid.NewString()),
			gin.H{"url": "https://anything"})
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}
