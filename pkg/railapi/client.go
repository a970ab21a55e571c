// Package railapi is the HTTP client for the booking backend: seat
// templates, per-trip sale state, order preview and order creation. The
// backend's response envelopes vary between deployments, so responses
// are unwrapped tolerantly with gjson rather than bound to a strict
// schema.
package railapi

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

	"github.com/smartrail/booking-checkout/internal/models"
	"github.com/smartrail/booking-checkout/internal/seatmap"
)

// Config holds configuration for the booking backend client
type Config struct {
	BaseURL string
	Timeout time.Duration
}

// Client talks to the booking backend
type Client struct {
	baseURL string
	client  *http.Client
	logger  *logrus.Logger
}

// New creates a new booking backend client
func New(cfg Config, logger *logrus.Logger) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		baseURL: cfg.BaseURL,
		client:  &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

// TemplateResponse is a carriage seat template: declared layout metadata
// plus the raw template seat records.
type TemplateResponse struct {
	Layout models.Layout
	Seats  []seatmap.RawSeat
}

// PreviewItem is one seat line submitted for preview.
type PreviewItem struct {
	SeatCode    string `json:"seat_code"`
	PassengerID *int64 `json:"passenger_id,omitempty"`
}

// PreviewRequest asks the backend to price and validate a selection.
type PreviewRequest struct {
	TripID int64         `json:"trip_id"`
	Items  []PreviewItem `json:"items"`
}

// PreviewResponse is the backend's authoritative pricing result.
type PreviewResponse struct {
	TripID      int64
	Items       []models.PreviewSeat
	TotalAmount float64
}

// CreateOrderRequest creates a pending order for the given seats.
type CreateOrderRequest struct {
	UserID int64                 `json:"user_id"`
	Items  []models.CheckoutItem `json:"items"`
}

// OrderConfirmation is the backend's answer to order creation: the
// order id plus the authoritative total the order was priced at.
type OrderConfirmation struct {
	OrderID     int64
	TotalAmount float64
	Currency    string
}

// BackendError carries the backend's rejection message verbatim.
type BackendError struct {
	StatusCode int
	Message    string
}

func (e *BackendError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("booking backend returned status %d", e.StatusCode)
}

// GetTrip fetches a trip header.
func (c *Client) GetTrip(ctx context.Context, tripID int64) (*models.Trip, error) {
	body, err := c.get(ctx, fmt.Sprintf("/trips/%d", tripID))
	if err != nil {
		return nil, err
	}

	// Some deployments wrap the trip, some return it bare.
	doc := gjson.GetBytes(body, "trip")
	if !doc.Exists() {
		doc = gjson.ParseBytes(body)
	}

	trip := &models.Trip{
		ID:            doc.Get("id").Int(),
		RouteID:       doc.Get("route_id").Int(),
		DepartureTime: doc.Get("departure_time").String(),
		ArrivalTime:   doc.Get("arrival_time").String(),
		VehicleNo:     doc.Get("vehicle_no").String(),
		Status:        doc.Get("status").String(),
	}
	return trip, nil
}

// GetRoute fetches the route a trip runs on.
func (c *Client) GetRoute(ctx context.Context, routeID int64) (*models.Route, error) {
	body, err := c.get(ctx, fmt.Sprintf("/routes/%d", routeID))
	if err != nil {
		return nil, err
	}

	doc := gjson.GetBytes(body, "route")
	if !doc.Exists() {
		doc = gjson.ParseBytes(body)
	}

	return &models.Route{
		ID:          doc.Get("id").Int(),
		Origin:      doc.Get("origin").String(),
		Destination: doc.Get("destination").String(),
	}, nil
}

// ListCarriages fetches the carriages of a trip.
func (c *Client) ListCarriages(ctx context.Context, tripID int64) ([]models.Carriage, error) {
	body, err := c.get(ctx, fmt.Sprintf("/carriages/trips/%d/carriages", tripID))
	if err != nil {
		return nil, err
	}

	arr := pickArray(body, "carriages", "items")
	carriages := make([]models.Carriage, 0, len(arr))
	for _, doc := range arr {
		car := models.Carriage{
			ID:             doc.Get("id").Int(),
			Name:           doc.Get("name").String(),
			CarriageNo:     doc.Get("carriage_no").String(),
			SeatTemplateID: doc.Get("seat_template_id").Int(),
		}
		if car.Name == "" {
			car.Name = fmt.Sprintf("Coach %s", car.CarriageNo)
		}
		carriages = append(carriages, car)
	}
	return carriages, nil
}

// GetTemplateSeats fetches the static seat template for a carriage.
func (c *Client) GetTemplateSeats(ctx context.Context, templateID int64) (*TemplateResponse, error) {
	body, err := c.get(ctx, fmt.Sprintf("/seat-templates/%d/seats", templateID))
	if err != nil {
		return nil, err
	}

	resp := &TemplateResponse{
		Layout: models.Layout{
			Rows:    int(gjson.GetBytes(body, "template.meta_json.rows").Int()),
			Columns: int(gjson.GetBytes(body, "template.meta_json.cols").Int()),
		},
	}
	resp.Seats, err = decodeSeats(body)
	if err != nil {
		return nil, fmt.Errorf("failed to decode template seats: %w", err)
	}
	return resp, nil
}

// GetTripSeats fetches the per-trip sale state for a carriage.
func (c *Client) GetTripSeats(ctx context.Context, carriageID int64) ([]seatmap.RawSeat, error) {
	body, err := c.get(ctx, fmt.Sprintf("/carriages/%d/seatmap", carriageID))
	if err != nil {
		return nil, err
	}

	seats, err := decodeSeats(body)
	if err != nil {
		return nil, fmt.Errorf("failed to decode trip seats: %w", err)
	}
	return seats, nil
}

// PreviewOrder requests authoritative pricing and validation for a seat
// selection. Backend rejections come back as *BackendError with the
// original message.
func (c *Client) PreviewOrder(ctx context.Context, req PreviewRequest) (*PreviewResponse, error) {
	body, err := c.post(ctx, "/orders/preview", req)
	if err != nil {
		return nil, err
	}

	resp := &PreviewResponse{
		TripID:      gjson.GetBytes(body, "trip_id").Int(),
		TotalAmount: gjson.GetBytes(body, "total_amount").Float(),
	}
	for _, doc := range pickArray(body, "items") {
		seat := models.PreviewSeat{
			SeatCode:      doc.Get("seat_code").String(),
			Price:         doc.Get("price").Float(),
			PassengerName: doc.Get("passenger_name").String(),
		}
		if pid := doc.Get("passenger_id"); pid.Exists() && pid.Type != gjson.Null {
			id := pid.Int()
			seat.PassengerID = &id
		}
		resp.Items = append(resp.Items, seat)
	}
	return resp, nil
}

// CreateOrder creates a pending order and returns its confirmation.
func (c *Client) CreateOrder(ctx context.Context, req CreateOrderRequest) (*OrderConfirmation, error) {
	body, err := c.post(ctx, "/orders", req)
	if err != nil {
		return nil, err
	}

	// Some deployments wrap the order, some return the fields bare.
	doc := gjson.GetBytes(body, "order")
	if !doc.Exists() {
		doc = gjson.ParseBytes(body)
	}

	conf := &OrderConfirmation{
		OrderID:     doc.Get("id").Int(),
		TotalAmount: doc.Get("total_amount").Float(),
		Currency:    doc.Get("currency").String(),
	}
	if conf.OrderID == 0 {
		conf.OrderID = gjson.GetBytes(body, "order_id").Int()
	}
	if conf.OrderID == 0 {
		return nil, fmt.Errorf("order creation response missing order_id")
	}
	return conf, nil
}

func (c *Client) get(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	return c.do(req)
}

func (c *Client) post(ctx context.Context, path string, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req)
}

func (c *Client) do(req *http.Request) ([]byte, error) {
	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("booking backend request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	c.logger.WithFields(logrus.Fields{
		"method":      req.Method,
		"path":        req.URL.Path,
		"status":      resp.StatusCode,
		"duration_ms": time.Since(start).Milliseconds(),
	}).Debug("Booking backend call completed")

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &BackendError{
			StatusCode: resp.StatusCode,
			Message:    errorMessage(body),
		}
	}
	return body, nil
}

// errorMessage digs the human-readable message out of an error body.
// Backends disagree on the field name.
func errorMessage(body []byte) string {
	for _, key := range []string{"detail", "message", "error"} {
		if v := gjson.GetBytes(body, key); v.Exists() && v.String() != "" {
			return v.String()
		}
	}
	return ""
}

// pickArray returns the first JSON array found under the given keys, or
// the body itself when it is a bare array.
func pickArray(body []byte, keys ...string) []gjson.Result {
	for _, key := range keys {
		if v := gjson.GetBytes(body, key); v.IsArray() {
			return v.Array()
		}
	}
	if doc := gjson.ParseBytes(body); doc.IsArray() {
		return doc.Array()
	}
	return nil
}

// decodeSeats extracts the raw seat records from a feed response,
// trying the envelope shapes observed in the wild.
func decodeSeats(body []byte) ([]seatmap.RawSeat, error) {
	doc := gjson.ParseBytes(body)
	arr := doc.Get("seats")
	if !arr.IsArray() {
		arr = doc.Get("items")
	}
	if !arr.IsArray() {
		arr = doc.Get("rows")
	}
	if !arr.IsArray() && doc.IsArray() {
		arr = doc
	}
	if !arr.IsArray() {
		return nil, nil
	}

	var seats []seatmap.RawSeat
	if err := json.Unmarshal([]byte(arr.Raw), &seats); err != nil {
		return nil, err
	}
	return seats, nil
}
