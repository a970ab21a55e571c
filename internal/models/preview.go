package models

// PreviewSeat is one line of an order preview.
type PreviewSeat struct {
	SeatCode      string  `json:"seat_code"`
	Price         float64 `json:"price"`
	PassengerID   *int64  `json:"passenger_id,omitempty"`
	PassengerName string  `json:"passenger_name,omitempty"`
}

// OrderPreview is the display-ready preview of an order, reshaped from
// the booking backend's response. The total comes from the backend; the
// client never computes it locally.
type OrderPreview struct {
	TripID        int64         `json:"trip_id"`
	TripLabel     string        `json:"trip_label"`
	DepartureTime string        `json:"departure_time"`
	Seats         []PreviewSeat `json:"seats"`
	TotalAmount   float64       `json:"total_amount"`
}
