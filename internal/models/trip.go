package models

// Trip is the header of a scheduled trip, as returned by the booking
// backend.
type Trip struct {
	ID            int64  `json:"id"`
	RouteID       int64  `json:"route_id"`
	DepartureTime string `json:"departure_time"`
	ArrivalTime   string `json:"arrival_time"`
	VehicleNo     string `json:"vehicle_no"`
	Status        string `json:"status"`
}

// Route names the endpoints of a trip's route.
type Route struct {
	ID          int64  `json:"id"`
	Origin      string `json:"origin"`
	Destination string `json:"destination"`
}

// Carriage is one coach of a trip. SeatTemplateID points at the static
// layout template; the per-trip sale state is fetched separately.
type Carriage struct {
	ID             int64  `json:"id"`
	Name           string `json:"name"`
	CarriageNo     string `json:"carriage_no"`
	SeatTemplateID int64  `json:"seat_template_id"`
}
