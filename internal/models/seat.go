package models

// SeatClass represents the fare class of a seat
type SeatClass string

const (
	SeatClassStandard SeatClass = "standard"
	SeatClassVIP      SeatClass = "vip"
)

// Seat is the canonical per-seat record derived from merging a template
// seat with its trip sale record. Available is computed during
// normalization, never copied from a feed.
type Seat struct {
	SeatCode  string    `json:"seat_code"`
	Row       int       `json:"row"`
	Column    int       `json:"column"`
	Class     SeatClass `json:"class"`
	Price     float64   `json:"price"`
	Available bool      `json:"available"`
}

// Placeable reports whether the seat has valid 1-based grid coordinates.
// Seats without coordinates still exist for selection by code but are
// excluded from the renderable grid.
func (s Seat) Placeable() bool {
	return s.Row >= 1 && s.Column >= 1
}

// Layout holds the grid dimensions of a carriage. Zero dimensions mean
// the layout could not be declared or inferred and the grid is not
// renderable.
type Layout struct {
	Rows    int `json:"rows"`
	Columns int `json:"columns"`
}

// Empty reports whether the layout has no renderable grid.
func (l Layout) Empty() bool {
	return l.Rows == 0 || l.Columns == 0
}

// SeatMapView is the merged per-carriage seat map the client renders and
// the selection logic operates on. Seats are ordered by (row, column).
type SeatMapView struct {
	CarriageID int64  `json:"carriage_id"`
	Layout     Layout `json:"layout"`
	Seats      []Seat `json:"seats"`

	// Degraded is set when the trip-seat feed failed and every seat
	// defaulted to available.
	Degraded bool `json:"degraded,omitempty"`
}

// SeatByCode looks up a seat in the view by its code.
func (v *SeatMapView) SeatByCode(code string) (Seat, bool) {
	for _, s := range v.Seats {
		if s.SeatCode == code {
			return s, true
		}
	}
	return Seat{}, false
}

// PassengerRef identifies a passenger assigned to a seat for the current
// checkout attempt.
type PassengerRef struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}
