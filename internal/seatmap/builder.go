package seatmap

import (
	"sort"

	"github.com/smartrail/booking-checkout/internal/models"
)

// Build joins a carriage's template seats with its trip sale records
// into a SeatMapView. Template fields are the floor; matching trip
// fields overlay them, and the merged record is normalized. The join key
// is seat_code; a duplicate code in either feed is last-write-wins.
//
// Trip records with no matching template seat cannot be resolved to a
// grid position. They are returned as orphans for the caller to log and
// are not placed in the view.
func Build(carriageID int64, declared models.Layout, template, trip []RawSeat) (*models.SeatMapView, []string) {
	byCode := make(map[string]RawSeat, len(trip))
	for _, ts := range trip {
		if code := rawString(ts, "seat_code"); code != "" {
			byCode[code] = ts
		}
	}

	seen := make(map[string]int)
	seats := make([]models.Seat, 0, len(template))
	for _, tpl := range template {
		code := rawString(tpl, "seat_code")
		if code == "" {
			continue
		}

		merged := make(RawSeat, len(tpl)+4)
		for k, v := range tpl {
			merged[k] = v
		}
		if ts, ok := byCode[code]; ok {
			for k, v := range ts {
				merged[k] = v
			}
			delete(byCode, code)
		}

		seat := Normalize(merged)
		if !seat.Placeable() {
			// Templates that ship only a flat seat list carry the
			// position in the code itself.
			if row, col, ok := ParseSeatCode(seat.SeatCode); ok {
				seat.Row, seat.Column = row, col
			}
		}

		if i, dup := seen[code]; dup {
			seats[i] = seat
			continue
		}
		seen[code] = len(seats)
		seats = append(seats, seat)
	}

	orphans := make([]string, 0, len(byCode))
	for code := range byCode {
		orphans = append(orphans, code)
	}
	sort.Strings(orphans)

	sort.Slice(seats, func(i, j int) bool {
		if seats[i].Row != seats[j].Row {
			return seats[i].Row < seats[j].Row
		}
		if seats[i].Column != seats[j].Column {
			return seats[i].Column < seats[j].Column
		}
		return seats[i].SeatCode < seats[j].SeatCode
	})

	return &models.SeatMapView{
		CarriageID: carriageID,
		Layout:     ResolveLayout(declared, seats),
		Seats:      seats,
	}, orphans
}
