package seatmap

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/smartrail/booking-checkout/internal/models"
)

// seatCodePattern matches codes like "12C": leading row digits followed
// by a single column letter.
var seatCodePattern = regexp.MustCompile(`^(\d+)([A-Za-z])$`)

// ResolveLayout determines the grid dimensions for a carriage. Declared
// non-zero dimensions are used verbatim; otherwise the dimensions are
// inferred as the maxima parsed from seat codes. If nothing can be
// inferred both dimensions stay 0, which the renderer treats as "layout
// unavailable" rather than an error.
func ResolveLayout(declared models.Layout, seats []models.Seat) models.Layout {
	if declared.Rows > 0 && declared.Columns > 0 {
		return declared
	}

	var layout models.Layout
	for _, s := range seats {
		row, col, ok := ParseSeatCode(s.SeatCode)
		if !ok {
			continue
		}
		if row > layout.Rows {
			layout.Rows = row
		}
		if col > layout.Columns {
			layout.Columns = col
		}
	}
	return layout
}

// ParseSeatCode splits a code like "12C" into its row number and 1-based
// column index (A→1, B→2, …). Codes not matching the pattern cannot be
// placed on the grid.
func ParseSeatCode(code string) (row, col int, ok bool) {
	m := seatCodePattern.FindStringSubmatch(code)
	if m == nil {
		return 0, 0, false
	}
	row, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, 0, false
	}
	letter := strings.ToUpper(m[2])
	col = int(letter[0]-'A') + 1
	return row, col, true
}
