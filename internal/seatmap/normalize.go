// Package seatmap merges the static seat-layout template of a carriage
// with its per-trip sale state into one canonical seat map. The backend
// emits several field-name variants for the same concepts, so parsing is
// tolerant by design: missing or malformed fields fall back to safe
// defaults instead of failing.
package seatmap

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/smartrail/booking-checkout/internal/models"
)

// RawSeat is one seat record as decoded from an upstream feed, before
// normalization. Field names are not guaranteed.
type RawSeat map[string]any

// Numeric sale-state codes below this value are open states.
const soldStatusThreshold = 2

// soldStates is the closed set of string statuses treated as sold-like.
var soldStates = map[string]bool{
	"sold":        true,
	"held":        true,
	"reserved":    true,
	"occupied":    true,
	"unavailable": true,
}

// Normalize converts a raw merged seat record into a canonical Seat.
// Availability is computed from the sale-state evidence on the record:
// a sold flag, an order item reference, a sold-at timestamp, a sold-like
// string status, or a numeric status code at or above the threshold.
func Normalize(raw RawSeat) models.Seat {
	seat := models.Seat{
		SeatCode: rawString(raw, "seat_code"),
		Row:      rawInt(raw, "row", "pos_row", "row_number"),
		Column:   rawInt(raw, "col", "pos_col", "column", "position"),
		Class:    normalizeClass(rawString(raw, "class", "seat_class", "seat_type")),
		Price:    rawFloat(raw, "price", "price_override", "base_price", "seat_price"),
	}
	seat.Available = !soldEvidence(raw)
	return seat
}

// soldEvidence applies the sale-state checks in their documented order.
// Any one positive result is authoritative.
func soldEvidence(raw RawSeat) bool {
	if b, ok := raw["sold"].(bool); ok && b {
		return true
	}
	if v, ok := raw["order_item_id"]; ok && v != nil {
		return true
	}
	if v, ok := raw["sold_at"]; ok && v != nil {
		return true
	}

	status := firstPresent(raw, "status", "state", "seat_status", "sale_state")
	if s, ok := status.(string); ok {
		if soldStates[strings.ToLower(s)] {
			return true
		}
		// A string status outside the closed set decides nothing;
		// status_id below still gets its say.
	} else if n, ok := asFloat(status); ok {
		return n >= soldStatusThreshold
	}
	if n, ok := asFloat(raw["status_id"]); ok {
		return n >= soldStatusThreshold
	}
	return false
}

func normalizeClass(s string) models.SeatClass {
	if strings.EqualFold(s, string(models.SeatClassVIP)) {
		return models.SeatClassVIP
	}
	return models.SeatClassStandard
}

func firstPresent(raw RawSeat, keys ...string) any {
	for _, k := range keys {
		if v, ok := raw[k]; ok && v != nil {
			return v
		}
	}
	return nil
}

func rawString(raw RawSeat, keys ...string) string {
	for _, k := range keys {
		switch v := raw[k].(type) {
		case string:
			if v != "" {
				return v
			}
		case float64:
			return strconv.FormatFloat(v, 'f', -1, 64)
		}
	}
	return ""
}

func rawInt(raw RawSeat, keys ...string) int {
	if f, ok := asFloat(firstPresent(raw, keys...)); ok {
		return int(f)
	}
	return 0
}

func rawFloat(raw RawSeat, keys ...string) float64 {
	if f, ok := asFloat(firstPresent(raw, keys...)); ok {
		return f
	}
	return 0
}

// asFloat coerces the numeric shapes a JSON decode can produce.
func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(n, 64)
		return f, err == nil
	}
	return 0, false
}
