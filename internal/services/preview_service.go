package services

import (
	"context"
	"fmt"
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/smartrail/booking-checkout/internal/models"
	"github.com/smartrail/booking-checkout/pkg/railapi"
)

// previewFeed is the slice of the booking backend the preview engine
// consumes.
type previewFeed interface {
	PreviewOrder(ctx context.Context, req railapi.PreviewRequest) (*railapi.PreviewResponse, error)
	GetTrip(ctx context.Context, tripID int64) (*models.Trip, error)
	GetRoute(ctx context.Context, routeID int64) (*models.Route, error)
}

// PreviewService asks the booking backend to price and validate a seat
// selection. The backend is the sole authority on prices and on seats
// taken since the map was loaded; this service only reshapes the
// response for display.
type PreviewService struct {
	api    previewFeed
	logger *logrus.Logger
}

// NewPreviewService creates a new preview service
func NewPreviewService(api previewFeed, logger *logrus.Logger) *PreviewService {
	return &PreviewService{api: api, logger: logger}
}

// Preview builds an OrderPreview for the given selection. Assignments
// are optional at this stage; known passenger ids are forwarded so the
// backend can validate them. Backend rejections surface as
// *models.PreviewRejectedError with the original message.
func (s *PreviewService) Preview(ctx context.Context, tripID int64, selection []string, assignments map[string]models.PassengerRef) (*models.OrderPreview, error) {
	if len(selection) == 0 {
		return nil, fmt.Errorf("no seats selected")
	}

	req := railapi.PreviewRequest{TripID: tripID}
	for _, code := range selection {
		item := railapi.PreviewItem{SeatCode: code}
		if p, ok := assignments[code]; ok {
			id := p.ID
			item.PassengerID = &id
		}
		req.Items = append(req.Items, item)
	}

	resp, err := s.api.PreviewOrder(ctx, req)
	if err != nil {
		if backendErr, ok := err.(*railapi.BackendError); ok {
			return nil, &models.PreviewRejectedError{Message: backendErr.Message}
		}
		return nil, fmt.Errorf("preview request failed: %w", err)
	}

	preview := &models.OrderPreview{
		TripID:      resp.TripID,
		Seats:       resp.Items,
		TotalAmount: resp.TotalAmount,
	}
	if preview.TripID == 0 {
		preview.TripID = tripID
	}

	s.enrichTripHeader(ctx, preview)
	return preview, nil
}

// enrichTripHeader fills in the route label and departure time. Best
// effort: the preview stands on its own if the lookups fail.
func (s *PreviewService) enrichTripHeader(ctx context.Context, preview *models.OrderPreview) {
	trip, err := s.api.GetTrip(ctx, preview.TripID)
	if err != nil {
		s.logger.WithError(err).WithField("trip_id", preview.TripID).Debug("Trip header lookup failed")
		return
	}
	preview.DepartureTime = trip.DepartureTime
	preview.TripLabel = fmt.Sprintf("Route #%d", trip.RouteID)

	if route, err := s.api.GetRoute(ctx, trip.RouteID); err == nil && route.Origin != "" {
		preview.TripLabel = fmt.Sprintf("%s → %s", route.Origin, route.Destination)
	}
}

// MissingAssignments returns the selected seats that have no passenger
// assigned, sorted. Checkout may only proceed when this is empty; the
// caller reports the exact seats, not just "incomplete".
func MissingAssignments(selection []string, assignments map[string]models.PassengerRef) []string {
	var missing []string
	for _, code := range selection {
		if _, ok := assignments[code]; !ok {
			missing = append(missing, code)
		}
	}
	sort.Strings(missing)
	return missing
}
