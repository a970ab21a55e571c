package services

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/smartrail/booking-checkout/internal/models"
	"github.com/smartrail/booking-checkout/internal/seatmap"
	"github.com/smartrail/booking-checkout/pkg/railapi"
)

// carriageFeed is the slice of the booking backend the session service
// consumes.
type carriageFeed interface {
	ListCarriages(ctx context.Context, tripID int64) ([]models.Carriage, error)
	GetTemplateSeats(ctx context.Context, templateID int64) (*railapi.TemplateResponse, error)
	GetTripSeats(ctx context.Context, carriageID int64) ([]seatmap.RawSeat, error)
}

// BookingSession is the per-user seat-selection state for one trip: the
// carriage list, lazily built seat maps, the current selection and the
// passenger assignments. Selection is scoped to the active carriage and
// cleared whenever the active carriage changes — seat codes are only
// unique within a carriage.
type BookingSession struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	TripID    int64
	Carriages []models.Carriage

	mu               sync.Mutex
	activeCarriageID int64
	seatMaps         map[int64]*models.SeatMapView
	selection        map[string]struct{}
	assignments      map[string]models.PassengerRef
}

// SessionSnapshot is an immutable copy of the checkout-relevant session
// state.
type SessionSnapshot struct {
	SessionID        uuid.UUID
	UserID           uuid.UUID
	TripID           int64
	ActiveCarriageID int64
	Selection        []string
	Assignments      map[string]models.PassengerRef
}

// SessionService owns the booking sessions of this process. Sessions
// live for the duration of the seat-selection screen and are never
// shared between users.
type SessionService struct {
	api    carriageFeed
	cache  *TemplateCache
	logger *logrus.Logger

	mu       sync.RWMutex
	sessions map[uuid.UUID]*BookingSession
}

// NewSessionService creates a new session service
func NewSessionService(api carriageFeed, cache *TemplateCache, logger *logrus.Logger) *SessionService {
	return &SessionService{
		api:      api,
		cache:    cache,
		logger:   logger,
		sessions: make(map[uuid.UUID]*BookingSession),
	}
}

// CreateSession starts a seat-selection session for a trip.
func (s *SessionService) CreateSession(ctx context.Context, userID uuid.UUID, tripID int64) (*BookingSession, error) {
	carriages, err := s.api.ListCarriages(ctx, tripID)
	if err != nil {
		return nil, fmt.Errorf("failed to list carriages: %w", err)
	}

	session := &BookingSession{
		ID:          uuid.New(),
		UserID:      userID,
		TripID:      tripID,
		Carriages:   carriages,
		seatMaps:    make(map[int64]*models.SeatMapView),
		selection:   make(map[string]struct{}),
		assignments: make(map[string]models.PassengerRef),
	}

	s.mu.Lock()
	s.sessions[session.ID] = session
	s.mu.Unlock()

	s.logger.WithFields(logrus.Fields{
		"session_id": session.ID,
		"user_id":    userID,
		"trip_id":    tripID,
		"carriages":  len(carriages),
	}).Info("Booking session created")

	return session, nil
}

// Session returns a session, enforcing ownership.
func (s *SessionService) Session(sessionID, userID uuid.UUID) (*BookingSession, error) {
	s.mu.RLock()
	session, ok := s.sessions[sessionID]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("session not found")
	}
	if session.UserID != userID {
		return nil, fmt.Errorf("unauthorized: session belongs to another user")
	}
	return session, nil
}

// ActivateCarriage makes a carriage the active one and returns its seat
// map, building it on first activation. Switching carriages clears the
// selection and assignments. The template and trip-seat feeds are
// fetched concurrently; the builder waits for both.
func (s *SessionService) ActivateCarriage(ctx context.Context, sessionID, userID uuid.UUID, carriageID int64) (*models.SeatMapView, error) {
	session, err := s.Session(sessionID, userID)
	if err != nil {
		return nil, err
	}

	var carriage *models.Carriage
	for i := range session.Carriages {
		if session.Carriages[i].ID == carriageID {
			carriage = &session.Carriages[i]
			break
		}
	}
	if carriage == nil {
		return nil, fmt.Errorf("carriage %d not in session", carriageID)
	}

	session.mu.Lock()
	if session.activeCarriageID != carriageID {
		session.activeCarriageID = carriageID
		session.selection = make(map[string]struct{})
		session.assignments = make(map[string]models.PassengerRef)
	}
	if view, ok := session.seatMaps[carriageID]; ok {
		session.mu.Unlock()
		return view, nil
	}
	session.mu.Unlock()

	view, err := s.buildSeatMap(ctx, carriage)
	if err != nil {
		return nil, err
	}

	session.mu.Lock()
	session.seatMaps[carriageID] = view
	session.mu.Unlock()

	return view, nil
}

// buildSeatMap joins the two feeds for one carriage. A failed trip-seat
// fetch degrades to an all-available map; a failed template fetch means
// the carriage cannot be rendered at all.
func (s *SessionService) buildSeatMap(ctx context.Context, carriage *models.Carriage) (*models.SeatMapView, error) {
	var (
		wg      sync.WaitGroup
		tpl     *railapi.TemplateResponse
		tplErr  error
		trip    []seatmap.RawSeat
		tripErr error
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		if cached := s.cache.Get(ctx, carriage.SeatTemplateID); cached != nil {
			tpl = cached
			return
		}
		tpl, tplErr = s.api.GetTemplateSeats(ctx, carriage.SeatTemplateID)
		if tplErr == nil {
			s.cache.Set(ctx, carriage.SeatTemplateID, tpl)
		}
	}()
	go func() {
		defer wg.Done()
		trip, tripErr = s.api.GetTripSeats(ctx, carriage.ID)
	}()
	wg.Wait()

	if tplErr != nil {
		return nil, &models.LayoutUnavailableError{CarriageID: carriage.ID, Cause: tplErr}
	}

	degraded := false
	if tripErr != nil {
		s.logger.WithError(tripErr).WithField("carriage_id", carriage.ID).
			Warn("Trip-seat feed failed, seat map degrades to all-available")
		trip = nil
		degraded = true
	}

	view, orphans := seatmap.Build(carriage.ID, tpl.Layout, tpl.Seats, trip)
	view.Degraded = degraded
	if len(orphans) > 0 {
		s.logger.WithFields(logrus.Fields{
			"carriage_id":  carriage.ID,
			"orphan_seats": orphans,
		}).Warn("Trip-seat records without template seats, not placed")
	}
	return view, nil
}

// ToggleSeat adds or removes a seat from the selection. Unknown or
// unavailable seats are a no-op. Returns the selection after the call.
func (s *SessionService) ToggleSeat(sessionID, userID uuid.UUID, seatCode string) ([]string, error) {
	session, err := s.Session(sessionID, userID)
	if err != nil {
		return nil, err
	}

	session.mu.Lock()
	defer session.mu.Unlock()

	view, ok := session.seatMaps[session.activeCarriageID]
	if ok {
		if seat, found := view.SeatByCode(seatCode); found && seat.Available {
			if _, selected := session.selection[seatCode]; selected {
				delete(session.selection, seatCode)
				delete(session.assignments, seatCode)
			} else {
				session.selection[seatCode] = struct{}{}
			}
		}
	}
	return sortedKeys(session.selection), nil
}

// ResetSelection clears the selection and assignments.
func (s *SessionService) ResetSelection(sessionID, userID uuid.UUID) error {
	session, err := s.Session(sessionID, userID)
	if err != nil {
		return err
	}

	session.mu.Lock()
	session.selection = make(map[string]struct{})
	session.assignments = make(map[string]models.PassengerRef)
	session.mu.Unlock()
	return nil
}

// AssignPassenger attaches a passenger to a selected seat. Only seats in
// the current selection may carry an assignment.
func (s *SessionService) AssignPassenger(sessionID, userID uuid.UUID, seatCode string, passenger models.PassengerRef) error {
	session, err := s.Session(sessionID, userID)
	if err != nil {
		return err
	}

	session.mu.Lock()
	defer session.mu.Unlock()

	if _, selected := session.selection[seatCode]; !selected {
		return fmt.Errorf("seat %s is not selected", seatCode)
	}
	session.assignments[seatCode] = passenger
	return nil
}

// Snapshot copies the checkout-relevant state of a session.
func (s *SessionService) Snapshot(sessionID, userID uuid.UUID) (*SessionSnapshot, error) {
	session, err := s.Session(sessionID, userID)
	if err != nil {
		return nil, err
	}

	session.mu.Lock()
	defer session.mu.Unlock()

	assignments := make(map[string]models.PassengerRef, len(session.assignments))
	for code, p := range session.assignments {
		assignments[code] = p
	}
	return &SessionSnapshot{
		SessionID:        session.ID,
		UserID:           session.UserID,
		TripID:           session.TripID,
		ActiveCarriageID: session.activeCarriageID,
		Selection:        sortedKeys(session.selection),
		Assignments:      assignments,
	}, nil
}

// Drop removes a session from the registry.
func (s *SessionService) Drop(sessionID uuid.UUID) {
	s.mu.Lock()
	delete(s.sessions, sessionID)
	s.mu.Unlock()
}

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
