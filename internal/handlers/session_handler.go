package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/smartrail/booking-checkout/internal/middleware"
	"github.com/smartrail/booking-checkout/internal/models"
	"github.com/smartrail/booking-checkout/internal/services"
)

// SessionHandler handles HTTP requests for seat-selection sessions
type SessionHandler struct {
	sessions *services.SessionService
	preview  *services.PreviewService
	logger   *logrus.Logger
}

// NewSessionHandler creates a new session handler
func NewSessionHandler(sessions *services.SessionService, preview *services.PreviewService, logger *logrus.Logger) *SessionHandler {
	return &SessionHandler{
		sessions: sessions,
		preview:  preview,
		logger:   logger,
	}
}

// CreateSession handles POST /api/v1/sessions
func (h *SessionHandler) CreateSession(c *gin.Context) {
	var req struct {
		TripID int64 `json:"trip_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"status":  "error",
			"message": "Invalid request format",
			"error":   err.Error(),
		})
		return
	}

	userCtx, _ := middleware.GetUserContext(c)

	session, err := h.sessions.CreateSession(c.Request.Context(), userCtx.UserID, req.TripID)
	if err != nil {
		h.logger.WithError(err).WithField("trip_id", req.TripID).Error("Failed to create booking session")
		c.JSON(http.StatusBadGateway, gin.H{
			"status":  "error",
			"message": "Failed to load trip carriages",
		})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"status": "success",
		"data": gin.H{
			"session_id": session.ID,
			"trip_id":    session.TripID,
			"carriages":  session.Carriages,
		},
	})
}

// ActivateCarriage handles POST /api/v1/sessions/:sessionId/carriages/:carriageId/activate
func (h *SessionHandler) ActivateCarriage(c *gin.Context) {
	sessionID, userCtx, ok := h.sessionParams(c)
	if !ok {
		return
	}

	carriageID, err := strconv.ParseInt(c.Param("carriageId"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"status":  "error",
			"message": "Invalid carriage ID",
		})
		return
	}

	view, err := h.sessions.ActivateCarriage(c.Request.Context(), sessionID, userCtx.UserID, carriageID)
	if err != nil {
		var layoutErr *models.LayoutUnavailableError
		if errors.As(err, &layoutErr) {
			c.JSON(http.StatusBadGateway, gin.H{
				"status":  "error",
				"message": "Seat layout is unavailable for this carriage",
				"code":    "LAYOUT_UNAVAILABLE",
			})
			return
		}
		h.notFoundOrForbidden(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "success",
		"data":   view,
	})
}

// ToggleSeat handles POST /api/v1/sessions/:sessionId/seats/toggle
func (h *SessionHandler) ToggleSeat(c *gin.Context) {
	sessionID, userCtx, ok := h.sessionParams(c)
	if !ok {
		return
	}

	var req struct {
		SeatCode string `json:"seat_code" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"status":  "error",
			"message": "Invalid request format",
			"error":   err.Error(),
		})
		return
	}

	selection, err := h.sessions.ToggleSeat(sessionID, userCtx.UserID, req.SeatCode)
	if err != nil {
		h.notFoundOrForbidden(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "success",
		"data": gin.H{
			"selection": selection,
		},
	})
}

// ResetSelection handles POST /api/v1/sessions/:sessionId/seats/reset
func (h *SessionHandler) ResetSelection(c *gin.Context) {
	sessionID, userCtx, ok := h.sessionParams(c)
	if !ok {
		return
	}

	if err := h.sessions.ResetSelection(sessionID, userCtx.UserID); err != nil {
		h.notFoundOrForbidden(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "success",
		"data": gin.H{
			"selection": []string{},
		},
	})
}

// AssignPassenger handles POST /api/v1/sessions/:sessionId/assignments
func (h *SessionHandler) AssignPassenger(c *gin.Context) {
	sessionID, userCtx, ok := h.sessionParams(c)
	if !ok {
		return
	}

	var req struct {
		SeatCode      string `json:"seat_code" binding:"required"`
		PassengerID   int64  `json:"passenger_id" binding:"required"`
		PassengerName string `json:"passenger_name"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"status":  "error",
			"message": "Invalid request format",
			"error":   err.Error(),
		})
		return
	}

	err := h.sessions.AssignPassenger(sessionID, userCtx.UserID, req.SeatCode, models.PassengerRef{
		ID:   req.PassengerID,
		Name: req.PassengerName,
	})
	if err != nil {
		c.JSON(http.StatusConflict, gin.H{
			"status":  "error",
			"message": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "success"})
}

// Preview handles GET /api/v1/sessions/:sessionId/preview
func (h *SessionHandler) Preview(c *gin.Context) {
	sessionID, userCtx, ok := h.sessionParams(c)
	if !ok {
		return
	}

	snap, err := h.sessions.Snapshot(sessionID, userCtx.UserID)
	if err != nil {
		h.notFoundOrForbidden(c, err)
		return
	}
	if len(snap.Selection) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"status":  "error",
			"message": "No seats selected",
		})
		return
	}

	preview, err := h.preview.Preview(c.Request.Context(), snap.TripID, snap.Selection, snap.Assignments)
	if err != nil {
		var rejected *models.PreviewRejectedError
		if errors.As(err, &rejected) {
			c.JSON(http.StatusConflict, gin.H{
				"status":  "error",
				"message": rejected.Message,
				"code":    "PREVIEW_REJECTED",
			})
			return
		}
		h.logger.WithError(err).Error("Order preview failed")
		c.JSON(http.StatusBadGateway, gin.H{
			"status":  "error",
			"message": "Failed to preview order",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "success",
		"data": gin.H{
			"preview":             preview,
			"missing_assignments": services.MissingAssignments(snap.Selection, snap.Assignments),
		},
	})
}

// DropSession handles DELETE /api/v1/sessions/:sessionId
func (h *SessionHandler) DropSession(c *gin.Context) {
	sessionID, userCtx, ok := h.sessionParams(c)
	if !ok {
		return
	}

	if _, err := h.sessions.Session(sessionID, userCtx.UserID); err != nil {
		h.notFoundOrForbidden(c, err)
		return
	}

	h.sessions.Drop(sessionID)
	c.JSON(http.StatusOK, gin.H{"status": "success"})
}

func (h *SessionHandler) sessionParams(c *gin.Context) (uuid.UUID, middleware.UserContext, bool) {
	sessionID, err := uuid.Parse(c.Param("sessionId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"status":  "error",
			"message": "Invalid session ID",
		})
		return uuid.Nil, middleware.UserContext{}, false
	}

	userCtx, exists := middleware.GetUserContext(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{
			"status":  "error",
			"message": "Authentication required",
		})
		return uuid.Nil, middleware.UserContext{}, false
	}

	return sessionID, userCtx, true
}

func (h *SessionHandler) notFoundOrForbidden(c *gin.Context, err error) {
	c.JSON(http.StatusNotFound, gin.H{
		"status":  "error",
		"message": err.Error(),
	})
}
