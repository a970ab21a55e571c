package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/smartrail/booking-checkout/internal/middleware"
	"github.com/smartrail/booking-checkout/internal/models"
	"github.com/smartrail/booking-checkout/internal/services"
	"github.com/smartrail/booking-checkout/internal/utils"
)

// CheckoutHandler handles HTTP requests for the checkout flow. The
// mobile client relays every navigation event of its embedded browser
// here; the orchestrator decides which ones matter.
type CheckoutHandler struct {
	checkout *services.CheckoutService
	sessions *services.SessionService
	logger   *logrus.Logger
}

// NewCheckoutHandler creates a new checkout handler
func NewCheckoutHandler(checkout *services.CheckoutService, sessions *services.SessionService, logger *logrus.Logger) *CheckoutHandler {
	return &CheckoutHandler{
		checkout: checkout,
		sessions: sessions,
		logger:   logger,
	}
}

// StartCheckout handles POST /api/v1/sessions/:sessionId/checkout
func (h *CheckoutHandler) StartCheckout(c *gin.Context) {
	sessionID, err := uuid.Parse(c.Param("sessionId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"status":  "error",
			"message": "Invalid session ID",
		})
		return
	}

	userCtx, exists := middleware.GetUserContext(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{
			"status":  "error",
			"message": "Authentication required",
		})
		return
	}

	snap, err := h.sessions.Snapshot(sessionID, userCtx.UserID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{
			"status":  "error",
			"message": err.Error(),
		})
		return
	}

	attempt, err := h.checkout.Start(c.Request.Context(), snap)
	if err != nil {
		h.checkoutError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"status": "success",
		"data": gin.H{
			"attempt_id":   attempt.ID,
			"state":        attempt.State,
			"order_id":     attempt.OrderID,
			"approval_url": attempt.ApprovalURL,
		},
	})
}

// NavigationEvent handles POST /api/v1/checkout/:attemptId/navigation
func (h *CheckoutHandler) NavigationEvent(c *gin.Context) {
	attemptID, err := uuid.Parse(c.Param("attemptId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"status":  "error",
			"message": "Invalid attempt ID",
		})
		return
	}

	userCtx, exists := middleware.GetUserContext(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{
			"status":  "error",
			"message": "Authentication required",
		})
		return
	}

	var req struct {
		URL string `json:"url" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"status":  "error",
			"message": "Invalid request format",
			"error":   err.Error(),
		})
		return
	}

	device := utils.ParseUserAgent(c.GetHeader("User-Agent")).Summary()

	attempt, err := h.checkout.HandleNavigation(c.Request.Context(), attemptID, userCtx.UserID, req.URL, device)
	if err != nil {
		if attempt == nil {
			c.JSON(http.StatusNotFound, gin.H{
				"status":  "error",
				"message": err.Error(),
			})
			return
		}
		h.checkoutError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "success",
		"data": gin.H{
			"attempt_id": attempt.ID,
			"state":      attempt.State,
		},
	})
}

// AttemptStatus handles GET /api/v1/checkout/:attemptId
func (h *CheckoutHandler) AttemptStatus(c *gin.Context) {
	attemptID, err := uuid.Parse(c.Param("attemptId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"status":  "error",
			"message": "Invalid attempt ID",
		})
		return
	}

	userCtx, exists := middleware.GetUserContext(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{
			"status":  "error",
			"message": "Authentication required",
		})
		return
	}

	attempt, err := h.checkout.Attempt(attemptID, userCtx.UserID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{
			"status":  "error",
			"message": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "success",
		"data":   attempt,
	})
}

func (h *CheckoutHandler) checkoutError(c *gin.Context, err error) {
	var missing *models.MissingAssignmentError
	if errors.As(err, &missing) {
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"status":  "error",
			"message": "Every selected seat needs a passenger before checkout",
			"code":    "MISSING_ASSIGNMENT",
			"seats":   missing.Seats,
		})
		return
	}

	var stepErr *models.CheckoutStepError
	if errors.As(err, &stepErr) {
		h.logger.WithError(err).WithField("step", stepErr.Step).Warn("Checkout step failed")
		c.JSON(http.StatusBadGateway, gin.H{
			"status":  "error",
			"message": stepErr.Error(),
			"code":    "CHECKOUT_STEP_FAILED",
			"step":    stepErr.Step,
		})
		return
	}

	c.JSON(http.StatusConflict, gin.H{
		"status":  "error",
		"message": err.Error(),
	})
}
