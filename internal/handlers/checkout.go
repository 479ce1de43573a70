package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"tipjar/internal/models"
	"tipjar/internal/payments"
)

// Tips are charged in USD; the hosted checkout page handles everything else.
const tipCurrency = "usd"

const defaultRecentTipsLimit = 10

type CheckoutHandler struct {
	Reconciler *payments.Reconciler
}

func NewCheckoutHandler(rec *payments.Reconciler) *CheckoutHandler {
	return &CheckoutHandler{Reconciler: rec}
}

type CreateSessionRequest struct {
	Amount     float64 `json:"amount"`
	Message    *string `json:"message"`
	TipperName *string `json:"tipper_name"`
	OriginURL  string  `json:"origin_url" binding:"required"`
}

// CreateSession starts a hosted checkout for one tip and returns the
// redirect URL. Checkout errors are returned verbatim to the caller.
func (h *CheckoutHandler) CreateSession(c *gin.Context) {
	var req CreateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}

	result, err := h.Reconciler.StartCheckout(c.Request.Context(),
		req.Amount, tipCurrency, req.Message, req.TipperName, req.OriginURL)
	if err != nil {
		if errors.Is(err, payments.ErrInvalidAmount) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Amount must be greater than 0"})
			return
		}
		log.WithError(err).Error("failed to create checkout session")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"url": result.URL, "session_id": result.SessionID})
}

// GetStatus polls the provider for the session's live state and lets the
// reconciler record a paid transition.
func (h *CheckoutHandler) GetStatus(c *gin.Context) {
	sessionID := c.Param("session_id")

	status, err := h.Reconciler.PollStatus(c.Request.Context(), sessionID)
	if err != nil {
		log.WithError(err).WithField("session_id", sessionID).Error("failed to check payment status")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"session_id":     sessionID,
		"status":         status.Status,
		"payment_status": status.PaymentStatus,
		"amount":         status.Amount,
		"currency":       status.Currency,
	})
}

// Webhook receives the provider's signed event push. The body is read
// raw and handed to signature verification untouched.
func (h *CheckoutHandler) Webhook(c *gin.Context) {
	body, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to read request body"})
		return
	}
	signature := c.GetHeader("Stripe-Signature")

	if err := h.Reconciler.HandleWebhook(c.Request.Context(), body, signature); err != nil {
		if errors.Is(err, payments.ErrMissingSignature) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Missing Stripe signature"})
			return
		}
		log.WithError(err).Error("failed to handle webhook")
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "success"})
}

// RecentTips lists the latest paid tips. A store failure degrades to an
// empty list rather than an error page.
func (h *CheckoutHandler) RecentTips(c *gin.Context) {
	limit := defaultRecentTipsLimit
	if raw := c.Query("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	tips, err := h.Reconciler.RecentTips(c.Request.Context(), limit)
	if err != nil {
		log.WithError(err).Error("failed to list recent tips")
		c.JSON(http.StatusOK, []models.Tip{})
		return
	}

	c.JSON(http.StatusOK, tips)
}
