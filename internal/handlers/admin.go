package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"tipjar/internal/auth"
	"tipjar/internal/email"
	"tipjar/internal/store"
)

// AdminHandler serves the single-tenant admin surface. There is no
// session layer; every call re-authenticates with the credentials in
// the request body.
type AdminHandler struct {
	Auth        *auth.Service
	Store       store.Store
	Mail        email.Sender
	FrontendURL string
}

func NewAdminHandler(svc *auth.Service, s store.Store, mail email.Sender, frontendURL string) *AdminHandler {
	return &AdminHandler{Auth: svc, Store: s, Mail: mail, FrontendURL: frontendURL}
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

func (h *AdminHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}

	admin, err := h.Auth.Authenticate(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid email or password"})
			return
		}
		log.WithError(err).Error("login failed against credential store")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Server error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"admin":   gin.H{"id": admin.ID, "email": admin.Email},
	})
}

type ChangePasswordRequest struct {
	AdminID         int    `json:"admin_id" binding:"required"`
	CurrentPassword string `json:"current_password" binding:"required"`
	NewPassword     string `json:"new_password" binding:"required"`
}

// ChangePassword applies the new password immediately after
// re-authenticating with the current one.
func (h *AdminHandler) ChangePassword(c *gin.Context) {
	var req ChangePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}

	admin, err := h.Auth.ChangePassword(c.Request.Context(), req.AdminID, req.CurrentPassword, req.NewPassword)
	if err != nil {
		h.respondChangeError(c, err)
		return
	}

	h.sendConfirmation(c, admin.Email)
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Password changed successfully"})
}

// RequestPasswordChange validates like ChangePassword but defers the
// change to email verification: a reset token is issued and mailed.
func (h *AdminHandler) RequestPasswordChange(c *gin.Context) {
	var req ChangePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}

	token, adminEmail, err := h.Auth.RequestPasswordChange(c.Request.Context(), req.AdminID, req.CurrentPassword, req.NewPassword)
	if err != nil {
		h.respondChangeError(c, err)
		return
	}

	if err := h.Mail.SendPasswordChangeVerification(c.Request.Context(), adminEmail, token, h.FrontendURL); err != nil {
		log.WithError(err).Error("failed to send verification email")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to send verification email"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Verification email sent! Check your inbox to complete the password change.",
	})
}

type VerifyPasswordChangeRequest struct {
	Token       string `json:"token" binding:"required"`
	NewPassword string `json:"new_password" binding:"required"`
}

// VerifyPasswordChange redeems a mailed token and installs the new
// password. The confirmation email afterwards is best-effort.
func (h *AdminHandler) VerifyPasswordChange(c *gin.Context) {
	var req VerifyPasswordChangeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}

	adminEmail, err := h.Auth.RedeemResetToken(c.Request.Context(), req.Token, req.NewPassword)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrInvalidToken):
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid or expired token"})
		case errors.Is(err, auth.ErrTokenExpired):
			c.JSON(http.StatusBadRequest, gin.H{"error": "Token has expired"})
		default:
			log.WithError(err).Error("failed to redeem password change token")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to change password"})
		}
		return
	}

	if adminEmail != "" {
		h.sendConfirmation(c, adminEmail)
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Password changed successfully"})
}

func (h *AdminHandler) GetProfile(c *gin.Context) {
	adminID, err := strconv.Atoi(c.Param("admin_id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Admin not found"})
		return
	}

	admin, err := h.Store.GetAdminByID(c.Request.Context(), adminID)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			log.WithError(err).Error("failed to load admin profile")
		}
		c.JSON(http.StatusNotFound, gin.H{"error": "Admin not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"id":         admin.ID,
		"email":      admin.Email,
		"created_at": admin.CreatedAt,
	})
}

// respondChangeError maps the password-change error taxonomy onto HTTP
// statuses without leaking store detail.
func (h *AdminHandler) respondChangeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, auth.ErrAdminNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Admin not found"})
	case errors.Is(err, auth.ErrInvalidCredentials):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Current password is incorrect"})
	case errors.Is(err, auth.ErrPasswordTooShort):
		c.JSON(http.StatusBadRequest, gin.H{"error": "New password must be at least 8 characters"})
	case errors.Is(err, auth.ErrPasswordUnchanged):
		c.JSON(http.StatusBadRequest, gin.H{"error": "New password must be different from current password"})
	default:
		log.WithError(err).Error("password change failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to change password"})
	}
}

// sendConfirmation is fire-and-forget: a failed confirmation email must
// never fail the password change that already happened.
func (h *AdminHandler) sendConfirmation(c *gin.Context, to string) {
	if err := h.Mail.SendPasswordChangedConfirmation(c.Request.Context(), to); err != nil {
		log.WithError(err).WithField("email", to).Warn("failed to send confirmation email")
	}
}
