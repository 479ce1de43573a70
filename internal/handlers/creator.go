package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"tipjar/internal/models"
	"tipjar/internal/store"
)

type CreatorHandler struct {
	Store store.Store
}

func NewCreatorHandler(s store.Store) *CreatorHandler {
	return &CreatorHandler{Store: s}
}

// GetProfile returns the public creator profile, falling back to the
// defaults while no profile row exists yet.
func (h *CreatorHandler) GetProfile(c *gin.Context) {
	profile, err := h.Store.GetCreatorProfile(c.Request.Context())
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusOK, models.DefaultCreatorProfile())
			return
		}
		log.WithError(err).Error("failed to load creator profile")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Server error"})
		return
	}
	c.JSON(http.StatusOK, profile)
}

type UpdateProfileRequest struct {
	Name        *string            `json:"name"`
	Bio         *string            `json:"bio"`
	AvatarURL   *string            `json:"avatar_url"`
	SocialLinks models.SocialLinks `json:"social_links"`
}

// UpdateProfile merges the supplied fields over the stored profile (or
// the defaults when none exists) and replaces the singleton row.
func (h *CreatorHandler) UpdateProfile(c *gin.Context) {
	var req UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}

	profile := models.DefaultCreatorProfile()
	existing, err := h.Store.GetCreatorProfile(c.Request.Context())
	switch {
	case err == nil:
		profile = *existing
	case !errors.Is(err, store.ErrNotFound):
		log.WithError(err).Error("failed to load creator profile for update")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Server error"})
		return
	}

	if req.Name != nil {
		profile.Name = *req.Name
	}
	if req.Bio != nil {
		profile.Bio = *req.Bio
	}
	if req.AvatarURL != nil {
		profile.AvatarURL = *req.AvatarURL
	}
	if req.SocialLinks != nil {
		profile.SocialLinks = req.SocialLinks
	}

	if err := h.Store.UpsertCreatorProfile(c.Request.Context(), &profile); err != nil {
		log.WithError(err).Error("failed to save creator profile")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Server error"})
		return
	}

	c.JSON(http.StatusOK, profile)
}
