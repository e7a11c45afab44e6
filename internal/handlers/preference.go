package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/sitegrid-dev/sitegrid/internal/models"
	"github.com/sitegrid-dev/sitegrid/internal/types"
	"github.com/sitegrid-dev/sitegrid/internal/utils"
)

type PreferenceResponse struct {
	Context      string `json:"context"`
	InAppEnabled bool   `json:"in_app_enabled"`
	EmailEnabled bool   `json:"email_enabled"`
	MinPriority  string `json:"min_priority"`
}

type UpdatePreferenceRequest struct {
	InAppEnabled *bool  `json:"in_app_enabled" binding:"required"`
	EmailEnabled *bool  `json:"email_enabled" binding:"required"`
	MinPriority  string `json:"min_priority" binding:"required"`
}

func preferenceResponse(pref models.NotificationPreference) PreferenceResponse {
	return PreferenceResponse{
		Context:      string(pref.Context),
		InAppEnabled: pref.InAppEnabled,
		EmailEnabled: pref.EmailEnabled,
		MinPriority:  pref.MinPriority.String(),
	}
}

// GetPreferences returns the caller's per-context preferences, materializing
// defaults for contexts without a row yet.
func GetPreferences(ctx *gin.Context) {
	userID, err := utils.GetCurrentUserID(ctx)

	if err != nil {
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	prefs, err := engine.Preferences().GetAll(userID)

	if err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve preferences"})
		return
	}

	response := make([]PreferenceResponse, 0, len(prefs))

	for _, pref := range prefs {
		response = append(response, preferenceResponse(pref))
	}

	ctx.JSON(http.StatusOK, gin.H{"preferences": response})
}

// UpdatePreference replaces the caller's preference for one context.
func UpdatePreference(ctx *gin.Context) {
	userID, err := utils.GetCurrentUserID(ctx)

	if err != nil {
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	context := types.Context(ctx.Param("context"))

	if !context.Valid() {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid context"})
		return
	}

	var body UpdatePreferenceRequest

	if err := ctx.BindJSON(&body); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	minPriority, err := types.ParsePriority(body.MinPriority)

	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid priority"})
		return
	}

	pref, err := engine.Preferences().Update(userID, context, *body.InAppEnabled, *body.EmailEnabled, minPriority)

	if err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update preference"})
		return
	}

	ctx.JSON(http.StatusOK, preferenceResponse(pref))
}
