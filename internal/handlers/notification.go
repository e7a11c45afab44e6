package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/datatypes"

	"github.com/sitegrid-dev/sitegrid/internal/models"
	"github.com/sitegrid-dev/sitegrid/internal/notifications"
	"github.com/sitegrid-dev/sitegrid/internal/types"
	"github.com/sitegrid-dev/sitegrid/internal/utils"
)

type CreateNotificationRequest struct {
	Scope      string         `json:"scope" binding:"required"`
	UserID     uint           `json:"user_id"`
	ProjectID  *uint          `json:"project_id"`
	Role       string         `json:"role"`
	Type       string         `json:"type" binding:"required"`
	Context    string         `json:"context" binding:"required"`
	Priority   string         `json:"priority" binding:"required"`
	Title      string         `json:"title" binding:"required"`
	Message    string         `json:"message" binding:"required"`
	ActionLink string         `json:"action_link"`
	ActionText string         `json:"action_text"`
	ActionIcon string         `json:"action_icon"`
	EntityID   *uint          `json:"entity_id"`
	Data       datatypes.JSON `json:"data"`
}

type NotificationResponse struct {
	ID         uint       `json:"id"`
	Type       string     `json:"type"`
	Context    string     `json:"context"`
	Priority   string     `json:"priority"`
	Title      string     `json:"title"`
	Message    string     `json:"message"`
	ActionLink string     `json:"action_link,omitempty"`
	ActionText string     `json:"action_text,omitempty"`
	ActionIcon string     `json:"action_icon,omitempty"`
	ProjectID  *uint      `json:"project_id,omitempty"`
	EntityID   *uint      `json:"entity_id,omitempty"`
	Read       bool       `json:"read"`
	ReadAt     *time.Time `json:"read_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

func notificationResponse(n models.Notification) NotificationResponse {
	return NotificationResponse{
		ID:         n.ID,
		Type:       string(n.Type),
		Context:    string(n.Context),
		Priority:   n.Priority.String(),
		Title:      n.Title,
		Message:    n.Message,
		ActionLink: n.ActionLink,
		ActionText: n.ActionText,
		ActionIcon: n.ActionIcon,
		ProjectID:  n.ProjectID,
		EntityID:   n.EntityID,
		Read:       n.Read,
		ReadAt:     n.ReadAt,
		CreatedAt:  n.CreatedAt,
	}
}

// CreateNotification accepts any audience scope. The response reports how
// many notifications were persisted; delivery outcomes are never part of it.
func CreateNotification(ctx *gin.Context) {
	var body CreateNotificationRequest

	if err := ctx.BindJSON(&body); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	request, ok := buildCreateRequest(ctx, body, false)
	if !ok {
		return
	}

	created, err := engine.Create(request)

	if err != nil {
		respondCreateError(ctx, err)
		return
	}

	ctx.JSON(http.StatusCreated, gin.H{"created": created})
}

// CreateCriticalAlert is the critical-priority variant: priority and type are
// forced regardless of the request body.
func CreateCriticalAlert(ctx *gin.Context) {
	var body CreateNotificationRequest

	if err := ctx.BindJSON(&body); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	request, ok := buildCreateRequest(ctx, body, true)
	if !ok {
		return
	}

	created, err := engine.CriticalAlert(request)

	if err != nil {
		respondCreateError(ctx, err)
		return
	}

	ctx.JSON(http.StatusCreated, gin.H{"created": created})
}

func buildCreateRequest(ctx *gin.Context, body CreateNotificationRequest, critical bool) (notifications.CreateRequest, bool) {
	priority := types.PriorityCritical

	if !critical {
		var err error
		priority, err = types.ParsePriority(body.Priority)
		if err != nil {
			ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid priority"})
			return notifications.CreateRequest{}, false
		}
	}

	request := notifications.CreateRequest{
		Audience: notifications.Audience{
			Scope:     types.Scope(body.Scope),
			UserID:    body.UserID,
			ProjectID: body.ProjectID,
			Role:      types.Role(body.Role),
		},
		Type:       types.NotificationType(body.Type),
		Context:    types.Context(body.Context),
		Priority:   priority,
		Title:      body.Title,
		Message:    body.Message,
		ActionLink: body.ActionLink,
		ActionText: body.ActionText,
		ActionIcon: body.ActionIcon,
		ProjectID:  body.ProjectID,
		EntityID:   body.EntityID,
		Data:       body.Data,
	}

	return request, true
}

func respondCreateError(ctx *gin.Context, err error) {
	switch {
	case errors.Is(err, notifications.ErrValidation):
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, notifications.ErrUnknownProject):
		ctx.JSON(http.StatusNotFound, gin.H{"error": "Project not found"})
	default:
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create notifications"})
	}
}

// ListNotifications returns one page of the caller's notifications, newest
// first, with optional read/context/priority/project filters.
func ListNotifications(ctx *gin.Context) {
	userID, err := utils.GetCurrentUserID(ctx)

	if err != nil {
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	page, _ := strconv.Atoi(ctx.DefaultQuery("page", "1"))
	size, _ := strconv.Atoi(ctx.DefaultQuery("size", "20"))

	var filters notifications.ListFilters

	if read := ctx.Query("read"); read != "" {
		value := read == "true"
		filters.Read = &value
	}

	if context := ctx.Query("context"); context != "" {
		value := types.Context(context)
		if !value.Valid() {
			ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid context"})
			return
		}
		filters.Context = &value
	}

	if priority := ctx.Query("min_priority"); priority != "" {
		value, err := types.ParsePriority(priority)
		if err != nil {
			ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid priority"})
			return
		}
		filters.MinPriority = &value
	}

	if projectParam := ctx.Query("project_id"); projectParam != "" {
		value, err := strconv.ParseUint(projectParam, 10, 64)
		if err != nil {
			ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid project id"})
			return
		}
		projectID := uint(value)
		filters.ProjectID = &projectID
	}

	results, total, err := engine.ListForUser(userID, page, size, filters)

	if err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve notifications"})
		return
	}

	response := make([]NotificationResponse, 0, len(results))

	for _, notification := range results {
		response = append(response, notificationResponse(notification))
	}

	ctx.JSON(http.StatusOK, gin.H{
		"notifications": response,
		"total":         total,
		"page":          page,
		"size":          size,
	})
}

// GetUnreadSummary returns the caller's unread count with a per-context
// breakdown.
func GetUnreadSummary(ctx *gin.Context) {
	userID, err := utils.GetCurrentUserID(ctx)

	if err != nil {
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	summary, err := engine.UnreadSummary(userID)

	if err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve unread summary"})
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"total":      summary.Total,
		"by_context": summary.PerContext,
	})
}

type MarkAsReadRequest struct {
	IDs []uint `json:"ids" binding:"required"`
}

// MarkAsRead marks one or many notifications read. Foreign ids are silently
// skipped; the response only carries the updated count.
func MarkAsRead(ctx *gin.Context) {
	userID, err := utils.GetCurrentUserID(ctx)

	if err != nil {
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	var body MarkAsReadRequest

	if err := ctx.BindJSON(&body); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	updated, err := engine.MarkAsRead(userID, body.IDs)

	if err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to mark notifications as read"})
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"updated": updated})
}

// MarkOneAsRead marks a single notification read via its path id.
func MarkOneAsRead(ctx *gin.Context) {
	userID, err := utils.GetCurrentUserID(ctx)

	if err != nil {
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	idParam, err := strconv.ParseUint(ctx.Param("notification_id"), 10, 64)

	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid notification id"})
		return
	}

	updated, err := engine.MarkAsRead(userID, []uint{uint(idParam)})

	if err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to mark notification as read"})
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"updated": updated})
}

// CleanupNotifications deletes notifications older than the given number of
// days. Admin only.
func CleanupNotifications(ctx *gin.Context) {
	days, err := strconv.Atoi(ctx.DefaultQuery("days", "90"))

	if err != nil || days < 1 {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid days"})
		return
	}

	deleted, err := engine.CleanupOlderThan(days)

	if err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to clean up notifications"})
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"deleted": deleted})
}

// GetDeliveryStats exposes per-channel delivery outcomes. Admin only; this is
// the only place delivery failures are observable.
func GetDeliveryStats(ctx *gin.Context) {
	stats, err := engine.DeliveryStats()

	if err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve delivery stats"})
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"deliveries": stats})
}
