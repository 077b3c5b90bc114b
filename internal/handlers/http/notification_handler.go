package http

import (
	"net/http"

	"sprinta/internal/core/domain"
	"sprinta/internal/core/ports"
	"sprinta/internal/core/services"
	"sprinta/pkg/errors"
	"sprinta/pkg/validation"

	"github.com/gin-gonic/gin"
)

const skippedReason = "notification_disabled_by_user"

type NotificationHandler struct {
	service     services.NotificationService
	connections ports.ConnectionTracker
	metrics     NotificationMetrics
	access      accessControl
}

// NewNotificationHandler builds the REST handler. auth and metrics may be nil.
func NewNotificationHandler(
	service services.NotificationService,
	connections ports.ConnectionTracker,
	auth services.AuthService,
	metrics NotificationMetrics,
) *NotificationHandler {
	if metrics == nil {
		metrics = nopMetrics{}
	}
	return &NotificationHandler{
		service:     service,
		connections: connections,
		metrics:     metrics,
		access:      accessControl{auth: auth},
	}
}

var _ ports.NotificationHTTPHandler = (*NotificationHandler)(nil)

func (h *NotificationHandler) SetupRoutes(api *gin.RouterGroup) {
	api.GET("/notifications", h.List)
	api.POST("/notifications", h.Create)
	api.PUT("/notifications", h.Update)
	api.DELETE("/notifications", h.Delete)
	api.GET("/notifications/unread-count", h.UnreadCount)
	api.GET("/notifications/stats", h.Stats)
	api.GET("/notification-preferences", h.GetPreferences)
	api.POST("/notification-preferences", h.SavePreferences)
}

func (h *NotificationHandler) List(c *gin.Context) {
	userID, err := userIDParam(c.Query("userId"))
	if err != nil {
		_ = c.Error(err)
		return
	}
	if err := h.access.authorize(c, userID); err != nil {
		_ = c.Error(err)
		return
	}

	filter := domain.NotificationFilter{
		UserID:     userID,
		UnreadOnly: validation.ParseFlag(c.Query("unreadOnly")),
	}
	if t := c.Query("type"); t != "" {
		if err := validation.ValidateNotificationType(t); err != nil {
			_ = c.Error(errors.NewInvalidInputError(err.Error()))
			return
		}
		filter.Type = domain.NotificationType(t)
	}
	limit, err := validation.ParseLimit(c.Query("limit"))
	if err != nil {
		_ = c.Error(errors.NewInvalidInputError(err.Error()))
		return
	}
	filter.Limit = limit

	list, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		_ = c.Error(err)
		return
	}
	if list == nil {
		list = []*domain.Notification{}
	}
	c.JSON(http.StatusOK, list)
}

// UserID fields accept a JSON string or number; producers send both.
type createRequest struct {
	UserID   domain.UserID          `json:"userId"`
	Type     string                 `json:"type"`
	Title    string                 `json:"title"`
	Message  string                 `json:"message"`
	Metadata map[string]interface{} `json:"metadata"`
}

func (r createRequest) validate() error {
	if r.UserID == "" || r.Type == "" || r.Title == "" || r.Message == "" {
		return errors.NewInvalidInputError("userId, type, title and message are required")
	}
	for _, err := range []error{
		validation.ValidateUserID(string(r.UserID)),
		validation.ValidateNotificationType(r.Type),
		validation.ValidateTitle(r.Title),
		validation.ValidateMessage(r.Message),
	} {
		if err != nil {
			return errors.NewInvalidInputError(err.Error())
		}
	}
	return nil
}

func (h *NotificationHandler) Create(c *gin.Context) {
	var req createRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(errors.NewInvalidInputError("invalid JSON body"))
		return
	}
	if err := req.validate(); err != nil {
		_ = c.Error(err)
		return
	}
	userID := req.UserID
	if err := h.access.authorize(c, userID); err != nil {
		_ = c.Error(err)
		return
	}

	res, err := h.service.Create(c.Request.Context(), domain.NotificationInput{
		UserID:   userID,
		Type:     domain.NotificationType(req.Type),
		Title:    req.Title,
		Message:  req.Message,
		Metadata: req.Metadata,
	})
	if err != nil {
		_ = c.Error(err)
		return
	}

	if res.Skipped {
		h.metrics.NotificationSkipped(domain.NotificationType(req.Type))
		c.JSON(http.StatusOK, gin.H{
			"skipped": true,
			"reason":  skippedReason,
			"message": "User has disabled notifications for this category",
		})
		return
	}
	h.metrics.NotificationCreated(res.Notification.Type)
	c.JSON(http.StatusCreated, res.Notification)
}

type updateRequest struct {
	ID            domain.NotificationID `json:"id"`
	Read          *bool                 `json:"read"`
	MarkAllAsRead bool                  `json:"markAllAsRead"`
	UserID        domain.UserID         `json:"userId"`
}

func (h *NotificationHandler) Update(c *gin.Context) {
	var req updateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(errors.NewInvalidInputError("invalid JSON body"))
		return
	}
	ctx := c.Request.Context()

	if req.MarkAllAsRead {
		userID, err := userIDParam(string(req.UserID))
		if err != nil {
			_ = c.Error(err)
			return
		}
		if err := h.access.authorize(c, userID); err != nil {
			_ = c.Error(err)
			return
		}
		marked, err := h.service.MarkAllRead(ctx, userID)
		if err != nil {
			_ = c.Error(err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "markedCount": marked})
		return
	}

	if req.ID <= 0 {
		_ = c.Error(errors.NewMissingParameterError("id"))
		return
	}
	if err := h.authorizeNotification(c, req.ID); err != nil {
		_ = c.Error(err)
		return
	}

	read := true
	if req.Read != nil {
		read = *req.Read
	}
	n, err := h.service.MarkRead(ctx, req.ID, read)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, n)
}

func (h *NotificationHandler) Delete(c *gin.Context) {
	ctx := c.Request.Context()

	if validation.ParseFlag(c.Query("deleteAll")) {
		userID, err := userIDParam(c.Query("userId"))
		if err != nil {
			_ = c.Error(err)
			return
		}
		if err := h.access.authorize(c, userID); err != nil {
			_ = c.Error(err)
			return
		}
		deleted, err := h.service.DeleteAll(ctx, userID)
		if err != nil {
			_ = c.Error(err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "deletedCount": deleted})
		return
	}

	rawID := c.Query("id")
	if rawID == "" {
		_ = c.Error(errors.NewMissingParameterError("id"))
		return
	}
	id, err := validation.ParseNotificationID(rawID)
	if err != nil {
		_ = c.Error(errors.NewInvalidInputError(err.Error()).WithContext("parameter", "id"))
		return
	}
	if err := h.authorizeNotification(c, domain.NotificationID(id)); err != nil {
		_ = c.Error(err)
		return
	}
	if err := h.service.Delete(ctx, domain.NotificationID(id)); err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// authorizeNotification loads the record to learn its owner. Skipped when
// auth is off so unknown ids still surface as 404 from the service.
func (h *NotificationHandler) authorizeNotification(c *gin.Context, id domain.NotificationID) error {
	if h.access.auth == nil {
		return nil
	}
	n, err := h.service.Get(c.Request.Context(), id)
	if err != nil {
		return err
	}
	return h.access.authorize(c, n.UserID)
}

func (h *NotificationHandler) UnreadCount(c *gin.Context) {
	userID, err := userIDParam(c.Query("userId"))
	if err != nil {
		_ = c.Error(err)
		return
	}
	if err := h.access.authorize(c, userID); err != nil {
		_ = c.Error(err)
		return
	}
	count, err := h.service.UnreadCount(c.Request.Context(), userID)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": count})
}

func (h *NotificationHandler) GetPreferences(c *gin.Context) {
	userID, err := userIDParam(c.Query("userId"))
	if err != nil {
		_ = c.Error(err)
		return
	}
	if err := h.access.authorize(c, userID); err != nil {
		_ = c.Error(err)
		return
	}
	prefs, err := h.service.GetPreferences(c.Request.Context(), userID)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, prefs)
}

type preferencesRequest struct {
	UserID      domain.UserID      `json:"userId"`
	Preferences domain.Preferences `json:"preferences"`
}

func (h *NotificationHandler) SavePreferences(c *gin.Context) {
	var req preferencesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(errors.NewInvalidInputError("invalid JSON body"))
		return
	}
	userID, err := userIDParam(string(req.UserID))
	if err != nil {
		_ = c.Error(err)
		return
	}
	if req.Preferences == nil {
		_ = c.Error(errors.NewMissingParameterError("preferences"))
		return
	}
	if err := h.access.authorize(c, userID); err != nil {
		_ = c.Error(err)
		return
	}

	saved, err := h.service.SavePreferences(c.Request.Context(), userID, req.Preferences)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, saved)
}

func (h *NotificationHandler) Stats(c *gin.Context) {
	c.JSON(http.StatusOK, h.connections.Stats())
}
