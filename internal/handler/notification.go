package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"gotogether/internal/middleware"
	"gotogether/internal/service"
)

// NotificationHandler handles HTTP requests for notifications.
type NotificationHandler struct {
	notifications *service.NotificationService
}

// NewNotificationHandler creates a new NotificationHandler.
func NewNotificationHandler(notifications *service.NotificationService) *NotificationHandler {
	return &NotificationHandler{notifications: notifications}
}

// ResolveResponse is the HTTP response after accepting or rejecting an assignment.
type ResolveResponse struct {
	Notification NotificationResponse `json:"notification"`
	RideRequest  RideRequestResponse  `json:"ride_request"`
	GroupedRide  GroupedRideResponse  `json:"grouped_ride"`
}

// List handles GET /v1/notifications
func (h *NotificationHandler) List(c *gin.Context) {
	feed, err := h.notifications.ListMine(c.Request.Context(), middleware.Principal(c))
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, gin.H{
		"pending":  toNotificationResponses(feed.Pending),
		"resolved": toNotificationResponses(feed.Resolved),
	})
}

// Accept handles POST /v1/notifications/:id/accept
func (h *NotificationHandler) Accept(c *gin.Context) {
	h.resolve(c, service.DecisionAccept)
}

// Reject handles POST /v1/notifications/:id/reject
func (h *NotificationHandler) Reject(c *gin.Context) {
	h.resolve(c, service.DecisionReject)
}

func (h *NotificationHandler) resolve(c *gin.Context, decision service.Decision) {
	result, err := h.notifications.Resolve(c.Request.Context(), middleware.Principal(c), c.Param("id"), decision)
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, ResolveResponse{
		Notification: toNotificationResponse(result.Notification),
		RideRequest:  toRideRequestResponse(result.Request),
		GroupedRide:  toGroupedRideResponse(result.Group),
	})
}

// MarkRead handles POST /v1/notifications/:id/read
func (h *NotificationHandler) MarkRead(c *gin.Context) {
	n, err := h.notifications.MarkRead(c.Request.Context(), middleware.Principal(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, toNotificationResponse(n))
}
