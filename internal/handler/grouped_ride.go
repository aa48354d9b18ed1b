package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"gotogether/internal/domain"
	"gotogether/internal/middleware"
	"gotogether/internal/service"
)

// GroupedRideHandler handles HTTP requests for grouped rides.
type GroupedRideHandler struct {
	grouping  *service.GroupingService
	lifecycle *service.LifecycleService
	ratings   *service.RatingService
}

// NewGroupedRideHandler creates a new GroupedRideHandler.
func NewGroupedRideHandler(
	grouping *service.GroupingService,
	lifecycle *service.LifecycleService,
	ratings *service.RatingService,
) *GroupedRideHandler {
	return &GroupedRideHandler{
		grouping:  grouping,
		lifecycle: lifecycle,
		ratings:   ratings,
	}
}

// CreateGroupedRideRequest is the HTTP request body for grouping ride requests.
type CreateGroupedRideRequest struct {
	RideRequestIDs     []string  `json:"ride_request_ids"`
	DriverID           string    `json:"driver_id"`
	PickupTime         time.Time `json:"pickup_time"`
	PickupLocation     string    `json:"pickup_location"`
	DestinationAddress string    `json:"destination_address"`
	ChargedPrice       float64   `json:"charged_price"`
	ActualPrice        float64   `json:"actual_price,omitempty"`
}

// UpdatePricingRequest is the HTTP request body for repricing a grouped ride.
type UpdatePricingRequest struct {
	ChargedPrice float64 `json:"charged_price"`
	ActualPrice  float64 `json:"actual_price"`
}

// AssignDriverRequest is the HTTP request body for handing a ride to another driver.
type AssignDriverRequest struct {
	DriverID string `json:"driver_id"`
}

// CancelGroupedRideRequest is the HTTP request body for cancelling a grouped ride.
type CancelGroupedRideRequest struct {
	Reason string `json:"reason,omitempty"`
}

// RateRideRequest is the HTTP request body for rating a ride.
type RateRideRequest struct {
	Stars   int    `json:"stars"`
	Comment string `json:"comment,omitempty"`
}

// Create handles POST /v1/grouped-rides
func (h *GroupedRideHandler) Create(c *gin.Context) {
	var req CreateGroupedRideRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "invalid request body")
		return
	}

	details, err := h.grouping.CreateGroup(c.Request.Context(), middleware.Principal(c), service.CreateGroupRequest{
		RequestIDs:         req.RideRequestIDs,
		DriverID:           req.DriverID,
		PickupTime:         req.PickupTime,
		PickupLocation:     req.PickupLocation,
		DestinationAddress: req.DestinationAddress,
		ChargedPrice:       req.ChargedPrice,
		ActualPrice:        req.ActualPrice,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusCreated, toGroupDetailsResponse(details))
}

// List handles GET /v1/grouped-rides?status=&limit=&offset=
func (h *GroupedRideHandler) List(c *gin.Context) {
	filter := domain.GroupFilter{Status: domain.GroupStatus(c.Query("status"))}
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			respondBadRequest(c, "limit must be a number")
			return
		}
		filter.Limit = n
	}
	if v := c.Query("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			respondBadRequest(c, "offset must be a number")
			return
		}
		filter.Offset = n
	}

	groups, err := h.grouping.List(c.Request.Context(), middleware.Principal(c), filter)
	if err != nil {
		respondError(c, err)
		return
	}

	out := make([]GroupedRideResponse, 0, len(groups))
	for _, g := range groups {
		out = append(out, toGroupedRideResponse(g))
	}
	respondJSON(c, http.StatusOK, gin.H{
		"grouped_rides": out,
		"count":         len(out),
	})
}

// Get handles GET /v1/grouped-rides/:id
func (h *GroupedRideHandler) Get(c *gin.Context) {
	details, err := h.grouping.Get(c.Request.Context(), middleware.Principal(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, toGroupDetailsResponse(details))
}

// UpdatePricing handles PUT /v1/grouped-rides/:id/pricing
func (h *GroupedRideHandler) UpdatePricing(c *gin.Context) {
	var req UpdatePricingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "invalid request body")
		return
	}

	g, err := h.grouping.UpdatePricing(c.Request.Context(), middleware.Principal(c), c.Param("id"), req.ChargedPrice, req.ActualPrice)
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, toGroupedRideResponse(g))
}

// AssignDriver handles PUT /v1/grouped-rides/:id/driver
func (h *GroupedRideHandler) AssignDriver(c *gin.Context) {
	var req AssignDriverRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "invalid request body")
		return
	}

	g, err := h.grouping.AssignDriver(c.Request.Context(), middleware.Principal(c), c.Param("id"), req.DriverID)
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, toGroupedRideResponse(g))
}

// Start handles POST /v1/grouped-rides/:id/start
func (h *GroupedRideHandler) Start(c *gin.Context) {
	g, err := h.lifecycle.Start(c.Request.Context(), middleware.Principal(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, toGroupedRideResponse(g))
}

// Complete handles POST /v1/grouped-rides/:id/complete
func (h *GroupedRideHandler) Complete(c *gin.Context) {
	g, err := h.lifecycle.Complete(c.Request.Context(), middleware.Principal(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, toGroupedRideResponse(g))
}

// Cancel handles POST /v1/grouped-rides/:id/cancel
func (h *GroupedRideHandler) Cancel(c *gin.Context) {
	var req CancelGroupedRideRequest
	// The body is optional.
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			respondBadRequest(c, "invalid request body")
			return
		}
	}

	g, err := h.lifecycle.Cancel(c.Request.Context(), middleware.Principal(c), c.Param("id"), req.Reason)
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, toGroupedRideResponse(g))
}

// Rate handles POST /v1/grouped-rides/:id/ratings
func (h *GroupedRideHandler) Rate(c *gin.Context) {
	var req RateRideRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "invalid request body")
		return
	}

	rating, err := h.ratings.Rate(c.Request.Context(), middleware.Principal(c), c.Param("id"), service.RateRequest{
		Stars:   req.Stars,
		Comment: req.Comment,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusCreated, toRatingResponse(rating))
}

// ListRatings handles GET /v1/grouped-rides/:id/ratings
func (h *GroupedRideHandler) ListRatings(c *gin.Context) {
	ratings, err := h.ratings.ListForGroup(c.Request.Context(), middleware.Principal(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	out := make([]RatingResponse, 0, len(ratings))
	for _, r := range ratings {
		out = append(out, toRatingResponse(r))
	}
	respondJSON(c, http.StatusOK, gin.H{
		"ratings": out,
		"count":   len(out),
	})
}
