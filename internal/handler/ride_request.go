package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"gotogether/internal/middleware"
	"gotogether/internal/service"
)

// RideRequestHandler handles HTTP requests for ride requests.
type RideRequestHandler struct {
	requests *service.RideRequestService
}

// NewRideRequestHandler creates a new RideRequestHandler.
func NewRideRequestHandler(requests *service.RideRequestService) *RideRequestHandler {
	return &RideRequestHandler{requests: requests}
}

// SubmitRideRequest is the HTTP request body for submitting a ride request.
type SubmitRideRequest struct {
	Source             *PointJSON `json:"source"`
	SourceAddress      string     `json:"source_address"`
	Destination        *PointJSON `json:"destination"`
	DestinationAddress string     `json:"destination_address"`
	RequestedTime      time.Time  `json:"requested_time"`
	StationDropoff     bool       `json:"station_dropoff"`
	DepartureTime      *time.Time `json:"departure_time,omitempty"`
	PassengerCount     int        `json:"passenger_count"`
	Notes              string     `json:"notes,omitempty"`
}

// Submit handles POST /v1/ride-requests
func (h *RideRequestHandler) Submit(c *gin.Context) {
	var req SubmitRideRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "invalid request body")
		return
	}

	in := service.SubmitRequest{
		SourceAddress:      req.SourceAddress,
		DestinationAddress: req.DestinationAddress,
		RequestedTime:      req.RequestedTime,
		StationDropoff:     req.StationDropoff,
		PassengerCount:     req.PassengerCount,
		Notes:              req.Notes,
	}
	if req.Source != nil {
		in.Source = &service.Point{Lat: req.Source.Lat, Lng: req.Source.Lng}
	}
	if req.Destination != nil {
		in.Destination = &service.Point{Lat: req.Destination.Lat, Lng: req.Destination.Lng}
	}
	if req.DepartureTime != nil {
		in.DepartureTime = *req.DepartureTime
	}

	rideReq, err := h.requests.Submit(c.Request.Context(), middleware.Principal(c), in)
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusCreated, toRideRequestResponse(rideReq))
}

// ListMine handles GET /v1/ride-requests/mine?view=
func (h *RideRequestHandler) ListMine(c *gin.Context) {
	view := service.RequestView(c.DefaultQuery("view", string(service.ViewAll)))

	summaries, err := h.requests.ListMine(c.Request.Context(), middleware.Principal(c), view)
	if err != nil {
		respondError(c, err)
		return
	}

	out := make([]RequestSummaryResponse, 0, len(summaries))
	for _, s := range summaries {
		item := RequestSummaryResponse{Request: toRideRequestResponse(s.Request)}
		if s.Group != nil {
			g := toGroupedRideResponse(s.Group)
			item.Group = &g
		}
		out = append(out, item)
	}

	respondJSON(c, http.StatusOK, gin.H{
		"view":          view,
		"ride_requests": out,
		"count":         len(out),
	})
}

// Stats handles GET /v1/ride-requests/stats
func (h *RideRequestHandler) Stats(c *gin.Context) {
	stats, err := h.requests.Stats(c.Request.Context(), middleware.Principal(c))
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, gin.H{
		"total_rides":   stats.TotalRides,
		"total_savings": stats.TotalSavings,
	})
}

// ListPending handles GET /v1/ride-requests/pending
func (h *RideRequestHandler) ListPending(c *gin.Context) {
	reqs, err := h.requests.ListPending(c.Request.Context(), middleware.Principal(c))
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, gin.H{
		"ride_requests": toRideRequestResponses(reqs),
		"count":         len(reqs),
	})
}

// Get handles GET /v1/ride-requests/:id
func (h *RideRequestHandler) Get(c *gin.Context) {
	rideReq, err := h.requests.Get(c.Request.Context(), middleware.Principal(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, toRideRequestResponse(rideReq))
}

// Cancel handles DELETE /v1/ride-requests/:id
func (h *RideRequestHandler) Cancel(c *gin.Context) {
	rideReq, err := h.requests.Cancel(c.Request.Context(), middleware.Principal(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, toRideRequestResponse(rideReq))
}
