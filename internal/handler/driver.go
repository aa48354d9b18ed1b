package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"gotogether/internal/middleware"
	"gotogether/internal/service"
)

// DriverHandler handles HTTP requests for the driver registry.
type DriverHandler struct {
	drivers *service.DriverService
}

// NewDriverHandler creates a new DriverHandler.
func NewDriverHandler(drivers *service.DriverService) *DriverHandler {
	return &DriverHandler{drivers: drivers}
}

// RegisterDriverRequest is the HTTP request body for registering a driver.
type RegisterDriverRequest struct {
	Name   string `json:"name"`
	Phone  string `json:"phone"`
	UserID string `json:"user_id"`
}

// SetActiveRequest is the HTTP request body for toggling a driver.
type SetActiveRequest struct {
	Active *bool `json:"active"`
}

// Register handles POST /v1/drivers
func (h *DriverHandler) Register(c *gin.Context) {
	var req RegisterDriverRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "invalid request body")
		return
	}

	driver, err := h.drivers.Register(c.Request.Context(), middleware.Principal(c), service.RegisterDriverRequest{
		Name:   req.Name,
		Phone:  req.Phone,
		UserID: req.UserID,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusCreated, toDriverResponse(driver))
}

// GetAll handles GET /v1/drivers
func (h *DriverHandler) GetAll(c *gin.Context) {
	drivers, err := h.drivers.List(c.Request.Context(), middleware.Principal(c))
	if err != nil {
		respondError(c, err)
		return
	}

	out := make([]DriverResponse, 0, len(drivers))
	for _, d := range drivers {
		out = append(out, toDriverResponse(d))
	}
	respondJSON(c, http.StatusOK, gin.H{
		"drivers": out,
		"count":   len(out),
	})
}

// SetActive handles PUT /v1/drivers/:id/active
func (h *DriverHandler) SetActive(c *gin.Context) {
	var req SetActiveRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Active == nil {
		respondBadRequest(c, "active is required")
		return
	}

	driver, err := h.drivers.SetActive(c.Request.Context(), middleware.Principal(c), c.Param("id"), *req.Active)
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, toDriverResponse(driver))
}
