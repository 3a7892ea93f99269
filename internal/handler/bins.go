package handler

import (
	"context"
	"errors"
	"math"
	"net/http"
	"strconv"

	"recycling-bins/internal/apperr"
	"recycling-bins/internal/models"
	"recycling-bins/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// BinQueryService is the read API of the bin service.
type BinQueryService interface {
	ListBins(ctx context.Context, filter models.BinFilter) ([]models.RecyclingBin, error)
	FindNearby(ctx context.Context, q service.NearbyQuery) ([]models.RecyclingBin, error)
}

// BinHandler serves bin listings and proximity searches.
type BinHandler struct {
	service BinQueryService
}

// NewBinHandler creates a new bin handler
func NewBinHandler(svc BinQueryService) *BinHandler {
	return &BinHandler{service: svc}
}

// BinsResponse wraps a list of bins.
type BinsResponse struct {
	Count int                   `json:"count"`
	Bins  []models.RecyclingBin `json:"bins"`
}

// ErrorResponse is returned with every non-2xx status.
type ErrorResponse struct {
	Error string `json:"error"`
}

// ListBins handles GET /bins requests
//
//	@Summary	List recycling bins
//	@Tags		bins
//	@Produce	json
//	@Param		city	query		string	false	"City name"
//	@Param		type	query		string	false	"Canonical bin type"	Enums(Plastic, Paper, Glass, Electronic, Textile, Packaging, Cardboard)
//	@Param		limit	query		int		false	"Maximum results"	default(100)
//	@Success	200		{object}	BinsResponse
//	@Failure	400		{object}	ErrorResponse
//	@Failure	500		{object}	ErrorResponse
//	@Router		/bins [get]
func (h *BinHandler) ListBins(c *gin.Context) {
	limit, ok := intQuery(c, "limit")
	if !ok {
		return
	}

	filter := models.BinFilter{
		City:    c.Query("city"),
		BinType: models.BinType(c.Query("type")),
		Limit:   limit,
	}
	bins, err := h.service.ListBins(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, BinsResponse{Count: len(bins), Bins: bins})
}

// Nearby handles GET /bins/nearby requests
//
//	@Summary	Find recycling bins near a point
//	@Tags		bins
//	@Produce	json
//	@Param		lat		query		number	true	"Latitude"
//	@Param		lon		query		number	true	"Longitude"
//	@Param		radius	query		number	false	"Radius in meters"	default(500)
//	@Param		type	query		string	false	"Canonical bin type"
//	@Param		limit	query		int		false	"Maximum results"	default(100)
//	@Success	200		{object}	BinsResponse
//	@Failure	400		{object}	ErrorResponse
//	@Failure	500		{object}	ErrorResponse
//	@Router		/bins/nearby [get]
func (h *BinHandler) Nearby(c *gin.Context) {
	latStr := c.Query("lat")
	lonStr := c.Query("lon")

	if latStr == "" || lonStr == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "missing required query parameters 'lat' and 'lon'"})
		return
	}

	lat, err := strconv.ParseFloat(latStr, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid latitude format"})
		return
	}

	lon, err := strconv.ParseFloat(lonStr, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid longitude format"})
		return
	}

	var radius float64
	if s := c.Query("radius"); s != "" {
		radius, err = strconv.ParseFloat(s, 64)
		if err != nil || math.IsNaN(radius) || math.IsInf(radius, 0) {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid radius format"})
			return
		}
	}

	limit, ok := intQuery(c, "limit")
	if !ok {
		return
	}

	bins, err := h.service.FindNearby(c.Request.Context(), service.NearbyQuery{
		Latitude:  lat,
		Longitude: lon,
		Radius:    radius,
		BinType:   models.BinType(c.Query("type")),
		Limit:     limit,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, BinsResponse{Count: len(bins), Bins: bins})
}

// intQuery reads an optional integer parameter, answering 400 when it is malformed.
func intQuery(c *gin.Context, name string) (int, bool) {
	s := c.Query(name)
	if s == "" {
		return 0, true
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid " + name + " format"})
		return 0, false
	}
	return n, true
}

func respondError(c *gin.Context, err error) {
	if apperr.IsValidation(err) {
		var appErr *apperr.Error
		errors.As(err, &appErr)
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: appErr.Message})
		return
	}
	log.Error().Err(err).Str("path", c.FullPath()).Msg("request failed")
	c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
}
