// Catalog HTTP handlers.
//
// This file exposes read-only endpoints for the destination catalog:
//   - GET /destinations          (list or keyword search, ETag support)
//   - GET /destinations/{id}     (single destination)
package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/SoulfulBloom/deeptravelcollection-sub001/internal/domain"
	"github.com/SoulfulBloom/deeptravelcollection-sub001/internal/services"
	"github.com/SoulfulBloom/deeptravelcollection-sub001/internal/utils"
)

const (
	defaultSearchLimit = 10
	maxSearchLimit     = 50
)

// ListDestinationsResponse wraps the catalog.
type ListDestinationsResponse struct {
	Destinations []domain.Destination `json:"destinations"`
	Query        string               `json:"query,omitempty"`
}

// ListDestinations godoc
// @ID          listDestinations
// @Summary     List destinations
// @Description Returns the whole catalog, or the best keyword matches when q is set. Supports weak ETag via If-None-Match.
// @Tags        Catalog
// @Produce     json
//
// @Param       q              query   string  false "Keyword search"                 example(beach old town)
// @Param       limit          query   int     false "Max search results"             minimum(1) maximum(50) default(10)
// @Param       If-None-Match  header  string  false "Return 304 if ETag matches"
//
// @Success     200  {object} handlers.ListDestinationsResponse
// @Header      200  {string} ETag "Weak ETag for current catalog"
// @Success     304  {string} string "Not Modified"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /destinations [get]
func (h *Handlers) ListDestinations(c *gin.Context) {
	ctx := c.Request.Context()
	q := strings.TrimSpace(c.Query("q"))

	if q == "" {
		if count, maxTS, err := h.catalog.Stats(ctx); err == nil {
			if weakETag(c, "destinations", count, maxTS) {
				return
			}
		}
		items, err := h.catalog.List(ctx)
		if err != nil {
			fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
			return
		}
		ok(c, http.StatusOK, ListDestinationsResponse{Destinations: items})
		return
	}

	limit := utils.QueryInt(c.Query("limit"), defaultSearchLimit, 1, maxSearchLimit)
	items, err := h.catalog.Search(ctx, q, limit)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
		return
	}
	ok(c, http.StatusOK, ListDestinationsResponse{Destinations: items, Query: q})
}

// GetDestination godoc
// @ID          getDestination
// @Summary     Get a destination
// @Tags        Catalog
// @Produce     json
// @Param       id   path  string  true  "Destination slug"  example(lisbon)
// @Success     200  {object} domain.Destination
// @Failure     404  {object} handlers.ErrorResponse "Destination not found"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /destinations/{id} [get]
func (h *Handlers) GetDestination(c *gin.Context) {
	d, err := h.catalog.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, services.ErrDestinationNotFound) {
			fail(c, http.StatusNotFound, ErrCodeNotFound, "destination not found")
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}
	ok(c, http.StatusOK, d)
}
