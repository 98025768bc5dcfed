// Content HTTP handlers: day previews, background generation and cache control.
package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/SoulfulBloom/deeptravelcollection-sub001/internal/services"
	"github.com/SoulfulBloom/deeptravelcollection-sub001/internal/sysutil"
)

// GenerationRequest is the JSON payload for POST /generation.
type GenerationRequest struct {
	// DestinationID is the catalog slug.
	DestinationID string `json:"destination_id" binding:"required,max=64" example:"lisbon"`
	// Day selects one day; omitted or 0 regenerates a full itinerary.
	Day int `json:"day" binding:"gte=0" example:"3"`
}

// JobHandle points a client at a background job.
type JobHandle struct {
	JobID string `json:"job_id"`
	URL   string `json:"url"`
}

// ClearCacheResponse reports how many cache entries were dropped.
type ClearCacheResponse struct {
	Scope   string `json:"scope"`
	Removed int    `json:"removed"`
}

var contentRules = []errorRule{
	{services.ErrInvalidDay, http.StatusBadRequest, ErrCodeInvalidDay, ""},
	{services.ErrInvalidScope, http.StatusBadRequest, ErrCodeInvalidScope, "scope must be all or destination (with destination_id)"},
	{services.ErrDestinationNotFound, http.StatusNotFound, ErrCodeNotFound, "destination not found"},
	{services.ErrGenerationUnavailable, http.StatusServiceUnavailable, ErrCodeGenerationUnavailable, ""},
	{services.ErrQueueUnavailable, http.StatusServiceUnavailable, ErrCodeQueueUnavailable, "queue unavailable, retry later"},
}

// contentError treats anything unrecognised as an upstream generation failure.
func contentError(c *gin.Context, err error) {
	failWith(c, err, contentRules, errorRule{status: http.StatusBadGateway, code: ErrCodeGenerationFailed})
}

// GetDayContent godoc
// @ID          getDayContent
// @Summary     Get one itinerary day
// @Description Returns cached day content, generating it on a miss. force_refresh bypasses the cache.
// @Tags        Content
// @Produce     json
// @Param       id             path   string  true   "Destination slug"  example(lisbon)
// @Param       day            path   int     true   "Day number"        minimum(1)
// @Param       force_refresh  query  bool    false  "Regenerate even when cached"
// @Success     200  {object} services.DayContent
// @Failure     400  {object} handlers.ErrorResponse "Bad day"
// @Failure     404  {object} handlers.ErrorResponse "Destination not found"
// @Failure     502  {object} handlers.ErrorResponse "Generation failed"
// @Failure     503  {object} handlers.ErrorResponse "Generation unavailable"
// @Router      /destinations/{id}/days/{day} [get]
func (h *Handlers) GetDayContent(c *gin.Context) {
	day, err := strconv.Atoi(c.Param("day"))
	if err != nil {
		fail(c, http.StatusBadRequest, ErrCodeInvalidDay, "day must be an integer")
		return
	}
	destID := strings.ToLower(strings.TrimSpace(c.Param("id")))
	force := sysutil.IsTruthy(c.Query("force_refresh"))

	dc, err := h.content.GetDayContent(c.Request.Context(), destID, day, force)
	if err != nil {
		contentError(c, err)
		return
	}
	ok(c, http.StatusOK, dc)
}

// EnqueueGeneration godoc
// @ID          enqueueGeneration
// @Summary     Pre-generate day content
// @Description Queues a background job that refreshes cached content for one day or a whole itinerary.
// @Tags        Content
// @Accept      json
// @Produce     json
// @Param       body  body  handlers.GenerationRequest  true  "What to generate"
// @Success     202  {object} handlers.JobHandle
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     404  {object} handlers.ErrorResponse "Destination not found"
// @Failure     503  {object} handlers.ErrorResponse "Generation or queue unavailable"
// @Router      /generation [post]
func (h *Handlers) EnqueueGeneration(c *gin.Context) {
	var req GenerationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "destination_id required")
		return
	}
	destID := strings.ToLower(strings.TrimSpace(req.DestinationID))

	id, err := h.content.EnqueueGeneration(c.Request.Context(), destID, req.Day)
	if err != nil {
		contentError(c, err)
		return
	}
	ok(c, http.StatusAccepted, JobHandle{JobID: id, URL: h.jobURL(id)})
}

// ClearCache godoc
// @ID          clearCache
// @Summary     Clear cached content
// @Tags        Content
// @Produce     json
// @Param       scope           query  string  false  "all or destination"  Enums(all, destination) default(all)
// @Param       destination_id  query  string  false  "Required with scope=destination"
// @Success     200  {object} handlers.ClearCacheResponse
// @Failure     400  {object} handlers.ErrorResponse "Bad scope"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /cache [delete]
func (h *Handlers) ClearCache(c *gin.Context) {
	scope := strings.ToLower(strings.TrimSpace(c.DefaultQuery("scope", services.ScopeAll)))
	destID := strings.ToLower(strings.TrimSpace(c.Query("destination_id")))

	n, err := h.content.ClearCache(c.Request.Context(), scope, destID)
	if err != nil {
		if errors.Is(err, services.ErrInvalidScope) {
			contentError(c, err)
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}
	ok(c, http.StatusOK, ClearCacheResponse{Scope: scope, Removed: n})
}
