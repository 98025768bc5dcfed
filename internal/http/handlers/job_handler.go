package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/SoulfulBloom/deeptravelcollection-sub001/internal/services"
)

func (h *Handlers) jobURL(id string) string {
	return h.basePath + "/jobs/" + id
}

// GetJob godoc
// @ID          getJob
// @Summary     Get a background job
// @Description Returns the live state of a queued job, or its last recorded state after a restart.
// @Tags        Jobs
// @Produce     json
// @Param       id   path  string  true  "Job ID"  format(uuid)
// @Success     200  {object} services.JobView
// @Failure     404  {object} handlers.ErrorResponse "Job not found"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /jobs/{id} [get]
func (h *Handlers) GetJob(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	job, err := h.jobs.Get(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, services.ErrJobNotFound) {
			fail(c, http.StatusNotFound, ErrCodeNotFound, "job not found")
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}
	ok(c, http.StatusOK, job)
}
