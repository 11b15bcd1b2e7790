package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/hashworks/buildfarm/model"
)

// @Summary List the build queue, highest score first
// @Produce json
// @Success 200 {array} model.BuildQueueEntry
// @Router /v1/queue [get]
// @Tags V1
func (s *Server) apiV1ListQueue(c *gin.Context) {
	jobs, err := s.Store.ListQueue()
	if err != nil {
		abortWithError(c, "Failed to get build queue from database", err)
		return
	}
	c.JSON(http.StatusOK, jobs)
}

// @Summary Endpoint for the build result handler to report finished builds.
// @Description Moves the build to FULLYBUILT or FAILEDTOBUILD and releases its builder.
// @Produce json
// @Success 200 {object} model.Build
// @Failure 400
// @Failure 404 Build has no dispatched job
// @Failure 409 Cookie does not match the dispatched job
// @Accept json
// @Param id path int true "Build id"
// @Param result body model.BuildResult true "The result of the build"
// @Router /v1/builds/{id}/result [put]
// @Tags V1
func (s *Server) apiV1ReportBuildResult(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	var result model.BuildResult
	if err := c.ShouldBindJSON(&result); err != nil {
		c.AbortWithError(http.StatusBadRequest, err)
		return
	}

	job, err := s.Store.GetJobByBuild(id)
	if err != nil {
		abortWithError(c, "Failed to get job of build", err)
		return
	}
	if !job.IsBound() || job.Cookie != result.Cookie {
		c.AbortWithError(http.StatusConflict, errors.New("Cookie does not match the dispatched job"))
		return
	}

	build, err := s.Store.CompleteBuild(result.Cookie, result.GetBuildState(), result.Notes)
	if err != nil {
		abortWithError(c, "Failed to complete build", err)
		return
	}
	s.Logger.Info("Build finished", "build", build.Id, "state", build.State)
	c.JSON(http.StatusOK, build)
}
