package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/hashworks/buildfarm/model"
)

// @Summary Enable an archive and resume its suspended jobs
// @Success 204
// @Failure 404
// @Param id path int true "Archive id"
// @Router /v1/archives/{id}/enable [post]
// @Tags V1
func (s *Server) apiV1EnableArchive(c *gin.Context) {
	s.setArchiveEnabled(c, true)
}

// @Summary Disable an archive and suspend its waiting jobs
// @Success 204
// @Failure 404
// @Param id path int true "Archive id"
// @Router /v1/archives/{id}/disable [post]
// @Tags V1
func (s *Server) apiV1DisableArchive(c *gin.Context) {
	s.setArchiveEnabled(c, false)
}

func (s *Server) setArchiveEnabled(c *gin.Context, enabled bool) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	archive, err := s.Store.GetArchive(id)
	if err != nil {
		abortWithError(c, "Failed to get archive", err)
		return
	}
	if err := s.Store.SetArchiveEnabled(archive.Id, enabled); err != nil {
		abortWithError(c, "Failed to update archive", err)
		return
	}
	s.Logger.Info("Changed archive", "archive", archive.Name, "enabled", enabled)
	c.Status(http.StatusNoContent)
}

// @Summary Supersede outdated publications of a series pocket
// @Produce json
// @Success 200 {object} model.DominationResult
// @Failure 400
// @Failure 404
// @Param id path int true "Archive id"
// @Param series query string true "Series name"
// @Param pocket query string false "Pocket, default RELEASE"
// @Router /v1/archives/{id}/dominate [post]
// @Tags V1
func (s *Server) apiV1DominateArchive(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	pocket, ok := model.ParsePocket(c.DefaultQuery("pocket", model.POCKET_RELEASE.String()))
	if !ok {
		c.AbortWithError(http.StatusBadRequest, errors.New("Unknown pocket "+c.Query("pocket")))
		return
	}
	archive, err := s.Store.GetArchive(id)
	if err != nil {
		abortWithError(c, "Failed to get archive", err)
		return
	}
	series, err := s.Store.GetDistroSeriesByName(c.Query("series"))
	if err != nil {
		abortWithError(c, "Failed to get series", err)
		return
	}

	var result model.DominationResult
	if result.Sources, err = s.Engine.DominateSources(c.Request.Context(), archive.Id, series.Id, pocket); err != nil {
		abortWithError(c, "Failed to dominate sources", err)
		return
	}
	archSeries, err := s.Store.ListDistroArchSeries(series.Id)
	if err != nil {
		abortWithError(c, "Failed to get architectures of series", err)
		return
	}
	for _, das := range archSeries {
		superseded, err := s.Engine.DominateBinaries(c.Request.Context(), archive.Id, das.Id, pocket)
		if err != nil {
			abortWithError(c, "Failed to dominate binaries of "+das.ArchTag, err)
			return
		}
		result.Binaries += superseded
	}
	c.JSON(http.StatusOK, result)
}
