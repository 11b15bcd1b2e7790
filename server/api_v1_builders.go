package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/hashworks/buildfarm/dispatcher"
	"github.com/hashworks/buildfarm/model"
)

// @Summary List builders and what they are doing
// @Produce json
// @Success 200 {array} model.BuilderStatus
// @Router /v1/builders [get]
// @Tags V1
func (s *Server) apiV1ListBuilders(c *gin.Context) {
	builders, err := s.Store.ListBuilders()
	if err != nil {
		abortWithError(c, "Failed to get builders from database", err)
		return
	}

	statuses := make([]model.BuilderStatus, 0, len(builders))
	for _, builder := range builders {
		behavior, err := s.Dispatcher.BehaviorOf(builder)
		if err != nil {
			abortWithError(c, "Failed to get current job of builder "+builder.Name, err)
			return
		}
		status := model.BuilderStatus{Builder: *builder, Dispatchable: builder.IsDispatchable(), Behavior: "IDLE"}
		if building, ok := behavior.(*dispatcher.BuildingBehavior); ok {
			status.Behavior = "BUILDING"
			status.BuildId = building.Build.Id
		}
		statuses = append(statuses, status)
	}

	c.JSON(http.StatusOK, statuses)
}

// @Summary Re-enable a failed builder
// @Success 204
// @Failure 404
// @Param name path string true "Builder name"
// @Router /v1/builders/{name}/enable [post]
// @Tags V1
func (s *Server) apiV1EnableBuilder(c *gin.Context) {
	builder, err := s.Store.GetBuilderByName(c.Param("name"))
	if err != nil {
		abortWithError(c, "Failed to get builder from database", err)
		return
	}
	if err := s.Store.EnableBuilder(builder.Id); err != nil {
		abortWithError(c, "Failed to enable builder", err)
		return
	}
	s.Logger.Info("Enabled builder", "builder", builder.Name)
	c.Status(http.StatusNoContent)
}

// @Summary Abort the build running on a builder
// @Description The abort is requested asynchronously, the builder turns idle once its status is polled.
// @Success 202
// @Failure 404
// @Failure 409 Builder is idle
// @Param name path string true "Builder name"
// @Router /v1/builders/{name}/abort [post]
// @Tags V1
func (s *Server) apiV1AbortBuilder(c *gin.Context) {
	builder, err := s.Store.GetBuilderByName(c.Param("name"))
	if err != nil {
		abortWithError(c, "Failed to get builder from database", err)
		return
	}
	behavior, err := s.Dispatcher.BehaviorOf(builder)
	if err != nil {
		abortWithError(c, "Failed to get current job of builder", err)
		return
	}
	if _, ok := behavior.(*dispatcher.IdleBehavior); ok {
		c.AbortWithError(http.StatusConflict, errors.New("Builder "+builder.Name+" is idle"))
		return
	}

	s.Dispatcher.RequestAbort(c.Request.Context(), builder)
	c.Status(http.StatusAccepted)
}
