package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/hashworks/buildfarm/domination"
	"github.com/hashworks/buildfarm/model"
)

// @Summary Publish a pending source and queue its builds
// @Produce json
// @Success 200 {array} model.Build
// @Failure 404
// @Failure 409 Source is not pending
// @Param id path int true "Source publication id"
// @Router /v1/sources/{id}/publish [post]
// @Tags V1
func (s *Server) apiV1PublishSource(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	pub, err := s.Store.GetSourcePublication(id)
	if err != nil {
		abortWithError(c, "Failed to get source publication", err)
		return
	}
	if err := s.Engine.PublishSource(c.Request.Context(), pub); err != nil {
		abortWithError(c, "Failed to publish source", err)
		return
	}
	created, err := s.Creator.CreateMissingBuilds(c.Request.Context(), pub)
	if err != nil {
		abortWithError(c, "Failed to create builds", err)
		return
	}
	if created == nil {
		created = []*model.Build{}
	}
	c.JSON(http.StatusOK, created)
}

// @Summary Delete a source and the binaries built from it
// @Produce json
// @Success 200 {array} model.BinaryPublication
// @Failure 400
// @Failure 404
// @Failure 409 Source is not live
// @Accept json
// @Param id path int true "Source publication id"
// @Param request body model.DeletionRequest true "Remover and reason"
// @Router /v1/sources/{id}/delete [post]
// @Tags V1
func (s *Server) apiV1DeleteSource(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	var request model.DeletionRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		c.AbortWithError(http.StatusBadRequest, err)
		return
	}
	pub, err := s.Store.GetSourcePublication(id)
	if err != nil {
		abortWithError(c, "Failed to get source publication", err)
		return
	}
	deleted, err := s.Engine.RequestSourceDeletion(c.Request.Context(), pub, request.RemovedBy, request.Comment)
	if err != nil {
		abortWithError(c, "Failed to delete source", err)
		return
	}
	if deleted == nil {
		deleted = []*model.BinaryPublication{}
	}
	c.JSON(http.StatusOK, deleted)
}

// @Summary Mark a source obsolete for immediate removal
// @Success 204
// @Failure 404
// @Failure 409 Source is not live
// @Param id path int true "Source publication id"
// @Router /v1/sources/{id}/obsolete [post]
// @Tags V1
func (s *Server) apiV1ObsoleteSource(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	pub, err := s.Store.GetSourcePublication(id)
	if err != nil {
		abortWithError(c, "Failed to get source publication", err)
		return
	}
	if err := s.Engine.RequestSourceObsolescence(c.Request.Context(), pub); err != nil {
		abortWithError(c, "Failed to obsolete source", err)
		return
	}
	c.Status(http.StatusNoContent)
}

// @Summary Change component or section of a source
// @Description Creates a new pending publication. Nothing happens if the overrides are unchanged.
// @Produce json
// @Success 201 {object} model.SourcePublication
// @Success 204 Overrides unchanged
// @Failure 400
// @Failure 404
// @Failure 422 Component belongs to another archive
// @Accept json
// @Param id path int true "Source publication id"
// @Param change body model.OverrideChange true "New overrides"
// @Router /v1/sources/{id}/override [post]
// @Tags V1
func (s *Server) apiV1OverrideSource(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	var change model.OverrideChange
	if err := c.ShouldBindJSON(&change); err != nil {
		c.AbortWithError(http.StatusBadRequest, err)
		return
	}
	if change.Priority != nil {
		c.AbortWithError(http.StatusBadRequest, errors.New("Sources have no priority"))
		return
	}
	pub, err := s.Store.GetSourcePublication(id)
	if err != nil {
		abortWithError(c, "Failed to get source publication", err)
		return
	}

	created, err := s.Engine.ChangeSourceOverride(c.Request.Context(), pub, domination.OverrideRequest{
		Component: change.Component,
		Section:   change.Section,
	})
	if err != nil {
		abortWithError(c, "Failed to change overrides", err)
		return
	}
	if created == nil {
		c.Status(http.StatusNoContent)
		return
	}
	c.JSON(http.StatusCreated, created)
}

// @Summary Delete a binary and its debug package
// @Produce json
// @Success 200 {array} model.BinaryPublication
// @Failure 400
// @Failure 404
// @Failure 409 Binary is not live
// @Accept json
// @Param id path int true "Binary publication id"
// @Param request body model.DeletionRequest true "Remover and reason"
// @Router /v1/binaries/{id}/delete [post]
// @Tags V1
func (s *Server) apiV1DeleteBinary(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	var request model.DeletionRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		c.AbortWithError(http.StatusBadRequest, err)
		return
	}
	pub, err := s.Store.GetBinaryPublication(id)
	if err != nil {
		abortWithError(c, "Failed to get binary publication", err)
		return
	}
	deleted, err := s.Engine.RequestBinaryDeletion(c.Request.Context(), pub, request.RemovedBy, request.Comment)
	if err != nil {
		abortWithError(c, "Failed to delete binary", err)
		return
	}
	c.JSON(http.StatusOK, deleted)
}

// @Summary Change component, section or priority of a binary
// @Description Creates new pending publications, on every architecture for architecture independent binaries.
// @Produce json
// @Success 201 {array} model.BinaryPublication
// @Success 204 Overrides unchanged
// @Failure 400
// @Failure 404
// @Failure 422 Component belongs to another archive
// @Accept json
// @Param id path int true "Binary publication id"
// @Param change body model.OverrideChange true "New overrides"
// @Router /v1/binaries/{id}/override [post]
// @Tags V1
func (s *Server) apiV1OverrideBinary(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	var change model.OverrideChange
	if err := c.ShouldBindJSON(&change); err != nil {
		c.AbortWithError(http.StatusBadRequest, err)
		return
	}
	request := domination.OverrideRequest{Component: change.Component, Section: change.Section}
	if change.Priority != nil {
		priority, ok := model.ParseBinaryPriority(*change.Priority)
		if !ok {
			c.AbortWithError(http.StatusBadRequest, errors.New("Unknown priority "+*change.Priority))
			return
		}
		request.Priority = &priority
	}
	pub, err := s.Store.GetBinaryPublication(id)
	if err != nil {
		abortWithError(c, "Failed to get binary publication", err)
		return
	}

	created, err := s.Engine.ChangeBinaryOverride(c.Request.Context(), pub, request)
	if err != nil {
		abortWithError(c, "Failed to change overrides", err)
		return
	}
	if created == nil {
		c.Status(http.StatusNoContent)
		return
	}
	c.JSON(http.StatusCreated, created)
}
