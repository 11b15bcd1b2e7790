package server

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/hashworks/buildfarm/domination"
	"github.com/hashworks/buildfarm/store"
)

// abortWithError maps store and domination errors to a status code.
func abortWithError(c *gin.Context, message string, err error) {
	status := http.StatusInternalServerError
	var overrideErr *domination.ArchiveOverrideError
	switch {
	case errors.Is(err, store.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, store.ErrInvalidTransition):
		status = http.StatusConflict
	case errors.As(err, &overrideErr):
		status = http.StatusUnprocessableEntity
	}
	c.AbortWithError(status, errors.New(message+": "+err.Error()))
}

func paramID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id < 1 {
		c.AbortWithError(http.StatusBadRequest, errors.New("Invalid id "+c.Param("id")))
		return 0, false
	}
	return id, true
}
