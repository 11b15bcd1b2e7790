package model

type BuildResultStatus int8

const (
	BUILD_RESULT_STATUS_INTERNAL_ERROR BuildResultStatus = 0
	BUILD_RESULT_STATUS_TIMEOUT        BuildResultStatus = 10
	BUILD_RESULT_STATUS_FAILED         BuildResultStatus = 20
	BUILD_RESULT_STATUS_SUCCESS        BuildResultStatus = 30
)

// BuildResult is what the external build-result handler reports for a
// dispatched job once the worker finished it.
type BuildResult struct {
	Cookie string            `json:"cookie" binding:"required"`
	Status BuildResultStatus `json:"status"`
	Notes  string            `json:"notes"`
}

func (r *BuildResult) GetBuildState() BuildState {
	switch r.Status {
	case BUILD_RESULT_STATUS_SUCCESS:
		return BUILD_STATE_FULLYBUILT
	default:
		return BUILD_STATE_FAILEDTOBUILD
	}
}
