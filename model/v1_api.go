package model

// BuilderStatus is a builder as listed by the API.
type BuilderStatus struct {
	Builder
	Dispatchable bool   `json:"dispatchable"`
	Behavior     string `json:"behavior"`
	BuildId      int64  `json:"build_id,omitempty"`
}

type DeletionRequest struct {
	RemovedBy string `json:"removed_by" binding:"required"`
	Comment   string `json:"comment"`
}

// OverrideChange names the overrides to change, omitted fields are kept.
type OverrideChange struct {
	Component *string `json:"component"`
	Section   *string `json:"section"`
	Priority  *string `json:"priority"`
}

// DominationResult counts the publications a domination run superseded.
type DominationResult struct {
	Sources  int `json:"sources"`
	Binaries int `json:"binaries"`
}
