package model

import "time"

type BuildState int8
type JobStatus int8

const (
	BUILD_STATE_NEEDSBUILD    BuildState = 10
	BUILD_STATE_BUILDING      BuildState = 20
	BUILD_STATE_FULLYBUILT    BuildState = 30
	BUILD_STATE_FAILEDTOBUILD BuildState = 40
	BUILD_STATE_SUPERSEDED    BuildState = 50
)

const (
	JOB_STATUS_WAITING   JobStatus = 10
	JOB_STATUS_RUNNING   JobStatus = 20
	JOB_STATUS_SUSPENDED JobStatus = 30
)

var buildStateNames = map[BuildState]string{
	BUILD_STATE_NEEDSBUILD:    "NEEDSBUILD",
	BUILD_STATE_BUILDING:      "BUILDING",
	BUILD_STATE_FULLYBUILT:    "FULLYBUILT",
	BUILD_STATE_FAILEDTOBUILD: "FAILEDTOBUILD",
	BUILD_STATE_SUPERSEDED:    "SUPERSEDED",
}

// buildStateTransitions lists every edge a build may take. FULLYBUILT,
// FAILEDTOBUILD and SUPERSEDED are terminal.
var buildStateTransitions = map[BuildState][]BuildState{
	BUILD_STATE_NEEDSBUILD: {BUILD_STATE_BUILDING, BUILD_STATE_SUPERSEDED, BUILD_STATE_FAILEDTOBUILD},
	BUILD_STATE_BUILDING:   {BUILD_STATE_FULLYBUILT, BUILD_STATE_FAILEDTOBUILD},
}

func (s BuildState) String() string {
	if name, ok := buildStateNames[s]; ok {
		return name
	}
	return "UNKNOWN"
}

func (s BuildState) CanTransitionTo(next BuildState) bool {
	for _, allowed := range buildStateTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

func (s BuildState) IsTerminal() bool {
	return len(buildStateTransitions[s]) == 0
}

func ParseBuildState(name string) (BuildState, bool) {
	for state, stateName := range buildStateNames {
		if stateName == name {
			return state, true
		}
	}
	return 0, false
}

type Build struct {
	Id                     int64
	SourcePackageReleaseId int64 `xorm:"index notnull"`
	DistroArchSeriesId     int64 `xorm:"index notnull"`
	ProcessorId            int64 `xorm:"index notnull"`
	ArchiveId              int64 `xorm:"index notnull"`
	Pocket                 Pocket
	State                  BuildState `xorm:"index"`
	BuilderId              int64
	FailureNotes           string
	CreatedAt              time.Time `xorm:"created"`
	StartedAt              time.Time
	FinishedAt             time.Time
}

// BuildQueueEntry is the scheduling record of a pending build. BuilderId is
// zero while the job is unbound.
type BuildQueueEntry struct {
	Id                int64
	BuildId           int64 `xorm:"unique notnull"`
	BuilderId         int64 `xorm:"index"`
	Status            JobStatus
	LastScore         int
	EstimatedDuration int // seconds
	Cookie            string
	ProcessorId       int64 `xorm:"index"`
	Virtualized       bool
	CreatedAt         time.Time `xorm:"created"`
	StartedAt         time.Time
}

func (j *BuildQueueEntry) IsBound() bool {
	return j.BuilderId != 0
}
