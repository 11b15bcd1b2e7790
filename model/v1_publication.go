package model

import "time"

type PublishingStatus int8
type BinaryPriority int8

const (
	PUBLISHING_STATUS_PENDING    PublishingStatus = 10
	PUBLISHING_STATUS_PUBLISHED  PublishingStatus = 20
	PUBLISHING_STATUS_SUPERSEDED PublishingStatus = 30
	PUBLISHING_STATUS_DELETED    PublishingStatus = 40
	PUBLISHING_STATUS_OBSOLETE   PublishingStatus = 50
)

const (
	PRIORITY_EXTRA     BinaryPriority = 10
	PRIORITY_OPTIONAL  BinaryPriority = 20
	PRIORITY_STANDARD  BinaryPriority = 30
	PRIORITY_IMPORTANT BinaryPriority = 40
	PRIORITY_REQUIRED  BinaryPriority = 50
)

// ActivePublishingStatuses are the statuses of publications that still take
// part in domination.
var ActivePublishingStatuses = []PublishingStatus{PUBLISHING_STATUS_PENDING, PUBLISHING_STATUS_PUBLISHED}

var publishingStatusNames = map[PublishingStatus]string{
	PUBLISHING_STATUS_PENDING:    "PENDING",
	PUBLISHING_STATUS_PUBLISHED:  "PUBLISHED",
	PUBLISHING_STATUS_SUPERSEDED: "SUPERSEDED",
	PUBLISHING_STATUS_DELETED:    "DELETED",
	PUBLISHING_STATUS_OBSOLETE:   "OBSOLETE",
}

var publishingStatusTransitions = map[PublishingStatus][]PublishingStatus{
	PUBLISHING_STATUS_PENDING: {
		PUBLISHING_STATUS_PUBLISHED,
		PUBLISHING_STATUS_SUPERSEDED,
		PUBLISHING_STATUS_DELETED,
		PUBLISHING_STATUS_OBSOLETE,
	},
	PUBLISHING_STATUS_PUBLISHED: {
		PUBLISHING_STATUS_SUPERSEDED,
		PUBLISHING_STATUS_DELETED,
		PUBLISHING_STATUS_OBSOLETE,
	},
}

func (s PublishingStatus) String() string {
	if name, ok := publishingStatusNames[s]; ok {
		return name
	}
	return "UNKNOWN"
}

func (s PublishingStatus) IsLive() bool {
	return s == PUBLISHING_STATUS_PENDING || s == PUBLISHING_STATUS_PUBLISHED
}

func (s PublishingStatus) CanTransitionTo(next PublishingStatus) bool {
	for _, allowed := range publishingStatusTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

func ParsePublishingStatus(name string) (PublishingStatus, bool) {
	for status, statusName := range publishingStatusNames {
		if statusName == name {
			return status, true
		}
	}
	return 0, false
}

var priorityNames = map[BinaryPriority]string{
	PRIORITY_EXTRA:     "extra",
	PRIORITY_OPTIONAL:  "optional",
	PRIORITY_STANDARD:  "standard",
	PRIORITY_IMPORTANT: "important",
	PRIORITY_REQUIRED:  "required",
}

func (p BinaryPriority) String() string {
	if name, ok := priorityNames[p]; ok {
		return name
	}
	return "unknown"
}

func ParseBinaryPriority(name string) (BinaryPriority, bool) {
	for priority, priorityName := range priorityNames {
		if priorityName == name {
			return priority, true
		}
	}
	return 0, false
}

// SourcePublication publishes a source release into an archive series pocket.
// SupersededBy holds the dominant source release id.
type SourcePublication struct {
	Id                     int64
	SourcePackageReleaseId int64            `xorm:"index notnull"`
	SourcePackageName      string           `xorm:"index notnull"`
	DistroSeriesId         int64            `xorm:"index notnull"`
	ArchiveId              int64            `xorm:"index notnull"`
	Pocket                 Pocket           `xorm:"index"`
	Component              string           `xorm:"notnull"`
	Section                string           `xorm:"notnull"`
	Status                 PublishingStatus `xorm:"index"`
	SupersededBy           int64
	AncestorId             int64
	DateCreated            time.Time `xorm:"created"`
	DatePublished          time.Time
	DateSuperseded         time.Time
	ScheduledDeletionDate  time.Time
	DateRemoved            time.Time
	RemovedBy              string
	RemovalComment         string
}

// BinaryPublication publishes a binary release on one architecture.
// SupersededBy holds the id of the dominant's build.
type BinaryPublication struct {
	Id                     int64
	BinaryPackageReleaseId int64            `xorm:"index notnull"`
	BinaryPackageName      string           `xorm:"index notnull"`
	DistroArchSeriesId     int64            `xorm:"index notnull"`
	ArchiveId              int64            `xorm:"index notnull"`
	Pocket                 Pocket           `xorm:"index"`
	Component              string           `xorm:"notnull"`
	Section                string           `xorm:"notnull"`
	Status                 PublishingStatus `xorm:"index"`
	Priority               BinaryPriority
	SupersededBy           int64
	AncestorId             int64
	DateCreated            time.Time `xorm:"created"`
	DatePublished          time.Time
	DateSuperseded         time.Time
	ScheduledDeletionDate  time.Time
	DateRemoved            time.Time
	RemovedBy              string
	RemovalComment         string
}

// Overrides are the component, section and (binaries only) priority a
// publication is filed under.
type Overrides struct {
	Component string
	Section   string
	Priority  BinaryPriority
}

func (p *SourcePublication) Overrides() Overrides {
	return Overrides{Component: p.Component, Section: p.Section}
}

func (p *BinaryPublication) Overrides() Overrides {
	return Overrides{Component: p.Component, Section: p.Section, Priority: p.Priority}
}
