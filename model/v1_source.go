package model

import "time"

type SourcePackageRelease struct {
	Id               int64
	Name             string `xorm:"index notnull"`
	Version          string `xorm:"notnull"`
	ArchitectureHint string
	Urgency          string
	CreatedAt        time.Time `xorm:"created"`
}

type SourcePackageReleaseFile struct {
	Id                     int64
	SourcePackageReleaseId int64  `xorm:"index notnull"`
	Filename               string `xorm:"notnull"`
	SHA1                   string `xorm:"'sha1' notnull"`
	Size                   int64
}

type BinaryPackageRelease struct {
	Id                   int64
	Name                 string `xorm:"index notnull"`
	Version              string `xorm:"notnull"`
	BuildId              int64  `xorm:"index notnull"`
	ArchitectureSpecific bool
	IsDebug              bool
	DebugPackageId       int64
}
