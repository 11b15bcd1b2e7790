package model

import "strings"

type Processor struct {
	Id         int64
	Name       string `xorm:"unique notnull"`
	Restricted bool
}

type DistroSeries struct {
	Id   int64
	Name string `xorm:"unique notnull"`
}

// Suite names the series pocket, "noble" for RELEASE and "noble-security"
// for the others.
func (s *DistroSeries) Suite(pocket Pocket) string {
	if pocket == POCKET_RELEASE {
		return s.Name
	}
	return s.Name + "-" + strings.ToLower(pocket.String())
}

type DistroArchSeries struct {
	Id                   int64
	DistroSeriesId       int64  `xorm:"index notnull"`
	ArchTag              string `xorm:"notnull"`
	ProcessorId          int64  `xorm:"notnull"`
	Enabled              bool
	IsNominatedArchIndep bool
	ChrootSHA1           string `xorm:"'chroot_sha1'"`
	ChrootURL            string `xorm:"'chroot_url'"`
}
