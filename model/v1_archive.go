package model

type ArchivePurpose int8
type Pocket int8

const (
	ARCHIVE_PURPOSE_PRIMARY ArchivePurpose = 10
	ARCHIVE_PURPOSE_PARTNER ArchivePurpose = 20
	ARCHIVE_PURPOSE_PPA     ArchivePurpose = 30
	ARCHIVE_PURPOSE_COPY    ArchivePurpose = 40
	ARCHIVE_PURPOSE_DEBUG   ArchivePurpose = 50
)

const (
	POCKET_RELEASE   Pocket = 0
	POCKET_SECURITY  Pocket = 10
	POCKET_UPDATES   Pocket = 20
	POCKET_PROPOSED  Pocket = 30
	POCKET_BACKPORTS Pocket = 40
)

var pocketNames = map[Pocket]string{
	POCKET_RELEASE:   "RELEASE",
	POCKET_SECURITY:  "SECURITY",
	POCKET_UPDATES:   "UPDATES",
	POCKET_PROPOSED:  "PROPOSED",
	POCKET_BACKPORTS: "BACKPORTS",
}

func (p Pocket) String() string {
	if name, ok := pocketNames[p]; ok {
		return name
	}
	return "UNKNOWN"
}

func ParsePocket(name string) (Pocket, bool) {
	for pocket, pocketName := range pocketNames {
		if pocketName == name {
			return pocket, true
		}
	}
	return 0, false
}

var archivePurposeNames = map[ArchivePurpose]string{
	ARCHIVE_PURPOSE_PRIMARY: "PRIMARY",
	ARCHIVE_PURPOSE_PARTNER: "PARTNER",
	ARCHIVE_PURPOSE_PPA:     "PPA",
	ARCHIVE_PURPOSE_COPY:    "COPY",
	ARCHIVE_PURPOSE_DEBUG:   "DEBUG",
}

func (p ArchivePurpose) String() string {
	if name, ok := archivePurposeNames[p]; ok {
		return name
	}
	return "UNKNOWN"
}

func ParseArchivePurpose(name string) (ArchivePurpose, bool) {
	for purpose, purposeName := range archivePurposeNames {
		if purposeName == name {
			return purpose, true
		}
	}
	return 0, false
}

type Archive struct {
	Id                   int64
	Name                 string `xorm:"unique notnull"`
	Purpose              ArchivePurpose
	Private              bool
	RequireVirtualized   bool
	Enabled              bool
	DebugArchiveId       int64
	RestrictedProcessors []string
	RelativeBuildScore   int
	BuilddSecret         string `json:"-"`
}

// IsMain reports whether the archive is one of the distribution's own
// archives, where the component decides the archive a package lives in.
func (a *Archive) IsMain() bool {
	return a.Purpose == ARCHIVE_PURPOSE_PRIMARY || a.Purpose == ARCHIVE_PURPOSE_PARTNER
}

// DebugArchive returns the id of the archive holding this archive's DDEBs.
func (a *Archive) DebugArchive() int64 {
	if a.DebugArchiveId != 0 {
		return a.DebugArchiveId
	}
	return a.Id
}

func (a *Archive) AllowsRestrictedProcessor(name string) bool {
	for _, allowed := range a.RestrictedProcessors {
		if allowed == name {
			return true
		}
	}
	return false
}
