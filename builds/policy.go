package builds

import (
	"strings"

	"github.com/hashworks/buildfarm/model"
)

// ArchitecturePolicy decides which of the available architectures a source
// release is built on.
type ArchitecturePolicy interface {
	Select(release *model.SourcePackageRelease, available []*model.DistroArchSeries) []*model.DistroArchSeries
}

// HintPolicy follows the Architecture field of the source package:
// "any" and "linux-any" build everywhere, "all" builds on the architecture
// nominated for architecture independent packages, "any-<arch>",
// "linux-<arch>" and plain tags build on that architecture.
type HintPolicy struct{}

func (HintPolicy) Select(release *model.SourcePackageRelease, available []*model.DistroArchSeries) []*model.DistroArchSeries {
	wanted := make(map[int64]bool)
	for _, hint := range strings.Fields(release.ArchitectureHint) {
		for _, das := range available {
			if hintMatches(hint, das) {
				wanted[das.Id] = true
			}
		}
	}

	selected := make([]*model.DistroArchSeries, 0, len(wanted))
	for _, das := range available {
		if wanted[das.Id] {
			selected = append(selected, das)
		}
	}
	return selected
}

func hintMatches(hint string, das *model.DistroArchSeries) bool {
	switch hint {
	case "any", "linux-any":
		return true
	case "all":
		return das.IsNominatedArchIndep
	}
	if arch, ok := strings.CutPrefix(hint, "any-"); ok {
		return arch == das.ArchTag
	}
	if arch, ok := strings.CutPrefix(hint, "linux-"); ok {
		return arch == das.ArchTag
	}
	return hint == das.ArchTag
}
