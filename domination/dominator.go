package domination

import (
	"context"
	"fmt"
	"sort"

	version "github.com/knqyf263/go-deb-version"

	"github.com/hashworks/buildfarm/model"
	"github.com/hashworks/buildfarm/store"
)

type ranked[T any] struct {
	pub     T
	id      int64
	version version.Version
}

// rank sorts newest version first; equal versions keep the newest publication
// on top.
func rank[T any](entries []ranked[T]) {
	sort.SliceStable(entries, func(i, j int) bool {
		if c := entries[i].version.Compare(entries[j].version); c != 0 {
			return c > 0
		}
		return entries[i].id > entries[j].id
	})
}

// DominateSources supersedes every live source publication of a pocket that
// is not the newest version of its name. It returns the number of superseded
// publications.
func (e *Engine) DominateSources(ctx context.Context, archiveId int64, distroSeriesId int64, pocket model.Pocket) (int, error) {
	pubs, err := e.Store.LiveSourcePublications(archiveId, distroSeriesId, pocket)
	if err != nil {
		return 0, fmt.Errorf("failed to list source publications: %w", err)
	}

	groups := make(map[string][]ranked[*model.SourcePublication])
	var names []string
	for _, pub := range pubs {
		release, err := e.Store.GetSourcePackageRelease(pub.SourcePackageReleaseId)
		if err != nil {
			return 0, err
		}
		v, err := version.NewVersion(release.Version)
		if err != nil {
			e.Logger.Warn("Failed to parse source version, not dominating it", "publication", pub.Id, "version", release.Version, "error", err)
			continue
		}
		if _, ok := groups[pub.SourcePackageName]; !ok {
			names = append(names, pub.SourcePackageName)
		}
		groups[pub.SourcePackageName] = append(groups[pub.SourcePackageName], ranked[*model.SourcePublication]{pub: pub, id: pub.Id, version: v})
	}

	superseded := 0
	err = e.Store.Transaction(ctx, func(q *store.Queries) error {
		for _, name := range names {
			group := groups[name]
			if len(group) < 2 {
				continue
			}
			rank(group)
			dominant := group[0].pub
			for _, entry := range group[1:] {
				changed, err := q.UpdateSourceStatus(entry.pub, store.StatusChange{
					Status:         model.PUBLISHING_STATUS_SUPERSEDED,
					SupersededBy:   dominant.SourcePackageReleaseId,
					DateSuperseded: e.now(),
				})
				if err != nil {
					return err
				}
				if changed {
					superseded++
				}
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	e.Logger.Info("Dominated sources", "archive", archiveId, "series", distroSeriesId, "pocket", pocket, "superseded", superseded)
	return superseded, nil
}

// DominateBinaries supersedes every live binary publication of an
// architecture that is not the newest version of its name. DDEBs are left out
// and follow their binary.
func (e *Engine) DominateBinaries(ctx context.Context, archiveId int64, distroArchSeriesId int64, pocket model.Pocket) (int, error) {
	pubs, err := e.Store.LiveBinaryPublications(archiveId, distroArchSeriesId, pocket)
	if err != nil {
		return 0, fmt.Errorf("failed to list binary publications: %w", err)
	}

	type entry struct {
		pub     *model.BinaryPublication
		release *model.BinaryPackageRelease
	}
	groups := make(map[string][]ranked[entry])
	var names []string
	for _, pub := range pubs {
		release, err := e.Store.GetBinaryPackageRelease(pub.BinaryPackageReleaseId)
		if err != nil {
			return 0, err
		}
		if release.IsDebug {
			continue
		}
		v, err := version.NewVersion(release.Version)
		if err != nil {
			e.Logger.Warn("Failed to parse binary version, not dominating it", "publication", pub.Id, "version", release.Version, "error", err)
			continue
		}
		if _, ok := groups[pub.BinaryPackageName]; !ok {
			names = append(names, pub.BinaryPackageName)
		}
		groups[pub.BinaryPackageName] = append(groups[pub.BinaryPackageName], ranked[entry]{pub: entry{pub, release}, id: pub.Id, version: v})
	}

	superseded := 0
	err = e.Store.Transaction(ctx, func(q *store.Queries) error {
		for _, name := range names {
			group := groups[name]
			if len(group) < 2 {
				continue
			}
			rank(group)
			dominant := group[0].pub
			for _, loser := range group[1:] {
				moved, err := e.supersedeBinary(q, loser.pub.pub, loser.pub.release, store.StatusChange{
					Status:         model.PUBLISHING_STATUS_SUPERSEDED,
					SupersededBy:   dominant.release.BuildId,
					DateSuperseded: e.now(),
				})
				if err != nil {
					return err
				}
				superseded += moved
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	e.Logger.Info("Dominated binaries", "archive", archiveId, "distro_arch_series", distroArchSeriesId, "pocket", pocket, "superseded", superseded)
	return superseded, nil
}
