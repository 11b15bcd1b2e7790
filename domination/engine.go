// Package domination moves source and binary publications through their
// lifecycle: publishing, superseding, overriding, deleting and obsoleting.
//
// Violated preconditions, like superseding with a debug package, are bugs in
// the caller and panic before anything is written.
package domination

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hashworks/buildfarm/model"
	"github.com/hashworks/buildfarm/store"
)

type Engine struct {
	Store  *store.Store
	Logger *slog.Logger
	now    func() time.Time
}

func New(s *store.Store, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{Store: s, Logger: logger, now: time.Now}
}

func (e *Engine) PublishSource(ctx context.Context, pub *model.SourcePublication) error {
	changed, err := e.Store.UpdateSourceStatus(pub, store.StatusChange{
		Status:        model.PUBLISHING_STATUS_PUBLISHED,
		DatePublished: e.now(),
	})
	if err != nil {
		return err
	}
	if !changed {
		return fmt.Errorf("%w: source publication %d changed concurrently", store.ErrInvalidTransition, pub.Id)
	}
	return nil
}

func (e *Engine) PublishBinary(ctx context.Context, pub *model.BinaryPublication) error {
	changed, err := e.Store.UpdateBinaryStatus(pub, store.StatusChange{
		Status:        model.PUBLISHING_STATUS_PUBLISHED,
		DatePublished: e.now(),
	})
	if err != nil {
		return err
	}
	if !changed {
		return fmt.Errorf("%w: binary publication %d changed concurrently", store.ErrInvalidTransition, pub.Id)
	}
	return nil
}

// SupersedeSource marks a live source publication SUPERSEDED. With a dominant
// the publication records the dominant's source release.
func (e *Engine) SupersedeSource(ctx context.Context, pub *model.SourcePublication, dominant *model.SourcePublication) error {
	change := store.StatusChange{Status: model.PUBLISHING_STATUS_SUPERSEDED, DateSuperseded: e.now()}
	if dominant != nil {
		change.SupersededBy = dominant.SourcePackageReleaseId
	}
	changed, err := e.Store.UpdateSourceStatus(pub, change)
	if err != nil {
		return err
	}
	if !changed {
		return fmt.Errorf("%w: source publication %d changed concurrently", store.ErrInvalidTransition, pub.Id)
	}
	e.Logger.Debug("Superseded source", "publication", pub.Id, "name", pub.SourcePackageName, "superseded_by", change.SupersededBy)
	return nil
}

// SupersedeBinary marks a binary publication SUPERSEDED together with its
// DDEB. Architecture independent publications take every live sibling on the
// other architectures of the series with them. With a dominant the
// publications record the dominant's build.
func (e *Engine) SupersedeBinary(ctx context.Context, pub *model.BinaryPublication, dominant *model.BinaryPublication) error {
	release, err := e.Store.GetBinaryPackageRelease(pub.BinaryPackageReleaseId)
	if err != nil {
		return err
	}
	var dominantRelease *model.BinaryPackageRelease
	if dominant != nil {
		if dominantRelease, err = e.Store.GetBinaryPackageRelease(dominant.BinaryPackageReleaseId); err != nil {
			return err
		}
	}
	checkSupersede(pub, release, dominantRelease)

	change := store.StatusChange{Status: model.PUBLISHING_STATUS_SUPERSEDED, DateSuperseded: e.now()}
	if dominantRelease != nil {
		change.SupersededBy = dominantRelease.BuildId
	}
	return e.Store.Transaction(ctx, func(q *store.Queries) error {
		live := pub.Status.IsLive()
		if _, err := e.supersedeBinary(q, pub, release, change); err != nil {
			return err
		}
		if !live || pub.Status != model.PUBLISHING_STATUS_SUPERSEDED {
			return fmt.Errorf("%w: binary publication %d changed concurrently", store.ErrInvalidTransition, pub.Id)
		}
		return nil
	})
}

func checkSupersede(pub *model.BinaryPublication, release *model.BinaryPackageRelease, dominant *model.BinaryPackageRelease) {
	if release.IsDebug {
		panic(fmt.Sprintf("binary publication %d is a DDEB, supersede its binary instead", pub.Id))
	}
	if dominant != nil && dominant.IsDebug {
		panic(fmt.Sprintf("DDEB %s %s cannot dominate binary publication %d", dominant.Name, dominant.Version, pub.Id))
	}
	if release.ArchitectureSpecific && !pub.Status.IsLive() {
		panic(fmt.Sprintf("binary publication %d is %s, only live publications can be superseded", pub.Id, pub.Status))
	}
}

// supersedeBinary applies change to the publication group of pub and returns
// the number of rows it moved.
func (e *Engine) supersedeBinary(q *store.Queries, pub *model.BinaryPublication, release *model.BinaryPackageRelease, change store.StatusChange) (int, error) {
	targets, err := e.binaryGroup(q, pub, release)
	if err != nil {
		return 0, err
	}
	moved := 0
	for _, target := range targets {
		if !target.Status.IsLive() {
			continue
		}
		changed, err := q.UpdateBinaryStatus(target, change)
		if err != nil {
			return moved, err
		}
		if changed {
			moved++
			e.Logger.Debug("Superseded binary", "publication", target.Id, "name", target.BinaryPackageName, "superseded_by", change.SupersededBy)
		}
	}
	return moved, nil
}

// binaryGroup returns the publications that move together with pub: its live
// architecture independent siblings and the DDEB of each one.
func (e *Engine) binaryGroup(q *store.Queries, pub *model.BinaryPublication, release *model.BinaryPackageRelease) ([]*model.BinaryPublication, error) {
	group := []*model.BinaryPublication{pub}
	if !release.ArchitectureSpecific {
		siblings, err := q.ArchIndepSiblings(pub)
		if err != nil {
			return nil, fmt.Errorf("failed to find siblings of binary publication %d: %w", pub.Id, err)
		}
		for _, sibling := range siblings {
			if sibling.Id != pub.Id {
				group = append(group, sibling)
			}
		}
	}
	if release.DebugPackageId == 0 {
		return group, nil
	}

	archive, err := q.GetArchive(pub.ArchiveId)
	if err != nil {
		return nil, err
	}
	withDebug := group
	for _, member := range group {
		debug, err := q.DebugPublication(member, release, archive)
		if errors.Is(err, store.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to find DDEB of binary publication %d: %w", member.Id, err)
		}
		withDebug = append(withDebug, debug)
	}
	return withDebug, nil
}

// RequestSourceDeletion deletes a source publication and every live binary
// built from it in the same archive, series and pocket.
func (e *Engine) RequestSourceDeletion(ctx context.Context, pub *model.SourcePublication, remover string, comment string) ([]*model.BinaryPublication, error) {
	change := store.StatusChange{
		Status:         model.PUBLISHING_STATUS_DELETED,
		DateRemoved:    e.now(),
		RemovedBy:      remover,
		RemovalComment: comment,
	}
	var deleted []*model.BinaryPublication
	err := e.Store.Transaction(ctx, func(q *store.Queries) error {
		changed, err := q.UpdateSourceStatus(pub, change)
		if err != nil {
			return err
		}
		if !changed {
			return fmt.Errorf("%w: source publication %d changed concurrently", store.ErrInvalidTransition, pub.Id)
		}
		binaries, err := q.PublishedBinariesOfSource(pub)
		if err != nil {
			return err
		}
		seen := make(map[int64]bool, len(binaries))
		for _, binary := range binaries {
			if seen[binary.Id] {
				continue
			}
			moved, err := e.deleteBinary(q, binary, change)
			if err != nil {
				return err
			}
			for _, m := range moved {
				seen[m.Id] = true
			}
			deleted = append(deleted, moved...)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	e.Logger.Info("Deleted source", "publication", pub.Id, "name", pub.SourcePackageName, "binaries", len(deleted), "removed_by", remover)
	return deleted, nil
}

// RequestBinaryDeletion deletes a binary publication and its DDEB.
func (e *Engine) RequestBinaryDeletion(ctx context.Context, pub *model.BinaryPublication, remover string, comment string) ([]*model.BinaryPublication, error) {
	change := store.StatusChange{
		Status:         model.PUBLISHING_STATUS_DELETED,
		DateRemoved:    e.now(),
		RemovedBy:      remover,
		RemovalComment: comment,
	}
	var deleted []*model.BinaryPublication
	err := e.Store.Transaction(ctx, func(q *store.Queries) error {
		var err error
		deleted, err = e.deleteBinary(q, pub, change)
		return err
	})
	if err != nil {
		return nil, err
	}
	e.Logger.Info("Deleted binary", "publication", pub.Id, "name", pub.BinaryPackageName, "removed_by", remover)
	return deleted, nil
}

func (e *Engine) deleteBinary(q *store.Queries, pub *model.BinaryPublication, change store.StatusChange) ([]*model.BinaryPublication, error) {
	changed, err := q.UpdateBinaryStatus(pub, change)
	if err != nil {
		return nil, err
	}
	if !changed {
		return nil, fmt.Errorf("%w: binary publication %d changed concurrently", store.ErrInvalidTransition, pub.Id)
	}
	deleted := []*model.BinaryPublication{pub}

	release, err := q.GetBinaryPackageRelease(pub.BinaryPackageReleaseId)
	if err != nil {
		return nil, err
	}
	if release.DebugPackageId == 0 {
		return deleted, nil
	}
	archive, err := q.GetArchive(pub.ArchiveId)
	if err != nil {
		return nil, err
	}
	debug, err := q.DebugPublication(pub, release, archive)
	if errors.Is(err, store.ErrNotFound) {
		return deleted, nil
	}
	if err != nil {
		return nil, err
	}
	if _, err := q.UpdateBinaryStatus(debug, change); err != nil {
		return nil, err
	}
	return append(deleted, debug), nil
}

// RequestSourceObsolescence marks a source OBSOLETE for immediate removal,
// bypassing domination.
func (e *Engine) RequestSourceObsolescence(ctx context.Context, pub *model.SourcePublication) error {
	changed, err := e.Store.UpdateSourceStatus(pub, store.StatusChange{
		Status:                model.PUBLISHING_STATUS_OBSOLETE,
		ScheduledDeletionDate: e.now(),
	})
	if err != nil {
		return err
	}
	if !changed {
		return fmt.Errorf("%w: source publication %d changed concurrently", store.ErrInvalidTransition, pub.Id)
	}
	return nil
}

func (e *Engine) RequestBinaryObsolescence(ctx context.Context, pub *model.BinaryPublication) error {
	changed, err := e.Store.UpdateBinaryStatus(pub, store.StatusChange{
		Status:                model.PUBLISHING_STATUS_OBSOLETE,
		ScheduledDeletionDate: e.now(),
	})
	if err != nil {
		return err
	}
	if !changed {
		return fmt.Errorf("%w: binary publication %d changed concurrently", store.ErrInvalidTransition, pub.Id)
	}
	return nil
}

// GetNearestSourceAncestor returns the newest publication of the source name
// in one of the statuses, PUBLISHED if none are given, or nil.
func (e *Engine) GetNearestSourceAncestor(name string, archiveId int64, distroSeriesId int64, pocket model.Pocket, statuses ...model.PublishingStatus) (*model.SourcePublication, error) {
	if len(statuses) == 0 {
		statuses = []model.PublishingStatus{model.PUBLISHING_STATUS_PUBLISHED}
	}
	pub, err := e.Store.NearestSourceAncestor(name, archiveId, distroSeriesId, pocket, statuses)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	return pub, err
}

// GetNearestBinaryAncestor is GetNearestSourceAncestor for a binary name on
// one architecture.
func (e *Engine) GetNearestBinaryAncestor(name string, archiveId int64, distroArchSeriesId int64, pocket model.Pocket, statuses ...model.PublishingStatus) (*model.BinaryPublication, error) {
	if len(statuses) == 0 {
		statuses = []model.PublishingStatus{model.PUBLISHING_STATUS_PUBLISHED}
	}
	pub, err := e.Store.NearestBinaryAncestor(name, archiveId, distroArchSeriesId, pocket, statuses)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	return pub, err
}
