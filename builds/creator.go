// Package builds creates the builds a published source needs.
package builds

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hashworks/buildfarm/model"
	"github.com/hashworks/buildfarm/store"
)

// DEFAULT_ESTIMATED_DURATION is the estimate, in seconds, of a new job.
const DEFAULT_ESTIMATED_DURATION = 300

type Creator struct {
	Store  *store.Store
	Policy ArchitecturePolicy
	Logger *slog.Logger
}

func NewCreator(s *store.Store, policy ArchitecturePolicy, logger *slog.Logger) *Creator {
	if policy == nil {
		policy = HintPolicy{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Creator{Store: s, Policy: policy, Logger: logger}
}

// AvailableArchitectures returns the enabled architectures of a series the
// archive may build on. Restricted processor families need the archive to
// opt in.
func (c *Creator) AvailableArchitectures(distroSeriesId int64, archive *model.Archive) ([]*model.DistroArchSeries, error) {
	archSeries, err := c.Store.ListDistroArchSeries(distroSeriesId)
	if err != nil {
		return nil, err
	}
	processors := make(map[int64]*model.Processor)
	available := make([]*model.DistroArchSeries, 0, len(archSeries))
	for _, das := range archSeries {
		if !das.Enabled {
			continue
		}
		processor, ok := processors[das.ProcessorId]
		if !ok {
			if processor, err = c.Store.GetProcessor(das.ProcessorId); err != nil {
				return nil, fmt.Errorf("failed to get processor of %s: %w", das.ArchTag, err)
			}
			processors[das.ProcessorId] = processor
		}
		if processor.Restricted && !archive.AllowsRestrictedProcessor(processor.Name) {
			continue
		}
		available = append(available, das)
	}
	return available, nil
}

// CreateMissingBuilds queues a build on every architecture the policy picks
// that has no build of the release in the archive yet. Jobs of disabled
// archives are created SUSPENDED.
func (c *Creator) CreateMissingBuilds(ctx context.Context, pub *model.SourcePublication) ([]*model.Build, error) {
	release, err := c.Store.GetSourcePackageRelease(pub.SourcePackageReleaseId)
	if err != nil {
		return nil, err
	}
	archive, err := c.Store.GetArchive(pub.ArchiveId)
	if err != nil {
		return nil, err
	}
	available, err := c.AvailableArchitectures(pub.DistroSeriesId, archive)
	if err != nil {
		return nil, err
	}
	chosen := c.Policy.Select(release, available)

	status := model.JOB_STATUS_WAITING
	if !archive.Enabled {
		status = model.JOB_STATUS_SUSPENDED
	}
	score := Score(pub, release, archive)

	var created []*model.Build
	err = c.Store.Transaction(ctx, func(q *store.Queries) error {
		for _, das := range chosen {
			exists, err := q.HasActiveBuild(release.Id, das.Id, archive.Id)
			if err != nil {
				return err
			}
			if exists {
				continue
			}
			build := &model.Build{
				SourcePackageReleaseId: release.Id,
				DistroArchSeriesId:     das.Id,
				ProcessorId:            das.ProcessorId,
				ArchiveId:              archive.Id,
				Pocket:                 pub.Pocket,
			}
			job := &model.BuildQueueEntry{
				Status:            status,
				LastScore:         score,
				EstimatedDuration: DEFAULT_ESTIMATED_DURATION,
				Virtualized:       archive.RequireVirtualized,
			}
			if err := q.InsertBuildWithJob(build, job); err != nil {
				return err
			}
			created = append(created, build)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	c.Logger.Info("Created builds", "source", release.Name, "version", release.Version, "archive", archive.Name, "builds", len(created), "score", score)
	return created, nil
}
