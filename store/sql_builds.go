package store

import (
	"fmt"
	"time"

	"github.com/hashworks/buildfarm/model"
	"github.com/hashworks/buildfarm/selector"
)

func (q *Queries) GetBuild(id int64) (*model.Build, error) {
	var build model.Build
	if err := q.getByID(id, &build); err != nil {
		return nil, err
	}
	return &build, nil
}

func (q *Queries) GetJob(id int64) (*model.BuildQueueEntry, error) {
	var job model.BuildQueueEntry
	if err := q.getByID(id, &job); err != nil {
		return nil, err
	}
	return &job, nil
}

func (q *Queries) GetJobByBuild(buildId int64) (*model.BuildQueueEntry, error) {
	var job model.BuildQueueEntry
	found, err := q.db.Where("build_id = ?", buildId).Get(&job)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, ErrNotFound
	}
	return &job, nil
}

// ListQueue returns every job ordered the way the selector would consider
// them.
func (q *Queries) ListQueue() ([]*model.BuildQueueEntry, error) {
	var jobs []*model.BuildQueueEntry
	err := q.db.Desc("last_score").Asc("build_id").Find(&jobs)
	return jobs, err
}

// HasActiveBuild reports whether a non-superseded build of the release exists
// for the architecture in the archive.
func (q *Queries) HasActiveBuild(sourcePackageReleaseId int64, distroArchSeriesId int64, archiveId int64) (bool, error) {
	count, err := q.db.
		Where("source_package_release_id = ? AND distro_arch_series_id = ? AND archive_id = ? AND state != ?",
			sourcePackageReleaseId,
			distroArchSeriesId,
			archiveId,
			model.BUILD_STATE_SUPERSEDED).
		Count(new(model.Build))
	return count > 0, err
}

// LoadCandidates returns the unbound waiting jobs for a processor family
// together with the records the selector filters on.
func (q *Queries) LoadCandidates(processorId int64) ([]*selector.Candidate, error) {
	var jobs []*model.BuildQueueEntry
	err := q.db.
		Where("processor_id = ? AND builder_id = ? AND status = ?", processorId, 0, model.JOB_STATUS_WAITING).
		Find(&jobs)
	if err != nil {
		return nil, fmt.Errorf("failed to load waiting jobs: %w", err)
	}

	archives := make(map[int64]*model.Archive)
	candidates := make([]*selector.Candidate, 0, len(jobs))
	for _, job := range jobs {
		build, err := q.GetBuild(job.BuildId)
		if err != nil {
			return nil, fmt.Errorf("failed to load build %d of job %d: %w", job.BuildId, job.Id, err)
		}
		archive, ok := archives[build.ArchiveId]
		if !ok {
			if archive, err = q.GetArchive(build.ArchiveId); err != nil {
				return nil, fmt.Errorf("failed to load archive %d: %w", build.ArchiveId, err)
			}
			archives[build.ArchiveId] = archive
		}
		published := true
		if archive.Private {
			if published, err = q.isSourcePublished(build); err != nil {
				return nil, err
			}
		}
		candidates = append(candidates, &selector.Candidate{
			Job:             job,
			Build:           build,
			Archive:         archive,
			SourcePublished: published,
		})
	}
	return candidates, nil
}

// FamilyLoad counts the usable builders of a processor family and the builds
// currently running on it.
func (q *Queries) FamilyLoad(processorId int64) (selector.FamilyLoad, error) {
	builders, err := q.db.
		Where("processor_id = ? AND active = ? AND builderok = ? AND manual = ?", processorId, true, true, false).
		Count(new(model.Builder))
	if err != nil {
		return selector.FamilyLoad{}, err
	}
	building, err := q.db.
		Where("processor_id = ? AND state = ?", processorId, model.BUILD_STATE_BUILDING).
		Count(new(model.Build))
	if err != nil {
		return selector.FamilyLoad{}, err
	}
	return selector.FamilyLoad{Builders: int(builders), Building: int(building)}, nil
}

func (q *Queries) isSourcePublished(build *model.Build) (bool, error) {
	das, err := q.GetDistroArchSeries(build.DistroArchSeriesId)
	if err != nil {
		return false, err
	}
	count, err := q.db.
		Where("source_package_release_id = ? AND archive_id = ? AND distro_series_id = ? AND status = ?",
			build.SourcePackageReleaseId,
			build.ArchiveId,
			das.DistroSeriesId,
			model.PUBLISHING_STATUS_PUBLISHED).
		Count(new(model.SourcePublication))
	return count > 0, err
}

// CurrentSourcePublication returns the live publication of the build's source
// in its archive and series, or ErrNotFound once it was superseded or removed.
func (q *Queries) CurrentSourcePublication(build *model.Build) (*model.SourcePublication, error) {
	das, err := q.GetDistroArchSeries(build.DistroArchSeriesId)
	if err != nil {
		return nil, err
	}
	var pub model.SourcePublication
	found, err := q.db.
		Where("source_package_release_id = ? AND archive_id = ? AND distro_series_id = ?",
			build.SourcePackageReleaseId,
			build.ArchiveId,
			das.DistroSeriesId).
		In("status", model.PUBLISHING_STATUS_PENDING, model.PUBLISHING_STATUS_PUBLISHED).
		Desc("id").
		Get(&pub)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, ErrNotFound
	}
	return &pub, nil
}

// InsertBuildWithJob stores a new NEEDSBUILD build and its queue entry.
func (q *Queries) InsertBuildWithJob(build *model.Build, job *model.BuildQueueEntry) error {
	build.State = model.BUILD_STATE_NEEDSBUILD
	if _, err := q.db.Insert(build); err != nil {
		return fmt.Errorf("failed to insert build: %w", err)
	}
	job.BuildId = build.Id
	job.ProcessorId = build.ProcessorId
	if _, err := q.db.Insert(job); err != nil {
		return fmt.Errorf("failed to insert build queue entry: %w", err)
	}
	return nil
}

// DropJob moves a NEEDSBUILD build to a terminal state and removes its unbound
// job.
func (q *Queries) DropJob(job *model.BuildQueueEntry, state model.BuildState, notes string) error {
	if !model.BUILD_STATE_NEEDSBUILD.CanTransitionTo(state) || state == model.BUILD_STATE_BUILDING {
		return fmt.Errorf("%w: NEEDSBUILD -> %s", ErrInvalidTransition, state)
	}
	updated, err := q.db.
		Where("id = ? AND state = ?", job.BuildId, model.BUILD_STATE_NEEDSBUILD).
		Cols("state", "failure_notes", "finished_at").
		Update(&model.Build{State: state, FailureNotes: notes, FinishedAt: time.Now()})
	if err != nil {
		return fmt.Errorf("failed to update build %d: %w", job.BuildId, err)
	}
	if updated == 0 {
		return fmt.Errorf("%w: build %d is no longer NEEDSBUILD", ErrInvalidTransition, job.BuildId)
	}
	if _, err := q.db.Where("id = ? AND builder_id = ?", job.Id, 0).Delete(new(model.BuildQueueEntry)); err != nil {
		return fmt.Errorf("failed to delete job %d: %w", job.Id, err)
	}
	return nil
}

// BindJob binds an unbound waiting job to an idle builder and moves its build
// to BUILDING. It reports false when another builder won the job, the build
// left NEEDSBUILD or the builder already holds a job.
func (q *Queries) BindJob(jobId int64, builderId int64, cookie string) (bool, error) {
	now := time.Now()
	result, err := q.db.Exec(
		`UPDATE build_queue_entry SET builder_id = ?, status = ?, cookie = ?
		WHERE id = ? AND builder_id = 0 AND status = ?
		AND EXISTS (SELECT 1 FROM build WHERE build.id = build_queue_entry.build_id AND build.state = ?)
		AND NOT EXISTS (SELECT 1 FROM build_queue_entry bound WHERE bound.builder_id = ?)`,
		builderId, model.JOB_STATUS_RUNNING, cookie,
		jobId, model.JOB_STATUS_WAITING,
		model.BUILD_STATE_NEEDSBUILD,
		builderId)
	if err != nil {
		return false, fmt.Errorf("failed to bind job %d: %w", jobId, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	if affected == 0 {
		return false, nil
	}

	if _, err := q.db.ID(jobId).Cols("started_at").Update(&model.BuildQueueEntry{StartedAt: now}); err != nil {
		return false, err
	}
	job, err := q.GetJob(jobId)
	if err != nil {
		return false, err
	}
	updated, err := q.db.
		Where("id = ? AND state = ?", job.BuildId, model.BUILD_STATE_NEEDSBUILD).
		Cols("state", "builder_id", "started_at").
		Update(&model.Build{State: model.BUILD_STATE_BUILDING, BuilderId: builderId, StartedAt: now})
	if err != nil {
		return false, fmt.Errorf("failed to start build %d: %w", job.BuildId, err)
	}
	return updated == 1, nil
}

// UnbindJob undoes a BindJob the worker refused to start: the job waits in
// the queue again and its build is back to NEEDSBUILD. It only touches the
// job while it still carries the cookie of that dispatch.
func (q *Queries) UnbindJob(jobId int64, cookie string) error {
	job, err := q.GetJob(jobId)
	if err != nil {
		return err
	}
	if job.Cookie != cookie || !job.IsBound() {
		return fmt.Errorf("%w: job %d is not bound with cookie %s", ErrInvalidTransition, jobId, cookie)
	}
	if _, err := q.db.Exec(
		`UPDATE build SET state = ?, builder_id = 0 WHERE id = ? AND state = ?`,
		model.BUILD_STATE_NEEDSBUILD, job.BuildId, model.BUILD_STATE_BUILDING); err != nil {
		return fmt.Errorf("failed to reset build %d: %w", job.BuildId, err)
	}
	if _, err := q.db.Exec(
		`UPDATE build_queue_entry SET builder_id = 0, status = ?, cookie = '' WHERE id = ? AND cookie = ?`,
		model.JOB_STATUS_WAITING, jobId, cookie); err != nil {
		return fmt.Errorf("failed to unbind job %d: %w", jobId, err)
	}
	return nil
}

// FailCurrentBuild moves the build running on a builder to FAILEDTOBUILD and
// removes its job. It returns nil when the builder holds no job.
func (q *Queries) FailCurrentBuild(builderId int64, notes string) (*model.Build, error) {
	job, _, err := q.CurrentJob(builderId)
	if err != nil || job == nil {
		return nil, err
	}
	return q.CompleteBuild(job.Cookie, model.BUILD_STATE_FAILEDTOBUILD, notes)
}

// CompleteBuild records the outcome of a dispatched job and releases its
// builder.
func (q *Queries) CompleteBuild(cookie string, state model.BuildState, notes string) (*model.Build, error) {
	var job model.BuildQueueEntry
	found, err := q.db.Where("cookie = ? AND builder_id != ?", cookie, 0).Get(&job)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, ErrNotFound
	}
	if !model.BUILD_STATE_BUILDING.CanTransitionTo(state) {
		return nil, fmt.Errorf("%w: BUILDING -> %s", ErrInvalidTransition, state)
	}
	updated, err := q.db.
		Where("id = ? AND state = ?", job.BuildId, model.BUILD_STATE_BUILDING).
		Cols("state", "failure_notes", "finished_at").
		Update(&model.Build{State: state, FailureNotes: notes, FinishedAt: time.Now()})
	if err != nil {
		return nil, err
	}
	if updated == 0 {
		return nil, fmt.Errorf("%w: build %d is not BUILDING", ErrInvalidTransition, job.BuildId)
	}
	if _, err := q.db.ID(job.Id).Delete(new(model.BuildQueueEntry)); err != nil {
		return nil, err
	}
	return q.GetBuild(job.BuildId)
}

// SetArchiveEnabled toggles an archive and suspends or resumes its waiting
// jobs accordingly.
func (q *Queries) SetArchiveEnabled(archiveId int64, enabled bool) error {
	if _, err := q.db.ID(archiveId).Cols("enabled").Update(&model.Archive{Enabled: enabled}); err != nil {
		return err
	}
	from, to := model.JOB_STATUS_WAITING, model.JOB_STATUS_SUSPENDED
	if enabled {
		from, to = to, from
	}
	_, err := q.db.Exec(
		`UPDATE build_queue_entry SET status = ?
		WHERE status = ? AND builder_id = 0
		AND build_id IN (SELECT id FROM build WHERE archive_id = ?)`,
		to, from, archiveId)
	return err
}
