package store

import (
	"fmt"
	"time"

	"github.com/hashworks/buildfarm/model"
)

func (q *Queries) GetSourcePublication(id int64) (*model.SourcePublication, error) {
	var pub model.SourcePublication
	if err := q.getByID(id, &pub); err != nil {
		return nil, err
	}
	return &pub, nil
}

func (q *Queries) GetBinaryPublication(id int64) (*model.BinaryPublication, error) {
	var pub model.BinaryPublication
	if err := q.getByID(id, &pub); err != nil {
		return nil, err
	}
	return &pub, nil
}

func liveStatuses() []interface{} {
	return []interface{}{model.PUBLISHING_STATUS_PENDING, model.PUBLISHING_STATUS_PUBLISHED}
}

func statusArgs(statuses []model.PublishingStatus) []interface{} {
	args := make([]interface{}, len(statuses))
	for i, status := range statuses {
		args[i] = status
	}
	return args
}

// StatusChange describes a forward status move of a publication.
type StatusChange struct {
	Status                model.PublishingStatus
	SupersededBy          int64
	DatePublished         time.Time
	DateSuperseded        time.Time
	ScheduledDeletionDate time.Time
	DateRemoved           time.Time
	RemovedBy             string
	RemovalComment        string
}

func (c StatusChange) columns() []string {
	switch c.Status {
	case model.PUBLISHING_STATUS_PUBLISHED:
		return []string{"status", "date_published"}
	case model.PUBLISHING_STATUS_SUPERSEDED:
		return []string{"status", "superseded_by", "date_superseded"}
	case model.PUBLISHING_STATUS_DELETED:
		return []string{"status", "date_removed", "removed_by", "removal_comment"}
	default:
		return []string{"status", "scheduled_deletion_date"}
	}
}

// applySource copies the columns the change wrote into the publication held
// in memory.
func (c StatusChange) applySource(pub *model.SourcePublication) {
	switch c.Status {
	case model.PUBLISHING_STATUS_PUBLISHED:
		pub.DatePublished = c.DatePublished
	case model.PUBLISHING_STATUS_SUPERSEDED:
		pub.SupersededBy = c.SupersededBy
		pub.DateSuperseded = c.DateSuperseded
	case model.PUBLISHING_STATUS_DELETED:
		pub.DateRemoved = c.DateRemoved
		pub.RemovedBy = c.RemovedBy
		pub.RemovalComment = c.RemovalComment
	default:
		pub.ScheduledDeletionDate = c.ScheduledDeletionDate
	}
	pub.Status = c.Status
}

func (c StatusChange) applyBinary(pub *model.BinaryPublication) {
	switch c.Status {
	case model.PUBLISHING_STATUS_PUBLISHED:
		pub.DatePublished = c.DatePublished
	case model.PUBLISHING_STATUS_SUPERSEDED:
		pub.SupersededBy = c.SupersededBy
		pub.DateSuperseded = c.DateSuperseded
	case model.PUBLISHING_STATUS_DELETED:
		pub.DateRemoved = c.DateRemoved
		pub.RemovedBy = c.RemovedBy
		pub.RemovalComment = c.RemovalComment
	default:
		pub.ScheduledDeletionDate = c.ScheduledDeletionDate
	}
	pub.Status = c.Status
}

// UpdateSourceStatus applies the change if the publication currently holds a
// status that may move to the new one, and reports whether it did.
func (q *Queries) UpdateSourceStatus(pub *model.SourcePublication, change StatusChange) (bool, error) {
	if !pub.Status.CanTransitionTo(change.Status) {
		return false, fmt.Errorf("%w: source publication %d %s -> %s", ErrInvalidTransition, pub.Id, pub.Status, change.Status)
	}
	updated, err := q.db.
		Where("id = ? AND status = ?", pub.Id, pub.Status).
		Cols(change.columns()...).
		Update(&model.SourcePublication{
			Status:                change.Status,
			SupersededBy:          change.SupersededBy,
			DatePublished:         change.DatePublished,
			DateSuperseded:        change.DateSuperseded,
			ScheduledDeletionDate: change.ScheduledDeletionDate,
			DateRemoved:           change.DateRemoved,
			RemovedBy:             change.RemovedBy,
			RemovalComment:        change.RemovalComment,
		})
	if err != nil {
		return false, fmt.Errorf("failed to update source publication %d: %w", pub.Id, err)
	}
	if updated == 0 {
		return false, nil
	}
	change.applySource(pub)
	return true, nil
}

// UpdateBinaryStatus is UpdateSourceStatus for binary publications.
func (q *Queries) UpdateBinaryStatus(pub *model.BinaryPublication, change StatusChange) (bool, error) {
	if !pub.Status.CanTransitionTo(change.Status) {
		return false, fmt.Errorf("%w: binary publication %d %s -> %s", ErrInvalidTransition, pub.Id, pub.Status, change.Status)
	}
	updated, err := q.db.
		Where("id = ? AND status = ?", pub.Id, pub.Status).
		Cols(change.columns()...).
		Update(&model.BinaryPublication{
			Status:                change.Status,
			SupersededBy:          change.SupersededBy,
			DatePublished:         change.DatePublished,
			DateSuperseded:        change.DateSuperseded,
			ScheduledDeletionDate: change.ScheduledDeletionDate,
			DateRemoved:           change.DateRemoved,
			RemovedBy:             change.RemovedBy,
			RemovalComment:        change.RemovalComment,
		})
	if err != nil {
		return false, fmt.Errorf("failed to update binary publication %d: %w", pub.Id, err)
	}
	if updated == 0 {
		return false, nil
	}
	change.applyBinary(pub)
	return true, nil
}

// ArchIndepSiblings returns the live publications of an architecture
// independent binary release sharing archive, pocket and overrides on any
// architecture of the series, the given publication included.
func (q *Queries) ArchIndepSiblings(pub *model.BinaryPublication) ([]*model.BinaryPublication, error) {
	das, err := q.GetDistroArchSeries(pub.DistroArchSeriesId)
	if err != nil {
		return nil, err
	}
	archSeriesIds, err := q.distroArchSeriesIds(das.DistroSeriesId)
	if err != nil {
		return nil, err
	}
	var siblings []*model.BinaryPublication
	err = q.db.
		Where("binary_package_release_id = ? AND archive_id = ? AND pocket = ? AND component = ? AND section = ? AND priority = ?",
			pub.BinaryPackageReleaseId,
			pub.ArchiveId,
			pub.Pocket,
			pub.Component,
			pub.Section,
			pub.Priority).
		In("distro_arch_series_id", int64Args(archSeriesIds)...).
		In("status", liveStatuses()...).
		Asc("id").
		Find(&siblings)
	return siblings, err
}

// DebugPublication finds the live publication of the DDEB paired with pub,
// matching architecture, pocket and overrides exactly in the debug archive.
func (q *Queries) DebugPublication(pub *model.BinaryPublication, release *model.BinaryPackageRelease, archive *model.Archive) (*model.BinaryPublication, error) {
	if release.DebugPackageId == 0 {
		return nil, ErrNotFound
	}
	var debug model.BinaryPublication
	found, err := q.db.
		Where("binary_package_release_id = ? AND archive_id = ? AND distro_arch_series_id = ? AND pocket = ? AND component = ? AND section = ? AND priority = ?",
			release.DebugPackageId,
			archive.DebugArchive(),
			pub.DistroArchSeriesId,
			pub.Pocket,
			pub.Component,
			pub.Section,
			pub.Priority).
		In("status", liveStatuses()...).
		Desc("id").
		Get(&debug)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, ErrNotFound
	}
	return &debug, nil
}

// PublishedBinariesOfSource returns the live binary publications built from
// the source release in the publication's archive, series and pocket.
func (q *Queries) PublishedBinariesOfSource(pub *model.SourcePublication) ([]*model.BinaryPublication, error) {
	var builds []*model.Build
	if err := q.db.Where("source_package_release_id = ?", pub.SourcePackageReleaseId).Find(&builds); err != nil {
		return nil, fmt.Errorf("failed to find builds of source release %d: %w", pub.SourcePackageReleaseId, err)
	}
	if len(builds) == 0 {
		return nil, nil
	}
	buildIds := make([]int64, len(builds))
	for i, build := range builds {
		buildIds[i] = build.Id
	}
	var releases []*model.BinaryPackageRelease
	if err := q.db.In("build_id", int64Args(buildIds)...).Find(&releases); err != nil {
		return nil, fmt.Errorf("failed to find binaries of source release %d: %w", pub.SourcePackageReleaseId, err)
	}
	if len(releases) == 0 {
		return nil, nil
	}
	releaseIds := make([]int64, len(releases))
	for i, release := range releases {
		releaseIds[i] = release.Id
	}
	archSeriesIds, err := q.distroArchSeriesIds(pub.DistroSeriesId)
	if err != nil {
		return nil, err
	}
	var binaries []*model.BinaryPublication
	err = q.db.
		Where("archive_id = ? AND pocket = ?", pub.ArchiveId, pub.Pocket).
		In("binary_package_release_id", int64Args(releaseIds)...).
		In("distro_arch_series_id", int64Args(archSeriesIds)...).
		In("status", liveStatuses()...).
		Asc("id").
		Find(&binaries)
	return binaries, err
}

// LiveSourcePublications lists the PENDING and PUBLISHED sources of a pocket.
func (q *Queries) LiveSourcePublications(archiveId int64, distroSeriesId int64, pocket model.Pocket) ([]*model.SourcePublication, error) {
	var pubs []*model.SourcePublication
	err := q.db.
		Where("archive_id = ? AND distro_series_id = ? AND pocket = ?", archiveId, distroSeriesId, pocket).
		In("status", liveStatuses()...).
		Asc("id").
		Find(&pubs)
	return pubs, err
}

// LiveBinaryPublications lists the PENDING and PUBLISHED binaries of one
// architecture in a pocket.
func (q *Queries) LiveBinaryPublications(archiveId int64, distroArchSeriesId int64, pocket model.Pocket) ([]*model.BinaryPublication, error) {
	var pubs []*model.BinaryPublication
	err := q.db.
		Where("archive_id = ? AND distro_arch_series_id = ? AND pocket = ?", archiveId, distroArchSeriesId, pocket).
		In("status", liveStatuses()...).
		Asc("id").
		Find(&pubs)
	return pubs, err
}

// NearestSourceAncestor returns the newest source publication of exactly this
// name in the given statuses.
func (q *Queries) NearestSourceAncestor(name string, archiveId int64, distroSeriesId int64, pocket model.Pocket, statuses []model.PublishingStatus) (*model.SourcePublication, error) {
	var pub model.SourcePublication
	found, err := q.db.
		Where("source_package_name = ? AND archive_id = ? AND distro_series_id = ? AND pocket = ?", name, archiveId, distroSeriesId, pocket).
		In("status", statusArgs(statuses)...).
		Desc("date_created", "id").
		Get(&pub)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, ErrNotFound
	}
	return &pub, nil
}

// NearestBinaryAncestor returns the newest binary publication of exactly this
// name on the architecture in the given statuses.
func (q *Queries) NearestBinaryAncestor(name string, archiveId int64, distroArchSeriesId int64, pocket model.Pocket, statuses []model.PublishingStatus) (*model.BinaryPublication, error) {
	var pub model.BinaryPublication
	found, err := q.db.
		Where("binary_package_name = ? AND archive_id = ? AND distro_arch_series_id = ? AND pocket = ?", name, archiveId, distroArchSeriesId, pocket).
		In("status", statusArgs(statuses)...).
		Desc("date_created", "id").
		Get(&pub)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, ErrNotFound
	}
	return &pub, nil
}

// ListSourcePublications returns every publication of a source release, oldest
// first.
func (q *Queries) ListSourcePublications(sourcePackageReleaseId int64) ([]*model.SourcePublication, error) {
	var pubs []*model.SourcePublication
	err := q.db.Where("source_package_release_id = ?", sourcePackageReleaseId).Asc("id").Find(&pubs)
	return pubs, err
}

func int64Args(ids []int64) []interface{} {
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return args
}
