package store

import (
	"github.com/hashworks/buildfarm/model"
)

func (q *Queries) GetProcessor(id int64) (*model.Processor, error) {
	var processor model.Processor
	if err := q.getByID(id, &processor); err != nil {
		return nil, err
	}
	return &processor, nil
}

func (q *Queries) GetProcessorByName(name string) (*model.Processor, error) {
	var processor model.Processor
	found, err := q.db.Where("name = ?", name).Get(&processor)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, ErrNotFound
	}
	return &processor, nil
}

func (q *Queries) GetDistroSeries(id int64) (*model.DistroSeries, error) {
	var series model.DistroSeries
	if err := q.getByID(id, &series); err != nil {
		return nil, err
	}
	return &series, nil
}

func (q *Queries) GetDistroSeriesByName(name string) (*model.DistroSeries, error) {
	var series model.DistroSeries
	found, err := q.db.Where("name = ?", name).Get(&series)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, ErrNotFound
	}
	return &series, nil
}

func (q *Queries) GetDistroArchSeries(id int64) (*model.DistroArchSeries, error) {
	var das model.DistroArchSeries
	if err := q.getByID(id, &das); err != nil {
		return nil, err
	}
	return &das, nil
}

// ListDistroArchSeries returns every architecture of a series, ordered by id.
func (q *Queries) ListDistroArchSeries(distroSeriesId int64) ([]*model.DistroArchSeries, error) {
	var archSeries []*model.DistroArchSeries
	err := q.db.Where("distro_series_id = ?", distroSeriesId).Asc("id").Find(&archSeries)
	return archSeries, err
}

func (q *Queries) distroArchSeriesIds(distroSeriesId int64) ([]int64, error) {
	archSeries, err := q.ListDistroArchSeries(distroSeriesId)
	if err != nil {
		return nil, err
	}
	ids := make([]int64, len(archSeries))
	for i, das := range archSeries {
		ids[i] = das.Id
	}
	return ids, nil
}

func (q *Queries) GetArchive(id int64) (*model.Archive, error) {
	var archive model.Archive
	if err := q.getByID(id, &archive); err != nil {
		return nil, err
	}
	return &archive, nil
}

func (q *Queries) GetArchiveByName(name string) (*model.Archive, error) {
	var archive model.Archive
	found, err := q.db.Where("name = ?", name).Get(&archive)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, ErrNotFound
	}
	return &archive, nil
}

// GetMainArchive returns the first archive with the given purpose.
func (q *Queries) GetMainArchive(purpose model.ArchivePurpose) (*model.Archive, error) {
	var archive model.Archive
	found, err := q.db.Where("purpose = ?", purpose).Asc("id").Get(&archive)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, ErrNotFound
	}
	return &archive, nil
}

func (q *Queries) GetSourcePackageRelease(id int64) (*model.SourcePackageRelease, error) {
	var release model.SourcePackageRelease
	if err := q.getByID(id, &release); err != nil {
		return nil, err
	}
	return &release, nil
}

func (q *Queries) ListSourcePackageReleaseFiles(sourcePackageReleaseId int64) ([]*model.SourcePackageReleaseFile, error) {
	var files []*model.SourcePackageReleaseFile
	err := q.db.Where("source_package_release_id = ?", sourcePackageReleaseId).Asc("id").Find(&files)
	return files, err
}

func (q *Queries) GetBinaryPackageRelease(id int64) (*model.BinaryPackageRelease, error) {
	var release model.BinaryPackageRelease
	if err := q.getByID(id, &release); err != nil {
		return nil, err
	}
	return &release, nil
}
