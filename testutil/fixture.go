// Package testutil builds throwaway databases and records for tests.
package testutil

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hashworks/buildfarm/model"
	"github.com/hashworks/buildfarm/store"
)

// NewStore opens a fresh sqlite database below t.TempDir().
func NewStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open("sqlite3", filepath.Join(t.TempDir(), "buildfarm.db"))
	require.NoError(t, err)
	require.NoError(t, s.Sync())
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// Fixture inserts records with sensible defaults.
type Fixture struct {
	T     *testing.T
	Store *store.Store
}

func NewFixture(t *testing.T) *Fixture {
	return &Fixture{T: t, Store: NewStore(t)}
}

func (f *Fixture) insert(beans ...interface{}) {
	f.T.Helper()
	require.NoError(f.T, f.Store.Insert(beans...))
}

func (f *Fixture) Processor(name string, restricted bool) *model.Processor {
	processor := &model.Processor{Name: name, Restricted: restricted}
	f.insert(processor)
	return processor
}

func (f *Fixture) Series(name string) *model.DistroSeries {
	series := &model.DistroSeries{Name: name}
	f.insert(series)
	return series
}

func (f *Fixture) ArchSeries(series *model.DistroSeries, processor *model.Processor, archTag string, nominatedArchIndep bool) *model.DistroArchSeries {
	das := &model.DistroArchSeries{
		DistroSeriesId:       series.Id,
		ArchTag:              archTag,
		ProcessorId:          processor.Id,
		Enabled:              true,
		IsNominatedArchIndep: nominatedArchIndep,
		ChrootSHA1:           "chroot-" + archTag,
		ChrootURL:            "http://librarian/chroot-" + series.Name + "-" + archTag + ".tar.gz",
	}
	f.insert(das)
	return das
}

func (f *Fixture) Archive(name string, purpose model.ArchivePurpose, mutate ...func(*model.Archive)) *model.Archive {
	archive := &model.Archive{
		Name:               name,
		Purpose:            purpose,
		Enabled:            true,
		RequireVirtualized: purpose == model.ARCHIVE_PURPOSE_PPA || purpose == model.ARCHIVE_PURPOSE_COPY,
	}
	for _, m := range mutate {
		m(archive)
	}
	f.insert(archive)
	return archive
}

func (f *Fixture) Builder(name string, processor *model.Processor, virtualized bool) *model.Builder {
	builder := &model.Builder{
		Name:        name,
		URL:         "http://" + name + ":8221",
		ProcessorId: processor.Id,
		Virtualized: virtualized,
		BuilderOK:   true,
		Active:      true,
	}
	if virtualized {
		builder.VMHost = name + "-host"
	}
	f.insert(builder)
	return builder
}

func (f *Fixture) SourceRelease(name string, version string, architectureHint string) *model.SourcePackageRelease {
	release := &model.SourcePackageRelease{Name: name, Version: version, ArchitectureHint: architectureHint, Urgency: "low"}
	f.insert(release)
	f.insert(&model.SourcePackageReleaseFile{
		SourcePackageReleaseId: release.Id,
		Filename:               name + "_" + version + ".dsc",
		SHA1:                   "sha1-" + name + "-" + version,
		Size:                   1024,
	})
	return release
}

func (f *Fixture) SourcePublication(release *model.SourcePackageRelease, series *model.DistroSeries, archive *model.Archive, pocket model.Pocket, status model.PublishingStatus) *model.SourcePublication {
	pub := &model.SourcePublication{
		SourcePackageReleaseId: release.Id,
		SourcePackageName:      release.Name,
		DistroSeriesId:         series.Id,
		ArchiveId:              archive.Id,
		Pocket:                 pocket,
		Component:              "main",
		Section:                "devel",
		Status:                 status,
	}
	f.insert(pub)
	return pub
}

// Build inserts a NEEDSBUILD build with a waiting job of the given score.
func (f *Fixture) Build(release *model.SourcePackageRelease, das *model.DistroArchSeries, archive *model.Archive, pocket model.Pocket, score int) (*model.Build, *model.BuildQueueEntry) {
	f.T.Helper()
	build := &model.Build{
		SourcePackageReleaseId: release.Id,
		DistroArchSeriesId:     das.Id,
		ProcessorId:            das.ProcessorId,
		ArchiveId:              archive.Id,
		Pocket:                 pocket,
	}
	job := &model.BuildQueueEntry{
		Status:      model.JOB_STATUS_WAITING,
		LastScore:   score,
		Virtualized: archive.RequireVirtualized,
	}
	require.NoError(f.T, f.Store.InsertBuildWithJob(build, job))
	return build, job
}

func (f *Fixture) BinaryRelease(name string, version string, build *model.Build, architectureSpecific bool) *model.BinaryPackageRelease {
	release := &model.BinaryPackageRelease{
		Name:                 name,
		Version:              version,
		BuildId:              build.Id,
		ArchitectureSpecific: architectureSpecific,
	}
	f.insert(release)
	return release
}

// DebugRelease inserts the DDEB of a binary release and links the two.
func (f *Fixture) DebugRelease(binary *model.BinaryPackageRelease) *model.BinaryPackageRelease {
	f.T.Helper()
	debug := &model.BinaryPackageRelease{
		Name:                 binary.Name + "-dbgsym",
		Version:              binary.Version,
		BuildId:              binary.BuildId,
		ArchitectureSpecific: binary.ArchitectureSpecific,
		IsDebug:              true,
	}
	f.insert(debug)
	binary.DebugPackageId = debug.Id
	_, err := f.Store.DB.ID(binary.Id).Cols("debug_package_id").Update(binary)
	require.NoError(f.T, err)
	return debug
}

func (f *Fixture) BinaryPublication(release *model.BinaryPackageRelease, das *model.DistroArchSeries, archive *model.Archive, pocket model.Pocket, status model.PublishingStatus) *model.BinaryPublication {
	pub := &model.BinaryPublication{
		BinaryPackageReleaseId: release.Id,
		BinaryPackageName:      release.Name,
		DistroArchSeriesId:     das.Id,
		ArchiveId:              archive.Id,
		Pocket:                 pocket,
		Component:              "main",
		Section:                "devel",
		Priority:               model.PRIORITY_OPTIONAL,
		Status:                 status,
	}
	f.insert(pub)
	return pub
}
