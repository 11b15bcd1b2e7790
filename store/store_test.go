package store_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hashworks/buildfarm/model"
	"github.com/hashworks/buildfarm/store"
	"github.com/hashworks/buildfarm/testutil"
)

type farm struct {
	*testutil.Fixture
	amd64   *model.Processor
	series  *model.DistroSeries
	das     *model.DistroArchSeries
	primary *model.Archive
}

func newFarm(t *testing.T) *farm {
	f := testutil.NewFixture(t)
	amd64 := f.Processor("amd64", false)
	series := f.Series("noble")
	return &farm{
		Fixture: f,
		amd64:   amd64,
		series:  series,
		das:     f.ArchSeries(series, amd64, "amd64", true),
		primary: f.Archive("primary", model.ARCHIVE_PURPOSE_PRIMARY),
	}
}

func TestOpen_SyncIsIdempotent(t *testing.T) {
	s := testutil.NewStore(t)
	require.NoError(t, s.Sync())
}

func TestBindJob_BindsOnce(t *testing.T) {
	f := newFarm(t)
	first := f.Builder("bob", f.amd64, false)
	second := f.Builder("alice", f.amd64, false)
	release := f.SourceRelease("hello", "1.0-1", "any")
	build, job := f.Build(release, f.das, f.primary, model.POCKET_RELEASE, 10)

	bound, err := f.Store.BindJob(job.Id, first.Id, "cookie-1")
	require.NoError(t, err)
	assert.True(t, bound)

	bound, err = f.Store.BindJob(job.Id, second.Id, "cookie-2")
	require.NoError(t, err)
	assert.False(t, bound, "a bound job must not be taken by another builder")

	stored, err := f.Store.GetJob(job.Id)
	require.NoError(t, err)
	assert.Equal(t, first.Id, stored.BuilderId)
	assert.Equal(t, model.JOB_STATUS_RUNNING, stored.Status)
	assert.Equal(t, "cookie-1", stored.Cookie)

	storedBuild, err := f.Store.GetBuild(build.Id)
	require.NoError(t, err)
	assert.Equal(t, model.BUILD_STATE_BUILDING, storedBuild.State)
	assert.Equal(t, first.Id, storedBuild.BuilderId)
}

func TestBindJob_BuilderHoldsOneJob(t *testing.T) {
	f := newFarm(t)
	builder := f.Builder("bob", f.amd64, false)
	release := f.SourceRelease("hello", "1.0-1", "any")
	other := f.SourceRelease("world", "2.0-1", "any")
	_, firstJob := f.Build(release, f.das, f.primary, model.POCKET_RELEASE, 10)
	_, secondJob := f.Build(other, f.das, f.primary, model.POCKET_RELEASE, 10)

	bound, err := f.Store.BindJob(firstJob.Id, builder.Id, "a")
	require.NoError(t, err)
	require.True(t, bound)

	bound, err = f.Store.BindJob(secondJob.Id, builder.Id, "b")
	require.NoError(t, err)
	assert.False(t, bound)
}

func TestBindJob_RequiresNeedsBuild(t *testing.T) {
	f := newFarm(t)
	builder := f.Builder("bob", f.amd64, false)
	release := f.SourceRelease("hello", "1.0-1", "any")
	_, job := f.Build(release, f.das, f.primary, model.POCKET_RELEASE, 10)

	_, err := f.Store.DB.Table(new(model.Build)).ID(job.BuildId).Update(map[string]interface{}{"state": model.BUILD_STATE_SUPERSEDED})
	require.NoError(t, err)

	bound, err := f.Store.BindJob(job.Id, builder.Id, "x")
	require.NoError(t, err)
	assert.False(t, bound)
}

func TestDropJob(t *testing.T) {
	f := newFarm(t)
	release := f.SourceRelease("hello", "1.0-1", "any")
	build, job := f.Build(release, f.das, f.primary, model.POCKET_SECURITY, 10)

	require.NoError(t, f.Store.DropJob(job, model.BUILD_STATE_FAILEDTOBUILD, "security"))

	stored, err := f.Store.GetBuild(build.Id)
	require.NoError(t, err)
	assert.Equal(t, model.BUILD_STATE_FAILEDTOBUILD, stored.State)
	assert.Equal(t, "security", stored.FailureNotes)

	_, err = f.Store.GetJob(job.Id)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestDropJob_RejectsBuilding(t *testing.T) {
	f := newFarm(t)
	release := f.SourceRelease("hello", "1.0-1", "any")
	_, job := f.Build(release, f.das, f.primary, model.POCKET_RELEASE, 10)

	err := f.Store.DropJob(job, model.BUILD_STATE_BUILDING, "")
	assert.ErrorIs(t, err, store.ErrInvalidTransition)
}

func TestCompleteBuild(t *testing.T) {
	f := newFarm(t)
	builder := f.Builder("bob", f.amd64, false)
	release := f.SourceRelease("hello", "1.0-1", "any")
	build, job := f.Build(release, f.das, f.primary, model.POCKET_RELEASE, 10)

	bound, err := f.Store.BindJob(job.Id, builder.Id, "cookie")
	require.NoError(t, err)
	require.True(t, bound)

	completed, err := f.Store.CompleteBuild("cookie", model.BUILD_STATE_FULLYBUILT, "")
	require.NoError(t, err)
	assert.Equal(t, build.Id, completed.Id)
	assert.Equal(t, model.BUILD_STATE_FULLYBUILT, completed.State)

	current, _, err := f.Store.CurrentJob(builder.Id)
	require.NoError(t, err)
	assert.Nil(t, current, "the builder is idle again")

	_, err = f.Store.CompleteBuild("cookie", model.BUILD_STATE_FAILEDTOBUILD, "")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestUnbindJob(t *testing.T) {
	f := newFarm(t)
	builder := f.Builder("bob", f.amd64, false)
	release := f.SourceRelease("hello", "1.0-1", "any")
	build, job := f.Build(release, f.das, f.primary, model.POCKET_RELEASE, 10)
	bound, err := f.Store.BindJob(job.Id, builder.Id, "cookie")
	require.NoError(t, err)
	require.True(t, bound)

	err = f.Store.UnbindJob(job.Id, "other")
	assert.ErrorIs(t, err, store.ErrInvalidTransition)

	require.NoError(t, f.Store.UnbindJob(job.Id, "cookie"))
	stored, err := f.Store.GetJob(job.Id)
	require.NoError(t, err)
	assert.False(t, stored.IsBound())
	assert.Equal(t, model.JOB_STATUS_WAITING, stored.Status)
	reloaded, err := f.Store.GetBuild(build.Id)
	require.NoError(t, err)
	assert.Equal(t, model.BUILD_STATE_NEEDSBUILD, reloaded.State)

	err = f.Store.UnbindJob(job.Id, "cookie")
	assert.ErrorIs(t, err, store.ErrInvalidTransition)
}

func TestFailCurrentBuild(t *testing.T) {
	f := newFarm(t)
	builder := f.Builder("bob", f.amd64, false)

	failed, err := f.Store.FailCurrentBuild(builder.Id, "lost")
	require.NoError(t, err)
	assert.Nil(t, failed, "an idle builder has nothing to fail")

	release := f.SourceRelease("hello", "1.0-1", "any")
	build, job := f.Build(release, f.das, f.primary, model.POCKET_RELEASE, 10)
	bound, err := f.Store.BindJob(job.Id, builder.Id, "cookie")
	require.NoError(t, err)
	require.True(t, bound)

	failed, err = f.Store.FailCurrentBuild(builder.Id, "lost")
	require.NoError(t, err)
	require.NotNil(t, failed)
	assert.Equal(t, build.Id, failed.Id)
	assert.Equal(t, model.BUILD_STATE_FAILEDTOBUILD, failed.State)
	assert.Equal(t, "lost", failed.FailureNotes)

	_, err = f.Store.GetJob(job.Id)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestCompleteBuild_RejectsSuperseded(t *testing.T) {
	f := newFarm(t)
	builder := f.Builder("bob", f.amd64, false)
	release := f.SourceRelease("hello", "1.0-1", "any")
	_, job := f.Build(release, f.das, f.primary, model.POCKET_RELEASE, 10)
	bound, err := f.Store.BindJob(job.Id, builder.Id, "cookie")
	require.NoError(t, err)
	require.True(t, bound)

	_, err = f.Store.CompleteBuild("cookie", model.BUILD_STATE_SUPERSEDED, "")
	assert.ErrorIs(t, err, store.ErrInvalidTransition)
}

func TestSetArchiveEnabled_SuspendsAndResumesJobs(t *testing.T) {
	f := newFarm(t)
	release := f.SourceRelease("hello", "1.0-1", "any")
	_, job := f.Build(release, f.das, f.primary, model.POCKET_RELEASE, 10)

	require.NoError(t, f.Store.SetArchiveEnabled(f.primary.Id, false))
	stored, err := f.Store.GetJob(job.Id)
	require.NoError(t, err)
	assert.Equal(t, model.JOB_STATUS_SUSPENDED, stored.Status)
	archive, err := f.Store.GetArchive(f.primary.Id)
	require.NoError(t, err)
	assert.False(t, archive.Enabled)

	require.NoError(t, f.Store.SetArchiveEnabled(f.primary.Id, true))
	stored, err = f.Store.GetJob(job.Id)
	require.NoError(t, err)
	assert.Equal(t, model.JOB_STATUS_WAITING, stored.Status)
}

func TestLoadCandidates_PrivateSourcePublished(t *testing.T) {
	f := newFarm(t)
	private := f.Archive("secret-ppa", model.ARCHIVE_PURPOSE_PPA, func(a *model.Archive) { a.Private = true })
	release := f.SourceRelease("hello", "1.0-1", "any")
	pub := f.SourcePublication(release, f.series, private, model.POCKET_RELEASE, model.PUBLISHING_STATUS_PENDING)
	f.Build(release, f.das, private, model.POCKET_RELEASE, 10)

	candidates, err := f.Store.LoadCandidates(f.amd64.Id)
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	assert.False(t, candidates[0].SourcePublished)
	assert.Equal(t, private.Id, candidates[0].Archive.Id)

	changed, err := f.Store.UpdateSourceStatus(pub, store.StatusChange{Status: model.PUBLISHING_STATUS_PUBLISHED})
	require.NoError(t, err)
	require.True(t, changed)

	candidates, err = f.Store.LoadCandidates(f.amd64.Id)
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	assert.True(t, candidates[0].SourcePublished)
}

func TestFamilyLoad(t *testing.T) {
	f := newFarm(t)
	first := f.Builder("bob", f.amd64, false)
	f.Builder("alice", f.amd64, false)
	manual := f.Builder("manual", f.amd64, false)
	_, err := f.Store.DB.ID(manual.Id).Cols("manual").Update(&model.Builder{Manual: true})
	require.NoError(t, err)

	release := f.SourceRelease("hello", "1.0-1", "any")
	_, job := f.Build(release, f.das, f.primary, model.POCKET_RELEASE, 10)
	bound, err := f.Store.BindJob(job.Id, first.Id, "c")
	require.NoError(t, err)
	require.True(t, bound)

	load, err := f.Store.FamilyLoad(f.amd64.Id)
	require.NoError(t, err)
	assert.Equal(t, 2, load.Builders)
	assert.Equal(t, 1, load.Building)
}

func TestCurrentSourcePublication(t *testing.T) {
	f := newFarm(t)
	release := f.SourceRelease("hello", "1.0-1", "any")
	pub := f.SourcePublication(release, f.series, f.primary, model.POCKET_RELEASE, model.PUBLISHING_STATUS_PUBLISHED)
	build, _ := f.Build(release, f.das, f.primary, model.POCKET_RELEASE, 10)

	current, err := f.Store.CurrentSourcePublication(build)
	require.NoError(t, err)
	assert.Equal(t, pub.Id, current.Id)

	changed, err := f.Store.UpdateSourceStatus(pub, store.StatusChange{Status: model.PUBLISHING_STATUS_SUPERSEDED})
	require.NoError(t, err)
	require.True(t, changed)

	_, err = f.Store.CurrentSourcePublication(build)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestUpdateSourceStatus_NeverBackwards(t *testing.T) {
	f := newFarm(t)
	release := f.SourceRelease("hello", "1.0-1", "any")
	pub := f.SourcePublication(release, f.series, f.primary, model.POCKET_RELEASE, model.PUBLISHING_STATUS_SUPERSEDED)

	_, err := f.Store.UpdateSourceStatus(pub, store.StatusChange{Status: model.PUBLISHING_STATUS_PUBLISHED})
	assert.ErrorIs(t, err, store.ErrInvalidTransition)
}

func TestUpdateSourceStatus_StaleRowIsNotChanged(t *testing.T) {
	f := newFarm(t)
	release := f.SourceRelease("hello", "1.0-1", "any")
	pub := f.SourcePublication(release, f.series, f.primary, model.POCKET_RELEASE, model.PUBLISHING_STATUS_PUBLISHED)
	stale := *pub

	changed, err := f.Store.UpdateSourceStatus(pub, store.StatusChange{Status: model.PUBLISHING_STATUS_DELETED, RemovedBy: "admin"})
	require.NoError(t, err)
	require.True(t, changed)

	changed, err = f.Store.UpdateSourceStatus(&stale, store.StatusChange{Status: model.PUBLISHING_STATUS_SUPERSEDED})
	require.NoError(t, err)
	assert.False(t, changed)
}

func TestTransaction_RollsBack(t *testing.T) {
	f := newFarm(t)
	release := f.SourceRelease("hello", "1.0-1", "any")
	pub := f.SourcePublication(release, f.series, f.primary, model.POCKET_RELEASE, model.PUBLISHING_STATUS_PUBLISHED)

	boom := errors.New("boom")
	err := f.Store.Transaction(context.Background(), func(q *store.Queries) error {
		changed, err := q.UpdateSourceStatus(pub, store.StatusChange{Status: model.PUBLISHING_STATUS_OBSOLETE})
		require.NoError(t, err)
		require.True(t, changed)
		return boom
	})
	assert.ErrorIs(t, err, boom)

	stored, err := f.Store.GetSourcePublication(pub.Id)
	require.NoError(t, err)
	assert.Equal(t, model.PUBLISHING_STATUS_PUBLISHED, stored.Status)
}
