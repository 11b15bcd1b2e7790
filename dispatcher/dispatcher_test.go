package dispatcher

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hashworks/buildfarm/model"
	"github.com/hashworks/buildfarm/store"
	"github.com/hashworks/buildfarm/testutil"
	"github.com/hashworks/buildfarm/worker"
)

type fakeWorker struct {
	mu        sync.Mutex
	info      worker.Info
	status    worker.Status
	infoErr   error
	statusErr error
	buildErr  error
	ensured   []worker.EnsurePresentRequest
	builds    []worker.BuildRequest
	aborted   chan struct{}
	// infoHold blocks Info until it is closed.
	infoHold chan struct{}
	onBuild  func(request worker.BuildRequest)
}

func newFakeWorker(archTags ...string) *fakeWorker {
	return &fakeWorker{
		info:    worker.Info{ProtocolVersion: worker.ProtocolVersion, ArchTags: archTags, BuilderTypes: []string{worker.BUILDER_TYPE_BINARY_PACKAGE}},
		status:  worker.STATUS_IDLE,
		aborted: make(chan struct{}, 1),
	}
}

func (w *fakeWorker) Info(ctx context.Context) (*worker.Info, error) {
	if w.infoHold != nil {
		<-w.infoHold
	}
	if w.infoErr != nil {
		return nil, w.infoErr
	}
	info := w.info
	return &info, nil
}

func (w *fakeWorker) Status(ctx context.Context) (*worker.StatusResponse, error) {
	if w.statusErr != nil {
		return nil, w.statusErr
	}
	return &worker.StatusResponse{Status: w.status}, nil
}

func (w *fakeWorker) EnsurePresent(ctx context.Context, request worker.EnsurePresentRequest) (*worker.EnsurePresentResponse, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.ensured = append(w.ensured, request)
	return &worker.EnsurePresentResponse{Present: true, Info: "cached"}, nil
}

func (w *fakeWorker) Build(ctx context.Context, request worker.BuildRequest) (*worker.BuildResponse, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.buildErr != nil {
		return nil, w.buildErr
	}
	if w.onBuild != nil {
		w.onBuild(request)
	}
	w.builds = append(w.builds, request)
	return &worker.BuildResponse{Status: worker.STATUS_BUILDING}, nil
}

func (w *fakeWorker) Abort(ctx context.Context) error {
	w.aborted <- struct{}{}
	return nil
}

func (w *fakeWorker) Clean(ctx context.Context) error {
	return nil
}

type fakeResumer struct {
	hosts []string
	err   error
}

func (r *fakeResumer) Resume(ctx context.Context, vmHost string) (worker.ResumeResult, error) {
	r.hosts = append(r.hosts, vmHost)
	if r.err != nil {
		return worker.ResumeResult{ExitCode: 1, Stderr: r.err.Error()}, r.err
	}
	return worker.ResumeResult{Stdout: "ok"}, nil
}

type farm struct {
	*testutil.Fixture
	dispatcher *Dispatcher
	workers    map[string]*fakeWorker
	resumer    *fakeResumer
	amd64      *model.Processor
	series     *model.DistroSeries
	das        *model.DistroArchSeries
	primary    *model.Archive
}

func newFarm(t *testing.T) *farm {
	f := &farm{
		Fixture: testutil.NewFixture(t),
		workers: make(map[string]*fakeWorker),
		resumer: &fakeResumer{},
	}
	f.amd64 = f.Processor("amd64", false)
	f.series = f.Series("noble")
	f.das = f.ArchSeries(f.series, f.amd64, "amd64", true)
	f.primary = f.Archive("primary", model.ARCHIVE_PURPOSE_PRIMARY)

	clients := func(builder *model.Builder) worker.Client {
		w, ok := f.workers[builder.Name]
		require.True(t, ok, "no fake worker for %s", builder.Name)
		return w
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	f.dispatcher = New(f.Store, clients, f.resumer, "http://archive.example", logger)
	counter := 0
	f.dispatcher.newCookie = func() string {
		counter++
		return "cookie-" + string(rune('0'+counter))
	}
	return f
}

func (f *farm) builder(name string, virtualized bool) *model.Builder {
	f.workers[name] = newFakeWorker("amd64")
	return f.Builder(name, f.amd64, virtualized)
}

// queued publishes a source and queues a build of it.
func (f *farm) queued(name string, archive *model.Archive, pocket model.Pocket, score int) (*model.Build, *model.BuildQueueEntry) {
	release := f.SourceRelease(name, "1.0-1", "any")
	f.SourcePublication(release, f.series, archive, pocket, model.PUBLISHING_STATUS_PUBLISHED)
	return f.Build(release, f.das, archive, pocket, score)
}

func (f *farm) buildState(id int64) model.BuildState {
	build, err := f.Store.GetBuild(id)
	require.NoError(f.T, err)
	return build.State
}

func TestTick_DispatchesHighestScore(t *testing.T) {
	f := newFarm(t)
	ppa := f.Archive("ppa", model.ARCHIVE_PURPOSE_PPA)
	builder := f.builder("bob", true)
	low, _ := f.queued("low", ppa, model.POCKET_RELEASE, 10)
	high, highJob := f.queued("high", ppa, model.POCKET_RELEASE, 50)

	started, err := f.dispatcher.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, started)

	assert.Equal(t, model.BUILD_STATE_BUILDING, f.buildState(high.Id))
	assert.Equal(t, model.BUILD_STATE_NEEDSBUILD, f.buildState(low.Id))

	job, err := f.Store.GetJob(highJob.Id)
	require.NoError(t, err)
	assert.Equal(t, builder.Id, job.BuilderId)
	assert.Equal(t, "cookie-1", job.Cookie)

	assert.Equal(t, []string{"bob-host"}, f.resumer.hosts)

	w := f.workers["bob"]
	require.Len(t, w.builds, 1)
	request := w.builds[0]
	assert.Equal(t, "cookie-1", request.Cookie)
	assert.Equal(t, "noble", request.Suite)
	assert.Equal(t, "amd64", request.ArchTag)
	assert.Equal(t, map[string]string{"high_1.0-1.dsc": "sha1-high-1.0-1"}, request.Files)

	require.Len(t, w.ensured, 2)
	assert.Equal(t, f.das.ChrootSHA1, w.ensured[0].SHA1)
	assert.Equal(t, "http://archive.example/ppa/+files/high_1.0-1.dsc", w.ensured[1].URL)
	assert.Empty(t, w.ensured[1].User)
}

func TestTick_PrivateArchivePassesBuilddCredentials(t *testing.T) {
	f := newFarm(t)
	private := f.Archive("secret", model.ARCHIVE_PURPOSE_PPA, func(a *model.Archive) {
		a.Private = true
		a.BuilddSecret = "s3cret"
	})
	f.builder("bob", true)
	f.queued("hello", private, model.POCKET_RELEASE, 10)

	started, err := f.dispatcher.Tick(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, started)

	w := f.workers["bob"]
	require.Len(t, w.ensured, 2)
	assert.Equal(t, BUILDD_USER, w.ensured[1].User)
	assert.Equal(t, "s3cret", w.ensured[1].Password)
	assert.True(t, w.builds[0].Private)
}

func TestFindBuildCandidate_SkipsSupersededSource(t *testing.T) {
	f := newFarm(t)
	builder := f.builder("bob", false)

	old := f.SourceRelease("hello", "1.0-1", "any")
	oldPub := f.SourcePublication(old, f.series, f.primary, model.POCKET_RELEASE, model.PUBLISHING_STATUS_PUBLISHED)
	oldBuild, oldJob := f.Build(old, f.das, f.primary, model.POCKET_RELEASE, 50)
	changed, err := f.Store.UpdateSourceStatus(oldPub, store.StatusChange{Status: model.PUBLISHING_STATUS_SUPERSEDED})
	require.NoError(t, err)
	require.True(t, changed)

	newBuild, _ := f.queued("world", f.primary, model.POCKET_RELEASE, 10)

	candidate, err := f.dispatcher.FindBuildCandidate(context.Background(), builder)
	require.NoError(t, err)
	require.NotNil(t, candidate)
	assert.Equal(t, newBuild.Id, candidate.Build.Id)

	assert.Equal(t, model.BUILD_STATE_SUPERSEDED, f.buildState(oldBuild.Id))
	_, err = f.Store.GetJob(oldJob.Id)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestFindBuildCandidate_FailsSecurityBuilds(t *testing.T) {
	f := newFarm(t)
	builder := f.builder("bob", false)
	security, securityJob := f.queued("openssl", f.primary, model.POCKET_SECURITY, 100)
	release, _ := f.queued("hello", f.primary, model.POCKET_RELEASE, 10)

	candidate, err := f.dispatcher.FindBuildCandidate(context.Background(), builder)
	require.NoError(t, err)
	require.NotNil(t, candidate)
	assert.Equal(t, release.Id, candidate.Build.Id)

	stored, err := f.Store.GetBuild(security.Id)
	require.NoError(t, err)
	assert.Equal(t, model.BUILD_STATE_FAILEDTOBUILD, stored.State)
	assert.NotEmpty(t, stored.FailureNotes)
	_, err = f.Store.GetJob(securityJob.Id)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestFindBuildCandidate_None(t *testing.T) {
	f := newFarm(t)
	builder := f.builder("bob", false)

	candidate, err := f.dispatcher.FindBuildCandidate(context.Background(), builder)
	require.NoError(t, err)
	assert.Nil(t, candidate)
}

func TestDispatch_Mismatches(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(w *fakeWorker)
		code   ErrorCode
	}{
		{"protocol", func(w *fakeWorker) { w.info.ProtocolVersion = "0.9" }, CODE_PROTOCOL_MISMATCH},
		{"architecture", func(w *fakeWorker) { w.info.ArchTags = []string{"arm64"} }, CODE_ARCHITECTURE_MISMATCH},
		{"busy", func(w *fakeWorker) { w.status = worker.STATUS_BUILDING }, CODE_CANNOT_BUILD},
		{"unreachable", func(w *fakeWorker) { w.infoErr = worker.ErrWorkerFailure }, CODE_WORKER_FAILURE},
		{"build", func(w *fakeWorker) { w.buildErr = worker.ErrWorkerFailure }, CODE_WORKER_FAILURE},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFarm(t)
			builder := f.builder("bob", false)
			tt.mutate(f.workers["bob"])
			build, job := f.queued("hello", f.primary, model.POCKET_RELEASE, 10)

			candidate, err := f.dispatcher.dispatch(context.Background(), builder)
			require.Error(t, err)
			assert.Nil(t, candidate)
			assert.Equal(t, tt.code, CodeOf(err))

			stored, err := f.Store.GetJob(job.Id)
			require.NoError(t, err)
			assert.False(t, stored.IsBound(), "the job stays in the queue")
			assert.Equal(t, model.BUILD_STATE_NEEDSBUILD, f.buildState(build.Id))

			reloaded, err := f.Store.GetBuilder(builder.Id)
			require.NoError(t, err)
			assert.True(t, reloaded.BuilderOK, "dispatch failures do not fail the builder")
		})
	}
}

func TestDispatch_ResumeFailureLeavesBuilderEnabled(t *testing.T) {
	f := newFarm(t)
	ppa := f.Archive("ppa", model.ARCHIVE_PURPOSE_PPA)
	builder := f.builder("bob", true)
	f.resumer.err = worker.ErrCannotResumeHost
	f.queued("hello", ppa, model.POCKET_RELEASE, 10)

	_, err := f.dispatcher.dispatch(context.Background(), builder)
	assert.Equal(t, CODE_CANNOT_RESUME_HOST, CodeOf(err))
	assert.ErrorIs(t, err, worker.ErrCannotResumeHost)

	reloaded, err := f.Store.GetBuilder(builder.Id)
	require.NoError(t, err)
	assert.True(t, reloaded.BuilderOK)
}

func TestDispatch_BuildRequestSeesBoundJob(t *testing.T) {
	f := newFarm(t)
	builder := f.builder("bob", false)
	build, job := f.queued("hello", f.primary, model.POCKET_RELEASE, 10)

	var seen *model.BuildQueueEntry
	f.workers["bob"].onBuild = func(request worker.BuildRequest) {
		var err error
		seen, err = f.Store.GetJob(job.Id)
		require.NoError(t, err)
	}

	candidate, err := f.dispatcher.dispatch(context.Background(), builder)
	require.NoError(t, err)
	require.NotNil(t, candidate)

	require.NotNil(t, seen)
	assert.Equal(t, builder.Id, seen.BuilderId)
	assert.Equal(t, "cookie-1", seen.Cookie)
	assert.Equal(t, model.BUILD_STATE_BUILDING, f.buildState(build.Id))
}

func TestDispatch_RefusedBuildReturnsJob(t *testing.T) {
	f := newFarm(t)
	builder := f.builder("bob", false)
	build, job := f.queued("hello", f.primary, model.POCKET_RELEASE, 10)
	f.workers["bob"].onBuild = func(request worker.BuildRequest) {
		f.workers["bob"].buildErr = worker.ErrWorkerFailure
	}

	_, err := f.dispatcher.dispatch(context.Background(), builder)
	require.NoError(t, err, "the first request is accepted")
	require.NoError(t, f.Store.Transaction(context.Background(), func(q *store.Queries) error {
		_, err := q.CompleteBuild("cookie-1", model.BUILD_STATE_FULLYBUILT, "")
		return err
	}))

	second, secondJob := f.queued("world", f.primary, model.POCKET_RELEASE, 5)
	_, err = f.dispatcher.dispatch(context.Background(), builder)
	assert.Equal(t, CODE_WORKER_FAILURE, CodeOf(err))

	stored, err := f.Store.GetJob(secondJob.Id)
	require.NoError(t, err)
	assert.False(t, stored.IsBound())
	assert.Empty(t, stored.Cookie)
	assert.Equal(t, model.BUILD_STATE_NEEDSBUILD, f.buildState(second.Id))
	assert.Equal(t, model.BUILD_STATE_FULLYBUILT, f.buildState(build.Id))
	_, err = f.Store.GetJob(job.Id)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestTick_TwoBuildersNeverShareAJob(t *testing.T) {
	f := newFarm(t)
	f.builder("alice", false)
	f.builder("bob", false)
	_, job := f.queued("hello", f.primary, model.POCKET_RELEASE, 10)

	started, err := f.dispatcher.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, started)

	assert.Len(t, f.workers["alice"].builds, 1, "the first builder by id takes the job")
	assert.Empty(t, f.workers["bob"].builds)

	stored, err := f.Store.GetJob(job.Id)
	require.NoError(t, err)
	assert.True(t, stored.IsBound())
}

func TestTick_BusyBuilderGetsNoSecondJob(t *testing.T) {
	f := newFarm(t)
	builder := f.builder("bob", false)
	f.queued("hello", f.primary, model.POCKET_RELEASE, 10)
	_, second := f.queued("world", f.primary, model.POCKET_RELEASE, 5)

	started, err := f.dispatcher.Tick(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, started)

	started, err = f.dispatcher.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, started)

	stored, err := f.Store.GetJob(second.Id)
	require.NoError(t, err)
	assert.False(t, stored.IsBound())

	behavior, err := f.dispatcher.BehaviorOf(builder)
	require.NoError(t, err)
	assert.IsType(t, &BuildingBehavior{}, behavior)
}

func TestTick_SkipsManualAndFailedBuilders(t *testing.T) {
	f := newFarm(t)
	manual := f.builder("manual", false)
	failed := f.builder("failed", false)
	_, err := f.Store.DB.ID(manual.Id).Cols("manual").Update(&model.Builder{Manual: true})
	require.NoError(t, err)
	require.NoError(t, f.Store.FailBuilder(failed.Id, "broken"))
	f.queued("hello", f.primary, model.POCKET_RELEASE, 10)

	started, err := f.dispatcher.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, started)
}

func TestHandleFailure(t *testing.T) {
	cause := errors.New("timed out")

	t.Run("virtualized resumed", func(t *testing.T) {
		f := newFarm(t)
		builder := f.builder("bob", true)

		require.NoError(t, f.dispatcher.HandleFailure(context.Background(), builder, cause))
		reloaded, err := f.Store.GetBuilder(builder.Id)
		require.NoError(t, err)
		assert.True(t, reloaded.BuilderOK)
		assert.Equal(t, []string{"bob-host"}, f.resumer.hosts)
	})

	t.Run("virtualized resume fails", func(t *testing.T) {
		f := newFarm(t)
		builder := f.builder("bob", true)
		f.resumer.err = worker.ErrCannotResumeHost

		require.NoError(t, f.dispatcher.HandleFailure(context.Background(), builder, cause))
		reloaded, err := f.Store.GetBuilder(builder.Id)
		require.NoError(t, err)
		assert.False(t, reloaded.BuilderOK)
		assert.Contains(t, reloaded.FailNotes, worker.ErrCannotResumeHost.Error())
	})

	t.Run("non-virtualized with a running build", func(t *testing.T) {
		f := newFarm(t)
		builder := f.builder("bob", false)
		build, job := f.queued("hello", f.primary, model.POCKET_RELEASE, 10)
		started, err := f.dispatcher.Tick(context.Background())
		require.NoError(t, err)
		require.Equal(t, 1, started)

		require.NoError(t, f.dispatcher.HandleFailure(context.Background(), builder, cause))

		stored, err := f.Store.GetBuild(build.Id)
		require.NoError(t, err)
		assert.Equal(t, model.BUILD_STATE_FAILEDTOBUILD, stored.State)
		assert.Contains(t, stored.FailureNotes, "timed out")
		_, err = f.Store.GetJob(job.Id)
		assert.ErrorIs(t, err, store.ErrNotFound)

		reloaded, err := f.Store.GetBuilder(builder.Id)
		require.NoError(t, err)
		assert.False(t, reloaded.BuilderOK)

		require.NoError(t, f.Store.EnableBuilder(builder.Id))
		reloaded, err = f.Store.GetBuilder(builder.Id)
		require.NoError(t, err)
		behavior, err := f.dispatcher.BehaviorOf(reloaded)
		require.NoError(t, err)
		assert.IsType(t, &IdleBehavior{}, behavior)

		next, _ := f.queued("world", f.primary, model.POCKET_RELEASE, 5)
		started, err = f.dispatcher.Tick(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 1, started)
		assert.Equal(t, model.BUILD_STATE_BUILDING, f.buildState(next.Id))
	})

	t.Run("virtualized resumed with a running build", func(t *testing.T) {
		f := newFarm(t)
		ppa := f.Archive("ppa", model.ARCHIVE_PURPOSE_PPA)
		builder := f.builder("bob", true)
		build, job := f.queued("hello", ppa, model.POCKET_RELEASE, 10)
		started, err := f.dispatcher.Tick(context.Background())
		require.NoError(t, err)
		require.Equal(t, 1, started)

		require.NoError(t, f.dispatcher.HandleFailure(context.Background(), builder, cause))

		assert.Equal(t, model.BUILD_STATE_FAILEDTOBUILD, f.buildState(build.Id))
		_, err = f.Store.GetJob(job.Id)
		assert.ErrorIs(t, err, store.ErrNotFound)

		reloaded, err := f.Store.GetBuilder(builder.Id)
		require.NoError(t, err)
		assert.True(t, reloaded.BuilderOK)
		assert.Equal(t, []string{"bob-host", "bob-host"}, f.resumer.hosts)

		behavior, err := f.dispatcher.BehaviorOf(reloaded)
		require.NoError(t, err)
		assert.IsType(t, &IdleBehavior{}, behavior)
	})

	t.Run("non-virtualized", func(t *testing.T) {
		f := newFarm(t)
		builder := f.builder("bob", false)

		require.NoError(t, f.dispatcher.HandleFailure(context.Background(), builder, cause))
		reloaded, err := f.Store.GetBuilder(builder.Id)
		require.NoError(t, err)
		assert.False(t, reloaded.BuilderOK)
		assert.Equal(t, "timed out", reloaded.FailNotes)
		assert.Empty(t, f.resumer.hosts)
	})
}

func TestCheckBuilders(t *testing.T) {
	f := newFarm(t)
	healthy := f.builder("alice", false)
	broken := f.builder("bob", false)
	f.workers["bob"].statusErr = worker.ErrWorkerFailure

	failures, err := f.dispatcher.CheckBuilders(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, failures)

	reloaded, err := f.Store.GetBuilder(healthy.Id)
	require.NoError(t, err)
	assert.True(t, reloaded.BuilderOK)

	reloaded, err = f.Store.GetBuilder(broken.Id)
	require.NoError(t, err)
	assert.False(t, reloaded.BuilderOK)
	assert.Contains(t, reloaded.FailNotes, string(CODE_WORKER_FAILURE))
}

func TestCheckBuilders_WaitsForTick(t *testing.T) {
	f := newFarm(t)
	f.builder("bob", false)
	f.queued("hello", f.primary, model.POCKET_RELEASE, 10)
	hold := make(chan struct{})
	f.workers["bob"].infoHold = hold

	ticked := make(chan struct{})
	go func() {
		defer close(ticked)
		_, err := f.dispatcher.Tick(context.Background())
		assert.NoError(t, err)
	}()
	// Wait until the tick holds the lock.
	require.Eventually(t, func() bool {
		if f.dispatcher.mu.TryLock() {
			f.dispatcher.mu.Unlock()
			return false
		}
		return true
	}, 5*time.Second, time.Millisecond)

	checked := make(chan struct{})
	go func() {
		defer close(checked)
		_, err := f.dispatcher.CheckBuilders(context.Background())
		assert.NoError(t, err)
	}()

	select {
	case <-checked:
		t.Fatal("health check ran during a dispatch tick")
	case <-time.After(100 * time.Millisecond):
	}

	close(hold)
	for _, done := range []chan struct{}{ticked, checked} {
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Fatal("tick or health check never finished")
		}
	}
}

func TestRequestAbort(t *testing.T) {
	f := newFarm(t)
	builder := f.builder("bob", false)

	f.dispatcher.RequestAbort(context.Background(), builder)

	select {
	case <-f.workers["bob"].aborted:
	case <-time.After(5 * time.Second):
		t.Fatal("abort was never sent to the worker")
	}
}
