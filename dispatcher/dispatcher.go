// Package dispatcher hands queued build jobs to idle build workers.
package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hashworks/buildfarm/model"
	"github.com/hashworks/buildfarm/selector"
	"github.com/hashworks/buildfarm/store"
	"github.com/hashworks/buildfarm/worker"
)

// BUILDD_USER is the user private archives grant workers source access to.
const BUILDD_USER = "buildd"

// ClientFactory returns the RPC client of a builder.
type ClientFactory func(builder *model.Builder) worker.Client

// HTTPClients returns a ClientFactory speaking HTTP with the given timeout.
func HTTPClients(timeout time.Duration) ClientFactory {
	return func(builder *model.Builder) worker.Client {
		return worker.NewHTTPClient(builder.URL, timeout)
	}
}

type Dispatcher struct {
	Store   *store.Store
	Clients ClientFactory
	Resumer worker.HostResumer
	// ArchiveRootURL is where workers download source files from.
	ArchiveRootURL string
	Logger         *slog.Logger

	// mu serializes dispatch ticks and health checks.
	mu        sync.Mutex
	newCookie func() string
}

func New(s *store.Store, clients ClientFactory, resumer worker.HostResumer, archiveRootURL string, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		Store:          s,
		Clients:        clients,
		Resumer:        resumer,
		ArchiveRootURL: archiveRootURL,
		Logger:         logger,
		newCookie:      uuid.NewString,
	}
}

// Tick visits every dispatchable builder once, by id, and starts a job on
// each idle one. It returns the number of started jobs. Dispatch failures are
// logged and leave the builder idle.
func (d *Dispatcher) Tick(ctx context.Context) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	builders, err := d.Store.ListDispatchableBuilders()
	if err != nil {
		return 0, fmt.Errorf("failed to list builders: %w", err)
	}

	started := 0
	for _, builder := range builders {
		if err := ctx.Err(); err != nil {
			return started, err
		}
		behavior, err := d.BehaviorOf(builder)
		if err != nil {
			d.Logger.Error("Failed to get current job of builder", "builder", builder.Name, "error", err)
			continue
		}
		switch b := behavior.(type) {
		case *BuildingBehavior:
			d.Logger.Debug("Builder is busy", "builder", builder.Name, "build", b.Build.Id)
		case *IdleBehavior:
			candidate, err := d.dispatch(ctx, b.Builder)
			if err != nil {
				d.Logger.Warn("Failed to dispatch to builder", "builder", builder.Name, "code", CodeOf(err), "error", err)
				continue
			}
			if candidate != nil {
				started++
			}
		}
	}
	return started, nil
}

// FindBuildCandidate returns the best job for the builder. SECURITY builds are
// failed and builds whose source is no longer published are superseded, their
// jobs dropped, and the search starts over from the database.
func (d *Dispatcher) FindBuildCandidate(ctx context.Context, builder *model.Builder) (*selector.Candidate, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		candidates, err := d.Store.LoadCandidates(builder.ProcessorId)
		if err != nil {
			return nil, err
		}
		load, err := d.Store.FamilyLoad(builder.ProcessorId)
		if err != nil {
			return nil, fmt.Errorf("failed to get load of processor family: %w", err)
		}
		candidate := selector.Select(builder, candidates, load)
		if candidate == nil {
			return nil, nil
		}

		if candidate.Build.Pocket == model.POCKET_SECURITY {
			d.Logger.Info("Not dispatching security build", "builder", builder.Name, "build", candidate.Build.Id)
			if err := d.Store.DropJob(candidate.Job, model.BUILD_STATE_FAILEDTOBUILD, "security builds are not dispatched automatically"); err != nil {
				return nil, fmt.Errorf("failed to drop security job %d: %w", candidate.Job.Id, err)
			}
			continue
		}

		_, err = d.Store.CurrentSourcePublication(candidate.Build)
		if errors.Is(err, store.ErrNotFound) {
			d.Logger.Info("Source of build was superseded", "builder", builder.Name, "build", candidate.Build.Id)
			if err := d.Store.DropJob(candidate.Job, model.BUILD_STATE_SUPERSEDED, ""); err != nil {
				return nil, fmt.Errorf("failed to drop superseded job %d: %w", candidate.Job.Id, err)
			}
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to get source publication of build %d: %w", candidate.Build.Id, err)
		}
		return candidate, nil
	}
}

// dispatch starts the best candidate on an idle builder. It returns nil, nil
// when there is nothing to build.
func (d *Dispatcher) dispatch(ctx context.Context, builder *model.Builder) (*selector.Candidate, error) {
	candidate, err := d.FindBuildCandidate(ctx, builder)
	if err != nil || candidate == nil {
		return nil, err
	}
	logger := d.Logger.With("builder", builder.Name, "build", candidate.Build.Id, "job", candidate.Job.Id)

	das, err := d.Store.GetDistroArchSeries(candidate.Build.DistroArchSeriesId)
	if err != nil {
		return nil, err
	}
	client := d.Clients(builder)

	if err := d.verify(ctx, builder, client, das); err != nil {
		return nil, err
	}
	if builder.Virtualized {
		if err := d.resumeHost(ctx, builder); err != nil {
			return nil, err
		}
	}
	request, err := d.buildRequest(ctx, builder, client, candidate, das)
	if err != nil {
		return nil, err
	}

	var bound bool
	err = d.Store.Transaction(ctx, func(q *store.Queries) error {
		bound, err = q.BindJob(candidate.Job.Id, builder.Id, request.Cookie)
		return err
	})
	if err != nil {
		return nil, err
	}
	if !bound {
		return nil, newError(CODE_CANNOT_BUILD, builder.Name, "job %d is no longer available", candidate.Job.Id)
	}
	if err := d.startBuild(ctx, builder, client, request); err != nil {
		unbindErr := d.Store.Transaction(ctx, func(q *store.Queries) error {
			return q.UnbindJob(candidate.Job.Id, request.Cookie)
		})
		if unbindErr != nil {
			logger.Error("Failed to return job to the queue", "error", unbindErr)
		}
		return nil, err
	}

	logger.Info("Dispatched build", "cookie", request.Cookie, "arch", das.ArchTag, "score", candidate.Job.LastScore)
	return candidate, nil
}

func (d *Dispatcher) startBuild(ctx context.Context, builder *model.Builder, client worker.Client, request worker.BuildRequest) error {
	response, err := client.Build(ctx, request)
	if err != nil {
		return &Error{Code: CODE_WORKER_FAILURE, Builder: builder.Name, Err: err}
	}
	if response.Status != worker.STATUS_BUILDING {
		return newError(CODE_CANNOT_BUILD, builder.Name, "worker refused build: %s %s", response.Status, response.Info)
	}
	return nil
}

func (d *Dispatcher) verify(ctx context.Context, builder *model.Builder, client worker.Client, das *model.DistroArchSeries) error {
	info, err := client.Info(ctx)
	if err != nil {
		return &Error{Code: CODE_WORKER_FAILURE, Builder: builder.Name, Err: err}
	}
	if info.ProtocolVersion != worker.ProtocolVersion {
		return newError(CODE_PROTOCOL_MISMATCH, builder.Name, "worker speaks protocol %q, expected %q", info.ProtocolVersion, worker.ProtocolVersion)
	}
	if !info.SupportsArch(das.ArchTag) {
		return newError(CODE_ARCHITECTURE_MISMATCH, builder.Name, "worker does not build %s, only %v", das.ArchTag, info.ArchTags)
	}

	status, err := client.Status(ctx)
	if err != nil {
		return &Error{Code: CODE_WORKER_FAILURE, Builder: builder.Name, Err: err}
	}
	if status.Status != worker.STATUS_IDLE {
		return newError(CODE_CANNOT_BUILD, builder.Name, "worker is %s, not %s", status.Status, worker.STATUS_IDLE)
	}
	return nil
}

func (d *Dispatcher) resumeHost(ctx context.Context, builder *model.Builder) error {
	if d.Resumer == nil {
		return newError(CODE_CANNOT_RESUME_HOST, builder.Name, "no host resumer configured")
	}
	result, err := d.Resumer.Resume(ctx, builder.VMHost)
	if err != nil {
		return &Error{Code: CODE_CANNOT_RESUME_HOST, Builder: builder.Name, Err: err}
	}
	d.Logger.Debug("Resumed builder host", "builder", builder.Name, "vm_host", builder.VMHost, "stdout", result.Stdout, "stderr", result.Stderr)
	return nil
}

// buildRequest makes the worker fetch the chroot and every source file and
// returns the request that starts the build.
func (d *Dispatcher) buildRequest(ctx context.Context, builder *model.Builder, client worker.Client, candidate *selector.Candidate, das *model.DistroArchSeries) (worker.BuildRequest, error) {
	build, archive := candidate.Build, candidate.Archive

	series, err := d.Store.GetDistroSeries(das.DistroSeriesId)
	if err != nil {
		return worker.BuildRequest{}, err
	}
	files, err := d.Store.ListSourcePackageReleaseFiles(build.SourcePackageReleaseId)
	if err != nil {
		return worker.BuildRequest{}, err
	}

	if err := d.ensurePresent(ctx, builder, client, worker.EnsurePresentRequest{SHA1: das.ChrootSHA1, URL: das.ChrootURL}); err != nil {
		return worker.BuildRequest{}, err
	}
	request := worker.BuildRequest{
		Cookie:      d.newCookie(),
		BuilderType: worker.BUILDER_TYPE_BINARY_PACKAGE,
		ChrootSHA1:  das.ChrootSHA1,
		Files:       make(map[string]string, len(files)),
		Archive:     archive.Name,
		ArchTag:     das.ArchTag,
		Suite:       series.Suite(build.Pocket),
		Private:     archive.Private,
	}
	for _, file := range files {
		fileURL, err := url.JoinPath(d.ArchiveRootURL, archive.Name, "+files", file.Filename)
		if err != nil {
			return worker.BuildRequest{}, fmt.Errorf("failed to build url of %s: %w", file.Filename, err)
		}
		ensure := worker.EnsurePresentRequest{SHA1: file.SHA1, URL: fileURL}
		if archive.Private {
			ensure.User = BUILDD_USER
			ensure.Password = archive.BuilddSecret
		}
		if err := d.ensurePresent(ctx, builder, client, ensure); err != nil {
			return worker.BuildRequest{}, err
		}
		request.Files[file.Filename] = file.SHA1
	}
	return request, nil
}

func (d *Dispatcher) ensurePresent(ctx context.Context, builder *model.Builder, client worker.Client, request worker.EnsurePresentRequest) error {
	response, err := client.EnsurePresent(ctx, request)
	if err != nil {
		return &Error{Code: CODE_WORKER_FAILURE, Builder: builder.Name, Err: err}
	}
	if !response.Present {
		return newError(CODE_CANNOT_BUILD, builder.Name, "worker failed to fetch %s: %s", request.URL, response.Info)
	}
	return nil
}
