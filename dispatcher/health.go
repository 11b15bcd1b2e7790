package dispatcher

import (
	"context"
	"fmt"

	"github.com/hashworks/buildfarm/model"
	"github.com/hashworks/buildfarm/store"
)

// HandleFailure deals with a builder that timed out or failed an RPC.
// Virtualized builders get their host resumed and stay enabled if that works;
// every other case disables the builder until it is re-enabled manually.
// Either way the build the builder was running is lost and fails.
func (d *Dispatcher) HandleFailure(ctx context.Context, builder *model.Builder, cause error) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.handleFailure(ctx, builder, cause)
}

func (d *Dispatcher) handleFailure(ctx context.Context, builder *model.Builder, cause error) error {
	notes := cause.Error()
	resumed := false
	if builder.Virtualized {
		if err := d.resumeHost(ctx, builder); err != nil {
			notes = err.Error()
		} else {
			resumed = true
		}
	}

	var failed *model.Build
	err := d.Store.Transaction(ctx, func(q *store.Queries) error {
		build, err := q.FailCurrentBuild(builder.Id, "builder "+builder.Name+" failed: "+notes)
		if err != nil {
			return fmt.Errorf("failed to fail build of builder %s: %w", builder.Name, err)
		}
		failed = build
		if resumed {
			return nil
		}
		if err := q.FailBuilder(builder.Id, notes); err != nil {
			return fmt.Errorf("failed to disable builder %s: %w", builder.Name, err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	if failed != nil {
		d.Logger.Warn("Failed build of failed builder", "builder", builder.Name, "build", failed.Id)
	}

	if resumed {
		d.Logger.Info("Resumed failed builder", "builder", builder.Name, "cause", cause)
		return nil
	}
	d.Logger.Warn("Disabled builder", "builder", builder.Name, "notes", notes)
	builder.BuilderOK = false
	builder.FailNotes = notes
	return nil
}

// CheckBuilders polls the status of every healthy builder and hands
// unreachable ones to HandleFailure. It returns the number of failures seen.
func (d *Dispatcher) CheckBuilders(ctx context.Context) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	builders, err := d.Store.ListHealthyBuilders()
	if err != nil {
		return 0, fmt.Errorf("failed to list builders: %w", err)
	}

	failures := 0
	for _, builder := range builders {
		if err := ctx.Err(); err != nil {
			return failures, err
		}
		if _, err := d.Clients(builder).Status(ctx); err != nil {
			failures++
			cause := &Error{Code: CODE_WORKER_FAILURE, Builder: builder.Name, Err: err}
			if err := d.handleFailure(ctx, builder, cause); err != nil {
				d.Logger.Error("Failed to handle builder failure", "builder", builder.Name, "error", err)
			}
		}
	}
	return failures, nil
}

// RequestAbort asks the worker to abort its build and returns without waiting.
// The builder goes idle once the status poll sees the aborted build.
func (d *Dispatcher) RequestAbort(ctx context.Context, builder *model.Builder) {
	client := d.Clients(builder)
	ctx = context.WithoutCancel(ctx)
	go func() {
		if err := client.Abort(ctx); err != nil {
			d.Logger.Warn("Failed to abort build", "builder", builder.Name, "error", err)
			return
		}
		d.Logger.Info("Requested abort", "builder", builder.Name)
	}()
}
