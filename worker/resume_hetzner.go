package worker

import (
	"context"
	"fmt"

	"github.com/hetznercloud/hcloud-go/hcloud"
)

// HetznerResumer resets builder VMs hosted on Hetzner Cloud. The builder's vm
// host is the server name.
type HetznerResumer struct {
	Client *hcloud.Client
}

func (r *HetznerResumer) Resume(ctx context.Context, vmHost string) (ResumeResult, error) {
	server, _, err := r.Client.Server.GetByName(ctx, vmHost)
	if err != nil {
		return ResumeResult{ExitCode: 1, Stderr: err.Error()}, fmt.Errorf("%w: failed to get hetzner server %s: %v", ErrCannotResumeHost, vmHost, err)
	}
	if server == nil {
		return ResumeResult{ExitCode: 1}, fmt.Errorf("%w: hetzner server %s not found", ErrCannotResumeHost, vmHost)
	}

	action, _, err := r.Client.Server.Reset(ctx, server)
	if err != nil {
		return ResumeResult{ExitCode: 1, Stderr: err.Error()}, fmt.Errorf("%w: failed to reset hetzner server %s: %v", ErrCannotResumeHost, vmHost, err)
	}
	if err := r.waitForAction(ctx, action); err != nil {
		return ResumeResult{ExitCode: 1, Stderr: err.Error()}, fmt.Errorf("%w: reset of hetzner server %s failed: %v", ErrCannotResumeHost, vmHost, err)
	}

	return ResumeResult{Stdout: fmt.Sprintf("reset %s (action %d)", server.Name, action.ID)}, nil
}

func (r *HetznerResumer) waitForAction(ctx context.Context, action *hcloud.Action) error {
	progress, errs := r.Client.Action.WatchProgress(ctx, action)
	for {
		select {
		case _, ok := <-progress:
			if !ok {
				progress = nil
			}
		case err, ok := <-errs:
			if !ok {
				return nil
			}
			if err != nil {
				return err
			}
		}
	}
}
