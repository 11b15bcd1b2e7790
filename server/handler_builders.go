package server

import (
	"context"
	"fmt"

	"github.com/hetznercloud/hcloud-go/hcloud"

	"github.com/hashworks/buildfarm/model"
)

// HETZNER_PROCESSOR_LABEL marks Hetzner VMs that run a build worker. Its
// value is the processor family the worker builds for.
const HETZNER_PROCESSOR_LABEL = "buildfarm-processor"

// DispatchBuilds runs one dispatch tick.
func (s *Server) DispatchBuilds() {
	started, err := s.Dispatcher.Tick(context.Background())
	if err != nil {
		s.Logger.Error("Failed to dispatch builds", "error", err)
		return
	}
	if started > 0 {
		s.Logger.Info("Dispatched builds", "started", started)
	}
}

// CheckBuilderHealth polls every healthy builder and fails or resumes the
// unreachable ones.
func (s *Server) CheckBuilderHealth() {
	failures, err := s.Dispatcher.CheckBuilders(context.Background())
	if err != nil {
		s.Logger.Error("Failed to check builders", "error", err)
		return
	}
	if failures > 0 {
		s.Logger.Warn("Builders failed their health check", "failures", failures)
	}
}

// SyncHetznerBuilders registers every labelled Hetzner VM as a virtualized
// builder. Known builders are left alone.
func (s *Server) SyncHetznerBuilders() {
	if s.HetznerClient == nil {
		return
	}
	registered, err := s.syncHetznerBuilders(context.Background())
	if err != nil {
		s.Logger.Error("Failed to sync hetzner builders", "error", err)
		return
	}
	if registered > 0 {
		s.Logger.Info("Registered hetzner builders", "registered", registered)
	}
}

func (s *Server) syncHetznerBuilders(ctx context.Context) (int, error) {
	servers, err := s.HetznerClient.Server.AllWithOpts(ctx, hcloud.ServerListOpts{
		ListOpts: hcloud.ListOpts{LabelSelector: HETZNER_PROCESSOR_LABEL},
	})
	if err != nil {
		return 0, fmt.Errorf("failed to list hetzner servers: %w", err)
	}

	registered := 0
	for _, server := range servers {
		if server.Status != hcloud.ServerStatusRunning {
			continue
		}
		processor, err := s.Store.GetProcessorByName(server.Labels[HETZNER_PROCESSOR_LABEL])
		if err != nil {
			s.Logger.Warn("Failed to get processor of hetzner server", "server", server.Name, "error", err)
			continue
		}
		builder := model.NewBuilderFromHetznerServer(server, processor.Id, s.WorkerPort)
		created, err := s.Store.RegisterBuilder(&builder)
		if err != nil {
			return registered, fmt.Errorf("failed to register builder %s: %w", builder.Name, err)
		}
		if created {
			registered++
		}
	}
	return registered, nil
}
