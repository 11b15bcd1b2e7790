package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/cheggaaa/pb/v3"
	"github.com/hetznercloud/hcloud-go/hcloud"
	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"github.com/hashworks/buildfarm/builds"
	"github.com/hashworks/buildfarm/dispatcher"
	_ "github.com/hashworks/buildfarm/docs"
	"github.com/hashworks/buildfarm/domination"
	"github.com/hashworks/buildfarm/inventory"
	"github.com/hashworks/buildfarm/server"
	"github.com/hashworks/buildfarm/store"
	"github.com/hashworks/buildfarm/worker"
)

func getEnv(key string, defaultValue string) string {
	v := os.Getenv(key)
	if len(v) == 0 {
		return defaultValue
	}
	return v
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	d, err := time.ParseDuration(getEnv(key, ""))
	if err != nil {
		return defaultValue
	}
	return d
}

func getEnvInt(key string, defaultValue int) int {
	i, err := strconv.Atoi(getEnv(key, ""))
	if err != nil {
		return defaultValue
	}
	return i
}

type options struct {
	driver          string
	dsn             string
	archiveRootURL  string
	resumeCommand   string
	hetznerToken    string
	workerTimeout   time.Duration
	workerPort      int
	dispatchEvery   time.Duration
	healthEvery     time.Duration
	hetznerSyncCron string
	verbose         bool
}

func (o *options) logger() *slog.Logger {
	level := slog.LevelInfo
	if o.verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func (o *options) openStore() (*store.Store, error) {
	if len(o.driver) == 0 {
		return nil, errors.New("missing database driver")
	}
	if len(o.dsn) == 0 {
		return nil, errors.New("missing database data source name")
	}
	s, err := store.Open(o.driver, o.dsn)
	if err != nil {
		return nil, err
	}
	if err := s.Sync(); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

func (o *options) hetznerClient() *hcloud.Client {
	if len(o.hetznerToken) == 0 {
		return nil
	}
	return hcloud.NewClient(hcloud.WithToken(o.hetznerToken))
}

// resumer prefers resetting Hetzner VMs over running the resume command.
func (o *options) resumer(client *hcloud.Client) (worker.HostResumer, error) {
	if client != nil {
		return &worker.HetznerResumer{Client: client}, nil
	}
	if len(o.resumeCommand) == 0 {
		return nil, nil
	}
	return worker.NewCommandResumer(o.resumeCommand, 0)
}

func (o *options) newServer(s *store.Store, logger *slog.Logger) (*server.Server, error) {
	if len(o.archiveRootURL) == 0 {
		return nil, errors.New("missing archive root URL")
	}
	hetzner := o.hetznerClient()
	resumer, err := o.resumer(hetzner)
	if err != nil {
		return nil, err
	}
	return &server.Server{
		Store:         s,
		Dispatcher:    dispatcher.New(s, dispatcher.HTTPClients(o.workerTimeout), resumer, o.archiveRootURL, logger),
		Engine:        domination.New(s, logger),
		Creator:       builds.NewCreator(s, nil, logger),
		HetznerClient: hetzner,
		WorkerPort:    o.workerPort,
		Logger:        logger,
	}, nil
}

func newRootCommand() *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:          "buildfarm",
		Short:        "Build farm controller",
		Long:         "Dispatches package builds to workers and maintains the publishing history of the archives.",
		SilenceUsage: true,
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&opts.driver, "driver", getEnv("DB_DRIVER", "sqlite3"), "Database driver [$DB_DRIVER]")
	flags.StringVar(&opts.dsn, "dsn", getEnv("DB_DSN", "file:buildfarm.db?cache=shared"), "Database data source name [$DB_DSN]")
	flags.StringVar(&opts.archiveRootURL, "archive-root", getEnv("ARCHIVE_ROOT_URL", "http://127.0.0.1:8080/archive"), "URL workers fetch source files from [$ARCHIVE_ROOT_URL]")
	flags.StringVar(&opts.resumeCommand, "resume-command", getEnv("VM_RESUME_COMMAND", ""), "Template of the command resetting a builder VM, e.g. 'ssh ppa@{{.VMHost}} ppa-reset' [$VM_RESUME_COMMAND]")
	flags.StringVar(&opts.hetznerToken, "hetzner", getEnv("HETZNER_API_TOKEN", ""), "Hetzner API Token, enables Hetzner builder VMs [$HETZNER_API_TOKEN]")
	flags.DurationVar(&opts.workerTimeout, "worker-timeout", getEnvDuration("WORKER_TIMEOUT", 30*time.Second), "Timeout of a single worker request [$WORKER_TIMEOUT]")
	flags.IntVar(&opts.workerPort, "worker-port", getEnvInt("WORKER_PORT", 8221), "Port workers on Hetzner VMs listen on [$WORKER_PORT]")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "Log debug messages")

	cmd.AddCommand(newServeCommand(opts))
	cmd.AddCommand(newDispatchCommand(opts))
	cmd.AddCommand(newSeedCommand(opts))

	return cmd
}

func newServeCommand(opts *options) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the API and run the dispatcher periodically",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(addr) == 0 {
				return errors.New("missing address")
			}
			logger := opts.logger()
			s, err := opts.openStore()
			if err != nil {
				return err
			}
			defer s.Close()

			srv, err := opts.newServer(s, logger)
			if err != nil {
				return err
			}

			c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
			if _, err := c.AddFunc("@every "+opts.dispatchEvery.String(), srv.DispatchBuilds); err != nil {
				return fmt.Errorf("invalid dispatch interval: %w", err)
			}
			if _, err := c.AddFunc("@every "+opts.healthEvery.String(), srv.CheckBuilderHealth); err != nil {
				return fmt.Errorf("invalid health check interval: %w", err)
			}
			if srv.HetznerClient != nil {
				if _, err := c.AddFunc(opts.hetznerSyncCron, srv.SyncHetznerBuilders); err != nil {
					return fmt.Errorf("invalid hetzner sync schedule: %w", err)
				}
				srv.SyncHetznerBuilders()
			}
			c.Start()
			defer c.Stop()

			routerEngine := srv.NewRouter()

			logger.Info("Starting build farm controller", "address", addr)

			return routerEngine.Run(addr)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", getEnv("ADDRESS", "127.0.0.1:8080"), "Address to bind [$ADDRESS]")
	cmd.Flags().DurationVar(&opts.dispatchEvery, "dispatch-interval", getEnvDuration("DISPATCH_INTERVAL", 30*time.Second), "Time between dispatch ticks [$DISPATCH_INTERVAL]")
	cmd.Flags().DurationVar(&opts.healthEvery, "health-interval", getEnvDuration("HEALTH_INTERVAL", 5*time.Minute), "Time between builder health checks [$HEALTH_INTERVAL]")
	cmd.Flags().StringVar(&opts.hetznerSyncCron, "hetzner-sync", getEnv("HETZNER_SYNC", "@every 5m"), "Cron schedule of the Hetzner builder sync [$HETZNER_SYNC]")

	return cmd
}

func newDispatchCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "dispatch",
		Short: "Run a single dispatch tick and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := opts.logger()
			s, err := opts.openStore()
			if err != nil {
				return err
			}
			defer s.Close()

			srv, err := opts.newServer(s, logger)
			if err != nil {
				return err
			}
			dispatched, err := srv.Dispatcher.Tick(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Dispatched %d builds\n", dispatched)
			return nil
		},
	}
}

func newSeedCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "seed <inventory.yaml>",
		Short: "Create processors, series, archives and builders from an inventory file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()
			farm, err := inventory.Load(f)
			if err != nil {
				return err
			}

			s, err := opts.openStore()
			if err != nil {
				return err
			}
			defer s.Close()

			bar := pb.StartNew(farm.Len())
			var created int
			err = s.Transaction(cmd.Context(), func(q *store.Queries) error {
				created, err = farm.Apply(q, func() { bar.Increment() })
				return err
			})
			bar.Finish()
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created %d of %d records\n", created, farm.Len())
			return nil
		},
	}
}

// @title Build Farm
// @version 1.0
// @description Build dispatcher and publication domination engine of a Debian style build farm
// @contact.name Justin Kromlinger
// @contact.url https://hashworks.net
// @license.name GNU General Public License v3
// @license.url https://www.gnu.org/licenses/gpl-3.0
// @BasePath /api
func main() {
	if err := newRootCommand().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}
