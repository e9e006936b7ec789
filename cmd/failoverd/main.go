package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/hamed0406/dnsfailover/internal/config"
	"github.com/hamed0406/dnsfailover/internal/converge"
	"github.com/hamed0406/dnsfailover/internal/engine"
	"github.com/hamed0406/dnsfailover/internal/eventlog"
	"github.com/hamed0406/dnsfailover/internal/httpapi"
	"github.com/hamed0406/dnsfailover/internal/httpapi/middleware"
	"github.com/hamed0406/dnsfailover/internal/logging"
	"github.com/hamed0406/dnsfailover/internal/notify"
	"github.com/hamed0406/dnsfailover/internal/policy"
	"github.com/hamed0406/dnsfailover/internal/probe"
	"github.com/hamed0406/dnsfailover/internal/provider"
	"github.com/hamed0406/dnsfailover/internal/retry"
	"github.com/hamed0406/dnsfailover/internal/scheduler"
)

// Version information (set via ldflags during build)
var (
	Version = "dev"
	Commit  = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "failoverd",
	Short: "DNS failover and load-balancing engine",
	Long: `failoverd probes backend targets from multiple origins, decides
failover, failback and weighted rotation per policy, and converges
provider DNS records onto the decided state.`,
	Version: Version,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"failoverd version %s (commit %s)\n", Version, Commit,
	))
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("failoverd version %s (commit %s)\n", Version, Commit)
	},
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the probe, decision and convergence loops plus the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		return run()
	},
}

var validateCmd = &cobra.Command{
	Use:   "validate [policy-file]",
	Short: "Validate a policy file and exit",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := config.FromEnv().PolicyFile
		if len(args) == 1 {
			path = args[0]
		}
		snap, err := policy.NewYAMLStore(path).Load(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Printf("%s: ok (%d groups, %d failovers, %d load balancers, %d monitors)\n",
			path, len(snap.Groups), len(snap.Failovers), len(snap.LoadBalancers), len(snap.Monitors))
		return nil
	},
}

func run() error {
	cfg := config.FromEnv()

	logger, err := logging.NewLogger(cfg.LogDir, zapcore.InfoLevel)
	if err != nil {
		log.Fatal(err)
	}
	defer logger.Sync()

	store := policy.NewYAMLStore(cfg.PolicyFile)

	var events eventlog.Store
	if cfg.EventDB != "" {
		bolt, err := eventlog.NewBolt(cfg.EventDB)
		if err != nil {
			return fmt.Errorf("open event db: %w", err)
		}
		defer bolt.Close()
		events = bolt
	} else {
		logger.Warn("event_log_in_memory", zap.String("hint", "set EVENT_DB for durable events"))
		events = eventlog.NewMemory()
	}

	mutator := converge.NewMutator(logger, provider.NewCloudflare(cfg.CloudflareToken), retry.Policy{
		Attempts: cfg.ConvergeRetries,
		Backoff:  cfg.ConvergeBackoff,
		MaxDelay: 30 * time.Second,
	})
	mutator.Verifier = converge.NewVerifier(logger, cfg.VerifyResolver)

	var notifiers notify.Multi
	if tg := notify.NewTelegram(cfg.TelegramToken); tg != nil {
		notifiers = append(notifiers, tg)
	}
	if sl := notify.NewSlack(cfg.SlackWebhook); sl != nil {
		notifiers = append(notifiers, sl)
	}

	eng := engine.New(logger, events, mutator, notifiers,
		cfg.TickInterval, cfg.FailbackWindow, cfg.DegradedAfter)

	sched := scheduler.New(logger,
		probe.NewProber(logger, cfg.ProbeTimeout),
		store, cfg.TickInterval, cfg.RoundMargin, cfg.Concurrency)
	sched.OnRound = eng.OnRound

	api := httpapi.NewServer(logger, eng, middleware.Keys{Admin: cfg.AdminAPIKeys})
	srv := &http.Server{Addr: cfg.Addr, Handler: api.Router()}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("api_listen", zap.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("api_server_error", zap.Error(err))
			stop()
		}
	}()

	logger.Info("scheduler_start",
		zap.Duration("interval", cfg.TickInterval),
		zap.Int("concurrency", cfg.Concurrency),
	)
	sched.Run(ctx)

	shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutCtx)
}
