package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ternarybob/arbor"

	"github.com/vanillabrand/fandom-velocity/internal/actor"
	"github.com/vanillabrand/fandom-velocity/internal/analysis"
	"github.com/vanillabrand/fandom-velocity/internal/cache"
	"github.com/vanillabrand/fandom-velocity/internal/common"
	"github.com/vanillabrand/fandom-velocity/internal/credentials"
	"github.com/vanillabrand/fandom-velocity/internal/executor"
	"github.com/vanillabrand/fandom-velocity/internal/graph"
	"github.com/vanillabrand/fandom-velocity/internal/interfaces"
	"github.com/vanillabrand/fandom-velocity/internal/ledger"
	"github.com/vanillabrand/fandom-velocity/internal/notify"
	"github.com/vanillabrand/fandom-velocity/internal/resolver"
	"github.com/vanillabrand/fandom-velocity/internal/runner"
	"github.com/vanillabrand/fandom-velocity/internal/scheduler"
	badgerstorage "github.com/vanillabrand/fandom-velocity/internal/storage/badger"
)

// configPaths is a custom flag type that allows multiple -config flags
type configPaths []string

func (c *configPaths) String() string {
	return fmt.Sprintf("%v", *c)
}

func (c *configPaths) Set(value string) error {
	*c = append(*c, value)
	return nil
}

var (
	configFiles  configPaths
	showVersion  = flag.Bool("version", false, "Print version information")
	showVersionV = flag.Bool("v", false, "Print version information (shorthand)")
)

func init() {
	flag.Var(&configFiles, "config", "Configuration file path (can be specified multiple times, later files override earlier ones)")
	flag.Var(&configFiles, "c", "Configuration file path (shorthand)")
}

func main() {
	flag.Parse()

	if *showVersion || *showVersionV {
		fmt.Printf("Velocity version %s\n", common.GetVersion())
		os.Exit(0)
	}

	// Auto-discover config file if not specified
	if len(configFiles) == 0 {
		if _, err := os.Stat("velocity.toml"); err == nil {
			configFiles = append(configFiles, "velocity.toml")
		}
	}

	// Startup order: config, logger, banner, storage, services, scheduler.
	config, err := common.LoadFromFiles(configFiles...)
	if err != nil {
		tempLogger := arbor.NewLogger()
		tempLogger.Fatal().Err(err).Msg("Failed to load configuration")
		os.Exit(1)
	}

	logger := common.InitLogger(config)

	if err := config.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("Invalid configuration")
		os.Exit(1)
	}

	common.PrintBanner(common.GetVersion())

	logger.Info().
		Str("environment", config.Environment).
		Str("badger_path", config.Storage.Badger.Path).
		Str("log_level", config.Logging.Level).
		Msg("Starting Velocity job engine")

	storageManager, err := badgerstorage.NewManager(logger, &config.Storage.Badger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize storage")
		os.Exit(1)
	}
	defer func() {
		if err := storageManager.Close(); err != nil {
			logger.Warn().Err(err).Msg("Storage close failed")
		}
	}()

	pool, err := credentials.NewPool(config.Actor.Tokens)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to build credential pool (set actor.tokens or VELOCITY_ACTOR_TOKENS)")
		os.Exit(1)
	}

	provider := actor.NewClient(
		actor.WithBaseURL(config.Actor.BaseURL),
		actor.WithTimeout(config.ActorRequestTimeout()),
		actor.WithSubmitRate(config.Actor.SubmitRate),
		actor.WithLogger(logger),
	)

	var fallback interfaces.FallbackProvider
	if config.Actor.Fallback.Enabled {
		fallback = actor.NewFallbackClient(
			config.Actor.Fallback.BaseURL,
			config.Actor.Fallback.Token,
			config.ActorRequestTimeout(),
			logger,
		)
	}

	cacheService := cache.NewService(
		storageManager.CacheStorage(),
		provider,
		pool,
		cache.TTLPolicy(config.Cache.TTLHours),
		logger,
	)

	taskRunner := runner.NewRunner(
		provider,
		fallback,
		cacheService,
		pool,
		storageManager.JobStorage(),
		config,
		logger,
	)

	// Analysis is a degraded mode, not a startup dependency: follower graph
	// jobs still run without it.
	analysisService, err := analysis.NewAnalysisService(&config.Analysis, logger)
	if err != nil {
		logger.Warn().Err(err).Msg("Analysis service unavailable, jobs will run without analysis")
		analysisService = nil
	}

	jobExecutor := executor.NewExecutor(
		taskRunner,
		storageManager.JobStorage(),
		resolver.NewResolver(config.Resolver.MaxTargets, logger),
		analysisService,
		graph.NewBuilder(logger),
		notify.NewLogNotifier(logger),
		ledger.NewService(storageManager.LedgerStorage(), logger),
		config.Costs,
		logger,
	)

	sched := scheduler.NewScheduler(storageManager.JobStorage(), jobExecutor, config, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := sched.StartPolling(ctx); err != nil {
		logger.Fatal().Err(err).Msg("Failed to start scheduler")
		os.Exit(1)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh

	logger.Info().Str("signal", sig.String()).Msg("Shutting down")
	sched.StopPolling()
}
