package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"arklore/internal/assembler"
	"arklore/internal/cache"
	"arklore/internal/config"
	"arklore/internal/embedding"
	"arklore/internal/generation"
	"arklore/internal/history"
	"arklore/internal/logging"
	"arklore/internal/memory"
	"arklore/internal/pipeline"
	"arklore/internal/profile"
	"arklore/internal/store"
	"arklore/internal/tokens"
)

var (
	// Global flags
	configPath string
	verbose    bool

	// Logger
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "arklore",
	Short: "arklore - bounded-context log commentary engine",
	Long: `arklore watches game-server event logs and periodically generates short
commentary with a local LLM. Each cycle assembles a bounded prompt from
three memory tiers (recent history, semantically similar past moments,
and entity behavior profiles), budgets the generation allowance against
the model's context window, and persists the result for future recall.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		zcfg := zap.NewProductionConfig()
		if verbose {
			zcfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = zcfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

// app holds the wired component graph for one CLI invocation.
type app struct {
	cfg       *config.Config
	store     *store.Store
	counter   *tokens.Counter
	allocator *tokens.Allocator
	memory    *memory.Semantic
	history   *history.Manager
	profiles  *profile.Profiles
	assembler *assembler.Assembler
	generator *generation.Client
}

// buildApp loads configuration and wires every component.
func buildApp() (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	if err := logging.Initialize(logging.Settings{
		DebugMode:  cfg.Logging.DebugMode,
		Dir:        cfg.Logging.Dir,
		Level:      cfg.Logging.Level,
		Categories: cfg.Logging.Categories,
	}); err != nil {
		return nil, err
	}

	st, err := store.Open(cfg.Memory.DatabasePath)
	if err != nil {
		return nil, err
	}

	engine, err := embedding.NewEngine(cfg.Embedding)
	if err != nil {
		st.Close()
		return nil, err
	}

	counter := tokens.NewCounter(cfg.Generation.TokenizerModel)
	allocator := tokens.NewAllocator(counter,
		cfg.Generation.ContextWindow, cfg.Generation.SafetyBuffer,
		cfg.Generation.MinOutputTokens, cfg.Generation.MaxOutputTokens)

	profiles := profile.NewProfiles(st,
		cache.NewTTL[*profile.State](0, cfg.Memory.ProfileCacheTTL), cfg.Memory)
	sem := memory.New(st, engine, cfg.Memory)
	hist := history.NewManager(st, cfg.Memory)

	return &app{
		cfg:       cfg,
		store:     st,
		counter:   counter,
		allocator: allocator,
		memory:    sem,
		history:   hist,
		profiles:  profiles,
		assembler: assembler.New(hist, sem, profiles, allocator, cfg.Pipeline.TierTimeout),
		generator: generation.NewClient(cfg.Generation),
	}, nil
}

func (a *app) close() {
	a.store.Close()
	logging.CloseAll()
}

var (
	logsDir string
	runOnce bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the commentary pipeline",
	Long: `Run the scheduled commentary pipeline. Reads per-owner log files from
the --logs directory (one <owner-key>.log file each), generates commentary
on the configured schedule, and prints it to stdout. With --once, runs a
single cycle for every owner and exits.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := buildApp()
		if err != nil {
			return err
		}
		defer a.close()

		runner := pipeline.NewRunner(a.cfg.Pipeline, a.cfg.Memory.RetentionDays, pipeline.Deps{
			Assembler: a.assembler,
			Generator: a.generator,
			Memory:    a.memory,
			Profiles:  a.profiles,
			Store:     a.store,
			Counter:   a.counter,
			Allocator: a.allocator,
			Source:    pipeline.NewFileSource(logsDir),
			Deliver:   pipeline.WriterDeliverer{W: cmd.OutOrStdout()},
		})

		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()

		if runOnce {
			runner.RunOnce(ctx)
			return nil
		}

		if err := runner.Start(ctx); err != nil {
			return err
		}

		// Live-reload logging settings when the config file changes; the
		// pipeline itself keeps its startup configuration until restart.
		go func() {
			err := config.Watch(ctx, configPath, func(cfg *config.Config) {
				if err := logging.Initialize(logging.Settings{
					DebugMode:  cfg.Logging.DebugMode,
					Dir:        cfg.Logging.Dir,
					Level:      cfg.Logging.Level,
					Categories: cfg.Logging.Categories,
				}); err != nil {
					logger.Warn("config reload: logging reinit failed", zap.Error(err))
					return
				}
				logger.Info("config reloaded", zap.Bool("debug", cfg.Logging.DebugMode))
			}, func(err error) {
				logger.Warn("config reload failed", zap.Error(err))
			})
			if err != nil && ctx.Err() == nil {
				logger.Warn("config watcher stopped", zap.Error(err))
			}
		}()

		logger.Info("pipeline running",
			zap.String("schedule", a.cfg.Pipeline.Schedule),
			zap.Int("owners", len(a.cfg.Pipeline.Owners)))

		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
		<-sig

		logger.Info("shutting down")
		cancel()
		runner.Stop()
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "arklore.yaml", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose logging")

	runCmd.Flags().StringVar(&logsDir, "logs", "logs/incoming", "directory of per-owner log files")
	runCmd.Flags().BoolVar(&runOnce, "once", false, "run a single cycle and exit")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(explainCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
