package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/abhisek/stepwise/internal/catalog"
	"github.com/abhisek/stepwise/internal/delivery"
	"github.com/abhisek/stepwise/internal/diagnostic"
	"github.com/abhisek/stepwise/internal/hints"
	"github.com/abhisek/stepwise/internal/leaderboard"
	"github.com/abhisek/stepwise/internal/llm"
	"github.com/abhisek/stepwise/internal/server"
	"github.com/abhisek/stepwise/internal/session"
	"github.com/abhisek/stepwise/internal/users"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and background jobs",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().String("addr", "", "Listen address (overrides STEPWISE_ADDR)")
	serveCmd.Flags().Bool("seed", false, "Seed the default catalog before serving")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, cfg, err := openStore(cmd)
	if err != nil {
		return err
	}
	defer st.Close()

	logger := newLogger(cfg.LogLevel, true)
	if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
		cfg.Addr = addr
	}

	catalogSvc := catalog.New(st.Catalog(), logger)
	if seed, _ := cmd.Flags().GetBool("seed"); seed {
		res, err := catalogSvc.Seed(ctx)
		if err != nil {
			return fmt.Errorf("seed catalog: %w", err)
		}
		logger.Info("catalog seeded", "topics", res.TopicsCreated, "questions", res.QuestionsCreated)
	}

	provider, err := llm.NewProvider(ctx, cfg.LLM, st.Events(), logger)
	if err != nil {
		logger.Warn("LLM provider not configured, hints limited to the catalog", "error", err)
		provider = nil
	}

	var board leaderboard.Board = leaderboard.Noop{}
	if cfg.RedisAddr != "" {
		rb, err := leaderboard.Dial(ctx, cfg.RedisAddr)
		if err != nil {
			logger.Warn("leaderboard disabled", "error", err)
		} else {
			defer rb.Close()
			board = rb
		}
	}

	engineCfg := session.DefaultConfig()
	engineCfg.IdleTimeout = cfg.CheckpointAfter
	engineCfg.Hints = hints.New(provider, logger)
	engineCfg.XP = board
	engineCfg.Logger = logger
	engine := session.New(st, engineCfg)

	var notifier delivery.Notifier
	if cfg.TelegramToken != "" {
		tn, err := delivery.NewTelegramNotifier(cfg.TelegramToken)
		if err != nil {
			logger.Warn("telegram delivery disabled", "error", err)
		} else {
			notifier = tn
		}
	}
	sched := delivery.NewScheduler(delivery.New(st, notifier, logger), engine, delivery.SchedulerConfig{
		DeliveryInterval: cfg.DeliveryInterval,
		SessionIdleTTL:   cfg.SessionIdleTTL,
	}, logger)
	if err := sched.Start(); err != nil {
		return err
	}
	defer sched.Stop()

	srv := server.New(server.Deps{
		Store:      st,
		Users:      users.New(st.Users(), logger),
		Catalog:    catalogSvc,
		Diagnostic: diagnostic.New(st, logger),
		Engine:     engine,
		Board:      board,
		Logger:     logger,
	})
	return srv.ListenAndServe(ctx, cfg.Addr)
}
