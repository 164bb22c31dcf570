package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	appcfg "github.com/park285/grand-chess-realms/internal/config"
	"github.com/park285/grand-chess-realms/internal/board"
	"github.com/park285/grand-chess-realms/internal/board/wsdevice"
	"github.com/park285/grand-chess-realms/internal/chess"
	"github.com/park285/grand-chess-realms/internal/chess/uci"
	"github.com/park285/grand-chess-realms/internal/clock"
	"github.com/park285/grand-chess-realms/internal/match"
	"github.com/park285/grand-chess-realms/internal/movesource"
	"github.com/park285/grand-chess-realms/internal/msgcat"
	"github.com/park285/grand-chess-realms/internal/notify"
	"github.com/park285/grand-chess-realms/internal/obslog"
	"github.com/park285/grand-chess-realms/internal/record"
	"github.com/park285/grand-chess-realms/internal/rules"
)

type options struct {
	opponent string
	elo      int
	tc       string
	simulate bool
	wins     int
	seed     int64
	history  int
}

func parseFlags(cfg *appcfg.AppConfig) options {
	var o options
	flag.StringVar(&o.opponent, "opponent", "Sir Reginald", "opponent name")
	flag.IntVar(&o.elo, "elo", 1200, "opponent rating")
	flag.StringVar(&o.tc, "tc", cfg.TimeControl, `time control "minutes/increment", or "none"`)
	flag.BoolVar(&o.simulate, "simulate", false, "decide the match by rating instead of playing")
	flag.IntVar(&o.wins, "wins", 0, "victories so far, used to estimate the player rating")
	flag.Int64Var(&o.seed, "seed", 0, "random seed for simulation and tips (0 = time based)")
	flag.IntVar(&o.history, "history", 0, "print the last N records and exit")
	flag.Parse()
	if o.seed == 0 {
		o.seed = time.Now().UnixNano()
	}
	return o
}

func main() {
	cfg, err := appcfg.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	opts := parseFlags(cfg)

	if err := obslog.InitFromEnv(); err != nil {
		log.Fatalf("logger init error: %v", err)
	}
	logger := obslog.L()
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, opts, logger); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("realms_failed", zap.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *appcfg.AppConfig, opts options, logger *zap.Logger) error {
	catalog, err := msgcat.New(cfg.MessagesDir)
	if err != nil {
		return fmt.Errorf("load messages: %w", err)
	}

	repo, err := record.Open(ctx, cfg.Record, logger)
	if err != nil {
		return fmt.Errorf("open record store: %w", err)
	}
	defer repo.Close()

	if opts.history > 0 {
		return printHistory(ctx, repo, opts.history)
	}

	tc, err := clock.ParseTimeControl(opts.tc)
	if err != nil {
		return err
	}

	publisher := notify.NewPublisher(cfg.Record.WebhookURL, notify.WithLogger(logger))
	oracle := rules.NewOracle()
	rng := rand.New(rand.NewSource(opts.seed))

	engine := chess.NewEngine(
		chess.UCIFactory(cfg.Engine.StockfishPath, uci.Options{Threads: cfg.Engine.Threads, HashMB: cfg.Engine.HashMB}, logger),
		oracle,
		chess.WithLogger(logger),
		chess.WithMoveCeiling(cfg.Engine.MoveCeiling),
		chess.WithRandomSeed(opts.seed),
	)
	defer engine.Close()

	var rec *record.MatchRecord
	if opts.simulate || !probeEngine(ctx, engine, opts.elo) {
		rec = simulate(catalog, rng, opts)
	} else {
		rec, err = play(ctx, cfg, opts, tc, engine, oracle, catalog, logger)
		if err != nil {
			return err
		}
	}

	if err := repo.Save(ctx, rec); err != nil {
		logger.Warn("record_save_failed", zap.String("id", rec.ID), zap.Error(err))
	}
	res := notify.ResultFromRecord(rec)
	if st, err := repo.Stats(ctx); err == nil {
		res.Standing = notify.StandingFromStats(st)
	}
	if err := publisher.PublishResult(ctx, res); err != nil {
		logger.Warn("result_publish_failed", zap.String("id", rec.ID), zap.Error(err))
	}
	if tip := catalog.Tip(rng); tip != "" {
		fmt.Println()
		fmt.Println("Tip: " + tip)
	}
	return nil
}

// probeEngine starts the engine at the requested strength and reports
// whether a real searcher is running.
func probeEngine(ctx context.Context, engine *chess.Engine, elo int) bool {
	engine.ConfigureStrength(ctx, elo)
	return engine.Available()
}

func simulate(catalog *msgcat.Catalog, rng *rand.Rand, opts options) *record.MatchRecord {
	player := match.EstimatePlayerRating(opts.wins)
	sim := match.Simulate(rng, opts.elo, player)
	fmt.Println(catalog.RenderOr("match.simulated", map[string]any{
		"Opponent": opts.opponent,
		"Expected": fmt.Sprintf("%.2f", sim.Expected),
	}, "The match is decided by rating."))
	fmt.Printf("Result: %s\n", sim.Result)
	return record.FromSimulation(opts.opponent, opts.elo, sim, time.Now())
}

func play(
	ctx context.Context,
	cfg *appcfg.AppConfig,
	opts options,
	tc clock.TimeControl,
	engine *chess.Engine,
	oracle *rules.Oracle,
	catalog *msgcat.Catalog,
	logger *zap.Logger,
) (*record.MatchRecord, error) {
	term := movesource.NewTerminal(os.Stdin, os.Stdout)
	srcOpts := []movesource.Option{movesource.WithCatalog(catalog), movesource.WithLogger(logger)}
	deps := match.Deps{
		Rules:    oracle,
		Opponent: engine,
		Console:  term,
		Logger:   logger,
		Catalog:  catalog,
	}

	if bridge := openBoard(cfg.Board, logger); bridge != nil {
		defer func() {
			cctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
			defer cancel()
			_ = bridge.Close(cctx)
		}()
		srcOpts = append(srcOpts, movesource.WithBoard(bridge))
		deps.Board = bridge
	}
	deps.Moves = movesource.New(oracle, term, srcOpts...)

	session, err := match.NewSession(deps,
		match.WithPhysicalTimeout(cfg.PhysicalMoveTimeout),
		match.WithFixedBudget(cfg.Engine.FixedBudget),
		match.WithBudgetCeiling(cfg.Engine.MoveCeiling),
	)
	if err != nil {
		return nil, err
	}
	out, err := session.Run(ctx, opts.opponent, opts.elo, tc)
	if err != nil {
		return nil, err
	}
	// only unfinished positions are worth a look
	if out.Reason != match.FinishResignation && out.Reason != match.FinishTimeForfeit {
		return record.FromOutcome(out), nil
	}
	if final, err := rules.PositionFromFEN(out.FinalFEN); err == nil {
		if ev, _ := engine.Analyze(ctx, final, cfg.Engine.AnalyzeDepth); ev != nil {
			fmt.Println("Final evaluation: " + ev.String())
		}
	}
	return record.FromOutcome(out), nil
}

// openBoard returns nil when no board is configured.
func openBoard(cfg appcfg.BoardConfig, logger *zap.Logger) *board.Bridge {
	if !cfg.Enabled {
		return nil
	}
	bridge := board.NewBridge(
		wsdevice.Factory(cfg.WSURL, wsdevice.WithLogger(logger)),
		board.Config{
			MaxAttempts:   cfg.MaxAttempts,
			RetryDelay:    cfg.RetryDelay,
			ProbeInterval: cfg.ProbeInterval,
			GraceDelay:    cfg.GraceDelay,
		},
		logger,
	)
	go func() {
		for err := range bridge.Errors() {
			logger.Debug("board_error", zap.Error(err))
		}
	}()
	st := bridge.Connect(cfg.Device, cfg.AutoReconnect)
	logger.Info("board_connect", zap.String("state", st.String()))
	return bridge
}

func printHistory(ctx context.Context, repo record.Repository, n int) error {
	recent, err := repo.Recent(ctx, n)
	if err != nil {
		return err
	}
	for _, r := range recent {
		tag := ""
		if r.Simulated {
			tag = " (simulated)"
		}
		fmt.Printf("%s  %-20s %4d  %-4s %-22s %3d plies%s\n",
			r.EndedAt.Local().Format("2006-01-02 15:04"), r.Opponent, r.Elo, r.Result, r.Reason, len(r.MovesUCI), tag)
	}
	st, err := repo.Stats(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("Played %d: %d won, %d lost, %d drawn\n", st.Played, st.Wins, st.Losses, st.Draws)
	return nil
}
