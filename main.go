package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/wfunc/listentome/broadcast"
	"github.com/wfunc/listentome/config"
	"github.com/wfunc/listentome/game"
	"github.com/wfunc/listentome/logger"
	"github.com/wfunc/listentome/monitor"
	"github.com/wfunc/listentome/persistence"
	"github.com/wfunc/listentome/rpc"
	"github.com/wfunc/listentome/server"
	"github.com/wfunc/listentome/services"
	"github.com/wfunc/listentome/session"
	"github.com/wfunc/listentome/timer"
)

var version = "dev"

const shutdownTimeout = 10 * time.Second

type options struct {
	configPath string
	logLevel   string
}

func newCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "listentome",
		Short:         "Game server for Listen To Me, a social deduction card game.",
		Args:          cobra.ExactArgs(0),
		Version:       version,
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), opts)
		},
	}

	fs := cmd.Flags()
	fs.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})
	fs.StringVarP(&opts.configPath, "config", "c", ".", "directory containing config.yaml")
	fs.StringVar(&opts.logLevel, "log-level", "", "log level, overrides log.level (env: LISTENTOME_LOG_LEVEL)")

	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SetVersionTemplate("listentome {{.Version}}\n")
	return cmd
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newCmd(&options{}).ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func gameSettings(cfg config.GameConfig) game.Settings {
	return game.Settings{
		MinPlayers:      cfg.MinPlayers,
		MaxPlayers:      cfg.MaxPlayers,
		TurnTimeout:     cfg.TurnTimeout,
		ResponseTimeout: cfg.ResponseTimeout,
		ViewTimeout:     cfg.ViewTimeout,
		CleanupDelay:    cfg.CleanupDelay,
	}
}

func openDatabase(cfg config.DatabaseConfig) (persistence.Database, error) {
	switch cfg.Driver {
	case config.DriverGorm:
		return persistence.NewGormPostgreSQL(cfg.Postgres.DSN())
	case config.DriverPostgres:
		return persistence.NewPostgreSQL(cfg.Postgres.DSN())
	case config.DriverMemory:
		return persistence.NewMemory(), nil
	}
	return nil, fmt.Errorf("unknown database driver %q", cfg.Driver)
}

func run(ctx context.Context, opts *options) error {
	cfg, err := config.LoadConfig(opts.configPath)
	if err != nil {
		return err
	}

	level := cfg.Log.Level
	if opts.logLevel != "" {
		level = opts.logLevel
	}
	if err := logger.Init(level); err != nil {
		return err
	}
	defer logger.Sync()

	db, err := openDatabase(cfg.Database)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()
	logger.Log.Infow("database ready", "driver", cfg.Database.Driver)

	records := services.NewRecordService(db, 0)
	records.Start()
	defer records.Stop()

	timers := timer.NewTimerManager()
	defer timers.Stop()

	mon := monitor.NewMonitor(cfg.Server.MetricsNamespace)
	sessions := session.NewManager()
	broadcaster := broadcast.NewRoomBroadcaster(sessions)
	registry := game.NewRegistry(gameSettings(cfg.Game), timers, broadcaster,
		game.WithMetrics(mon),
		game.WithRecorder(records),
	)
	defer registry.Close()

	rpcServer, err := rpc.NewServer(cfg.Server.RPCAddress)
	if err != nil {
		return fmt.Errorf("rpc listen: %w", err)
	}
	if err := rpcServer.Register(rpc.NewGameService(registry, records)); err != nil {
		return fmt.Errorf("rpc register: %w", err)
	}
	go rpcServer.Start()
	defer rpcServer.Stop()

	health, err := rpc.NewHealthServer(cfg.Server.GRPCAddress)
	if err != nil {
		return fmt.Errorf("grpc listen: %w", err)
	}
	go health.Start()
	defer health.Stop()

	gameServer := server.NewGameServer(cfg.Server.HTTPAddress, registry, sessions, broadcaster, mon)
	gameServer.SetHeartbeat(cfg.Server.Heartbeat)

	errCh := make(chan error, 1)
	go func() {
		errCh <- gameServer.Start()
	}()

	select {
	case <-ctx.Done():
		logger.Log.Info("Shutting down.")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("game server: %w", err)
		}
	}

	health.SetServing(false)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := gameServer.Shutdown(shutdownCtx); err != nil {
		logger.Log.Warnw("game server shutdown incomplete", "error", err)
	}
	return nil
}
