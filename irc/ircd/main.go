package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/urfave/cli/v3"

	"github.com/presbrey/ircd/irc/admind"
	"github.com/presbrey/ircd/irc/config"
	"github.com/presbrey/ircd/irc/server"
)

// shutdownTimeout bounds how long Stop waits for connections to drain
const shutdownTimeout = 10 * time.Second

func main() {
	cmd := &cli.Command{
		Name:    "ircd",
		Usage:   "a small IRC server",
		Version: server.Version,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Usage: "configuration file or URL (yaml, toml or json)", Sources: cli.EnvVars("IRCD_CONFIG")},
			&cli.StringFlag{Name: "listen", Aliases: []string{"l"}, Usage: "IRC listen address, overrides server.host and server.port", Sources: cli.EnvVars("IRCD_LISTEN")},
			&cli.StringFlag{Name: "admin", Aliases: []string{"a"}, Usage: "enable the admin HTTP server on this address", Sources: cli.EnvVars("IRCD_ADMIN")},
			&cli.BoolFlag{Name: "debug", Aliases: []string{"d"}, Usage: "enable debug logging", Sources: cli.EnvVars("IRCD_DEBUG")},
		},
		Action: run,
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, c *cli.Command) error {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return err
	}
	if err := applyFlags(cfg, c); err != nil {
		return err
	}

	logger, err := newLogger(cfg.Log.Debug)
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}
	defer logger.Sync() //nolint:errcheck
	log := logger.Sugar()

	if cfg.Source != "" {
		log.Infow("using config", "source", cfg.Source)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	srv := server.NewServer(cfg, server.NewMetrics(reg), log.Named("ircd"))
	if err := srv.Start(); err != nil {
		return err
	}

	var admin *admind.Server
	if cfg.Admin.Enabled {
		admin = admind.New(srv.Dispatcher(), reg, log.Named("admind"))
		if err := admin.Start(cfg.AdminAddress()); err != nil {
			return fmt.Errorf("failed to start admin server: %w", err)
		}
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()
	log.Info("shutdown signal received, stopping server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if admin != nil {
		if err := admin.Stop(shutdownCtx); err != nil {
			log.Warnw("admin server shutdown", "error", err)
		}
	}
	return srv.Stop(shutdownCtx)
}

// applyFlags lets command line flags override the loaded configuration
func applyFlags(cfg *config.Config, c *cli.Command) error {
	if c.IsSet("listen") {
		host, port, err := splitAddr(c.String("listen"))
		if err != nil {
			return fmt.Errorf("invalid --listen: %w", err)
		}
		cfg.Server.Host, cfg.Server.Port = host, port
	}

	if c.IsSet("admin") {
		host, port, err := splitAddr(c.String("admin"))
		if err != nil {
			return fmt.Errorf("invalid --admin: %w", err)
		}
		cfg.Admin.Enabled = true
		cfg.Admin.Host, cfg.Admin.Port = host, port
	}

	if c.Bool("debug") {
		cfg.Log.Debug = true
	}

	return cfg.Validate()
}

func splitAddr(addr string) (string, int, error) {
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return "", 0, err
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return "", 0, fmt.Errorf("port %q: %w", portStr, err)
	}
	return host, port, nil
}
