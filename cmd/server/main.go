// Command server runs the Tic-Tac-Toe TCP server: it loads a config
// file, wires up logging, and blocks until an interrupt or SIGTERM
// triggers a graceful shutdown.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"tictactoe-server/internal/config"
	"tictactoe-server/internal/server"
	"tictactoe-server/pkg/logger"
)

const version = "1.0.0"

func main() {
	var (
		configPath = flag.String("config", "server.conf", "path to the server config file")
		logLevel   = flag.String("log-level", "info", "log verbosity: debug, info, warn, error")
		logFile    = flag.String("log-file", "", "tee logs to this file instead of ./logs/")
		showVer    = flag.Bool("version", false, "print version and exit")
	)
	flag.Usage = showHelp
	flag.Parse()

	if *showVer {
		fmt.Printf("tictactoe-server %s\n", version)
		return
	}

	initLogging(*logLevel, *logFile)

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Server.Fatal("loading config: %v", err)
	}
	// A bare positional argument overrides the configured port, matching
	// the original server's argv[1] contract.
	if arg := flag.Arg(0); arg != "" {
		if err := config.ApplyPortOverride(&cfg, arg); err != nil {
			logger.Server.Fatal("%v", err)
		}
	}

	logger.Server.Info("config: port=%d max_rooms=%d max_clients=%d bind=%s disconnect_grace=%ds",
		cfg.Port, cfg.MaxRooms, cfg.MaxClients, cfg.BindAddress, cfg.DisconnectGrace)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := server.New(cfg)

	if err := srv.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Server.Fatal("server exited: %v", err)
	}
	logger.Server.Info("shutdown complete")
}

// initLogging maps the -log-level flag onto the package's global
// threshold and points every named logger at -log-file, or a dated
// file under ./logs/ if none was given.
func initLogging(level, file string) {
	switch level {
	case "debug":
		logger.SetGlobalLogLevel(logger.DEBUG)
	case "warn":
		logger.SetGlobalLogLevel(logger.WARN)
	case "error":
		logger.SetGlobalLogLevel(logger.ERROR)
	default:
		logger.SetGlobalLogLevel(logger.INFO)
	}

	if file != "" {
		for _, l := range []*logger.Logger{logger.Server, logger.Room, logger.Client, logger.Heartbeat} {
			if err := l.SetFile(file); err != nil {
				logger.Server.Warn("could not open log file %s: %v", file, err)
				return
			}
		}
		return
	}
	if err := logger.InitializeFileLogging("./logs"); err != nil {
		logger.Server.Warn("could not initialize file logging: %v", err)
	}
}

func showHelp() {
	fmt.Fprintf(os.Stderr, `tictactoe-server - multiplayer Tic-Tac-Toe TCP server

Usage:
  server [flags] [port]

  A bare positional port argument overrides the config file's PORT.

Flags:
  -config string
        path to the server config file (default "server.conf")
  -log-level string
        log verbosity: debug, info, warn, error (default "info")
  -log-file string
        tee logs to this file instead of ./logs/
  -version
        print version and exit

Config file format (KEY=VALUE, one per line, '#' comments allowed):
  PORT=10000
  MAX_ROOMS=16
  MAX_CLIENTS=128
  BIND_ADDRESS=0.0.0.0
  DISCONNECT_GRACE=15
`)
}
