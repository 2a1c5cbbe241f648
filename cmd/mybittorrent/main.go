package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"

	"github.com/maxolivera/go-torrent/internal/commands"
)

func main() {
	cfg, args, err := setup(os.Args[1:], os.Stderr)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	if len(args) < 2 {
		slog.Error("not enough arguments")
		fmt.Fprintln(os.Stderr, "Usage: mybittorrent [flags] <decode|info|peers|handshake> <value|file> [peer]")
		os.Exit(1)
	}

	command := args[0]
	file := args[1]
	ctx := context.Background()

	switch command {
	default:
		fmt.Fprintln(os.Stderr, "Unknown command: "+command)
		os.Exit(1)

	case "decode":
		err = commands.Decode(os.Stdout, []byte(file))

	case "info":
		err = commands.Info(os.Stdout, file)

	case "peers":
		err = commands.Peers(ctx, os.Stdout, cfg, file)

	case "handshake":
		if len(args) < 3 {
			slog.Error("handshake needs a peer address")
			os.Exit(1)
		}
		connection := args[2]
		slog.Info("connection to be used", "connection", connection)
		err = commands.Handshake(ctx, os.Stdout, cfg, file, connection)
	}

	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// setup parses the flags in args, installs the default logger writing to
// logOut and returns the configuration plus the remaining positional args.
func setup(args []string, logOut io.Writer) (commands.Config, []string, error) {
	cfg := commands.DefaultConfig()

	fs := flag.NewFlagSet("mybittorrent", flag.ContinueOnError)
	fs.SetOutput(logOut)
	var debugLevel DebugType = DebugWarning
	fs.Var(&debugLevel, "debug", "Debug level (info, debug, warning)")
	port := fs.Uint("port", uint(cfg.Port), "Port announced to the tracker")
	fs.DurationVar(&cfg.Timeout, "timeout", cfg.Timeout, "Timeout for tracker and peer connections")
	if err := fs.Parse(args); err != nil {
		return cfg, nil, err
	}

	if *port > 65535 {
		return cfg, nil, fmt.Errorf("invalid port: %d", *port)
	}
	cfg.Port = uint16(*port)
	cfg.Client = &http.Client{Timeout: cfg.Timeout}

	// configure logger
	var logLevel slog.Level
	switch debugLevel {
	case DebugDebug:
		logLevel = slog.LevelDebug
	case DebugInfo:
		logLevel = slog.LevelInfo
	case DebugWarning:
		logLevel = slog.LevelWarn
	default:
		logLevel = slog.LevelWarn
	}

	logger := slog.New(slog.NewTextHandler(
		logOut,
		&slog.HandlerOptions{Level: logLevel},
	))
	slog.SetDefault(logger)

	return cfg, fs.Args(), nil
}

type DebugType int

const (
	DebugInfo DebugType = iota
	DebugDebug
	DebugWarning
)

func (dt *DebugType) String() string {
	switch *dt {
	case DebugInfo:
		return "info"
	case DebugDebug:
		return "debug"
	case DebugWarning:
		return "warning"
	default:
		return "unknown"
	}
}

func (dt *DebugType) Set(s string) error {
	switch s {
	case "info":
		*dt = DebugInfo
	case "debug":
		*dt = DebugDebug
	case "warning", "warn":
		*dt = DebugWarning
	default:
		return fmt.Errorf("invalid debug type: %s", s)
	}
	return nil
}
