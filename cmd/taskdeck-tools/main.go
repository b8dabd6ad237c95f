// Taskdeck-tools is the standalone MCP tool host. It serves the task
// tools over newline-delimited JSON-RPC on stdin/stdout, for use with
// the stdio tool_host transport or any MCP-speaking client.
//
// Logs go to stderr; stdout carries only protocol frames.
//
// Usage:
//
//	taskdeck-tools [-db <path>] [-log-level <level>]
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/taskdeck/taskdeck/internal/config"
	"github.com/taskdeck/taskdeck/internal/task"
	"github.com/taskdeck/taskdeck/internal/toolhost"
	"github.com/taskdeck/taskdeck/internal/tools"
)

func main() {
	if err := run(context.Background(), os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	_ = godotenv.Load()

	dbPath := "taskdeck.db"
	logLevel := ""

	for i := 0; i < len(args); i++ {
		switch {
		case args[i] == "-db" && i+1 < len(args):
			dbPath = args[i+1]
			i++
		case strings.HasPrefix(args[i], "-db="):
			dbPath = strings.TrimPrefix(args[i], "-db=")
		case args[i] == "-log-level" && i+1 < len(args):
			logLevel = args[i+1]
			i++
		case strings.HasPrefix(args[i], "-log-level="):
			logLevel = strings.TrimPrefix(args[i], "-log-level=")
		case args[i] == "-h" || args[i] == "-help" || args[i] == "--help":
			fmt.Fprintln(os.Stderr, "Usage: taskdeck-tools [-db <path>] [-log-level <level>]")
			return nil
		default:
			return fmt.Errorf("unknown flag: %s", args[i])
		}
	}

	level, err := config.ParseLogLevel(logLevel)
	if err != nil {
		return err
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level:       level,
		ReplaceAttr: config.ReplaceLogLevelNames,
	}))

	store, err := task.OpenStore(dbPath)
	if err != nil {
		return fmt.Errorf("open task database %s: %w", dbPath, err)
	}
	defer store.Close()
	logger.Info("task database opened", "path", dbPath)

	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	server := toolhost.NewServer(store, tools.NewRegistry(), logger)
	return server.ServeStdio(ctx, os.Stdin, os.Stdout)
}
