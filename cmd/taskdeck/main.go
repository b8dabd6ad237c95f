// Taskdeck is a task-tracking service with a conversational interface.
//
// It exposes a REST API for task CRUD, a stateless chat endpoint, and a
// streaming websocket chat endpoint. Conversations are driven by an
// Anthropic model that manipulates tasks through MCP tools, served
// either by the embedded tool host or an external one. Configuration is
// loaded from a single YAML file discovered automatically (see
// [config.DefaultSearchPaths]).
//
// Usage:
//
//	taskdeck serve           Start the API server
//	taskdeck ask <message>   Run a single exchange (for testing)
//	taskdeck version         Print version and build information
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/taskdeck/taskdeck/internal/api"
	"github.com/taskdeck/taskdeck/internal/buildinfo"
	"github.com/taskdeck/taskdeck/internal/config"
	"github.com/taskdeck/taskdeck/internal/engine"
	"github.com/taskdeck/taskdeck/internal/llm"
	"github.com/taskdeck/taskdeck/internal/mcp"
	"github.com/taskdeck/taskdeck/internal/task"
	"github.com/taskdeck/taskdeck/internal/toolhost"
	"github.com/taskdeck/taskdeck/internal/tools"
)

// pingInterval is how often the tool host session is probed while
// serving. A failed probe degrades the session; there is no automatic
// reconnect, so an operator restart is the recovery path.
const pingInterval = 30 * time.Second

// main constructs the OS-level environment and delegates to [run] so
// the full lifecycle can be driven from tests without os.Exit.
func main() {
	ctx := context.Background()

	if err := run(ctx, os.Stdout, os.Stderr, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, stdout io.Writer, stderr io.Writer, args []string) error {
	// A .env next to the binary is a development convenience; absence
	// is the normal production case.
	_ = godotenv.Load()

	// Manual parsing keeps package-level flag state out of the way so
	// run() can be called concurrently from tests.
	var configPath string
	var logLevel string
	var command string
	var cmdArgs []string

	for i := 0; i < len(args); i++ {
		switch {
		case args[i] == "-config" && i+1 < len(args):
			configPath = args[i+1]
			i++
		case strings.HasPrefix(args[i], "-config="):
			configPath = strings.TrimPrefix(args[i], "-config=")
		case args[i] == "-log-level" && i+1 < len(args):
			logLevel = args[i+1]
			i++
		case strings.HasPrefix(args[i], "-log-level="):
			logLevel = strings.TrimPrefix(args[i], "-log-level=")
		case args[i] == "-h" || args[i] == "-help" || args[i] == "--help":
			return printUsage(stdout)
		case !strings.HasPrefix(args[i], "-") && command == "":
			command = args[i]
		default:
			if command != "" {
				cmdArgs = append(cmdArgs, args[i])
			} else {
				return fmt.Errorf("unknown flag: %s", args[i])
			}
		}
	}

	switch command {
	case "serve":
		return runServe(ctx, stdout, configPath, logLevel)
	case "ask":
		if len(cmdArgs) == 0 {
			return fmt.Errorf("usage: taskdeck ask <message>")
		}
		return runAsk(ctx, stdout, configPath, logLevel, strings.Join(cmdArgs, " "))
	case "version":
		return runVersion(stdout)
	case "":
		return printUsage(stdout)
	default:
		return fmt.Errorf("unknown command: %s", command)
	}
}

func runVersion(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(buildinfo.Info())
}

func printUsage(w io.Writer) error {
	fmt.Fprintln(w, "taskdeck - conversational task tracker")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage: taskdeck [flags] <command> [args]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  serve          Start the API server")
	fmt.Fprintln(w, "  ask <message>  Run a single exchange (for testing)")
	fmt.Fprintln(w, "  version        Show version information")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Flags:")
	fmt.Fprintln(w, "  -config <path>     Path to config file (default: auto-discover)")
	fmt.Fprintln(w, "  -log-level <level> Override configured log level (trace, debug, info, warn, error)")
	return nil
}

// runAsk boots the full stack without the HTTP server, runs one
// exchange, and prints the answer. Tool activity streams to stderr so
// the answer on stdout stays clean for shell use.
func runAsk(ctx context.Context, stdout io.Writer, configPath, logLevel, message string) error {
	deck, err := buildDeck(configPath, logLevel, stdout)
	if err != nil {
		return err
	}
	defer deck.shutdown()

	if err := deck.session.Connect(ctx); err != nil {
		deck.logger.Warn("tool host unavailable, answering without tools", "error", err)
	}

	answer, _, err := deck.engine.Exchange(ctx, message, nil, func(ev engine.Event) {
		switch ev.Kind {
		case engine.EventToolUse:
			fmt.Fprintf(os.Stderr, "[tool] %s\n", ev.ToolName)
		case engine.EventToolResult:
			fmt.Fprintf(os.Stderr, "[result] %s\n", ev.Result)
		}
	})
	if err != nil {
		return fmt.Errorf("ask: %w", err)
	}

	fmt.Fprintln(stdout, answer)
	return nil
}

// runServe is the primary operating mode: it builds the stack, connects
// the tool session, starts the HTTP server, and blocks until a shutdown
// signal arrives.
func runServe(ctx context.Context, stdout io.Writer, configPath, logLevel string) error {
	deck, err := buildDeck(configPath, logLevel, stdout)
	if err != nil {
		return err
	}
	defer deck.shutdown()

	logger := deck.logger
	logger.Info("starting taskdeck",
		"version", buildinfo.Version,
		"commit", buildinfo.GitCommit,
		"built", buildinfo.BuildTime,
	)

	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	server := api.NewServer(
		deck.cfg.Listen.Address,
		deck.cfg.Listen.Port,
		deck.engine,
		deck.store,
		deck.session,
		deck.registry,
		deck.toolHost,
		logger,
	)

	// The listener goes up before the handshake so a tool host URL
	// pointing back at this process (or a slow remote) never sees a
	// connection refused from our own startup ordering.
	serveErr := make(chan error, 1)
	go func() {
		serveErr <- server.Start(ctx)
	}()

	// A failed handshake degrades the session rather than aborting
	// startup: REST and tool-free chat still work, and the health
	// endpoint shows the state.
	if err := deck.session.Connect(ctx); err != nil {
		logger.Error("tool host handshake failed, continuing degraded", "error", err)
	}

	go watchSession(ctx, deck.session, logger)

	go func() {
		<-ctx.Done()
		logger.Info("shutdown signal received")
		_ = server.Shutdown(context.Background())
	}()

	if err := <-serveErr; err != nil && err != http.ErrServerClosed {
		if ctx.Err() == nil {
			return fmt.Errorf("server failed: %w", err)
		}
	}

	logger.Info("taskdeck stopped")
	return nil
}

// watchSession probes the tool session periodically and degrades it
// when the tool host stops answering. It never reconnects: the session
// owner decides when (if ever) to re-establish, keeping state
// transitions single-writer.
func watchSession(ctx context.Context, session *mcp.Session, logger *slog.Logger) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		client, err := session.Client()
		if err != nil {
			// Not ready; nothing to probe.
			continue
		}

		pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		err = client.Ping(pingCtx)
		cancel()
		if err != nil && ctx.Err() == nil {
			logger.Error("tool host ping failed, degrading session", "error", err)
			session.Degrade()
		}
	}
}

// deck bundles the constructed application components.
type deck struct {
	cfg      *config.Config
	logger   *slog.Logger
	store    *task.Store
	registry *tools.Registry
	session  *mcp.Session
	engine   *engine.Engine
	toolHost http.Handler
}

func (d *deck) shutdown() {
	_ = d.session.Disconnect()
	_ = d.store.Close()
}

// buildDeck loads configuration and wires every component: the task
// store, the tool registry, the embedded or external tool host, the
// MCP session, the model client, and the conversation engine.
func buildDeck(configPath, logLevel string, stdout io.Writer) (*deck, error) {
	cfg, cfgPath, err := loadConfig(configPath)
	if err != nil {
		return nil, err
	}

	if logLevel == "" {
		logLevel = cfg.LogLevel
	}
	level, err := config.ParseLogLevel(logLevel)
	if err != nil {
		return nil, err
	}
	logger := slog.New(slog.NewTextHandler(stdout, &slog.HandlerOptions{
		Level:       level,
		ReplaceAttr: config.ReplaceLogLevelNames,
	}))

	logger.Info("config loaded", "path", cfgPath, "port", cfg.Listen.Port, "model", cfg.Model.Name)

	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return nil, fmt.Errorf("create data directory %s: %w", cfg.DataDir, err)
	}

	dbPath := filepath.Join(cfg.DataDir, "taskdeck.db")
	store, err := task.OpenStore(dbPath)
	if err != nil {
		return nil, fmt.Errorf("open task database %s: %w", dbPath, err)
	}
	logger.Info("task database opened", "path", dbPath)

	registry := tools.NewRegistry()

	var host *toolhost.Server
	var toolHost http.Handler
	if cfg.ToolHost.Mount {
		host = toolhost.NewServer(store, registry, logger)
		toolHost = host.Handler()
	}

	transport, err := buildTransport(cfg, host, logger)
	if err != nil {
		store.Close()
		return nil, err
	}

	client := mcp.NewClient("taskdeck", transport, logger)
	session := mcp.NewSession(client, logger)

	if cfg.Model.APIKey == "" {
		logger.Warn("no model API key configured; chat endpoints will fail")
	}
	model := llm.NewAnthropicClient(cfg.Model.APIKey, cfg.Model.Name, logger)

	invoker := engine.NewInvoker(session, registry, logger)
	eng := engine.New(model, invoker, registry, cfg.Engine.MaxIterations, cfg.Model.MaxTokens, logger)

	return &deck{
		cfg:      cfg,
		logger:   logger,
		store:    store,
		registry: registry,
		session:  session,
		engine:   eng,
		toolHost: toolHost,
	}, nil
}

// buildTransport selects the MCP transport from configuration. With
// the embedded tool host mounted and no explicit URL, the host is
// called in-process: tools come up with the process itself, whether or
// not the HTTP listener is accepting yet. /mcp stays mounted for
// external clients either way.
func buildTransport(cfg *config.Config, host *toolhost.Server, logger *slog.Logger) (mcp.Transport, error) {
	switch cfg.ToolHost.Transport {
	case "", "http":
		if cfg.ToolHost.URL == "" {
			if host == nil {
				return nil, fmt.Errorf("tool_host: http transport requires a url when mount is disabled")
			}
			return host.Transport(), nil
		}
		return mcp.NewHTTPTransport(mcp.HTTPConfig{
			URL:     cfg.ToolHost.URL,
			Headers: cfg.ToolHost.Headers,
			Logger:  logger,
		}), nil
	case "stdio":
		if cfg.ToolHost.Command == "" {
			return nil, fmt.Errorf("tool_host: stdio transport requires a command")
		}
		return mcp.NewStdioTransport(mcp.StdioConfig{
			Command: cfg.ToolHost.Command,
			Args:    cfg.ToolHost.Args,
			Env:     cfg.ToolHost.Env,
			Logger:  logger,
		}), nil
	default:
		return nil, fmt.Errorf("tool_host: unknown transport %q (expected http or stdio)", cfg.ToolHost.Transport)
	}
}

// loadConfig locates and parses the YAML configuration file. With no
// file anywhere and no explicit path, defaults plus the ANTHROPIC_API_KEY
// environment variable are enough to run with the embedded tool host.
func loadConfig(explicit string) (*config.Config, string, error) {
	cfgPath, err := config.FindConfig(explicit)
	if err != nil {
		if explicit != "" {
			return nil, "", err
		}
		cfg := config.Default()
		cfg.Model.APIKey = os.Getenv("ANTHROPIC_API_KEY")
		return cfg, "(defaults)", nil
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, cfgPath, fmt.Errorf("load config %s: %w", cfgPath, err)
	}

	return cfg, cfgPath, nil
}
