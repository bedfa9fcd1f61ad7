package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"a2a-router/internal/infra/config"
	"a2a-router/internal/infra/logger"
	"a2a-router/internal/infra/service"
	"a2a-router/internal/infra/tracer"
	"a2a-router/internal/usecase/eventbus"
)

func main() {
	if len(os.Args) >= 2 {
		switch os.Args[1] {
		case "--help", "-h", "help":
			showUsage()
			return
		}
	}

	// .env is optional; a missing file is not an error.
	_ = godotenv.Load()

	if len(os.Args) < 2 || strings.HasPrefix(os.Args[1], "-") {
		if err := run(); err != nil {
			fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
			os.Exit(1)
		}
		return
	}

	switch os.Args[1] {
	case "doctor":
		if err := runDoctor(); err != nil {
			fmt.Fprintf(os.Stderr, "doctor: %v\n", err)
			os.Exit(1)
		}
	case "mcp":
		if err := runMCP(); err != nil {
			fmt.Fprintf(os.Stderr, "mcp: %v\n", err)
			os.Exit(1)
		}
	case "service":
		unit := service.DefaultUnit("mainagent", "A2A router main agent", configPath())
		if err := service.Command(os.Args[2:], unit, os.Stdout); err != nil {
			fmt.Fprintf(os.Stderr, "service: %v\n", err)
			os.Exit(1)
		}
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\nRun 'mainagent --help' for usage information.\n", os.Args[1])
		os.Exit(1)
	}
}

func showUsage() {
	fmt.Println(`mainagent - routes natural-language requests across registered agents

USAGE:
    mainagent [COMMAND] [FLAGS]

COMMANDS:
    doctor      Run health checks on the router setup
    mcp         Serve router tools over MCP (stdio) against a running router
    service     Manage the system service (install, uninstall, status)

    (no command) - Run the router

FLAGS:
    -h, --help         Show this help message
    --config PATH      Specify config file path (default: ./config.yaml)
    --router URL       Router base URL for the mcp command

CONFIGURATION:
    Config file: ./config.yaml (optional; defaults apply when missing)
    Environment: A2AROUTER_* variables override config, .env is loaded first

EXAMPLES:
    mainagent                                   # Run on :18000
    mainagent --config /etc/a2a/router.yaml     # Run with custom config
    mainagent doctor                            # Check router health
    mainagent mcp --router http://10.0.0.5:18000
    sudo mainagent service install --config /etc/a2a/router.yaml`)
}

func configPath() string {
	if p := flagValue("--config"); p != "" {
		return p
	}
	if p := os.Getenv(config.EnvPrefix + "CONFIG"); p != "" {
		return p
	}
	return "config.yaml"
}

// flagValue reads "--name value" or "--name=value" from os.Args.
func flagValue(name string) string {
	for i, arg := range os.Args {
		if arg == name && i+1 < len(os.Args) {
			return os.Args[i+1]
		}
		if strings.HasPrefix(arg, name+"=") {
			return strings.TrimPrefix(arg, name+"=")
		}
	}
	return ""
}

func run() error {
	// 1. Config
	cfg, err := config.Load(configPath())
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	// 2. Logger & Tracer
	log, logCloser, err := logger.New(cfg.Logger)
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	defer logCloser()

	ctx := context.Background()
	tracerShutdown, err := tracer.Setup(ctx, cfg.Tracer, "mainagent")
	if err != nil {
		return fmt.Errorf("tracer: %w", err)
	}
	defer tracerShutdown(ctx)

	// 3. Understanding backend
	u, err := initUnderstander(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("llm: %w", err)
	}

	// 4. Event bus
	bus := eventbus.New(log)
	defer bus.Close()

	// 5. Runtime (registry, pipeline, scheduler, gateway)
	runtime, runtimeCleanup, err := initRuntime(ctx, cfg, u, bus, log)
	if err != nil {
		return fmt.Errorf("runtime: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := runtimeCleanup(shutdownCtx); err != nil {
			log.Error("runtime cleanup error", "error", err)
		}
	}()

	// 6. Graceful shutdown
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// 7. Self registration happens before the gateway accepts agents so the
	// router's own skills lead the catalog.
	if cfg.Router.SelfRegister {
		if err := runtime.registerSelf(ctx); err != nil {
			return fmt.Errorf("self registration: %w", err)
		}
	}

	// 8. Start scheduler
	go runtime.Scheduler.Start(ctx)

	// 9. Start gateway
	errCh := make(chan error, 1)
	go func() {
		if err := runtime.Gateway.Start(ctx); err != nil {
			errCh <- err
		}
	}()

	log.Info("mainagent starting",
		"addr", cfg.Gateway.Addr,
		"url", cfg.Gateway.PublicURL,
		"provider", cfg.LLM.DefaultProvider,
		"model_backed", u != nil && !isNoModel(u),
		"discovery", cfg.Discovery.Enabled,
		"self_register", cfg.Router.SelfRegister,
	)

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received")
		return nil
	case err := <-errCh:
		return fmt.Errorf("gateway: %w", err)
	}
}
