package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"a2a-router/internal/agents/host"
	"a2a-router/internal/agents/weather"
	"a2a-router/internal/infra/config"
	"a2a-router/internal/infra/logger"
	"a2a-router/internal/infra/service"
	"a2a-router/internal/infra/tracer"
)

func main() {
	if len(os.Args) >= 2 {
		switch os.Args[1] {
		case "--help", "-h", "help":
			showUsage()
			return
		case "service":
			unit := service.DefaultUnit("weatheragent", "A2A weather agent", configPath())
			if err := service.Command(os.Args[2:], unit, os.Stdout); err != nil {
				fmt.Fprintf(os.Stderr, "service: %v\n", err)
				os.Exit(1)
			}
			return
		}
	}

	_ = godotenv.Load()

	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func showUsage() {
	fmt.Println(`weatheragent - answers weather questions for Korean cities

USAGE:
    weatheragent [FLAGS]
    weatheragent service <install|uninstall|status>

FLAGS:
    -h, --help         Show this help message
    --config PATH      Specify config file path (default: ./config.yaml)

CONFIGURATION:
    agent.addr         Listen address (default :18001)
    agent.router_url   Router to register with (A2AROUTER_AGENT_ROUTER_URL)
    agent.advertise    Announce over mDNS (A2AROUTER_AGENT_ADVERTISE)`)
}

func configPath() string {
	for i, arg := range os.Args {
		if arg == "--config" && i+1 < len(os.Args) {
			return os.Args[i+1]
		}
		if strings.HasPrefix(arg, "--config=") {
			return strings.TrimPrefix(arg, "--config=")
		}
	}
	if p := os.Getenv(config.EnvPrefix + "CONFIG"); p != "" {
		return p
	}
	return "config.yaml"
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
	log = logger.Component(log, "weatheragent")

	ctx := context.Background()
	tracerShutdown, err := tracer.Setup(ctx, cfg.Tracer, "weatheragent")
	if err != nil {
		return fmt.Errorf("tracer: %w", err)
	}
	defer tracerShutdown(ctx)

	// 3. Optional phrasing model
	u, err := host.Understander(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("llm: %w", err)
	}

	// 4. Agent
	agent, err := weather.New(u, log)
	if err != nil {
		return fmt.Errorf("weather agent: %w", err)
	}

	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	log.Info("weatheragent starting", "cities", len(weather.Cities()), "model_backed", u != nil)
	return host.Serve(ctx, cfg, host.Spec{
		DefaultName: "Weather Agent",
		DefaultAddr: ":18001",
		Card:        weather.Card,
		Handler:     agent.Handle,
	}, log)
}
