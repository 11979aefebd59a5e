// Command graphdb runs the content-addressed knowledge graph engine
// as a standalone server: REST API, optional MCP tool surface, optional
// Prometheus metrics, and the background decay/reinforcement daemon.
//
// A cobra root command whose flags populate a CLIOverrides struct, a
// config hierarchy (defaults -> YAML -> env -> CLI), then a startup
// sequence that wires every subsystem and blocks until a signal
// arrives for a clean exit.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/denizumutdereli/graphdb/pkg/api"
	mcpapi "github.com/denizumutdereli/graphdb/pkg/mcp"

	"github.com/denizumutdereli/graphdb/pkg/config"
	"github.com/denizumutdereli/graphdb/pkg/core"
	"github.com/denizumutdereli/graphdb/pkg/daemon"
	"github.com/denizumutdereli/graphdb/pkg/embedding"
)

func main() {
	var cliOverrides config.CLIOverrides
	var configPath string

	rootCmd := &cobra.Command{
		Use:   "graphdb",
		Short: "graphdb - content-addressed knowledge graph for semantic retrieval and inference",
		Long:  "A persistent neuron/synapse graph store with HNSW similarity search, bidirectional inference, and an attractor-based goal model.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Flags(), configPath, &cliOverrides)
		},
		SilenceUsage: true,
	}

	f := rootCmd.Flags()
	f.StringVarP(&configPath, "config", "f", "", "Path to YAML config file (overrides GRAPHDB_CONFIG env)")
	cliOverrides.HTTPAddr = f.String("http-addr", "", "HTTP listen address")
	cliOverrides.DataPath = f.String("data-path", "", "Data directory for the chunk/neuron stores")
	cliOverrides.EmbeddingDim = f.Int("embedding-dim", 0, "Embedding vector dimensionality")
	cliOverrides.MCPEnabled = f.Bool("mcp", false, "Enable the MCP tool surface")
	cliOverrides.MCPAPIKey = f.String("mcp-api-key", "", "Required bearer key for MCP requests")

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(flags *pflag.FlagSet, configPath string, cliOverrides *config.CLIOverrides) error {
	printBanner()

	if configPath == "" {
		configPath = os.Getenv("GRAPHDB_CONFIG")
	}

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	applyExplicitFlags(flags, cfg, cliOverrides)

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	log.Printf("Data path: %s", cfg.Storage.DataPath)
	log.Printf("HTTP: %s", cfg.Server.HTTPAddr)

	var reg *prometheus.Registry
	if cfg.Server.MetricsEnabled {
		reg = prometheus.NewRegistry()
	}
	engineCfg := cfg.EngineConfig()
	engineCfg.MetricsRegisterer = reg

	embedder := embedding.NewDeterministicStub(engineCfg.EmbeddingDim)
	engine, err := core.Open(engineCfg, embedder)
	if err != nil {
		return fmt.Errorf("failed to open engine: %w", err)
	}
	log.Println("Engine opened")

	daemons := daemon.NewDaemonManager(engine, time.Duration(cfg.Attractor.DecayIntervalMs)*time.Millisecond)
	daemons.Start()
	log.Println("Background decay/reinforcement daemon started")

	httpServer := api.NewServer(cfg.Server.HTTPAddr, engine)
	if cfg.Server.RateLimitRPS > 0 {
		httpServer.EnableRateLimit(cfg.Server.RateLimitRPS, time.Second)
	}
	if reg != nil {
		httpServer.MetricsHandler = promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
	}
	if cfg.Server.MCPEnabled {
		mcpHandler, err := httpServer.MCPHandler(mcpapi.Config{
			APIKey: cfg.Server.MCPAPIKey,
		})
		if err != nil {
			return fmt.Errorf("failed to build MCP handler: %w", err)
		}
		httpServer.MountMCP(cfg.Server.MCPPath, mcpHandler)
		log.Printf("MCP tool surface mounted at %s", cfg.Server.MCPPath)
	}

	ctx, cancel := context.WithCancel(context.Background())

	go func() {
		if err := httpServer.Start(); err != nil {
			log.Printf("HTTP server error: %v", err)
		}
	}()

	log.Println("graphdb is ready")
	log.Println("--------------------------------------------")

	waitForShutdown(ctx, cancel)

	log.Println("Initiating graceful shutdown...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP shutdown error: %v", err)
	}
	daemons.Stop()
	if err := engine.Close(); err != nil {
		log.Printf("Engine close error: %v", err)
	}

	log.Println("graphdb shutdown complete")
	return nil
}

// applyExplicitFlags applies only the CLI flags the user explicitly
// set, so unset flags never override values resolved from YAML or
// environment variables.
func applyExplicitFlags(flags *pflag.FlagSet, cfg *config.Config, o *config.CLIOverrides) {
	overrides := config.CLIOverrides{}
	if flags.Changed("http-addr") {
		overrides.HTTPAddr = o.HTTPAddr
	}
	if flags.Changed("data-path") {
		overrides.DataPath = o.DataPath
	}
	if flags.Changed("embedding-dim") {
		overrides.EmbeddingDim = o.EmbeddingDim
	}
	if flags.Changed("mcp") {
		overrides.MCPEnabled = o.MCPEnabled
	}
	if flags.Changed("mcp-api-key") {
		overrides.MCPAPIKey = o.MCPAPIKey
	}
	cfg.ApplyCLI(overrides)
}

// waitForShutdown blocks until an OS interrupt or termination signal
// is received, then cancels ctx to initiate graceful shutdown.
func waitForShutdown(ctx context.Context, cancel context.CancelFunc) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		log.Printf("Received signal %v, initiating shutdown...", sig)
		cancel()
	case <-ctx.Done():
	}
}

func printBanner() {
	banner := `
   ____                 _     ____  ____
  / ___|_ __ __ _ _ __ | |__ |  _ \| __ )
 | |  _| '__/ _` + "`" + ` | '_ \| '_ \| | | |  _ \
 | |_| | | | (_| | |_) | | | | |_| | |_) |
  \____|_|  \__,_| .__/|_| |_|____/|____/
                 |_|
    content-addressed knowledge graph
    --------------------------------
`
	fmt.Fprint(os.Stdout, banner)
}
