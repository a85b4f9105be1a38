package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mcphub-io/mcphub/pkg/config"
	"github.com/mcphub-io/mcphub/pkg/corekit"
	"github.com/mcphub-io/mcphub/pkg/logger"
	"github.com/mcphub-io/mcphub/pkg/mcphub"
)

func main() {
	cmd := createRootCommand()
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func createRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "mcphub",
		Short: "MCP Hub - a routing gateway over multiple Model Context Protocol servers",
		Long: `MCP Hub supervises a set of MCP backend servers and API-to-MCP adapter
tools, exposing them to callers through named groups with one consistent
tool-call surface, independent of which backend or transport actually
answers the call.`,
		RunE: runServe,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return setupGlobalConfig(cmd)
		},
	}

	root.PersistentFlags().String("config", "", "Path to a YAML configuration file")
	root.PersistentFlags().Bool("debug", false, "Enable debug logging")
	root.PersistentFlags().Bool("quiet", false, "Disable logging entirely")
	root.PersistentFlags().Int("port", 0, "Override the HTTP bind port")
	root.PersistentFlags().String("host", "", "Override the HTTP bind host")

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Println("mcphub (dev build)")
		},
	}
	root.AddCommand(versionCmd)

	return root
}

func setupGlobalConfig(cmd *cobra.Command) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	cliFlags, err := extractCLIFlags(cmd)
	if err != nil {
		return fmt.Errorf("failed to extract CLI flags: %w", err)
	}

	sources := []config.Source{
		config.NewDefaultProvider(),
		config.NewEnvProvider(),
	}

	configFile, err := cmd.Flags().GetString("config")
	if err != nil {
		return fmt.Errorf("failed to get config file: %w", err)
	}
	if configFile != "" {
		sources = append(sources, config.NewYAMLProvider(configFile))
	}

	if len(cliFlags) > 0 {
		sources = append(sources, config.NewCLIProvider(cliFlags))
	}

	if err := config.Initialize(ctx, nil, sources...); err != nil {
		return fmt.Errorf("failed to initialize global configuration: %w", err)
	}

	cfg := config.Get()
	logLevel := logger.InfoLevel
	if cfg.CLI.Quiet {
		logLevel = logger.DisabledLevel
	} else if cfg.CLI.Debug {
		logLevel = logger.DebugLevel
	}

	log := logger.SetupLogger(logLevel, cfg.CLI.Mode == "json", cfg.CLI.Debug)
	ctx = logger.ContextWithLogger(ctx, log)
	cmd.SetContext(ctx)

	return nil
}

// extractCLIFlags converts the flags the caller actually set into the flat
// dotted-key map config.NewCLIProvider expects; flags left at their zero
// value are omitted so they don't shadow an env or YAML value underneath.
func extractCLIFlags(cmd *cobra.Command) (map[string]any, error) {
	flags := map[string]any{}

	if cmd.Flags().Changed("debug") {
		v, err := cmd.Flags().GetBool("debug")
		if err != nil {
			return nil, err
		}
		flags["cli.debug"] = v
	}
	if cmd.Flags().Changed("quiet") {
		v, err := cmd.Flags().GetBool("quiet")
		if err != nil {
			return nil, err
		}
		flags["cli.quiet"] = v
	}
	if cmd.Flags().Changed("port") {
		v, err := cmd.Flags().GetInt("port")
		if err != nil {
			return nil, err
		}
		flags["server.port"] = v
	}
	if cmd.Flags().Changed("host") {
		v, err := cmd.Flags().GetString("host")
		if err != nil {
			return nil, err
		}
		flags["server.host"] = v
	}

	return flags, nil
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	log := logger.FromContext(ctx)
	cfg := config.Get()

	hubConfig := buildHubConfig(cfg)

	registry := mcphub.NewRegistry()
	tracer := mcphub.NewTracer(hubConfig.TraceCapacity)
	resolver := mcphub.NewResolver(registry)
	lifecycle := mcphub.NewLifecycleManager(registry, tracer, hubConfig.Lifecycle)

	storage, err := mcphub.NewStorage(hubConfig.StorageConfig)
	if err != nil {
		return fmt.Errorf("initializing storage: %w", err)
	}

	env := corekit.OSEnvMap()
	adapterSvc := mcphub.NewAdapterService(registry, env)

	serverConfigs, loadErrs := mcphub.LoadServerConfigsFile(cfg.Hub.ServersFile)
	for _, e := range loadErrs {
		log.Warn("skipping invalid server config entry", "error", e)
	}

	groups, err := mcphub.LoadGroupsFile(cfg.Hub.GroupsFile)
	if err != nil {
		return fmt.Errorf("loading group config: %w", err)
	}
	resolver.SetGroups(groups)

	apiTools, err := mcphub.LoadApiToolsFile(cfg.Hub.APIToolsFile)
	if err != nil {
		return fmt.Errorf("loading api tool config: %w", err)
	}
	for _, e := range adapterSvc.LoadTools(ctx, env, apiTools) {
		log.Warn("adapter tool disabled at load time", "error", e)
	}

	if err := lifecycle.Start(ctx); err != nil {
		return fmt.Errorf("starting lifecycle manager: %w", err)
	}
	lifecycle.Initialize(ctx, serverConfigs)

	service := mcphub.NewHubService(storage, lifecycle, registry, resolver, tracer, adapterSvc)
	srv := mcphub.NewServer(hubConfig, service)

	runCtx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	log.Info("starting mcp hub",
		"host", hubConfig.Host,
		"port", hubConfig.Port,
		"base_url", hubConfig.BaseURL,
	)

	err = srv.Start(runCtx)
	adapterSvc.Close()
	if stopErr := lifecycle.Stop(context.Background()); stopErr != nil {
		log.Error("error stopping lifecycle manager", "error", stopErr)
	}
	if closeErr := storage.Close(); closeErr != nil {
		log.Error("error closing storage", "error", closeErr)
	}
	return err
}

func buildHubConfig(cfg *config.Config) *mcphub.Config {
	baseURL := cfg.Server.BaseURL
	if baseURL == "" {
		baseURL = "http://" + cfg.Server.Host + ":" + strconv.Itoa(cfg.Server.Port)
	}

	return &mcphub.Config{
		Host:             cfg.Server.Host,
		Port:             strconv.Itoa(cfg.Server.Port),
		BaseURL:          baseURL,
		ShutdownTimeout:  cfg.Server.ShutdownTimeout,
		TrustedProxies:   cfg.Admin.TrustedProxies,
		AllowIPs:         cfg.Admin.AllowIPs,
		AdminTokens:      cfg.Admin.Tokens,
		GlobalAuthTokens: cfg.Admin.GlobalAuthTokens,
		StorageConfig:    mcphub.DefaultStorageConfig(),
		Lifecycle: &mcphub.LifecycleConfig{
			MaxConcurrentConnections: mcphub.DefaultLifecycleConfig().MaxConcurrentConnections,
			HealthCheckInterval:      mcphub.DefaultLifecycleConfig().HealthCheckInterval,
			InitialReconnectDelay:    cfg.Hub.ReconnectBaseDelay,
			MaxReconnectDelay:        cfg.Hub.ReconnectMaxDelay,
			ConnectTimeout:           cfg.Hub.ConnectTimeout,
		},
		TraceCapacity: cfg.Hub.TraceBufferSize,
	}
}
