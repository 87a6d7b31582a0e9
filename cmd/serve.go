package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/acemcp/acemcp/internal/config"
	"github.com/acemcp/acemcp/internal/indexer"
	"github.com/acemcp/acemcp/internal/logging"
	mcpserver "github.com/acemcp/acemcp/internal/mcp"
	"github.com/acemcp/acemcp/internal/registry"
	"github.com/acemcp/acemcp/internal/remote"
	"github.com/acemcp/acemcp/internal/web"
)

var flagWebPort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the MCP server for AI agent integration",
	Long: `Starts a Model Context Protocol (MCP) server on stdio, exposing the
search_context tool. With --web-port, an administrative web interface
with status, configuration and a live log feed runs alongside it.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if err := cfg.Validate(); err != nil {
			return err
		}

		var broadcaster *web.Broadcaster
		opts := logging.Options{
			Level:    logging.LevelFromEnv(),
			FilePath: filepath.Join(config.LogDir(), "acemcp.log"),
		}
		if flagWebPort != 0 {
			if flagWebPort < 1024 || flagWebPort > 65535 {
				return fmt.Errorf("web port must be between 1024 and 65535, got %d", flagWebPort)
			}
			broadcaster = web.NewBroadcaster()
			opts.Broadcast = broadcaster.Publish
		}
		logger := logging.Setup(opts)

		store := registry.NewStore(config.DataDir())
		client := remote.NewClient(remote.Options{
			BaseURL:        cfg.BaseURL,
			Token:          cfg.Token,
			MaxRetries:     cfg.MaxRetries,
			RetryDelay:     cfg.RetryDelayDuration(),
			MaxConnections: cfg.MaxConcurrentUploads,
		})
		manager := indexer.NewManager(cfg, store, client)

		logger.Info("starting acemcp MCP server",
			"base_url", cfg.BaseURL,
			"token", config.MaskToken(cfg.Token),
			"batch_size", cfg.BatchSize,
			"data_dir", config.DataDir())

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		mcpserver.Version = Version
		web.Version = Version

		var webServer *web.Server
		if flagWebPort != 0 {
			webServer = web.New(cfg, store, manager, broadcaster, flagWebPort)
			go func() {
				if err := webServer.Start(); err != nil {
					logger.Error("web server stopped", "error", err)
				}
			}()
		}

		srv := mcpserver.NewServer(manager)
		serveErr := make(chan error, 1)
		go func() { serveErr <- srv.Serve() }()

		select {
		case err := <-serveErr:
			if err != nil {
				logger.Error("MCP server stopped", "error", err)
			}
		case <-ctx.Done():
			logger.Info("shutdown signal received, stopping server")
		}

		if webServer != nil {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := webServer.Shutdown(shutdownCtx); err != nil {
				logger.Warn("web server shutdown", "error", err)
			}
		}
		logger.Info("server shutdown complete")
		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&flagWebPort, "web-port", 0, "enable the web management interface on this port (e.g. 8080)")
	rootCmd.AddCommand(serveCmd)
}
