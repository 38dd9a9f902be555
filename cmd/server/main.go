// distrokit - billing lifecycle service for the distribution platform
package main

import (
	"context"
	"os"

	"github.com/mbd888/distrokit/internal/config"
	"github.com/mbd888/distrokit/internal/logging"
	"github.com/mbd888/distrokit/internal/server"
)

// Build info - set by ldflags
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.New("info", "text").Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.LogLevel, cfg.LogFormat)
	logger.Info("starting distrokit",
		"version", Version,
		"commit", Commit,
		"build_time", BuildTime,
	)
	logger.Info("configuration loaded",
		"env", cfg.Env,
		"jobs_enabled", cfg.Billing.JobsEnabled,
		"database", cfg.DatabaseURL != "",
		"zoho_organization", cfg.Zoho.OrganizationID,
	)

	server.Version = Version
	srv, err := server.New(cfg, server.WithLogger(logger))
	if err != nil {
		logger.Error("failed to create server", "error", err)
		os.Exit(1)
	}

	if err := srv.Run(context.Background()); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}
