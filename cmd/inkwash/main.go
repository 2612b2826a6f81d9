// Command inkwash runs the tile-store daemon backing shared fading
// canvases: it persists tiles and ink accounts, pushes tile changes to
// subscribers and prunes expired strokes.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"inkwash/internal/app"
	"inkwash/pkg/config"
	"inkwash/pkg/logger"
)

// set via ldflags during release builds
var version = "dev"

func main() {
	_ = godotenv.Load(".env")
	flags := config.ParseFlags()

	cfg, _, err := config.Load(flags.Config)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	config.ApplyEnv(cfg)
	config.ApplyDefaults(cfg)

	// explicit flags win over file and env
	addr := cfg.Server.Addr()
	if flags.Set["addr"] {
		addr = flags.Addr
	}
	if flags.Set["db"] || cfg.Server.DBPath == "" {
		cfg.Server.DBPath = flags.DB
	}

	logger.InitWithLevel(cfg.Logging.Level)

	a, err := app.New(cfg, addr, version)
	if err != nil {
		logger.Error("startup_failed", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := a.Run(ctx); err != nil {
		logger.Error("daemon_exited", "error", err)
		os.Exit(1)
	}
	logger.Info("daemon_stopped")
}
