package commands

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/bigbes/chatstats/internal/config"
)

func Init(args []string, logger *slog.Logger) {
	fs := flag.NewFlagSet("init", flag.ExitOnError)
	configPath := fs.String("config", "configs/statsbot.yaml", "path to config file")
	token := fs.String("token", "", "Telegram bot token (may also come from "+config.TokenEnv+")")
	driver := fs.String("driver", config.DriverSQLite, "database driver: sqlite or mongo")
	force := fs.Bool("force", false, "overwrite an existing config file")
	fs.Parse(args)

	if _, err := os.Stat(*configPath); err == nil && !*force {
		fmt.Fprintf(os.Stderr, "error: %s already exists (use -force to overwrite)\n", *configPath)
		os.Exit(1)
	}

	cfg, err := config.Defaults(*driver)
	if err != nil {
		logger.Error("failed to build default config", "err", err)
		os.Exit(1)
	}
	cfg.Telegram.Token = *token

	dir := filepath.Dir(*configPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		logger.Error("failed to create config directory", "err", err)
		os.Exit(1)
	}

	if err := cfg.Save(*configPath); err != nil {
		logger.Error("failed to write config", "err", err)
		os.Exit(1)
	}

	fmt.Println("=== Config initialized ===")
	fmt.Printf("Config:   %s\n", *configPath)
	fmt.Printf("Database: %s\n", cfg.Database.Driver)
	fmt.Println()
	if *token == "" {
		fmt.Printf("Set telegram.token or export %s before running.\n", config.TokenEnv)
	}
	fmt.Println("Run 'statsbot run -config " + *configPath + "' to start the bot.")
}
