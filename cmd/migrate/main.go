package main

import (
	"fmt"
	"os"

	"github.com/Amandasamuel/Toll-with-postgress/internal/config"
	"github.com/Amandasamuel/Toll-with-postgress/internal/logging"
	"github.com/Amandasamuel/Toll-with-postgress/internal/migrations"
)

func main() {
	direction := "up"
	if len(os.Args) > 1 {
		direction = os.Args[1]
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	logger := logging.New(cfg.LogLevel)

	switch direction {
	case "up":
		err = migrations.Up(cfg.DatabaseURL, logger)
	case "down":
		err = migrations.Down(cfg.DatabaseURL, logger)
	default:
		fmt.Fprintf(os.Stderr, "usage: migrate [up|down]\n")
		os.Exit(2)
	}
	if err != nil {
		logger.Error("migration failed", "direction", direction, "error", err)
		os.Exit(1)
	}
}
