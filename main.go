package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"

	"predmarket/cmd"
	"predmarket/config"
	"predmarket/database"
)

func main() {
	log.SetFormatter(&log.TextFormatter{
		FullTimestamp: true,
	})
	if level, err := log.ParseLevel(os.Getenv("LOG_LEVEL")); err == nil {
		log.SetLevel(level)
	}

	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Fatal("Failed to load configuration")
	}

	if len(os.Args) > 1 && os.Args[1] == "migrate" {
		if err := runMigrateCommand(cfg, os.Args[2:]); err != nil {
			log.WithError(err).Fatal("Migration command failed")
		}
		return
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := cmd.Run(ctx, cfg); err != nil {
		log.WithError(err).Fatal("Application failed")
	}
}

func runMigrateCommand(cfg *config.Config, args []string) error {
	direction := "up"
	if len(args) > 0 {
		direction = args[0]
	}

	switch direction {
	case "up":
		return database.RunMigrationsWithURL(cfg.DatabaseURL)
	case "down":
		return database.RollbackMigration(cfg.DatabaseURL)
	case "status":
		return database.MigrationStatus(cfg.DatabaseURL)
	default:
		return fmt.Errorf("unknown migrate command %q (expected up, down or status)", direction)
	}
}
