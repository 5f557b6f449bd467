package main

import (
	"os"

	"leadmarket-backend/internal/config"
	"leadmarket-backend/internal/infrastructure/database"
	"leadmarket-backend/internal/pkg/logging"

	"gorm.io/gorm"
)

func main() {
	cmd := newRootCmd(func() (*gorm.DB, *config.Config, error) {
		cfg, err := config.Load()
		if err != nil {
			return nil, nil, err
		}
		logging.Setup(cfg.Env, cfg.LogLevel)
		db, err := database.Open(cfg.DatabaseURL)
		return db, cfg, err
	})
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
