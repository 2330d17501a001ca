// Command initadmin creates the administrator account from configuration
// (ADMIN_USERNAME, ADMIN_EMAIL, ADMIN_PASSWORD). An existing user with the
// same e-mail is left untouched.
package main

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"microblog/internal/config"
	"microblog/internal/database"
	"microblog/internal/logging"
	"microblog/internal/services"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to load configuration")
	}
	logging.Init(logging.Config{Level: cfg.Logging.Level, Format: cfg.Logging.Format})

	if err := os.MkdirAll(filepath.Dir(cfg.Database.Path), 0o755); err != nil {
		logging.Fatal().Err(err).Msg("failed to create database directory")
	}
	db, err := database.Open(cfg.Database.Path)
	if err != nil {
		logging.Fatal().Err(err).Str("path", cfg.Database.Path).Msg("failed to open database")
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	admin, created, err := services.NewAccounts(db).EnsureAdmin(ctx, cfg.Admin.Username, cfg.Admin.Email, cfg.Admin.Password)
	if err != nil {
		logging.Error().Err(err).Msg("failed to create admin")
		return
	}
	if !created {
		logging.Info().Str("username", admin.Username).Str("email", admin.Email).Msg("admin already exists")
		return
	}
	logging.Info().Str("id", admin.ID).Str("username", admin.Username).Msg("admin created")
}
