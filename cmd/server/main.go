// Package main is the entry point for the CodeLove server. It reads
// configuration from the environment, builds the logger, and hands off to
// internal/server.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"github.com/codelove/codelove/internal/server"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))

	port := 8080
	if portStr := os.Getenv("PORT"); portStr != "" {
		var err error
		port, err = strconv.Atoi(portStr)
		if err != nil {
			logger.Error("invalid PORT value", slog.String("value", portStr))
			os.Exit(1)
		}
	}

	dbPath := "data/codelove.db"
	if envDB := os.Getenv("DB_PATH"); envDB != "" {
		dbPath = envDB
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		logger.Error("failed to create database directory",
			slog.String("dir", filepath.Dir(dbPath)),
			slog.String("error", err.Error()),
		)
		os.Exit(1)
	}

	// SESSION_SECRET signs dev-provider session tokens; generate with
	//   SESSION_SECRET=$(openssl rand -hex 32)
	sessionSecret := os.Getenv("SESSION_SECRET")

	// With no IDENTITY_API_KEY the server falls back to the in-process dev
	// provider, which logs verification codes instead of emailing them.
	identityAPIURL := os.Getenv("IDENTITY_API_URL")
	identityAPIKey := os.Getenv("IDENTITY_API_KEY")

	googleClientID := os.Getenv("GOOGLE_CLIENT_ID")
	googleClientSecret := os.Getenv("GOOGLE_CLIENT_SECRET")
	googleCallbackURL := os.Getenv("GOOGLE_CALLBACK_URL")
	if googleCallbackURL == "" {
		googleCallbackURL = fmt.Sprintf("http://localhost:%d/auth/google/callback", port)
	}

	cfg := server.Config{
		Port:               port,
		DBPath:             dbPath,
		SessionSecret:      sessionSecret,
		IdentityAPIURL:     identityAPIURL,
		IdentityAPIKey:     identityAPIKey,
		GoogleClientID:     googleClientID,
		GoogleClientSecret: googleClientSecret,
		GoogleCallbackURL:  googleCallbackURL,
	}

	srv, err := server.New(cfg, logger)
	if err != nil {
		logger.Error("failed to create server", slog.String("error", err.Error()))
		os.Exit(1)
	}

	if err := srv.Start(); err != nil {
		logger.Error("server error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
