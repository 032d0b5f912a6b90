package main

import (
	"github.com/joho/godotenv"

	"github.com/wfunc/numble/archive"
	"github.com/wfunc/numble/config"
	"github.com/wfunc/numble/logger"
	"github.com/wfunc/numble/server"
	"github.com/wfunc/numble/services"
)

func main() {
	// A missing .env is fine; the environment may already be set.
	_ = godotenv.Load()

	logger.Init()

	cfg, err := config.LoadConfig(".")
	if err != nil {
		logger.Log.Fatalf("Failed to load configuration: %v", err)
	}

	store, err := archive.Open(cfg.Archive)
	if err != nil {
		logger.Log.Fatalf("Failed to open the match archive: %v", err)
	}
	defer store.Close()
	logger.Log.Infof("Match archive ready (driver: %s)", cfg.Archive.Driver)

	gameServer, err := server.NewGameServer(cfg, services.NewMatchService(store))
	if err != nil {
		logger.Log.Fatalf("Failed to create server: %v", err)
	}

	logger.Log.Infof("Starting numble server on %s", cfg.Server.HTTPAddress)
	if err := gameServer.Start(); err != nil {
		logger.Log.Fatalf("Failed to start server: %v", err)
	}
}
