// The server exposes the dashboard API over the lead file. It shares the
// store with the worker, so manual edits land in the same CSV the next
// cycle reads.
package main

import (
	"log"
	"os"
	"time"

	"github.com/gestionvital/prospector/internal/api"
	"github.com/gestionvital/prospector/internal/config"
	"github.com/gestionvital/prospector/internal/store"
)

func main() {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config/config.yaml"
	}

	cfg, err := config.LoadFromEnv(configPath)
	if err != nil {
		log.Fatalf("[Server] Loading config: %v", err)
	}

	loc, err := time.LoadLocation(cfg.Campaign.Timezone)
	if err != nil {
		log.Fatalf("[Server] Loading timezone %s: %v", cfg.Campaign.Timezone, err)
	}

	leadStore := store.NewCSVStore(cfg.Storage.LeadFile)
	handlers := api.NewHandlers(leadStore, loc)

	srv := api.NewServer(cfg.Server, handlers)
	if err := srv.Start(); err != nil {
		log.Fatalf("[Server] %v", err)
	}
}
