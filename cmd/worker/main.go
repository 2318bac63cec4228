// The worker runs exactly one outreach cycle and exits. A cron or systemd
// timer provides the cadence; the cycle lock keeps overlapping invocations
// from double-sending.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/gestionvital/prospector/internal/compose"
	"github.com/gestionvital/prospector/internal/config"
	"github.com/gestionvital/prospector/internal/discovery"
	"github.com/gestionvital/prospector/internal/engine"
	"github.com/gestionvital/prospector/internal/evolution"
	"github.com/gestionvital/prospector/internal/lead"
	"github.com/gestionvital/prospector/internal/pkg/distlock"
	"github.com/gestionvital/prospector/internal/store"
)

func main() {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config/config.yaml"
	}

	cfg, err := config.LoadFromEnv(configPath)
	if err != nil {
		log.Fatalf("[Worker] Loading config: %v", err)
	}
	if cfg.Evolution.BaseURL == "" || cfg.Evolution.APIKey == "" {
		log.Fatal("[Worker] Evolution gateway URL and API key are required")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	policy, err := buildPolicy(cfg.Campaign)
	if err != nil {
		log.Fatalf("[Worker] Building policy: %v", err)
	}

	leadStore := store.NewCSVStore(cfg.Storage.LeadFile)
	gateway := evolution.NewClient(cfg.Evolution)
	composer := compose.New(cfg.Campaign.Messages)

	opts := []engine.RunnerOption{
		engine.WithPhoneRule(lead.PhoneRule{
			CountryPrefix: cfg.Campaign.CountryPrefix,
			LocalLength:   cfg.Campaign.LocalPhoneLength,
			DedupeDigits:  cfg.Campaign.DedupeDigits,
		}),
	}

	if cfg.SerpAPI.Enabled && cfg.SerpAPI.APIKey != "" {
		opts = append(opts, engine.WithSupplier(
			discovery.NewClient(cfg.SerpAPI),
			cfg.Campaign.TargetCategory,
			cfg.Campaign.TargetRegion,
		))
	}

	if cfg.Campaign.AttachmentPath != "" {
		data, err := os.ReadFile(cfg.Campaign.AttachmentPath)
		if err != nil {
			log.Fatalf("[Worker] Reading attachment %s: %v", cfg.Campaign.AttachmentPath, err)
		}
		name := cfg.Campaign.AttachmentName
		if name == "" {
			name = filepath.Base(cfg.Campaign.AttachmentPath)
		}
		opts = append(opts, engine.WithAttachment(engine.Attachment{
			Data:     data,
			Filename: name,
			Caption:  "",
		}))
	}

	runner := engine.NewRunner(leadStore, gateway, composer, policy, opts...)

	if cfg.Redis.Enabled {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer client.Close()

		lock := distlock.New(client, "prospector:cycle", cfg.Redis.LockTTL())
		ok, err := lock.Acquire(ctx)
		if err != nil {
			log.Fatalf("[Worker] Acquiring cycle lock: %v", err)
		}
		if !ok {
			log.Println("[Worker] Another cycle is already running, exiting")
			return
		}
		defer func() {
			releaseCtx, releaseCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer releaseCancel()
			if err := lock.Release(releaseCtx); err != nil {
				log.Printf("[Worker] Releasing cycle lock: %v", err)
			}
		}()
	}

	stats, err := runner.RunCycle(ctx)
	if err != nil {
		log.Fatalf("[Worker] Cycle failed: %v", err)
	}
	log.Printf("[Worker] Cycle done: candidates=%d attempted=%d succeeded=%d failed=%d discovered=%d gated=%t",
		stats.Candidates, stats.Attempted, stats.Succeeded, stats.Failed, stats.Discovered, stats.Gated)

	if cfg.Storage.S3Enabled && stats.Attempted+stats.Discovered > 0 {
		mirror, err := store.NewS3Mirror(ctx, cfg.Storage.S3Bucket, cfg.Storage.S3Prefix,
			cfg.Storage.S3Region, cfg.Storage.AWSAccessKey, cfg.Storage.AWSSecretKey)
		if err != nil {
			log.Printf("[Worker] S3 mirror unavailable: %v", err)
			return
		}
		if err := mirror.Upload(ctx, leadStore.Path()); err != nil {
			log.Printf("[Worker] Mirroring lead file to S3: %v", err)
			return
		}
		log.Println("[Worker] Lead file mirrored to S3")
	}
}

// buildPolicy translates campaign config into the engine's policy.
func buildPolicy(c config.CampaignConfig) (engine.Policy, error) {
	days, err := c.Weekdays()
	if err != nil {
		return engine.Policy{}, err
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return engine.Policy{}, err
	}
	return engine.Policy{
		AllowedWeekdays: days,
		HourStart:       c.HourStart,
		HourEnd:         c.HourEnd,
		Cooldown:        c.Cooldown(),
		MaxStep:         c.MaxSequenceStep,
		MaxPerCycle:     c.MaxPerCycle,
		DelayMin:        c.DelayMin(),
		DelayMax:        c.DelayMax(),
		Location:        loc,
	}, nil
}
