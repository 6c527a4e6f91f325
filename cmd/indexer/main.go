package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/zatekoja/clinicalcore/internal/adapters/database"
	"github.com/zatekoja/clinicalcore/internal/adapters/events"
	"github.com/zatekoja/clinicalcore/internal/application/services"
	"github.com/zatekoja/clinicalcore/internal/bootstrap"
	"github.com/zatekoja/clinicalcore/internal/infrastructure/clients/postgres"
	"github.com/zatekoja/clinicalcore/internal/infrastructure/clients/redis"
	"github.com/zatekoja/clinicalcore/internal/infrastructure/clients/typesense"
	"github.com/zatekoja/clinicalcore/pkg/config"
)

func main() {
	var (
		reset        bool
		watch        bool
		patientID    string
		intervalFlag string
		concurrency  int
	)
	flag.BoolVar(&reset, "reset", false, "drop the Typesense collection before reindexing")
	flag.BoolVar(&watch, "watch", false, "refresh patients as update events arrive on Redis")
	flag.StringVar(&patientID, "patient", "", "refresh a single patient and exit")
	flag.StringVar(&intervalFlag, "interval", "", "repeat interval for full reindexing (e.g. 6h, 30m)")
	flag.IntVar(&concurrency, "concurrency", 0, "patients embedded at once during a full reindex")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	interval := cfg.Pipeline.RefreshInterval
	if value := strings.TrimSpace(intervalFlag); value != "" {
		interval, err = time.ParseDuration(value)
		if err != nil || interval <= 0 {
			fmt.Fprintf(os.Stderr, "Invalid interval %q\n", value)
			os.Exit(2)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics, shutdown, err := bootstrap.Telemetry(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize telemetry")
	}
	defer shutdown()

	generator := bootstrap.Generative(cfg)
	if generator == nil {
		log.Fatal().Msg("Indexing requires OPENAI_API_KEY for embeddings")
	}

	pgClient, err := postgres.NewClient(ctx, &cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize PostgreSQL client")
	}
	defer pgClient.Close()

	if reset && cfg.Index.Backend == config.IndexBackendTypesense {
		resetTypesense(ctx, cfg)
	}

	index, err := bootstrap.Index(ctx, cfg, pgClient)
	if err != nil {
		log.Fatal().Err(err).Str("backend", cfg.Index.Backend).Msg("Failed to open embedding index")
	}
	indexer := bootstrap.IndexMaintainer(cfg, generator, index, database.NewPatientAdapter(pgClient), metrics)
	indexer.SetConcurrency(concurrency)

	if patientID != "" {
		outcome, err := indexer.Refresh(ctx, patientID)
		if err != nil {
			log.Fatal().Err(err).Str("patient_id", patientID).Msg("Refresh failed")
		}
		log.Info().Str("patient_id", patientID).Str("outcome", string(outcome)).Msg("Patient refreshed")
		return
	}

	if watch {
		sync, closeBus := startSync(cfg, indexer)
		defer closeBus()
		defer sync.Stop()
	}

	for {
		summary, err := indexer.RefreshAll(ctx)
		if err != nil {
			log.Error().Err(err).Msg("Reindex failed")
		} else {
			log.Info().
				Int("updated", summary.Updated).
				Int("unchanged", summary.Unchanged).
				Int("failed", summary.Failed).
				Msg("Reindex complete")
		}

		if interval <= 0 && !watch {
			return
		}

		var next <-chan time.Time
		if interval > 0 {
			log.Info().Dur("interval", interval).Msg("Next full reindex scheduled")
			next = time.After(interval)
		}
		select {
		case <-ctx.Done():
			log.Info().Msg("Indexer shutting down")
			return
		case <-next:
		}
	}
}

func resetTypesense(ctx context.Context, cfg *config.Config) {
	ts, err := typesense.NewClient(&cfg.Typesense)
	if err != nil {
		log.Warn().Err(err).Msg("Typesense unavailable, skipping reset")
		return
	}
	if err := ts.DropCollection(ctx, cfg.Index.Collection); err != nil {
		log.Warn().Err(err).Str("collection", cfg.Index.Collection).Msg("Failed to drop collection")
		return
	}
	log.Info().Str("collection", cfg.Index.Collection).Msg("Dropped embedding collection")
}

func startSync(cfg *config.Config, indexer *services.EmbeddingIndexService) (*services.IndexSyncService, func()) {
	redisClient, err := redis.NewClient(&cfg.Redis)
	if err != nil {
		log.Fatal().Err(err).Msg("Watching for updates requires Redis")
	}
	bus := events.NewRedisEventBus(redisClient)

	sync := services.NewIndexSyncService(indexer, bus)
	if err := sync.Start(); err != nil {
		log.Fatal().Err(err).Msg("Failed to start index sync")
	}
	return sync, func() {
		_ = bus.Close()
		_ = redisClient.Close()
	}
}
