package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rs/zerolog/log"

	"github.com/zatekoja/clinicalcore/internal/adapters/database"
	"github.com/zatekoja/clinicalcore/internal/bootstrap"
	"github.com/zatekoja/clinicalcore/internal/domain/entities"
	"github.com/zatekoja/clinicalcore/internal/infrastructure/clients/postgres"
	"github.com/zatekoja/clinicalcore/internal/infrastructure/clients/redis"
	"github.com/zatekoja/clinicalcore/pkg/config"
)

func main() {
	var (
		query    string
		mode     string
		topK     int
		targetID string
		pretty   bool
	)
	flag.StringVar(&query, "query", "", "free-text request (default: remaining arguments)")
	flag.StringVar(&mode, "mode", string(entities.RetrievalModeInteractive), "interactive or report")
	flag.IntVar(&topK, "top-k", 0, "result size (default: per mode)")
	flag.StringVar(&targetID, "patient", "", "pin a specific patient id")
	flag.BoolVar(&pretty, "pretty", false, "indent the JSON output")
	flag.Parse()

	if query == "" {
		query = strings.Join(flag.Args(), " ")
	}
	if strings.TrimSpace(query) == "" {
		fmt.Fprintln(os.Stderr, "usage: retrieve [-mode interactive|report] [-top-k N] [-patient ID] <query>")
		os.Exit(2)
	}
	retrievalMode := entities.RetrievalMode(mode)
	if retrievalMode != entities.RetrievalModeInteractive && retrievalMode != entities.RetrievalModeReport {
		fmt.Fprintf(os.Stderr, "unknown mode %q\n", mode)
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics, shutdown, err := bootstrap.Telemetry(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize telemetry")
	}
	defer shutdown()

	pgClient, err := postgres.NewClient(ctx, &cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize PostgreSQL client")
	}
	defer pgClient.Close()

	// Redis only backs the classification cache; retrieval works without it.
	redisClient, err := redis.NewClient(&cfg.Redis)
	if err != nil {
		log.Warn().Err(err).Msg("Redis unavailable, classification cache disabled")
		redisClient = nil
	} else {
		defer redisClient.Close()
	}

	index, err := bootstrap.Index(ctx, cfg, pgClient)
	if err != nil {
		log.Fatal().Err(err).Str("backend", cfg.Index.Backend).Msg("Failed to open embedding index")
	}

	generator := bootstrap.Generative(cfg)
	classifier := bootstrap.Classifier(cfg, generator, redisClient, metrics)
	retriever := bootstrap.Retriever(cfg, classifier, generator, index, database.NewPatientAdapter(pgClient), metrics)

	outcome, err := retriever.Retrieve(ctx, entities.RetrievalQuery{
		Text:            query,
		TopK:            topK,
		Mode:            retrievalMode,
		TargetPatientID: targetID,
	})
	if err != nil {
		log.Error().Err(err).Msg("Retrieval failed")
		shutdown()
		os.Exit(1)
	}

	encoder := json.NewEncoder(os.Stdout)
	if pretty {
		encoder.SetIndent("", "  ")
	}
	if err := encoder.Encode(outcome); err != nil {
		log.Fatal().Err(err).Msg("Failed to write outcome")
	}
}
