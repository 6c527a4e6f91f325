package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/rs/zerolog/log"

	"github.com/zatekoja/clinicalcore/internal/adapters/database"
	"github.com/zatekoja/clinicalcore/internal/bootstrap"
	"github.com/zatekoja/clinicalcore/internal/evaluation"
	"github.com/zatekoja/clinicalcore/internal/infrastructure/clients/postgres"
	"github.com/zatekoja/clinicalcore/pkg/config"
)

func main() {
	var (
		goldenPath string
		k          int
		verbose    bool
		gates      evaluation.GuardrailConfig
	)
	flag.StringVar(&goldenPath, "golden", "config/golden_queries.json", "golden query set")
	flag.IntVar(&k, "k", evaluation.DefaultK, "ranking cutoff")
	flag.BoolVar(&verbose, "verbose", false, "include per-query results")
	flag.Float64Var(&gates.MinRecallAtK, "min-recall", 0, "fail below this mean recall@k")
	flag.Float64Var(&gates.MinMRRAtK, "min-mrr", 0, "fail below this mean MRR@k")
	flag.Float64Var(&gates.MinClassificationAccuracy, "min-classification", 0, "fail below this classification accuracy")
	flag.IntVar(&gates.MaxFailedQueries, "max-failed", 0, "fail above this many errored queries")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()
	metrics, shutdown, err := bootstrap.Telemetry(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize telemetry")
	}
	defer shutdown()

	queries, err := evaluation.LoadGoldenQueries(goldenPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load golden queries")
	}
	if err := evaluation.ValidateGoldenQueries(queries); err != nil {
		log.Fatal().Err(err).Msg("Invalid golden queries")
	}

	pgClient, err := postgres.NewClient(ctx, &cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer pgClient.Close()

	index, err := bootstrap.Index(ctx, cfg, pgClient)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open embedding index")
	}

	// No classification cache: every run must exercise the classifier.
	generator := bootstrap.Generative(cfg)
	classifier := bootstrap.Classifier(cfg, generator, nil, metrics)
	retriever := bootstrap.Retriever(cfg, classifier, generator, index, database.NewPatientAdapter(pgClient), metrics)

	summary, err := evaluation.NewRunner(retriever, k).Run(ctx, queries)
	if err != nil {
		log.Fatal().Err(err).Msg("Evaluation failed")
	}
	if !verbose {
		summary.Results = nil
	}

	out, _ := json.MarshalIndent(summary, "", "  ")
	fmt.Println(string(out))

	if violations := evaluation.NewGuardrails(gates).Check(summary); len(violations) > 0 {
		for _, v := range violations {
			log.Error().Str("violation", v).Msg("Evaluation guardrail failed")
		}
		shutdown()
		os.Exit(1)
	}
}
