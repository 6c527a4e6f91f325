package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"

	"github.com/zatekoja/clinicalcore/internal/bootstrap"
	"github.com/zatekoja/clinicalcore/pkg/config"
)

func main() {
	var (
		file   string
		pretty bool
	)
	flag.StringVar(&file, "file", "", "transcript file to read (default: stdin)")
	flag.BoolVar(&pretty, "pretty", false, "indent the JSON output")
	flag.Parse()

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

	transcript, err := readTranscript(file)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to read transcript")
	}

	extractor := bootstrap.Extractor(cfg, bootstrap.Generative(cfg), metrics)
	result, err := extractor.Extract(ctx, transcript)
	if err != nil {
		log.Error().Err(err).Msg("Extraction failed")
		shutdown()
		os.Exit(1)
	}

	encoder := json.NewEncoder(os.Stdout)
	if pretty {
		encoder.SetIndent("", "  ")
	}
	if err := encoder.Encode(result); err != nil {
		log.Fatal().Err(err).Msg("Failed to write result")
	}
}

func readTranscript(path string) (string, error) {
	if path == "" || path == "-" {
		data, err := io.ReadAll(os.Stdin)
		return string(data), err
	}
	data, err := os.ReadFile(path)
	return string(data), err
}
