// cmd/responsescore/main.go
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/retailscope/campaign-response/pkg/config"
	"github.com/retailscope/campaign-response/pkg/logging"
	"github.com/retailscope/campaign-response/pkg/pipeline"
	"github.com/retailscope/campaign-response/pkg/source"
)

func main() {
	envFile := flag.String("env", ".env", "path to env file (optional)")
	topN := flag.Int("top", 0, "print only the top N ranked customers (0 = all)")
	flag.Parse()

	// Missing env file is fine; real environments set variables directly.
	_ = godotenv.Load(*envFile)

	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.NewLogger(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logging error: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if err := run(context.Background(), cfg, logger, *topN); err != nil {
		logger.Error("Pipeline run failed", zap.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *zap.Logger, topN int) error {
	src, err := source.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer src.Close()

	result, err := pipeline.NewRunner(src).Run(ctx)
	if err != nil {
		return err
	}

	for _, coef := range result.Coefficients {
		logger.Info("Model term",
			zap.String("term", coef.Term),
			zap.Float64("estimate", coef.Estimate),
			zap.Float64("stdErr", coef.StdErr))
	}

	ranked := result.Ranked
	if topN > 0 && topN < len(ranked) {
		ranked = ranked[:topN]
	}

	fmt.Printf("%-20s %s\n", "ID", "probability")
	for _, r := range ranked {
		fmt.Printf("%-20s %.6f\n", r.CustomerID, r.Probability)
	}

	logger.Info("Run finished",
		zap.String("runID", result.RunID),
		zap.Int("trainingRows", result.TrainingRows),
		zap.Int("scoringRows", result.ScoringRows),
		zap.Duration("duration", result.Duration))

	return nil
}
