// pkg/pipeline/pipeline.go
package pipeline

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/retailscope/campaign-response/pkg/features"
	"github.com/retailscope/campaign-response/pkg/join"
	"github.com/retailscope/campaign-response/pkg/logit"
	"github.com/retailscope/campaign-response/pkg/model"
	"github.com/retailscope/campaign-response/pkg/score"
	"github.com/retailscope/campaign-response/pkg/source"
)

// Stage names used in metrics and errors.
const (
	StageLoad      = "load"
	StageAggregate = "aggregate"
	StageJoin      = "join"
	StageSplit     = "split"
	StageFit       = "fit"
	StageScore     = "score"
)

// Result is the outcome of one pipeline run: the ranked scoring population
// plus the fitted coefficients and run accounting. Nothing is persisted; the
// caller decides what to do with it.
type Result struct {
	RunID        string
	Ranked       []model.ScoredResult
	Coefficients []logit.Coefficient
	TrainingRows int
	ScoringRows  int
	Duration     time.Duration
}

// Runner executes the response-modeling pipeline as a single forward pass:
// load, aggregate, join, split, fit, score. Each stage consumes the full
// output of the previous one; any failure aborts the run.
type Runner struct {
	source   source.DatasetSource
	logger   *zap.Logger
	verifier *Verifier
}

// NewRunner creates a pipeline runner over a dataset source. The source is
// constructed once per run by the caller and threaded through explicitly.
func NewRunner(src source.DatasetSource) *Runner {
	logger := zap.L().Named("pipeline")
	return &Runner{
		source:   src,
		logger:   logger,
		verifier: NewVerifier(logger),
	}
}

// Run executes the pipeline end-to-end.
func (r *Runner) Run(ctx context.Context) (*Result, error) {
	runID := uuid.New().String()
	logger := r.logger.With(zap.String("runID", runID))
	metrics := NewRunMetrics(runID, logger)

	logger.Info("Starting pipeline run")

	// Load the demographic and campaign-sample datasets.
	metrics.StartStage(StageLoad)
	demographics, err := r.source.Demographics(ctx)
	if err != nil {
		return nil, newStageError(StageLoad, ErrorCategoryInput, err)
	}
	sample, err := r.source.CampaignSample(ctx)
	if err != nil {
		return nil, newStageError(StageLoad, ErrorCategoryInput, err)
	}
	metrics.EndStage(StageLoad, len(demographics.Records)+len(sample))

	// Aggregate per-customer features, in the engine when the source can.
	metrics.StartStage(StageAggregate)
	featureRows, err := r.aggregate(ctx)
	if err != nil {
		return nil, err
	}
	metrics.EndStage(StageAggregate, len(featureRows))

	// Join features with demographics on the canonical identifier.
	metrics.StartStage(StageJoin)
	joined, err := join.Customers(featureRows, demographics)
	if err != nil {
		return nil, newStageError(StageJoin, ErrorCategoryJoinKey, err)
	}
	if err := r.verifier.VerifyJoin(len(featureRows), len(demographics.Records), len(joined.Rows)); err != nil {
		return nil, newStageError(StageJoin, ErrorCategoryJoinKey, err)
	}
	metrics.EndStage(StageJoin, len(joined.Rows))

	// Split into the labeled training set and the unlabeled scoring set.
	metrics.StartStage(StageSplit)
	training, scoring, err := join.Split(joined, sample)
	if err != nil {
		return nil, newStageError(StageSplit, ErrorCategoryJoinKey, err)
	}
	if err := r.verifier.VerifyPartition(joined, training, scoring); err != nil {
		return nil, newStageError(StageSplit, ErrorCategoryJoinKey, err)
	}
	metrics.EndStage(StageSplit, len(training.Rows))

	// Fit the response model on the labeled population.
	metrics.StartStage(StageFit)
	fitted, err := logit.Fit(training)
	if err != nil {
		return nil, newStageError(StageFit, ErrorCategoryModelFit, err)
	}
	metrics.EndStage(StageFit, len(training.Rows))

	// Score and rank the holdout population.
	metrics.StartStage(StageScore)
	ranked, err := score.Rank(fitted, scoring)
	if err != nil {
		return nil, newStageError(StageScore, ErrorCategoryScoring, err)
	}
	if err := r.verifier.VerifyRanking(ranked); err != nil {
		return nil, newStageError(StageScore, ErrorCategoryScoring, err)
	}
	metrics.EndStage(StageScore, len(ranked))

	metrics.Complete()
	metrics.LogSummary()

	return &Result{
		RunID:        runID,
		Ranked:       ranked,
		Coefficients: fitted.Coefficients(),
		TrainingRows: len(training.Rows),
		ScoringRows:  len(scoring.Rows),
		Duration:     metrics.Duration(),
	}, nil
}

// aggregate produces the per-customer feature rows, pushing the aggregation
// into the query engine when the source supports it and otherwise
// materializing transactions and aggregating locally.
func (r *Runner) aggregate(ctx context.Context) ([]model.CustomerFeatureRow, error) {
	if agg, ok := r.source.(source.FeatureAggregator); ok {
		featureRows, err := agg.AggregateFeatures(ctx)
		if err != nil {
			return nil, newStageError(StageAggregate, ErrorCategoryInput, err)
		}
		return featureRows, nil
	}

	transactions, err := r.source.Transactions(ctx)
	if err != nil {
		return nil, newStageError(StageAggregate, ErrorCategoryInput, err)
	}

	featureRows := features.Aggregate(transactions)
	if err := r.verifier.VerifyAggregation(transactions, featureRows); err != nil {
		return nil, newStageError(StageAggregate, ErrorCategoryInput, err)
	}

	return featureRows, nil
}
