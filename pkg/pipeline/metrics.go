// pkg/pipeline/metrics.go
package pipeline

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// StageMetrics tracks one pipeline stage.
type StageMetrics struct {
	Name      string
	StartTime time.Time
	EndTime   time.Time
	Rows      int
}

// Duration returns the stage duration.
func (sm *StageMetrics) Duration() time.Duration {
	if sm.EndTime.IsZero() {
		return time.Since(sm.StartTime)
	}
	return sm.EndTime.Sub(sm.StartTime)
}

// RunMetrics collects per-stage row counts and timings for one pipeline run.
type RunMetrics struct {
	mu        sync.Mutex
	logger    *zap.Logger
	RunID     string
	StartTime time.Time
	EndTime   time.Time
	stages    []*StageMetrics
	byName    map[string]*StageMetrics
}

// NewRunMetrics creates a metrics collector for a run.
func NewRunMetrics(runID string, logger *zap.Logger) *RunMetrics {
	return &RunMetrics{
		logger:    logger,
		RunID:     runID,
		StartTime: time.Now(),
		byName:    make(map[string]*StageMetrics),
	}
}

// StartStage begins tracking a stage.
func (rm *RunMetrics) StartStage(name string) {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	sm := &StageMetrics{Name: name, StartTime: time.Now()}
	rm.stages = append(rm.stages, sm)
	rm.byName[name] = sm
}

// EndStage completes tracking a stage with its output row count.
func (rm *RunMetrics) EndStage(name string, rows int) {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	if sm, ok := rm.byName[name]; ok {
		sm.EndTime = time.Now()
		sm.Rows = rows

		rm.logger.Info("Completed stage",
			zap.String("stage", name),
			zap.Int("rows", rows),
			zap.Duration("duration", sm.Duration()))
	}
}

// Complete marks the end of the run.
func (rm *RunMetrics) Complete() {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	rm.EndTime = time.Now()
}

// Duration returns the total run duration.
func (rm *RunMetrics) Duration() time.Duration {
	if rm.EndTime.IsZero() {
		return time.Since(rm.StartTime)
	}
	return rm.EndTime.Sub(rm.StartTime)
}

// Stage returns the metrics for a named stage, or nil.
func (rm *RunMetrics) Stage(name string) *StageMetrics {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	return rm.byName[name]
}

// LogSummary logs the final run summary.
func (rm *RunMetrics) LogSummary() {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	fields := []zap.Field{
		zap.String("runID", rm.RunID),
		zap.Duration("duration", rm.Duration()),
	}
	for _, sm := range rm.stages {
		fields = append(fields, zap.Int(sm.Name+"_rows", sm.Rows))
	}

	rm.logger.Info("Pipeline run completed", fields...)
}
