// pkg/pipeline/error.go
package pipeline

import "fmt"

// ErrorCategory classifies where a pipeline run failed. Every category is
// fatal: the run either completes end-to-end or aborts, and errors propagate
// to the caller without retries.
type ErrorCategory int

const (
	// ErrorCategoryInput covers missing, unreadable, or mis-typed input
	// datasets, detected before any computation.
	ErrorCategoryInput ErrorCategory = iota
	// ErrorCategoryJoinKey covers join-key violations: duplicate keys or a
	// join cardinality that indicates a degenerate cross product.
	ErrorCategoryJoinKey
	// ErrorCategoryModelFit covers degenerate labels or predictors and a
	// non-converging or singular fit.
	ErrorCategoryModelFit
	// ErrorCategoryScoring covers scoring rows that cannot be encoded with
	// the training-time schema.
	ErrorCategoryScoring
)

// String returns a string representation of the error category
func (ec ErrorCategory) String() string {
	switch ec {
	case ErrorCategoryInput:
		return "Input"
	case ErrorCategoryJoinKey:
		return "JoinKey"
	case ErrorCategoryModelFit:
		return "ModelFit"
	case ErrorCategoryScoring:
		return "Scoring"
	default:
		return fmt.Sprintf("Unknown(%d)", ec)
	}
}

// StageError wraps a failure with the pipeline stage and category it
// occurred in.
type StageError struct {
	Stage    string
	Category ErrorCategory
	Err      error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("[%s] stage %s: %v", e.Category, e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

func newStageError(stage string, category ErrorCategory, err error) *StageError {
	return &StageError{Stage: stage, Category: category, Err: err}
}
