// Package classify implements the Classifier: an ensemble of rule
// fast-paths and a trained TF-IDF/logistic-regression model that turns a
// RawMessage body into an is-job decision with a confidence score and a
// recorded reason naming which branch decided.
package classify

import (
	"fmt"
	"log/slog"
	"time"

	"jobscrape/internal/logging"
)

// Reason values the Classifier records, so regressions in any one branch
// are diagnosable from stored RawMessage classification history.
const (
	ReasonNonJobDominant  = "non-job keywords dominant"
	ReasonStrongSignals   = "strong job signals"
	ReasonModelNotLoaded  = "model not loaded"
)

// Result is the Classifier's verdict on one message.
type Result struct {
	IsJob          bool
	Confidence     float64
	Reason         string
	Features       Features
	ProcessingTime time.Duration
}

// Classifier holds the trained Model constructed once at process start and
// passed explicitly into stage workers, never a package-level singleton.
type Classifier struct {
	model  *Model
	logger *slog.Logger
	now    func() time.Time
}

// New constructs a Classifier bound to model. model must be non-nil and
// already loaded; callers load it via LoadModel at startup and treat a
// load failure as fatal, refusing to start the stage.
func New(model *Model, logger *slog.Logger) *Classifier {
	return &Classifier{
		model:  model,
		logger: logging.Default(logger).With("component", "classify"),
		now:    time.Now,
	}
}

// Classify applies the rule fast-paths first, falling back to the trained
// model. If the Classifier was constructed with a nil model (only possible
// when a caller deliberately bypasses New's contract, e.g. in a test
// harness exercising the "model not loaded" branch) it reports
// ReasonModelNotLoaded rather than panicking.
func (c *Classifier) Classify(text string) Result {
	start := c.now()
	normalized := Normalize(text)
	features := Extract(normalized)

	if result, ok := fastPath(features); ok {
		result.ProcessingTime = c.now().Sub(start)
		return result
	}

	if c.model == nil {
		return Result{IsJob: false, Confidence: 0, Reason: ReasonModelNotLoaded, Features: features, ProcessingTime: c.now().Sub(start)}
	}

	prob := c.model.Predict(normalized)
	isJob := prob >= c.model.Threshold
	return Result{
		IsJob:          isJob,
		Confidence:     prob,
		Reason:         modelReason(isJob, prob),
		Features:       features,
		ProcessingTime: c.now().Sub(start),
	}
}

func modelReason(isJob bool, prob float64) string {
	label := "not_job"
	if isJob {
		label = "job"
	}
	return fmt.Sprintf("model: %s p=%.2f", label, prob)
}

// fastPath implements the two rule-based shortcuts that decide without the
// model. It returns ok == false when neither fast-path predicate matches,
// so the caller falls through to the trained model.
func fastPath(f Features) (Result, bool) {
	if f.HasNonJobNoise && !f.HasJobIntent && !f.HasRoleTitle {
		return Result{IsJob: false, Confidence: 0.9, Reason: ReasonNonJobDominant, Features: f}, true
	}
	if f.HasJobIntent && f.HasRoleTitle && f.HasSkill && (f.HasApplyIntent || f.HasEmail || f.HasURL) {
		return Result{IsJob: true, Confidence: 0.95, Reason: ReasonStrongSignals, Features: f}, true
	}
	return Result{}, false
}
