// Package gate decides which AI-suggested answers are confident enough to
// apply without asking the user.
package gate

import (
	"log/slog"
	"math"

	"github.com/jywlabs/prdforge/internal/qa"
)

// DefaultAutoAnswerThreshold is the minimum confidence for auto-applying an answer.
const DefaultAutoAnswerThreshold = 0.85

// Config controls the gate.
type Config struct {
	AutoAnswerThreshold  float64 `yaml:"autoAnswerThreshold"`
	SkipIfHighConfidence bool    `yaml:"skipIfHighConfidence"`
}

// DefaultConfig returns the default gate configuration.
func DefaultConfig() Config {
	return Config{
		AutoAnswerThreshold:  DefaultAutoAnswerThreshold,
		SkipIfHighConfidence: true,
	}
}

// Result is the partition of a question batch.
type Result struct {
	AutoApplied []qa.Question
	NeedsPrompt []qa.Question
	// Answers maps question id to the inferred value of each auto-applied question.
	Answers map[string]qa.Value
}

// Partition splits questions into auto-applied and needs-prompt sets.
// A question is auto-applied when its confidence reaches the threshold, the
// config allows skipping, and an inferred answer is present. Anything else,
// including malformed questions, needs a prompt. Order is preserved.
func Partition(questions []qa.Question, cfg Config, logger *slog.Logger) Result {
	res := Result{Answers: make(map[string]qa.Value)}

	for _, q := range questions {
		if !autoApplicable(q, cfg) {
			res.NeedsPrompt = append(res.NeedsPrompt, q)
			continue
		}
		res.AutoApplied = append(res.AutoApplied, q)
		res.Answers[q.ID] = *q.InferredAnswer

		if logger != nil {
			logger.Info("auto-applied answer",
				"question_id", q.ID,
				"category", q.Category,
				"confidence", q.Confidence,
				"threshold", cfg.AutoAnswerThreshold,
				"source", q.InferenceSource,
				"answer", q.InferredAnswer.String(),
			)
		}
	}

	return res
}

func autoApplicable(q qa.Question, cfg Config) bool {
	if !cfg.SkipIfHighConfidence {
		return false
	}
	if q.ID == "" || q.InferredAnswer == nil || q.InferredAnswer.IsZero() {
		return false
	}
	if math.IsNaN(q.Confidence) || q.Confidence < 0 || q.Confidence > 1 {
		return false
	}
	return q.Confidence >= cfg.AutoAnswerThreshold
}
