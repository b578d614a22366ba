package validation

import (
	"errors"
	"math"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/gokatarajesh/wordrush/internal/round"
)

// Action decides what a suspicious pattern does to a submission.
type Action string

const (
	// ActionReject treats suspicious patterns as rejecting errors.
	ActionReject Action = "reject"
	// ActionFlag records suspicious patterns for review and lets the round through.
	ActionFlag Action = "flag"
)

// Policy tunes the validator thresholds.
type Policy struct {
	SuspiciousAction  Action
	ScoreTolerance    float64
	DurationTolerance time.Duration

	IdenticalMinItems   int     // identical timings flagged above this many items
	FastResponseMs      int     // responses under this are "fast"
	FastResponseShare   float64 // flagged when fast responses exceed this share
	PerfectMinQuestions int     // 100% accuracy flagged above this many questions
}

// DefaultPolicy returns the production thresholds.
func DefaultPolicy() Policy {
	return Policy{
		SuspiciousAction:    ActionReject,
		ScoreTolerance:      10,
		DurationTolerance:   5 * time.Second,
		IdenticalMinItems:   3,
		FastResponseMs:      500,
		FastResponseShare:   0.3,
		PerfectMinQuestions: 5,
	}
}

// Result is the verdict for one submission. Only ServerMetrics may be
// used downstream; ClientMetrics is diagnostic.
type Result struct {
	IsValid       bool           `json:"isValid"`
	Errors        []Error        `json:"errors"`
	Flags         []Error        `json:"flags,omitempty"`
	ServerMetrics *round.Metrics `json:"serverMetrics,omitempty"`
	ClientMetrics *round.Metrics `json:"clientMetrics,omitempty"`
}

// Validator runs structural, range, pattern and reconciliation checks.
type Validator struct {
	policy   Policy
	validate *validator.Validate
}

// New builds a validator. Zero policy fields fall back to defaults.
func New(policy Policy) *Validator {
	def := DefaultPolicy()
	if policy.SuspiciousAction != ActionFlag {
		policy.SuspiciousAction = ActionReject
	}
	if policy.ScoreTolerance <= 0 {
		policy.ScoreTolerance = def.ScoreTolerance
	}
	if policy.DurationTolerance <= 0 {
		policy.DurationTolerance = def.DurationTolerance
	}
	if policy.IdenticalMinItems <= 0 {
		policy.IdenticalMinItems = def.IdenticalMinItems
	}
	if policy.FastResponseMs <= 0 {
		policy.FastResponseMs = def.FastResponseMs
	}
	if policy.FastResponseShare <= 0 {
		policy.FastResponseShare = def.FastResponseShare
	}
	if policy.PerfectMinQuestions <= 0 {
		policy.PerfectMinQuestions = def.PerfectMinQuestions
	}
	return &Validator{
		policy:   policy,
		validate: validator.New(),
	}
}

// Policy returns the effective policy.
func (v *Validator) Policy() Policy {
	return v.policy
}

// Validate checks a submission and, when every check passes, recomputes
// its metrics server-side. All failures are accumulated.
func (v *Validator) Validate(sub round.Submission) Result {
	var errs []Error
	errs = append(errs, v.checkStructure(sub)...)
	errs = append(errs, v.checkRanges(sub)...)

	patterns := v.checkPatterns(sub)
	var flags []Error
	if v.policy.SuspiciousAction == ActionFlag {
		flags = patterns
	} else {
		errs = append(errs, patterns...)
	}

	res := Result{Flags: flags}
	if len(errs) == 0 {
		var server, client *round.Metrics
		errs, server, client = v.reconcile(sub)
		res.ServerMetrics = server
		res.ClientMetrics = client
	}
	if errs == nil {
		errs = []Error{}
	}
	res.Errors = errs
	res.IsValid = len(errs) == 0
	return res
}

func (v *Validator) checkStructure(sub round.Submission) []Error {
	var errs []Error

	if err := v.validate.Struct(sub); err != nil {
		var fieldErrs validator.ValidationErrors
		if !errors.As(err, &fieldErrs) {
			return []Error{{Code: CodeInvalidQuestionCount, Message: "Submission could not be checked.", Details: map[string]any{"error": err.Error()}}}
		}
		for _, fe := range fieldErrs {
			errs = append(errs, structuralError(fe.StructField(), sub))
		}
	}

	if len(sub.Items) != sub.TotalQuestions {
		errs = append(errs, Error{
			Code:    CodeInvalidQuestionCount,
			Message: "Items count does not match total questions.",
			Details: map[string]any{"itemsCount": len(sub.Items), "totalQuestions": sub.TotalQuestions},
		})
	}
	return errs
}

func structuralError(field string, sub round.Submission) Error {
	switch field {
	case "DurationSec":
		return Error{
			Code:    CodeInvalidDuration,
			Message: "Invalid duration. Must be 60, 75, or 90 seconds.",
			Details: map[string]any{"durationSec": sub.DurationSec},
		}
	case "TotalQuestions":
		return Error{
			Code:    CodeInvalidQuestionCount,
			Message: "Invalid question count. Must be between 1 and 50.",
			Details: map[string]any{"totalQuestions": sub.TotalQuestions},
		}
	default:
		return Error{
			Code:    CodeInvalidAccuracy,
			Message: "Invalid correct answers count.",
			Details: map[string]any{"correctAnswers": sub.CorrectAnswers, "totalQuestions": sub.TotalQuestions},
		}
	}
}

func (v *Validator) checkRanges(sub round.Submission) []Error {
	var errs []Error

	for i, item := range sub.Items {
		if item.ResponseTimeMs < 0 || item.ResponseTimeMs > round.MaxResponseTimeMs {
			errs = append(errs, Error{
				Code:    CodeInvalidResponseTime,
				Message: "Invalid response time.",
				Details: map[string]any{
					"itemIndex":      i,
					"responseTimeMs": item.ResponseTimeMs,
					"expectedRange":  []int{0, round.MaxResponseTimeMs},
				},
			})
		}
	}

	start, end, err := sub.ParseTimes()
	if err != nil {
		return append(errs, Error{
			Code:    CodeInvalidTimeRange,
			Message: "Invalid time format.",
			Details: map[string]any{"startTime": sub.StartTime, "endTime": sub.EndTime},
		})
	}
	if !end.After(start) {
		return append(errs, Error{
			Code:    CodeInvalidTimeRange,
			Message: "End time must be after start time.",
			Details: map[string]any{"startTime": sub.StartTime, "endTime": sub.EndTime},
		})
	}

	actual := end.Sub(start)
	expected := time.Duration(sub.DurationSec) * time.Second
	if diff := actual - expected; diff > v.policy.DurationTolerance || -diff > v.policy.DurationTolerance {
		errs = append(errs, Error{
			Code:    CodeInvalidTimeRange,
			Message: "Actual duration does not match expected duration.",
			Details: map[string]any{
				"actualDuration":   actual.Seconds(),
				"expectedDuration": sub.DurationSec,
				"tolerance":        v.policy.DurationTolerance.Seconds(),
			},
		})
	}
	return errs
}

func (v *Validator) checkPatterns(sub round.Submission) []Error {
	var errs []Error
	n := len(sub.Items)

	if n > v.policy.IdenticalMinItems && allIdentical(sub.Items) {
		errs = append(errs, Error{
			Code:    CodeSuspiciousPattern,
			Message: "All response times are identical. Possible bot activity.",
			Details: map[string]any{"responseTime": sub.Items[0].ResponseTimeMs, "count": n},
		})
	}

	fast := 0
	for _, item := range sub.Items {
		if item.ResponseTimeMs < v.policy.FastResponseMs {
			fast++
		}
	}
	if n > 0 && float64(fast) > float64(n)*v.policy.FastResponseShare {
		errs = append(errs, Error{
			Code:    CodeSuspiciousPattern,
			Message: "Too many responses are suspiciously fast.",
			Details: map[string]any{
				"fastResponses":  fast,
				"totalResponses": n,
				"threshold":      v.policy.FastResponseShare,
			},
		})
	}

	if sub.TotalQuestions > v.policy.PerfectMinQuestions && sub.CorrectAnswers == sub.TotalQuestions {
		errs = append(errs, Error{
			Code:    CodeSuspiciousPattern,
			Message: "Perfect accuracy with many questions. Requires manual review.",
			Details: map[string]any{"accuracy": 100, "totalQuestions": sub.TotalQuestions},
		})
	}
	return errs
}

func allIdentical(items []round.Item) bool {
	for _, item := range items[1:] {
		if item.ResponseTimeMs != items[0].ResponseTimeMs {
			return false
		}
	}
	return true
}

func (v *Validator) reconcile(sub round.Submission) ([]Error, *round.Metrics, *round.Metrics) {
	metrics, err := round.ComputeMetrics(sub)
	if err != nil {
		return []Error{{
			Code:    CodeClientServerMismatch,
			Message: "Failed to calculate server metrics.",
			Details: map[string]any{"error": err.Error()},
		}}, nil, nil
	}

	if sub.ClientCalculatedScore == nil {
		return nil, &metrics, nil
	}

	clientScore := *sub.ClientCalculatedScore
	client := metrics
	client.TotalScore = int(math.Round(clientScore))

	diff := math.Abs(clientScore - float64(metrics.TotalScore))
	if diff > v.policy.ScoreTolerance {
		return []Error{{
			Code:    CodeClientServerMismatch,
			Message: "Client and server score calculation mismatch.",
			Details: map[string]any{
				"clientScore": clientScore,
				"serverScore": metrics.TotalScore,
				"difference":  diff,
				"tolerance":   v.policy.ScoreTolerance,
			},
		}}, &metrics, &client
	}
	return nil, &metrics, &client
}
