package validation

import (
	"fmt"
	"strings"
)

// Code classifies a rejected check.
type Code string

const (
	CodeInvalidDuration      Code = "INVALID_DURATION"
	CodeInvalidQuestionCount Code = "INVALID_QUESTION_COUNT"
	CodeInvalidAccuracy      Code = "INVALID_ACCURACY"
	CodeInvalidResponseTime  Code = "INVALID_RESPONSE_TIME"
	CodeInvalidTimeRange     Code = "INVALID_TIME_RANGE"
	CodeSuspiciousPattern    Code = "SUSPICIOUS_PATTERN"
	CodeClientServerMismatch Code = "CLIENT_SERVER_MISMATCH"
)

// Error is one failed check with machine-readable context.
type Error struct {
	Code    Code           `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

func (e Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Summary joins error messages into one client-facing sentence.
func Summary(errs []Error) string {
	if len(errs) == 0 {
		return "validation passed"
	}
	msgs := make([]string, 0, len(errs))
	seen := make(map[string]struct{}, len(errs))
	for _, e := range errs {
		if _, ok := seen[e.Message]; ok {
			continue
		}
		seen[e.Message] = struct{}{}
		msgs = append(msgs, e.Message)
	}
	return "Round validation failed: " + strings.Join(msgs, " ")
}

// Codes lists the codes of errs in order, without duplicates.
func Codes(errs []Error) []Code {
	out := make([]Code, 0, len(errs))
	seen := make(map[Code]struct{}, len(errs))
	for _, e := range errs {
		if _, ok := seen[e.Code]; ok {
			continue
		}
		seen[e.Code] = struct{}{}
		out = append(out, e.Code)
	}
	return out
}
