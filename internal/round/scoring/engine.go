package scoring

import (
	"math"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

// ScoringConfig holds configurable scoring constants (defaults match requirements).
type ScoringConfig struct {
	BaseScore           int           // default: 100
	ComboMultiplier     float64       // default: 0.1 (10% of base per combo step)
	TimeBonusMultiplier float64       // default: 2
	MaxTimeBonusPct     float64       // default: 50 (% of base)
	TimeBonusCeiling    time.Duration // default: 10s, no time bonus at or beyond
	RemainingBonusPct   float64       // default: 10 (% of base per minute left)
	// NativeScript is kept by normalization alongside ASCII letters and digits.
	NativeScript *unicode.RangeTable // default: Hangul
}

// DefaultScoringConfig returns production defaults.
func DefaultScoringConfig() ScoringConfig {
	return ScoringConfig{
		BaseScore:           100,
		ComboMultiplier:     0.1,
		TimeBonusMultiplier: 2,
		MaxTimeBonusPct:     50,
		TimeBonusCeiling:    10 * time.Second,
		RemainingBonusPct:   10,
		NativeScript:        unicode.Hangul,
	}
}

// Engine judges free-text answers and prices correct ones.
type Engine struct {
	config ScoringConfig
}

// NewEngine creates a scoring engine with the provided config.
// Zero fields fall back to the defaults.
func NewEngine(config ScoringConfig) *Engine {
	def := DefaultScoringConfig()
	if config.BaseScore <= 0 {
		config.BaseScore = def.BaseScore
	}
	if config.TimeBonusCeiling <= 0 {
		config.TimeBonusCeiling = def.TimeBonusCeiling
	}
	if config.NativeScript == nil {
		config.NativeScript = def.NativeScript
	}
	return &Engine{config: config}
}

// Config returns the effective configuration.
func (e *Engine) Config() ScoringConfig {
	return e.config
}

// Normalize lowercases, strips punctuation and collapses whitespace.
// ASCII letters, digits, underscore and the native script survive.
func (e *Engine) Normalize(s string) string {
	s = norm.NFC.String(strings.TrimSpace(s))
	s = cases.Lower(language.Und).String(s)
	s = strings.Map(func(r rune) rune {
		switch {
		case unicode.IsSpace(r):
			return ' '
		case r < unicode.MaxASCII && (r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)):
			return r
		case unicode.Is(e.config.NativeScript, r):
			return r
		}
		return -1
	}, s)
	return collapse(s)
}

// Judge reports whether answer matches reference after normalization.
// Besides the exact form, the reference is accepted without whitespace,
// with the native script removed, and with Latin letters removed.
// An empty normalized answer never matches.
func (e *Engine) Judge(answer, reference string) bool {
	got := e.Normalize(answer)
	if got == "" {
		return false
	}
	want := e.Normalize(reference)
	if got == want {
		return true
	}
	for _, v := range e.variants(want) {
		if v != "" && v == got {
			return true
		}
	}
	return false
}

func (e *Engine) variants(want string) []string {
	native := func(r rune) bool { return unicode.Is(e.config.NativeScript, r) }
	latin := func(r rune) bool { return r < unicode.MaxASCII && unicode.IsLetter(r) }
	return []string{
		strings.ReplaceAll(want, " ", ""),
		collapse(strings.Map(dropIf(native), want)),
		collapse(strings.Map(dropIf(latin), want)),
	}
}

// CalculateScore computes points for a single answer.
// Formula: base + combo_bonus + time_bonus + remaining_bonus
//   - combo_bonus: floor(base * comboMultiplier * currentCombo)
//   - time_bonus: decays linearly to 0 at the ceiling, capped at maxTimeBonusPct of base
//   - remaining_bonus: remainingBonusPct of base per minute of round time left
//
// Correct answers always earn at least 1 point.
func (e *Engine) CalculateScore(isCorrect bool, responseTime time.Duration, currentCombo int, remaining time.Duration) int {
	if !isCorrect {
		return 0
	}

	base := float64(e.config.BaseScore)
	score := e.config.BaseScore

	if currentCombo > 0 {
		score += int(math.Floor(base * e.config.ComboMultiplier * float64(currentCombo)))
	}

	left := e.config.TimeBonusCeiling - responseTime
	timeBonus := math.Floor(base * e.config.TimeBonusMultiplier * float64(left) / float64(e.config.TimeBonusCeiling))
	timeBonus = math.Min(timeBonus, math.Floor(base*e.config.MaxTimeBonusPct/100))
	if timeBonus > 0 {
		score += int(timeBonus)
	}

	if remaining > 0 {
		score += int(math.Floor(base * e.config.RemainingBonusPct / 100 * remaining.Minutes()))
	}

	if score < 1 {
		return 1
	}
	return score
}

// AnswerResult is the outcome of one judged answer.
type AnswerResult struct {
	IsCorrect    bool          `json:"isCorrect"`
	Score        int           `json:"score"`
	Combo        int           `json:"combo"`
	ResponseTime time.Duration `json:"responseTime"`
	Accuracy     float64       `json:"accuracy"`
}

// ProcessAnswer judges, prices and folds one answer into stats.
func (e *Engine) ProcessAnswer(answer, reference string, responseTime, remaining time.Duration, stats GameStats) (AnswerResult, GameStats) {
	correct := e.Judge(answer, reference)
	score := e.CalculateScore(correct, responseTime, stats.CurrentCombo, remaining)
	next := stats.Record(correct, responseTime, score)

	return AnswerResult{
		IsCorrect:    correct,
		Score:        score,
		Combo:        next.CurrentCombo,
		ResponseTime: responseTime,
		Accuracy:     next.Accuracy,
	}, next
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func dropIf(match func(rune) bool) func(rune) rune {
	return func(r rune) rune {
		if match(r) {
			return -1
		}
		return r
	}
}
