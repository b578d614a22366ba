package scoring

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/gokatarajesh/wordrush/internal/round"
)

func TestNormalize(t *testing.T) {
	e := NewEngine(DefaultScoringConfig())

	assert.Equal(t, "hello world", e.Normalize("  Hello,   World!  "))
	assert.Equal(t, "사과 apple", e.Normalize("사과 (Apple)"))
	assert.Equal(t, "snake_case 42", e.Normalize("snake_case - 42"))
	assert.Equal(t, "", e.Normalize(" ?!. "))
}

func TestJudge(t *testing.T) {
	e := NewEngine(DefaultScoringConfig())

	cases := []struct {
		name      string
		answer    string
		reference string
		want      bool
	}{
		{"exact", "사과", "사과", true},
		{"case and punctuation", "APPLE!", "apple", true},
		{"no whitespace variant", "아이스크림", "아이스 크림", true},
		{"native script only", "사과", "사과 apple", true},
		{"latin only", "apple", "사과 apple", true},
		{"wrong", "배", "사과", false},
		{"empty answer", "   ", "사과", false},
		{"punctuation only answer", "...", "사과", false},
		{"partial", "사", "사과", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, e.Judge(tc.answer, tc.reference))
		})
	}
}

func TestJudge_EmptyReferenceNeverMatches(t *testing.T) {
	e := NewEngine(DefaultScoringConfig())
	assert.False(t, e.Judge("", ""))
	assert.False(t, e.Judge("!!", "??"))
}

func TestCalculateScore(t *testing.T) {
	e := NewEngine(DefaultScoringConfig())

	assert.Equal(t, 0, e.CalculateScore(false, time.Second, 5, time.Minute))
	// time bonus capped at 50% of base
	assert.Equal(t, 150, e.CalculateScore(true, 2*time.Second, 0, 0))
	// 100 + 30 combo + 50 time + 5 remaining
	assert.Equal(t, 185, e.CalculateScore(true, 2*time.Second, 3, 30*time.Second))
	// linear decay below the cap
	assert.Equal(t, 140, e.CalculateScore(true, 8*time.Second, 0, 0))
	// slower than the ceiling earns no time bonus
	assert.Equal(t, 100, e.CalculateScore(true, 12*time.Second, 0, 0))
	assert.Equal(t, 115, e.CalculateScore(true, 30*time.Second, 0, 90*time.Second))
}

func TestCalculateScore_MinimumOnePoint(t *testing.T) {
	cfg := DefaultScoringConfig()
	cfg.BaseScore = 1
	cfg.ComboMultiplier = -5
	e := NewEngine(cfg)

	assert.Equal(t, 1, e.CalculateScore(true, 20*time.Second, 3, 0))
}

func TestProcessAnswer_UpdatesComboAndStats(t *testing.T) {
	e := NewEngine(DefaultScoringConfig())
	stats := GameStats{}

	res, stats := e.ProcessAnswer("apple", "apple", 2*time.Second, 0, stats)
	assert.True(t, res.IsCorrect)
	assert.Equal(t, 1, res.Combo)
	assert.Equal(t, 150, res.Score)

	res, stats = e.ProcessAnswer("apple", "apple", 2*time.Second, 0, stats)
	assert.Equal(t, 2, res.Combo)
	assert.Equal(t, 160, res.Score)

	res, stats = e.ProcessAnswer("pear", "apple", 4*time.Second, 0, stats)
	assert.False(t, res.IsCorrect)
	assert.Equal(t, 0, res.Score)
	assert.Equal(t, 0, res.Combo)

	assert.Equal(t, 3, stats.TotalQuestions)
	assert.Equal(t, 2, stats.CorrectAnswers)
	assert.Equal(t, 310, stats.TotalScore)
	assert.Equal(t, 2, stats.MaxCombo)
	assert.Equal(t, 0, stats.CurrentCombo)
	assert.InDelta(t, 66.67, stats.Accuracy, 0.01)
	assert.InDelta(t, res.Accuracy, stats.Accuracy, 0.0001)
}

func TestGameStats_AverageOverAllAnswers(t *testing.T) {
	var s GameStats
	s = s.Record(true, 2000*time.Millisecond, 100)
	s = s.Record(true, 1500*time.Millisecond, 100)
	s = s.Record(false, 3000*time.Millisecond, 0)
	s = s.Record(true, 1800*time.Millisecond, 100)

	assert.Equal(t, 75.0, s.Accuracy)
	assert.Equal(t, 2075.0, s.AverageResponseTimeMs)
	assert.Equal(t, int64(8300), s.TotalResponseTimeMs)
	assert.Equal(t, 300, s.TotalScore)
	assert.Equal(t, 2, s.MaxCombo)
	assert.Equal(t, 1, s.CurrentCombo)
}

func TestGrade(t *testing.T) {
	assert.Equal(t, round.GradeS, Grade(100))
	assert.Equal(t, round.GradeA, Grade(90))
	assert.Equal(t, round.GradeB, Grade(85))
	assert.Equal(t, round.GradeC, Grade(70))
	assert.Equal(t, round.GradeD, Grade(60))
	assert.Equal(t, round.GradeF, Grade(59.9))
}

func TestPerformanceRating(t *testing.T) {
	assert.Equal(t, 0.0, PerformanceRating(GameStats{}))

	stats := GameStats{TotalQuestions: 10, Accuracy: 100, MaxCombo: 10, AverageResponseTimeMs: 15000}
	// 40 accuracy + 15 speed + 30 combo
	assert.InDelta(t, 85.0, PerformanceRating(stats), 0.0001)
}
