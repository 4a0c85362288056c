// Package scoring is the pure scoring engine: no state, no I/O. Callers
// feed it the question snapshot and timing signals and merge the result
// into the session themselves.
package scoring

import (
	"math"
	"sort"
	"strings"
	"time"

	"quizblitz-service/internal/models"
)

const (
	// BasePoints is the per-question base before the difficulty
	// multiplier is applied.
	BasePoints = 1000
	// TimeBonusCap is the maximum bonus for an instant answer.
	TimeBonusCap = 200
	// StreakBonusPerStep and StreakBonusCap shape the progression
	// variant's consecutive-correct bonus.
	StreakBonusPerStep = 50
	StreakBonusCap     = 500
)

// Input bundles one submission against one question snapshot.
type Input struct {
	Question        models.SessionQuestion
	Answer          string
	ClientTimestamp time.Time
	ReceivedAt      time.Time
	TimerDuration   time.Duration
	// Streak is the player's consecutive-correct count before this
	// answer. It only contributes when WithStreak is set; the
	// multiplayer engine scores without it.
	Streak     int
	WithStreak bool
}

// Result is the scored outcome.
type Result struct {
	IsCorrect    bool
	Points       int
	ResponseTime time.Duration
}

// Score applies the canonical formula:
//
//	points = floor(base(difficulty) + timeBonus [+ streakBonus])
//
// where base scales BasePoints by the difficulty multiplier and timeBonus
// decays linearly from TimeBonusCap to zero over the response window.
// Incorrect answers always score zero.
func Score(in Input) Result {
	latency := in.ReceivedAt.Sub(in.ClientTimestamp)
	if latency < 0 {
		// Client clock ahead of the server; clamp instead of handing
		// out a negative-latency bonus.
		latency = 0
	}

	result := Result{
		IsCorrect:    AnswersEqual(in.Answer, in.Question.CorrectAnswer),
		ResponseTime: latency,
	}
	if !result.IsCorrect {
		return result
	}

	base := float64(BasePoints) * models.DifficultyMultiplier(in.Question.Difficulty)

	window := in.TimerDuration
	if window <= 0 {
		window = 30 * time.Second
	}
	remaining := window - latency
	if remaining < 0 {
		remaining = 0
	}
	timeBonus := float64(remaining) / float64(window) * TimeBonusCap

	streakBonus := 0.0
	if in.WithStreak && in.Streak > 0 {
		streakBonus = math.Min(float64(in.Streak*StreakBonusPerStep), StreakBonusCap)
	}

	result.Points = int(math.Floor(base + timeBonus + streakBonus))
	return result
}

// AnswersEqual compares answers as order-independent sets of option
// labels, ignoring case and whitespace, so "b, d" matches "DB".
func AnswersEqual(submitted, correct string) bool {
	return normalizeAnswer(submitted) == normalizeAnswer(correct)
}

func normalizeAnswer(answer string) string {
	labels := make([]string, 0, 4)
	for _, part := range strings.FieldsFunc(answer, func(r rune) bool {
		return r == ',' || r == ';' || r == ' ' || r == '\t'
	}) {
		for _, r := range part {
			labels = append(labels, strings.ToUpper(string(r)))
		}
	}
	sort.Strings(labels)
	return strings.Join(labels, "")
}
