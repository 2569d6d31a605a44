// Package scoring holds the pure answer-scoring formula. It performs no I/O
// and keeps no state, so every call is deterministic.
package scoring

import "math"

const (
	// BasePoints is awarded for any correct answer, regardless of speed.
	BasePoints = 1000
	// MaxSpeedBonus is the bonus for an instant correct answer; it decays
	// linearly to zero as the time limit is consumed.
	MaxSpeedBonus = 500
)

// LateCorrectScoresBase pins the policy for answers arriving after the time
// limit: the speed bonus clamps to zero but a correct answer still earns the
// base points.
const LateCorrectScoresBase = true

// Points computes the base and bonus components for one answer. timeLimitSec
// values below 1 are clamped to 1, and multipliers below 1 to 1.
func Points(correct bool, timeTakenMs, timeLimitSec, multiplier int) (base, bonus int) {
	if !correct {
		return 0, 0
	}
	if timeLimitSec < 1 {
		timeLimitSec = 1
	}
	if multiplier < 1 {
		multiplier = 1
	}

	limitMs := timeLimitSec * 1000
	if timeTakenMs > limitMs && !LateCorrectScoresBase {
		return 0, 0
	}
	remaining := limitMs - timeTakenMs
	if remaining < 0 {
		remaining = 0
	}
	ratio := float64(remaining) / float64(limitMs)
	if ratio > 1 {
		ratio = 1
	}

	base = BasePoints * multiplier
	bonus = int(math.Round(MaxSpeedBonus*ratio)) * multiplier
	return base, bonus
}

// Score is the total awarded for one answer.
func Score(correct bool, timeTakenMs, timeLimitSec, multiplier int) int {
	base, bonus := Points(correct, timeTakenMs, timeLimitSec, multiplier)
	return base + bonus
}
