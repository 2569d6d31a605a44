package scoring

import "testing"

func TestIncorrectAlwaysScoresZero(t *testing.T) {
	for _, taken := range []int{0, 5000, 10000, 999999} {
		if got := Score(false, taken, 10, 3); got != 0 {
			t.Fatalf("incorrect answer at %dms scored %d, want 0", taken, got)
		}
	}
}

func TestInstantAnswerGetsFullBonus(t *testing.T) {
	if got := Score(true, 0, 10, 1); got != 1500 {
		t.Fatalf("instant answer scored %d, want 1500", got)
	}
}

func TestAnswerAtLimitGetsBaseOnly(t *testing.T) {
	if got := Score(true, 10000, 10, 1); got != 1000 {
		t.Fatalf("at-limit answer scored %d, want 1000", got)
	}
}

func TestMultiplierScalesTotal(t *testing.T) {
	if got := Score(true, 5000, 10, 2); got != 2500 {
		t.Fatalf("halfway double-points answer scored %d, want 2500", got)
	}
}

func TestBonusRoundsToNearest(t *testing.T) {
	// 25s of a 30s limit remaining: bonus = round(500 * 25/30) = 417.
	base, bonus := Points(true, 5000, 30, 1)
	if base != 1000 || bonus != 417 {
		t.Fatalf("got base=%d bonus=%d, want 1000/417", base, bonus)
	}
}

func TestLateCorrectAnswerKeepsBasePoints(t *testing.T) {
	if !LateCorrectScoresBase {
		t.Skip("policy disabled")
	}
	base, bonus := Points(true, 45000, 30, 1)
	if bonus != 0 {
		t.Fatalf("late answer got speed bonus %d, want 0", bonus)
	}
	if base != 1000 {
		t.Fatalf("late correct answer got base %d, want 1000", base)
	}
}

func TestZeroTimeLimitIsClampedToOneSecond(t *testing.T) {
	if got := Score(true, 0, 0, 1); got != 1500 {
		t.Fatalf("clamped-limit answer scored %d, want 1500", got)
	}
	if got := Score(true, 1000, -5, 1); got != 1000 {
		t.Fatalf("clamped-limit at-limit answer scored %d, want 1000", got)
	}
}
