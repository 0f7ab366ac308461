package reward

import (
	"testing"
	"time"

	"github.com/augustdua/6degrees-sub006/internal/models"

	"github.com/shopspring/decimal"
)

var testPolicy = models.RewardPolicy{
	GraceDuration:     24 * time.Hour,
	FreezeDuration:    48 * time.Hour,
	DecayRatePerHour:  decimal.NewFromFloat(0.01),
	UnlockBaseCredits: 3,
}

func testParticipant(joinedAt time.Time) models.ChainParticipant {
	return models.ChainParticipant{
		Id:          "p1",
		ChainId:     "c1",
		UserId:      "u1",
		JoinedAt:    joinedAt,
		GraceEndsAt: joinedAt.Add(testPolicy.GraceDuration),
	}
}

func TestCurrentReward_GracePeriod(t *testing.T) {
	calc := NewCalculator(testPolicy)
	joined := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	p := testParticipant(joined)
	base := decimal.NewFromInt(100)

	for _, offset := range []time.Duration{0, time.Hour, 23 * time.Hour, 24*time.Hour - time.Second} {
		got := calc.CurrentReward(p, base, joined.Add(offset))
		if !got.Equal(base) {
			t.Errorf("at join+%s expected full reward %s, got %s", offset, base, got)
		}
	}
}

func TestCurrentReward_SpecScenario(t *testing.T) {
	// base 100, grace 24h, rate 0.01/h: the documented reference walk.
	calc := NewCalculator(testPolicy)
	joined := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	p := testParticipant(joined)
	base := decimal.NewFromInt(100)

	at24h := calc.CurrentReward(p, base, joined.Add(24*time.Hour))
	if !at24h.Equal(decimal.NewFromInt(100)) {
		t.Errorf("at +24h expected 100, got %s", at24h)
	}

	at30h := calc.CurrentReward(p, base, joined.Add(30*time.Hour))
	if !at30h.Equal(decimal.NewFromFloat(99.94)) {
		t.Errorf("at +30h expected 99.94, got %s", at30h)
	}

	// Referral at +30h freezes the baseline at 99.94 until +78h.
	freeze := calc.ApplyReferral(p, base, joined.Add(30*time.Hour))
	if !freeze.FrozenBaselineReward.Equal(decimal.NewFromFloat(99.94)) {
		t.Errorf("expected frozen baseline 99.94, got %s", freeze.FrozenBaselineReward)
	}
	if !freeze.FreezeEndsAt.Equal(joined.Add(78 * time.Hour)) {
		t.Errorf("expected freeze end at +78h, got %s", freeze.FreezeEndsAt)
	}

	p.FrozenBaselineReward = &freeze.FrozenBaselineReward
	p.FreezeEndsAt = &freeze.FreezeEndsAt
	childAt := freeze.ChildAddedAt
	p.ChildAddedAt = &childAt

	at50h := calc.CurrentReward(p, base, joined.Add(50*time.Hour))
	if !at50h.Equal(decimal.NewFromFloat(99.94)) {
		t.Errorf("at +50h (frozen) expected 99.94, got %s", at50h)
	}

	at80h := calc.CurrentReward(p, base, joined.Add(80*time.Hour))
	if !at80h.Equal(decimal.NewFromFloat(99.92)) {
		t.Errorf("at +80h (2h past freeze) expected 99.92, got %s", at80h)
	}
}

func TestCurrentReward_BoundsAlways(t *testing.T) {
	calc := NewCalculator(testPolicy)
	joined := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	p := testParticipant(joined)
	base := decimal.NewFromFloat(0.5)

	// Sample a wide spread of instants, including before join and far
	// past total decay.
	offsets := []time.Duration{
		-48 * time.Hour, 0, 12 * time.Hour, 24 * time.Hour,
		72 * time.Hour, 1000 * time.Hour, 100000 * time.Hour,
	}
	for _, offset := range offsets {
		got := calc.CurrentReward(p, base, joined.Add(offset))
		if got.IsNegative() || got.GreaterThan(base) {
			t.Errorf("at join%+s reward %s outside [0, %s]", offset, got, base)
		}
	}
}

func TestCurrentReward_DecayToZeroStaysZero(t *testing.T) {
	calc := NewCalculator(testPolicy)
	joined := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	p := testParticipant(joined)
	base := decimal.NewFromFloat(0.05) // fully decayed after 5h of decay

	got := calc.CurrentReward(p, base, joined.Add(24*time.Hour+10*time.Hour))
	if !got.IsZero() {
		t.Errorf("expected reward fully decayed to 0, got %s", got)
	}
}

func TestCurrentReward_NonIncreasingWhileDecaying(t *testing.T) {
	calc := NewCalculator(testPolicy)
	joined := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	p := testParticipant(joined)
	base := decimal.NewFromInt(100)

	prev := calc.CurrentReward(p, base, joined.Add(24*time.Hour))
	for h := 25; h <= 120; h += 5 {
		cur := calc.CurrentReward(p, base, joined.Add(time.Duration(h)*time.Hour))
		if cur.GreaterThan(prev) {
			t.Fatalf("reward increased from %s to %s at +%dh", prev, cur, h)
		}
		prev = cur
	}
}

func TestCurrentReward_FrozenIsConstant(t *testing.T) {
	calc := NewCalculator(testPolicy)
	joined := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	p := testParticipant(joined)
	base := decimal.NewFromInt(100)

	freeze := calc.ApplyReferral(p, base, joined.Add(40*time.Hour))
	p.FrozenBaselineReward = &freeze.FrozenBaselineReward
	p.FreezeEndsAt = &freeze.FreezeEndsAt

	for _, offset := range []time.Duration{41 * time.Hour, 60 * time.Hour, 88*time.Hour - time.Second} {
		got := calc.CurrentReward(p, base, joined.Add(offset))
		if !got.Equal(freeze.FrozenBaselineReward) {
			t.Errorf("at join+%s frozen reward %s != baseline %s", offset, got, freeze.FrozenBaselineReward)
		}
	}
}

func TestCurrentReward_LockedIsTimeInvariant(t *testing.T) {
	calc := NewCalculator(testPolicy)
	joined := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	p := testParticipant(joined)
	final := decimal.NewFromFloat(42.42)
	p.FinalReward = &final
	base := decimal.NewFromInt(100)

	// Including instants before the join itself: post-completion reads
	// must be identical for any clock.
	for _, at := range []time.Time{
		joined.Add(-100 * time.Hour),
		joined,
		joined.Add(500 * time.Hour),
	} {
		got := calc.CurrentReward(p, base, at)
		if !got.Equal(final) {
			t.Errorf("locked reward at %s = %s, want %s", at, got, final)
		}
	}
}

func TestCurrentReward_MissingBaselineFallsBackToBase(t *testing.T) {
	calc := NewCalculator(testPolicy)
	joined := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	p := testParticipant(joined)
	end := joined.Add(50 * time.Hour)
	p.FreezeEndsAt = &end // anomaly: no baseline stored

	base := decimal.NewFromInt(100)
	got := calc.CurrentReward(p, base, joined.Add(40*time.Hour))
	if !got.Equal(base) {
		t.Errorf("expected fallback to base %s, got %s", base, got)
	}
}

func TestIsFrozenAndRemainingFreeze(t *testing.T) {
	calc := NewCalculator(testPolicy)
	joined := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	p := testParticipant(joined)

	if calc.IsFrozen(p, joined.Add(time.Hour)) {
		t.Error("never-frozen participant reported frozen")
	}
	if calc.RemainingFreeze(p, joined.Add(time.Hour)) != 0 {
		t.Error("expected zero remaining freeze for never-frozen participant")
	}

	freeze := calc.ApplyReferral(p, decimal.NewFromInt(100), joined.Add(30*time.Hour))
	p.FrozenBaselineReward = &freeze.FrozenBaselineReward
	p.FreezeEndsAt = &freeze.FreezeEndsAt

	now := joined.Add(48 * time.Hour)
	if !calc.IsFrozen(p, now) {
		t.Error("expected frozen at +48h")
	}
	if got, want := calc.RemainingFreeze(p, now), 30*time.Hour; got != want {
		t.Errorf("remaining freeze = %s, want %s", got, want)
	}
	if calc.IsFrozen(p, joined.Add(78*time.Hour)) {
		t.Error("freeze must end exactly at its boundary")
	}
}

func TestHoursOfDecay(t *testing.T) {
	calc := NewCalculator(testPolicy)
	joined := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	p := testParticipant(joined)

	if !calc.HoursOfDecay(p, joined.Add(12*time.Hour)).IsZero() {
		t.Error("expected zero decay hours during grace")
	}
	if got := calc.HoursOfDecay(p, joined.Add(30*time.Hour)); !got.Equal(decimal.NewFromInt(6)) {
		t.Errorf("expected 6 decay hours at +30h, got %s", got)
	}

	freeze := calc.ApplyReferral(p, decimal.NewFromInt(100), joined.Add(30*time.Hour))
	p.FrozenBaselineReward = &freeze.FrozenBaselineReward
	p.FreezeEndsAt = &freeze.FreezeEndsAt

	if !calc.HoursOfDecay(p, joined.Add(50*time.Hour)).IsZero() {
		t.Error("expected zero decay hours while frozen")
	}
	if got := calc.HoursOfDecay(p, joined.Add(80*time.Hour)); !got.Equal(decimal.NewFromInt(2)) {
		t.Errorf("expected 2 decay hours at +80h, got %s", got)
	}
}
