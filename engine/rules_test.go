package engine_test

import (
	"testing"
	"time"

	"github.com/messkit/leave-engine/engine"
)

func ruleInput(meals, days int, start engine.Date, now time.Time) engine.RuleInput {
	return engine.RuleInput{
		RequestedMeals: meals,
		OverlapDays:    days,
		MealsPerDay:    3,
		LeaveStart:     start,
		Now:            now,
	}
}

func TestEvaluateRules_NoPolicyPassesThrough(t *testing.T) {
	res := engine.EvaluateRules(engine.LeaveRules{}, ruleInput(9, 3, date(10), date(1).Time()))

	if res.Blocked {
		t.Error("empty policy must not block")
	}
	if res.EligibleMeals != 9 || res.EligibleDays != 3 {
		t.Errorf("expected 9 meals / 3 days, got %d / %d", res.EligibleMeals, res.EligibleDays)
	}
}

func TestEvaluateRules_NoticePeriodBlocks(t *testing.T) {
	// GIVEN: 24h notice, with the leave starting in 12h
	rules := engine.LeaveRules{NoticeHours: 24}
	now := date(10).Time().Add(-12 * time.Hour)

	res := engine.EvaluateRules(rules, ruleInput(9, 3, date(10), now))

	// THEN: blocked, zero benefit, reason recorded
	if !res.Blocked {
		t.Fatal("expected notice failure to block")
	}
	if res.EligibleMeals != 0 || res.EligibleDays != 0 {
		t.Errorf("blocked plan must zero the outcome, got %d / %d", res.EligibleMeals, res.EligibleDays)
	}
	if len(res.Reasons) != 1 || res.Reasons[0] != engine.ReasonFailsNotice {
		t.Errorf("expected notice reason, got %v", res.Reasons)
	}
}

func TestEvaluateRules_NoticePeriodSatisfied(t *testing.T) {
	rules := engine.LeaveRules{NoticeHours: 24}
	now := date(10).Time().Add(-48 * time.Hour)

	res := engine.EvaluateRules(rules, ruleInput(9, 3, date(10), now))

	if res.Blocked {
		t.Errorf("48h ahead of a 24h notice must pass, reasons: %v", res.Reasons)
	}
}

func TestEvaluateRules_TwoHourFlagFloorsNotice(t *testing.T) {
	// GIVEN: legacy two-hour flag, no explicit hours
	rules := engine.LeaveRules{RequireTwoHourNotice: true}
	now := date(10).Time().Add(-1 * time.Hour)

	res := engine.EvaluateRules(rules, ruleInput(3, 1, date(10), now))

	if !res.Blocked {
		t.Error("one hour of notice must fail the two-hour floor")
	}
}

func TestEvaluateRules_MinConsecutiveDaysBlocks(t *testing.T) {
	rules := engine.LeaveRules{MinConsecutiveDays: 3}

	res := engine.EvaluateRules(rules, ruleInput(6, 2, date(10), date(1).Time()))

	if !res.Blocked {
		t.Fatal("2 days against a 3-day minimum must block")
	}
	if len(res.Reasons) != 1 || res.Reasons[0] != engine.ReasonBelowMinDays {
		t.Errorf("expected min-days reason, got %v", res.Reasons)
	}
}

func TestEvaluateRules_MealCapReducesWithoutBlocking(t *testing.T) {
	rules := engine.LeaveRules{
		LeaveLimitsEnabled:   true,
		MaxLeaveMealsEnabled: true,
		MaxLeaveMeals:        5,
	}

	res := engine.EvaluateRules(rules, ruleInput(9, 3, date(10), date(1).Time()))

	if res.Blocked {
		t.Error("the cap must reduce, never block")
	}
	if res.EligibleMeals != 5 {
		t.Errorf("expected 5 capped meals, got %d", res.EligibleMeals)
	}
	// 5 meals at 3 per day round up to 2 days
	if res.EligibleDays != 2 {
		t.Errorf("expected 2 eligible days after capping, got %d", res.EligibleDays)
	}
	if len(res.Reasons) != 1 {
		t.Errorf("expected one cap reason, got %v", res.Reasons)
	}
}

func TestEvaluateRules_CapIsIdempotent(t *testing.T) {
	// Feeding an already-capped count back through the rules changes nothing.
	rules := engine.LeaveRules{
		LeaveLimitsEnabled:   true,
		MaxLeaveMealsEnabled: true,
		MaxLeaveMeals:        5,
	}

	first := engine.EvaluateRules(rules, ruleInput(9, 3, date(10), date(1).Time()))
	second := engine.EvaluateRules(rules, ruleInput(first.EligibleMeals, first.EligibleDays, date(10), date(1).Time()))

	if second.EligibleMeals != first.EligibleMeals {
		t.Errorf("re-capping changed meals: %d -> %d", first.EligibleMeals, second.EligibleMeals)
	}
	if len(second.Reasons) != 0 {
		t.Errorf("a count at the cap must not record a cap reason, got %v", second.Reasons)
	}
}

func TestEvaluateRules_CapDisabledWithoutMasterSwitch(t *testing.T) {
	// MaxLeaveMealsEnabled without LeaveLimitsEnabled is inert.
	rules := engine.LeaveRules{MaxLeaveMealsEnabled: true, MaxLeaveMeals: 5}

	res := engine.EvaluateRules(rules, ruleInput(9, 3, date(10), date(1).Time()))

	if res.EligibleMeals != 9 {
		t.Errorf("cap must be inert without the limits switch, got %d", res.EligibleMeals)
	}
}

func TestCeilDiv(t *testing.T) {
	cases := []struct{ a, b, want int }{
		{9, 3, 3},
		{10, 3, 4},
		{1, 3, 1},
		{0, 3, 0},
		{5, 0, 0},
	}
	for _, c := range cases {
		if got := engine.CeilDiv(c.a, c.b); got != c.want {
			t.Errorf("CeilDiv(%d, %d) = %d, want %d", c.a, c.b, got, c.want)
		}
	}
}
