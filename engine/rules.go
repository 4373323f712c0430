/*
rules.go - Plan leave-policy evaluation

PURPOSE:
  Applies a meal plan's leave policy to the raw missed-meal count of one
  plan's overlap: notice period, minimum consecutive days, and the per-leave
  meal cap.

BLOCKING vs CAPPING:
  Notice-period and minimum-consecutive-days failures are BLOCKING: they
  zero both the extension and the deduction outcome for that plan. They do
  NOT reject the overall request; the plan keeps a human-readable reason and
  the request survives for manual review. The meal cap is NOT blocking: it
  reduces eligibility and appends a reason.

  Capping is idempotent: applying the cap to an already-capped count leaves
  it unchanged.
*/
package engine

import (
	"fmt"
	"time"
)

// LeaveRules is a meal plan's leave policy. Read-only input to the engine.
type LeaveRules struct {
	NoticeHours          int  `json:"notice_hours"`
	RequireTwoHourNotice bool `json:"require_two_hour_notice"`
	MinConsecutiveDays   int  `json:"min_consecutive_days"`
	LeaveLimitsEnabled   bool `json:"leave_limits_enabled"`
	MaxLeaveMealsEnabled bool `json:"max_leave_meals_enabled"`
	MaxLeaveMeals        int  `json:"max_leave_meals"`
	ExtendSubscription   bool `json:"extend_subscription"`
	AutoApproval         bool `json:"auto_approval"`
}

// Reason strings recorded on plan breakdowns.
const (
	ReasonFailsNotice    = "Fails notice period"
	ReasonBelowMinDays   = "Below minimum consecutive days"
	reasonCappedTemplate = "Capped at maximum %d leave meals"
)

// RuleInput carries the facts a policy is evaluated against.
type RuleInput struct {
	RequestedMeals int  // missed meals inside the overlap, pre-policy
	OverlapDays    int
	MealsPerDay    int
	LeaveStart     Date
	Now            time.Time // from the injected Clock
}

// RuleResult is the policy outcome for one plan.
type RuleResult struct {
	EligibleMeals int
	EligibleDays  int
	Blocked       bool
	Reasons       []string
}

// effectiveNoticeHours resolves the generalized notice window. The legacy
// two-hour flag guarantees at least two hours even when NoticeHours is
// unset or smaller.
func (r LeaveRules) effectiveNoticeHours() int {
	h := r.NoticeHours
	if r.RequireTwoHourNotice && h < 2 {
		h = 2
	}
	return h
}

// EvaluateRules applies the plan's leave policy to the raw missed-meal
// count. Blocking failures zero the outcome but never reject the request.
func EvaluateRules(rules LeaveRules, in RuleInput) RuleResult {
	res := RuleResult{
		EligibleMeals: in.RequestedMeals,
		EligibleDays:  in.OverlapDays,
	}

	if h := rules.effectiveNoticeHours(); h > 0 {
		deadline := in.Now.Add(time.Duration(h) * time.Hour)
		if in.LeaveStart.Time().Before(deadline) {
			res.Blocked = true
			res.Reasons = append(res.Reasons, ReasonFailsNotice)
		}
	}

	if rules.MinConsecutiveDays > 0 && in.OverlapDays < rules.MinConsecutiveDays {
		res.Blocked = true
		res.Reasons = append(res.Reasons, ReasonBelowMinDays)
	}

	if res.Blocked {
		res.EligibleMeals = 0
		res.EligibleDays = 0
		return res
	}

	if rules.LeaveLimitsEnabled && rules.MaxLeaveMealsEnabled && rules.MaxLeaveMeals >= 0 {
		if res.EligibleMeals > rules.MaxLeaveMeals {
			res.EligibleMeals = rules.MaxLeaveMeals
			res.EligibleDays = CeilDiv(res.EligibleMeals, in.MealsPerDay)
			res.Reasons = append(res.Reasons, fmt.Sprintf(reasonCappedTemplate, rules.MaxLeaveMeals))
		}
	}

	return res
}

// CeilDiv returns ceil(a/b), 0 when b <= 0.
func CeilDiv(a, b int) int {
	if b <= 0 {
		return 0
	}
	return (a + b - 1) / b
}
