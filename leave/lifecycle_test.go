package leave_test

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/messkit/leave-engine/engine"
	"github.com/messkit/leave-engine/leave"
	"github.com/messkit/leave-engine/leave/store"
)

// =============================================================================
// TEST SETUP
// =============================================================================

// The fixed clock sits at noon on April 1st; subscriptions run April 1-30.
var testNow = time.Date(2026, time.April, 1, 12, 0, 0, 0, time.UTC)

func newTestLifecycle(t *testing.T) (*leave.Lifecycle, *store.TxMemory) {
	t.Helper()
	s := store.NewTxMemory()
	lc := leave.NewLifecycle(s, engine.FixedClock{T: testNow}, zerolog.Nop())
	seedMess(t, s)
	return lc, s
}

// seedMess installs three plans and one member enrolled in all of them:
// a full-board deduction plan, a dinner-only extension plan, and a strict
// plan requiring 24 hours notice and manual approval.
func seedMess(t *testing.T, s leave.Store) {
	t.Helper()
	ctx := context.Background()

	plans := []*leave.MealPlan{
		{
			ID:          "p-full",
			MessID:      "mess-1",
			Name:        "Full Board",
			MealsPerDay: 3,
			MealOptions: engine.AllMeals(),
			Pricing:     leave.Pricing{Amount: decimal.NewFromInt(3000), Period: "monthly"},
			LeaveRules:  engine.LeaveRules{AutoApproval: true},
		},
		{
			ID:          "p-dinner",
			MessID:      "mess-1",
			Name:        "Dinner Only",
			MealsPerDay: 1,
			MealOptions: engine.NewMealSet(engine.MealDinner),
			Pricing:     leave.Pricing{Amount: decimal.NewFromInt(1200), Period: "monthly"},
			LeaveRules:  engine.LeaveRules{ExtendSubscription: true, AutoApproval: true},
		},
		{
			ID:          "p-strict",
			MessID:      "mess-1",
			Name:        "Strict Full Board",
			MealsPerDay: 3,
			MealOptions: engine.AllMeals(),
			Pricing:     leave.Pricing{Amount: decimal.NewFromInt(3000), Period: "monthly"},
			LeaveRules:  engine.LeaveRules{NoticeHours: 24},
		},
	}
	amounts := map[leave.PlanID]int64{"p-full": 3000, "p-dinner": 1200, "p-strict": 3000}
	for _, p := range plans {
		require.NoError(t, s.SavePlan(ctx, p))
		require.NoError(t, s.SaveMembership(ctx, &leave.Membership{
			ID:                leave.MembershipID("mem-" + string(p.ID)),
			UserID:            "user-1",
			MessID:            "mess-1",
			PlanID:            p.ID,
			Status:            leave.MembershipActive,
			SubscriptionStart: engine.NewDate(2026, time.April, 1),
			SubscriptionEnd:   engine.NewDate(2026, time.April, 30),
			PaymentAmount:     decimal.NewFromInt(amounts[p.ID]),
		}))
	}
}

func input(plans []leave.PlanID, startDay, endDay int) leave.LeaveInput {
	return leave.LeaveInput{
		UserID:  "user-1",
		MessID:  "mess-1",
		PlanIDs: plans,
		Start:   engine.NewDate(2026, time.April, startDay),
		End:     engine.NewDate(2026, time.April, endDay),
		Reason:  "travel",
	}
}

// =============================================================================
// CREATE
// =============================================================================

func TestCreate_AutoApprovesAndAppliesExtension(t *testing.T) {
	// GIVEN: both selected plans allow auto approval
	// WHEN: a 3-day leave is created (April 10-12)
	// THEN: the request is approved immediately, the full-board plan earns
	// 3000/30/3 * 9 = 300.00, and the dinner plan's subscription is pushed
	// out by 3 days in the same transaction

	lc, s := newTestLifecycle(t)
	ctx := context.Background()

	l, err := lc.Create(ctx, input([]leave.PlanID{"p-full", "p-dinner"}, 10, 12))
	require.NoError(t, err)

	assert.Equal(t, leave.StatusApproved, l.Status)
	assert.Equal(t, "auto", l.ApprovedBy)
	assert.Equal(t, 12, l.TotalMissedMeals, "9 full-board + 3 dinner")
	assert.Equal(t, "300.00", l.EstimatedSavings.StringFixed(2))
	assert.Equal(t, 3, l.ExtensionDays)
	assert.True(t, l.ExtensionApplied)
	assert.Equal(t, 1, l.Revision)

	m, err := s.GetMembership(ctx, "user-1", "p-dinner")
	require.NoError(t, err)
	assert.True(t, m.SubscriptionEnd.Equal(engine.NewDate(2026, time.May, 3)),
		"expected May 3, got %s", m.SubscriptionEnd)
}

func TestCreate_ManualPlanStaysPending(t *testing.T) {
	// GIVEN: the strict plan requires manual approval
	// WHEN: a leave with sufficient notice is created
	// THEN: it computes benefits but waits in pending

	lc, _ := newTestLifecycle(t)

	l, err := lc.Create(context.Background(), input([]leave.PlanID{"p-strict"}, 10, 12))
	require.NoError(t, err)

	assert.Equal(t, leave.StatusPending, l.Status)
	assert.Empty(t, l.ApprovedBy)
	assert.Equal(t, "300.00", l.EstimatedSavings.StringFixed(2))
}

func TestCreate_InsufficientNotice_PersistsBlockedPending(t *testing.T) {
	// GIVEN: the strict plan requires 24 hours notice, the clock is noon
	// April 1st
	// WHEN: a leave starting April 2nd is created (12 hours away)
	// THEN: the request persists as pending with meals counted but zero
	// benefit, and the breakdown records the failure

	lc, _ := newTestLifecycle(t)

	l, err := lc.Create(context.Background(), input([]leave.PlanID{"p-strict"}, 2, 4))
	require.NoError(t, err)

	assert.Equal(t, leave.StatusPending, l.Status)
	assert.Equal(t, 9, l.TotalMissedMeals, "missed meals are still counted")
	assert.True(t, l.EstimatedSavings.IsZero())
	require.Len(t, l.PlanBreakdowns, 1)
	assert.True(t, l.PlanBreakdowns[0].Blocked)
	assert.Contains(t, l.PlanBreakdowns[0].Reasons, engine.ReasonFailsNotice)
}

func TestCreate_OverlappingLeaveOnSamePlan_Conflicts(t *testing.T) {
	// GIVEN: an approved leave April 10-12 on the full-board plan
	// WHEN: a second request for April 12-14 names the same plan
	// THEN: it is rejected as a conflict

	lc, _ := newTestLifecycle(t)
	ctx := context.Background()

	_, err := lc.Create(ctx, input([]leave.PlanID{"p-full"}, 10, 12))
	require.NoError(t, err)

	_, err = lc.Create(ctx, input([]leave.PlanID{"p-full"}, 12, 14))
	require.Error(t, err)
	assert.True(t, engine.IsConflict(err))

	// A disjoint window on the same plan is fine.
	_, err = lc.Create(ctx, input([]leave.PlanID{"p-full"}, 20, 22))
	assert.NoError(t, err)
}

func TestCreate_ValidationFailures(t *testing.T) {
	lc, _ := newTestLifecycle(t)
	ctx := context.Background()

	_, err := lc.Create(ctx, input(nil, 10, 12))
	assert.ErrorIs(t, err, engine.ErrNoPlansSelected)

	_, err = lc.Create(ctx, input([]leave.PlanID{"p-full"}, 12, 10))
	assert.ErrorIs(t, err, engine.ErrInvalidWindow)

	bad := input([]leave.PlanID{"p-full"}, 10, 12)
	bad.UserID = ""
	_, err = lc.Create(ctx, bad)
	var ve *engine.ValidationError
	assert.ErrorAs(t, err, &ve)
}

func TestCreate_LeavePastSubscriptionEnd_ReportsIgnoredDays(t *testing.T) {
	// GIVEN: subscription ends April 30
	// WHEN: a leave runs April 28 through May 3
	// THEN: only the 3 overlapping days count and 3 days are ignored

	lc, _ := newTestLifecycle(t)

	in := input([]leave.PlanID{"p-full"}, 28, 30)
	in.End = engine.NewDate(2026, time.May, 3)
	l, err := lc.Create(context.Background(), in)
	require.NoError(t, err)

	assert.Equal(t, 9, l.TotalMissedMeals)
	assert.Equal(t, 3, l.IgnoredDays)
}

// =============================================================================
// PREVIEW
// =============================================================================

func TestPreview_MatchesCreate(t *testing.T) {
	// GIVEN: the same inputs and fixed clock
	// WHEN: previewing and then creating
	// THEN: every number matches and the preview persisted nothing

	lc, s := newTestLifecycle(t)
	ctx := context.Background()

	in := input([]leave.PlanID{"p-full", "p-dinner"}, 10, 12)
	comp, err := lc.Preview(ctx, in)
	require.NoError(t, err)

	m, err := s.GetMembership(ctx, "user-1", "p-dinner")
	require.NoError(t, err)
	assert.True(t, m.SubscriptionEnd.Equal(engine.NewDate(2026, time.April, 30)),
		"preview must not move the subscription end")

	l, err := lc.Create(ctx, in)
	require.NoError(t, err)

	assert.Equal(t, comp.TotalMissedMeals, l.TotalMissedMeals)
	assert.True(t, comp.EstimatedSavings.Equal(l.EstimatedSavings))
	assert.Equal(t, comp.ExtensionDays, l.ExtensionDays)
	assert.Equal(t, comp.MealBreakdown, l.MealBreakdown)
}

// =============================================================================
// TRANSITIONS
// =============================================================================

func TestApprove_PendingLeave_AppliesExtension(t *testing.T) {
	lc, s := newTestLifecycle(t)
	ctx := context.Background()

	in := input([]leave.PlanID{"p-strict", "p-dinner"}, 10, 12)
	l, err := lc.Create(ctx, in)
	require.NoError(t, err)
	require.Equal(t, leave.StatusPending, l.Status, "strict plan forces manual review")

	approved, err := lc.Approve(ctx, l.ID, "manager-1")
	require.NoError(t, err)
	assert.Equal(t, leave.StatusApproved, approved.Status)
	assert.Equal(t, "manager-1", approved.ApprovedBy)
	assert.True(t, approved.ExtensionApplied)

	m, err := s.GetMembership(ctx, "user-1", "p-dinner")
	require.NoError(t, err)
	assert.True(t, m.SubscriptionEnd.Equal(engine.NewDate(2026, time.May, 3)))
}

func TestReject_ThenApprove_IsInvalid(t *testing.T) {
	lc, _ := newTestLifecycle(t)
	ctx := context.Background()

	l, err := lc.Create(ctx, input([]leave.PlanID{"p-strict"}, 10, 12))
	require.NoError(t, err)

	rejected, err := lc.Reject(ctx, l.ID, "mess closed for maintenance")
	require.NoError(t, err)
	assert.Equal(t, leave.StatusRejected, rejected.Status)
	assert.Equal(t, "mess closed for maintenance", rejected.RejectionReason)

	_, err = lc.Approve(ctx, l.ID, "manager-1")
	require.Error(t, err)
	var te *engine.TransitionError
	assert.ErrorAs(t, err, &te)
}

func TestReject_PendingWithAppliedExtension_Reverses(t *testing.T) {
	// GIVEN: a manually reviewed extending plan, approved for April 10-12
	// (subscription pushed to May 3), then edited to April 14, which
	// re-applies the extension and returns the request to pending
	// WHEN: the reviewer rejects the edited request
	// THEN: rejected is terminal, so the reversal happens here: the
	// membership returns to April 30 with the counter zeroed

	lc, s := newTestLifecycle(t)
	ctx := context.Background()
	require.NoError(t, s.SavePlan(ctx, &leave.MealPlan{
		ID:          "p-dinner-manual",
		MessID:      "mess-1",
		Name:        "Dinner Manual Review",
		MealsPerDay: 1,
		MealOptions: engine.NewMealSet(engine.MealDinner),
		Pricing:     leave.Pricing{Amount: decimal.NewFromInt(1200), Period: "monthly"},
		LeaveRules:  engine.LeaveRules{ExtendSubscription: true},
	}))
	require.NoError(t, s.SaveMembership(ctx, &leave.Membership{
		ID:                "mem-p-dinner-manual",
		UserID:            "user-1",
		MessID:            "mess-1",
		PlanID:            "p-dinner-manual",
		Status:            leave.MembershipActive,
		SubscriptionStart: engine.NewDate(2026, time.April, 1),
		SubscriptionEnd:   engine.NewDate(2026, time.April, 30),
		PaymentAmount:     decimal.NewFromInt(1200),
	}))

	l, err := lc.Create(ctx, input([]leave.PlanID{"p-dinner-manual"}, 10, 12))
	require.NoError(t, err)
	_, err = lc.Approve(ctx, l.ID, "manager-1")
	require.NoError(t, err)

	edited, err := lc.EditEndDate(ctx, l.ID, engine.NewDate(2026, time.April, 14))
	require.NoError(t, err)
	require.Equal(t, leave.StatusPending, edited.Status, "manual plan needs a fresh review")
	require.True(t, edited.ExtensionApplied)

	m, err := s.GetMembership(ctx, "user-1", "p-dinner-manual")
	require.NoError(t, err)
	require.True(t, m.SubscriptionEnd.Equal(engine.NewDate(2026, time.May, 5)))

	rejected, err := lc.Reject(ctx, l.ID, "overlaps festival catering")
	require.NoError(t, err)
	assert.Equal(t, leave.StatusRejected, rejected.Status)
	assert.False(t, rejected.ExtensionApplied)
	assert.True(t, rejected.EstimatedSavings.IsZero())

	m, err = s.GetMembership(ctx, "user-1", "p-dinner-manual")
	require.NoError(t, err)
	assert.True(t, m.SubscriptionEnd.Equal(engine.NewDate(2026, time.April, 30)),
		"expected the pre-extension end, got %s", m.SubscriptionEnd)
	assert.Equal(t, 0, m.LeaveExtensionMeals)
}

func TestCancel_ApprovedLeave_ReversesExtension(t *testing.T) {
	// GIVEN: an auto-approved leave pushed the dinner subscription to May 3
	// WHEN: the leave is cancelled
	// THEN: the subscription returns to April 30 and the savings are zeroed

	lc, s := newTestLifecycle(t)
	ctx := context.Background()

	l, err := lc.Create(ctx, input([]leave.PlanID{"p-full", "p-dinner"}, 10, 12))
	require.NoError(t, err)
	require.True(t, l.ExtensionApplied)

	cancelled, err := lc.Cancel(ctx, l.ID)
	require.NoError(t, err)
	assert.Equal(t, leave.StatusCancelled, cancelled.Status)
	assert.True(t, cancelled.EstimatedSavings.IsZero())
	assert.False(t, cancelled.ExtensionApplied)

	m, err := s.GetMembership(ctx, "user-1", "p-dinner")
	require.NoError(t, err)
	assert.True(t, m.SubscriptionEnd.Equal(engine.NewDate(2026, time.April, 30)),
		"expected April 30, got %s", m.SubscriptionEnd)

	_, err = lc.Cancel(ctx, l.ID)
	assert.Error(t, err, "cancelled is terminal")
}

// =============================================================================
// EDIT END DATE
// =============================================================================

func TestEditEndDate_RecomputesWithoutCompounding(t *testing.T) {
	// GIVEN: an auto-approved dinner leave April 10-12 extended the
	// subscription from April 30 to May 3
	// WHEN: the end date moves to April 14 (5 dinners)
	// THEN: the extension is recomputed from the ORIGINAL April 30 end, so
	// the subscription lands on May 5, not May 8

	lc, s := newTestLifecycle(t)
	ctx := context.Background()

	l, err := lc.Create(ctx, input([]leave.PlanID{"p-dinner"}, 10, 12))
	require.NoError(t, err)
	require.Equal(t, 3, l.ExtensionDays)

	edited, err := lc.EditEndDate(ctx, l.ID, engine.NewDate(2026, time.April, 14))
	require.NoError(t, err)
	assert.Equal(t, 2, edited.Revision)
	assert.Equal(t, 5, edited.ExtensionDays)
	assert.Equal(t, leave.StatusApproved, edited.Status)
	assert.True(t, edited.OriginalEnd.Equal(engine.NewDate(2026, time.April, 12)),
		"the first submitted end date is immutable")

	m, err := s.GetMembership(ctx, "user-1", "p-dinner")
	require.NoError(t, err)
	assert.True(t, m.SubscriptionEnd.Equal(engine.NewDate(2026, time.May, 5)),
		"expected May 5, got %s", m.SubscriptionEnd)
	assert.Equal(t, 5, m.LeaveExtensionMeals)
}

func TestEditEndDate_CancelAfterEdit_RestoresFirstBaseline(t *testing.T) {
	lc, s := newTestLifecycle(t)
	ctx := context.Background()

	l, err := lc.Create(ctx, input([]leave.PlanID{"p-dinner"}, 10, 12))
	require.NoError(t, err)
	_, err = lc.EditEndDate(ctx, l.ID, engine.NewDate(2026, time.April, 14))
	require.NoError(t, err)

	_, err = lc.Cancel(ctx, l.ID)
	require.NoError(t, err)

	m, err := s.GetMembership(ctx, "user-1", "p-dinner")
	require.NoError(t, err)
	assert.True(t, m.SubscriptionEnd.Equal(engine.NewDate(2026, time.April, 30)),
		"cancellation restores the pre-extension end, got %s", m.SubscriptionEnd)
	assert.Equal(t, 0, m.LeaveExtensionMeals)
}

func TestEditEndDate_RecomputedToZero_RetractsExtension(t *testing.T) {
	// GIVEN: an extending dinner plan requiring 3 consecutive days, auto
	// approved for April 10-12 and extended from April 30 to May 3
	// WHEN: the end date moves to April 10, below the minimum stay
	// THEN: the recomputation blocks the plan, the stale extension is
	// retracted and the membership returns to April 30

	lc, s := newTestLifecycle(t)
	ctx := context.Background()
	require.NoError(t, s.SavePlan(ctx, &leave.MealPlan{
		ID:          "p-dinner-min",
		MessID:      "mess-1",
		Name:        "Dinner Minimum Stay",
		MealsPerDay: 1,
		MealOptions: engine.NewMealSet(engine.MealDinner),
		Pricing:     leave.Pricing{Amount: decimal.NewFromInt(1200), Period: "monthly"},
		LeaveRules: engine.LeaveRules{
			ExtendSubscription: true,
			AutoApproval:       true,
			MinConsecutiveDays: 3,
		},
	}))
	require.NoError(t, s.SaveMembership(ctx, &leave.Membership{
		ID:                "mem-p-dinner-min",
		UserID:            "user-1",
		MessID:            "mess-1",
		PlanID:            "p-dinner-min",
		Status:            leave.MembershipActive,
		SubscriptionStart: engine.NewDate(2026, time.April, 1),
		SubscriptionEnd:   engine.NewDate(2026, time.April, 30),
		PaymentAmount:     decimal.NewFromInt(1200),
	}))

	l, err := lc.Create(ctx, input([]leave.PlanID{"p-dinner-min"}, 10, 12))
	require.NoError(t, err)
	require.Equal(t, leave.StatusApproved, l.Status)
	require.Equal(t, 3, l.ExtensionDays)

	m, err := s.GetMembership(ctx, "user-1", "p-dinner-min")
	require.NoError(t, err)
	require.True(t, m.SubscriptionEnd.Equal(engine.NewDate(2026, time.May, 3)))

	edited, err := lc.EditEndDate(ctx, l.ID, engine.NewDate(2026, time.April, 10))
	require.NoError(t, err)
	assert.Equal(t, 0, edited.ExtensionDays)
	assert.Equal(t, leave.StatusPending, edited.Status)
	assert.False(t, edited.ExtensionApplied)
	require.Len(t, edited.PlanBreakdowns, 1)
	assert.True(t, edited.PlanBreakdowns[0].Blocked)

	m, err = s.GetMembership(ctx, "user-1", "p-dinner-min")
	require.NoError(t, err)
	assert.True(t, m.SubscriptionEnd.Equal(engine.NewDate(2026, time.April, 30)),
		"expected the pre-extension end, got %s", m.SubscriptionEnd)
	assert.Equal(t, 0, m.LeaveExtensionMeals)
}

func TestEditEndDate_BeforeStart_IsRejected(t *testing.T) {
	lc, _ := newTestLifecycle(t)
	ctx := context.Background()

	l, err := lc.Create(ctx, input([]leave.PlanID{"p-full"}, 10, 12))
	require.NoError(t, err)

	_, err = lc.EditEndDate(ctx, l.ID, engine.NewDate(2026, time.April, 9))
	assert.ErrorIs(t, err, engine.ErrInvalidWindow)
}

func TestEditEndDate_OnRejectedLeave_IsInvalid(t *testing.T) {
	lc, _ := newTestLifecycle(t)
	ctx := context.Background()

	l, err := lc.Create(ctx, input([]leave.PlanID{"p-strict"}, 10, 12))
	require.NoError(t, err)
	_, err = lc.Reject(ctx, l.ID, "no")
	require.NoError(t, err)

	_, err = lc.EditEndDate(ctx, l.ID, engine.NewDate(2026, time.April, 14))
	assert.ErrorIs(t, err, engine.ErrInvalidTransition)
}

// =============================================================================
// OFF-DAY INTERACTION
// =============================================================================

func TestCreate_OffDaySuppressesMeals(t *testing.T) {
	// GIVEN: the mess is closed on April 11 (all meals)
	// WHEN: a full-board leave covers April 10-12
	// THEN: the middle day contributes nothing (6 meals, not 9)

	lc, s := newTestLifecycle(t)
	ctx := context.Background()

	require.NoError(t, s.SaveOffDay(ctx, &leave.MessOffDay{
		ID:     "off-1",
		MessID: "mess-1",
		Start:  engine.NewDate(2026, time.April, 11),
		End:    engine.NewDate(2026, time.April, 11),
		Status: leave.OffDayActive,
	}))

	l, err := lc.Create(ctx, input([]leave.PlanID{"p-full"}, 10, 12))
	require.NoError(t, err)

	assert.Equal(t, 6, l.TotalMissedMeals)
	assert.Equal(t, "200.00", l.EstimatedSavings.StringFixed(2))
}
