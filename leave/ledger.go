/*
ledger.go - Subscription extension ledger

PURPOSE:
  Applies, re-applies and reverses subscription end-date mutations caused by
  leave-driven extensions, keeping an auditable append-only history so that
  reversal is exact.

CRITICAL INVARIANTS:
  1. APPEND-ONLY: tracking entries are never edited or deleted.
  2. BASELINE: the first entry for a (leave, plan) pair records the
     membership end date before any extension; cancellation restores exactly
     that value, never an intermediate edited one.
  3. IDEMPOTENT: application is keyed by (leave, plan, revision); re-running
     the same revision is a no-op, so a retried unit cannot double-extend.
  4. NO DOUBLE COUNTING: the extension base is the later of the recorded
     original end and the requested leave end. Days the request already
     covers beyond the subscription boundary are never added twice.

RE-APPLICATION:
  When an already-extended leave's end date is edited, the lifecycle
  recomputes eligibility against the ORIGINAL subscription window (the
  baseline, not the extended end - see lifecycle.go), then calls Apply again
  with a new revision. Apply extends from the baseline, pushes a new entry,
  and adjusts the membership's cumulative meal counter by the delta between
  the old and new applied meals. When the recomputation grants a previously
  extended plan NOTHING (the shortened window trips a blocking rule, or no
  meals remain eligible), Apply retracts instead: the membership end is
  restored to the baseline, the counter gives back the applied meals, and a
  zero-meal entry records the retraction under the new revision.

CONCURRENCY:
  Every mutation runs inside the caller's Store transaction and writes the
  membership through an optimistic version check. A racing writer surfaces
  as engine.ErrConcurrentModification, which is retryable as a whole unit.
*/
package leave

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/messkit/leave-engine/engine"
)

// ExtensionLedger mutates subscription end dates for extension-type plans.
// All methods expect to run inside a Store transaction.
type ExtensionLedger struct {
	Clock engine.Clock
}

func NewExtensionLedger(clock engine.Clock) *ExtensionLedger {
	if clock == nil {
		clock = engine.SystemClock{}
	}
	return &ExtensionLedger{Clock: clock}
}

// Apply reconciles every plan on the leave with its computed extension:
// plans that earned one are extended, and plans whose recomputation came
// back empty have any previously applied extension retracted. It is safe
// to call repeatedly: revisions already applied are skipped.
func (el *ExtensionLedger) Apply(ctx context.Context, s Store, l *LeaveRequest) error {
	applied := false
	for i := range l.PlanBreakdowns {
		br := &l.PlanBreakdowns[i]
		if br.Blocked || br.ExtendEligibleMeals <= 0 {
			if err := el.retractPlan(ctx, s, l, br.PlanID); err != nil {
				return fmt.Errorf("retract extension for plan %s: %w", br.PlanID, err)
			}
			continue
		}
		if err := el.applyPlan(ctx, s, l, br); err != nil {
			return fmt.Errorf("apply extension for plan %s: %w", br.PlanID, err)
		}
		applied = true
	}
	l.ExtensionApplied = applied
	return nil
}

func (el *ExtensionLedger) applyPlan(ctx context.Context, s Store, l *LeaveRequest, br *PlanBreakdown) error {
	exists, err := s.TrackingExists(ctx, l.ID, br.PlanID, l.Revision)
	if err != nil {
		return err
	}
	if exists {
		return nil // this revision already applied
	}

	m, err := s.GetMembership(ctx, l.UserID, br.PlanID)
	if err != nil {
		return err
	}

	prior, err := el.planEntries(ctx, s, l.ID, br.PlanID)
	if err != nil {
		return err
	}

	// The permanent baseline is the end date recorded before the first
	// extension; on first application it is the membership's current end.
	baseline := m.SubscriptionEnd
	prevMeals := 0
	if len(prior) > 0 {
		baseline = prior[0].OriginalEnd
		prevMeals = prior[len(prior)-1].Meals
	}

	// Extend from the later of the baseline and the requested end: when the
	// leave already runs past the subscription boundary, the gap is covered
	// by the request itself and must not be counted again.
	base := engine.LaterOf(baseline, l.End)
	newEnd := base.AddDays(br.ExtensionDays)

	entry := ExtensionTrackingEntry{
		ID:           uuid.NewString(),
		LeaveID:      l.ID,
		PlanID:       br.PlanID,
		MembershipID: m.ID,
		OriginalEnd:  m.SubscriptionEnd,
		NewEnd:       newEnd,
		Meals:        br.ExtendEligibleMeals,
		Revision:     l.Revision,
		AppliedAt:    el.Clock.Now(),
	}
	if err := s.AppendTracking(ctx, entry); err != nil {
		return err
	}

	m.SubscriptionEnd = newEnd
	m.LeaveExtensionMeals += br.ExtendEligibleMeals - prevMeals
	if m.LeaveExtensionMeals < 0 {
		m.LeaveExtensionMeals = 0
	}
	return s.UpdateMembership(ctx, m)
}

// retractPlan undoes a previously applied extension whose recomputation no
// longer grants one. The membership returns to the FIRST entry's recorded
// end, the counter gives back the last applied meals, and a zero-meal
// entry keys the retraction to the revision so a retried Apply skips it.
func (el *ExtensionLedger) retractPlan(ctx context.Context, s Store, l *LeaveRequest, planID PlanID) error {
	prior, err := el.planEntries(ctx, s, l.ID, planID)
	if err != nil || len(prior) == 0 {
		return err
	}
	last := prior[len(prior)-1]
	if last.Meals == 0 {
		return nil // nothing applied at the latest revision
	}
	exists, err := s.TrackingExists(ctx, l.ID, planID, l.Revision)
	if err != nil || exists {
		return err
	}

	m, err := s.GetMembershipByID(ctx, last.MembershipID)
	if err != nil {
		return err
	}

	first := prior[0]
	entry := ExtensionTrackingEntry{
		ID:           uuid.NewString(),
		LeaveID:      l.ID,
		PlanID:       planID,
		MembershipID: m.ID,
		OriginalEnd:  m.SubscriptionEnd,
		NewEnd:       first.OriginalEnd,
		Meals:        0,
		Revision:     l.Revision,
		AppliedAt:    el.Clock.Now(),
	}
	if err := s.AppendTracking(ctx, entry); err != nil {
		return err
	}

	m.SubscriptionEnd = first.OriginalEnd
	m.LeaveExtensionMeals -= last.Meals
	if m.LeaveExtensionMeals < 0 {
		m.LeaveExtensionMeals = 0
	}
	return s.UpdateMembership(ctx, m)
}

// Reverse undoes every extension the leave applied: each affected
// membership is restored to the end date recorded in the FIRST tracking
// entry for its plan, and its cumulative meal counter is reduced by the
// meals currently applied (floored at zero). The leave's savings are
// zeroed; the caller sets the cancelled status in the same transaction.
func (el *ExtensionLedger) Reverse(ctx context.Context, s Store, l *LeaveRequest) error {
	entries, err := s.ListTracking(ctx, l.ID)
	if err != nil {
		return err
	}

	byPlan := make(map[PlanID][]ExtensionTrackingEntry)
	var order []PlanID
	for _, e := range entries {
		if _, seen := byPlan[e.PlanID]; !seen {
			order = append(order, e.PlanID)
		}
		byPlan[e.PlanID] = append(byPlan[e.PlanID], e)
	}

	for _, planID := range order {
		planEntries := byPlan[planID]
		first := planEntries[0]
		last := planEntries[len(planEntries)-1]

		m, err := s.GetMembershipByID(ctx, first.MembershipID)
		if err != nil {
			return fmt.Errorf("reverse extension for plan %s: %w", planID, err)
		}

		m.SubscriptionEnd = first.OriginalEnd
		m.LeaveExtensionMeals -= last.Meals
		if m.LeaveExtensionMeals < 0 {
			m.LeaveExtensionMeals = 0
		}
		if err := s.UpdateMembership(ctx, m); err != nil {
			return fmt.Errorf("reverse extension for plan %s: %w", planID, err)
		}
	}

	l.EstimatedSavings = decimal.Zero
	l.ExtensionApplied = false
	return nil
}

// BaselineEnd returns the pre-extension subscription end for a plan of this
// leave, or the zero Date when no extension was ever applied. The lifecycle
// uses it to recompute edits against the original subscription window.
func (el *ExtensionLedger) BaselineEnd(ctx context.Context, s Store, leaveID LeaveID, planID PlanID) (engine.Date, error) {
	prior, err := el.planEntries(ctx, s, leaveID, planID)
	if err != nil || len(prior) == 0 {
		return engine.Date{}, err
	}
	return prior[0].OriginalEnd, nil
}

// planEntries returns the leave's tracking entries for one plan in
// application order.
func (el *ExtensionLedger) planEntries(ctx context.Context, s Store, leaveID LeaveID, planID PlanID) ([]ExtensionTrackingEntry, error) {
	entries, err := s.ListTracking(ctx, leaveID)
	if err != nil {
		return nil, err
	}
	var out []ExtensionTrackingEntry
	for _, e := range entries {
		if e.PlanID == planID {
			out = append(out, e)
		}
	}
	return out, nil
}
