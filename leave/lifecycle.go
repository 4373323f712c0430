/*
lifecycle.go - Leave request state machine and computation pipeline

PURPOSE:
  Orchestrates the engine's pure computations into request state
  transitions: create, preview, approve, reject, edit end date, cancel.

PIPELINE:
  window + plans -> overlap per plan -> meal selection (with off-day
  suppression) -> plan rule evaluation -> proration -> (extension plans)
  ledger apply. Edits re-enter the pipeline with a new revision;
  cancellation reverses the ledger.

STATE MACHINE:
  pending  -> approved | rejected | cancelled
  approved -> cancelled
  Edits on pending/approved recompute and either auto-approve (every plan
  has autoApproval and no blocking failure) or reset to pending. rejected
  and cancelled are terminal; there is no approved -> rejected.

PREVIEW:
  The preview path runs the identical computation with no persistence and
  must produce the same numbers as the persisting path for the same inputs.
  The only clock dependency is the injected Clock's notice-period check.

ATOMICITY:
  Every mutating operation runs in one Store transaction: the leave-status
  write and the membership mutations commit together or not at all. Racing
  writers surface as engine.ErrConcurrentModification and the whole unit is
  retried once.
*/
package leave

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/messkit/leave-engine/engine"
)

// Lifecycle drives leave requests through their states.
type Lifecycle struct {
	Store  TxStore
	Clock  engine.Clock
	Ledger *ExtensionLedger
	Logger zerolog.Logger
}

func NewLifecycle(store TxStore, clock engine.Clock, logger zerolog.Logger) *Lifecycle {
	if clock == nil {
		clock = engine.SystemClock{}
	}
	return &Lifecycle{
		Store:  store,
		Clock:  clock,
		Ledger: NewExtensionLedger(clock),
		Logger: logger,
	}
}

// LeaveInput is a candidate leave window with its meal selections.
type LeaveInput struct {
	UserID  UserID
	MessID  MessID
	PlanIDs []PlanID

	Start engine.Date
	End   engine.Date

	StartMeals  engine.MealSet
	EndMeals    engine.MealSet
	MiddleMeals engine.MealSet

	Reason string
}

func (in *LeaveInput) window() engine.Window {
	return engine.Window{Start: in.Start, End: in.End}
}

func (in *LeaveInput) selection() engine.Selection {
	return engine.Selection{
		StartMeals:  in.StartMeals.OrAll(),
		EndMeals:    in.EndMeals.OrAll(),
		MiddleMeals: in.MiddleMeals.OrAll(),
	}
}

// Computation is the aggregate outcome of one pipeline run.
type Computation struct {
	TotalMissedMeals int
	MealBreakdown    map[engine.MealType]int
	PlanBreakdowns   []PlanBreakdown
	EstimatedSavings decimal.Decimal
	ExtensionMeals   int
	ExtensionDays    int
	IgnoredDays      int

	// autoApprovable: every plan opts into auto approval and none failed a
	// blocking policy check.
	autoApprovable bool
}

// =============================================================================
// OPERATIONS
// =============================================================================

// Preview runs the computation pipeline without persisting anything. It
// produces exactly the numbers Create would store for the same inputs.
func (lc *Lifecycle) Preview(ctx context.Context, in LeaveInput) (*Computation, error) {
	if err := lc.validate(&in); err != nil {
		return nil, err
	}
	return lc.compute(ctx, lc.Store, &in, nil)
}

// Create validates, checks for conflicts, computes and persists a new leave
// request. When every selected plan auto-approves, the request is approved
// and extensions are applied in the same transaction.
func (lc *Lifecycle) Create(ctx context.Context, in LeaveInput) (*LeaveRequest, error) {
	if err := lc.validate(&in); err != nil {
		return nil, err
	}

	var created *LeaveRequest
	err := lc.withRetry(ctx, func(s Store) error {
		if err := lc.checkConflicts(ctx, s, in.UserID, in.window(), in.PlanIDs, ""); err != nil {
			return err
		}

		comp, err := lc.compute(ctx, s, &in, nil)
		if err != nil {
			return err
		}

		now := lc.Clock.Now()
		l := &LeaveRequest{
			ID:          LeaveID(uuid.NewString()),
			UserID:      in.UserID,
			MessID:      in.MessID,
			PlanIDs:     in.PlanIDs,
			Start:       in.Start,
			End:         in.End,
			StartMeals:  in.StartMeals,
			EndMeals:    in.EndMeals,
			MiddleMeals: in.MiddleMeals,
			Reason:      in.Reason,
			Status:      StatusPending,
			OriginalEnd: in.End,
			Revision:    1,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		l.applyComputation(comp)

		if comp.autoApprovable {
			l.Status = StatusApproved
			l.ApprovedBy = "auto"
		}

		if err := s.SaveLeave(ctx, l); err != nil {
			return err
		}
		if l.Status == StatusApproved {
			if err := lc.Ledger.Apply(ctx, s, l); err != nil {
				return err
			}
			if err := s.UpdateLeave(ctx, l); err != nil {
				return err
			}
		}

		created = l
		return nil
	})
	if err != nil {
		return nil, err
	}

	lc.Logger.Info().
		Str("leave_id", string(created.ID)).
		Str("user_id", string(created.UserID)).
		Str("status", string(created.Status)).
		Int("missed_meals", created.TotalMissedMeals).
		Msg("leave request created")
	return created, nil
}

// Approve transitions a pending request to approved and applies extensions.
func (lc *Lifecycle) Approve(ctx context.Context, id LeaveID, approver string) (*LeaveRequest, error) {
	var out *LeaveRequest
	err := lc.withRetry(ctx, func(s Store) error {
		l, err := s.GetLeave(ctx, id)
		if err != nil {
			return err
		}
		if l.Status != StatusPending {
			return &engine.TransitionError{From: string(l.Status), To: string(StatusApproved)}
		}

		l.Status = StatusApproved
		l.ApprovedBy = approver
		l.UpdatedAt = lc.Clock.Now()

		if err := lc.Ledger.Apply(ctx, s, l); err != nil {
			return err
		}
		if err := s.UpdateLeave(ctx, l); err != nil {
			return err
		}
		out = l
		return nil
	})
	if err != nil {
		return nil, err
	}

	lc.Logger.Info().Str("leave_id", string(id)).Str("approver", approver).Msg("leave approved")
	return out, nil
}

// Reject transitions a pending request to rejected. A pending request can
// still carry an applied extension (an approved leave edited back to
// pending re-applies under the new revision); rejected is terminal, so the
// extension is reversed here, in the same transaction.
func (lc *Lifecycle) Reject(ctx context.Context, id LeaveID, reason string) (*LeaveRequest, error) {
	var out *LeaveRequest
	err := lc.withRetry(ctx, func(s Store) error {
		l, err := s.GetLeave(ctx, id)
		if err != nil {
			return err
		}
		if l.Status != StatusPending {
			return &engine.TransitionError{From: string(l.Status), To: string(StatusRejected)}
		}

		if l.ExtensionApplied {
			if err := lc.Ledger.Reverse(ctx, s, l); err != nil {
				return err
			}
		}
		l.Status = StatusRejected
		l.RejectionReason = reason
		l.UpdatedAt = lc.Clock.Now()
		if err := s.UpdateLeave(ctx, l); err != nil {
			return err
		}
		out = l
		return nil
	})
	if err != nil {
		return nil, err
	}

	lc.Logger.Info().Str("leave_id", string(id)).Msg("leave rejected")
	return out, nil
}

// EditEndDate changes the end date of a pending or approved request and
// re-runs the whole pipeline under a new revision. An already-applied
// extension is recomputed against the original subscription window and
// re-applied from the recorded baseline. The edited request auto-approves
// when every plan allows it, otherwise it returns to pending for review.
func (lc *Lifecycle) EditEndDate(ctx context.Context, id LeaveID, newEnd engine.Date) (*LeaveRequest, error) {
	var out *LeaveRequest
	err := lc.withRetry(ctx, func(s Store) error {
		l, err := s.GetLeave(ctx, id)
		if err != nil {
			return err
		}
		if l.Status != StatusPending && l.Status != StatusApproved {
			return &engine.TransitionError{From: string(l.Status), To: string(l.Status)}
		}
		if newEnd.IsZero() || newEnd.Before(l.Start) {
			return engine.ErrInvalidWindow
		}

		w := engine.Window{Start: l.Start, End: newEnd}
		if err := lc.checkConflicts(ctx, s, l.UserID, w, l.PlanIDs, l.ID); err != nil {
			return err
		}

		in := LeaveInput{
			UserID:      l.UserID,
			MessID:      l.MessID,
			PlanIDs:     l.PlanIDs,
			Start:       l.Start,
			End:         newEnd,
			StartMeals:  l.StartMeals,
			EndMeals:    l.EndMeals,
			MiddleMeals: l.MiddleMeals,
			Reason:      l.Reason,
		}
		comp, err := lc.compute(ctx, s, &in, l)
		if err != nil {
			return err
		}

		l.End = newEnd // OriginalEnd stays at the first submitted value
		l.Revision++
		l.applyComputation(comp)
		l.UpdatedAt = lc.Clock.Now()

		if comp.autoApprovable {
			l.Status = StatusApproved
			if l.ApprovedBy == "" {
				l.ApprovedBy = "auto"
			}
		} else {
			l.Status = StatusPending
		}

		// Re-apply when the ledger already holds entries for this leave, or
		// apply fresh when the edit lands it in approved state.
		if l.ExtensionApplied || l.Status == StatusApproved {
			if err := lc.Ledger.Apply(ctx, s, l); err != nil {
				return err
			}
		}
		if err := s.UpdateLeave(ctx, l); err != nil {
			return err
		}
		out = l
		return nil
	})
	if err != nil {
		return nil, err
	}

	lc.Logger.Info().
		Str("leave_id", string(id)).
		Str("new_end", out.End.String()).
		Int("revision", out.Revision).
		Msg("leave end date edited")
	return out, nil
}

// Cancel reverses every extension the leave applied and marks it
// cancelled. The membership restore and the status write are one unit.
func (lc *Lifecycle) Cancel(ctx context.Context, id LeaveID) (*LeaveRequest, error) {
	var out *LeaveRequest
	err := lc.withRetry(ctx, func(s Store) error {
		l, err := s.GetLeave(ctx, id)
		if err != nil {
			return err
		}
		if l.Status != StatusPending && l.Status != StatusApproved {
			return &engine.TransitionError{From: string(l.Status), To: string(StatusCancelled)}
		}

		if err := lc.Ledger.Reverse(ctx, s, l); err != nil {
			return err
		}
		l.Status = StatusCancelled
		l.UpdatedAt = lc.Clock.Now()
		if err := s.UpdateLeave(ctx, l); err != nil {
			return err
		}
		out = l
		return nil
	})
	if err != nil {
		return nil, err
	}

	lc.Logger.Info().Str("leave_id", string(id)).Msg("leave cancelled")
	return out, nil
}

// Get returns one leave request.
func (lc *Lifecycle) Get(ctx context.Context, id LeaveID) (*LeaveRequest, error) {
	return lc.Store.GetLeave(ctx, id)
}

// ListByUser returns a user's leave requests with their stored breakdowns.
func (lc *Lifecycle) ListByUser(ctx context.Context, userID UserID) ([]*LeaveRequest, error) {
	return lc.Store.ListLeavesByUser(ctx, userID)
}

// =============================================================================
// COMPUTATION PIPELINE
// =============================================================================

// compute runs the full per-plan pipeline. When editing is non-nil the run
// belongs to an edit: plans whose extension is already applied are computed
// against the recorded baseline end, never the extended one, so edits
// cannot compound extensions.
func (lc *Lifecycle) compute(ctx context.Context, s Store, in *LeaveInput, editing *LeaveRequest) (*Computation, error) {
	leaveW := in.window()
	sel := in.selection()
	now := lc.Clock.Now()

	offDays, err := s.ListOffDays(ctx, in.MessID, leaveW)
	if err != nil {
		return nil, err
	}
	sup := engine.BuildSuppressionIndex(ActiveSpans(offDays), leaveW)

	comp := &Computation{
		MealBreakdown:    make(map[engine.MealType]int),
		EstimatedSavings: decimal.Zero,
		autoApprovable:   true,
	}

	maxOverlapDays := 0
	for _, planID := range in.PlanIDs {
		plan, err := s.GetPlan(ctx, planID)
		if err != nil {
			return nil, err
		}
		m, err := s.GetMembership(ctx, in.UserID, planID)
		if err != nil {
			return nil, err
		}

		subW := m.SubscriptionWindow(leaveW)
		if editing != nil && editing.ExtensionApplied {
			baseline, err := lc.Ledger.BaselineEnd(ctx, s, editing.ID, planID)
			if err != nil {
				return nil, err
			}
			if !baseline.IsZero() {
				subW.End = baseline
			}
		}

		br := lc.computePlan(plan, m, leaveW, subW, sel, sup, now)
		comp.PlanBreakdowns = append(comp.PlanBreakdowns, br.breakdown)

		for t, n := range br.missed.ByType {
			comp.MealBreakdown[t] += n
		}
		comp.TotalMissedMeals += br.missed.Total
		comp.EstimatedSavings = comp.EstimatedSavings.Add(br.breakdown.EstimatedSavings)
		comp.ExtensionMeals += br.breakdown.ExtendEligibleMeals
		comp.ExtensionDays += br.breakdown.ExtensionDays
		if br.overlapDays > maxOverlapDays {
			maxOverlapDays = br.overlapDays
		}

		if !plan.LeaveRules.AutoApproval || br.breakdown.Blocked {
			comp.autoApprovable = false
		}
	}

	if ignored := leaveW.Days() - maxOverlapDays; ignored > 0 {
		comp.IgnoredDays = ignored
	}
	return comp, nil
}

type planResult struct {
	breakdown   PlanBreakdown
	missed      engine.MissedMeals
	overlapDays int
}

// computePlan runs overlap, selection, rules and proration for one plan.
func (lc *Lifecycle) computePlan(
	plan *MealPlan,
	m *Membership,
	leaveW, subW engine.Window,
	sel engine.Selection,
	sup engine.SuppressionIndex,
	now time.Time,
) planResult {
	br := PlanBreakdown{
		PlanID:           plan.ID,
		EstimatedSavings: decimal.Zero,
		PerMealRate:      decimal.Zero,
	}

	ov := engine.Overlap(leaveW, subW)
	if ov.Days == 0 {
		br.Reasons = append(br.Reasons, engine.ReasonNoOverlap)
		return planResult{breakdown: br}
	}

	missed := engine.CountMissedMeals(plan.MealOptions, ov, sel, sup)

	rr := engine.EvaluateRules(plan.LeaveRules, engine.RuleInput{
		RequestedMeals: missed.Total,
		OverlapDays:    ov.Days,
		MealsPerDay:    plan.MealsPerDay,
		LeaveStart:     leaveW.Start,
		Now:            now,
	})
	br.EligibleDays = rr.EligibleDays
	br.EligibleMeals = rr.EligibleMeals
	br.Blocked = rr.Blocked
	br.Reasons = append(br.Reasons, rr.Reasons...)

	pro := engine.Prorate(engine.ProrationInput{
		PaymentAmount:      m.PaymentAmount,
		SubStart:           subW.Start,
		SubEnd:             subW.End,
		MealsPerDay:        plan.MealsPerDay,
		EligibleMeals:      rr.EligibleMeals,
		ExtendSubscription: plan.LeaveRules.ExtendSubscription,
	})
	br.PerMealRate = pro.PerMealRate
	br.DeductionEligibleMeals = pro.DeductionMeals
	br.EstimatedSavings = pro.EstimatedSavings
	br.ExtendEligibleMeals = pro.ExtensionMeals
	br.ExtensionDays = pro.ExtensionDays

	return planResult{breakdown: br, missed: missed, overlapDays: ov.Days}
}

// =============================================================================
// HELPERS
// =============================================================================

// validate rejects malformed input before any computation.
func (lc *Lifecycle) validate(in *LeaveInput) error {
	if len(in.PlanIDs) == 0 {
		return engine.ErrNoPlansSelected
	}
	if in.UserID == "" {
		return &engine.ValidationError{Field: "user_id", Message: "required"}
	}
	if in.MessID == "" {
		return &engine.ValidationError{Field: "mess_id", Message: "required"}
	}
	if in.Start.IsZero() || in.End.IsZero() {
		return &engine.ValidationError{Field: "dates", Message: "start and end dates are required"}
	}
	if in.End.Before(in.Start) {
		return engine.ErrInvalidWindow
	}
	return nil
}

// checkConflicts rejects a window that overlaps an existing pending or
// approved leave on any shared plan.
func (lc *Lifecycle) checkConflicts(ctx context.Context, s Store, userID UserID, w engine.Window, plans []PlanID, exclude LeaveID) error {
	existing, err := s.FindActiveLeaves(ctx, userID, w)
	if err != nil {
		return err
	}
	for _, other := range existing {
		if other.ID == exclude {
			continue
		}
		for _, p := range plans {
			if other.SharesPlan([]PlanID{p}) {
				return &engine.ConflictError{ExistingLeaveID: string(other.ID), PlanID: string(p)}
			}
		}
	}
	return nil
}

// withRetry runs one transactional unit, retrying once when a racing
// membership write is detected.
func (lc *Lifecycle) withRetry(ctx context.Context, fn func(Store) error) error {
	err := lc.Store.WithTx(ctx, fn)
	if err != nil && engine.IsRetryable(err) {
		lc.Logger.Warn().Err(err).Msg("retrying after concurrent modification")
		err = lc.Store.WithTx(ctx, fn)
	}
	return err
}

// applyComputation copies a pipeline result onto the leave record.
func (l *LeaveRequest) applyComputation(c *Computation) {
	l.TotalMissedMeals = c.TotalMissedMeals
	l.MealBreakdown = c.MealBreakdown
	l.PlanBreakdowns = c.PlanBreakdowns
	l.EstimatedSavings = c.EstimatedSavings
	l.ExtensionMeals = c.ExtensionMeals
	l.ExtensionDays = c.ExtensionDays
	l.IgnoredDays = c.IgnoredDays
}
