// Package leave implements the leave-request lifecycle for a mess service.
// It orchestrates the pure computations in the engine package against
// persisted memberships, meal plans and off days, and owns the extension
// ledger that mutates subscription end dates reversibly.
package leave

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/messkit/leave-engine/engine"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type LeaveID string
type UserID string
type MessID string
type PlanID string
type MembershipID string

// =============================================================================
// LEAVE REQUEST
// =============================================================================

type Status string

const (
	StatusPending   Status = "pending"
	StatusApproved  Status = "approved"
	StatusRejected  Status = "rejected"
	StatusCancelled Status = "cancelled"

	// StatusExtended is a display alias of approved for requests whose
	// subscription extension has been applied. It is never stored and not
	// independently reachable.
	StatusExtended Status = "extended"
)

// LeaveRequest is a member's declaration of meals they will not consume.
// Requests are never hard-deleted; cancellation is a status change plus an
// exact ledger reversal.
type LeaveRequest struct {
	ID      LeaveID
	UserID  UserID
	MessID  MessID
	PlanIDs []PlanID

	// Inclusive day-granularity window with per-boundary meal selections.
	Start       engine.Date
	End         engine.Date
	StartMeals  engine.MealSet
	EndMeals    engine.MealSet
	MiddleMeals engine.MealSet

	Reason string
	Status Status

	// Computed outputs, refreshed on every create/edit.
	TotalMissedMeals int
	MealBreakdown    map[engine.MealType]int
	PlanBreakdowns   []PlanBreakdown
	EstimatedSavings decimal.Decimal
	ExtensionMeals   int
	ExtensionDays    int
	IgnoredDays      int

	// OriginalEnd is the first submitted end date, immutable once set.
	OriginalEnd engine.Date

	// Revision increments on every edit; it keys ledger idempotency.
	Revision int

	// ExtensionApplied marks that the ledger has mutated memberships for
	// this leave (and must reverse them on cancellation).
	ExtensionApplied bool

	ApprovedBy      string
	RejectionReason string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// DisplayStatus returns the user-facing status, substituting the extended
// alias for approved requests with an applied extension.
func (l *LeaveRequest) DisplayStatus() Status {
	if l.Status == StatusApproved && l.ExtensionApplied && l.ExtensionDays > 0 {
		return StatusExtended
	}
	return l.Status
}

// Window returns the requested leave window.
func (l *LeaveRequest) Window() engine.Window {
	return engine.Window{Start: l.Start, End: l.End}
}

// Selection returns the request's boundary meal selections, defaulted so an
// empty selection means all of the plan's meals.
func (l *LeaveRequest) Selection() engine.Selection {
	return engine.Selection{
		StartMeals:  l.StartMeals.OrAll(),
		EndMeals:    l.EndMeals.OrAll(),
		MiddleMeals: l.MiddleMeals.OrAll(),
	}
}

// SharesPlan reports whether the leave covers any of the given plans.
func (l *LeaveRequest) SharesPlan(plans []PlanID) bool {
	for _, mine := range l.PlanIDs {
		for _, p := range plans {
			if mine == p {
				return true
			}
		}
	}
	return false
}

// PlanBreakdown is the per-plan snapshot attached to a leave for display
// and audit. A plan's outcome is extension-only or deduction-only.
type PlanBreakdown struct {
	PlanID                 PlanID
	EligibleDays           int
	EligibleMeals          int
	DeductionEligibleMeals int
	ExtendEligibleMeals    int
	ExtensionDays          int
	EstimatedSavings       decimal.Decimal
	PerMealRate            decimal.Decimal
	Blocked                bool
	Reasons                []string
}

// =============================================================================
// MEMBERSHIP (SUBSCRIPTION)
// =============================================================================

type MembershipStatus string

const (
	MembershipPending   MembershipStatus = "pending"
	MembershipActive    MembershipStatus = "active"
	MembershipInactive  MembershipStatus = "inactive"
	MembershipSuspended MembershipStatus = "suspended"
)

// Membership is a user's time-bounded enrollment in a meal plan. Its end
// date is mutated only by the extension ledger, and every mutation is
// traceable to a tracking entry recording the pre-mutation value.
type Membership struct {
	ID     MembershipID
	UserID UserID
	MessID MessID
	PlanID PlanID
	Status MembershipStatus

	SubscriptionStart engine.Date
	SubscriptionEnd   engine.Date

	PaymentAmount decimal.Decimal

	// LeaveExtensionMeals is the cumulative count of meals converted into
	// extension days across all leaves.
	LeaveExtensionMeals int

	// Version guards the read-modify-write cycle around ledger mutations.
	Version int

	CreatedAt time.Time
}

// SubscriptionWindow returns the membership's active window, defaulting to
// the given leave window when the membership has no recorded dates.
func (m *Membership) SubscriptionWindow(fallback engine.Window) engine.Window {
	w := engine.Window{Start: m.SubscriptionStart, End: m.SubscriptionEnd}
	if m.SubscriptionStart.IsZero() {
		w.Start = fallback.Start
	}
	if m.SubscriptionEnd.IsZero() {
		w.End = fallback.End
	}
	return w
}

// =============================================================================
// MEAL PLAN
// =============================================================================

// Pricing is a plan's price for one subscription period.
type Pricing struct {
	Amount decimal.Decimal
	Period string // e.g. "monthly"
}

// MealPlan is a purchasable offering. Read-only input to the engine.
type MealPlan struct {
	ID          PlanID
	MessID      MessID
	Name        string
	MealsPerDay int
	MealOptions engine.MealSet
	Pricing     Pricing
	LeaveRules  engine.LeaveRules
}

// =============================================================================
// MESS OFF DAY
// =============================================================================

type OffDayStatus string

const (
	OffDayActive    OffDayStatus = "active"
	OffDayCancelled OffDayStatus = "cancelled"
)

// MessOffDay is a mess-wide closure: a single date or an inclusive range
// with per-boundary meal selections mirroring the leave boundary model.
// Off days only suppress meal counting; they never add meals.
type MessOffDay struct {
	ID     string
	MessID MessID
	Start  engine.Date
	End    engine.Date

	StartMeals engine.MealSet
	EndMeals   engine.MealSet

	Status    OffDayStatus
	CreatedAt time.Time
}

// Span converts the record to its engine representation.
func (o *MessOffDay) Span() engine.OffDaySpan {
	return engine.OffDaySpan{
		Start:      o.Start,
		End:        o.End,
		StartMeals: o.StartMeals,
		EndMeals:   o.EndMeals,
	}
}

// =============================================================================
// EXTENSION TRACKING ENTRY
// =============================================================================

// ExtensionTrackingEntry is an immutable audit record of one subscription
// end-date mutation. The FIRST entry for a (leave, plan) pair is the
// permanent reversal baseline: cancellation restores its OriginalEnd no
// matter how many re-applications followed.
type ExtensionTrackingEntry struct {
	ID           string
	LeaveID      LeaveID
	PlanID       PlanID
	MembershipID MembershipID

	OriginalEnd engine.Date // membership end before this application
	NewEnd      engine.Date
	Meals       int // meals applied at this revision (absolute, not delta)
	Revision    int

	AppliedAt time.Time
}
