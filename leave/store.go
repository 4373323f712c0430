/*
store.go - Persistence interface for leaves, memberships, plans and off days

PURPOSE:
  Defines the boundary between the lifecycle/ledger logic and the database.
  Two implementations exist: store/sqlite (production) and leave/store
  (in-memory, for tests and dev).

TRACKING ENTRIES ARE APPEND-ONLY:
  extension tracking has Append and List, no update and no delete. The
  ledger reverses by writing the recorded original value back onto the
  membership, never by editing history.

OPTIMISTIC VERSIONING:
  UpdateMembership must compare-and-swap on Version: the write succeeds only
  if the stored version equals the read version, and increments it. A miss
  returns engine.ErrConcurrentModification so callers can re-read and retry.

ATOMIC UNITS:
  WithTx executes a function against a transactional view of the store.
  The leave-status write and the membership mutation commit together or not
  at all; a failure mid-unit leaves no half-applied ledger entry.
*/
package leave

import (
	"context"

	"github.com/messkit/leave-engine/engine"
)

// Store handles persistence of all leave-domain records.
// Missing records are reported with the engine's not-found sentinels.
type Store interface {
	// Leaves. Never hard-deleted; cancellation is an update.
	SaveLeave(ctx context.Context, l *LeaveRequest) error
	UpdateLeave(ctx context.Context, l *LeaveRequest) error
	GetLeave(ctx context.Context, id LeaveID) (*LeaveRequest, error)
	ListLeavesByUser(ctx context.Context, userID UserID) ([]*LeaveRequest, error)

	// FindActiveLeaves returns pending/approved leaves for the user whose
	// window intersects w. Used for duplicate-request detection.
	FindActiveLeaves(ctx context.Context, userID UserID, w engine.Window) ([]*LeaveRequest, error)

	// Meal plans.
	SavePlan(ctx context.Context, p *MealPlan) error
	GetPlan(ctx context.Context, id PlanID) (*MealPlan, error)
	ListPlans(ctx context.Context, messID MessID) ([]*MealPlan, error)

	// Memberships. GetMembership resolves the user's enrollment in a plan,
	// considering only active and pending subscriptions.
	SaveMembership(ctx context.Context, m *Membership) error
	GetMembership(ctx context.Context, userID UserID, planID PlanID) (*Membership, error)
	GetMembershipByID(ctx context.Context, id MembershipID) (*Membership, error)
	ListMemberships(ctx context.Context, userID UserID) ([]*Membership, error)

	// UpdateMembership writes end date, extension-meal counter and status
	// with an optimistic version check (engine.ErrConcurrentModification on
	// a miss).
	UpdateMembership(ctx context.Context, m *Membership) error

	// ListExpiredMemberships returns active memberships whose subscription
	// end has passed as of the given date. The expiry sweeper retires them.
	ListExpiredMemberships(ctx context.Context, asOf engine.Date) ([]*Membership, error)

	// Off days.
	SaveOffDay(ctx context.Context, o *MessOffDay) error
	GetOffDay(ctx context.Context, id string) (*MessOffDay, error)
	UpdateOffDay(ctx context.Context, o *MessOffDay) error

	// ListOffDays returns records of any status intersecting w for the
	// mess; callers filter out cancelled ones.
	ListOffDays(ctx context.Context, messID MessID, w engine.Window) ([]*MessOffDay, error)

	// Extension tracking (append-only).
	AppendTracking(ctx context.Context, e ExtensionTrackingEntry) error
	ListTracking(ctx context.Context, leaveID LeaveID) ([]ExtensionTrackingEntry, error)
	TrackingExists(ctx context.Context, leaveID LeaveID, planID PlanID, revision int) (bool, error)
}

// TxStore wraps Store with transaction support. If fn returns an error the
// unit is rolled back; otherwise it commits.
type TxStore interface {
	Store

	WithTx(ctx context.Context, fn func(Store) error) error
}

// ActiveSpans filters off-day records to active ones and converts them for
// the suppression index.
func ActiveSpans(offDays []*MessOffDay) []engine.OffDaySpan {
	var spans []engine.OffDaySpan
	for _, o := range offDays {
		if o.Status != OffDayActive {
			continue
		}
		spans = append(spans, o.Span())
	}
	return spans
}
