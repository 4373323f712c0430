// Package store provides the in-memory Store implementation, used by tests
// and the dev server.
package store

import (
	"context"
	"sort"
	"sync"

	"github.com/messkit/leave-engine/engine"
	"github.com/messkit/leave-engine/leave"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu          sync.RWMutex
	leaves      map[leave.LeaveID]*leave.LeaveRequest
	plans       map[leave.PlanID]*leave.MealPlan
	memberships map[leave.MembershipID]*leave.Membership
	offDays     map[string]*leave.MessOffDay
	tracking    map[leave.LeaveID][]leave.ExtensionTrackingEntry
	trackKeys   map[trackKey]bool
}

type trackKey struct {
	LeaveID  leave.LeaveID
	PlanID   leave.PlanID
	Revision int
}

func NewMemory() *Memory {
	return &Memory{
		leaves:      make(map[leave.LeaveID]*leave.LeaveRequest),
		plans:       make(map[leave.PlanID]*leave.MealPlan),
		memberships: make(map[leave.MembershipID]*leave.Membership),
		offDays:     make(map[string]*leave.MessOffDay),
		tracking:    make(map[leave.LeaveID][]leave.ExtensionTrackingEntry),
		trackKeys:   make(map[trackKey]bool),
	}
}

// ---- Leaves ----

func (m *Memory) SaveLeave(_ context.Context, l *leave.LeaveRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.leaves[l.ID] = cloneLeave(l)
	return nil
}

func (m *Memory) UpdateLeave(_ context.Context, l *leave.LeaveRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.leaves[l.ID]; !ok {
		return engine.ErrLeaveNotFound
	}
	m.leaves[l.ID] = cloneLeave(l)
	return nil
}

func (m *Memory) GetLeave(_ context.Context, id leave.LeaveID) (*leave.LeaveRequest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	l, ok := m.leaves[id]
	if !ok {
		return nil, engine.ErrLeaveNotFound
	}
	return cloneLeave(l), nil
}

func (m *Memory) ListLeavesByUser(_ context.Context, userID leave.UserID) ([]*leave.LeaveRequest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*leave.LeaveRequest
	for _, l := range m.leaves {
		if l.UserID == userID {
			out = append(out, cloneLeave(l))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *Memory) FindActiveLeaves(_ context.Context, userID leave.UserID, w engine.Window) ([]*leave.LeaveRequest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*leave.LeaveRequest
	for _, l := range m.leaves {
		if l.UserID != userID {
			continue
		}
		if l.Status != leave.StatusPending && l.Status != leave.StatusApproved {
			continue
		}
		if l.Window().Intersects(w) {
			out = append(out, cloneLeave(l))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// ---- Plans ----

func (m *Memory) SavePlan(_ context.Context, p *leave.MealPlan) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *p
	m.plans[p.ID] = &cp
	return nil
}

func (m *Memory) GetPlan(_ context.Context, id leave.PlanID) (*leave.MealPlan, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.plans[id]
	if !ok {
		return nil, engine.ErrPlanNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *Memory) ListPlans(_ context.Context, messID leave.MessID) ([]*leave.MealPlan, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*leave.MealPlan
	for _, p := range m.plans {
		if p.MessID == messID {
			cp := *p
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// ---- Memberships ----

func (m *Memory) SaveMembership(_ context.Context, ms *leave.Membership) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *ms
	m.memberships[ms.ID] = &cp
	return nil
}

func (m *Memory) GetMembership(_ context.Context, userID leave.UserID, planID leave.PlanID) (*leave.Membership, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, ms := range m.memberships {
		if ms.UserID == userID && ms.PlanID == planID &&
			(ms.Status == leave.MembershipActive || ms.Status == leave.MembershipPending) {
			cp := *ms
			return &cp, nil
		}
	}
	return nil, engine.ErrMembershipNotFound
}

func (m *Memory) GetMembershipByID(_ context.Context, id leave.MembershipID) (*leave.Membership, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ms, ok := m.memberships[id]
	if !ok {
		return nil, engine.ErrMembershipNotFound
	}
	cp := *ms
	return &cp, nil
}

func (m *Memory) ListMemberships(_ context.Context, userID leave.UserID) ([]*leave.Membership, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*leave.Membership
	for _, ms := range m.memberships {
		if ms.UserID == userID {
			cp := *ms
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) ListExpiredMemberships(_ context.Context, asOf engine.Date) ([]*leave.Membership, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*leave.Membership
	for _, ms := range m.memberships {
		if ms.Status == leave.MembershipActive && !ms.SubscriptionEnd.IsZero() && ms.SubscriptionEnd.Before(asOf) {
			cp := *ms
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// UpdateMembership applies the write only when the caller's version matches
// the stored one, then bumps the version.
func (m *Memory) UpdateMembership(_ context.Context, ms *leave.Membership) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.memberships[ms.ID]
	if !ok {
		return engine.ErrMembershipNotFound
	}
	if cur.Version != ms.Version {
		return engine.ErrConcurrentModification
	}
	cp := *ms
	cp.Version++
	m.memberships[ms.ID] = &cp
	ms.Version = cp.Version
	return nil
}

// ---- Off days ----

func (m *Memory) SaveOffDay(_ context.Context, o *leave.MessOffDay) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *o
	m.offDays[o.ID] = &cp
	return nil
}

func (m *Memory) GetOffDay(_ context.Context, id string) (*leave.MessOffDay, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	o, ok := m.offDays[id]
	if !ok {
		return nil, engine.ErrOffDayNotFound
	}
	cp := *o
	return &cp, nil
}

func (m *Memory) UpdateOffDay(_ context.Context, o *leave.MessOffDay) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.offDays[o.ID]; !ok {
		return engine.ErrOffDayNotFound
	}
	cp := *o
	m.offDays[o.ID] = &cp
	return nil
}

func (m *Memory) ListOffDays(_ context.Context, messID leave.MessID, w engine.Window) ([]*leave.MessOffDay, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*leave.MessOffDay
	for _, o := range m.offDays {
		if o.MessID != messID {
			continue
		}
		span := engine.Window{Start: o.Start, End: o.End}
		if span.Intersects(w) {
			cp := *o
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out, nil
}

// ---- Extension tracking ----

func (m *Memory) AppendTracking(_ context.Context, e leave.ExtensionTrackingEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := trackKey{LeaveID: e.LeaveID, PlanID: e.PlanID, Revision: e.Revision}
	if m.trackKeys[k] {
		return engine.ErrDuplicateTracking
	}
	m.tracking[e.LeaveID] = append(m.tracking[e.LeaveID], e)
	m.trackKeys[k] = true
	return nil
}

func (m *Memory) ListTracking(_ context.Context, leaveID leave.LeaveID) ([]leave.ExtensionTrackingEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]leave.ExtensionTrackingEntry, len(m.tracking[leaveID]))
	copy(out, m.tracking[leaveID])
	return out, nil
}

func (m *Memory) TrackingExists(_ context.Context, leaveID leave.LeaveID, planID leave.PlanID, revision int) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.trackKeys[trackKey{LeaveID: leaveID, PlanID: planID, Revision: revision}], nil
}

// cloneLeave deep-copies the fields that alias mutable memory.
func cloneLeave(l *leave.LeaveRequest) *leave.LeaveRequest {
	cp := *l
	cp.PlanIDs = append([]leave.PlanID{}, l.PlanIDs...)
	if l.MealBreakdown != nil {
		cp.MealBreakdown = make(map[engine.MealType]int, len(l.MealBreakdown))
		for k, v := range l.MealBreakdown {
			cp.MealBreakdown[k] = v
		}
	}
	cp.PlanBreakdowns = make([]leave.PlanBreakdown, len(l.PlanBreakdowns))
	for i, b := range l.PlanBreakdowns {
		b.Reasons = append([]string{}, b.Reasons...)
		cp.PlanBreakdowns[i] = b
	}
	return &cp
}

// =============================================================================
// TRANSACTIONAL MEMORY STORE
// =============================================================================

// TxMemory wraps Memory with transaction support, simulated with a
// snapshot + rollback on error.
type TxMemory struct {
	*Memory
	txMu sync.Mutex
}

func NewTxMemory() *TxMemory {
	return &TxMemory{Memory: NewMemory()}
}

// WithTx executes fn against the live store and restores the snapshot when
// fn fails. Units are serialized; nested WithTx is not supported.
func (tm *TxMemory) WithTx(_ context.Context, fn func(leave.Store) error) error {
	tm.txMu.Lock()
	defer tm.txMu.Unlock()

	snap := tm.snapshot()
	if err := fn(tm.Memory); err != nil {
		tm.restore(snap)
		return err
	}
	return nil
}

type memorySnapshot struct {
	leaves      map[leave.LeaveID]*leave.LeaveRequest
	plans       map[leave.PlanID]*leave.MealPlan
	memberships map[leave.MembershipID]*leave.Membership
	offDays     map[string]*leave.MessOffDay
	tracking    map[leave.LeaveID][]leave.ExtensionTrackingEntry
	trackKeys   map[trackKey]bool
}

func (tm *TxMemory) snapshot() memorySnapshot {
	tm.mu.RLock()
	defer tm.mu.RUnlock()

	s := memorySnapshot{
		leaves:      make(map[leave.LeaveID]*leave.LeaveRequest, len(tm.leaves)),
		plans:       make(map[leave.PlanID]*leave.MealPlan, len(tm.plans)),
		memberships: make(map[leave.MembershipID]*leave.Membership, len(tm.memberships)),
		offDays:     make(map[string]*leave.MessOffDay, len(tm.offDays)),
		tracking:    make(map[leave.LeaveID][]leave.ExtensionTrackingEntry, len(tm.tracking)),
		trackKeys:   make(map[trackKey]bool, len(tm.trackKeys)),
	}
	for k, v := range tm.leaves {
		s.leaves[k] = cloneLeave(v)
	}
	for k, v := range tm.plans {
		cp := *v
		s.plans[k] = &cp
	}
	for k, v := range tm.memberships {
		cp := *v
		s.memberships[k] = &cp
	}
	for k, v := range tm.offDays {
		cp := *v
		s.offDays[k] = &cp
	}
	for k, v := range tm.tracking {
		s.tracking[k] = append([]leave.ExtensionTrackingEntry{}, v...)
	}
	for k, v := range tm.trackKeys {
		s.trackKeys[k] = v
	}
	return s
}

func (tm *TxMemory) restore(s memorySnapshot) {
	tm.mu.Lock()
	defer tm.mu.Unlock()
	tm.leaves = s.leaves
	tm.plans = s.plans
	tm.memberships = s.memberships
	tm.offDays = s.offDays
	tm.tracking = s.tracking
	tm.trackKeys = s.trackKeys
}
