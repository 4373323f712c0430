/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:
  Provides pre-built scenarios that populate the store with realistic data
  for testing and demos. Each scenario creates plans, memberships and off
  days that demonstrate specific engine features.

AVAILABLE SCENARIOS:
  basic-mess:   One deduction plan and one extension plan, auto approval
  strict-mess:  Plans with notice period, minimum days and meal caps

USAGE VIA API:
  POST /api/scenarios/load
  {"scenario_id": "basic-mess"}

NOTE:
  Scenarios write fresh records with fixed IDs; loading one twice upserts
  plans but appends memberships. Only use in development/demo environments.
*/
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/messkit/leave-engine/engine"
	"github.com/messkit/leave-engine/leave"
)

// ScenarioDTO describes one loadable scenario.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// LoadScenarioRequest selects a scenario.
type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id" validate:"required"`
}

var scenarios = []ScenarioDTO{
	{
		ID:          "basic-mess",
		Name:        "Basic Mess",
		Description: "Deduction and extension plans with auto approval",
	},
	{
		ID:          "strict-mess",
		Name:        "Strict Mess",
		Description: "Notice period, minimum consecutive days and meal caps",
	},
}

// SeedDemo loads the basic scenario on startup when configured.
func (h *Handler) SeedDemo(ctx context.Context) error {
	return h.loadBasicMessScenario(ctx)
}

// ListScenarios returns available demo scenarios.
// GET /api/scenarios
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// LoadScenario populates the store with a demo scenario.
// POST /api/scenarios/load
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	var err error
	switch req.ScenarioID {
	case "basic-mess":
		err = h.loadBasicMessScenario(r.Context())
	case "strict-mess":
		err = h.loadStrictMessScenario(r.Context())
	default:
		writeError(w, http.StatusBadRequest, "Unknown scenario", nil)
		return
	}
	if err != nil {
		writeDomainError(w, "Failed to load scenario", err)
		return
	}

	h.Logger.Info().Str("scenario", req.ScenarioID).Msg("scenario loaded")
	writeJSON(w, http.StatusOK, map[string]string{"loaded": req.ScenarioID})
}

// loadBasicMessScenario creates a mess with one deduction plan and one
// extension plan, both auto-approving, and a subscribed demo user.
func (h *Handler) loadBasicMessScenario(ctx context.Context) error {
	subStart := engine.DateOf(time.Now().UTC())
	subEnd := subStart.AddDays(29)

	full := &leave.MealPlan{
		ID:          "basic-full-board",
		MessID:      "demo-mess",
		Name:        "Full Board",
		MealsPerDay: 3,
		MealOptions: engine.AllMeals(),
		Pricing:     leave.Pricing{Amount: decimal.NewFromInt(3000), Period: "monthly"},
		LeaveRules:  engine.LeaveRules{AutoApproval: true},
	}
	extend := &leave.MealPlan{
		ID:          "basic-dinner-extend",
		MessID:      "demo-mess",
		Name:        "Dinner Only (Extending)",
		MealsPerDay: 1,
		MealOptions: engine.NewMealSet(engine.MealDinner),
		Pricing:     leave.Pricing{Amount: decimal.NewFromInt(1200), Period: "monthly"},
		LeaveRules:  engine.LeaveRules{ExtendSubscription: true, AutoApproval: true},
	}
	for _, p := range []*leave.MealPlan{full, extend} {
		if err := h.Store.SavePlan(ctx, p); err != nil {
			return err
		}
	}

	for i, p := range []*leave.MealPlan{full, extend} {
		m := &leave.Membership{
			ID:                leave.MembershipID([]string{"demo-member-full", "demo-member-extend"}[i]),
			UserID:            "demo-user",
			MessID:            "demo-mess",
			PlanID:            p.ID,
			Status:            leave.MembershipActive,
			SubscriptionStart: subStart,
			SubscriptionEnd:   subEnd,
			PaymentAmount:     p.Pricing.Amount,
			CreatedAt:         time.Now().UTC(),
		}
		if err := h.Store.SaveMembership(ctx, m); err != nil {
			return err
		}
	}
	return nil
}

// loadStrictMessScenario creates plans that exercise every policy knob.
func (h *Handler) loadStrictMessScenario(ctx context.Context) error {
	subStart := engine.DateOf(time.Now().UTC())
	subEnd := subStart.AddDays(29)

	strict := &leave.MealPlan{
		ID:          "strict-full-board",
		MessID:      "strict-mess",
		Name:        "Full Board (Strict)",
		MealsPerDay: 3,
		MealOptions: engine.AllMeals(),
		Pricing:     leave.Pricing{Amount: decimal.NewFromInt(4500), Period: "monthly"},
		LeaveRules: engine.LeaveRules{
			NoticeHours:          24,
			MinConsecutiveDays:   2,
			LeaveLimitsEnabled:   true,
			MaxLeaveMealsEnabled: true,
			MaxLeaveMeals:        15,
		},
	}
	lastMinute := &leave.MealPlan{
		ID:          "strict-lunch",
		MessID:      "strict-mess",
		Name:        "Lunch Only (Two Hour Notice)",
		MealsPerDay: 1,
		MealOptions: engine.NewMealSet(engine.MealLunch),
		Pricing:     leave.Pricing{Amount: decimal.NewFromInt(1500), Period: "monthly"},
		LeaveRules: engine.LeaveRules{
			RequireTwoHourNotice: true,
			ExtendSubscription:   true,
		},
	}
	for _, p := range []*leave.MealPlan{strict, lastMinute} {
		if err := h.Store.SavePlan(ctx, p); err != nil {
			return err
		}
	}

	for i, p := range []*leave.MealPlan{strict, lastMinute} {
		m := &leave.Membership{
			ID:                leave.MembershipID([]string{"strict-member-full", "strict-member-lunch"}[i]),
			UserID:            "strict-user",
			MessID:            "strict-mess",
			PlanID:            p.ID,
			Status:            leave.MembershipActive,
			SubscriptionStart: subStart,
			SubscriptionEnd:   subEnd,
			PaymentAmount:     p.Pricing.Amount,
			CreatedAt:         time.Now().UTC(),
		}
		if err := h.Store.SaveMembership(ctx, m); err != nil {
			return err
		}
	}

	// A mid-month closure so previews show suppression.
	o := &leave.MessOffDay{
		ID:         "strict-festival-closure",
		MessID:     "strict-mess",
		Start:      subStart.AddDays(10),
		End:        subStart.AddDays(11),
		StartMeals: engine.NewMealSet(engine.MealDinner),
		EndMeals:   engine.AllMeals(),
		Status:     leave.OffDayActive,
		CreatedAt:  time.Now().UTC(),
	}
	return h.Store.SaveOffDay(ctx, o)
}
