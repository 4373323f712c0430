/*
Package factory provides JSON to Go meal-plan conversion.

PURPOSE:
  Converts JSON plan definitions into leave.MealPlan objects. This enables
  plan configuration without code changes - mess operators can define plans
  in JSON, and the factory creates the proper Go structs.

JSON SCHEMA:
  {
    "id": "full-board",
    "mess_id": "mess-1",
    "name": "Full Board",
    "meals_per_day": 3,
    "meal_options": ["breakfast", "lunch", "dinner"],
    "pricing": {"amount": "3000", "period": "monthly"},
    "leave_rules": {
      "notice_hours": 24,
      "min_consecutive_days": 2,
      "max_leave_meals_enabled": true,
      "max_leave_meals": 30,
      "extend_subscription": false,
      "auto_approval": true
    }
  }

DEFAULTS:
  meals_per_day falls back to the meal_options count, and meal_options
  falls back to all three types when omitted. A plan with neither is
  rejected.
*/
package factory

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/messkit/leave-engine/engine"
	"github.com/messkit/leave-engine/leave"
)

// =============================================================================
// JSON SCHEMA TYPES
// =============================================================================

// PlanJSON is the JSON representation of a meal plan.
type PlanJSON struct {
	ID          string            `json:"id"`
	MessID      string            `json:"mess_id"`
	Name        string            `json:"name"`
	MealsPerDay int               `json:"meals_per_day,omitempty"`
	MealOptions []string          `json:"meal_options,omitempty"`
	Pricing     *PricingJSON      `json:"pricing,omitempty"`
	LeaveRules  engine.LeaveRules `json:"leave_rules"`
}

// PricingJSON represents a plan's price for one subscription period.
type PricingJSON struct {
	Amount string `json:"amount"`
	Period string `json:"period,omitempty"`
}

// =============================================================================
// PLAN FACTORY
// =============================================================================

// PlanFactory converts JSON plans to Go structs.
type PlanFactory struct{}

func NewPlanFactory() *PlanFactory {
	return &PlanFactory{}
}

// ParsePlan parses a JSON string into a MealPlan.
func (f *PlanFactory) ParsePlan(jsonStr string) (*leave.MealPlan, error) {
	var pj PlanJSON
	if err := json.Unmarshal([]byte(jsonStr), &pj); err != nil {
		return nil, fmt.Errorf("failed to parse plan JSON: %w", err)
	}
	return f.FromJSON(pj)
}

// FromJSON converts PlanJSON to a leave.MealPlan with defaults applied.
func (f *PlanFactory) FromJSON(pj PlanJSON) (*leave.MealPlan, error) {
	if pj.ID == "" {
		return nil, fmt.Errorf("plan id is required")
	}
	if pj.MessID == "" {
		return nil, fmt.Errorf("plan mess_id is required")
	}

	options, err := parseMealOptions(pj.MealOptions)
	if err != nil {
		return nil, err
	}

	mealsPerDay := pj.MealsPerDay
	if mealsPerDay == 0 {
		mealsPerDay = options.Count()
	}
	if mealsPerDay <= 0 {
		return nil, fmt.Errorf("plan %q has no meals per day", pj.ID)
	}

	pricing, err := parsePricing(pj.Pricing)
	if err != nil {
		return nil, fmt.Errorf("plan %q: %w", pj.ID, err)
	}

	return &leave.MealPlan{
		ID:          leave.PlanID(pj.ID),
		MessID:      leave.MessID(pj.MessID),
		Name:        pj.Name,
		MealsPerDay: mealsPerDay,
		MealOptions: options,
		Pricing:     pricing,
		LeaveRules:  pj.LeaveRules,
	}, nil
}

func parseMealOptions(names []string) (engine.MealSet, error) {
	if len(names) == 0 {
		return engine.AllMeals(), nil
	}
	var set engine.MealSet
	for _, n := range names {
		switch engine.MealType(n) {
		case engine.MealBreakfast:
			set.Breakfast = true
		case engine.MealLunch:
			set.Lunch = true
		case engine.MealDinner:
			set.Dinner = true
		default:
			return engine.MealSet{}, fmt.Errorf("unknown meal option %q", n)
		}
	}
	return set, nil
}

func parsePricing(pj *PricingJSON) (leave.Pricing, error) {
	if pj == nil {
		return leave.Pricing{Amount: decimal.Zero, Period: "monthly"}, nil
	}
	amount, err := decimal.NewFromString(pj.Amount)
	if err != nil {
		return leave.Pricing{}, fmt.Errorf("invalid pricing amount %q: %w", pj.Amount, err)
	}
	period := pj.Period
	if period == "" {
		period = "monthly"
	}
	return leave.Pricing{Amount: amount, Period: period}, nil
}
