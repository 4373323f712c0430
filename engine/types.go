/*
Package engine provides the core leave decision engine for a mess
(subscription dining) service.

PURPOSE:
  This package contains the pure computation layer: given a requested leave
  window, a subscription window, a plan's meal configuration and leave rules,
  and the mess-wide off days, it decides how many meals are actually forgone
  and what they are worth. It holds no state and performs no I/O.

KEY CONCEPTS IN THIS FILE (types.go):
  - MealType: One of the three daily meals
  - MealSet:  Which meal types are selected for a day (exhaustively typed,
              not a free-form string list, so selection logic is checkable
              by the compiler)

DESIGN PRINCIPLES:
  1. Determinism: The same inputs always produce the same outputs; the only
     clock dependency is injected (see time.go).
  2. Precision: Uses decimal.Decimal for all money math.
  3. Purity: Persistence and orchestration live in the leave package.

SEE ALSO:
  - overlap.go:   Leave/subscription window clamping
  - offday.go:    Mess-wide suppression index
  - selection.go: Per-day missed-meal selection
  - rules.go:     Plan leave-policy evaluation
  - proration.go: Credit vs extension proration
*/
package engine

// =============================================================================
// MEAL TYPES
// =============================================================================

type MealType string

const (
	MealBreakfast MealType = "breakfast"
	MealLunch     MealType = "lunch"
	MealDinner    MealType = "dinner"
)

// AllMealTypes lists every meal type in serving order.
var AllMealTypes = []MealType{MealBreakfast, MealLunch, MealDinner}

// =============================================================================
// MEAL SET - Selection of meal types for a single day
// =============================================================================

// MealSet is a fixed-shape set of the three meal types. A per-day selection,
// a plan's enabled meal options, and an off-day suppression entry are all
// MealSets; the boundary-day rules operate on them symmetrically.
type MealSet struct {
	Breakfast bool `json:"breakfast"`
	Lunch     bool `json:"lunch"`
	Dinner    bool `json:"dinner"`
}

// NewMealSet builds a set from the given meal types.
func NewMealSet(types ...MealType) MealSet {
	var s MealSet
	for _, t := range types {
		switch t {
		case MealBreakfast:
			s.Breakfast = true
		case MealLunch:
			s.Lunch = true
		case MealDinner:
			s.Dinner = true
		}
	}
	return s
}

// AllMeals returns the set containing breakfast, lunch and dinner.
func AllMeals() MealSet {
	return MealSet{Breakfast: true, Lunch: true, Dinner: true}
}

func (s MealSet) Contains(t MealType) bool {
	switch t {
	case MealBreakfast:
		return s.Breakfast
	case MealLunch:
		return s.Lunch
	case MealDinner:
		return s.Dinner
	default:
		return false
	}
}

func (s MealSet) IsEmpty() bool { return !s.Breakfast && !s.Lunch && !s.Dinner }

func (s MealSet) Count() int {
	n := 0
	for _, t := range AllMealTypes {
		if s.Contains(t) {
			n++
		}
	}
	return n
}

// Union returns the set of meal types present in either set.
func (s MealSet) Union(o MealSet) MealSet {
	return MealSet{
		Breakfast: s.Breakfast || o.Breakfast,
		Lunch:     s.Lunch || o.Lunch,
		Dinner:    s.Dinner || o.Dinner,
	}
}

// Intersect returns the set of meal types present in both sets.
func (s MealSet) Intersect(o MealSet) MealSet {
	return MealSet{
		Breakfast: s.Breakfast && o.Breakfast,
		Lunch:     s.Lunch && o.Lunch,
		Dinner:    s.Dinner && o.Dinner,
	}
}

// OrAll returns the set unchanged unless it is empty, in which case every
// meal type is selected. Off-day records and boundary selections default to
// "all meals" when nothing was picked explicitly.
func (s MealSet) OrAll() MealSet {
	if s.IsEmpty() {
		return AllMeals()
	}
	return s
}

// Types returns the selected meal types in serving order.
func (s MealSet) Types() []MealType {
	var out []MealType
	for _, t := range AllMealTypes {
		if s.Contains(t) {
			out = append(out, t)
		}
	}
	return out
}
