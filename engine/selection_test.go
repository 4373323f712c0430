package engine_test

import (
	"testing"

	"github.com/messkit/leave-engine/engine"
)

func allSel() engine.Selection {
	return engine.Selection{
		StartMeals:  engine.AllMeals(),
		EndMeals:    engine.AllMeals(),
		MiddleMeals: engine.AllMeals(),
	}
}

func noSup() engine.SuppressionIndex {
	return engine.SuppressionIndex{}
}

func TestCountMissedMeals_FullSelectionAllDays(t *testing.T) {
	// GIVEN: 5-day overlap, all meals selected everywhere
	ov := engine.Overlap(window(10, 14), window(1, 31))

	// WHEN
	missed := engine.CountMissedMeals(engine.AllMeals(), ov, allSel(), noSup())

	// THEN: 5 days x 3 meals
	if missed.Total != 15 {
		t.Errorf("expected 15 missed meals, got %d", missed.Total)
	}
	for _, mt := range engine.AllMealTypes {
		if missed.ByType[mt] != 5 {
			t.Errorf("expected 5 %s, got %d", mt, missed.ByType[mt])
		}
	}
}

func TestCountMissedMeals_BoundaryDaySelections(t *testing.T) {
	// GIVEN: leaving after lunch on day one, back before dinner on the last
	// day: start {dinner}, end {breakfast, lunch}, middle all three
	sel := engine.Selection{
		StartMeals:  engine.NewMealSet(engine.MealDinner),
		EndMeals:    engine.NewMealSet(engine.MealBreakfast, engine.MealLunch),
		MiddleMeals: engine.AllMeals(),
	}
	ov := engine.Overlap(window(10, 13), window(1, 31)) // 4 days

	missed := engine.CountMissedMeals(engine.AllMeals(), ov, sel, noSup())

	// THEN: 1 + 3 + 3 + 2
	if missed.Total != 9 {
		t.Errorf("expected 9 missed meals, got %d", missed.Total)
	}
	if missed.ByType[engine.MealDinner] != 3 {
		t.Errorf("expected 3 dinners (start day + 2 middles), got %d", missed.ByType[engine.MealDinner])
	}
}

func TestCountMissedMeals_ClampedEndIsMiddleDay(t *testing.T) {
	// GIVEN: the requested end lies past the subscription, so the last
	// covered day is NOT the user's chosen end day
	sel := engine.Selection{
		StartMeals:  engine.AllMeals(),
		EndMeals:    engine.NewMealSet(engine.MealBreakfast), // must not apply
		MiddleMeals: engine.AllMeals(),
	}
	ov := engine.Overlap(window(18, 25), window(1, 20)) // 3 days, clamped

	missed := engine.CountMissedMeals(engine.AllMeals(), ov, sel, noSup())

	// THEN: the clamped last day counts as a middle day (all 3 meals)
	if missed.Total != 9 {
		t.Errorf("expected 9 missed meals on clamped overlap, got %d", missed.Total)
	}
}

func TestCountMissedMeals_SingleDayStartSelectionWins(t *testing.T) {
	// GIVEN: one-day overlap with conflicting boundary selections
	sel := engine.Selection{
		StartMeals:  engine.NewMealSet(engine.MealLunch),
		EndMeals:    engine.AllMeals(),
		MiddleMeals: engine.AllMeals(),
	}
	ov := engine.Overlap(window(10, 10), window(1, 31))

	missed := engine.CountMissedMeals(engine.AllMeals(), ov, sel, noSup())

	// THEN: only the start-day selection applies
	if missed.Total != 1 {
		t.Errorf("expected 1 missed meal, got %d", missed.Total)
	}
	if missed.ByType[engine.MealLunch] != 1 {
		t.Errorf("expected the lunch selection to win, got %+v", missed.ByType)
	}
}

func TestCountMissedMeals_PlanMealOptionsRestrict(t *testing.T) {
	// GIVEN: a dinner-only plan
	ov := engine.Overlap(window(10, 12), window(1, 31))

	missed := engine.CountMissedMeals(engine.NewMealSet(engine.MealDinner), ov, allSel(), noSup())

	if missed.Total != 3 {
		t.Errorf("expected 3 dinners for a dinner-only plan, got %d", missed.Total)
	}
	if missed.ByType[engine.MealBreakfast] != 0 || missed.ByType[engine.MealLunch] != 0 {
		t.Errorf("plan must not count meals it does not serve: %+v", missed.ByType)
	}
}

func TestCountMissedMeals_OffDaySuppressionDominates(t *testing.T) {
	// GIVEN: the mess is closed for lunch on the middle day
	spans := []engine.OffDaySpan{{
		Start:      date(11),
		End:        date(11),
		StartMeals: engine.NewMealSet(engine.MealLunch),
	}}
	w := window(10, 12)
	sup := engine.BuildSuppressionIndex(spans, w)
	ov := engine.Overlap(w, window(1, 31))

	missed := engine.CountMissedMeals(engine.AllMeals(), ov, allSel(), sup)

	// THEN: that lunch is not missed even though the user selected it
	if missed.Total != 8 {
		t.Errorf("expected 8 missed meals with one suppressed, got %d", missed.Total)
	}
	if missed.ByType[engine.MealLunch] != 2 {
		t.Errorf("expected 2 lunches, got %d", missed.ByType[engine.MealLunch])
	}
}

func TestBuildSuppressionIndex_RangedSpanBoundaries(t *testing.T) {
	// GIVEN: a closure from the 10th (dinner onward) to the 13th (through
	// lunch)
	spans := []engine.OffDaySpan{{
		Start:      date(10),
		End:        date(13),
		StartMeals: engine.NewMealSet(engine.MealDinner),
		EndMeals:   engine.NewMealSet(engine.MealBreakfast, engine.MealLunch),
	}}
	w := window(1, 31)

	sup := engine.BuildSuppressionIndex(spans, w)

	if !sup.Suppressed(date(10), engine.MealDinner) || sup.Suppressed(date(10), engine.MealLunch) {
		t.Error("first day must suppress only its start selection")
	}
	for _, mt := range engine.AllMealTypes {
		if !sup.Suppressed(date(11), mt) || !sup.Suppressed(date(12), mt) {
			t.Errorf("interior days must suppress all meals, missing %s", mt)
		}
	}
	if !sup.Suppressed(date(13), engine.MealLunch) || sup.Suppressed(date(13), engine.MealDinner) {
		t.Error("last day must suppress only its end selection")
	}
}

func TestBuildSuppressionIndex_EmptySelectionMeansAllMeals(t *testing.T) {
	spans := []engine.OffDaySpan{{Start: date(10), End: date(10)}}
	sup := engine.BuildSuppressionIndex(spans, window(1, 31))

	for _, mt := range engine.AllMealTypes {
		if !sup.Suppressed(date(10), mt) {
			t.Errorf("empty off-day selection must suppress all meals, missing %s", mt)
		}
	}
}

func TestBuildSuppressionIndex_OverlappingSpansUnion(t *testing.T) {
	spans := []engine.OffDaySpan{
		{Start: date(10), End: date(10), StartMeals: engine.NewMealSet(engine.MealBreakfast)},
		{Start: date(10), End: date(10), StartMeals: engine.NewMealSet(engine.MealDinner)},
	}
	sup := engine.BuildSuppressionIndex(spans, window(1, 31))

	if !sup.Suppressed(date(10), engine.MealBreakfast) || !sup.Suppressed(date(10), engine.MealDinner) {
		t.Error("overlapping spans must union their suppressed meals")
	}
	if sup.Suppressed(date(10), engine.MealLunch) {
		t.Error("lunch was not in either span")
	}
}
