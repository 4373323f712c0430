/*
selection.go - Per-day missed-meal selection

PURPOSE:
  Decides, for each day of the leave/subscription overlap, which meal types
  count as missed. The first and last calendar days of a leave carry their
  own meal-type selections (a member might leave after lunch on day one and
  return before dinner on the last day); every day in between uses the
  default selection.

BOUNDARY-DAY RULES:
  day 0 (first):        start-day selection
  last day:             end-day selection, BUT ONLY IF the overlap genuinely
                        ends on the user's chosen end day
  everything else:      default (middle) selection

CLAMPED END:
  When the requested end date lies beyond the subscription end, the
  subscription's last covered day is an ordinary middle day: the user's true
  end-day selection belongs to a date outside this subscription's coverage.
  Treating the clamped day as an end day would under-count at subscription
  boundaries.

SINGLE-DAY OVERLAP:
  When the overlap is one day, the start-day selection wins and the end-day
  selection is ignored. This avoids double-selection ambiguity between the
  two boundary arrays on one calendar day; the behavior is pinned by tests.

SUPPRESSION:
  A meal the mess is not serving (off day) is never counted as missed, no
  matter what the user selected.
*/
package engine

// Selection holds a leave request's per-boundary meal-type choices.
type Selection struct {
	StartMeals  MealSet // first day of the leave
	EndMeals    MealSet // last day of the leave
	MiddleMeals MealSet // every day in between
}

// DayMeals records the meal types counted as missed on one date.
type DayMeals struct {
	Date  Date
	Meals MealSet
}

// MissedMeals is the outcome of meal selection over one overlap.
type MissedMeals struct {
	Total  int
	ByType map[MealType]int
	Days   []DayMeals
}

// CountMissedMeals walks the overlap day by day and applies the boundary-day
// selection rules, restricted to the plan's enabled meal types and reduced
// by off-day suppression.
func CountMissedMeals(enabled MealSet, ov OverlapResult, sel Selection, sup SuppressionIndex) MissedMeals {
	out := MissedMeals{ByType: make(map[MealType]int)}
	if ov.Days <= 0 {
		return out
	}

	for d := 0; d < ov.Days; d++ {
		date := ov.EffStart.AddDays(d)
		isFirst := d == 0
		isLast := d == ov.Days-1

		var dayMeals MealSet
		for _, t := range enabled.Types() {
			takeStart := isFirst && sel.StartMeals.Contains(t)
			takeEnd := !ov.ClampedEnd && isLast && ov.Days > 1 && sel.EndMeals.Contains(t)
			isMiddle := !isFirst && (!isLast || ov.ClampedEnd)
			takeMiddle := isMiddle && sel.MiddleMeals.Contains(t)

			if !(takeStart || takeEnd || takeMiddle) {
				continue
			}
			if sup.Suppressed(date, t) {
				continue
			}

			dayMeals = dayMeals.Union(NewMealSet(t))
			out.ByType[t]++
			out.Total++
		}

		if !dayMeals.IsEmpty() {
			out.Days = append(out.Days, DayMeals{Date: date, Meals: dayMeals})
		}
	}
	return out
}
