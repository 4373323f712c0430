package engine

// =============================================================================
// OFF-DAY SUPPRESSION INDEX - Mess-wide closures suppress meal counting
// =============================================================================

// OffDaySpan is a mess-wide closure covering one day or an inclusive range.
// A single-day span has Start == End and uses StartMeals as its selection.
// A ranged span uses the same boundary-day model as leave requests, applied
// in the opposite direction: suppression instead of inclusion.
type OffDaySpan struct {
	Start Date
	End   Date

	// Boundary selections. Empty means all three meal types.
	StartMeals MealSet
	EndMeals   MealSet
}

// SuppressionIndex maps a date to the meal types the mess is not serving
// that day. A meal present here is never counted as missed, regardless of
// the user's selection.
type SuppressionIndex map[Date]MealSet

// BuildSuppressionIndex folds all off-day spans intersecting the window into
// a per-date suppression set:
//   - single-day span: its selected meals on that date
//   - ranged span: StartMeals on the first date, EndMeals on the last date,
//     all three meal types on every date in between
//
// Off days only ever suppress; they never add meals.
func BuildSuppressionIndex(spans []OffDaySpan, w Window) SuppressionIndex {
	idx := make(SuppressionIndex)
	if !w.Valid() {
		return idx
	}

	for _, span := range spans {
		sw := Window{Start: span.Start, End: span.End}
		if !sw.Valid() || !sw.Intersects(w) {
			continue
		}

		if span.Start.Equal(span.End) {
			idx.add(span.Start, span.StartMeals.OrAll(), w)
			continue
		}

		idx.add(span.Start, span.StartMeals.OrAll(), w)
		idx.add(span.End, span.EndMeals.OrAll(), w)
		for d := span.Start.AddDays(1); d.Before(span.End); d = d.AddDays(1) {
			idx.add(d, AllMeals(), w)
		}
	}
	return idx
}

func (idx SuppressionIndex) add(d Date, meals MealSet, w Window) {
	if !w.Contains(d) {
		return
	}
	idx[d] = idx[d].Union(meals)
}

// Suppressed reports whether meal type t is suppressed on date d.
func (idx SuppressionIndex) Suppressed(d Date, t MealType) bool {
	return idx[d].Contains(t)
}
