package engine

// =============================================================================
// OVERLAP CALCULATOR - Clamp a leave window to a subscription window
// =============================================================================

// ReasonNoOverlap is recorded on a plan breakdown when the requested leave
// does not touch the subscription's active window.
const ReasonNoOverlap = "No overlap with subscription period"

// OverlapResult is the clamped intersection of a leave window and a
// subscription window.
type OverlapResult struct {
	EffStart Date
	EffEnd   Date
	Days     int

	// ClampedEnd is set when the requested leave end lies beyond the
	// subscription end. The subscription's last covered day is then NOT the
	// user's chosen end day, so end-day meal selection must not apply to it
	// (see selection.go).
	ClampedEnd bool
}

// Overlap clamps the requested leave window to the subscription window.
// Both windows are inclusive day ranges. A disjoint pair is not an error:
// it yields Days == 0 and the caller records ReasonNoOverlap.
//
// A subscription with no recorded window defaults to the leave window
// itself; callers pass that default in.
func Overlap(leave, sub Window) OverlapResult {
	effStart := LaterOf(leave.Start, sub.Start)
	effEnd := EarlierOf(leave.End, sub.End)

	res := OverlapResult{
		EffStart:   effStart,
		EffEnd:     effEnd,
		ClampedEnd: leave.End.After(sub.End),
	}
	if effEnd.Before(effStart) {
		return res // zero days
	}
	res.Days = DaysBetween(effStart, effEnd) + 1
	return res
}
