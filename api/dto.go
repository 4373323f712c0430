/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract, allowing:
  - Field renaming without breaking clients
  - API-specific validation
  - Version evolution

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

VALIDATION:
  Request types carry go-playground/validator tags; handlers run them
  through the shared validator before touching domain logic. Dates travel
  as ISO strings (2006-01-02) and are parsed at the boundary.
*/
package api

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/messkit/leave-engine/engine"
	"github.com/messkit/leave-engine/leave"
)

var validate = validator.New()

// =============================================================================
// REQUEST TYPES
// =============================================================================

// CreateLeaveRequest is the request to create (or preview) a leave.
type CreateLeaveRequest struct {
	UserID  string   `json:"user_id" validate:"required"`
	MessID  string   `json:"mess_id" validate:"required"`
	PlanIDs []string `json:"plan_ids" validate:"required,min=1,dive,required"`

	StartDate string `json:"start_date" validate:"required,datetime=2006-01-02"`
	EndDate   string `json:"end_date" validate:"required,datetime=2006-01-02"`

	// Empty sets default to all enabled meals for that position.
	StartMeals  engine.MealSet `json:"start_meals"`
	EndMeals    engine.MealSet `json:"end_meals"`
	MiddleMeals engine.MealSet `json:"middle_meals"`

	Reason string `json:"reason"`
}

// ToInput converts the request into lifecycle input. Validation has already
// checked the date format.
func (r *CreateLeaveRequest) ToInput() (leave.LeaveInput, error) {
	start, err := engine.ParseDate(r.StartDate)
	if err != nil {
		return leave.LeaveInput{}, err
	}
	end, err := engine.ParseDate(r.EndDate)
	if err != nil {
		return leave.LeaveInput{}, err
	}
	planIDs := make([]leave.PlanID, len(r.PlanIDs))
	for i, p := range r.PlanIDs {
		planIDs[i] = leave.PlanID(p)
	}
	return leave.LeaveInput{
		UserID:      leave.UserID(r.UserID),
		MessID:      leave.MessID(r.MessID),
		PlanIDs:     planIDs,
		Start:       start,
		End:         end,
		StartMeals:  r.StartMeals,
		EndMeals:    r.EndMeals,
		MiddleMeals: r.MiddleMeals,
		Reason:      r.Reason,
	}, nil
}

// EditEndDateRequest changes a leave's end date.
type EditEndDateRequest struct {
	EndDate string `json:"end_date" validate:"required,datetime=2006-01-02"`
}

// ApproveLeaveRequest carries the approver identity.
type ApproveLeaveRequest struct {
	ApprovedBy string `json:"approved_by" validate:"required"`
}

// RejectLeaveRequest carries the rejection reason.
type RejectLeaveRequest struct {
	Reason string `json:"reason" validate:"required"`
}

// CreateMembershipRequest enrolls a user in a plan.
type CreateMembershipRequest struct {
	UserID            string `json:"user_id" validate:"required"`
	MessID            string `json:"mess_id" validate:"required"`
	PlanID            string `json:"plan_id" validate:"required"`
	SubscriptionStart string `json:"subscription_start" validate:"omitempty,datetime=2006-01-02"`
	SubscriptionEnd   string `json:"subscription_end" validate:"omitempty,datetime=2006-01-02"`
	PaymentAmount     string `json:"payment_amount" validate:"required"`
}

// CreateOffDayRequest declares a mess closure.
type CreateOffDayRequest struct {
	MessID    string `json:"mess_id" validate:"required"`
	StartDate string `json:"start_date" validate:"required,datetime=2006-01-02"`
	EndDate   string `json:"end_date" validate:"omitempty,datetime=2006-01-02"`

	StartMeals engine.MealSet `json:"start_meals"`
	EndMeals   engine.MealSet `json:"end_meals"`
}

// =============================================================================
// RESPONSE TYPES
// =============================================================================

// LeaveDTO represents a leave request in API responses.
type LeaveDTO struct {
	ID      string   `json:"id"`
	UserID  string   `json:"user_id"`
	MessID  string   `json:"mess_id"`
	PlanIDs []string `json:"plan_ids"`

	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`

	StartMeals  engine.MealSet `json:"start_meals"`
	EndMeals    engine.MealSet `json:"end_meals"`
	MiddleMeals engine.MealSet `json:"middle_meals"`

	Reason string `json:"reason,omitempty"`
	Status string `json:"status"`

	TotalMissedMeals int                      `json:"total_missed_meals"`
	MealBreakdown    map[engine.MealType]int  `json:"meal_breakdown,omitempty"`
	PlanBreakdowns   []PlanBreakdownDTO       `json:"plan_breakdowns"`
	EstimatedSavings string                   `json:"estimated_savings"`
	ExtensionMeals   int                      `json:"extension_meals"`
	ExtensionDays    int                      `json:"extension_days"`
	IgnoredDays      int                      `json:"ignored_days,omitempty"`

	OriginalEndDate  string `json:"original_end_date"`
	Revision         int    `json:"revision"`
	ExtensionApplied bool   `json:"extension_applied"`
	ApprovedBy       string `json:"approved_by,omitempty"`
	RejectionReason  string `json:"rejection_reason,omitempty"`

	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

// PlanBreakdownDTO is the per-plan outcome in a leave response.
type PlanBreakdownDTO struct {
	PlanID                 string   `json:"plan_id"`
	EligibleDays           int      `json:"eligible_days"`
	EligibleMeals          int      `json:"eligible_meals"`
	DeductionEligibleMeals int      `json:"deduction_eligible_meals"`
	ExtendEligibleMeals    int      `json:"extend_eligible_meals"`
	ExtensionDays          int      `json:"extension_days"`
	EstimatedSavings       string   `json:"estimated_savings"`
	PerMealRate            string   `json:"per_meal_rate"`
	Blocked                bool     `json:"blocked"`
	Reasons                []string `json:"reasons,omitempty"`
}

// PreviewDTO is the result of a dry-run computation.
type PreviewDTO struct {
	TotalMissedMeals int                     `json:"total_missed_meals"`
	MealBreakdown    map[engine.MealType]int `json:"meal_breakdown,omitempty"`
	PlanBreakdowns   []PlanBreakdownDTO      `json:"plan_breakdowns"`
	EstimatedSavings string                  `json:"estimated_savings"`
	ExtensionMeals   int                     `json:"extension_meals"`
	ExtensionDays    int                     `json:"extension_days"`
	IgnoredDays      int                     `json:"ignored_days,omitempty"`
}

// MembershipDTO represents a membership in API responses.
type MembershipDTO struct {
	ID                  string `json:"id"`
	UserID              string `json:"user_id"`
	MessID              string `json:"mess_id"`
	PlanID              string `json:"plan_id"`
	Status              string `json:"status"`
	SubscriptionStart   string `json:"subscription_start,omitempty"`
	SubscriptionEnd     string `json:"subscription_end,omitempty"`
	PaymentAmount       string `json:"payment_amount"`
	LeaveExtensionMeals int    `json:"leave_extension_meals"`
}

// OffDayDTO represents a mess off day in API responses.
type OffDayDTO struct {
	ID         string         `json:"id"`
	MessID     string         `json:"mess_id"`
	StartDate  string         `json:"start_date"`
	EndDate    string         `json:"end_date"`
	StartMeals engine.MealSet `json:"start_meals"`
	EndMeals   engine.MealSet `json:"end_meals"`
	Status     string         `json:"status"`
}

// TrackingEntryDTO is one extension ledger record.
type TrackingEntryDTO struct {
	ID          string `json:"id"`
	LeaveID     string `json:"leave_id"`
	PlanID      string `json:"plan_id"`
	OriginalEnd string `json:"original_end"`
	NewEnd      string `json:"new_end"`
	Meals       int    `json:"meals"`
	Revision    int    `json:"revision"`
	AppliedAt   string `json:"applied_at"`
}

// ErrorResponse is the JSON error envelope.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// =============================================================================
// CONVERTERS
// =============================================================================

func toLeaveDTO(l *leave.LeaveRequest) LeaveDTO {
	planIDs := make([]string, len(l.PlanIDs))
	for i, p := range l.PlanIDs {
		planIDs[i] = string(p)
	}
	return LeaveDTO{
		ID:               string(l.ID),
		UserID:           string(l.UserID),
		MessID:           string(l.MessID),
		PlanIDs:          planIDs,
		StartDate:        l.Start.String(),
		EndDate:          l.End.String(),
		StartMeals:       l.StartMeals,
		EndMeals:         l.EndMeals,
		MiddleMeals:      l.MiddleMeals,
		Reason:           l.Reason,
		Status:           string(l.DisplayStatus()),
		TotalMissedMeals: l.TotalMissedMeals,
		MealBreakdown:    l.MealBreakdown,
		PlanBreakdowns:   toBreakdownDTOs(l.PlanBreakdowns),
		EstimatedSavings: l.EstimatedSavings.StringFixed(2),
		ExtensionMeals:   l.ExtensionMeals,
		ExtensionDays:    l.ExtensionDays,
		IgnoredDays:      l.IgnoredDays,
		OriginalEndDate:  l.OriginalEnd.String(),
		Revision:         l.Revision,
		ExtensionApplied: l.ExtensionApplied,
		ApprovedBy:       l.ApprovedBy,
		RejectionReason:  l.RejectionReason,
		CreatedAt:        l.CreatedAt.Format(time.RFC3339),
		UpdatedAt:        l.UpdatedAt.Format(time.RFC3339),
	}
}

func toBreakdownDTOs(brs []leave.PlanBreakdown) []PlanBreakdownDTO {
	out := make([]PlanBreakdownDTO, len(brs))
	for i, br := range brs {
		out[i] = PlanBreakdownDTO{
			PlanID:                 string(br.PlanID),
			EligibleDays:           br.EligibleDays,
			EligibleMeals:          br.EligibleMeals,
			DeductionEligibleMeals: br.DeductionEligibleMeals,
			ExtendEligibleMeals:    br.ExtendEligibleMeals,
			ExtensionDays:          br.ExtensionDays,
			EstimatedSavings:       br.EstimatedSavings.StringFixed(2),
			PerMealRate:            br.PerMealRate.Round(4).String(),
			Blocked:                br.Blocked,
			Reasons:                br.Reasons,
		}
	}
	return out
}

func toPreviewDTO(c *leave.Computation) PreviewDTO {
	return PreviewDTO{
		TotalMissedMeals: c.TotalMissedMeals,
		MealBreakdown:    c.MealBreakdown,
		PlanBreakdowns:   toBreakdownDTOs(c.PlanBreakdowns),
		EstimatedSavings: c.EstimatedSavings.StringFixed(2),
		ExtensionMeals:   c.ExtensionMeals,
		ExtensionDays:    c.ExtensionDays,
		IgnoredDays:      c.IgnoredDays,
	}
}

func toMembershipDTO(m *leave.Membership) MembershipDTO {
	dto := MembershipDTO{
		ID:                  string(m.ID),
		UserID:              string(m.UserID),
		MessID:              string(m.MessID),
		PlanID:              string(m.PlanID),
		Status:              string(m.Status),
		PaymentAmount:       m.PaymentAmount.StringFixed(2),
		LeaveExtensionMeals: m.LeaveExtensionMeals,
	}
	if !m.SubscriptionStart.IsZero() {
		dto.SubscriptionStart = m.SubscriptionStart.String()
	}
	if !m.SubscriptionEnd.IsZero() {
		dto.SubscriptionEnd = m.SubscriptionEnd.String()
	}
	return dto
}

func toOffDayDTO(o *leave.MessOffDay) OffDayDTO {
	return OffDayDTO{
		ID:         o.ID,
		MessID:     string(o.MessID),
		StartDate:  o.Start.String(),
		EndDate:    o.End.String(),
		StartMeals: o.StartMeals,
		EndMeals:   o.EndMeals,
		Status:     string(o.Status),
	}
}

func toTrackingDTOs(entries []leave.ExtensionTrackingEntry) []TrackingEntryDTO {
	out := make([]TrackingEntryDTO, len(entries))
	for i, e := range entries {
		out[i] = TrackingEntryDTO{
			ID:          e.ID,
			LeaveID:     string(e.LeaveID),
			PlanID:      string(e.PlanID),
			OriginalEnd: e.OriginalEnd.String(),
			NewEnd:      e.NewEnd.String(),
			Meals:       e.Meals,
			Revision:    e.Revision,
			AppliedAt:   e.AppliedAt.Format(time.RFC3339),
		}
	}
	return out
}
