/*
proration.go - Forgone meals into money or subscription days

PURPOSE:
  Converts a plan's eligible missed meals into exactly one of two benefits:
  a monetary credit (estimated savings) or a subscription-length extension.
  A plan's outcome is extension-only or deduction-only, never both; one
  request may still extend one plan while earning a credit on another.

RATES:
  subscriptionDays = daysBetween(subStart, subEnd) + 1
  dailyRate        = paymentAmount / subscriptionDays
  perMealRate      = dailyRate / mealsPerDay

  Rates are kept at full decimal precision; only the final savings figure is
  rounded to two places. Rounding the per-meal rate first would turn a clean
  3000/30/3 x 9 into 299.97 instead of 300.00.
*/
package engine

import (
	"github.com/shopspring/decimal"
)

// ProrationInput carries one plan's pricing context and eligible meals.
type ProrationInput struct {
	PaymentAmount      decimal.Decimal
	SubStart           Date
	SubEnd             Date
	MealsPerDay        int
	EligibleMeals      int
	ExtendSubscription bool
}

// ProrationResult is one plan's monetary-or-extension outcome.
type ProrationResult struct {
	PerMealRate decimal.Decimal // full precision; round for display only

	// Deduction outcome (ExtendSubscription == false)
	DeductionMeals   int
	EstimatedSavings decimal.Decimal

	// Extension outcome (ExtendSubscription == true)
	ExtensionMeals int
	ExtensionDays  int
}

// Prorate converts eligible missed meals into the plan's configured benefit.
func Prorate(in ProrationInput) ProrationResult {
	res := ProrationResult{
		PerMealRate:      decimal.Zero,
		EstimatedSavings: decimal.Zero,
	}

	subDays := DaysBetween(in.SubStart, in.SubEnd) + 1
	if subDays > 0 && in.MealsPerDay > 0 {
		dailyRate := in.PaymentAmount.Div(decimal.NewFromInt(int64(subDays)))
		res.PerMealRate = dailyRate.Div(decimal.NewFromInt(int64(in.MealsPerDay)))
	}

	if in.EligibleMeals <= 0 {
		return res
	}

	if in.ExtendSubscription {
		res.ExtensionMeals = in.EligibleMeals
		res.ExtensionDays = CeilDiv(in.EligibleMeals, in.MealsPerDay)
		return res
	}

	res.DeductionMeals = in.EligibleMeals
	res.EstimatedSavings = res.PerMealRate.
		Mul(decimal.NewFromInt(int64(in.EligibleMeals))).
		Round(2)
	return res
}
