// Package reconcile keeps budget envelopes' spend totals in step with the
// transactions recorded against them.
//
// For a (user, category) pair that has a budget, spend_amount equals the sum
// of the amounts of its live expense ("egreso") transactions. Income
// transactions never count. The pair's budget is looked up by user and
// category only; month and year play no part.
//
// Planning is pure: PlanCreate, PlanUpdate and PlanDelete turn a mutation
// into adjustments without touching storage. A Reconciler applies those
// adjustments through a BudgetStore, skipping pairs without a budget.
package reconcile

import (
	"github.com/shopspring/decimal"

	"budgetoffice/internal/models"
)

// Snapshot is a transaction's state after a mutation, together with the type
// of the category it currently belongs to.
type Snapshot struct {
	UserID       string
	CategoryID   string
	Amount       decimal.Decimal
	CategoryType models.CategoryType
}

// countsAsSpend reports whether the snapshot's category is an expense.
func (s Snapshot) countsAsSpend() bool {
	return s.CategoryType == models.CategoryTypeExpense
}

// Adjustment is a signed change to the spend of the budget tracking
// (UserID, CategoryID), if one exists.
type Adjustment struct {
	UserID     string
	CategoryID string
	Delta      decimal.Decimal
}

// PlanCreate returns the adjustments for a newly created transaction.
func PlanCreate(tx Snapshot) []Adjustment {
	if !tx.Amount.IsPositive() || !tx.countsAsSpend() {
		return nil
	}
	return []Adjustment{{UserID: tx.UserID, CategoryID: tx.CategoryID, Delta: tx.Amount}}
}

// PlanUpdate returns the adjustments for an edited transaction, given its
// amount and category before the edit.
//
// When the category changed, the original budget is credited back and the
// new budget is charged. Both steps look at the current category's type:
// moving an expense into an income category leaves the original budget's
// spend untouched. Both lookups use the transaction's current user.
func PlanUpdate(tx Snapshot, originalAmount decimal.Decimal, originalCategoryID string) []Adjustment {
	if !tx.countsAsSpend() {
		return nil
	}

	if tx.CategoryID == originalCategoryID {
		return compact([]Adjustment{{
			UserID:     tx.UserID,
			CategoryID: tx.CategoryID,
			Delta:      tx.Amount.Sub(originalAmount),
		}})
	}

	plan := []Adjustment{{
		UserID:     tx.UserID,
		CategoryID: originalCategoryID,
		Delta:      originalAmount.Neg(),
	}}
	if tx.Amount.IsPositive() {
		plan = append(plan, Adjustment{UserID: tx.UserID, CategoryID: tx.CategoryID, Delta: tx.Amount})
	}
	return compact(plan)
}

// PlanDelete returns the adjustments for a deleted transaction.
func PlanDelete(tx Snapshot) []Adjustment {
	if !tx.Amount.IsPositive() || !tx.countsAsSpend() {
		return nil
	}
	return []Adjustment{{UserID: tx.UserID, CategoryID: tx.CategoryID, Delta: tx.Amount.Neg()}}
}

// compact drops adjustments that would not change anything.
func compact(plan []Adjustment) []Adjustment {
	out := plan[:0]
	for _, a := range plan {
		if !a.Delta.IsZero() {
			out = append(out, a)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
