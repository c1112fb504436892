package reconcile

import (
	"github.com/shopspring/decimal"

	"budgetoffice/internal/logger"
	"budgetoffice/internal/models"
)

// BudgetStore is the storage a Reconciler reads and writes budgets through.
type BudgetStore interface {
	// FindBudget returns the budget tracking the pair, or nil when there is none.
	FindBudget(userID, categoryID string) (*models.Budget, error)
	// SaveSpend persists budget.SpendAmount.
	SaveSpend(budget *models.Budget) error
}

// Reconciler applies transaction mutations to budget envelopes.
type Reconciler struct {
	store BudgetStore
}

// New returns a Reconciler backed by store.
func New(store BudgetStore) *Reconciler {
	return &Reconciler{store: store}
}

// OnCreate reconciles a newly created transaction.
func (r *Reconciler) OnCreate(tx Snapshot) error {
	return r.apply("create", PlanCreate(tx))
}

// OnUpdate reconciles an edited transaction given its amount and category
// before the edit.
func (r *Reconciler) OnUpdate(tx Snapshot, originalAmount decimal.Decimal, originalCategoryID string) error {
	return r.apply("update", PlanUpdate(tx, originalAmount, originalCategoryID))
}

// OnDelete reconciles a deleted transaction.
func (r *Reconciler) OnDelete(tx Snapshot) error {
	return r.apply("delete", PlanDelete(tx))
}

// OnRestore is a no-op: restoring a deleted transaction does not add its
// amount back to any budget.
func (r *Reconciler) OnRestore(Snapshot) error { return nil }

// OnForceDelete is a no-op: the spend was already reversed when the
// transaction was first deleted.
func (r *Reconciler) OnForceDelete(Snapshot) error { return nil }

func (r *Reconciler) apply(event string, plan []Adjustment) error {
	log := logger.Named("reconcile")
	for _, adj := range plan {
		budget, err := r.store.FindBudget(adj.UserID, adj.CategoryID)
		if err != nil {
			return err
		}
		if budget == nil {
			log.Debugw("no budget to reconcile",
				"event", event,
				"user_id", adj.UserID,
				"category_id", adj.CategoryID,
			)
			continue
		}

		before := budget.SpendAmount
		budget.SpendAmount = before.Add(adj.Delta)
		if err := r.store.SaveSpend(budget); err != nil {
			budget.SpendAmount = before
			return err
		}

		log.Debugw("budget reconciled",
			"event", event,
			"budget_id", budget.ID,
			"delta", adj.Delta.String(),
			"spend_amount", budget.SpendAmount.String(),
		)
	}
	return nil
}
