package reconcile

import (
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"budgetoffice/internal/models"
)

// GormStore is a BudgetStore over a GORM handle, normally the *gorm.DB of
// the database transaction that also writes the transaction row.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore returns a GormStore using db.
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

// FindBudget returns the live budget for the pair with the lowest id, locking
// its row for update. SQLite ignores the lock clause.
func (s *GormStore) FindBudget(userID, categoryID string) (*models.Budget, error) {
	var budget models.Budget
	err := s.db.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("user_id = ? AND category_id = ?", userID, categoryID).
		Order("id ASC").
		Take(&budget).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &budget, nil
}

// SaveSpend writes the budget's spend_amount column.
func (s *GormStore) SaveSpend(budget *models.Budget) error {
	return s.db.Model(budget).Update("spend_amount", budget.SpendAmount).Error
}
