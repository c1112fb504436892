package testutil

import (
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"budgetoffice/internal/models"

	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// counter provides unique values across fixtures within a test run.
var counter atomic.Int64

func nextID() int64 {
	return counter.Add(1)
}

// CreateTestUser creates a user with a hashed password and unique email.
func CreateTestUser(t *testing.T, db *gorm.DB) *models.User {
	t.Helper()
	email := fmt.Sprintf("user%d@test.com", nextID())
	return CreateTestUserWithEmail(t, db, email)
}

// CreateTestUserWithEmail creates a user with the given email.
func CreateTestUserWithEmail(t *testing.T, db *gorm.DB, email string) *models.User {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("failed to hash password: %v", err)
	}

	user := &models.User{
		Email:    email,
		Password: string(hash),
		IsActive: true,
	}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("failed to create test user: %v", err)
	}
	return user
}

// CreateTestCategory creates a category of the given type.
func CreateTestCategory(t *testing.T, db *gorm.DB, categoryType models.CategoryType) *models.Category {
	t.Helper()

	category := &models.Category{
		Name: fmt.Sprintf("Test Category %d", nextID()),
		Type: categoryType,
	}
	if err := db.Create(category).Error; err != nil {
		t.Fatalf("failed to create test category: %v", err)
	}
	return category
}

// CreateTestBudget creates a budget for the pair with the given assigned
// amount and spend, for the current month.
func CreateTestBudget(t *testing.T, db *gorm.DB, userID, categoryID, assigned, spend string) *models.Budget {
	t.Helper()

	now := time.Now()
	budget := &models.Budget{
		UserID:         userID,
		CategoryID:     categoryID,
		Title:          fmt.Sprintf("Test Budget %d", nextID()),
		AssignedAmount: decimal.RequireFromString(assigned),
		SpendAmount:    decimal.RequireFromString(spend),
		Month:          models.MonthOf(now),
		Year:           now.Year(),
	}
	if err := db.Create(budget).Error; err != nil {
		t.Fatalf("failed to create test budget: %v", err)
	}
	return budget
}

// CreateTestTransaction inserts a transaction row directly, without any
// budget reconciliation.
func CreateTestTransaction(t *testing.T, db *gorm.DB, userID, categoryID, amount string) *models.Transaction {
	t.Helper()

	tx := &models.Transaction{
		UserID:          userID,
		CategoryID:      categoryID,
		Amount:          decimal.RequireFromString(amount),
		Description:     fmt.Sprintf("Test Transaction %d", nextID()),
		TransactionDate: time.Now().Truncate(24 * time.Hour),
	}
	if err := db.Create(tx).Error; err != nil {
		t.Fatalf("failed to create test transaction: %v", err)
	}
	return tx
}

// ReloadBudget reads the budget back from the database, trashed rows included.
func ReloadBudget(t *testing.T, db *gorm.DB, id string) *models.Budget {
	t.Helper()

	var budget models.Budget
	if err := db.Unscoped().First(&budget, "id = ?", id).Error; err != nil {
		t.Fatalf("failed to reload budget %s: %v", id, err)
	}
	return &budget
}
