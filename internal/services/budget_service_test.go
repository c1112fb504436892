package services

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"budgetoffice/internal/models"
	"budgetoffice/internal/pagination"
	"budgetoffice/internal/testutil"
)

const missingID = "0190a1b2-c3d4-7e5f-8a9b-000000000000"

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func decPtr(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

func TestCreateBudget(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewBudgetService(db, 2025)
		user := testutil.CreateTestUser(t, db)
		cat := testutil.CreateTestCategory(t, db, models.CategoryTypeExpense)

		budget, err := svc.CreateBudget(BudgetInput{
			UserID:         user.ID,
			CategoryID:     cat.ID,
			Title:          "Groceries March",
			AssignedAmount: dec("300.00"),
			Month:          "March",
		})
		testutil.AssertNoError(t, err)

		assert.NotEmpty(t, budget.ID)
		assert.Equal(t, 2025, budget.Year, "year defaults to the configured planning year")
		testutil.AssertDecimal(t, "0", budget.SpendAmount)
		testutil.AssertDecimal(t, "300", budget.Available())
		assert.Equal(t, models.AvailabilityOK, budget.Status())
	})

	t.Run("explicit_year", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewBudgetService(db, 2025)
		user := testutil.CreateTestUser(t, db)
		cat := testutil.CreateTestCategory(t, db, models.CategoryTypeExpense)

		budget, err := svc.CreateBudget(BudgetInput{
			UserID: user.ID, CategoryID: cat.ID, Title: "Rent", AssignedAmount: dec("900"), Month: "January", Year: 2026,
		})
		testutil.AssertNoError(t, err)
		assert.Equal(t, 2026, budget.Year)
	})

	t.Run("duplicates_allowed", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewBudgetService(db, 2025)
		user := testutil.CreateTestUser(t, db)
		cat := testutil.CreateTestCategory(t, db, models.CategoryTypeExpense)

		in := BudgetInput{UserID: user.ID, CategoryID: cat.ID, Title: "Food", AssignedAmount: dec("100"), Month: "May"}
		_, err := svc.CreateBudget(in)
		testutil.AssertNoError(t, err)
		_, err = svc.CreateBudget(in)
		testutil.AssertNoError(t, err)
	})

	tests := []struct {
		name    string
		mutate  func(in *BudgetInput)
		errCode string
	}{
		{"negative_amount", func(in *BudgetInput) { in.AssignedAmount = dec("-1") }, "INVALID_INPUT"},
		{"bad_month", func(in *BudgetInput) { in.Month = "Marzo" }, "INVALID_INPUT"},
		{"empty_title", func(in *BudgetInput) { in.Title = " " }, "INVALID_INPUT"},
		{"unknown_user", func(in *BudgetInput) { in.UserID = missingID }, "USER_NOT_FOUND"},
		{"unknown_category", func(in *BudgetInput) { in.CategoryID = missingID }, "CATEGORY_NOT_FOUND"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := testutil.SetupTestDB(t)
			defer testutil.TeardownTestDB(t, db)
			svc := NewBudgetService(db, 2025)
			user := testutil.CreateTestUser(t, db)
			cat := testutil.CreateTestCategory(t, db, models.CategoryTypeExpense)

			in := BudgetInput{UserID: user.ID, CategoryID: cat.ID, Title: "Food", AssignedAmount: dec("100"), Month: "May"}
			tt.mutate(&in)
			_, err := svc.CreateBudget(in)
			testutil.AssertAppError(t, err, tt.errCode)
		})
	}
}

func TestGetBudgets(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)
	svc := NewBudgetService(db, 2025)

	alice := testutil.CreateTestUser(t, db)
	bob := testutil.CreateTestUser(t, db)
	food := testutil.CreateTestCategory(t, db, models.CategoryTypeExpense)
	rent := testutil.CreateTestCategory(t, db, models.CategoryTypeExpense)

	mustCreate := func(userID, categoryID, title string, month models.Month) *models.Budget {
		b, err := svc.CreateBudget(BudgetInput{UserID: userID, CategoryID: categoryID, Title: title, AssignedAmount: dec("50"), Month: month})
		require.NoError(t, err)
		return b
	}
	first := mustCreate(alice.ID, food.ID, "Alice food", "January")
	mustCreate(alice.ID, rent.ID, "Alice rent", "February")
	mustCreate(bob.ID, food.ID, "Bob food", "January")

	t.Run("ordered_by_id", func(t *testing.T) {
		result, err := svc.GetBudgets(BudgetFilter{}, pagination.PageRequest{})
		testutil.AssertNoError(t, err)
		require.Len(t, result.Data, 3)
		assert.Equal(t, first.ID, result.Data[0].ID)
		require.NotNil(t, result.Data[0].Category)
		assert.Equal(t, food.Name, result.Data[0].Category.Name)
	})

	t.Run("by_user", func(t *testing.T) {
		result, err := svc.GetBudgets(BudgetFilter{UserID: alice.ID}, pagination.PageRequest{})
		testutil.AssertNoError(t, err)
		assert.Equal(t, int64(2), result.TotalItems)
	})

	t.Run("by_category_and_month", func(t *testing.T) {
		jan := models.Month("January")
		result, err := svc.GetBudgets(BudgetFilter{CategoryID: food.ID, Month: &jan}, pagination.PageRequest{})
		testutil.AssertNoError(t, err)
		assert.Equal(t, int64(2), result.TotalItems)
	})

	t.Run("by_year", func(t *testing.T) {
		year := 2024
		result, err := svc.GetBudgets(BudgetFilter{Year: &year}, pagination.PageRequest{})
		testutil.AssertNoError(t, err)
		assert.Equal(t, int64(0), result.TotalItems)
	})

	t.Run("search_title", func(t *testing.T) {
		result, err := svc.GetBudgets(BudgetFilter{Search: "RENT"}, pagination.PageRequest{})
		testutil.AssertNoError(t, err)
		require.Len(t, result.Data, 1)
		assert.Equal(t, "Alice rent", result.Data[0].Title)
	})
}

func TestUpdateBudget(t *testing.T) {
	t.Run("fields_change_spend_does_not", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewBudgetService(db, 2025)
		user := testutil.CreateTestUser(t, db)
		cat := testutil.CreateTestCategory(t, db, models.CategoryTypeExpense)
		budget := testutil.CreateTestBudget(t, db, user.ID, cat.ID, "100", "80")

		title := "Updated"
		month := models.Month("December")
		year := 2030
		updated, err := svc.UpdateBudget(budget.ID, BudgetUpdateFields{
			Title:          &title,
			AssignedAmount: decPtr("60"),
			Month:          &month,
			Year:           &year,
		})
		testutil.AssertNoError(t, err)

		assert.Equal(t, "Updated", updated.Title)
		assert.Equal(t, month, updated.Month)
		assert.Equal(t, 2030, updated.Year)
		testutil.AssertDecimal(t, "60", updated.AssignedAmount)
		testutil.AssertDecimal(t, "80", updated.SpendAmount)
		testutil.AssertDecimal(t, "-20", updated.Available())
		assert.Equal(t, models.AvailabilityOverBudget, updated.Status())
	})

	t.Run("reassign_user_and_category", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewBudgetService(db, 2025)
		user := testutil.CreateTestUser(t, db)
		other := testutil.CreateTestUser(t, db)
		cat := testutil.CreateTestCategory(t, db, models.CategoryTypeExpense)
		otherCat := testutil.CreateTestCategory(t, db, models.CategoryTypeExpense)
		budget := testutil.CreateTestBudget(t, db, user.ID, cat.ID, "100", "10")

		updated, err := svc.UpdateBudget(budget.ID, BudgetUpdateFields{UserID: &other.ID, CategoryID: &otherCat.ID})
		testutil.AssertNoError(t, err)
		assert.Equal(t, other.ID, updated.UserID)
		assert.Equal(t, otherCat.ID, updated.CategoryID)
		testutil.AssertDecimal(t, "10", updated.SpendAmount)
	})

	t.Run("negative_amount", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewBudgetService(db, 2025)
		user := testutil.CreateTestUser(t, db)
		cat := testutil.CreateTestCategory(t, db, models.CategoryTypeExpense)
		budget := testutil.CreateTestBudget(t, db, user.ID, cat.ID, "100", "0")

		_, err := svc.UpdateBudget(budget.ID, BudgetUpdateFields{AssignedAmount: decPtr("-5")})
		testutil.AssertAppError(t, err, "INVALID_INPUT")
	})

	t.Run("not_found", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewBudgetService(db, 2025)

		_, err := svc.UpdateBudget(missingID, BudgetUpdateFields{})
		testutil.AssertAppError(t, err, "BUDGET_NOT_FOUND")
	})
}

func TestDeleteBudget(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)
	svc := NewBudgetService(db, 2025)
	user := testutil.CreateTestUser(t, db)
	cat := testutil.CreateTestCategory(t, db, models.CategoryTypeExpense)
	budget := testutil.CreateTestBudget(t, db, user.ID, cat.ID, "100", "0")

	testutil.AssertNoError(t, svc.DeleteBudget(budget.ID))

	_, err := svc.GetBudgetByID(budget.ID)
	testutil.AssertAppError(t, err, "BUDGET_NOT_FOUND")

	testutil.AssertAppError(t, svc.DeleteBudget(budget.ID), "BUDGET_NOT_FOUND")
}

func TestBulkDeleteBudgets(t *testing.T) {
	t.Run("all_or_nothing", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewBudgetService(db, 2025)
		user := testutil.CreateTestUser(t, db)
		cat := testutil.CreateTestCategory(t, db, models.CategoryTypeExpense)
		a := testutil.CreateTestBudget(t, db, user.ID, cat.ID, "100", "0")

		_, err := svc.BulkDeleteBudgets([]string{a.ID, missingID})
		testutil.AssertAppError(t, err, "BUDGET_NOT_FOUND")

		_, err = svc.GetBudgetByID(a.ID)
		testutil.AssertNoError(t, err)
	})

	t.Run("deletes_all", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewBudgetService(db, 2025)
		user := testutil.CreateTestUser(t, db)
		cat := testutil.CreateTestCategory(t, db, models.CategoryTypeExpense)
		a := testutil.CreateTestBudget(t, db, user.ID, cat.ID, "100", "0")
		b := testutil.CreateTestBudget(t, db, user.ID, cat.ID, "50", "0")

		n, err := svc.BulkDeleteBudgets([]string{a.ID, b.ID})
		testutil.AssertNoError(t, err)
		assert.Equal(t, 2, n)

		result, err := svc.GetBudgets(BudgetFilter{}, pagination.PageRequest{})
		testutil.AssertNoError(t, err)
		assert.Zero(t, result.TotalItems)
	})

	t.Run("empty", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewBudgetService(db, 2025)

		_, err := svc.BulkDeleteBudgets(nil)
		testutil.AssertAppError(t, err, "INVALID_INPUT")
	})
}

func TestExportBudgets(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)
	svc := NewBudgetService(db, 2025)
	user := testutil.CreateTestUserWithEmail(t, db, "export@test.com")
	cat := testutil.CreateTestCategory(t, db, models.CategoryTypeExpense)
	budget := testutil.CreateTestBudget(t, db, user.ID, cat.ID, "100", "120.5")

	rows, err := svc.ExportBudgets(BudgetFilter{UserID: user.ID})
	testutil.AssertNoError(t, err)
	require.Len(t, rows, 1)

	row := rows[0]
	assert.Equal(t, budget.ID, row.ID)
	assert.Equal(t, "export@test.com", row.UserEmail)
	assert.Equal(t, cat.Name, row.Category)
	assert.Equal(t, time.Now().Month().String(), row.Month)
	assert.Equal(t, "100.00", row.AssignedAmount)
	assert.Equal(t, "120.50", row.SpendAmount)
	assert.Equal(t, "-20.50", row.Available)
	assert.Equal(t, "over_budget", row.Status)
}
