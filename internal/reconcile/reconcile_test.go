package reconcile

import (
	"errors"
	"testing"

	"budgetoffice/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func expense(user, category, amount string) Snapshot {
	return Snapshot{UserID: user, CategoryID: category, Amount: d(amount), CategoryType: models.CategoryTypeExpense}
}

func income(user, category, amount string) Snapshot {
	return Snapshot{UserID: user, CategoryID: category, Amount: d(amount), CategoryType: models.CategoryTypeIncome}
}

// memStore keeps budgets keyed by user and category.
type memStore struct {
	budgets map[[2]string]*models.Budget
	saves   int
	findErr error
	saveErr error
}

func newMemStore() *memStore {
	return &memStore{budgets: map[[2]string]*models.Budget{}}
}

func (m *memStore) add(user, category, spend string) *models.Budget {
	b := &models.Budget{UserID: user, CategoryID: category, AssignedAmount: d("100"), SpendAmount: d(spend)}
	b.ID = user + "/" + category
	m.budgets[[2]string{user, category}] = b
	return b
}

func (m *memStore) FindBudget(userID, categoryID string) (*models.Budget, error) {
	if m.findErr != nil {
		return nil, m.findErr
	}
	return m.budgets[[2]string{userID, categoryID}], nil
}

func (m *memStore) SaveSpend(*models.Budget) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.saves++
	return nil
}

func assertSpend(t *testing.T, want string, b *models.Budget) {
	t.Helper()
	assert.True(t, b.SpendAmount.Equal(d(want)), "expected spend %s, got %s", want, b.SpendAmount)
}

func TestPlanCreate(t *testing.T) {
	tests := []struct {
		name string
		tx   Snapshot
		want []Adjustment
	}{
		{"expense", expense("u", "c", "20"), []Adjustment{{UserID: "u", CategoryID: "c", Delta: d("20")}}},
		{"income", income("u", "c", "20"), nil},
		{"zero amount", expense("u", "c", "0"), nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, PlanCreate(tt.tx))
		})
	}
}

func TestPlanDelete(t *testing.T) {
	assert.Equal(t, []Adjustment{{UserID: "u", CategoryID: "c", Delta: d("20").Neg()}}, PlanDelete(expense("u", "c", "20")))
	assert.Nil(t, PlanDelete(income("u", "c", "20")))
	assert.Nil(t, PlanDelete(expense("u", "c", "0")))
}

func TestPlanUpdate(t *testing.T) {
	t.Run("same category applies difference", func(t *testing.T) {
		plan := PlanUpdate(expense("u", "c", "35"), d("20"), "c")
		require.Len(t, plan, 1)
		assert.True(t, plan[0].Delta.Equal(d("15")))
	})

	t.Run("same category lowering amount", func(t *testing.T) {
		plan := PlanUpdate(expense("u", "c", "5"), d("20"), "c")
		require.Len(t, plan, 1)
		assert.True(t, plan[0].Delta.Equal(d("-15")))
	})

	t.Run("unchanged amount plans nothing", func(t *testing.T) {
		assert.Nil(t, PlanUpdate(expense("u", "c", "20"), d("20.00"), "c"))
	})

	t.Run("category change moves spend", func(t *testing.T) {
		plan := PlanUpdate(expense("u", "new", "30"), d("20"), "old")
		require.Len(t, plan, 2)
		assert.Equal(t, "old", plan[0].CategoryID)
		assert.True(t, plan[0].Delta.Equal(d("-20")))
		assert.Equal(t, "new", plan[1].CategoryID)
		assert.True(t, plan[1].Delta.Equal(d("30")))
	})

	t.Run("category change to zero amount only reverses", func(t *testing.T) {
		plan := PlanUpdate(expense("u", "new", "0"), d("20"), "old")
		require.Len(t, plan, 1)
		assert.Equal(t, "old", plan[0].CategoryID)
	})

	t.Run("move into income category plans nothing", func(t *testing.T) {
		assert.Nil(t, PlanUpdate(income("u", "inc", "20"), d("20"), "old"))
	})

	t.Run("lookups use current user", func(t *testing.T) {
		plan := PlanUpdate(expense("u2", "new", "30"), d("20"), "old")
		for _, adj := range plan {
			assert.Equal(t, "u2", adj.UserID)
		}
	})
}

func TestReconcilerCreateAndDelete(t *testing.T) {
	store := newMemStore()
	b := store.add("u", "c", "0")
	r := New(store)

	require.NoError(t, r.OnCreate(expense("u", "c", "20")))
	assertSpend(t, "20", b)

	require.NoError(t, r.OnCreate(expense("u", "c", "5.25")))
	assertSpend(t, "25.25", b)

	require.NoError(t, r.OnDelete(expense("u", "c", "20")))
	assertSpend(t, "5.25", b)
}

func TestReconcilerIgnoresIncome(t *testing.T) {
	store := newMemStore()
	b := store.add("u", "inc", "0")
	r := New(store)

	require.NoError(t, r.OnCreate(income("u", "inc", "500")))
	require.NoError(t, r.OnUpdate(income("u", "inc", "700"), d("500"), "inc"))
	require.NoError(t, r.OnDelete(income("u", "inc", "700")))

	assertSpend(t, "0", b)
	assert.Zero(t, store.saves)
}

func TestReconcilerWithoutBudget(t *testing.T) {
	store := newMemStore()
	r := New(store)

	assert.NoError(t, r.OnCreate(expense("u", "c", "20")))
	assert.NoError(t, r.OnUpdate(expense("u", "c", "30"), d("20"), "c"))
	assert.NoError(t, r.OnDelete(expense("u", "c", "30")))
	assert.Zero(t, store.saves)
}

func TestReconcilerMoveBetweenBudgets(t *testing.T) {
	store := newMemStore()
	old := store.add("u", "old", "50")
	next := store.add("u", "new", "10")
	r := New(store)

	require.NoError(t, r.OnUpdate(expense("u", "new", "30"), d("20"), "old"))
	assertSpend(t, "30", old)
	assertSpend(t, "40", next)
}

func TestReconcilerMoveWithoutTargetBudget(t *testing.T) {
	store := newMemStore()
	old := store.add("u", "old", "50")
	r := New(store)

	require.NoError(t, r.OnUpdate(expense("u", "new", "30"), d("20"), "old"))
	assertSpend(t, "30", old)
}

// A transaction moved from an expense category into an income category
// keeps counting against the original budget, and deleting it afterwards
// does not release it either.
func TestReconcilerExpenseMovedToIncomeKeepsOriginalSpend(t *testing.T) {
	store := newMemStore()
	b := store.add("u", "groceries", "0")
	r := New(store)

	require.NoError(t, r.OnCreate(expense("u", "groceries", "20")))
	assertSpend(t, "20", b)

	require.NoError(t, r.OnUpdate(income("u", "salary", "20"), d("20"), "groceries"))
	assertSpend(t, "20", b)

	require.NoError(t, r.OnDelete(income("u", "salary", "20")))
	assertSpend(t, "20", b)
}

func TestReconcilerRestoreAndForceDeleteDoNothing(t *testing.T) {
	store := newMemStore()
	b := store.add("u", "c", "0")
	r := New(store)

	require.NoError(t, r.OnCreate(expense("u", "c", "20")))
	require.NoError(t, r.OnDelete(expense("u", "c", "20")))
	require.NoError(t, r.OnRestore(expense("u", "c", "20")))
	assertSpend(t, "0", b)

	require.NoError(t, r.OnForceDelete(expense("u", "c", "20")))
	assertSpend(t, "0", b)
	assert.Equal(t, 2, store.saves)
}

func TestReconcilerPropagatesStoreErrors(t *testing.T) {
	t.Run("find", func(t *testing.T) {
		store := newMemStore()
		store.findErr = errors.New("db down")
		err := New(store).OnCreate(expense("u", "c", "20"))
		assert.EqualError(t, err, "db down")
	})

	t.Run("save", func(t *testing.T) {
		store := newMemStore()
		b := store.add("u", "c", "10")
		store.saveErr = errors.New("write failed")
		err := New(store).OnCreate(expense("u", "c", "20"))
		assert.EqualError(t, err, "write failed")
		assertSpend(t, "10", b)
	})
}
