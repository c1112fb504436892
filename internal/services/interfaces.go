package services

import (
	"time"

	"github.com/shopspring/decimal"

	"budgetoffice/internal/models"
	"budgetoffice/internal/pagination"
)

// UserServicer defines the contract for user-related business logic.
type UserServicer interface {
	CreateUser(email, password, firstName, lastName string) (*models.User, error)
	GetUserByEmail(email string) (*models.User, error)
	GetUserByID(id string) (*models.User, error)
	ListUsers(search string, page pagination.PageRequest) (*pagination.PageResponse[models.User], error)
	VerifyPassword(user *models.User, password string) bool
	AttemptLogin(email, password string) (*models.User, error)
	StoreRefreshTokenHash(userID, tokenHash string) error
	GetRefreshTokenHash(userID string) (string, error)
}

// CategoryFilter holds optional filter parameters for listing categories.
type CategoryFilter struct {
	Type   *models.CategoryType
	Search string
}

// CategoryServicer defines the contract for category-related business logic.
type CategoryServicer interface {
	CreateCategory(name string, categoryType models.CategoryType) (*models.Category, error)
	GetCategories(filter CategoryFilter, page pagination.PageRequest) (*pagination.PageResponse[models.Category], error)
	GetCategoryByID(id string) (*models.Category, error)
	UpdateCategory(id string, name *string, categoryType *models.CategoryType) (*models.Category, error)
	DeleteCategory(id string) error
}

// BudgetInput holds the fields for creating a budget. Year zero means the
// configured planning year.
type BudgetInput struct {
	UserID         string
	CategoryID     string
	Title          string
	AssignedAmount decimal.Decimal
	Month          models.Month
	Year           int
}

// BudgetUpdateFields holds the budget fields an update may change. Nil
// fields are left alone. Spend is not editable.
type BudgetUpdateFields struct {
	UserID         *string
	CategoryID     *string
	Title          *string
	AssignedAmount *decimal.Decimal
	Month          *models.Month
	Year           *int
}

// BudgetFilter holds optional filter parameters for listing budgets.
type BudgetFilter struct {
	UserID     string
	CategoryID string
	Month      *models.Month
	Year       *int
	Search     string
}

// BudgetExportRow is one line of the budget CSV export.
type BudgetExportRow struct {
	ID             string `csv:"id"`
	Title          string `csv:"title"`
	UserEmail      string `csv:"user_email"`
	Category       string `csv:"category"`
	Month          string `csv:"month"`
	Year           int    `csv:"year"`
	AssignedAmount string `csv:"assigned_amount"`
	SpendAmount    string `csv:"spend_amount"`
	Available      string `csv:"available"`
	Status         string `csv:"status"`
}

// BudgetServicer defines the contract for budget-related business logic.
type BudgetServicer interface {
	CreateBudget(input BudgetInput) (*models.Budget, error)
	GetBudgets(filter BudgetFilter, page pagination.PageRequest) (*pagination.PageResponse[models.Budget], error)
	GetBudgetByID(id string) (*models.Budget, error)
	UpdateBudget(id string, fields BudgetUpdateFields) (*models.Budget, error)
	DeleteBudget(id string) error
	BulkDeleteBudgets(ids []string) (int, error)
	ExportBudgets(filter BudgetFilter) ([]*BudgetExportRow, error)
}

// TransactionInput holds the fields for recording a transaction. A zero
// TransactionDate means today.
type TransactionInput struct {
	UserID          string
	CategoryID      string
	Amount          decimal.Decimal
	Description     string
	TransactionDate time.Time
	ImagePath       string
}

// TransactionUpdateFields holds the transaction fields an update may change.
// Nil fields are left alone.
type TransactionUpdateFields struct {
	UserID          *string
	CategoryID      *string
	Amount          *decimal.Decimal
	Description     *string
	TransactionDate *time.Time
}

// Trashed selects soft-deleted transactions in listings.
type Trashed string

const (
	TrashedNone Trashed = ""
	TrashedWith Trashed = "with"
	TrashedOnly Trashed = "only"
)

// TransactionFilter holds optional filter parameters for listing transactions.
type TransactionFilter struct {
	UserID       string
	CategoryID   string
	CategoryType *models.CategoryType
	FromDate     *time.Time
	ToDate       *time.Time
	Search       string
	Trashed      Trashed
}

// TransactionServicer defines the contract for transaction-related business
// logic. Every mutation keeps budget spend reconciled.
type TransactionServicer interface {
	CreateTransaction(input TransactionInput) (*models.Transaction, error)
	GetTransactions(filter TransactionFilter, page pagination.PageRequest) (*pagination.PageResponse[models.Transaction], error)
	GetTransactionByID(id string) (*models.Transaction, error)
	UpdateTransaction(id string, fields TransactionUpdateFields) (*models.Transaction, error)
	DeleteTransaction(id string) error
	BulkDeleteTransactions(ids []string) (int, error)
	RestoreTransaction(id string) (*models.Transaction, error)
	ForceDeleteTransaction(id string) error
	AttachImage(id, imagePath string) (*models.Transaction, error)
}

// AuditServicer defines the contract for audit logging.
type AuditServicer interface {
	Log(userID, action, resourceType, resourceID, ipAddress string, changes map[string]interface{})
}
