package services

import (
	"errors"
	"strings"

	"gorm.io/gorm"

	apperrors "budgetoffice/internal/errors"
	"budgetoffice/internal/logger"
	"budgetoffice/internal/models"
	"budgetoffice/internal/pagination"
)

// budgetService handles budget-related business logic.
type budgetService struct {
	db          *gorm.DB
	defaultYear int
}

// NewBudgetService creates a new BudgetServicer. Budgets created without a
// year get defaultYear.
func NewBudgetService(db *gorm.DB, defaultYear int) BudgetServicer {
	return &budgetService{db: db, defaultYear: defaultYear}
}

// CreateBudget creates a budget envelope with zero spend.
func (s *budgetService) CreateBudget(input BudgetInput) (*models.Budget, error) {
	input.Title = strings.TrimSpace(input.Title)
	if input.Title == "" {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "title is required")
	}
	if input.AssignedAmount.IsNegative() {
		return nil, apperrors.ErrNegativeAmount
	}
	if !input.Month.IsValid() {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "month must be an English month name")
	}
	if input.Year == 0 {
		input.Year = s.defaultYear
	}

	if err := requireUser(s.db, input.UserID); err != nil {
		return nil, err
	}
	if _, err := findCategory(s.db, input.CategoryID); err != nil {
		return nil, err
	}

	s.warnOnDuplicate(input.UserID, input.CategoryID)

	budget := &models.Budget{
		UserID:         input.UserID,
		CategoryID:     input.CategoryID,
		Title:          input.Title,
		AssignedAmount: input.AssignedAmount.Round(2),
		Month:          input.Month,
		Year:           input.Year,
	}

	if err := s.db.Create(budget).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	return budget, nil
}

// warnOnDuplicate logs when the pair already has a budget. Reconciliation
// only ever updates the oldest one.
func (s *budgetService) warnOnDuplicate(userID, categoryID string) {
	var count int64
	if err := s.db.Model(&models.Budget{}).
		Where("user_id = ? AND category_id = ?", userID, categoryID).
		Count(&count).Error; err != nil || count == 0 {
		return
	}
	logger.Get().Warnw("budget already exists for user and category",
		"user_id", userID,
		"category_id", categoryID,
		"existing", count,
	)
}

func (s *budgetService) filtered(filter BudgetFilter) *gorm.DB {
	q := s.db.Model(&models.Budget{})
	if filter.UserID != "" {
		q = q.Where("user_id = ?", filter.UserID)
	}
	if filter.CategoryID != "" {
		q = q.Where("category_id = ?", filter.CategoryID)
	}
	if filter.Month != nil {
		q = q.Where("month = ?", *filter.Month)
	}
	if filter.Year != nil {
		q = q.Where("year = ?", *filter.Year)
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		q = q.Where("LOWER(title) LIKE ?", "%"+strings.ToLower(search)+"%")
	}
	return q
}

// GetBudgets returns a page of budgets ordered by id, oldest first.
func (s *budgetService) GetBudgets(filter BudgetFilter, page pagination.PageRequest) (*pagination.PageResponse[models.Budget], error) {
	result, err := pagination.Fetch[models.Budget](s.filtered(filter), page,
		pagination.OrderBy("id ASC"),
		func(db *gorm.DB) *gorm.DB { return db.Preload("User").Preload("Category") },
	)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return result, nil
}

// GetBudgetByID returns a budget by ID.
func (s *budgetService) GetBudgetByID(id string) (*models.Budget, error) {
	var budget models.Budget
	if err := s.db.Preload("User").Preload("Category").Where("id = ?", id).First(&budget).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrBudgetNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &budget, nil
}

// UpdateBudget updates a budget's editable fields. Moving a budget to another
// user or category keeps its spend as it is.
func (s *budgetService) UpdateBudget(id string, fields BudgetUpdateFields) (*models.Budget, error) {
	budget, err := s.GetBudgetByID(id)
	if err != nil {
		return nil, err
	}

	updates := make(map[string]interface{})
	if fields.UserID != nil && *fields.UserID != budget.UserID {
		if err := requireUser(s.db, *fields.UserID); err != nil {
			return nil, err
		}
		updates["user_id"] = *fields.UserID
	}
	if fields.CategoryID != nil && *fields.CategoryID != budget.CategoryID {
		if _, err := findCategory(s.db, *fields.CategoryID); err != nil {
			return nil, err
		}
		updates["category_id"] = *fields.CategoryID
	}
	if fields.Title != nil {
		title := strings.TrimSpace(*fields.Title)
		if title == "" {
			return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "title is required")
		}
		updates["title"] = title
	}
	if fields.AssignedAmount != nil {
		if fields.AssignedAmount.IsNegative() {
			return nil, apperrors.ErrNegativeAmount
		}
		updates["assigned_amount"] = fields.AssignedAmount.Round(2)
	}
	if fields.Month != nil {
		if !fields.Month.IsValid() {
			return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "month must be an English month name")
		}
		updates["month"] = *fields.Month
	}
	if fields.Year != nil {
		updates["year"] = *fields.Year
	}

	if len(updates) == 0 {
		return budget, nil
	}

	if err := s.db.Model(budget).Omit("User", "Category").Updates(updates).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	return s.GetBudgetByID(id)
}

// DeleteBudget soft-deletes a budget. Its transactions are untouched.
func (s *budgetService) DeleteBudget(id string) error {
	budget, err := s.GetBudgetByID(id)
	if err != nil {
		return err
	}

	if err := s.db.Delete(budget).Error; err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return nil
}

// BulkDeleteBudgets soft-deletes every listed budget in one database
// transaction. An unknown id aborts the whole batch.
func (s *budgetService) BulkDeleteBudgets(ids []string) (int, error) {
	if len(ids) == 0 {
		return 0, apperrors.WithMessage(apperrors.ErrInvalidInput, "ids are required")
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		for _, id := range ids {
			res := tx.Where("id = ?", id).Delete(&models.Budget{})
			if res.Error != nil {
				return apperrors.Wrap(apperrors.ErrInternalServer, res.Error)
			}
			if res.RowsAffected == 0 {
				return apperrors.WithMessage(apperrors.ErrBudgetNotFound, "Budget not found: "+id)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return len(ids), nil
}

// ExportBudgets returns the filtered budgets as CSV rows, oldest first.
func (s *budgetService) ExportBudgets(filter BudgetFilter) ([]*BudgetExportRow, error) {
	var budgets []models.Budget
	if err := s.filtered(filter).Preload("User").Preload("Category").
		Order("id ASC").
		Find(&budgets).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	rows := make([]*BudgetExportRow, 0, len(budgets))
	for i := range budgets {
		b := &budgets[i]
		row := &BudgetExportRow{
			ID:             b.ID,
			Title:          b.Title,
			Month:          string(b.Month),
			Year:           b.Year,
			AssignedAmount: b.AssignedAmount.StringFixed(2),
			SpendAmount:    b.SpendAmount.StringFixed(2),
			Available:      b.Available().StringFixed(2),
			Status:         string(b.Status()),
		}
		if b.User != nil {
			row.UserEmail = b.User.Email
		}
		if b.Category != nil {
			row.Category = b.Category.Name
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// requireUser checks that a live user with the id exists.
func requireUser(db *gorm.DB, id string) error {
	if id == "" {
		return apperrors.WithMessage(apperrors.ErrInvalidInput, "user_id is required")
	}
	var count int64
	if err := db.Model(&models.User{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	if count == 0 {
		return apperrors.ErrUserNotFound
	}
	return nil
}

// findCategory loads a live category.
func findCategory(db *gorm.DB, id string) (*models.Category, error) {
	if id == "" {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "category_id is required")
	}
	var category models.Category
	if err := db.Where("id = ?", id).First(&category).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrCategoryNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &category, nil
}
