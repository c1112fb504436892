package services

import (
	"errors"
	"strings"

	"gorm.io/gorm"

	apperrors "budgetoffice/internal/errors"
	"budgetoffice/internal/models"
	"budgetoffice/internal/pagination"
)

// categoryService handles category-related business logic.
type categoryService struct {
	db *gorm.DB
}

// NewCategoryService creates a new CategoryServicer.
func NewCategoryService(db *gorm.DB) CategoryServicer {
	return &categoryService{db: db}
}

// CreateCategory creates a new category. Names are unique among live
// categories, ignoring case.
func (s *categoryService) CreateCategory(name string, categoryType models.CategoryType) (*models.Category, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "category name is required")
	}
	if !categoryType.IsValid() {
		return nil, apperrors.ErrInvalidCategoryType
	}
	if err := s.ensureUniqueName(name, ""); err != nil {
		return nil, err
	}

	category := &models.Category{
		Name: name,
		Type: categoryType,
	}

	if err := s.db.Create(category).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	return category, nil
}

// GetCategories returns a page of categories ordered by name.
func (s *categoryService) GetCategories(filter CategoryFilter, page pagination.PageRequest) (*pagination.PageResponse[models.Category], error) {
	base := s.db.Model(&models.Category{})
	if filter.Type != nil {
		base = base.Where("type = ?", *filter.Type)
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		base = base.Where("LOWER(name) LIKE ?", "%"+strings.ToLower(search)+"%")
	}

	result, err := pagination.Fetch[models.Category](base, page, pagination.OrderBy("name ASC"))
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return result, nil
}

// GetCategoryByID retrieves a category by ID
func (s *categoryService) GetCategoryByID(id string) (*models.Category, error) {
	var category models.Category
	if err := s.db.Where("id = ?", id).First(&category).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrCategoryNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &category, nil
}

// UpdateCategory renames a category or changes its type. Changing the type
// does not touch existing budget spend; later transaction mutations see the
// new type.
func (s *categoryService) UpdateCategory(id string, name *string, categoryType *models.CategoryType) (*models.Category, error) {
	category, err := s.GetCategoryByID(id)
	if err != nil {
		return nil, err
	}

	updates := make(map[string]interface{})
	if name != nil {
		trimmed := strings.TrimSpace(*name)
		if trimmed == "" {
			return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "category name is required")
		}
		if err := s.ensureUniqueName(trimmed, category.ID); err != nil {
			return nil, err
		}
		updates["name"] = trimmed
	}
	if categoryType != nil {
		if !categoryType.IsValid() {
			return nil, apperrors.ErrInvalidCategoryType
		}
		updates["type"] = *categoryType
	}

	if len(updates) > 0 {
		if err := s.db.Model(category).Updates(updates).Error; err != nil {
			return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
	}

	return category, nil
}

// DeleteCategory soft-deletes a category that no live budget or transaction
// references.
func (s *categoryService) DeleteCategory(id string) error {
	category, err := s.GetCategoryByID(id)
	if err != nil {
		return err
	}

	for _, model := range []interface{}{&models.Budget{}, &models.Transaction{}} {
		var count int64
		if err := s.db.Model(model).Where("category_id = ?", category.ID).Count(&count).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		if count > 0 {
			return apperrors.ErrCategoryInUse
		}
	}

	if err := s.db.Delete(category).Error; err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return nil
}

func (s *categoryService) ensureUniqueName(name, exceptID string) error {
	q := s.db.Model(&models.Category{}).Where("LOWER(name) = ?", strings.ToLower(name))
	if exceptID != "" {
		q = q.Where("id <> ?", exceptID)
	}
	var count int64
	if err := q.Count(&count).Error; err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	if count > 0 {
		return apperrors.ErrDuplicateCategory
	}
	return nil
}
