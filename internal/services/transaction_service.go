package services

import (
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	apperrors "budgetoffice/internal/errors"
	"budgetoffice/internal/models"
	"budgetoffice/internal/pagination"
	"budgetoffice/internal/reconcile"
)

// StoreFactory builds the budget store the reconciler uses inside a database
// transaction.
type StoreFactory func(tx *gorm.DB) reconcile.BudgetStore

// transactionService handles transaction-related business logic. Every
// mutation writes the transaction row and reconciles budget spend in the same
// database transaction.
type transactionService struct {
	db       *gorm.DB
	newStore StoreFactory
}

// NewTransactionService creates a new TransactionServicer backed by the GORM
// budget store.
func NewTransactionService(db *gorm.DB) TransactionServicer {
	return NewTransactionServiceWithStore(db, func(tx *gorm.DB) reconcile.BudgetStore {
		return reconcile.NewGormStore(tx)
	})
}

// NewTransactionServiceWithStore creates a TransactionServicer whose
// reconciler reads and writes budgets through the store newStore returns.
func NewTransactionServiceWithStore(db *gorm.DB, newStore StoreFactory) TransactionServicer {
	return &transactionService{db: db, newStore: newStore}
}

// reconcileIn runs fn inside a database transaction with a reconciler bound
// to it. Reconciler errors that are not AppErrors become internal errors.
func (s *transactionService) reconcileIn(fn func(tx *gorm.DB, r *reconcile.Reconciler) error) error {
	err := s.db.Transaction(func(tx *gorm.DB) error {
		return fn(tx, reconcile.New(s.newStore(tx)))
	})
	if err == nil {
		return nil
	}
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return err
	}
	return apperrors.Wrap(apperrors.ErrInternalServer, err)
}

// snapshot pairs a transaction with the current type of its category,
// trashed categories included.
func snapshot(tx *gorm.DB, t *models.Transaction) (reconcile.Snapshot, error) {
	var category models.Category
	if err := tx.Unscoped().Select("id", "type").Where("id = ?", t.CategoryID).First(&category).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return reconcile.Snapshot{}, apperrors.ErrCategoryNotFound
		}
		return reconcile.Snapshot{}, err
	}
	return reconcile.Snapshot{
		UserID:       t.UserID,
		CategoryID:   t.CategoryID,
		Amount:       t.Amount,
		CategoryType: category.Type,
	}, nil
}

// dateOnly truncates t to its calendar date in UTC. A zero t means today.
func dateOnly(t time.Time) time.Time {
	if t.IsZero() {
		t = time.Now()
	}
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// CreateTransaction records a transaction and charges it to the matching
// budget when its category is an expense.
func (s *transactionService) CreateTransaction(input TransactionInput) (*models.Transaction, error) {
	if input.Amount.IsNegative() {
		return nil, apperrors.ErrNegativeAmount
	}
	input.Description = strings.TrimSpace(input.Description)
	if input.Description == "" {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "description is required")
	}
	if err := requireUser(s.db, input.UserID); err != nil {
		return nil, err
	}
	if _, err := findCategory(s.db, input.CategoryID); err != nil {
		return nil, err
	}

	transaction := &models.Transaction{
		UserID:          input.UserID,
		CategoryID:      input.CategoryID,
		Amount:          input.Amount.Round(2),
		Description:     input.Description,
		TransactionDate: dateOnly(input.TransactionDate),
		ImagePath:       input.ImagePath,
	}

	err := s.reconcileIn(func(tx *gorm.DB, r *reconcile.Reconciler) error {
		if err := tx.Create(transaction).Error; err != nil {
			return err
		}
		snap, err := snapshot(tx, transaction)
		if err != nil {
			return err
		}
		return r.OnCreate(snap)
	})
	if err != nil {
		return nil, err
	}
	return transaction, nil
}

// GetTransactions returns a page of transactions, newest date first.
func (s *transactionService) GetTransactions(filter TransactionFilter, page pagination.PageRequest) (*pagination.PageResponse[models.Transaction], error) {
	base := applyTransactionFilters(s.db.Model(&models.Transaction{}), filter)

	result, err := pagination.Fetch[models.Transaction](base, page,
		pagination.OrderBy("transactions.transaction_date DESC", "transactions.id DESC"),
		preloadRelations,
	)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return result, nil
}

// preloadRelations loads the owner and the category, including a category
// deleted since the transaction was recorded.
func preloadRelations(db *gorm.DB) *gorm.DB {
	return db.Preload("User").Preload("Category", func(db *gorm.DB) *gorm.DB {
		return db.Unscoped()
	})
}

func applyTransactionFilters(q *gorm.DB, f TransactionFilter) *gorm.DB {
	switch f.Trashed {
	case TrashedWith:
		q = q.Unscoped()
	case TrashedOnly:
		q = q.Unscoped().Where("transactions.deleted_at IS NOT NULL")
	}
	if f.UserID != "" {
		q = q.Where("transactions.user_id = ?", f.UserID)
	}
	if f.CategoryID != "" {
		q = q.Where("transactions.category_id = ?", f.CategoryID)
	}
	if f.CategoryType != nil {
		q = q.Joins("JOIN categories ON categories.id = transactions.category_id").
			Where("categories.type = ?", *f.CategoryType)
	}
	if f.FromDate != nil {
		q = q.Where("transactions.transaction_date >= ?", dateOnly(*f.FromDate))
	}
	if f.ToDate != nil {
		q = q.Where("transactions.transaction_date <= ?", dateOnly(*f.ToDate))
	}
	if search := strings.TrimSpace(f.Search); search != "" {
		q = q.Where("LOWER(transactions.description) LIKE ?", "%"+strings.ToLower(search)+"%")
	}
	return q
}

// GetTransactionByID retrieves a live transaction by ID.
func (s *transactionService) GetTransactionByID(id string) (*models.Transaction, error) {
	var transaction models.Transaction
	if err := s.db.Scopes(preloadRelations).Where("id = ?", id).First(&transaction).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrTransactionNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &transaction, nil
}

// findLive loads a live transaction without associations.
func findLive(db *gorm.DB, id string) (*models.Transaction, error) {
	var transaction models.Transaction
	if err := db.Where("id = ?", id).First(&transaction).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrTransactionNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &transaction, nil
}

// findTrashed loads a soft-deleted transaction. A live one yields
// ErrTransactionNotTrashed.
func findTrashed(db *gorm.DB, id string) (*models.Transaction, error) {
	var transaction models.Transaction
	if err := db.Unscoped().Where("id = ?", id).First(&transaction).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrTransactionNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	if !transaction.DeletedAt.Valid {
		return nil, apperrors.ErrTransactionNotTrashed
	}
	return &transaction, nil
}

// lockLive loads a live transaction and locks its row for the rest of the
// database transaction.
func lockLive(tx *gorm.DB, id string) (*models.Transaction, error) {
	return findLive(tx.Clauses(clause.Locking{Strength: "UPDATE"}), id)
}

// UpdateTransaction edits a transaction and moves its spend between budgets
// as needed, using the amount and category it had before the edit.
func (s *transactionService) UpdateTransaction(id string, fields TransactionUpdateFields) (*models.Transaction, error) {
	err := s.reconcileIn(func(tx *gorm.DB, r *reconcile.Reconciler) error {
		transaction, err := lockLive(tx, id)
		if err != nil {
			return err
		}
		originalAmount := transaction.Amount
		originalCategoryID := transaction.CategoryID

		if err := applyUpdate(tx, transaction, fields); err != nil {
			return err
		}
		if err := tx.Model(transaction).
			Select("user_id", "category_id", "amount", "description", "transaction_date").
			Updates(transaction).Error; err != nil {
			return err
		}
		snap, err := snapshot(tx, transaction)
		if err != nil {
			return err
		}
		return r.OnUpdate(snap, originalAmount, originalCategoryID)
	})
	if err != nil {
		return nil, err
	}

	return s.GetTransactionByID(id)
}

// applyUpdate validates fields and copies them onto transaction.
func applyUpdate(tx *gorm.DB, transaction *models.Transaction, fields TransactionUpdateFields) error {
	if fields.UserID != nil && *fields.UserID != transaction.UserID {
		if err := requireUser(tx, *fields.UserID); err != nil {
			return err
		}
		transaction.UserID = *fields.UserID
	}
	if fields.CategoryID != nil && *fields.CategoryID != transaction.CategoryID {
		if _, err := findCategory(tx, *fields.CategoryID); err != nil {
			return err
		}
		transaction.CategoryID = *fields.CategoryID
	}
	if fields.Amount != nil {
		if fields.Amount.IsNegative() {
			return apperrors.ErrNegativeAmount
		}
		transaction.Amount = fields.Amount.Round(2)
	}
	if fields.Description != nil {
		description := strings.TrimSpace(*fields.Description)
		if description == "" {
			return apperrors.WithMessage(apperrors.ErrInvalidInput, "description is required")
		}
		transaction.Description = description
	}
	if fields.TransactionDate != nil {
		transaction.TransactionDate = dateOnly(*fields.TransactionDate)
	}
	return nil
}

// DeleteTransaction soft-deletes a transaction and releases its spend.
func (s *transactionService) DeleteTransaction(id string) error {
	return s.reconcileIn(func(tx *gorm.DB, r *reconcile.Reconciler) error {
		return deleteOne(tx, r, id)
	})
}

// deleteOne releases spend only when this call is the one that deleted the row.
func deleteOne(tx *gorm.DB, r *reconcile.Reconciler, id string) error {
	transaction, err := lockLive(tx, id)
	if err != nil {
		return err
	}
	res := tx.Delete(transaction)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apperrors.ErrTransactionNotFound
	}
	snap, err := snapshot(tx, transaction)
	if err != nil {
		return err
	}
	return r.OnDelete(snap)
}

// BulkDeleteTransactions deletes every listed transaction in one database
// transaction, reconciling each in turn. Any failure rolls back the batch.
func (s *transactionService) BulkDeleteTransactions(ids []string) (int, error) {
	if len(ids) == 0 {
		return 0, apperrors.WithMessage(apperrors.ErrInvalidInput, "ids are required")
	}

	err := s.reconcileIn(func(tx *gorm.DB, r *reconcile.Reconciler) error {
		for _, id := range ids {
			if err := deleteOne(tx, r, id); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return len(ids), nil
}

// RestoreTransaction brings back a soft-deleted transaction. Budget spend is
// left as it is.
func (s *transactionService) RestoreTransaction(id string) (*models.Transaction, error) {
	err := s.reconcileIn(func(tx *gorm.DB, r *reconcile.Reconciler) error {
		transaction, err := findTrashed(tx, id)
		if err != nil {
			return err
		}
		if err := tx.Unscoped().Model(transaction).Update("deleted_at", nil).Error; err != nil {
			return err
		}
		snap, err := snapshot(tx, transaction)
		if err != nil {
			return err
		}
		return r.OnRestore(snap)
	})
	if err != nil {
		return nil, err
	}
	return s.GetTransactionByID(id)
}

// ForceDeleteTransaction permanently removes a soft-deleted transaction.
func (s *transactionService) ForceDeleteTransaction(id string) error {
	return s.reconcileIn(func(tx *gorm.DB, r *reconcile.Reconciler) error {
		transaction, err := findTrashed(tx, id)
		if err != nil {
			return err
		}
		snap, err := snapshot(tx, transaction)
		if err != nil {
			return err
		}
		if err := tx.Unscoped().Delete(transaction).Error; err != nil {
			return err
		}
		return r.OnForceDelete(snap)
	})
}

// AttachImage records the stored path of a receipt image on a transaction.
func (s *transactionService) AttachImage(id, imagePath string) (*models.Transaction, error) {
	transaction, err := findLive(s.db, id)
	if err != nil {
		return nil, err
	}
	if err := s.db.Model(transaction).Update("image_path", imagePath).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return s.GetTransactionByID(id)
}
