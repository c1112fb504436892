package handlers

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	apperrors "budgetoffice/internal/errors"
	"budgetoffice/internal/models"
	"budgetoffice/internal/pagination"
	"budgetoffice/internal/services"
	"budgetoffice/internal/uuid"
)

const dateLayout = "2006-01-02"

var allowedImageExts = map[string]bool{".jpg": true, ".jpeg": true, ".png": true, ".gif": true, ".webp": true}

// TransactionHandler handles transaction-related requests.
type TransactionHandler struct {
	transactionService services.TransactionServicer
	auditService       services.AuditServicer
	uploadDir          string
	maxUploadBytes     int64
}

// NewTransactionHandler creates a new TransactionHandler. Receipt images are
// stored under uploadDir and limited to maxUploadMB megabytes.
func NewTransactionHandler(transactionService services.TransactionServicer, auditService services.AuditServicer, uploadDir string, maxUploadMB int64) *TransactionHandler {
	return &TransactionHandler{
		transactionService: transactionService,
		auditService:       auditService,
		uploadDir:          uploadDir,
		maxUploadBytes:     maxUploadMB << 20,
	}
}

// CreateTransactionRequest represents the request payload for recording a transaction.
type CreateTransactionRequest struct {
	UserID          string           `json:"user_id" binding:"omitempty,uuid"`
	CategoryID      string           `json:"category_id" binding:"required,uuid"`
	Amount          *decimal.Decimal `json:"amount" binding:"required,gte=0" swaggertype:"string"`
	Description     string           `json:"description" binding:"required,max=500"`
	TransactionDate string           `json:"transaction_date" binding:"omitempty,datetime=2006-01-02"`
}

// UpdateTransactionRequest represents the request payload for editing a transaction.
type UpdateTransactionRequest struct {
	UserID          *string          `json:"user_id" binding:"omitempty,uuid"`
	CategoryID      *string          `json:"category_id" binding:"omitempty,uuid"`
	Amount          *decimal.Decimal `json:"amount" binding:"omitempty,gte=0" swaggertype:"string"`
	Description     *string          `json:"description" binding:"omitempty,min=1,max=500"`
	TransactionDate *string          `json:"transaction_date" binding:"omitempty,datetime=2006-01-02"`
}

// CreateTransaction handles recording a new transaction.
// @Summary     Create a transaction
// @Description Record a transaction. Expenses add to the matching budget's spend.
// @Tags        transactions
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       request body CreateTransactionRequest true "Transaction details"
// @Success     201 {object} models.Transaction "Transaction created"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "User or category not found"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /transactions [post]
func (h *TransactionHandler) CreateTransaction(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req CreateTransactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	input := services.TransactionInput{
		UserID:      req.UserID,
		CategoryID:  req.CategoryID,
		Amount:      *req.Amount,
		Description: req.Description,
	}
	if input.UserID == "" {
		input.UserID = userID
	}
	if req.TransactionDate != "" {
		// Format already checked by the datetime binding.
		input.TransactionDate, _ = time.Parse(dateLayout, req.TransactionDate)
	}

	tx, err := h.transactionService.CreateTransaction(input)
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(userID, "CREATE_TRANSACTION", "transaction", tx.ID, c.ClientIP(),
		map[string]interface{}{"amount": tx.Amount.String(), "category_id": tx.CategoryID, "user_id": tx.UserID})

	c.JSON(http.StatusCreated, gin.H{"transaction": tx})
}

// parseTransactionFilter reads the transaction list filters from the query string.
func parseTransactionFilter(c *gin.Context) (services.TransactionFilter, error) {
	var filter services.TransactionFilter
	var err error

	if filter.UserID, err = parseOptionalID(c.Query("user_id"), "user_id"); err != nil {
		return filter, err
	}
	if filter.CategoryID, err = parseOptionalID(c.Query("category_id"), "category_id"); err != nil {
		return filter, err
	}
	if v := c.Query("category_type"); v != "" {
		t := models.CategoryType(v)
		if !t.IsValid() {
			return filter, apperrors.ErrInvalidCategoryType
		}
		filter.CategoryType = &t
	}
	for param, dst := range map[string]**time.Time{"from_date": &filter.FromDate, "to_date": &filter.ToDate} {
		v := c.Query(param)
		if v == "" {
			continue
		}
		d, err := time.Parse(dateLayout, v)
		if err != nil {
			return filter, apperrors.WithMessage(apperrors.ErrInvalidInput, param+" must be YYYY-MM-DD")
		}
		*dst = &d
	}
	switch trashed := services.Trashed(c.Query("trashed")); trashed {
	case services.TrashedNone, services.TrashedWith, services.TrashedOnly:
		filter.Trashed = trashed
	default:
		return filter, apperrors.WithMessage(apperrors.ErrInvalidInput, "trashed must be 'with' or 'only'")
	}
	filter.Search = c.Query("search")
	return filter, nil
}

// GetTransactions handles listing transactions.
// @Summary     Get transactions
// @Description Get a paginated list of transactions, newest first
// @Tags        transactions
// @Produce     json
// @Security    BearerAuth
// @Param       user_id       query string false "Filter by user"
// @Param       category_id   query string false "Filter by category"
// @Param       category_type query string false "Filter by category type (ingreso, egreso)"
// @Param       from_date     query string false "Earliest transaction date (YYYY-MM-DD)"
// @Param       to_date       query string false "Latest transaction date (YYYY-MM-DD)"
// @Param       search        query string false "Case-insensitive description match"
// @Param       trashed       query string false "Include deleted transactions: with, only"
// @Param       page          query int    false "Page number (default 1)"
// @Param       page_size     query int    false "Items per page (default 20, max 100)"
// @Success     200 {object} pagination.PageResponse[models.Transaction] "Paginated transactions"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /transactions [get]
func (h *TransactionHandler) GetTransactions(c *gin.Context) {
	var page pagination.PageRequest
	if err := c.ShouldBindQuery(&page); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	filter, err := parseTransactionFilter(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	result, err := h.transactionService.GetTransactions(filter, page)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// GetTransaction handles retrieving a specific transaction.
// @Summary     Get transaction by ID
// @Tags        transactions
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Transaction ID"
// @Success     200 {object} models.Transaction "Transaction details"
// @Failure     400 {object} ErrorResponse "Invalid transaction ID"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Transaction not found"
// @Router      /transactions/{id} [get]
func (h *TransactionHandler) GetTransaction(c *gin.Context) {
	transactionID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	tx, err := h.transactionService.GetTransactionByID(transactionID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"transaction": tx})
}

// UpdateTransaction handles editing a transaction.
// @Summary     Update transaction
// @Description Edit a transaction. The change in amount or category is applied to the matching budgets.
// @Tags        transactions
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id      path string                   true "Transaction ID"
// @Param       request body UpdateTransactionRequest true "Fields to change"
// @Success     200 {object} models.Transaction "Updated transaction"
// @Failure     400 {object} ErrorResponse "Invalid input or transaction ID"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Transaction not found"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /transactions/{id} [put]
func (h *TransactionHandler) UpdateTransaction(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	transactionID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req UpdateTransactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	fields := services.TransactionUpdateFields{
		UserID:      req.UserID,
		CategoryID:  req.CategoryID,
		Amount:      req.Amount,
		Description: req.Description,
	}
	if req.TransactionDate != nil {
		d, _ := time.Parse(dateLayout, *req.TransactionDate)
		fields.TransactionDate = &d
	}

	tx, err := h.transactionService.UpdateTransaction(transactionID, fields)
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(userID, "UPDATE_TRANSACTION", "transaction", transactionID, c.ClientIP(),
		map[string]interface{}{"amount": tx.Amount.String(), "category_id": tx.CategoryID})

	c.JSON(http.StatusOK, gin.H{"transaction": tx})
}

// DeleteTransaction handles soft-deleting a transaction.
// @Summary     Delete transaction
// @Description Soft delete a transaction and reverse its effect on the matching budget
// @Tags        transactions
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Transaction ID"
// @Success     200 {object} map[string]string "Transaction deleted"
// @Failure     400 {object} ErrorResponse "Invalid transaction ID"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Transaction not found"
// @Router      /transactions/{id} [delete]
func (h *TransactionHandler) DeleteTransaction(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	transactionID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	if err := h.transactionService.DeleteTransaction(transactionID); err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(userID, "DELETE_TRANSACTION", "transaction", transactionID, c.ClientIP(), nil)

	c.JSON(http.StatusOK, gin.H{"message": "Transaction deleted successfully"})
}

// BulkDeleteTransactions soft-deletes several transactions at once.
// @Summary     Bulk delete transactions
// @Description Delete all listed transactions, or none if any is missing
// @Tags        transactions
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       request body BulkDeleteRequest true "Transaction IDs"
// @Success     200 {object} BulkDeleteResponse "Number of transactions deleted"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Transaction not found"
// @Router      /transactions/bulk-delete [post]
func (h *TransactionHandler) BulkDeleteTransactions(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req BulkDeleteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}
	ids, err := parseIDs(req.IDs)
	if err != nil {
		respondWithError(c, err)
		return
	}

	deleted, err := h.transactionService.BulkDeleteTransactions(ids)
	if err != nil {
		respondWithError(c, err)
		return
	}

	for _, id := range ids {
		h.auditService.Log(userID, "DELETE_TRANSACTION", "transaction", id, c.ClientIP(), nil)
	}

	c.JSON(http.StatusOK, BulkDeleteResponse{Deleted: deleted})
}

// RestoreTransaction brings back a soft-deleted transaction. Budget spend is
// left as it is.
// @Summary     Restore transaction
// @Tags        transactions
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Transaction ID"
// @Success     200 {object} models.Transaction "Restored transaction"
// @Failure     400 {object} ErrorResponse "Invalid transaction ID"
// @Failure     404 {object} ErrorResponse "Transaction not found"
// @Failure     409 {object} ErrorResponse "Transaction is not deleted"
// @Router      /transactions/{id}/restore [post]
func (h *TransactionHandler) RestoreTransaction(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	transactionID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	tx, err := h.transactionService.RestoreTransaction(transactionID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(userID, "RESTORE_TRANSACTION", "transaction", transactionID, c.ClientIP(), nil)

	c.JSON(http.StatusOK, gin.H{"transaction": tx})
}

// ForceDeleteTransaction permanently removes a soft-deleted transaction.
// @Summary     Force delete transaction
// @Tags        transactions
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Transaction ID"
// @Success     200 {object} map[string]string "Transaction permanently deleted"
// @Failure     400 {object} ErrorResponse "Invalid transaction ID"
// @Failure     404 {object} ErrorResponse "Transaction not found"
// @Failure     409 {object} ErrorResponse "Transaction is not deleted"
// @Router      /transactions/{id}/force [delete]
func (h *TransactionHandler) ForceDeleteTransaction(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	transactionID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	if err := h.transactionService.ForceDeleteTransaction(transactionID); err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(userID, "FORCE_DELETE_TRANSACTION", "transaction", transactionID, c.ClientIP(), nil)

	c.JSON(http.StatusOK, gin.H{"message": "Transaction permanently deleted"})
}

// UploadImage stores a receipt image for a transaction.
// @Summary     Upload transaction image
// @Description Attach a receipt image (jpg, png, gif, webp) to a transaction
// @Tags        transactions
// @Accept      multipart/form-data
// @Produce     json
// @Security    BearerAuth
// @Param       id    path     string true "Transaction ID"
// @Param       image formData file   true "Image file"
// @Success     200 {object} models.Transaction "Transaction with image path"
// @Failure     400 {object} ErrorResponse "Invalid file"
// @Failure     404 {object} ErrorResponse "Transaction not found"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /transactions/{id}/image [post]
func (h *TransactionHandler) UploadImage(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	transactionID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	file, err := c.FormFile("image")
	if err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, "image file is required"))
		return
	}
	if file.Size > h.maxUploadBytes {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, "image file is too large"))
		return
	}
	ext := strings.ToLower(filepath.Ext(file.Filename))
	if !allowedImageExts[ext] {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, "image must be jpg, png, gif or webp"))
		return
	}

	// Fail before writing a file for a transaction that does not exist.
	if _, err := h.transactionService.GetTransactionByID(transactionID); err != nil {
		respondWithError(c, err)
		return
	}

	if err := os.MkdirAll(h.uploadDir, 0o755); err != nil {
		respondWithError(c, apperrors.Wrap(apperrors.ErrInternalServer, err))
		return
	}
	name := uuid.New() + ext
	if err := c.SaveUploadedFile(file, filepath.Join(h.uploadDir, name)); err != nil {
		respondWithError(c, apperrors.Wrap(apperrors.ErrInternalServer, err))
		return
	}

	tx, err := h.transactionService.AttachImage(transactionID, "/uploads/"+name)
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(userID, "UPLOAD_TRANSACTION_IMAGE", "transaction", transactionID, c.ClientIP(),
		map[string]interface{}{"image_path": tx.ImagePath})

	c.JSON(http.StatusOK, gin.H{"transaction": tx})
}
