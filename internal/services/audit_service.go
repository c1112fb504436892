package services

import (
	"encoding/json"

	"gorm.io/gorm"

	"budgetoffice/internal/logger"
	"budgetoffice/internal/models"
)

type auditService struct {
	db *gorm.DB
}

// NewAuditService returns an AuditServicer that writes to the audit_logs table.
func NewAuditService(db *gorm.DB) AuditServicer {
	return &auditService{db: db}
}

// encodeChanges renders the change set stored with an audit entry. A nil map
// is stored as an empty string.
func encodeChanges(changes map[string]interface{}) (string, error) {
	if changes == nil {
		return "", nil
	}
	data, err := json.Marshal(changes)
	if err != nil {
		return "{}", err
	}
	return string(data), nil
}

// Log records an operator action. It never fails the caller: the action it
// describes has already been committed.
func (s *auditService) Log(userID, action, resourceType, resourceID, ipAddress string, changes map[string]interface{}) {
	log := logger.Named("audit").With(
		"user_id", userID,
		"action", action,
		"resource_type", resourceType,
		"resource_id", resourceID,
	)

	encoded, err := encodeChanges(changes)
	if err != nil {
		log.Errorw("audit changes not encodable", "error", err)
	}

	if err := s.db.Create(&models.AuditLog{
		UserID:       userID,
		Action:       action,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		IPAddress:    ipAddress,
		Changes:      encoded,
	}).Error; err != nil {
		log.Errorw("audit entry not written", "error", err)
	}
}
