package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Transaction records money moving in or out under a category for a user.
type Transaction struct {
	Base
	UserID          string          `gorm:"type:uuid;not null;index" json:"user_id"`
	CategoryID      string          `gorm:"type:uuid;not null;index" json:"category_id"`
	Amount          decimal.Decimal `gorm:"type:numeric(14,2);not null" json:"amount"`
	Description     string          `gorm:"size:500;not null" json:"description"`
	TransactionDate time.Time       `gorm:"type:date;not null;index" json:"transaction_date"`
	ImagePath       string          `json:"image_path,omitempty"`

	// Relationships
	User     *User     `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Category *Category `gorm:"foreignKey:CategoryID" json:"category,omitempty"`
}
