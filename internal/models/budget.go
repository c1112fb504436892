package models

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// Month is the English name of a calendar month, as stored on budgets.
type Month string

// Months lists the valid month names in calendar order.
var Months = []Month{
	"January", "February", "March", "April", "May", "June",
	"July", "August", "September", "October", "November", "December",
}

// IsValid reports whether m names a calendar month.
func (m Month) IsValid() bool {
	for _, v := range Months {
		if v == m {
			return true
		}
	}
	return false
}

// MonthOf returns the Month for t.
func MonthOf(t time.Time) Month {
	return Month(t.Month().String())
}

// AvailabilityStatus classifies the remaining amount of a budget.
type AvailabilityStatus string

const (
	AvailabilityOK         AvailabilityStatus = "ok"
	AvailabilityOverBudget AvailabilityStatus = "over_budget"
)

// Budget is a monthly spending envelope for one user and category.
// SpendAmount is maintained by budget reconciliation only.
type Budget struct {
	Base
	UserID         string          `gorm:"type:uuid;not null;index:idx_budgets_user_category" json:"user_id"`
	CategoryID     string          `gorm:"type:uuid;not null;index:idx_budgets_user_category" json:"category_id"`
	Title          string          `gorm:"size:255;not null" json:"title"`
	AssignedAmount decimal.Decimal `gorm:"type:numeric(14,2);not null" json:"assigned_amount"`
	SpendAmount    decimal.Decimal `gorm:"type:numeric(14,2);not null;default:0" json:"spend_amount"`
	Month          Month           `gorm:"size:9;not null" json:"month"`
	Year           int             `gorm:"not null" json:"year"`

	// Relationships
	User     *User     `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Category *Category `gorm:"foreignKey:CategoryID" json:"category,omitempty"`
}

// Available returns the assigned amount minus what has been spent.
func (b Budget) Available() decimal.Decimal {
	return b.AssignedAmount.Sub(b.SpendAmount)
}

// Status reports whether the budget still has room (available >= 0).
func (b Budget) Status() AvailabilityStatus {
	if b.Available().IsNegative() {
		return AvailabilityOverBudget
	}
	return AvailabilityOK
}

// MarshalJSON adds the derived available amount and status to the stored fields.
func (b Budget) MarshalJSON() ([]byte, error) {
	type budget Budget
	return json.Marshal(struct {
		budget
		Available decimal.Decimal    `json:"available"`
		Status    AvailabilityStatus `json:"status"`
	}{
		budget:    budget(b),
		Available: b.Available(),
		Status:    b.Status(),
	})
}
