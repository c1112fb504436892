package models

// CategoryType represents the type of category
type CategoryType string

const (
	CategoryTypeIncome  CategoryType = "ingreso"
	CategoryTypeExpense CategoryType = "egreso"
)

// IsValid reports whether t is one of the known category types.
func (t CategoryType) IsValid() bool {
	return t == CategoryTypeIncome || t == CategoryTypeExpense
}

// Category classifies transactions as income or expense. Categories are
// shared by every user.
type Category struct {
	Base
	Name string       `gorm:"size:255;not null" json:"name"`
	Type CategoryType `gorm:"size:16;not null;index" json:"type"`

	// Relationships
	Transactions []Transaction `gorm:"foreignKey:CategoryID" json:"transactions,omitempty"`
	Budgets      []Budget      `gorm:"foreignKey:CategoryID" json:"budgets,omitempty"`
}
