// Package validator provides custom validation functions for Gin's binding engine.
package validator

import (
	"reflect"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"budgetoffice/internal/models"
)

// Register registers all custom validators with the Gin binding engine.
// Decimal fields validate as their float value, so tags such as gte=0 apply
// to amounts.
func Register() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		RegisterOn(v)
	}
}

// RegisterOn installs the custom validators on v.
func RegisterOn(v *validator.Validate) {
	v.RegisterCustomTypeFunc(decimalValue, decimal.Decimal{})
	_ = v.RegisterValidation("category_type", validateCategoryType)
	_ = v.RegisterValidation("month_name", validateMonthName)
}

func decimalValue(field reflect.Value) interface{} {
	if d, ok := field.Interface().(decimal.Decimal); ok {
		f, _ := d.Float64()
		return f
	}
	return nil
}

func validateCategoryType(fl validator.FieldLevel) bool {
	return models.CategoryType(fl.Field().String()).IsValid()
}

func validateMonthName(fl validator.FieldLevel) bool {
	return models.Month(fl.Field().String()).IsValid()
}
