package fee

import (
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/trezcool/masomo-fees/core"
)

var (
	planTag  = "plan"
	planText = "{0} must be one of one_shot, semester_wise, installment_wise"

	percentTag  = "percent"
	percentText = "{0} must be between 0 and 100"
)

// InitValidators registers the fee validators on validate.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(planTag, planValidation)
	core.RegisterCustomTranslation(validate, translator, planTag, planText)

	_ = validate.RegisterValidation(percentTag, percentValidation)
	core.RegisterCustomTranslation(validate, translator, percentTag, percentText)
}

// Custom Validators

// planValidation checks that the field is a known payment Plan.
func planValidation(fl validator.FieldLevel) bool {
	switch v := fl.Field().Interface().(type) {
	case Plan:
		return v.Valid()
	case string:
		return Plan(v).Valid()
	}
	return false
}

// percentValidation checks that the field is within [0, 100].
// Decimals reach it as float64 once core.InitValidators registered their type func.
func percentValidation(fl validator.FieldLevel) bool {
	switch v := fl.Field().Interface().(type) {
	case decimal.Decimal:
		return validPercentage(v)
	case float64:
		return validPercentage(decimal.NewFromFloat(v))
	}
	return false
}
