package handlers

import (
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/transitcore/finance_backend/internal/core/domain"
)

// RegisterBindingValidators installs the custom validation tags used by the
// request DTOs on gin's binding engine. Must run once before serving.
func RegisterBindingValidators() error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return nil
	}

	// entrytype accepts the known entry type variants; empty passes so the
	// service can default it to MANUAL.
	if err := v.RegisterValidation("entrytype", func(fl validator.FieldLevel) bool {
		value := fl.Field().String()
		if value == "" {
			return true
		}
		return domain.ValidEntryType(domain.EntryType(value))
	}); err != nil {
		return err
	}

	// nonnegative_decimal rejects negative amounts on a line; which side must
	// be positive is the validator package's job, not the binding layer's.
	return v.RegisterValidation("nonnegative_decimal", func(fl validator.FieldLevel) bool {
		value, ok := fl.Field().Interface().(decimal.Decimal)
		if !ok {
			return false
		}
		return !value.IsNegative()
	})
}
