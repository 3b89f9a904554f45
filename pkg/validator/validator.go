package validator

import (
	"math"

	"github.com/go-playground/validator/v10"
)

var (
	// Validate - singleton экземпляр валидатора для переиспользования
	Validate *validator.Validate
)

func init() {
	Validate = validator.New()

	_ = Validate.RegisterValidation("money", validateMoney)
}

// validateMoney проверяет денежную сумму: строго положительная и не более
// двух знаков после запятой (NUMERIC(18,2) в БД).
func validateMoney(fl validator.FieldLevel) bool {
	v := fl.Field().Float()
	if v <= 0 {
		return false
	}
	cents := v * 100
	return math.Abs(cents-math.Round(cents)) < 1e-9
}
