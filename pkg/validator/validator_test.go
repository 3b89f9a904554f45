package validator

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type moneyPayload struct {
	Amount float64 `validate:"required,money"`
}

func TestMoneyRule(t *testing.T) {
	cases := []struct {
		name   string
		amount float64
		valid  bool
	}{
		{"whole", 100, true},
		{"two decimals", 99.99, true},
		{"one cent", 0.01, true},
		{"zero", 0, false},
		{"negative", -5, false},
		{"three decimals", 10.999, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := Validate.Struct(&moneyPayload{Amount: tc.amount})
			if tc.valid {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}
