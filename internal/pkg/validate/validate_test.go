package validate

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

type sample struct {
	Title  string           `json:"title" validate:"required"`
	Amount decimal.Decimal  `json:"amount" validate:"required,gt=0,money"`
	Extra  *decimal.Decimal `json:"extra" validate:"omitempty,gt=0,money"`
	Kind   string           `json:"kind" validate:"omitempty,oneof=a b"`
}

func TestCheckPasses(t *testing.T) {
	extra := decimal.NewFromInt(5)
	msgs := Check(sample{Title: "t", Amount: decimal.NewFromFloat(0.5), Extra: &extra, Kind: "a"})
	assert.Empty(t, msgs)
}

func TestCheckReportsJSONNames(t *testing.T) {
	neg := decimal.NewFromInt(-1)
	msgs := Check(sample{Amount: decimal.Zero, Extra: &neg, Kind: "z"})

	assert.Contains(t, msgs, "title is required")
	assert.Contains(t, msgs, "amount is required")
	assert.Contains(t, msgs, "extra must be greater than 0")
	assert.Contains(t, msgs, "kind must be one of: a, b")
}

func TestCheckNegativeAmount(t *testing.T) {
	msgs := Check(sample{Title: "t", Amount: decimal.NewFromInt(-3)})
	assert.Equal(t, []string{"amount must be greater than 0"}, msgs)
}

func TestCheckMoneyPrecision(t *testing.T) {
	msgs := Check(sample{Title: "t", Amount: decimal.RequireFromString("0.001")})
	assert.Equal(t, []string{"amount must have at most 2 decimal places"}, msgs)

	extra := decimal.RequireFromString("2.345")
	msgs = Check(sample{Title: "t", Amount: decimal.RequireFromString("10.50"), Extra: &extra})
	assert.Equal(t, []string{"extra must have at most 2 decimal places"}, msgs)

	assert.Empty(t, Check(sample{Title: "t", Amount: decimal.RequireFromString("1999.99")}))
}
