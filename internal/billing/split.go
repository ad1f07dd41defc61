package billing

import (
	"github.com/shopspring/decimal"
)

// moneyPlaces is the precision stored for amounts.
const moneyPlaces = 2

// EqualShare is cost divided evenly among n subscribers, rounded to cents.
func EqualShare(cost decimal.Decimal, n int) decimal.Decimal {
	if n <= 0 {
		return decimal.Zero
	}
	return cost.Div(decimal.NewFromInt(int64(n))).Round(moneyPlaces)
}
