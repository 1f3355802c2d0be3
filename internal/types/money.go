// README: Common money value object used across modules.
package types

// DefaultCurrency is applied when a stored amount carries no currency.
const DefaultCurrency = "IRR"

type Money struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

func NewMoney(amount int64) Money {
	return Money{Amount: amount, Currency: DefaultCurrency}
}
