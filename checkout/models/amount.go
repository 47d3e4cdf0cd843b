package models

import "fmt"

// CurrencyAmount is a smallest-unit amount in a single currency.
// Cents is always a finite integer >= 0 and Currency is non-empty for
// any value produced by the normalizer.
type CurrencyAmount struct {
	Currency string `json:"currency"`
	Cents    int64  `json:"cents"`
}

// Display renders the amount as "$21.50 USD".
func (a CurrencyAmount) Display() string {
	return fmt.Sprintf("$%d.%02d %s", a.Cents/100, a.Cents%100, a.Currency)
}

func (a CurrencyAmount) IsZero() bool {
	return a.Currency == "" && a.Cents == 0
}
