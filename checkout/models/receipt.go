package models

import "time"

// Flow identifies which submission lifecycle produced a receipt.
type Flow string

const (
	FlowNewCard       Flow = "new_card"
	FlowSavedLookup   Flow = "saved_lookup"
	FlowSavedCheckout Flow = "saved_checkout"
)

// Receipt is the persisted outcome of a completed checkout attempt.
// It never carries the card token itself, only display metadata.
type Receipt struct {
	ID        string         `json:"id"`
	Flow      Flow           `json:"flow"`
	Status    string         `json:"status"`
	Message   string         `json:"message,omitempty"`
	Amount    CurrencyAmount `json:"amount"`
	CardType  CardType       `json:"cardType,omitempty"`
	LastFour  string         `json:"lastFour,omitempty"`
	CreatedAt time.Time      `json:"createdAt"`
}
