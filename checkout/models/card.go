package models

import "strings"

// CardType is the card brand as reported by the tokenization vendor.
type CardType string

const (
	CardTypeVisa       CardType = "VISA"
	CardTypeMastercard CardType = "MASTERCARD"
	CardTypeAmex       CardType = "AMEX"
	CardTypeDiscover   CardType = "DISCOVER"
)

// ParseCardType matches a raw brand value against the known set after
// uppercasing. Unrecognized values yield ok=false, never an error.
func ParseCardType(raw string) (CardType, bool) {
	switch CardType(strings.ToUpper(strings.TrimSpace(raw))) {
	case CardTypeVisa:
		return CardTypeVisa, true
	case CardTypeMastercard:
		return CardTypeMastercard, true
	case CardTypeAmex:
		return CardTypeAmex, true
	case CardTypeDiscover:
		return CardTypeDiscover, true
	}
	return "", false
}

// SavedCard is a reusable card token plus whatever display metadata the
// backend returned with it. Token is always non-empty; everything else is
// optional. CardType == "" means the brand is unknown, which makes the
// card ineligible for saved-card checkout until it is re-saved.
type SavedCard struct {
	Token    string   `json:"token"`
	CardType CardType `json:"cardType,omitempty"`
	FirstSix string   `json:"firstSix,omitempty"`
	LastFour string   `json:"lastFour,omitempty"`
}

// Usable reports whether the card can be charged through the saved-card
// flow: the CVV-only input needs the brand to re-tokenize safely.
func (c SavedCard) Usable() bool {
	return c.Token != "" && c.CardType != ""
}

// CardTokenPayload is the fully validated response of a new-card
// tokenization. All string fields except CardType are required.
type CardTokenPayload struct {
	FirstSix        string
	LastFour        string
	Token           string
	ReferenceNumber string
	TokenHMAC       string
	CardType        CardType
}

// SavedCard builds the saved-card value seeded opportunistically after a
// new-card tokenization succeeds.
func (p CardTokenPayload) SavedCard() SavedCard {
	return SavedCard{
		Token:    p.Token,
		CardType: p.CardType,
		FirstSix: p.FirstSix,
		LastFour: p.LastFour,
	}
}
