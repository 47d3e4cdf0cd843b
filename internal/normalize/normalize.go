// Package normalize converts the processor's loosely-typed JSON responses
// into the canonical checkout value types. The backend's response shape is
// not stable across environments, so every lookup runs through an ordered
// list of historical field names and the first structurally valid match
// wins. Nothing in this package panics on malformed input; absence is
// always signaled with ok=false.
package normalize

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/cardflow-labs/pci-checkout/checkout/models"
)

// String coerces a value into a usable string field: a string with
// non-blank content, or a finite number rendered in decimal form.
// Everything else (null, bool, objects, NaN, Infinity) is rejected.
func String(v any) (string, bool) {
	switch s := v.(type) {
	case string:
		if strings.TrimSpace(s) == "" {
			return "", false
		}
		return s, true
	case float64:
		if math.IsNaN(s) || math.IsInf(s, 0) {
			return "", false
		}
		return strconv.FormatFloat(s, 'f', -1, 64), true
	case int:
		return strconv.Itoa(s), true
	case int64:
		return strconv.FormatInt(s, 10), true
	case json.Number:
		return s.String(), true
	}
	return "", false
}

// cents accepts only finite, integral, non-negative numbers.
func cents(v any) (int64, bool) {
	switch n := v.(type) {
	case float64:
		if math.IsNaN(n) || math.IsInf(n, 0) || n != math.Trunc(n) || n < 0 {
			return 0, false
		}
		return int64(n), true
	case int:
		if n < 0 {
			return 0, false
		}
		return int64(n), true
	case int64:
		if n < 0 {
			return 0, false
		}
		return n, true
	case json.Number:
		i, err := n.Int64()
		if err != nil || i < 0 {
			return 0, false
		}
		return i, true
	}
	return 0, false
}

func record(v any) (map[string]any, bool) {
	m, ok := v.(map[string]any)
	return m, ok
}

// firstString walks keys in priority order and returns the first value
// that coerces to a string.
func firstString(m map[string]any, keys ...string) (string, bool) {
	for _, k := range keys {
		if s, ok := String(m[k]); ok {
			return s, true
		}
	}
	return "", false
}

// firstArray walks keys in priority order and returns the first value that
// actually is an array, ignoring non-array values at higher-priority keys.
func firstArray(m map[string]any, keys ...string) ([]any, bool) {
	for _, k := range keys {
		if arr, ok := m[k].([]any); ok {
			return arr, true
		}
	}
	return nil, false
}

// CurrencyAmount succeeds only for an object carrying a numeric "cents"
// and a string "currency".
func CurrencyAmount(v any) (models.CurrencyAmount, bool) {
	m, ok := record(v)
	if !ok {
		return models.CurrencyAmount{}, false
	}
	c, ok := cents(m["cents"])
	if !ok {
		return models.CurrencyAmount{}, false
	}
	cur, ok := m["currency"].(string)
	if !ok || cur == "" {
		return models.CurrencyAmount{}, false
	}
	return models.CurrencyAmount{Currency: cur, Cents: c}, true
}

// Totals applies CurrencyAmount independently to the subtotal and total
// keys; each side is optional and a malformed one does not affect the
// other.
func Totals(v any) (subtotal, total models.CurrencyAmount, okSub, okTot bool) {
	m, ok := record(v)
	if !ok {
		return
	}
	subtotal, okSub = CurrencyAmount(m["subtotal"])
	total, okTot = CurrencyAmount(m["total"])
	return
}

// savedCardListKeys is the ordered set of historical names the backend has
// used for the saved-card array.
var savedCardListKeys = []string{
	"cards",
	"cardTokens",
	"paymentMethods",
	"payment_methods",
	"savedCards",
	"saved_cards",
}

// SavedCardEntries returns the first saved-card array found under any of
// the known key names.
func SavedCardEntries(m map[string]any) ([]any, bool) {
	return firstArray(m, savedCardListKeys...)
}

// SavedCardEntry parses one saved-card record. The token is mandatory;
// entries without one under any alias are dropped. Brand, BIN and last
// four resolve through their own alias chains, and an unrecognized brand
// yields an absent brand rather than an error.
func SavedCardEntry(v any) (models.SavedCard, bool) {
	m, ok := record(v)
	if !ok {
		return models.SavedCard{}, false
	}
	token, ok := firstString(m, "token", "cardToken", "card_token")
	if !ok {
		return models.SavedCard{}, false
	}

	card := models.SavedCard{Token: token}
	if raw, ok := firstString(m, "cardType", "type", "brand", "network"); ok {
		if ct, ok := models.ParseCardType(raw); ok {
			card.CardType = ct
		}
	}
	card.FirstSix, _ = firstString(m, "firstSix", "first_six", "first6", "bin", "binNumber")
	card.LastFour, _ = firstString(m, "lastFour", "last_four", "last4", "lastDigits", "last_digits")
	return card, true
}

// FirstSavedCardFromCustomer unwraps an optional customer envelope and
// returns the first entry of the saved-card list that parses, falling
// back to the singular card keys when no list is present.
func FirstSavedCardFromCustomer(v any) (models.SavedCard, bool) {
	m, ok := record(v)
	if !ok {
		return models.SavedCard{}, false
	}
	if customer, ok := record(m["customer"]); ok {
		m = customer
	}

	if entries, ok := SavedCardEntries(m); ok {
		for _, entry := range entries {
			if card, ok := SavedCardEntry(entry); ok {
				return card, true
			}
		}
	}

	for _, key := range []string{"card", "paymentMethod", "savedCard"} {
		if card, ok := SavedCardEntry(m[key]); ok {
			return card, true
		}
	}
	return models.SavedCard{}, false
}

// CardTokenPayload validates a new-card tokenization response. FirstSix,
// lastFour, token, referenceNumber and tokenHMAC are all required; the
// brand is optional.
func CardTokenPayload(v any) (models.CardTokenPayload, bool) {
	m, ok := record(v)
	if !ok {
		return models.CardTokenPayload{}, false
	}

	p := models.CardTokenPayload{}
	if p.FirstSix, ok = String(m["firstSix"]); !ok {
		return models.CardTokenPayload{}, false
	}
	if p.LastFour, ok = String(m["lastFour"]); !ok {
		return models.CardTokenPayload{}, false
	}
	if p.Token, ok = String(m["token"]); !ok {
		return models.CardTokenPayload{}, false
	}
	if p.ReferenceNumber, ok = String(m["referenceNumber"]); !ok {
		return models.CardTokenPayload{}, false
	}
	if p.TokenHMAC, ok = String(m["tokenHMAC"]); !ok {
		return models.CardTokenPayload{}, false
	}
	if raw, ok := String(m["cardType"]); ok {
		if ct, ok := models.ParseCardType(raw); ok {
			p.CardType = ct
		}
	}
	return p, true
}

// Token extracts the bare token of a CVV-only tokenization response.
func Token(v any) (string, bool) {
	m, ok := record(v)
	if !ok {
		return "", false
	}
	return firstString(m, "token", "cardToken", "card_token")
}
