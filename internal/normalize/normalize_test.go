package normalize_test

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cardflow-labs/pci-checkout/checkout/models"
	"github.com/cardflow-labs/pci-checkout/internal/normalize"
)

func decode(t *testing.T, raw string) any {
	t.Helper()
	var v any
	require.NoError(t, json.Unmarshal([]byte(raw), &v))
	return v
}

func TestString(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want string
		ok   bool
	}{
		{"plain string", "abc", "abc", true},
		{"empty string", "", "", false},
		{"whitespace only", "   ", "", false},
		{"integral number", float64(424242), "424242", true},
		{"fractional number", 21.5, "21.5", true},
		{"NaN", math.NaN(), "", false},
		{"Infinity", math.Inf(1), "", false},
		{"bool", true, "", false},
		{"nil", nil, "", false},
		{"object", map[string]any{}, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := normalize.String(tt.in)
			require.Equal(t, tt.ok, ok)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestCurrencyAmount(t *testing.T) {
	amount, ok := normalize.CurrencyAmount(decode(t, `{"currency":"USD","cents":2150}`))
	require.True(t, ok)
	require.Equal(t, models.CurrencyAmount{Currency: "USD", Cents: 2150}, amount)

	for name, raw := range map[string]string{
		"missing cents":    `{"currency":"USD"}`,
		"string cents":     `{"currency":"USD","cents":"2150"}`,
		"missing currency": `{"cents":2150}`,
		"numeric currency": `{"currency":840,"cents":2150}`,
		"negative cents":   `{"currency":"USD","cents":-1}`,
		"fractional cents": `{"currency":"USD","cents":21.5}`,
		"not an object":    `"USD 21.50"`,
	} {
		t.Run(name, func(t *testing.T) {
			_, ok := normalize.CurrencyAmount(decode(t, raw))
			require.False(t, ok)
		})
	}
}

func TestTotals_FieldsAreIndependent(t *testing.T) {
	sub, total, okSub, okTot := normalize.Totals(decode(t,
		`{"subtotal":{"currency":"USD","cents":2000},"total":{"currency":"USD","cents":2150}}`))
	require.True(t, okSub)
	require.True(t, okTot)
	require.Equal(t, int64(2000), sub.Cents)
	require.Equal(t, int64(2150), total.Cents)

	// A malformed subtotal must not take the total down with it.
	sub, total, okSub, okTot = normalize.Totals(decode(t,
		`{"subtotal":{"cents":"broken"},"total":{"currency":"USD","cents":2150}}`))
	require.False(t, okSub)
	require.True(t, okTot)
	require.Equal(t, int64(2150), total.Cents)

	_, _, okSub, okTot = normalize.Totals(decode(t, `[]`))
	require.False(t, okSub)
	require.False(t, okTot)
}

func TestSavedCardEntries_KeyPriority(t *testing.T) {
	m := decode(t, `{
		"cards": "not-an-array",
		"cardTokens": [{"token":"tok_from_cardTokens"}],
		"paymentMethods": [{"token":"tok_from_paymentMethods"}]
	}`).(map[string]any)

	entries, ok := normalize.SavedCardEntries(m)
	require.True(t, ok)
	require.Len(t, entries, 1)
	card, ok := normalize.SavedCardEntry(entries[0])
	require.True(t, ok)
	require.Equal(t, "tok_from_cardTokens", card.Token)

	_, ok = normalize.SavedCardEntries(decode(t, `{"cards":{"token":"tok"}}`).(map[string]any))
	require.False(t, ok)
}

func TestSavedCardEntry(t *testing.T) {
	t.Run("token alias chain", func(t *testing.T) {
		for _, raw := range []string{
			`{"token":"tok_1"}`,
			`{"cardToken":"tok_1"}`,
			`{"card_token":"tok_1"}`,
		} {
			card, ok := normalize.SavedCardEntry(decode(t, raw))
			require.True(t, ok, raw)
			require.Equal(t, "tok_1", card.Token)
		}
	})

	t.Run("no token under any alias", func(t *testing.T) {
		_, ok := normalize.SavedCardEntry(decode(t, `{"type":"visa","last4":"4242"}`))
		require.False(t, ok)
	})

	t.Run("unrecognized brand is absent, not an error", func(t *testing.T) {
		card, ok := normalize.SavedCardEntry(decode(t, `{"token":"tok_1","brand":"DINERS"}`))
		require.True(t, ok)
		require.Empty(t, card.CardType)
	})

	t.Run("numeric bin and last four coerce to strings", func(t *testing.T) {
		card, ok := normalize.SavedCardEntry(decode(t, `{"token":"tok_1","bin":424242,"last_digits":4242}`))
		require.True(t, ok)
		require.Equal(t, "424242", card.FirstSix)
		require.Equal(t, "4242", card.LastFour)
	})
}

func TestFirstSavedCardFromCustomer(t *testing.T) {
	t.Run("customer envelope with cards array", func(t *testing.T) {
		card, ok := normalize.FirstSavedCardFromCustomer(decode(t,
			`{"customer":{"cards":[{"token":"tok_1","type":"visa","last4":"4242"}]}}`))
		require.True(t, ok)
		require.Equal(t, models.SavedCard{
			Token:    "tok_1",
			CardType: models.CardTypeVisa,
			LastFour: "4242",
		}, card)
	})

	t.Run("tokenless entries are skipped", func(t *testing.T) {
		card, ok := normalize.FirstSavedCardFromCustomer(decode(t,
			`{"cards":[{"type":"visa"},{"token":"tok_2","network":"MASTERCARD"}]}`))
		require.True(t, ok)
		require.Equal(t, "tok_2", card.Token)
		require.Equal(t, models.CardTypeMastercard, card.CardType)
	})

	t.Run("singular fallback when no array present", func(t *testing.T) {
		card, ok := normalize.FirstSavedCardFromCustomer(decode(t,
			`{"customer":{"paymentMethod":{"card_token":"tok_3","brand":"amex"}}}`))
		require.True(t, ok)
		require.Equal(t, "tok_3", card.Token)
		require.Equal(t, models.CardTypeAmex, card.CardType)
	})

	t.Run("no envelope", func(t *testing.T) {
		card, ok := normalize.FirstSavedCardFromCustomer(decode(t,
			`{"savedCards":[{"token":"tok_4"}]}`))
		require.True(t, ok)
		require.Equal(t, "tok_4", card.Token)
	})

	t.Run("nothing usable", func(t *testing.T) {
		_, ok := normalize.FirstSavedCardFromCustomer(decode(t, `{"customer":{}}`))
		require.False(t, ok)
		_, ok = normalize.FirstSavedCardFromCustomer(decode(t, `null`))
		require.False(t, ok)
	})
}

func TestCardTokenPayload(t *testing.T) {
	full := `{
		"firstSix":"411111","lastFour":"1111","token":"tok_new",
		"referenceNumber":"ref-1","tokenHMAC":"hmac-1","cardType":"visa"
	}`
	payload, ok := normalize.CardTokenPayload(decode(t, full))
	require.True(t, ok)
	require.Equal(t, "tok_new", payload.Token)
	require.Equal(t, models.CardTypeVisa, payload.CardType)

	// Each required field missing fails the whole payload.
	for _, field := range []string{"firstSix", "lastFour", "token", "referenceNumber", "tokenHMAC"} {
		m := decode(t, full).(map[string]any)
		delete(m, field)
		_, ok := normalize.CardTokenPayload(m)
		require.False(t, ok, field)
	}

	// The brand alone is optional.
	m := decode(t, full).(map[string]any)
	delete(m, "cardType")
	payload, ok = normalize.CardTokenPayload(m)
	require.True(t, ok)
	require.Empty(t, payload.CardType)
}

func TestToken(t *testing.T) {
	token, ok := normalize.Token(decode(t, `{"token":"tok_cvv"}`))
	require.True(t, ok)
	require.Equal(t, "tok_cvv", token)

	_, ok = normalize.Token(decode(t, `{"token":""}`))
	require.False(t, ok)
	_, ok = normalize.Token(nil)
	require.False(t, ok)
}
