package checkout_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/cardflow-labs/pci-checkout/checkout"
)

// newTestAPI wires a router against a fake processor backend.
func newTestAPI(t *testing.T, p *fakeProcessor) (chi.Router, *checkout.Repository) {
	cfg := testConfig(p.srv.URL)
	o, repo, _ := newTestOrchestrator(cfg)
	router := chi.NewRouter()
	checkout.NewAPI(o, repo).AppendRoutes(router)
	return router, repo
}

func TestAPI_Totals(t *testing.T) {
	p := newProcessor(t)
	p.respond("/api/checkout/totals/swe-challenge",
		`{"subtotal":{"currency":"USD","cents":2000},"total":{"currency":"USD","cents":2150}}`)
	router, _ := newTestAPI(t, p)

	t.Run("before refresh the default applies", func(t *testing.T) {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/checkout/totals", nil)
		router.ServeHTTP(w, req)

		require.Equal(t, http.StatusOK, w.Code)
		var resp struct {
			Display string `json:"display"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		require.Equal(t, "$20.00 USD", resp.Display)
	})

	t.Run("refresh picks up the computed total", func(t *testing.T) {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/checkout/totals/refresh", nil)
		router.ServeHTTP(w, req)

		require.Equal(t, http.StatusOK, w.Code)
		var resp struct {
			Display     string `json:"display"`
			TotalsError string `json:"totalsError"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		require.Equal(t, "$21.50 USD", resp.Display)
		require.Empty(t, resp.TotalsError)
	})
}

func TestAPI_CardCheckout(t *testing.T) {
	p := newProcessor(t)
	p.respond("/api/checkout/card/swe-challenge", `{}`)
	router, repo := newTestAPI(t, p)

	body, _ := json.Marshal(map[string]any{
		"form": map[string]any{
			"expMonth": "9", "expYear": "33",
			"email": "test@example.com", "firstName": "Ada", "lastName": "Lovelace",
			"address1": "1 Main St", "city": "Springfield", "state": "IL",
			"zip": "62701", "country": "US",
		},
		"tokenResponse": tokenPayload(),
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/checkout/card", bytes.NewBuffer(body))
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		State checkout.SubmissionState `json:"state"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Equal(t, checkout.StatusSuccess, resp.State.Status)

	// The receipt surface reflects the completed checkout.
	w2 := httptest.NewRecorder()
	req2 := httptest.NewRequest(http.MethodGet, "/receipts", nil)
	router.ServeHTTP(w2, req2)
	require.Equal(t, http.StatusOK, w2.Code)
	var receipts []struct {
		Flow   string `json:"flow"`
		Status string `json:"status"`
	}
	require.NoError(t, json.Unmarshal(w2.Body.Bytes(), &receipts))
	require.Len(t, receipts, 1)
	require.Equal(t, "new_card", receipts[0].Flow)
	require.Equal(t, "success", receipts[0].Status)

	receipts2, err := repo.List(req2.Context(), 0)
	require.NoError(t, err)
	require.Len(t, receipts2, 1)
}

func TestAPI_CardCheckout_MissingFields(t *testing.T) {
	p := newProcessor(t)
	router, _ := newTestAPI(t, p)

	body := bytes.NewBufferString(`{"form":{"expMonth":"9","expYear":"33","firstName":"Ada","lastName":"Lovelace","address1":"1 Main St","city":"Springfield","state":"IL","zip":"62701","country":"US"},"tokenResponse":{"token":"tok"}}`)
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/checkout/card", body)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		State checkout.SubmissionState `json:"state"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Equal(t, checkout.StatusError, resp.State.Status)
	require.Equal(t, "Missing required fields: email", resp.State.Message)
	require.Zero(t, p.total())
}

func TestAPI_CardCheckout_WidgetValidationError(t *testing.T) {
	p := newProcessor(t)
	router, _ := newTestAPI(t, p)

	body, _ := json.Marshal(map[string]any{
		"form": map[string]any{
			"expMonth": "9", "expYear": "33",
			"email": "test@example.com", "firstName": "Ada", "lastName": "Lovelace",
			"address1": "1 Main St", "city": "Springfield", "state": "IL",
			"zip": "62701", "country": "US",
		},
		"tokenError": map[string]any{"isValid": false, "dataLength": 0},
	})
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/checkout/card", bytes.NewBuffer(body))
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		State checkout.SubmissionState `json:"state"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Equal(t, checkout.StatusError, resp.State.Status)
	require.Equal(t, "Card number is required.", resp.State.Message)
}

func TestAPI_SavedCard(t *testing.T) {
	p := newProcessor(t)
	p.respond("/api/customer/v2",
		`{"customer":{"cards":[{"token":"tok_1","type":"visa","last4":"4242"}]}}`)
	router, _ := newTestAPI(t, p)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/checkout/saved-card", nil)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		State     checkout.SubmissionState `json:"state"`
		SavedCard struct {
			Token    string `json:"token"`
			CardType string `json:"cardType"`
			LastFour string `json:"lastFour"`
		} `json:"savedCard"`
		Usable bool `json:"usable"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Equal(t, checkout.StatusSuccess, resp.State.Status)
	require.Equal(t, "tok_1", resp.SavedCard.Token)
	require.Equal(t, "VISA", resp.SavedCard.CardType)
	require.Equal(t, "4242", resp.SavedCard.LastFour)
	require.True(t, resp.Usable)

	// A second request serves the cache without another lookup.
	w2 := httptest.NewRecorder()
	router.ServeHTTP(w2, httptest.NewRequest(http.MethodGet, "/checkout/saved-card", nil))
	require.Equal(t, http.StatusOK, w2.Code)
	require.Equal(t, 1, p.count("/api/customer/v2"))
}

func TestAPI_TokenCheckout(t *testing.T) {
	p := newProcessor(t)
	p.respond("/api/customer/v2", `{"cards":[{"token":"tok_1","type":"visa","last4":"4242"}]}`)
	p.respond("/api/checkout/token/swe-challenge", `{}`)
	router, _ := newTestAPI(t, p)

	// Prime the saved card cache.
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/checkout/saved-card", nil))
	require.Equal(t, http.StatusOK, w.Code)

	body := bytes.NewBufferString(`{"tokenResponse":{"token":"tok_cvv"}}`)
	w2 := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/checkout/token", body)
	router.ServeHTTP(w2, req)

	require.Equal(t, http.StatusOK, w2.Code)
	var resp struct {
		State checkout.SubmissionState `json:"state"`
	}
	require.NoError(t, json.Unmarshal(w2.Body.Bytes(), &resp))
	require.Equal(t, checkout.StatusSuccess, resp.State.Status)
}

func TestAPI_State(t *testing.T) {
	p := newProcessor(t)
	router, _ := newTestAPI(t, p)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/checkout/state", nil))

	require.Equal(t, http.StatusOK, w.Code)
	var states map[string]checkout.SubmissionState
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &states))
	require.Len(t, states, 3)
	for _, state := range states {
		require.Equal(t, checkout.StatusIdle, state.Status)
	}
}
