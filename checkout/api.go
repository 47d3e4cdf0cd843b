package checkout

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/cardflow-labs/pci-checkout/checkout/models"
	"github.com/cardflow-labs/pci-checkout/internal/tokenizer"
)

// API is the HTTP surface of the checkout gateway. The browser-side PCI
// widgets tokenize card data and forward only opaque payloads here; the
// handlers are a transport for the orchestrator, not a UI.
type API struct {
	orchestrator *Orchestrator
	receipts     *Repository
}

func NewAPI(orchestrator *Orchestrator, receipts *Repository) *API {
	return &API{orchestrator: orchestrator, receipts: receipts}
}

func (a *API) AppendRoutes(r chi.Router) {
	r.Route("/checkout", func(r chi.Router) {
		r.Get("/totals", a.getTotals)
		r.Post("/totals/refresh", a.refreshTotals)
		r.Get("/state", a.getState)
		r.Get("/saved-card", a.getSavedCard)
		r.Post("/card", a.cardCheckout)
		r.Post("/token", a.tokenCheckout)
	})
	r.Get("/receipts", a.listReceipts)
}

// widgetError is the card input widget's validation failure shape as the
// browser forwards it.
type widgetError struct {
	IsValid    *bool `json:"isValid"`
	IsCvvValid *bool `json:"isCvvValid"`
	DataLength *int  `json:"dataLength"`
}

// source builds the token source for a forwarded widget outcome: either
// the token payload itself or its typed validation error.
func source(payload any, werr *widgetError) tokenizer.TokenSource {
	if werr != nil && (isFalse(werr.IsValid) || isFalse(werr.IsCvvValid)) {
		return tokenizer.Static{Err: &tokenizer.ValidationError{
			CardValid:   !isFalse(werr.IsValid),
			CardEntered: werr.DataLength == nil || *werr.DataLength > 0,
			CVVValid:    !isFalse(werr.IsCvvValid),
		}}
	}
	if payload == nil {
		return nil
	}
	return tokenizer.Static{Payload: payload}
}

func isFalse(b *bool) bool { return b != nil && !*b }

func (a *API) cardCheckout(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Form          Form         `json:"form"`
		TokenResponse any          `json:"tokenResponse"`
		TokenError    *widgetError `json:"tokenError"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	state := a.orchestrator.NewCardCheckout(r.Context(), body.Form, source(body.TokenResponse, body.TokenError))
	writeJSON(w, http.StatusOK, map[string]any{
		"state":  state,
		"amount": a.orchestrator.DisplayAmount(),
	})
}

func (a *API) tokenCheckout(w http.ResponseWriter, r *http.Request) {
	var body struct {
		TokenResponse any          `json:"tokenResponse"`
		TokenError    *widgetError `json:"tokenError"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	state := a.orchestrator.SavedCardCheckout(r.Context(), source(body.TokenResponse, body.TokenError))
	writeJSON(w, http.StatusOK, map[string]any{
		"state":  state,
		"amount": a.orchestrator.DisplayAmount(),
	})
}

// getSavedCard returns the cached saved card, running the customer lookup
// first when nothing is cached yet.
func (a *API) getSavedCard(w http.ResponseWriter, r *http.Request) {
	card, ok := a.orchestrator.SavedCard()
	if !ok {
		a.orchestrator.FetchSavedCard(r.Context())
		card, ok = a.orchestrator.SavedCard()
	}

	resp := map[string]any{
		"state": a.orchestrator.States()[models.FlowSavedLookup],
	}
	if ok {
		resp["savedCard"] = card
		resp["usable"] = card.Usable()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *API) getTotals(w http.ResponseWriter, r *http.Request) {
	a.writeTotals(w)
}

func (a *API) refreshTotals(w http.ResponseWriter, r *http.Request) {
	a.orchestrator.FetchTotals(r.Context())
	a.writeTotals(w)
}

func (a *API) writeTotals(w http.ResponseWriter) {
	amount := a.orchestrator.DisplayAmount()
	resp := map[string]any{
		"subtotal": a.orchestrator.CheckoutSubtotal(),
		"amount":   amount,
		"display":  amount.Display(),
	}
	if msg := a.orchestrator.TotalsError(); msg != "" {
		resp["totalsError"] = msg
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *API) getState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.orchestrator.States())
}

func (a *API) listReceipts(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil {
			limit = v
		}
	}
	receipts, err := a.receipts.List(r.Context(), limit)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, receipts)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
