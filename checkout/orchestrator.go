package checkout

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/exp/slog"

	"github.com/cardflow-labs/pci-checkout/checkout/models"
	"github.com/cardflow-labs/pci-checkout/internal/coinflow"
	"github.com/cardflow-labs/pci-checkout/internal/normalize"
	"github.com/cardflow-labs/pci-checkout/internal/tokenizer"
)

// Orchestrator sequences validation, tokenization and processor calls for
// the checkout flows. It owns the three submission lifecycles, the cached
// saved card and the cached totals; handlers only ever read them.
type Orchestrator struct {
	cfg       *Config
	api       *coinflow.Client
	receipts  *Repository
	logger    *slog.Logger
	onSuccess func(models.Flow)

	mu        sync.Mutex
	savedCard *models.SavedCard
	subtotal  *models.CurrencyAmount
	total     *models.CurrencyAmount
	totalsErr string

	newCard       *Submission
	savedLookup   *Submission
	savedCheckout *Submission
}

// NewOrchestrator wires the orchestrator. onSuccess is invoked after a
// checkout completes; nil is allowed.
func NewOrchestrator(cfg *Config, api *coinflow.Client, receipts *Repository, logger *slog.Logger, onSuccess func(models.Flow)) *Orchestrator {
	return &Orchestrator{
		cfg:           cfg,
		api:           api,
		receipts:      receipts,
		logger:        logger.With(slog.String("component", "orchestrator")),
		onSuccess:     onSuccess,
		newCard:       NewSubmission(),
		savedLookup:   NewSubmission(),
		savedCheckout: NewSubmission(),
	}
}

// States reports all three submission lifecycles.
func (o *Orchestrator) States() map[models.Flow]SubmissionState {
	return map[models.Flow]SubmissionState{
		models.FlowNewCard:       o.newCard.State(),
		models.FlowSavedLookup:   o.savedLookup.State(),
		models.FlowSavedCheckout: o.savedCheckout.State(),
	}
}

// SavedCard returns the cached saved card, if any.
func (o *Orchestrator) SavedCard() (models.SavedCard, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.savedCard == nil {
		return models.SavedCard{}, false
	}
	return *o.savedCard, true
}

// CheckoutSubtotal is the amount submitted with a checkout: the fetched
// subtotal when available, the configured default otherwise.
func (o *Orchestrator) CheckoutSubtotal() models.CurrencyAmount {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.checkoutSubtotalLocked()
}

func (o *Orchestrator) checkoutSubtotalLocked() models.CurrencyAmount {
	if o.subtotal != nil {
		return *o.subtotal
	}
	return o.cfg.DefaultSubtotal
}

// DisplayAmount is the amount shown to the customer; the computed total
// overrides the subtotal when present.
func (o *Orchestrator) DisplayAmount() models.CurrencyAmount {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.total != nil {
		return *o.total
	}
	return o.checkoutSubtotalLocked()
}

// TotalsError is the non-fatal error of the last totals fetch, empty when
// it succeeded. The form stays usable with the default amount either way.
func (o *Orchestrator) TotalsError() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.totalsErr
}

// FetchTotals asks the processor to price the default subtotal and caches
// whatever parses. Failures are recorded but never block other actions.
func (o *Orchestrator) FetchTotals(ctx context.Context) {
	if _, err := o.api.Auth().Identity(); err != nil {
		o.setTotalsError("Missing user identity for Coinflow totals.")
		return
	}

	ctx, cancel := context.WithTimeout(ctx, o.cfg.CheckoutTimeout)
	defer cancel()

	data, err := o.api.Totals(ctx, o.cfg.MerchantID, o.cfg.DefaultSubtotal)
	if err != nil {
		o.logger.Error("failed to fetch totals", "err", err)
		o.setTotalsError(err.Error())
		return
	}

	subtotal, total, okSub, okTot := normalize.Totals(data)
	o.mu.Lock()
	if okSub {
		o.subtotal = &subtotal
	}
	if okTot {
		o.total = &total
	}
	o.totalsErr = ""
	o.mu.Unlock()
	o.logger.Info("totals fetched",
		slog.Bool("subtotal", okSub),
		slog.Bool("total", okTot))
}

func (o *Orchestrator) setTotalsError(msg string) {
	o.mu.Lock()
	o.totalsErr = msg
	o.mu.Unlock()
}

// FetchSavedCard looks up the customer's first saved payment method and
// caches it for the saved-card flow.
func (o *Orchestrator) FetchSavedCard(ctx context.Context) SubmissionState {
	o.savedLookup.Submit()

	if _, err := o.api.Auth().Identity(); err != nil {
		o.savedLookup.Fail("Missing user identity for saved card.")
		return o.savedLookup.State()
	}

	ctx, cancel := context.WithTimeout(ctx, o.cfg.CheckoutTimeout)
	defer cancel()

	data, err := o.api.Customer(ctx)
	if err != nil {
		o.logger.Error("failed to fetch saved card", "err", err)
		o.savedLookup.Fail(err.Error())
		return o.savedLookup.State()
	}

	card, ok := normalize.FirstSavedCardFromCustomer(data)
	if !ok {
		o.savedLookup.Fail("No saved card available for this customer.")
		return o.savedLookup.State()
	}

	o.setSavedCard(card)
	o.logger.Info("saved card fetched",
		slog.String("cardType", string(card.CardType)),
		slog.String("lastFour", card.LastFour))
	o.savedLookup.Succeed("")
	return o.savedLookup.State()
}

// setSavedCard replaces the cached card wholesale; fields are never
// merged.
func (o *Orchestrator) setSavedCard(card models.SavedCard) {
	o.mu.Lock()
	o.savedCard = &card
	o.mu.Unlock()
}

// NewCardCheckout runs the new-card flow: validate the form, tokenize
// through the widget, submit the checkout.
func (o *Orchestrator) NewCardCheckout(ctx context.Context, form Form, source tokenizer.TokenSource) SubmissionState {
	o.newCard.Reset()

	if err := form.Validate(); err != nil {
		o.newCard.fail(err.Error())
		return o.newCard.State()
	}
	if err := form.ValidateExpiry(time.Now()); err != nil {
		o.newCard.fail(err.Error())
		return o.newCard.State()
	}
	if source == nil {
		o.newCard.fail("Card inputs are not ready yet.")
		return o.newCard.State()
	}
	if _, err := o.api.Auth().Identity(); err != nil {
		o.newCard.fail("Missing user identity for Coinflow checkout.")
		return o.newCard.State()
	}

	o.newCard.Submit()

	payload, err := o.getCardToken(ctx, source)
	if err != nil {
		o.logger.Error("card checkout failed", "err", err)
		o.newCard.Fail(flowErrorMessage(err, "Card tokenization timed out. Please try again."))
		o.recordReceipt(ctx, models.FlowNewCard, models.SavedCard{})
		return o.newCard.State()
	}

	// Seed the saved-card flow opportunistically with the fresh token.
	card := payload.SavedCard()
	o.setSavedCard(card)

	checkoutCtx, cancel := context.WithTimeout(ctx, o.cfg.CheckoutTimeout)
	defer cancel()
	_, err = o.api.CardCheckout(checkoutCtx, o.cfg.MerchantID, coinflow.CardCheckoutRequest{
		Subtotal: o.CheckoutSubtotal(),
		Card: coinflow.CardDetails{
			ExpYear:   form.ExpYear,
			ExpMonth:  form.ExpMonth,
			Email:     form.Email,
			FirstName: form.FirstName,
			LastName:  form.LastName,
			Address1:  form.Address1,
			City:      form.City,
			Zip:       form.Zip,
			State:     form.State,
			Country:   form.Country,
			CardToken: payload.Token,
		},
	})
	if err != nil {
		o.logger.Error("card checkout failed", "err", err)
		o.newCard.Fail(flowErrorMessage(err, "Card checkout timed out. Please try again."))
		o.recordReceipt(ctx, models.FlowNewCard, card)
		return o.newCard.State()
	}

	o.logger.Info("card checkout succeeded", slog.String("lastFour", card.LastFour))
	o.newCard.Succeed("")
	o.recordReceipt(ctx, models.FlowNewCard, card)
	o.notifySuccess(models.FlowNewCard)
	return o.newCard.State()
}

// getCardToken bounds widget token retrieval and validates the response
// shape.
func (o *Orchestrator) getCardToken(ctx context.Context, source tokenizer.TokenSource) (models.CardTokenPayload, error) {
	ctx, cancel := context.WithTimeout(ctx, o.cfg.TokenizeTimeout)
	defer cancel()

	raw, err := source.GetToken(ctx)
	if err != nil {
		return models.CardTokenPayload{}, err
	}
	payload, ok := normalize.CardTokenPayload(raw)
	if !ok {
		return models.CardTokenPayload{}, errors.New("Card token response was invalid.")
	}
	return payload, nil
}

// SavedCardCheckout runs the saved-card flow: re-tokenize the CVV through
// the CVV-only widget and submit the token checkout.
func (o *Orchestrator) SavedCardCheckout(ctx context.Context, source tokenizer.TokenSource) SubmissionState {
	o.savedCheckout.Reset()

	saved, ok := o.SavedCard()
	if !ok {
		o.savedCheckout.fail("No saved card available yet.")
		return o.savedCheckout.State()
	}
	if !saved.Usable() {
		// A card without a recognized brand cannot be re-tokenized by the
		// CVV-only input; require a re-save instead of guessing.
		o.savedCheckout.fail("Saved card is missing the card type. Complete a new card checkout to re-save it.")
		return o.savedCheckout.State()
	}
	if source == nil {
		o.savedCheckout.fail("Saved card input is not ready yet.")
		return o.savedCheckout.State()
	}

	o.savedCheckout.Submit()
	o.logger.Info("requesting saved card token",
		slog.String("cardType", string(saved.CardType)),
		slog.String("lastFour", saved.LastFour))

	tokenCtx, cancelToken := context.WithTimeout(ctx, o.cfg.TokenizeTimeout)
	raw, err := source.GetToken(tokenCtx)
	cancelToken()
	if err != nil {
		o.logger.Error("saved card checkout failed", "err", err)
		o.savedCheckout.Fail(flowErrorMessage(err,
			"Saved card tokenization timed out. Make sure the CVV input is loaded and a CVV is entered."))
		o.recordReceipt(ctx, models.FlowSavedCheckout, saved)
		return o.savedCheckout.State()
	}

	token, ok := normalize.Token(raw)
	if !ok {
		o.savedCheckout.Fail("Tokenization service did not return a card token. Please retry.")
		o.recordReceipt(ctx, models.FlowSavedCheckout, saved)
		return o.savedCheckout.State()
	}
	if _, err := o.api.Auth().Identity(); err != nil {
		o.savedCheckout.Fail("Missing user identity for Coinflow checkout.")
		return o.savedCheckout.State()
	}

	checkoutCtx, cancel := context.WithTimeout(ctx, o.cfg.CheckoutTimeout)
	defer cancel()
	resp, err := o.api.TokenCheckout(checkoutCtx, o.cfg.MerchantID, coinflow.TokenCheckoutRequest{
		Subtotal: o.CheckoutSubtotal(),
		Token:    token,
	})
	if err != nil {
		o.logger.Error("saved card checkout failed", "err", err)
		o.savedCheckout.Fail(flowErrorMessage(err, "Saved card checkout timed out. Please try again."))
		o.recordReceipt(ctx, models.FlowSavedCheckout, saved)
		return o.savedCheckout.State()
	}

	// Brand or last four may have changed server-side; refresh the cache
	// when the response carries an updated card.
	if updated, ok := normalize.FirstSavedCardFromCustomer(resp); ok {
		o.setSavedCard(updated)
		saved = updated
	}

	o.logger.Info("saved card checkout succeeded", slog.String("lastFour", saved.LastFour))
	o.savedCheckout.Succeed("")
	o.recordReceipt(ctx, models.FlowSavedCheckout, saved)
	o.notifySuccess(models.FlowSavedCheckout)
	return o.savedCheckout.State()
}

// flowErrorMessage maps a step failure to the user-facing message. A
// deadline hit must surface as a timeout, distinguishable from every
// other failure cause; widget validation errors already carry their
// card-number/CVV specific text.
func flowErrorMessage(err error, timeoutMessage string) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return timeoutMessage
	}
	return err.Error()
}

func (o *Orchestrator) recordReceipt(ctx context.Context, flow models.Flow, card models.SavedCard) {
	if o.receipts == nil {
		return
	}
	var state SubmissionState
	switch flow {
	case models.FlowNewCard:
		state = o.newCard.State()
	case models.FlowSavedCheckout:
		state = o.savedCheckout.State()
	default:
		state = o.savedLookup.State()
	}
	receipt := &models.Receipt{
		Flow:     flow,
		Status:   string(state.Status),
		Message:  state.Message,
		Amount:   o.CheckoutSubtotal(),
		CardType: card.CardType,
		LastFour: card.LastFour,
	}
	if err := o.receipts.Record(ctx, receipt); err != nil {
		o.logger.Error("failed to record receipt", "err", err)
	}
}

func (o *Orchestrator) notifySuccess(flow models.Flow) {
	if o.onSuccess != nil {
		o.onSuccess(flow)
	}
}
