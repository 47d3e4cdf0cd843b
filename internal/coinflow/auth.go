package coinflow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"
)

// ErrNoIdentity is returned when no wallet/user identity has been
// resolved yet. Flows translate it into their own user-facing message.
var ErrNoIdentity = errors.New("no resolved user identity")

// Auth applies one of the processor's authentication schemes to an
// outgoing request. The observed variants differ only here: direct wallet
// headers versus a negotiated short-lived session key.
type Auth interface {
	// Identity returns the resolved wallet/user identifier, or
	// ErrNoIdentity when none is available.
	Identity() (string, error)
	Apply(ctx context.Context, req *http.Request) error
}

// WalletAuth authenticates with the wallet address header pair.
type WalletAuth struct {
	Wallet     string
	Blockchain string
}

func (a WalletAuth) Identity() (string, error) {
	if a.Wallet == "" {
		return "", ErrNoIdentity
	}
	return a.Wallet, nil
}

func (a WalletAuth) Apply(_ context.Context, req *http.Request) error {
	wallet, err := a.Identity()
	if err != nil {
		return err
	}
	req.Header.Set("x-coinflow-auth-wallet", wallet)
	req.Header.Set("x-coinflow-auth-blockchain", a.Blockchain)
	return nil
}

// SessionKeyAuth exchanges the wallet identity for a short-lived session
// key once and reuses it for subsequent requests. A 401 response clears
// the cache so the next attempt negotiates a fresh key.
type SessionKeyAuth struct {
	wallet WalletAuth
	base   string
	http   *http.Client

	mu  sync.Mutex
	key string
}

func NewSessionKeyAuth(base string, wallet WalletAuth, hc *http.Client) *SessionKeyAuth {
	if hc == nil {
		hc = &http.Client{Timeout: 10 * time.Second}
	}
	return &SessionKeyAuth{
		wallet: wallet,
		base:   strings.TrimRight(base, "/"),
		http:   hc,
	}
}

func (a *SessionKeyAuth) Identity() (string, error) {
	return a.wallet.Identity()
}

func (a *SessionKeyAuth) Apply(ctx context.Context, req *http.Request) error {
	key, err := a.sessionKey(ctx)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", key)
	return nil
}

// Invalidate drops the cached key.
func (a *SessionKeyAuth) Invalidate() {
	a.mu.Lock()
	a.key = ""
	a.mu.Unlock()
}

func (a *SessionKeyAuth) sessionKey(ctx context.Context) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.key != "" {
		return a.key, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.base+"/api/auth/session-key", nil)
	if err != nil {
		return "", fmt.Errorf("build session-key request: %w", err)
	}
	req.Header.Set("accept", "application/json")
	if err := a.wallet.Apply(ctx, req); err != nil {
		return "", err
	}

	resp, err := a.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("session-key: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return "", parseError(resp)
	}

	var payload struct {
		Key string `json:"key"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", fmt.Errorf("decode session-key: %w", err)
	}
	if payload.Key == "" {
		return "", fmt.Errorf("session-key response carried no key")
	}
	a.key = payload.Key
	return a.key, nil
}
