// Package tokenizer defines the contract of the PCI-compliant card input
// widgets. The widgets run in the customer's browser and are the only
// place raw card data ever exists; this code sees opaque token payloads
// and nothing else.
package tokenizer

import (
	"context"
	"strings"
)

// TokenSource is a mounted card input that can produce a token payload.
// GetToken may hang indefinitely when required user input (e.g. a CVV)
// was never entered, so callers must bound it with a context deadline.
// The payload keeps the widget's loose JSON shape; the normalizer decides
// what is usable.
type TokenSource interface {
	GetToken(ctx context.Context) (any, error)
}

// Static wraps a payload the browser already obtained from a widget and
// forwarded over the wire. It resolves immediately.
type Static struct {
	Payload any
	Err     error
}

func (s Static) GetToken(ctx context.Context) (any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.Err != nil {
		return nil, s.Err
	}
	return s.Payload, nil
}

// ValidationError is the widget's structured rejection of the entered
// card data. CardEntered distinguishes an empty card number field from an
// invalid one.
type ValidationError struct {
	CardValid   bool
	CardEntered bool
	CVVValid    bool
}

func (e *ValidationError) Error() string {
	var messages []string
	if !e.CardValid {
		if !e.CardEntered {
			messages = append(messages, "Card number is required.")
		} else {
			messages = append(messages, "Card number is invalid.")
		}
	}
	if !e.CVVValid {
		messages = append(messages, "CVV is invalid.")
	}
	if len(messages) == 0 {
		return "card input validation failed"
	}
	return strings.Join(messages, " ")
}
