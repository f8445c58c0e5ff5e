package provider

import (
	"context"
	"errors"
	"fmt"
)

// Quote is the end-of-day quote returned by a provider.
// Date and Price are kept exactly as the upstream service sent them.
type Quote struct {
	Symbol string `json:"symbol"`
	Date   string `json:"date"`
	Price  string `json:"price"`
}

type Provider interface {
	Name() string
	Fetch(ctx context.Context, ticker string) (Quote, error)
}

// Kind classifies why a fetch failed.
type Kind int

const (
	KindNetwork Kind = iota + 1
	KindDecode
	KindMissingField
)

func (k Kind) String() string {
	switch k {
	case KindNetwork:
		return "network error"
	case KindDecode:
		return "decode error"
	case KindMissingField:
		return "missing field"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Error is returned by providers for any failed fetch. A failure only
// affects the one ticker it names.
type Error struct {
	Kind   Kind
	Ticker string
	// Field is set for KindMissingField.
	Field string
	// Message carries the provider's own error text when it sent one.
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Ticker, e.Kind)
	if e.Field != "" {
		msg += fmt.Sprintf(" %q", e.Field)
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf reports the Kind of err, or 0 when err is not a provider error.
func KindOf(err error) Kind {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return 0
}
