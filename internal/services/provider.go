package services

import (
	"errors"
	"fmt"
	"strings"
)

// ProviderError is the structured failure returned by every external
// integration client.
type ProviderError struct {
	Provider string
	Code     string
	Message  string
	Status   int
	// ExistingID is set by providers that reject a duplicate and report the
	// identifier of the record they already hold.
	ExistingID string
}

func (e *ProviderError) Error() string {
	var b strings.Builder
	b.WriteString(strings.TrimSpace(e.Provider))
	if b.Len() == 0 {
		b.WriteString("provider")
	}
	if e.Status > 0 {
		fmt.Fprintf(&b, ": http %d", e.Status)
	}
	if e.Code != "" {
		b.WriteString(": ")
		b.WriteString(e.Code)
	}
	if msg := strings.TrimSpace(e.Message); msg != "" {
		b.WriteString(": ")
		b.WriteString(msg)
	}
	return b.String()
}

// Is reports ProviderError as an ErrProvider for errors.Is callers.
func (e *ProviderError) Is(target error) bool {
	return target == ErrProvider
}

// HasCode reports whether err carries a ProviderError with the given code.
func HasCode(err error, code string) bool {
	pe, ok := AsProviderError(err)
	return ok && pe.Code == code
}

// AsProviderError extracts the ProviderError from err's chain.
func AsProviderError(err error) (*ProviderError, bool) {
	var pe *ProviderError
	if !errors.As(err, &pe) {
		return nil, false
	}
	return pe, true
}
