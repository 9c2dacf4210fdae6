package providers

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"

	"github.com/architect-ai/model-router/internal/types"
)

// ErrProviderNotRegistered is wrapped when a tier names a provider without a client
var ErrProviderNotRegistered = errors.New("provider not registered")

// ErrEmptyResponse is returned when a provider answered without usable content
var ErrEmptyResponse = errors.New("provider returned no content")

// Classify converts an error that no SDK-specific check recognized into the
// router's taxonomy. Transport failures and deadlines become NetworkError,
// everything else a ProviderError without status.
func Classify(provider, model string, err error) error {
	if err == nil {
		return nil
	}

	var provErr *types.ProviderError
	if errors.As(err, &provErr) {
		return err
	}
	var netErr *types.NetworkError
	if errors.As(err, &netErr) {
		return err
	}

	if isTransportError(err) {
		return &types.NetworkError{Provider: provider, Model: model, Cause: err}
	}

	return &types.ProviderError{Provider: provider, Model: model, Cause: err}
}

// StatusError builds a ProviderError for a non-success HTTP status
func StatusError(provider, model string, status int, message string, cause error) error {
	return &types.ProviderError{
		Provider:   provider,
		Model:      model,
		StatusCode: status,
		Message:    message,
		Cause:      cause,
	}
}

// NotRegistered reports a tier whose provider has no client
func NotRegistered(provider, model string) error {
	return &types.ProviderError{
		Provider: provider,
		Model:    model,
		Message:  fmt.Sprintf("%s: %s", ErrProviderNotRegistered, provider),
		Cause:    ErrProviderNotRegistered,
	}
}

func isTransportError(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return true
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}
	var dnsErr *net.DNSError
	return errors.As(err, &dnsErr)
}
