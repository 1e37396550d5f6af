package adapters

import (
	"context"
	"errors"

	"conduit-hq/conduit/pkg/catalog"
	"conduit-hq/conduit/pkg/relay"
)

// Classify maps a failure from an adapter call into the unified error
// taxonomy. Typed transport failures classify directly; upstream status
// errors go through the descriptor's signature table; anything else
// defaults to relay.KindUnknown rather than being dropped.
func Classify(d *catalog.Descriptor, err error) *relay.Error {
	if err == nil {
		return nil
	}
	if d == nil {
		// Unknown descriptor: no signature table, everything below
		// falls back to the typed-error and default paths.
		d = &catalog.Descriptor{}
	}

	// Already classified (e.g., surfaced through a stream chunk).
	var unified *relay.Error
	if errors.As(err, &unified) {
		return unified
	}

	var timeout *TimeoutError
	if errors.As(err, &timeout) {
		return &relay.Error{Kind: relay.KindConnection, Provider: d.ID, Message: timeout.Error()}
	}

	var transport *TransportError
	if errors.As(err, &transport) {
		return &relay.Error{Kind: relay.KindConnection, Provider: d.ID, Message: transport.Error()}
	}

	var upstream *UpstreamError
	if errors.As(err, &upstream) {
		return &relay.Error{
			Kind:     d.ClassifyNative(upstream.Status, upstream.Body),
			Provider: d.ID,
			Message:  upstream.Body,
			Status:   upstream.Status,
		}
	}

	// Deadline expiry that surfaced as a bare context error.
	if errors.Is(err, context.DeadlineExceeded) {
		return &relay.Error{Kind: relay.KindConnection, Provider: d.ID, Message: err.Error()}
	}

	return &relay.Error{Kind: relay.KindUnknown, Provider: d.ID, Message: err.Error()}
}
