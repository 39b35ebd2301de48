// Package transport defines the delivery backend a dispatch run hands composed
// messages to.
package transport

import (
	"context"
	"errors"
)

// ErrNotOpen is returned by Send when Open has not succeeded.
var ErrNotOpen = errors.New("transport not open")

// Transport holds one session for the lifetime of a run: Open once, Send per
// message, Close once. Implementations never retry.
type Transport interface {
	Name() string
	Open(ctx context.Context) error
	// Send delivers one MIME message with the given envelope.
	Send(ctx context.Context, from, to string, msg []byte) error
	Close() error
}
