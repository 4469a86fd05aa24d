// Package channel defines the contract between chat protocol adapters and
// the relay.
package channel

import (
	"context"

	"ircord/pkg/bus"
)

// Sender delivers one line of text to one target on a protocol.
// Implementations must be safe for concurrent use.
type Sender interface {
	Send(ctx context.Context, target, text string) error
}

// Adapter bridges one external chat protocol into the relay.
//
// Run connects and blocks until ctx is done or the connection fails
// permanently; it closes the Events channel before returning. Events only
// carries message events from other users. Connected reports whether the
// protocol session is currently established.
type Adapter interface {
	Sender
	Name() string
	Run(ctx context.Context) error
	Connected() bool
	Events() <-chan bus.InboundMessage
}
