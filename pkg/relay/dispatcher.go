package relay

import (
	"context"
	"log/slog"
	"sync"

	"golang.org/x/sync/semaphore"

	"ircord/pkg/bus"
)

// HandlerFunc processes one inbound message. It must not return errors;
// failures are contained and logged by the handler itself.
type HandlerFunc func(context.Context, bus.InboundMessage)

// Source is one inbound event stream and the handler for its messages.
type Source struct {
	Name   string
	Events <-chan bus.InboundMessage
	Handle HandlerFunc
}

// Dispatcher merges two event streams and runs a handler task per message.
type Dispatcher struct {
	log *slog.Logger
	sem *semaphore.Weighted

	tasks sync.WaitGroup
}

// NewDispatcher creates a Dispatcher. maxInFlight bounds concurrently
// running handlers; zero or less leaves them unbounded.
func NewDispatcher(maxInFlight int, log *slog.Logger) *Dispatcher {
	if log == nil {
		log = slog.Default()
	}

	d := &Dispatcher{log: log.With("component", "relay.dispatcher")}
	if maxInFlight > 0 {
		d.sem = semaphore.NewWeighted(int64(maxInFlight))
	}

	return d
}

// Run receives from both sources in arrival order and starts a handler
// for each qualifying message without waiting for it. It returns when both
// sources are closed or ctx is done; in-flight handlers are not awaited.
func (d *Dispatcher) Run(ctx context.Context, a, b Source) error {
	eventsA, eventsB := a.Events, b.Events

	for eventsA != nil || eventsB != nil {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-eventsA:
			if !ok {
				d.log.Info("Source closed", "source", a.Name)
				eventsA = nil
				continue
			}
			if !d.launch(ctx, a, msg) {
				return nil
			}
		case msg, ok := <-eventsB:
			if !ok {
				d.log.Info("Source closed", "source", b.Name)
				eventsB = nil
				continue
			}
			if !d.launch(ctx, b, msg) {
				return nil
			}
		}
	}

	return nil
}

// Wait blocks until every handler started so far has returned.
func (d *Dispatcher) Wait() {
	d.tasks.Wait()
}

// launch starts a handler task for msg. It reports false only when ctx
// ended while waiting for a free slot.
func (d *Dispatcher) launch(ctx context.Context, src Source, msg bus.InboundMessage) bool {
	if msg.Bot {
		return true
	}

	if d.sem != nil {
		if err := d.sem.Acquire(ctx, 1); err != nil {
			return false
		}
	}

	d.tasks.Add(1)
	go func() {
		defer d.tasks.Done()
		if d.sem != nil {
			defer d.sem.Release(1)
		}
		defer func() {
			if r := recover(); r != nil {
				d.log.Error("Message handler panicked", "source", src.Name, "author", msg.Author, "panic", r)
			}
		}()

		src.Handle(ctx, msg)
	}()

	return true
}
