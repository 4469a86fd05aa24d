// Package relay moves messages between IRC and Discord: it filters, routes
// and renders each message, then enriches it with issue summaries.
package relay

import (
	"context"
	"errors"
	"iter"
	"log/slog"

	"ircord/pkg/bus"
	"ircord/pkg/channel"
	"ircord/pkg/filter"
	"ircord/pkg/format"
	"ircord/pkg/issue"
	"ircord/pkg/routing"
)

// IssueResolver turns issue references into summaries, in reference order.
type IssueResolver interface {
	Resolve(ctx context.Context, refs []issue.Reference, repo string) iter.Seq[issue.Summary]
}

// Options configures an Engine. Routes, Filter and Repository are shared
// read-only by every handler.
type Options struct {
	Routes     routing.Table
	Filter     *filter.Filter
	Issues     IssueResolver
	Repository string

	IRC     channel.Sender
	Discord channel.Sender

	// Events receives relay lifecycle events. Optional.
	Events *bus.MessageBus
	Logger *slog.Logger
}

// Engine runs the per-message pipeline for both directions.
type Engine struct {
	routes     routing.Table
	filter     *filter.Filter
	issues     IssueResolver
	repository string
	events     *bus.MessageBus
	log        *slog.Logger

	fromIRC     pipeline
	fromDiscord pipeline
}

// pipeline holds what differs between the two relay directions.
type pipeline struct {
	direction routing.Direction

	origin       bus.Protocol
	originSender channel.Sender

	dest       bus.Protocol
	destSender channel.Sender

	render func(bus.InboundMessage) []string
}

func NewEngine(opts Options) (*Engine, error) {
	if opts.IRC == nil || opts.Discord == nil {
		return nil, errors.New("both irc and discord senders are required")
	}
	if opts.Filter == nil {
		opts.Filter = filter.New("", nil)
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	return &Engine{
		routes:     opts.Routes,
		filter:     opts.Filter,
		issues:     opts.Issues,
		repository: opts.Repository,
		events:     opts.Events,
		log:        opts.Logger.With("component", "relay.engine"),
		fromIRC: pipeline{
			direction:    routing.FromIRC,
			origin:       bus.ProtocolIRC,
			originSender: opts.IRC,
			dest:         bus.ProtocolDiscord,
			destSender:   opts.Discord,
			render: func(msg bus.InboundMessage) []string {
				return []string{format.DiscordLine(msg.Author, msg.Text)}
			},
		},
		fromDiscord: pipeline{
			direction:    routing.FromDiscord,
			origin:       bus.ProtocolDiscord,
			originSender: opts.Discord,
			dest:         bus.ProtocolIRC,
			destSender:   opts.IRC,
			render:       format.IRCLines,
		},
	}, nil
}

// HandleIRC relays one IRC message to Discord.
func (e *Engine) HandleIRC(ctx context.Context, msg bus.InboundMessage) {
	e.relay(ctx, e.fromIRC, msg)
}

// HandleDiscord relays one Discord message to IRC.
func (e *Engine) HandleDiscord(ctx context.Context, msg bus.InboundMessage) {
	e.relay(ctx, e.fromDiscord, msg)
}

// relay sends every rendered line to every target in order, then sends
// each resolved issue summary to every target and back to the source.
func (e *Engine) relay(ctx context.Context, p pipeline, msg bus.InboundMessage) {
	if e.filter.ShouldSuppress(msg.Text, msg.Author) {
		e.drop(ctx, p, msg, "filtered")
		return
	}

	targets, ok := e.routes.Resolve(p.direction, msg.SourceID, msg.Author)
	if !ok {
		e.drop(ctx, p, msg, "unrouted")
		return
	}

	lines := p.render(msg)
	for _, target := range targets {
		for _, line := range lines {
			e.send(ctx, p.destSender, bus.OutboundMessage{Protocol: p.dest, Target: target, Content: line})
		}
	}
	e.publish(ctx, bus.Event{
		Type:     bus.EventMessageRelayed,
		Protocol: p.origin,
		Source:   msg.SourceID,
		Payload:  map[string]string{"author": msg.Author},
	})

	e.enrich(ctx, p, msg, targets)
}

func (e *Engine) enrich(ctx context.Context, p pipeline, msg bus.InboundMessage, targets []string) {
	if e.issues == nil || e.repository == "" {
		return
	}

	refs := issue.Extract(msg.Text)
	if len(refs) == 0 {
		return
	}

	for summary := range e.issues.Resolve(ctx, refs, e.repository) {
		line := summary.String()
		for _, target := range targets {
			e.send(ctx, p.destSender, bus.OutboundMessage{Protocol: p.dest, Target: target, Content: line})
		}
		e.send(ctx, p.originSender, bus.OutboundMessage{Protocol: p.origin, Target: msg.SourceID, Content: line})

		e.publish(ctx, bus.Event{
			Type:     bus.EventIssueResolved,
			Protocol: p.origin,
			Source:   msg.SourceID,
			Payload:  map[string]string{"url": summary.URL},
		})
	}
}

func (e *Engine) send(ctx context.Context, sender channel.Sender, out bus.OutboundMessage) {
	if err := sender.Send(ctx, out.Target, out.Content); err != nil {
		e.log.Error("Failed to send message", "protocol", out.Protocol, "target", out.Target, "error", err)
		e.publish(ctx, bus.Event{
			Type:     bus.EventSendFailed,
			Protocol: out.Protocol,
			Target:   out.Target,
			Error:    err.Error(),
		})
	}
}

func (e *Engine) drop(ctx context.Context, p pipeline, msg bus.InboundMessage, reason string) {
	e.log.Debug("Dropping message", "protocol", p.origin, "source", msg.SourceID, "author", msg.Author, "reason", reason)
	e.publish(ctx, bus.Event{
		Type:     bus.EventMessageDropped,
		Protocol: p.origin,
		Source:   msg.SourceID,
		Payload:  map[string]string{"reason": reason},
	})
}

func (e *Engine) publish(ctx context.Context, event bus.Event) {
	if e.events == nil {
		return
	}
	e.events.PublishEvent(ctx, event)
}
