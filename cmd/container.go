package cmd

import (
	"log/slog"
	"net/http"
	"time"

	"go.uber.org/dig"

	"ircord/pkg/bus"
	"ircord/pkg/channel/discord"
	"ircord/pkg/channel/irc"
	"ircord/pkg/config"
	"ircord/pkg/filter"
	"ircord/pkg/gateway"
	"ircord/pkg/issue"
	"ircord/pkg/relay"
)

const issueRequestTimeout = 15 * time.Second

// container holds the resolved relay singletons.
type container struct {
	service *gateway.Service
	events  *bus.MessageBus
}

func (c *container) Service() *gateway.Service { return c.service }

// Close releases the event bus and its subscribers.
func (c *container) Close() { c.events.Close() }

// newContainer builds every relay component from cfg.
func newContainer(cfg *config.Config, log *slog.Logger) (*container, error) {
	d := dig.New()

	providers := []any{
		func() *config.Config { return cfg },
		func() *slog.Logger { return log },
		bus.NewMessageBus,
		newFilter,
		newIssueFetcher,
		newIRCAdapter,
		newDiscordAdapter,
		newEngine,
		newDispatcher,
		newService,
	}
	for _, provide := range providers {
		if err := d.Provide(provide); err != nil {
			return nil, err
		}
	}

	var result *container
	err := d.Invoke(func(svc *gateway.Service, events *bus.MessageBus) {
		result = &container{service: svc, events: events}
	})
	return result, err
}

func newFilter(cfg *config.Config) *filter.Filter {
	return filter.New(cfg.Misc.FilterChars, cfg.Misc.BadWords)
}

func newIssueFetcher(cfg *config.Config, log *slog.Logger) *issue.Fetcher {
	return issue.NewFetcher(issue.Config{
		BaseURL:    cfg.Misc.IssueAPIURL,
		UserAgent:  cfg.Misc.UserAgent,
		HTTPClient: &http.Client{Timeout: issueRequestTimeout},
		Logger:     log,
	})
}

func newIRCAdapter(cfg *config.Config, log *slog.Logger) (*irc.Adapter, error) {
	return irc.NewAdapter(cfg.IRC, cfg.IRCChannels(), log)
}

func newDiscordAdapter(cfg *config.Config, log *slog.Logger) (*discord.Adapter, error) {
	return discord.NewAdapter(cfg.Discord, log)
}

func newEngine(
	cfg *config.Config,
	f *filter.Filter,
	fetcher *issue.Fetcher,
	ircAdapter *irc.Adapter,
	discordAdapter *discord.Adapter,
	events *bus.MessageBus,
	log *slog.Logger,
) (*relay.Engine, error) {
	return relay.NewEngine(relay.Options{
		Routes:     cfg.RoutingTable(),
		Filter:     f,
		Issues:     fetcher,
		Repository: cfg.Misc.Repository,
		IRC:        ircAdapter,
		Discord:    discordAdapter,
		Events:     events,
		Logger:     log,
	})
}

func newDispatcher(cfg *config.Config, log *slog.Logger) *relay.Dispatcher {
	return relay.NewDispatcher(cfg.Relay.MaxInFlight, log)
}

func newService(
	cfg *config.Config,
	ircAdapter *irc.Adapter,
	discordAdapter *discord.Adapter,
	engine *relay.Engine,
	dispatcher *relay.Dispatcher,
	events *bus.MessageBus,
	log *slog.Logger,
) (*gateway.Service, error) {
	return gateway.NewService(cfg.Gateway, ircAdapter, discordAdapter, engine, dispatcher, events, log)
}
