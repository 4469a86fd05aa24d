// Package gateway runs the relay: both chat adapters, the dispatcher, and
// an optional HTTP status server.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"ircord/pkg/bus"
	"ircord/pkg/channel"
	"ircord/pkg/config"
	"ircord/pkg/relay"
)

const (
	defaultStatusHost = "0.0.0.0"
	defaultStatusPort = 18790
	eventBufferSize   = 256
)

// Handler is the per-direction message entry point the dispatcher drives.
type Handler interface {
	HandleIRC(ctx context.Context, msg bus.InboundMessage)
	HandleDiscord(ctx context.Context, msg bus.InboundMessage)
}

type Service struct {
	cfg        config.GatewayConfig
	log        *slog.Logger
	irc        channel.Adapter
	discord    channel.Adapter
	handler    Handler
	dispatcher *relay.Dispatcher
	events     *bus.MessageBus

	mu            sync.RWMutex
	startedAt     time.Time
	channelStates map[string]channelState
	counters      map[bus.EventType]int64
}

type channelState struct {
	Running   bool   `json:"running"`
	Connected bool   `json:"connected"`
	Error     string `json:"error,omitempty"`
}

type statusResponse struct {
	Status        string                  `json:"status"`
	UptimeSeconds int64                   `json:"uptime_seconds"`
	Channels      map[string]channelState `json:"channels"`
	Relay         map[string]int64        `json:"relay"`
}

// NewService wires both adapters to handler through dispatcher. events is
// optional; when set, relay events feed the status counters.
func NewService(cfg config.GatewayConfig, irc, discord channel.Adapter, handler Handler, dispatcher *relay.Dispatcher, events *bus.MessageBus, log *slog.Logger) (*Service, error) {
	if irc == nil || discord == nil {
		return nil, errors.New("irc and discord adapters are required")
	}
	if handler == nil {
		return nil, errors.New("relay handler is required")
	}
	if log == nil {
		log = slog.Default()
	}
	if dispatcher == nil {
		dispatcher = relay.NewDispatcher(0, log)
	}

	return &Service{
		cfg:        cfg,
		log:        log.With("component", "gateway.service"),
		irc:        irc,
		discord:    discord,
		handler:    handler,
		dispatcher: dispatcher,
		events:     events,
		channelStates: map[string]channelState{
			irc.Name():     {},
			discord.Name(): {},
		},
		counters: make(map[bus.EventType]int64),
	}, nil
}

// Run blocks until ctx is done, an adapter fails, or both event streams
// end. Handler tasks still in flight are awaited before returning.
func (s *Service) Run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	s.mu.Lock()
	s.startedAt = time.Now().UTC()
	s.mu.Unlock()

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(runCtx)

	if s.events != nil {
		events, unsubscribe := s.events.SubscribeEvents(runCtx, eventBufferSize)
		defer unsubscribe()
		g.Go(func() error {
			s.countEvents(events)
			return nil
		})
	}

	for _, adapter := range []channel.Adapter{s.irc, s.discord} {
		g.Go(func() error {
			return s.runAdapter(gctx, adapter)
		})
	}

	g.Go(func() error {
		// Both streams closing ends the relay.
		defer cancel()
		return s.dispatcher.Run(gctx,
			relay.Source{Name: s.irc.Name(), Events: s.irc.Events(), Handle: s.handler.HandleIRC},
			relay.Source{Name: s.discord.Name(), Events: s.discord.Events(), Handle: s.handler.HandleDiscord},
		)
	})

	if s.cfg.Enabled {
		g.Go(func() error {
			return s.runStatusServer(gctx)
		})
	}

	s.log.Info("Relay started")
	err := g.Wait()
	s.dispatcher.Wait()
	s.log.Info("Relay stopped")

	return err
}

func (s *Service) runAdapter(ctx context.Context, adapter channel.Adapter) error {
	s.setChannelState(adapter.Name(), channelState{Running: true})

	err := adapter.Run(ctx)
	s.setChannelState(adapter.Name(), channelState{Running: false, Error: errorString(err)})

	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("run %s channel: %w", adapter.Name(), err)
	}

	return nil
}

func (s *Service) countEvents(events <-chan bus.Event) {
	for event := range events {
		s.mu.Lock()
		s.counters[event.Type]++
		s.mu.Unlock()
	}
}

func (s *Service) runStatusServer(ctx context.Context) error {
	host := strings.TrimSpace(s.cfg.Host)
	if host == "" {
		host = defaultStatusHost
	}

	port := s.cfg.Port
	if port <= 0 {
		port = defaultStatusPort
	}

	addr := host + ":" + strconv.Itoa(port)
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/readyz", s.handleReady)

	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	s.log.Info("Gateway status server started", "address", addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("start status server: %w", err)
	}

	return nil
}

func (s *Service) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.respondStatus(w, http.StatusOK, "ok")
}

func (s *Service) handleReady(w http.ResponseWriter, _ *http.Request) {
	statusCode := http.StatusOK
	status := "ready"
	if !s.isReady() {
		statusCode = http.StatusServiceUnavailable
		status = "not_ready"
	}

	s.respondStatus(w, statusCode, status)
}

func (s *Service) respondStatus(w http.ResponseWriter, statusCode int, status string) {
	payload := s.currentStatus(status)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.log.Error("Failed to write status response", "error", err)
	}
}

func (s *Service) currentStatus(status string) statusResponse {
	s.mu.RLock()
	defer s.mu.RUnlock()

	uptime := int64(0)
	if !s.startedAt.IsZero() {
		uptime = int64(time.Since(s.startedAt).Seconds())
	}

	channels := make(map[string]channelState, len(s.channelStates))
	for name, state := range s.channelStates {
		state.Connected = state.Running && s.adapterConnected(name)
		channels[name] = state
	}

	counters := make(map[string]int64, len(s.counters))
	for eventType, count := range s.counters {
		counters[string(eventType)] = count
	}

	return statusResponse{
		Status:        status,
		UptimeSeconds: uptime,
		Channels:      channels,
		Relay:         counters,
	}
}

// isReady reports whether both adapters are running and connected.
func (s *Service) isReady() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, adapter := range []channel.Adapter{s.irc, s.discord} {
		if !s.channelStates[adapter.Name()].Running || !adapter.Connected() {
			return false
		}
	}

	return true
}

func (s *Service) adapterConnected(name string) bool {
	switch name {
	case s.irc.Name():
		return s.irc.Connected()
	case s.discord.Name():
		return s.discord.Connected()
	default:
		return false
	}
}

func (s *Service) setChannelState(name string, state channelState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.channelStates[name] = state
}

func errorString(err error) string {
	if err == nil {
		return ""
	}

	return err.Error()
}
