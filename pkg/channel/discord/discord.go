package discord

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"github.com/gorilla/websocket"

	"ircord/pkg/bus"
	"ircord/pkg/config"
)

const (
	channelName       = "discord"
	defaultGatewayURL = "wss://gateway.discord.gg/?v=10&encoding=json"
	defaultAPIURL     = "https://discord.com/api/v10"

	// GUILD_MESSAGES | MESSAGE_CONTENT
	defaultIntents = 1<<9 | 1<<15

	maxMessageLen     = 2000
	maxErrorBodyBytes = 4 << 10
	eventBufferSize   = 100
	defaultReconnect  = 5 * time.Second
	messagePreviewLen = 240
)

// Gateway opcodes.
const (
	opDispatch       = 0
	opHeartbeat      = 1
	opIdentify       = 2
	opReconnect      = 7
	opInvalidSession = 9
	opHello          = 10
)

// Adapter connects to the Discord gateway for inbound messages and posts
// outbound messages through the REST API.
type Adapter struct {
	token      string
	gatewayURL string
	apiURL     string
	intents    int

	httpClient     *http.Client
	dialer         *websocket.Dialer
	reconnectDelay time.Duration
	log            *slog.Logger

	events    chan bus.InboundMessage
	connected atomic.Bool

	mu     sync.RWMutex
	selfID string
}

// NewAdapter validates the Discord configuration and constructs an adapter.
func NewAdapter(cfg config.DiscordConfig, log *slog.Logger) (*Adapter, error) {
	token := strings.TrimSpace(cfg.Token)
	if token == "" {
		return nil, errors.New("discord.token is required")
	}
	if log == nil {
		log = slog.Default()
	}

	a := &Adapter{
		token:          token,
		gatewayURL:     cfg.GatewayURL,
		apiURL:         strings.TrimRight(cfg.APIURL, "/"),
		intents:        cfg.Intents,
		httpClient:     &http.Client{Timeout: 30 * time.Second},
		dialer:         websocket.DefaultDialer,
		reconnectDelay: defaultReconnect,
		log:            log.With("component", "channel.discord"),
		events:         make(chan bus.InboundMessage, eventBufferSize),
	}
	if a.gatewayURL == "" {
		a.gatewayURL = defaultGatewayURL
	}
	if a.apiURL == "" {
		a.apiURL = defaultAPIURL
	}
	if a.intents == 0 {
		a.intents = defaultIntents
	}

	return a, nil
}

func (a *Adapter) Name() string {
	return channelName
}

func (a *Adapter) Events() <-chan bus.InboundMessage {
	return a.events
}

func (a *Adapter) Connected() bool {
	return a.connected.Load()
}

// Run holds a gateway session open until ctx is done, reconnecting after
// the gateway asks for it or the connection drops. It returns an error when
// no session has reached READY yet, or when the gateway closes with a code
// that rules out reconnecting.
func (a *Adapter) Run(ctx context.Context) error {
	defer close(a.events)
	defer a.connected.Store(false)

	everReady := false
	for {
		ready, err := a.session(ctx)
		a.connected.Store(false)
		everReady = everReady || ready

		if ctx.Err() != nil {
			a.log.Info("Discord channel stopped")
			return nil
		}
		if !everReady {
			return err
		}
		if isFatalClose(err) {
			return fmt.Errorf("discord gateway refused session: %w", err)
		}

		a.log.Warn("Discord gateway session ended, reconnecting", "error", err, "delay", a.reconnectDelay)
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(a.reconnectDelay):
		}
	}
}

// Send posts text to a channel, split into as many messages as the length
// limit requires. It stops at the first failed post.
func (a *Adapter) Send(ctx context.Context, target, text string) error {
	endpoint := a.apiURL + "/channels/" + target + "/messages"

	for _, chunk := range splitMessage(text, maxMessageLen) {
		if err := a.postMessage(ctx, endpoint, chunk); err != nil {
			return fmt.Errorf("send to discord channel %s: %w", target, err)
		}
	}

	return nil
}

func (a *Adapter) postMessage(ctx context.Context, endpoint, content string) error {
	body, err := json.Marshal(createMessageRequest{
		Content:         content,
		AllowedMentions: allowedMentions{Parse: []string{}},
	})
	if err != nil {
		return fmt.Errorf("encode message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bot "+a.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		return fmt.Errorf("discord api: HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(detail)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)

	return nil
}

// session runs one gateway connection. It reports whether READY was
// received alongside the error that ended the session.
func (a *Adapter) session(ctx context.Context) (bool, error) {
	conn, _, err := a.dialer.DialContext(ctx, a.gatewayURL, nil)
	if err != nil {
		return false, fmt.Errorf("dial discord gateway: %w", err)
	}
	defer conn.Close()

	stopClose := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stopClose()

	s := &gatewaySession{conn: conn}
	heartbeatDone := make(chan struct{})
	defer close(heartbeatDone)

	a.log.Debug("Discord gateway connected", "url", a.gatewayURL)

	ready := false

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return ready, fmt.Errorf("read gateway payload: %w", err)
		}

		var payload gatewayPayload
		if err := json.Unmarshal(raw, &payload); err != nil {
			a.log.Debug("Ignoring malformed gateway payload", "error", err)
			continue
		}
		if payload.S != nil {
			s.seq.Store(*payload.S)
			s.hasSeq.Store(true)
		}

		switch payload.Op {
		case opHello:
			var hello struct {
				HeartbeatInterval int `json:"heartbeat_interval"`
			}
			if err := json.Unmarshal(payload.D, &hello); err != nil || hello.HeartbeatInterval <= 0 {
				return ready, errors.New("invalid hello payload")
			}
			go s.heartbeat(ctx, time.Duration(hello.HeartbeatInterval)*time.Millisecond, heartbeatDone)

			if err := s.identify(a.token, a.intents); err != nil {
				return ready, fmt.Errorf("identify: %w", err)
			}
		case opHeartbeat:
			if err := s.sendHeartbeat(); err != nil {
				return ready, fmt.Errorf("heartbeat: %w", err)
			}
		case opDispatch:
			if a.dispatch(ctx, payload.T, payload.D) {
				ready = true
			}
		case opReconnect, opInvalidSession:
			return ready, fmt.Errorf("gateway requested reconnect (op=%d)", payload.Op)
		}
	}
}

// dispatch handles one DISPATCH event and reports whether it was a valid READY.
func (a *Adapter) dispatch(ctx context.Context, eventType string, data json.RawMessage) bool {
	switch eventType {
	case "READY":
		var ready readyEvent
		if err := json.Unmarshal(data, &ready); err != nil {
			a.log.Warn("Failed to decode READY event", "error", err)
			return false
		}
		a.mu.Lock()
		a.selfID = ready.User.ID
		a.mu.Unlock()
		a.connected.Store(true)
		a.log.Info("Discord channel ready", "user", ready.User.Username)
		return true
	case "MESSAGE_CREATE":
		var created messageCreateEvent
		if err := json.Unmarshal(data, &created); err != nil {
			a.log.Debug("Ignoring malformed MESSAGE_CREATE", "error", err)
			return false
		}

		a.mu.RLock()
		self := a.selfID
		a.mu.RUnlock()

		msg, ok := created.inbound(self)
		if !ok {
			return false
		}
		a.log.Debug("Received message", "source", msg.SourceID, "author", msg.Author, "content", previewText(msg.Text))

		select {
		case a.events <- msg:
		case <-ctx.Done():
		}
	}

	return false
}

// Gateway close codes after which reconnecting cannot succeed.
const (
	closeAuthenticationFailed = 4004
	closeInvalidShard         = 4010
	closeShardingRequired     = 4011
	closeInvalidAPIVersion    = 4012
	closeInvalidIntents       = 4013
	closeDisallowedIntents    = 4014
)

func isFatalClose(err error) bool {
	var closeErr *websocket.CloseError
	if !errors.As(err, &closeErr) {
		return false
	}

	switch closeErr.Code {
	case closeAuthenticationFailed, closeInvalidShard, closeShardingRequired,
		closeInvalidAPIVersion, closeInvalidIntents, closeDisallowedIntents:
		return true
	default:
		return false
	}
}

type gatewaySession struct {
	conn    *websocket.Conn
	writeMu sync.Mutex

	seq    atomic.Int64
	hasSeq atomic.Bool
}

func (s *gatewaySession) writeJSON(v any) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.conn.WriteJSON(v)
}

func (s *gatewaySession) sendHeartbeat() error {
	var seq any
	if s.hasSeq.Load() {
		seq = s.seq.Load()
	}
	return s.writeJSON(map[string]any{"op": opHeartbeat, "d": seq})
}

func (s *gatewaySession) heartbeat(ctx context.Context, interval time.Duration, done <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-done:
			return
		case <-ticker.C:
			if err := s.sendHeartbeat(); err != nil {
				return
			}
		}
	}
}

func (s *gatewaySession) identify(token string, intents int) error {
	return s.writeJSON(map[string]any{
		"op": opIdentify,
		"d": map[string]any{
			"token":   token,
			"intents": intents,
			"properties": map[string]string{
				"os":      "linux",
				"browser": "ircord",
				"device":  "ircord",
			},
		},
	})
}

type gatewayPayload struct {
	Op int             `json:"op"`
	S  *int64          `json:"s"`
	T  string          `json:"t"`
	D  json.RawMessage `json:"d"`
}

type user struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Bot      bool   `json:"bot"`
}

type readyEvent struct {
	User user `json:"user"`
}

type messageCreateEvent struct {
	ChannelID   string `json:"channel_id"`
	Content     string `json:"content"`
	WebhookID   string `json:"webhook_id"`
	Author      user   `json:"author"`
	Mentions    []user `json:"mentions"`
	Attachments []struct {
		Filename string `json:"filename"`
		URL      string `json:"url"`
	} `json:"attachments"`
}

// inbound converts the event. Events without an author or channel, and
// events authored by bots, webhooks or self are rejected.
func (m messageCreateEvent) inbound(self string) (bus.InboundMessage, bool) {
	if m.ChannelID == "" || m.Author.ID == "" || m.Author.Username == "" {
		return bus.InboundMessage{}, false
	}
	if m.Author.Bot || m.WebhookID != "" || (self != "" && m.Author.ID == self) {
		return bus.InboundMessage{}, false
	}

	msg := bus.InboundMessage{
		Protocol: bus.ProtocolDiscord,
		Author:   m.Author.Username,
		SourceID: m.ChannelID,
		Text:     m.Content,
	}

	if len(m.Mentions) > 0 {
		msg.Mentions = make(map[string]string, len(m.Mentions))
		for _, mention := range m.Mentions {
			msg.Mentions[mention.ID] = mention.Username
		}
	}
	for _, att := range m.Attachments {
		msg.Attachments = append(msg.Attachments, bus.Attachment{Name: att.Filename, URL: att.URL})
	}

	return msg, true
}

type createMessageRequest struct {
	Content         string          `json:"content"`
	AllowedMentions allowedMentions `json:"allowed_mentions"`
}

// allowedMentions with an empty Parse list keeps relayed text from pinging.
type allowedMentions struct {
	Parse []string `json:"parse"`
}

// splitMessage cuts text into chunks of at most limit runes, preferring to
// break after a newline, then after a space.
func splitMessage(text string, limit int) []string {
	if text == "" {
		return nil
	}

	var chunks []string
	for utf8.RuneCountInString(text) > limit {
		cut := byteOffset(text, limit)
		head := text[:cut]

		if i := strings.LastIndexByte(head, '\n'); i > 0 {
			cut = i + 1
		} else if i := strings.LastIndexByte(head, ' '); i > 0 {
			cut = i + 1
		}

		chunks = append(chunks, text[:cut])
		text = text[cut:]
	}
	if text != "" {
		chunks = append(chunks, text)
	}

	return chunks
}

// byteOffset returns the byte index just past the first n runes of s.
func byteOffset(s string, n int) int {
	for i := range s {
		if n == 0 {
			return i
		}
		n--
	}
	return len(s)
}

func previewText(text string) string {
	trimmed := strings.TrimSpace(text)
	if len(trimmed) <= messagePreviewLen {
		return trimmed
	}

	cut := messagePreviewLen
	for cut > 0 && !utf8.RuneStart(trimmed[cut]) {
		cut--
	}
	return trimmed[:cut] + "..."
}
