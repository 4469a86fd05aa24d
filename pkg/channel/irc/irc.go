package irc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"unicode/utf8"

	"github.com/ergochat/irc-go/ircevent"
	"github.com/ergochat/irc-go/ircmsg"

	"ircord/pkg/bus"
	"ircord/pkg/config"
)

const (
	channelName       = "irc"
	eventBufferSize   = 100
	messagePreviewLen = 240
	quitMessage       = "ircord shutting down"

	// maxLineLen is the RFC 1459 line limit, CRLF included.
	maxLineLen = 512
	// maxHostLen bounds the host part of the prefix the server prepends
	// when it forwards our PRIVMSG to other clients.
	maxHostLen = 63
)

// Adapter connects to one IRC server and relays channel PRIVMSGs.
type Adapter struct {
	cfg      config.IRCConfig
	channels []string
	log      *slog.Logger

	events    chan bus.InboundMessage
	connected atomic.Bool

	mu   sync.RWMutex
	conn *ircevent.Connection
}

// NewAdapter validates the IRC configuration and constructs an adapter that
// joins channels once registered.
func NewAdapter(cfg config.IRCConfig, channels []string, log *slog.Logger) (*Adapter, error) {
	if strings.TrimSpace(cfg.Server) == "" {
		return nil, errors.New("irc.server is required")
	}
	if strings.TrimSpace(cfg.Nickname) == "" {
		return nil, errors.New("irc.nickname is required")
	}
	if log == nil {
		log = slog.Default()
	}

	return &Adapter{
		cfg:      cfg,
		channels: channels,
		log:      log.With("component", "channel.irc"),
		events:   make(chan bus.InboundMessage, eventBufferSize),
	}, nil
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

// Run registers with the server and blocks until ctx is done. The
// underlying connection reconnects on its own after the first successful
// registration; only the initial connect failure is returned.
func (a *Adapter) Run(ctx context.Context) error {
	defer close(a.events)
	defer a.connected.Store(false)

	conn := a.newConnection()

	conn.AddConnectCallback(func(ircmsg.Message) {
		a.connected.Store(true)
		a.log.Info("IRC channel registered", "nick", conn.CurrentNick())
		for _, channel := range a.channels {
			if err := conn.Join(channel); err != nil {
				a.log.Error("Failed to join channel", "channel", channel, "error", err)
			}
		}
	})
	conn.AddCallback("PRIVMSG", func(e ircmsg.Message) {
		msg, ok := inboundFromPrivmsg(e, conn.CurrentNick())
		if !ok {
			return
		}
		a.log.Debug("Received message", "source", msg.SourceID, "author", msg.Author, "content", previewText(msg.Text))

		select {
		case a.events <- msg:
		case <-ctx.Done():
		}
	})

	if err := conn.Connect(); err != nil {
		return fmt.Errorf("connect to irc server %s: %w", conn.Server, err)
	}

	a.mu.Lock()
	a.conn = conn
	a.mu.Unlock()

	stop := context.AfterFunc(ctx, conn.Quit)
	defer stop()

	conn.Loop()
	a.log.Info("IRC channel stopped")

	return nil
}

// Send writes text to target, split over as many PRIVMSGs as the line
// limit requires.
func (a *Adapter) Send(_ context.Context, target, text string) error {
	a.mu.RLock()
	conn := a.conn
	a.mu.RUnlock()

	if conn == nil || !a.connected.Load() {
		return errors.New("irc connection is not established")
	}

	budget := messageBudget(conn.CurrentNick(), a.cfg.Username, target)
	for _, chunk := range splitLine(text, budget) {
		if err := conn.Privmsg(target, chunk); err != nil {
			return fmt.Errorf("send privmsg to %s: %w", target, err)
		}
	}

	return nil
}

// messageBudget is the number of text bytes a PRIVMSG to target can carry
// once the server has prepended ":nick!user@host ".
func messageBudget(nick, user, target string) int {
	prefix := len(":") + len(nick) + len("!") + len(user) + len("@") + maxHostLen + len(" ")
	command := len("PRIVMSG ") + len(target) + len(" :") + len("\r\n")
	return maxLineLen - prefix - command
}

// splitLine cuts text into chunks of at most limit bytes, breaking at the
// last space that fits and otherwise at a rune boundary. The space a chunk
// breaks on is dropped.
func splitLine(text string, limit int) []string {
	if limit <= 0 || len(text) <= limit {
		return []string{text}
	}

	var chunks []string
	for len(text) > limit {
		cut := limit
		for cut > 0 && !utf8.RuneStart(text[cut]) {
			cut--
		}
		if cut == 0 {
			cut = limit
		}

		if i := strings.LastIndexByte(text[:cut], ' '); i > 0 {
			chunks = append(chunks, text[:i])
			text = text[i+1:]
			continue
		}

		chunks = append(chunks, text[:cut])
		text = text[cut:]
	}
	if text != "" {
		chunks = append(chunks, text)
	}

	return chunks
}

func (a *Adapter) newConnection() *ircevent.Connection {
	conn := &ircevent.Connection{
		Server:      net.JoinHostPort(a.cfg.Server, strconv.Itoa(a.cfg.Port)),
		Nick:        a.cfg.Nickname,
		User:        a.cfg.Username,
		RealName:    a.cfg.Realname,
		Password:    a.cfg.Password,
		UseTLS:      a.cfg.UseTLS,
		QuitMessage: quitMessage,
		MaxLineLen:  maxLineLen,
		Log:         slog.NewLogLogger(a.log.Handler(), slog.LevelDebug),
	}

	// Send splits lines to fit; anything still over the limit is cut
	// rather than dropped.
	conn.AllowTruncation = true

	if a.cfg.SASLLogin != "" {
		conn.UseSASL = true
		conn.SASLLogin = a.cfg.SASLLogin
		conn.SASLPassword = a.cfg.SASLPassword
	}

	return conn
}

// inboundFromPrivmsg converts a PRIVMSG into an inbound message. Messages
// sent by self, sent privately to self, or missing a nick are rejected.
func inboundFromPrivmsg(e ircmsg.Message, self string) (bus.InboundMessage, bool) {
	if len(e.Params) < 2 {
		return bus.InboundMessage{}, false
	}

	nick := e.Nick()
	if nick == "" || strings.EqualFold(nick, self) {
		return bus.InboundMessage{}, false
	}

	target := e.Params[0]
	if strings.EqualFold(target, self) {
		return bus.InboundMessage{}, false
	}

	return bus.InboundMessage{
		Protocol: bus.ProtocolIRC,
		Author:   nick,
		SourceID: target,
		Text:     e.Params[1],
	}, true
}

// previewText returns a bounded log-safe preview of message text.
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
