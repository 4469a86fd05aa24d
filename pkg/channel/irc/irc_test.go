package irc

import (
	"context"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/ergochat/irc-go/ircmsg"
	"github.com/stretchr/testify/require"

	"ircord/pkg/bus"
	"ircord/pkg/config"
	"ircord/pkg/format"
)

func mustParse(t *testing.T, line string) ircmsg.Message {
	t.Helper()

	msg, err := ircmsg.ParseLine(line)
	require.NoError(t, err)
	return msg
}

func TestInboundFromPrivmsg(t *testing.T) {
	msg, ok := inboundFromPrivmsg(mustParse(t, ":bob!b@host PRIVMSG #etl :hello #5"), "ircord")
	require.True(t, ok)
	require.Equal(t, bus.InboundMessage{
		Protocol: bus.ProtocolIRC,
		Author:   "bob",
		SourceID: "#etl",
		Text:     "hello #5",
	}, msg)
}

func TestInboundFromPrivmsgRejects(t *testing.T) {
	cases := map[string]string{
		"own message":     ":ircord!i@host PRIVMSG #etl :echo",
		"own nick casing": ":IRCord!i@host PRIVMSG #etl :echo",
		"private query":   ":bob!b@host PRIVMSG ircord :psst",
		"no source":       "PRIVMSG #etl :hello",
		"no text":         ":bob!b@host PRIVMSG #etl",
	}

	for name, line := range cases {
		t.Run(name, func(t *testing.T) {
			_, ok := inboundFromPrivmsg(mustParse(t, line), "ircord")
			require.False(t, ok)
		})
	}
}

func TestNewAdapterValidatesConfig(t *testing.T) {
	_, err := NewAdapter(config.IRCConfig{Nickname: "n"}, nil, nil)
	require.Error(t, err)

	_, err = NewAdapter(config.IRCConfig{Server: "irc.example.org"}, nil, nil)
	require.Error(t, err)

	adapter, err := NewAdapter(config.IRCConfig{Server: "irc.example.org", Nickname: "n"}, []string{"#a"}, nil)
	require.NoError(t, err)
	require.Equal(t, "irc", adapter.Name())
	require.False(t, adapter.Connected())
}

func TestNewConnectionMapsConfig(t *testing.T) {
	adapter, err := NewAdapter(config.IRCConfig{
		Server:       "irc.example.org",
		Port:         6697,
		UseTLS:       true,
		Nickname:     "ircord",
		Username:     "relay",
		Realname:     "Relay Bot",
		SASLLogin:    "acct",
		SASLPassword: "secret",
	}, nil, nil)
	require.NoError(t, err)

	conn := adapter.newConnection()
	require.Equal(t, "irc.example.org:6697", conn.Server)
	require.Equal(t, "ircord", conn.Nick)
	require.Equal(t, "relay", conn.User)
	require.Equal(t, "Relay Bot", conn.RealName)
	require.True(t, conn.UseTLS)
	require.True(t, conn.UseSASL)
	require.Equal(t, "acct", conn.SASLLogin)
	require.Equal(t, maxLineLen, conn.MaxLineLen)
	require.True(t, conn.AllowTruncation)
}

func TestSendBeforeConnectFails(t *testing.T) {
	adapter, err := NewAdapter(config.IRCConfig{Server: "irc.example.org", Nickname: "n"}, nil, nil)
	require.NoError(t, err)

	require.Error(t, adapter.Send(context.Background(), "#a", "hi"))
}

func TestRunReturnsConnectError(t *testing.T) {
	adapter, err := NewAdapter(config.IRCConfig{Server: "127.0.0.1", Port: 1, Nickname: "n"}, nil, nil)
	require.NoError(t, err)

	err = adapter.Run(context.Background())
	require.Error(t, err)

	_, open := <-adapter.Events()
	require.False(t, open, "events channel is closed when Run returns")
}

func TestPreviewText(t *testing.T) {
	require.Equal(t, "short", previewText("  short  "))

	long := strings.Repeat("x", messagePreviewLen+10)
	require.Equal(t, strings.Repeat("x", messagePreviewLen)+"...", previewText(long))

	wide := previewText(strings.Repeat("é", messagePreviewLen))
	require.True(t, utf8.ValidString(wide))
	require.True(t, strings.HasSuffix(wide, "..."))
}

func TestSplitLine(t *testing.T) {
	require.Equal(t, []string{"short"}, splitLine("short", 10))
	require.Equal(t, []string{""}, splitLine("", 10))
	require.Equal(t, []string{"alpha", "beta gamma"}, splitLine("alpha beta gamma", 10))
	require.Equal(t, []string{"abcd", "efgh", "ij"}, splitLine("abcdefghij", 4))

	// Three two-byte runes with a limit of 5 bytes must not split "é".
	require.Equal(t, []string{"éé", "é"}, splitLine("ééé", 5))
}

func TestLongDiscordLineFitsIRCLimit(t *testing.T) {
	const (
		nick   = "ircord"
		user   = "ircord"
		target = "#etl"
	)

	words := strings.Repeat("lorem ipsum dolor sit amet ", 40)
	lines := format.IRCLines(bus.InboundMessage{Author: "carol", Text: words})
	require.Len(t, lines, 1)
	require.Greater(t, len(lines[0]), maxLineLen)

	budget := messageBudget(nick, user, target)
	chunks := splitLine(lines[0], budget)
	require.Greater(t, len(chunks), 1)
	require.Equal(t, strings.Fields(lines[0]), strings.Fields(strings.Join(chunks, " ")))

	host := strings.Repeat("h", maxHostLen)
	for _, chunk := range chunks {
		require.LessOrEqual(t, len(chunk), budget)

		relayed := ircmsg.MakeMessage(nil, nick+"!"+user+"@"+host, "PRIVMSG", target, chunk)
		_, err := relayed.LineBytesStrict(false, maxLineLen)
		require.NoError(t, err, "chunk %q exceeds the line limit once relayed", chunk)
	}
}
