package format

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"ircord/pkg/bus"
)

func tag(author string) string {
	return fmt.Sprintf("<\x03%02d%s\x03> ", Colorize(author), author)
}

func TestColorizeStableAndInRange(t *testing.T) {
	t.Parallel()

	first := Colorize("bob")
	for range 100 {
		got := Colorize("bob")
		if got != first {
			t.Fatalf("Colorize(bob) = %d, want stable %d", got, first)
		}
	}
	for _, name := range []string{"", "alice", "bob", "carol", "1337", "ünïcødé"} {
		if got := Colorize(name); got < 0 || got >= 16 {
			t.Fatalf("Colorize(%q) = %d, want [0,16)", name, got)
		}
	}
}

func TestReplaceMentions(t *testing.T) {
	t.Parallel()

	got := ReplaceMentions("hello <@!42> and <@42>", map[string]string{"42": "alice"})
	require.Equal(t, "hello @alice and @alice", got)
}

func TestReplaceMentionsMultipleUsers(t *testing.T) {
	t.Parallel()

	got := ReplaceMentions("<@1><@2> <@!1> <@3>", map[string]string{"1": "a", "2": "b"})
	require.Equal(t, "@a@b @a <@3>", got)
}

func TestReplaceMentionsIDPrefixesDoNotCollide(t *testing.T) {
	t.Parallel()

	got := ReplaceMentions("<@4> <@42>", map[string]string{"4": "four", "42": "fortytwo"})
	require.Equal(t, "@four @fortytwo", got)
}

func TestIRCLinesSplitsAndPrefixes(t *testing.T) {
	t.Parallel()

	lines := IRCLines(bus.InboundMessage{Author: "bob", Text: "one\r\ntwo\n\nthree\n"})
	require.Equal(t, []string{
		tag("bob") + "one",
		tag("bob") + "two",
		tag("bob") + "",
		tag("bob") + "three",
	}, lines)
}

func TestIRCLinesAttachmentOnly(t *testing.T) {
	t.Parallel()

	lines := IRCLines(bus.InboundMessage{
		Author:      "bob",
		Attachments: []bus.Attachment{{Name: "a.png", URL: "http://x/a.png"}},
	})
	require.Len(t, lines, 1)
	require.Equal(t, "[Attachment: a.png (http://x/a.png)]", strings.TrimPrefix(lines[0], tag("bob")))
}

func TestIRCLinesTextThenAttachments(t *testing.T) {
	t.Parallel()

	lines := IRCLines(bus.InboundMessage{
		Author:   "bob",
		Text:     "look <@7>",
		Mentions: map[string]string{"7": "carol"},
		Attachments: []bus.Attachment{
			{Name: "a.png", URL: "http://x/a.png"},
			{Name: "b.txt", URL: "http://x/b.txt"},
		},
	})
	require.Equal(t, []string{
		tag("bob") + "look @carol",
		tag("bob") + "[Attachment: a.png (http://x/a.png)]",
		tag("bob") + "[Attachment: b.txt (http://x/b.txt)]",
	}, lines)
}

func TestIRCLinesEmptyMessage(t *testing.T) {
	t.Parallel()

	require.Empty(t, IRCLines(bus.InboundMessage{Author: "bob"}))
}

func TestAuthorTagPadsColour(t *testing.T) {
	t.Parallel()

	got := authorTag("9lives")
	require.True(t, strings.HasPrefix(got, "<\x03"))
	require.Equal(t, fmt.Sprintf("%02d", Colorize("9lives")), got[2:4])
	require.True(t, strings.HasSuffix(got, "9lives\x03> "))
}

func TestStripFormatting(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		in   string
		want string
	}{
		{name: "bold and colour", in: "\x02\x0304,01hi", want: "hi"},
		{name: "plain", in: "hello 123", want: "hello 123"},
		{name: "foreground only", in: "\x034red\x03 text", want: "red text"},
		{name: "bare colour", in: "\x03,5x", want: ",5x"},
		{name: "three digits keep the third", in: "\x03123", want: "3"},
		{name: "background three digits", in: "\x0312,345", want: "5"},
		{name: "underline reverse reset", in: "\x1fu\x16r\x0fn", want: "urn"},
		{name: "digits elsewhere untouched", in: "#42 at 10,20", want: "#42 at 10,20"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			require.Equal(t, tc.want, StripFormatting(tc.in))
		})
	}
}

func TestDiscordLine(t *testing.T) {
	t.Parallel()

	require.Equal(t, "<bob> hi there", DiscordLine("bob", "\x02hi\x02 there"))
}
