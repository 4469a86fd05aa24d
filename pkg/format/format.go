// Package format converts message text between the rich Discord form and
// the line-oriented IRC form.
package format

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/cespare/xxhash/v2"

	"ircord/pkg/bus"
)

// IRC control characters.
const (
	ircBold      = "\x02"
	ircColor     = "\x03"
	ircReset     = "\x0f"
	ircReverse   = "\x16"
	ircUnderline = "\x1f"
)

// colorSlots is the number of colours in the mIRC palette.
const colorSlots = 16

// formattingPattern matches IRC formatting toggles and colour introducers
// with their optional "fg[,bg]" digits.
var formattingPattern = regexp.MustCompile("[" + ircBold + ircUnderline + ircReset + ircReverse + "]|" + ircColor + `([0-9][0-9]?(,[0-9][0-9]?)?)?`)

// Colorize maps an author name to one of the 16 IRC colour slots.
func Colorize(name string) int {
	return int(xxhash.Sum64String(name) % colorSlots)
}

// IRCLines renders a Discord message as IRC lines, one per physical line,
// each prefixed with the author's colourised nick.
func IRCLines(msg bus.InboundMessage) []string {
	text := ReplaceMentions(msg.Text, msg.Mentions)

	if attachments := formatAttachments(msg.Attachments); attachments != "" {
		if text != "" {
			text += "\n"
		}
		text += attachments
	}

	lines := splitLines(text)
	if len(lines) == 0 {
		return nil
	}

	prefix := authorTag(msg.Author)
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		out = append(out, prefix+line)
	}

	return out
}

// DiscordLine renders an IRC message for Discord with formatting removed.
func DiscordLine(author, text string) string {
	return "<" + author + "> " + StripFormatting(text)
}

// StripFormatting removes IRC bold, underline, reverse, reset and colour
// sequences, leaving every other character untouched.
func StripFormatting(text string) string {
	return formattingPattern.ReplaceAllLiteralString(text, "")
}

// ReplaceMentions rewrites <@id> and <@!id> tokens into @name.
func ReplaceMentions(text string, mentions map[string]string) string {
	if len(mentions) == 0 || !strings.Contains(text, "<@") {
		return text
	}

	pairs := make([]string, 0, len(mentions)*4)
	for id, name := range mentions {
		pairs = append(pairs, "<@!"+id+">", "@"+name, "<@"+id+">", "@"+name)
	}

	return strings.NewReplacer(pairs...).Replace(text)
}

func authorTag(author string) string {
	// Two digits keep a nick starting with a digit from being read as colour.
	return fmt.Sprintf("<%s%02d%s%s> ", ircColor, Colorize(author), author, ircColor)
}

func formatAttachments(attachments []bus.Attachment) string {
	if len(attachments) == 0 {
		return ""
	}

	lines := make([]string, 0, len(attachments))
	for _, a := range attachments {
		lines = append(lines, fmt.Sprintf("[Attachment: %s (%s)]", a.Name, a.URL))
	}

	return strings.Join(lines, "\n")
}

// splitLines splits on newlines, drops a trailing carriage return from each
// line and ignores the empty remainder after a final newline.
func splitLines(text string) []string {
	if text == "" {
		return nil
	}

	lines := strings.Split(text, "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	for i, line := range lines {
		lines[i] = strings.TrimSuffix(line, "\r")
	}

	return lines
}
