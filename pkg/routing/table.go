// Package routing resolves a message source to its configured relay targets.
package routing

// Direction selects which half of a Table is consulted.
type Direction int

const (
	// FromIRC resolves IRC channels to Discord channel ids.
	FromIRC Direction = iota
	// FromDiscord resolves Discord channel ids to IRC channels.
	FromDiscord
)

func (d Direction) String() string {
	switch d {
	case FromIRC:
		return "irc"
	case FromDiscord:
		return "discord"
	default:
		return "unknown"
	}
}

// Entry routes messages from one source, optionally restricted to one
// author, to an ordered list of targets. Duplicate targets are kept.
type Entry struct {
	From string
	User string
	To   []string
}

// Matches reports whether the entry applies to a message from source by author.
func (e Entry) Matches(source, author string) bool {
	return e.From == source && (e.User == "" || e.User == author)
}

// Table holds the routing entries for both directions. It is built once
// at startup and only read afterwards.
type Table struct {
	IRC     []Entry
	Discord []Entry
}

// Resolve returns the targets of the first entry matching source and
// author, in declaration order. A later, more specific entry never wins
// over an earlier match. The second result is false when nothing matches.
func (t Table) Resolve(dir Direction, source, author string) ([]string, bool) {
	for _, entry := range t.entries(dir) {
		if entry.Matches(source, author) {
			return entry.To, true
		}
	}

	return nil, false
}

func (t Table) entries(dir Direction) []Entry {
	switch dir {
	case FromIRC:
		return t.IRC
	case FromDiscord:
		return t.Discord
	default:
		return nil
	}
}
