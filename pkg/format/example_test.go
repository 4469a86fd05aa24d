package format_test

import (
	"fmt"

	"ircord/pkg/format"
)

func ExampleStripFormatting() {
	fmt.Println(format.StripFormatting("\x02bold\x02 and \x0304,01red\x03"))
	// Output: bold and red
}

func ExampleDiscordLine() {
	fmt.Println(format.DiscordLine("alice", "\x1fsee\x1f #12"))
	// Output: <alice> see #12
}
