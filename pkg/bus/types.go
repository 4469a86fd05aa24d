package bus

// Protocol names one side of the bridge.
type Protocol string

const (
	ProtocolIRC     Protocol = "irc"
	ProtocolDiscord Protocol = "discord"
)

// Attachment is a file linked from a rich message.
type Attachment struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// InboundMessage is the protocol-neutral view of a received chat message.
// Fields a protocol does not carry stay empty.
type InboundMessage struct {
	Protocol    Protocol          `json:"protocol"`
	Author      string            `json:"author"`
	SourceID    string            `json:"source_id"`
	Text        string            `json:"text"`
	Mentions    map[string]string `json:"mentions,omitempty"`
	Attachments []Attachment      `json:"attachments,omitempty"`
	Bot         bool              `json:"bot,omitempty"`
}

// OutboundMessage is one line of text destined for one target.
type OutboundMessage struct {
	Protocol Protocol `json:"protocol"`
	Target   string   `json:"target"`
	Content  string   `json:"content"`
}
