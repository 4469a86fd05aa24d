package config

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"ircord/pkg/routing"
)

const (
	// DefaultPath is the configuration file used when neither --config nor IRCORD_CONFIG is set.
	DefaultPath = "config.toml"

	envConfigPath    = "IRCORD_CONFIG"
	envDiscordToken  = "DISCORD_TOKEN"
	envIRCPassword   = "IRC_PASSWORD"
	envRepository    = "IRCORD_REPOSITORY"
	envIRCChannels   = "IRCORD_IRC_CHANNELS"
	defaultUserAgent = "ETLBot"
)

// Config is the root runtime configuration loaded from config.toml.
type Config struct {
	IRC     IRCConfig     `toml:"irc"`
	Discord DiscordConfig `toml:"discord"`
	Mapping MappingConfig `toml:"mapping"`
	Misc    MiscConfig    `toml:"misc"`
	Relay   RelayConfig   `toml:"relay"`
	Gateway GatewayConfig `toml:"gateway"`
	Logging LoggingConfig `toml:"logging"`
}

// LoggingConfig controls structured log output format and verbosity.
type LoggingConfig struct {
	Format    string `toml:"format,omitempty"`
	Level     string `toml:"level,omitempty"`
	AddSource bool   `toml:"add_source,omitempty"`
}

// IRCConfig configures the IRC connection.
type IRCConfig struct {
	Server       string   `toml:"server"`
	Port         int      `toml:"port"`
	UseTLS       bool     `toml:"use_tls"`
	Nickname     string   `toml:"nickname"`
	Username     string   `toml:"username"`
	Realname     string   `toml:"realname"`
	Password     string   `toml:"password"`
	SASLLogin    string   `toml:"sasl_login"`
	SASLPassword string   `toml:"sasl_password"`
	Channels     []string `toml:"channels"`
}

// DiscordConfig configures the Discord bot connection.
type DiscordConfig struct {
	Token      string `toml:"token"`
	GatewayURL string `toml:"gateway_url"`
	APIURL     string `toml:"api_url"`
	Intents    int    `toml:"intents"`
}

// MappingConfig holds the routing rules for both directions.
type MappingConfig struct {
	IRC     []IRCSource     `toml:"irc"`
	Discord []DiscordSource `toml:"discord"`
}

// IRCSource routes one IRC channel (optionally one nick) to Discord channel ids.
type IRCSource struct {
	From string   `toml:"from"`
	User string   `toml:"user,omitempty"`
	To   []uint64 `toml:"to"`
}

// DiscordSource routes one Discord channel id (optionally one user) to IRC channels.
type DiscordSource struct {
	From uint64   `toml:"from"`
	User string   `toml:"user,omitempty"`
	To   []string `toml:"to"`
}

// MiscConfig holds filtering and issue lookup settings.
type MiscConfig struct {
	BadWords    []string `toml:"badwords"`
	Repository  string   `toml:"repository"`
	FilterChars string   `toml:"filterchars"`
	IssueAPIURL string   `toml:"issue_api_url"`
	UserAgent   string   `toml:"user_agent"`
}

// RelayConfig tunes the dispatch loop.
type RelayConfig struct {
	// MaxInFlight bounds concurrently running message handlers. Zero means unbounded.
	MaxInFlight int `toml:"max_in_flight"`
}

// GatewayConfig configures the optional status server.
type GatewayConfig struct {
	Enabled bool   `toml:"enabled"`
	Host    string `toml:"host"`
	Port    int    `toml:"port"`
}

// ValidationError reports a configuration field that cannot be used.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid config %s: %s", e.Field, e.Reason)
}

// LoadConfig resolves the config path, unmarshals it, applies environment
// overrides and validates the result.
func LoadConfig(path string) (*Config, error) {
	configPath, err := resolvePath(path)
	if err != nil {
		return nil, err
	}

	content, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg, err := Parse(content)
	if err != nil {
		return nil, fmt.Errorf("parse config file %s: %w", configPath, err)
	}

	return cfg, nil
}

// Parse decodes TOML content into a validated Config.
func Parse(content []byte) (*Config, error) {
	var cfg Config
	if err := toml.Unmarshal(content, &cfg); err != nil {
		return nil, err
	}

	applyEnvOverrides(&cfg)
	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks the fields the relay cannot start without.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Discord.Token) == "" {
		return &ValidationError{Field: "discord.token", Reason: "is required"}
	}
	if strings.TrimSpace(c.IRC.Server) == "" {
		return &ValidationError{Field: "irc.server", Reason: "is required"}
	}
	if strings.TrimSpace(c.IRC.Nickname) == "" {
		return &ValidationError{Field: "irc.nickname", Reason: "is required"}
	}
	if c.Relay.MaxInFlight < 0 {
		return &ValidationError{Field: "relay.max_in_flight", Reason: "must not be negative"}
	}

	for i, src := range c.Mapping.IRC {
		field := "mapping.irc[" + strconv.Itoa(i) + "]"
		if strings.TrimSpace(src.From) == "" {
			return &ValidationError{Field: field + ".from", Reason: "is required"}
		}
		if len(src.To) == 0 {
			return &ValidationError{Field: field + ".to", Reason: "must list at least one target"}
		}
	}
	for i, src := range c.Mapping.Discord {
		field := "mapping.discord[" + strconv.Itoa(i) + "]"
		if src.From == 0 {
			return &ValidationError{Field: field + ".from", Reason: "is required"}
		}
		if len(src.To) == 0 {
			return &ValidationError{Field: field + ".to", Reason: "must list at least one target"}
		}
	}

	return nil
}

// RoutingTable converts the mapping section into the relay's routing table.
// Discord channel ids become their decimal string form.
func (c *Config) RoutingTable() routing.Table {
	var table routing.Table

	for _, src := range c.Mapping.IRC {
		to := make([]string, 0, len(src.To))
		for _, id := range src.To {
			to = append(to, strconv.FormatUint(id, 10))
		}
		table.IRC = append(table.IRC, routing.Entry{From: src.From, User: src.User, To: to})
	}

	for _, src := range c.Mapping.Discord {
		table.Discord = append(table.Discord, routing.Entry{
			From: strconv.FormatUint(src.From, 10),
			User: src.User,
			To:   slices.Clone(src.To),
		})
	}

	return table
}

// IRCChannels returns the channels to join. When none are configured
// explicitly, every IRC channel named in the mapping is joined.
func (c *Config) IRCChannels() []string {
	if len(c.IRC.Channels) > 0 {
		return slices.Clone(c.IRC.Channels)
	}

	var channels []string
	for _, src := range c.Mapping.IRC {
		channels = append(channels, src.From)
	}
	for _, src := range c.Mapping.Discord {
		channels = append(channels, src.To...)
	}

	seen := make(map[string]struct{}, len(channels))
	unique := make([]string, 0, len(channels))
	for _, ch := range channels {
		if !strings.HasPrefix(ch, "#") && !strings.HasPrefix(ch, "&") {
			continue
		}
		if _, ok := seen[ch]; ok {
			continue
		}
		seen[ch] = struct{}{}
		unique = append(unique, ch)
	}

	return unique
}

// applyEnvOverrides injects selected env-driven settings on top of file config.
func applyEnvOverrides(cfg *Config) {
	if cfg == nil {
		return
	}

	if token := strings.TrimSpace(os.Getenv(envDiscordToken)); token != "" {
		cfg.Discord.Token = token
	}
	if password := strings.TrimSpace(os.Getenv(envIRCPassword)); password != "" {
		cfg.IRC.Password = password
	}
	if repo := strings.TrimSpace(os.Getenv(envRepository)); repo != "" {
		cfg.Misc.Repository = repo
	}
	if rawChannels := strings.TrimSpace(os.Getenv(envIRCChannels)); rawChannels != "" {
		cfg.IRC.Channels = parseCSV(rawChannels)
	}
}

func applyDefaults(cfg *Config) {
	if cfg.IRC.Port == 0 {
		if cfg.IRC.UseTLS {
			cfg.IRC.Port = 6697
		} else {
			cfg.IRC.Port = 6667
		}
	}
	if cfg.IRC.Username == "" {
		cfg.IRC.Username = cfg.IRC.Nickname
	}
	if cfg.IRC.Realname == "" {
		cfg.IRC.Realname = cfg.IRC.Nickname
	}
	if cfg.Misc.UserAgent == "" {
		cfg.Misc.UserAgent = defaultUserAgent
	}
}

// parseCSV splits comma-separated values and returns a trimmed compact slice.
func parseCSV(input string) []string {
	parts := strings.Split(input, ",")
	clean := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed == "" {
			continue
		}
		clean = append(clean, trimmed)
	}

	return slices.Clip(clean)
}

// resolvePath picks the active config file location.
//
// Precedence is the explicit path, then IRCORD_CONFIG, then DefaultPath.
func resolvePath(path string) (string, error) {
	candidate := strings.TrimSpace(path)
	source := "config path"
	if candidate == "" {
		if value := strings.TrimSpace(os.Getenv(envConfigPath)); value != "" {
			candidate = value
			source = envConfigPath
		}
	}
	if candidate == "" {
		candidate = DefaultPath
	}

	info, err := os.Stat(candidate)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("%s does not point to a file: %s", source, candidate)
		}
		return "", fmt.Errorf("stat %s: %w", candidate, err)
	}
	if info.IsDir() {
		return "", fmt.Errorf("%s is a directory: %s", source, candidate)
	}

	return candidate, nil
}
