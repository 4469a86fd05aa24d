package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"ircord/pkg/routing"
)

func TestRenderRoutes(t *testing.T) {
	var out bytes.Buffer
	renderRoutes(&out, routing.Table{
		IRC: []routing.Entry{
			{From: "#etl", To: []string{"111", "222"}},
			{From: "#etl", User: "alice", To: []string{"333"}},
		},
		Discord: []routing.Entry{
			{From: "111", To: []string{"#etl"}},
		},
	})

	rendered := out.String()
	require.Contains(t, rendered, "IRC -> Discord")
	require.Contains(t, rendered, "Discord -> IRC")
	require.Contains(t, rendered, "111, 222")
	require.Contains(t, rendered, "alice")
	require.Contains(t, rendered, anyUser)

	// Declaration order is match order.
	require.Less(t, strings.Index(rendered, "111, 222"), strings.Index(rendered, "alice"))
}

func TestRoutesCommandRejectsInvalidConfig(t *testing.T) {
	t.Setenv("DISCORD_TOKEN", "")
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("[irc]\nserver = \"irc.example.org\"\n"), 0o600))

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"routes", "--config", path})
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetArgs(nil)
	})

	err := rootCmd.Execute()
	require.ErrorContains(t, err, "discord.token")
}

func TestRoutesCommandPrintsTable(t *testing.T) {
	t.Setenv("DISCORD_TOKEN", "")
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
[irc]
server = "irc.example.org"
nickname = "ircord"

[discord]
token = "tok"

[[mapping.irc]]
from = "#etl"
to = [111]
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"routes", "-c", path})
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetArgs(nil)
	})

	require.NoError(t, rootCmd.Execute())
	require.Contains(t, out.String(), "#etl")
	require.Contains(t, out.String(), "111")
}

func TestRoutesCommandUsesConfigFromEnvironment(t *testing.T) {
	require.Empty(t, rootCmd.PersistentFlags().Lookup("config").DefValue, "an empty flag default lets IRCORD_CONFIG apply")

	t.Setenv("DISCORD_TOKEN", "")
	path := filepath.Join(t.TempDir(), "env.toml")
	content := `
[irc]
server = "irc.example.org"
nickname = "ircord"

[discord]
token = "tok"

[[mapping.discord]]
from = 424242
to = ["#from-env"]
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	t.Setenv("IRCORD_CONFIG", path)

	// Flag values persist across Execute calls on the shared root command.
	configPath = ""

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"routes"})
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetArgs(nil)
	})

	require.NoError(t, rootCmd.Execute())
	require.Contains(t, out.String(), "#from-env")
	require.Contains(t, out.String(), "424242")
}
