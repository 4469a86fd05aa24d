package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"ircord/pkg/config"
	"ircord/pkg/logger"
)

var relayCmd = &cobra.Command{
	Use:   "relay",
	Short: "Run the IRC <-> Discord relay",
	Long:  "Connects to the configured IRC server and Discord gateway and relays messages until interrupted.",
	RunE:  runRelay,
}

func init() {
	rootCmd.AddCommand(relayCmd)
}

func runRelay(cmd *cobra.Command, _ []string) error {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	appLogger, err := logger.New(cfg.Logging)
	if err != nil {
		return fmt.Errorf("initialize logger: %w", err)
	}
	slog.SetDefault(appLogger)
	log := appLogger.With("component", "cmd.relay")

	c, err := newContainer(cfg, appLogger)
	if err != nil {
		return fmt.Errorf("wire relay: %w", err)
	}
	defer c.Close()

	runCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	table := cfg.RoutingTable()
	log.Info("Relay starting",
		"irc_server", cfg.IRC.Server,
		"irc_channels", cfg.IRCChannels(),
		"irc_routes", len(table.IRC),
		"discord_routes", len(table.Discord),
		"repository", cfg.Misc.Repository,
	)

	if err := c.Service().Run(runCtx); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("relay runtime failed: %w", err)
	}

	return nil
}
