package cmd

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"ircord/pkg/config"
	"ircord/pkg/routing"
)

const anyUser = "*"

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).MarginTop(1)
	headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	borderStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

var routesCmd = &cobra.Command{
	Use:   "routes",
	Short: "Validate the configuration and print the routing table",
	Long:  "Loads and validates the configuration, then prints both routing directions in match order. The first matching row wins.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := config.LoadConfig(configPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		renderRoutes(cmd.OutOrStdout(), cfg.RoutingTable())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(routesCmd)
}

func renderRoutes(w io.Writer, routes routing.Table) {
	fmt.Fprintln(w, titleStyle.Render("IRC -> Discord"))
	fmt.Fprintln(w, routeTable(routes.IRC))
	fmt.Fprintln(w, titleStyle.Render("Discord -> IRC"))
	fmt.Fprintln(w, routeTable(routes.Discord))
}

func routeTable(entries []routing.Entry) string {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(borderStyle).
		Headers("#", "FROM", "USER", "TO").
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})

	for i, entry := range entries {
		user := entry.User
		if user == "" {
			user = anyUser
		}
		t.Row(strconv.Itoa(i+1), entry.From, user, strings.Join(entry.To, ", "))
	}

	return t.String()
}
