package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/guildport/guildport/internal/cli/ui"
)

var guildsCmd = &cobra.Command{
	Use:   "guilds",
	Short: "List the Discord guilds you own",
	Long:  `Lists the guilds the configured Discord account owns. Only owned guilds can be migrated.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		logger := newLogger(cmd, cfg)
		discord, _ := newClients(cfg, logger)

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		guilds, err := discord.ListOwnedGuilds(ctx)
		if err != nil {
			return fmt.Errorf("listing guilds: %w", err)
		}

		if jsonOutput(cmd) {
			type row struct {
				ID      string `json:"id"`
				Name    string `json:"name"`
				Members int    `json:"memberCount"`
			}
			rows := make([]row, 0, len(guilds))
			for _, g := range guilds {
				rows = append(rows, row{ID: string(g.ID), Name: g.Name, Members: g.MemberCount})
			}
			return json.NewEncoder(os.Stdout).Encode(rows)
		}

		if len(guilds) == 0 {
			fmt.Println("No owned guilds found on this account.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME\tMEMBERS")
		for _, g := range guilds {
			fmt.Fprintf(w, "%s\t%s\t%d\n", g.ID, g.Name, g.MemberCount)
		}
		if err := w.Flush(); err != nil {
			return err
		}
		fmt.Println(ui.StyleHint.Render("\n  Migrate one with: guildport migrate guild <id>"))
		return nil
	},
}
