package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/guildport/guildport/internal/cli/ui"
	"github.com/guildport/guildport/internal/config"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a starter config file",
	Long: `Writes a starter config file with every supported key. Fill in
discord_token and fluxer_token before running a migration; tokens can
also be supplied via GUILDPORT_DISCORD_TOKEN and GUILDPORT_FLUXER_TOKEN.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		path, _ := cmd.Flags().GetString("config")
		if path == "" {
			path = config.DefaultPath
		}
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%s already exists; remove it first or pass --config for a different location", path)
		}
		if err := config.GenerateDefault(path); err != nil {
			return fmt.Errorf("writing %s: %w", path, err)
		}
		fmt.Printf("%s Wrote %s\n", ui.StyleSuccess.Render(ui.SymbolCheck), path)
		fmt.Println(ui.StyleHint.Render("  Fill in discord_token and fluxer_token, then run: guildport guilds"))
		return nil
	},
}
