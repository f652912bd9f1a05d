package cli

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/guildport/guildport/internal/cli/ui"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Migrate your profile or a guild to Fluxer",
}

func init() {
	migrateCmd.AddCommand(migrateProfileCmd)
	migrateCmd.AddCommand(migrateGuildCmd)
}

// confirm prompts for a yes/no answer. The --yes flag and JSON mode
// skip the prompt; a non-interactive terminal without --yes refuses
// rather than hanging.
func confirm(cmd *cobra.Command, prompt string) error {
	if yes, _ := cmd.Flags().GetBool("yes"); yes {
		return nil
	}
	if jsonOutput(cmd) || !ui.IsInteractive() {
		return fmt.Errorf("refusing to proceed without confirmation; pass --yes to run non-interactively")
	}

	fmt.Printf("%s [y/N]: ", prompt)
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return fmt.Errorf("reading confirmation: %w", err)
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return nil
	}
	return fmt.Errorf("cancelled")
}
