package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/guildport/guildport/internal/cli/ui"
	"github.com/guildport/guildport/internal/migrate"
)

var migrateProfileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Copy your Discord profile to Fluxer",
	Long: `Copies your display name, pronouns, bio, accent color, avatar, and
banner from Discord to the Fluxer account. Fields Discord does not
expose for the account are left untouched on Fluxer.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		logger := newLogger(cmd, cfg)
		discord, fluxer := newClients(cfg, logger)

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		quiet := jsonOutput(cmd)
		spin := ui.NewStepSpinner(os.Stderr, quiet || !ui.ColorEnabled())

		spin.Start("Reading Discord profile")
		profile, err := discord.FetchProfile(ctx)
		if err != nil {
			spin.Fail()
			return fmt.Errorf("reading profile: %w", err)
		}
		spin.Done()

		if err := confirm(cmd, fmt.Sprintf("Apply profile of %q to the Fluxer account?", profile.Username)); err != nil {
			return err
		}

		spin.Start("Updating Fluxer profile")
		report := migrate.NewRunReport()
		if err := fluxer.UpdateProfile(ctx, profile); err != nil {
			spin.Fail()
			report.Failed = append(report.Failed, migrate.OpFailure{
				Kind:   migrate.KindProfile,
				Name:   profile.Username,
				Code:   migrate.CodeOf(err),
				Reason: err.Error(),
			})
		} else {
			spin.Done()
			report.Succeeded = append(report.Succeeded, migrate.OpResult{
				Kind: migrate.KindProfile,
				Name: profile.Username,
			})
		}

		if quiet {
			if err := json.NewEncoder(os.Stdout).Encode(report); err != nil {
				return err
			}
		} else {
			report.PrintSummary(os.Stdout)
		}
		if !report.OK() {
			return fmt.Errorf("profile migration failed")
		}
		return nil
	},
}

func init() {
	migrateProfileCmd.Flags().BoolP("yes", "y", false, "Skip the confirmation prompt")
}
