package cli

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/guildport/guildport/internal/cli/ui"
	"github.com/guildport/guildport/internal/config"
	"github.com/guildport/guildport/internal/engine"
	"github.com/guildport/guildport/internal/migrate"
	"github.com/guildport/guildport/internal/platform"
)

var migrateGuildCmd = &cobra.Command{
	Use:   "guild <discord-guild-id>",
	Short: "Recreate a Discord guild's structure on Fluxer",
	Long: `Recreates the structure of a Discord guild you own on Fluxer: roles,
categories, channels, role permission overrides, emojis, and stickers.
Members and messages are not copied.

By default a new Fluxer guild is created. With --into, the structure is
merged into an existing Fluxer guild instead: entities that already
exist there (matched by name) are skipped, so re-running a partially
failed migration only creates what is still missing.`,
	Args: cobra.ExactArgs(1),
	RunE: runMigrateGuild,
}

func init() {
	migrateGuildCmd.Flags().String("into", "", "Existing Fluxer guild id to merge into (default: create a new guild)")
	migrateGuildCmd.Flags().String("name", "", "Name for the new Fluxer guild (default: the source guild's name)")
	migrateGuildCmd.Flags().Bool("skip-roles", false, "Do not migrate roles (implies --skip-permissions)")
	migrateGuildCmd.Flags().Bool("skip-channels", false, "Do not migrate categories and channels")
	migrateGuildCmd.Flags().Bool("skip-permissions", false, "Do not migrate role permission overrides")
	migrateGuildCmd.Flags().Bool("skip-emojis", false, "Do not migrate emojis")
	migrateGuildCmd.Flags().Bool("skip-stickers", false, "Do not migrate stickers")
	migrateGuildCmd.Flags().Bool("with-profile", false, "Also copy your Discord profile to Fluxer")
	migrateGuildCmd.Flags().Bool("dry-run", false, "Show the migration plan without creating anything")
	migrateGuildCmd.Flags().Int("concurrency", 0, "Creation operations in flight at once (default from config)")
	migrateGuildCmd.Flags().String("tie-break", "", "Match tie-break policy: lowest-position or first-listed (default from config)")
	migrateGuildCmd.Flags().BoolP("yes", "y", false, "Skip the confirmation prompt")
}

func runMigrateGuild(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger := newLogger(cmd, cfg)
	discord, fluxer := newClients(cfg, logger)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srcGuildID := migrate.RemoteID(args[0])
	dryRun, _ := cmd.Flags().GetBool("dry-run")
	intoID, _ := cmd.Flags().GetString("into")
	quiet := jsonOutput(cmd)

	fetchOpts := fetchOptionsFromFlags(cmd, logger)
	fetchOpts.DownloadBlobs = !dryRun // a plan preview needs no image bytes

	tieBreak, err := tieBreakFromFlags(cmd, cfg)
	if err != nil {
		return err
	}

	spin := ui.NewStepSpinner(os.Stderr, quiet || !ui.ColorEnabled())

	spin.Start("Reading source guild from Discord")
	src, fetchWarnings, err := engine.Fetch(ctx, discord, srcGuildID, fetchOpts)
	if err != nil {
		spin.Fail()
		return fmt.Errorf("reading source guild: %w", err)
	}
	spin.Done()

	matches := migrate.MatchMapping{}
	destination := "a new Fluxer guild"
	var matchWarnings []string
	if intoID != "" {
		spin.Start("Reading destination guild from Fluxer")
		dstOpts := fetchOpts
		dstOpts.DownloadBlobs = false
		dst, dstWarnings, err := engine.Fetch(ctx, fluxer, migrate.RemoteID(intoID), dstOpts)
		if err != nil {
			spin.Fail()
			return fmt.Errorf("reading destination guild: %w", err)
		}
		spin.Done()
		fetchWarnings = append(fetchWarnings, dstWarnings...)

		matches, matchWarnings = engine.Match(src, dst, engine.MatchOptions{TieBreak: tieBreak})
		destination = fmt.Sprintf("%q (%s)", dst.Name, dst.GuildID)
	}

	plan, err := engine.BuildPlan(src, matches)
	if err != nil {
		return fmt.Errorf("planning migration: %w", err)
	}

	planReport := &migrate.PlanReport{
		SourceGuild: fmt.Sprintf("%q (%s)", src.Name, src.GuildID),
		Destination: destination,
		Rows:        engine.Tally(src, matches, plan),
		Warnings:    append(fetchWarnings, matchWarnings...),
	}
	if quiet {
		if dryRun {
			return json.NewEncoder(os.Stdout).Encode(planReport)
		}
	} else {
		planReport.PrintReport(os.Stdout)
	}
	if dryRun {
		return nil
	}

	if err := confirm(cmd, "Proceed with the migration?"); err != nil {
		return err
	}

	var profile *migrate.ProfileData
	if withProfile, _ := cmd.Flags().GetBool("with-profile"); withProfile {
		spin.Start("Reading Discord profile")
		profile, err = discord.FetchProfile(ctx)
		if err != nil {
			spin.Fail()
			return fmt.Errorf("reading profile: %w", err)
		}
		spin.Done()
	}

	dstGuildID := migrate.RemoteID(intoID)
	if intoID == "" {
		name, _ := cmd.Flags().GetString("name")
		if name == "" {
			name = src.Name
		}
		spin.Start(fmt.Sprintf("Creating Fluxer guild %q", name))
		dstGuildID, err = fluxer.CreateGuild(ctx, platform.CreateGuild{Name: name})
		if err != nil {
			spin.Fail()
			return fmt.Errorf("creating destination guild: %w", err)
		}
		if len(src.Icon) > 0 {
			if err := fluxer.SetGuildIcon(ctx, dstGuildID, src.Icon); err != nil {
				logger.Warn("guild icon upload failed", "error", err)
			}
		}
		spin.Done()
	}

	var reporter migrate.ProgressReporter = migrate.NopReporter{}
	if !quiet {
		reporter = migrate.NewCLIReporter(os.Stdout)
	}
	report := engine.Execute(ctx, fluxer, dstGuildID, plan, matches, profile, engine.ExecOptions{
		Concurrency: concurrencyFromFlags(cmd, cfg),
		Reporter:    reporter,
		Logger:      logger,
	})
	report.Warnings = append(planReport.Warnings, report.Warnings...)

	if quiet {
		if err := json.NewEncoder(os.Stdout).Encode(report); err != nil {
			return err
		}
	} else {
		report.PrintSummary(os.Stdout)
	}
	if !report.OK() {
		return fmt.Errorf("migration finished with failures")
	}
	return nil
}

func fetchOptionsFromFlags(cmd *cobra.Command, logger *slog.Logger) engine.FetchOptions {
	opts := engine.AllFetchOptions()
	opts.Logger = logger
	if v, _ := cmd.Flags().GetBool("skip-roles"); v {
		opts.Roles = false
		opts.Permissions = false
	}
	if v, _ := cmd.Flags().GetBool("skip-channels"); v {
		opts.Channels = false
	}
	if v, _ := cmd.Flags().GetBool("skip-permissions"); v {
		opts.Permissions = false
	}
	if v, _ := cmd.Flags().GetBool("skip-emojis"); v {
		opts.Emojis = false
	}
	if v, _ := cmd.Flags().GetBool("skip-stickers"); v {
		opts.Stickers = false
	}
	return opts
}

func tieBreakFromFlags(cmd *cobra.Command, cfg *config.Config) (engine.TieBreak, error) {
	s, _ := cmd.Flags().GetString("tie-break")
	if s == "" {
		s = cfg.TieBreak
	}
	return engine.ParseTieBreak(s)
}

func concurrencyFromFlags(cmd *cobra.Command, cfg *config.Config) int {
	if n, _ := cmd.Flags().GetInt("concurrency"); n > 0 {
		return n
	}
	return cfg.Concurrency
}
