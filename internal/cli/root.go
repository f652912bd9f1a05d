// Package cli implements the guildport command line interface.
package cli

import (
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/guildport/guildport/internal/config"
	"github.com/guildport/guildport/internal/platform"
)

var (
	buildVersion = "dev"
	buildCommit  = "none"
	buildDate    = "unknown"
)

// SetVersion is called from main to inject build-time version info.
func SetVersion(version, commit, date string) {
	buildVersion = version
	buildCommit = commit
	buildDate = date
}

var rootCmd = &cobra.Command{
	Use:   "guildport",
	Short: "guildport migrates your Discord profile and guilds to Fluxer",
	Long: `guildport reads the guilds you own on Discord and recreates their
structure (roles, categories, channels, permission overrides, emojis,
stickers) on Fluxer, along with your user profile.

Entities that already exist on the destination are detected by name and
skipped, so re-running a partially failed migration only creates what is
still missing.

Get started:
  guildport init          write a starter config file
  guildport guilds        list the Discord guilds you can migrate
  guildport migrate guild <id>`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "Path to the config file (default "+config.DefaultPath+")")
	rootCmd.PersistentFlags().Bool("json", false, "Output in JSON format")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable debug logging")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(guildsCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(versionCmd)
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// loadConfig resolves the config for a command invocation.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	return config.Load(path)
}

// newLogger builds the slog logger the pipeline components share.
// Logs go to stderr so stdout stays clean for --json output.
func newLogger(cmd *cobra.Command, cfg *config.Config) *slog.Logger {
	level := slog.LevelInfo
	switch cfg.Logging.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		level = slog.LevelDebug
	} else if level < slog.LevelWarn {
		// Without --verbose the pipeline's info chatter would fight the
		// progress display, so only warnings and up are shown.
		level = slog.LevelWarn
	}

	var w io.Writer = os.Stderr
	opts := &slog.HandlerOptions{Level: level}
	if cfg.Logging.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// newClients builds the source and destination platform clients.
func newClients(cfg *config.Config, logger *slog.Logger) (*platform.Discord, *platform.Fluxer) {
	discord := platform.NewDiscord(cfg.DiscordToken, platform.Config{
		BaseURL:          cfg.DiscordBaseURL,
		RateLimitRetries: cfg.MaxRateLimitRetries,
		Logger:           logger.With("platform", "discord"),
	})
	fluxer := platform.NewFluxer(cfg.FluxerToken, platform.Config{
		BaseURL:          cfg.FluxerBaseURL,
		RateLimitRetries: cfg.MaxRateLimitRetries,
		Logger:           logger.With("platform", "fluxer"),
	})
	return discord, fluxer
}

func jsonOutput(cmd *cobra.Command) bool {
	v, _ := cmd.Flags().GetBool("json")
	return v
}
