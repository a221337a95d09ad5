package cli

import (
	"fmt"
	"io"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/terminally-online/warden/internal/config"
	"github.com/terminally-online/warden/internal/factory"
	"github.com/terminally-online/warden/internal/logger"
	"github.com/terminally-online/warden/internal/session"
)

var (
	cfgFile string
	cfg     *config.Config
	flags   config.Flags
	version = "dev"
)

var rootCmd = &cobra.Command{
	Use:   "warden",
	Short: "Administrative console for an identity provider's user directory",
	Long: `Warden loads the user directory of a Supabase/GoTrue project, lets you
search it and ban or unban accounts.

Bans are only written to the local view after the provider confirms them.
A failed ban reloads the whole directory so the view never shows a guess.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "help" || cmd.Name() == "version" {
			return nil
		}

		var err error
		cfg, err = config.Resolve(cfgFile, cmd.Flags().Changed("config"))
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "warden %s\n", version)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "warden.yaml", "config file path")
	rootCmd.PersistentFlags().StringVar(&flags.Provider, "provider", "", "identity provider: gotrue, postgres or memory")
	rootCmd.PersistentFlags().StringVar(&flags.SupabaseURL, "supabase-url", "", "Supabase project URL")
	rootCmd.PersistentFlags().StringVar(&flags.ServiceRoleKey, "service-role-key", "", "Supabase service role key (prefer WARDEN_SERVICE_ROLE_KEY)")
	rootCmd.PersistentFlags().StringVar(&flags.DatabaseURL, "database-url", "", "auth database connection URL (postgres provider)")
	rootCmd.PersistentFlags().StringVar(&flags.PrincipalEmail, "principal", "", "email of the acting administrator")
	rootCmd.PersistentFlags().StringVar(&flags.LogLevel, "log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&flags.LogFormat, "log-format", "", "log format (json or console)")

	rootCmd.AddCommand(usersCmd)
	rootCmd.AddCommand(tuiCmd)
	rootCmd.AddCommand(versionCmd)
}

// openSession builds a logger writing to logOut and a session over the
// configured provider.
func openSession(cmd *cobra.Command, logOut io.Writer) (*session.Session, zerolog.Logger, func(), error) {
	log, err := logger.New(logger.Options{
		Service: "warden",
		Level:   cfg.GetLogLevel(&flags),
		Format:  cfg.GetLogFormat(&flags),
		Output:  logOut,
	})
	if err != nil {
		return nil, log, nil, err
	}

	sess, closeFn, err := factory.NewSession(cmd.Context(), cfg, &flags, log, nil)
	if err != nil {
		return nil, log, nil, err
	}
	return sess, log, closeFn, nil
}

func SetVersion(v string) {
	version = v
}

func Execute() error {
	return rootCmd.Execute()
}

func Root() *cobra.Command {
	return rootCmd
}
