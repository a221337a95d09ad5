package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/terminally-online/warden/internal/tui"
)

var tuiLogFile string

var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Open the interactive directory console",
	Long: `Open a full-screen console over the user directory.

Type to search, move with the arrow keys, ctrl+b to ban or unban the
selected user and ctrl+r to reload. Logs are discarded unless --log-file
is set, since they would draw over the screen.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		var logOut io.Writer = io.Discard
		if tuiLogFile != "" {
			f, err := os.OpenFile(tuiLogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
			if err != nil {
				return fmt.Errorf("failed to open log file: %w", err)
			}
			defer func() { _ = f.Close() }()
			logOut = f
		}

		sess, log, closeFn, err := openSession(cmd, logOut)
		if err != nil {
			return err
		}
		defer closeFn()

		log.Info().Msg("console started")
		return tui.Run(cmd.Context(), sess)
	},
}

func init() {
	tuiCmd.Flags().StringVar(&tuiLogFile, "log-file", "", "append logs to this file")
}
