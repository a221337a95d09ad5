package cli

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"
)

var (
	listQuery string
	listJSON  bool
)

var usersCmd = &cobra.Command{
	Use:   "users",
	Short: "List, ban and unban directory users",
}

var usersListCmd = &cobra.Command{
	Use:   "list",
	Short: "List directory users",
	Long:  `Load the directory and print every user matching --query (case-insensitive, email or name).`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		sess, _, closeFn, err := openSession(cmd, cmd.ErrOrStderr())
		if err != nil {
			return err
		}
		defer closeFn()

		if err := sess.Mount(cmd.Context()); err != nil {
			return err
		}
		sess.SetSearchQuery(listQuery)
		users := sess.State().Filtered

		out := cmd.OutOrStdout()
		if listJSON {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(users)
		}

		if len(users) == 0 {
			fmt.Fprintln(out, "No users found.")
			return nil
		}

		t := table.New().Headers("ID", "EMAIL", "NAME", "STATUS", "LAST LOGIN")
		for _, u := range users {
			lastLogin := "never"
			if u.LastLogin != nil {
				lastLogin = u.LastLogin.Local().Format(time.DateTime)
			}
			t.Row(u.ID, u.Email, u.FullName, string(u.Status), lastLogin)
		}
		fmt.Fprintln(out, t.Render())
		fmt.Fprintf(out, "%d user(s)\n", len(users))
		return nil
	},
}

var usersBanCmd = &cobra.Command{
	Use:   "ban <user-id>",
	Short: "Ban a user",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return setBan(cmd, args[0], true)
	},
}

var usersUnbanCmd = &cobra.Command{
	Use:   "unban <user-id>",
	Short: "Lift a user's ban",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return setBan(cmd, args[0], false)
	},
}

func setBan(cmd *cobra.Command, id string, banned bool) error {
	sess, _, closeFn, err := openSession(cmd, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer closeFn()

	if err := sess.Mount(cmd.Context()); err != nil {
		return err
	}

	outcome, err := sess.ToggleBan(cmd.Context(), id, banned)
	if err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), outcome.Message)
	if !outcome.Simulated && !outcome.Applied {
		fmt.Fprintf(cmd.OutOrStdout(), "note: %s was not in the loaded directory\n", id)
	}
	return nil
}

func init() {
	usersListCmd.Flags().StringVarP(&listQuery, "query", "q", "", "filter by email or name")
	usersListCmd.Flags().BoolVar(&listJSON, "json", false, "print JSON instead of a table")

	usersCmd.AddCommand(usersListCmd)
	usersCmd.AddCommand(usersBanCmd)
	usersCmd.AddCommand(usersUnbanCmd)
}
