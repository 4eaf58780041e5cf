package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

// destroy <user>: wipe the in-memory session and delete the stored backup.
// The passphrase gates the operation so a stray invocation cannot delete
// keys it could not read.
func destroyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "destroy <user>",
		Short: "Destroy a user's session and delete the backup",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			user := args[0]
			if _, err := loadSession(user); err != nil {
				return err
			}
			appCtx.Sessions.DestroySession(user)
			if err := appCtx.Backups.Delete(user); err != nil {
				return err
			}
			fmt.Println("Destroyed.")
			return nil
		},
	}
}
