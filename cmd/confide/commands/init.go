package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"confide/internal/crypto"
)

func initCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init <user>",
		Short: "Create a user identity and store a passphrase-protected backup",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if passphrase == "" {
				return fmt.Errorf("passphrase required (-p)")
			}
			user := args[0]
			sess, err := appCtx.Sessions.CreateSession(user)
			if err != nil {
				return err
			}
			if err := appCtx.Backups.Backup(user, sess.KeyPair(), passphrase); err != nil {
				return err
			}
			fmt.Printf("Identity created.\nFingerprint: %s\n", crypto.Fingerprint(sess.PublicKey()))
			return nil
		},
	}
}
