package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"confide/internal/crypto"
)

// rotate <user>: generate a fresh keypair, clear the cached shared keys,
// and update the stored backup to match.
func rotateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rotate <user>",
		Short: "Rotate a user's session keys and update the backup",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			user := args[0]
			sess, err := loadSession(user)
			if err != nil {
				return err
			}
			if err := appCtx.Sessions.RotateSessionKeys(sess); err != nil {
				return err
			}
			if err := appCtx.Backups.Backup(user, sess.KeyPair(), passphrase); err != nil {
				return err
			}
			fmt.Printf("Keys rotated.\nFingerprint: %s\n", crypto.Fingerprint(sess.PublicKey()))
			return nil
		},
	}
}
