package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"confide/internal/crypto"
)

// restore <user>: import a sealed keypair file produced by backup. The
// passphrase must open the blob before anything is stored.
func restoreCmd() *cobra.Command {
	var in string
	cmd := &cobra.Command{
		Use:   "restore <user>",
		Short: "Import a sealed keypair file into the backup store",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if passphrase == "" {
				return fmt.Errorf("passphrase required (-p)")
			}
			blob, err := os.ReadFile(in)
			if err != nil {
				return err
			}
			if err := appCtx.Backups.ImportRaw(args[0], blob, passphrase); err != nil {
				return err
			}
			sess, err := loadSession(args[0])
			if err != nil {
				return err
			}
			fmt.Printf("Restored.\nFingerprint: %s\n", crypto.Fingerprint(sess.PublicKey()))
			return nil
		},
	}
	cmd.Flags().StringVarP(&in, "in", "i", "", "sealed keypair file")
	_ = cmd.MarkFlagRequired("in")
	return cmd
}
