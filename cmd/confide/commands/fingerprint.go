package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"confide/internal/crypto"
)

func fingerprintCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "fingerprint <user>",
		Short: "Print a user's public key fingerprint",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := loadSession(args[0])
			if err != nil {
				return err
			}
			fmt.Printf("Fingerprint: %s\n", crypto.Fingerprint(sess.PublicKey()))
			return nil
		},
	}
}
