package commands

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"confide/internal/domain"
)

// recv <user>: read a message record (JSON, as printed by send) from stdin
// and decrypt it.
func recvCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "recv <user>",
		Short: "Decrypt a JSON message record from stdin",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := io.ReadAll(cmd.InOrStdin())
			if err != nil {
				return err
			}
			var msg domain.SecureMessage
			if err := json.Unmarshal(raw, &msg); err != nil {
				return err
			}

			peerPub, err := domain.ParsePublicKey(peerKey)
			if err != nil {
				return err
			}
			sess, err := loadSession(args[0])
			if err != nil {
				return err
			}

			plaintext, err := appCtx.Messages.ReceiveAndDecrypt(msg, sess, peerPub)
			if err != nil {
				return err
			}
			fmt.Printf("[%s] %s\n", msg.Metadata.SenderID, string(plaintext))
			return nil
		},
	}
	cmd.Flags().StringVar(&peerKey, "peer-key", "", "sender X25519 public key (hex)")
	_ = cmd.MarkFlagRequired("peer-key")
	return cmd
}
