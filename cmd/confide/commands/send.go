package commands

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"confide/internal/domain"
)

// send <user> <peer> <message>: encrypt a message for <peer> and print the
// transportable record as JSON.
func sendCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "send <user> <peer> <message>",
		Short: "Encrypt a message for a peer and print the JSON record",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			user, peer := args[0], args[1]

			peerPub, err := domain.ParsePublicKey(peerKey)
			if err != nil {
				return err
			}
			sess, err := loadSession(user)
			if err != nil {
				return err
			}

			record, err := appCtx.Messages.SendEncryptedMessage(sess, peer, peerPub, []byte(args[2]), domain.MessageMetadata{
				SenderID:    user,
				RecipientID: peer,
				ThreadID:    thread,
				Timestamp:   appCtx.Clock.Now().UnixMilli(),
				Type:        domain.MessageText,
				Status:      domain.StatusSent,
			})
			if err != nil {
				return err
			}

			out, err := json.MarshalIndent(record, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(out))
			return nil
		},
	}
	cmd.Flags().StringVar(&peerKey, "peer-key", "", "peer X25519 public key (hex)")
	cmd.Flags().StringVar(&thread, "thread", "default", "conversation thread id")
	_ = cmd.MarkFlagRequired("peer-key")
	return cmd
}
