package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// backup <user>: export the sealed keypair blob for offline storage. The
// blob stays passphrase-protected; exporting does not decrypt it.
func backupCmd() *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "backup <user>",
		Short: "Export a user's sealed keypair to a file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			blob, err := appCtx.Backups.ExportRaw(args[0])
			if err != nil {
				return err
			}
			if err := os.WriteFile(out, blob, 0o600); err != nil {
				return err
			}
			fmt.Printf("Wrote %d bytes to %s\n", len(blob), out)
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "destination file")
	_ = cmd.MarkFlagRequired("out")
	return cmd
}
