package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"confide/internal/app"
	"confide/internal/config"
	"confide/internal/session"
)

var (
	cfgFile    string
	dataDir    string
	passphrase string
	appCtx     *app.App

	peerKey string
	thread  string
)

func Execute() error {
	root := &cobra.Command{
		Use:   "confide",
		Short: "End-to-end encrypted messaging core CLI",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg := &config.Config{}
			if cfgFile != "" {
				c, err := config.LoadFile(cfgFile)
				if err != nil {
					return err
				}
				cfg = c
			}

			if dataDir == "" {
				dir, err := os.UserHomeDir()
				if err != nil {
					return err
				}
				dataDir = filepath.Join(dir, ".confide")
			}
			if err := os.MkdirAll(dataDir, 0o700); err != nil {
				return err
			}
			if cfg.Backup == nil || cfg.Backup.Path == "" {
				cfg.Backup = &config.Backup{Path: filepath.Join(dataDir, "keys.db")}
			}

			a, err := app.New(cfg)
			if err != nil {
				return err
			}
			appCtx = a
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if appCtx == nil {
				return nil
			}
			return appCtx.Shutdown()
		},
	}

	root.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (TOML)")
	root.PersistentFlags().StringVar(&dataDir, "data", "", "data dir (default ~/.confide)")
	root.PersistentFlags().StringVarP(&passphrase, "passphrase", "p", "", "passphrase protecting key backups")

	root.AddCommand(initCmd(), fingerprintCmd(), sendCmd(), recvCmd(),
		rotateCmd(), backupCmd(), restoreCmd(), destroyCmd())
	return root.Execute()
}

// loadSession restores <user>'s keypair from the backup store into a fresh
// in-memory session.
func loadSession(user string) (*session.Session, error) {
	if passphrase == "" {
		return nil, fmt.Errorf("passphrase required (-p)")
	}
	kp, err := appCtx.Backups.Restore(user, passphrase)
	if err != nil {
		return nil, err
	}
	return appCtx.Sessions.RestoreSession(user, kp)
}
