package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/sw33tLie/leaguebundle/internal/utils"
	"github.com/sw33tLie/leaguebundle/pkg/league"
)

// syncCmd represents the sync command
var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Upload a bundle to the remote store",
	Long: `Uploads the most recently fetched bundle (or --file) to the remote store.
The store comes from remote.url/remote.key/remote.table, or from what was saved
with "state remote". A postgres:// URL inserts directly; anything else is
treated as a Supabase project URL.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		file, _ := cmd.Flags().GetString("file")

		var b *league.Bundle
		if file != "" {
			data, err := os.ReadFile(file)
			if err != nil {
				return err
			}
			b = &league.Bundle{}
			if err := json.Unmarshal(data, b); err != nil {
				return fmt.Errorf("parsing %s: %w", file, err)
			}
		}

		ctx, stop := signalContext()
		defer stop()

		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		res, err := a.svc.Sync(ctx, b, configuredRemote())
		if err != nil {
			return err
		}
		utils.Log.Infof("Synced to %s", res.Target)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(syncCmd)
	syncCmd.Flags().StringP("file", "f", "", "Bundle file written by fetch (default: latest stored bundle)")
	syncCmd.Flags().String("remote-url", "", "Remote store URL (Supabase project or postgres:// DSN)")
	syncCmd.Flags().String("remote-key", "", "Remote store credential")
	syncCmd.Flags().String("remote-table", "", "Remote store table")

	viper.BindPFlag("remote.url", syncCmd.Flags().Lookup("remote-url"))
	viper.BindPFlag("remote.key", syncCmd.Flags().Lookup("remote-key"))
	viper.BindPFlag("remote.table", syncCmd.Flags().Lookup("remote-table"))
}
