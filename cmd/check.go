package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// checkCmd represents the check command
var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Check that the league can be reached with your session",
	Long:  "Fetches the league settings alone and reports which path (cookie header, in-page agent or injected script) worked.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signalContext()
		defer stop()

		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.listenForAgent(ctx); err != nil {
			return err
		}
		leagueID, season, err := a.leagueAndSeason(ctx)
		if err != nil {
			return err
		}

		conn, err := a.svc.TestConnection(ctx, leagueID, season)
		if err != nil {
			return err
		}
		fmt.Printf("Connection OK: league %s, season %d, via %s\n", leagueID, season, conn.Path)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(checkCmd)
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}
