package cmd

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/sw33tLie/leaguebundle/pkg/storage"
)

// stateCmd represents the state command
var stateCmd = &cobra.Command{
	Use:   "state",
	Short: "Show the last fetch and the remote store settings",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		snap, err := a.svc.State(context.Background())
		if err != nil {
			return err
		}
		key := snap.Remote.Key
		if key != "" {
			key = "********"
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintf(w, "League\t%s\n", snap.LastFetch.LeagueID)
		fmt.Fprintf(w, "Season\t%d\n", snap.LastFetch.Season)
		fmt.Fprintf(w, "Fetched at\t%s\n", snap.LastFetch.FetchedAt)
		fmt.Fprintf(w, "Teams\t%d\n", snap.LastFetch.Summary.TeamCount)
		fmt.Fprintf(w, "Rostered players\t%d\n", snap.LastFetch.Summary.TotalRosteredPlayers)
		fmt.Fprintf(w, "Matchups\t%d\n", snap.LastFetch.Summary.MatchupCount)
		fmt.Fprintf(w, "Remote URL\t%s\n", snap.Remote.URL)
		fmt.Fprintf(w, "Remote key\t%s\n", key)
		fmt.Fprintf(w, "Remote table\t%s\n", snap.Remote.Table)
		return w.Flush()
	},
}

// stateRemoteCmd represents the state remote command
var stateRemoteCmd = &cobra.Command{
	Use:   "remote",
	Short: "Save the remote store coordinates used by sync",
	RunE: func(cmd *cobra.Command, args []string) error {
		remoteURL, _ := cmd.Flags().GetString("url")
		key, _ := cmd.Flags().GetString("key")
		table, _ := cmd.Flags().GetString("table")

		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.svc.SaveRemote(context.Background(), storage.Remote{URL: remoteURL, Key: key, Table: table}); err != nil {
			return err
		}
		fmt.Println("Remote store saved")
		return nil
	},
}

// stateHistoryCmd represents the state history command
var stateHistoryCmd = &cobra.Command{
	Use:   "history",
	Short: "List stored bundles, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		leagueID, _ := cmd.Flags().GetString("league")

		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		records, err := a.db.ListBundles(context.Background(), storage.ListOptions{LeagueID: leagueID, Limit: limit})
		if err != nil {
			return err
		}
		if len(records) == 0 {
			fmt.Println("No bundles stored yet")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tLEAGUE\tSEASON\tFETCHED AT\tSTATUS\tTEAMS\tPLAYERS\tMATCHUPS")
		for _, r := range records {
			fmt.Fprintf(w, "%d\t%s\t%d\t%s\t%s\t%d\t%d\t%d\n", r.ID, r.LeagueID, r.Season, r.FetchedAt, r.Status,
				r.Summary.TeamCount, r.Summary.TotalRosteredPlayers, r.Summary.MatchupCount)
		}
		return w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(stateCmd)
	stateCmd.AddCommand(stateRemoteCmd)
	stateCmd.AddCommand(stateHistoryCmd)

	stateRemoteCmd.Flags().String("url", "", "Supabase project URL or postgres:// DSN")
	stateRemoteCmd.Flags().String("key", "", "API key or database password")
	stateRemoteCmd.Flags().String("table", "", "Destination table")
	stateRemoteCmd.MarkFlagRequired("url")
	stateRemoteCmd.MarkFlagRequired("table")

	stateHistoryCmd.Flags().Int("limit", 20, "Maximum number of bundles to list")
}
