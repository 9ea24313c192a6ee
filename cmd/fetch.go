package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/sw33tLie/leaguebundle/internal/utils"
	"github.com/sw33tLie/leaguebundle/pkg/espn"
	"github.com/sw33tLie/leaguebundle/pkg/orchestrator"
)

// fetchCmd represents the fetch command
var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Fetch the league bundle",
	Long: `Fetches every requested view, merges them into one bundle and writes it as
JSON to stdout or --output. The fetch is recorded in the state database.
Views that failed are listed as warnings; the bundle is still written as long
as one view succeeded.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		output, _ := cmd.Flags().GetString("output")
		includeRaw, _ := cmd.Flags().GetBool("raw")
		viewList, _ := cmd.Flags().GetString("views")
		doSync, _ := cmd.Flags().GetBool("sync")

		views, err := espn.ParseViews(viewList)
		if err != nil {
			return err
		}

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

		res, err := a.svc.FetchBundle(ctx, orchestrator.Request{
			LeagueID:   leagueID,
			Season:     season,
			Views:      views,
			IncludeRaw: includeRaw,
		})
		if err != nil {
			return err
		}
		for _, f := range res.Failures {
			utils.Log.Warnf("View %s failed: %s %s", f.View, f.Outcome.Kind, f.Outcome.Message)
		}

		if err := writeBundle(output, res); err != nil {
			return err
		}
		s := res.Bundle.Meta.Summary
		utils.Log.Infof("%s via %s: %d teams, %d rostered players, %d matchups", res.Status, res.Transport, s.TeamCount, s.TotalRosteredPlayers, s.MatchupCount)

		if doSync {
			synced, err := a.svc.Sync(ctx, res.Bundle, configuredRemote())
			if err != nil {
				return fmt.Errorf("sync failed: %w", err)
			}
			utils.Log.Infof("Synced to %s", synced.Target)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(fetchCmd)
	fetchCmd.Flags().StringP("output", "o", "", "Write the bundle to this file instead of stdout")
	fetchCmd.Flags().Bool("raw", false, "Include the unmerged per-view payloads under league.raw")
	fetchCmd.Flags().String("views", "all", "Comma separated views (mTeam,mRoster,mMatchup,mScoreboard,mSettings,mDraftDetail)")
	fetchCmd.Flags().Bool("sync", false, "Sync the bundle to the remote store after fetching")
}

func writeBundle(path string, res *orchestrator.Result) error {
	data, err := json.MarshalIndent(res.Bundle, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	if path == "" {
		_, err = os.Stdout.Write(data)
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing bundle: %w", err)
	}
	utils.Log.Infof("Bundle written to %s", path)
	return nil
}
