package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/sw33tLie/leaguebundle/pkg/espn"
)

// urlsCmd represents the urls command
var urlsCmd = &cobra.Command{
	Use:   "urls",
	Short: "Print the API URLs a fetch would request",
	RunE: func(cmd *cobra.Command, args []string) error {
		viewList, _ := cmd.Flags().GetString("views")
		batch, _ := cmd.Flags().GetBool("batch")

		leagueID := viper.GetString("espn.league_id")
		if leagueID == "" {
			return fmt.Errorf("no league id: pass --league or set espn.league_id")
		}
		season, err := espn.ParseSeason(viper.GetString("espn.season"), time.Now())
		if err != nil {
			return err
		}
		views, err := espn.ParseViews(viewList)
		if err != nil {
			return err
		}

		var b espn.Builder
		if batch {
			fmt.Println(b.BatchURL(leagueID, season, views))
			return nil
		}
		for _, r := range b.ViewRequests(leagueID, season, views) {
			fmt.Printf("%s\t%s\n", r.View, r.URL)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(urlsCmd)
	urlsCmd.Flags().String("views", "all", "Comma separated views")
	urlsCmd.Flags().Bool("batch", false, "Print a single URL carrying every view")
}
