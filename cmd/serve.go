package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/sw33tLie/leaguebundle/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the local API and the browser agent endpoint",
	Long: `Serves the JSON API under /api and the browser agent websocket at /agent.
The companion extension connects to /agent; any HTTP client can then drive
fetches through /api.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		origins, _ := cmd.Flags().GetStringSlice("allow-origin")

		ctx, stop := signalContext()
		defer stop()

		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		srv := server.New(a.svc, a.hub, viper.GetString("server.username"), viper.GetString("server.password"))
		srv.AllowedOrigins = origins
		return srv.Start(ctx, viper.GetString("server.listen"))
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("listen", "", "HTTP listen address (default: server.listen)")
	serveCmd.Flags().String("user", "", "Basic auth username for /api (default: server.username)")
	serveCmd.Flags().String("pass", "", "Basic auth password for /api (default: server.password)")
	serveCmd.Flags().StringSlice("allow-origin", nil, "Extra CORS origins allowed on /api")

	viper.BindPFlag("server.listen", serveCmd.Flags().Lookup("listen"))
	viper.BindPFlag("server.username", serveCmd.Flags().Lookup("user"))
	viper.BindPFlag("server.password", serveCmd.Flags().Lookup("pass"))
}
