package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/sw33tLie/leaguebundle/internal/utils"
	"github.com/sw33tLie/leaguebundle/pkg/retry"

	homedir "github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
)

var cfgFile string

const (
	LOGO = `	 _                                _                     _ _
	| | ___  __ _  __ _ _   _  ___  | |__  _   _ _ __   __| | | ___
	| |/ _ \/ _' |/ _' | | | |/ _ \ | '_ \| | | | '_ \ / _' | |/ _ \
	| |  __/ (_| | (_| | |_| |  __/ | |_) | |_| | | | | (_| | |  __/
	|_|\___|\__,_|\__, |\__,_|\___| |_.__/ \__,_|_| |_|\__,_|_|\___|
	              |___/

`
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "leaguebundle",
	Short: "Export your ESPN fantasy football league as one JSON bundle.",
	Long: LOGO + `leaguebundle fetches the views of an ESPN fantasy football league through your
logged-in browser session (or your SWID/espn_s2 cookies), merges them into a
normalized bundle and optionally syncs it to Supabase or Postgres.`,
	SilenceUsage: true,
	CompletionOptions: cobra.CompletionOptions{
		DisableDefaultCmd: true,
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.leaguebundle.yaml)")

	// Global flags
	rootCmd.PersistentFlags().StringP("proxy", "", "", "HTTP Proxy (Useful for debugging. Example: http://127.0.0.1:8080)")
	rootCmd.PersistentFlags().StringP("loglevel", "l", "info", "Set log level. Available: debug, info, warn, error, fatal")
	rootCmd.PersistentFlags().String("league", "", "ESPN league id (default: espn.league_id, then the league open in the browser)")
	rootCmd.PersistentFlags().String("season", "", "Season year (default: current season, switching in July)")
	rootCmd.PersistentFlags().String("dbpath", "", "State database path (default ~/.config/leaguebundle/state.sqlite)")

	viper.BindPFlag("espn.league_id", rootCmd.PersistentFlags().Lookup("league"))
	viper.BindPFlag("espn.season", rootCmd.PersistentFlags().Lookup("season"))
	viper.BindPFlag("store.path", rootCmd.PersistentFlags().Lookup("dbpath"))
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := homedir.Dir()
		if err != nil {
			fmt.Println(err)
			os.Exit(1)
		}
		viper.AddConfigPath(home)
		viper.SetConfigName(".leaguebundle")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("leaguebundle")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	setDefaults()

	// If a config file is found, read it in.
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			// Config file not found; create it with defaults.
			home, _ := homedir.Dir()
			configPath := home + "/.leaguebundle.yaml"
			if err := viper.SafeWriteConfigAs(configPath); err != nil {
				fmt.Printf("Error creating config file: %s", err)
			}
		}
	}

	// Init log library
	levelString, _ := rootCmd.PersistentFlags().GetString("loglevel")
	utils.SetLogLevel(levelString)
}

func setDefaults() {
	viper.SetDefault("espn.league_id", "")
	viper.SetDefault("espn.season", "")
	viper.SetDefault("espn.swid", "")
	viper.SetDefault("espn.s2", "")
	viper.SetDefault("transport.prefer_cookies", false)
	viper.SetDefault("transport.agent_addr", "127.0.0.1:8765")
	viper.SetDefault("transport.agent_wait", "20s")
	viper.SetDefault("retry.base_delay", retry.DefaultBaseDelay.String())
	viper.SetDefault("retry.max_retries", retry.DefaultMaxRetries)
	viper.SetDefault("store.path", "")
	viper.SetDefault("store.redis_url", "")
	viper.SetDefault("remote.url", "")
	viper.SetDefault("remote.key", "")
	viper.SetDefault("remote.table", "")
	viper.SetDefault("server.listen", "127.0.0.1:8765")
	viper.SetDefault("server.username", "")
	viper.SetDefault("server.password", "")
}
