package cmd

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/sw33tLie/leaguebundle/internal/utils"
	"github.com/sw33tLie/leaguebundle/pkg/bridge"
	"github.com/sw33tLie/leaguebundle/pkg/browser"
	"github.com/sw33tLie/leaguebundle/pkg/espn"
	"github.com/sw33tLie/leaguebundle/pkg/orchestrator"
	"github.com/sw33tLie/leaguebundle/pkg/retry"
	"github.com/sw33tLie/leaguebundle/pkg/service"
	"github.com/sw33tLie/leaguebundle/pkg/storage"
	"github.com/sw33tLie/leaguebundle/pkg/transport"
)

// app holds everything a command needs. Close releases it.
type app struct {
	hub     *bridge.Hub
	db      *storage.DB
	svc     *service.Service
	cookies bool // static cookies configured
	closers []func() error
}

func newApp(cmd *cobra.Command) (*app, error) {
	a := &app{hub: bridge.NewHub()}

	dbPath, err := utils.GetAbsDBPath(viper.GetString("store.path"))
	if err != nil {
		return nil, fmt.Errorf("resolving state database path: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("creating state directory: %w", err)
	}
	a.db, err = storage.Open(dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening state database %s: %w", dbPath, err)
	}
	a.closers = append(a.closers, a.db.Close)

	var kv storage.KV = a.db
	if redisURL := viper.GetString("store.redis_url"); redisURL != "" {
		rkv, err := storage.NewRedisKV(redisURL)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.closers = append(a.closers, rkv.Close)
		kv = rkv
		utils.Log.Debug("Keeping state in redis")
	}

	lock, err := utils.NewStateLock(dbPath)
	if err != nil {
		a.Close()
		return nil, err
	}

	client, err := httpClient(cmd)
	if err != nil {
		a.Close()
		return nil, err
	}

	var cookies browser.CookieStore = a.hub
	if static := staticCookies(); static != nil {
		cookies = static
		a.cookies = true
	}

	orch, err := orchestrator.New(orchestrator.Config{
		Tabs:       a.hub,
		Messenger:  a.hub,
		Executor:   a.hub,
		Cookies:    cookies,
		HTTPClient: client,
		Log:        utils.Log,
		Options: orchestrator.Options{
			PreferCookies: viper.GetBool("transport.prefer_cookies") || a.cookies,
			Retry:         retryPolicy(),
		},
	})
	if err != nil {
		a.Close()
		return nil, err
	}

	a.svc = service.New(service.Config{
		Fetcher: orch,
		State:   storage.State{KV: kv},
		History: a.db,
		Lock:    lock,
		Log:     utils.Log,
	})
	return a, nil
}

func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

// listenForAgent serves the bridge endpoint on transport.agent_addr and waits
// up to transport.agent_wait for the browser agent. Not finding one is not an
// error.
func (a *app) listenForAgent(ctx context.Context) error {
	addr := viper.GetString("transport.agent_addr")
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listening for the browser agent on %s: %w", addr, err)
	}

	mux := http.NewServeMux()
	mux.Handle("/agent", a.hub)
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	go srv.Serve(ln)
	a.closers = append(a.closers, srv.Close)

	// Configured cookies go first; the agent is only needed if they are rejected.
	if a.cookies {
		return nil
	}

	wait := viper.GetDuration("transport.agent_wait")
	utils.Log.Infof("Waiting up to %s for the browser agent on ws://%s/agent", wait, addr)
	waitCtx, cancel := context.WithTimeout(ctx, wait)
	defer cancel()
	if err := a.hub.WaitForAgent(waitCtx); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		utils.Log.Warn("No browser agent connected, continuing without one")
		return nil
	}
	utils.Log.Info("Browser agent connected")
	return nil
}

// leagueAndSeason resolves the league from the config, falling back to the
// league page open in the browser.
func (a *app) leagueAndSeason(ctx context.Context) (string, int, error) {
	season, err := espn.ParseSeason(viper.GetString("espn.season"), time.Now())
	if err != nil {
		return "", 0, err
	}

	leagueID := viper.GetString("espn.league_id")
	if leagueID != "" {
		return leagueID, season, nil
	}
	if a.hub.Connected() {
		if tab, err := a.hub.ActiveTab(ctx); err == nil && tab != nil {
			if id, ok := espn.LeagueIDFromURL(tab.URL); ok {
				utils.Log.Infof("Using league %s from the open tab", id)
				return id, season, nil
			}
		}
	}
	return "", 0, errors.New("no league id: pass --league, set espn.league_id, or open your league page")
}

func retryPolicy() retry.Policy {
	return retry.Policy{
		BaseDelay:  viper.GetDuration("retry.base_delay"),
		MaxRetries: viper.GetInt("retry.max_retries"),
	}
}

// httpClient builds the cookie transport's client, routed through --proxy when set.
func httpClient(cmd *cobra.Command) (*retryablehttp.Client, error) {
	client := retryPolicy().HTTPClient()

	proxy, _ := cmd.Flags().GetString("proxy")
	if proxy == "" {
		return client, nil
	}
	proxyURL, err := url.Parse(proxy)
	if err != nil {
		return nil, fmt.Errorf("invalid proxy %q: %w", proxy, err)
	}
	tr, ok := client.HTTPClient.Transport.(*http.Transport)
	if !ok {
		return nil, errors.New("unexpected HTTP transport type")
	}
	tr.Proxy = http.ProxyURL(proxyURL)
	return client, nil
}

// staticCookies returns the session cookies copied into the config, if both are set.
func staticCookies() browser.StaticCookies {
	swid, s2 := viper.GetString("espn.swid"), viper.GetString("espn.s2")
	if swid == "" || s2 == "" {
		return nil
	}
	return browser.StaticCookies{
		{Name: transport.CookieSWID, Value: swid, Domain: ".espn.com"},
		{Name: transport.CookieS2, Value: s2, Domain: ".espn.com"},
	}
}

// configuredRemote returns the remote store from the config file or flags, or
// nil to use the one saved in the state database.
func configuredRemote() *storage.Remote {
	r := storage.Remote{
		URL:   viper.GetString("remote.url"),
		Key:   viper.GetString("remote.key"),
		Table: viper.GetString("remote.table"),
	}
	if r.URL == "" {
		return nil
	}
	return &r
}
