package cmd

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/sw33tLie/leaguebundle/pkg/transport"
)

func withConfig(t *testing.T, values map[string]interface{}) {
	t.Helper()
	viper.Reset()
	setDefaults()
	for k, v := range values {
		viper.Set(k, v)
	}
	t.Cleanup(viper.Reset)
}

func TestStaticCookiesFeedCookieTransport(t *testing.T) {
	withConfig(t, map[string]interface{}{"espn.swid": "{ABC}"})
	if staticCookies() != nil {
		t.Fatal("expected no static cookies with only SWID set")
	}

	viper.Set("espn.s2", "s2value")
	tr := transport.NewCookieHeader(staticCookies(), nil)
	creds, err := tr.Credentials(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if creds.SWID != "{ABC}" || creds.S2 != "s2value" {
		t.Fatalf("unexpected credentials %+v", creds)
	}
}

func TestRetryPolicyFromConfig(t *testing.T) {
	withConfig(t, nil)
	p := retryPolicy()
	if p.BaseDelay != 400*time.Millisecond || p.MaxRetries != 3 {
		t.Fatalf("unexpected default policy %+v", p)
	}

	viper.Set("retry.base_delay", "50ms")
	viper.Set("retry.max_retries", 1)
	p = retryPolicy()
	if p.BaseDelay != 50*time.Millisecond || p.MaxRetries != 1 {
		t.Fatalf("unexpected policy %+v", p)
	}
}

func TestConfiguredRemote(t *testing.T) {
	withConfig(t, nil)
	if r := configuredRemote(); r != nil {
		t.Fatalf("expected nil remote, got %+v", r)
	}
	viper.Set("remote.url", "https://x.supabase.co")
	viper.Set("remote.table", "bundles")
	r := configuredRemote()
	if r == nil || r.URL != "https://x.supabase.co" || r.Table != "bundles" {
		t.Fatalf("unexpected remote %+v", r)
	}
}

func TestHTTPClientProxy(t *testing.T) {
	withConfig(t, nil)
	c := &cobra.Command{}
	c.Flags().String("proxy", "http://127.0.0.1:8080", "")

	client, err := httpClient(c)
	if err != nil {
		t.Fatal(err)
	}
	tr := client.HTTPClient.Transport.(*http.Transport)
	req, _ := http.NewRequest("GET", "https://fantasy.espn.com/", nil)
	proxyURL, err := tr.Proxy(req)
	if err != nil || proxyURL == nil || proxyURL.Host != "127.0.0.1:8080" {
		t.Fatalf("proxy not applied: %v %v", proxyURL, err)
	}

	c = &cobra.Command{}
	c.Flags().String("proxy", "://bad", "")
	if _, err := httpClient(c); err == nil {
		t.Fatal("expected an invalid proxy to be rejected")
	}
}
