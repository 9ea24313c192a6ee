package transport

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"strings"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/sw33tLie/leaguebundle/internal/utils"
	"github.com/sw33tLie/leaguebundle/pkg/browser"
	"github.com/sw33tLie/leaguebundle/pkg/espn"
	"github.com/sw33tLie/leaguebundle/pkg/fetch"
	"github.com/sw33tLie/leaguebundle/pkg/whttp"
	"github.com/weppos/publicsuffix-go/publicsuffix"
)

const (
	CookieSWID = "SWID"
	CookieS2   = "espn_s2"
)

// Credentials are the two opaque session values the provider accepts as cookies.
type Credentials struct {
	SWID string
	S2   string
}

func (c Credentials) header() string {
	return CookieSWID + "=" + c.SWID + "; " + CookieS2 + "=" + c.S2
}

// CookieHeader sends requests itself, attaching the session cookies read from
// the cookie store as an explicit header. No open tab is needed.
type CookieHeader struct {
	Cookies browser.CookieStore
	Client  *retryablehttp.Client
	Origin  string
}

func NewCookieHeader(cookies browser.CookieStore, client *retryablehttp.Client) *CookieHeader {
	return &CookieHeader{Cookies: cookies, Client: client, Origin: espn.Origin}
}

func (t *CookieHeader) Name() string  { return NameCookieHeader }
func (t *CookieHeader) Batched() bool { return false }

// Credentials reads both session cookies. A missing value is reported as a
// MISSING_CREDENTIALS error so "not logged in" is distinguishable from
// "network unreachable".
func (t *CookieHeader) Credentials(ctx context.Context) (Credentials, error) {
	if t.Cookies == nil {
		return Credentials{}, &fetch.Error{Code: fetch.CodeMissingCredentials, Hint: fetch.HintMissingCredentials, Message: "no cookie store configured"}
	}
	parent, err := parentDomain(originOrDefault(t.Origin))
	if err != nil {
		return Credentials{}, err
	}
	cookies, err := t.Cookies.Cookies(ctx, parent)
	if err != nil {
		return Credentials{}, fmt.Errorf("reading cookies for %s: %w", parent, err)
	}

	swid, okSWID := pickCookie(cookies, CookieSWID, parent)
	s2, okS2 := pickCookie(cookies, CookieS2, parent)
	if !okSWID || !okS2 {
		var missing []string
		if !okSWID {
			missing = append(missing, CookieSWID)
		}
		if !okS2 {
			missing = append(missing, CookieS2)
		}
		return Credentials{}, &fetch.Error{
			Code:    fetch.CodeMissingCredentials,
			Hint:    fetch.HintMissingCredentials,
			Message: "missing cookie(s): " + strings.Join(missing, ", "),
		}
	}
	return Credentials{SWID: swid.Value, S2: s2.Value}, nil
}

func (t *CookieHeader) FetchMany(ctx context.Context, urls []string) []fetch.Outcome {
	out := make([]fetch.Outcome, len(urls))
	origin := originOrDefault(t.Origin)

	var creds Credentials
	var credErr error
	credsRead := false

	for i, u := range urls {
		if !espn.SameOrigin(u, origin) {
			out[i] = crossOrigin(u)
			continue
		}
		if !credsRead {
			creds, credErr = t.Credentials(ctx)
			credsRead = true
		}
		if credErr != nil {
			out[i] = fetch.Failure(u, fetch.KindMissingCredentials, credErr.Error())
			continue
		}
		out[i] = t.fetchOne(ctx, u, creds)
	}
	return out
}

func (t *CookieHeader) fetchOne(ctx context.Context, u string, creds Credentials) fetch.Outcome {
	res, err := whttp.SendHTTPRequest(ctx, &whttp.WHTTPReq{
		Method: "GET",
		URL:    u,
		Headers: []whttp.WHTTPHeader{
			{Name: "Accept", Value: "application/json"},
			{Name: "Cookie", Value: creds.header()},
		},
	}, t.Client)
	if err != nil {
		utils.Log.Debugf("Cookie-header request to %s failed: %v", u, err)
		return fetch.Failure(u, fetch.KindNetworkError, err.Error())
	}
	return decodeResponse(u, res.StatusCode, res.StatusText, res.Body, t.Name())
}

// parentDomain returns the registrable domain of origin, e.g. espn.com for fantasy.espn.com.
func parentDomain(origin string) (string, error) {
	u, err := url.Parse(origin)
	if err != nil {
		return "", fmt.Errorf("invalid origin %q: %w", origin, err)
	}
	host := strings.ToLower(u.Hostname())
	if net.ParseIP(host) != nil || !strings.Contains(host, ".") {
		return host, nil
	}
	domain, err := publicsuffix.Domain(host)
	if err != nil {
		return host, nil
	}
	return domain, nil
}

// pickCookie prefers a cookie set on the parent domain over host-only duplicates
// that subdomains may have set under the same name.
func pickCookie(cookies []browser.Cookie, name, parent string) (browser.Cookie, bool) {
	var fallback *browser.Cookie
	for i := range cookies {
		c := cookies[i]
		if c.Name != name || c.Value == "" {
			continue
		}
		if !c.HostOnly && strings.EqualFold(strings.TrimPrefix(c.Domain, "."), parent) {
			return c, true
		}
		if fallback == nil {
			fallback = &cookies[i]
		}
	}
	if fallback == nil {
		return browser.Cookie{}, false
	}
	return *fallback, true
}
