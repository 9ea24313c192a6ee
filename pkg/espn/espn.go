package espn

import (
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"
)

const (
	// Origin is the only origin any transport is allowed to contact.
	Origin = "https://fantasy.espn.com"

	fantasyPagePrefix = Origin + "/"
	leaguePathFormat  = "/apis/v3/games/ffl/seasons/%d/segments/0/leagues/%s"
)

type View string

const (
	ViewTeam        View = "mTeam"
	ViewRoster      View = "mRoster"
	ViewMatchup     View = "mMatchup"
	ViewScoreboard  View = "mScoreboard"
	ViewSettings    View = "mSettings"
	ViewDraftDetail View = "mDraftDetail"
)

// AllViews is the default request set, in the order the provider documents them.
var AllViews = []View{ViewTeam, ViewRoster, ViewMatchup, ViewScoreboard, ViewSettings, ViewDraftDetail}

func ParseView(s string) (View, error) {
	for _, v := range AllViews {
		if strings.EqualFold(string(v), strings.TrimSpace(s)) {
			return v, nil
		}
	}
	return "", fmt.Errorf("unknown view %q", s)
}

// ParseViews parses a comma separated view list. An empty string or "all" selects every view.
func ParseViews(s string) ([]View, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "all") {
		return append([]View(nil), AllViews...), nil
	}
	var views []View
	seen := make(map[View]bool)
	for _, part := range strings.Split(s, ",") {
		v, err := ParseView(part)
		if err != nil {
			return nil, err
		}
		if !seen[v] {
			seen[v] = true
			views = append(views, v)
		}
	}
	return views, nil
}

// ViewRequest pairs a view with the URL that fetches it.
type ViewRequest struct {
	View View
	URL  string
}

// Builder constructs league API URLs. The zero value targets Origin.
type Builder struct {
	Origin string
}

func (b Builder) origin() string {
	if b.Origin == "" {
		return Origin
	}
	return strings.TrimRight(b.Origin, "/")
}

func (b Builder) leagueURL(leagueID string, season int) string {
	return b.origin() + fmt.Sprintf(leaguePathFormat, season, url.PathEscape(leagueID))
}

// ViewRequests returns one request per view, preserving order.
func (b Builder) ViewRequests(leagueID string, season int, views []View) []ViewRequest {
	base := b.leagueURL(leagueID, season)
	out := make([]ViewRequest, 0, len(views))
	for _, v := range views {
		out = append(out, ViewRequest{View: v, URL: base + "?view=" + url.QueryEscape(string(v))})
	}
	return out
}

// BatchURL returns a single URL carrying one view= parameter per view.
func (b Builder) BatchURL(leagueID string, season int, views []View) string {
	q := url.Values{}
	for _, v := range views {
		q.Add("view", string(v))
	}
	return b.leagueURL(leagueID, season) + "?" + q.Encode()
}

// SameOrigin reports whether rawURL has exactly the given origin.
func SameOrigin(rawURL, origin string) bool {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return false
	}
	o, err := url.Parse(origin)
	if err != nil || o.Host == "" {
		return false
	}
	return strings.EqualFold(u.Scheme, o.Scheme) &&
		strings.EqualFold(u.Hostname(), o.Hostname()) &&
		effectivePort(u) == effectivePort(o)
}

func effectivePort(u *url.URL) string {
	if p := u.Port(); p != "" {
		return p
	}
	switch strings.ToLower(u.Scheme) {
	case "https":
		return "443"
	case "http":
		return "80"
	}
	return ""
}

// IsFantasyPage reports whether a tab URL belongs to the fantasy subdomain.
func IsFantasyPage(tabURL string) bool {
	return strings.HasPrefix(strings.ToLower(tabURL), fantasyPagePrefix)
}

var leagueIDPattern = regexp.MustCompile(`[?&#]leagueId=(\d+)`)

// LeagueIDFromURL extracts the numeric league id from a league page URL.
func LeagueIDFromURL(pageURL string) (string, bool) {
	m := leagueIDPattern.FindStringSubmatch(pageURL)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// DefaultSeason switches to the new season in July.
func DefaultSeason(now time.Time) int {
	if now.Month() >= time.July {
		return now.Year()
	}
	return now.Year() - 1
}

// ParseSeason accepts an integer-like season. Empty input yields the default season.
func ParseSeason(s string, now time.Time) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" || s == "0" {
		return DefaultSeason(now), nil
	}
	season, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid season %q: %w", s, err)
	}
	return season, nil
}
