// Package normalize maps the merged provider object onto a league.Bundle.
package normalize

import (
	"encoding/json"
	"time"

	"github.com/sw33tLie/leaguebundle/pkg/espn"
	"github.com/sw33tLie/leaguebundle/pkg/league"
	"github.com/tidwall/gjson"
)

var emptyArray = json.RawMessage("[]")

type Input struct {
	// Combined is the merged provider object as JSON.
	Combined []byte
	// Fragments are the unmerged responses of the succeeded views.
	Fragments  map[espn.View]json.RawMessage
	LeagueID   string
	Season     int
	Views      []espn.View
	IncludeRaw bool
	Now        time.Time
}

// Bundle is a pure function of its input: the same input at the same Now
// yields an identical bundle.
func Bundle(in Input) *league.Bundle {
	doc := gjson.ParseBytes(in.Combined)

	settings := doc.Get("settings")
	teams := firstArray(doc.Get("teams"), settings.Get("teams"))
	rosters := rostersOf(teams)
	matchups := resolveMatchups(doc, in.Fragments[espn.ViewScoreboard])

	b := &league.Bundle{
		Meta: league.Meta{
			LeagueID:     in.LeagueID,
			Season:       in.Season,
			FetchedAtISO: in.Now.UTC().Format(league.ISOFormat),
			Views:        append([]espn.View{}, in.Views...),
		},
		League: league.League{
			Teams:    rawOrEmpty(teams),
			Rosters:  rosters,
			Matchups: rawOrEmpty(matchups),
		},
	}
	if settings.Exists() {
		b.League.Settings = json.RawMessage(settings.Raw)
	}
	if draft := doc.Get("draftDetail"); draft.Exists() && draft.Type != gjson.Null {
		b.League.Draft = json.RawMessage(draft.Raw)
	}

	b.Meta.Summary = league.Summary{
		TeamCount:            len(teams.Array()),
		TotalRosteredPlayers: countEntries(rosters),
		MatchupCount:         len(matchups.Array()),
	}

	if in.IncludeRaw {
		b.League.Raw = make(map[espn.View]json.RawMessage, len(in.Fragments))
		for v, f := range in.Fragments {
			b.League.Raw[v] = f
		}
	}
	return b
}

// resolveMatchups prefers an explicit schedule, then the scoreboard's matchup
// list, then the scoreboard's schedule.
func resolveMatchups(doc gjson.Result, scoreboard json.RawMessage) gjson.Result {
	sb := gjson.ParseBytes(scoreboard)
	return firstArray(doc.Get("schedule"), sb.Get("matchups"), sb.Get("schedule"), doc.Get("matchups"))
}

func rostersOf(teams gjson.Result) []league.Roster {
	out := []league.Roster{}
	for _, t := range teams.Array() {
		entries := t.Get("roster.entries")
		r := league.Roster{TeamID: t.Get("id").Int(), Entries: emptyArray}
		if entries.IsArray() {
			r.Entries = json.RawMessage(entries.Raw)
		}
		out = append(out, r)
	}
	return out
}

func countEntries(rosters []league.Roster) int {
	n := 0
	for _, r := range rosters {
		n += len(gjson.ParseBytes(r.Entries).Array())
	}
	return n
}

func firstArray(candidates ...gjson.Result) gjson.Result {
	for _, c := range candidates {
		if c.IsArray() {
			return c
		}
	}
	return gjson.Result{}
}

func rawOrEmpty(r gjson.Result) json.RawMessage {
	if !r.IsArray() {
		return emptyArray
	}
	return json.RawMessage(r.Raw)
}
