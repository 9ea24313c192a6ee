// Package league holds the normalized bundle produced by a fetch.
package league

import (
	"encoding/json"

	"github.com/sw33tLie/leaguebundle/pkg/espn"
)

// ISOFormat matches the millisecond UTC timestamps used in fetchedAtISO.
const ISOFormat = "2006-01-02T15:04:05.000Z"

// Bundle is immutable once built; callers pass it around by pointer but
// never modify it.
type Bundle struct {
	Meta   Meta   `json:"meta"`
	League League `json:"league"`
}

type Meta struct {
	LeagueID     string      `json:"leagueId"`
	Season       int         `json:"season"`
	FetchedAtISO string      `json:"fetchedAtISO"`
	Views        []espn.View `json:"views"`
	Summary      Summary     `json:"summary"`
}

type Summary struct {
	TeamCount            int `json:"teamCount"`
	TotalRosteredPlayers int `json:"totalRosteredPlayers"`
	MatchupCount         int `json:"matchupCount"`
}

// League carries provider JSON through untouched apart from the roster view.
type League struct {
	Settings json.RawMessage `json:"settings"`
	Teams    json.RawMessage `json:"teams"`
	Rosters  []Roster        `json:"rosters"`
	Matchups json.RawMessage `json:"matchups"`
	Draft    json.RawMessage `json:"draft,omitempty"`
	// Raw holds the unmerged per-view fragments when requested.
	Raw map[espn.View]json.RawMessage `json:"raw,omitempty"`
}

type Roster struct {
	TeamID  int64           `json:"teamId"`
	Entries json.RawMessage `json:"entries"`
}
