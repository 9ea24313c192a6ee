package storage

import (
	"time"

	"github.com/sw33tLie/leaguebundle/pkg/league"
)

// BundleRecord describes one stored bundle without its payload.
type BundleRecord struct {
	ID        int64          `json:"id"`
	LeagueID  string         `json:"leagueId"`
	Season    int            `json:"season"`
	FetchedAt string         `json:"fetchedAt"`
	Status    string         `json:"status"`
	Summary   league.Summary `json:"summary"`
	CreatedAt time.Time      `json:"createdAt"`
}

// ListOptions controls selection when listing bundles.
type ListOptions struct {
	LeagueID string
	Season   int
	Limit    int
}

// LastFetch is the summary of the most recent successful fetch.
type LastFetch struct {
	LeagueID  string         `json:"leagueId"`
	Season    int            `json:"season"`
	Summary   league.Summary `json:"summary"`
	FetchedAt string         `json:"fetchedAt"`
}

// Remote holds the coordinates of the remote store bundles are synced to.
type Remote struct {
	URL   string `json:"url"`
	Key   string `json:"key"`
	Table string `json:"table"`
}

// Snapshot is everything State persists.
type Snapshot struct {
	LastFetch LastFetch `json:"lastFetch"`
	Remote    Remote    `json:"remote"`
}
