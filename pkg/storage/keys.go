package storage

import (
	"context"
	"errors"
)

var ErrNotFound = errors.New("not found")

// KV is the small key/value record the fetch pipeline persists between runs.
// Get returns ErrNotFound for unknown keys.
type KV interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
}

const (
	KeyLastLeagueID = "last.league_id"
	KeyLastSeason   = "last.season"
	KeyLastSummary  = "last.summary"
	KeyLastFetched  = "last.fetched_at"
	KeyRemoteURL    = "remote.url"
	KeyRemoteKey    = "remote.key"
	KeyRemoteTable  = "remote.table"
)
