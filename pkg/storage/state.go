package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/sw33tLie/leaguebundle/pkg/league"
)

// State reads and writes the persisted record through a KV. It holds no
// copy of its own; every call goes to the store.
type State struct {
	KV KV
}

func (s State) Load(ctx context.Context) (*Snapshot, error) {
	var snap Snapshot
	var err error

	get := func(key string) string {
		if err != nil {
			return ""
		}
		v, gerr := s.KV.Get(ctx, key)
		if gerr != nil && !errors.Is(gerr, ErrNotFound) {
			err = fmt.Errorf("reading %s: %w", key, gerr)
		}
		return v
	}

	snap.LastFetch.LeagueID = get(KeyLastLeagueID)
	season := get(KeyLastSeason)
	summary := get(KeyLastSummary)
	snap.LastFetch.FetchedAt = get(KeyLastFetched)
	snap.Remote.URL = get(KeyRemoteURL)
	snap.Remote.Key = get(KeyRemoteKey)
	snap.Remote.Table = get(KeyRemoteTable)
	if err != nil {
		return nil, err
	}

	if season != "" {
		if snap.LastFetch.Season, err = strconv.Atoi(season); err != nil {
			return nil, fmt.Errorf("stored season %q: %w", season, err)
		}
	}
	if summary != "" {
		if err := json.Unmarshal([]byte(summary), &snap.LastFetch.Summary); err != nil {
			return nil, fmt.Errorf("stored summary: %w", err)
		}
	}
	return &snap, nil
}

// RecordFetch stores the league, season and summary of a successful fetch.
func (s State) RecordFetch(ctx context.Context, b *league.Bundle) error {
	summary, err := json.Marshal(b.Meta.Summary)
	if err != nil {
		return err
	}
	return s.setAll(ctx, map[string]string{
		KeyLastLeagueID: b.Meta.LeagueID,
		KeyLastSeason:   strconv.Itoa(b.Meta.Season),
		KeyLastSummary:  string(summary),
		KeyLastFetched:  b.Meta.FetchedAtISO,
	})
}

func (s State) SaveRemote(ctx context.Context, r Remote) error {
	return s.setAll(ctx, map[string]string{
		KeyRemoteURL:   r.URL,
		KeyRemoteKey:   r.Key,
		KeyRemoteTable: r.Table,
	})
}

func (s State) setAll(ctx context.Context, values map[string]string) error {
	for k, v := range values {
		if err := s.KV.Set(ctx, k, v); err != nil {
			return fmt.Errorf("writing %s: %w", k, err)
		}
	}
	return nil
}
