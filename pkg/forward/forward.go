// Package forward uploads a finished bundle to a remote store. Each call is a
// single attempt; success or failure is passed straight back to the caller.
package forward

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/sw33tLie/leaguebundle/pkg/league"
	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("github.com/sw33tLie/leaguebundle/pkg/forward")

var ErrMissingConfig = errors.New("missing remote store configuration")

// Config names the remote store: an endpoint, a credential and a table.
type Config struct {
	URL   string
	Key   string
	Table string
}

// Row is the record written for each synced bundle.
type Row struct {
	LeagueID  string         `json:"league_id"`
	Season    int            `json:"season"`
	FetchedAt string         `json:"fetched_at"`
	Payload   *league.Bundle `json:"payload"`
}

func RowOf(b *league.Bundle) Row {
	return Row{LeagueID: b.Meta.LeagueID, Season: b.Meta.Season, FetchedAt: b.Meta.FetchedAtISO, Payload: b}
}

// Result is what the remote store returned, when it returns anything.
type Result struct {
	Target string          `json:"target"`
	Data   json.RawMessage `json:"data,omitempty"`
}

type Forwarder interface {
	Forward(ctx context.Context, b *league.Bundle) (*Result, error)
}

// New picks the forwarder for the endpoint: postgres:// URLs are written to
// directly, anything else is treated as a PostgREST (Supabase) endpoint.
func New(cfg Config) (Forwarder, error) {
	cfg.URL = strings.TrimSpace(cfg.URL)
	cfg.Table = strings.TrimSpace(cfg.Table)
	if cfg.URL == "" || cfg.Table == "" {
		return nil, missing(cfg)
	}
	if isPostgresURL(cfg.URL) {
		return NewPostgres(cfg)
	}
	if cfg.Key == "" {
		return nil, missing(cfg)
	}
	return NewSupabase(cfg), nil
}

func missing(cfg Config) error {
	var fields []string
	if cfg.URL == "" {
		fields = append(fields, "url")
	}
	if cfg.Key == "" {
		fields = append(fields, "key")
	}
	if cfg.Table == "" {
		fields = append(fields, "table")
	}
	return fmt.Errorf("%w: %s", ErrMissingConfig, strings.Join(fields, ", "))
}

func isPostgresURL(u string) bool {
	lower := strings.ToLower(u)
	return strings.HasPrefix(lower, "postgres://") || strings.HasPrefix(lower, "postgresql://")
}
