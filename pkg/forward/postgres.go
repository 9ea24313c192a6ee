package forward

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/lib/pq"
	"github.com/sw33tLie/leaguebundle/pkg/league"
)

type sqlOpenFunc func(driverName, dsn string) (*sql.DB, error)

// Postgres inserts rows straight into a table.
type Postgres struct {
	dsn    string
	table  string
	openDB sqlOpenFunc
}

// NewPostgres uses Key as the password unless the URL already carries one.
func NewPostgres(cfg Config) (*Postgres, error) {
	u, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid postgres url: %w", err)
	}
	if _, hasPassword := u.User.Password(); !hasPassword {
		if cfg.Key == "" {
			return nil, missing(cfg)
		}
		u.User = url.UserPassword(u.User.Username(), cfg.Key)
	}
	return &Postgres{dsn: u.String(), table: cfg.Table, openDB: sql.Open}, nil
}

func (p *Postgres) insertQuery() string {
	return fmt.Sprintf("INSERT INTO %s (league_id, season, fetched_at, payload) VALUES ($1, $2, $3, $4)", pq.QuoteIdentifier(p.table))
}

func (p *Postgres) Forward(ctx context.Context, b *league.Bundle) (*Result, error) {
	ctx, span := tracer.Start(ctx, "Postgres.Forward")
	defer span.End()

	db, err := p.openDB("postgres", p.dsn)
	if err != nil {
		return nil, fmt.Errorf("opening remote store: %w", err)
	}
	defer db.Close()

	row := RowOf(b)
	payload, err := json.Marshal(row.Payload)
	if err != nil {
		return nil, fmt.Errorf("encoding bundle: %w", err)
	}
	if _, err := db.ExecContext(ctx, p.insertQuery(), row.LeagueID, row.Season, row.FetchedAt, string(payload)); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("inserting into %s: %w", p.table, err)
	}
	return &Result{Target: "postgres:" + p.table}, nil
}
