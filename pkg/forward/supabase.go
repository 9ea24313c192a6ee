package forward

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/go-resty/resty/v2"
	"github.com/sw33tLie/leaguebundle/pkg/league"
)

// Supabase inserts rows through the PostgREST API.
type Supabase struct {
	http  *resty.Client
	table string
}

func NewSupabase(cfg Config) *Supabase {
	client := resty.New()
	client.SetBaseURL(strings.TrimRight(cfg.URL, "/"))
	client.SetHeader("apikey", cfg.Key)
	client.SetAuthToken(cfg.Key)
	client.SetHeader("Content-Type", "application/json")
	client.SetHeader("Prefer", "return=representation")
	return &Supabase{http: client, table: cfg.Table}
}

func (s *Supabase) Forward(ctx context.Context, b *league.Bundle) (*Result, error) {
	ctx, span := tracer.Start(ctx, "Supabase.Forward")
	defer span.End()

	path := "/rest/v1/" + url.PathEscape(s.table)
	res, err := s.http.R().
		SetContext(ctx).
		SetBody(RowOf(b)).
		Post(path)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("posting to remote store: %w", err)
	}
	if res.IsError() {
		return nil, fmt.Errorf("remote store HTTP %d: %s", res.StatusCode(), strings.TrimSpace(res.String()))
	}
	return &Result{Target: "supabase:" + s.table, Data: res.Body()}, nil
}
