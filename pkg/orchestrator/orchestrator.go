// Package orchestrator picks a transport for a league fetch, falls back on
// specific failure classes and turns the result into a bundle.
package orchestrator

import (
	"context"
	"fmt"
	"time"

	"dario.cat/mergo"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/sw33tLie/leaguebundle/pkg/aggregate"
	"github.com/sw33tLie/leaguebundle/pkg/browser"
	"github.com/sw33tLie/leaguebundle/pkg/espn"
	"github.com/sw33tLie/leaguebundle/pkg/fetch"
	"github.com/sw33tLie/leaguebundle/pkg/league"
	"github.com/sw33tLie/leaguebundle/pkg/normalize"
	"github.com/sw33tLie/leaguebundle/pkg/retry"
	"github.com/sw33tLie/leaguebundle/pkg/transport"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/sw33tLie/leaguebundle/pkg/orchestrator"

// Logger abstracts logging so callers can use logrus, stdlib log, or any
// other logger that satisfies this interface.
type Logger interface {
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
	Debugf(format string, args ...interface{})
}

type nopLogger struct{}

func (nopLogger) Infof(string, ...interface{})  {}
func (nopLogger) Warnf(string, ...interface{})  {}
func (nopLogger) Errorf(string, ...interface{}) {}
func (nopLogger) Debugf(string, ...interface{}) {}

// Options are the tunables. Zero fields take their defaults.
type Options struct {
	Origin string
	// PreferCookies tries the cookie-header transport before any tab.
	PreferCookies bool
	Retry         retry.Policy
}

var defaultOptions = Options{
	Origin: espn.Origin,
	Retry:  retry.DefaultPolicy(),
}

// Config wires the browser collaborators. Any of them may be nil; the
// transports that need a missing collaborator are skipped.
type Config struct {
	Tabs       browser.Tabs
	Messenger  browser.Messenger
	Executor   browser.Executor
	Cookies    browser.CookieStore
	HTTPClient *retryablehttp.Client // defaults to Options.Retry.HTTPClient()
	Log        Logger                // optional; nil = no logging
	Now        func() time.Time
	Options    Options
}

type Orchestrator struct {
	cfg     Config
	builder espn.Builder
	tracer  trace.Tracer
}

func New(cfg Config) (*Orchestrator, error) {
	if err := mergo.Merge(&cfg.Options, defaultOptions); err != nil {
		return nil, fmt.Errorf("applying default options: %w", err)
	}
	if cfg.Log == nil {
		cfg.Log = nopLogger{}
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = cfg.Options.Retry.HTTPClient()
	}
	return &Orchestrator{
		cfg:     cfg,
		builder: espn.Builder{Origin: cfg.Options.Origin},
		tracer:  otel.Tracer(tracerName),
	}, nil
}

type Status string

const (
	StatusSuccess        Status = "SUCCESS"
	StatusPartialSuccess Status = "PARTIAL_SUCCESS"
)

type Request struct {
	LeagueID   string
	Season     int         // 0 = default season
	Views      []espn.View // empty = all views
	IncludeRaw bool
}

type Result struct {
	Status    Status              `json:"status"`
	Transport string              `json:"path"`
	Bundle    *league.Bundle      `json:"data"`
	Failures  []fetch.ViewFailure `json:"failures,omitempty"`
}

type Connection struct {
	OK   bool   `json:"ok"`
	Path string `json:"path,omitempty"`
}

// TestConnection fetches the settings view alone to prove the whole path works.
func (o *Orchestrator) TestConnection(ctx context.Context, leagueID string, season int) (conn *Connection, err error) {
	ctx, span := o.tracer.Start(ctx, "TestConnection", trace.WithAttributes(attribute.String("league.id", leagueID)))
	defer func() { endSpan(span, err) }()
	defer recoverUnexpected(&err)

	season = o.season(season)
	reqs := o.builder.ViewRequests(leagueID, season, []espn.View{espn.ViewSettings})
	res, err := o.fetchViews(ctx, reqs)
	if err != nil {
		return nil, err
	}
	return &Connection{OK: true, Path: res.Transport}, nil
}

// FetchBundle returns a bundle whenever at least one view succeeded. Hard
// failures are *fetch.Error values.
func (o *Orchestrator) FetchBundle(ctx context.Context, req Request) (result *Result, err error) {
	ctx, span := o.tracer.Start(ctx, "FetchBundle", trace.WithAttributes(
		attribute.String("league.id", req.LeagueID),
		attribute.Int("league.season", req.Season),
	))
	defer func() { endSpan(span, err) }()
	defer recoverUnexpected(&err)

	views := req.Views
	if len(views) == 0 {
		views = espn.AllViews
	}
	season := o.season(req.Season)
	reqs := o.builder.ViewRequests(req.LeagueID, season, views)

	res, err := o.fetchViews(ctx, reqs)
	if err != nil {
		return nil, err
	}

	combined, err := res.CombinedJSON()
	if err != nil {
		return nil, &fetch.Error{Code: fetch.CodeUnexpected, Message: fmt.Sprintf("encoding merged views: %v", err)}
	}
	bundle := normalize.Bundle(normalize.Input{
		Combined:   combined,
		Fragments:  res.Fragments,
		LeagueID:   req.LeagueID,
		Season:     season,
		Views:      res.Succeeded,
		IncludeRaw: req.IncludeRaw,
		Now:        o.cfg.Now(),
	})

	result = &Result{Status: StatusSuccess, Transport: res.Transport, Bundle: bundle, Failures: res.Failures}
	if len(res.Failures) > 0 {
		result.Status = StatusPartialSuccess
		o.cfg.Log.Warnf("League %s: %d of %d views failed", req.LeagueID, len(res.Failures), len(reqs))
	}
	span.SetAttributes(attribute.String("fetch.transport", res.Transport), attribute.String("fetch.status", string(result.Status)))
	return result, nil
}

func (o *Orchestrator) season(s int) int {
	if s == 0 {
		return espn.DefaultSeason(o.cfg.Now())
	}
	return s
}

// fetchViews walks the transports in preference order. Each step is gated by
// the failure class of the previous one.
func (o *Orchestrator) fetchViews(ctx context.Context, reqs []espn.ViewRequest) (*aggregate.Result, error) {
	var cookieRes *aggregate.Result
	var credErr error

	if o.cfg.Options.PreferCookies {
		ch := transport.NewCookieHeader(o.cfg.Cookies, o.cfg.HTTPClient)
		ch.Origin = o.cfg.Options.Origin
		if _, credErr = ch.Credentials(ctx); credErr == nil {
			cookieRes = o.run(ctx, ch, reqs)
			if cookieRes.Err() == nil {
				return cookieRes, nil
			}
			switch {
			case cookieRes.AuthRejected():
				o.cfg.Log.Infof("Session cookies were rejected, falling back to the open tab")
			case cookieRes.Unreachable():
				o.cfg.Log.Infof("Provider unreachable with session cookies, falling back to the open tab")
			default:
				return nil, cookieRes.Err()
			}
		} else {
			o.cfg.Log.Debugf("Cookie-header transport unavailable: %v", credErr)
		}
	}

	tab, tabErr := o.qualifyingTab(ctx)
	if tab == nil {
		switch {
		case cookieRes != nil:
			return nil, cookieRes.Err()
		case tabErr != nil:
			return nil, &fetch.Error{Code: fetch.CodeMessagingError, Message: "no browser agent reachable: " + tabErr.Error()}
		case credErr != nil:
			return nil, credErr
		}
		return nil, &fetch.Error{Code: fetch.CodeWrongHost, Hint: fetch.HintWrongHost}
	}

	var res *aggregate.Result
	if o.cfg.Messenger != nil {
		msg := transport.NewMessaging(o.cfg.Messenger, tab.ID)
		msg.Origin = o.cfg.Options.Origin
		res = o.run(ctx, retry.Wrap(msg, o.cfg.Options.Retry), reqs)
	}

	if (res == nil || res.Unreachable()) && o.cfg.Executor != nil {
		inj := transport.NewInjected(o.cfg.Executor, tab.ID)
		inj.Origin = o.cfg.Options.Origin
		alt := o.run(ctx, retry.Wrap(inj, o.cfg.Options.Retry), reqs)
		if res == nil || !onlyMessagingFailures(alt) {
			res = alt
		} else {
			o.cfg.Log.Debugf("Injected fetch could not run, keeping the messaging result")
		}
	}

	if res == nil {
		return nil, &fetch.Error{Code: fetch.CodeMessagingError, Message: "no browser agent is connected"}
	}
	if err := res.Err(); err != nil {
		return nil, err
	}
	return res, nil
}

func (o *Orchestrator) run(ctx context.Context, t transport.Transport, reqs []espn.ViewRequest) *aggregate.Result {
	ctx, span := o.tracer.Start(ctx, "transport "+t.Name(), trace.WithAttributes(attribute.Int("fetch.views", len(reqs))))
	defer span.End()

	o.cfg.Log.Debugf("Fetching %d view(s) via %s", len(reqs), t.Name())
	res := aggregate.Run(ctx, t, reqs)
	span.SetAttributes(attribute.Int("fetch.succeeded", len(res.Succeeded)), attribute.Int("fetch.failed", len(res.Failures)))
	return res
}

// qualifyingTab returns the active tab when it is a fantasy page. An error
// means the browser could not be asked at all.
func (o *Orchestrator) qualifyingTab(ctx context.Context) (*browser.Tab, error) {
	if o.cfg.Tabs == nil {
		return nil, nil
	}
	tab, err := o.cfg.Tabs.ActiveTab(ctx)
	if err != nil {
		o.cfg.Log.Warnf("Could not query the active tab: %v", err)
		return nil, err
	}
	if tab == nil || !espn.IsFantasyPage(tab.URL) {
		return nil, nil
	}
	return tab, nil
}

func onlyMessagingFailures(r *aggregate.Result) bool {
	if len(r.Succeeded) > 0 {
		return false
	}
	for _, f := range r.Failures {
		if f.Outcome.Kind != fetch.KindMessagingError {
			return false
		}
	}
	return true
}

func recoverUnexpected(err *error) {
	if r := recover(); r != nil {
		*err = &fetch.Error{Code: fetch.CodeUnexpected, Message: fmt.Sprint(r)}
	}
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, string(fetch.CodeOf(err)))
	}
	span.End()
}
