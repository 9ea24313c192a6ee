// Package service ties the fetch pipeline to persisted state and the remote
// store. The CLI and the HTTP server both drive it.
package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/sw33tLie/leaguebundle/pkg/forward"
	"github.com/sw33tLie/leaguebundle/pkg/league"
	"github.com/sw33tLie/leaguebundle/pkg/orchestrator"
	"github.com/sw33tLie/leaguebundle/pkg/storage"
)

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

var ErrNoBundle = errors.New("no bundle to sync; fetch one first")

// Fetcher is the part of the orchestrator the service needs.
type Fetcher interface {
	TestConnection(ctx context.Context, leagueID string, season int) (*orchestrator.Connection, error)
	FetchBundle(ctx context.Context, req orchestrator.Request) (*orchestrator.Result, error)
}

// History stores fetched bundles. *storage.DB implements it.
type History interface {
	SaveBundle(ctx context.Context, b *league.Bundle, status string) (int64, error)
	LatestBundle(ctx context.Context, leagueID string) (*league.Bundle, error)
}

// Locker serialises writes across processes. *utils.StateLock implements it.
type Locker interface {
	Lock() error
	Unlock() error
}

type Config struct {
	Fetcher Fetcher
	State   storage.State
	History History // optional
	Lock    Locker  // optional
	Log     Logger  // optional; nil = no logging

	// NewForwarder builds the uploader for the remote store; defaults to forward.New.
	NewForwarder func(forward.Config) (forward.Forwarder, error)
}

type Service struct {
	cfg Config
}

func New(cfg Config) *Service {
	if cfg.Log == nil {
		cfg.Log = nopLogger{}
	}
	if cfg.NewForwarder == nil {
		cfg.NewForwarder = forward.New
	}
	return &Service{cfg: cfg}
}

func (s *Service) TestConnection(ctx context.Context, leagueID string, season int) (*orchestrator.Connection, error) {
	return s.cfg.Fetcher.TestConnection(ctx, leagueID, season)
}

// FetchBundle fetches and then records the result. A failure to persist is
// logged, never turned into a fetch failure.
func (s *Service) FetchBundle(ctx context.Context, req orchestrator.Request) (*orchestrator.Result, error) {
	res, err := s.cfg.Fetcher.FetchBundle(ctx, req)
	if err != nil {
		return nil, err
	}
	if err := s.persist(ctx, res); err != nil {
		s.cfg.Log.Warnf("Could not save fetch of league %s: %v", res.Bundle.Meta.LeagueID, err)
	}
	return res, nil
}

func (s *Service) persist(ctx context.Context, res *orchestrator.Result) error {
	if s.cfg.Lock != nil {
		if err := s.cfg.Lock.Lock(); err != nil {
			return err
		}
		defer func() {
			if err := s.cfg.Lock.Unlock(); err != nil {
				s.cfg.Log.Warnf("Could not release state lock: %v", err)
			}
		}()
	}

	if s.cfg.State.KV != nil {
		if err := s.cfg.State.RecordFetch(ctx, res.Bundle); err != nil {
			return fmt.Errorf("recording last fetch: %w", err)
		}
	}
	if s.cfg.History != nil {
		id, err := s.cfg.History.SaveBundle(ctx, res.Bundle, string(res.Status))
		if err != nil {
			return fmt.Errorf("saving bundle history: %w", err)
		}
		s.cfg.Log.Debugf("Saved bundle #%d for league %s", id, res.Bundle.Meta.LeagueID)
	}
	return nil
}

// Sync uploads b, or the latest stored bundle when b is nil. A nil remote
// uses the persisted remote store coordinates.
func (s *Service) Sync(ctx context.Context, b *league.Bundle, remote *storage.Remote) (*forward.Result, error) {
	if b == nil {
		if s.cfg.History == nil {
			return nil, ErrNoBundle
		}
		latest, err := s.cfg.History.LatestBundle(ctx, "")
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrNoBundle
		}
		if err != nil {
			return nil, fmt.Errorf("loading latest bundle: %w", err)
		}
		b = latest
	}

	if remote == nil {
		snap, err := s.State(ctx)
		if err != nil {
			return nil, err
		}
		remote = &snap.Remote
	}

	f, err := s.cfg.NewForwarder(forward.Config{URL: remote.URL, Key: remote.Key, Table: remote.Table})
	if err != nil {
		return nil, err
	}
	res, err := f.Forward(ctx, b)
	if err != nil {
		return nil, err
	}
	s.cfg.Log.Infof("Synced league %s season %d to %s", b.Meta.LeagueID, b.Meta.Season, res.Target)
	return res, nil
}

func (s *Service) State(ctx context.Context) (*storage.Snapshot, error) {
	if s.cfg.State.KV == nil {
		return &storage.Snapshot{}, nil
	}
	return s.cfg.State.Load(ctx)
}

func (s *Service) SaveRemote(ctx context.Context, r storage.Remote) error {
	if s.cfg.State.KV == nil {
		return errors.New("no state store configured")
	}
	if s.cfg.Lock != nil {
		if err := s.cfg.Lock.Lock(); err != nil {
			return err
		}
		defer s.cfg.Lock.Unlock()
	}
	return s.cfg.State.SaveRemote(ctx, r)
}
