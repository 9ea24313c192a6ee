package transport

import (
	"context"

	"github.com/sw33tLie/leaguebundle/pkg/browser"
	"github.com/sw33tLie/leaguebundle/pkg/espn"
	"github.com/sw33tLie/leaguebundle/pkg/fetch"
)

// Injected runs a fetch routine directly in the page's top-level context.
// It is the fallback for when the in-page agent cannot reach the network.
type Injected struct {
	Executor browser.Executor
	TabID    int
	Origin   string
}

func NewInjected(e browser.Executor, tabID int) *Injected {
	return &Injected{Executor: e, TabID: tabID, Origin: espn.Origin}
}

func (t *Injected) Name() string  { return NameInjected }
func (t *Injected) Batched() bool { return true }

func (t *Injected) FetchMany(ctx context.Context, urls []string) []fetch.Outcome {
	results, err := t.Executor.Execute(ctx, t.TabID, PageFetchRoutine(urls, originOrDefault(t.Origin)))
	if err != nil {
		return failAll(urls, fetch.KindMessagingError, "execute script: "+err.Error())
	}
	return padOutcomes(urls, results, fetch.KindMessagingError, "page routine returned no result for URL")
}

// PageFetchRoutine builds the routine executed inside the page. The origin
// check runs there, before each fetch, against the origin captured here; an
// injected routine cannot rely on the caller's allow-list.
func PageFetchRoutine(urls []string, origin string) browser.Routine {
	urls = append([]string(nil), urls...)
	return func(ctx context.Context, page browser.Page) []fetch.Outcome {
		out := make([]fetch.Outcome, len(urls))
		for i, u := range urls {
			if !espn.SameOrigin(u, origin) {
				out[i] = crossOrigin(u)
				continue
			}
			res, err := page.Fetch(ctx, u)
			if err != nil {
				out[i] = fetch.Failure(u, fetch.KindNetworkError, err.Error())
				continue
			}
			out[i] = decodeResponse(u, res.Status, res.StatusText, res.Body, NameInjected)
		}
		return out
	}
}
