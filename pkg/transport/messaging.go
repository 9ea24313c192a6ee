package transport

import (
	"context"
	"errors"
	"fmt"

	"github.com/sw33tLie/leaguebundle/internal/utils"
	"github.com/sw33tLie/leaguebundle/pkg/browser"
	"github.com/sw33tLie/leaguebundle/pkg/espn"
	"github.com/sw33tLie/leaguebundle/pkg/fetch"
)

var errNoResponse = errors.New("no response from content script")

// Messaging asks the agent running inside the tab to fetch the URLs, so the
// browser attaches the session cookies itself.
type Messaging struct {
	Messenger browser.Messenger
	TabID     int
	Origin    string
}

func NewMessaging(m browser.Messenger, tabID int) *Messaging {
	return &Messaging{Messenger: m, TabID: tabID, Origin: espn.Origin}
}

func (t *Messaging) Name() string  { return NameMessaging }
func (t *Messaging) Batched() bool { return true }

func (t *Messaging) FetchMany(ctx context.Context, urls []string) []fetch.Outcome {
	out := make([]fetch.Outcome, len(urls))
	origin := originOrDefault(t.Origin)

	var send []string
	var idx []int
	for i, u := range urls {
		if !espn.SameOrigin(u, origin) {
			out[i] = crossOrigin(u)
			continue
		}
		send = append(send, u)
		idx = append(idx, i)
	}
	if len(send) == 0 {
		return out
	}

	resp, err := t.send(ctx, send)
	var results []fetch.Outcome
	switch {
	case err != nil:
		results = failAll(send, fetch.KindMessagingError, err.Error())
	case !resp.OK:
		results = failAll(send, fetch.KindMessagingError, fmt.Sprintf("%s: %s", resp.Code, resp.Message))
	default:
		results = padOutcomes(send, resp.Results, fetch.KindMessagingError, "agent returned no result for URL")
	}

	for j, i := range idx {
		o := results[j]
		if o.OK && o.Transport == "" {
			o.Transport = t.Name()
		}
		out[i] = o
	}
	return out
}

// send tries the primary frame first and falls back to any frame that has an agent.
func (t *Messaging) send(ctx context.Context, urls []string) (*browser.AgentResponse, error) {
	req := browser.AgentRequest{Type: browser.MessageFetchJSON, URLs: urls}

	resp, err := t.Messenger.SendMessage(ctx, t.TabID, browser.FrameTop, req)
	if err == nil && resp != nil {
		return resp, nil
	}
	if err != nil {
		utils.Log.Debugf("Top frame of tab %d unreachable (%v), retrying without frame target", t.TabID, err)
	} else {
		utils.Log.Debugf("Top frame of tab %d closed the channel without a reply, retrying without frame target", t.TabID)
	}

	resp, err = t.Messenger.SendMessage(ctx, t.TabID, browser.FrameAny, req)
	if err != nil {
		return nil, err
	}
	if resp == nil {
		return nil, errNoResponse
	}
	return resp, nil
}
