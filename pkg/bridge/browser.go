package bridge

import (
	"context"
	"errors"

	"github.com/sw33tLie/leaguebundle/pkg/browser"
	"github.com/sw33tLie/leaguebundle/pkg/fetch"
)

// Request types understood by the agent.
const (
	TypeQueryActiveTab = "tabs.queryActive"
	TypeSendMessage    = "tabs.sendMessage"
	TypePageFetch      = "page.fetch"
	TypeGetCookies     = "cookies.getAll"
)

var (
	_ browser.Tabs        = (*Hub)(nil)
	_ browser.Messenger   = (*Hub)(nil)
	_ browser.Executor    = (*Hub)(nil)
	_ browser.CookieStore = (*Hub)(nil)
)

func (h *Hub) ActiveTab(ctx context.Context) (*browser.Tab, error) {
	var tab *browser.Tab
	if err := h.call(ctx, TypeQueryActiveTab, nil, &tab); err != nil {
		return nil, err
	}
	return tab, nil
}

type sendMessageParams struct {
	TabID   int                  `json:"tabId"`
	FrameID *int                 `json:"frameId,omitempty"`
	Message browser.AgentRequest `json:"message"`
}

// SendMessage forwards req to the content script. A null result means the
// channel closed without a reply.
func (h *Hub) SendMessage(ctx context.Context, tabID int, frame browser.Frame, req browser.AgentRequest) (*browser.AgentResponse, error) {
	params := sendMessageParams{TabID: tabID, Message: req}
	if frame != browser.FrameAny {
		id := int(frame)
		params.FrameID = &id
	}
	var resp *browser.AgentResponse
	if err := h.call(ctx, TypeSendMessage, params, &resp); err != nil {
		return nil, err
	}
	return resp, nil
}

type pageFetchParams struct {
	TabID int    `json:"tabId"`
	URL   string `json:"url"`
}

type pageFetchResult struct {
	Status     int    `json:"status"`
	StatusText string `json:"statusText"`
	Body       string `json:"body"`
	// NetworkError is set when fetch() itself rejected inside the page.
	NetworkError string `json:"networkError,omitempty"`
}

// remotePage runs fetches in the tab's main world through the agent. The
// first failure to run script in the page at all is kept in fatal.
type remotePage struct {
	hub   *Hub
	tabID int
	fatal error
}

func (p *remotePage) Fetch(ctx context.Context, url string) (*browser.PageResponse, error) {
	if p.fatal != nil {
		return nil, p.fatal
	}
	var res pageFetchResult
	err := p.hub.call(ctx, TypePageFetch, pageFetchParams{TabID: p.tabID, URL: url}, &res)
	if err != nil {
		var agentErr *AgentError
		if errors.As(err, &agentErr) || errors.Is(err, ErrAgentGone) || errors.Is(err, ErrNoAgent) {
			p.fatal = err
		}
		return nil, err
	}
	if res.NetworkError != "" {
		return nil, errors.New(res.NetworkError)
	}
	return &browser.PageResponse{Status: res.Status, StatusText: res.StatusText, Body: []byte(res.Body)}, nil
}

// Execute runs routine against the tab's page. If the agent could not run
// script in the page the whole execution fails.
func (h *Hub) Execute(ctx context.Context, tabID int, routine browser.Routine) ([]fetch.Outcome, error) {
	if h.current() == nil {
		return nil, ErrNoAgent
	}
	page := &remotePage{hub: h, tabID: tabID}
	out := routine(ctx, page)
	if page.fatal != nil {
		return nil, page.fatal
	}
	return out, nil
}

type cookiesParams struct {
	Domain string `json:"domain"`
}

func (h *Hub) Cookies(ctx context.Context, domain string) ([]browser.Cookie, error) {
	var cookies []browser.Cookie
	if err := h.call(ctx, TypeGetCookies, cookiesParams{Domain: domain}, &cookies); err != nil {
		return nil, err
	}
	return cookies, nil
}
