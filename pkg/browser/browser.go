// Package browser describes the browser-side collaborators the fetch pipeline
// depends on: the active tab, the in-page agent, page-world execution and the
// cookie store.
package browser

import (
	"context"
	"strings"

	"github.com/sw33tLie/leaguebundle/pkg/fetch"
)

// Tab is a browsing context.
type Tab struct {
	ID  int    `json:"id"`
	URL string `json:"url"`
}

type Tabs interface {
	// ActiveTab returns the active tab of the focused window, or nil if there is none.
	ActiveTab(ctx context.Context) (*Tab, error)
}

// Frame selects which frames of a tab receive a message.
type Frame int

const (
	FrameTop Frame = 0
	FrameAny Frame = -1
)

const MessageFetchJSON = "cs.fetchJson"

type AgentRequest struct {
	Type string   `json:"type"`
	URLs []string `json:"urls"`
}

type AgentResponse struct {
	OK      bool            `json:"ok"`
	Code    string          `json:"code,omitempty"`
	Message string          `json:"message,omitempty"`
	Path    string          `json:"path,omitempty"`
	Results []fetch.Outcome `json:"results,omitempty"`
}

type Messenger interface {
	// SendMessage delivers req to the agent in the given frames of a tab.
	// An error means no receiver was reachable; a nil response with a nil
	// error means the channel closed without a reply.
	SendMessage(ctx context.Context, tabID int, frame Frame, req AgentRequest) (*AgentResponse, error)
}

// PageResponse is what a page-world fetch observed.
type PageResponse struct {
	Status     int
	StatusText string
	Body       []byte
}

// Page is the top-level execution context of a tab.
type Page interface {
	// Fetch performs a credentialed GET from inside the page.
	Fetch(ctx context.Context, url string) (*PageResponse, error)
}

// Routine runs inside a page. It must return one outcome per URL it was built for.
type Routine func(ctx context.Context, page Page) []fetch.Outcome

type Executor interface {
	Execute(ctx context.Context, tabID int, routine Routine) ([]fetch.Outcome, error)
}

type Cookie struct {
	Name     string `json:"name"`
	Value    string `json:"value"`
	Domain   string `json:"domain"`
	Path     string `json:"path,omitempty"`
	HostOnly bool   `json:"hostOnly"`
}

type CookieStore interface {
	// Cookies returns every cookie whose domain matches domain or one of its subdomains.
	Cookies(ctx context.Context, domain string) ([]Cookie, error)
}

// StaticCookies serves a fixed cookie set, e.g. values copied into the config file.
type StaticCookies []Cookie

func (s StaticCookies) Cookies(_ context.Context, domain string) ([]Cookie, error) {
	domain = strings.TrimPrefix(strings.ToLower(domain), ".")
	var out []Cookie
	for _, c := range s {
		d := strings.TrimPrefix(strings.ToLower(c.Domain), ".")
		if d == domain || strings.HasSuffix(d, "."+domain) {
			out = append(out, c)
		}
	}
	return out, nil
}
