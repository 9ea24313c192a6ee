package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sw33tLie/leaguebundle/pkg/browser"
	"github.com/sw33tLie/leaguebundle/pkg/fetch"
	"github.com/sw33tLie/leaguebundle/pkg/transport"
	"github.com/tidwall/gjson"
)

// agentFunc answers one request. Returning close=true drops the connection
// instead of replying.
type agentFunc func(typ string, params gjson.Result) (result interface{}, errMsg string, close bool)

func startAgent(t *testing.T, answer agentFunc) *Hub {
	t.Helper()
	hub := NewHub()
	hub.CallTimeout = 5 * time.Second
	srv := httptest.NewServer(hub)
	t.Cleanup(srv.Close)

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	go func() {
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			req := gjson.ParseBytes(data)
			result, errMsg, drop := answer(req.Get("type").String(), req.Get("params"))
			if drop {
				conn.Close()
				return
			}
			resp := map[string]interface{}{"id": req.Get("id").String(), "ok": errMsg == "", "result": result}
			if errMsg != "" {
				resp["error"] = errMsg
			}
			if err := conn.WriteJSON(resp); err != nil {
				return
			}
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := hub.WaitForAgent(ctx); err != nil {
		t.Fatal(err)
	}
	return hub
}

func TestCallWithoutAgent(t *testing.T) {
	_, err := NewHub().ActiveTab(context.Background())
	if !errors.Is(err, ErrNoAgent) {
		t.Fatalf("want ErrNoAgent, got %v", err)
	}
}

func TestActiveTab(t *testing.T) {
	hub := startAgent(t, func(typ string, _ gjson.Result) (interface{}, string, bool) {
		if typ != TypeQueryActiveTab {
			return nil, "unexpected " + typ, false
		}
		return browser.Tab{ID: 42, URL: "https://fantasy.espn.com/football/team?leagueId=1"}, "", false
	})
	tab, err := hub.ActiveTab(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if tab == nil || tab.ID != 42 {
		t.Fatalf("unexpected tab %+v", tab)
	}
}

func TestNoActiveTabIsNil(t *testing.T) {
	hub := startAgent(t, func(string, gjson.Result) (interface{}, string, bool) { return nil, "", false })
	tab, err := hub.ActiveTab(context.Background())
	if err != nil || tab != nil {
		t.Fatalf("want nil tab, got %+v %v", tab, err)
	}
}

func TestSendMessageFrames(t *testing.T) {
	var mu sync.Mutex
	var frames []string
	hub := startAgent(t, func(typ string, params gjson.Result) (interface{}, string, bool) {
		mu.Lock()
		frames = append(frames, params.Get("frameId").Raw)
		mu.Unlock()
		if params.Get("frameId").Exists() {
			return nil, "Could not establish connection. Receiving end does not exist.", false
		}
		var results []fetch.Outcome
		for _, u := range params.Get("message.urls").Array() {
			results = append(results, fetch.Success(u.String(), json.RawMessage(`{"ok":1}`), ""))
		}
		return browser.AgentResponse{OK: true, Results: results}, "", false
	})

	m := transport.NewMessaging(hub, 9)
	out := m.FetchMany(context.Background(), []string{"https://fantasy.espn.com/apis/v3/games/ffl/seasons/2023/segments/0/leagues/1?view=mTeam"})
	if !out[0].OK {
		t.Fatalf("unexpected outcome %+v", out[0])
	}
	mu.Lock()
	defer mu.Unlock()
	if len(frames) != 2 || frames[0] != "0" || frames[1] != "" {
		t.Fatalf("unexpected frame sequence %q", frames)
	}
}

func TestExecuteRunsRoutineThroughPageFetch(t *testing.T) {
	hub := startAgent(t, func(typ string, params gjson.Result) (interface{}, string, bool) {
		if typ != TypePageFetch {
			return nil, "unexpected " + typ, false
		}
		if strings.Contains(params.Get("url").String(), "mRoster") {
			return pageFetchResult{NetworkError: "TypeError: Failed to fetch"}, "", false
		}
		return pageFetchResult{Status: 200, StatusText: "OK", Body: `{"teams":[]}`}, "", false
	})

	base := "https://fantasy.espn.com/apis/v3/games/ffl/seasons/2023/segments/0/leagues/1?view="
	out := transport.NewInjected(hub, 9).FetchMany(context.Background(), []string{base + "mTeam", base + "mRoster", "https://evil.example/api"})
	if !out[0].OK || out[0].Transport != transport.NameInjected {
		t.Fatalf("first outcome %+v", out[0])
	}
	if out[1].Kind != fetch.KindNetworkError {
		t.Fatalf("second outcome %+v", out[1])
	}
	if out[2].Kind != fetch.KindCrossOrigin {
		t.Fatalf("third outcome %+v", out[2])
	}
}

func TestExecuteFailsWhenScriptCannotRun(t *testing.T) {
	hub := startAgent(t, func(string, gjson.Result) (interface{}, string, bool) {
		return nil, "Cannot access contents of url", false
	})
	routine := transport.PageFetchRoutine([]string{"https://fantasy.espn.com/a", "https://fantasy.espn.com/b"}, "https://fantasy.espn.com")
	_, err := hub.Execute(context.Background(), 1, routine)
	var agentErr *AgentError
	if !errors.As(err, &agentErr) || agentErr.Type != TypePageFetch {
		t.Fatalf("want agent error, got %v", err)
	}
}

func TestPendingCallFailsOnDisconnect(t *testing.T) {
	hub := startAgent(t, func(string, gjson.Result) (interface{}, string, bool) { return nil, "", true })
	_, err := hub.Cookies(context.Background(), "espn.com")
	if !errors.Is(err, ErrAgentGone) {
		t.Fatalf("want ErrAgentGone, got %v", err)
	}
}

func TestCookies(t *testing.T) {
	hub := startAgent(t, func(typ string, params gjson.Result) (interface{}, string, bool) {
		if params.Get("domain").String() != "espn.com" {
			return nil, "wrong domain", false
		}
		return []browser.Cookie{{Name: "SWID", Value: "{S}", Domain: ".espn.com"}}, "", false
	})
	cookies, err := hub.Cookies(context.Background(), "espn.com")
	if err != nil || len(cookies) != 1 || cookies[0].Name != "SWID" {
		t.Fatalf("got %+v %v", cookies, err)
	}
}
