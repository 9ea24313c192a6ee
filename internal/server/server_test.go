package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/sw33tLie/leaguebundle/pkg/espn"
	"github.com/sw33tLie/leaguebundle/pkg/fetch"
	"github.com/sw33tLie/leaguebundle/pkg/forward"
	"github.com/sw33tLie/leaguebundle/pkg/league"
	"github.com/sw33tLie/leaguebundle/pkg/orchestrator"
	"github.com/sw33tLie/leaguebundle/pkg/storage"
)

type fakeService struct {
	lastReq   orchestrator.Request
	fetchErr  error
	remote    storage.Remote
	synced    *league.Bundle
	syncCalls int
}

func (f *fakeService) TestConnection(_ context.Context, leagueID string, season int) (*orchestrator.Connection, error) {
	if leagueID == "0" {
		return nil, &fetch.Error{Code: fetch.CodeWrongHost, Hint: fetch.HintWrongHost}
	}
	return &orchestrator.Connection{OK: true, Path: "content-script"}, nil
}

func (f *fakeService) FetchBundle(_ context.Context, req orchestrator.Request) (*orchestrator.Result, error) {
	f.lastReq = req
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	return &orchestrator.Result{
		Status:    orchestrator.StatusPartialSuccess,
		Transport: "content-script",
		Bundle:    &league.Bundle{Meta: league.Meta{LeagueID: req.LeagueID, Season: req.Season}},
		Failures: []fetch.ViewFailure{{
			View:    espn.ViewRoster,
			Outcome: fetch.Failure("u", fetch.KindNetworkError, "offline"),
		}},
	}, nil
}

func (f *fakeService) Sync(_ context.Context, b *league.Bundle, _ *storage.Remote) (*forward.Result, error) {
	f.syncCalls++
	if b == nil {
		return nil, forward.ErrMissingConfig
	}
	f.synced = b
	return &forward.Result{Target: "supabase:bundles"}, nil
}

func (f *fakeService) State(context.Context) (*storage.Snapshot, error) {
	return &storage.Snapshot{Remote: f.remote}, nil
}

func (f *fakeService) SaveRemote(_ context.Context, r storage.Remote) error {
	f.remote = r
	return nil
}

func newTestServer(t *testing.T, svc Service, user, pass string) *httptest.Server {
	t.Helper()
	agent := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusTeapot) })
	srv := httptest.NewServer(New(svc, agent, user, pass).Router())
	t.Cleanup(srv.Close)
	return srv
}

func do(t *testing.T, method, url, body string) (*http.Response, map[string]interface{}) {
	t.Helper()
	return doWith(t, method, url, body, map[string]string{"Content-Type": "application/json"})
}

func doWith(t *testing.T, method, url, body string, headers map[string]string) (*http.Response, map[string]interface{}) {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	require.NoError(t, err)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	var out map[string]interface{}
	json.NewDecoder(resp.Body).Decode(&out)
	return resp, out
}

func TestBasicAuth(t *testing.T) {
	srv := newTestServer(t, &fakeService{}, "admin", "pw")

	resp, _ := do(t, "GET", srv.URL+"/api/state", "")
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	req, _ := http.NewRequest("GET", srv.URL+"/api/state", nil)
	req.SetBasicAuth("admin", "pw")
	ok, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	ok.Body.Close()
	require.Equal(t, http.StatusOK, ok.StatusCode)

	agent, _ := do(t, "GET", srv.URL+"/agent", "")
	require.Equal(t, http.StatusTeapot, agent.StatusCode)
}

func TestBundleEndpoint(t *testing.T) {
	svc := &fakeService{}
	srv := newTestServer(t, svc, "", "")

	resp, body := do(t, "POST", srv.URL+"/api/bundle", `{"leagueId":"12345","season":"2023","includeRaw":true}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, true, body["ok"])
	require.Equal(t, "PARTIAL_SUCCESS", body["status"])
	require.Len(t, body["failures"], 1)
	require.Equal(t, 2023, svc.lastReq.Season)
	require.True(t, svc.lastReq.IncludeRaw)
	require.Len(t, svc.lastReq.Views, len(espn.AllViews))

	data := body["data"].(map[string]interface{})
	require.Equal(t, "12345", data["meta"].(map[string]interface{})["leagueId"])
}

func TestBundleEndpointErrors(t *testing.T) {
	svc := &fakeService{fetchErr: &fetch.Error{Code: fetch.CodeNotLoggedIn, Status: 401, StatusText: "Unauthorized", Hint: fetch.HintNotLoggedIn}}
	srv := newTestServer(t, svc, "", "")

	resp, body := do(t, "POST", srv.URL+"/api/bundle", `{"leagueId":"12345"}`)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	require.Equal(t, false, body["ok"])
	require.Equal(t, "NOT_LOGGED_IN", body["code"])
	require.Equal(t, fetch.HintNotLoggedIn, body["hint"])

	resp, body = do(t, "POST", srv.URL+"/api/bundle", `{"leagueId":"12345","views":"mNothing"}`)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.Equal(t, "BAD_REQUEST", body["code"])

	resp, _ = do(t, "POST", srv.URL+"/api/bundle", `{}`)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestConnectionEndpoint(t *testing.T) {
	srv := newTestServer(t, &fakeService{}, "", "")

	resp, body := do(t, "POST", srv.URL+"/api/connection", `{"leagueId":"12345","season":2023}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "content-script", body["path"])

	resp, body = do(t, "POST", srv.URL+"/api/connection", `{"leagueId":"0"}`)
	require.Equal(t, http.StatusConflict, resp.StatusCode)
	require.Equal(t, "WRONG_HOST", body["code"])
}

func TestRemoteStateAndSync(t *testing.T) {
	svc := &fakeService{}
	srv := newTestServer(t, svc, "admin", "pw")
	auth := map[string]string{"Content-Type": "application/json", "Authorization": "Basic YWRtaW46cHc="}

	resp, _ := doWith(t, "PUT", srv.URL+"/api/state/remote", `{"url":"https://x.supabase.co","key":"anon","table":"bundles"}`, auth)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "anon", svc.remote.Key)

	_, body := doWith(t, "GET", srv.URL+"/api/state", "", auth)
	remote := body["remote"].(map[string]interface{})
	require.Equal(t, "********", remote["key"])
	require.Equal(t, "bundles", remote["table"])

	resp, body = doWith(t, "POST", srv.URL+"/api/sync", "", auth)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.Equal(t, false, body["ok"])

	resp, body = doWith(t, "POST", srv.URL+"/api/sync", `{"bundle":{"meta":{"leagueId":"9","season":2022}}}`, auth)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "supabase:bundles", body["target"])
	require.Equal(t, "9", svc.synced.Meta.LeagueID)
}

func TestCrossSiteSyncIsRefused(t *testing.T) {
	svc := &fakeService{}
	srv := newTestServer(t, svc, "", "")
	payload := `{"remote":{"url":"https://attacker.example","key":"x","table":"t"}}`

	resp, body := doWith(t, "POST", srv.URL+"/api/sync", payload, map[string]string{
		"Content-Type": "text/plain",
		"Origin":       "https://evil.example",
	})
	require.Equal(t, http.StatusForbidden, resp.StatusCode)
	require.Equal(t, "FORBIDDEN", body["code"])
	require.Empty(t, resp.Header.Get("Access-Control-Allow-Origin"))

	resp, _ = doWith(t, "POST", srv.URL+"/api/sync", payload, map[string]string{"Content-Type": "text/plain"})
	require.Equal(t, http.StatusUnsupportedMediaType, resp.StatusCode)

	resp, body = do(t, "POST", srv.URL+"/api/sync", payload)
	require.Equal(t, http.StatusForbidden, resp.StatusCode)
	require.Equal(t, "FORBIDDEN", body["code"])

	resp, _ = do(t, "PUT", srv.URL+"/api/state/remote", `{"url":"https://attacker.example","key":"x","table":"t"}`)
	require.Equal(t, http.StatusForbidden, resp.StatusCode)

	require.Zero(t, svc.syncCalls)
	require.Empty(t, svc.remote.URL)
}

func TestExtensionOriginAllowed(t *testing.T) {
	srv := newTestServer(t, &fakeService{}, "", "")
	resp, body := doWith(t, "POST", srv.URL+"/api/connection", `{"leagueId":"12345"}`, map[string]string{
		"Content-Type": "application/json",
		"Origin":       "chrome-extension://abcdef",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, true, body["ok"])
	require.Equal(t, "chrome-extension://abcdef", resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestSyncChunkedEmptyBody(t *testing.T) {
	svc := &fakeService{}
	router := New(svc, nil, "", "").Router()

	req := httptest.NewRequest("POST", "/api/sync", strings.NewReader(""))
	req.ContentLength = -1
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, 1, svc.syncCalls)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, rec.Body.String(), "missing remote store configuration")
}
