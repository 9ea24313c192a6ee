package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/sw33tLie/leaguebundle/internal/utils"
	"github.com/sw33tLie/leaguebundle/pkg/espn"
	"github.com/sw33tLie/leaguebundle/pkg/fetch"
	"github.com/sw33tLie/leaguebundle/pkg/forward"
	"github.com/sw33tLie/leaguebundle/pkg/league"
	"github.com/sw33tLie/leaguebundle/pkg/orchestrator"
	"github.com/sw33tLie/leaguebundle/pkg/service"
	"github.com/sw33tLie/leaguebundle/pkg/storage"
)

// Season accepts both 2023 and "2023". Zero means the default season.
type Season int

func (s *Season) UnmarshalJSON(b []byte) error {
	raw := strings.Trim(string(b), `"`)
	if raw == "" || raw == "null" {
		*s = 0
		return nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return err
	}
	*s = Season(v)
	return nil
}

type ConnectionRequest struct {
	LeagueID string `json:"leagueId"`
	Season   Season `json:"season"`
}

type BundleRequest struct {
	LeagueID   string `json:"leagueId"`
	Season     Season `json:"season"`
	IncludeRaw bool   `json:"includeRaw"`
	Views      string `json:"views,omitempty"`
}

type SyncRequest struct {
	Bundle *league.Bundle  `json:"bundle,omitempty"`
	Remote *storage.Remote `json:"remote,omitempty"`
}

type failure struct {
	OK bool `json:"ok"`
	*fetch.Error
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		utils.Log.Debugf("Writing response: %v", err)
	}
}

// writeError always answers with {ok:false, code, ...}.
func writeError(w http.ResponseWriter, err error) {
	var fe *fetch.Error
	status := http.StatusInternalServerError
	switch {
	case errors.As(err, &fe):
		status = statusFor(fe.Code)
	case errors.Is(err, forward.ErrMissingConfig), errors.Is(err, service.ErrNoBundle):
		fe = &fetch.Error{Code: "BAD_REQUEST", Message: err.Error()}
		status = http.StatusBadRequest
	default:
		fe = &fetch.Error{Code: fetch.CodeUnexpected, Message: err.Error()}
	}
	writeJSON(w, status, failure{Error: fe})
}

func badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, failure{Error: &fetch.Error{Code: "BAD_REQUEST", Message: msg}})
}

func forbidden(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusForbidden, failure{Error: &fetch.Error{Code: "FORBIDDEN", Message: msg}})
}

func statusFor(code fetch.Code) int {
	switch code {
	case fetch.CodeWrongHost, fetch.CodeMissingCredentials:
		return http.StatusConflict
	case fetch.CodeNotLoggedIn:
		return http.StatusUnauthorized
	case fetch.CodeUnexpected:
		return http.StatusInternalServerError
	}
	return http.StatusBadGateway
}

func (s *Server) handleConnection(w http.ResponseWriter, r *http.Request) {
	var req ConnectionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, err.Error())
		return
	}
	if req.LeagueID == "" {
		badRequest(w, "leagueId is required")
		return
	}
	conn, err := s.Service.TestConnection(r.Context(), req.LeagueID, int(req.Season))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, conn)
}

func (s *Server) handleBundle(w http.ResponseWriter, r *http.Request) {
	var req BundleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, err.Error())
		return
	}
	if req.LeagueID == "" {
		badRequest(w, "leagueId is required")
		return
	}
	views, err := espn.ParseViews(req.Views)
	if err != nil {
		badRequest(w, err.Error())
		return
	}

	res, err := s.Service.FetchBundle(r.Context(), orchestrator.Request{
		LeagueID:   req.LeagueID,
		Season:     int(req.Season),
		Views:      views,
		IncludeRaw: req.IncludeRaw,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		OK bool `json:"ok"`
		*orchestrator.Result
	}{true, res})
}

func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	var req SyncRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		badRequest(w, err.Error())
		return
	}
	if req.Remote != nil && !s.authEnabled() {
		forbidden(w, "a remote store in the request needs basic auth to be configured")
		return
	}
	res, err := s.Service.Sync(r.Context(), req.Bundle, req.Remote)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		OK bool `json:"ok"`
		*forward.Result
	}{true, res})
}

type stateResponse struct {
	OK            bool              `json:"ok"`
	LastFetch     storage.LastFetch `json:"lastFetch"`
	Remote        storage.Remote    `json:"remote"`
	ServerTime    string            `json:"serverTime"`
	DefaultSeason int               `json:"defaultSeason"`
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	snap, err := s.Service.State(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	now := time.Now()
	resp := stateResponse{
		OK:            true,
		LastFetch:     snap.LastFetch,
		Remote:        snap.Remote,
		ServerTime:    now.UTC().Format(league.ISOFormat),
		DefaultSeason: espn.DefaultSeason(now),
	}
	if resp.Remote.Key != "" {
		resp.Remote.Key = "********"
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleSaveRemote(w http.ResponseWriter, r *http.Request) {
	if !s.authEnabled() {
		forbidden(w, "changing the remote store needs basic auth to be configured")
		return
	}
	var remote storage.Remote
	if err := json.NewDecoder(r.Body).Decode(&remote); err != nil {
		badRequest(w, err.Error())
		return
	}
	if err := s.Service.SaveRemote(r.Context(), remote); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}
