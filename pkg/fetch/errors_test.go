package fetch

import (
	"errors"
	"fmt"
	"testing"

	"github.com/sw33tLie/leaguebundle/pkg/espn"
)

func TestClassifyPrefersAuthFailure(t *testing.T) {
	failures := []ViewFailure{
		{View: espn.ViewTeam, Outcome: Failure("a", KindNetworkError, "reset")},
		{View: espn.ViewRoster, Outcome: Failure("b", KindNetworkError, "refused")},
		{View: espn.ViewSettings, Outcome: HTTPFailure("c", 401, "")},
	}
	e := Classify(failures)
	if e.Code != CodeNotLoggedIn {
		t.Fatalf("expected NOT_LOGGED_IN, got %s", e.Code)
	}
	if len(e.Failures) != 3 {
		t.Fatalf("expected failures attached, got %d", len(e.Failures))
	}
}

func TestClassifyUsesFirstFailure(t *testing.T) {
	tests := []struct {
		name  string
		first Outcome
		code  Code
	}{
		{"network", Failure("a", KindNetworkError, ""), CodeNetworkError},
		{"http passthrough", HTTPFailure("a", 500, "Internal Server Error"), CodeHTTPError},
		{"parse", Failure("a", KindParseError, ""), CodeParseError},
		{"messaging", Failure("a", KindMessagingError, ""), CodeMessagingError},
		{"credentials", Failure("a", KindMissingCredentials, ""), CodeMissingCredentials},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			e := Classify([]ViewFailure{
				{View: espn.ViewTeam, Outcome: tc.first},
				{View: espn.ViewRoster, Outcome: Failure("b", KindNetworkError, "")},
			})
			if e.Code != tc.code {
				t.Fatalf("want %s, got %s", tc.code, e.Code)
			}
			if tc.code == CodeHTTPError && (e.Status != 500 || e.StatusText != "Internal Server Error") {
				t.Fatalf("status not preserved: %+v", e)
			}
		})
	}
}

func TestSanitizedDropsStatusOutsideHTTPErrors(t *testing.T) {
	o := Outcome{Kind: KindParseError, Status: 200, StatusText: "OK"}.Sanitized("u")
	if o.Status != 0 || o.StatusText != "" || o.URL != "u" {
		t.Fatalf("unexpected outcome %+v", o)
	}
	o = Outcome{}.Sanitized("u")
	if o.Kind != KindMessagingError {
		t.Fatalf("expected unknown failure to become messaging error, got %s", o.Kind)
	}
}

func TestSanitizedHTTPErrorNeedsStatus(t *testing.T) {
	o := Outcome{Kind: KindHTTPError, StatusText: "Forbidden"}.Sanitized("u")
	if o.Kind != KindMessagingError || o.Status != 0 || o.StatusText != "" {
		t.Fatalf("unexpected outcome %+v", o)
	}
	o = Outcome{Kind: KindHTTPError, Status: 403, StatusText: "Forbidden"}.Sanitized("u")
	if o.Kind != KindHTTPError || o.Status != 403 {
		t.Fatalf("unexpected outcome %+v", o)
	}
}

func TestCodeOf(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", &Error{Code: CodeWrongHost})
	if CodeOf(err) != CodeWrongHost {
		t.Fatalf("got %s", CodeOf(err))
	}
	if CodeOf(errors.New("boom")) != CodeUnexpected {
		t.Fatal("plain errors should be unexpected")
	}
}
