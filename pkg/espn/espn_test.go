package espn

import (
	"reflect"
	"testing"
	"time"
)

func TestViewRequests(t *testing.T) {
	reqs := Builder{}.ViewRequests("12345", 2023, []View{ViewSettings, ViewTeam})
	expect := []ViewRequest{
		{View: ViewSettings, URL: "https://fantasy.espn.com/apis/v3/games/ffl/seasons/2023/segments/0/leagues/12345?view=mSettings"},
		{View: ViewTeam, URL: "https://fantasy.espn.com/apis/v3/games/ffl/seasons/2023/segments/0/leagues/12345?view=mTeam"},
	}
	if !reflect.DeepEqual(reqs, expect) {
		t.Fatalf("unexpected requests.\nwant: %#v\ngot:  %#v", expect, reqs)
	}
}

func TestBatchURL(t *testing.T) {
	got := Builder{Origin: "http://127.0.0.1:9000/"}.BatchURL("7", 2024, []View{ViewTeam, ViewRoster})
	want := "http://127.0.0.1:9000/apis/v3/games/ffl/seasons/2024/segments/0/leagues/7?view=mTeam&view=mRoster"
	if got != want {
		t.Fatalf("want %s, got %s", want, got)
	}
}

func TestSameOrigin(t *testing.T) {
	tests := []struct {
		url  string
		want bool
	}{
		{"https://fantasy.espn.com/apis/v3/games/ffl", true},
		{"https://FANTASY.espn.com:443/x", true},
		{"http://fantasy.espn.com/x", false},
		{"https://fantasy.espn.com.evil.example/x", false},
		{"https://evil.example/api", false},
		{"not a url", false},
	}
	for _, tc := range tests {
		if got := SameOrigin(tc.url, Origin); got != tc.want {
			t.Errorf("SameOrigin(%q) = %v, want %v", tc.url, got, tc.want)
		}
	}
}

func TestDefaultSeason(t *testing.T) {
	if got := DefaultSeason(time.Date(2024, time.June, 30, 23, 0, 0, 0, time.UTC)); got != 2023 {
		t.Fatalf("june: got %d", got)
	}
	if got := DefaultSeason(time.Date(2024, time.July, 1, 0, 0, 0, 0, time.UTC)); got != 2024 {
		t.Fatalf("july: got %d", got)
	}
}

func TestParseViews(t *testing.T) {
	views, err := ParseViews("mteam, mSettings,mTeam")
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(views, []View{ViewTeam, ViewSettings}) {
		t.Fatalf("got %v", views)
	}
	if _, err := ParseViews("mPlayers"); err == nil {
		t.Fatal("expected error for unknown view")
	}
	all, _ := ParseViews("")
	if len(all) != 6 {
		t.Fatalf("expected all views, got %v", all)
	}
}

func TestLeagueIDFromURL(t *testing.T) {
	id, ok := LeagueIDFromURL("https://fantasy.espn.com/football/league?leagueId=12345&seasonId=2023")
	if !ok || id != "12345" {
		t.Fatalf("got %q %v", id, ok)
	}
	if _, ok := LeagueIDFromURL("https://fantasy.espn.com/football/"); ok {
		t.Fatal("expected no league id")
	}
}
