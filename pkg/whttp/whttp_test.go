package whttp

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestSendHTTPRequestSetsHeaders(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Cookie") != "SWID={abc}" {
			t.Errorf("cookie header not forwarded: %q", r.Header.Get("Cookie"))
		}
		if r.Header.Get("User-Agent") != UserAgent {
			t.Errorf("unexpected user agent %q", r.Header.Get("User-Agent"))
		}
		w.WriteHeader(http.StatusTeapot)
		w.Write([]byte("short and stout"))
	}))
	defer srv.Close()

	res, err := SendHTTPRequest(context.Background(), &WHTTPReq{
		URL:     srv.URL,
		Headers: []WHTTPHeader{{Name: "Cookie", Value: "SWID={abc}"}},
	}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if res.StatusCode != http.StatusTeapot || res.StatusText != "I'm a teapot" {
		t.Fatalf("unexpected status %d %q", res.StatusCode, res.StatusText)
	}
	if string(res.Body) != "short and stout" {
		t.Fatalf("unexpected body %q", res.Body)
	}
}

func TestHTMLTitle(t *testing.T) {
	title, ok := HTMLTitle([]byte("<html><head><title>\n ESPN Fan Account \n</title></head></html>"))
	if !ok || title != "ESPN Fan Account" {
		t.Fatalf("got %q %v", title, ok)
	}
	if _, ok := HTMLTitle([]byte("{\"teams\":[]}")); ok {
		t.Fatal("did not expect a title in JSON")
	}
}
