// Package transport implements the strategies used to fetch provider JSON on
// behalf of the logged-in user.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/sw33tLie/leaguebundle/pkg/espn"
	"github.com/sw33tLie/leaguebundle/pkg/fetch"
	"github.com/sw33tLie/leaguebundle/pkg/whttp"
)

const (
	NameMessaging    = "content-script"
	NameInjected     = "main-world"
	NameCookieHeader = "cookie-header"
)

// Transport retrieves JSON for a set of URLs, authenticated as the current user.
// FetchMany returns exactly one outcome per URL, in input order. HTTP error
// statuses are reported, never retried.
type Transport interface {
	Name() string
	// Batched reports whether one FetchMany call with many URLs costs a single round trip.
	Batched() bool
	FetchMany(ctx context.Context, urls []string) []fetch.Outcome
}

func originOrDefault(origin string) string {
	if origin == "" {
		return espn.Origin
	}
	return origin
}

func crossOrigin(url string) fetch.Outcome {
	return fetch.Failure(url, fetch.KindCrossOrigin, "URL origin mismatch")
}

// decodeResponse turns a completed HTTP exchange into an outcome.
func decodeResponse(url string, status int, statusText string, body []byte, transport string) fetch.Outcome {
	if status < 200 || status > 299 {
		return fetch.HTTPFailure(url, status, statusText)
	}
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] != '{' || !json.Valid(trimmed) {
		msg := "response body is not a JSON object"
		if title, ok := whttp.HTMLTitle(trimmed); ok && title != "" {
			msg = fmt.Sprintf("%s (got HTML page %q)", msg, title)
		}
		return fetch.Failure(url, fetch.KindParseError, msg)
	}
	return fetch.Success(url, json.RawMessage(trimmed), transport)
}

// padOutcomes makes results line up with urls, filling gaps with failures.
func padOutcomes(urls []string, results []fetch.Outcome, kind fetch.Kind, msg string) []fetch.Outcome {
	out := make([]fetch.Outcome, len(urls))
	for i, u := range urls {
		if i < len(results) {
			out[i] = results[i].Sanitized(u)
			continue
		}
		out[i] = fetch.Failure(u, kind, msg)
	}
	return out
}

func failAll(urls []string, kind fetch.Kind, msg string) []fetch.Outcome {
	return padOutcomes(urls, nil, kind, msg)
}
