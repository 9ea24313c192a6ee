// Package aggregate fetches a set of views through one transport and merges
// the successful fragments into a single provider object.
package aggregate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/sw33tLie/leaguebundle/internal/utils"
	"github.com/sw33tLie/leaguebundle/pkg/espn"
	"github.com/sw33tLie/leaguebundle/pkg/fetch"
	"github.com/sw33tLie/leaguebundle/pkg/transport"
)

// Result partitions the requested views: every view is in exactly one of
// Succeeded or Failures.
type Result struct {
	Transport string
	Succeeded []espn.View
	// Fragments holds each succeeded view's response as received, unmerged.
	Fragments map[espn.View]json.RawMessage
	Combined  map[string]interface{}
	Failures  []fetch.ViewFailure
}

// Run issues requests through t, in one call when t is batched and one view
// at a time otherwise.
func Run(ctx context.Context, t transport.Transport, requests []espn.ViewRequest) *Result {
	urls := make([]string, len(requests))
	for i, r := range requests {
		urls[i] = r.URL
	}

	var outcomes []fetch.Outcome
	if t.Batched() {
		outcomes = t.FetchMany(ctx, urls)
	} else {
		outcomes = make([]fetch.Outcome, 0, len(urls))
		for _, u := range urls {
			one := t.FetchMany(ctx, []string{u})
			if len(one) == 0 {
				one = []fetch.Outcome{fetch.Failure(u, fetch.KindMessagingError, "transport returned no result")}
			}
			outcomes = append(outcomes, one[0])
		}
	}

	res := &Result{
		Transport: t.Name(),
		Fragments: make(map[espn.View]json.RawMessage),
		Combined:  make(map[string]interface{}),
	}
	for i, r := range requests {
		o := fetch.Failure(r.URL, fetch.KindMessagingError, "transport returned no result")
		if i < len(outcomes) {
			o = outcomes[i]
		}
		if !o.OK {
			res.Failures = append(res.Failures, fetch.ViewFailure{View: r.View, Outcome: o})
			continue
		}
		fragment, err := decodeObject(o.Data)
		if err != nil {
			res.Failures = append(res.Failures, fetch.ViewFailure{View: r.View, Outcome: fetch.Failure(r.URL, fetch.KindParseError, err.Error())})
			continue
		}
		Merge(res.Combined, fragment)
		res.Fragments[r.View] = o.Data
		res.Succeeded = append(res.Succeeded, r.View)
	}

	utils.Log.Debugf("%s: %d view(s) succeeded, %d failed", res.Transport, len(res.Succeeded), len(res.Failures))
	return res
}

func decodeObject(data []byte) (map[string]interface{}, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var v interface{}
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("decoding view fragment: %w", err)
	}
	obj, ok := v.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("view fragment is %T, not a JSON object", v)
	}
	return obj, nil
}

// Merge deep-merges src into dst. Objects merge key by key; arrays, scalars
// and nulls from src replace whatever dst held.
func Merge(dst, src map[string]interface{}) {
	for k, sv := range src {
		srcObj, srcIsObj := sv.(map[string]interface{})
		dstObj, dstIsObj := dst[k].(map[string]interface{})
		if srcIsObj && dstIsObj {
			Merge(dstObj, srcObj)
			continue
		}
		if srcIsObj {
			fresh := make(map[string]interface{}, len(srcObj))
			Merge(fresh, srcObj)
			dst[k] = fresh
			continue
		}
		dst[k] = sv
	}
}

// Err is nil when at least one view succeeded. Otherwise it classifies the
// batch, preferring an authentication failure over the first failure.
func (r *Result) Err() error {
	if len(r.Succeeded) > 0 {
		return nil
	}
	return fetch.Classify(r.Failures)
}

// Unreachable reports that nothing succeeded and every failure was a
// network or messaging failure, i.e. the provider was never reached.
func (r *Result) Unreachable() bool {
	if len(r.Succeeded) > 0 || len(r.Failures) == 0 {
		return false
	}
	for _, f := range r.Failures {
		if !f.Outcome.IsUnreachable() {
			return false
		}
	}
	return true
}

// AuthRejected reports that nothing succeeded and at least one view was
// rejected with 401/403.
func (r *Result) AuthRejected() bool {
	if len(r.Succeeded) > 0 {
		return false
	}
	for _, f := range r.Failures {
		if f.Outcome.IsAuthFailure() {
			return true
		}
	}
	return false
}

// CombinedJSON encodes the merged object.
func (r *Result) CombinedJSON() ([]byte, error) {
	return json.Marshal(r.Combined)
}
