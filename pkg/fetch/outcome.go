package fetch

import (
	"encoding/json"
	"net/http"

	"github.com/sw33tLie/leaguebundle/pkg/espn"
)

// Kind classifies a failed fetch of a single URL.
type Kind string

const (
	KindCrossOrigin        Kind = "CROSS_ORIGIN"
	KindHTTPError          Kind = "HTTP_ERROR"
	KindParseError         Kind = "PARSE_ERROR"
	KindNetworkError       Kind = "NETWORK_ERROR"
	KindMessagingError     Kind = "MESSAGING_ERROR"
	KindMissingCredentials Kind = "MISSING_CREDENTIALS"
)

// Outcome is the result of fetching one URL. Exactly one of the success or
// failure shapes is populated; Status and StatusText are set only for KindHTTPError.
// The JSON form is the wire shape exchanged with the in-page agent.
type Outcome struct {
	OK         bool            `json:"ok"`
	URL        string          `json:"url"`
	Data       json.RawMessage `json:"data,omitempty"`
	Transport  string          `json:"path,omitempty"`
	Kind       Kind            `json:"code,omitempty"`
	Status     int             `json:"status,omitempty"`
	StatusText string          `json:"statusText,omitempty"`
	Message    string          `json:"message,omitempty"`
}

func Success(url string, data json.RawMessage, transport string) Outcome {
	return Outcome{OK: true, URL: url, Data: data, Transport: transport}
}

func Failure(url string, kind Kind, message string) Outcome {
	return Outcome{URL: url, Kind: kind, Message: message}
}

func HTTPFailure(url string, status int, statusText string) Outcome {
	if statusText == "" {
		statusText = http.StatusText(status)
	}
	return Outcome{URL: url, Kind: KindHTTPError, Status: status, StatusText: statusText}
}

// Sanitized enforces the shape invariants on outcomes received from outside the process.
func (o Outcome) Sanitized(url string) Outcome {
	if o.URL == "" {
		o.URL = url
	}
	if o.OK {
		return Outcome{OK: true, URL: o.URL, Data: o.Data, Transport: o.Transport}
	}
	o.Data = nil
	o.Transport = ""
	if o.Kind == "" {
		o.Kind = KindMessagingError
	}
	// An HTTP failure without a status cannot be classified.
	if o.Kind == KindHTTPError && o.Status == 0 {
		o.Kind = KindMessagingError
		o.Message = "agent reported an HTTP error without a status"
	}
	if o.Kind != KindHTTPError {
		o.Status = 0
		o.StatusText = ""
	}
	return o
}

// IsAuthFailure reports an HTTP 401 or 403.
func (o Outcome) IsAuthFailure() bool {
	return !o.OK && o.Kind == KindHTTPError && (o.Status == http.StatusUnauthorized || o.Status == http.StatusForbidden)
}

func (o Outcome) IsRateLimited() bool {
	return !o.OK && o.Kind == KindHTTPError && o.Status == http.StatusTooManyRequests
}

// IsUnreachable reports failures where the request never got an answer from the provider.
func (o Outcome) IsUnreachable() bool {
	return !o.OK && (o.Kind == KindNetworkError || o.Kind == KindMessagingError)
}

// ViewFailure attaches the failed outcome to the view it was fetching.
type ViewFailure struct {
	View    espn.View `json:"view"`
	Outcome Outcome   `json:"outcome"`
}
