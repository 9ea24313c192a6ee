package whttp

import (
	"context"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/hashicorp/go-retryablehttp"
	"golang.org/x/net/html"
)

const UserAgent = "Mozilla/5.0 (X11; Linux x86_64; rv:128.0) Gecko/20100101 Firefox/128.0"

type WHTTPHeader struct {
	Name  string
	Value string
}

type WHTTPReq struct {
	URL     string
	Method  string
	Headers []WHTTPHeader
	Body    string
}

type WHTTPRes struct {
	StatusCode int
	StatusText string
	Body       []byte
}

// SendHTTPRequest performs wReq through client. Whatever retry policy the
// client carries applies; the last response is returned as is.
func SendHTTPRequest(ctx context.Context, wReq *WHTTPReq, client *retryablehttp.Client) (*WHTTPRes, error) {
	if client == nil {
		client = retryablehttp.NewClient()
		client.RetryMax = 0
		client.Logger = nil
	}

	var body interface{}
	if wReq.Body != "" {
		body = wReq.Body
	}
	method := wReq.Method
	if method == "" {
		method = http.MethodGet
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, method, wReq.URL, body)
	if err != nil {
		return nil, err
	}

	req.Header.Set("User-Agent", UserAgent)
	req.Header.Set("Cache-Control", "no-transform")
	req.Header.Set("Accept-Language", "en")

	for _, h := range wReq.Headers {
		req.Header.Set(h.Name, h.Value)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	return &WHTTPRes{
		StatusCode: resp.StatusCode,
		StatusText: StatusText(resp),
		Body:       bodyBytes,
	}, nil
}

// StatusText returns the reason phrase of resp, e.g. "Not Found".
func StatusText(resp *http.Response) string {
	text := strings.TrimSpace(strings.TrimPrefix(resp.Status, strconv.Itoa(resp.StatusCode)))
	if text == "" {
		return http.StatusText(resp.StatusCode)
	}
	return text
}

// HTMLTitle returns the <title> of an HTML document, cleaned up for log output.
func HTMLTitle(body []byte) (string, bool) {
	root, err := html.Parse(strings.NewReader(string(body)))
	if err != nil {
		return "", false
	}
	sel := goquery.NewDocumentFromNode(root).Find("title").First()
	if sel.Length() == 0 {
		return "", false
	}
	title := strings.ReplaceAll(strings.ReplaceAll(sel.Text(), "\n", ""), "\r", "")
	return strings.ToValidUTF8(strings.TrimSpace(title), ""), true
}
