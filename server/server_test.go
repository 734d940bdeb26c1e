package server

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/taro8383/duracalm-proxy/core"
	"github.com/taro8383/duracalm-proxy/proxy"
)

type scriptedDoer struct {
	requests  []*http.Request
	bodies    [][]byte
	responses []*http.Response
	errs      []error
}

func (d *scriptedDoer) Do(req *http.Request) (*http.Response, error) {
	index := len(d.requests)
	d.requests = append(d.requests, req)
	var body []byte
	if req.Body != nil {
		raw, err := io.ReadAll(req.Body)
		if err != nil {
			return nil, err
		}
		body = raw
	}
	d.bodies = append(d.bodies, body)
	if index < len(d.errs) && d.errs[index] != nil {
		return nil, d.errs[index]
	}
	if index < len(d.responses) {
		return d.responses[index], nil
	}
	return upstream(http.StatusOK, `{}`), nil
}

func upstream(status int, payload string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Header:     http.Header{"Content-Type": []string{"application/json"}},
		Body:       io.NopCloser(bytes.NewBufferString(payload)),
	}
}

func newTestServer(t *testing.T, doer *scriptedDoer) *httptest.Server {
	t.Helper()
	cfg := core.DefaultConfig()
	cfg.OAuth.ClientID = "client_abc"
	cfg.OAuth.ClientSecret = "secret_xyz"
	cfg.OAuth.RedirectURI = "http://localhost:3001/auth/callback"

	service, err := proxy.New(cfg, proxy.WithHTTPClient(doer))
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	ts := httptest.NewServer(New(service, nil).Handler())
	t.Cleanup(ts.Close)
	return ts
}

func getJSON(t *testing.T, rawURL string) (int, map[string]any) {
	t.Helper()
	res, err := http.Get(rawURL)
	if err != nil {
		t.Fatalf("get %s: %v", rawURL, err)
	}
	defer res.Body.Close()
	payload := map[string]any{}
	if err := json.NewDecoder(res.Body).Decode(&payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return res.StatusCode, payload
}

func postJSON(t *testing.T, rawURL string, body any) (int, map[string]any) {
	t.Helper()
	raw, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal body: %v", err)
	}
	res, err := http.Post(rawURL, "application/json", bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("post %s: %v", rawURL, err)
	}
	defer res.Body.Close()
	payload := map[string]any{}
	if err := json.NewDecoder(res.Body).Decode(&payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return res.StatusCode, payload
}

func TestServer_Health(t *testing.T) {
	ts := newTestServer(t, &scriptedDoer{})

	status, payload := getJSON(t, ts.URL+"/")
	if status != http.StatusOK {
		t.Fatalf("expected 200, got %d", status)
	}
	endpoints, ok := payload["endpoints"].([]any)
	if !ok || len(endpoints) == 0 {
		t.Fatalf("expected endpoint listing, got %v", payload)
	}
}

func TestServer_AuthStartValidation(t *testing.T) {
	ts := newTestServer(t, &scriptedDoer{})

	status, payload := getJSON(t, ts.URL+"/auth/start")
	if status != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", status)
	}
	if payload["error"] == nil {
		t.Fatalf("expected error envelope, got %v", payload)
	}
}

func TestServer_AuthFlowRoundTrip(t *testing.T) {
	doer := &scriptedDoer{responses: []*http.Response{
		upstream(http.StatusOK, `{"access_token":"shpat_live","scope":"read_products"}`),
	}}
	ts := newTestServer(t, doer)

	status, payload := getJSON(t, ts.URL+"/auth/start?shop=shop.example.com")
	if status != http.StatusOK {
		t.Fatalf("auth start: expected 200, got %d (%v)", status, payload)
	}
	oauthURL, _ := payload["oauthUrl"].(string)
	state, _ := payload["state"].(string)
	if oauthURL == "" || state == "" {
		t.Fatalf("expected oauthUrl and state, got %v", payload)
	}
	parsed, err := url.Parse(oauthURL)
	if err != nil || parsed.Path != "/admin/oauth/authorize" {
		t.Fatalf("unexpected oauth url %q", oauthURL)
	}

	// callback renders an HTML page echoing the code
	res, err := http.Get(ts.URL + "/auth/callback?shop=shop.example.com&code=auth_code_1&state=" + url.QueryEscape(state))
	if err != nil {
		t.Fatalf("callback: %v", err)
	}
	page, err := io.ReadAll(res.Body)
	res.Body.Close()
	if err != nil {
		t.Fatalf("read callback page: %v", err)
	}
	if res.StatusCode != http.StatusOK {
		t.Fatalf("callback: expected 200, got %d (%s)", res.StatusCode, page)
	}
	if !strings.Contains(res.Header.Get("Content-Type"), "text/html") {
		t.Fatalf("expected html callback page, got %q", res.Header.Get("Content-Type"))
	}
	if !strings.Contains(string(page), "auth_code_1") {
		t.Fatalf("expected code echoed on page, got %s", page)
	}

	// replaying the state fails
	replayStatus, replayPayload := getJSON(t, ts.URL+"/auth/callback?shop=shop.example.com&code=auth_code_1&state="+url.QueryEscape(state))
	if replayStatus != http.StatusBadRequest {
		t.Fatalf("expected replay to fail with 400, got %d (%v)", replayStatus, replayPayload)
	}

	// exchange relays the token payload verbatim
	exchangeStatus, exchangePayload := postJSON(t, ts.URL+"/auth/exchange", map[string]string{
		"code":          "auth_code_1",
		"client_id":     "client_abc",
		"client_secret": "secret_xyz",
		"shop":          "shop.example.com",
	})
	if exchangeStatus != http.StatusOK {
		t.Fatalf("exchange: expected 200, got %d (%v)", exchangeStatus, exchangePayload)
	}
	if exchangePayload["access_token"] != "shpat_live" {
		t.Fatalf("expected verbatim token payload, got %v", exchangePayload)
	}
}

func TestServer_AuthCallbackUpstreamError(t *testing.T) {
	ts := newTestServer(t, &scriptedDoer{})

	status, payload := getJSON(t, ts.URL+"/auth/callback?error=access_denied&error_description=user+declined")
	if status != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", status)
	}
	if payload["error"] != "access_denied" {
		t.Fatalf("expected upstream error echoed verbatim, got %v", payload)
	}
	if payload["error_description"] != "user declined" {
		t.Fatalf("expected upstream error_description echoed verbatim, got %v", payload)
	}
}

func TestServer_AuthExchangeMissingFields(t *testing.T) {
	ts := newTestServer(t, &scriptedDoer{})

	status, payload := postJSON(t, ts.URL+"/auth/exchange", map[string]string{
		"code": "auth_code_1",
	})
	if status != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", status)
	}
	message, _ := payload["error"].(string)
	if !strings.Contains(message, "client_id") || !strings.Contains(message, "shop") {
		t.Fatalf("expected missing field names, got %q", message)
	}
}

func TestServer_AuthExchangeUpstreamRejection(t *testing.T) {
	doer := &scriptedDoer{responses: []*http.Response{
		upstream(http.StatusUnauthorized, `{"error":"invalid_request"}`),
	}}
	ts := newTestServer(t, doer)

	status, payload := postJSON(t, ts.URL+"/auth/exchange", map[string]string{
		"code":          "bad_code",
		"client_id":     "client_abc",
		"client_secret": "secret_xyz",
		"shop":          "shop.example.com",
	})
	if status != http.StatusUnauthorized {
		t.Fatalf("expected the upstream 401 relayed, got %d (%v)", status, payload)
	}
	details, _ := payload["details"].(string)
	if !strings.Contains(details, "invalid_request") {
		t.Fatalf("expected verbatim upstream body in details, got %v", payload)
	}
}

func TestServer_GraphQLRelay(t *testing.T) {
	doer := &scriptedDoer{responses: []*http.Response{
		upstream(http.StatusOK, `{"data":{"shop":{"name":"Duracalm"}},"errors":null}`),
	}}
	ts := newTestServer(t, doer)

	status, payload := postJSON(t, ts.URL+"/shopify/graphql", map[string]any{
		"access_token": "shpat_test",
		"shop":         "shop.example.com",
		"query":        `{ shop { name } }`,
	})
	if status != http.StatusOK {
		t.Fatalf("expected 200, got %d (%v)", status, payload)
	}
	if _, ok := payload["data"]; !ok {
		t.Fatalf("expected relayed data, got %v", payload)
	}
	if got := doer.requests[0].Header.Get("X-Shopify-Access-Token"); got != "shpat_test" {
		t.Fatalf("access token header not forwarded, got %q", got)
	}
}

func TestServer_GraphQLMissingFields(t *testing.T) {
	ts := newTestServer(t, &scriptedDoer{})

	status, payload := postJSON(t, ts.URL+"/shopify/graphql", map[string]any{
		"shop": "shop.example.com",
	})
	if status != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", status)
	}
	message, _ := payload["error"].(string)
	if !strings.Contains(message, "access_token") || !strings.Contains(message, "query") {
		t.Fatalf("expected missing field names, got %q", message)
	}
}

func TestServer_UploadRoundTrip(t *testing.T) {
	doer := &scriptedDoer{responses: []*http.Response{
		upstream(http.StatusOK, `{"data":{"stagedUploadsCreate":{"stagedTargets":[{"url":"https://storage.example.com/upload","resourceUrl":"https://storage.example.com/tmp/hero.jpg","parameters":[{"name":"key","value":"tmp/hero.jpg"}]}],"userErrors":[]}}}`),
		upstream(http.StatusCreated, ``),
		upstream(http.StatusOK, `{"data":{"fileCreate":{"files":[{"id":"gid://shopify/MediaImage/123","preview":{"image":{"url":"https://cdn.example.com/hero.jpg"}}}],"userErrors":[]}}}`),
	}}
	ts := newTestServer(t, doer)

	status, payload := postJSON(t, ts.URL+"/shopify/upload", map[string]any{
		"access_token": "shpat_test",
		"shop":         "shop.example.com",
		"filename":     "hero.jpg",
		"mimeType":     "image/jpeg",
		"base64Data":   base64.StdEncoding.EncodeToString([]byte{0xFF, 0xD8, 0xFF}),
	})
	if status != http.StatusOK {
		t.Fatalf("expected 200, got %d (%v)", status, payload)
	}
	if payload["success"] != true {
		t.Fatalf("expected success envelope, got %v", payload)
	}
	file, _ := payload["file"].(map[string]any)
	if file["id"] != "gid://shopify/MediaImage/123" {
		t.Fatalf("unexpected file payload %v", file)
	}
	if file["url"] != "https://cdn.example.com/hero.jpg" {
		t.Fatalf("unexpected url %v", file)
	}

	// the signed URL received the multipart body, not JSON
	if len(doer.requests) != 3 {
		t.Fatalf("expected 3 upstream calls, got %d", len(doer.requests))
	}
	binary := doer.requests[1]
	if binary.URL.String() != "https://storage.example.com/upload" {
		t.Fatalf("unexpected binary target %q", binary.URL.String())
	}
	if !strings.HasPrefix(binary.Header.Get("Content-Type"), "multipart/form-data") {
		t.Fatalf("expected multipart body, got %q", binary.Header.Get("Content-Type"))
	}
}

func TestServer_UploadMissingFields(t *testing.T) {
	ts := newTestServer(t, &scriptedDoer{})

	status, payload := postJSON(t, ts.URL+"/shopify/upload", map[string]any{
		"shop": "shop.example.com",
	})
	if status != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", status)
	}
	message, _ := payload["error"].(string)
	for _, field := range []string{"access_token", "filename", "base64Data"} {
		if !strings.Contains(message, field) {
			t.Fatalf("expected %s in error message, got %q", field, message)
		}
	}
}

func TestServer_UploadInvalidBase64(t *testing.T) {
	ts := newTestServer(t, &scriptedDoer{})

	status, payload := postJSON(t, ts.URL+"/shopify/upload", map[string]any{
		"access_token": "shpat_test",
		"shop":         "shop.example.com",
		"filename":     "hero.jpg",
		"base64Data":   "%%%not-base64%%%",
	})
	if status != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d (%v)", status, payload)
	}
}

func TestServer_UploadFailureCarriesPhase(t *testing.T) {
	doer := &scriptedDoer{responses: []*http.Response{
		upstream(http.StatusOK, `{"data":{"stagedUploadsCreate":{"stagedTargets":[],"userErrors":[{"field":["input"],"message":"file too large"}]}}}`),
	}}
	ts := newTestServer(t, doer)

	status, payload := postJSON(t, ts.URL+"/shopify/upload", map[string]any{
		"access_token": "shpat_test",
		"shop":         "shop.example.com",
		"filename":     "hero.jpg",
		"base64Data":   base64.StdEncoding.EncodeToString([]byte{1}),
	})
	if status != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d (%v)", status, payload)
	}
	details, _ := payload["details"].(string)
	if !strings.Contains(details, "file too large") {
		t.Fatalf("expected upstream message in details, got %v", payload)
	}
}

func TestServer_UploadNullPreview(t *testing.T) {
	doer := &scriptedDoer{responses: []*http.Response{
		upstream(http.StatusOK, `{"data":{"stagedUploadsCreate":{"stagedTargets":[{"url":"https://storage.example.com/upload","resourceUrl":"https://storage.example.com/tmp/hero.jpg","parameters":[]}],"userErrors":[]}}}`),
		upstream(http.StatusCreated, ``),
		upstream(http.StatusOK, `{"data":{"fileCreate":{"files":[{"id":"gid://shopify/MediaImage/7"}],"userErrors":[]}}}`),
	}}
	ts := newTestServer(t, doer)

	status, payload := postJSON(t, ts.URL+"/shopify/upload", map[string]any{
		"access_token": "shpat_test",
		"shop":         "shop.example.com",
		"filename":     "hero.jpg",
		"base64Data":   base64.StdEncoding.EncodeToString([]byte{1, 2}),
	})
	if status != http.StatusOK {
		t.Fatalf("expected 200, got %d (%v)", status, payload)
	}
	file, _ := payload["file"].(map[string]any)
	value, present := file["previewUrl"]
	if !present || value != nil {
		t.Fatalf("expected previewUrl to be null, got %v", file)
	}
	if file["url"] != "https://storage.example.com/tmp/hero.jpg" {
		t.Fatalf("expected resourceUrl fallback, got %v", file)
	}
}

func TestServer_CORSPreflight(t *testing.T) {
	ts := newTestServer(t, &scriptedDoer{})

	req, err := http.NewRequest(http.MethodOptions, ts.URL+"/shopify/graphql", nil)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	res, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("preflight: %v", err)
	}
	res.Body.Close()
	if res.StatusCode != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", res.StatusCode)
	}
	if res.Header.Get("Access-Control-Allow-Origin") != "*" {
		t.Fatalf("expected permissive CORS header")
	}
}
