package oauth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"

	"github.com/taro8383/duracalm-proxy/core"
	"github.com/taro8383/duracalm-proxy/transport"
)

const defaultTokenRequestTimeout = 30 * time.Second

// BeginAuthRequest starts the authorization dance for one shop. ClientID may
// be supplied per call; when empty the flow's configured app credential is
// used.
type BeginAuthRequest struct {
	ShopDomain string
	ClientID   string
}

// BeginAuthResponse is the redirect target for the operator's browser plus
// the CSRF state bound to it.
type BeginAuthResponse struct {
	AuthorizeURL string
	State        string
	ShopDomain   string
}

// CallbackRequest carries the query parameters the platform sends back to
// the redirect URI.
type CallbackRequest struct {
	Shop             string
	Code             string
	State            string
	ErrorCode        string
	ErrorDescription string
}

// CallbackResult is a validated callback: the state token was consumed and
// the authorization code is ready for exchange.
type CallbackResult struct {
	Code       string
	ShopDomain string
}

// ExchangeRequest trades an authorization code for an access token. Client
// credentials may be supplied per call; empty fields fall back to the flow's
// configured app credentials.
type ExchangeRequest struct {
	ShopDomain   string
	ClientID     string
	ClientSecret string
	Code         string
}

// ExchangeResult carries the parsed credential and the raw token-endpoint
// payload so callers can relay it verbatim.
type ExchangeResult struct {
	Credential core.AccessCredential
	Payload    map[string]any
}

// Flow drives the authorization-code dance against a shop's OAuth endpoints.
type Flow struct {
	clientID     string
	clientSecret string
	redirectURI  string
	scopes       string
	states       core.StateStore
	rest         *transport.RESTAdapter
	timeout      time.Duration
}

func NewFlow(cfg core.Config, states core.StateStore, client transport.HTTPDoer) *Flow {
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = defaultTokenRequestTimeout
	}
	if states == nil {
		states = core.NewMemoryStateStore(cfg.StateTTL)
	}
	return &Flow{
		clientID:     strings.TrimSpace(cfg.OAuth.ClientID),
		clientSecret: strings.TrimSpace(cfg.OAuth.ClientSecret),
		redirectURI:  strings.TrimSpace(cfg.OAuth.RedirectURI),
		scopes:       cfg.ScopeList(),
		states:       states,
		rest:         transport.NewRESTAdapter(client),
		timeout:      timeout,
	}
}

// BeginAuth issues a fresh state token and builds the authorization URL the
// browser should be sent to.
func (f *Flow) BeginAuth(ctx context.Context, req BeginAuthRequest) (BeginAuthResponse, error) {
	if f == nil {
		return BeginAuthResponse{}, core.InternalError("oauth: flow is not configured", nil)
	}
	domain, err := core.NormalizeShopDomain(req.ShopDomain)
	if err != nil {
		return BeginAuthResponse{}, core.WrapError(err, goerrors.CategoryBadInput,
			"oauth: invalid shop parameter", http.StatusBadRequest, core.ProxyErrorBadInput,
			map[string]any{"field": "shop"})
	}
	clientID := strings.TrimSpace(req.ClientID)
	if clientID == "" {
		clientID = f.clientID
	}
	if clientID == "" {
		return BeginAuthResponse{}, core.BadInputError("oauth: client_id is required",
			map[string]any{"field": "client_id"})
	}

	state, err := f.states.Issue(ctx, domain)
	if err != nil {
		return BeginAuthResponse{}, core.WrapError(err, goerrors.CategoryInternal,
			"oauth: issue state token", http.StatusInternalServerError, core.ProxyErrorInternal, nil)
	}

	base, err := core.AuthorizeURL(domain)
	if err != nil {
		return BeginAuthResponse{}, core.WrapError(err, goerrors.CategoryBadInput,
			"oauth: build authorize url", http.StatusBadRequest, core.ProxyErrorBadInput, nil)
	}

	values := url.Values{}
	values.Set("client_id", clientID)
	values.Set("scope", f.scopes)
	if f.redirectURI != "" {
		values.Set("redirect_uri", f.redirectURI)
	}
	values.Set("state", state)

	return BeginAuthResponse{
		AuthorizeURL: base + "?" + values.Encode(),
		State:        state,
		ShopDomain:   domain,
	}, nil
}

// HandleCallback validates the redirect from the platform. An upstream error
// parameter fails the flow without touching the state store; otherwise the
// state token is consumed exactly once.
func (f *Flow) HandleCallback(ctx context.Context, req CallbackRequest) (CallbackResult, error) {
	if f == nil {
		return CallbackResult{}, core.InternalError("oauth: flow is not configured", nil)
	}
	if errorCode := strings.TrimSpace(req.ErrorCode); errorCode != "" {
		metadata := map[string]any{"upstream_error": errorCode}
		if description := strings.TrimSpace(req.ErrorDescription); description != "" {
			metadata["upstream_error_description"] = description
		}
		return CallbackResult{}, core.NewError(
			"oauth: authorization was denied upstream",
			goerrors.CategoryAuth,
			http.StatusBadRequest,
			core.ProxyErrorUpstreamAuth,
			metadata,
		)
	}

	record, err := f.states.Consume(ctx, req.State)
	if err != nil {
		return CallbackResult{}, err
	}

	code := strings.TrimSpace(req.Code)
	if code == "" {
		return CallbackResult{}, core.BadInputError("oauth: code parameter is required",
			map[string]any{"field": "code"})
	}

	domain := record.ShopDomain
	if shop := strings.TrimSpace(req.Shop); shop != "" {
		if normalized, err := core.NormalizeShopDomain(shop); err == nil {
			domain = normalized
		}
	}

	return CallbackResult{Code: code, ShopDomain: domain}, nil
}

// Exchange posts the authorization code to the shop's token endpoint. The
// request body is JSON, matching what the platform accepts for this flow.
func (f *Flow) Exchange(ctx context.Context, req ExchangeRequest) (ExchangeResult, error) {
	if f == nil || f.rest == nil {
		return ExchangeResult{}, core.InternalError("oauth: flow is not configured", nil)
	}
	domain, err := core.NormalizeShopDomain(req.ShopDomain)
	if err != nil {
		return ExchangeResult{}, core.WrapError(err, goerrors.CategoryBadInput,
			"oauth: invalid shop parameter", http.StatusBadRequest, core.ProxyErrorBadInput,
			map[string]any{"field": "shop"})
	}
	clientID := strings.TrimSpace(req.ClientID)
	if clientID == "" {
		clientID = f.clientID
	}
	clientSecret := strings.TrimSpace(req.ClientSecret)
	if clientSecret == "" {
		clientSecret = f.clientSecret
	}
	code := strings.TrimSpace(req.Code)
	switch {
	case clientID == "":
		return ExchangeResult{}, core.BadInputError("oauth: client_id is required",
			map[string]any{"field": "client_id"})
	case clientSecret == "":
		return ExchangeResult{}, core.BadInputError("oauth: client_secret is required",
			map[string]any{"field": "client_secret"})
	case code == "":
		return ExchangeResult{}, core.BadInputError("oauth: code is required",
			map[string]any{"field": "code"})
	}

	endpoint, err := core.TokenURL(domain)
	if err != nil {
		return ExchangeResult{}, core.WrapError(err, goerrors.CategoryBadInput,
			"oauth: build token url", http.StatusBadRequest, core.ProxyErrorBadInput, nil)
	}

	body, err := json.Marshal(map[string]string{
		"client_id":     clientID,
		"client_secret": clientSecret,
		"code":          code,
	})
	if err != nil {
		return ExchangeResult{}, core.WrapError(err, goerrors.CategoryInternal,
			"oauth: marshal token request", http.StatusInternalServerError, core.ProxyErrorInternal, nil)
	}

	response, err := f.rest.Do(ctx, transport.Request{
		Method:  http.MethodPost,
		URL:     endpoint,
		Headers: map[string]string{"Content-Type": "application/json"},
		Body:    body,
		Timeout: f.timeout,
	})
	if err != nil {
		return ExchangeResult{}, core.WrapError(err, goerrors.CategoryExternal,
			"oauth: token endpoint unreachable", http.StatusInternalServerError,
			core.ProxyErrorTokenExchangeFailed, map[string]any{"endpoint": endpoint})
	}
	if response.StatusCode < 200 || response.StatusCode > 299 {
		// relay the token endpoint's own status
		return ExchangeResult{}, core.NewError(
			"oauth: token exchange rejected",
			goerrors.CategoryAuth,
			response.StatusCode,
			core.ProxyErrorTokenExchangeFailed,
			map[string]any{
				"status_code": response.StatusCode,
				"details":     string(response.Body),
			},
		)
	}

	payload := map[string]any{}
	if len(response.Body) > 0 {
		if err := json.Unmarshal(response.Body, &payload); err != nil {
			return ExchangeResult{}, core.WrapError(err, goerrors.CategoryExternal,
				"oauth: decode token response", http.StatusInternalServerError,
				core.ProxyErrorTokenExchangeFailed, map[string]any{"status_code": response.StatusCode})
		}
	}

	token, _ := payload["access_token"].(string)
	if strings.TrimSpace(token) == "" {
		return ExchangeResult{}, core.NewError(
			"oauth: token response is missing access_token",
			goerrors.CategoryExternal,
			http.StatusInternalServerError,
			core.ProxyErrorTokenExchangeFailed,
			map[string]any{"status_code": response.StatusCode},
		)
	}
	scope, _ := payload["scope"].(string)

	return ExchangeResult{
		Credential: core.AccessCredential{Token: token, Scope: scope},
		Payload:    payload,
	}, nil
}
