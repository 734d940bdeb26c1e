package transport

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"

	"github.com/taro8383/duracalm-proxy/core"
)

const accessTokenHeader = "X-Shopify-Access-Token"

// GraphQLRequest is one Admin API GraphQL call on behalf of a shop.
type GraphQLRequest struct {
	Credential core.AccessCredential
	ShopDomain string
	Query      string
	Variables  map[string]any
	Timeout    time.Duration
}

// GraphQLResult is the upstream response, decoded but otherwise untouched.
// GraphQL-level errors ride inside Payload; they are the caller's to
// interpret.
type GraphQLResult struct {
	StatusCode int
	Payload    map[string]any
}

// GraphQLClient relays GraphQL documents to a shop's Admin API endpoint,
// authenticating with the per-request access token.
type GraphQLClient struct {
	REST       *RESTAdapter
	APIVersion string
}

func NewGraphQLClient(client HTTPDoer, apiVersion string) *GraphQLClient {
	return &GraphQLClient{
		REST:       NewRESTAdapter(client),
		APIVersion: strings.TrimSpace(apiVersion),
	}
}

func (c *GraphQLClient) Execute(ctx context.Context, req GraphQLRequest) (GraphQLResult, error) {
	if c == nil || c.REST == nil {
		return GraphQLResult{}, transportError(
			"transport: graphql client requires a rest adapter",
			goerrors.CategoryInternal,
			http.StatusInternalServerError,
			nil,
		)
	}
	if err := req.Credential.Validate(); err != nil {
		return GraphQLResult{}, transportWrapError(
			err,
			goerrors.CategoryBadInput,
			"transport: access token is required",
			http.StatusBadRequest,
			nil,
		)
	}
	query := strings.TrimSpace(req.Query)
	if query == "" {
		return GraphQLResult{}, transportError(
			"transport: graphql query is required",
			goerrors.CategoryBadInput,
			http.StatusBadRequest,
			nil,
		)
	}

	endpoint, err := core.GraphQLURL(req.ShopDomain, c.APIVersion)
	if err != nil {
		return GraphQLResult{}, transportWrapError(
			err,
			goerrors.CategoryBadInput,
			"transport: resolve graphql endpoint",
			http.StatusBadRequest,
			map[string]any{"shop": strings.TrimSpace(req.ShopDomain)},
		)
	}

	payload := map[string]any{"query": query}
	if req.Variables != nil {
		payload["variables"] = req.Variables
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return GraphQLResult{}, transportWrapError(
			err,
			goerrors.CategoryBadInput,
			"transport: marshal graphql payload",
			http.StatusBadRequest,
			map[string]any{"endpoint": endpoint},
		)
	}

	response, err := c.REST.Do(ctx, Request{
		Method: http.MethodPost,
		URL:    endpoint,
		Headers: map[string]string{
			"Content-Type":    "application/json",
			accessTokenHeader: req.Credential.Token,
		},
		Body:    body,
		Timeout: req.Timeout,
	})
	if err != nil {
		return GraphQLResult{}, transportWrapError(
			err,
			goerrors.CategoryExternal,
			"transport: graphql request failed",
			http.StatusInternalServerError,
			map[string]any{"endpoint": endpoint},
		)
	}

	decoded := map[string]any{}
	if len(response.Body) > 0 {
		if err := json.Unmarshal(response.Body, &decoded); err != nil {
			return GraphQLResult{}, transportWrapError(
				err,
				goerrors.CategoryExternal,
				"transport: decode graphql response",
				http.StatusInternalServerError,
				map[string]any{
					"endpoint":    endpoint,
					"status_code": response.StatusCode,
				},
			)
		}
	}

	return GraphQLResult{
		StatusCode: response.StatusCode,
		Payload:    decoded,
	}, nil
}
