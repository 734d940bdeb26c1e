package server

import (
	"encoding/base64"
	"encoding/json"
	"html/template"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	glog "github.com/goliatone/go-logger/glog"

	"github.com/taro8383/duracalm-proxy/core"
	"github.com/taro8383/duracalm-proxy/oauth"
	"github.com/taro8383/duracalm-proxy/proxy"
	"github.com/taro8383/duracalm-proxy/transport"
)

const maxRequestBodyBytes = 25 << 20 // base64 image payloads

var callbackPage = template.Must(template.New("callback").Parse(`<!DOCTYPE html>
<html>
<head>
  <title>OAuth Success</title>
  <style>
    body { font-family: sans-serif; padding: 40px; text-align: center; }
    .code { background: #f5f5f5; padding: 20px; border-radius: 8px; word-break: break-all; }
    .success { color: green; font-size: 24px; margin-bottom: 20px; }
  </style>
</head>
<body>
  <div class="success">&#10003; Authorization successful!</div>
  <p>Copy this code and paste it in your app:</p>
  <div class="code">{{.Code}}</div>
  <p style="margin-top: 20px; color: #666;">You can close this window and return to the app.</p>
</body>
</html>
`))

// Server is the HTTP shell over the proxy service.
type Server struct {
	service *proxy.Service
	logger  core.Logger
}

func New(service *proxy.Service, logger core.Logger) *Server {
	if logger == nil {
		logger = glog.Nop()
	}
	return &Server{service: service, logger: logger}
}

// Handler returns the fully assembled HTTP handler: router, CORS, request
// logging, and a body-size cap.
func (s *Server) Handler() http.Handler {
	return withCORS(s.Router())
}

func (s *Server) Router() chi.Router {
	router := chi.NewRouter()
	router.Use(middleware.RequestSize(maxRequestBodyBytes))
	router.Use(middleware.Recoverer)
	router.Use(requestLogging(s.logger))

	router.Get("/", s.handleHealth)
	router.Get("/auth/start", s.handleAuthStart)
	router.Get("/auth/callback", s.handleAuthCallback)
	router.Post("/auth/exchange", s.handleAuthExchange)
	router.Post("/shopify/graphql", s.handleGraphQL)
	router.Post("/shopify/upload", s.handleUpload)

	return router
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "OAuth Proxy Server Running",
		"endpoints": []string{
			"/auth/start - Start OAuth flow",
			"/auth/callback - OAuth callback",
			"/auth/exchange - Exchange code for token",
			"/shopify/graphql - GraphQL proxy",
			"/shopify/upload - Staged file upload",
		},
	})
}

func (s *Server) handleAuthStart(w http.ResponseWriter, r *http.Request) {
	shop := strings.TrimSpace(r.URL.Query().Get("shop"))
	clientID := strings.TrimSpace(r.URL.Query().Get("client_id"))
	if shop == "" {
		writeError(w, core.BadInputError("Missing shop parameter", map[string]any{"field": "shop"}))
		return
	}

	response, err := s.service.StartAuth(r.Context(), oauth.BeginAuthRequest{
		ShopDomain: shop,
		ClientID:   clientID,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"oauthUrl": response.AuthorizeURL,
		"state":    response.State,
	})
}

func (s *Server) handleAuthCallback(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	result, err := s.service.CompleteCallback(r.Context(), oauth.CallbackRequest{
		Shop:             query.Get("shop"),
		Code:             query.Get("code"),
		State:            query.Get("state"),
		ErrorCode:        query.Get("error"),
		ErrorDescription: query.Get("error_description"),
	})
	if err != nil {
		// an upstream denial is echoed verbatim, not wrapped
		if mapped := core.MapError(err); mapped != nil && mapped.TextCode == core.ProxyErrorUpstreamAuth {
			payload := map[string]any{"error": mapped.Metadata["upstream_error"]}
			if description, ok := mapped.Metadata["upstream_error_description"]; ok {
				payload["error_description"] = description
			}
			writeJSON(w, mapped.Code, payload)
			return
		}
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_ = callbackPage.Execute(w, struct{ Code string }{Code: result.Code})
}

type exchangeBody struct {
	Code         string `json:"code"`
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
	Shop         string `json:"shop"`
}

func (s *Server) handleAuthExchange(w http.ResponseWriter, r *http.Request) {
	var body exchangeBody
	if err := decodeJSONBody(r, &body); err != nil {
		writeError(w, err)
		return
	}
	if missing := missingFields(map[string]string{
		"code":          body.Code,
		"client_id":     body.ClientID,
		"client_secret": body.ClientSecret,
		"shop":          body.Shop,
	}, "code", "client_id", "client_secret", "shop"); missing != "" {
		writeError(w, core.BadInputError("Missing required fields: "+missing, nil))
		return
	}

	result, err := s.service.ExchangeToken(r.Context(), oauth.ExchangeRequest{
		ShopDomain:   body.Shop,
		ClientID:     body.ClientID,
		ClientSecret: body.ClientSecret,
		Code:         body.Code,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	// relay the token endpoint payload verbatim
	writeJSON(w, http.StatusOK, result.Payload)
}

type graphqlBody struct {
	AccessToken string         `json:"access_token"`
	Shop        string         `json:"shop"`
	Query       string         `json:"query"`
	Variables   map[string]any `json:"variables"`
}

func (s *Server) handleGraphQL(w http.ResponseWriter, r *http.Request) {
	var body graphqlBody
	if err := decodeJSONBody(r, &body); err != nil {
		writeError(w, err)
		return
	}
	if missing := missingFields(map[string]string{
		"access_token": body.AccessToken,
		"shop":         body.Shop,
		"query":        body.Query,
	}, "access_token", "shop", "query"); missing != "" {
		writeError(w, core.BadInputError("Missing required fields: "+missing, nil))
		return
	}

	result, err := s.service.RelayGraphQL(r.Context(), transport.GraphQLRequest{
		Credential: core.AccessCredential{Token: body.AccessToken},
		ShopDomain: body.Shop,
		Query:      body.Query,
		Variables:  body.Variables,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, result.StatusCode, result.Payload)
}

type uploadBody struct {
	AccessToken string `json:"access_token"`
	Shop        string `json:"shop"`
	Filename    string `json:"filename"`
	MimeType    string `json:"mimeType"`
	Base64Data  string `json:"base64Data"`
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	var body uploadBody
	if err := decodeJSONBody(r, &body); err != nil {
		writeError(w, err)
		return
	}
	if missing := missingFields(map[string]string{
		"access_token": body.AccessToken,
		"shop":         body.Shop,
		"filename":     body.Filename,
		"base64Data":   body.Base64Data,
	}, "access_token", "shop", "filename", "base64Data"); missing != "" {
		writeError(w, core.BadInputError("Missing required fields: "+missing, nil))
		return
	}

	data, err := decodeBase64Payload(body.Base64Data)
	if err != nil {
		writeError(w, core.BadInputError("Invalid base64Data payload", map[string]any{"field": "base64Data"}))
		return
	}

	result, err := s.service.UploadFile(r.Context(), core.UploadRequest{
		Credential: core.AccessCredential{Token: body.AccessToken},
		ShopDomain: body.Shop,
		Filename:   body.Filename,
		MimeType:   body.MimeType,
		Data:       data,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	var previewURL any
	if strings.TrimSpace(result.PreviewURL) != "" {
		previewURL = result.PreviewURL
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"file": map[string]any{
			"id":         result.FileID,
			"url":        result.URL,
			"previewUrl": previewURL,
		},
	})
}

func decodeJSONBody(r *http.Request, out any) error {
	defer r.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBodyBytes))
	if err != nil {
		return core.BadInputError("Unable to read request body", nil)
	}
	if len(raw) == 0 {
		return core.BadInputError("Request body is required", nil)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return core.BadInputError("Request body is not valid JSON", nil)
	}
	return nil
}

func missingFields(values map[string]string, order ...string) string {
	missing := []string{}
	for _, name := range order {
		if strings.TrimSpace(values[name]) == "" {
			missing = append(missing, name)
		}
	}
	return strings.Join(missing, ", ")
}

// decodeBase64Payload accepts both bare base64 and data-URL payloads.
func decodeBase64Payload(value string) ([]byte, error) {
	value = strings.TrimSpace(value)
	if index := strings.Index(value, ";base64,"); index >= 0 && strings.HasPrefix(value, "data:") {
		value = value[index+len(";base64,"):]
	}
	return base64.StdEncoding.DecodeString(value)
}
