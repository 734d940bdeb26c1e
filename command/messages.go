package command

import (
	"strings"

	"github.com/taro8383/duracalm-proxy/core"
	"github.com/taro8383/duracalm-proxy/oauth"
	"github.com/taro8383/duracalm-proxy/transport"
)

const (
	TypeStartAuth        = "proxy.command.auth.start"
	TypeCompleteCallback = "proxy.command.auth.callback"
	TypeExchangeToken    = "proxy.command.auth.exchange"
	TypeRelayGraphQL     = "proxy.command.graphql.relay"
	TypeUploadFile       = "proxy.command.upload.run"
)

type StartAuthMessage struct {
	ShopDomain string
	ClientID   string
}

func (StartAuthMessage) Type() string { return TypeStartAuth }

func (m StartAuthMessage) Validate() error {
	if strings.TrimSpace(m.ShopDomain) == "" {
		return commandValidationError("shop", "shop domain is required")
	}
	return nil
}

type CompleteCallbackMessage struct {
	Request oauth.CallbackRequest
}

func (CompleteCallbackMessage) Type() string { return TypeCompleteCallback }

func (m CompleteCallbackMessage) Validate() error {
	if strings.TrimSpace(m.Request.State) == "" && strings.TrimSpace(m.Request.ErrorCode) == "" {
		return commandValidationError("state", "state parameter is required")
	}
	return nil
}

type ExchangeTokenMessage struct {
	Request oauth.ExchangeRequest
}

func (ExchangeTokenMessage) Type() string { return TypeExchangeToken }

func (m ExchangeTokenMessage) Validate() error {
	if strings.TrimSpace(m.Request.ShopDomain) == "" {
		return commandValidationError("shop", "shop domain is required")
	}
	if strings.TrimSpace(m.Request.Code) == "" {
		return commandValidationError("code", "authorization code is required")
	}
	return nil
}

type RelayGraphQLMessage struct {
	Request transport.GraphQLRequest
}

func (RelayGraphQLMessage) Type() string { return TypeRelayGraphQL }

func (m RelayGraphQLMessage) Validate() error {
	if strings.TrimSpace(m.Request.ShopDomain) == "" {
		return commandValidationError("shop", "shop domain is required")
	}
	if strings.TrimSpace(m.Request.Credential.Token) == "" {
		return commandValidationError("accessToken", "access token is required")
	}
	if strings.TrimSpace(m.Request.Query) == "" {
		return commandValidationError("query", "graphql query is required")
	}
	return nil
}

type UploadFileMessage struct {
	Request core.UploadRequest
}

func (UploadFileMessage) Type() string { return TypeUploadFile }

func (m UploadFileMessage) Validate() error {
	if strings.TrimSpace(m.Request.ShopDomain) == "" {
		return commandValidationError("shop", "shop domain is required")
	}
	if strings.TrimSpace(m.Request.Credential.Token) == "" {
		return commandValidationError("accessToken", "access token is required")
	}
	if strings.TrimSpace(m.Request.Filename) == "" {
		return commandValidationError("filename", "filename is required")
	}
	if len(m.Request.Data) == 0 {
		return commandValidationError("base64Data", "file data is required")
	}
	return nil
}
