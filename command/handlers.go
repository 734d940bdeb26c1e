package command

import (
	"context"

	gocmd "github.com/goliatone/go-command"

	"github.com/taro8383/duracalm-proxy/core"
	"github.com/taro8383/duracalm-proxy/oauth"
	"github.com/taro8383/duracalm-proxy/transport"
)

// ProxyService is the application surface the commands dispatch into.
type ProxyService interface {
	StartAuth(ctx context.Context, req oauth.BeginAuthRequest) (oauth.BeginAuthResponse, error)
	CompleteCallback(ctx context.Context, req oauth.CallbackRequest) (oauth.CallbackResult, error)
	ExchangeToken(ctx context.Context, req oauth.ExchangeRequest) (oauth.ExchangeResult, error)
	RelayGraphQL(ctx context.Context, req transport.GraphQLRequest) (transport.GraphQLResult, error)
	UploadFile(ctx context.Context, req core.UploadRequest) (core.UploadResult, error)
}

type StartAuthCommand struct {
	service ProxyService
}

func NewStartAuthCommand(service ProxyService) *StartAuthCommand {
	return &StartAuthCommand{service: service}
}

func (c *StartAuthCommand) Execute(ctx context.Context, msg StartAuthMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: auth service is required")
	}
	out, err := c.service.StartAuth(ctx, oauth.BeginAuthRequest{
		ShopDomain: msg.ShopDomain,
		ClientID:   msg.ClientID,
	})
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type CompleteCallbackCommand struct {
	service ProxyService
}

func NewCompleteCallbackCommand(service ProxyService) *CompleteCallbackCommand {
	return &CompleteCallbackCommand{service: service}
}

func (c *CompleteCallbackCommand) Execute(ctx context.Context, msg CompleteCallbackMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: callback service is required")
	}
	out, err := c.service.CompleteCallback(ctx, msg.Request)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type ExchangeTokenCommand struct {
	service ProxyService
}

func NewExchangeTokenCommand(service ProxyService) *ExchangeTokenCommand {
	return &ExchangeTokenCommand{service: service}
}

func (c *ExchangeTokenCommand) Execute(ctx context.Context, msg ExchangeTokenMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: exchange service is required")
	}
	out, err := c.service.ExchangeToken(ctx, msg.Request)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type RelayGraphQLCommand struct {
	service ProxyService
}

func NewRelayGraphQLCommand(service ProxyService) *RelayGraphQLCommand {
	return &RelayGraphQLCommand{service: service}
}

func (c *RelayGraphQLCommand) Execute(ctx context.Context, msg RelayGraphQLMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: relay service is required")
	}
	out, err := c.service.RelayGraphQL(ctx, msg.Request)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type UploadFileCommand struct {
	service ProxyService
}

func NewUploadFileCommand(service ProxyService) *UploadFileCommand {
	return &UploadFileCommand{service: service}
}

func (c *UploadFileCommand) Execute(ctx context.Context, msg UploadFileMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: upload service is required")
	}
	out, err := c.service.UploadFile(ctx, msg.Request)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

func storeResult[T any](ctx context.Context, value T) {
	collector := gocmd.ResultFromContext[T](ctx)
	if collector == nil {
		return
	}
	collector.Store(value)
}
