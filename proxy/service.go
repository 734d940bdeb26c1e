package proxy

import (
	"context"
	"time"

	glog "github.com/goliatone/go-logger/glog"

	"github.com/taro8383/duracalm-proxy/core"
	"github.com/taro8383/duracalm-proxy/oauth"
	"github.com/taro8383/duracalm-proxy/transport"
	"github.com/taro8383/duracalm-proxy/upload"
)

// Service is the application facade: OAuth flow, GraphQL relay, and upload
// pipeline behind one surface, with operation logging and an optional
// activity ledger.
type Service struct {
	cfg        core.Config
	states     core.StateStore
	flow       *oauth.Flow
	graphql    *transport.GraphQLClient
	pipeline   *upload.Pipeline
	logger     core.Logger
	activity   core.ActivityRecorder
	httpClient transport.HTTPDoer
}

type Option func(*Service)

func WithLogger(logger core.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithStateStore(states core.StateStore) Option {
	return func(s *Service) {
		s.states = states
	}
}

func WithActivityRecorder(recorder core.ActivityRecorder) Option {
	return func(s *Service) {
		s.activity = recorder
	}
}

func WithHTTPClient(client transport.HTTPDoer) Option {
	return func(s *Service) {
		s.httpClient = client
	}
}

func New(cfg core.Config, options ...Option) (*Service, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	service := &Service{cfg: cfg}
	for _, option := range options {
		option(service)
	}
	if service.logger == nil {
		service.logger = glog.Nop()
	}
	if service.states == nil {
		service.states = core.NewMemoryStateStore(cfg.StateTTL)
	}
	service.flow = oauth.NewFlow(cfg, service.states, service.httpClient)
	service.graphql = transport.NewGraphQLClient(service.httpClient, cfg.APIVersion)
	service.pipeline = upload.NewPipeline(service.graphql, service.httpClient, cfg.RequestTimeout)
	return service, nil
}

// StartAuth issues a state token and returns the authorization redirect.
func (s *Service) StartAuth(ctx context.Context, req oauth.BeginAuthRequest) (oauth.BeginAuthResponse, error) {
	startedAt := time.Now().UTC()
	response, err := s.flow.BeginAuth(ctx, req)
	s.observe(ctx, startedAt, core.OperationAuthStart, err, map[string]any{
		"shop": response.ShopDomain,
	})
	return response, err
}

// CompleteCallback validates the platform redirect and consumes the state
// token.
func (s *Service) CompleteCallback(ctx context.Context, req oauth.CallbackRequest) (oauth.CallbackResult, error) {
	startedAt := time.Now().UTC()
	result, err := s.flow.HandleCallback(ctx, req)
	s.observe(ctx, startedAt, core.OperationAuthCallback, err, map[string]any{
		"shop": result.ShopDomain,
	})
	return result, err
}

// ExchangeToken trades an authorization code for an access token.
func (s *Service) ExchangeToken(ctx context.Context, req oauth.ExchangeRequest) (oauth.ExchangeResult, error) {
	startedAt := time.Now().UTC()
	result, err := s.flow.Exchange(ctx, req)
	s.observe(ctx, startedAt, core.OperationAuthExchange, err, map[string]any{
		"shop": req.ShopDomain,
	})
	return result, err
}

// RelayGraphQL forwards a GraphQL document to the shop's Admin API.
func (s *Service) RelayGraphQL(ctx context.Context, req transport.GraphQLRequest) (transport.GraphQLResult, error) {
	startedAt := time.Now().UTC()
	if req.Timeout <= 0 {
		req.Timeout = s.cfg.RequestTimeout
	}
	result, err := s.graphql.Execute(ctx, req)
	s.observe(ctx, startedAt, core.OperationGraphQLRelay, err, map[string]any{
		"shop":        req.ShopDomain,
		"status_code": result.StatusCode,
	})
	return result, err
}

// UploadFile runs the three-phase staged upload pipeline.
func (s *Service) UploadFile(ctx context.Context, req core.UploadRequest) (core.UploadResult, error) {
	startedAt := time.Now().UTC()
	result, err := s.pipeline.Run(ctx, req)
	fields := map[string]any{
		"shop":     req.ShopDomain,
		"filename": req.Filename,
	}
	if err == nil {
		fields["file_id"] = result.FileID
	}
	s.observe(ctx, startedAt, core.OperationUpload, err, fields)
	return result, err
}

// Config returns the effective configuration the service was built with.
func (s *Service) Config() core.Config {
	if s == nil {
		return core.Config{}
	}
	return s.cfg
}
