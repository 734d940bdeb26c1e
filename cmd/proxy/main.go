package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	glog "github.com/goliatone/go-logger/glog"
	persistence "github.com/goliatone/go-persistence-bun"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/schema"

	"github.com/taro8383/duracalm-proxy/core"
	"github.com/taro8383/duracalm-proxy/proxy"
	"github.com/taro8383/duracalm-proxy/server"
	sqlstore "github.com/taro8383/duracalm-proxy/store/sql"
)

const shutdownGrace = 10 * time.Second

func main() {
	if err := run(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	provider := core.NewCfgxConfigProvider(envConfigLoader{})
	cfg, err := provider.Load(ctx, core.DefaultConfig())
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	_, logger := glog.Resolve(cfg.ServiceName, nil, nil)
	logger = glog.Ensure(logger)

	options := []proxy.Option{proxy.WithLogger(logger)}

	if strings.TrimSpace(cfg.DatabaseDSN) != "" {
		client, cleanup, err := openDatabase(cfg.DatabaseDSN)
		if err != nil {
			return fmt.Errorf("open database: %w", err)
		}
		defer cleanup()

		if err := sqlstore.EnsureSchema(ctx, client.DB()); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
		ledger, err := sqlstore.NewActivityStoreFrom(client)
		if err != nil {
			return fmt.Errorf("activity store: %w", err)
		}
		options = append(options, proxy.WithActivityRecorder(ledger))
		logger.Info("activity ledger enabled", "dsn", redactDSN(cfg.DatabaseDSN))
	}

	service, err := proxy.New(cfg, options...)
	if err != nil {
		return fmt.Errorf("build service: %w", err)
	}

	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           server.New(service, logger).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("proxy listening", "addr", cfg.HTTPAddr, "api_version", cfg.APIVersion)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-stop:
		logger.Info("shutting down", "signal", sig.String())
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return <-errCh
}

// envConfigLoader surfaces process environment variables as the raw config
// map cfgx merges over the defaults.
type envConfigLoader struct{}

func (envConfigLoader) LoadRaw(context.Context) (map[string]any, error) {
	raw := map[string]any{}

	if value := strings.TrimSpace(os.Getenv("SERVICE_NAME")); value != "" {
		raw["service_name"] = value
	}
	if value := strings.TrimSpace(os.Getenv("HTTP_ADDR")); value != "" {
		raw["http_addr"] = value
	} else if port := strings.TrimSpace(os.Getenv("PORT")); port != "" {
		raw["http_addr"] = ":" + port
	}
	if value := strings.TrimSpace(os.Getenv("SHOPIFY_API_VERSION")); value != "" {
		raw["api_version"] = value
	}
	if value := strings.TrimSpace(os.Getenv("DATABASE_DSN")); value != "" {
		raw["database_dsn"] = value
	}
	if value := strings.TrimSpace(os.Getenv("STATE_TTL")); value != "" {
		ttl, err := time.ParseDuration(value)
		if err != nil {
			return nil, fmt.Errorf("parse STATE_TTL: %w", err)
		}
		raw["state_ttl"] = ttl
	}
	if value := strings.TrimSpace(os.Getenv("REQUEST_TIMEOUT")); value != "" {
		timeout, err := time.ParseDuration(value)
		if err != nil {
			return nil, fmt.Errorf("parse REQUEST_TIMEOUT: %w", err)
		}
		raw["request_timeout"] = timeout
	}

	oauth := map[string]any{}
	if value := strings.TrimSpace(os.Getenv("SHOPIFY_CLIENT_ID")); value != "" {
		oauth["client_id"] = value
	}
	if value := strings.TrimSpace(os.Getenv("SHOPIFY_CLIENT_SECRET")); value != "" {
		oauth["client_secret"] = value
	}
	if value := strings.TrimSpace(os.Getenv("SHOPIFY_REDIRECT_URI")); value != "" {
		oauth["redirect_uri"] = value
	}
	if value := strings.TrimSpace(os.Getenv("SHOPIFY_SCOPES")); value != "" {
		scopes := []string{}
		for _, scope := range strings.Split(value, ",") {
			if scope = strings.TrimSpace(scope); scope != "" {
				scopes = append(scopes, scope)
			}
		}
		if len(scopes) > 0 {
			oauth["scopes"] = scopes
		}
	}
	if len(oauth) > 0 {
		raw["oauth"] = oauth
	}

	return raw, nil
}

var _ core.RawConfigLoader = envConfigLoader{}

type persistenceConfig struct {
	driver string
	server string
}

func (c persistenceConfig) GetDebug() bool                { return false }
func (c persistenceConfig) GetDriver() string             { return c.driver }
func (c persistenceConfig) GetServer() string             { return c.server }
func (c persistenceConfig) GetPingTimeout() time.Duration { return 5 * time.Second }
func (c persistenceConfig) GetOtelIdentifier() string     { return "shopify-proxy" }

func openDatabase(dsn string) (*persistence.Client, func(), error) {
	driver := "sqlite3"
	var dialect schema.Dialect = sqlitedialect.New()
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		driver = "postgres"
		dialect = pgdialect.New()
	}

	sqlDB, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, nil, err
	}
	if driver == "sqlite3" {
		sqlDB.SetMaxOpenConns(1)
	}

	client, err := persistence.New(persistenceConfig{driver: driver, server: dsn}, sqlDB, dialect)
	if err != nil {
		_ = sqlDB.Close()
		return nil, nil, err
	}
	cleanup := func() { _ = sqlDB.Close() }
	return client, cleanup, nil
}

// redactDSN keeps the scheme and host but never logs credentials.
func redactDSN(dsn string) string {
	if index := strings.Index(dsn, "@"); index >= 0 {
		if scheme := strings.Index(dsn, "://"); scheme >= 0 {
			return dsn[:scheme+3] + "***" + dsn[index:]
		}
		return "***" + dsn[index:]
	}
	return dsn
}
