package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/signal"
	"strings"
	"syscall"

	"github.com/nlquery/nlquery/internal/config"
	"github.com/nlquery/nlquery/internal/mcpserver"
	"github.com/nlquery/nlquery/internal/nl2sql"
	"github.com/nlquery/nlquery/internal/observability"
	"github.com/nlquery/nlquery/internal/pipeline"
	"github.com/nlquery/nlquery/internal/query/sqldb"
	"github.com/nlquery/nlquery/internal/schema"
	s3store "github.com/nlquery/nlquery/internal/storage/s3"
)

// errReplyFailed marks a query whose error reply was already printed.
var errReplyFailed = errors.New("query reply is an error")

type loadFunc func() (config.Config, error)

// BuildFunc assembles the pipeline for cfg.
type BuildFunc func(ctx context.Context, cfg config.Config, logger *slog.Logger) (*pipeline.Service, error)

type app struct {
	cfg     config.Config
	logger  *slog.Logger
	service *pipeline.Service
}

func build(ctx context.Context, opts Options, load loadFunc) (*app, error) {
	cfg, err := load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logger := observability.NewLogger(cfg, opts.Stderr)
	service, err := opts.Build(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	return &app{cfg: cfg, logger: logger, service: service}, nil
}

// DefaultBuild wires the configured schema source, model provider and
// database driver. A missing API key or connection string is not a startup
// error; each call reports it instead.
func DefaultBuild(ctx context.Context, cfg config.Config, logger *slog.Logger) (*pipeline.Service, error) {
	provider, err := newSchemaProvider(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("initialize schema source: %w", err)
	}

	var translator nl2sql.Translator
	if strings.TrimSpace(cfg.AI.APIKey) != "" {
		translator, err = nl2sql.New(cfg.AI, nl2sql.DialectFor(cfg.Database.Driver))
		if err != nil {
			return nil, fmt.Errorf("initialize sql generator: %w", err)
		}
	} else {
		logger.Warn("ai api key not configured; nl_query calls will fail", slog.String("env", config.EnvAPIKey))
	}

	engine, err := sqldb.NewEngine(sqldb.Config{
		Driver:           cfg.Database.Driver,
		ConnectionString: cfg.Database.ConnectionString,
		CommandTimeout:   cfg.Database.CommandTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("initialize query engine: %w", err)
	}
	if strings.TrimSpace(cfg.Database.ConnectionString) == "" {
		logger.Warn("database connection string not configured; executed queries will fail", slog.String("env", config.EnvConnectionString))
	}

	return &pipeline.Service{
		Schema:     provider,
		Translator: translator,
		Engine:     engine,
		MaxRows:    cfg.Database.MaxRows,
		Logger:     logger,
	}, nil
}

func newSchemaProvider(ctx context.Context, cfg config.Config) (schema.Provider, error) {
	filter := schema.Filter{Pattern: cfg.Schema.Pattern, ExcludeSuffix: cfg.Schema.ExcludeSuffix}
	switch cfg.Schema.Source {
	case config.SchemaSourceObjectStore:
		// The store is rooted at the bucket so not-found replies name the
		// full catalog prefix.
		store, err := s3store.New(ctx, s3store.Config{
			Endpoint:        cfg.ObjectStore.Endpoint,
			Region:          cfg.ObjectStore.Region,
			Bucket:          cfg.ObjectStore.Bucket,
			AccessKeyID:     cfg.ObjectStore.AccessKeyID,
			SecretAccessKey: cfg.ObjectStore.SecretAccessKey,
			UseSSL:          cfg.ObjectStore.UseSSL,
		})
		if err != nil {
			return nil, err
		}
		return schema.NewObjectStoreProvider(store, cfg.ObjectStore.Prefix, filter), nil
	default:
		return schema.NewDirProvider(cfg.Schema.Dir, filter), nil
	}
}

func runServe(ctx context.Context, opts Options, load loadFunc) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := build(ctx, opts, load)
	if err != nil {
		return err
	}

	if addr := app.cfg.Observability.MetricsAddr; addr != "" {
		go func() {
			if err := observability.ServeMetrics(ctx, addr, app.cfg.Service.Name, app.logger); err != nil {
				app.logger.Error("metrics server failed", slog.Any("error", err))
			}
		}()
	}

	server := mcpserver.New(app.cfg.Service.Name, opts.Version, app.service)
	return mcpserver.Serve(ctx, server, opts.Stdin, opts.Stdout, app.logger)
}

func isErrorReply(reply string) bool {
	return strings.HasPrefix(reply, "Error:") || strings.HasPrefix(reply, "SQL Error:")
}
