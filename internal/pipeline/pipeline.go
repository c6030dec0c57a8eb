// Package pipeline runs one nl_query invocation: schema, generation,
// validation, execution and rendering, in that order.
package pipeline

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/nlquery/nlquery/internal/format"
	"github.com/nlquery/nlquery/internal/nl2sql"
	"github.com/nlquery/nlquery/internal/observability"
	"github.com/nlquery/nlquery/internal/query"
	"github.com/nlquery/nlquery/internal/schema"
)

const outcomeOK = "ok"

// Service holds only collaborators built at startup, so concurrent
// invocations share nothing mutable. A nil Translator means no API key was
// configured.
type Service struct {
	Schema     schema.Provider
	Translator nl2sql.Translator
	Engine     query.Engine
	MaxRows    int
	Logger     *slog.Logger
	Clock      func() time.Time
}

// Handle never fails: every error, including a panic in a collaborator, is
// turned into a reply string.
func (s *Service) Handle(ctx context.Context, prompt, rawFormat string) (reply string) {
	invocationID := observability.NewInvocationID()
	ctx = observability.ContextWithInvocationID(ctx, invocationID)
	logger := s.logger().With(slog.String("invocation_id", invocationID))
	outputFormat := format.Parse(rawFormat)
	start := s.now()
	outcome := outcomeOK

	defer func() {
		if recovered := recover(); recovered != nil {
			err := panicError(recovered)
			logger.Error("nl_query panicked", slog.Any("panic", recovered))
			reply = Reply(err)
			outcome = string(err.Kind)
		}
		observability.ObserveInvocation(string(outputFormat), outcome, s.now().Sub(start))
	}()

	text, err := s.Query(ctx, prompt, outputFormat)
	if err != nil {
		outcome = string(KindOf(err))
		logger.Warn("nl_query failed",
			slog.String("format", string(outputFormat)),
			slog.String("kind", outcome),
			slog.Any("error", err),
		)
		return Reply(err)
	}
	logger.Info("nl_query completed",
		slog.String("format", string(outputFormat)),
		slog.Duration("duration", s.now().Sub(start)),
	)
	return text
}

// Query returns the rendered reply or a *Error describing the first failed
// step.
func (s *Service) Query(ctx context.Context, prompt string, outputFormat format.Format) (string, error) {
	logger := s.logger()
	if id := observability.InvocationIDFromContext(ctx); id != "" {
		logger = logger.With(slog.String("invocation_id", id))
	}

	if s.Translator == nil {
		return "", newError(KindConfigMissing, msgMissingAPIKey, nil)
	}

	schemaDoc, err := s.loadSchema(ctx)
	if err != nil {
		return "", err
	}

	generateStart := s.now()
	generated, err := s.Translator.Translate(ctx, nl2sql.Request{Schema: schemaDoc, NaturalLanguage: prompt})
	observability.ObserveStage("generate", s.now().Sub(generateStart))
	if err != nil {
		return "", newError(KindModelFailure, "generating SQL: "+err.Error(), err)
	}
	logger.Debug("generated sql",
		slog.String("provider", generated.Provider),
		slog.String("model", generated.Model),
		slog.String("generated_sql", generated.SQL),
	)

	if err := query.ValidateSelect(generated.SQL); err != nil {
		return "", newError(KindRejectedStatement, err.Error(), err)
	}
	if !outputFormat.NeedsExecution() {
		return generated.SQL, nil
	}

	executeStart := s.now()
	result, err := s.Engine.Execute(ctx, query.Request{SQL: generated.SQL, RowLimit: s.maxRows()})
	observability.ObserveStage("execute", s.now().Sub(executeStart))
	if err != nil {
		return "", executionFailure(err)
	}
	observability.ObserveResult(len(result.Rows), result.Truncated)
	logger.Debug("statement executed",
		slog.Int("rows", len(result.Rows)),
		slog.Bool("truncated", result.Truncated),
		slog.Duration("db_duration", result.Duration),
	)
	if result.Truncated {
		logger.Info("result truncated at row cap", slog.Int("max_rows", s.maxRows()))
	}

	renderStart := s.now()
	text, err := format.Render(outputFormat, generated.SQL, result)
	observability.ObserveStage("render", s.now().Sub(renderStart))
	if err != nil {
		return "", newError(KindUnexpected, err.Error(), err)
	}
	return text, nil
}

// LoadSchema returns the schema document the generator would see.
func (s *Service) LoadSchema(ctx context.Context) (string, error) {
	return s.loadSchema(ctx)
}

func (s *Service) loadSchema(ctx context.Context) (string, error) {
	start := s.now()
	doc, err := s.Schema.Load(ctx)
	observability.ObserveStage("schema", s.now().Sub(start))
	if err == nil {
		return doc, nil
	}
	var notFound *schema.NotFoundError
	if errors.As(err, &notFound) {
		return "", newError(KindSchemaUnavailable, notFound.Error(), err)
	}
	return "", newError(KindSchemaUnavailable, err.Error(), err)
}

func executionFailure(err error) *Error {
	if errors.Is(err, query.ErrNotConfigured) {
		return newError(KindConfigMissing, msgMissingConnectionString, err)
	}
	var execErr *query.ExecutionError
	if errors.As(err, &execErr) {
		return newError(KindDatabaseFailure, execErr.Err.Error(), err)
	}
	return newError(KindUnexpected, err.Error(), err)
}

func (s *Service) logger() *slog.Logger {
	if s.Logger == nil {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return s.Logger
}

func (s *Service) now() time.Time {
	if s.Clock == nil {
		return time.Now()
	}
	return s.Clock()
}

func (s *Service) maxRows() int {
	if s.MaxRows <= 0 {
		return query.DefaultRowLimit
	}
	return s.MaxRows
}
