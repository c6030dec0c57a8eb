package pipeline

import (
	"errors"
	"fmt"
)

type Kind string

const (
	KindConfigMissing     Kind = "config_missing"
	KindSchemaUnavailable Kind = "schema_unavailable"
	KindModelFailure      Kind = "model_failure"
	KindRejectedStatement Kind = "rejected_statement"
	KindDatabaseFailure   Kind = "database_failure"
	KindUnexpected        Kind = "unexpected_failure"
)

const (
	msgMissingAPIKey           = "AI API key not found in configuration (NLQUERY_AI_API_KEY)"
	msgMissingConnectionString = "ConnectionString not found in configuration (NLQUERY_DB_CONNECTION_STRING)"
)

// Error is a failed invocation. Message is the text shown to the caller
// without its reply prefix.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	return string(e.Kind) + ": " + e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// Reply renders err as the tool's text reply. Database failures carry the
// driver message behind "SQL Error:"; everything else starts with "Error:".
func Reply(err error) string {
	if err == nil {
		return ""
	}
	var pipelineErr *Error
	if !errors.As(err, &pipelineErr) {
		return "Error: " + err.Error()
	}
	if pipelineErr.Kind == KindDatabaseFailure {
		return "SQL Error: " + pipelineErr.Message
	}
	return "Error: " + pipelineErr.Message
}

// KindOf reports the failure kind used as the metrics outcome label.
func KindOf(err error) Kind {
	var pipelineErr *Error
	if errors.As(err, &pipelineErr) {
		return pipelineErr.Kind
	}
	return KindUnexpected
}

func panicError(recovered any) *Error {
	if err, ok := recovered.(error); ok {
		return newError(KindUnexpected, err.Error(), err)
	}
	return newError(KindUnexpected, fmt.Sprint(recovered), nil)
}
