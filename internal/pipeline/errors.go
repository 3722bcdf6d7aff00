package pipeline

import (
	"errors"
	"fmt"

	"github.com/kayz/dashgen/internal/agent"
	"github.com/kayz/dashgen/internal/ai"
	"github.com/kayz/dashgen/internal/artifact"
	"github.com/kayz/dashgen/internal/dataset"
	"github.com/kayz/dashgen/internal/promptbuild"
)

// Kind names the stage at which a run failed.
type Kind string

const (
	KindCredentialMissing    Kind = "CredentialMissing"
	KindModelInitialization  Kind = "ModelInitializationError"
	KindInvalidRequest       Kind = "InvalidRequest"
	KindDatasetNotFound      Kind = "DatasetNotFoundError"
	KindDatasetParse         Kind = "DatasetParseError"
	KindTemplateFormatting   Kind = "TemplateFormattingError"
	KindGenerationInvocation Kind = "GenerationInvocationError"
	KindUnexpectedResponse   Kind = "UnexpectedResponseShape"
	KindSyntaxCheckFailed    Kind = "SyntaxCheckFailed"
	KindPersistence          Kind = "PersistenceError"
)

// Error is a terminal failure of one stage.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the kind of a pipeline error, or "" for anything else.
func KindOf(err error) Kind {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return ""
}

func fail(kind Kind, err error) *Error {
	return &Error{Kind: kind, Err: err}
}

// classify maps errors from the stage packages onto a Kind. fallback is used
// when nothing more specific matches.
func classify(err error, fallback Kind) Kind {
	var tfe *promptbuild.TemplateFormattingError
	var pe *artifact.PersistenceError
	switch {
	case errors.Is(err, ai.ErrCredentialMissing):
		return KindCredentialMissing
	case errors.Is(err, dataset.ErrNotFound):
		return KindDatasetNotFound
	case errors.Is(err, dataset.ErrParse):
		return KindDatasetParse
	case errors.As(err, &tfe):
		return KindTemplateFormatting
	case errors.Is(err, agent.ErrEmptyResponse), errors.Is(err, artifact.ErrUnexpectedShape):
		return KindUnexpectedResponse
	case errors.Is(err, artifact.ErrSyntax):
		return KindSyntaxCheckFailed
	case errors.As(err, &pe):
		return KindPersistence
	}
	return fallback
}
