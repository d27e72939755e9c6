package session

import (
	"context"
	"errors"
	"strings"

	"github.com/nwthomas/deep-learning-research-agent/internal/agent"
	"github.com/nwthomas/deep-learning-research-agent/internal/llm"
	"github.com/nwthomas/deep-learning-research-agent/internal/model"
)

// Error kinds reported in the error_type field of error frames.
const (
	KindMalformedInput         = "MalformedInput"
	KindModelConfig            = "ModelConfigError"
	KindIterationLimitExceeded = "IterationLimitExceeded"
	KindCanceled               = "Canceled"
	KindAgentExecutionFailure  = "AgentExecutionFailure"
)

// Fixed client-facing messages.
const (
	msgInvalidJSON    = "Invalid JSON format"
	msgInvalidRequest = "Invalid research request"
	msgCompleted      = "Research completed successfully"
	msgAgentFailed    = "Agent execution failed"
	msgNoOutput       = "Research completed with no textual output."
)

// ErrorType names the kind of err for the error frame.
func ErrorType(err error) string {
	switch {
	case errors.Is(err, model.ErrMalformedInput):
		return KindMalformedInput
	case errors.Is(err, llm.ErrModelNameRequired), errors.Is(err, llm.ErrUnsupportedProvider):
		return KindModelConfig
	case errors.Is(err, agent.ErrIterationLimit):
		return KindIterationLimitExceeded
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return KindCanceled
	}
	return KindAgentExecutionFailure
}

// malformedMessage is the error frame text for a request that failed to parse.
func malformedMessage(err error) string {
	var syntaxErr *model.SyntaxError
	if errors.As(err, &syntaxErr) {
		return msgInvalidJSON
	}
	return msgInvalidRequest + ": " + strings.TrimPrefix(err.Error(), model.ErrMalformedInput.Error()+": ")
}
