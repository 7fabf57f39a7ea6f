package model

import (
	"fmt"
	"strings"
)

// Error kinds, grounded on original_source/backend/core/exceptions.py's
// WeaveAIException family. Go has no class hierarchy, so each kind is its
// own struct implementing error; callers discriminate with errors.As.

// AgentExecutionError reports a worker's unrecoverable failure.
type AgentExecutionError struct {
	AgentName string
	Message   string
	Cause     error
}

func (e *AgentExecutionError) Error() string {
	return fmt.Sprintf("agent %s: %s", e.AgentName, e.Message)
}

func (e *AgentExecutionError) Unwrap() error { return e.Cause }

// ToolExecutionError reports a tool invocation's unrecoverable failure
// (spec.md §4.1, §7). The LLM Call Facade does not return it: llm.Call
// wraps the provider's error with fmt.Errorf instead.
type ToolExecutionError struct {
	ToolName      string
	AgentName     string
	Message       string
	CorrelationID string
	Cause         error
}

func (e *ToolExecutionError) Error() string {
	if e.CorrelationID != "" {
		return fmt.Sprintf("tool %s (agent %s, correlation %s): %s", e.ToolName, e.AgentName, e.CorrelationID, e.Message)
	}
	return fmt.Sprintf("tool %s (agent %s): %s", e.ToolName, e.AgentName, e.Message)
}

func (e *ToolExecutionError) Unwrap() error { return e.Cause }

// DebateError reports a debate round's unrecoverable failure.
type DebateError struct {
	RoundNumber int
	Message     string
	Cause       error
}

func (e *DebateError) Error() string {
	return fmt.Sprintf("debate round %d: %s", e.RoundNumber, e.Message)
}

func (e *DebateError) Unwrap() error { return e.Cause }

// GraphExecutionError is fatal for the current session when
// DegradeMode=fail, otherwise contained to a single node (spec.md §7).
type GraphExecutionError struct {
	NodeID  string
	Message string
	Cause   error
}

func (e *GraphExecutionError) Error() string {
	return fmt.Sprintf("graph node %s: %s", e.NodeID, e.Message)
}

func (e *GraphExecutionError) Unwrap() error { return e.Cause }

// ConfigurationError is fatal at construction (missing API key/connection
// params).
type ConfigurationError struct {
	Message string
}

func (e *ConfigurationError) Error() string { return "configuration error: " + e.Message }

// ValidationError is surfaced to the caller without touching the workflow.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation error on %s: %s", e.Field, e.Message)
	}
	return "validation error: " + e.Message
}

// IsConnectionLike reports whether an error message matches one of the
// substrings spec.md §4.4 classifies as a transient, connection-like
// failure (case-insensitive substring match, exact set preserved for test
// reproducibility per spec.md §9).
func IsConnectionLike(errMsg string) bool {
	lower := strings.ToLower(errMsg)
	for _, needle := range connectionLikeSubstrings {
		if strings.Contains(lower, needle) {
			return true
		}
	}
	return false
}

var connectionLikeSubstrings = []string{
	"connection error", "timed out", "timeout", "connect", "network", "ssl", "tls",
}
