// internal/agent/errors.go
package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/xkilldash9x/mirror-cli/api/schemas"
	"github.com/xkilldash9x/mirror-cli/internal/llmutil"
)

// ErrorCode is a string type used for structured error reporting from tool
// invocations. It is echoed to the model inside the failure observation.
type ErrorCode string

const (
	ErrCodeExecutionFailure ErrorCode = "EXECUTION_FAILURE"
	ErrCodeInvalidInput     ErrorCode = "INVALID_INPUT"
	ErrCodeTimeoutError     ErrorCode = "TIMEOUT_ERROR"
	ErrCodeCanceled         ErrorCode = "CANCELED"
	ErrCodeNavigationError  ErrorCode = "NAVIGATION_ERROR"
	ErrCodeToolPanic        ErrorCode = "TOOL_PANIC"
)

// ToolError is a classified tool failure.
type ToolError struct {
	Code ErrorCode
	Err  error
}

func (e *ToolError) Error() string {
	return fmt.Sprintf("%s: %v", e.Code, e.Err)
}

func (e *ToolError) Unwrap() error { return e.Err }

// NewToolError wraps err with an explicit code. Tool implementations use it
// when they know better than the generic classification.
func NewToolError(code ErrorCode, err error) *ToolError {
	return &ToolError{Code: code, Err: err}
}

// ClassifyToolError maps an arbitrary tool failure to an ErrorCode. An
// explicit ToolError wins; context errors are recognized next; navigation
// problems are detected heuristically from the message.
func ClassifyToolError(err error) ErrorCode {
	if err == nil {
		return ""
	}
	var te *ToolError
	if errors.As(err, &te) {
		return te.Code
	}
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return ErrCodeTimeoutError
	case errors.Is(err, context.Canceled):
		return ErrCodeCanceled
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "timeout") || strings.Contains(msg, "deadline exceeded"):
		return ErrCodeTimeoutError
	case strings.Contains(msg, "net::err_") || strings.Contains(msg, "navigation"):
		return ErrCodeNavigationError
	}
	return ErrCodeExecutionFailure
}

// ErrorKind classifies everything that can go wrong during a run. The first
// four are recovered inside the loop by a corrective developer message; the
// rest end the run.
type ErrorKind string

const (
	KindParseError          ErrorKind = "PARSE_ERROR"
	KindUnknownTool         ErrorKind = "UNKNOWN_TOOL"
	KindToolInvocationError ErrorKind = "TOOL_INVOCATION_ERROR"
	KindProtocolViolation   ErrorKind = "PROTOCOL_VIOLATION"

	KindModelTransport ErrorKind = "MODEL_TRANSPORT"
	KindIterationLimit ErrorKind = "ITERATION_LIMIT"
	KindErrorLimit     ErrorKind = "ERROR_LIMIT"
	KindCanceled       ErrorKind = "CANCELED"
)

// ParseReason says why a model reply could not become a StepDirective.
type ParseReason string

const (
	ReasonInvalidJSON       ParseReason = "INVALID_JSON"
	ReasonUnknownStep       ParseReason = "UNKNOWN_STEP"
	ReasonMalformedToolCall ParseReason = "MALFORMED_TOOL_CALL"
	ReasonMissingContent    ParseReason = "MISSING_CONTENT"
	ReasonMultipleSteps     ParseReason = "MULTIPLE_STEPS"
)

// ParseError is returned by ParseStep. It never wraps a panic; malformed
// input always ends up here.
type ParseError struct {
	Reason ParseReason
	Detail string
	Raw    string
}

func (e *ParseError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("parse error (%s)", e.Reason)
	}
	return fmt.Sprintf("parse error (%s): %s", e.Reason, e.Detail)
}

// RunError aborts a run. It carries enough state to diagnose the failure
// without replaying the conversation.
type RunError struct {
	Kind ErrorKind
	// LastStep is the last well-formed step that was processed, if any.
	LastStep     *schemas.StepDirective
	Iterations   int
	Conversation []schemas.Message
	Err          error
}

func (e *RunError) Error() string {
	msg := fmt.Sprintf("agent run failed (%s) after %d iterations", e.Kind, e.Iterations)
	if e.LastStep != nil {
		msg += ", last step " + DescribeStep(*e.LastStep)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// stepPreview bounds the content shown by DescribeStep.
const stepPreview = 80

// DescribeStep is a one-line summary of a step: its kind followed by the
// tool name for TOOL steps, or a quoted prefix of the content otherwise.
func DescribeStep(step schemas.StepDirective) string {
	if step.Kind == schemas.StepTool {
		return fmt.Sprintf("%s %s", step.Kind, step.ToolName)
	}
	return fmt.Sprintf("%s %q", step.Kind, llmutil.Truncate(step.Content, stepPreview))
}

func (e *RunError) Unwrap() error { return e.Err }

// Sentinel causes for the loop guards.
var (
	ErrIterationLimit = errors.New("maximum iterations reached without an OUTPUT step")
	ErrErrorLimit     = errors.New("too many consecutive step errors")
)
