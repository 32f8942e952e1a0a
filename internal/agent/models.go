package agent

import (
	"github.com/xkilldash9x/mirror-cli/api/schemas"
)

// LoopState is the phase of the step loop.
type LoopState string

const (
	StateAwaitingModel  LoopState = "AWAITING_MODEL"  // Waiting for the next model reply.
	StateProcessingStep LoopState = "PROCESSING_STEP" // Acting on exactly one parsed step.
	StateTerminated     LoopState = "TERMINATED"      // An OUTPUT step was processed.
	StateFailed         LoopState = "FAILED"          // The run aborted with a RunError.
)

// RunResult is the outcome of a run that reached an OUTPUT step.
type RunResult struct {
	RunID        string
	Output       string
	Iterations   int
	Conversation []schemas.Message
}

// toolOutcome labels metrics and logs for a single tool invocation.
const (
	outcomeSuccess = "success"
	outcomeFailure = "failure"
	outcomeUnknown = "unknown_tool"
)
