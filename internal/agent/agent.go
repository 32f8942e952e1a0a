package agent

import (
	"context"
	encodingjson "encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xkilldash9x/mirror-cli/api/schemas"
	"github.com/xkilldash9x/mirror-cli/internal/config"
	"github.com/xkilldash9x/mirror-cli/internal/llmutil"
	"github.com/xkilldash9x/mirror-cli/internal/observability"
)

// uuidNewString is swapped in tests for deterministic run IDs.
var uuidNewString = uuid.NewString

// logPreview bounds how much of a model reply or tool result is logged.
const logPreview = 240

// Agent drives the step protocol between a model and the tool registry. An
// Agent holds no per-run state, so one instance may serve concurrent runs.
type Agent struct {
	cfg          config.AgentConfig
	client       schemas.LLMClient
	tools        *ToolRegistry
	logger       *zap.Logger
	metrics      *observability.Metrics
	systemPrompt string
	genOpts      schemas.GenerationOptions
}

// Option customizes an Agent.
type Option func(*Agent)

// WithMetrics records loop activity on m.
func WithMetrics(m *observability.Metrics) Option {
	return func(a *Agent) { a.metrics = m }
}

// New wires an Agent. The registry must already be total; see NewToolRegistry.
func New(cfg config.AgentConfig, client schemas.LLMClient, tools *ToolRegistry, logger *zap.Logger, opts ...Option) (*Agent, error) {
	if client == nil {
		return nil, errors.New("agent: model client is required")
	}
	if tools == nil {
		return nil, errors.New("agent: tool registry is required")
	}
	if cfg.MaxIterations <= 0 {
		return nil, fmt.Errorf("agent: max iterations must be positive, got %d", cfg.MaxIterations)
	}
	if cfg.ModelTimeout <= 0 || cfg.ToolTimeout <= 0 {
		return nil, errors.New("agent: model and tool timeouts must be positive")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	a := &Agent{
		cfg:          cfg,
		client:       client,
		tools:        tools,
		logger:       logger.Named("agent"),
		systemPrompt: BuildSystemPrompt(tools),
		genOpts: schemas.GenerationOptions{
			Temperature:     float64(cfg.LLM.Temperature),
			ForceJSONFormat: cfg.LLM.ForceJSON,
			MaxTokens:       cfg.LLM.MaxTokens,
		},
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// run is the mutable state of a single Run call.
type run struct {
	*Agent
	id                string
	logger            *zap.Logger
	conv              *Conversation
	state             LoopState
	iterations        int
	consecutiveErrors int
	lastStep          *schemas.StepDirective
	output            string
}

// Run drives the loop for one goal until an OUTPUT step, cancellation, or a
// fatal error. Fatal errors are returned as *RunError.
func (a *Agent) Run(ctx context.Context, goal string) (*RunResult, error) {
	if strings.TrimSpace(goal) == "" {
		return nil, errors.New("agent: goal must not be empty")
	}

	id := uuidNewString()
	r := &run{
		Agent:  a,
		id:     id,
		logger: a.logger.With(zap.String("run_id", id)),
		conv:   NewConversation(a.systemPrompt, goal),
		state:  StateAwaitingModel,
	}

	start := time.Now()
	r.logger.Info("Agent run started", zap.String("goal", goal), zap.Int("max_iterations", a.cfg.MaxIterations))

	err := r.loop(ctx)
	outcome := "terminated"
	if err != nil {
		var runErr *RunError
		if errors.As(err, &runErr) {
			outcome = strings.ToLower(string(runErr.Kind))
		}
		a.metrics.ObserveRun(outcome, r.iterations)
		fields := []zap.Field{
			zap.Error(err),
			zap.String("state", string(r.state)),
			zap.Duration("duration", time.Since(start)),
		}
		if r.lastStep != nil {
			fields = append(fields, zap.String("last_step", DescribeStep(*r.lastStep)))
		}
		r.logger.Error("Agent run failed", fields...)
		return nil, err
	}

	a.metrics.ObserveRun(outcome, r.iterations)
	r.logger.Info("Agent run finished",
		zap.Int("iterations", r.iterations),
		zap.Int("messages", r.conv.Len()),
		zap.Duration("duration", time.Since(start)),
	)
	return &RunResult{
		RunID:        id,
		Output:       r.output,
		Iterations:   r.iterations,
		Conversation: r.conv.Messages(),
	}, nil
}

func (r *run) loop(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return r.fail(KindCanceled, err)
		}
		if r.iterations >= r.cfg.MaxIterations {
			return r.fail(KindIterationLimit, ErrIterationLimit)
		}
		r.iterations++
		r.state = StateAwaitingModel

		reply, err := r.queryModel(ctx)
		if err != nil {
			// A canceled query appends nothing to the conversation.
			if ctxErr := ctx.Err(); ctxErr != nil {
				return r.fail(KindCanceled, ctxErr)
			}
			return r.fail(KindModelTransport, err)
		}

		r.state = StateProcessingStep
		done, err := r.process(ctx, reply)
		if err != nil {
			return err
		}
		if done {
			r.state = StateTerminated
			return nil
		}

		if limit := r.cfg.MaxConsecutiveErrors; limit > 0 && r.consecutiveErrors >= limit {
			return r.fail(KindErrorLimit, fmt.Errorf("%w: %d in a row", ErrErrorLimit, r.consecutiveErrors))
		}
	}
}

func (r *run) queryModel(ctx context.Context) (string, error) {
	queryCtx, cancel := context.WithTimeout(ctx, r.cfg.ModelTimeout)
	defer cancel()

	reply, err := r.client.Generate(queryCtx, schemas.GenerationRequest{
		Messages: r.conv.Messages(),
		Options:  r.genOpts,
	})
	if err != nil {
		r.metrics.ObserveModelQuery(outcomeFailure)
		return "", err
	}
	r.metrics.ObserveModelQuery(outcomeSuccess)
	r.logger.Debug("Model replied", zap.Int("iteration", r.iterations), zap.String("reply", llmutil.Truncate(reply, logPreview)))
	return reply, nil
}

// process acts on exactly one model reply and reports whether the run is done.
func (r *run) process(ctx context.Context, reply string) (bool, error) {
	step, err := ParseStep(reply)
	if err != nil {
		var perr *ParseError
		if !errors.As(err, &perr) {
			perr = &ParseError{Reason: ReasonInvalidJSON, Detail: err.Error()}
		}
		r.conv.Append(schemas.RoleAssistant, reply)
		r.correct(KindParseError, fmt.Sprintf(
			"Your last reply was rejected (%s): %s. Reply with exactly one JSON step object.", perr.Reason, perr.Detail))
		return false, nil
	}

	r.lastStep = &step
	r.metrics.ObserveStep(string(step.Kind))

	switch step.Kind {
	case schemas.StepStart:
		r.conv.AppendStep(schemas.RoleAssistant, step)
		r.logger.Info("Agent started working", zap.String("content", step.Content))
	case schemas.StepThink:
		r.conv.AppendStep(schemas.RoleAssistant, step)
		r.logger.Info("Agent thinking", zap.String("content", llmutil.Truncate(step.Content, logPreview)))
	case schemas.StepTool:
		return false, r.handleTool(ctx, step)
	case schemas.StepObserve:
		r.conv.AppendStep(schemas.RoleAssistant, step)
		r.correct(KindProtocolViolation,
			"OBSERVE steps are produced by the system in answer to a TOOL step. Do not send them; continue with THINK, TOOL or OUTPUT.")
	case schemas.StepOutput:
		r.conv.AppendStep(schemas.RoleAssistant, step)
		r.output = step.Content
		r.logger.Info("Agent produced output", zap.String("content", llmutil.Truncate(step.Content, logPreview)))
		return true, nil
	}
	return false, nil
}

func (r *run) handleTool(ctx context.Context, step schemas.StepDirective) error {
	// The request is recorded verbatim before anything runs so the model's own
	// account of what it asked for stays faithful.
	r.conv.AppendStep(schemas.RoleAssistant, step)

	tool, ok := r.tools.Lookup(step.ToolName)
	if !ok {
		r.metrics.ObserveTool("unknown", outcomeUnknown, 0)
		r.correct(KindUnknownTool, fmt.Sprintf("There is no such tool as %q. Available tools: %s.",
			step.ToolName, strings.Join(r.tools.Names(), ", ")))
		return nil
	}

	r.logger.Info("Invoking tool",
		zap.String("tool", step.ToolName),
		zap.String("input", llmutil.Truncate(string(step.Input), logPreview)),
	)

	start := time.Now()
	result, err := r.invoke(ctx, tool, step.Input)
	elapsed := time.Since(start)

	if err != nil {
		code := ClassifyToolError(err)
		r.metrics.ObserveTool(string(tool.Name()), outcomeFailure, elapsed)
		r.logger.Warn("Tool invocation failed",
			zap.String("tool", step.ToolName),
			zap.String("error_code", string(code)),
			zap.Duration("duration", elapsed),
			zap.Error(err),
		)
		// Every appended TOOL step gets its OBSERVE, even when the run is
		// about to stop for cancellation.
		r.observe(fmt.Sprintf("Tool %s failed (%s): %s", tool.Name(), code, toolErrorMessage(err)))
		r.consecutiveErrors++
		if ctxErr := ctx.Err(); ctxErr != nil {
			return r.fail(KindCanceled, ctxErr)
		}
		return nil
	}

	r.metrics.ObserveTool(string(tool.Name()), outcomeSuccess, elapsed)
	content := formatResult(result)
	r.logger.Info("Tool finished",
		zap.String("tool", step.ToolName),
		zap.Duration("duration", elapsed),
		zap.Int("result_bytes", len(content)),
	)
	r.observe(content)
	r.consecutiveErrors = 0
	return nil
}

type toolReply struct {
	result any
	err    error
}

// invoke runs one tool under the per-tool timeout. Panics are recovered and
// reported as TOOL_PANIC. A tool that ignores its context is abandoned once
// the deadline passes.
func (r *run) invoke(ctx context.Context, tool Tool, input encodingjson.RawMessage) (any, error) {
	toolCtx, cancel := context.WithTimeout(ctx, r.cfg.ToolTimeout)
	defer cancel()

	done := make(chan toolReply, 1)
	go func() {
		defer func() {
			if p := recover(); p != nil {
				r.logger.Error("Panic recovered during tool invocation",
					zap.String("tool", string(tool.Name())),
					zap.Any("panic_value", p),
					zap.Stack("stack"),
				)
				done <- toolReply{err: NewToolError(ErrCodeToolPanic, fmt.Errorf("tool panicked: %v", p))}
			}
		}()
		result, err := tool.Invoke(toolCtx, input)
		done <- toolReply{result: result, err: err}
	}()

	select {
	case rep := <-done:
		if rep.err != nil && errors.Is(toolCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			return nil, NewToolError(ErrCodeTimeoutError, fmt.Errorf("no result within %s: %w", r.cfg.ToolTimeout, rep.err))
		}
		return rep.result, rep.err
	case <-toolCtx.Done():
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, NewToolError(ErrCodeCanceled, ctxErr)
		}
		return nil, NewToolError(ErrCodeTimeoutError, fmt.Errorf("no result within %s", r.cfg.ToolTimeout))
	}
}

// correct appends a corrective developer message for a recoverable error.
func (r *run) correct(kind ErrorKind, message string) {
	r.consecutiveErrors++
	r.logger.Warn("Recoverable step error",
		zap.String("kind", string(kind)),
		zap.Int("consecutive_errors", r.consecutiveErrors),
		zap.String("message", message),
	)
	r.observe(message)
}

func (r *run) observe(content string) {
	r.conv.AppendStep(schemas.RoleDeveloper, schemas.NewObservation(content))
}

func (r *run) fail(kind ErrorKind, err error) error {
	r.state = StateFailed
	return &RunError{
		Kind:         kind,
		LastStep:     r.lastStep,
		Iterations:   r.iterations,
		Conversation: r.conv.Messages(),
		Err:          err,
	}
}

func toolErrorMessage(err error) string {
	var te *ToolError
	if errors.As(err, &te) && te.Err != nil {
		return te.Err.Error()
	}
	return err.Error()
}

// formatResult renders a tool result for the OBSERVE content: strings as-is,
// everything else as JSON.
func formatResult(result any) string {
	switch v := result.(type) {
	case nil:
		return "null"
	case string:
		return v
	case []byte:
		return string(v)
	case fmt.Stringer:
		return v.String()
	}
	s, err := jsonAPI.MarshalToString(result)
	if err != nil {
		return fmt.Sprint(result)
	}
	return s
}
