// Package chain implements the Chain Executor (C10): validation,
// sequential step execution against the Dispatcher with per-step
// conditions and argument templating from an accumulating context, and
// best-effort rollback on a required step's failure.
package chain

import (
	"context"
	"fmt"
	"time"

	"github.com/aishacrm/braid/infrastructure/logging"
	"github.com/aishacrm/braid/internal/engine/core"
	"github.com/aishacrm/braid/internal/engine/dispatch"
	"github.com/aishacrm/braid/internal/engine/registry"
)

// Registry of chain definitions by name.
type Registry struct {
	chains map[string]core.ChainDefinition
}

// NewRegistry builds an empty chain Registry.
func NewRegistry() *Registry {
	return &Registry{chains: make(map[string]core.ChainDefinition)}
}

// Register adds or replaces a chain definition.
func (r *Registry) Register(def core.ChainDefinition) {
	r.chains[def.Name] = def
}

// Lookup returns the named chain definition, if any.
func (r *Registry) Lookup(name string) (core.ChainDefinition, bool) {
	d, ok := r.chains[name]
	return d, ok
}

// List returns every registered chain definition, in no particular order.
func (r *Registry) List() []core.ChainDefinition {
	defs := make([]core.ChainDefinition, 0, len(r.chains))
	for _, d := range r.chains {
		defs = append(defs, d)
	}
	return defs
}

// Executor runs chain definitions through a Dispatcher.
type Executor struct {
	chains     *Registry
	tools      *registry.Registry
	dispatcher *dispatch.Dispatcher
	logger     *logging.Logger
}

// New builds a chain Executor.
func New(chains *Registry, tools *registry.Registry, dispatcher *dispatch.Dispatcher, logger *logging.Logger) *Executor {
	return &Executor{chains: chains, tools: tools, dispatcher: dispatcher, logger: logger}
}

// Caller carries the identity the chain dispatches every step as.
type Caller struct {
	TenantID  string
	UserID    string
	UserEmail string
	Role      core.Role
	Token     core.AccessToken
}

// ChainResult is the Chain Executor's discriminated union: on the
// success path Outcome is set; on a required-step failure Failure
// carries the detailed rollback/log payload; on a pre-execution
// validation failure only Err is set and no steps ever ran.
type ChainResult struct {
	Outcome *core.ChainOutcome
	Failure *core.ChainFailure
	Err     *core.EngineError
}

// IsOk reports whether the chain ran to completion without a required
// step failing.
func (r ChainResult) IsOk() bool {
	return r.Err == nil && r.Failure == nil
}

func validationErr(err *core.EngineError) ChainResult {
	return ChainResult{Err: err}
}

// Execute validates and runs the named chain against input.
func (e *Executor) Execute(ctx context.Context, chainName string, input map[string]any, caller Caller) ChainResult {
	def, ok := e.chains.Lookup(chainName)
	if !ok {
		return validationErr(core.NewError(core.ErrChainValidationError, fmt.Sprintf("unknown chain %q", chainName)))
	}

	steps := def.Steps
	if def.Dynamic {
		if def.GenerateSteps == nil {
			return validationErr(core.NewError(core.ErrChainValidationError, fmt.Sprintf("chain %q is dynamic but has no step generator", chainName)))
		}
		steps = def.GenerateSteps(input)
		if len(steps) == 0 {
			return validationErr(core.NewError(core.ErrEmptyChain, fmt.Sprintf("chain %q generated no steps", chainName)))
		}
	}

	if len(steps) == 0 {
		return validationErr(core.NewError(core.ErrChainValidationError, fmt.Sprintf("chain %q has no steps", chainName)))
	}

	for _, step := range steps {
		if _, ok := e.tools.Lookup(step.Tool); !ok {
			return validationErr(core.NewError(core.ErrChainValidationError,
				fmt.Sprintf("chain %q step %q references unknown tool %q", chainName, step.ID, step.Tool)))
		}
	}

	if !caller.Role.MeetsMinimum(def.RequiredRole) {
		return validationErr(core.NewError(core.ErrInsufficientPermissions,
			fmt.Sprintf("role %q does not meet chain %q's required role %q", caller.Role, chainName, def.RequiredRole)))
	}

	chainCtx := core.ChainContext{}
	var log []core.StepLogEntry
	var results []core.Result

	for _, step := range steps {
		if step.Condition != nil && !step.Condition(chainCtx) {
			log = append(log, core.StepLogEntry{
				ID: step.ID, Tool: step.Tool, Status: core.StepStatusSkipped,
				Reason: "condition_not_met", Timestamp: time.Now().Unix(),
			})
			continue
		}

		args, err := step.Args(input, chainCtx)
		if err != nil {
			log = append(log, core.StepLogEntry{
				ID: step.ID, Tool: step.Tool, Status: core.StepStatusError,
				Error: err.Error(), Timestamp: time.Now().Unix(),
			})
			if step.Required {
				rolledBack := e.rollback(ctx, def, chainCtx, caller)
				return ChainResult{Failure: &core.ChainFailure{
					FailedStep: step.ID,
					StepError:  core.NewError(core.ErrArgumentGenerationError, err.Error()),
					Context:    chainCtx, Results: results, ExecutionLog: log, RolledBack: rolledBack,
				}}
			}
			chainCtx[step.ID] = core.ErrResult(core.NewError(core.ErrArgumentGenerationError, err.Error()))
			continue
		}

		stepStart := time.Now()
		result := e.dispatcher.Execute(ctx, dispatch.Request{
			ToolName: step.Tool, Args: args,
			TenantID: caller.TenantID, UserID: caller.UserID, UserEmail: caller.UserEmail,
			Role: caller.Role, Token: caller.Token,
		})
		elapsed := time.Since(stepStart)

		chainCtx[step.ID] = result
		results = append(results, result)

		entry := core.StepLogEntry{
			ID: step.ID, Tool: step.Tool, Args: args,
			ExecutionTimeMs: elapsed.Milliseconds(), Timestamp: time.Now().Unix(),
		}
		if result.IsOk() {
			entry.Status = core.StepStatusOK
		} else {
			entry.Status = core.StepStatusError
			entry.Error = result.Err.Error()
		}
		log = append(log, entry)

		if !result.IsOk() {
			if e.logger != nil {
				e.logger.LogChainStep(ctx, chainName, step.ID, false, result.Err)
			}
			if step.Required {
				rolledBack := e.rollback(ctx, def, chainCtx, caller)
				return ChainResult{Failure: &core.ChainFailure{
					FailedStep: step.ID, StepError: result.Err,
					Context: chainCtx, Results: results, ExecutionLog: log, RolledBack: rolledBack,
				}}
			}
			continue
		}
		if e.logger != nil {
			e.logger.LogChainStep(ctx, chainName, step.ID, true, nil)
		}
	}

	return ChainResult{Outcome: &core.ChainOutcome{
		ChainName: chainName, Input: input, Context: chainCtx,
		Results: results, ExecutionLog: log, CompletedAt: time.Now().Unix(),
	}}
}

// rollback runs def.Rollback in reverse declaration order, best-effort.
// Every failure is logged and swallowed: rollback is compensation, not a
// transaction. The returned bool reflects whether rollback processing was
// attempted at all (a chain with declared Rollback steps), not whether
// any individual compensating call actually dispatched: a step whose
// condition is false or whose args evaluate to nil is a legitimate
// no-op, not a failure to roll back.
func (e *Executor) rollback(ctx context.Context, def core.ChainDefinition, chainCtx core.ChainContext, caller Caller) bool {
	if len(def.Rollback) == 0 {
		return false
	}
	for i := len(def.Rollback) - 1; i >= 0; i-- {
		step := def.Rollback[i]
		if step.Condition != nil && !step.Condition(chainCtx) {
			continue
		}
		args, err := step.Args(chainCtx)
		if err != nil {
			if e.logger != nil {
				e.logger.Logger.WithField("tool", step.Tool).WithError(err).Warn("chain: rollback argument generation failed")
			}
			continue
		}
		if args == nil {
			continue
		}
		result := e.dispatcher.Execute(ctx, dispatch.Request{
			ToolName: step.Tool, Args: args,
			TenantID: caller.TenantID, UserID: caller.UserID, UserEmail: caller.UserEmail,
			Role: caller.Role, Token: caller.Token,
		})
		if !result.IsOk() && e.logger != nil {
			e.logger.Logger.WithField("tool", step.Tool).WithError(result.Err).Warn("chain: rollback step failed")
		}
	}
	return true
}
