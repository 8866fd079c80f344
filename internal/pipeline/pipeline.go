package pipeline

import (
	"context"
	"fmt"
	"log/slog"
)

// Step is one stage of page processing.
type Step interface {
	// Do processes the task. Page-level outcomes such as a failed fetch are
	// recorded in task.Outcome and return nil. A returned error means the
	// step itself could not run and fails the page.
	Do(ctx context.Context, task *Task) error

	// Name returns the step's name for logging purposes.
	Name() string
}

// Pipeline executes steps in order.
type Pipeline struct {
	steps  []Step
	logger *slog.Logger
}

// Option is a function that configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets a custom logger for the pipeline.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// New creates a Pipeline with the given options.
func New(opts ...Option) *Pipeline {
	p := &Pipeline{steps: make([]Step, 0)}
	for _, opt := range opts {
		opt(p)
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}
	return p
}

// AddStep appends a step to the pipeline.
func (p *Pipeline) AddStep(step Step) {
	p.steps = append(p.steps, step)
}

// AddSteps appends multiple steps to the pipeline.
func (p *Pipeline) AddSteps(steps ...Step) {
	p.steps = append(p.steps, steps...)
}

// Execute runs the steps in sequence until one halts the task or fails.
// Cancellation is checked between steps; each step enforces its own deadline.
func (p *Pipeline) Execute(ctx context.Context, task *Task) error {
	for _, step := range p.steps {
		if task.Halted() {
			p.logger.Debug("pipeline halted",
				"url", task.Page.URL,
				"before", step.Name(),
				"reason", task.HaltReason(),
			)
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		if err := step.Do(ctx, task); err != nil {
			p.logger.Warn("step failed",
				"step", step.Name(),
				"url", task.Page.URL,
				"error", err,
			)
			return fmt.Errorf("%s: %w", step.Name(), err)
		}
	}
	return nil
}

// StepNames returns the names of all steps in execution order.
func (p *Pipeline) StepNames() []string {
	names := make([]string, len(p.steps))
	for i, step := range p.steps {
		names[i] = step.Name()
	}
	return names
}
