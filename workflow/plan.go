package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/poiesic/glyph/ai"
	"github.com/poiesic/glyph/core"
)

// Tool names understood by the planner and LocalToolbox.
const (
	ToolReadFile   = "read_file"
	ToolWriteFile  = "write_file"
	ToolRunCommand = "run_command"
)

// Planner asks the language model to break a task into tool steps.
type Planner struct {
	provider ai.Provider
	logger   *slog.Logger
}

// PlannerOption configures a Planner.
type PlannerOption func(*Planner) error

// WithPlannerLogger sets a custom logger.
// Default is slog.Default().
func WithPlannerLogger(logger *slog.Logger) PlannerOption {
	return func(p *Planner) error {
		if logger == nil {
			logger = slog.Default()
		}
		p.logger = logger
		return nil
	}
}

// NewPlanner creates a planner that generates plans with provider.
func NewPlanner(provider ai.Provider, opts ...PlannerOption) (*Planner, error) {
	if provider == nil {
		return nil, ErrAIProviderRequired
	}
	p := &Planner{
		provider: provider,
		logger:   slog.Default().With("component", "planner"),
	}
	for _, opt := range opts {
		if err := opt(p); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// Plan generates and parses a plan for task. A response that is not a
// usable plan returns a *PlanParseError.
func (p *Planner) Plan(ctx context.Context, task *core.Task) ([]core.PlanStep, error) {
	response, err := p.provider.GenerateContent(ctx, PlanPrompt(task.Title, task.Description))
	if err != nil {
		return nil, fmt.Errorf("failed to generate plan: %w", err)
	}

	steps, err := ParsePlan(response)
	if err != nil {
		p.logger.Warn("model returned an unusable plan", "task_id", task.ID, "err", err)
		return nil, err
	}
	p.logger.Info("plan generated", "task_id", task.ID, "steps", len(steps))
	return steps, nil
}

// PlanPrompt builds the planning prompt for a task.
func PlanPrompt(title, description string) string {
	return `You are an autonomous agent planning a task.
Task: ` + title + `
Description: ` + description + `

Available Tools:
- read_file(path): Read file content
- write_file(path, content): Create or overwrite file
- run_command(command): Execute shell command

Create a step-by-step plan to accomplish this task.
Return ONLY a JSON array of steps, where each step has:
- id: string or number
- description: string
- tool: string (one of the available tools)
- arguments: object (arguments for the tool)`
}

// rawStep accepts the loose shapes models produce, e.g. numeric ids.
type rawStep struct {
	ID          any            `json:"id"`
	Description string         `json:"description"`
	Tool        string         `json:"tool"`
	Arguments   map[string]any `json:"arguments"`
}

// ParsePlan extracts the JSON array of steps from a model response.
// Markdown fences are ignored and common JSON mistakes repaired.
func ParsePlan(response string) ([]core.PlanStep, error) {
	text, ok := extractArray(stripCodeFences(response))
	if !ok {
		return nil, &PlanParseError{Response: response, Err: errors.New("no JSON array found in response")}
	}

	var raw []rawStep
	if err := json.Unmarshal([]byte(text), &raw); err != nil {
		if repairErr := json.Unmarshal([]byte(repairJSON(text)), &raw); repairErr != nil {
			return nil, &PlanParseError{Response: response, Err: err}
		}
	}
	if len(raw) == 0 {
		return nil, &PlanParseError{Response: response, Err: errors.New("plan has no steps")}
	}

	steps := make([]core.PlanStep, len(raw))
	for i, r := range raw {
		tool := strings.TrimSpace(r.Tool)
		if tool == "" {
			return nil, &PlanParseError{Response: response, Err: fmt.Errorf("step %d has no tool", i+1)}
		}
		args := r.Arguments
		if args == nil {
			args = map[string]any{}
		}
		steps[i] = core.PlanStep{
			ID:          stepID(r.ID, i),
			Description: r.Description,
			Tool:        tool,
			Arguments:   args,
		}
	}
	return steps, nil
}

func stepID(v any, index int) string {
	switch id := v.(type) {
	case string:
		if id != "" {
			return id
		}
	case float64:
		return strconv.FormatFloat(id, 'f', -1, 64)
	}
	return strconv.Itoa(index + 1)
}
