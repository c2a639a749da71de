// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package workflow

import (
	"errors"
	"fmt"

	"github.com/poiesic/glyph/core"
)

var (
	// ErrTaskRepositoryRequired is returned when a task repository is not provided.
	ErrTaskRepositoryRequired = errors.New("task repository required")

	// ErrAIProviderRequired is returned when an AI provider is not provided.
	ErrAIProviderRequired = errors.New("AI provider required")

	// ErrInvalidTransition is returned when a status change would move a task backwards.
	ErrInvalidTransition = errors.New("invalid task status transition")

	// ErrPlanParse is matched by every *PlanParseError.
	ErrPlanParse = errors.New("failed to parse plan")

	// ErrUnknownTool is returned for a plan step naming a tool the toolbox lacks.
	ErrUnknownTool = errors.New("unknown tool")

	// ErrCommandsDisabled is returned by run_command unless commands are allowed.
	ErrCommandsDisabled = errors.New("run_command is disabled")

	// ErrPathEscapesWorkspace is returned for file paths outside the workspace root.
	ErrPathEscapesWorkspace = errors.New("path escapes workspace")

	// ErrInterrupted is recorded on tasks left in progress by a previous run.
	ErrInterrupted = errors.New("task interrupted before completion")

	// ErrMissingArgument is returned when a tool argument is absent or not a string.
	ErrMissingArgument = errors.New("missing tool argument")
)

// PlanParseError reports a model response that could not be turned into a plan.
type PlanParseError struct {
	Response string
	Err      error
}

func (e *PlanParseError) Error() string {
	return fmt.Sprintf("%s: %v", ErrPlanParse, e.Err)
}

func (e *PlanParseError) Unwrap() error {
	return e.Err
}

func (e *PlanParseError) Is(target error) bool {
	return target == ErrPlanParse
}

// TaskExecutionError reports the plan step that made a task fail.
type TaskExecutionError struct {
	TaskID core.ID
	StepID string
	Tool   string
	Err    error
}

func (e *TaskExecutionError) Error() string {
	return fmt.Sprintf("step %s (%s) failed: %v", e.StepID, e.Tool, e.Err)
}

func (e *TaskExecutionError) Unwrap() error {
	return e.Err
}
