package workflow

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/poiesic/glyph/core"
)

const (
	defaultCommandTimeout = 30 * time.Second
	defaultMaxOutput      = 64 * 1024
)

// Toolbox executes a single plan step and returns its output.
type Toolbox interface {
	Run(ctx context.Context, step core.PlanStep) (string, error)
}

// LocalToolbox runs file tools inside a workspace directory and, when
// allowed, shell commands with the workspace as working directory.
type LocalToolbox struct {
	root           string
	allowCommands  bool
	commandTimeout time.Duration
	maxOutput      int
}

// ToolboxOption configures a LocalToolbox.
type ToolboxOption func(*LocalToolbox) error

// WithAllowCommands enables run_command. It is disabled by default.
func WithAllowCommands(allow bool) ToolboxOption {
	return func(t *LocalToolbox) error {
		t.allowCommands = allow
		return nil
	}
}

// WithCommandTimeout bounds each run_command. Default is 30s.
func WithCommandTimeout(d time.Duration) ToolboxOption {
	return func(t *LocalToolbox) error {
		if d <= 0 {
			return fmt.Errorf("command timeout must be positive, got %v", d)
		}
		t.commandTimeout = d
		return nil
	}
}

// WithMaxOutput caps the bytes returned by read_file and run_command.
// Default is 64 KiB.
func WithMaxOutput(n int) ToolboxOption {
	return func(t *LocalToolbox) error {
		if n <= 0 {
			return fmt.Errorf("max output must be positive, got %d", n)
		}
		t.maxOutput = n
		return nil
	}
}

// NewLocalToolbox creates a toolbox rooted at root, creating it if needed.
func NewLocalToolbox(root string, opts ...ToolboxOption) (*LocalToolbox, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve workspace: %w", err)
	}
	if err := os.MkdirAll(absRoot, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create workspace: %w", err)
	}
	absRoot, err = filepath.EvalSymlinks(absRoot)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve workspace: %w", err)
	}

	t := &LocalToolbox{
		root:           absRoot,
		commandTimeout: defaultCommandTimeout,
		maxOutput:      defaultMaxOutput,
	}
	for _, opt := range opts {
		if err := opt(t); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// Root returns the absolute workspace directory.
func (t *LocalToolbox) Root() string {
	return t.root
}

// Run executes step.
func (t *LocalToolbox) Run(ctx context.Context, step core.PlanStep) (string, error) {
	switch step.Tool {
	case ToolReadFile:
		return t.readFile(step.Arguments)
	case ToolWriteFile:
		return t.writeFile(step.Arguments)
	case ToolRunCommand:
		return t.runCommand(ctx, step.Arguments)
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownTool, step.Tool)
	}
}

func (t *LocalToolbox) readFile(args map[string]any) (string, error) {
	path, err := t.pathArg(args)
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return t.truncate(string(data)), nil
}

func (t *LocalToolbox) writeFile(args map[string]any) (string, error) {
	path, err := t.pathArg(args)
	if err != nil {
		return "", err
	}
	content, ok := args["content"].(string)
	if !ok {
		return "", fmt.Errorf("%w: content", ErrMissingArgument)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", err
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return "", err
	}
	rel, _ := filepath.Rel(t.root, path)
	return fmt.Sprintf("wrote %d bytes to %s", len(content), rel), nil
}

func (t *LocalToolbox) runCommand(ctx context.Context, args map[string]any) (string, error) {
	if !t.allowCommands {
		return "", ErrCommandsDisabled
	}
	command, err := stringArg(args, "command")
	if err != nil {
		return "", err
	}

	ctx, cancel := context.WithTimeout(ctx, t.commandTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "sh", "-c", command)
	cmd.Dir = t.root
	cmd.WaitDelay = time.Second
	out, err := cmd.CombinedOutput()
	output := t.truncate(string(out))
	if err != nil {
		if ctx.Err() != nil {
			return output, fmt.Errorf("command timed out after %v: %w", t.commandTimeout, ctx.Err())
		}
		return output, fmt.Errorf("command failed: %w: %s", err, strings.TrimSpace(output))
	}
	return output, nil
}

// pathArg resolves the "path" argument against the workspace root.
// Relative paths are taken from the root; nothing may leave it, including
// through symlinks.
func (t *LocalToolbox) pathArg(args map[string]any) (string, error) {
	p, err := stringArg(args, "path")
	if err != nil {
		return "", err
	}
	if !filepath.IsAbs(p) {
		p = filepath.Join(t.root, p)
	}
	p = filepath.Clean(p)

	resolved, err := resolveExisting(p)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %w", ErrPathEscapesWorkspace, p, err)
	}
	rel, err := filepath.Rel(t.root, resolved)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s", ErrPathEscapesWorkspace, p)
	}
	return resolved, nil
}

// resolveExisting evaluates symlinks in the longest existing prefix of p
// and re-attaches the components that do not exist yet.
func resolveExisting(p string) (string, error) {
	var missing []string
	cur := p
	for {
		if _, err := os.Lstat(cur); err == nil {
			break
		} else if !errors.Is(err, fs.ErrNotExist) {
			return "", err
		}
		parent := filepath.Dir(cur)
		if parent == cur {
			break
		}
		missing = append(missing, filepath.Base(cur))
		cur = parent
	}

	resolved, err := filepath.EvalSymlinks(cur)
	if err != nil {
		return "", err
	}
	for i := len(missing) - 1; i >= 0; i-- {
		resolved = filepath.Join(resolved, missing[i])
	}
	return resolved, nil
}

func (t *LocalToolbox) truncate(s string) string {
	if len(s) <= t.maxOutput {
		return s
	}
	return s[:t.maxOutput] + "\n[truncated]"
}

func stringArg(args map[string]any, name string) (string, error) {
	v, ok := args[name].(string)
	if !ok || v == "" {
		return "", fmt.Errorf("%w: %s", ErrMissingArgument, name)
	}
	return v, nil
}
