package workspace

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

// Action is a planned operation on a single resource.
type Action struct {
	Verb      string // "up", "down", "restart"
	Resource  *Resource
	Container string
}

// Options control how the engine applies a plan.
type Options struct {
	Filter      Filter
	DryRun      bool
	AutoApprove bool
}

// Engine applies workspace operations through a backend in dependency order.
type Engine struct {
	cfg     *Config
	backend Backend
	out     io.Writer
	in      io.Reader
	logger  zerolog.Logger
}

// NewEngine creates an engine for the given workspace. Output and confirmation
// prompts go to out/in, normally stdout/stdin.
func NewEngine(cfg *Config, backend Backend, logger zerolog.Logger) *Engine {
	return &Engine{
		cfg:     cfg,
		backend: backend,
		out:     os.Stdout,
		in:      os.Stdin,
		logger:  logger.With().Str("component", "workspaceEngine").Str("workspace", cfg.Name).Logger(),
	}
}

// SetIO overrides the prompt/output streams, used by tests.
func (e *Engine) SetIO(in io.Reader, out io.Writer) {
	e.in = in
	e.out = out
}

// Plan computes the ordered actions for a verb. "up" and "restart" run in
// dependency order, "down" in reverse.
func (e *Engine) Plan(verb string, filter Filter) ([]Action, error) {
	resources := e.cfg.ActiveResources(filter)
	ordered, err := SortByDependencies(resources)
	if err != nil {
		return nil, err
	}
	if verb == "down" {
		ordered = Reverse(ordered)
	}

	actions := make([]Action, 0, len(ordered))
	for _, r := range ordered {
		actions = append(actions, Action{
			Verb:      verb,
			Resource:  r,
			Container: e.cfg.ContainerName(r),
		})
	}
	return actions, nil
}

// Up brings filtered resources up in dependency order.
func (e *Engine) Up(ctx context.Context, opts Options) error {
	return e.apply(ctx, "up", opts)
}

// Down tears filtered resources down in reverse dependency order.
func (e *Engine) Down(ctx context.Context, opts Options) error {
	return e.apply(ctx, "down", opts)
}

// Patch recreates filtered resources: each is torn down and brought back up,
// picking up image or configuration changes.
func (e *Engine) Patch(ctx context.Context, opts Options) error {
	actions, err := e.Plan("up", opts.Filter)
	if err != nil {
		return err
	}
	if len(actions) == 0 {
		fmt.Fprintln(e.out, "No resources match")
		return nil
	}

	e.printPlan("patch", actions)
	if opts.DryRun {
		return nil
	}
	if !opts.AutoApprove && !e.confirm() {
		fmt.Fprintln(e.out, "Aborted")
		return nil
	}

	for _, action := range actions {
		if err := e.backend.Down(ctx, action.Container); err != nil {
			return fmt.Errorf("patch %q: %w", action.Resource.Name, err)
		}
		if err := e.backend.Up(ctx, action.Container, action.Resource, e.cfg.EnvVars); err != nil {
			return fmt.Errorf("patch %q: %w", action.Resource.Name, err)
		}
		fmt.Fprintf(e.out, "patched %s\n", action.Resource.Name)
	}
	return nil
}

// Restart restarts filtered resources in dependency order.
func (e *Engine) Restart(ctx context.Context, opts Options) error {
	return e.apply(ctx, "restart", opts)
}

// Delete tears down every resource in the workspace, ignoring filters.
func (e *Engine) Delete(ctx context.Context, opts Options) error {
	opts.Filter = Filter{}
	return e.apply(ctx, "down", opts)
}

// PrintConfig writes the resolved workspace configuration as YAML.
func (e *Engine) PrintConfig() error {
	data, err := yaml.Marshal(e.cfg)
	if err != nil {
		return fmt.Errorf("marshal workspace config: %w", err)
	}
	_, err = e.out.Write(data)
	return err
}

// Status prints each resource with its backend status.
func (e *Engine) Status(ctx context.Context, filter Filter) error {
	actions, err := e.Plan("up", filter)
	if err != nil {
		return err
	}
	for _, action := range actions {
		status, err := e.backend.Status(ctx, action.Container)
		if err != nil {
			return err
		}
		fmt.Fprintf(e.out, "%-30s %s\n", action.Resource.Name, status)
	}
	return nil
}

func (e *Engine) apply(ctx context.Context, verb string, opts Options) error {
	actions, err := e.Plan(verb, opts.Filter)
	if err != nil {
		return err
	}
	if len(actions) == 0 {
		fmt.Fprintln(e.out, "No resources match")
		return nil
	}

	e.printPlan(verb, actions)
	if opts.DryRun {
		return nil
	}
	if !opts.AutoApprove && !e.confirm() {
		fmt.Fprintln(e.out, "Aborted")
		return nil
	}

	for _, action := range actions {
		e.logger.Info().Str("verb", verb).Str("resource", action.Resource.Name).Msg("Applying resource")
		switch verb {
		case "up":
			err = e.backend.Up(ctx, action.Container, action.Resource, e.cfg.EnvVars)
		case "down":
			err = e.backend.Down(ctx, action.Container)
		case "restart":
			err = e.backend.Restart(ctx, action.Container)
		default:
			err = fmt.Errorf("unknown verb %q", verb)
		}
		if err != nil {
			return fmt.Errorf("%s %q: %w", verb, action.Resource.Name, err)
		}
		fmt.Fprintf(e.out, "%s: %s\n", verb, action.Resource.Name)
	}
	return nil
}

func (e *Engine) printPlan(verb string, actions []Action) {
	fmt.Fprintf(e.out, "Workspace %s (%s): %d resource(s) to %s\n", e.cfg.Name, e.cfg.Env, len(actions), verb)
	for _, action := range actions {
		fmt.Fprintf(e.out, "  %s %s (%s)\n", verb, action.Resource.Name, action.Resource.Image)
	}
}

func (e *Engine) confirm() bool {
	fmt.Fprint(e.out, "Continue? [y/N]: ")
	reader := bufio.NewReader(e.in)
	line, err := reader.ReadString('\n')
	if err != nil {
		return false
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes"
}
