package approval

import (
	"context"
	"fmt"

	"github.com/google/cel-go/cel"
)

// CELResolver auto grants or denies a Request by evaluating a CEL
// expression over {tool, server, args}, returning a bool. Unlike
// AlwaysGrant this gives a configured tenant a real decision procedure
// without a human in the loop.
type CELResolver struct {
	program cel.Program
	source  string
}

// NewCELResolver compiles expr, which must evaluate to a bool given
// variables `tool` (string), `server` (string), and `args` (map).
// Example: `tool != "delete_all" && args.count < 100`.
func NewCELResolver(expr string) (*CELResolver, error) {
	env, err := cel.NewEnv(
		cel.Variable("tool", cel.StringType),
		cel.Variable("server", cel.StringType),
		cel.Variable("args", cel.MapType(cel.StringType, cel.DynType)),
	)
	if err != nil {
		return nil, fmt.Errorf("building CEL environment: %w", err)
	}

	ast, iss := env.Compile(expr)
	if iss != nil && iss.Err() != nil {
		return nil, fmt.Errorf("compiling approval expression: %w", iss.Err())
	}

	program, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("building CEL program: %w", err)
	}

	return &CELResolver{program: program, source: expr}, nil
}

// Resolve evaluates the configured expression against req.
func (r *CELResolver) Resolve(_ context.Context, req Request) (bool, string, error) {
	args := req.Args
	if args == nil {
		args = map[string]any{}
	}

	out, _, err := r.program.Eval(map[string]any{
		"tool":   req.Tool,
		"server": req.Server,
		"args":   args,
	})
	if err != nil {
		return false, "", fmt.Errorf("evaluating approval expression %q: %w", r.source, err)
	}

	approved, ok := out.Value().(bool)
	if !ok {
		return false, "", fmt.Errorf("approval expression %q did not evaluate to a bool", r.source)
	}

	reason := "denied by approval expression"
	if approved {
		reason = "granted by approval expression"
	}
	return approved, reason, nil
}
