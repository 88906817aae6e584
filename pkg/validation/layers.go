package validation

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"

	"go.uber.org/zap"
)

// LayerFunc produces one validation layer. A LayerFunc never returns an
// error: a check that cannot run reports itself as a failed layer with
// the reason in Detail, so no sub-step failure is silently suppressed.
type LayerFunc func(ctx context.Context) Layer

// RunLayers executes every layer function and returns all results.
// There is no early exit on failure; operators get the full picture.
func RunLayers(ctx context.Context, logger *zap.Logger, funcs ...LayerFunc) []Layer {
	if logger == nil {
		logger = zap.NewNop()
	}

	layers := make([]Layer, 0, len(funcs))
	for _, fn := range funcs {
		layer := fn(ctx)
		logger.Debug("validation layer finished",
			zap.String("layer", layer.Name),
			zap.Bool("passed", layer.Passed),
		)
		layers = append(layers, layer)
	}
	return layers
}

// CommandLayer runs a command and passes when it exits zero. It backs
// the static-check and test-suite layers, where the actual tooling
// (linters, test runners) already exists outside the pipeline.
func CommandLayer(name, dir string, argv ...string) LayerFunc {
	return func(ctx context.Context) Layer {
		if len(argv) == 0 {
			return Layer{Name: name, Passed: false, Detail: "no command configured"}
		}

		cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
		cmd.Dir = dir
		output, err := cmd.CombinedOutput()
		if err != nil {
			detail := strings.TrimSpace(string(output))
			if detail == "" {
				detail = err.Error()
			}
			return Layer{Name: name, Passed: false, Detail: detail}
		}
		return Layer{Name: name, Passed: true}
	}
}

// SyntaxLayer checks that a JSON document is well-formed. It is the
// cheapest static check for manifest and envelope artifacts.
func SyntaxLayer(name string, data []byte) LayerFunc {
	return func(ctx context.Context) Layer {
		if !json.Valid(data) {
			return Layer{Name: name, Passed: false, Detail: "document is not valid JSON"}
		}
		return Layer{Name: name, Passed: true}
	}
}

// GovernanceChecker is the external governance/identity collaborator,
// treated as a pass/fail black box.
type GovernanceChecker interface {
	// Check reports whether the skill's declared owner is authorized to
	// run it. The string carries diagnostic detail for the layer report.
	Check(ctx context.Context, skillID, owner string) (bool, string, error)
}

// GovernanceLayer consults the governance collaborator. A collaborator
// error fails the layer with the error as detail; governance problems
// must never pass silently.
func GovernanceLayer(checker GovernanceChecker, skillID, owner string) LayerFunc {
	return func(ctx context.Context) Layer {
		const name = "governance"

		if checker == nil {
			return Layer{Name: name, Passed: false, Detail: "no governance checker configured"}
		}

		ok, detail, err := checker.Check(ctx, skillID, owner)
		if err != nil {
			return Layer{Name: name, Passed: false, Detail: fmt.Sprintf("governance check error: %v", err)}
		}
		return Layer{Name: name, Passed: ok, Detail: detail}
	}
}
