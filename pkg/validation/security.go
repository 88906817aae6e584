package validation

import (
	"context"
	"fmt"
	"strings"

	"github.com/zricethezav/gitleaks/v8/detect"
)

// SecurityLayer scans content (typically the remediation patch) for
// leaked credentials, tokens, and private keys using the Gitleaks
// default ruleset.
//
// A patch that embeds a secret must never be integrated, so any finding
// fails the layer. Findings are named by rule in the detail but the
// matched secret values are never echoed back.
func SecurityLayer(content string) LayerFunc {
	return func(ctx context.Context) Layer {
		const name = "security"

		detector, err := detect.NewDetectorDefaultConfig()
		if err != nil {
			return Layer{Name: name, Passed: false, Detail: fmt.Sprintf("initializing detector: %v", err)}
		}

		findings := detector.DetectString(content)
		if len(findings) == 0 {
			return Layer{Name: name, Passed: true}
		}

		rules := make([]string, 0, len(findings))
		seen := make(map[string]bool)
		for _, f := range findings {
			if !seen[f.RuleID] {
				seen[f.RuleID] = true
				rules = append(rules, f.RuleID)
			}
		}
		return Layer{
			Name:   name,
			Passed: false,
			Detail: fmt.Sprintf("%d finding(s): %s", len(findings), strings.Join(rules, ", ")),
		}
	}
}
