// Package main implements the skillctl CLI for working with skill
// manifests locally: validating, planning, and running single pipelines.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/skilld/internal/engine"
	"github.com/fyrsmithlabs/skilld/internal/logging"
	"github.com/fyrsmithlabs/skilld/pkg/graph"
	"github.com/fyrsmithlabs/skilld/pkg/manifest"
)

var (
	logLevel string
	repoPath string
	branch   string
	parallel bool

	version = "dev"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "skillctl",
	Short: "CLI for validating and running skill pipelines",
	Long: `skillctl works with skill manifests locally, without a running
skilld daemon. It validates manifests, shows resolved execution plans,
and runs single pipelines.`,
	Version:      version,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "log level (debug, info, warn, error)")
	runCmd.Flags().StringVar(&repoPath, "repo", "", "repository the integrate phase commits in")
	runCmd.Flags().StringVar(&branch, "branch", "", "integration branch (default: skilld/<skill-id>)")
	runCmd.Flags().BoolVar(&parallel, "parallel", false, "run independent actions concurrently")
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(planCmd)
	rootCmd.AddCommand(runCmd)
}

// validateCmd validates every manifest under a directory.
var validateCmd = &cobra.Command{
	Use:   "validate <dir>",
	Short: "Validate skill manifests under a directory",
	Long: `Validate every skill manifest under a directory.

Examples:
  # Validate a directory of skill directories
  skillctl validate ./skills

  # Validate a single skill directory
  skillctl validate ./skills/restart-flaky-deploy`,
	Args: cobra.ExactArgs(1),
	RunE: runValidate,
}

// planCmd prints the resolved execution plan for one manifest.
var planCmd = &cobra.Command{
	Use:   "plan <manifest>",
	Short: "Show the topological execution plan for a skill",
	Long: `Resolve a skill's action graph and print the execution order,
including which actions could run concurrently.

Examples:
  skillctl plan ./skills/restart-flaky-deploy/skill.json`,
	Args: cobra.ExactArgs(1),
	RunE: runPlan,
}

// runCmd executes one pipeline run for a manifest.
var runCmd = &cobra.Command{
	Use:   "run <manifest>",
	Short: "Run one skill through the full pipeline",
	Long: `Run a skill through the six-phase pipeline and print the run
result as JSON. Exits zero only when the pipeline verdict is success.

Examples:
  skillctl run ./skills/restart-flaky-deploy/skill.json

  # Commit remediation changes into a working repository
  skillctl run --repo ~/src/service ./skills/bump-base-image/skill.json`,
	Args: cobra.ExactArgs(1),
	RunE: runRun,
}

func runValidate(cmd *cobra.Command, args []string) error {
	logger, err := newLogger()
	if err != nil {
		return err
	}

	registry := manifest.NewRegistry(manifest.NewValidator(logger), logger)
	results, err := registry.LoadDir(args[0])
	if err != nil {
		return err
	}

	invalid := 0
	for _, result := range results {
		id := result.Path
		if result.Skill != nil && result.Skill.ID != "" {
			id = result.Skill.ID
		}

		if result.Report.Valid {
			fmt.Fprintf(cmd.OutOrStdout(), "ok    %s (%d warning(s))\n", id, len(result.Report.Warnings))
		} else {
			invalid++
			fmt.Fprintf(cmd.OutOrStdout(), "FAIL  %s\n", id)
			for _, e := range result.Report.Errors {
				fmt.Fprintf(cmd.OutOrStdout(), "      error: %s\n", e)
			}
		}
		for _, w := range result.Report.Warnings {
			fmt.Fprintf(cmd.OutOrStdout(), "      warning: %s\n", w)
		}
	}

	if invalid > 0 {
		return fmt.Errorf("%d of %d manifest(s) invalid", invalid, len(results))
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%d manifest(s) valid\n", len(results))
	return nil
}

func runPlan(cmd *cobra.Command, args []string) error {
	skill, err := loadValidSkill(args[0])
	if err != nil {
		return err
	}

	plan, err := graph.Resolve(skill.Actions)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "skill %s: %d action(s) in %d batch(es)\n", skill, len(plan.Ordered), len(plan.Batches))
	step := 1
	for i, batch := range plan.Batches {
		for _, action := range batch {
			fmt.Fprintf(cmd.OutOrStdout(), "%3d. [batch %d] %s (%s)\n", step, i+1, action.ID, action.Type)
			step++
		}
	}
	return nil
}

func runRun(cmd *cobra.Command, args []string) error {
	logger, err := newLogger()
	if err != nil {
		return err
	}

	skill, err := loadValidSkill(args[0])
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	eng := engine.New(engine.Options{
		RepoPath: repoPath,
		Branch:   branch,
		Parallel: parallel,
	}, logger)

	run, err := eng.Run(ctx, skill)
	if err != nil {
		return err
	}

	out, err := json.MarshalIndent(run, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding run result: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(out))

	if !run.Succeeded() {
		return fmt.Errorf("pipeline verdict: %s", run.Verdict)
	}
	return nil
}

// loadValidSkill loads one manifest and refuses invalid ones.
func loadValidSkill(path string) (*manifest.Skill, error) {
	skill, err := manifest.LoadFile(path)
	if err != nil {
		return nil, err
	}

	report := manifest.NewValidator(nil).Validate(skill)
	if !report.Valid {
		return nil, fmt.Errorf("manifest %s invalid: %s", path, report.Errors[0])
	}
	return skill, nil
}

func newLogger() (*zap.Logger, error) {
	return logging.New(logLevel, "console")
}
