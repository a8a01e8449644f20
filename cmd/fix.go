package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/jywlabs/prdforge/internal/autofix"
	"github.com/jywlabs/prdforge/internal/display"
	"github.com/jywlabs/prdforge/internal/prd"
	"github.com/jywlabs/prdforge/internal/score"
	"github.com/spf13/cobra"
)

var (
	fixMaxIterations int
	fixWrite         bool
)

var fixCmd = &cobra.Command{
	Use:   "fix <doc>",
	Short: "Apply deterministic fixes until a PRD is executable",
	Long: `Run the auto-fix engine on a PRD without calling an AI engine.

Fixers repair the id pattern, the testing configuration, missing ids,
titles, versions and descriptions, empty phases and duplicate task ids. One
fix is applied per iteration, highest priority first, until the document is
executable, no fixer applies, or the budget runs out.

Without --write the fixed document is only scored.

Examples:
  prdforge fix auth.json                  # Preview the fixes
  prdforge fix auth.json --write          # Rewrite auth.json in place
  prdforge fix auth.json --max-iterations 3`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runFix(cmd.Context(), ".", args[0], fixMaxIterations, fixWrite, os.Stdout)
	},
}

func init() {
	fixCmd.Flags().IntVar(&fixMaxIterations, "max-iterations", 0, "Max fixes to apply (0 = config value)")
	fixCmd.Flags().BoolVarP(&fixWrite, "write", "w", false, "Write the fixed document back to its file")
	rootCmd.AddCommand(fixCmd)
}

func runFix(ctx context.Context, dir, path string, maxIterations int, write bool, w io.Writer) error {
	s, err := openSession(ctx, dir)
	if err != nil {
		return err
	}
	defer s.close()

	doc, err := prd.Load(path)
	if err != nil {
		return err
	}
	if maxIterations <= 0 {
		maxIterations = s.cfg.MaxIterations
	}

	d := display.New(w, false)
	d.ShowCommandHeader("Fix", path)

	eng := autofix.New(score.New(), s.cfg.Testing)
	eng.Logger = s.logger()
	eng.Metrics = s.metrics
	if write {
		eng.Persister = autofix.PersistFunc(func(ctx context.Context, doc *prd.Document) error {
			return prd.Save(path, doc)
		})
	}

	res, err := eng.Converge(ctx, doc, maxIterations)
	for _, f := range res.FixesApplied {
		d.FixApplied(f)
	}
	if err != nil {
		return err
	}
	d.ShowScore(path, res.Final)

	switch {
	case res.Stalled:
		d.ShowInfo("A fix did not change the issues; the rest need manual edits.")
	case res.Exhausted:
		d.ShowInfo("Stopped after %d fixes; run again with a larger --max-iterations.", res.Iterations)
	}
	if !write && len(res.FixesApplied) > 0 {
		d.ShowInfo("Preview only. Use --write to save %d fix(es) to %s.", len(res.FixesApplied), path)
	}

	if !res.Executable {
		return fmt.Errorf("%s: %w", path, errNotExecutable)
	}
	return nil
}
