package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/jywlabs/prdforge/internal/autofix"
	"github.com/jywlabs/prdforge/internal/display"
	"github.com/jywlabs/prdforge/internal/engine"
	"github.com/jywlabs/prdforge/internal/enhance"
	"github.com/jywlabs/prdforge/internal/insights"
	"github.com/jywlabs/prdforge/internal/patterns"
	"github.com/jywlabs/prdforge/internal/prd"
	"github.com/jywlabs/prdforge/internal/prompter"
	"github.com/jywlabs/prdforge/internal/refine"
	"github.com/jywlabs/prdforge/internal/template"
	"github.com/spf13/cobra"
)

// refineFlags are the options of the refine command.
type refineFlags struct {
	engine        string
	autoApprove   bool
	fullHooks     bool
	maxIterations int
	conversation  string
	phases        string
	gapDriven     bool
	out           string
}

var refineOpts refineFlags

var refineCmd = &cobra.Command{
	Use:   "refine <doc>",
	Short: "Refine a PRD until it is executable",
	Long: `Run the schema, test and feature phases on a PRD and converge the result
to an executable document.

Each phase asks clarifying questions (confident AI answers are applied
without asking), generates its content, follows up on incomplete items and
asks for approval. Deterministic fixes run after every accepted phase.

With --auto-approve and without --full-hooks the questions and approvals are
skipped: each phase generates once and the document is validated once.

The refined document is written to .prdforge/prds/<id>.json (see --out).

Examples:
  prdforge refine docs/auth.md                     # Interactive refinement
  prdforge refine docs/auth.md --auto-approve      # Streamlined, no prompts
  prdforge refine auth.json --phases test          # Only the test phase
  prdforge refine auth.json --gap-driven           # Only phases with gaps
  prdforge refine auth.json --conversation <id>    # Resume a paused session`,
	Args: cobra.ExactArgs(1),
	RunE: runRefine,
}

func init() {
	refineCmd.Flags().StringVarP(&refineOpts.engine, "engine", "e", "", "Engine to use (claude, gemini); default from config")
	refineCmd.Flags().BoolVarP(&refineOpts.autoApprove, "auto-approve", "y", false, "Accept inferred answers and every phase")
	refineCmd.Flags().BoolVar(&refineOpts.fullHooks, "full-hooks", false, "Keep the question hooks with --auto-approve")
	refineCmd.Flags().IntVar(&refineOpts.maxIterations, "max-iterations", 0, "Shared refinement budget (0 = config value)")
	refineCmd.Flags().StringVar(&refineOpts.conversation, "conversation", "", "Resume a saved conversation")
	refineCmd.Flags().StringVar(&refineOpts.phases, "phases", "", "Comma-separated phases to run (schema,test,feature)")
	refineCmd.Flags().BoolVar(&refineOpts.gapDriven, "gap-driven", false, "Run only the phases whose gap is present")
	refineCmd.Flags().StringVarP(&refineOpts.out, "out", "o", "", "Output directory (default .prdforge/prds)")
	rootCmd.AddCommand(refineCmd)
}

func runRefine(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	s, err := openSession(ctx, ".")
	if err != nil {
		return err
	}
	defer s.close()

	d := display.New(os.Stdout, display.IsTerminal(os.Stdout))
	gen, err := newGenerator(s.cfg, refineOpts.engine, s.logger(), d)
	if err != nil {
		return err
	}

	var p prompter.Prompter
	if !refineOpts.autoApprove {
		term := prompter.NewTerminal(os.Stdin, os.Stdout)
		defer term.Close()
		p = term
	}

	res, err := refineDocument(ctx, s, gen, p, d, args[0], refineOpts)
	if res == nil {
		return err
	}
	d.ShowSummary(res.Summary(), res.Executable && err == nil)
	if err != nil {
		if res.ConversationID != "" {
			d.ShowInfo("Paused. Resume with: prdforge refine %s --conversation %s", args[0], res.ConversationID)
		}
		return err
	}
	if !res.Executable {
		return fmt.Errorf("%s is not executable (score %d/100)", args[0], res.Score.Score)
	}
	return nil
}

// refineDocument loads path, runs the orchestrator and saves what it learned.
// The result is nil only when the run could not start.
func refineDocument(ctx context.Context, s *session, gen engine.Generator, p prompter.Prompter, d *display.Display, path string, f refineFlags) (*refine.Result, error) {
	doc, err := prd.Load(path)
	if err != nil {
		return nil, err
	}

	phases, err := parsePhases(f.phases)
	if err != nil {
		return nil, err
	}

	ins, err := insights.Gather(s.dir)
	if err != nil {
		s.logger().Warn("insights unavailable", "error", err)
		ins = nil
	}

	var cache *patterns.Cache
	if initialized(s.dir) {
		cache, err = patterns.Load(patterns.Path(s.dir))
		if err != nil {
			return nil, err
		}
	}

	outDir := f.out
	if outDir == "" {
		outDir = filepath.Join(s.dir, template.ProjectDir, template.OutputDir)
	}
	writer := prd.NewWriter(outDir)

	o := refine.New(enhance.NewAIEnhancer(gen, engine.Options{}, s.logger()), p)
	o.Store = s.store
	o.Patterns = cache
	o.Gate = s.cfg.Gate
	o.Testing = testingDefaults(s, ins)
	o.Logger = s.logger()
	o.Metrics = s.metrics
	o.Persister = autofix.PersistFunc(func(ctx context.Context, doc *prd.Document) error {
		_, err := writer.Write(doc)
		return err
	})
	if d != nil {
		o.Observer = d
	}

	opts := refine.Options{
		MaxIterations:  f.maxIterations,
		AutoApprove:    f.autoApprove,
		FullHooks:      f.fullHooks,
		Phases:         phases,
		GapDriven:      f.gapDriven,
		ConversationID: f.conversation,
	}
	if opts.MaxIterations <= 0 {
		opts.MaxIterations = s.cfg.MaxIterations
	}

	if d != nil {
		shown := phases
		if len(shown) == 0 {
			shown = enhance.Kinds
		}
		d.ShowRunHeader(doc.ID, gen.Name(), shown, opts.MaxIterations)
	}

	rctx := refine.Context{
		Insights: ins,
		Values:   map[string]string{"source": path, "engine": gen.Name()},
	}
	res, runErr := o.Refine(ctx, doc, rctx, opts)

	if cache != nil && cache.Dirty() {
		if err := cache.Save(); err != nil {
			return res, errors.Join(runErr, fmt.Errorf("failed to save patterns: %w", err))
		}
	}
	return res, runErr
}

// parsePhases parses a comma-separated phase list. Empty means all.
func parsePhases(s string) ([]enhance.Kind, error) {
	var kinds []enhance.Kind
	for _, part := range strings.Split(s, ",") {
		if strings.TrimSpace(part) == "" {
			continue
		}
		k, err := enhance.ParseKind(part)
		if err != nil {
			return nil, err
		}
		kinds = append(kinds, k)
	}
	return kinds, nil
}

// testingDefaults prefers the toolchain detected in the repository over
// the configured defaults.
func testingDefaults(s *session, ins *insights.Insights) enhance.TestingDefaults {
	if t, ok := ins.Testing(); ok {
		return t
	}
	return s.cfg.Testing
}
