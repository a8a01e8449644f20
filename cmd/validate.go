package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/jywlabs/prdforge/internal/depgraph"
	"github.com/jywlabs/prdforge/internal/display"
	"github.com/jywlabs/prdforge/internal/prd"
	"github.com/jywlabs/prdforge/internal/score"
	"github.com/spf13/cobra"
)

const defaultSetPattern = "**/*.json"

var (
	validateSetPattern string
	validateSetJSON    bool
)

var validateSetCmd = &cobra.Command{
	Use:   "validate-set <dir-or-glob>",
	Short: "Validate dependencies across a PRD set",
	Long: `Validate a set of PRDs as a whole.

Checks:
  - Every declared dependency (dependsOn and "<doc>:<task>" task
    references) names a document in the set
  - There are no circular dependencies
  - Document ids are unique
  - Every document is executable on its own

The set is integrated when all checks pass. A build order is printed when
the dependencies form no cycle.

Examples:
  prdforge validate-set .prdforge/prds           # All *.json below the directory
  prdforge validate-set 'prds/**/*.yaml'          # Glob
  prdforge validate-set prds --pattern '*.md'     # Directory with a pattern`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runValidateSet(args[0], validateSetPattern, validateSetJSON, os.Stdout)
	},
}

func init() {
	validateSetCmd.Flags().StringVar(&validateSetPattern, "pattern", defaultSetPattern, "Pattern used when the argument is a directory")
	validateSetCmd.Flags().BoolVar(&validateSetJSON, "json", false, "Print the result as JSON")
	rootCmd.AddCommand(validateSetCmd)
}

// setRoot splits a directory or glob argument into a root and a pattern.
func setRoot(arg, pattern string) (string, string) {
	if info, err := os.Stat(arg); err == nil && info.IsDir() {
		return arg, pattern
	}
	return doublestar.SplitPattern(arg)
}

func runValidateSet(arg, pattern string, asJSON bool, w io.Writer) error {
	root, pat := setRoot(arg, pattern)
	paths, err := prd.Discover(root, pat)
	if err != nil {
		return err
	}
	if len(paths) == 0 {
		return fmt.Errorf("no documents match %s", arg)
	}

	docs, err := prd.LoadSet(paths)
	if err != nil {
		return err
	}
	res := depgraph.ValidateSet(docs, score.New())

	if asJSON {
		data, err := json.MarshalIndent(res, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(w, string(data))
	} else {
		showSetResult(w, arg, res)
	}

	if !res.Integrated {
		return fmt.Errorf("%d document(s) in %s are not integrated", len(docs), arg)
	}
	return nil
}

func showSetResult(w io.Writer, arg string, res depgraph.IntegrationResult) {
	d := display.New(w, false)
	d.ShowCommandHeader("Validate set", arg)

	for _, ds := range res.Documents {
		mark := display.StyleSuccess.Render("[ok]")
		if !ds.Result.Executable {
			mark = display.StyleError.Render("[!!]")
		}
		fmt.Fprintf(w, "  %s %-24s score %3d/100  quality %3d/100\n", mark, ds.ID, ds.Result.Score, ds.Result.Quality)
		for _, is := range ds.Result.Errors {
			fmt.Fprintf(w, "       %s %s\n", display.StyleError.Render("error"), is.Message)
		}
	}
	fmt.Fprintln(w)

	var problems []string
	for _, m := range res.Report.MissingDependencies {
		line := m.String()
		if len(m.Via) > 0 {
			line += " (via " + strings.Join(m.Via, ", ") + ")"
		}
		problems = append(problems, line)
	}
	for _, c := range res.Report.CircularDependencies {
		problems = append(problems, c.String())
	}
	for _, id := range res.Report.DuplicateIDs {
		problems = append(problems, fmt.Sprintf("document id %s is used more than once", id))
	}

	if len(res.Order) > 0 {
		fmt.Fprintf(w, "Build order: %s\n", strings.Join(res.Order, " -> "))
	}
	if res.Integrated {
		fmt.Fprintln(w, display.SuccessBox().Render(display.StyleSuccess.Render("[ok] Set is integrated")))
		return
	}
	body := display.StyleError.Render("[!!] Set is not integrated")
	for _, p := range problems {
		body += "\n  - " + p
	}
	fmt.Fprintln(w, display.ErrorBox().Render(body))
}
