package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/jywlabs/prdforge/internal/display"
	"github.com/jywlabs/prdforge/internal/prd"
	"github.com/jywlabs/prdforge/internal/score"
	"github.com/spf13/cobra"
)

// errNotExecutable makes the command exit non-zero after the report is shown.
var errNotExecutable = errors.New("document is not executable")

var scoreJSON bool

var scoreCmd = &cobra.Command{
	Use:   "score <doc>",
	Short: "Score a PRD against the executability rubric",
	Long: `Score a PRD and list the gaps an enhancement phase could close.

Errors make a document non-executable and lower the score. Warnings only
lower the quality.

Supported formats: .json, .yaml, .md (YAML front matter, "## Phase"
headings and "- [ ] ID: title" task lines).

Examples:
  prdforge score docs/auth.md
  prdforge score auth.json --json`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runScore(args[0], scoreJSON, os.Stdout)
	},
}

func init() {
	scoreCmd.Flags().BoolVar(&scoreJSON, "json", false, "Print the result as JSON")
	rootCmd.AddCommand(scoreCmd)
}

// scoreReport is the JSON form of the score command.
type scoreReport struct {
	Path   string       `json:"path"`
	Result score.Result `json:"result"`
	Gaps   []score.Gap  `json:"gaps"`
}

func runScore(path string, asJSON bool, w io.Writer) error {
	doc, err := prd.Load(path)
	if err != nil {
		return err
	}

	res := score.New().Validate(doc)
	gaps := score.Gaps(doc, res)

	if asJSON {
		data, err := json.MarshalIndent(scoreReport{Path: path, Result: res, Gaps: gaps}, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(w, string(data))
	} else {
		d := display.New(w, false)
		d.ShowScore(path, res)
		d.ShowGaps(gaps)
	}

	if !res.Executable {
		return errNotExecutable
	}
	return nil
}
