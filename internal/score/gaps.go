package score

import (
	"fmt"

	"github.com/jywlabs/prdforge/internal/enhance"
	"github.com/jywlabs/prdforge/internal/prd"
)

// GapType classifies a deficiency that an enhancement can remedy.
type GapType string

const (
	GapMissingSchema       GapType = "missing-schema"
	GapMissingTest         GapType = "missing-test"
	GapMissingConfig       GapType = "missing-config"
	GapMissingAcceptance   GapType = "missing-acceptance-criteria"
	GapMissingDependencies GapType = "missing-dependencies"
)

// Gap severities.
const (
	GapHigh   = "high"
	GapMedium = "medium"
	GapLow    = "low"
)

// Gap is a detected deficiency with a remediation hint.
type Gap struct {
	Type           GapType `json:"type"`
	Severity       string  `json:"severity"`
	Description    string  `json:"description"`
	Recommendation string  `json:"recommendation"`
}

// Phase returns the enhancement phase that closes the gap, if any.
func (g Gap) Phase() (enhance.Kind, bool) {
	switch g.Type {
	case GapMissingSchema:
		return enhance.KindSchema, true
	case GapMissingTest:
		return enhance.KindTest, true
	case GapMissingConfig:
		return enhance.KindFeature, true
	}
	return "", false
}

// Gaps derives gap records from a document and its validation result.
func Gaps(doc *prd.Document, result Result) []Gap {
	var gaps []Gap

	if doc.Schema == nil || len(doc.Schema.Entities) == 0 {
		gaps = append(gaps, Gap{
			Type:           GapMissingSchema,
			Severity:       GapMedium,
			Description:    "no data model is defined",
			Recommendation: "run the schema phase to describe entities and fields",
		})
	}

	if doc.Testing == nil || len(doc.Testing.Cases) == 0 {
		sev := GapMedium
		if len(result.IssuesFor(CategoryTesting)) > 0 {
			sev = GapHigh
		}
		gaps = append(gaps, Gap{
			Type:           GapMissingTest,
			Severity:       sev,
			Description:    "no test cases are defined",
			Recommendation: "run the test phase to add a test case per task",
		})
	}

	if doc.Config == nil || len(doc.Config.Flags) == 0 {
		gaps = append(gaps, Gap{
			Type:           GapMissingConfig,
			Severity:       GapLow,
			Description:    "no feature configuration is defined",
			Recommendation: "run the feature phase to add feature flags",
		})
	}

	missing := 0
	for _, p := range doc.Phases {
		for _, t := range p.Tasks {
			if len(t.AcceptanceCriteria) == 0 {
				missing++
			}
		}
	}
	if missing > 0 {
		gaps = append(gaps, Gap{
			Type:           GapMissingAcceptance,
			Severity:       GapMedium,
			Description:    fmt.Sprintf("%d of %d tasks have no acceptance criteria", missing, doc.TaskCount()),
			Recommendation: "add verifiable acceptance criteria to each task",
		})
	}

	if doc.Dependencies == nil {
		gaps = append(gaps, Gap{
			Type:           GapMissingDependencies,
			Severity:       GapLow,
			Description:    "the document declares no dependency descriptor",
			Recommendation: "declare dependsOn (possibly empty) so the set validator can order documents",
		})
	}

	return gaps
}

// GapPhases returns the enhancement phases needed to close gaps, in run order.
func GapPhases(gaps []Gap) []enhance.Kind {
	need := make(map[enhance.Kind]bool)
	for _, g := range gaps {
		if k, ok := g.Phase(); ok {
			need[k] = true
		}
	}
	var out []enhance.Kind
	for _, k := range enhance.Kinds {
		if need[k] {
			out = append(out, k)
		}
	}
	return out
}
