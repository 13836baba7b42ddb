package skills

import (
	"sort"
	"strings"

	"finsight/internal/domain/analysis"
	"finsight/internal/tools"
	"finsight/pkg/errors"
)

// ID identifies a registered skill
type ID string

const (
	StockAnalysis ID = "stock_analysis"
	TechnicalScan ID = "technical_scan"
	NewsDigest    ID = "news_digest"
	MarketReport  ID = "market_report"
)

// ArgBuilder derives tool arguments from the request
type ArgBuilder func(req analysis.Request) map[string]interface{}

// MergeFunc folds one tool result into the model input
type MergeFunc func(in *analysis.Input, res tools.Result)

// Step is one tool invocation of a skill. Steps sharing a Group run concurrently.
type Step struct {
	Tool  string
	Group int
	Args  ArgBuilder
	// When skips the step for requests it does not apply to
	When func(req analysis.Request) bool
}

// Applies reports whether the step runs for req
func (s Step) Applies(req analysis.Request) bool {
	return s.When == nil || s.When(req)
}

// Skill is an analysis pipeline: the tools it runs and how their output is merged
type Skill struct {
	ID            ID
	Description   string
	Steps         []Step
	Merge         MergeFunc
	SchemaVersion string
	// Instructions are appended to the system prompt
	Instructions   string
	RequiresSymbol bool
}

// Groups returns the steps applicable to req, bucketed by group in ascending order
func (s Skill) Groups(req analysis.Request) [][]Step {
	byGroup := make(map[int][]Step)
	for _, step := range s.Steps {
		if step.Applies(req) {
			byGroup[step.Group] = append(byGroup[step.Group], step)
		}
	}
	keys := make([]int, 0, len(byGroup))
	for k := range byGroup {
		keys = append(keys, k)
	}
	sort.Ints(keys)

	out := make([][]Step, 0, len(keys))
	for _, k := range keys {
		out = append(out, byGroup[k])
	}
	return out
}

// ToolNames lists the tools the skill may call
func (s Skill) ToolNames() []string {
	names := make([]string, 0, len(s.Steps))
	for _, step := range s.Steps {
		names = append(names, step.Tool)
	}
	return names
}

// Validate checks the request carries what the skill needs
func (s Skill) Validate(req analysis.Request) error {
	if s.RequiresSymbol && strings.TrimSpace(req.Symbol) == "" {
		return errors.NewValidationError("symbol", "required by skill "+string(s.ID), nil)
	}
	return nil
}

func (s Skill) validateDefinition() error {
	if s.ID == "" {
		return errors.NewValidationError("id", "skill id is empty", nil)
	}
	if len(s.Steps) == 0 {
		return errors.NewValidationError("steps", "skill has no steps", s.ID)
	}
	for _, step := range s.Steps {
		if step.Tool == "" || step.Args == nil {
			return errors.NewValidationError("steps", "step needs a tool and an argument builder", s.ID)
		}
	}
	return nil
}
