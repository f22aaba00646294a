package snapshot

import (
	"context"
	"fmt"
	"sort"

	"github.com/JakeFAU/memote-webservice/internal/metabolic"
)

// Check is one test of the snapshot suite.
type Check struct {
	ID      string
	Title   string
	Summary string
	Run     func(*metabolic.Model) TestResult
}

// Suite runs the model snapshot checks.
type Suite struct {
	checks  []Check
	version string
	clock   Clock
}

// NewSuite builds a suite. With no checks given it runs DefaultChecks.
func NewSuite(clock Clock, version string, checks ...Check) *Suite {
	if len(checks) == 0 {
		checks = DefaultChecks()
	}
	return &Suite{checks: checks, version: version, clock: clock}
}

// Run executes every check against the model. It stops early when the
// context is done.
func (s *Suite) Run(ctx context.Context, model *metabolic.Model) (*Report, error) {
	if model == nil {
		return nil, fmt.Errorf("model is nil")
	}
	results := make([]TestResult, 0, len(s.checks))
	for _, check := range s.checks {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("snapshot interrupted before %s: %w", check.ID, err)
		}
		res := check.Run(model)
		res.ID = check.ID
		res.Title = check.Title
		res.Summary = check.Summary
		results = append(results, res)
	}
	meta := ReportMeta{ModelID: model.ID, Timestamp: s.clock.Now(), Version: s.version}
	return NewReport(meta, results), nil
}

// DefaultChecks returns the structural checks run on every model.
func DefaultChecks() []Check {
	return []Check{
		{
			ID:      "test_model_id_presence",
			Title:   "Model Identifier",
			Summary: "Expect that the model has an identifier.",
			Run: func(m *metabolic.Model) TestResult {
				return boolResult(m.ID != "", "model has no identifier")
			},
		},
		{
			ID:      "test_metabolites_presence",
			Title:   "Total Metabolites",
			Summary: "Expect that at least one metabolite is defined in the model.",
			Run: func(m *metabolic.Model) TestResult {
				return countResult(len(m.Metabolites), "metabolites")
			},
		},
		{
			ID:      "test_reactions_presence",
			Title:   "Total Reactions",
			Summary: "Expect that at least one reaction is defined in the model.",
			Run: func(m *metabolic.Model) TestResult {
				return countResult(len(m.Reactions), "reactions")
			},
		},
		{
			ID:      "test_genes_presence",
			Title:   "Total Genes",
			Summary: "Expect that at least one gene is defined in the model.",
			Run: func(m *metabolic.Model) TestResult {
				return countResult(len(m.Genes), "genes")
			},
		},
		{
			ID:      "test_compartments_presence",
			Title:   "Total Compartments",
			Summary: "Expect that the model contains at least one compartment.",
			Run: func(m *metabolic.Model) TestResult {
				return countResult(len(m.CompartmentIDs()), "compartments")
			},
		},
		{
			ID:      "test_metabolites_formula_presence",
			Title:   "Metabolite Formula Presence",
			Summary: "Expect all metabolites to have a chemical formula.",
			Run: func(m *metabolic.Model) TestResult {
				var missing []string
				for _, met := range m.Metabolites {
					if met.Formula == "" {
						missing = append(missing, met.ID)
					}
				}
				return fractionResult(missing, len(m.Metabolites), "metabolites lack a formula")
			},
		},
		{
			ID:      "test_metabolites_charge_presence",
			Title:   "Metabolite Charge Presence",
			Summary: "Expect all metabolites to have a charge.",
			Run: func(m *metabolic.Model) TestResult {
				var missing []string
				for _, met := range m.Metabolites {
					if met.Charge == nil {
						missing = append(missing, met.ID)
					}
				}
				return fractionResult(missing, len(m.Metabolites), "metabolites lack a charge")
			},
		},
		{
			ID:      "test_gene_protein_reaction_rule_presence",
			Title:   "Gene-Protein-Reaction (GPR) Associations",
			Summary: "Expect all non-exchange reactions to have a GPR rule.",
			Run: func(m *metabolic.Model) TestResult {
				var missing []string
				total := 0
				for _, rxn := range m.Reactions {
					if len(rxn.Metabolites) < 2 {
						continue
					}
					total++
					if rxn.GeneReactionRule == "" {
						missing = append(missing, rxn.ID)
					}
				}
				return fractionResult(missing, total, "reactions lack a GPR rule")
			},
		},
		{
			ID:      "test_reaction_bounds_consistency",
			Title:   "Reaction Bounds Consistency",
			Summary: "Expect every lower bound not to exceed its upper bound.",
			Run: func(m *metabolic.Model) TestResult {
				var bad []string
				for _, rxn := range m.Reactions {
					if rxn.LowerBound > rxn.UpperBound {
						bad = append(bad, rxn.ID)
					}
				}
				return fractionResult(bad, len(m.Reactions), "reactions have inverted bounds")
			},
		},
		{
			ID:      "test_objective_presence",
			Title:   "Objective Function Presence",
			Summary: "Expect the model to define an objective.",
			Run: func(m *metabolic.Model) TestResult {
				objective := m.ObjectiveReactions()
				res := boolResult(len(objective) > 0, "no reaction carries an objective coefficient")
				res.Data = objective
				return res
			},
		},
	}
}

func boolResult(ok bool, failure string) TestResult {
	if ok {
		return TestResult{Outcome: OutcomePassed}
	}
	return TestResult{Outcome: OutcomeFailed, Metric: 1, Message: failure}
}

func countResult(n int, noun string) TestResult {
	res := TestResult{Outcome: OutcomePassed, Message: fmt.Sprintf("%d %s", n, noun)}
	if n == 0 {
		res.Outcome = OutcomeFailed
		res.Metric = 1
	}
	return res
}

// fractionResult fails when any offender exists. Metric is the offending
// fraction of total; an empty population is skipped.
func fractionResult(offenders []string, total int, what string) TestResult {
	if total == 0 {
		return TestResult{Outcome: OutcomeSkipped, Message: "nothing to test"}
	}
	sort.Strings(offenders)
	res := TestResult{
		Outcome: OutcomePassed,
		Metric:  float64(len(offenders)) / float64(total),
		Data:    offenders,
	}
	if len(offenders) > 0 {
		res.Outcome = OutcomeFailed
		res.Message = fmt.Sprintf("%d of %d %s", len(offenders), total, what)
	}
	return res
}
