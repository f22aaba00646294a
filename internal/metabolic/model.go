// Package metabolic holds the in-memory representation of genome-scale
// metabolic models together with readers for the JSON and SBML exchange
// formats. The JSON layout follows the cobra schema so a Model can be
// serialized onto the job queue and decoded again by a worker.
package metabolic

import (
	"fmt"
	"sort"
)

// Model is a parsed metabolic model.
type Model struct {
	ID           string            `json:"id"`
	Name         string            `json:"name,omitempty"`
	Compartments map[string]string `json:"compartments,omitempty"`
	Metabolites  []Metabolite      `json:"metabolites"`
	Reactions    []Reaction        `json:"reactions"`
	Genes        []Gene            `json:"genes"`
	Version      string            `json:"version,omitempty"`
}

// Metabolite is a chemical species taking part in reactions.
type Metabolite struct {
	ID          string         `json:"id"`
	Name        string         `json:"name,omitempty"`
	Compartment string         `json:"compartment,omitempty"`
	Formula     string         `json:"formula,omitempty"`
	Charge      *int           `json:"charge,omitempty"`
	Annotation  map[string]any `json:"annotation,omitempty"`
}

// Reaction converts metabolites according to its stoichiometry. Negative
// coefficients denote reactants, positive ones products.
type Reaction struct {
	ID                   string             `json:"id"`
	Name                 string             `json:"name,omitempty"`
	Metabolites          map[string]float64 `json:"metabolites"`
	LowerBound           float64            `json:"lower_bound"`
	UpperBound           float64            `json:"upper_bound"`
	GeneReactionRule     string             `json:"gene_reaction_rule"`
	ObjectiveCoefficient float64            `json:"objective_coefficient,omitempty"`
	Subsystem            string             `json:"subsystem,omitempty"`
	Annotation           map[string]any     `json:"annotation,omitempty"`
}

// Gene is a gene product referenced from gene-reaction rules.
type Gene struct {
	ID         string         `json:"id"`
	Name       string         `json:"name,omitempty"`
	Annotation map[string]any `json:"annotation,omitempty"`
}

// ObjectiveReactions returns the IDs of reactions with a non-zero objective
// coefficient, sorted.
func (m *Model) ObjectiveReactions() []string {
	var ids []string
	for _, rxn := range m.Reactions {
		if rxn.ObjectiveCoefficient != 0 {
			ids = append(ids, rxn.ID)
		}
	}
	sort.Strings(ids)
	return ids
}

// CompartmentIDs returns the set of compartments declared or referenced by
// metabolites.
func (m *Model) CompartmentIDs() []string {
	seen := make(map[string]struct{}, len(m.Compartments))
	for id := range m.Compartments {
		seen[id] = struct{}{}
	}
	for _, met := range m.Metabolites {
		if met.Compartment != "" {
			seen[met.Compartment] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for id := range seen {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// checkReferences verifies identifiers are unique and every stoichiometric
// entry points at a declared metabolite.
func (m *Model) checkReferences() error {
	mets := make(map[string]struct{}, len(m.Metabolites))
	for i, met := range m.Metabolites {
		if met.ID == "" {
			return fmt.Errorf("metabolite at index %d has no id", i)
		}
		if _, dup := mets[met.ID]; dup {
			return fmt.Errorf("duplicate metabolite id %q", met.ID)
		}
		mets[met.ID] = struct{}{}
	}
	rxns := make(map[string]struct{}, len(m.Reactions))
	for i, rxn := range m.Reactions {
		if rxn.ID == "" {
			return fmt.Errorf("reaction at index %d has no id", i)
		}
		if _, dup := rxns[rxn.ID]; dup {
			return fmt.Errorf("duplicate reaction id %q", rxn.ID)
		}
		rxns[rxn.ID] = struct{}{}
		for metID := range rxn.Metabolites {
			if _, ok := mets[metID]; !ok {
				return fmt.Errorf("reaction %q references unknown metabolite %q", rxn.ID, metID)
			}
		}
	}
	genes := make(map[string]struct{}, len(m.Genes))
	for i, gene := range m.Genes {
		if gene.ID == "" {
			return fmt.Errorf("gene at index %d has no id", i)
		}
		if _, dup := genes[gene.ID]; dup {
			return fmt.Errorf("duplicate gene id %q", gene.ID)
		}
		genes[gene.ID] = struct{}{}
	}
	return nil
}
