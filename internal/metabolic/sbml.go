package metabolic

import (
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"

	"github.com/antchfx/xmlquery"
)

// Notifications collects the findings of an SBML validation pass.
type Notifications struct {
	Warnings []string `json:"warnings"`
	Errors   []string `json:"errors"`
}

func (n *Notifications) warnf(format string, args ...any) {
	n.Warnings = append(n.Warnings, fmt.Sprintf(format, args...))
}

func (n *Notifications) errorf(format string, args ...any) {
	n.Errors = append(n.Errors, fmt.Sprintf(format, args...))
}

var sidPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// ValidateSBML reads an SBML document and checks its structure. It returns
// the parsed model, a "Level L Version V" description and the collected
// notifications. The model is nil whenever at least one error was found;
// warnings alone do not reject a document.
func ValidateSBML(r io.Reader) (*Model, string, Notifications) {
	notes := Notifications{Warnings: []string{}, Errors: []string{}}
	doc, err := xmlquery.Parse(r)
	if err != nil {
		notes.errorf("XML parse error: %v", err)
		return nil, "", notes
	}
	root := firstChild(doc, "sbml")
	if root == nil {
		notes.errorf("document root is not an <sbml> element")
		return nil, "", notes
	}
	level, version := attr(root, "level"), attr(root, "version")
	if level == "" || version == "" {
		notes.warnf("SBML level or version is not declared")
	}
	sbmlVersion := fmt.Sprintf("Level %s Version %s", level, version)

	modelNode := firstChild(root, "model")
	if modelNode == nil {
		notes.errorf("no <model> element found")
		return nil, sbmlVersion, notes
	}

	b := sbmlBuilder{notes: &notes, params: map[string]float64{}}
	model := b.build(modelNode)
	if len(notes.Errors) > 0 {
		return nil, sbmlVersion, notes
	}
	return model, sbmlVersion, notes
}

type sbmlBuilder struct {
	notes  *Notifications
	params map[string]float64
}

func (b *sbmlBuilder) checkSId(id string) {
	if !sidPattern.MatchString(id) {
		b.notes.warnf("'%s' is not a valid SBML 'SId'.", id)
	}
}

func (b *sbmlBuilder) build(node *xmlquery.Node) *Model {
	model := &Model{
		ID:           attr(node, "id"),
		Name:         attr(node, "name"),
		Compartments: map[string]string{},
		Metabolites:  []Metabolite{},
		Reactions:    []Reaction{},
		Genes:        []Gene{},
	}
	if model.ID != "" {
		b.checkSId(model.ID)
	}

	for _, c := range listOf(node, "listOfCompartments", "compartment") {
		id := attr(c, "id")
		if id == "" {
			b.notes.errorf("compartment without an id")
			continue
		}
		b.checkSId(id)
		model.Compartments[id] = attr(c, "name")
	}

	for _, p := range listOf(node, "listOfParameters", "parameter") {
		id := attr(p, "id")
		if val, err := strconv.ParseFloat(attr(p, "value"), 64); err == nil && id != "" {
			b.params[id] = val
		}
	}

	genes := map[string]struct{}{}
	for _, g := range listOf(node, "listOfGeneProducts", "geneProduct") {
		id := attr(g, "id")
		if id == "" {
			b.notes.errorf("gene product without an id")
			continue
		}
		b.checkSId(id)
		name := attr(g, "name")
		if name == "" {
			name = attr(g, "label")
		}
		genes[id] = struct{}{}
		model.Genes = append(model.Genes, Gene{ID: id, Name: name})
	}

	species := map[string]struct{}{}
	for _, s := range listOf(node, "listOfSpecies", "species") {
		met, ok := b.species(s, model.Compartments)
		if !ok {
			continue
		}
		if _, dup := species[met.ID]; dup {
			b.notes.errorf("duplicate species id '%s'", met.ID)
			continue
		}
		species[met.ID] = struct{}{}
		model.Metabolites = append(model.Metabolites, met)
	}

	seen := map[string]struct{}{}
	for _, r := range listOf(node, "listOfReactions", "reaction") {
		rxn, ok := b.reaction(r, species, genes)
		if !ok {
			continue
		}
		if _, dup := seen[rxn.ID]; dup {
			b.notes.errorf("duplicate reaction id '%s'", rxn.ID)
			continue
		}
		seen[rxn.ID] = struct{}{}
		model.Reactions = append(model.Reactions, rxn)
	}

	b.objectives(node, model)
	return model
}

func (b *sbmlBuilder) species(node *xmlquery.Node, compartments map[string]string) (Metabolite, bool) {
	id := attr(node, "id")
	if id == "" {
		b.notes.errorf("species without an id")
		return Metabolite{}, false
	}
	b.checkSId(id)
	met := Metabolite{
		ID:          id,
		Name:        attr(node, "name"),
		Compartment: attr(node, "compartment"),
		Formula:     attr(node, "chemicalFormula"),
	}
	if met.Compartment == "" {
		b.notes.errorf("species '%s' has no compartment", id)
		return Metabolite{}, false
	}
	if _, ok := compartments[met.Compartment]; !ok {
		b.notes.errorf("species '%s' references undefined compartment '%s'", id, met.Compartment)
		return Metabolite{}, false
	}
	if raw := attr(node, "charge"); raw != "" {
		charge, err := strconv.Atoi(raw)
		if err != nil {
			b.notes.warnf("species '%s' has a non-integer charge '%s'", id, raw)
		} else {
			met.Charge = &charge
		}
	}
	return met, true
}

func (b *sbmlBuilder) reaction(
	node *xmlquery.Node,
	species map[string]struct{},
	genes map[string]struct{},
) (Reaction, bool) {
	id := attr(node, "id")
	if id == "" {
		b.notes.errorf("reaction without an id")
		return Reaction{}, false
	}
	b.checkSId(id)
	rxn := Reaction{
		ID:          id,
		Name:        attr(node, "name"),
		Metabolites: map[string]float64{},
		LowerBound:  -1000,
		UpperBound:  1000,
	}
	if attr(node, "reversible") == "false" {
		rxn.LowerBound = 0
	}

	ok := true
	for _, side := range []struct {
		list string
		sign float64
	}{{"listOfReactants", -1}, {"listOfProducts", 1}} {
		for _, ref := range listOf(node, side.list, "speciesReference") {
			metID := attr(ref, "species")
			if _, known := species[metID]; !known {
				b.notes.errorf("reaction '%s' references undefined species '%s'", id, metID)
				ok = false
				continue
			}
			coeff := 1.0
			if raw := attr(ref, "stoichiometry"); raw != "" {
				val, err := strconv.ParseFloat(raw, 64)
				if err != nil {
					b.notes.errorf("reaction '%s' has an invalid stoichiometry '%s' for species '%s'", id, raw, metID)
					ok = false
					continue
				}
				coeff = val
			}
			rxn.Metabolites[metID] += side.sign * coeff
		}
	}

	if lb := attr(node, "lowerFluxBound"); lb != "" {
		val, found := b.params[lb]
		if !found {
			b.notes.errorf("reaction '%s' lower flux bound references undefined parameter '%s'", id, lb)
			ok = false
		}
		rxn.LowerBound = val
	}
	if ub := attr(node, "upperFluxBound"); ub != "" {
		val, found := b.params[ub]
		if !found {
			b.notes.errorf("reaction '%s' upper flux bound references undefined parameter '%s'", id, ub)
			ok = false
		}
		rxn.UpperBound = val
	}
	// Level 2 models carry bounds and objective in the kinetic law.
	if law := firstChild(node, "kineticLaw"); law != nil {
		for _, list := range []string{"listOfParameters", "listOfLocalParameters"} {
			for _, p := range children(firstChild(law, list)) {
				val, err := strconv.ParseFloat(attr(p, "value"), 64)
				if err != nil {
					continue
				}
				switch attr(p, "id") {
				case "LOWER_BOUND":
					rxn.LowerBound = val
				case "UPPER_BOUND":
					rxn.UpperBound = val
				case "OBJECTIVE_COEFFICIENT":
					rxn.ObjectiveCoefficient = val
				}
			}
		}
	}
	if rxn.LowerBound > rxn.UpperBound {
		b.notes.warnf("reaction '%s' has a lower bound greater than its upper bound", id)
	}

	if gpa := firstChild(node, "geneProductAssociation"); gpa != nil {
		if expr := firstElement(gpa); expr != nil {
			rxn.GeneReactionRule = b.gpr(expr, id, genes, true)
		}
	}
	return rxn, ok
}

// gpr flattens an fbc association tree into a cobra rule string.
func (b *sbmlBuilder) gpr(node *xmlquery.Node, rxnID string, genes map[string]struct{}, top bool) string {
	switch node.Data {
	case "geneProductRef":
		ref := attr(node, "geneProduct")
		if _, ok := genes[ref]; !ok {
			b.notes.warnf("reaction '%s' references undefined gene product '%s'", rxnID, ref)
		}
		return ref
	case "and", "or":
		var parts []string
		for _, child := range children(node) {
			if part := b.gpr(child, rxnID, genes, false); part != "" {
				parts = append(parts, part)
			}
		}
		rule := strings.Join(parts, " "+node.Data+" ")
		if !top && len(parts) > 1 {
			rule = "(" + rule + ")"
		}
		return rule
	default:
		return ""
	}
}

func (b *sbmlBuilder) objectives(node *xmlquery.Node, model *Model) {
	list := firstChild(node, "listOfObjectives")
	if list == nil {
		return
	}
	active := attr(list, "activeObjective")
	index := make(map[string]int, len(model.Reactions))
	for i, rxn := range model.Reactions {
		index[rxn.ID] = i
	}
	for _, obj := range children(list) {
		if obj.Data != "objective" || (active != "" && attr(obj, "id") != active) {
			continue
		}
		for _, flux := range listOf(obj, "listOfFluxObjectives", "fluxObjective") {
			rxnID := attr(flux, "reaction")
			i, ok := index[rxnID]
			if !ok {
				b.notes.errorf("objective '%s' references undefined reaction '%s'", attr(obj, "id"), rxnID)
				continue
			}
			coeff, err := strconv.ParseFloat(attr(flux, "coefficient"), 64)
			if err != nil {
				coeff = 1
			}
			model.Reactions[i].ObjectiveCoefficient = coeff
		}
	}
}

// attr looks up an attribute by local name regardless of namespace prefix.
func attr(n *xmlquery.Node, local string) string {
	if n == nil {
		return ""
	}
	for _, a := range n.Attr {
		if a.Name.Local == local {
			return a.Value
		}
	}
	return ""
}

func children(n *xmlquery.Node) []*xmlquery.Node {
	if n == nil {
		return nil
	}
	var out []*xmlquery.Node
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == xmlquery.ElementNode {
			out = append(out, c)
		}
	}
	return out
}

func firstChild(n *xmlquery.Node, local string) *xmlquery.Node {
	for _, c := range children(n) {
		if c.Data == local {
			return c
		}
	}
	return nil
}

func firstElement(n *xmlquery.Node) *xmlquery.Node {
	if els := children(n); len(els) > 0 {
		return els[0]
	}
	return nil
}

func listOf(n *xmlquery.Node, list, item string) []*xmlquery.Node {
	var out []*xmlquery.Node
	for _, c := range children(firstChild(n, list)) {
		if c.Data == item {
			out = append(out, c)
		}
	}
	return out
}
