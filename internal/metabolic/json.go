package metabolic

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/goccy/go-json"
)

// jsonModel mirrors Model with pointer slices so missing top-level keys can
// be told apart from empty ones.
type jsonModel struct {
	ID           string            `json:"id"`
	Name         string            `json:"name"`
	Compartments map[string]string `json:"compartments"`
	Metabolites  *[]Metabolite     `json:"metabolites"`
	Reactions    *[]Reaction       `json:"reactions"`
	Genes        []Gene            `json:"genes"`
	Version      any               `json:"version"`
}

// ParseJSON decodes a cobra-style JSON model. Every rejection is a
// *ParseError.
func ParseJSON(r io.Reader) (*Model, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read model: %w", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, &ParseError{Format: "JSON", Err: errors.New("empty document")}
	}
	var raw jsonModel
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, &ParseError{Format: "JSON", Err: err}
	}
	if raw.Metabolites == nil {
		return nil, &ParseError{Format: "JSON", Err: errors.New(`missing required key "metabolites"`)}
	}
	if raw.Reactions == nil {
		return nil, &ParseError{Format: "JSON", Err: errors.New(`missing required key "reactions"`)}
	}
	model := &Model{
		ID:           raw.ID,
		Name:         raw.Name,
		Compartments: raw.Compartments,
		Metabolites:  *raw.Metabolites,
		Reactions:    *raw.Reactions,
		Genes:        raw.Genes,
		Version:      versionString(raw.Version),
	}
	if err := model.checkReferences(); err != nil {
		return nil, &ParseError{Format: "JSON", Err: err}
	}
	return model, nil
}

// MarshalModel encodes a model in the JSON layout ParseJSON accepts.
func MarshalModel(m *Model) ([]byte, error) {
	if m == nil {
		return nil, errors.New("model is nil")
	}
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("marshal model: %w", err)
	}
	return data, nil
}

// cobra has written the version both as a string and as a bare number.
func versionString(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	default:
		return fmt.Sprint(val)
	}
}
