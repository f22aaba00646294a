package snapshot

import (
	"bytes"
	"errors"
	"fmt"
	"html/template"
	"sort"
	"time"

	"github.com/goccy/go-json"
)

// Test outcome values.
const (
	OutcomePassed  = "passed"
	OutcomeFailed  = "failed"
	OutcomeSkipped = "skipped"
)

// TestResult is the outcome of a single check in the suite.
type TestResult struct {
	ID      string   `json:"id"`
	Title   string   `json:"title"`
	Summary string   `json:"summary"`
	Outcome string   `json:"result"`
	Metric  float64  `json:"metric"`
	Data    []string `json:"data,omitempty"`
	Message string   `json:"message,omitempty"`
}

// ReportMeta identifies what a report was produced for.
type ReportMeta struct {
	ModelID   string    `json:"model_id"`
	Timestamp time.Time `json:"timestamp"`
	Version   string    `json:"memote_version"`
}

// Score summarizes the suite outcome.
type Score struct {
	Total  float64 `json:"total_score"`
	Passed int     `json:"passed"`
	Failed int     `json:"failed"`
}

type reportData struct {
	Meta  ReportMeta            `json:"meta"`
	Tests map[string]TestResult `json:"tests"`
	Score Score                 `json:"score"`
}

// Report is the immutable result of a model snapshot run. Both renderings
// are produced from the same underlying data.
type Report struct {
	data reportData
}

// NewReport builds a report and computes its score. Skipped tests do not
// count towards the score.
func NewReport(meta ReportMeta, results []TestResult) *Report {
	data := reportData{
		Meta:  meta,
		Tests: make(map[string]TestResult, len(results)),
	}
	for _, res := range results {
		res.Data = append([]string(nil), res.Data...)
		data.Tests[res.ID] = res
		switch res.Outcome {
		case OutcomePassed:
			data.Score.Passed++
		case OutcomeFailed:
			data.Score.Failed++
		}
	}
	if scored := data.Score.Passed + data.Score.Failed; scored > 0 {
		data.Score.Total = float64(data.Score.Passed) / float64(scored)
	}
	return &Report{data: data}
}

// DecodeReport restores a report from its JSON rendering.
func DecodeReport(raw []byte) (*Report, error) {
	var data reportData
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("decode report: %w", err)
	}
	if data.Tests == nil {
		return nil, errors.New("decode report: missing tests")
	}
	return &Report{data: data}, nil
}

// Meta returns the report metadata.
func (r *Report) Meta() ReportMeta {
	return r.data.Meta
}

// Score returns the suite summary.
func (r *Report) Score() Score {
	return r.data.Score
}

// Tests returns copies of the test results ordered by ID.
func (r *Report) Tests() []TestResult {
	out := make([]TestResult, 0, len(r.data.Tests))
	for _, res := range r.data.Tests {
		res.Data = append([]string(nil), res.Data...)
		out = append(out, res)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// MarshalJSON renders the report as JSON.
func (r *Report) MarshalJSON() ([]byte, error) {
	data, err := json.Marshal(r.data)
	if err != nil {
		return nil, fmt.Errorf("marshal report: %w", err)
	}
	return data, nil
}

// RenderJSON renders the report for API clients.
func (r *Report) RenderJSON() ([]byte, error) {
	return r.MarshalJSON()
}

// RenderHTML renders the report as a standalone HTML page. The raw JSON is
// embedded so the page carries the same data as RenderJSON.
func (r *Report) RenderHTML() ([]byte, error) {
	raw, err := r.RenderJSON()
	if err != nil {
		return nil, err
	}
	view := struct {
		Meta  ReportMeta
		Score Score
		Tests []TestResult
		JSON  template.JS
	}{
		Meta:  r.data.Meta,
		Score: r.data.Score,
		Tests: r.Tests(),
		JSON:  template.JS(raw), //nolint:gosec // produced by json.Marshal
	}
	var buf bytes.Buffer
	if err := reportTemplate.Execute(&buf, view); err != nil {
		return nil, fmt.Errorf("render report: %w", err)
	}
	return buf.Bytes(), nil
}

var reportTemplate = template.Must(template.New("report").Funcs(template.FuncMap{
	"percent": func(v float64) string { return fmt.Sprintf("%.0f%%", v*100) },
}).Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>memote snapshot report: {{.Meta.ModelID}}</title>
</head>
<body>
<h1>Snapshot report for {{.Meta.ModelID}}</h1>
<p>Generated {{.Meta.Timestamp.Format "2006-01-02 15:04:05 MST"}} by memote {{.Meta.Version}}.</p>
<p>Total score: <strong>{{percent .Score.Total}}</strong> ({{.Score.Passed}} passed, {{.Score.Failed}} failed)</p>
<table>
<thead><tr><th>Test</th><th>Result</th><th>Metric</th><th>Summary</th></tr></thead>
<tbody>
{{- range .Tests}}
<tr class="{{.Outcome}}"><td title="{{.ID}}">{{.Title}}</td><td>{{.Outcome}}</td><td>{{printf "%.3f" .Metric}}</td><td>{{.Message}}</td></tr>
{{- end}}
</tbody>
</table>
<script id="report-data" type="application/json">{{.JSON}}</script>
</body>
</html>
`))
