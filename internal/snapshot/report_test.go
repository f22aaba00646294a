package snapshot

import (
	"regexp"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleReport() *Report {
	meta := ReportMeta{
		ModelID:   "e_coli_core",
		Timestamp: time.Date(2024, 3, 27, 12, 0, 0, 0, time.UTC),
		Version:   "test",
	}
	return NewReport(meta, []TestResult{
		{ID: "test_b", Title: "B", Outcome: OutcomeFailed, Metric: 0.5, Data: []string{"x"}, Message: "1 of 2 <bad>"},
		{ID: "test_a", Title: "A", Outcome: OutcomePassed},
		{ID: "test_c", Title: "C", Outcome: OutcomeSkipped},
	})
}

func TestNewReportScore(t *testing.T) {
	t.Parallel()

	score := sampleReport().Score()
	assert.Equal(t, 1, score.Passed)
	assert.Equal(t, 1, score.Failed)
	assert.InDelta(t, 0.5, score.Total, 1e-9)
}

func TestReportTestsAreSortedCopies(t *testing.T) {
	t.Parallel()

	report := sampleReport()
	tests := report.Tests()
	require.Len(t, tests, 3)
	assert.Equal(t, "test_a", tests[0].ID)
	assert.Equal(t, "test_c", tests[2].ID)

	tests[1].Data[0] = "mutated"
	assert.Equal(t, "x", report.Tests()[1].Data[0])
}

func TestReportJSONRoundTrip(t *testing.T) {
	t.Parallel()

	report := sampleReport()
	first, err := report.RenderJSON()
	require.NoError(t, err)
	second, err := report.RenderJSON()
	require.NoError(t, err)
	assert.JSONEq(t, string(first), string(second))

	decoded, err := DecodeReport(first)
	require.NoError(t, err)
	assert.Equal(t, report.Tests(), decoded.Tests())
	assert.Equal(t, report.Score(), decoded.Score())
	assert.True(t, report.Meta().Timestamp.Equal(decoded.Meta().Timestamp))
}

func TestDecodeReportErrors(t *testing.T) {
	t.Parallel()

	_, err := DecodeReport([]byte(`not json`))
	assert.Error(t, err)
	_, err = DecodeReport([]byte(`{"meta": {}}`))
	assert.ErrorContains(t, err, "missing tests")
}

var embeddedJSON = regexp.MustCompile(`(?s)<script id="report-data" type="application/json">(.*?)</script>`)

func TestRenderHTMLMatchesJSON(t *testing.T) {
	t.Parallel()

	report := sampleReport()
	page, err := report.RenderHTML()
	require.NoError(t, err)
	html := string(page)
	assert.Contains(t, html, "Snapshot report for e_coli_core")
	assert.Contains(t, html, "50%")
	assert.Contains(t, html, "1 of 2 &lt;bad&gt;")

	match := embeddedJSON.FindStringSubmatch(html)
	require.Len(t, match, 2)
	raw, err := report.RenderJSON()
	require.NoError(t, err)

	var fromHTML, fromJSON map[string]any
	require.NoError(t, json.Unmarshal([]byte(match[1]), &fromHTML))
	require.NoError(t, json.Unmarshal(raw, &fromJSON))
	assert.Equal(t, fromJSON, fromHTML)
}

func TestEncodeResultShape(t *testing.T) {
	t.Parallel()

	raw, err := EncodeResult(Metadata{JobID: "job-1", Digest: "abc"}, sampleReport())
	require.NoError(t, err)

	var tuple []json.RawMessage
	require.NoError(t, json.Unmarshal(raw, &tuple))
	require.Len(t, tuple, 2)

	var meta Metadata
	require.NoError(t, json.Unmarshal(tuple[0], &meta))
	assert.Equal(t, "job-1", meta.JobID)
	_, err = DecodeReport(tuple[1])
	require.NoError(t, err)

	_, err = EncodeResult(Metadata{}, nil)
	assert.Error(t, err)
}
