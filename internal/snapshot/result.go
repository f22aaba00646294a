package snapshot

import (
	"fmt"
	"time"

	"github.com/goccy/go-json"
)

// Metadata accompanies a report in stored results.
type Metadata struct {
	JobID      string    `json:"job_id"`
	ModelID    string    `json:"model_id"`
	Digest     string    `json:"digest"`
	FinishedAt time.Time `json:"finished_at"`
	DurationMs int64     `json:"duration_ms"`
}

// EncodeResult serializes a succeeded job result as a two element JSON
// array: metadata first, report second.
func EncodeResult(meta Metadata, report *Report) (json.RawMessage, error) {
	if report == nil {
		return nil, fmt.Errorf("encode result: report is nil")
	}
	data, err := json.Marshal([]any{meta, report})
	if err != nil {
		return nil, fmt.Errorf("encode result: %w", err)
	}
	return data, nil
}
