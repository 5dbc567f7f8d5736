package pipeline

// output.go writes the batch's artifacts: the flat record array suitable for
// bulk load, and the aggregate statistics document.

import (
	"encoding/json"
	"fmt"
	"os"
)

// WriteRecords writes the normalized records to path as a JSON array.
// An empty batch writes [] rather than null.
func WriteRecords(path string, records []NormalizedRecord) error {
	if records == nil {
		records = []NormalizedRecord{}
	}
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("encode records: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write records: %w", err)
	}
	return nil
}

// WriteSummary writes the aggregate statistics document to path.
func WriteSummary(path string, summary Summary) error {
	data, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return fmt.Errorf("encode statistics: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write statistics: %w", err)
	}
	return nil
}
