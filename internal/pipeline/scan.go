package pipeline

// scan.go discovers candidate input files. Input documents are individually
// addressable JSON files named with an ascending integer sequence
// (prefix_<N>.json); discovery sorts them numerically, not lexically, so
// user_9.json precedes user_10.json.

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
)

// ScanDirectory lists the candidate input files under dir whose names match
// prefix_<N>.json, in ascending sequence order.
func ScanDirectory(dir, prefix string) ([]FileCandidate, error) {
	pattern, err := regexp.Compile(`^` + regexp.QuoteMeta(prefix) + `_(\d+)\.json$`)
	if err != nil {
		return nil, fmt.Errorf("compile file pattern: %w", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read input directory: %w", err)
	}

	var candidates []FileCandidate
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if !pattern.MatchString(entry.Name()) {
			continue
		}
		seq, ok := SequenceFromFilename(entry.Name())
		if !ok {
			continue
		}
		candidates = append(candidates, FileCandidate{
			Name: entry.Name(),
			Path: filepath.Join(dir, entry.Name()),
			Seq:  seq,
		})
	}

	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].Seq < candidates[j].Seq
	})
	return candidates, nil
}
