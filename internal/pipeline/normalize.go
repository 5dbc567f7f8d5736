package pipeline

// normalize.go converts one raw input document into flat, database-ready
// records. Each record accumulates its own ordered list of human-readable
// issue strings describing every repair that was applied; no malformed field
// ever aborts processing of the document.

import (
	"bytes"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// fallbackIDRange bounds the hash-derived user_id when no filename sequence
// and no usable raw user_id exist.
const fallbackIDRange = 1_000_000

var (
	// seqPattern extracts the trailing integer from names like user_41.json.
	seqPattern = regexp.MustCompile(`_(\d+)\.[^.]+$`)

	// slugStrip removes everything a synthesized email local part can't carry.
	slugStrip = regexp.MustCompile(`[^a-z0-9_]`)
)

// Normalizer flattens raw user documents into NormalizedRecords.
type Normalizer struct {
	policy NumericPolicy
	log    *slog.Logger
}

// NewNormalizer creates a Normalizer with the given numeric-failure policy.
// A nil logger falls back to slog.Default().
func NewNormalizer(policy NumericPolicy, log *slog.Logger) *Normalizer {
	if !policy.Valid() {
		policy = NumericNull
	}
	if log == nil {
		log = slog.Default()
	}
	return &Normalizer{policy: policy, log: log}
}

// SequenceFromFilename extracts the embedded integer from a filename like
// user_41.json. Reports false when the name carries no sequence number.
func SequenceFromFilename(name string) (int64, bool) {
	m := seqPattern.FindStringSubmatch(name)
	if m == nil {
		return 0, false
	}
	n, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

// NormalizeDocument flattens one raw JSON document into records, one per
// (program, task) combination. Documents without programs, and programs
// without tasks, yield a single placeholder record with null downstream
// fields, so the result is never empty for a parseable document. A document
// that does not parse yields zero records and an error.
func (n *Normalizer) NormalizeDocument(data []byte, filename string) ([]NormalizedRecord, error) {
	var doc RawUserDocument
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("parse %s: %w", filename, err)
	}

	seq, hasSeq := SequenceFromFilename(filename)
	sequential := seq + 1 // user_0.json becomes ID 1

	var base []string
	userID, idIssues := resolveUserID(doc.UserID, sequential, hasSeq, filename)
	base = append(base, idIssues...)

	email, emailValid := repairEmail(doc.Email, doc.Name, sequential, hasSeq)
	if !emailValid && doc.Email != "" {
		base = append(base, "Invalid email format")
	}

	instagram := handleField(doc.InstagramHandle, "instagram", &base)
	tiktok := handleField(doc.TiktokHandle, "tiktok", &base)

	var joinedAt *time.Time
	if t, ok := ParseDate(doc.JoinedAt); ok {
		joinedAt = &t
	} else if doc.JoinedAt != "" {
		base = append(base, "Invalid date format")
	}

	stub := NormalizedRecord{
		UserID:          userID,
		Name:            doc.Name,
		Email:           email,
		EmailValid:      emailValid,
		InstagramHandle: instagram,
		TiktokHandle:    tiktok,
		JoinedAt:        joinedAt,
		SourceFile:      filename,
	}

	var records []NormalizedRecord
	if len(doc.AdvocacyPrograms) == 0 {
		records = append(records, finalize(stub, cloneIssues(base)))
	} else {
		for _, program := range doc.AdvocacyPrograms {
			rec := stub
			rec.ProgramID = toStringPtr(program.ProgramID)
			rec.Brand = toStringPtr(program.Brand)
			sales, _ := CleanNumeric(program.TotalSalesAttributed, n.policy)
			rec.TotalSalesAttributed = sales

			if len(program.TasksCompleted) == 0 {
				records = append(records, finalize(rec, cloneIssues(base)))
				continue
			}
			for _, task := range program.TasksCompleted {
				issues := cloneIssues(base)
				taskRec := rec
				taskRec.TaskID = toStringPtr(task.TaskID)
				taskRec.Platform = platformField(task.Platform, &issues)

				if ValidURL(task.PostURL) {
					u := task.PostURL
					taskRec.PostURL = &u
					taskRec.URLValid = true
				} else if task.PostURL != "" {
					issues = append(issues, "Invalid post URL")
				}

				taskRec.Likes = n.metricField(task.Likes, "likes", &issues)
				taskRec.Comments = n.metricField(task.Comments, "comments", &issues)
				taskRec.Shares = n.metricField(task.Shares, "shares", &issues)
				taskRec.Reach = n.metricField(task.Reach, "reach", &issues)

				records = append(records, finalize(taskRec, issues))
			}
		}
	}

	total := 0
	for _, rec := range records {
		total += rec.IssuesFound
	}
	if total > 0 {
		n.log.Warn("data issues found", "file", filename, "records", len(records), "issues", total)
	}

	return records, nil
}

// resolveUserID applies the identity policy in order: a UUID-shaped string
// is discarded in favor of the filename-derived sequential ID; any absent or
// non-integer value falls back to the sequential ID; an integer is taken as
// given. Without a filename sequence the ID is a bounded hash of the
// filename, recorded as an issue.
func resolveUserID(raw any, sequential int64, hasSeq bool, filename string) (int64, []string) {
	issues := []string{}
	if raw == nil {
		issues = append(issues, "Missing user_id")
	}

	// Rule 1: UUID-shaped ids are synthetic; discard in favor of the
	// filename-derived sequential ID.
	if s, ok := raw.(string); ok && uuidShaped(s) && hasSeq {
		return sequential, issues
	}

	// Rule 3: an integer id is taken as given.
	if num, ok := raw.(json.Number); ok {
		if id, err := num.Int64(); err == nil {
			return id, issues
		}
	}

	// Rule 2: everything else falls back to the sequential ID.
	if hasSeq {
		return sequential, issues
	}
	issues = append(issues, "Generated fallback user_id from filename")
	return fallbackUserID(filename), issues
}

// fallbackUserID reduces a filename to a deterministic positive integer.
func fallbackUserID(filename string) int64 {
	h := fnv.New32a()
	h.Write([]byte(filename))
	return int64(h.Sum32() % fallbackIDRange)
}

// repairEmail validates the declared email and synthesizes a replacement
// when it fails: <slug>@domain.com, where the slug is the lower-cased name
// with spaces turned into underscores, periods removed, and every other
// non-alphanumeric character stripped. The returned flag always reflects
// validation of the original declared value.
func repairEmail(declared, name string, sequential int64, hasSeq bool) (string, bool) {
	if ValidEmail(declared) {
		return declared, true
	}

	var slug string
	if name != "" && name != "???" {
		slug = strings.ToLower(name)
		slug = strings.ReplaceAll(slug, " ", "_")
		slug = strings.ReplaceAll(slug, ".", "")
		slug = slugStrip.ReplaceAllString(slug, "")
	} else if hasSeq {
		slug = fmt.Sprintf("user_%d", sequential)
	} else {
		slug = "user_unknown"
	}
	return slug + "@domain.com", false
}

// handleField cleans one social media handle, appending an issue when a
// present handle fails validation.
func handleField(h, network string, issues *[]string) *string {
	if h == "" {
		return nil
	}
	if !ValidHandle(h) {
		*issues = append(*issues, "Invalid "+network+" handle")
		return nil
	}
	cleaned := CleanHandle(h)
	return &cleaned
}

// platformField coerces the platform to a string, recording an issue when
// the source gave a number instead.
func platformField(v any, issues *[]string) *string {
	switch p := v.(type) {
	case nil:
		return nil
	case string:
		return &p
	case json.Number:
		*issues = append(*issues, "Platform is numeric instead of string")
		s := p.String()
		return &s
	default:
		s := fmt.Sprint(p)
		return &s
	}
}

// metricField cleans one engagement metric, appending an issue when a
// present value was unparseable.
func (n *Normalizer) metricField(v any, field string, issues *[]string) *float64 {
	cleaned, ok := CleanNumeric(v, n.policy)
	if !ok {
		*issues = append(*issues, fmt.Sprintf("Invalid %s value: %v", field, v))
	}
	return cleaned
}

// toStringPtr coerces loosely typed identifier fields (program_id, brand,
// task_id) to strings, passing nulls through.
func toStringPtr(v any) *string {
	switch s := v.(type) {
	case nil:
		return nil
	case string:
		return &s
	case json.Number:
		str := s.String()
		return &str
	default:
		str := fmt.Sprint(s)
		return &str
	}
}

func cloneIssues(base []string) []string {
	issues := make([]string, len(base))
	copy(issues, base)
	return issues
}

func finalize(rec NormalizedRecord, issues []string) NormalizedRecord {
	rec.IssuesList = issues
	rec.IssuesFound = len(issues)
	return rec
}

// uuidShaped reports whether s is a 36-character hyphenated UUID string.
func uuidShaped(s string) bool {
	return len(s) == 36 && uuid.Validate(s) == nil
}
