// Package pipeline provides the business logic for advocacy activity ingest:
// validating and repairing raw per-user JSON documents, flattening them into
// row-shaped records, detecting which input files need (re)processing, and
// computing batch-level statistics. This package has no storage dependencies
// and can be driven by any frontend.
package pipeline

import "time"

// RawUserDocument is the shape of one input JSON file. Field types are loose
// on purpose: upstream generators emit integers, UUID strings, or garbage in
// several fields, and the normalizer is responsible for repairing them.
type RawUserDocument struct {
	UserID           any          `json:"user_id"`
	Name             string       `json:"name"`
	Email            string       `json:"email"`
	InstagramHandle  string       `json:"instagram_handle"`
	TiktokHandle     string       `json:"tiktok_handle"`
	JoinedAt         string       `json:"joined_at"`
	AdvocacyPrograms []RawProgram `json:"advocacy_programs"`
}

// RawProgram is one advocacy program entry inside a RawUserDocument.
type RawProgram struct {
	ProgramID            any       `json:"program_id"`
	Brand                any       `json:"brand"`
	TotalSalesAttributed any       `json:"total_sales_attributed"`
	TasksCompleted       []RawTask `json:"tasks_completed"`
}

// RawTask is one completed task inside a RawProgram. Engagement metrics may
// be numbers, the string sentinel "NaN", or absent.
type RawTask struct {
	TaskID   any    `json:"task_id"`
	Platform any    `json:"platform"`
	PostURL  string `json:"post_url"`
	Likes    any    `json:"likes"`
	Comments any    `json:"comments"`
	Shares   any    `json:"shares"`
	Reach    any    `json:"reach"`
}

// NormalizedRecord is the flat, database-ready output unit. One record is
// emitted per (user, program, task) combination; documents without programs
// or programs without tasks produce a single placeholder record with null
// downstream fields.
type NormalizedRecord struct {
	UserID               int64      `json:"user_id"`
	Name                 string     `json:"name"`
	Email                string     `json:"email"`
	EmailValid           bool       `json:"email_valid"`
	InstagramHandle      *string    `json:"instagram_handle"`
	TiktokHandle         *string    `json:"tiktok_handle"`
	JoinedAt             *time.Time `json:"joined_at"`
	ProgramID            *string    `json:"program_id"`
	Brand                *string    `json:"brand"`
	TotalSalesAttributed *float64   `json:"total_sales_attributed"`
	TaskID               *string    `json:"task_id"`
	Platform             *string    `json:"platform"`
	PostURL              *string    `json:"post_url"`
	URLValid             bool       `json:"url_valid"`
	Likes                *float64   `json:"likes"`
	Comments             *float64   `json:"comments"`
	Shares               *float64   `json:"shares"`
	Reach                *float64   `json:"reach"`
	SourceFile           string     `json:"source_file"`
	IssuesFound          int        `json:"issues_found"`
	IssuesList           []string   `json:"issues_list"`
}

// FileCandidate is one discovered input file. Seq is the integer embedded in
// the filename (user_41.json -> 41); candidates are always handed to the
// driver in ascending Seq order.
type FileCandidate struct {
	Name string
	Path string
	Seq  int64
}
