package pipeline

// stats.go computes summary metrics over a batch of normalized records.
// Analyze is a pure function; an empty batch yields zeroed percentages and
// null means/medians rather than a division error.

import "sort"

// MetricStats holds the distribution summary for one numeric field.
// Mean and Median are null when no non-null values exist.
type MetricStats struct {
	Mean      *float64 `json:"mean"`
	Median    *float64 `json:"median"`
	NullCount int      `json:"null_count"`
}

// Summary is the aggregate statistics document for one batch.
type Summary struct {
	TotalRecords             int                    `json:"total_records"`
	ValidEmailsPercentage    float64                `json:"valid_emails_percentage"`
	ValidURLsPercentage      float64                `json:"valid_urls_percentage"`
	MissingUserIDsPercentage float64                `json:"missing_user_ids_percentage"`
	PlatformDistribution     map[string]int         `json:"platform_distribution"`
	CommonIssues             map[string]int         `json:"common_issues"`
	EngagementStats          map[string]MetricStats `json:"engagement_stats"`
	SalesStats               MetricStats            `json:"sales_stats"`
}

// missingUserIDIssue marks records whose source document carried no user_id.
const missingUserIDIssue = "Missing user_id"

// Analyze computes summary statistics over a batch of records. Records with
// a missing platform count under the "null" distribution bucket.
func Analyze(records []NormalizedRecord) Summary {
	s := Summary{
		TotalRecords:         len(records),
		PlatformDistribution: make(map[string]int),
		CommonIssues:         make(map[string]int),
		EngagementStats:      make(map[string]MetricStats),
	}

	likes := make([]*float64, 0, len(records))
	comments := make([]*float64, 0, len(records))
	shares := make([]*float64, 0, len(records))
	reach := make([]*float64, 0, len(records))
	sales := make([]*float64, 0, len(records))

	var validEmails, validURLs, missingIDs int
	for _, rec := range records {
		if rec.EmailValid {
			validEmails++
		}
		if rec.URLValid {
			validURLs++
		}

		platform := "null"
		if rec.Platform != nil {
			platform = *rec.Platform
		}
		s.PlatformDistribution[platform]++

		for _, issue := range rec.IssuesList {
			s.CommonIssues[issue]++
			if issue == missingUserIDIssue {
				missingIDs++
			}
		}

		likes = append(likes, rec.Likes)
		comments = append(comments, rec.Comments)
		shares = append(shares, rec.Shares)
		reach = append(reach, rec.Reach)
		sales = append(sales, rec.TotalSalesAttributed)
	}

	if s.TotalRecords > 0 {
		total := float64(s.TotalRecords)
		s.ValidEmailsPercentage = float64(validEmails) / total * 100
		s.ValidURLsPercentage = float64(validURLs) / total * 100
		s.MissingUserIDsPercentage = float64(missingIDs) / total * 100
	}

	s.EngagementStats["likes"] = metricStats(likes)
	s.EngagementStats["comments"] = metricStats(comments)
	s.EngagementStats["shares"] = metricStats(shares)
	s.EngagementStats["reach"] = metricStats(reach)
	s.SalesStats = metricStats(sales)

	return s
}

// metricStats summarizes one column of nullable values.
func metricStats(values []*float64) MetricStats {
	var present []float64
	nulls := 0
	for _, v := range values {
		if v == nil {
			nulls++
			continue
		}
		present = append(present, *v)
	}

	stats := MetricStats{NullCount: nulls}
	if len(present) == 0 {
		return stats
	}

	sum := 0.0
	for _, v := range present {
		sum += v
	}
	mean := sum / float64(len(present))
	stats.Mean = &mean

	sort.Float64s(present)
	var median float64
	mid := len(present) / 2
	if len(present)%2 == 0 {
		median = (present[mid-1] + present[mid]) / 2
	} else {
		median = present[mid]
	}
	stats.Median = &median

	return stats
}
