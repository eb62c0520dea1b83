package models

// SubmissionStats summarises stored submissions.
type SubmissionStats struct {
	TotalSubmissions  int64            `json:"total_submissions"`
	RecentSubmissions int64            `json:"recent_submissions"`
	RecentWindowDays  int              `json:"recent_window_days"`
	ByClientType      map[string]int64 `json:"by_client_type"`
}

// FieldBreakdown counts submissions per distinct value of one column.
type FieldBreakdown struct {
	Field  string           `json:"field"`
	Counts map[string]int64 `json:"counts"`
}

// GroupCount is one row of a GROUP BY count query.
type GroupCount struct {
	Bucket string `db:"bucket"`
	Total  int64  `db:"total"`
}

// UnspecifiedBucket is the breakdown key for NULL or empty values.
const UnspecifiedBucket = "unspecified"
