package models

import "time"

// QueryExecutionRecord is one captured execution from system.query_log.
// QueryID is unique per execution; re-collection of the same identifier
// updates the mutable metrics instead of inserting a duplicate.
type QueryExecutionRecord struct {
	ID                  int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	QueryID             string    `gorm:"uniqueIndex;size:255;not null" json:"query_id"`
	Instance            string    `gorm:"index;size:200" json:"instance"`
	QueryText           string    `gorm:"type:text;not null" json:"query_text"`
	NormalizedQueryHash string    `gorm:"index;size:64" json:"normalized_query_hash"`
	User                string    `gorm:"size:100" json:"user"`
	ClientName          string    `gorm:"size:200" json:"client_name"`
	DurationMs          float64   `json:"duration_ms"`
	ReadRows            int64     `json:"read_rows"`
	ReadBytes           int64     `json:"read_bytes"`
	MemoryUsage         int64     `json:"memory_usage"`
	QueryStartTime      time.Time `json:"query_start_time"`
	CollectedAt         time.Time `gorm:"autoCreateTime;index" json:"collected_at"`
	IsSlow              bool      `gorm:"index" json:"is_slow"`
	IsInitial           bool      `json:"is_initial"`
}

// WarningPriority orders analyzer warnings from informational to critical.
type WarningPriority string

const (
	PriorityInfo     WarningPriority = "info"
	PriorityLow      WarningPriority = "low"
	PriorityMedium   WarningPriority = "medium"
	PriorityHigh     WarningPriority = "high"
	PriorityCritical WarningPriority = "critical"
)

// Warning is one analyzer finding attached to an AnalysisResult.
type Warning struct {
	Type     string          `json:"type"`
	Message  string          `json:"message"`
	Priority WarningPriority `json:"priority"`
}

// TableStats is the system.tables snapshot embedded in an AnalysisResult.
type TableStats struct {
	Name         string `json:"name"`
	Database     string `json:"database"`
	TotalRows    int64  `json:"total_rows"`
	TotalBytes   int64  `json:"total_bytes"`
	Engine       string `json:"engine"`
	PartitionKey string `json:"partition_key"`
	SortingKey   string `json:"sorting_key"`
}

// AnalysisResult is one analysis pass over one QueryExecutionRecord.
// At most one current result exists per record; re-analysis replaces it.
type AnalysisResult struct {
	ID                 int64                 `gorm:"primaryKey;autoIncrement" json:"id"`
	RecordID           int64                 `gorm:"uniqueIndex;not null" json:"record_id"`
	ComplexityScore    int                   `json:"complexity_score"`
	HasFullScan        bool                  `json:"has_full_scan"`
	HasSorting         bool                  `json:"has_sorting"`
	HasAggregation     bool                  `json:"has_aggregation"`
	PipelineComplexity int                   `json:"pipeline_complexity"`
	TableStats         map[string]TableStats `gorm:"serializer:json" json:"table_stats"`
	Recommendations    []string              `gorm:"serializer:json" json:"recommendations"`
	Warnings           []Warning             `gorm:"serializer:json" json:"warnings"`
	ExplainPlan        []string              `gorm:"serializer:json" json:"explain_plan"`
	ExplainPipeline    []string              `gorm:"serializer:json" json:"explain_pipeline"`
	AnalysisDurationMs float64               `json:"analysis_duration_ms"`
	AnalyzedAt         time.Time             `gorm:"index" json:"analyzed_at"`
	RuleSetVersion     string                `gorm:"size:50" json:"rule_set_version"`
}

// TableProfile aggregates knowledge about one table, unique per
// (table name, database), refreshed incrementally by analyses.
type TableProfile struct {
	ID           int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	TableName    string    `gorm:"uniqueIndex:idx_profile_table_db;size:200;not null" json:"table_name"`
	Database     string    `gorm:"uniqueIndex:idx_profile_table_db;size:100;not null" json:"database"`
	TotalRows    int64     `json:"total_rows"`
	TotalBytes   int64     `json:"total_bytes"`
	Engine       string    `gorm:"size:100" json:"engine"`
	PartitionKey string    `gorm:"size:500" json:"partition_key"`
	SortingKey   string    `gorm:"size:500" json:"sorting_key"`
	QueryCount   int64     `json:"query_count"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// RecommendationKind classifies a suggested index/partition action.
type RecommendationKind string

const (
	KindSkipIndex RecommendationKind = "skip_index"
	KindPartition RecommendationKind = "partition"
	KindOther     RecommendationKind = "other"
)

// RecommendationSource records where an index recommendation came from.
type RecommendationSource string

const (
	SourceExplain  RecommendationSource = "explain"
	SourceLogStats RecommendationSource = "log_stats"
	SourceManual   RecommendationSource = "manual"
)

// IndexRecommendation is one suggested index/partition action, unique
// per (profile, column, kind); repeated detection bumps Occurrences.
type IndexRecommendation struct {
	ID                  int64                `gorm:"primaryKey;autoIncrement" json:"id"`
	ProfileID           int64                `gorm:"uniqueIndex:idx_rec_profile_col_kind;not null" json:"profile_id"`
	ColumnName          string               `gorm:"uniqueIndex:idx_rec_profile_col_kind;size:200;not null" json:"column_name"`
	Kind                RecommendationKind   `gorm:"uniqueIndex:idx_rec_profile_col_kind;size:30;not null" json:"kind"`
	Reason              string               `gorm:"type:text" json:"reason"`
	ExpectedImprovement float64              `json:"expected_improvement"`
	Source              RecommendationSource `gorm:"size:30" json:"source"`
	Implemented         bool                 `json:"implemented"`
	Occurrences         int64                `json:"occurrences"`
	CreatedAt           time.Time            `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt           time.Time            `gorm:"autoUpdateTime" json:"updated_at"`
}

// CaseStatus is the triage workflow state of a slow query.
type CaseStatus string

const (
	StatusNew             CaseStatus = "new"
	StatusInAnalysis      CaseStatus = "in_analysis"
	StatusWaitingFeedback CaseStatus = "waiting_feedback"
	StatusOptimized       CaseStatus = "optimized"
	StatusIgnored         CaseStatus = "ignored"
	StatusCannotOptimize  CaseStatus = "cannot_optimize"
)

// Terminal reports whether a status permits no further transitions.
func (s CaseStatus) Terminal() bool {
	switch s {
	case StatusOptimized, StatusIgnored, StatusCannotOptimize:
		return true
	}
	return false
}

// TriageCase is the operator workflow wrapper around exactly one
// QueryExecutionRecord. Status moves only through the state machine in
// the triage package; timestamps are set at most once.
type TriageCase struct {
	ID                  int64      `gorm:"primaryKey;autoIncrement" json:"id"`
	RecordID            int64      `gorm:"uniqueIndex;not null" json:"record_id"`
	Status              CaseStatus `gorm:"index;size:30;default:new" json:"status"`
	ProblemCategory     string     `gorm:"size:200" json:"problem_category"`
	AnalysisNotes       string     `gorm:"type:text" json:"analysis_notes"`
	Tags                string     `gorm:"size:500" json:"tags"`
	OptimizedQuery      string     `gorm:"type:text" json:"optimized_query"`
	OptimizationNotes   string     `gorm:"type:text" json:"optimization_notes"`
	ExpectedImprovement *float64   `json:"expected_improvement"`
	ActualImprovement   *float64   `json:"actual_improvement"`
	BeforeDurationMs    *float64   `json:"before_duration_ms"`
	AfterDurationMs     *float64   `json:"after_duration_ms"`
	AssignedTo          string     `gorm:"size:100" json:"assigned_to"`
	AnalysisStartedAt   *time.Time `json:"analysis_started_at"`
	OptimizedAt         *time.Time `json:"optimized_at"`
	CreatedAt           time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt           time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}
