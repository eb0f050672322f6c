package anonymize

import "time"

// ColumnReport records how one column was processed
type ColumnReport struct {
	Column        string   `json:"column"`
	Method        string   `json:"method"`
	RowsProcessed int      `json:"rows_processed"`
	BeforeSample  []string `json:"before_sample,omitempty"`
	AfterSample   []string `json:"after_sample,omitempty"`
	Error         string   `json:"error,omitempty"`
}

// Report is the immutable outcome of one anonymization run
type Report struct {
	Timestamp  time.Time      `json:"timestamp"`
	SourceName string         `json:"source_name"`
	RowCount   int            `json:"row_count"`
	Columns    []ColumnReport `json:"columns"`
	Duration   time.Duration  `json:"duration"`
}

// FailedColumns lists the columns whose transform aborted
func (r *Report) FailedColumns() []string {
	var failed []string
	for _, c := range r.Columns {
		if c.Error != "" {
			failed = append(failed, c.Column)
		}
	}
	return failed
}
