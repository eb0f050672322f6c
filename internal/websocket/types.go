package websocket

import "time"

// EventType identifies the kind of event broadcast to dashboard clients
type EventType string

const (
	EventScanCompleted          EventType = "scan_completed"
	EventAnonymizationCompleted EventType = "anonymization_completed"
	EventSystem                 EventType = "system"
)

// Event is one message broadcast to connected clients. Payloads carry
// aggregate statistics only, never cell values.
type Event struct {
	Type      EventType   `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data"`
}

// ScanEvent summarizes a completed scan
type ScanEvent struct {
	Source      string         `json:"source"`
	RowCount    int            `json:"rowCount"`
	Findings    int            `json:"findings"`
	RiskSummary map[string]int `json:"riskSummary"`
}

// AnonymizationEvent summarizes a completed anonymization run
type AnonymizationEvent struct {
	Source         string   `json:"source"`
	RowCount       int      `json:"rowCount"`
	Columns        int      `json:"columns"`
	FailedColumns  []string `json:"failedColumns,omitempty"`
	ReductionRatio float64  `json:"reductionRatio"`
}

// HubStats tracks WebSocket hub statistics
type HubStats struct {
	TotalConnections  int64 `json:"totalConnections"`
	ActiveConnections int64 `json:"activeConnections"`
	TotalBroadcasts   int64 `json:"totalBroadcasts"`
}
