package model

// Job status
type JobStatus string

const (
	JobStatusQueued     JobStatus = "queued"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
	JobStatusCancelled  JobStatus = "cancelled"
)

// Terminal reports whether no further transition is possible.
func (s JobStatus) Terminal() bool {
	switch s {
	case JobStatusCompleted, JobStatusFailed, JobStatusCancelled:
		return true
	}
	return false
}

// Severity of a processing failure.
type Severity string

const (
	SeverityFatal Severity = "FATAL"
	SeverityError Severity = "ERROR"
	SeverityWarn  Severity = "WARN"
)

// Stream event types shared by SSE and WebSocket.
type EventType string

const (
	EventQueued    EventType = "queued"
	EventProgress  EventType = "progress"
	EventCompleted EventType = "completed"
	EventError     EventType = "error"
	EventPing      EventType = "ping"
	EventPong      EventType = "pong"
)

// SchemaVersion is written into every results document.
const SchemaVersion = "1.0"

// DefaultMaxMB is the extracted-text limit used when a request omits one.
const DefaultMaxMB = 500
