package model

// QueuedEvent is the catch-up payload for a job still waiting in the backlog.
type QueuedEvent struct {
	Status   JobStatus `json:"status"`
	Position int       `json:"position"`
}

// StreamError is the payload of an error event.
type StreamError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// WSMessage is the envelope for WebSocket frames.
type WSMessage struct {
	Type  EventType   `json:"type"`
	JobID string      `json:"jobId,omitempty"`
	Data  interface{} `json:"data,omitempty"`
}
