package model

import "time"

// ProcessRequest is the originating request of a job.
type ProcessRequest struct {
	Path       string   `json:"path" validate:"required"`
	Tokenizers []string `json:"tokenizers" validate:"required,min=1,dive,required"`
	Recursive  bool     `json:"recursive"`
	MaxMB      int      `json:"maxMb,omitempty" validate:"omitempty,gt=0"`
}

// ProcessResponse is returned when a job is accepted.
type ProcessResponse struct {
	JobID  string    `json:"jobId"`
	Status JobStatus `json:"status"`
}

// EpubProgress is a point-in-time snapshot of a running job.
type EpubProgress struct {
	FileName string `json:"fileName"`
	Current  int    `json:"current"`
	Total    int    `json:"total"`
	Percent  int    `json:"percent"`
	Error    string `json:"error,omitempty"`
}

// JobState is the read-only projection of a job returned to callers.
type JobState struct {
	JobID       string         `json:"jobId"`
	Status      JobStatus      `json:"status"`
	Progress    *EpubProgress  `json:"progress,omitempty"`
	Results     *ResultsOutput `json:"results,omitempty"`
	Error       string         `json:"error,omitempty"`
	CreatedAt   time.Time      `json:"createdAt"`
	CompletedAt *time.Time     `json:"completedAt,omitempty"`
}
