package models

import (
	"time"
)

// JobStatus is the lifecycle state of an async conversion.
type JobStatus string

const (
	StatusProcessing JobStatus = "processing"
	StatusCompleted  JobStatus = "completed"
	StatusError      JobStatus = "error"
)

// IsTerminal reports whether the job will not change anymore.
func (s JobStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusError
}

// Job holds the full state of one async conversion
type Job struct {
	ID        string    `json:"id"`
	Status    JobStatus `json:"status"`
	Progress  float64   `json:"progress"`
	Filename  string    `json:"filename,omitempty"`
	Error     string    `json:"error,omitempty"`
	Format    Format    `json:"format"`
	VideoURL  string    `json:"videoUrl"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// ConvertRequest is the body accepted by both conversion endpoints.
type ConvertRequest struct {
	URL    string `json:"url"`
	Format string `json:"format"`
}

// InfoRequest is the body accepted by the metadata endpoint.
type InfoRequest struct {
	URL string `json:"url"`
}
