package domain

import (
	"errors"
	"time"
)

// JobStatus moves forward only: queued -> processing -> completed.
type JobStatus string

const (
	StatusQueued     JobStatus = "queued"
	StatusProcessing JobStatus = "processing"
	StatusCompleted  JobStatus = "completed"
)

var (
	ErrNotFound          = errors.New("job not found")
	ErrInvalidTransition = errors.New("invalid status transition")
)

// Job tracks one evaluation request end-to-end. Result stays NULL until the
// job reaches completed; after that the record never changes again.
type Job struct {
	ID            string    `gorm:"primaryKey;size:36" json:"id"`
	Status        JobStatus `gorm:"type:enum('queued','processing','completed');default:'queued'" json:"status"`
	CVFileRef     string    `gorm:"column:cv_file_ref;size:512" json:"-"`
	ReportFileRef string    `gorm:"column:report_file_ref;size:512" json:"-"`
	Result        *string   `gorm:"type:json" json:"result"` // pointer so it can be NULL
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// CanTransition reports whether the state machine allows moving to next.
func (s JobStatus) CanTransition(next JobStatus) bool {
	switch s {
	case StatusQueued:
		return next == StatusProcessing
	case StatusProcessing:
		return next == StatusCompleted
	default:
		return false
	}
}
