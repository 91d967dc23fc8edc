package models

import "time"

// JobExecution records one firing of a scheduled job. Old rows are purged
// weekly by the cleanup job.
type JobExecution struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	JobName    string    `gorm:"size:64;index;not null" json:"job_name"`
	StartedAt  time.Time `gorm:"index;not null" json:"started_at"`
	DurationMS int64     `json:"duration_ms"`
	Status     string    `gorm:"size:16;not null" json:"status"` // ok | error
	Error      string    `gorm:"size:1024" json:"error,omitempty"`
}
