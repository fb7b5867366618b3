// Package jobs persists export jobs and runs them in the background.
package jobs

import (
	"time"

	"github.com/google/uuid"
)

const (
	StatusPending   = "pending"
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// ExportJob tracks one archive build from request to download.
type ExportJob struct {
	ID           string
	Status       string
	Label        string
	Progress     int
	BundleCount  int
	Filename     string
	StorageKey   string
	Size         int64
	Placeholders int
	Error        string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Terminal reports whether the job will not change again.
func (j *ExportJob) Terminal() bool {
	return j.Status == StatusCompleted || j.Status == StatusFailed
}

// Result is what a successful execution stores on its job.
type Result struct {
	Filename     string
	StorageKey   string
	Size         int64
	Placeholders int
}

func NewID() string {
	return uuid.New().String()
}

// NewExportJob returns a pending job for n bundles.
func NewExportJob(n int, label string) *ExportJob {
	now := time.Now().UTC()
	return &ExportJob{
		ID:          NewID(),
		Status:      StatusPending,
		Label:       label,
		BundleCount: n,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}
