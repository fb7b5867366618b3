package api

import (
	"time"

	"github.com/veostudio/studio-agent/internal/branding"
	"github.com/veostudio/studio-agent/internal/jobs"
	"github.com/veostudio/studio-agent/internal/media"
	"github.com/veostudio/studio-agent/internal/studio"
)

type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	UptimeS int64  `json:"uptime_s"`
}

type StatusResponse struct {
	State        string       `json:"state"`
	LastError    string       `json:"last_error,omitempty"`
	QueueSize    int          `json:"queue_size"`
	Selected     int          `json:"selected"`
	Preview      string       `json:"preview"`
	RunnerPaused bool         `json:"runner_paused"`
	Storage      string       `json:"storage"`
	Media        media.Stats  `json:"media"`
	ActiveJob    *JobResponse `json:"active_job,omitempty"`
}

type QueueResponse struct {
	Items []studio.QueueItem `json:"items"`
}

type ToggleResponse struct {
	ID       string `json:"id"`
	Selected bool   `json:"selected"`
}

type ClipResponse struct {
	Slot    string `json:"slot"`
	Enabled bool   `json:"enabled"`
	URL     string `json:"url,omitempty"`
}

type MusicTrackResponse struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	URL  string `json:"url"`
}

type MusicResponse struct {
	Tracks []MusicTrackResponse `json:"tracks"`
}

type StartExportResponse struct {
	JobID string      `json:"job_id"`
	Job   JobResponse `json:"job"`
}

type JobResponse struct {
	ID           string `json:"id"`
	Status       string `json:"status"`
	Label        string `json:"label"`
	Progress     int    `json:"progress"`
	BundleCount  int    `json:"bundle_count"`
	Filename     string `json:"filename,omitempty"`
	SizeBytes    int64  `json:"size_bytes,omitempty"`
	Placeholders int    `json:"placeholders"`
	Error        string `json:"error,omitempty"`
	CreatedAt    string `json:"created_at"`
	UpdatedAt    string `json:"updated_at"`
}

type JobsResponse struct {
	Jobs []JobResponse `json:"jobs"`
}

type PreviewRequest struct {
	BundleID     string `json:"bundle_id"`
	MusicTrackID string `json:"music_track_id,omitempty"`
}

type PreviewEndedResponse struct {
	Stopped bool                `json:"stopped"`
	Preview studio.PreviewState `json:"preview"`
}

type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func JobToResponse(j *jobs.ExportJob) JobResponse {
	return JobResponse{
		ID:           j.ID,
		Status:       j.Status,
		Label:        j.Label,
		Progress:     j.Progress,
		BundleCount:  j.BundleCount,
		Filename:     j.Filename,
		SizeBytes:    j.Size,
		Placeholders: j.Placeholders,
		Error:        j.Error,
		CreatedAt:    j.CreatedAt.Format(time.RFC3339),
		UpdatedAt:    j.UpdatedAt.Format(time.RFC3339),
	}
}

func ClipToResponse(slot branding.Slot, c branding.Clip) ClipResponse {
	resp := ClipResponse{Slot: string(slot), Enabled: c.Enabled}
	if c.Handle != nil {
		resp.URL = c.Handle.URL
	}
	return resp
}

func TrackToResponse(t branding.MusicTrack) MusicTrackResponse {
	return MusicTrackResponse{ID: t.ID, Name: t.Name, URL: t.Handle.URL}
}
