package ui

import (
	"bytes"
	"testing"

	"github.com/veostudio/studio-agent/internal/jobs"
)

func TestStatusTitle(t *testing.T) {
	running := &jobs.ExportJob{Status: jobs.StatusRunning, Label: "compressing 3 projects", Progress: 40}
	pending := &jobs.ExportJob{Status: jobs.StatusPending}

	tests := []struct {
		name   string
		active *jobs.ExportJob
		paused bool
		want   string
	}{
		{"idle", nil, false, "Status: Idle"},
		{"paused wins", running, true, "Status: Paused"},
		{"pending", pending, false, "Status: Waiting to export"},
		{"running", running, false, "Status: compressing 3 projects (40%)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := statusTitle(tt.active, tt.paused); got != tt.want {
				t.Errorf("statusTitle() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestQueueTitle(t *testing.T) {
	if got := queueTitle(1, 1); got != "Queue: 1 bundle (1 selected)" {
		t.Errorf("queueTitle(1, 1) = %q", got)
	}
	if got := queueTitle(4, 2); got != "Queue: 4 bundles (2 selected)" {
		t.Errorf("queueTitle(4, 2) = %q", got)
	}
}

func TestIconIsPNG(t *testing.T) {
	if !bytes.HasPrefix(iconBytes, []byte("\x89PNG\r\n\x1a\n")) {
		t.Error("embedded tray icon is not a PNG")
	}
}
