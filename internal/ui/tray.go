package ui

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/getlantern/systray"

	"github.com/veostudio/studio-agent/internal/jobs"
	"github.com/veostudio/studio-agent/internal/logging"
	"github.com/veostudio/studio-agent/internal/studio"
)

const refreshInterval = 2 * time.Second

type Tray struct {
	svc    *studio.Service
	runner *jobs.Runner
	logger *slog.Logger

	statusItem *systray.MenuItem
	queueItem  *systray.MenuItem
	exportItem *systray.MenuItem
	pauseItem  *systray.MenuItem

	mu   sync.Mutex
	done chan struct{}

	onQuit func()
}

type TrayConfig struct {
	Studio *studio.Service
	Runner *jobs.Runner
	Logger *slog.Logger
	OnQuit func()
}

func NewTray(cfg TrayConfig) *Tray {
	return &Tray{
		svc:    cfg.Studio,
		runner: cfg.Runner,
		logger: logging.WithComponent(cfg.Logger, "tray"),
		onQuit: cfg.OnQuit,
		done:   make(chan struct{}),
	}
}

// Run blocks until the tray exits. It must be called from the main goroutine
// on macOS.
func (t *Tray) Run() {
	systray.Run(t.onReady, t.onExit)
}

func (t *Tray) onReady() {
	systray.SetIcon(iconBytes)
	systray.SetTitle("Studio")
	systray.SetTooltip("Veo Studio Agent")

	t.statusItem = systray.AddMenuItem("Status: Idle", "Current export status")
	t.statusItem.Disable()

	t.queueItem = systray.AddMenuItem(queueTitle(0, 0), "Bundles waiting for export")
	t.queueItem.Disable()

	systray.AddSeparator()

	t.exportItem = systray.AddMenuItem("Export Selected", "Package the selected bundles into a ZIP")
	t.pauseItem = systray.AddMenuItem("Pause Exports", "Pause the export runner")

	systray.AddSeparator()

	quitItem := systray.AddMenuItem("Quit", "Quit Veo Studio Agent")

	go func() {
		for {
			select {
			case <-t.exportItem.ClickedCh:
				t.exportSelected()
			case <-t.pauseItem.ClickedCh:
				t.togglePause()
			case <-quitItem.ClickedCh:
				t.logger.Info("quit requested from tray")
				if t.onQuit != nil {
					t.onQuit()
				}
				systray.Quit()
				return
			}
		}
	}()
	go t.refreshLoop()

	t.logger.Info("system tray ready")
}

func (t *Tray) onExit() {
	close(t.done)
	t.logger.Info("system tray exiting")
}

func (t *Tray) refreshLoop() {
	ticker := time.NewTicker(refreshInterval)
	defer ticker.Stop()
	for {
		select {
		case <-t.done:
			return
		case <-ticker.C:
			t.refresh()
		}
	}
}

func (t *Tray) refresh() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	var active *jobs.ExportJob
	if t.runner != nil {
		active = t.runner.ActiveJob(ctx)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.statusItem.SetTitle(statusTitle(active, t.paused()))
	t.queueItem.SetTitle(queueTitle(t.svc.QueueLen(), t.svc.SelectedCount()))
	if t.svc.SelectedCount() == 0 {
		t.exportItem.Disable()
	} else {
		t.exportItem.Enable()
	}
}

func (t *Tray) exportSelected() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	job, err := t.svc.StartExport(ctx, studio.ExportRequest{})
	if err != nil {
		t.logger.Error("failed to start export from tray", "error", err)
		return
	}
	t.logger.Info("export started from tray", "job_id", job.ID, "bundles", job.BundleCount)
}

func (t *Tray) togglePause() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.runner == nil {
		return
	}

	if t.runner.IsPaused() {
		t.runner.Resume()
		t.pauseItem.SetTitle("Pause Exports")
		t.statusItem.SetTitle("Status: Idle")
	} else {
		t.runner.Pause()
		t.pauseItem.SetTitle("Resume Exports")
		t.statusItem.SetTitle("Status: Paused")
	}
}

func (t *Tray) paused() bool {
	return t.runner != nil && t.runner.IsPaused()
}

func (t *Tray) Quit() {
	systray.Quit()
}

func statusTitle(active *jobs.ExportJob, paused bool) string {
	switch {
	case paused:
		return "Status: Paused"
	case active == nil:
		return "Status: Idle"
	case active.Status == jobs.StatusPending:
		return "Status: Waiting to export"
	default:
		return fmt.Sprintf("Status: %s (%d%%)", active.Label, active.Progress)
	}
}

func queueTitle(total, selected int) string {
	if total == 1 {
		return fmt.Sprintf("Queue: 1 bundle (%d selected)", selected)
	}
	return fmt.Sprintf("Queue: %d bundles (%d selected)", total, selected)
}
