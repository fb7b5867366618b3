package studio

import (
	"context"
	"errors"
	"fmt"

	"github.com/veostudio/studio-agent/internal/archive"
	"github.com/veostudio/studio-agent/internal/branding"
	"github.com/veostudio/studio-agent/internal/bundle"
	"github.com/veostudio/studio-agent/internal/jobs"
	"github.com/veostudio/studio-agent/internal/logging"
	"github.com/veostudio/studio-agent/internal/remote"
	"github.com/veostudio/studio-agent/internal/storage"
)

const (
	batchFailure  = "failed to create the ZIP archive"
	singleFailure = "failed to create the download package"
	saveFailure   = "failed to save the archive"
)

var errRequestLost = errors.New("export request no longer available; start the export again")

// ExportRequest selects what to export. Empty BundleIDs exports the current
// selection.
type ExportRequest struct {
	BundleIDs    []string `json:"bundle_ids"`
	MusicTrackID string   `json:"music_track_id"`
}

// exportRequest is the snapshot a job builds from. Later queue or branding
// edits do not affect it.
type exportRequest struct {
	bundles      []*bundle.Bundle
	assets       branding.Assets
	musicTrackID string
}

// StartExport snapshots the requested bundles and branding into a pending
// job and wakes the runner.
func (s *Service) StartExport(ctx context.Context, req ExportRequest) (*jobs.ExportJob, error) {
	var bundles []*bundle.Bundle
	if len(req.BundleIDs) > 0 {
		bundles = s.queue.Lookup(req.BundleIDs)
	} else {
		bundles = s.queue.SelectedBundles()
	}
	if len(bundles) == 0 {
		return nil, archive.ErrNoBundles
	}

	assets := s.library.Snapshot()
	if req.MusicTrackID != "" {
		if _, ok := assets.Track(req.MusicTrackID); !ok {
			return nil, branding.ErrTrackNotFound
		}
	}

	job := jobs.NewExportJob(len(bundles), archive.Label(len(bundles)))

	s.mu.Lock()
	s.pending[job.ID] = exportRequest{bundles: bundles, assets: assets, musicTrackID: req.MusicTrackID}
	s.mu.Unlock()

	if err := s.repo.CreateJob(ctx, job); err != nil {
		s.mu.Lock()
		delete(s.pending, job.ID)
		s.mu.Unlock()
		return nil, fmt.Errorf("failed to create export job: %w", err)
	}

	logging.WithJobID(s.logger, job.ID).Info("export requested", "bundles", len(bundles), "music_track_id", req.MusicTrackID)
	if s.runner != nil {
		s.runner.Wake()
	}
	return job, nil
}

// Execute builds and stores the archive for job. Failures come back as one
// user-facing message.
func (s *Service) Execute(ctx context.Context, job *jobs.ExportJob, report jobs.ReportFunc) (jobs.Result, error) {
	s.mu.Lock()
	req, ok := s.pending[job.ID]
	delete(s.pending, job.ID)
	s.mu.Unlock()
	if !ok {
		return jobs.Result{}, errRequestLost
	}

	fallback := batchFailure
	if len(req.bundles) == 1 {
		fallback = singleFailure
	}

	a, err := s.builder.Build(ctx, req.bundles, archive.Options{
		Branding:     req.assets,
		MusicTrackID: req.musicTrackID,
		Progress: func(p archive.Progress) {
			report(p.Percent(), p.Label)
		},
	})
	if err != nil {
		return jobs.Result{}, errors.New(remote.UserMessage(err, fallback))
	}

	key := storage.ArchiveKey(job.ID, a.Filename)
	if err := s.store.Put(ctx, key, "application/zip", a.Data); err != nil {
		return jobs.Result{}, errors.New(remote.UserMessage(err, saveFailure))
	}

	return jobs.Result{
		Filename:     a.Filename,
		StorageKey:   key,
		Size:         int64(len(a.Data)),
		Placeholders: len(a.Placeholders),
	}, nil
}

func (s *Service) Jobs(ctx context.Context, limit int) ([]*jobs.ExportJob, error) {
	return s.repo.ListJobs(ctx, limit)
}

func (s *Service) Job(ctx context.Context, id string) (*jobs.ExportJob, error) {
	job, err := s.repo.GetJob(ctx, id)
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, ErrJobNotFound
	}
	return job, nil
}

// LocateArchive returns where a completed job's archive can be fetched from.
func (s *Service) LocateArchive(ctx context.Context, id string) (*jobs.ExportJob, storage.Location, error) {
	job, err := s.Job(ctx, id)
	if err != nil {
		return nil, storage.Location{}, err
	}
	if job.Status != jobs.StatusCompleted || job.StorageKey == "" {
		return job, storage.Location{}, ErrJobNotReady
	}
	loc, err := s.store.Locate(ctx, job.StorageKey)
	if err != nil {
		return job, storage.Location{}, err
	}
	return job, loc, nil
}
