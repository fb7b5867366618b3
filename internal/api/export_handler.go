package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/veostudio/studio-agent/internal/studio"
)

const listExportsLimit = 50

func listExportsHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := cfg.Studio.Jobs(r.Context(), listExportsLimit)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		resp := JobsResponse{Jobs: make([]JobResponse, len(list))}
		for i, j := range list {
			resp.Jobs[i] = JobToResponse(j)
		}
		WriteJSON(w, http.StatusOK, resp)
	}
}

// startExportHandler queues an export of the given bundles, or of the
// current selection when the body is empty.
func startExportHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req studio.ExportRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}

		job, err := cfg.Studio.StartExport(r.Context(), req)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		WriteJSON(w, http.StatusAccepted, StartExportResponse{JobID: job.ID, Job: JobToResponse(job)})
	}
}

func getExportHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		job, err := cfg.Studio.Job(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeServiceError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, JobToResponse(job))
	}
}

// downloadExportHandler streams a finished archive, or redirects to a
// presigned URL when archives live in object storage.
func downloadExportHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		job, loc, err := cfg.Studio.LocateArchive(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeServiceError(w, err)
			return
		}
		if loc.URL != "" {
			http.Redirect(w, r, loc.URL, http.StatusFound)
			return
		}
		if err := cfg.Playback.ServeFile(w, r, loc.Path, job.Filename); err != nil {
			cfg.Logger.Error("archive download error", "error", err, "job_id", job.ID)
		}
	}
}

// exportEventsHandler streams job updates over a WebSocket until the job
// reaches a terminal state.
func exportEventsHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		id := chi.URLParam(r, "id")
		job, err := cfg.Studio.Job(ctx, id)
		if err != nil {
			writeServiceError(w, err)
			return
		}

		initial, err := newEvent("job", JobToResponse(job))
		if err != nil {
			WriteError(w, http.StatusInternalServerError, err.Error(), "INTERNAL_ERROR")
			return
		}

		cfg.Hub.serve(w, r, session{
			room:    jobRoom(id),
			initial: []Event{initial},
			once:    job.Terminal(),
			joined: func() {
				// The job may have finished between the lookup and the join.
				latest, err := cfg.Studio.Job(ctx, id)
				if err == nil && latest.Terminal() {
					cfg.Hub.JobUpdated(latest)
				}
			},
		})
	}
}
