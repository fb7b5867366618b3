package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/veostudio/studio-agent/internal/archive"
	"github.com/veostudio/studio-agent/internal/branding"
	"github.com/veostudio/studio-agent/internal/bundle"
	"github.com/veostudio/studio-agent/internal/jobs"
	"github.com/veostudio/studio-agent/internal/media"
	"github.com/veostudio/studio-agent/internal/playback"
	"github.com/veostudio/studio-agent/internal/storage"
	"github.com/veostudio/studio-agent/internal/studio"
)

func NewRouter(cfg ServerConfig) *chi.Mux {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware())
	r.Use(RecoveryMiddleware(cfg.Logger))
	r.Use(LoggingMiddleware(cfg.Logger))
	r.Use(CORSAllowlist())

	r.Get("/health", healthHandler(cfg))

	r.With(LoopbackGuard()).Get("/media/{id}", mediaHandler(cfg))
	r.With(LoopbackGuard()).Head("/media/{id}", mediaHandler(cfg))

	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(cfg.Tokens, cfg.Logger))

		r.Get("/status", statusHandler(cfg))
		r.Get("/stats", statsHandler(cfg))
		r.Get("/settings", getSettingsHandler(cfg))
		r.Put("/settings", putSettingsHandler(cfg))

		r.Post("/branding/watermark", uploadWatermarkHandler(cfg))
		r.Delete("/branding/watermark", clearWatermarkHandler(cfg))
		r.Post("/branding/{slot}", uploadClipHandler(cfg))
		r.Delete("/branding/{slot}", removeClipHandler(cfg))

		r.Get("/music", listMusicHandler(cfg))
		r.Post("/music", uploadMusicHandler(cfg))
		r.Delete("/music/{id}", removeMusicHandler(cfg))

		r.Get("/queue", listQueueHandler(cfg))
		r.Post("/queue", addBundleHandler(cfg))
		r.Delete("/queue/{id}", removeBundleHandler(cfg))
		r.Post("/queue/{id}/toggle", toggleSelectionHandler(cfg))

		r.Get("/exports", listExportsHandler(cfg))
		r.Post("/exports", startExportHandler(cfg))
		r.Get("/exports/{id}", getExportHandler(cfg))
		r.Get("/exports/{id}/download", downloadExportHandler(cfg))
		r.Get("/exports/{id}/events", exportEventsHandler(cfg))

		r.Put("/preview", loadPreviewHandler(cfg))
		r.Post("/preview/toggle", togglePreviewHandler(cfg))
		r.Post("/preview/ended", previewEndedHandler(cfg))
		r.Get("/preview/ws", previewSocketHandler(cfg))
	})

	return r
}

func healthHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uptime := int64(time.Since(cfg.StartTime).Seconds())
		WriteJSON(w, http.StatusOK, HealthResponse{
			Status:  "ok",
			Version: cfg.Version,
			UptimeS: uptime,
		})
	}
}

func statusHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		svc := cfg.Studio

		state := "idle"
		lastError := ""
		runner := svc.Runner()
		if runner != nil && runner.IsPaused() {
			state = "paused"
		}

		var activeJob *JobResponse
		if runner != nil {
			if j := runner.ActiveJob(ctx); j != nil {
				resp := JobToResponse(j)
				activeJob = &resp
			}
		}
		recent, _ := svc.Jobs(ctx, 10)
		for _, j := range recent {
			if j.Status == jobs.StatusFailed {
				lastError = j.Error
				break
			}
		}
		if activeJob != nil && state == "idle" {
			state = "exporting"
		}

		resp := StatusResponse{
			State:     state,
			LastError: lastError,
			QueueSize: svc.QueueLen(),
			Selected:  svc.SelectedCount(),
			Preview:   svc.PreviewState().State,
			Media:     svc.MediaStats(),
			ActiveJob: activeJob,
			Storage:   svc.StorageKind(),
		}
		if runner != nil {
			resp.RunnerPaused = runner.IsPaused()
		}
		WriteJSON(w, http.StatusOK, resp)
	}
}

func statsHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		st, err := cfg.Studio.Stats(r.Context())
		if err != nil {
			writeServiceError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, st)
	}
}

func getSettingsHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		settings, err := cfg.Studio.Settings(r.Context())
		if err != nil {
			writeServiceError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, settings)
	}
}

func putSettingsHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req studio.Settings
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}
		if err := cfg.Studio.UpdateSettings(r.Context(), req); err != nil {
			writeServiceError(w, err)
			return
		}
		settings, err := cfg.Studio.Settings(r.Context())
		if err != nil {
			writeServiceError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, settings)
	}
}

func mediaHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if err := cfg.Playback.ServeMedia(w, r, id); err != nil {
			cfg.Logger.Error("media serving error", "error", err, "media_id", id)
		}
	}
}

// writeServiceError maps domain errors to HTTP statuses.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, studio.ErrBundleNotFound),
		errors.Is(err, studio.ErrJobNotFound),
		errors.Is(err, branding.ErrTrackNotFound),
		errors.Is(err, storage.ErrNotFound):
		WriteError(w, http.StatusNotFound, err.Error(), "NOT_FOUND")
	case errors.Is(err, playback.ErrPlaying):
		WriteError(w, http.StatusConflict, err.Error(), "PREVIEW_PLAYING")
	case errors.Is(err, studio.ErrJobNotReady):
		WriteError(w, http.StatusConflict, err.Error(), "NOT_READY")
	case errors.Is(err, studio.ErrPreviewFetch):
		WriteError(w, http.StatusBadGateway, err.Error(), "PREVIEW_FETCH_FAILED")
	case errors.Is(err, archive.ErrNoBundles):
		WriteError(w, http.StatusBadRequest, "no bundles selected for export", "NO_BUNDLES")
	case errors.Is(err, media.ErrFileTooLarge):
		WriteError(w, http.StatusRequestEntityTooLarge, err.Error(), "FILE_TOO_LARGE")
	case errors.Is(err, media.ErrInvalidFileType):
		WriteError(w, http.StatusUnsupportedMediaType, err.Error(), "INVALID_FILE_TYPE")
	case isValidationError(err):
		WriteError(w, http.StatusBadRequest, err.Error(), "BAD_REQUEST")
	default:
		WriteError(w, http.StatusInternalServerError, err.Error(), "INTERNAL_ERROR")
	}
}

func isValidationError(err error) bool {
	for _, target := range []error{
		media.ErrEmptyBlob, media.ErrInvalidDataURI, media.ErrFilenameTooLong,
		bundle.ErrMissingTitle, bundle.ErrMissingVideo, bundle.ErrInvalidEpisode,
		bundle.ErrUnknownMode, bundle.ErrMissingFrame, bundle.ErrMissingSource,
		bundle.ErrTooManyAssets, bundle.ErrNoReferences,
		branding.ErrUnknownSlot, branding.ErrInvalidPosition,
		branding.ErrOpacityRange, branding.ErrScaleRange, branding.ErrInvalidImage,
		studio.ErrDuplicateChannel, studio.ErrInvalidChannel, studio.ErrInvalidTemplate,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
