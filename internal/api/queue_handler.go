package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/veostudio/studio-agent/internal/bundle"
	"github.com/veostudio/studio-agent/internal/media"
	"github.com/veostudio/studio-agent/internal/studio"
)

func listQueueHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, http.StatusOK, QueueResponse{Items: cfg.Studio.Queue()})
	}
}

// addBundleHandler accepts a multipart form: metadata (JSON), video file or
// video_uri, optional thumbnail data URI, voiceover file, channel and
// generation (JSON).
func addBundleHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := parseUpload(w, r); err != nil {
			writeUploadError(w, "video", err)
			return
		}

		var in studio.BundleInput
		if err := json.Unmarshal([]byte(r.FormValue("metadata")), &in.Metadata); err != nil {
			WriteError(w, http.StatusBadRequest, "metadata must be a JSON object", "BAD_REQUEST")
			return
		}

		video, err := formBlob(r, "video", media.KindVideo)
		switch {
		case errors.Is(err, errMissingFile):
			in.VideoURI = r.FormValue("video_uri")
		case err != nil:
			writeUploadError(w, "video", err)
			return
		default:
			in.Video = video
		}

		voice, err := formBlob(r, "voiceover", media.KindVoiceover)
		if err != nil && !errors.Is(err, errMissingFile) {
			writeUploadError(w, "voiceover", err)
			return
		}
		in.Voiceover = voice

		in.Thumbnail = r.FormValue("thumbnail")
		in.Channel = r.FormValue("channel")

		if raw := r.FormValue("generation"); raw != "" {
			gen, err := bundle.ParseGeneration([]byte(raw))
			if err != nil {
				writeServiceError(w, err)
				return
			}
			in.Generation = gen
		}

		b, err := cfg.Studio.AddBundle(in)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		item, _ := cfg.Studio.Item(b.ID)
		WriteJSON(w, http.StatusCreated, item)
	}
}

func removeBundleHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := cfg.Studio.RemoveBundle(chi.URLParam(r, "id")); err != nil {
			writeServiceError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func toggleSelectionHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		selected, ok := cfg.Studio.ToggleSelection(id)
		if !ok {
			WriteError(w, http.StatusNotFound, "bundle not in queue", "NOT_FOUND")
			return
		}
		WriteJSON(w, http.StatusOK, ToggleResponse{ID: id, Selected: selected})
	}
}
