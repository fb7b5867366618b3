package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/veostudio/studio-agent/internal/branding"
	"github.com/veostudio/studio-agent/internal/media"
)

func uploadWatermarkHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := parseUpload(w, r); err != nil {
			writeUploadError(w, "file", err)
			return
		}
		logo, err := formBlob(r, "file", media.KindImage)
		if err != nil {
			writeUploadError(w, "file", err)
			return
		}

		lib := cfg.Studio.Branding()
		if err := lib.SetWatermarkImage(logo); err != nil {
			writeServiceError(w, err)
			return
		}
		if err := cfg.Studio.PersistWatermark(r.Context()); err != nil {
			cfg.Logger.Warn("failed to persist watermark", "error", err)
		}
		WriteJSON(w, http.StatusOK, lib.Watermark())
	}
}

func clearWatermarkHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		lib := cfg.Studio.Branding()
		lib.ClearWatermarkImage()
		if err := cfg.Studio.PersistWatermark(r.Context()); err != nil {
			cfg.Logger.Warn("failed to persist watermark", "error", err)
		}
		WriteJSON(w, http.StatusOK, lib.Watermark())
	}
}

func uploadClipHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		slot, err := branding.ParseSlot(chi.URLParam(r, "slot"))
		if err != nil {
			WriteError(w, http.StatusNotFound, err.Error(), "NOT_FOUND")
			return
		}
		if err := parseUpload(w, r); err != nil {
			writeUploadError(w, "file", err)
			return
		}
		clip, err := formBlob(r, "file", media.KindVideo)
		if err != nil {
			writeUploadError(w, "file", err)
			return
		}

		installed, err := cfg.Studio.Branding().SetClip(slot, clip)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, ClipToResponse(slot, installed))
	}
}

func removeClipHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		slot, err := branding.ParseSlot(chi.URLParam(r, "slot"))
		if err != nil {
			WriteError(w, http.StatusNotFound, err.Error(), "NOT_FOUND")
			return
		}
		if err := cfg.Studio.Branding().RemoveClip(slot); err != nil {
			writeServiceError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func listMusicHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tracks := cfg.Studio.Branding().Music()
		resp := MusicResponse{Tracks: make([]MusicTrackResponse, len(tracks))}
		for i, t := range tracks {
			resp.Tracks[i] = TrackToResponse(t)
		}
		WriteJSON(w, http.StatusOK, resp)
	}
}

func uploadMusicHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := parseUpload(w, r); err != nil {
			writeUploadError(w, "files", err)
			return
		}
		blobs, err := formBlobs(r, "files", media.KindAudio)
		if err != nil {
			writeUploadError(w, "files", err)
			return
		}

		lib := cfg.Studio.Branding()
		resp := MusicResponse{Tracks: make([]MusicTrackResponse, 0, len(blobs))}
		for _, b := range blobs {
			t, err := lib.AddMusic(b)
			if err != nil {
				writeServiceError(w, err)
				return
			}
			resp.Tracks = append(resp.Tracks, TrackToResponse(t))
		}
		WriteJSON(w, http.StatusCreated, resp)
	}
}

func removeMusicHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := cfg.Studio.RemoveMusic(chi.URLParam(r, "id")); err != nil {
			writeServiceError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
