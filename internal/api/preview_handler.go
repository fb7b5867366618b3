package api

import (
	"encoding/json"
	"net/http"
)

func loadPreviewHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req PreviewRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}
		if req.BundleID == "" {
			WriteError(w, http.StatusBadRequest, "bundle_id is required", "BAD_REQUEST")
			return
		}

		state, err := cfg.Studio.LoadPreview(r.Context(), req.BundleID, req.MusicTrackID)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, state)
	}
}

func togglePreviewHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, http.StatusOK, cfg.Studio.TogglePreview())
	}
}

// previewEndedHandler is called by the player when the video track ends.
func previewEndedHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stopped := cfg.Studio.PreviewEnded()
		WriteJSON(w, http.StatusOK, PreviewEndedResponse{
			Stopped: stopped,
			Preview: cfg.Studio.PreviewState(),
		})
	}
}

// previewSocketHandler connects a player. It receives transport commands and
// state changes, and may send "toggle" and "ended" events back.
func previewSocketHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		initial, err := newEvent("state", cfg.Studio.PreviewState())
		if err != nil {
			WriteError(w, http.StatusInternalServerError, err.Error(), "INTERNAL_ERROR")
			return
		}

		cfg.Hub.serve(w, r, session{
			room:    previewRoom,
			initial: []Event{initial},
			onEvent: func(ev Event) {
				switch ev.Event {
				case "toggle":
					cfg.Studio.TogglePreview()
				case "ended":
					cfg.Studio.PreviewEnded()
				default:
					cfg.Logger.Debug("ignoring preview event", "event", ev.Event)
				}
			},
		})
	}
}
