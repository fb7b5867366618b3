package studio

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/veostudio/studio-agent/internal/branding"
	"github.com/veostudio/studio-agent/internal/bundle"
	"github.com/veostudio/studio-agent/internal/media"
	"github.com/veostudio/studio-agent/internal/playback"
	"github.com/veostudio/studio-agent/internal/remote"
)

var ErrPreviewFetch = errors.New("studio: preview video could not be fetched")

type discardSink struct{}

func (discardSink) Send(playback.Command) {}

// preview binds the transport controller to the bundle and music track
// currently loaded in it.
type preview struct {
	controller *playback.Controller
	sink       playback.CommandSink
	registry   *media.Registry

	mu       sync.Mutex
	bundleID string
	musicID  string
	tracks   []*playback.RemoteTrack
	// fetched is the handle for a remote video downloaded for playback.
	fetched *media.Handle
}

func newPreview(sink playback.CommandSink, registry *media.Registry) *preview {
	return &preview{controller: playback.NewController(), sink: sink, registry: registry}
}

// unloadBundle stops playback and clears every track when bundleID is the
// one loaded. It reports whether anything was unloaded.
func (p *preview) unloadBundle(bundleID string) bool {
	p.mu.Lock()
	if bundleID == "" || p.bundleID != bundleID {
		p.mu.Unlock()
		return false
	}
	p.resetLocked()
	p.mu.Unlock()

	p.controller.Flush()
	return true
}

func (p *preview) close() {
	p.mu.Lock()
	p.resetLocked()
	p.mu.Unlock()
	p.controller.Flush()
}

func (p *preview) resetLocked() {
	p.controller.Reset()
	for _, t := range p.tracks {
		t.Unload()
	}
	p.tracks = nil
	p.bundleID = ""
	p.musicID = ""
	p.registry.Release(p.fetched)
	p.fetched = nil
}

// detachMusic stops playback and drops the music track when trackID is the
// one loaded.
func (p *preview) detachMusic(trackID string) bool {
	p.mu.Lock()
	if trackID == "" || p.musicID != trackID {
		p.mu.Unlock()
		return false
	}
	p.controller.StopAndDetachMusic()
	kept := p.tracks[:0]
	for _, t := range p.tracks {
		if t.Role() == playback.RoleMusic {
			t.Unload()
			continue
		}
		kept = append(kept, t)
	}
	p.tracks = kept
	p.musicID = ""
	p.mu.Unlock()

	p.controller.Flush()
	return true
}

// TrackInfo names one loaded preview track.
type TrackInfo struct {
	Role string `json:"role"`
	URL  string `json:"url"`
}

type PreviewState struct {
	BundleID     string      `json:"bundle_id,omitempty"`
	MusicTrackID string      `json:"music_track_id,omitempty"`
	State        string      `json:"state"`
	Tracks       []TrackInfo `json:"tracks"`
}

// LoadPreview loads a queued bundle, and optionally a music track, into the
// preview transport. It fails with playback.ErrPlaying while playing. A
// remote video is downloaded first and served from a local playback URL.
func (s *Service) LoadPreview(ctx context.Context, bundleID, musicTrackID string) (PreviewState, error) {
	b, ok := s.queue.Get(bundleID)
	if !ok {
		return PreviewState{}, ErrBundleNotFound
	}
	var music *branding.MusicTrack
	if musicTrackID != "" {
		t, ok := s.library.Track(musicTrackID)
		if !ok {
			return PreviewState{}, branding.ErrTrackNotFound
		}
		music = &t
	}

	p := s.preview
	var videoURL string
	var fetched *media.Handle
	if b.VideoHandle != nil {
		videoURL = b.VideoHandle.URL
	} else {
		h, err := s.fetchPreviewVideo(ctx, b)
		if err != nil {
			return PreviewState{}, err
		}
		fetched = h
		videoURL = h.URL
	}
	video := playback.NewRemoteTrack(playback.RoleVideo, videoURL, p.sink)
	tracks := []*playback.RemoteTrack{video}
	var voice, bgm playback.Track
	if b.Voiceover != nil && b.Voiceover.Handle != nil {
		t := playback.NewRemoteTrack(playback.RoleVoiceover, b.Voiceover.Handle.URL, p.sink)
		tracks = append(tracks, t)
		voice = t
	}
	if music != nil {
		t := playback.NewRemoteTrack(playback.RoleMusic, music.Handle.URL, p.sink)
		tracks = append(tracks, t)
		bgm = t
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.controller.Load(video, voice, bgm); err != nil {
		s.registry.Release(fetched)
		return PreviewState{}, err
	}
	s.registry.Release(p.fetched)
	p.fetched = fetched

	for _, old := range p.tracks {
		old.Unload()
	}
	for _, t := range tracks {
		t.Load()
	}
	p.tracks = tracks
	p.bundleID = b.ID
	p.musicID = musicTrackID

	s.logger.Info("preview loaded", "bundle_id", b.ID, "tracks", len(tracks))
	return p.stateLocked(), nil
}

func (s *Service) fetchPreviewVideo(ctx context.Context, b *bundle.Bundle) (*media.Handle, error) {
	if s.fetcher == nil {
		return nil, fmt.Errorf("%w: no fetcher configured", ErrPreviewFetch)
	}
	data, err := s.fetcher.Fetch(ctx, b.Video.URI)
	if err != nil {
		s.logger.Warn("preview fetch failed", "bundle_id", b.ID, "error", err)
		return nil, fmt.Errorf("%w: %s", ErrPreviewFetch, remote.UserMessage(err, "download failed"))
	}
	return s.registry.Register(media.NewBlob("preview.mp4", "video/mp4", data))
}

// TogglePreview starts or stops synced playback.
func (s *Service) TogglePreview() PreviewState {
	s.preview.controller.Toggle()
	return s.PreviewState()
}

// PreviewEnded records the natural end of the preview video. It reports
// whether playback stopped because of it.
func (s *Service) PreviewEnded() bool {
	return s.preview.controller.VideoEnded()
}

func (s *Service) PreviewPlaying() bool {
	return s.preview.controller.Playing()
}

// OnPreviewChange registers fn to run on every transport state change.
func (s *Service) OnPreviewChange(fn func(playback.State)) {
	s.preview.controller.OnChange(fn)
}

func (s *Service) PreviewState() PreviewState {
	s.preview.mu.Lock()
	defer s.preview.mu.Unlock()
	return s.preview.stateLocked()
}

func (p *preview) stateLocked() PreviewState {
	st := PreviewState{
		BundleID:     p.bundleID,
		MusicTrackID: p.musicID,
		State:        p.controller.State().String(),
		Tracks:       make([]TrackInfo, 0, len(p.tracks)),
	}
	for _, t := range p.tracks {
		st.Tracks = append(st.Tracks, TrackInfo{Role: t.Role(), URL: t.URL()})
	}
	return st
}
