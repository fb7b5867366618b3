// Package studio holds one production session: the export queue, branding
// library, preview transport and export jobs, all sharing a media registry.
package studio

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/veostudio/studio-agent/internal/archive"
	"github.com/veostudio/studio-agent/internal/branding"
	"github.com/veostudio/studio-agent/internal/bundle"
	"github.com/veostudio/studio-agent/internal/jobs"
	"github.com/veostudio/studio-agent/internal/logging"
	"github.com/veostudio/studio-agent/internal/media"
	"github.com/veostudio/studio-agent/internal/playback"
	"github.com/veostudio/studio-agent/internal/queue"
	"github.com/veostudio/studio-agent/internal/storage"
)

var (
	ErrBundleNotFound = errors.New("studio: bundle not in queue")
	ErrJobNotFound    = errors.New("studio: export job not found")
	ErrJobNotReady    = errors.New("studio: export job has no archive yet")
)

// Options are the collaborators a Service is built from.
type Options struct {
	Registry *media.Registry
	Builder  *archive.Builder
	Store    storage.Store
	Repo     jobs.Repository
	// Fetcher downloads remote videos for preview. Exports fetch through
	// the Builder.
	Fetcher archive.Fetcher
	// Sink receives preview transport commands. Nil discards them.
	Sink   playback.CommandSink
	Logger *slog.Logger
}

type Service struct {
	registry *media.Registry
	queue    *queue.Queue
	library  *branding.Library
	builder  *archive.Builder
	fetcher  archive.Fetcher
	store    storage.Store
	repo     jobs.Repository
	runner   *jobs.Runner
	preview  *preview
	logger   *slog.Logger

	settingsMu sync.Mutex

	mu      sync.Mutex
	pending map[string]exportRequest
}

func New(opts Options) *Service {
	logger := opts.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	sink := opts.Sink
	if sink == nil {
		sink = discardSink{}
	}
	return &Service{
		registry: opts.Registry,
		queue:    queue.New(),
		library:  branding.NewLibrary(opts.Registry),
		builder:  opts.Builder,
		fetcher:  opts.Fetcher,
		store:    opts.Store,
		repo:     opts.Repo,
		preview:  newPreview(sink, opts.Registry),
		logger:   logging.WithComponent(logger, "studio"),
		pending:  make(map[string]exportRequest),
	}
}

// SetRunner attaches the runner that executes this service's export jobs.
func (s *Service) SetRunner(r *jobs.Runner) {
	s.runner = r
}

func (s *Service) Runner() *jobs.Runner {
	return s.runner
}

// StorageKind names the archive storage backend.
func (s *Service) StorageKind() string {
	if s.store == nil {
		return ""
	}
	return s.store.Kind()
}

// Init applies the stored watermark settings to the branding library.
func (s *Service) Init(ctx context.Context) error {
	settings, err := loadSettings(ctx, s.repo)
	if err != nil {
		return err
	}
	if err := s.library.SetWatermark(settings.Watermark); err != nil {
		s.logger.Warn("stored watermark settings invalid, using defaults", "error", err)
	}
	return nil
}

// Close stops the preview and releases every handle the session owns.
func (s *Service) Close() {
	s.preview.close()
	for _, b := range s.queue.Clear() {
		s.releaseBundle(b)
	}
	s.library.Close()
}

// BundleInput is one produced item as delivered by the generation side.
type BundleInput struct {
	Metadata  bundle.Metadata
	Video     *media.Blob
	VideoURI  string
	Thumbnail string
	// Voiceover is WAV audio, or raw speech PCM when its content type is
	// audio/pcm or audio/L16.
	Voiceover  *media.Blob
	Channel    string
	Generation bundle.Generation
}

// AddBundle registers the input's media, freezes it into a bundle and
// enqueues it selected.
func (s *Service) AddBundle(in BundleInput) (*bundle.Bundle, error) {
	if in.Thumbnail != "" {
		if _, _, err := media.DecodeDataURI(in.Thumbnail); err != nil {
			return nil, fmt.Errorf("thumbnail: %w", err)
		}
	}

	var acquired []*media.Handle
	release := func() {
		for _, h := range acquired {
			s.registry.Release(h)
		}
	}

	p := bundle.Params{
		Metadata:     in.Metadata,
		Video:        bundle.VideoResource{Blob: in.Video, URI: in.VideoURI},
		Thumbnail:    in.Thumbnail,
		ChannelLabel: in.Channel,
		Generation:   in.Generation,
	}

	if !in.Video.Empty() {
		h, err := s.registry.Register(in.Video)
		if err != nil {
			return nil, err
		}
		acquired = append(acquired, h)
		p.VideoHandle = h
	}

	if !in.Voiceover.Empty() {
		audio := in.Voiceover
		if isRawPCM(audio.ContentType) {
			audio = media.WrapSpeech(audio.Data)
		}
		h, err := s.registry.Register(audio)
		if err != nil {
			release()
			return nil, err
		}
		acquired = append(acquired, h)
		p.Voiceover = &bundle.Voiceover{Blob: audio, Handle: h}
	}

	b, err := bundle.New(p)
	if err != nil {
		release()
		return nil, err
	}
	s.queue.Enqueue(b)
	s.logger.Info("bundle queued", "bundle_id", b.ID, "title", b.Metadata.Title, "remote_video", b.Video.Remote())
	return b, nil
}

func isRawPCM(contentType string) bool {
	ct := strings.ToLower(contentType)
	return strings.HasPrefix(ct, "audio/pcm") || strings.HasPrefix(ct, "audio/l16")
}

// RemoveBundle dequeues id and releases its playback URLs.
func (s *Service) RemoveBundle(id string) error {
	b := s.queue.Remove(id)
	if b == nil {
		return ErrBundleNotFound
	}
	if s.preview.unloadBundle(id) {
		s.logger.Info("preview unloaded", "bundle_id", id)
	}
	s.releaseBundle(b)
	s.logger.Info("bundle removed", "bundle_id", id)
	return nil
}

func (s *Service) releaseBundle(b *bundle.Bundle) {
	for _, h := range b.Handles() {
		s.registry.Release(h)
	}
}

// ToggleSelection flips id's selection. ok is false when id is not queued.
func (s *Service) ToggleSelection(id string) (selected, ok bool) {
	return s.queue.ToggleSelection(id)
}

func (s *Service) Queue() []QueueItem {
	items := s.queue.Items()
	out := make([]QueueItem, len(items))
	for i, b := range items {
		out[i] = newQueueItem(b, s.queue.IsSelected(b.ID))
	}
	return out
}

// Item returns the listing view of one queued bundle.
func (s *Service) Item(id string) (QueueItem, bool) {
	b, ok := s.queue.Get(id)
	if !ok {
		return QueueItem{}, false
	}
	return newQueueItem(b, s.queue.IsSelected(id)), true
}

func (s *Service) QueueLen() int           { return s.queue.Len() }
func (s *Service) SelectedCount() int      { return s.queue.SelectedCount() }
func (s *Service) MediaStats() media.Stats { return s.registry.Stats() }

// Branding exposes the session's branding library.
func (s *Service) Branding() *branding.Library {
	return s.library
}

// RemoveMusic drops a music track, detaching it from the preview first when
// it is playing there.
func (s *Service) RemoveMusic(id string) error {
	s.preview.detachMusic(id)
	return s.library.RemoveMusic(id)
}

// Settings returns the stored settings with the live watermark.
func (s *Service) Settings(ctx context.Context) (Settings, error) {
	s.settingsMu.Lock()
	defer s.settingsMu.Unlock()

	settings, err := loadSettings(ctx, s.repo)
	if err != nil {
		return Settings{}, err
	}
	settings.Watermark = s.library.Watermark()
	return settings, nil
}

// UpdateSettings validates, persists and applies settings.
func (s *Service) UpdateSettings(ctx context.Context, settings Settings) error {
	if err := settings.Validate(); err != nil {
		return err
	}
	s.settingsMu.Lock()
	defer s.settingsMu.Unlock()

	if err := saveSettings(ctx, s.repo, settings); err != nil {
		return err
	}
	return s.library.SetWatermark(settings.Watermark)
}

// PersistWatermark stores the library's current watermark in the settings
// document.
func (s *Service) PersistWatermark(ctx context.Context) error {
	s.settingsMu.Lock()
	defer s.settingsMu.Unlock()

	settings, err := loadSettings(ctx, s.repo)
	if err != nil {
		return err
	}
	settings.Watermark = s.library.Watermark()
	return saveSettings(ctx, s.repo, settings)
}

func (s *Service) Stats(ctx context.Context) (Stats, error) {
	settings, err := s.Settings(ctx)
	if err != nil {
		return Stats{}, err
	}
	return ComputeStats(s.queue.Items(), settings.Channels), nil
}

// QueueItem is the listing view of a queued bundle.
type QueueItem struct {
	ID           string          `json:"id"`
	Title        string          `json:"title"`
	Channel      string          `json:"channel,omitempty"`
	Selected     bool            `json:"selected"`
	VideoURL     string          `json:"video_url,omitempty"`
	VideoURI     string          `json:"video_uri,omitempty"`
	VoiceoverURL string          `json:"voiceover_url,omitempty"`
	HasThumbnail bool            `json:"has_thumbnail"`
	Mode         bundle.Mode     `json:"mode,omitempty"`
	Metadata     bundle.Metadata `json:"metadata"`
	CreatedAt    string          `json:"created_at"`
}

func newQueueItem(b *bundle.Bundle, selected bool) QueueItem {
	item := QueueItem{
		ID:           b.ID,
		Title:        b.Metadata.Title,
		Channel:      b.ChannelLabel,
		Selected:     selected,
		VideoURI:     b.Video.URI,
		HasThumbnail: b.Thumbnail != "",
		Metadata:     b.Metadata,
		CreatedAt:    b.CreatedAt.UTC().Format("2006-01-02T15:04:05Z"),
	}
	if b.VideoHandle != nil {
		item.VideoURL = b.VideoHandle.URL
	}
	if b.Voiceover != nil && b.Voiceover.Handle != nil {
		item.VoiceoverURL = b.Voiceover.Handle.URL
	}
	if b.Generation != nil {
		item.Mode = b.Generation.Mode()
	}
	return item
}
