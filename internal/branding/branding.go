// Package branding holds the global assets applied to every export: the
// watermark, intro and outro clips and the background music library.
package branding

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/veostudio/studio-agent/internal/media"
)

var (
	ErrUnknownSlot     = errors.New("branding: unknown clip slot")
	ErrInvalidPosition = errors.New("branding: invalid watermark position")
	ErrOpacityRange    = errors.New("branding: opacity must be between 0.1 and 1.0")
	ErrScaleRange      = errors.New("branding: scale must be between 0.1 and 0.5")
	ErrInvalidImage    = errors.New("branding: watermark image must be a base64 image data URI")
	ErrTrackNotFound   = errors.New("branding: music track not found")
)

type Position string

const (
	TopLeft     Position = "top-left"
	TopRight    Position = "top-right"
	BottomLeft  Position = "bottom-left"
	BottomRight Position = "bottom-right"
)

func (p Position) Valid() bool {
	switch p {
	case TopLeft, TopRight, BottomLeft, BottomRight:
		return true
	}
	return false
}

// Watermark settings. Image is a data URI; it is the only image that is
// persisted with the settings.
type Watermark struct {
	Enabled  bool     `json:"enabled"`
	Image    string   `json:"image,omitempty"`
	Position Position `json:"position"`
	Opacity  float64  `json:"opacity"`
	Scale    float64  `json:"scale"`
}

func DefaultWatermark() Watermark {
	return Watermark{
		Position: BottomRight,
		Opacity:  0.8,
		Scale:    0.15,
	}
}

func (w Watermark) Validate() error {
	if !w.Position.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidPosition, w.Position)
	}
	if w.Opacity < 0.1 || w.Opacity > 1.0 {
		return ErrOpacityRange
	}
	if w.Scale < 0.1 || w.Scale > 0.5 {
		return ErrScaleRange
	}
	if w.Image != "" {
		return validateImage(w.Image)
	}
	return nil
}

func validateImage(uri string) error {
	if !strings.HasPrefix(uri, "data:") {
		return ErrInvalidImage
	}
	data, contentType, err := media.DecodeDataURI(uri)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}
	if !strings.HasPrefix(strings.ToLower(contentType), "image/") {
		return fmt.Errorf("%w: content type %q", ErrInvalidImage, contentType)
	}
	if len(data) == 0 {
		return ErrInvalidImage
	}
	return nil
}

// Active reports whether the watermark goes into exports.
func (w Watermark) Active() bool {
	return w.Enabled && w.Image != ""
}

type Slot string

const (
	SlotIntro Slot = "intro"
	SlotOutro Slot = "outro"
)

func ParseSlot(s string) (Slot, error) {
	switch Slot(s) {
	case SlotIntro, SlotOutro:
		return Slot(s), nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownSlot, s)
}

// Clip is an intro or outro video.
type Clip struct {
	Enabled bool
	Handle  *media.Handle
}

// Active reports whether the clip goes into exports.
func (c Clip) Active() bool {
	return c.Enabled && c.Handle != nil && !c.Handle.Blob.Empty()
}

type MusicTrack struct {
	ID     string
	Name   string
	Handle *media.Handle
}

// Assets is a point-in-time copy of the library.
type Assets struct {
	Watermark Watermark
	Intro     Clip
	Outro     Clip
	Music     []MusicTrack
}

// Track looks up a music track by id.
func (a Assets) Track(id string) (MusicTrack, bool) {
	for _, t := range a.Music {
		if t.ID == id {
			return t, true
		}
	}
	return MusicTrack{}, false
}

// Library owns the registry handles behind clips and music. Every remove or
// replace path releases through the registry.
type Library struct {
	mu        sync.RWMutex
	registry  *media.Registry
	watermark Watermark
	intro     Clip
	outro     Clip
	music     []MusicTrack
}

func NewLibrary(registry *media.Registry) *Library {
	return &Library{
		registry:  registry,
		watermark: DefaultWatermark(),
	}
}

func (l *Library) Watermark() Watermark {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.watermark
}

func (l *Library) SetWatermark(w Watermark) error {
	if err := w.Validate(); err != nil {
		return err
	}
	l.mu.Lock()
	l.watermark = w
	l.mu.Unlock()
	return nil
}

// SetWatermarkImage stores an uploaded logo as a data URI and enables the
// watermark.
func (l *Library) SetWatermarkImage(b *media.Blob) error {
	if b.Empty() {
		return media.ErrEmptyBlob
	}
	ct := b.ContentType
	if ct == "" {
		ct = "image/png"
	}
	l.mu.Lock()
	l.watermark.Image = media.EncodeDataURI(ct, b.Data)
	l.watermark.Enabled = true
	l.mu.Unlock()
	return nil
}

func (l *Library) ClearWatermarkImage() {
	l.mu.Lock()
	l.watermark.Image = ""
	l.watermark.Enabled = false
	l.mu.Unlock()
}

// SetClip installs b as the intro or outro, releasing any previous clip, and
// enables it.
func (l *Library) SetClip(slot Slot, b *media.Blob) (Clip, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	clip, err := l.clipLocked(slot)
	if err != nil {
		return Clip{}, err
	}
	h, err := l.registry.Replace(clip.Handle, b)
	if err != nil {
		return Clip{}, err
	}
	*clip = Clip{Enabled: true, Handle: h}
	return *clip, nil
}

// RemoveClip releases the clip's URL and resets the slot.
func (l *Library) RemoveClip(slot Slot) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	clip, err := l.clipLocked(slot)
	if err != nil {
		return err
	}
	l.registry.Release(clip.Handle)
	*clip = Clip{}
	return nil
}

func (l *Library) SetClipEnabled(slot Slot, enabled bool) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	clip, err := l.clipLocked(slot)
	if err != nil {
		return err
	}
	clip.Enabled = enabled
	return nil
}

func (l *Library) Clip(slot Slot) (Clip, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	switch slot {
	case SlotIntro:
		return l.intro, nil
	case SlotOutro:
		return l.outro, nil
	}
	return Clip{}, ErrUnknownSlot
}

func (l *Library) clipLocked(slot Slot) (*Clip, error) {
	switch slot {
	case SlotIntro:
		return &l.intro, nil
	case SlotOutro:
		return &l.outro, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownSlot, slot)
}

// AddMusic registers a track named after the file without its extension.
func (l *Library) AddMusic(b *media.Blob) (MusicTrack, error) {
	h, err := l.registry.Register(b)
	if err != nil {
		return MusicTrack{}, err
	}
	track := MusicTrack{
		ID:     uuid.New().String(),
		Name:   strings.TrimSuffix(b.Name, filepath.Ext(b.Name)),
		Handle: h,
	}
	l.mu.Lock()
	l.music = append(l.music, track)
	l.mu.Unlock()
	return track, nil
}

// RemoveMusic drops the track and releases its URL.
func (l *Library) RemoveMusic(id string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	for i, t := range l.music {
		if t.ID == id {
			l.registry.Release(t.Handle)
			l.music = append(l.music[:i], l.music[i+1:]...)
			return nil
		}
	}
	return ErrTrackNotFound
}

func (l *Library) Music() []MusicTrack {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]MusicTrack(nil), l.music...)
}

func (l *Library) Track(id string) (MusicTrack, bool) {
	return l.Snapshot().Track(id)
}

func (l *Library) Snapshot() Assets {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return Assets{
		Watermark: l.watermark,
		Intro:     l.intro,
		Outro:     l.outro,
		Music:     append([]MusicTrack(nil), l.music...),
	}
}

// Close releases every handle the library owns.
func (l *Library) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.registry.Release(l.intro.Handle)
	l.registry.Release(l.outro.Handle)
	for _, t := range l.music {
		l.registry.Release(t.Handle)
	}
	l.intro, l.outro, l.music = Clip{}, Clip{}, nil
}
