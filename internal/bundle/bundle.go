// Package bundle defines the exportable unit produced by one generation session.
package bundle

import (
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/veostudio/studio-agent/internal/media"
)

var (
	ErrMissingTitle   = errors.New("bundle: metadata title is required")
	ErrMissingVideo   = errors.New("bundle: a video blob or URI is required")
	ErrInvalidEpisode = errors.New("bundle: episode number must be positive")
)

// Metadata is the publishing plan for one video.
type Metadata struct {
	Title         string   `json:"title"`
	Description   string   `json:"description"`
	Tags          []string `json:"tags"`
	Script        string   `json:"script"`
	Subtitles     string   `json:"subtitles,omitempty"`
	ThumbnailIdea string   `json:"thumbnail_idea"`
	VisualPrompt  string   `json:"visual_prompt,omitempty"`
	EpisodeNumber int      `json:"episode_number,omitempty"`
	CommunityPost string   `json:"community_post,omitempty"`
}

var stageDirections = regexp.MustCompile(`\[.*?\]|\(.*?\)`)

// NarrationText is the script with bracketed and parenthesized stage
// directions removed, ready for speech synthesis.
func (m Metadata) NarrationText() string {
	return strings.TrimSpace(stageDirections.ReplaceAllString(m.Script, ""))
}

func (m Metadata) clone() Metadata {
	out := m
	if m.Tags != nil {
		out.Tags = append([]string(nil), m.Tags...)
	}
	return out
}

// VideoResource is either an already fetched blob or a remote URI fetched at
// export time.
type VideoResource struct {
	Blob *media.Blob
	URI  string
}

// Remote reports whether the video must be fetched before export.
func (v VideoResource) Remote() bool {
	return v.Blob.Empty() && v.URI != ""
}

func (v VideoResource) resolved() bool {
	return !v.Blob.Empty() || v.URI != ""
}

// Voiceover is narration audio plus its playback handle.
type Voiceover struct {
	Blob   *media.Blob
	Handle *media.Handle
}

// Bundle is immutable after New.
type Bundle struct {
	ID           string
	Metadata     Metadata
	Video        VideoResource
	VideoHandle  *media.Handle
	Thumbnail    string
	Voiceover    *Voiceover
	ChannelLabel string
	Generation   Generation
	CreatedAt    time.Time
}

// Params are the inputs to New. Nothing in Params is retained by reference
// except blobs and handles, which are immutable.
type Params struct {
	Metadata     Metadata
	Video        VideoResource
	VideoHandle  *media.Handle
	Thumbnail    string
	Voiceover    *Voiceover
	ChannelLabel string
	Generation   Generation
	CreatedAt    time.Time
}

// New freezes p into a bundle with a fresh id.
func New(p Params) (*Bundle, error) {
	if strings.TrimSpace(p.Metadata.Title) == "" {
		return nil, ErrMissingTitle
	}
	if !p.Video.resolved() {
		return nil, ErrMissingVideo
	}
	if p.Metadata.EpisodeNumber < 0 {
		return nil, ErrInvalidEpisode
	}
	if p.Generation != nil {
		if err := p.Generation.Validate(); err != nil {
			return nil, err
		}
	}

	created := p.CreatedAt
	if created.IsZero() {
		created = time.Now().UTC()
	}

	b := &Bundle{
		ID:           uuid.New().String(),
		Metadata:     p.Metadata.clone(),
		Video:        p.Video,
		VideoHandle:  p.VideoHandle,
		Thumbnail:    p.Thumbnail,
		ChannelLabel: strings.TrimSpace(p.ChannelLabel),
		Generation:   p.Generation,
		CreatedAt:    created,
	}
	if p.Voiceover != nil && (!p.Voiceover.Blob.Empty() || p.Voiceover.Handle != nil) {
		vo := *p.Voiceover
		b.Voiceover = &vo
	}
	return b, nil
}

// Handles returns every playback handle the bundle owns.
func (b *Bundle) Handles() []*media.Handle {
	var hs []*media.Handle
	if b.VideoHandle != nil {
		hs = append(hs, b.VideoHandle)
	}
	if b.Voiceover != nil && b.Voiceover.Handle != nil {
		hs = append(hs, b.Voiceover.Handle)
	}
	return hs
}

// HasVoiceover reports whether the bundle carries narration audio.
func (b *Bundle) HasVoiceover() bool {
	return b.Voiceover != nil && !b.Voiceover.Blob.Empty()
}
