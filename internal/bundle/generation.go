package bundle

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/veostudio/studio-agent/internal/media"
)

// Mode names the generation mode that produced a bundle's video.
type Mode string

const (
	ModeTextToVideo       Mode = "Text to Video"
	ModeFramesToVideo     Mode = "Frames to Video"
	ModeReferencesToVideo Mode = "References to Video"
	ModeExtendVideo       Mode = "Extend Video"
)

// MaxReferenceAssets bounds the asset images of a references generation.
const MaxReferenceAssets = 3

var (
	ErrUnknownMode   = errors.New("bundle: unknown generation mode")
	ErrMissingFrame  = errors.New("bundle: frames generation requires a start frame")
	ErrMissingSource = errors.New("bundle: an input video is required to extend a video")
	ErrTooManyAssets = fmt.Errorf("bundle: at most %d reference assets", MaxReferenceAssets)
	ErrNoReferences  = errors.New("bundle: references generation requires an asset or style image")
)

// Generation is one of TextToVideo, FramesToVideo, ReferencesToVideo or
// ExtendVideo. Each variant carries only the inputs its mode uses.
type Generation interface {
	Mode() Mode
	Validate() error
	isGeneration()
}

// Common holds the settings shared by every mode.
type Common struct {
	Prompt      string `json:"prompt"`
	Model       string `json:"model,omitempty"`
	AspectRatio string `json:"aspect_ratio,omitempty"`
	Resolution  string `json:"resolution,omitempty"`
}

type TextToVideo struct {
	Common
}

func (TextToVideo) Mode() Mode      { return ModeTextToVideo }
func (TextToVideo) Validate() error { return nil }
func (TextToVideo) isGeneration()   {}

type FramesToVideo struct {
	Common
	StartFrame *media.Blob
	EndFrame   *media.Blob
	Looping    bool
}

func (FramesToVideo) Mode() Mode    { return ModeFramesToVideo }
func (FramesToVideo) isGeneration() {}

func (g FramesToVideo) Validate() error {
	if g.StartFrame.Empty() {
		return ErrMissingFrame
	}
	return nil
}

// LastFrame is the frame the clip ends on. A looping clip ends where it starts.
func (g FramesToVideo) LastFrame() *media.Blob {
	if g.Looping {
		return g.StartFrame
	}
	return g.EndFrame
}

type ReferencesToVideo struct {
	Common
	Assets []*media.Blob
	Style  *media.Blob
}

func (ReferencesToVideo) Mode() Mode    { return ModeReferencesToVideo }
func (ReferencesToVideo) isGeneration() {}

func (g ReferencesToVideo) Validate() error {
	if len(g.Assets) > MaxReferenceAssets {
		return ErrTooManyAssets
	}
	if len(g.Assets) == 0 && g.Style.Empty() {
		return ErrNoReferences
	}
	return nil
}

type ExtendVideo struct {
	Common
	SourceURI string
}

func (ExtendVideo) Mode() Mode    { return ModeExtendVideo }
func (ExtendVideo) isGeneration() {}

func (g ExtendVideo) Validate() error {
	if g.SourceURI == "" {
		return ErrMissingSource
	}
	return nil
}

// GenerationSpec is the wire form of a Generation. Images travel as data URIs.
type GenerationSpec struct {
	Mode Mode `json:"mode"`
	Common
	StartFrame string   `json:"start_frame,omitempty"`
	EndFrame   string   `json:"end_frame,omitempty"`
	Looping    bool     `json:"looping,omitempty"`
	Assets     []string `json:"assets,omitempty"`
	Style      string   `json:"style,omitempty"`
	SourceURI  string   `json:"source_uri,omitempty"`
}

// ParseGeneration decodes a GenerationSpec into its variant. An empty mode
// defaults to text to video.
func ParseGeneration(raw []byte) (Generation, error) {
	var spec GenerationSpec
	if err := json.Unmarshal(raw, &spec); err != nil {
		return nil, fmt.Errorf("decode generation: %w", err)
	}
	return spec.Build()
}

func (s GenerationSpec) Build() (Generation, error) {
	var g Generation
	switch s.Mode {
	case "", ModeTextToVideo:
		g = TextToVideo{Common: s.Common}
	case ModeFramesToVideo:
		start, err := optionalImage("start_frame", s.StartFrame)
		if err != nil {
			return nil, err
		}
		end, err := optionalImage("end_frame", s.EndFrame)
		if err != nil {
			return nil, err
		}
		g = FramesToVideo{Common: s.Common, StartFrame: start, EndFrame: end, Looping: s.Looping}
	case ModeReferencesToVideo:
		refs := ReferencesToVideo{Common: s.Common}
		for i, a := range s.Assets {
			blob, err := optionalImage(fmt.Sprintf("assets[%d]", i), a)
			if err != nil {
				return nil, err
			}
			if blob != nil {
				refs.Assets = append(refs.Assets, blob)
			}
		}
		style, err := optionalImage("style", s.Style)
		if err != nil {
			return nil, err
		}
		refs.Style = style
		g = refs
	case ModeExtendVideo:
		g = ExtendVideo{Common: s.Common, SourceURI: s.SourceURI}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownMode, s.Mode)
	}

	if err := g.Validate(); err != nil {
		return nil, err
	}
	return g, nil
}

func optionalImage(field, uri string) (*media.Blob, error) {
	if uri == "" {
		return nil, nil
	}
	data, ct, err := media.DecodeDataURI(uri)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", field, err)
	}
	if ct == "" {
		ct = "image/png"
	}
	return &media.Blob{Name: field, ContentType: ct, Data: data}, nil
}
