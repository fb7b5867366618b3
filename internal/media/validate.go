package media

import (
	"errors"
	"path/filepath"
	"strings"
)

const MaxUploadSize = 500 * 1024 * 1024 // 500MB

var (
	ErrFileTooLarge    = errors.New("file too large - maximum 500MB allowed")
	ErrInvalidFileType = errors.New("invalid file type")
	ErrFilenameTooLong = errors.New("filename too long - maximum 255 characters")
)

// Kind groups content types by the slot they may fill.
type Kind int

const (
	KindImage Kind = iota
	KindVideo
	KindAudio
	// KindVoiceover is audio or raw speech PCM awaiting a WAV header.
	KindVoiceover
)

var allowedTypes = map[Kind]map[string]bool{
	KindImage: {
		"image/png":  true,
		"image/jpeg": true,
		"image/webp": true,
	},
	KindVideo: {
		"video/mp4":       true,
		"video/quicktime": true,
		"video/webm":      true,
	},
	KindAudio: {
		"audio/mpeg":  true,
		"audio/mp3":   true,
		"audio/wav":   true,
		"audio/wave":  true,
		"audio/x-wav": true,
		"audio/ogg":   true,
		"audio/mp4":   true,
	},
	KindVoiceover: {
		"audio/wav":   true,
		"audio/wave":  true,
		"audio/x-wav": true,
		"audio/pcm":   true,
		"audio/l16":   true,
	},
}

var extTypes = map[string]string{
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".webp": "image/webp",
	".mp4":  "video/mp4",
	".mov":  "video/quicktime",
	".webm": "video/webm",
	".mp3":  "audio/mpeg",
	".wav":  "audio/wav",
	".ogg":  "audio/ogg",
	".m4a":  "audio/mp4",
	".zip":  "application/zip",
	".txt":  "text/plain",
	".srt":  "application/x-subrip",
}

// ContentTypeFor returns contentType with parameters stripped, or a type
// guessed from the filename extension when contentType is empty or generic.
func ContentTypeFor(filename, contentType string) string {
	if i := strings.IndexByte(contentType, ';'); i >= 0 {
		contentType = contentType[:i]
	}
	contentType = strings.ToLower(strings.TrimSpace(contentType))
	if contentType != "" && contentType != "application/octet-stream" {
		return contentType
	}
	if ct, ok := extTypes[strings.ToLower(filepath.Ext(filename))]; ok {
		return ct
	}
	return "application/octet-stream"
}

// Validate checks an upload destined for a slot of the given kind.
func Validate(kind Kind, filename, contentType string, size int64) error {
	if size <= 0 {
		return ErrEmptyBlob
	}
	if size > MaxUploadSize {
		return ErrFileTooLarge
	}
	if len(filename) > 255 {
		return ErrFilenameTooLong
	}
	if !allowedTypes[kind][ContentTypeFor(filename, contentType)] {
		return ErrInvalidFileType
	}
	return nil
}
