package archive

import (
	"fmt"
	"strings"
	"time"
	"unicode"
	"unicode/utf16"
)

const (
	channelPrefixLen = 15
	slugLen          = 30
)

// Entry names inside a bundle directory. Numeric prefixes make a plain
// directory listing follow playback order.
const (
	MetadataFile         = "metadata.txt"
	SubtitlesFile        = "subtitles.srt"
	IntroFile            = "00_intro.mp4"
	VideoFile            = "01_main_video.mp4"
	VideoPlaceholderFile = "video_url.txt"
	VoiceoverFile        = "02_voiceover.wav"
	MusicFile            = "03_background_music.mp3"
	OutroFile            = "99_outro.mp4"
	ThumbnailFile        = "thumbnail.png"
	WatermarkFile        = "asset_watermark.png"
)

// SanitizeName drops control characters, replaces anything outside letters,
// digits and " -_.,()" with '_', trims and truncates to maxLen runes.
func SanitizeName(s string, maxLen int) string {
	var b strings.Builder
	for _, r := range s {
		if unicode.IsControl(r) {
			continue
		}
		if isAllowedNameRune(r) {
			b.WriteRune(r)
		} else {
			b.WriteRune('_')
		}
	}

	cleaned := strings.TrimSpace(b.String())
	if maxLen > 0 {
		runes := []rune(cleaned)
		if len(runes) > maxLen {
			cleaned = strings.TrimSpace(string(runes[:maxLen]))
		}
	}
	return cleaned
}

func isAllowedNameRune(r rune) bool {
	if unicode.IsLetter(r) || unicode.IsDigit(r) {
		return true
	}
	switch r {
	case ' ', '-', '_', '.', ',', '(', ')':
		return true
	default:
		return false
	}
}

// Slug replaces every character outside ASCII [A-Za-z0-9] with '_' and
// lowercases the rest. Characters outside the Basic Multilingual Plane count
// as two, matching UTF-16 string lengths in browser clients. maxLen <= 0 means
// no truncation.
func Slug(s string, maxLen int) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'A' && r <= 'Z':
			b.WriteRune(r + ('a' - 'A'))
		case (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9'):
			b.WriteRune(r)
		default:
			b.WriteString(strings.Repeat("_", max(utf16.RuneLen(r), 1)))
		}
		if maxLen > 0 && b.Len() >= maxLen {
			break
		}
	}
	out := b.String()
	if maxLen > 0 && len(out) > maxLen {
		out = out[:maxLen]
	}
	return out
}

// FolderName derives a bundle's directory from its channel label and title.
func FolderName(channel, title string) string {
	slug := Slug(title, slugLen)
	prefix := SanitizeName(truncateRunes(channel, channelPrefixLen), 0)
	if prefix == "" {
		return slug
	}
	return prefix + "_" + slug
}

// uniqueFolders names each bundle directory, suffixing _2, _3... onto
// repeated names in input order.
func uniqueFolders(names []string) []string {
	taken := make(map[string]bool, len(names))
	out := make([]string, len(names))
	for i, name := range names {
		candidate := name
		for n := 2; taken[candidate]; n++ {
			candidate = fmt.Sprintf("%s_%d", name, n)
		}
		taken[candidate] = true
		out[i] = candidate
	}
	return out
}

// PackageFilename is the download name of a single-bundle archive.
func PackageFilename(title string) string {
	return Slug(title, 0) + "_package.zip"
}

// BatchFilename is the download name of a multi-bundle archive.
func BatchFilename(t time.Time) string {
	return "studio_batch_" + t.UTC().Format("2006-01-02") + ".zip"
}

func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) > n {
		return string(runes[:n])
	}
	return s
}
