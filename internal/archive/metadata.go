package archive

import (
	"strconv"
	"strings"

	"github.com/veostudio/studio-agent/internal/bundle"
)

const notAvailable = "N/A"

// MetadataText renders the metadata.txt body for b.
func MetadataText(b *bundle.Bundle) string {
	m := b.Metadata

	episode := notAvailable
	if m.EpisodeNumber > 0 {
		episode = strconv.Itoa(m.EpisodeNumber)
	}

	var sb strings.Builder
	line := func(key, value string) {
		sb.WriteString(key)
		sb.WriteString(": ")
		sb.WriteString(value)
		sb.WriteByte('\n')
	}
	line("CHANNEL", orNA(b.ChannelLabel))
	line("TITLE", m.Title)
	line("DESCRIPTION", m.Description)
	line("TAGS", strings.Join(m.Tags, ", "))
	line("VISUAL PROMPT", orNA(m.VisualPrompt))
	line("EPISODE", episode)
	line("COMMUNITY POST", orNA(m.CommunityPost))
	sb.WriteString("\nSCRIPT:\n")
	sb.WriteString(m.Script)
	sb.WriteByte('\n')
	return sb.String()
}

func orNA(s string) string {
	if strings.TrimSpace(s) == "" {
		return notAvailable
	}
	return s
}
