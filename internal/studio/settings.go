package studio

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/veostudio/studio-agent/internal/branding"
)

// SettingsKey is the config row holding the settings document.
const SettingsKey = "studio_settings_v1"

var (
	ErrDuplicateChannel = errors.New("studio: duplicate channel id")
	ErrInvalidChannel   = errors.New("studio: channel requires an id and a name")
	ErrInvalidTemplate  = errors.New("studio: invalid template")
)

type Channel struct {
	ID        string  `json:"id"`
	Handle    string  `json:"handle,omitempty"`
	Name      string  `json:"name"`
	Theme     string  `json:"theme"`
	Color     string  `json:"color,omitempty"`
	Connected bool    `json:"connected"`
	RPM       float64 `json:"rpm,omitempty"`
	AvgViews  int64   `json:"avg_views,omitempty"`
}

type Template struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	ChannelID   string `json:"channel_id"`
	Niche       string `json:"niche"`
	Format      string `json:"format"`
	Language    string `json:"language"`
	IsSeries    bool   `json:"is_series"`
	VisualStyle string `json:"visual_style,omitempty"`
}

// Settings is the persisted part of the session. Intro, outro and music are
// in-memory handles and never stored.
type Settings struct {
	Channels  []Channel          `json:"channels"`
	Templates []Template         `json:"templates"`
	Watermark branding.Watermark `json:"watermark"`
}

func DefaultSettings() Settings {
	return Settings{
		Channels: []Channel{
			{
				ID:       "odyssee",
				Name:     "L’Odyssée des Premiers Hommes",
				Theme:    "Préhistoire, évolution humaine, vie quotidienne des premiers hommes, archéologie.",
				Color:    "text-amber-500",
				RPM:      0.90,
				AvgViews: 15000,
			},
			{
				ID:       "archives",
				Name:     "Les Archives du Mystère",
				Theme:    "Mystères historiques, énigmes, civilisations perdues, secrets non résolus.",
				Color:    "text-purple-500",
				RPM:      0.75,
				AvgViews: 25000,
			},
			{
				ID:       "science",
				Name:     "Et Si… La Science!",
				Theme:    "Scénarios 'Et si', expériences de pensée, vulgarisation scientifique, futurisme.",
				Color:    "text-cyan-500",
				RPM:      1.50,
				AvgViews: 12000,
			},
		},
		Templates: []Template{
			{
				ID:          "tpl_1",
				Name:        "Série Documentaire Historique",
				Description: "Format chronologique pour L'Odyssée. Parfait pour raconter l'évolution étape par étape.",
				ChannelID:   "odyssee",
				Niche:       "L'évolution de l'homme",
				Format:      "long-form",
				Language:    "fr",
				IsSeries:    true,
			},
			{
				ID:          "tpl_2",
				Name:        "Short Mystère Rapide",
				Description: "Format court et percutant pour les énigmes non résolues.",
				ChannelID:   "archives",
				Niche:       "Objets anachroniques",
				Format:      "shorts",
				Language:    "fr",
			},
			{
				ID:          "tpl_3",
				Name:        "Concept Futuriste",
				Description: "Exploration d'hypothèses scientifiques audacieuses.",
				ChannelID:   "science",
				Niche:       "Colonisation spatiale",
				Format:      "long-form",
				Language:    "fr",
			},
		},
		Watermark: branding.DefaultWatermark(),
	}
}

func (s Settings) Validate() error {
	seen := make(map[string]bool, len(s.Channels))
	for _, c := range s.Channels {
		if c.ID == "" || c.Name == "" {
			return ErrInvalidChannel
		}
		if seen[c.ID] {
			return fmt.Errorf("%w: %s", ErrDuplicateChannel, c.ID)
		}
		seen[c.ID] = true
	}
	for _, t := range s.Templates {
		if t.ID == "" || t.Name == "" {
			return fmt.Errorf("%w: id and name are required", ErrInvalidTemplate)
		}
		if t.Format != "shorts" && t.Format != "long-form" {
			return fmt.Errorf("%w: format must be shorts or long-form", ErrInvalidTemplate)
		}
		if t.Language != "en" && t.Language != "fr" {
			return fmt.Errorf("%w: language must be en or fr", ErrInvalidTemplate)
		}
	}
	return s.Watermark.Validate()
}

// ChannelByName finds the channel a bundle label refers to.
func (s Settings) ChannelByName(name string) (Channel, bool) {
	for _, c := range s.Channels {
		if c.Name == name {
			return c, true
		}
	}
	return Channel{}, false
}

// ConfigStore is the key/value table settings live in.
type ConfigStore interface {
	GetConfig(ctx context.Context, key string) (string, error)
	SetConfig(ctx context.Context, key, value string) error
}

// loadSettings returns the stored document, or the defaults when none is
// stored. Missing sections fall back to their defaults individually.
func loadSettings(ctx context.Context, store ConfigStore) (Settings, error) {
	raw, err := store.GetConfig(ctx, SettingsKey)
	if err != nil {
		return Settings{}, fmt.Errorf("failed to read settings: %w", err)
	}
	def := DefaultSettings()
	if raw == "" {
		return def, nil
	}

	var stored struct {
		Channels  []Channel           `json:"channels"`
		Templates []Template          `json:"templates"`
		Watermark *branding.Watermark `json:"watermark"`
	}
	if err := json.Unmarshal([]byte(raw), &stored); err != nil {
		return Settings{}, fmt.Errorf("failed to decode settings: %w", err)
	}
	if stored.Channels != nil {
		def.Channels = stored.Channels
	}
	if stored.Templates != nil {
		def.Templates = stored.Templates
	}
	if stored.Watermark != nil {
		def.Watermark = *stored.Watermark
	}
	return def, nil
}

func saveSettings(ctx context.Context, store ConfigStore, s Settings) error {
	raw, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to encode settings: %w", err)
	}
	return store.SetConfig(ctx, SettingsKey, string(raw))
}
