package branding

import (
	"errors"
	"testing"

	"github.com/veostudio/studio-agent/internal/media"
)

func blob(name string) *media.Blob {
	return media.NewBlob(name, "", []byte("bytes-"+name))
}

func TestWatermark_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Watermark)
		wantErr error
	}{
		{"defaults", func(*Watermark) {}, nil},
		{"min bounds", func(w *Watermark) { w.Opacity, w.Scale = 0.1, 0.1 }, nil},
		{"max bounds", func(w *Watermark) { w.Opacity, w.Scale = 1.0, 0.5 }, nil},
		{"bad position", func(w *Watermark) { w.Position = "center" }, ErrInvalidPosition},
		{"opacity low", func(w *Watermark) { w.Opacity = 0.05 }, ErrOpacityRange},
		{"opacity high", func(w *Watermark) { w.Opacity = 1.2 }, ErrOpacityRange},
		{"scale high", func(w *Watermark) { w.Scale = 0.6 }, ErrScaleRange},
		{"png image", func(w *Watermark) { w.Image = "data:image/png;base64,bG9nbw==" }, nil},
		{"undecodable image", func(w *Watermark) { w.Image = "data:image/png;base64,@@@not-base64@@@" }, ErrInvalidImage},
		{"non-image payload", func(w *Watermark) { w.Image = "data:audio/mpeg;base64,bG9nbw==" }, ErrInvalidImage},
		{"bare base64", func(w *Watermark) { w.Image = "bG9nbw==" }, ErrInvalidImage},
		{"url-encoded payload", func(w *Watermark) { w.Image = "data:image/png,logo" }, ErrInvalidImage},
		{"empty payload", func(w *Watermark) { w.Image = "data:image/png;base64," }, ErrInvalidImage},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := DefaultWatermark()
			tt.mutate(&w)
			if err := w.Validate(); !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestWatermarkImage(t *testing.T) {
	l := NewLibrary(media.NewRegistry("", nil))
	if l.Watermark().Active() {
		t.Fatal("default watermark is active")
	}
	if err := l.SetWatermarkImage(media.NewBlob("logo.png", "image/png", []byte("logo"))); err != nil {
		t.Fatalf("SetWatermarkImage() error = %v", err)
	}
	w := l.Watermark()
	if !w.Active() || w.Image != "data:image/png;base64,bG9nbw==" {
		t.Errorf("watermark = %+v", w)
	}
	l.ClearWatermarkImage()
	if l.Watermark().Active() {
		t.Error("watermark active after clear")
	}
}

func TestSetClip_ReplacesAndReleases(t *testing.T) {
	reg := media.NewRegistry("", nil)
	l := NewLibrary(reg)

	first, err := l.SetClip(SlotIntro, blob("intro1.mp4"))
	if err != nil {
		t.Fatalf("SetClip() error = %v", err)
	}
	if !first.Enabled || !first.Active() {
		t.Errorf("uploaded clip not enabled: %+v", first)
	}

	second, err := l.SetClip(SlotIntro, blob("intro2.mp4"))
	if err != nil {
		t.Fatalf("SetClip() error = %v", err)
	}
	if reg.IsLive(first.Handle) {
		t.Error("replaced intro URL still live")
	}
	if !reg.IsLive(second.Handle) {
		t.Error("new intro URL not live")
	}

	if err := l.RemoveClip(SlotIntro); err != nil {
		t.Fatalf("RemoveClip() error = %v", err)
	}
	if reg.IsLive(second.Handle) {
		t.Error("removed intro URL still live")
	}
	c, _ := l.Clip(SlotIntro)
	if c.Enabled || c.Handle != nil {
		t.Errorf("slot not reset: %+v", c)
	}
	if reg.Stats().Live != 0 {
		t.Errorf("orphaned URLs: %v", reg.LiveURLs())
	}
}

func TestSetClip_UnknownSlot(t *testing.T) {
	l := NewLibrary(media.NewRegistry("", nil))
	if _, err := l.SetClip("middle", blob("x")); !errors.Is(err, ErrUnknownSlot) {
		t.Errorf("SetClip() error = %v, want ErrUnknownSlot", err)
	}
	if _, err := ParseSlot("outro"); err != nil {
		t.Errorf("ParseSlot(outro) error = %v", err)
	}
}

func TestMusic(t *testing.T) {
	reg := media.NewRegistry("", nil)
	l := NewLibrary(reg)

	a, err := l.AddMusic(blob("calm.theme.mp3"))
	if err != nil {
		t.Fatalf("AddMusic() error = %v", err)
	}
	b, _ := l.AddMusic(blob("epic.mp3"))

	if a.Name != "calm.theme" {
		t.Errorf("Name = %q, want calm.theme", a.Name)
	}
	if len(l.Music()) != 2 {
		t.Fatalf("Music() len = %d, want 2", len(l.Music()))
	}

	if err := l.RemoveMusic(a.ID); err != nil {
		t.Fatalf("RemoveMusic() error = %v", err)
	}
	if reg.IsLive(a.Handle) {
		t.Error("removed track URL still live")
	}
	if err := l.RemoveMusic(a.ID); !errors.Is(err, ErrTrackNotFound) {
		t.Errorf("second RemoveMusic() error = %v, want ErrTrackNotFound", err)
	}
	if _, ok := l.Track(b.ID); !ok {
		t.Error("remaining track not found")
	}
}

func TestSnapshot_Isolated(t *testing.T) {
	l := NewLibrary(media.NewRegistry("", nil))
	tr, _ := l.AddMusic(blob("a.mp3"))
	snap := l.Snapshot()

	l.RemoveMusic(tr.ID)
	if _, ok := snap.Track(tr.ID); !ok {
		t.Error("snapshot lost a track removed after it was taken")
	}
	if got, _ := snap.Track(tr.ID); string(got.Handle.Blob.Data) != "bytes-a.mp3" {
		t.Error("snapshot blob data changed")
	}
}

func TestClose(t *testing.T) {
	reg := media.NewRegistry("", nil)
	l := NewLibrary(reg)
	l.SetClip(SlotIntro, blob("i"))
	l.SetClip(SlotOutro, blob("o"))
	l.AddMusic(blob("m"))

	l.Close()
	if reg.Stats().Live != 0 {
		t.Errorf("Live = %d after Close", reg.Stats().Live)
	}
}
