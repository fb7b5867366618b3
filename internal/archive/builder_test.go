package archive

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/klauspost/compress/zip"

	"github.com/veostudio/studio-agent/internal/branding"
	"github.com/veostudio/studio-agent/internal/bundle"
	"github.com/veostudio/studio-agent/internal/media"
	"github.com/veostudio/studio-agent/internal/queue"
)

type fakeFetcher struct {
	mu    sync.Mutex
	data  map[string][]byte
	calls []string
}

func (f *fakeFetcher) Fetch(ctx context.Context, uri string) ([]byte, error) {
	f.mu.Lock()
	f.calls = append(f.calls, uri)
	f.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if d, ok := f.data[uri]; ok {
		return d, nil
	}
	return nil, errors.New("dial tcp: connection refused")
}

type blockingFetcher struct {
	started chan struct{}
}

func (f *blockingFetcher) Fetch(ctx context.Context, uri string) ([]byte, error) {
	close(f.started)
	<-ctx.Done()
	return nil, ctx.Err()
}

var created = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func mkBundle(t *testing.T, title, channel string, video bundle.VideoResource) *bundle.Bundle {
	t.Helper()
	b, err := bundle.New(bundle.Params{
		Metadata: bundle.Metadata{
			Title:       title,
			Description: "desc of " + title,
			Tags:        []string{"tag-a", "tag-b"},
			Script:      "Full script for " + title,
		},
		Video:        video,
		ChannelLabel: channel,
		CreatedAt:    created,
	})
	if err != nil {
		t.Fatalf("bundle.New() error = %v", err)
	}
	return b
}

func localVideo(content string) bundle.VideoResource {
	return bundle.VideoResource{Blob: media.NewBlob("v.mp4", "video/mp4", []byte(content))}
}

func readZip(t *testing.T, data []byte) map[string][]byte {
	t.Helper()
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("zip.NewReader() error = %v", err)
	}
	out := make(map[string][]byte)
	for _, f := range zr.File {
		rc, err := f.Open()
		if err != nil {
			t.Fatalf("open %s: %v", f.Name, err)
		}
		b, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			t.Fatalf("read %s: %v", f.Name, err)
		}
		out[f.Name] = b
	}
	return out
}

func topLevelDirs(files map[string][]byte) []string {
	seen := map[string]bool{}
	for name := range files {
		if i := strings.IndexByte(name, '/'); i >= 0 {
			seen[name[:i]] = true
		}
	}
	var dirs []string
	for d := range seen {
		dirs = append(dirs, d)
	}
	sort.Strings(dirs)
	return dirs
}

func TestBuild_NoBundles(t *testing.T) {
	b := NewBuilder(nil, 0, nil)
	if _, err := b.Build(context.Background(), nil, Options{}); !errors.Is(err, ErrNoBundles) {
		t.Errorf("Build() error = %v, want ErrNoBundles", err)
	}
}

func TestBuild_SingleIsFlat(t *testing.T) {
	bd := mkBundle(t, "Voyage Stellaire", "", localVideo("mp4-bytes"))
	a, err := NewBuilder(nil, 0, nil).Build(context.Background(), []*bundle.Bundle{bd}, Options{})
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	files := readZip(t, a.Data)
	if dirs := topLevelDirs(files); len(dirs) != 0 {
		t.Errorf("single export has directories: %v", dirs)
	}
	if string(files[VideoFile]) != "mp4-bytes" {
		t.Errorf("%s = %q", VideoFile, files[VideoFile])
	}
	if _, ok := files[MetadataFile]; !ok {
		t.Error("metadata.txt missing")
	}
	if a.Filename != "voyage_stellaire_package.zip" {
		t.Errorf("Filename = %q", a.Filename)
	}
}

func TestBuild_MultipleAreFoldered(t *testing.T) {
	var bundles []*bundle.Bundle
	for _, title := range []string{"One", "Two", "Three"} {
		bundles = append(bundles, mkBundle(t, title, "", localVideo(title)))
	}

	builder := NewBuilder(nil, 0, nil)
	builder.now = func() time.Time { return created }
	a, err := builder.Build(context.Background(), bundles, Options{})
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	files := readZip(t, a.Data)
	dirs := topLevelDirs(files)
	if len(dirs) != 3 {
		t.Fatalf("top-level dirs = %v, want 3", dirs)
	}
	for name := range files {
		if !strings.Contains(name, "/") {
			t.Errorf("root-level entry %q in multi export", name)
		}
	}
	if string(files["two/"+VideoFile]) != "Two" {
		t.Errorf("two/%s = %q", VideoFile, files["two/"+VideoFile])
	}
	if a.Filename != "studio_batch_2025-06-01.zip" {
		t.Errorf("Filename = %q", a.Filename)
	}
}

func TestBuild_CollidingTitlesKeepBoth(t *testing.T) {
	a1 := mkBundle(t, "Same", "", localVideo("first"))
	a2 := mkBundle(t, "Same", "", localVideo("second"))

	a, err := NewBuilder(nil, 0, nil).Build(context.Background(), []*bundle.Bundle{a1, a2}, Options{})
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	files := readZip(t, a.Data)
	if string(files["same/"+VideoFile]) != "first" || string(files["same_2/"+VideoFile]) != "second" {
		t.Errorf("collision lost data: dirs = %v", topLevelDirs(files))
	}
}

func TestBuild_MetadataContainsEverything(t *testing.T) {
	bd := mkBundle(t, "Voyage Stellaire", "Et Si… La Science!", localVideo("v"))
	a, err := NewBuilder(nil, 0, nil).Build(context.Background(), []*bundle.Bundle{bd}, Options{})
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	meta := string(readZip(t, a.Data)[MetadataFile])
	for _, want := range []string{bd.Metadata.Title, bd.Metadata.Description, "tag-a", "tag-b", bd.Metadata.Script} {
		if !strings.Contains(meta, want) {
			t.Errorf("metadata.txt missing %q", want)
		}
	}
}

func TestBuild_OptionalFiles(t *testing.T) {
	reg := media.NewRegistry("", nil)
	lib := branding.NewLibrary(reg)
	lib.SetClip(branding.SlotIntro, media.NewBlob("intro.mp4", "video/mp4", []byte("intro")))
	lib.SetClip(branding.SlotOutro, media.NewBlob("outro.mp4", "video/mp4", []byte("outro")))
	lib.SetClipEnabled(branding.SlotOutro, false)
	track, _ := lib.AddMusic(media.NewBlob("calm.mp3", "audio/mpeg", []byte("music")))

	bd, err := bundle.New(bundle.Params{
		Metadata: bundle.Metadata{
			Title:     "Full",
			Subtitles: "1\n00:00:00,000 --> 00:00:01,000\nHi\n",
		},
		Video:     localVideo("video"),
		Thumbnail: media.EncodeDataURI("image/png", []byte("thumb")),
		Voiceover: &bundle.Voiceover{Blob: media.NewBlob("vo.wav", "audio/wav", []byte("voice"))},
	})
	if err != nil {
		t.Fatalf("bundle.New() error = %v", err)
	}

	a, err := NewBuilder(nil, 0, nil).Build(context.Background(), []*bundle.Bundle{bd}, Options{
		Branding:     lib.Snapshot(),
		MusicTrackID: track.ID,
	})
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	files := readZip(t, a.Data)
	want := map[string]string{
		SubtitlesFile: "1\n00:00:00,000 --> 00:00:01,000\nHi\n",
		VideoFile:     "video",
		VoiceoverFile: "voice",
		ThumbnailFile: "thumb",
		IntroFile:     "intro",
		MusicFile:     "music",
	}
	for name, content := range want {
		if string(files[name]) != content {
			t.Errorf("%s = %q, want %q", name, files[name], content)
		}
	}
	if _, ok := files[OutroFile]; ok {
		t.Error("disabled outro was exported")
	}
	if _, ok := files[WatermarkFile]; ok {
		t.Error("inactive watermark was exported")
	}

	var names []string
	for _, e := range a.Entries {
		names = append(names, e.Name)
	}
	wantOrder := []string{MetadataFile, SubtitlesFile, VideoFile, VoiceoverFile, ThumbnailFile, IntroFile, MusicFile}
	if strings.Join(names, ",") != strings.Join(wantOrder, ",") {
		t.Errorf("entry order = %v, want %v", names, wantOrder)
	}
}

func TestBuild_UnknownMusicTrackSkipped(t *testing.T) {
	bd := mkBundle(t, "x", "", localVideo("v"))
	a, err := NewBuilder(nil, 0, nil).Build(context.Background(), []*bundle.Bundle{bd}, Options{MusicTrackID: "gone"})
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if _, ok := readZip(t, a.Data)[MusicFile]; ok {
		t.Error("music written for unknown track")
	}
}

func TestBuild_BadThumbnailFails(t *testing.T) {
	bd, _ := bundle.New(bundle.Params{
		Metadata:  bundle.Metadata{Title: "x"},
		Video:     localVideo("v"),
		Thumbnail: "data:image/png;base64,%%%",
	})
	if _, err := NewBuilder(nil, 0, nil).Build(context.Background(), []*bundle.Bundle{bd}, Options{}); err == nil {
		t.Fatal("Build() with undecodable thumbnail succeeded")
	}
}

func TestBuild_Deterministic(t *testing.T) {
	lib := branding.NewLibrary(media.NewRegistry("", nil))
	lib.SetWatermarkImage(media.NewBlob("logo.png", "image/png", []byte("logo")))

	bundles := []*bundle.Bundle{
		mkBundle(t, "Alpha", "Chan", localVideo("a")),
		mkBundle(t, "Beta", "Chan", localVideo("b")),
	}
	builder := NewBuilder(nil, 0, nil)
	builder.now = func() time.Time { return created }
	opts := Options{Branding: lib.Snapshot()}

	first, err := builder.Build(context.Background(), bundles, opts)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	second, err := builder.Build(context.Background(), bundles, opts)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	if len(first.Entries) != len(second.Entries) {
		t.Fatalf("entry count differs: %d vs %d", len(first.Entries), len(second.Entries))
	}
	for i := range first.Entries {
		if first.Entries[i].Name != second.Entries[i].Name {
			t.Errorf("entry %d: %q vs %q", i, first.Entries[i].Name, second.Entries[i].Name)
		}
	}
	if !bytes.Equal(first.Data, second.Data) {
		t.Error("archive bytes differ between identical builds")
	}
}

func TestBuild_Progress(t *testing.T) {
	bundles := []*bundle.Bundle{
		mkBundle(t, "One", "", localVideo("1")),
		mkBundle(t, "Two", "", localVideo("2")),
	}
	var got []Progress
	_, err := NewBuilder(nil, 0, nil).Build(context.Background(), bundles, Options{
		Progress: func(p Progress) { got = append(got, p) },
	})
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	if len(got) != 4 {
		t.Fatalf("progress reports = %d, want 4 (%v)", len(got), got)
	}
	last := got[len(got)-1]
	if last.Label != "compressing 2 projects" || last.Percent() != 100 {
		t.Errorf("last progress = %+v", last)
	}
	if got[0].Done != 0 || got[0].Total != 3 {
		t.Errorf("first progress = %+v", got[0])
	}
}

func TestBuild_Cancelled(t *testing.T) {
	f := &blockingFetcher{started: make(chan struct{})}
	bd := mkBundle(t, "Remote", "", bundle.VideoResource{URI: "https://cdn.test/v.mp4"})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-f.started
		cancel()
	}()

	a, err := NewBuilder(f, 1, nil).Build(ctx, []*bundle.Bundle{bd}, Options{})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Build() error = %v, want context.Canceled", err)
	}
	if a != nil {
		t.Error("cancelled build returned an archive")
	}
}

// Enqueue two bundles, keep only the second selected, export the selection.
func TestScenario_SelectionFilteredSingleExport(t *testing.T) {
	q := queue.New()
	first := mkBundle(t, "Le Feu Mystérieux", "Les Archives du Mystère", localVideo("feu"))
	second := mkBundle(t, "Voyage Stellaire", "Et Si… La Science!", localVideo("voyage"))
	q.Enqueue(first)
	q.Enqueue(second)
	q.ToggleSelection(first.ID)

	selected := q.SelectedBundles()
	if len(selected) != 1 {
		t.Fatalf("selected = %d, want 1", len(selected))
	}

	a, err := NewBuilder(nil, 0, nil).Build(context.Background(), selected, Options{})
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	files := readZip(t, a.Data)
	if dirs := topLevelDirs(files); len(dirs) != 0 {
		t.Fatalf("expected flat archive, got dirs %v", dirs)
	}
	meta := string(files[MetadataFile])
	if !strings.HasPrefix(meta, "CHANNEL: Et Si… La Science!\n") {
		t.Errorf("CHANNEL line wrong:\n%s", meta)
	}
	if string(files[VideoFile]) != "voyage" {
		t.Errorf("video = %q, want voyage", files[VideoFile])
	}
}

// Two bundles with an uploaded watermark logo both carry the same image.
func TestScenario_WatermarkInEveryFolder(t *testing.T) {
	lib := branding.NewLibrary(media.NewRegistry("", nil))
	logo := []byte("\x89PNG-logo-bytes")
	if err := lib.SetWatermarkImage(media.NewBlob("logo.png", "image/png", logo)); err != nil {
		t.Fatalf("SetWatermarkImage() error = %v", err)
	}

	bundles := []*bundle.Bundle{
		mkBundle(t, "Alpha", "", localVideo("a")),
		mkBundle(t, "Beta", "", localVideo("b")),
	}
	a, err := NewBuilder(nil, 0, nil).Build(context.Background(), bundles, Options{Branding: lib.Snapshot()})
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	files := readZip(t, a.Data)
	wa, wb := files["alpha/"+WatermarkFile], files["beta/"+WatermarkFile]
	if !bytes.Equal(wa, logo) || !bytes.Equal(wb, logo) {
		t.Errorf("watermark files = %q / %q, want %q in both", wa, wb, logo)
	}
}

// One of three remote fetches fails; the build still completes.
func TestScenario_RemoteFetchFailureTolerated(t *testing.T) {
	f := &fakeFetcher{data: map[string][]byte{
		"https://cdn.test/one.mp4":   []byte("video-one"),
		"https://cdn.test/three.mp4": []byte("video-three"),
	}}
	bundles := []*bundle.Bundle{
		mkBundle(t, "One", "", bundle.VideoResource{URI: "https://cdn.test/one.mp4"}),
		mkBundle(t, "Two", "", bundle.VideoResource{URI: "https://cdn.test/two.mp4"}),
		mkBundle(t, "Three", "", bundle.VideoResource{URI: "https://cdn.test/three.mp4"}),
	}

	a, err := NewBuilder(f, 2, nil).Build(context.Background(), bundles, Options{})
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	files := readZip(t, a.Data)
	if string(files["two/"+VideoPlaceholderFile]) != "https://cdn.test/two.mp4" {
		t.Errorf("placeholder = %q", files["two/"+VideoPlaceholderFile])
	}
	if _, ok := files["two/"+VideoFile]; ok {
		t.Error("failed bundle has a video file")
	}
	if string(files["one/"+VideoFile]) != "video-one" || string(files["three/"+VideoFile]) != "video-three" {
		t.Error("successful bundles are missing their videos")
	}
	if len(a.Placeholders) != 1 || a.Placeholders[0] != bundles[1].ID {
		t.Errorf("Placeholders = %v, want [%s]", a.Placeholders, bundles[1].ID)
	}
	if len(f.calls) != 3 {
		t.Errorf("fetch calls = %d, want 3", len(f.calls))
	}
}
