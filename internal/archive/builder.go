// Package archive assembles bundles and branding assets into one ZIP
// container ready for download.
package archive

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"sync"
	"time"

	"github.com/klauspost/compress/zip"
	"golang.org/x/sync/errgroup"

	"github.com/veostudio/studio-agent/internal/branding"
	"github.com/veostudio/studio-agent/internal/bundle"
	"github.com/veostudio/studio-agent/internal/logging"
	"github.com/veostudio/studio-agent/internal/media"
)

var (
	ErrNoBundles = errors.New("archive: no bundles to export")
	ErrSerialize = errors.New("archive: serialization failed")
)

const DefaultConcurrency = 4

// Fetcher downloads a remote video.
type Fetcher interface {
	Fetch(ctx context.Context, uri string) ([]byte, error)
}

// Progress reports how far a build has come. Done counts finished bundles
// plus one for serialization, out of Total.
type Progress struct {
	Label string
	Done  int
	Total int
}

func (p Progress) Percent() int {
	if p.Total <= 0 {
		return 0
	}
	return p.Done * 100 / p.Total
}

type ProgressFunc func(Progress)

// Options carry the branding in effect for one build.
type Options struct {
	Branding     branding.Assets
	MusicTrackID string
	Progress     ProgressFunc
}

type Entry struct {
	Name string `json:"name"`
	Size int64  `json:"size"`
}

// Archive is a complete serialized export.
type Archive struct {
	Data     []byte
	Filename string
	Entries  []Entry
	// BundleIDs whose remote video could not be fetched and were written as
	// a URI placeholder.
	Placeholders []string
}

// Label is the progress label shown while building n bundles.
func Label(n int) string {
	if n == 1 {
		return "packaging resource"
	}
	return fmt.Sprintf("compressing %d projects", n)
}

type Builder struct {
	fetcher     Fetcher
	concurrency int
	logger      *slog.Logger
	now         func() time.Time
}

func NewBuilder(fetcher Fetcher, concurrency int, logger *slog.Logger) *Builder {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	if logger == nil {
		logger = logging.Discard()
	}
	return &Builder{
		fetcher:     fetcher,
		concurrency: concurrency,
		logger:      logging.WithComponent(logger, "archive"),
		now:         time.Now,
	}
}

type file struct {
	name     string
	data     []byte
	modified time.Time
}

type shared struct {
	watermark []byte
	intro     *media.Blob
	outro     *media.Blob
	music     *media.Blob
}

// Build produces one archive from bundles, in order. A single bundle is laid
// out at the archive root; several get one directory each. Remote video
// fetch failures become placeholder files; any other failure, or
// cancellation, returns an error and no archive.
func (b *Builder) Build(ctx context.Context, bundles []*bundle.Bundle, opts Options) (*Archive, error) {
	if len(bundles) == 0 {
		return nil, ErrNoBundles
	}

	label := Label(len(bundles))
	total := len(bundles) + 1
	var progressMu sync.Mutex
	done := 0
	report := func(step int) {
		if opts.Progress == nil {
			return
		}
		progressMu.Lock()
		defer progressMu.Unlock()
		done += step
		opts.Progress(Progress{Label: label, Done: done, Total: total})
	}
	report(0)

	assets, err := b.resolveShared(opts)
	if err != nil {
		return nil, err
	}

	videos, err := b.fetchVideos(ctx, bundles, func() { report(1) })
	if err != nil {
		return nil, err
	}

	folders := make([]string, len(bundles))
	if len(bundles) > 1 {
		names := make([]string, len(bundles))
		for i, bd := range bundles {
			names[i] = FolderName(bd.ChannelLabel, bd.Metadata.Title)
		}
		folders = uniqueFolders(names)
	}

	var files []file
	var placeholders []string
	for i, bd := range bundles {
		bf, placeholder, err := layout(bd, folders[i], videos[i], assets)
		if err != nil {
			return nil, err
		}
		if placeholder {
			placeholders = append(placeholders, bd.ID)
		}
		files = append(files, bf...)
	}

	data, entries, err := serialize(ctx, files)
	if err != nil {
		return nil, err
	}
	report(1)

	filename := BatchFilename(b.now())
	if len(bundles) == 1 {
		filename = PackageFilename(bundles[0].Metadata.Title)
	}

	b.logger.Info("archive built",
		"bundles", len(bundles),
		"entries", len(entries),
		"bytes", len(data),
		"placeholders", len(placeholders),
	)

	return &Archive{
		Data:         data,
		Filename:     filename,
		Entries:      entries,
		Placeholders: placeholders,
	}, nil
}

func (b *Builder) resolveShared(opts Options) (shared, error) {
	var s shared
	a := opts.Branding

	if a.Watermark.Active() {
		data, _, err := media.DecodeDataURI(a.Watermark.Image)
		if err != nil {
			return s, fmt.Errorf("decode watermark: %w", err)
		}
		s.watermark = data
	}
	if a.Intro.Active() {
		s.intro = a.Intro.Handle.Blob
	}
	if a.Outro.Active() {
		s.outro = a.Outro.Handle.Blob
	}
	if opts.MusicTrackID != "" {
		track, ok := a.Track(opts.MusicTrackID)
		if ok && track.Handle != nil && !track.Handle.Blob.Empty() {
			s.music = track.Handle.Blob
		} else {
			b.logger.Warn("selected music track not found, exporting without music", "track_id", opts.MusicTrackID)
		}
	}
	return s, nil
}

type video struct {
	data []byte
	err  error
}

// fetchVideos resolves every bundle's video. Remote fetches run concurrently;
// a failed fetch is recorded, not returned.
func (b *Builder) fetchVideos(ctx context.Context, bundles []*bundle.Bundle, onDone func()) ([]video, error) {
	out := make([]video, len(bundles))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.concurrency)

	for i, bd := range bundles {
		if !bd.Video.Remote() {
			out[i] = video{data: bd.Video.Blob.Data}
			onDone()
			continue
		}
		if b.fetcher == nil {
			out[i] = video{err: errors.New("no fetcher configured")}
			onDone()
			continue
		}

		g.Go(func() error {
			data, err := b.fetcher.Fetch(gctx, bd.Video.URI)
			if err != nil {
				if ctxErr := gctx.Err(); ctxErr != nil {
					return ctxErr
				}
				logging.WithBundleID(b.logger, bd.ID).Warn("video fetch failed, writing placeholder",
					"uri", logging.SanitizeURL(bd.Video.URI), "error", err)
				out[i] = video{err: err}
			} else {
				out[i] = video{data: data}
			}
			onDone()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// layout lists one bundle's files under dir.
func layout(bd *bundle.Bundle, dir string, v video, s shared) ([]file, bool, error) {
	var files []file
	add := func(name string, data []byte) {
		if dir != "" {
			name = path.Join(dir, name)
		}
		files = append(files, file{name: name, data: data, modified: bd.CreatedAt})
	}

	if dir != "" {
		files = append(files, file{name: dir + "/", modified: bd.CreatedAt})
	}

	add(MetadataFile, []byte(MetadataText(bd)))

	if bd.Metadata.Subtitles != "" {
		add(SubtitlesFile, []byte(bd.Metadata.Subtitles))
	}

	placeholder := false
	if v.err != nil || len(v.data) == 0 {
		add(VideoPlaceholderFile, []byte(bd.Video.URI))
		placeholder = true
	} else {
		add(VideoFile, v.data)
	}

	if bd.HasVoiceover() {
		add(VoiceoverFile, bd.Voiceover.Blob.Data)
	}

	if bd.Thumbnail != "" {
		data, _, err := media.DecodeDataURI(bd.Thumbnail)
		if err != nil {
			return nil, false, fmt.Errorf("decode thumbnail of %s: %w", bd.ID, err)
		}
		add(ThumbnailFile, data)
	}

	if s.watermark != nil {
		add(WatermarkFile, s.watermark)
	}
	if s.intro != nil {
		add(IntroFile, s.intro.Data)
	}
	if s.outro != nil {
		add(OutroFile, s.outro.Data)
	}
	if s.music != nil {
		add(MusicFile, s.music.Data)
	}

	return files, placeholder, nil
}

// serialize writes files into a ZIP container. Media that is already
// compressed is stored; text is deflated.
func serialize(ctx context.Context, files []file) ([]byte, []Entry, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	entries := make([]Entry, 0, len(files))

	for _, f := range files {
		if err := ctx.Err(); err != nil {
			zw.Close()
			return nil, nil, err
		}

		hdr := &zip.FileHeader{
			Name:     f.name,
			Method:   methodFor(f.name),
			Modified: f.modified.UTC(),
		}
		w, err := zw.CreateHeader(hdr)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: %s: %v", ErrSerialize, f.name, err)
		}
		if len(f.data) > 0 {
			if _, err := w.Write(f.data); err != nil {
				return nil, nil, fmt.Errorf("%w: %s: %v", ErrSerialize, f.name, err)
			}
		}
		entries = append(entries, Entry{Name: f.name, Size: int64(len(f.data))})
	}

	if err := zw.Close(); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrSerialize, err)
	}
	return buf.Bytes(), entries, nil
}

func methodFor(name string) uint16 {
	switch path.Ext(name) {
	case ".txt", ".srt", ".wav", "":
		return zip.Deflate
	default:
		return zip.Store
	}
}
