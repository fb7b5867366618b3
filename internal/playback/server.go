package playback

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	"github.com/veostudio/studio-agent/internal/logging"
	"github.com/veostudio/studio-agent/internal/media"
)

// Resolver looks up the blob behind a playback handle.
type Resolver interface {
	Resolve(id string) (*media.Blob, error)
}

// Server streams registry blobs and archive files with byte-range support.
type Server struct {
	resolver Resolver
	logger   *slog.Logger
}

func NewServer(resolver Resolver, logger *slog.Logger) *Server {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Server{resolver: resolver, logger: logging.WithComponent(logger, "playback")}
}

// ServeMedia writes the blob registered under id. Released or unknown handles
// get a 404.
func (s *Server) ServeMedia(w http.ResponseWriter, r *http.Request, id string) error {
	blob, err := s.resolver.Resolve(id)
	if errors.Is(err, media.ErrNotFound) {
		http.Error(w, "media not found", http.StatusNotFound)
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to resolve media: %w", err)
	}

	w.Header().Set("Cache-Control", "no-store")
	return serveContent(w, r, bytes.NewReader(blob.Data), blob.Size(), contentTypeOf(blob.ContentType, blob.Name))
}

// ServeFile writes the file at path as an attachment named downloadName.
func (s *Server) ServeFile(w http.ResponseWriter, r *http.Request, path, downloadName string) error {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			http.Error(w, "file not found", http.StatusNotFound)
			return nil
		}
		return fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	stat, err := file.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat file: %w", err)
	}

	if downloadName == "" {
		downloadName = filepath.Base(path)
	}
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": downloadName}))
	return serveContent(w, r, file, stat.Size(), contentTypeOf("", downloadName))
}

func serveContent(w http.ResponseWriter, r *http.Request, content io.ReadSeeker, size int64, contentType string) error {
	w.Header().Set("Accept-Ranges", "bytes")
	w.Header().Set("Content-Type", contentType)

	rng, err := ParseRange(r.Header.Get("Range"), size)
	switch {
	case errors.Is(err, ErrUnsatisfiable):
		w.Header().Set("Content-Range", fmt.Sprintf("bytes */%d", size))
		http.Error(w, "range not satisfiable", http.StatusRequestedRangeNotSatisfiable)
		return nil
	case errors.Is(err, ErrInvalidRange):
		rng = nil
	case err != nil:
		return err
	}

	if rng == nil {
		w.Header().Set("Content-Length", strconv.FormatInt(size, 10))
		w.WriteHeader(http.StatusOK)
		if r.Method != http.MethodHead {
			io.Copy(w, content)
		}
		return nil
	}

	if _, err := content.Seek(rng.Start, io.SeekStart); err != nil {
		return fmt.Errorf("failed to seek: %w", err)
	}
	w.Header().Set("Content-Length", strconv.FormatInt(rng.Length(), 10))
	w.Header().Set("Content-Range", rng.Header(size))
	w.WriteHeader(http.StatusPartialContent)
	if r.Method != http.MethodHead {
		io.CopyN(w, content, rng.Length())
	}
	return nil
}

func contentTypeOf(declared, name string) string {
	return media.ContentTypeFor(name, declared)
}
