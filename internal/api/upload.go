package api

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/veostudio/studio-agent/internal/media"
)

const (
	multipartMemory = 32 << 20
	// maxRequestBody leaves room for a video and a voice-over at the
	// per-file limit plus form fields.
	maxRequestBody = 2*media.MaxUploadSize + 1<<20
)

var (
	errMissingFile = errors.New("file is required")
	errBadForm     = errors.New("invalid multipart form")
)

// parseUpload bounds the body and parses a multipart form.
func parseUpload(w http.ResponseWriter, r *http.Request) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return media.ErrFileTooLarge
		}
		return errBadForm
	}
	return nil
}

// formBlob reads the named file field after validating it for kind. A
// missing field returns errMissingFile.
func formBlob(r *http.Request, field string, kind media.Kind) (*media.Blob, error) {
	if r.MultipartForm == nil || len(r.MultipartForm.File[field]) == 0 {
		return nil, errMissingFile
	}
	return readPart(r.MultipartForm.File[field][0], kind)
}

// formBlobs reads every file under field.
func formBlobs(r *http.Request, field string, kind media.Kind) ([]*media.Blob, error) {
	if r.MultipartForm == nil || len(r.MultipartForm.File[field]) == 0 {
		return nil, errMissingFile
	}
	var out []*media.Blob
	for _, fh := range r.MultipartForm.File[field] {
		b, err := readPart(fh, kind)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", fh.Filename, err)
		}
		out = append(out, b)
	}
	return out, nil
}

func readPart(fh *multipart.FileHeader, kind media.Kind) (*media.Blob, error) {
	ct := fh.Header.Get("Content-Type")
	if err := media.Validate(kind, fh.Filename, ct, fh.Size); err != nil {
		return nil, err
	}
	f, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open upload: %w", err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read upload: %w", err)
	}
	return &media.Blob{Name: fh.Filename, ContentType: media.ContentTypeFor(fh.Filename, ct), Data: data}, nil
}

func writeUploadError(w http.ResponseWriter, field string, err error) {
	switch {
	case errors.Is(err, errMissingFile):
		WriteError(w, http.StatusBadRequest, field+" file is required", "BAD_REQUEST")
		return
	case errors.Is(err, errBadForm):
		WriteError(w, http.StatusBadRequest, err.Error(), "BAD_REQUEST")
		return
	}
	writeServiceError(w, err)
}
