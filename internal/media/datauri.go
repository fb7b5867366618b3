package media

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
)

var ErrInvalidDataURI = errors.New("media: invalid data URI")

// DecodeDataURI decodes "data:<type>;base64,<payload>". A string without a
// header is treated as bare base64. The returned content type is empty when
// the header does not name one.
func DecodeDataURI(s string) ([]byte, string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, "", ErrInvalidDataURI
	}

	payload := s
	contentType := ""
	if strings.HasPrefix(s, "data:") {
		idx := strings.IndexByte(s, ',')
		if idx < 0 {
			return nil, "", ErrInvalidDataURI
		}
		header := s[len("data:"):idx]
		if !strings.HasSuffix(header, ";base64") {
			return nil, "", fmt.Errorf("%w: only base64 payloads are supported", ErrInvalidDataURI)
		}
		contentType = strings.TrimSuffix(header, ";base64")
		payload = s[idx+1:]
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		data, err = base64.RawStdEncoding.DecodeString(strings.TrimRight(payload, "="))
		if err != nil {
			return nil, "", fmt.Errorf("%w: %v", ErrInvalidDataURI, err)
		}
	}
	if len(data) == 0 {
		return nil, "", ErrEmptyBlob
	}
	return data, contentType, nil
}

// EncodeDataURI is the inverse of DecodeDataURI.
func EncodeDataURI(contentType string, data []byte) string {
	return "data:" + contentType + ";base64," + base64.StdEncoding.EncodeToString(data)
}
