// Package media tracks uploaded binary resources and the revocable playback
// URLs minted for them.
package media

import (
	"errors"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
)

var (
	ErrEmptyBlob = errors.New("media: empty blob")
	ErrNotFound  = errors.New("media: resource not found")
)

// Blob is an immutable piece of binary media.
type Blob struct {
	Name        string
	ContentType string
	Data        []byte
}

// NewBlob copies data into a new Blob.
func NewBlob(name, contentType string, data []byte) *Blob {
	cp := make([]byte, len(data))
	copy(cp, data)
	return &Blob{Name: name, ContentType: contentType, Data: cp}
}

func (b *Blob) Size() int64 {
	if b == nil {
		return 0
	}
	return int64(len(b.Data))
}

func (b *Blob) Empty() bool {
	return b == nil || len(b.Data) == 0
}

// Handle is a live playback URL for a registered blob.
type Handle struct {
	ID   string
	URL  string
	Blob *Blob
}

// Stats counts registry activity since creation.
type Stats struct {
	Live       int   `json:"live"`
	Registered int64 `json:"registered"`
	Revoked    int64 `json:"revoked"`
}

// Registry is the single owner of playback URLs. Every URL handed out by
// Register stays resolvable until exactly one Release of its handle.
type Registry struct {
	mu         sync.RWMutex
	baseURL    string
	live       map[string]*Handle
	registered int64
	revoked    int64
	onRevoke   func(*Handle)
	logger     *slog.Logger
}

func NewRegistry(baseURL string, logger *slog.Logger) *Registry {
	return &Registry{
		baseURL: strings.TrimRight(baseURL, "/"),
		live:    make(map[string]*Handle),
		logger:  logger,
	}
}

// OnRevoke installs a hook called once for every revoked handle.
func (r *Registry) OnRevoke(fn func(*Handle)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onRevoke = fn
}

// Register mints a playback URL for b.
func (r *Registry) Register(b *Blob) (*Handle, error) {
	if b.Empty() {
		return nil, ErrEmptyBlob
	}

	id := uuid.New().String()
	h := &Handle{
		ID:   id,
		URL:  r.baseURL + "/media/" + id,
		Blob: b,
	}

	r.mu.Lock()
	r.live[id] = h
	r.registered++
	r.mu.Unlock()

	if r.logger != nil {
		r.logger.Debug("registered media", "handle_id", id, "name", b.Name, "size", b.Size())
	}
	return h, nil
}

// Release revokes h's URL. Releasing a nil, unknown or already released
// handle is a no-op. It reports whether a URL was revoked by this call.
func (r *Registry) Release(h *Handle) bool {
	if h == nil {
		return false
	}

	r.mu.Lock()
	if _, ok := r.live[h.ID]; !ok {
		r.mu.Unlock()
		return false
	}
	delete(r.live, h.ID)
	r.revoked++
	hook := r.onRevoke
	r.mu.Unlock()

	if hook != nil {
		hook(h)
	}
	if r.logger != nil {
		r.logger.Debug("revoked media", "handle_id", h.ID)
	}
	return true
}

// Replace releases old (which may be nil) and registers b in its place.
// b is validated first so a rejected replacement leaves old live.
func (r *Registry) Replace(old *Handle, b *Blob) (*Handle, error) {
	if b.Empty() {
		return nil, ErrEmptyBlob
	}
	r.Release(old)
	return r.Register(b)
}

// Resolve returns the blob behind a live handle id.
func (r *Registry) Resolve(id string) (*Blob, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.live[id]
	if !ok {
		return nil, ErrNotFound
	}
	return h.Blob, nil
}

// IsLive reports whether h's URL is still resolvable.
func (r *Registry) IsLive(h *Handle) bool {
	if h == nil {
		return false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.live[h.ID]
	return ok
}

// LiveURLs returns every resolvable URL, sorted.
func (r *Registry) LiveURLs() []string {
	r.mu.RLock()
	urls := make([]string, 0, len(r.live))
	for _, h := range r.live {
		urls = append(urls, h.URL)
	}
	r.mu.RUnlock()
	sort.Strings(urls)
	return urls
}

func (r *Registry) Stats() Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return Stats{Live: len(r.live), Registered: r.registered, Revoked: r.revoked}
}

// Close revokes every live URL. Used at session teardown.
func (r *Registry) Close() {
	r.mu.RLock()
	handles := make([]*Handle, 0, len(r.live))
	for _, h := range r.live {
		handles = append(handles, h)
	}
	r.mu.RUnlock()

	for _, h := range handles {
		r.Release(h)
	}
}
