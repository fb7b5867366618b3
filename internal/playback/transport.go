package playback

import (
	"errors"
	"sync"
)

// MusicVolume is the fixed level background music plays at under narration.
const MusicVolume = 0.3

var ErrPlaying = errors.New("playback: tracks cannot change while playing")

// Track is one independently playing media element.
type Track interface {
	Seek(seconds float64)
	Play()
	Pause()
	SetVolume(v float64)
}

type State int

const (
	Stopped State = iota
	Playing
)

func (s State) String() string {
	if s == Playing {
		return "playing"
	}
	return "stopped"
}

// Controller drives a video, an optional voice-over and optional music as
// one transport. Play is issued sequentially in that order, so sync between
// tracks is best effort.
type Controller struct {
	mu       sync.Mutex
	video    Track
	voice    Track
	music    Track
	state    State
	onChange func(State)

	// pending holds transitions not yet delivered to onChange, in order.
	pending    []State
	delivering bool
}

func NewController() *Controller {
	return &Controller{}
}

// OnChange registers fn to run after every state transition. fn runs without
// the controller lock held and sees transitions one at a time, in the order
// they happened. A transition caused from inside fn is delivered after fn
// returns.
func (c *Controller) OnChange(fn func(State)) {
	c.mu.Lock()
	c.onChange = fn
	c.mu.Unlock()
}

// LoadVideo sets the primary track. A nil track unloads it.
func (c *Controller) LoadVideo(t Track) error {
	return c.setTrack(&c.video, t)
}

func (c *Controller) AttachVoiceover(t Track) error {
	return c.setTrack(&c.voice, t)
}

func (c *Controller) AttachMusic(t Track) error {
	return c.setTrack(&c.music, t)
}

func (c *Controller) DetachVoiceover() error {
	return c.setTrack(&c.voice, nil)
}

func (c *Controller) DetachMusic() error {
	return c.setTrack(&c.music, nil)
}

// Load replaces every track at once. Nil voice or music leaves that track
// detached.
func (c *Controller) Load(video, voice, music Track) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == Playing {
		return ErrPlaying
	}
	c.video, c.voice, c.music = video, voice, music
	return nil
}

func (c *Controller) setTrack(slot *Track, t Track) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == Playing {
		return ErrPlaying
	}
	*slot = t
	return nil
}

// Toggle flips the transport and returns the new state. Starting without a
// video loaded does nothing.
func (c *Controller) Toggle() State {
	c.mu.Lock()
	switch {
	case c.state == Playing:
		c.stopLocked()
	case c.video != nil:
		c.startAll()
		c.state = Playing
		c.pending = append(c.pending, Playing)
	}
	state := c.state
	c.mu.Unlock()

	c.Flush()
	return state
}

// Stop pauses every track if playing.
func (c *Controller) Stop() {
	c.mu.Lock()
	c.stopLocked()
	c.mu.Unlock()
	c.Flush()
}

// VideoEnded records that the primary track reached its natural end. It
// reports whether this caused a transition; repeated calls are ignored.
func (c *Controller) VideoEnded() bool {
	c.mu.Lock()
	stopped := c.stopLocked()
	c.mu.Unlock()
	c.Flush()
	return stopped
}

// Reset stops playback and unloads every track as one step. The resulting
// notification is queued for the next Flush so callers can finish their own
// bookkeeping under their own locks first.
func (c *Controller) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopLocked()
	c.video, c.voice, c.music = nil, nil, nil
}

// StopAndDetachMusic stops playback and drops the music track as one step.
// Like Reset, it leaves the notification for Flush.
func (c *Controller) StopAndDetachMusic() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopLocked()
	c.music = nil
}

// Flush delivers queued transitions to the OnChange callback. Only one
// goroutine delivers at a time; others return immediately and their
// transitions go out with the active delivery.
func (c *Controller) Flush() {
	c.mu.Lock()
	if c.delivering {
		c.mu.Unlock()
		return
	}
	c.delivering = true
	for len(c.pending) > 0 {
		state := c.pending[0]
		c.pending = c.pending[1:]
		fn := c.onChange
		c.mu.Unlock()
		if fn != nil {
			fn(state)
		}
		c.mu.Lock()
	}
	c.delivering = false
	c.mu.Unlock()
}

func (c *Controller) stopLocked() bool {
	if c.state != Playing {
		return false
	}
	c.pauseAll()
	c.state = Stopped
	c.pending = append(c.pending, Stopped)
	return true
}

func (c *Controller) startAll() {
	for _, t := range c.tracks() {
		t.Seek(0)
	}
	c.video.Play()
	if c.voice != nil {
		c.voice.Play()
	}
	if c.music != nil {
		c.music.SetVolume(MusicVolume)
		c.music.Play()
	}
}

func (c *Controller) pauseAll() {
	for _, t := range c.tracks() {
		t.Pause()
	}
}

func (c *Controller) tracks() []Track {
	out := make([]Track, 0, 3)
	for _, t := range []Track{c.video, c.voice, c.music} {
		if t != nil {
			out = append(out, t)
		}
	}
	return out
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Controller) Playing() bool {
	return c.State() == Playing
}

func (c *Controller) HasVideo() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.video != nil
}
