package playback

// Track roles carried on preview commands.
const (
	RoleVideo     = "video"
	RoleVoiceover = "voiceover"
	RoleMusic     = "music"
)

// Preview command actions.
const (
	ActionLoad   = "load"
	ActionUnload = "unload"
	ActionSeek   = "seek"
	ActionPlay   = "play"
	ActionPause  = "pause"
	ActionVolume = "volume"
)

// Command is one instruction to the media element playing a track in a
// preview client. Value is the position in seconds for seek and the level
// for volume.
type Command struct {
	Track  string  `json:"track"`
	Action string  `json:"action"`
	URL    string  `json:"url,omitempty"`
	Value  float64 `json:"value"`
}

// CommandSink delivers commands to preview clients.
type CommandSink interface {
	Send(cmd Command)
}

// RemoteTrack is a Track played by a preview client.
type RemoteTrack struct {
	role string
	url  string
	sink CommandSink
}

func NewRemoteTrack(role, url string, sink CommandSink) *RemoteTrack {
	return &RemoteTrack{role: role, url: url, sink: sink}
}

func (t *RemoteTrack) Role() string { return t.role }
func (t *RemoteTrack) URL() string  { return t.url }

// Load tells clients which URL backs the track.
func (t *RemoteTrack) Load() {
	t.sink.Send(Command{Track: t.role, Action: ActionLoad, URL: t.url})
}

func (t *RemoteTrack) Unload() {
	t.sink.Send(Command{Track: t.role, Action: ActionUnload})
}

func (t *RemoteTrack) Seek(seconds float64) {
	t.sink.Send(Command{Track: t.role, Action: ActionSeek, Value: seconds})
}

func (t *RemoteTrack) Play() {
	t.sink.Send(Command{Track: t.role, Action: ActionPlay})
}

func (t *RemoteTrack) Pause() {
	t.sink.Send(Command{Track: t.role, Action: ActionPause})
}

func (t *RemoteTrack) SetVolume(v float64) {
	t.sink.Send(Command{Track: t.role, Action: ActionVolume, Value: v})
}
