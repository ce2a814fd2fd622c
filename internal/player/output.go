package player

import (
	"bytes"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/hajimehoshi/oto/v2"

	"github.com/matiaszanolli/auralis/core/internal/types"
)

const (
	defaultBitDepth = 2 // 16-bit = 2 bytes

	// maxBufferSize throttles Write so the output buffer never grows
	// unbounded ahead of what the device is actually consuming.
	maxBufferSize = 4 * 44100 * 2 * defaultBitDepth // ~4s at 44.1kHz stereo 16-bit
)

// Output is the audio device sink. Implementations must not block the
// player thread (spec §5): Write only ever blocks the calling goroutine
// (prebuffer/player feed loop), never the player's own state transitions.
type Output interface {
	SampleRate() int
	Channels() int
	Write(pcm types.StereoSamples) error
	Pause()
	Resume()
	Stop()
	SetVolume(v float64)
	Close() error
}

// OtoOutput is an Output backed by github.com/hajimehoshi/oto/v2. Adapted
// from the teacher's OtoOutput: same byte-buffer-plus-condition-variable
// shape for pause/resume, minus the real-time FFT analyzer (visualization
// is out of scope here).
type OtoOutput struct {
	ctx        *oto.Context
	player     oto.Player
	sampleRate int
	channels   int

	mu     sync.Mutex
	cond   *sync.Cond
	buffer *bytes.Buffer
	volume float64
	paused bool
	closed bool
}

// NewOtoOutput opens an oto playback context at sampleRate/channels.
func NewOtoOutput(sampleRate, channels int) (*OtoOutput, error) {
	ctx, ready, err := oto.NewContext(sampleRate, channels, defaultBitDepth)
	if err != nil {
		return nil, fmt.Errorf("player: failed to create oto context: %w", err)
	}
	<-ready

	o := &OtoOutput{
		ctx:        ctx,
		sampleRate: sampleRate,
		channels:   channels,
		buffer:     &bytes.Buffer{},
		volume:     1.0,
	}
	o.cond = sync.NewCond(&o.mu)
	o.player = ctx.NewPlayer(o)
	return o, nil
}

// Read implements io.Reader for oto's player to pull from.
func (o *OtoOutput) Read(p []byte) (int, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	for o.paused && !o.closed {
		o.cond.Wait()
	}
	if o.closed {
		return 0, io.EOF
	}
	if o.buffer.Len() == 0 {
		for i := range p {
			p[i] = 0
		}
		return len(p), nil
	}

	n, err := o.buffer.Read(p)
	if err != nil {
		return n, err
	}
	if o.volume < 1.0 && n > 0 {
		applyVolume(p[:n], o.volume)
	}
	return n, nil
}

func applyVolume(data []byte, vol float64) {
	for i := 0; i+1 < len(data); i += 2 {
		sample := int16(data[i]) | int16(data[i+1])<<8
		scaled := int16(float64(sample) * vol)
		data[i] = byte(scaled)
		data[i+1] = byte(scaled >> 8)
	}
}

// Write encodes stereo float32 PCM to 16-bit little-endian and appends it
// to the playback buffer, blocking (the caller's goroutine only — the
// prebuffer or feed loop, never the player's state machine) while the
// buffer is already full.
func (o *OtoOutput) Write(pcm types.StereoSamples) error {
	data := encodePCM16(pcm)
	for {
		o.mu.Lock()
		if o.buffer.Len() < maxBufferSize {
			break
		}
		o.mu.Unlock()
		time.Sleep(10 * time.Millisecond)
	}
	defer o.mu.Unlock()

	if _, err := o.buffer.Write(data); err != nil {
		return err
	}
	if o.player != nil && !o.player.IsPlaying() && !o.paused {
		o.player.Play()
	}
	return nil
}

func encodePCM16(pcm types.StereoSamples) []byte {
	out := make([]byte, len(pcm)*2)
	for i, v := range pcm {
		if v > 1 {
			v = 1
		} else if v < -1 {
			v = -1
		}
		s := int16(v * 32767)
		out[2*i] = byte(s)
		out[2*i+1] = byte(s >> 8)
	}
	return out
}

// Pause stops device playback; Read blocks until Resume or Close.
func (o *OtoOutput) Pause() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.paused = true
	if o.player != nil && o.player.IsPlaying() {
		o.player.Pause()
	}
}

// Resume wakes any blocked Read and restarts device playback.
func (o *OtoOutput) Resume() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.paused = false
	o.cond.Broadcast()
	if o.player != nil && !o.player.IsPlaying() {
		o.player.Play()
	}
}

// Stop halts playback and discards buffered audio, used on track switch
// and seek so stale samples never bleed into the next chunk.
func (o *OtoOutput) Stop() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.paused = false
	if o.player != nil {
		o.player.Pause()
	}
	o.buffer.Reset()
}

// SetVolume sets device volume in [0,1].
func (o *OtoOutput) SetVolume(v float64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if v < 0 {
		v = 0
	}
	if v > 1 {
		v = 1
	}
	o.volume = v
}

func (o *OtoOutput) SampleRate() int { return o.sampleRate }
func (o *OtoOutput) Channels() int   { return o.channels }

// Close releases the oto player and unblocks any waiting Read.
func (o *OtoOutput) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.closed = true
	o.cond.Broadcast()
	if o.player != nil {
		return o.player.Close()
	}
	return nil
}
