// Package hwdevice implements the "hw" reference backend: a real output or
// input stream driven by github.com/gordonklaus/portaudio. The PortAudio
// callback runs on its own audio thread and advances an internal ring;
// Wait parks on a channel signaled from that callback rather than an OS
// poll descriptor, since PortAudio does not expose one uniformly across
// platforms. This is a deliberate, documented substitution for a raw
// poll-fd-based wait, while still satisfying Wait's external behavior.
package hwdevice

import (
	"context"
	"sync"
	"time"

	"github.com/gordonklaus/portaudio"

	"github.com/doismellburning/pcmcore/pcm"
)

func init() {
	pcm.Register("hw", open)
}

// backend bridges the core's FastOps/SlowOps onto a PortAudio stream. The
// ring is a simple byte slice guarded by mu; the callback is the single
// consumer (playback) or producer (capture) of that ring, and TransferI is
// the single producer (playback) or consumer (capture) from the app side —
// matching the single-producer/single-consumer counter discipline the
// core's ring bookkeeping assumes.
type backend struct {
	mu sync.Mutex

	stream   pcm.Stream
	device   string
	cfg      pcm.Config
	state    pcm.State
	paStream *portaudio.Stream

	ring     []byte
	readPos  int // next byte the consumer takes
	writePos int // next byte the producer fills
	filled   int // bytes currently buffered

	ready chan struct{}
}

func open(stream pcm.Stream, d *pcm.Descriptor, slave *pcm.Endpoint) (*pcm.Endpoint, error) {
	device := "default"
	if d != nil {
		if dev, ok := d.Options["device"]; ok && dev != "" {
			device = dev
		}
	}
	if err := portaudio.Initialize(); err != nil {
		return nil, err
	}
	b := &backend{stream: stream, device: device, state: pcm.StateOpen, ready: make(chan struct{}, 1)}
	name := device
	if d != nil && d.Name != "" {
		name = d.Name
	}
	return pcm.Open(name, stream, b, b), nil
}

func (b *backend) Info() pcm.Info { return pcm.Info{Name: b.device, Type: "hw"} }

func (b *backend) HwRefine(space pcm.Space) (pcm.Space, error) {
	// PortAudio negotiates sample rate and channel count with the host API
	// directly; this reference backend does not further narrow the space
	// beyond what the core already resolves.
	return space, nil
}

func (b *backend) HwParams(cfg pcm.Config) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.cfg = cfg
	b.ring = make([]byte, cfg.BufferSize*cfg.Channels*pcm.Width(cfg.Format)/8)
	b.readPos, b.writePos, b.filled = 0, 0, 0
	b.state = pcm.StatePrepared
	return nil
}

// MmapAreas exposes the ring as one interleaved Area per channel, letting
// the core's silence-fill policy overwrite stale frames in the ring
// directly rather than through TransferI. The ring is sized to exactly
// cfg.BufferSize frames, matching the contiguous-buffer assumption the
// core's ring-wraparound handling relies on.
func (b *backend) MmapAreas() []pcm.Area {
	b.mu.Lock()
	defer b.mu.Unlock()
	return pcm.InterleavedAreas(b.ring, b.cfg.Channels, b.cfg.Format)
}

func (b *backend) HwFree() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.paStream != nil {
		_ = b.paStream.Close()
		b.paStream = nil
	}
	b.state = pcm.StateOpen
	return nil
}

func (b *backend) Close() error {
	return portaudio.Terminate()
}

func (b *backend) SetNonBlock(nonblock bool) error { return nil }

// PollDescriptors returns a sentinel -1 file descriptor: PortAudio does not
// export a portable OS handle to poll, so callers must use Wait instead.
func (b *backend) PollDescriptors() ([]pcm.PollFD, error) {
	return []pcm.PollFD{{FD: -1, Events: 1}}, nil
}

func (b *backend) SupportsPause() bool { return false }

func (b *backend) State() pcm.State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

func (b *backend) AvailUpdate() (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	frameBytes := b.cfg.Channels * pcm.Width(b.cfg.Format) / 8
	if frameBytes == 0 {
		return 0, nil
	}
	if b.stream == pcm.StreamPlayback {
		return (len(b.ring) - b.filled) / frameBytes, nil
	}
	return b.filled / frameBytes, nil
}

func (b *backend) Delay() (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	frameBytes := b.cfg.Channels * pcm.Width(b.cfg.Format) / 8
	if frameBytes == 0 {
		return 0, nil
	}
	return b.filled / frameBytes, nil
}

func (b *backend) Rewind(frames int) (int, error) { return 0, nil }

func (b *backend) MmapForward(frames int) error { return nil }

func (b *backend) Start() error {
	b.mu.Lock()
	cfg := b.cfg
	b.mu.Unlock()

	var s *portaudio.Stream
	var err error
	if b.stream == pcm.StreamPlayback {
		s, err = portaudio.OpenDefaultStream(0, cfg.Channels, float64(cfg.Rate), cfg.PeriodSize, b.playbackCallback)
	} else {
		s, err = portaudio.OpenDefaultStream(cfg.Channels, 0, float64(cfg.Rate), cfg.PeriodSize, b.captureCallback)
	}
	if err != nil {
		return err
	}
	if err := s.Start(); err != nil {
		return err
	}

	b.mu.Lock()
	b.paStream = s
	b.state = pcm.StateRunning
	b.mu.Unlock()
	return nil
}

// playbackCallback drains up to len(out) bytes' worth of frames from the
// ring into out, zero-filling any shortfall; it is PortAudio's realtime
// audio thread and must not block on b.mu for long.
func (b *backend) playbackCallback(out []int16) {
	b.mu.Lock()
	want := len(out) * 2
	n := b.filled
	if n > want {
		n = want
	}
	pending := make([]byte, want) // bytes past n stay zero: the shortfall
	copied := 0
	for copied < n {
		chunk := len(b.ring) - b.readPos
		if chunk > n-copied {
			chunk = n - copied
		}
		copy(pending[copied:copied+chunk], b.ring[b.readPos:b.readPos+chunk])
		b.readPos = (b.readPos + chunk) % len(b.ring)
		copied += chunk
	}
	b.filled -= copied
	b.mu.Unlock()
	for i := range out {
		out[i] = int16(uint16(pending[2*i]) | uint16(pending[2*i+1])<<8)
	}
	select {
	case b.ready <- struct{}{}:
	default:
	}
}

// captureCallback fills the ring from PortAudio's input buffer, dropping
// the oldest frames on overflow rather than blocking the audio thread.
func (b *backend) captureCallback(in []int16) {
	b.mu.Lock()
	src := byteSliceOfInt16(in)
	if len(src) > len(b.ring) {
		src = src[len(src)-len(b.ring):]
	}
	n := len(src)
	for i := 0; i < n; i++ {
		b.ring[b.writePos] = src[i]
		b.writePos = (b.writePos + 1) % len(b.ring)
	}
	if b.filled+n > len(b.ring) {
		b.filled = len(b.ring)
		b.readPos = b.writePos // the oldest surviving byte follows the newest
	} else {
		b.filled += n
	}
	b.mu.Unlock()
	select {
	case b.ready <- struct{}{}:
	default:
	}
}

// byteSliceOfInt16 returns a little-endian byte copy of an int16 buffer, for
// the ring's byte-oriented bookkeeping. The reference backend only
// negotiates S16 formats in practice, matching the preference order in
// hwparams.go.
func byteSliceOfInt16(buf []int16) []byte {
	out := make([]byte, len(buf)*2)
	for i, v := range buf {
		out[2*i] = byte(v)
		out[2*i+1] = byte(v >> 8)
	}
	return out
}

func (b *backend) Drop() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.paStream != nil {
		_ = b.paStream.Stop()
	}
	b.readPos, b.writePos, b.filled = 0, 0, 0
	b.state = pcm.StateSetup
	return nil
}

func (b *backend) Pause(enable bool) error {
	return &pcm.Error{Op: "pause", Kind: pcm.KindNotSupported}
}

func (b *backend) Prepare() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.readPos, b.writePos, b.filled = 0, 0, 0
	b.state = pcm.StatePrepared
	return nil
}

func (b *backend) Reset() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.readPos, b.writePos, b.filled = 0, 0, 0
	return nil
}

// TransferI moves frames between the app buffer and the ring the callback
// drains/fills. For playback it is the producer; for capture it is the
// consumer.
func (b *backend) TransferI(buf []byte, offset, frames int) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	frameBytes := b.cfg.Channels * pcm.Width(b.cfg.Format) / 8
	want := frames * frameBytes
	start := offset * frameBytes

	if b.stream == pcm.StreamPlayback {
		room := len(b.ring) - b.filled
		if want > room {
			want = room
		}
		for i := 0; i < want; i++ {
			b.ring[b.writePos] = buf[start+i]
			b.writePos = (b.writePos + 1) % len(b.ring)
		}
		b.filled += want
	} else {
		avail := b.filled
		if want > avail {
			want = avail
		}
		for i := 0; i < want; i++ {
			buf[start+i] = b.ring[b.readPos]
			b.readPos = (b.readPos + 1) % len(b.ring)
		}
		b.filled -= want
	}
	return want / frameBytes, nil
}

func (b *backend) TransferN(bufs [][]byte, offset, frames int) (int, error) {
	// The reference hw backend moves interleaved frames only; HwRefine does
	// not narrow the access mask, so a non-interleaved transfer reaches this
	// method and is reported as not supported.
	return 0, &pcm.Error{Op: "transfer", Kind: pcm.KindNotSupported}
}

// Wait parks until the callback signals progress, ctx is canceled, or
// timeoutMs elapses (negative meaning indefinitely) — the channel-based
// substitution for a poll-fd-based wait.
func (b *backend) Wait(ctx context.Context, timeoutMs int) (bool, error) {
	var timeout <-chan time.Time
	if timeoutMs >= 0 {
		t := time.NewTimer(time.Duration(timeoutMs) * time.Millisecond)
		defer t.Stop()
		timeout = t.C
	}
	select {
	case <-b.ready:
		return true, nil
	case <-timeout:
		return false, nil
	case <-ctx.Done():
		return false, ctx.Err()
	}
}
