package pcm

import (
	"context"
	"sync"
)

// fakeBackend is a minimal in-memory ring used to exercise the state
// machine and transfer engine without a real device. It implements both
// FastOps and SlowOps on the same value, which the core allows.
type fakeBackend struct {
	mu sync.Mutex

	stream Stream
	cfg    Config

	written  int // playback: frames written by the app not yet "played"
	consumed int // frames the simulated hw has consumed (playback) or produced (capture)

	state     State
	nonblock  bool
	pauseOK   bool
	paused    bool
	readyCh   chan struct{}
	xrunLatch bool
}

func newFakeBackend(stream Stream) *fakeBackend {
	return &fakeBackend{stream: stream, state: StateOpen, readyCh: make(chan struct{}, 1)}
}

func (b *fakeBackend) Info() Info { return Info{Name: "fake", Type: "fake"} }

func (b *fakeBackend) HwRefine(space Space) (Space, error) { return space, nil }

func (b *fakeBackend) HwParams(cfg Config) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.cfg = cfg
	b.state = StatePrepared
	b.written, b.consumed = 0, 0
	b.xrunLatch = false
	return nil
}

func (b *fakeBackend) HwFree() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = StateOpen
	return nil
}

func (b *fakeBackend) Close() error { return nil }

func (b *fakeBackend) SetNonBlock(nonblock bool) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nonblock = nonblock
	return nil
}

func (b *fakeBackend) PollDescriptors() ([]PollFD, error) { return []PollFD{{FD: -1, Events: 1}}, nil }

func (b *fakeBackend) SupportsPause() bool { return b.pauseOK }

func (b *fakeBackend) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

func (b *fakeBackend) AvailUpdate() (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.xrunLatch {
		return 0, nil
	}
	inFlight := b.written - b.consumed
	if b.stream == StreamPlayback {
		return b.cfg.BufferSize - inFlight, nil
	}
	return inFlight, nil
}

func (b *fakeBackend) Delay() (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.written - b.consumed, nil
}

func (b *fakeBackend) Rewind(frames int) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	max := b.written - b.consumed
	if frames > max {
		frames = max
	}
	b.written -= frames
	return frames, nil
}

func (b *fakeBackend) MmapForward(frames int) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.written += frames
	return nil
}

func (b *fakeBackend) Start() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = StateRunning
	return nil
}

func (b *fakeBackend) Drop() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = StateSetup
	b.written, b.consumed = 0, 0
	return nil
}

func (b *fakeBackend) Pause(enable bool) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.paused = enable
	return nil
}

func (b *fakeBackend) Prepare() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = StatePrepared
	b.written, b.consumed = 0, 0
	b.xrunLatch = false
	return nil
}

func (b *fakeBackend) Reset() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.written, b.consumed = 0, 0
	return nil
}

func (b *fakeBackend) TransferI(buf []byte, offset, frames int) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.stream == StreamPlayback {
		b.written += frames
	} else {
		b.consumed += frames
	}
	return frames, nil
}

func (b *fakeBackend) TransferN(bufs [][]byte, offset, frames int) (int, error) {
	return b.TransferI(nil, offset, frames)
}

func (b *fakeBackend) Wait(ctx context.Context, timeoutMs int) (bool, error) {
	select {
	case <-b.readyCh:
		return true, nil
	default:
	}
	// In these tests the "device" drains/produces synchronously from the
	// test's point of view, so a blocking Wait means the test itself will
	// advance b.consumed and signal readyCh before calling Wait again.
	select {
	case <-b.readyCh:
		return true, nil
	case <-ctx.Done():
		return false, ctx.Err()
	}
}

// consume simulates the backend side draining `n` frames from a playback
// ring, or producing `n` fresh frames for a capture ring, signaling Wait if
// blocked. written/consumed both count "frames the app has not yet
// reclaimed": for playback the app advances written via TransferI and the
// simulated hw advances consumed here; for capture the simulated hw
// advances written here and the app advances consumed via TransferI.
func (b *fakeBackend) consume(n int) {
	b.mu.Lock()
	if b.stream == StreamPlayback {
		b.consumed += n
	} else {
		b.written += n
	}
	b.mu.Unlock()
	select {
	case b.readyCh <- struct{}{}:
	default:
	}
}

// forceEmpty simulates the ring running completely dry while RUNNING: hw
// has consumed everything the app wrote, tripping XRUN.
func (b *fakeBackend) forceEmpty() {
	b.mu.Lock()
	b.consumed = b.written
	b.state = StateXrun
	b.mu.Unlock()
}

func openFakeEndpoint(stream Stream) (*Endpoint, *fakeBackend) {
	b := newFakeBackend(stream)
	ep := Open("fake0", stream, b, b)
	return ep, b
}

// mmapFakeBackend extends fakeBackend with a real byte ring and MmapAreas,
// so tests can drive FillSilence end-to-end and check the actual bytes it
// leaves behind rather than just its bookkeeping.
type mmapFakeBackend struct {
	*fakeBackend
	ring []byte
}

func newMmapFakeBackend(stream Stream) *mmapFakeBackend {
	return &mmapFakeBackend{fakeBackend: newFakeBackend(stream)}
}

func (b *mmapFakeBackend) HwParams(cfg Config) error {
	if err := b.fakeBackend.HwParams(cfg); err != nil {
		return err
	}
	frameBytes := Width(cfg.Format) * cfg.Channels / 8
	b.ring = make([]byte, cfg.BufferSize*frameBytes)
	for i := range b.ring {
		b.ring[i] = 0xff // stale marker distinct from both real data and silence
	}
	return nil
}

func (b *mmapFakeBackend) MmapAreas() []Area {
	return InterleavedAreas(b.ring, b.cfg.Channels, b.cfg.Format)
}

// TransferI mirrors fakeBackend's counting exactly but also copies playback
// bytes into the ring at the pre-write position, so the ring reflects what
// was actually written instead of only the frame counts.
func (b *mmapFakeBackend) TransferI(buf []byte, offset, frames int) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.stream == StreamPlayback {
		frameBytes := Width(b.cfg.Format) * b.cfg.Channels / 8
		pos := (b.written % b.cfg.BufferSize) * frameBytes
		n := frames * frameBytes
		for i := 0; i < n; i++ {
			b.ring[(pos+i)%len(b.ring)] = buf[offset*frameBytes+i]
		}
		b.written += frames
	} else {
		b.consumed += frames
	}
	return frames, nil
}
