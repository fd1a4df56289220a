package pcm

import (
	"context"
	"os"
	"sync"
	"sync/atomic"

	"github.com/charmbracelet/log"
)

// Stream is the direction an endpoint moves frames in. Immutable once an
// Endpoint is constructed.
type Stream int

const (
	StreamPlayback Stream = iota
	StreamCapture
)

func (s Stream) String() string {
	if s == StreamCapture {
		return "CAPTURE"
	}
	return "PLAYBACK"
}

// Mode is a bitmask of behavioral flags.
type Mode int

const (
	ModeNonBlock Mode = 1 << iota
	ModeAsync
)

// PollFD is a single OS handle suitable for readiness polling, exported by a
// backend's slow ops.
type PollFD struct {
	FD     int
	Events int // poll event bits, as reported by the backend
}

// Info is the static identity a backend reports through its slow ops.
type Info struct {
	Name string
	Type string
}

// XferFunc moves up to `frames` frames at the given ring offset, returning
// the number actually transferred. A negative return (via error) aborts the
// transfer loop early.
type XferFunc func(areas []Area, offset, frames int) (int, error)

// FastOps is the hot-path vtable: operations the transfer loop and casual
// status checks call on every period. A backend that has no reason to split
// fast/slow state may implement both interfaces on the same receiver.
type FastOps interface {
	State() State
	AvailUpdate() (int, error)
	Delay() (int, error)
	Rewind(frames int) (int, error)
	MmapForward(frames int) error
	Start() error
	Drop() error
	Pause(enable bool) error
	Prepare() error
	Reset() error
	TransferI(buf []byte, offset, frames int) (int, error)
	TransferN(bufs [][]byte, offset, frames int) (int, error)
	Wait(ctx context.Context, timeoutMs int) (ready bool, err error)
}

// SlowOps is the configuration-path vtable: setup, teardown and
// introspection, called rarely relative to FastOps.
type SlowOps interface {
	Info() Info
	HwRefine(space Space) (Space, error)
	HwParams(cfg Config) error
	HwFree() error
	Close() error
	SetNonBlock(nonblock bool) error
	PollDescriptors() ([]PollFD, error)
	SupportsPause() bool
}

// Endpoint is the core object connecting an application to a backend. Its
// exported methods are not safe to call concurrently on the same value:
// the core is not reentrant on a single endpoint.
type Endpoint struct {
	mu sync.Mutex

	name   string
	typ    string
	stream Stream
	mode   Mode

	setup bool
	state State

	cfg Config
	sw  SwParams

	fast FastOps
	slow SlowOps

	// hwPtr is reset to 0 by hw_params, prepare and reset and is not
	// otherwise advanced by the core; the backend is the source of truth for
	// its own progress (reported through FastOps.Delay/AvailUpdate) the same
	// way a real driver's hardware status page is the source of truth behind
	// ALSA's cached hw_ptr.
	hwPtr   atomic.Int64
	applPtr atomic.Int64

	mmapChannels []Area

	logger *log.Logger
}

// Open constructs an Endpoint in state OPEN around a backend supplying the
// two operation tables. It performs no device I/O beyond what the backend's
// constructor already did; it is the compositor's job (compose.go) to call
// backend factories and wire the result into an Endpoint.
func Open(name string, stream Stream, fast FastOps, slow SlowOps) *Endpoint {
	info := slow.Info()
	ep := &Endpoint{
		name:   name,
		typ:    info.Type,
		stream: stream,
		state:  StateOpen,
		fast:   fast,
		slow:   slow,
		logger: log.NewWithOptions(os.Stderr, log.Options{ReportTimestamp: false}).
			With("endpoint", name, "stream", stream.String(), "type", info.Type),
	}
	return ep
}

func (ep *Endpoint) Name() string   { return ep.name }
func (ep *Endpoint) Type() string   { return ep.typ }
func (ep *Endpoint) Stream() Stream { return ep.stream }
func (ep *Endpoint) Mode() Mode     { return ep.mode }
func (ep *Endpoint) IsSetup() bool  { ep.mu.Lock(); defer ep.mu.Unlock(); return ep.setup }
func (ep *Endpoint) Config() Config {
	ep.mu.Lock()
	defer ep.mu.Unlock()
	return ep.cfg
}

// SetNonBlock toggles the endpoint's non-blocking mode.
func (ep *Endpoint) SetNonBlock(nonblock bool) error {
	ep.mu.Lock()
	defer ep.mu.Unlock()
	if err := ep.slow.SetNonBlock(nonblock); err != nil {
		return newErrWrap("nonblock", KindIO, err)
	}
	if nonblock {
		ep.mode |= ModeNonBlock
	} else {
		ep.mode &^= ModeNonBlock
	}
	return nil
}

func (ep *Endpoint) nonBlocking() bool { return ep.mode&ModeNonBlock != 0 }
