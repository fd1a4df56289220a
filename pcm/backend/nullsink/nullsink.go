// Package nullsink implements the "null" reference backend: playback is
// discarded, capture always yields silence, and avail always reports the
// full buffer so the transfer loop never blocks against it.
package nullsink

import (
	"context"

	"github.com/doismellburning/pcmcore/pcm"
)

func init() {
	pcm.Register("null", open)
}

type backend struct {
	stream pcm.Stream
	cfg    pcm.Config
	state  pcm.State
}

func open(stream pcm.Stream, d *pcm.Descriptor, slave *pcm.Endpoint) (*pcm.Endpoint, error) {
	b := &backend{stream: stream, state: pcm.StateOpen}
	return pcm.Open(nameOr(d, "null"), stream, b, b), nil
}

func nameOr(d *pcm.Descriptor, def string) string {
	if d != nil && d.Name != "" {
		return d.Name
	}
	return def
}

func (b *backend) Info() pcm.Info { return pcm.Info{Name: "null", Type: "null"} }

func (b *backend) HwRefine(space pcm.Space) (pcm.Space, error) { return space, nil }

func (b *backend) HwParams(cfg pcm.Config) error {
	b.cfg = cfg
	b.state = pcm.StatePrepared
	return nil
}

func (b *backend) HwFree() error {
	b.state = pcm.StateOpen
	return nil
}

func (b *backend) Close() error { return nil }

func (b *backend) SetNonBlock(nonblock bool) error { return nil }

func (b *backend) PollDescriptors() ([]pcm.PollFD, error) {
	return []pcm.PollFD{{FD: -1, Events: 1}}, nil
}

func (b *backend) SupportsPause() bool { return true }

func (b *backend) State() pcm.State { return b.state }

// AvailUpdate always reports the full buffer free (playback) or full
// already available (capture): the sink never backs up.
func (b *backend) AvailUpdate() (int, error) { return b.cfg.BufferSize, nil }

func (b *backend) Delay() (int, error) { return 0, nil }

func (b *backend) Rewind(frames int) (int, error) { return 0, nil }

func (b *backend) MmapForward(frames int) error { return nil }

func (b *backend) Start() error {
	b.state = pcm.StateRunning
	return nil
}

func (b *backend) Drop() error {
	b.state = pcm.StateSetup
	return nil
}

func (b *backend) Pause(enable bool) error {
	if enable {
		b.state = pcm.StatePaused
	} else {
		b.state = pcm.StateRunning
	}
	return nil
}

func (b *backend) Prepare() error {
	b.state = pcm.StatePrepared
	return nil
}

func (b *backend) Reset() error { return nil }

// TransferI discards every playback frame and hands back silence on
// capture; it always reports full completion since the sink never blocks.
func (b *backend) TransferI(buf []byte, offset, frames int) (int, error) {
	if b.stream == pcm.StreamCapture {
		width := pcm.Width(b.cfg.Format)
		frameBits := width * b.cfg.Channels
		areas := make([]pcm.Area, b.cfg.Channels)
		for c := range areas {
			areas[c] = pcm.Area{Addr: buf, First: c * width, Step: frameBits}
		}
		pcm.AreasSilence(areas, offset, b.cfg.Channels, frames, b.cfg.Format)
	}
	return frames, nil
}

func (b *backend) TransferN(bufs [][]byte, offset, frames int) (int, error) {
	if b.stream == pcm.StreamCapture {
		width := pcm.Width(b.cfg.Format)
		areas := make([]pcm.Area, len(bufs))
		for c, buf := range bufs {
			areas[c] = pcm.Area{Addr: buf, First: 0, Step: width}
		}
		pcm.AreasSilence(areas, offset, len(bufs), frames, b.cfg.Format)
	}
	return frames, nil
}

// Wait always reports immediate readiness: the null sink can always accept
// or produce a full period with no transport delay.
func (b *backend) Wait(ctx context.Context, timeoutMs int) (bool, error) {
	select {
	case <-ctx.Done():
		return false, ctx.Err()
	default:
		return true, nil
	}
}
