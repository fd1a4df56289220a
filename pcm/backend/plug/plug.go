// Package plug implements the "plug" reference backend: a pass-through
// wrapper demonstrating recursive endpoint construction, so the composition
// model can be exercised with two stacked endpoints. HwParams configures the
// slave with the wrapper's own format, channel count and rate; no resampling
// is done. TransferI has a channel-remap path for a slave whose channel
// count differs from the wrapper's, which this HwParams never sets up.
package plug

import (
	"context"

	"github.com/doismellburning/pcmcore/pcm"
)

func init() {
	pcm.Register("plug", open)
}

type backend struct {
	stream pcm.Stream
	slave  *pcm.Endpoint
	cfg    pcm.Config // this endpoint's own negotiated geometry
	state  pcm.State
}

func open(stream pcm.Stream, d *pcm.Descriptor, slave *pcm.Endpoint) (*pcm.Endpoint, error) {
	if slave == nil {
		return nil, &pcm.Error{Op: "plug.open", Kind: pcm.KindBadValue, Param: "slave"}
	}
	b := &backend{stream: stream, slave: slave, state: pcm.StateOpen}
	name := "plug"
	if d != nil && d.Name != "" {
		name = d.Name
	}
	return pcm.Open(name, stream, b, b), nil
}

func (b *backend) Info() pcm.Info { return pcm.Info{Name: "plug", Type: "plug"} }

// HwRefine passes the request straight through: this reference wrapper
// does not further constrain what its own geometry may be, only how it
// bridges to the slave's.
func (b *backend) HwRefine(space pcm.Space) (pcm.Space, error) { return space, nil }

func (b *backend) HwParams(cfg pcm.Config) error {
	slaveSpace := pcm.Any()
	slaveSpace = pcm.SetAccess(slaveSpace, pcm.AccessRwInterleaved)
	slaveSpace = pcm.SetFormat(slaveSpace, cfg.Format)
	slaveSpace = pcm.SetChannels(slaveSpace, cfg.Channels)
	slaveSpace = pcm.SetRate(slaveSpace, cfg.Rate)
	if _, err := b.slave.HwParams(slaveSpace); err != nil {
		return err
	}
	b.cfg = cfg
	b.state = pcm.StatePrepared
	return nil
}

func (b *backend) HwFree() error {
	if err := b.slave.HwFree(); err != nil {
		return err
	}
	b.state = pcm.StateOpen
	return nil
}

// Close closes the slave exactly once: the wrapper owns its slave and is
// the only thing that may close it.
func (b *backend) Close() error {
	return b.slave.Close(context.Background())
}

func (b *backend) SetNonBlock(nonblock bool) error {
	return b.slave.SetNonBlock(nonblock)
}

func (b *backend) PollDescriptors() ([]pcm.PollFD, error) {
	return []pcm.PollFD{{FD: -1, Events: 1}}, nil
}

func (b *backend) SupportsPause() bool { return false }

func (b *backend) State() pcm.State {
	b.state = b.slave.State()
	return b.state
}

func (b *backend) AvailUpdate() (int, error) { return pcm.AvailUpdate(b.slave) }

func (b *backend) Delay() (int, error) { return pcm.Delay(b.slave) }

func (b *backend) Rewind(frames int) (int, error) { return pcm.Rewind(b.slave, frames) }

func (b *backend) MmapForward(frames int) error { return pcm.MmapForward(b.slave, frames) }

func (b *backend) Start() error { return b.slave.Start() }

func (b *backend) Drop() error { return b.slave.Drop() }

func (b *backend) Pause(enable bool) error {
	return &pcm.Error{Op: "pause", Kind: pcm.KindNotSupported}
}

func (b *backend) Prepare() error { return b.slave.Prepare() }

func (b *backend) Reset() error { return b.slave.Reset() }

// TransferI converts frames from the wrapper's own channel layout to the
// slave's (duplicating or dropping channels as needed, see remapChannels;
// no resampling) and forwards them through the slave's
// own transfer engine.
func (b *backend) TransferI(buf []byte, offset, frames int) (int, error) {
	slaveCfg := b.slave.Config()
	width := pcm.Width(b.cfg.Format) / 8

	var out []byte
	if slaveCfg.Channels == b.cfg.Channels {
		frameBytes := width * b.cfg.Channels
		out = buf[offset*frameBytes : offset*frameBytes+frames*frameBytes]
	} else {
		out = remapChannels(buf, offset, frames, width, b.cfg.Channels, slaveCfg.Channels)
	}

	if b.stream == pcm.StreamPlayback {
		return pcm.WriteI(context.Background(), b.slave, out, frames)
	}
	n, err := pcm.ReadI(context.Background(), b.slave, out, frames)
	if err == nil && slaveCfg.Channels != b.cfg.Channels {
		copy(buf[offset*width*b.cfg.Channels:], out)
	}
	return n, err
}

func (b *backend) TransferN(bufs [][]byte, offset, frames int) (int, error) {
	return 0, &pcm.Error{Op: "transfer", Kind: pcm.KindNotSupported}
}

// remapChannels performs the "trivial" channel-count conversion: widening
// duplicates the last source channel into the new ones; narrowing drops the
// extra source channels. Both are linear, sample-preserving operations —
// not a real downmix/upmix, matching the spec's "trivial" framing.
func remapChannels(buf []byte, offset, frames, width, srcChannels, dstChannels int) []byte {
	srcFrameBytes := width * srcChannels
	dstFrameBytes := width * dstChannels
	out := make([]byte, frames*dstFrameBytes)
	for f := 0; f < frames; f++ {
		srcFrame := buf[offset*srcFrameBytes+f*srcFrameBytes : offset*srcFrameBytes+(f+1)*srcFrameBytes]
		dstFrame := out[f*dstFrameBytes : (f+1)*dstFrameBytes]
		for c := 0; c < dstChannels; c++ {
			srcC := c
			if srcC >= srcChannels {
				srcC = srcChannels - 1
			}
			copy(dstFrame[c*width:(c+1)*width], srcFrame[srcC*width:(srcC+1)*width])
		}
	}
	return out
}

// Wait delegates to the slave's readiness signal.
func (b *backend) Wait(ctx context.Context, timeoutMs int) (bool, error) {
	return pcm.Wait(b.slave, ctx, timeoutMs)
}
