// Package filesink implements the "file" reference backend: raw frames are
// written to, or read from, an *os.File, interleaved for TransferI and one
// channel block after another for TransferN. Its
// avail_update always reports the whole buffer free so the common transfer
// loop never blocks against file I/O.
package filesink

import (
	"context"
	"os"

	"golang.org/x/sys/unix"

	"github.com/doismellburning/pcmcore/pcm"
)

func init() {
	pcm.Register("file", open)
}

type backend struct {
	stream pcm.Stream
	cfg    pcm.Config
	state  pcm.State
	f      *os.File
	path   string
}

func open(stream pcm.Stream, d *pcm.Descriptor, slave *pcm.Endpoint) (*pcm.Endpoint, error) {
	path := "/dev/null"
	if d != nil {
		if p, ok := d.Options["path"]; ok && p != "" {
			path = p
		}
	}

	flags := os.O_RDONLY
	if stream == pcm.StreamPlayback {
		flags = os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	}
	f, err := os.OpenFile(path, flags, 0o644)
	if err != nil {
		return nil, err
	}

	b := &backend{stream: stream, state: pcm.StateOpen, f: f, path: path}
	name := path
	if d != nil && d.Name != "" {
		name = d.Name
	}
	return pcm.Open(name, stream, b, b), nil
}

func (b *backend) Info() pcm.Info { return pcm.Info{Name: b.path, Type: "file"} }

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

func (b *backend) Close() error { return b.f.Close() }

func (b *backend) SetNonBlock(nonblock bool) error { return nil }

func (b *backend) PollDescriptors() ([]pcm.PollFD, error) {
	return []pcm.PollFD{{FD: int(b.f.Fd()), Events: 1}}, nil
}

func (b *backend) SupportsPause() bool { return false }

func (b *backend) State() pcm.State { return b.state }

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
	return &pcm.Error{Op: "pause", Kind: pcm.KindNotSupported}
}

func (b *backend) Prepare() error {
	b.state = pcm.StatePrepared
	return nil
}

func (b *backend) Reset() error { return nil }

func (b *backend) frameBytes() int {
	return pcm.Width(b.cfg.Format) * b.cfg.Channels / 8
}

// TransferI writes frames*frameBytes bytes from buf[offset*frameBytes:] to
// the file for playback, or reads the same range for capture.
func (b *backend) TransferI(buf []byte, offset, frames int) (int, error) {
	fb := b.frameBytes()
	start := offset * fb
	n := frames * fb
	if start+n > len(buf) {
		n = len(buf) - start
	}
	var (
		written int
		err     error
	)
	if b.stream == pcm.StreamPlayback {
		written, err = b.f.Write(buf[start : start+n])
	} else {
		written, err = b.f.Read(buf[start : start+n])
	}
	if err != nil {
		return written / fb, err
	}
	return written / fb, nil
}

// TransferN writes (or reads) each channel buffer's frame range in turn, so
// the file holds the channels of a non-interleaved transfer as consecutive
// blocks rather than as interleaved frames.
func (b *backend) TransferN(bufs [][]byte, offset, frames int) (int, error) {
	width := pcm.Width(b.cfg.Format) / 8
	for _, buf := range bufs {
		start := offset * width
		n := frames * width
		if start+n > len(buf) {
			n = len(buf) - start
		}
		var err error
		if b.stream == pcm.StreamPlayback {
			_, err = b.f.Write(buf[start : start+n])
		} else {
			_, err = b.f.Read(buf[start : start+n])
		}
		if err != nil {
			return 0, err
		}
	}
	return frames, nil
}

// Wait polls the real file descriptor with unix.Poll rather than faking
// readiness: a regular file is always poll-ready, so this mostly documents
// that the exported PollFD is genuine, but it gives ctx cancellation a real
// race to win against instead of a synthetic default case.
func (b *backend) Wait(ctx context.Context, timeoutMs int) (bool, error) {
	events := int16(unix.POLLOUT)
	if b.stream == pcm.StreamCapture {
		events = unix.POLLIN
	}
	fds := []unix.PollFd{{Fd: int32(b.f.Fd()), Events: events}}

	done := make(chan error, 1)
	go func() {
		_, err := unix.Poll(fds, timeoutMs)
		done <- err
	}()

	select {
	case err := <-done:
		if err != nil {
			return false, err
		}
		return fds[0].Revents&events != 0, nil
	case <-ctx.Done():
		return false, ctx.Err()
	}
}
