package pcm

import (
	"context"
	"fmt"
	"io"
)

// AvailUpdate queries free (playback) or filled (capture) frames, which may
// do transport work at lower layers (e.g. refreshing a cached hw_ptr).
func AvailUpdate(ep *Endpoint) (int, error) {
	ep.mu.Lock()
	defer ep.mu.Unlock()
	n, err := ep.fast.AvailUpdate()
	if err != nil {
		return 0, newErrWrap("avail_update", KindIO, err)
	}
	return n, nil
}

// Delay returns frames-in-flight, signed, modulo boundary: appl_ptr-hw_ptr
// for playback, hw_ptr-appl_ptr for capture. It returns 0 while the endpoint
// is OPEN, and while it is PREPARED with nothing written since hw_params or
// prepare (appl_ptr still 0); frames written in PREPARED before Start are
// reported as the backend's delay.
func Delay(ep *Endpoint) (int, error) {
	ep.mu.Lock()
	defer ep.mu.Unlock()
	cur := ep.stateLocked()
	neverStarted := ep.applPtr.Load() == 0
	if cur == StateOpen || (cur == StatePrepared && neverStarted) {
		return 0, nil
	}
	d, err := ep.fast.Delay()
	if err != nil {
		return 0, newErrWrap("delay", KindIO, err)
	}
	return wrapSigned(d, ep.sw.Boundary), nil
}

// wrapSigned reduces diff modulo boundary into the signed representative
// range [-boundary/2, boundary/2), undoing the unsigned wraparound a
// pointer difference picks up once it has crossed boundary.
func wrapSigned(diff, boundary int) int {
	if boundary <= 0 {
		return diff
	}
	d := diff % boundary
	if d < -boundary/2 {
		d += boundary
	} else if d >= boundary/2 {
		d -= boundary
	}
	return d
}

// Rewind moves appl_ptr backward by up to frames, returning the amount
// actually moved; the backend clamps against the ring window.
func Rewind(ep *Endpoint, frames int) (int, error) {
	ep.mu.Lock()
	defer ep.mu.Unlock()
	n, err := ep.fast.Rewind(frames)
	if err != nil {
		return 0, newErrWrap("rewind", KindIO, err)
	}
	ep.applPtr.Add(int64(-n))
	return n, nil
}

// mmapAvail reports how many frames of the mapped ring the caller may still
// fill (playback) or consume (capture) before calling MmapForward.
func mmapAvail(ep *Endpoint) (int, error) {
	return ep.fast.AvailUpdate()
}

// MmapForward advances appl_ptr by n frames after the caller filled the ring
// in place (for example through the areas a backend exposes via MmapProvider).
func MmapForward(ep *Endpoint, n int) error {
	ep.mu.Lock()
	defer ep.mu.Unlock()
	avail, err := mmapAvail(ep)
	if err != nil {
		return newErrWrap("mmap_forward", KindIO, err)
	}
	if n > avail {
		return newErrParam("mmap_forward", KindBadValue, "frames")
	}
	if err := ep.fast.MmapForward(n); err != nil {
		return newErrWrap("mmap_forward", KindIO, err)
	}
	ep.applPtr.Add(int64(n))
	return fillSilenceLocked(ep)
}

// waitFast polls the endpoint's exported descriptor, honoring ctx
// cancellation alongside the timeout. timeoutMs < 0 means wait indefinitely.
func waitFast(ep *Endpoint, ctx context.Context, timeoutMs int) (bool, error) {
	ready, err := ep.fast.Wait(ctx, timeoutMs)
	if err != nil {
		return false, newErrWrap("wait", KindIO, err)
	}
	return ready, nil
}

// Wait polls the exported descriptor for up to timeoutMs milliseconds
// (negative means indefinitely), returning false on timeout, true on
// readiness, and an error on an OS-level failure or ctx cancellation.
func Wait(ep *Endpoint, ctx context.Context, timeoutMs int) (bool, error) {
	return waitFast(ep, ctx, timeoutMs)
}

// PollDescriptors copies the backend's descriptors into out, at most len(out)
// entries, and returns how many were copied. Events are passed through as the
// backend reports them and are not set per stream direction by the core; the
// reference backends in this module each report one entry with Events set to
// 1 for playback and capture alike.
func PollDescriptors(ep *Endpoint, out []PollFD) (int, error) {
	fds, err := ep.slow.PollDescriptors()
	if err != nil {
		return 0, newErrWrap("poll_descriptors", KindIO, err)
	}
	n := copy(out, fds)
	return n, nil
}

// Linker is implemented by backends whose slow ops can couple two endpoints'
// start/stop/prepare operations together.
type Linker interface {
	LinkTo(other *Endpoint) error
	Unlink() error
}

// Link couples a's start/stop/prepare to b's, if a's backend supports it.
func Link(a, b *Endpoint) error {
	l, ok := a.slow.(Linker)
	if !ok {
		return newErr("link", KindNotSupported)
	}
	if err := l.LinkTo(b); err != nil {
		return newErrWrap("link", KindIO, err)
	}
	return nil
}

// Unlink decouples a from whatever it was linked to.
func Unlink(a *Endpoint) error {
	l, ok := a.slow.(Linker)
	if !ok {
		return newErr("unlink", KindNotSupported)
	}
	if err := l.Unlink(); err != nil {
		return newErrWrap("unlink", KindIO, err)
	}
	return nil
}

// dumpLine writes one "label: value" line in the fixed-width padded style
// shared by all three dump blocks.
func dumpLine(w io.Writer, label string, value any) error {
	_, err := fmt.Fprintf(w, "%-18s: %v\n", label, value)
	return err
}

// DumpHwSetup renders the hardware configuration block. Field order and
// labels are part of the external contract.
func DumpHwSetup(ep *Endpoint, w io.Writer) error {
	ep.mu.Lock()
	cfg := ep.cfg
	stream := ep.stream
	ep.mu.Unlock()

	fields := []struct {
		label string
		value any
	}{
		{"stream", stream},
		{"access", cfg.Access},
		{"format", cfg.Format},
		{"subformat", cfg.Subformat},
		{"channels", cfg.Channels},
		{"rate", cfg.Rate},
		{"exact rate", cfg.Rate},
		{"msbits", Width(cfg.Format)},
		{"buffer_size", cfg.BufferSize},
		{"period_size", cfg.PeriodSize},
		{"period_time", cfg.PeriodTime},
		{"tick_time", cfg.TickTime},
	}
	for _, f := range fields {
		if err := dumpLine(w, f.label, f.value); err != nil {
			return err
		}
	}
	return nil
}

// DumpSwSetup renders the software-policy block.
func DumpSwSetup(ep *Endpoint, w io.Writer) error {
	ep.mu.Lock()
	sw := ep.sw
	ep.mu.Unlock()

	fields := []struct {
		label string
		value any
	}{
		{"start_mode", sw.StartMode},
		{"xrun_mode", sw.XrunMode},
		{"tstamp_mode", sw.TstampMode},
		{"period_step", sw.PeriodStep},
		{"sleep_min", sw.SleepMin},
		{"avail_min", sw.AvailMin},
		{"xfer_align", sw.XferAlign},
		{"silence_threshold", sw.SilenceThreshold},
		{"silence_size", sw.SilenceSize},
		{"boundary", sw.Boundary},
	}
	for _, f := range fields {
		if err := dumpLine(w, f.label, f.value); err != nil {
			return err
		}
	}
	return nil
}

// StatusDump renders the live-status block.
func StatusDump(ep *Endpoint, w io.Writer) error {
	state := ep.State()
	delay, _ := Delay(ep)
	avail, _ := AvailUpdate(ep)

	ep.mu.Lock()
	availMax := ep.cfg.BufferSize
	ep.mu.Unlock()

	fields := []struct {
		label string
		value any
	}{
		{"state", state},
		{"trigger_time", "0"},
		{"tstamp", "0"},
		{"delay", delay},
		{"avail", avail},
		{"avail_max", availMax},
	}
	for _, f := range fields {
		if err := dumpLine(w, f.label, f.value); err != nil {
			return err
		}
	}
	return nil
}
