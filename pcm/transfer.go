package pcm

import "context"

// WriteAreas implements the common playback transfer loop: the blocking or
// non-blocking binding of application-owned areas to the ring via xfer.
func WriteAreas(ctx context.Context, ep *Endpoint, areas []Area, offset, size int, xfer XferFunc) (int, error) {
	return transferLoop(ctx, ep, areas, offset, size, xfer, true)
}

// ReadAreas implements the common capture transfer loop.
func ReadAreas(ctx context.Context, ep *Endpoint, areas []Area, offset, size int, xfer XferFunc) (int, error) {
	return transferLoop(ctx, ep, areas, offset, size, xfer, false)
}

func transferLoop(ctx context.Context, ep *Endpoint, areas []Area, offset, size int, xfer XferFunc, write bool) (int, error) {
	if size == 0 {
		return 0, nil
	}

	op := "writei"
	if !write {
		op = "readi"
	}

	ep.mu.Lock()
	align := ep.sw.XferAlign
	if align < 1 {
		align = 1
	}
	if size > align {
		size -= size % align
	}
	if size == 0 {
		ep.mu.Unlock()
		return 0, nil
	}

	cur := ep.stateLocked()
	switch {
	case cur == StateXrun:
		ep.mu.Unlock()
		return 0, newErr(op, KindXrun)
	case write && cur == StatePrepared:
	case cur == StateRunning:
	case !write && cur == StateDraining:
	default:
		ep.mu.Unlock()
		return 0, newErr(op, KindBadState)
	}
	ep.mu.Unlock()

	var total int
	for size > 0 {
		ep.mu.Lock()
		avail, err := ep.fast.AvailUpdate()
		if err != nil || avail < 0 {
			ep.mu.Unlock()
			if total > 0 {
				return total, nil
			}
			return 0, newErrWrap(op, KindXrun, err)
		}

		cur = ep.stateLocked()

		if write && cur == StatePrepared && avail == 0 {
			ep.mu.Unlock()
			if total > 0 {
				return total, nil
			}
			return 0, newErr(op, KindXrun)
		}
		if !write && cur == StateDraining && avail == 0 {
			ep.mu.Unlock()
			if total > 0 {
				return total, nil
			}
			return 0, newErr(op, KindXrun) // capture hit end-of-stream with nothing transferred yet
		}

		if avail == 0 || (size >= align && avail < align) {
			nonblock := ep.nonBlocking()
			ep.mu.Unlock()
			if nonblock {
				if total > 0 {
					return total, nil
				}
				return 0, newErr(op, KindAgain)
			}
			if _, err := waitFast(ep, ctx, -1); err != nil {
				if total > 0 {
					return total, nil
				}
				return total, err
			}
			continue
		}

		if avail > align {
			avail -= avail % align
		}
		frames := size
		if avail < frames {
			frames = avail
		}

		n, xerr := xfer(areas, offset, frames)
		ep.mu.Unlock()
		if xerr != nil {
			if total > 0 {
				return total, nil
			}
			return 0, newErrWrap(op, KindIO, xerr)
		}
		if n != frames {
			if total > 0 {
				return total, nil
			}
			return total, newErr(op, KindIO)
		}

		offset += n
		size -= n
		total += n
		ep.applPtr.Add(int64(n))

		if write {
			if err := FillSilence(ep); err != nil {
				return total, err
			}
			ep.mu.Lock()
			still := ep.stateLocked()
			startMode := ep.sw.StartMode
			ep.mu.Unlock()
			if still == StatePrepared && startMode == StartData {
				if err := ep.Start(); err != nil {
					return total, err
				}
			}
		}
	}

	return total, nil
}

// InterleavedAreas builds a single-buffer interleaved area set for channels
// sample frames of format, used by ReadI/WriteI.
func InterleavedAreas(buf []byte, channels int, format Format) []Area {
	width := Width(format)
	frameBits := width * channels
	areas := make([]Area, channels)
	for c := 0; c < channels; c++ {
		areas[c] = Area{Addr: buf, First: c * width, Step: frameBits}
	}
	return areas
}

// nonInterleavedAreas builds one area per channel buffer, used by ReadN/WriteN.
func nonInterleavedAreas(bufs [][]byte, format Format) []Area {
	width := Width(format)
	areas := make([]Area, len(bufs))
	for c, b := range bufs {
		areas[c] = Area{Addr: b, First: 0, Step: width}
	}
	return areas
}

// WriteI writes frames of interleaved samples from buf.
func WriteI(ctx context.Context, ep *Endpoint, buf []byte, frames int) (int, error) {
	cfg := ep.Config()
	areas := InterleavedAreas(buf, cfg.Channels, cfg.Format)
	return WriteAreas(ctx, ep, areas, 0, frames, func(areas []Area, offset, n int) (int, error) {
		return ep.fast.TransferI(buf, offset, n)
	})
}

// ReadI reads frames of interleaved samples into buf.
func ReadI(ctx context.Context, ep *Endpoint, buf []byte, frames int) (int, error) {
	cfg := ep.Config()
	areas := InterleavedAreas(buf, cfg.Channels, cfg.Format)
	return ReadAreas(ctx, ep, areas, 0, frames, func(areas []Area, offset, n int) (int, error) {
		return ep.fast.TransferI(buf, offset, n)
	})
}

// WriteN writes frames of non-interleaved samples, one buffer per channel.
func WriteN(ctx context.Context, ep *Endpoint, bufs [][]byte, frames int) (int, error) {
	cfg := ep.Config()
	areas := nonInterleavedAreas(bufs, cfg.Format)
	return WriteAreas(ctx, ep, areas, 0, frames, func(areas []Area, offset, n int) (int, error) {
		return ep.fast.TransferN(bufs, offset, n)
	})
}

// ReadN reads frames of non-interleaved samples, one buffer per channel.
func ReadN(ctx context.Context, ep *Endpoint, bufs [][]byte, frames int) (int, error) {
	cfg := ep.Config()
	areas := nonInterleavedAreas(bufs, cfg.Format)
	return ReadAreas(ctx, ep, areas, 0, frames, func(areas []Area, offset, n int) (int, error) {
		return ep.fast.TransferN(bufs, offset, n)
	})
}
