package pcm

// MmapProvider is implemented by backends that expose their ring as
// directly addressable channel Areas. HwParams populates Endpoint's mapped
// channels from it when present, which is what lets FillSilence overwrite
// stale ring content in place instead of going through TransferI.
type MmapProvider interface {
	MmapAreas() []Area
}

// FillSilence enforces the silence-threshold policy on a memory-mapped
// playback ring: whenever more than silence_threshold frames of the ring are
// free (avail), the free frames starting at appl_ptr are overwritten with
// silence, at most silence_size of them and never more than avail minus
// silence_threshold, so a starving consumer reads quiet rather than stale
// data. It is a no-op when both values are 0, and for capture
// endpoints and for endpoints with no mapped channels (pure read/write
// access never needs it, since an unwritten sample is never exposed to the
// backend in the first place).
func FillSilence(ep *Endpoint) error {
	ep.mu.Lock()
	defer ep.mu.Unlock()
	return fillSilenceLocked(ep)
}

// fillSilenceLocked is FillSilence's body for callers that already hold
// ep.mu, such as MmapForward.
func fillSilenceLocked(ep *Endpoint) error {
	if ep.stream != StreamPlayback || len(ep.mmapChannels) == 0 {
		return nil
	}
	if ep.sw.SilenceThreshold == 0 && ep.sw.SilenceSize == 0 {
		return nil
	}

	avail, err := ep.fast.AvailUpdate()
	if err != nil {
		return newErrWrap("silence", KindIO, err)
	}
	if avail <= ep.sw.SilenceThreshold {
		return nil
	}

	fill := avail - ep.sw.SilenceThreshold
	if fill > ep.sw.SilenceSize {
		fill = ep.sw.SilenceSize
	}
	if fill <= 0 {
		return nil
	}

	offset := boundaryMod(int(ep.applPtr.Load()), ep.cfg.BufferSize)
	if end := offset + fill; end <= ep.cfg.BufferSize {
		AreasSilence(ep.mmapChannels, offset, len(ep.mmapChannels), fill, ep.cfg.Format)
	} else {
		// The run crosses the end of the ring; split it into the tail
		// before the wrap and the head after it.
		head := ep.cfg.BufferSize - offset
		AreasSilence(ep.mmapChannels, offset, len(ep.mmapChannels), head, ep.cfg.Format)
		AreasSilence(ep.mmapChannels, 0, len(ep.mmapChannels), fill-head, ep.cfg.Format)
	}
	return nil
}

// boundaryMod is the plain (non-negative) modulo used for ring offsets,
// distinct from wrapSigned's signed difference representative.
func boundaryMod(v, m int) int {
	if m <= 0 {
		return 0
	}
	r := v % m
	if r < 0 {
		r += m
	}
	return r
}
