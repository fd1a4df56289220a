package pcm

// StartMode selects when a Playback endpoint transitions to RUNNING.
type StartMode int

const (
	StartExplicit StartMode = iota // wait for an explicit Start call
	StartData                     // auto-start on the first successful write
)

func (m StartMode) String() string {
	if m == StartData {
		return "DATA"
	}
	return "EXPLICIT"
}

// XrunMode selects whether the core reacts to a ring-boundary crossing.
type XrunMode int

const (
	XrunNone XrunMode = iota
	XrunStop
)

func (m XrunMode) String() string {
	if m == XrunStop {
		return "STOP"
	}
	return "NONE"
}

// TstampMode selects whether timestamps are derived from mmap progress.
type TstampMode int

const (
	TstampNone TstampMode = iota
	TstampMmap
)

func (m TstampMode) String() string {
	if m == TstampMmap {
		return "MMAP"
	}
	return "NONE"
}

// SwParams is the user-tunable policy layer, independent of hardware
// geometry. Writing it never changes state.
type SwParams struct {
	StartMode        StartMode
	XrunMode         XrunMode
	TstampMode       TstampMode
	PeriodStep       int
	SleepMin         int
	AvailMin         int
	XferAlign        int
	SilenceThreshold int
	SilenceSize      int
	Boundary         int
}

// applySwParams validates sw against the endpoint's current geometry and
// installs it. It never touches State.
func applySwParams(ep *Endpoint, sw SwParams) error {
	if !ep.setup {
		return newErr("sw_params", KindBadState)
	}
	if sw.AvailMin < 1 || sw.AvailMin > ep.cfg.BufferSize {
		return newErrParam("sw_params", KindBadValue, "avail_min")
	}
	if sw.XferAlign < 1 || ep.cfg.PeriodSize%sw.XferAlign != 0 {
		return newErrParam("sw_params", KindBadValue, "xfer_align")
	}
	if sw.SilenceThreshold+sw.SilenceSize > ep.cfg.BufferSize {
		return newErrParam("sw_params", KindBadValue, "silence_threshold")
	}
	if sw.Boundary%ep.cfg.BufferSize != 0 || sw.Boundary < 2*ep.cfg.BufferSize {
		return newErrParam("sw_params", KindBadValue, "boundary")
	}

	ep.sw = sw
	return nil
}

// SwParams applies software parameters to ep.
func (ep *Endpoint) SwParams(sw SwParams) error {
	ep.mu.Lock()
	defer ep.mu.Unlock()
	return applySwParams(ep, sw)
}

// defaultBoundary picks the smallest multiple of bufferSize that is at
// least 2^30, the wraparound point appl_ptr/hw_ptr arithmetic is taken
// modulo.
func defaultBoundary(bufferSize int) int {
	if bufferSize <= 0 {
		return 0
	}
	const minBoundary = 1 << 30
	n := minBoundary / bufferSize
	if n*bufferSize < minBoundary {
		n++
	}
	if n < 2 {
		n = 2
	}
	return n * bufferSize
}

// defaultSwParams returns a conservative default policy once hardware
// geometry is known: explicit start, stop on xrun, no timestamps, transfer
// granularity of one frame, avail_min of one period.
func defaultSwParams(cfg Config) SwParams {
	return SwParams{
		StartMode:  StartExplicit,
		XrunMode:   XrunStop,
		TstampMode: TstampNone,
		PeriodStep: 1,
		SleepMin:   0,
		AvailMin:   cfg.PeriodSize,
		XferAlign:  1,
		Boundary:   defaultBoundary(cfg.BufferSize),
	}
}
