package pcm

import "context"

// State is a position in the stream state machine.
type State int

const (
	StateOpen State = iota
	StateSetup
	StatePrepared
	StateRunning
	StateXrun
	StatePaused
	StateDraining
	StateDisconnected
)

func (s State) String() string {
	switch s {
	case StateOpen:
		return "OPEN"
	case StateSetup:
		return "SETUP"
	case StatePrepared:
		return "PREPARED"
	case StateRunning:
		return "RUNNING"
	case StateXrun:
		return "XRUN"
	case StatePaused:
		return "PAUSED"
	case StateDraining:
		return "DRAINING"
	case StateDisconnected:
		return "DISCONNECTED"
	default:
		return "UNKNOWN"
	}
}

// State reads the endpoint's current state through the fast vtable,
// refreshing the cached copy used by the rest of the core.
func (ep *Endpoint) State() State {
	ep.mu.Lock()
	defer ep.mu.Unlock()
	return ep.stateLocked()
}

func (ep *Endpoint) stateLocked() State {
	// A closed endpoint stays DISCONNECTED; its backend is no longer consulted.
	if ep.state == StateDisconnected {
		return ep.state
	}
	s := ep.fast.State()
	ep.state = s
	return s
}

// HwParams refines space down to a single configuration, installs it, and
// advances the endpoint OPEN→SETUP→PREPARED. On failure the endpoint is
// left exactly as it was: either the transition completes or it is rolled
// back entirely.
func (ep *Endpoint) HwParams(space Space) (Config, error) {
	ep.mu.Lock()
	defer ep.mu.Unlock()

	refined, err := ep.slow.HwRefine(space)
	if err != nil {
		return Config{}, err
	}
	cfg, _, err := ChooseOne(refined)
	if err != nil {
		return Config{}, err
	}
	if err := ep.slow.HwParams(cfg); err != nil {
		return Config{}, newErrWrap("hw_params", KindBadValue, err)
	}

	ep.cfg = cfg
	ep.sw = defaultSwParams(cfg)
	ep.setup = true
	ep.state = StatePrepared
	ep.hwPtr.Store(0)
	ep.applPtr.Store(0)
	if mp, ok := ep.fast.(MmapProvider); ok {
		ep.mmapChannels = mp.MmapAreas()
	} else {
		ep.mmapChannels = nil
	}
	return cfg, nil
}

// HwFree releases hardware parameters, returning the endpoint to OPEN.
func (ep *Endpoint) HwFree() error {
	ep.mu.Lock()
	defer ep.mu.Unlock()
	if err := ep.slow.HwFree(); err != nil {
		return newErrWrap("hw_free", KindIO, err)
	}
	ep.setup = false
	ep.state = StateOpen
	ep.mmapChannels = nil
	return nil
}

// Prepare clears XRUN and resets ring positions, moving PREPARED/XRUN to
// PREPARED.
func (ep *Endpoint) Prepare() error {
	ep.mu.Lock()
	defer ep.mu.Unlock()
	if !ep.setup {
		return newErr("prepare", KindBadState)
	}
	cur := ep.stateLocked()
	if cur != StatePrepared && cur != StateXrun {
		return newErr("prepare", KindBadState)
	}
	if err := ep.fast.Prepare(); err != nil {
		return newErrWrap("prepare", KindIO, err)
	}
	ep.hwPtr.Store(0)
	ep.applPtr.Store(0)
	ep.state = StatePrepared
	return nil
}

// Start moves PREPARED to RUNNING.
func (ep *Endpoint) Start() error {
	ep.mu.Lock()
	defer ep.mu.Unlock()
	return ep.startLocked()
}

func (ep *Endpoint) startLocked() error {
	if !ep.setup {
		return newErr("start", KindBadState)
	}
	if ep.stateLocked() != StatePrepared {
		return newErr("start", KindBadState)
	}
	if err := ep.fast.Start(); err != nil {
		return newErrWrap("start", KindIO, err)
	}
	ep.state = StateRunning
	return nil
}

// Drop forces any running state immediately back to SETUP, discarding
// whatever was in flight.
func (ep *Endpoint) Drop() error {
	ep.mu.Lock()
	defer ep.mu.Unlock()
	if !ep.setup {
		return newErr("drop", KindBadState)
	}
	if err := ep.fast.Drop(); err != nil {
		return newErrWrap("drop", KindIO, err)
	}
	ep.state = StateSetup
	ep.setup = true // drop returns to SETUP, hardware params remain installed
	return nil
}

// Drain empties the ring before returning. For Playback it waits for
// appl_ptr == hw_ptr; for Capture it empties immediately once avail reaches
// zero — frames still in flight past that point are not retrievable.
func (ep *Endpoint) Drain(ctx context.Context) error {
	ep.mu.Lock()
	cur := ep.stateLocked()
	if cur != StateRunning {
		ep.mu.Unlock()
		return newErr("drain", KindBadState)
	}
	ep.state = StateDraining
	ep.mu.Unlock()

	for {
		ep.mu.Lock()
		avail, err := ep.fast.AvailUpdate()
		if err != nil {
			ep.mu.Unlock()
			return newErrWrap("drain", KindIO, err)
		}
		// Playback: drained once the full buffer is free again (nothing
		// left for the backend to consume). Capture: drained once nothing
		// remains to read.
		drained := avail == 0
		if ep.stream == StreamPlayback {
			drained = avail >= ep.cfg.BufferSize
		}
		if drained {
			if err := ep.fast.Drop(); err != nil {
				ep.mu.Unlock()
				return newErrWrap("drain", KindIO, err)
			}
			ep.state = StateSetup
			ep.mu.Unlock()
			return nil
		}
		ep.mu.Unlock()

		if _, err := waitFast(ep, ctx, -1); err != nil {
			return err
		}
	}
}

// Pause toggles RUNNING<->PAUSED, if the backend supports it.
func (ep *Endpoint) Pause(enable bool) error {
	ep.mu.Lock()
	defer ep.mu.Unlock()
	if !ep.setup {
		return newErr("pause", KindBadState)
	}
	if !ep.slow.SupportsPause() {
		return newErr("pause", KindNotSupported)
	}
	cur := ep.stateLocked()
	if enable && cur != StateRunning {
		return newErr("pause", KindBadState)
	}
	if !enable && cur != StatePaused {
		return newErr("pause", KindBadState)
	}
	if err := ep.fast.Pause(enable); err != nil {
		return newErrWrap("pause", KindIO, err)
	}
	if enable {
		ep.state = StatePaused
	} else {
		ep.state = StateRunning
	}
	return nil
}

// Reset drops state back to SETUP and clears positions without touching
// hardware parameters, used internally after a hard backend disconnect is
// cleared.
func (ep *Endpoint) Reset() error {
	ep.mu.Lock()
	defer ep.mu.Unlock()
	if err := ep.fast.Reset(); err != nil {
		return newErrWrap("reset", KindIO, err)
	}
	ep.hwPtr.Store(0)
	ep.applPtr.Store(0)
	ep.state = StateSetup
	return nil
}

// Close issues drain-or-drop by mode+stream, then hw_free, then the
// backend's close.
func (ep *Endpoint) Close(ctx context.Context) error {
	ep.mu.Lock()
	cur := ep.stateLocked()
	setup := ep.setup
	ep.mu.Unlock()

	if setup && (cur == StateRunning || cur == StatePaused) {
		if ep.stream == StreamPlayback && !ep.nonBlocking() {
			_ = ep.Drain(ctx)
		} else {
			_ = ep.Drop()
		}
	}
	if setup {
		if err := ep.HwFree(); err != nil {
			return err
		}
	}
	if err := ep.slow.Close(); err != nil {
		return newErrWrap("close", KindIO, err)
	}
	ep.mu.Lock()
	ep.state = StateDisconnected
	ep.mu.Unlock()
	return nil
}
