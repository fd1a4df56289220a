package pcm

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfigSpace() Space {
	space := Any()
	space = SetAccess(space, AccessRwInterleaved)
	space = SetFormat(space, FormatS16LE)
	space = SetChannels(space, 2)
	space = SetRate(space, 48000)
	return space
}

// TestStateMachine_Sequence covers concrete scenario 3: open Playback,
// hw_params, PREPARED, a zero-frame write that must not move the state,
// then a full-period write under start_mode=DATA driving PREPARED->RUNNING,
// then Drop returning to SETUP.
func TestStateMachine_Sequence(t *testing.T) {
	ep, _ := openFakeEndpoint(StreamPlayback)

	cfg, err := ep.HwParams(testConfigSpace())
	require.NoError(t, err)
	assert.Equal(t, StatePrepared, ep.State())

	sw := defaultSwParams(cfg)
	sw.StartMode = StartData
	require.NoError(t, ep.SwParams(sw))

	n, err := WriteI(context.Background(), ep, nil, 0)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.Equal(t, StatePrepared, ep.State(), "a zero-frame write must not change state")

	buf := make([]byte, cfg.PeriodSize*cfg.Channels*Width(cfg.Format))
	n, err = WriteI(context.Background(), ep, buf, cfg.PeriodSize)
	require.NoError(t, err)
	assert.Equal(t, cfg.PeriodSize, n)
	assert.Equal(t, StateRunning, ep.State(), "start_mode=DATA must auto-start on first full write")

	require.NoError(t, ep.Drop())
	assert.Equal(t, StateSetup, ep.State())
}

// TestXrunRecovery covers concrete scenario 4: a RUNNING playback endpoint
// that empties out trips XRUN, writes then fail with KindXrun, and Prepare
// clears it back to PREPARED so writes can resume.
func TestXrunRecovery(t *testing.T) {
	ep, b := openFakeEndpoint(StreamPlayback)

	cfg, err := ep.HwParams(testConfigSpace())
	require.NoError(t, err)
	require.NoError(t, ep.Start())
	assert.Equal(t, StateRunning, ep.State())

	b.forceEmpty()
	assert.Equal(t, StateXrun, ep.State())

	buf := make([]byte, cfg.PeriodSize*cfg.Channels*Width(cfg.Format))
	_, err = WriteI(context.Background(), ep, buf, cfg.PeriodSize)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrXrun)

	require.NoError(t, ep.Prepare())
	assert.Equal(t, StatePrepared, ep.State())
}

// TestNonBlockingAgain covers concrete scenario 5: a non-blocking endpoint
// with a full ring (avail==0) returns KindAgain with zero frames
// transferred instead of blocking.
func TestNonBlockingAgain(t *testing.T) {
	ep, b := openFakeEndpoint(StreamPlayback)

	cfg, err := ep.HwParams(testConfigSpace())
	require.NoError(t, err)
	require.NoError(t, ep.SetNonBlock(true))
	require.NoError(t, ep.Start())

	// Fill the ring completely so AvailUpdate reports 0 without tripping xrun.
	b.mu.Lock()
	b.written = cfg.BufferSize
	b.consumed = 0
	b.mu.Unlock()

	buf := make([]byte, cfg.PeriodSize*cfg.Channels*Width(cfg.Format))
	n, err := WriteI(context.Background(), ep, buf, cfg.PeriodSize)
	assert.Equal(t, 0, n)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAgain)
}

// TestRewind covers concrete scenario 6: after writing frames, Rewind moves
// appl_ptr backward by up to the requested amount, clamped to what is still
// in flight.
func TestRewind(t *testing.T) {
	ep, _ := openFakeEndpoint(StreamPlayback)

	cfg, err := ep.HwParams(testConfigSpace())
	require.NoError(t, err)

	buf := make([]byte, cfg.PeriodSize*cfg.Channels*Width(cfg.Format))
	n, err := WriteI(context.Background(), ep, buf, cfg.PeriodSize)
	require.NoError(t, err)
	require.Equal(t, cfg.PeriodSize, n)

	got, err := Rewind(ep, cfg.PeriodSize*2)
	require.NoError(t, err)
	assert.Equal(t, cfg.PeriodSize, got, "rewind clamps to frames actually in flight")
}

func TestHwFreeReturnsToOpen(t *testing.T) {
	ep, _ := openFakeEndpoint(StreamCapture)
	_, err := ep.HwParams(testConfigSpace())
	require.NoError(t, err)
	require.NoError(t, ep.HwFree())
	assert.Equal(t, StateOpen, ep.State())
	assert.False(t, ep.IsSetup())
}

func TestCloseDrainsPlaybackThenDisconnects(t *testing.T) {
	ep, b := openFakeEndpoint(StreamPlayback)
	cfg, err := ep.HwParams(testConfigSpace())
	require.NoError(t, err)
	require.NoError(t, ep.Start())

	buf := make([]byte, cfg.PeriodSize*cfg.Channels*Width(cfg.Format))
	_, err = WriteI(context.Background(), ep, buf, cfg.PeriodSize)
	require.NoError(t, err)

	// Simulate the backend draining the ring in the background.
	go func() {
		b.consume(cfg.PeriodSize)
	}()

	require.NoError(t, ep.Close(context.Background()))
	assert.Equal(t, StateDisconnected, ep.State())
}
