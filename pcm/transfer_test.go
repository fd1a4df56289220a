package pcm

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteI_ZeroSizeIsNoop(t *testing.T) {
	ep, _ := openFakeEndpoint(StreamPlayback)
	_, err := ep.HwParams(testConfigSpace())
	require.NoError(t, err)

	n, err := WriteI(context.Background(), ep, nil, 0)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestReadI_BlocksUntilBackendProduces(t *testing.T) {
	ep, b := openFakeEndpoint(StreamCapture)
	cfg, err := ep.HwParams(testConfigSpace())
	require.NoError(t, err)
	require.NoError(t, ep.Start())

	go func() {
		time.Sleep(5 * time.Millisecond)
		b.consume(cfg.PeriodSize)
	}()

	buf := make([]byte, cfg.PeriodSize*cfg.Channels*Width(cfg.Format))
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	n, err := ReadI(ctx, ep, buf, cfg.PeriodSize)
	require.NoError(t, err)
	assert.Equal(t, cfg.PeriodSize, n)
}

func TestWriteI_BadStateBeforeSetup(t *testing.T) {
	ep, _ := openFakeEndpoint(StreamPlayback)
	_, err := WriteI(context.Background(), ep, make([]byte, 8), 1)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrBadState)
}

func TestWriteI_ContextCancelDuringBlock(t *testing.T) {
	ep, _ := openFakeEndpoint(StreamPlayback)
	cfg, err := ep.HwParams(testConfigSpace())
	require.NoError(t, err)
	require.NoError(t, ep.Start())

	// Fill the ring while RUNNING so the loop genuinely blocks in Wait
	// rather than short-circuiting through the PREPARED-and-full xrun path.
	b := ep.fast.(*fakeBackend)
	b.mu.Lock()
	b.written = cfg.BufferSize
	b.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	buf := make([]byte, cfg.PeriodSize*cfg.Channels*Width(cfg.Format))
	_, err = WriteI(ctx, ep, buf, cfg.PeriodSize)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
