package pcm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestRefine_Commutative(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		base := Any()

		r1 := Space{
			AccessMask: fullMask(5),
			FormatMask: fullMask(int(FormatU4) + 1),
			Channels:   intRange{Min: rapid.IntRange(1, 8).Draw(t, "ch1min"), Max: 256},
			Rate:       fullRange(),
			PeriodSize: fullRange(),
			BufferSize: fullRange(),
			PeriodTime: fullRange(),
			TickTime:   fullRange(),
			SubformatMask: fullMask(1),
		}
		r2 := Space{
			AccessMask: fullMask(5),
			FormatMask: fullMask(int(FormatU4) + 1),
			Channels:   intRange{Min: 1, Max: rapid.IntRange(1, 16).Draw(t, "ch2max")},
			Rate:       fullRange(),
			PeriodSize: fullRange(),
			BufferSize: fullRange(),
			PeriodTime: fullRange(),
			TickTime:   fullRange(),
			SubformatMask: fullMask(1),
		}

		seq, err1 := Refine(base, r1)
		if err1 == nil {
			seq, err1 = Refine(seq, r2)
		}

		conj := Space{
			AccessMask:    r1.AccessMask.intersect(r2.AccessMask),
			FormatMask:    r1.FormatMask.intersect(r2.FormatMask),
			SubformatMask: r1.SubformatMask.intersect(r2.SubformatMask),
			Channels:      r1.Channels.intersect(r2.Channels),
			Rate:          r1.Rate.intersect(r2.Rate),
			PeriodSize:    r1.PeriodSize.intersect(r2.PeriodSize),
			BufferSize:    r1.BufferSize.intersect(r2.BufferSize),
			PeriodTime:    r1.PeriodTime.intersect(r2.PeriodTime),
			TickTime:      r1.TickTime.intersect(r2.TickTime),
		}
		direct, err2 := Refine(base, conj)

		require.Equal(t, err1 == nil, err2 == nil)
		if err1 == nil {
			assert.Equal(t, direct, seq, "sequential refinement must equal one-shot conjunction")
		}
	})
}

func TestChooseOne_ResolutionOrder(t *testing.T) {
	space := Any()
	space = SetChannels(space, 2)
	cfg, _, err := ChooseOne(space)
	require.NoError(t, err)
	assert.Equal(t, AccessMmapInterleaved, cfg.Access, "access is chosen first, lowest enum value wins")
	assert.Equal(t, FormatS16LE, cfg.Format, "S16_LE is first in the format preference order")
	assert.Equal(t, 2, cfg.Channels)
	assert.True(t, cfg.BufferSize%cfg.PeriodSize == 0, "period_size must divide buffer_size")
	assert.Greater(t, cfg.PeriodSize, 0)
	assert.Greater(t, cfg.BufferSize, 0)
}

func TestChooseOne_UnreachableChannels(t *testing.T) {
	space := Any()
	space.Channels = intRange{Min: 5, Max: 3} // already empty
	_, _, err := ChooseOne(space)
	require.Error(t, err)
	var pe *Error
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, KindUnreachable, pe.Kind)
	assert.Equal(t, "channels", pe.Param)
}
