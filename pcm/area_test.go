package pcm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestAreaSilence_Nibble(t *testing.T) {
	buf := make([]byte, 2)
	buf[0] = 0x0f // low nibble pre-set, should survive untouched
	area := Area{Addr: buf, First: 4, Step: 4}

	AreaSilence(area, 0, 3, FormatU4)

	assert.Equal(t, byte(0x0f), buf[0]&0x0f, "low nibble of byte 0 must be untouched")
	assert.Equal(t, byte(0x8), buf[0]>>4, "high nibble of byte 0 must be silence")
	assert.Equal(t, byte(0x88), buf[1], "both nibbles of byte 1 must be silence")
}

func TestAreasCopy_InterleavedCollapse(t *testing.T) {
	src := []byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16} // 2 ch * 4 frames * 2 bytes, interleaved S16_LE
	dst := make([]byte, len(src))

	srcAreas := []Area{
		{Addr: src, First: 0, Step: 32},
		{Addr: src, First: 16, Step: 32},
	}
	dstAreas := []Area{
		{Addr: dst, First: 0, Step: 32},
		{Addr: dst, First: 16, Step: 32},
	}

	runs := collapseRuns(dstAreas, Width(FormatS16LE))
	require.Len(t, runs, 1, "adjacent interleaved channels must collapse into one run")
	assert.Equal(t, 2, runs[0].length)

	AreasCopy(dstAreas, 0, srcAreas, 0, 2, 4, FormatS16LE)
	assert.Equal(t, src, dst, "collapsed copy must be byte-identical to the source")
}

func TestAreaCopy_NilSourceIsSilence(t *testing.T) {
	dst := []byte{1, 2, 3, 4}
	AreaCopy(Area{Addr: dst, First: 0, Step: 16}, 0, Area{Addr: nil}, 0, 2, FormatS16LE)
	assert.Equal(t, []byte{0, 0, 0, 0}, dst)
}

func TestAreaCopy_NilDstIsNoop(t *testing.T) {
	src := []byte{1, 2, 3, 4}
	assert.NotPanics(t, func() {
		AreaCopy(Area{Addr: nil}, 0, Area{Addr: src, First: 0, Step: 16}, 0, 2, FormatS16LE)
	})
}

// Every format round-trips through a copy out and a copy back.
func TestAreaCopy_RoundTrip(t *testing.T) {
	formats := []Format{FormatS8, FormatU8, FormatS16LE, FormatS16BE, FormatS32LE, FormatU4}

	rapid.Check(t, func(t *rapid.T) {
		format := formats[rapid.IntRange(0, len(formats)-1).Draw(t, "formatIdx")]
		samples := rapid.IntRange(1, 32).Draw(t, "samples")
		width := Width(format)

		totalBits := samples * width
		original := make([]byte, (totalBits+7)/8+1)
		for i := range original {
			original[i] = byte(rapid.IntRange(0, 255).Draw(t, "b"))
		}

		srcArea := Area{Addr: original, First: 0, Step: width}
		mid := make([]byte, len(original))
		dstArea := Area{Addr: mid, First: 0, Step: width}

		AreaCopy(dstArea, 0, srcArea, 0, samples, format)

		back := make([]byte, len(original))
		backArea := Area{Addr: back, First: 0, Step: width}
		AreaCopy(backArea, 0, dstArea, 0, samples, format)

		// Only the bits actually covered by `samples` values are guaranteed
		// to round-trip; trailing partial-byte padding is untouched.
		for i := 0; i < samples; i++ {
			want := readBits(original, i*width, width)
			got := readBits(back, i*width, width)
			require.Equalf(t, want, got, "sample %d did not round-trip for format %v", i, format)
		}
	})
}

func TestBytesFramesRoundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		channels := rapid.IntRange(1, 8).Draw(t, "channels")
		n := rapid.IntRange(0, 100000).Draw(t, "frames")
		got := BytesToFrames(FramesToBytes(n, FormatS16LE, channels), FormatS16LE, channels)
		require.Equal(t, n, got)
	})
}
